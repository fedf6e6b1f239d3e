package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the colour palette for text reports.
type Theme struct {
	Accent  lipgloss.Color
	Dim     lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
}

// DefaultTheme matches the Tokyo Night palette used across the tool.
var DefaultTheme = Theme{
	Accent:  lipgloss.Color("#7aa2f7"),
	Dim:     lipgloss.Color("#565f89"),
	Warning: lipgloss.Color("#e0af68"),
	Error:   lipgloss.Color("#f7768e"),
}

// Styles are the lipgloss styles used by WriteText.
type Styles struct {
	Header  lipgloss.Style
	Meta    lipgloss.Style
	Name    lipgloss.Style
	Value   lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles builds text report styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Foreground(t.Accent).Bold(true),
		Meta:    lipgloss.NewStyle().Foreground(t.Dim),
		Name:    lipgloss.NewStyle().Foreground(t.Dim).PaddingLeft(2),
		Value:   lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle().Foreground(t.Warning),
		Error:   lipgloss.NewStyle().Foreground(t.Error),
	}
}

// DefaultStyles returns styles using the default theme.
var DefaultStyles = NewStyles(DefaultTheme)

// WriteText renders results as aligned name/value lines. Colour is only
// emitted when the terminal supports it.
func WriteText(w io.Writer, results []Result, styles Styles) error {
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		header := styles.Header.Render(r.Service)
		if meta := resultMeta(r); meta != "" {
			header += " " + styles.Meta.Render(meta)
		}
		fmt.Fprintln(w, header)

		if r.Negative != "" {
			fmt.Fprintln(w, styles.Name.Render(styles.Error.Render(r.Negative)))
			continue
		}
		if len(r.Fields) == 0 {
			fmt.Fprintln(w, styles.Name.Render(styles.Meta.Render("(no output parameters)")))
			continue
		}

		width := 0
		for _, f := range r.Fields {
			width = max(width, lipgloss.Width(f.Param))
		}
		nameStyle := styles.Name.Width(width + 4)
		for _, f := range r.Fields {
			var value string
			switch {
			case f.Error != "":
				value = styles.Error.Render("error: " + f.Error)
			case f.OutOfBounds:
				value = styles.Value.Render(f.Text) + " " + styles.Warning.Render("(out of bounds)")
			default:
				value = styles.Value.Render(f.Text)
			}
			fmt.Fprintln(w, nameStyle.Render(f.Param)+value)
		}
	}
	return nil
}

func resultMeta(r Result) string {
	var parts []string
	if r.Timestamp != "" {
		parts = append(parts, r.Timestamp)
	}
	if r.Endpoint != "" {
		parts = append(parts, r.Endpoint)
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, " ") + ")"
}
