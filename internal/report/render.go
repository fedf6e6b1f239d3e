package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Write renders rep in format ("text", "csv" or "json"). Text is the default.
func Write(w io.Writer, format string, rep Report) error {
	switch format {
	case "csv":
		return WriteCSV(w, rep.Results)
	case "json":
		return WriteJSON(w, rep)
	default:
		return WriteText(w, rep.Results, DefaultStyles)
	}
}

// WriteJSON writes v as indented JSON. HTML escaping is off so endpoints
// such as "0x1001->0x0E00" stay readable.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteJSONFile writes v as indented JSON to path.
func WriteJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := WriteJSON(f, v); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
