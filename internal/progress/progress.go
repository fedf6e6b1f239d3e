package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const barWidth = 40

// Bar shows how much of a fixed-length recording has elapsed and how many
// packets it has captured so far.
type Bar struct {
	mu          sync.Mutex
	total       time.Duration
	output      io.Writer
	enabled     bool
	description string
	lastUpdate  time.Time
	interval    time.Duration
}

// NewBar creates a bar for a recording of length total written to output.
func NewBar(output io.Writer, total time.Duration, description string) *Bar {
	return &Bar{
		total:       total,
		output:      output,
		enabled:     true,
		description: description,
		interval:    100 * time.Millisecond,
	}
}

// Disable turns rendering off, e.g. when logging is silent.
func (b *Bar) Disable() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = false
}

// Update redraws the bar. Calls closer together than the update interval
// are dropped unless the recording is complete.
func (b *Bar) Update(elapsed time.Duration, packets int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.enabled {
		return
	}
	now := time.Now()
	if now.Sub(b.lastUpdate) < b.interval && elapsed < b.total {
		return
	}
	b.lastUpdate = now
	fmt.Fprint(b.output, b.line(elapsed, packets))
}

// Finish draws the final state and ends the line.
func (b *Bar) Finish(elapsed time.Duration, packets int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.enabled {
		return
	}
	fmt.Fprint(b.output, b.line(elapsed, packets)+"\n")
}

func (b *Bar) line(elapsed time.Duration, packets int) string {
	var percent float64
	if b.total > 0 {
		percent = min(float64(elapsed)/float64(b.total)*100, 100)
	}

	filled := int(float64(barWidth) * percent / 100)
	bar := strings.Repeat("=", filled)
	if filled < barWidth {
		bar += ">" + strings.Repeat("-", barWidth-filled-1)
	}

	out := fmt.Sprintf("\r[%s] %s/%s | %d packets", bar, formatDuration(elapsed), formatDuration(b.total), packets)
	if b.description != "" {
		out = "\r" + b.description + " " + out[1:]
	}
	return out
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}
