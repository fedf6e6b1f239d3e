package report

import (
	"time"

	"github.com/tonylturner/diagdecode/internal/decode"
)

// Report is the top-level document written for a decode run.
type Report struct {
	GeneratedAt       string   `json:"generated_at"`
	DiagdecodeVersion string   `json:"diagdecode_version"`
	Schema            string   `json:"schema"`
	Source            string   `json:"source"`
	Results           []Result `json:"results"`
}

// Result holds the decoded output parameters of one service response.
type Result struct {
	Service   string  `json:"service"`
	Timestamp string  `json:"timestamp,omitempty"`
	Endpoint  string  `json:"endpoint,omitempty"`
	Negative  string  `json:"negative,omitempty"`
	Fields    []Field `json:"fields,omitempty"`
}

// Field is one decoded parameter. Number is only present for plottable
// parameters that decoded numerically.
type Field struct {
	Param       string   `json:"param"`
	Text        string   `json:"text,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	Number      *float64 `json:"number,omitempty"`
	OutOfBounds bool     `json:"out_of_bounds,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// NewResult converts decoded values into a report result.
func NewResult(service string, values []decode.Value) Result {
	r := Result{Service: service, Fields: make([]Field, 0, len(values))}
	for _, v := range values {
		f := Field{
			Param:       v.Param,
			Text:        v.Text,
			Unit:        v.Unit,
			OutOfBounds: v.OutOfBounds,
		}
		if v.HasNumber {
			n := v.Number
			f.Number = &n
		}
		if v.Err != nil {
			f.Error = v.Err.Error()
		}
		r.Fields = append(r.Fields, f)
	}
	return r
}

// WithCapture records where in a capture the response was seen.
func (r Result) WithCapture(ts time.Time, endpoint string) Result {
	if !ts.IsZero() {
		r.Timestamp = ts.UTC().Format(time.RFC3339Nano)
	}
	r.Endpoint = endpoint
	return r
}

// Failed counts fields that did not decode.
func (r Result) Failed() int {
	n := 0
	for _, f := range r.Fields {
		if f.Error != "" {
			n++
		}
	}
	return n
}

// FormatTimestamp returns the current time for Report.GeneratedAt.
func FormatTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
