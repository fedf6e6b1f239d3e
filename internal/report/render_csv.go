package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

var csvHeader = []string{
	"service", "timestamp", "parameter", "text", "number", "unit", "out_of_bounds", "error",
}

// WriteCSV writes one row per decoded field. Only plottable fields carry a
// number, so the output can be fed straight into a plotting tool.
func WriteCSV(w io.Writer, results []Result) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range results {
		if r.Negative != "" {
			record := []string{r.Service, r.Timestamp, "", "", "", "", "", r.Negative}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
			continue
		}
		for _, f := range r.Fields {
			number := ""
			if f.Number != nil {
				number = strconv.FormatFloat(*f.Number, 'g', -1, 64)
			}
			record := []string{
				r.Service,
				r.Timestamp,
				f.Param,
				f.Text,
				number,
				f.Unit,
				strconv.FormatBool(f.OutOfBounds),
				f.Error,
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
