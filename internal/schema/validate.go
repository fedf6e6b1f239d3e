package schema

import (
	"fmt"
	"strings"
)

// maxNumericWidth mirrors bits.MaxWidth; schema stays free of decode imports.
const maxNumericWidth = 32

// maxPayloadBits bounds start_bit and length_bits; UDS responses are far shorter.
const maxPayloadBits = 8 << 20

// Validate checks the document for problems that would make every decode of
// a parameter fail. It does not relate bit ranges to payload lengths; that is
// the caller's business.
func (f *File) Validate() error {
	if len(f.Services) == 0 {
		return fmt.Errorf("schema defines no services")
	}
	seen := make(map[string]int, len(f.Services))
	for i, svc := range f.Services {
		if strings.TrimSpace(svc.Name) == "" {
			return fmt.Errorf("services[%d]: name is required", i)
		}
		key := strings.ToLower(svc.Name)
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("services[%d]: duplicate service name %q (first at services[%d])", i, svc.Name, prev)
		}
		seen[key] = i
		if err := validateParams(svc.InputParams, fmt.Sprintf("services[%d].input_params", i)); err != nil {
			return err
		}
		if err := validateParams(svc.OutputParams, fmt.Sprintf("services[%d].output_params", i)); err != nil {
			return err
		}
	}
	return nil
}

func validateParams(params []Parameter, section string) error {
	for i, p := range params {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%s[%d]: %w", section, i, err)
		}
	}
	return nil
}

// Validate checks a single parameter.
func (p Parameter) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if p.StartBit < 0 {
		return fmt.Errorf("%s: start_bit must be >= 0", p.Name)
	}
	if p.LengthBits <= 0 {
		return fmt.Errorf("%s: length_bits must be > 0", p.Name)
	}
	if p.StartBit > maxPayloadBits || p.LengthBits > maxPayloadBits-p.StartBit {
		return fmt.Errorf("%s: bits %d+%d run past the %d-bit payload limit", p.Name, p.StartBit, p.LengthBits, maxPayloadBits)
	}
	if p.DataFormat == nil {
		return fmt.Errorf("%s: data_format is required", p.Name)
	}
	if IsNumeric(p.DataFormat) && p.LengthBits > maxNumericWidth {
		return fmt.Errorf("%s: %s fields are limited to %d bits, got %d", p.Name, p.DataFormat.Kind(), maxNumericWidth, p.LengthBits)
	}
	if t, ok := p.DataFormat.(Table); ok {
		for j, r := range t.Ranges {
			if r.Name == "" {
				return fmt.Errorf("%s: table range %d has no name", p.Name, j)
			}
		}
	}
	if p.ValidBounds != nil && p.ValidBounds.Lower > p.ValidBounds.Upper {
		return fmt.Errorf("%s: valid_bounds lower %v is above upper %v", p.Name, p.ValidBounds.Lower, p.ValidBounds.Upper)
	}
	return nil
}
