// Package decode interprets parameter fields of a diagnostic response.
//
// ToString produces the display form of a field, ToNumber its numeric value
// for formats that have one, and CanPlot tells a plotting consumer which
// formats are worth asking ToNumber about.
package decode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tonylturner/diagdecode/internal/bits"
	"github.com/tonylturner/diagdecode/internal/schema"
)

// ToString decodes the field p describes into its display form.
func ToString(p schema.Parameter, buf []byte) (string, error) {
	var result string
	switch f := p.DataFormat.(type) {
	case schema.HexDump:
		b, err := byteSpan(p, buf, true)
		if err != nil {
			return "", newError(p, err)
		}
		return hexList(b), nil
	case schema.String:
		b, err := byteSpan(p, buf, false)
		if err != nil {
			return "", newError(p, err)
		}
		s, err := decodeText(b, f.Encoding)
		if err != nil {
			return "", newError(p, err)
		}
		return s, nil
	case schema.Bool:
		raw, err := field(p, buf)
		if err != nil {
			return "", err
		}
		result = boolName(f, raw)
	case schema.Table:
		raw, err := field(p, buf)
		if err != nil {
			return "", err
		}
		v := float64(raw)
		for _, r := range f.Ranges {
			if f.Match.Matches(r, v) {
				return r.Name, nil
			}
		}
		return "Undefined (" + formatFloat(v) + ")", nil
	case schema.Identical:
		raw, err := field(p, buf)
		if err != nil {
			return "", err
		}
		result = formatFloat(float64(raw))
	case schema.Linear:
		raw, err := field(p, buf)
		if err != nil {
			return "", err
		}
		result = formatFloat(linear(f, raw))
	case schema.ScaleLinear, schema.RatFunc, schema.ScaleRatFunc, schema.TableInterpretation, schema.CompuCode:
		return "", newError(p, ErrNotImplemented)
	default:
		return "", newError(p, fmt.Errorf("%w: %T", ErrUnknownFormat, p.DataFormat))
	}

	if unit, ok := p.GetUnit(); ok {
		result += " " + unit
	}
	return result, nil
}

// ToNumber decodes the field p describes into a number. Only Bool and Linear
// have a numeric form; Identical is displayable but not yet numeric.
func ToNumber(p schema.Parameter, buf []byte) (float64, error) {
	switch f := p.DataFormat.(type) {
	case schema.HexDump, schema.String, schema.Table:
		return 0, newError(p, ErrDecodeNotSupported)
	case schema.Bool:
		raw, err := field(p, buf)
		if err != nil {
			return 0, err
		}
		return float64(raw), nil
	case schema.Linear:
		raw, err := field(p, buf)
		if err != nil {
			return 0, err
		}
		return linear(f, raw), nil
	case schema.Identical, schema.ScaleLinear, schema.RatFunc, schema.ScaleRatFunc, schema.TableInterpretation, schema.CompuCode:
		return 0, newError(p, ErrNotImplemented)
	default:
		return 0, newError(p, fmt.Errorf("%w: %T", ErrUnknownFormat, p.DataFormat))
	}
}

// CanPlot reports whether values of format f can be charted.
func CanPlot(f schema.DataFormat) bool {
	switch f.(type) {
	case schema.Bool, schema.Identical, schema.Linear:
		return true
	default:
		return false
	}
}

func field(p schema.Parameter, buf []byte) (uint32, error) {
	v, err := bits.Extract(buf, p.StartBit, p.LengthBits, p.ByteOrder.Binary())
	if err != nil {
		if errors.Is(err, bits.ErrRange) {
			err = fmt.Errorf("%w: %w", ErrBitRange, err)
		}
		return 0, newError(p, err)
	}
	return v, nil
}

// byteSpan returns the whole bytes covered by p. With clamp the end is cut
// to the buffer; without it a short buffer is an error.
func byteSpan(p schema.Parameter, buf []byte, clamp bool) ([]byte, error) {
	if p.StartBit < 0 || p.LengthBits < 0 {
		return nil, fmt.Errorf("%w: negative bit geometry", ErrBitRange)
	}
	start := p.StartBit / 8
	if start > len(buf) {
		return nil, fmt.Errorf("%w: start byte %d outside %d-byte buffer", ErrBitRange, start, len(buf))
	}
	end := len(buf)
	if avail := len(buf)*8 - p.StartBit; p.LengthBits <= avail {
		end = (p.StartBit + p.LengthBits) / 8
	} else if !clamp {
		return nil, fmt.Errorf("%w: %d bits at bit %d outside %d-byte buffer", ErrBitRange, p.LengthBits, p.StartBit, len(buf))
	}
	return buf[start:end], nil
}

func boolName(f schema.Bool, raw uint32) string {
	if raw == 0 {
		if f.NegName != nil {
			return *f.NegName
		}
		return "False"
	}
	if f.PosName != nil {
		return *f.PosName
	}
	return "True"
}

func linear(f schema.Linear, raw uint32) float64 {
	return float64(raw)*f.Multiplier + f.Offset
}

// formatFloat prints v at single precision in its shortest form, without an exponent.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 32)
}

func hexList(b []byte) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, c := range b {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%02X", c)
	}
	sb.WriteByte(']')
	return sb.String()
}
