package schema

import (
	"encoding/hex"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Payload is a request template. It is written as an uppercase hex string.
type Payload []byte

// ParsePayload decodes a hex string. Whitespace and an optional 0x prefix are ignored.
func ParsePayload(s string) (Payload, error) {
	s = strings.Join(strings.Fields(s), "")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %w", err)
	}
	return Payload(b), nil
}

func (p Payload) String() string {
	return strings.ToUpper(hex.EncodeToString(p))
}

// MarshalYAML implements yaml.Marshaler for Payload.
func (p Payload) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for Payload.
func (p *Payload) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParsePayload(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler for ByteOrder.
func (o ByteOrder) MarshalYAML() (interface{}, error) {
	return o.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for ByteOrder.
func (o *ByteOrder) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseByteOrder(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// parameterYAML is the YAML representation of a Parameter.
type parameterYAML struct {
	Name        string    `yaml:"name"`
	Unit        string    `yaml:"unit"`
	StartBit    int       `yaml:"start_bit"`
	LengthBits  int       `yaml:"length_bits"`
	ByteOrder   ByteOrder `yaml:"byte_order"`
	DataFormat  yaml.Node `yaml:"data_format"`
	ValidBounds *Limit    `yaml:"valid_bounds,omitempty"`
}

// formatYAML carries the fields of every DataFormat variant. A variant
// without fields may also be written as a bare scalar, e.g. "identical".
type formatYAML struct {
	Type       string       `yaml:"type"`
	Encoding   string       `yaml:"encoding,omitempty"`
	PosName    *string      `yaml:"pos_name,omitempty"`
	NegName    *string      `yaml:"neg_name,omitempty"`
	Ranges     []TableRange `yaml:"ranges,omitempty"`
	Match      string       `yaml:"match,omitempty"`
	Multiplier *float64     `yaml:"multiplier,omitempty"`
	Offset     *float64     `yaml:"offset,omitempty"`
	Expression string       `yaml:"expression,omitempty"`
}

// UnmarshalYAML implements yaml.Unmarshaler for Parameter.
func (p *Parameter) UnmarshalYAML(value *yaml.Node) error {
	var raw parameterYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.DataFormat.Kind == 0 {
		return fmt.Errorf("parameter %q: data_format is required", raw.Name)
	}
	format, err := decodeFormat(&raw.DataFormat)
	if err != nil {
		return fmt.Errorf("parameter %q: data_format: %w", raw.Name, err)
	}

	*p = Parameter{
		Name:        raw.Name,
		Unit:        raw.Unit,
		StartBit:    raw.StartBit,
		LengthBits:  raw.LengthBits,
		ByteOrder:   raw.ByteOrder,
		DataFormat:  format,
		ValidBounds: raw.ValidBounds,
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler for Parameter.
func (p Parameter) MarshalYAML() (interface{}, error) {
	raw := parameterYAML{
		Name:        p.Name,
		Unit:        p.Unit,
		StartBit:    p.StartBit,
		LengthBits:  p.LengthBits,
		ByteOrder:   p.ByteOrder,
		ValidBounds: p.ValidBounds,
	}
	formatValue, err := encodeFormat(p.DataFormat)
	if err != nil {
		return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
	}
	if err := raw.DataFormat.Encode(formatValue); err != nil {
		return nil, fmt.Errorf("parameter %q: encode data_format: %w", p.Name, err)
	}
	return raw, nil
}

func decodeFormat(node *yaml.Node) (DataFormat, error) {
	var raw formatYAML
	switch node.Kind {
	case yaml.ScalarNode:
		raw.Type = node.Value
	case yaml.MappingNode:
		if err := node.Decode(&raw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("expected a format name or mapping")
	}

	kind, err := ParseFormatKind(raw.Type)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindHexDump:
		return HexDump{}, nil
	case KindString:
		enc, err := ParseStringEncoding(raw.Encoding)
		if err != nil {
			return nil, err
		}
		return String{Encoding: enc}, nil
	case KindBool:
		return Bool{PosName: raw.PosName, NegName: raw.NegName}, nil
	case KindTable:
		match, err := ParseTableMatch(raw.Match)
		if err != nil {
			return nil, err
		}
		return Table{Ranges: raw.Ranges, Match: match}, nil
	case KindIdentical:
		return Identical{}, nil
	case KindLinear:
		if raw.Multiplier == nil {
			return nil, fmt.Errorf("linear format requires multiplier")
		}
		lin := Linear{Multiplier: *raw.Multiplier}
		if raw.Offset != nil {
			lin.Offset = *raw.Offset
		}
		return lin, nil
	case KindScaleLinear:
		return ScaleLinear{}, nil
	case KindRatFunc:
		return RatFunc{}, nil
	case KindScaleRatFunc:
		return ScaleRatFunc{}, nil
	case KindTableInterpretation:
		return TableInterpretation{}, nil
	case KindCompuCode:
		return CompuCode{Expression: raw.Expression}, nil
	}
	return nil, fmt.Errorf("unhandled data format %q", kind)
}

func encodeFormat(f DataFormat) (interface{}, error) {
	switch v := f.(type) {
	case HexDump, Identical, ScaleLinear, RatFunc, ScaleRatFunc, TableInterpretation:
		return string(v.Kind()), nil
	case String:
		enc := v.Encoding
		if enc == EncodingUTF8 {
			enc = ""
		}
		return formatYAML{Type: string(KindString), Encoding: string(enc)}, nil
	case Bool:
		return formatYAML{Type: string(KindBool), PosName: v.PosName, NegName: v.NegName}, nil
	case Table:
		match := v.Match
		if match == MatchLegacy {
			match = ""
		}
		return formatYAML{Type: string(KindTable), Ranges: v.Ranges, Match: string(match)}, nil
	case Linear:
		mult, off := v.Multiplier, v.Offset
		return formatYAML{Type: string(KindLinear), Multiplier: &mult, Offset: &off}, nil
	case CompuCode:
		return formatYAML{Type: string(KindCompuCode), Expression: v.Expression}, nil
	case nil:
		return nil, fmt.Errorf("data_format is required")
	default:
		return nil, fmt.Errorf("unknown data format %T", f)
	}
}
