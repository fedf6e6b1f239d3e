package schema

import "fmt"

// FormatKind names a DataFormat variant. It is also the YAML discriminator.
type FormatKind string

const (
	KindHexDump             FormatKind = "hex_dump"
	KindString              FormatKind = "string"
	KindBool                FormatKind = "bool"
	KindTable               FormatKind = "table"
	KindIdentical           FormatKind = "identical"
	KindLinear              FormatKind = "linear"
	KindScaleLinear         FormatKind = "scale_linear"
	KindRatFunc             FormatKind = "rat_func"
	KindScaleRatFunc        FormatKind = "scale_rat_func"
	KindTableInterpretation FormatKind = "table_interpretation"
	KindCompuCode           FormatKind = "compu_code"
)

// Kinds lists every known format kind in declaration order.
var Kinds = []FormatKind{
	KindHexDump, KindString, KindBool, KindTable, KindIdentical, KindLinear,
	KindScaleLinear, KindRatFunc, KindScaleRatFunc, KindTableInterpretation, KindCompuCode,
}

// ParseFormatKind resolves s to a FormatKind, ignoring case and separators,
// so "HexDump", "hex_dump" and "hex-dump" are equivalent.
func ParseFormatKind(s string) (FormatKind, error) {
	n := normalizeName(s)
	for _, k := range Kinds {
		if normalizeName(string(k)) == n {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown data format %q", s)
}

// DataFormat is the closed set of interpretations a Parameter can carry.
// Only the types in this file implement it.
type DataFormat interface {
	Kind() FormatKind
	isDataFormat()
}

// HexDump renders the covered bytes as a hex list.
type HexDump struct{}

// String renders the covered bytes as text.
type String struct {
	Encoding StringEncoding
}

// Bool maps zero and nonzero raw values to names. Nil names fall back to False/True.
type Bool struct {
	PosName *string
	NegName *string
}

// Table maps raw values to names through an ordered list of ranges.
type Table struct {
	Ranges []TableRange
	Match  TableMatch
}

// TableRange is one named entry of a Table.
type TableRange struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
	Name  string  `yaml:"name"`
}

// Identical passes the raw value through unchanged.
type Identical struct{}

// Linear scales the raw value: raw*Multiplier + Offset.
type Linear struct {
	Multiplier float64
	Offset     float64
}

// ScaleLinear is a piecewise linear conversion. Not evaluated.
type ScaleLinear struct{}

// RatFunc is a rational function conversion. Not evaluated.
type RatFunc struct{}

// ScaleRatFunc is a piecewise rational function conversion. Not evaluated.
type ScaleRatFunc struct{}

// TableInterpretation interpolates over a value table. Not evaluated.
type TableInterpretation struct{}

// CompuCode holds a conversion expression. Not evaluated.
type CompuCode struct {
	Expression string
}

func (HexDump) Kind() FormatKind             { return KindHexDump }
func (String) Kind() FormatKind              { return KindString }
func (Bool) Kind() FormatKind                { return KindBool }
func (Table) Kind() FormatKind               { return KindTable }
func (Identical) Kind() FormatKind           { return KindIdentical }
func (Linear) Kind() FormatKind              { return KindLinear }
func (ScaleLinear) Kind() FormatKind         { return KindScaleLinear }
func (RatFunc) Kind() FormatKind             { return KindRatFunc }
func (ScaleRatFunc) Kind() FormatKind        { return KindScaleRatFunc }
func (TableInterpretation) Kind() FormatKind { return KindTableInterpretation }
func (CompuCode) Kind() FormatKind           { return KindCompuCode }

func (HexDump) isDataFormat()             {}
func (String) isDataFormat()              {}
func (Bool) isDataFormat()                {}
func (Table) isDataFormat()               {}
func (Identical) isDataFormat()           {}
func (Linear) isDataFormat()              {}
func (ScaleLinear) isDataFormat()         {}
func (RatFunc) isDataFormat()             {}
func (ScaleRatFunc) isDataFormat()        {}
func (TableInterpretation) isDataFormat() {}
func (CompuCode) isDataFormat()           {}

// IsNumeric reports whether the format extracts an integer field, and so
// is limited to bits.MaxWidth.
func IsNumeric(f DataFormat) bool {
	switch f.(type) {
	case Bool, Table, Identical, Linear:
		return true
	default:
		return false
	}
}

// StringEncoding is the character encoding of a String field.
type StringEncoding string

const (
	EncodingUTF8    StringEncoding = "utf8"
	EncodingASCII   StringEncoding = "ascii"
	EncodingLatin1  StringEncoding = "latin1"
	EncodingUTF16BE StringEncoding = "utf16be"
	EncodingUTF16LE StringEncoding = "utf16le"
)

// ParseStringEncoding resolves an encoding name. Empty means UTF-8.
func ParseStringEncoding(s string) (StringEncoding, error) {
	switch normalizeName(s) {
	case "", "utf8":
		return EncodingUTF8, nil
	case "ascii", "usascii":
		return EncodingASCII, nil
	case "latin1", "iso88591":
		return EncodingLatin1, nil
	case "utf16be", "utf16":
		return EncodingUTF16BE, nil
	case "utf16le":
		return EncodingUTF16LE, nil
	default:
		return "", fmt.Errorf("unknown string encoding %q", s)
	}
}

// TableMatch selects how a raw value is compared with a TableRange.
type TableMatch string

const (
	// MatchLegacy keeps the historical comparison start >= raw && end <= raw,
	// which matches raw in [End, Start]. For ranges written low-to-high this
	// only matches when Start == End == raw.
	MatchLegacy TableMatch = "legacy"
	// MatchInclusive matches Start <= raw <= End.
	MatchInclusive TableMatch = "inclusive"
)

// ParseTableMatch resolves a match mode. Empty means MatchLegacy.
func ParseTableMatch(s string) (TableMatch, error) {
	switch normalizeName(s) {
	case "", "legacy":
		return MatchLegacy, nil
	case "inclusive":
		return MatchInclusive, nil
	default:
		return "", fmt.Errorf("unknown table match mode %q", s)
	}
}

// Matches reports whether raw selects r under mode m.
func (m TableMatch) Matches(r TableRange, raw float64) bool {
	if m == MatchInclusive {
		return r.Start <= raw && raw <= r.End
	}
	return r.Start >= raw && r.End <= raw
}
