// Package schema defines the declarative description of diagnostic services:
// which bytes a service sends, and where each response parameter lives and
// how it should be interpreted.
package schema

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// File is the top-level schema document.
type File struct {
	Services []Service `yaml:"services"`
}

// Service is one diagnostic operation: a request template plus the parameters
// carried in its request and response.
type Service struct {
	Name         string      `yaml:"name"`
	Description  string      `yaml:"description"`
	Payload      Payload     `yaml:"payload"`
	InputParams  []Parameter `yaml:"input_params,omitempty"`
	OutputParams []Parameter `yaml:"output_params,omitempty"`
}

// HasInput reports whether the service takes input parameters.
func (s Service) HasInput() bool {
	return len(s.InputParams) > 0
}

// HasOutput reports whether the service declares response parameters.
func (s Service) HasOutput() bool {
	return len(s.OutputParams) > 0
}

// Service returns the service with the given name, ignoring case.
func (f *File) Service(name string) (*Service, bool) {
	for i := range f.Services {
		if strings.EqualFold(f.Services[i].Name, name) {
			return &f.Services[i], true
		}
	}
	return nil, false
}

// ByteOrder selects how multi-byte fields are assembled.
type ByteOrder int

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

// Binary returns the encoding/binary equivalent of o.
func (o ByteOrder) Binary() binary.ByteOrder {
	if o == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (o ByteOrder) String() string {
	switch o {
	case BigEndian:
		return "big_endian"
	case LittleEndian:
		return "little_endian"
	default:
		return fmt.Sprintf("ByteOrder(%d)", int(o))
	}
}

// ParseByteOrder accepts big_endian/little_endian in any case, with or without separators.
func ParseByteOrder(s string) (ByteOrder, error) {
	switch normalizeName(s) {
	case "bigendian", "big", "be", "":
		return BigEndian, nil
	case "littleendian", "little", "le":
		return LittleEndian, nil
	default:
		return BigEndian, fmt.Errorf("unknown byte order %q", s)
	}
}

// Limit is the validity envelope of a decoded value.
type Limit struct {
	Upper float64 `yaml:"upper"`
	Lower float64 `yaml:"lower"`
}

// Contains reports whether v lies within [Lower, Upper].
func (l Limit) Contains(v float64) bool {
	return v >= l.Lower && v <= l.Upper
}

// Parameter locates one field inside a payload and names its interpretation.
// ValidBounds is carried for consumers; decoding does not consult it.
type Parameter struct {
	Name        string
	Unit        string
	StartBit    int
	LengthBits  int
	ByteOrder   ByteOrder
	DataFormat  DataFormat
	ValidBounds *Limit
}

// GetUnit returns the unit and true, or "" and false when the parameter is unitless.
func (p Parameter) GetUnit() (string, bool) {
	if p.Unit == "" {
		return "", false
	}
	return p.Unit, true
}

// InBounds reports whether v is inside the parameter's validity envelope.
// Parameters without bounds accept every value.
func (p Parameter) InBounds(v float64) bool {
	if p.ValidBounds == nil {
		return true
	}
	return p.ValidBounds.Contains(v)
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}
