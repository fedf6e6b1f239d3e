package decode

import (
	"errors"
	"fmt"

	"github.com/tonylturner/diagdecode/internal/schema"
)

var (
	// ErrNotImplemented is returned for formats that are recognised but not evaluated.
	ErrNotImplemented = errors.New("not implemented")
	// ErrBitRange is returned when a field lies outside the buffer or is too wide.
	ErrBitRange = errors.New("bit range error")
	// ErrDecodeNotSupported is returned when a number is requested from a format that has none.
	ErrDecodeNotSupported = errors.New("decode not supported")
	// ErrStringDecode is returned when text bytes are malformed for their encoding.
	ErrStringDecode = errors.New("string decode failure")
	// ErrUnknownFormat is returned for a DataFormat this package does not know.
	ErrUnknownFormat = errors.New("unknown data format")
)

// Error describes a failed decode of one parameter.
type Error struct {
	Param  string
	Format schema.FormatKind
	Err    error
}

func (e *Error) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("decode %s: %v", e.Param, e.Err)
	}
	return fmt.Sprintf("decode %s (%s): %v", e.Param, e.Format, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(p schema.Parameter, err error) error {
	e := &Error{Param: p.Name, Err: err}
	if p.DataFormat != nil {
		e.Format = p.DataFormat.Kind()
	}
	return e
}
