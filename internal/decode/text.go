package decode

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/tonylturner/diagdecode/internal/schema"
)

// decodeText converts field bytes to a string. Malformed input is an error,
// never replaced; Latin-1 cannot be malformed.
func decodeText(b []byte, enc schema.StringEncoding) (string, error) {
	switch enc {
	case schema.EncodingUTF8, "":
		if !utf8.Valid(b) {
			return "", fmt.Errorf("%w: invalid UTF-8 sequence", ErrStringDecode)
		}
		return string(b), nil
	case schema.EncodingASCII:
		for i, c := range b {
			if c >= utf8.RuneSelf {
				return "", fmt.Errorf("%w: non-ASCII byte 0x%02X at offset %d", ErrStringDecode, c, i)
			}
		}
		return string(b), nil
	case schema.EncodingLatin1:
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrStringDecode, err)
		}
		return string(out), nil
	case schema.EncodingUTF16BE:
		return decodeUTF16(b, unicode.BigEndian)
	case schema.EncodingUTF16LE:
		return decodeUTF16(b, unicode.LittleEndian)
	default:
		return "", fmt.Errorf("%w: encoding %q", ErrStringDecode, enc)
	}
}

func decodeUTF16(b []byte, order unicode.Endianness) (string, error) {
	if len(b)%2 != 0 {
		return "", fmt.Errorf("%w: odd UTF-16 length %d", ErrStringDecode, len(b))
	}
	if off, ok := unpairedSurrogate(b, order); ok {
		return "", fmt.Errorf("%w: unpaired UTF-16 surrogate at offset %d", ErrStringDecode, off)
	}
	out, err := unicode.UTF16(order, unicode.IgnoreBOM).NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStringDecode, err)
	}
	return string(out), nil
}

// unpairedSurrogate returns the byte offset of the first surrogate code unit
// that is not a high surrogate directly followed by a low one.
func unpairedSurrogate(b []byte, order unicode.Endianness) (int, bool) {
	unit := func(i int) rune {
		if order == unicode.LittleEndian {
			return rune(b[i+1])<<8 | rune(b[i])
		}
		return rune(b[i])<<8 | rune(b[i+1])
	}
	for i := 0; i+1 < len(b); i += 2 {
		u := unit(i)
		if !utf16.IsSurrogate(u) {
			continue
		}
		if u >= 0xDC00 || i+3 >= len(b) {
			return i, true
		}
		if next := unit(i + 2); next < 0xDC00 || next > 0xDFFF {
			return i, true
		}
		i += 2
	}
	return 0, false
}
