package errors

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/tonylturner/diagdecode/internal/decode"
)

// UserFriendlyError provides user-friendly error messages with context and hints
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// WrapSchemaError wraps schema loading errors with user-friendly context
func WrapSchemaError(err error, schemaPath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Schema error in %s", schemaPath),
		Reason:  extractSchemaReason(err),
		Hint:    "Each parameter needs name, start_bit, length_bits, byte_order and data_format",
		Try:     fmt.Sprintf("diagdecode validate --schema %s", schemaPath),
		Err:     err,
	}
}

// WrapConfigError wraps configuration errors with user-friendly context
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "Compare with the default file written by config init",
		Try:     fmt.Sprintf("diagdecode config init --config %s.new", configPath),
		Err:     err,
	}
}

// WrapCaptureError wraps capture file errors with user-friendly context
func WrapCaptureError(err error, capturePath string) error {
	if err == nil {
		return nil
	}

	reason := "Capture could not be read as pcap or pcapng"
	if stderrors.Is(err, os.ErrNotExist) {
		reason = "Capture file does not exist"
	}
	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to read capture %s", capturePath),
		Reason:  reason,
		Hint:    "Only DoIP over TCP is extracted; check the port if the ECU does not use 13400",
		Try:     fmt.Sprintf("diagdecode capture --pcap %s --port <port>", capturePath),
		Err:     err,
	}
}

// WrapDecodeError wraps parameter decode errors with user-friendly context
func WrapDecodeError(err error, service string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Decode failed for service %s", service),
		Reason:  extractDecodeReason(err),
		Hint:    decodeHint(err),
		Err:     err,
	}
}

func extractSchemaReason(err error) string {
	if stderrors.Is(err, os.ErrNotExist) {
		return "Schema file does not exist"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "parse schema YAML") {
		return "Schema is not valid YAML or has an unexpected structure"
	}
	if strings.Contains(errStr, "validate schema") {
		return "Schema parsed but failed validation"
	}
	return "Schema could not be loaded"
}

func extractDecodeReason(err error) string {
	switch {
	case stderrors.Is(err, decode.ErrBitRange):
		return "Parameter bits lie outside the response payload"
	case stderrors.Is(err, decode.ErrNotImplemented):
		return "The parameter's data format is not implemented"
	case stderrors.Is(err, decode.ErrDecodeNotSupported):
		return "The parameter's data format has no numeric value"
	case stderrors.Is(err, decode.ErrStringDecode):
		return "Text bytes are not valid for the declared encoding"
	case stderrors.Is(err, decode.ErrUnknownFormat):
		return "The parameter's data format is unknown"
	}
	return "Parameter decode error occurred"
}

func decodeHint(err error) string {
	if stderrors.Is(err, decode.ErrBitRange) {
		return "The response may be shorter than the schema expects, or start_bit counts from a different byte"
	}
	return ""
}
