package capture

import (
	"bytes"
	"fmt"

	"github.com/tonylturner/diagdecode/internal/schema"
)

const (
	positiveResponseOffset = 0x40
	negativeResponseSID    = 0x7F
)

// nrcNames covers the negative response codes seen most often in practice.
var nrcNames = map[byte]string{
	0x10: "generalReject",
	0x11: "serviceNotSupported",
	0x12: "subFunctionNotSupported",
	0x13: "incorrectMessageLengthOrInvalidFormat",
	0x14: "responseTooLong",
	0x21: "busyRepeatRequest",
	0x22: "conditionsNotCorrect",
	0x24: "requestSequenceError",
	0x31: "requestOutOfRange",
	0x33: "securityAccessDenied",
	0x35: "invalidKey",
	0x36: "exceedNumberOfAttempts",
	0x37: "requiredTimeDelayNotExpired",
	0x72: "generalProgrammingFailure",
	0x78: "requestCorrectlyReceivedResponsePending",
	0x7E: "subFunctionNotSupportedInActiveSession",
	0x7F: "serviceNotSupportedInActiveSession",
}

// NegativeResponse is a parsed 0x7F response.
type NegativeResponse struct {
	RequestSID byte
	Code       byte
}

func (n NegativeResponse) String() string {
	name, ok := nrcNames[n.Code]
	if !ok {
		name = "unknown"
	}
	return fmt.Sprintf("negative response to 0x%02X: 0x%02X (%s)", n.RequestSID, n.Code, name)
}

// ParseNegativeResponse returns the negative response carried in uds, if any.
func ParseNegativeResponse(uds []byte) (NegativeResponse, bool) {
	if len(uds) < 3 || uds[0] != negativeResponseSID {
		return NegativeResponse{}, false
	}
	return NegativeResponse{RequestSID: uds[1], Code: uds[2]}, true
}

// MatchResponse reports whether uds is a positive response to svc's request
// template: the response SID is the request SID plus 0x40 and the rest of the
// template (a data identifier, a local identifier, a sub-function) is echoed.
func MatchResponse(svc schema.Service, uds []byte) bool {
	req := svc.Payload
	if len(req) == 0 || len(uds) < len(req) {
		return false
	}
	if req[0]&positiveResponseOffset != 0 || uds[0] != req[0]|positiveResponseOffset {
		return false
	}
	return bytes.Equal(uds[1:len(req)], req[1:])
}

// MatchNegative reports whether uds is a negative response to svc's request.
func MatchNegative(svc schema.Service, uds []byte) (NegativeResponse, bool) {
	nr, ok := ParseNegativeResponse(uds)
	if !ok || len(svc.Payload) == 0 || nr.RequestSID != svc.Payload[0] {
		return NegativeResponse{}, false
	}
	return nr, true
}

// Find returns the first service in f whose request uds answers.
func Find(f *schema.File, uds []byte) (*schema.Service, bool) {
	for i := range f.Services {
		if MatchResponse(f.Services[i], uds) {
			return &f.Services[i], true
		}
	}
	return nil, false
}
