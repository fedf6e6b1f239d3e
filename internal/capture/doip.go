// Package capture recovers diagnostic responses from packet captures so they
// can be decoded offline.
//
// A header is only accepted if its inverse version byte matches and its
// payload type is one ISO 13400-2 defines, so stray bytes rarely pass for a
// header. One that does can still announce up to maxDoIPPayload bytes and
// hold back the frames behind it until that much data has arrived on the
// stream, or a sequence gap resets it.
package capture

import (
	"encoding/binary"
	"fmt"
	"time"
)

// DoIPPort is the standard DoIP (ISO 13400) TCP port.
const DoIPPort = 13400

const (
	doipHeaderSize = 8
	// Larger announced payloads are treated as garbage and resynchronised past.
	maxDoIPPayload = 1 << 20

	PayloadTypeDiagnosticMessage = 0x8001
	PayloadTypeDiagnosticAck     = 0x8002
	PayloadTypeDiagnosticNack    = 0x8003
)

func knownPayloadType(t uint16) bool {
	switch {
	case t <= 0x0008:
		return true
	case t >= 0x4001 && t <= 0x4004:
		return true
	case t >= PayloadTypeDiagnosticMessage && t <= PayloadTypeDiagnosticNack:
		return true
	}
	return false
}

// DoIPHeader is the generic DoIP header.
type DoIPHeader struct {
	Version       uint8
	PayloadType   uint16
	PayloadLength uint32
}

// DecodeDoIPHeader parses the 8-byte generic header.
func DecodeDoIPHeader(b []byte) (DoIPHeader, error) {
	if len(b) < doipHeaderSize {
		return DoIPHeader{}, fmt.Errorf("doip header too short: %d bytes", len(b))
	}
	if b[1] != ^b[0] {
		return DoIPHeader{}, fmt.Errorf("doip inverse version mismatch: 0x%02X/0x%02X", b[0], b[1])
	}
	h := DoIPHeader{
		Version:       b[0],
		PayloadType:   binary.BigEndian.Uint16(b[2:4]),
		PayloadLength: binary.BigEndian.Uint32(b[4:8]),
	}
	if !knownPayloadType(h.PayloadType) {
		return DoIPHeader{}, fmt.Errorf("unknown doip payload type 0x%04X", h.PayloadType)
	}
	if h.PayloadLength > maxDoIPPayload {
		return DoIPHeader{}, fmt.Errorf("doip payload length %d too large", h.PayloadLength)
	}
	return h, nil
}

// Message is one DoIP diagnostic message recovered from a capture.
type Message struct {
	Timestamp     time.Time
	SrcIP         string
	DstIP         string
	SrcPort       uint16
	DstPort       uint16
	SourceAddress uint16 // DoIP logical address of the sender
	TargetAddress uint16
	FromECU       bool // sent from the DoIP port, i.e. a response
	Data          []byte
}

// splitDoIPFrames cuts complete DoIP frames out of a stream buffer and keeps
// diagnostic messages. It returns the messages and the unconsumed tail.
func splitDoIPFrames(stream []byte, base Message) ([]Message, []byte) {
	var msgs []Message
	for len(stream) >= doipHeaderSize {
		hdr, err := DecodeDoIPHeader(stream)
		if err != nil {
			// Not aligned on a header; drop one byte and try again.
			stream = stream[1:]
			continue
		}
		frameLen := doipHeaderSize + int(hdr.PayloadLength)
		if len(stream) < frameLen {
			break
		}
		payload := stream[doipHeaderSize:frameLen]
		stream = stream[frameLen:]

		if hdr.PayloadType != PayloadTypeDiagnosticMessage || len(payload) < 4 {
			continue
		}
		msg := base
		msg.SourceAddress = binary.BigEndian.Uint16(payload[0:2])
		msg.TargetAddress = binary.BigEndian.Uint16(payload[2:4])
		msg.Data = append([]byte(nil), payload[4:]...)
		msgs = append(msgs, msg)
	}
	return msgs, stream
}
