// Package bits extracts bit-addressed fields from diagnostic payloads.
//
// Bit offsets count from the most significant bit of the first byte, the way
// diagnostic data definitions address fields: bit 0 is 0x80 of buf[0], bit 7
// is 0x01 of buf[0], bit 8 is 0x80 of buf[1], and so on.
package bits

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxWidth is the widest field Extract can assemble.
const MaxWidth = 32

// ErrRange is returned when a field does not fit the buffer or is wider than MaxWidth.
var ErrRange = errors.New("bit range out of bounds")

// Extract reads lengthBits bits starting at startBit and returns them as an
// unsigned integer. Fields of up to 8 bits are read directly. Wider fields are
// cut into 8-bit chunks from startBit onwards, each chunk right-aligned in its
// own byte, and the chunk bytes are assembled with order. Three chunks are
// padded to four: a leading zero byte for big-endian, a trailing one for
// little-endian.
func Extract(buf []byte, startBit, lengthBits int, order binary.ByteOrder) (uint32, error) {
	if err := checkSpan(len(buf), startBit, lengthBits); err != nil {
		return 0, err
	}

	if lengthBits <= 8 {
		return uint32(readBits(buf, startBit, lengthBits)), nil
	}

	var chunks [4]byte
	n := 0
	end := startBit + lengthBits
	for off := startBit; off < end; off += 8 {
		// checkSpan already caps the width, so at most four chunks are produced.
		chunks[n] = readBits(buf, off, min(8, end-off))
		n++
	}

	var word [4]byte
	if isBigEndian(order) {
		copy(word[4-n:], chunks[:n])
	} else {
		copy(word[:n], chunks[:n])
	}
	return order.Uint32(word[:]), nil
}

// Fits reports whether a field of lengthBits at startBit lies inside a buffer of bufLen bytes.
func Fits(bufLen, startBit, lengthBits int) bool {
	if startBit < 0 || lengthBits < 0 || bufLen < 0 {
		return false
	}
	// Compared without forming startBit+lengthBits, which can overflow.
	total := bufLen * 8
	return startBit <= total && lengthBits <= total-startBit
}

func checkSpan(bufLen, startBit, lengthBits int) error {
	if lengthBits <= 0 {
		return fmt.Errorf("%w: field width %d", ErrRange, lengthBits)
	}
	if lengthBits > MaxWidth {
		return fmt.Errorf("%w: field width %d exceeds %d bits", ErrRange, lengthBits, MaxWidth)
	}
	if !Fits(bufLen, startBit, lengthBits) {
		return fmt.Errorf("%w: %d bits at bit %d outside %d-byte buffer", ErrRange, lengthBits, startBit, bufLen)
	}
	return nil
}

// readBits reads width (1..8) bits MSB-first. Callers check bounds.
func readBits(buf []byte, off, width int) byte {
	var v byte
	for i := off; i < off+width; i++ {
		v = v<<1 | (buf[i/8]>>(7-uint(i%8)))&1
	}
	return v
}

func isBigEndian(order binary.ByteOrder) bool {
	return order.Uint16([]byte{0x00, 0x01}) == 0x0001
}

// AppendUint16 appends a uint16 to dst using the provided byte order.
func AppendUint16(order binary.ByteOrder, dst []byte, value uint16) []byte {
	var buf [2]byte
	order.PutUint16(buf[:], value)
	return append(dst, buf[:]...)
}

// AppendUint32 appends a uint32 to dst using the provided byte order.
func AppendUint32(order binary.ByteOrder, dst []byte, value uint32) []byte {
	var buf [4]byte
	order.PutUint32(buf[:], value)
	return append(dst, buf[:]...)
}
