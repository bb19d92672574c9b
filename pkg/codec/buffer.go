// Package codec implements the wire framing used by the fronctocol engine
// and its protocols: a growable byte buffer with fixed-width big-endian
// integers, length-prefixed strings, and length-prefixed big numbers.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/cronokirby/saferith"
)

// MaxBigNumBytes is the largest magnitude a big number may encode to. The
// original implementation silently truncated big numbers whose magnitude
// exceeded a uint16 length and logged a warning; this is treated as a hard
// failure instead (see spec.md §9 Open Questions).
const MaxBigNumBytes = 1<<16 - 1

// Buffer is a growable byte buffer supporting append, prepend, and
// from-the-front removal without re-slicing callers' views of it. Ownership
// of a Buffer's bytes transfers to the transport at send time; callers must
// not retain a Buffer after handing it to a bus.OutgoingMessage sink.
type Buffer struct {
	data []byte
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// WrapBuffer returns a buffer that reads from (and can be further appended
// to) an existing byte slice, e.g. bytes freshly read off a socket.
func WrapBuffer(b []byte) *Buffer {
	return &Buffer{data: b}
}

// Len returns the number of unread bytes remaining in the buffer.
func (b *Buffer) Len() int { return len(b.data) }

// Bytes returns the buffer's current contents. The slice is shared with the
// buffer; callers must copy before mutating it externally.
func (b *Buffer) Bytes() []byte { return b.data }

// Clear empties the buffer.
func (b *Buffer) Clear() { b.data = nil }

// Add appends raw bytes to the end of the buffer.
func (b *Buffer) Add(p []byte) {
	b.data = append(b.data, p...)
}

// Prepend inserts raw bytes at the front of the buffer. This is how the
// engine inserts its wire header in front of bytes an implementation has
// already written, without the implementation needing to know the header
// will exist.
func (b *Buffer) Prepend(p []byte) {
	out := make([]byte, 0, len(p)+len(b.data))
	out = append(out, p...)
	out = append(out, b.data...)
	b.data = out
}

// Remove consumes and returns the first n bytes of the buffer.
func (b *Buffer) Remove(n int) ([]byte, error) {
	if n < 0 || n > len(b.data) {
		return nil, fmt.Errorf("codec: remove(%d): only %d bytes remain", n, len(b.data))
	}
	out := b.data[:n]
	b.data = b.data[n:]
	return out, nil
}

// WriteUint8 appends a single byte.
func (b *Buffer) WriteUint8(v uint8) { b.data = append(b.data, v) }

// ReadUint8 consumes and returns one byte.
func (b *Buffer) ReadUint8() (uint8, error) {
	raw, err := b.Remove(1)
	if err != nil {
		return 0, err
	}
	return raw[0], nil
}

// WriteUint16 appends a fixed-width big-endian uint16.
func (b *Buffer) WriteUint16(v uint16) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	b.data = append(b.data, buf[:]...)
}

// ReadUint16 consumes a fixed-width big-endian uint16.
func (b *Buffer) ReadUint16() (uint16, error) {
	raw, err := b.Remove(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(raw), nil
}

// WriteUint32 appends a fixed-width big-endian uint32.
func (b *Buffer) WriteUint32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	b.data = append(b.data, buf[:]...)
}

// ReadUint32 consumes a fixed-width big-endian uint32.
func (b *Buffer) ReadUint32() (uint32, error) {
	raw, err := b.Remove(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(raw), nil
}

// WriteUint64 appends a fixed-width big-endian uint64.
func (b *Buffer) WriteUint64(v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	b.data = append(b.data, buf[:]...)
}

// ReadUint64 consumes a fixed-width big-endian uint64.
func (b *Buffer) ReadUint64() (uint64, error) {
	raw, err := b.Remove(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

// WriteBool appends a boolean as a single byte.
func (b *Buffer) WriteBool(v bool) {
	if v {
		b.WriteUint8(1)
	} else {
		b.WriteUint8(0)
	}
}

// ReadBool consumes a boolean byte.
func (b *Buffer) ReadBool() (bool, error) {
	v, err := b.ReadUint8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// WriteString appends a u32 length prefix followed by the raw bytes.
func (b *Buffer) WriteString(s string) {
	b.WriteUint32(uint32(len(s)))
	b.data = append(b.data, s...)
}

// ReadString consumes a u32-length-prefixed string.
func (b *Buffer) ReadString() (string, error) {
	n, err := b.ReadUint32()
	if err != nil {
		return "", err
	}
	raw, err := b.Remove(int(n))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// WriteBytes appends a u32 length prefix followed by the raw bytes, for
// byte slices that aren't semantically strings (e.g. CBOR payload bodies).
func (b *Buffer) WriteBytes(p []byte) {
	b.WriteUint32(uint32(len(p)))
	b.data = append(b.data, p...)
}

// ReadBytes consumes a u32-length-prefixed byte slice.
func (b *Buffer) ReadBytes() ([]byte, error) {
	n, err := b.ReadUint32()
	if err != nil {
		return nil, err
	}
	return b.Remove(int(n))
}

// WriteBigNum appends a u16 length prefix followed by the big-endian
// magnitude bytes of v. Returns an error if the magnitude doesn't fit in a
// uint16 byte count, per spec.md §9: the original truncated and warned,
// this implementation fails hard instead.
func (b *Buffer) WriteBigNum(v *saferith.Nat) error {
	raw := v.Bytes()
	// saferith pads to the nat's announced byte length; trim leading zero
	// bytes so the wire form is the minimal big-endian magnitude.
	i := 0
	for i < len(raw)-1 && raw[i] == 0 {
		i++
	}
	raw = raw[i:]
	if len(raw) > MaxBigNumBytes {
		return fmt.Errorf("codec: big number of %d bytes exceeds wire limit of %d", len(raw), MaxBigNumBytes)
	}
	b.WriteUint16(uint16(len(raw)))
	b.data = append(b.data, raw...)
	return nil
}

// ReadBigNum consumes a u16-length-prefixed big-endian magnitude.
func (b *Buffer) ReadBigNum() (*saferith.Nat, error) {
	n, err := b.ReadUint16()
	if err != nil {
		return nil, err
	}
	raw, err := b.Remove(int(n))
	if err != nil {
		return nil, err
	}
	return new(saferith.Nat).SetBytes(raw), nil
}
