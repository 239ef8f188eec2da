package persistence

import (
	"encoding/binary"
	"errors"
	"math"
)

var errShortPayload = errors.New("persistence: short payload")

// writer accumulates little-endian fields. Writes cannot fail.
type writer struct {
	buf []byte
}

func newWriter(capacity int) *writer {
	return &writer{buf: make([]byte, 0, capacity)}
}

func (w *writer) bytes() []byte { return w.buf }

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *writer) i32(v int32)  { w.u32(uint32(v)) }
func (w *writer) i64(v int64)  { w.u64(uint64(v)) }
func (w *writer) f32(v float32) {
	w.u32(math.Float32bits(v))
}

func (w *writer) bool(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *writer) raw(b []byte) { w.buf = append(w.buf, b...) }

// reader consumes little-endian fields, latching the first error so call
// sites can decode a whole section and check once.
type reader struct {
	buf []byte
	off int
	e   error
}

func newReader(payload []byte) *reader {
	return &reader{buf: payload}
}

func (r *reader) err() error { return r.e }

func (r *reader) take(n int) []byte {
	if r.e != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.e = errShortPayload
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) i32() int32 { return int32(r.u32()) }
func (r *reader) i64() int64 { return int64(r.u64()) }

func (r *reader) f32() float32 {
	return math.Float32frombits(r.u32())
}

func (r *reader) bool() bool { return r.u8() != 0 }

func (r *reader) raw(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}
