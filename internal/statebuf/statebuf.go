// Package statebuf provides the small fixed-order binary reader/writer
// every system's save-state payload uses, so SaveState/LoadState stay a
// flat sequence of typed field writes instead of hand-rolled byte slicing.
package statebuf

import "encoding/binary"

// Writer appends typed fields to a growing byte slice in a fixed order;
// Reader (below) must read them back in the same order.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) WriteUint8(v uint8)   { w.buf = append(w.buf, v) }
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) WriteUint16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) WriteInt16(v int16) { w.WriteUint16(uint16(v)) }

func (w *Writer) WriteUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) WriteUint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) WriteBytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *Writer) Bytes() []byte { return w.buf }

// Reader consumes fields written by Writer in the same order. A short
// buffer sets Err instead of panicking, so LoadState can surface it as an
// ordinary error.
type Reader struct {
	buf []byte
	pos int
	Err error
}

func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

func (r *Reader) need(n int) []byte {
	if r.Err != nil || r.pos+n > len(r.buf) {
		if r.Err == nil {
			r.Err = errShortState
		}
		return make([]byte, n)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *Reader) ReadUint8() uint8 { return r.need(1)[0] }
func (r *Reader) ReadBool() bool   { return r.need(1)[0] != 0 }

func (r *Reader) ReadUint16() uint16 { return binary.LittleEndian.Uint16(r.need(2)) }
func (r *Reader) ReadInt16() int16   { return int16(r.ReadUint16()) }
func (r *Reader) ReadUint32() uint32 { return binary.LittleEndian.Uint32(r.need(4)) }
func (r *Reader) ReadUint64() uint64 { return binary.LittleEndian.Uint64(r.need(8)) }

func (r *Reader) ReadInto(dst []byte) { copy(dst, r.need(len(dst))) }

type stateError string

func (e stateError) Error() string { return string(e) }

const errShortState = stateError("statebuf: save state truncated")
