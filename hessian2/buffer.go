package hessian2

import (
	"encoding/binary"

	perrors "github.com/pkg/errors"
)

// writer is a growable byte cursor with big-endian helpers, the
// encoder's only means of producing bytes. Grounded on the teacher's
// util.WriteBuffer (see protocol/dubbo/dubbo/codec.go's WriteByte/
// WriteBytes/WriteIndex call sites) and on encoder.py's plain Python
// list-of-ints accumulator.
type writer struct {
	buf []byte
}

func newWriter() *writer { return &writer{buf: make([]byte, 0, 64)} }

func (w *writer) WriteByte(b byte) { w.buf = append(w.buf, b) }

func (w *writer) WriteBytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) WriteUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.WriteBytes(b[:])
}

func (w *writer) WriteUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.WriteBytes(b[:])
}

func (w *writer) WriteUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.WriteBytes(b[:])
}

func (w *writer) Bytes() []byte { return w.buf }
func (w *writer) Len() int      { return len(w.buf) }

// reader is a cursor over an already-fully-buffered decode input: one
// Hessian message is always decoded from a byte slice whose length the
// frame codec already determined from the header, so there is no need
// for an io.Reader abstraction here.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader { return &reader{buf: buf} }

func (r *reader) Len() int { return len(r.buf) - r.pos }

// Peek returns the next byte without advancing the cursor.
func (r *reader) Peek() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, perrors.Wrap(errUnexpectedEOF, "peek")
	}
	return r.buf[r.pos], nil
}

func (r *reader) ReadByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, perrors.Wrap(errUnexpectedEOF, "read byte")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, perrors.Wrapf(errUnexpectedEOF, "read %d bytes", n)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) ReadUint16() (uint16, error) {
	b, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) ReadUint32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) ReadUint64() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

var errUnexpectedEOF = perrors.New("hessian2: unexpected end of buffer")
