package helpers

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var ErrShortRead = errors.New("read past end of buffer")

// Reader is a little-endian cursor over a byte slice. It never copies the
// underlying buffer.
type Reader struct {
	data []byte
	Pos  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) Len() int       { return len(r.data) }
func (r *Reader) Remaining() int { return len(r.data) - r.Pos }

func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || r.Pos+n > len(r.data) {
		return nil, fmt.Errorf("%w: %d bytes at 0x%x", ErrShortRead, n, r.Pos)
	}
	b := r.data[r.Pos : r.Pos+n]
	r.Pos += n
	return b, nil
}

func (r *Reader) U8() (uint8, error) {
	b, err := r.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) U16() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) U32() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) U64() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) F32() (float32, error) {
	v, err := r.U32()
	return math.Float32frombits(v), err
}

func (r *Reader) F64() (float64, error) {
	v, err := r.U64()
	return math.Float64frombits(v), err
}

// Writer appends little-endian values to a growing buffer.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Len() int      { return len(w.buf) }
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *Writer) U8(v uint8)   { w.buf = append(w.buf, v) }
func (w *Writer) U16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *Writer) U32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *Writer) U64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

func (w *Writer) F32(v float32) { w.U32(math.Float32bits(v)) }
func (w *Writer) F64(v float64) { w.U64(math.Float64bits(v)) }

// Zero appends n zero bytes.
func (w *Writer) Zero(n int) {
	w.buf = append(w.buf, make([]byte, n)...)
}

// AlignTo pads with zeros until the length is a multiple of align.
func (w *Writer) AlignTo(align uint64) {
	w.Zero(int(AlignUp(uint64(len(w.buf)), align)) - len(w.buf))
}
