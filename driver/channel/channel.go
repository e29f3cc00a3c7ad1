// Package channel packs EXI codes and primitive values into a bit stream.
package channel

import (
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/icza/bitio"
	"github.com/pkg/errors"
)

// maxLength bounds the length of strings and binaries a reader accepts.
const maxLength = 1 << 24

var (
	ErrOverflow  = errors.New("unsigned integer overflows 64 bits")
	ErrTooLong   = errors.New("length exceeds the limit")
	ErrCodePoint = errors.New("invalid code point")
)

// Writer is a bit-packed output channel.
type Writer struct {
	w *bitio.CountWriter
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w: bitio.NewCountWriter(w),
	}
}

// EncodeNBitUnsignedInteger writes the n lowest bits of v.
func (w *Writer) EncodeNBitUnsignedInteger(v uint64, n int) error {
	if n == 0 {
		return nil
	}
	if n < 0 || n > 64 {
		return errors.Errorf("invalid bit width: %v", n)
	}
	return w.w.WriteBits(v, uint8(n))
}

// EncodeUnsignedInteger writes v in groups of seven bits, least significant
// group first. The high bit of each octet tells whether another one follows.
func (w *Writer) EncodeUnsignedInteger(v uint64) error {
	for {
		b := v & 0x7f
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		if err := w.w.WriteBits(b, 8); err != nil {
			return err
		}
		if v == 0 {
			return nil
		}
	}
}

func (w *Writer) EncodeBoolean(b bool) error {
	return w.w.WriteBool(b)
}

// EncodeCodePoints writes the code points of s without a length. s must be
// valid UTF-8.
func (w *Writer) EncodeCodePoints(s string) error {
	if !utf8.ValidString(s) {
		return errors.Wrapf(ErrCodePoint, "invalid UTF-8: %q", s)
	}
	for _, r := range s {
		if err := w.EncodeUnsignedInteger(uint64(r)); err != nil {
			return err
		}
	}
	return nil
}

// EncodeString writes the number of code points of s followed by them.
func (w *Writer) EncodeString(s string) error {
	if !utf8.ValidString(s) {
		return errors.Wrapf(ErrCodePoint, "invalid UTF-8: %q", s)
	}
	if err := w.EncodeUnsignedInteger(uint64(utf8.RuneCountInString(s))); err != nil {
		return err
	}
	return w.EncodeCodePoints(s)
}

func (w *Writer) EncodeBinary(b []byte) error {
	if err := w.EncodeUnsignedInteger(uint64(len(b))); err != nil {
		return err
	}
	_, err := w.w.Write(b)
	return err
}

// Align pads the stream with zero bits up to the next byte boundary.
func (w *Writer) Align() error {
	_, err := w.w.Align()
	return err
}

// Flush writes out the pending bits. The last byte is padded with zero bits.
func (w *Writer) Flush() error {
	return w.w.Close()
}

// Bits returns the number of bits written so far.
func (w *Writer) Bits() int64 {
	return w.w.BitsCount
}

// Reader is a bit-packed input channel.
type Reader struct {
	r *bitio.CountReader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{
		r: bitio.NewCountReader(r),
	}
}

func (r *Reader) DecodeNBitUnsignedInteger(n int) (uint64, error) {
	if n == 0 {
		return 0, nil
	}
	if n < 0 || n > 64 {
		return 0, errors.Errorf("invalid bit width: %v", n)
	}
	return r.r.ReadBits(uint8(n))
}

func (r *Reader) DecodeUnsignedInteger() (uint64, error) {
	var v uint64
	for shift := uint(0); ; shift += 7 {
		b, err := r.r.ReadBits(8)
		if err != nil {
			return 0, err
		}
		if shift > 63 || (shift == 63 && b&0x7f > 1) {
			return 0, ErrOverflow
		}
		v |= (b & 0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
	}
}

func (r *Reader) DecodeBoolean() (bool, error) {
	return r.r.ReadBool()
}

// DecodeCodePoints reads n code points. Surrogates and values beyond the
// Unicode range are rejected.
func (r *Reader) DecodeCodePoints(n int) (string, error) {
	if n < 0 || n > maxLength {
		return "", errors.Wrapf(ErrTooLong, "%v code points", n)
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		c, err := r.DecodeUnsignedInteger()
		if err != nil {
			return "", err
		}
		if c > unicode.MaxRune || !utf8.ValidRune(rune(c)) {
			return "", errors.Wrapf(ErrCodePoint, "%#x", c)
		}
		b.WriteRune(rune(c))
	}
	return b.String(), nil
}

func (r *Reader) DecodeString() (string, error) {
	n, err := r.DecodeUnsignedInteger()
	if err != nil {
		return "", err
	}
	if n > maxLength {
		return "", errors.Wrapf(ErrTooLong, "%v code points", n)
	}
	return r.DecodeCodePoints(int(n))
}

func (r *Reader) DecodeBinary() ([]byte, error) {
	n, err := r.DecodeUnsignedInteger()
	if err != nil {
		return nil, err
	}
	if n > maxLength {
		return nil, errors.Wrapf(ErrTooLong, "%v bytes", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Align skips the bits left in the current byte.
func (r *Reader) Align() error {
	r.r.Align()
	return nil
}

// Bits returns the number of bits read so far.
func (r *Reader) Bits() int64 {
	return r.r.BitsCount
}
