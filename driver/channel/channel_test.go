package channel

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_EncodeUnsignedInteger(t *testing.T) {
	tests := []struct {
		value uint64
		bytes []byte
	}{
		{value: 0, bytes: []byte{0x00}},
		{value: 1, bytes: []byte{0x01}},
		{value: 127, bytes: []byte{0x7f}},
		{value: 128, bytes: []byte{0x80, 0x01}},
		{value: 300, bytes: []byte{0xac, 0x02}},
		{value: 16384, bytes: []byte{0x80, 0x80, 0x01}},
	}
	for _, tt := range tests {
		var b bytes.Buffer
		w := NewWriter(&b)
		require.NoError(t, w.EncodeUnsignedInteger(tt.value))
		require.NoError(t, w.Flush())
		if !bytes.Equal(tt.bytes, b.Bytes()) {
			t.Fatalf("unexpected bytes of %v; want: %x, got: %x", tt.value, tt.bytes, b.Bytes())
		}

		r := NewReader(bytes.NewReader(b.Bytes()))
		v, err := r.DecodeUnsignedInteger()
		require.NoError(t, err)
		assert.Equal(t, tt.value, v)
	}
}

func TestChannel_RoundTrip(t *testing.T) {
	var b bytes.Buffer
	w := NewWriter(&b)
	require.NoError(t, w.EncodeNBitUnsignedInteger(2, 2))
	require.NoError(t, w.EncodeNBitUnsignedInteger(1, 0))
	require.NoError(t, w.EncodeBoolean(true))
	require.NoError(t, w.EncodeString("héllo"))
	require.NoError(t, w.EncodeNBitUnsignedInteger(5, 3))
	require.NoError(t, w.EncodeBinary([]byte{0xde, 0xad}))
	require.NoError(t, w.Align())
	require.NoError(t, w.EncodeCodePoints("日本"))
	require.NoError(t, w.EncodeUnsignedInteger(1<<40))
	require.NoError(t, w.Flush())
	assert.Equal(t, int64(b.Len()*8), w.Bits())

	r := NewReader(bytes.NewReader(b.Bytes()))
	v, err := r.DecodeNBitUnsignedInteger(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)
	v, err = r.DecodeNBitUnsignedInteger(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)
	ok, err := r.DecodeBoolean()
	require.NoError(t, err)
	assert.True(t, ok)
	s, err := r.DecodeString()
	require.NoError(t, err)
	assert.Equal(t, "héllo", s)
	v, err = r.DecodeNBitUnsignedInteger(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), v)
	bin, err := r.DecodeBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, bin)
	require.NoError(t, r.Align())
	s, err = r.DecodeCodePoints(2)
	require.NoError(t, err)
	assert.Equal(t, "日本", s)
	v, err = r.DecodeUnsignedInteger()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), v)
}

func TestReader_Errors(t *testing.T) {
	tests := []struct {
		caption string
		src     []byte
		decode  func(r *Reader) error
		err     error
	}{
		{
			caption: "unsigned integer longer than 64 bits",
			src:     []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f},
			decode: func(r *Reader) error {
				_, err := r.DecodeUnsignedInteger()
				return err
			},
			err: ErrOverflow,
		},
		{
			caption: "code point out of range",
			src:     []byte{0x01, 0x80, 0x80, 0x80, 0x01},
			decode: func(r *Reader) error {
				_, err := r.DecodeString()
				return err
			},
			err: ErrCodePoint,
		},
		{
			caption: "surrogate code point",
			src:     []byte{0x01, 0x80, 0xb0, 0x03},
			decode: func(r *Reader) error {
				_, err := r.DecodeString()
				return err
			},
			err: ErrCodePoint,
		},
		{
			caption: "string too long",
			src:     []byte{0x80, 0x80, 0x80, 0x80, 0x01},
			decode: func(r *Reader) error {
				_, err := r.DecodeString()
				return err
			},
			err: ErrTooLong,
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			err := tt.decode(NewReader(bytes.NewReader(tt.src)))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestWriter_InvalidUTF8(t *testing.T) {
	tests := []struct {
		caption string
		encode  func(w *Writer) error
	}{
		{
			caption: "code points",
			encode: func(w *Writer) error {
				return w.EncodeCodePoints("a\xffb")
			},
		},
		{
			caption: "string",
			encode: func(w *Writer) error {
				return w.EncodeString("\xed\xa0\x80")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			var b bytes.Buffer
			w := NewWriter(&b)
			assert.ErrorIs(t, tt.encode(w), ErrCodePoint)
			assert.Equal(t, int64(0), w.Bits())
		})
	}
}
