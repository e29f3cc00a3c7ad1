package driver

// EncoderChannel is the output side of a bit channel. Widths are in bits.
type EncoderChannel interface {
	EncodeNBitUnsignedInteger(v uint64, n int) error
	EncodeUnsignedInteger(v uint64) error
	EncodeBoolean(b bool) error
	EncodeString(s string) error
	EncodeCodePoints(s string) error
	EncodeBinary(b []byte) error
	Align() error
	Flush() error
}

// DecoderChannel is the input side of a bit channel.
type DecoderChannel interface {
	DecodeNBitUnsignedInteger(n int) (uint64, error)
	DecodeUnsignedInteger() (uint64, error)
	DecodeBoolean() (bool, error)
	DecodeString() (string, error)
	DecodeCodePoints(n int) (string, error)
	DecodeBinary() ([]byte, error)
	Align() error
}
