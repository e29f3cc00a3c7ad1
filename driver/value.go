package driver

import (
	"regexp"
	"strings"

	"github.com/nihei9/exigram/schema"
	"github.com/pkg/errors"
)

// ValueCodec codes the values of attributes and characters once the grammar
// has chosen the production they belong to.
type ValueCodec interface {
	// IsValid reports whether value is a lexical form of dt.
	IsValid(dt schema.Datatype, value string) bool
	WriteValue(ch EncoderChannel, dt schema.Datatype, value string) error
	ReadValue(ch DecoderChannel, dt schema.Datatype) (string, error)
}

var (
	reBoolean = regexp.MustCompile(`^(true|false|1|0)$`)
	reInteger = regexp.MustCompile(`^[+-]?[0-9]+$`)
	reDecimal = regexp.MustCompile(`^[+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)$`)
	reFloat   = regexp.MustCompile(`^([+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)([eE][+-]?[0-9]+)?|-?INF|NaN)$`)
)

// StringCodec checks the lexical forms of the numeric and boolean datatypes
// and writes every value as a string literal, so lexical forms survive with or
// without grammar.Fidelity.LexicalValues. Without a string table, the length
// is offset by two like a string table miss.
type StringCodec struct{}

func (StringCodec) IsValid(dt schema.Datatype, value string) bool {
	v := strings.TrimSpace(value)
	switch dt.Kind {
	case schema.KindBoolean:
		return reBoolean.MatchString(v)
	case schema.KindInteger:
		return reInteger.MatchString(v)
	case schema.KindDecimal:
		return reDecimal.MatchString(v)
	case schema.KindFloat:
		return reFloat.MatchString(v)
	}
	return true
}

func (StringCodec) WriteValue(ch EncoderChannel, dt schema.Datatype, value string) error {
	if err := ch.EncodeUnsignedInteger(uint64(len([]rune(value))) + 2); err != nil {
		return err
	}
	return ch.EncodeCodePoints(value)
}

func (StringCodec) ReadValue(ch DecoderChannel, dt schema.Datatype) (string, error) {
	n, err := ch.DecodeUnsignedInteger()
	if err != nil {
		return "", err
	}
	if n < 2 {
		return "", errors.Wrapf(ErrInvalidValue, "string table references are not supported: %v", n)
	}
	return ch.DecodeCodePoints(int(n - 2))
}
