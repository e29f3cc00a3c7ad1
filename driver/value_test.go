package driver

import (
	"bytes"
	"testing"

	"github.com/nihei9/exigram/driver/channel"
	"github.com/nihei9/exigram/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringCodec_IsValid(t *testing.T) {
	tests := []struct {
		typ   string
		value string
		valid bool
	}{
		{typ: "boolean", value: "true", valid: true},
		{typ: "boolean", value: " 0 ", valid: true},
		{typ: "boolean", value: "yes", valid: false},
		{typ: "int", value: "-42", valid: true},
		{typ: "int", value: "4.2", valid: false},
		{typ: "decimal", value: "4.2", valid: true},
		{typ: "decimal", value: ".5", valid: true},
		{typ: "decimal", value: "1e3", valid: false},
		{typ: "double", value: "1e3", valid: true},
		{typ: "float", value: "-INF", valid: true},
		{typ: "float", value: "NaN", valid: true},
		{typ: "float", value: "nan", valid: false},
		{typ: "string", value: "anything", valid: true},
		{typ: "date", value: "not a date", valid: true},
	}
	for _, tt := range tests {
		dt, ok := schema.Builtin(tt.typ)
		require.True(t, ok, tt.typ)
		if got := (StringCodec{}).IsValid(dt, tt.value); got != tt.valid {
			t.Fatalf("unexpected validity of %q as %v; want: %v, got: %v", tt.value, tt.typ, tt.valid, got)
		}
	}
}

func TestStringCodec_Value(t *testing.T) {
	var b bytes.Buffer
	w := channel.NewWriter(&b)
	require.NoError(t, StringCodec{}.WriteValue(w, schema.Untyped, "héllo"))
	require.NoError(t, w.Flush())
	assert.Equal(t, byte(7), b.Bytes()[0])

	v, err := StringCodec{}.ReadValue(channel.NewReader(bytes.NewReader(b.Bytes())), schema.Untyped)
	require.NoError(t, err)
	assert.Equal(t, "héllo", v)

	// Lengths below two refer to a string table.
	_, err = StringCodec{}.ReadValue(channel.NewReader(bytes.NewReader([]byte{0x01})), schema.Untyped)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestStringCodec_KeepsLexicalForms(t *testing.T) {
	tests := []struct {
		typ   string
		value string
	}{
		{typ: "boolean", value: " 1 "},
		{typ: "int", value: "+042"},
		{typ: "decimal", value: "1.50"},
		{typ: "double", value: "1E3"},
	}
	for _, tt := range tests {
		dt, ok := schema.Builtin(tt.typ)
		require.True(t, ok, tt.typ)

		var b bytes.Buffer
		w := channel.NewWriter(&b)
		require.NoError(t, StringCodec{}.WriteValue(w, dt, tt.value))
		require.NoError(t, w.Flush())
		v, err := StringCodec{}.ReadValue(channel.NewReader(bytes.NewReader(b.Bytes())), dt)
		require.NoError(t, err)
		if v != tt.value {
			t.Fatalf("unexpected value of %v; want: %q, got: %q", tt.typ, tt.value, v)
		}
	}
}
