package schema

import (
	"github.com/nihei9/exigram/grammar/name"
)

// Kind is the value representation family of a datatype.
type Kind int

const (
	KindString Kind = iota
	KindBoolean
	KindInteger
	KindDecimal
	KindFloat
	KindDateTime
	KindBinary
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	case KindFloat:
		return "float"
	case KindDateTime:
		return "dateTime"
	case KindBinary:
		return "binary"
	case KindList:
		return "list"
	}
	return "unknown"
}

type Datatype struct {
	Name QName
	Kind Kind
}

// Untyped is the datatype of values that no declaration constrains.
var Untyped = Datatype{
	Kind: KindString,
}

func (d Datatype) IsUntyped() bool {
	return d == Untyped
}

func (d Datatype) String() string {
	if d.IsUntyped() {
		return "untyped"
	}
	return d.Name.String()
}

const (
	TypeNameAnyType       = "anyType"
	TypeNameAnySimpleType = "anySimpleType"
)

var builtinKinds = map[string]Kind{
	"ENTITIES":           KindList,
	"ENTITY":             KindString,
	"ID":                 KindString,
	"IDREF":              KindString,
	"IDREFS":             KindList,
	"NCName":             KindString,
	"NMTOKEN":            KindString,
	"NMTOKENS":           KindList,
	"NOTATION":           KindString,
	"Name":               KindString,
	"QName":              KindString,
	"anySimpleType":      KindString,
	"anyType":            KindString,
	"anyURI":             KindString,
	"base64Binary":       KindBinary,
	"boolean":            KindBoolean,
	"byte":               KindInteger,
	"date":               KindDateTime,
	"dateTime":           KindDateTime,
	"decimal":            KindDecimal,
	"double":             KindFloat,
	"duration":           KindString,
	"float":              KindFloat,
	"gDay":               KindDateTime,
	"gMonth":             KindDateTime,
	"gMonthDay":          KindDateTime,
	"gYear":              KindDateTime,
	"gYearMonth":         KindDateTime,
	"hexBinary":          KindBinary,
	"int":                KindInteger,
	"integer":            KindInteger,
	"language":           KindString,
	"long":               KindInteger,
	"negativeInteger":    KindInteger,
	"nonNegativeInteger": KindInteger,
	"nonPositiveInteger": KindInteger,
	"normalizedString":   KindString,
	"positiveInteger":    KindInteger,
	"short":              KindInteger,
	"string":             KindString,
	"time":               KindDateTime,
	"token":              KindString,
	"unsignedByte":       KindInteger,
	"unsignedInt":        KindInteger,
	"unsignedLong":       KindInteger,
	"unsignedShort":      KindInteger,
}

// BuiltinTypeNames returns the local names of the XML Schema built-in types.
func BuiltinTypeNames() []string {
	names := make([]string, 0, len(builtinKinds))
	for n := range builtinKinds {
		names = append(names, n)
	}
	return names
}

// Builtin returns the built-in datatype having the local name local.
// anyType is not a simple type, so it is never returned.
func Builtin(local string) (Datatype, bool) {
	if local == TypeNameAnyType {
		return Datatype{}, false
	}
	k, ok := builtinKinds[local]
	if !ok {
		return Datatype{}, false
	}
	return Datatype{
		Name: QName{
			URI:   name.URIXSD,
			Local: local,
		},
		Kind: k,
	}, true
}
