package driver

import (
	"fmt"

	"github.com/nihei9/exigram/grammar"
)

type QName struct {
	URI    string
	Local  string
	Prefix string
}

func (q QName) String() string {
	switch {
	case q.Prefix != "":
		return fmt.Sprintf("%v:%v", q.Prefix, q.Local)
	case q.URI != "":
		return fmt.Sprintf("{%v}%v", q.URI, q.Local)
	}
	return q.Local
}

// Lexical returns the form q takes as an attribute value.
func (q QName) Lexical() string {
	if q.Prefix == "" {
		return q.Local
	}
	return q.Prefix + ":" + q.Local
}

// Event is one event of an XML infoset stream.
//
// The fields an event uses depend on its kind:
//
//   - SE, AT: Name; AT also Value.
//   - AT(xsi:type): TypeName. AT(xsi:nil): Value, either "true" or "false".
//   - NS: Name.URI, Name.Prefix and LocalElementNS.
//   - CH: Value.
//   - CM: Value. PI: Target and Value.
//   - DT: Value (the root element name), Public, System and Text.
//   - ER: Value (the entity name).
//
// A decoder reports the kind of the production it matched, such as
// EventStartElementGeneric; an encoder accepts any kind of the same family.
type Event struct {
	Kind           grammar.EventKind
	Name           QName
	Value          string
	TypeName       QName
	Target         string
	Public         string
	System         string
	Text           string
	LocalElementNS bool
}

func (e *Event) String() string {
	switch e.Kind.Family() {
	case grammar.EventStartElement:
		return fmt.Sprintf("%v %v", e.Kind, e.Name)
	case grammar.EventAttribute:
		switch e.Kind {
		case grammar.EventAttributeXsiType:
			return fmt.Sprintf("%v %v", e.Kind, e.TypeName)
		case grammar.EventAttributeXsiNil:
			return fmt.Sprintf("%v %v", e.Kind, e.Value)
		}
		return fmt.Sprintf("%v %v=%q", e.Kind, e.Name, e.Value)
	case grammar.EventNamespaceDeclaration:
		return fmt.Sprintf("%v %v=%q", e.Kind, e.Name.Prefix, e.Name.URI)
	case grammar.EventCharacters, grammar.EventComment, grammar.EventEntityReference:
		return fmt.Sprintf("%v %q", e.Kind, e.Value)
	case grammar.EventProcessingInstruction:
		return fmt.Sprintf("%v %v %q", e.Kind, e.Target, e.Value)
	case grammar.EventDocType:
		return fmt.Sprintf("%v %v %q %q", e.Kind, e.Value, e.Public, e.System)
	}
	return e.Kind.String()
}
