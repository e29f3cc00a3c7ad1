package grammar

import (
	"fmt"

	"github.com/nihei9/exigram/grammar/name"
	"github.com/nihei9/exigram/schema"
)

type EventKind int

const (
	EventStartDocument EventKind = iota
	EventEndDocument
	EventStartElement
	EventStartElementNS
	EventStartElementGeneric
	EventAttribute
	EventAttributeNS
	EventAttributeGeneric
	EventAttributeXsiType
	EventAttributeXsiNil
	EventNamespaceDeclaration
	EventSelfContained
	EventEndElement
	EventCharacters
	EventCharactersGeneric
	EventDocType
	EventEntityReference
	EventComment
	EventProcessingInstruction

	eventKindCount
)

var eventKindNames = [eventKindCount]string{
	EventStartDocument:         "SD",
	EventEndDocument:           "ED",
	EventStartElement:          "SE",
	EventStartElementNS:        "SE(uri:*)",
	EventStartElementGeneric:   "SE(*)",
	EventAttribute:             "AT",
	EventAttributeNS:           "AT(uri:*)",
	EventAttributeGeneric:      "AT(*)",
	EventAttributeXsiType:      "AT(xsi:type)",
	EventAttributeXsiNil:       "AT(xsi:nil)",
	EventNamespaceDeclaration:  "NS",
	EventSelfContained:         "SC",
	EventEndElement:            "EE",
	EventCharacters:            "CH",
	EventCharactersGeneric:     "CH(*)",
	EventDocType:               "DT",
	EventEntityReference:       "ER",
	EventComment:               "CM",
	EventProcessingInstruction: "PI",
}

func (k EventKind) String() string {
	if k < 0 || k >= eventKindCount {
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
	return eventKindNames[k]
}

// ParseEventKind is the inverse of EventKind.String.
func ParseEventKind(s string) (EventKind, bool) {
	for k, n := range eventKindNames {
		if n == s {
			return EventKind(k), true
		}
	}
	return 0, false
}

// Family folds the declared, namespace-wildcard, and generic variants of an
// event into one kind. Callers producing events only need to know the family.
func (k EventKind) Family() EventKind {
	switch k {
	case EventStartElementNS, EventStartElementGeneric:
		return EventStartElement
	case EventAttributeNS, EventAttributeGeneric, EventAttributeXsiType, EventAttributeXsiNil:
		return EventAttribute
	case EventCharactersGeneric:
		return EventCharacters
	}
	return k
}

// Event is the terminal of a production.
type Event struct {
	Kind EventKind

	// Name is set for EventStartElement and EventAttribute.
	Name *name.Context

	// URI is set for EventStartElementNS and EventAttributeNS.
	URI string

	// Element is the grammar of the child element of a schema-informed
	// EventStartElement.
	Element *ElementGrammar

	// Datatype is the value type of EventAttribute and EventCharacters.
	Datatype schema.Datatype

	// ordinal keeps the position of the particle in its content model.
	ordinal int
}

func (e Event) String() string {
	switch e.Kind {
	case EventStartElement, EventAttribute:
		return fmt.Sprintf("%v(%v)", e.Kind, e.Name)
	case EventStartElementNS:
		return fmt.Sprintf("SE(%v:*)", e.URI)
	case EventAttributeNS:
		return fmt.Sprintf("AT(%v:*)", e.URI)
	}
	return e.Kind.String()
}

type terminalKey struct {
	kind EventKind
	name *name.Context
	uri  string
}

func (e Event) key() terminalKey {
	return terminalKey{
		kind: e.Kind,
		name: e.Name,
		uri:  e.URI,
	}
}

func (e Event) isAttribute() bool {
	switch e.Kind {
	case EventAttribute, EventAttributeNS, EventAttributeGeneric:
		return true
	}
	return false
}

func (e Event) isStartElement() bool {
	switch e.Kind {
	case EventStartElement, EventStartElementNS, EventStartElementGeneric:
		return true
	}
	return false
}

// rank gives the group of an event in the canonical production order.
func (e Event) rank() int {
	switch e.Kind {
	case EventAttribute:
		return 0
	case EventAttributeNS:
		return 1
	case EventAttributeGeneric:
		return 2
	case EventStartElement, EventStartElementNS, EventStartElementGeneric:
		return 3
	case EventEndElement:
		return 4
	case EventCharacters, EventCharactersGeneric:
		return 5
	}
	return 6
}

// canonicalLess is the order every compiled rule keeps its productions in.
func canonicalLess(a, b Event) bool {
	ra, rb := a.rank(), b.rank()
	if ra != rb {
		return ra < rb
	}
	switch ra {
	case 0:
		return a.Name.Less(b.Name)
	case 1:
		return a.URI < b.URI
	case 3:
		if a.ordinal != b.ordinal {
			return a.ordinal < b.ordinal
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.URI < b.URI
	}
	return false
}
