package grammar

import (
	"fmt"
	"math/bits"
	"strings"
)

// Fidelity selects the optional parts of the infoset a stream preserves.
// LexicalValues does not change the event codes, and the built-in value codec
// keeps the lexical form of every value whether it is set or not.
type Fidelity struct {
	Comments               bool
	ProcessingInstructions bool
	DTD                    bool
	Prefixes               bool
	LexicalValues          bool
	SelfContained          bool
	Strict                 bool
}

func (f Fidelity) Validate() error {
	if f.Strict && (f.Comments || f.ProcessingInstructions || f.DTD || f.Prefixes || f.SelfContained) {
		return ErrStrictFidelity
	}
	return nil
}

func (f Fidelity) misc() bool {
	return f.Comments || f.ProcessingInstructions
}

// Width returns the number of bits needed to tell n codes apart.
func Width(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

type Family int

const (
	FamilyNone Family = iota
	// FamilyInvalidAttribute codes a declared attribute whose value is not
	// valid for its datatype.
	FamilyInvalidAttribute
	// FamilyMisc groups comments and processing instructions.
	FamilyMisc
)

// Slot is one entry of an event code level. A slot with a family leads to
// another level instead of an event.
type Slot struct {
	Kind EventKind

	// Production is the index of the production the slot codes, or -1.
	Production int

	Family  Family
	Members []Slot
	Width   int
}

// Code is a located slot: the parts to write and the bit width of each part.
type Code struct {
	Kind       EventKind
	Production int
	Level      int
	Parts      [3]int
	Widths     [3]int
}

func (c Code) String() string {
	var parts []string
	for i := 0; i < c.Level; i++ {
		parts = append(parts, fmt.Sprint(c.Parts[i]))
	}
	return strings.Join(parts, ".")
}

// EventCodes is the event code layout of a rule.
type EventCodes struct {
	First       []Slot
	FirstWidth  int
	Second      []Slot
	SecondWidth int
}

// DeriveCodes computes the event code layout of r under f. The result only
// depends on the productions and attributes of r and on f, so an encoder and a
// decoder using the same grammar always agree on it.
func DeriveCodes(r *Rule, f Fidelity) *EventCodes {
	c := &EventCodes{}
	for i, n := 0, r.Len(); i < n; i++ {
		c.First = append(c.First, Slot{
			Kind:       r.Production(i).Event.Kind,
			Production: i,
		})
	}
	c.Second = secondLevel(r, f)
	extra := 0
	if len(c.Second) > 0 {
		extra = 1
	}
	c.FirstWidth = Width(len(c.First) + extra)
	c.SecondWidth = Width(len(c.Second))
	return c
}

func undeclared(k EventKind) Slot {
	return Slot{
		Kind:       k,
		Production: -1,
	}
}

func miscFamily(f Fidelity) Slot {
	s := Slot{
		Kind:       EventComment,
		Production: -1,
		Family:     FamilyMisc,
	}
	if f.Comments {
		s.Members = append(s.Members, undeclared(EventComment))
	}
	if f.ProcessingInstructions {
		s.Members = append(s.Members, undeclared(EventProcessingInstruction))
	}
	s.Width = Width(len(s.Members))
	return s
}

func secondLevel(r *Rule, f Fidelity) []Slot {
	var slots []Slot
	switch r.Role {
	case RoleDocContent:
		if f.DTD {
			slots = append(slots, undeclared(EventDocType))
		}
		if f.misc() {
			slots = append(slots, miscFamily(f))
		}
		return slots
	case RoleDocEnd, RoleFragmentContent:
		if f.Comments {
			slots = append(slots, undeclared(EventComment))
		}
		if f.ProcessingInstructions {
			slots = append(slots, undeclared(EventProcessingInstruction))
		}
		return slots
	case RoleStartTag, RoleElementContent:
	default:
		return nil
	}

	if r.BuiltIn {
		return builtInElementLevel(r, f)
	}
	return schemaElementLevel(r, f)
}

func builtInElementLevel(r *Rule, f Fidelity) []Slot {
	var slots []Slot
	startTag := r.Role == RoleStartTag
	if !r.HasEndElement() {
		slots = append(slots, undeclared(EventEndElement))
	}
	if startTag {
		slots = append(slots, undeclared(EventAttributeGeneric))
		if f.Prefixes {
			slots = append(slots, undeclared(EventNamespaceDeclaration))
		}
		if f.SelfContained {
			slots = append(slots, undeclared(EventSelfContained))
		}
	}
	slots = append(slots, undeclared(EventStartElementGeneric), undeclared(EventCharactersGeneric))
	if f.DTD {
		slots = append(slots, undeclared(EventEntityReference))
	}
	if f.misc() {
		slots = append(slots, miscFamily(f))
	}
	return slots
}

func schemaElementLevel(r *Rule, f Fidelity) []Slot {
	var slots []Slot
	if f.Strict {
		if r.First && r.Type != nil && r.Type.HasNamedSubTypes {
			slots = append(slots, undeclared(EventAttributeXsiType))
		}
		if r.First && r.Nillable {
			slots = append(slots, undeclared(EventAttributeXsiNil))
		}
		return slots
	}

	startTag := r.Role == RoleStartTag
	if !r.HasEndElement() {
		slots = append(slots, undeclared(EventEndElement))
	}
	if r.First {
		slots = append(slots, undeclared(EventAttributeXsiType), undeclared(EventAttributeXsiNil))
	}
	if startTag {
		slots = append(slots, undeclared(EventAttributeGeneric))
		if r.hasDeclaredAttribute() {
			inv := Slot{
				Kind:       EventAttribute,
				Production: -1,
				Family:     FamilyInvalidAttribute,
			}
			for i, n := 0, r.Len(); i < n; i++ {
				if r.Production(i).Event.Kind != EventAttribute {
					continue
				}
				inv.Members = append(inv.Members, Slot{
					Kind:       EventAttribute,
					Production: i,
				})
			}
			inv.Width = Width(len(inv.Members))
			slots = append(slots, inv)
		}
	}
	if r.First {
		if f.Prefixes {
			slots = append(slots, undeclared(EventNamespaceDeclaration))
		}
		if f.SelfContained {
			slots = append(slots, undeclared(EventSelfContained))
		}
	}
	slots = append(slots, undeclared(EventStartElementGeneric), undeclared(EventCharactersGeneric))
	if f.DTD {
		slots = append(slots, undeclared(EventEntityReference))
	}
	if f.misc() {
		slots = append(slots, miscFamily(f))
	}
	return slots
}

// Declared returns the code of the production num.
func (c *EventCodes) Declared(num int) (Code, bool) {
	if num < 0 || num >= len(c.First) {
		return Code{}, false
	}
	return Code{
		Kind:       c.First[num].Kind,
		Production: num,
		Level:      1,
		Parts:      [3]int{num},
		Widths:     [3]int{c.FirstWidth},
	}, true
}

// Undeclared returns the code of an event of kind k that no production of the
// rule declares.
func (c *EventCodes) Undeclared(k EventKind) (Code, bool) {
	for i, s := range c.Second {
		switch s.Family {
		case FamilyNone:
			if s.Kind == k {
				return c.second(i, s), true
			}
		case FamilyMisc:
			for j, m := range s.Members {
				if m.Kind == k {
					return c.third(i, s, j), true
				}
			}
		}
	}
	return Code{}, false
}

// Invalid returns the code of the declared attribute production num carrying
// a value its datatype rejects.
func (c *EventCodes) Invalid(num int) (Code, bool) {
	for i, s := range c.Second {
		if s.Family != FamilyInvalidAttribute {
			continue
		}
		for j, m := range s.Members {
			if m.Production == num {
				return c.third(i, s, j), true
			}
		}
	}
	return Code{}, false
}

func (c *EventCodes) second(i int, s Slot) Code {
	return Code{
		Kind:       s.Kind,
		Production: s.Production,
		Level:      2,
		Parts:      [3]int{len(c.First), i},
		Widths:     [3]int{c.FirstWidth, c.SecondWidth},
	}
}

func (c *EventCodes) third(i int, s Slot, j int) Code {
	m := s.Members[j]
	return Code{
		Kind:       m.Kind,
		Production: m.Production,
		Level:      3,
		Parts:      [3]int{len(c.First), i, j},
		Widths:     [3]int{c.FirstWidth, c.SecondWidth, s.Width},
	}
}

// Lookup resolves the parts read so far. When the code continues at another
// level, it returns ok and complete = false.
func (c *EventCodes) Lookup(parts []int) (code Code, complete bool, ok bool) {
	if len(parts) == 0 {
		return Code{}, false, false
	}
	p1 := parts[0]
	if p1 < len(c.First) {
		if len(parts) != 1 {
			return Code{}, false, false
		}
		code, _ := c.Declared(p1)
		return code, true, true
	}
	if p1 != len(c.First) || len(c.Second) == 0 {
		return Code{}, false, false
	}
	if len(parts) == 1 {
		return Code{}, false, true
	}
	p2 := parts[1]
	if p2 < 0 || p2 >= len(c.Second) {
		return Code{}, false, false
	}
	s := c.Second[p2]
	if s.Family == FamilyNone {
		if len(parts) != 2 {
			return Code{}, false, false
		}
		return c.second(p2, s), true, true
	}
	if len(parts) == 2 {
		return Code{}, false, true
	}
	p3 := parts[2]
	if len(parts) != 3 || p3 < 0 || p3 >= len(s.Members) {
		return Code{}, false, false
	}
	return c.third(p2, s, p3), true, true
}

// NextWidth returns the bit width of the part following parts.
func (c *EventCodes) NextWidth(parts []int) int {
	switch len(parts) {
	case 0:
		return c.FirstWidth
	case 1:
		return c.SecondWidth
	case 2:
		if parts[1] >= 0 && parts[1] < len(c.Second) {
			return c.Second[parts[1]].Width
		}
	}
	return 0
}
