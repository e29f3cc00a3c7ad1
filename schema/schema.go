package schema

import (
	"fmt"

	"github.com/nihei9/exigram/grammar/name"
)

type QName struct {
	URI   string
	Local string
}

func (q QName) String() string {
	if q.URI == "" {
		return q.Local
	}
	return fmt.Sprintf("{%v}%v", q.URI, q.Local)
}

func (q QName) IsZero() bool {
	return q.URI == "" && q.Local == ""
}

// Less orders qualified names by local-name first and then by uri.
func (q QName) Less(o QName) bool {
	if q.Local != o.Local {
		return q.Local < o.Local
	}
	return q.URI < o.URI
}

const Unbounded = -1

// Particle is a term with occurrence bounds. Max is Unbounded for an
// unbounded repetition.
type Particle struct {
	Min  int
	Max  int
	Term Term
}

func NewParticle(min, max int, term Term) *Particle {
	return &Particle{
		Min:  min,
		Max:  max,
		Term: term,
	}
}

// Term is one of *ElementDecl, *Wildcard, and *ModelGroup.
type Term interface {
	term()
}

type ElementDecl struct {
	Name     QName
	Type     *Type
	Nillable bool
	Global   bool
}

func (*ElementDecl) term() {}

type NamespaceConstraint int

const (
	// NamespaceAny matches every namespace.
	NamespaceAny NamespaceConstraint = iota
	// NamespaceNot matches every namespace but the ones listed and the absent one.
	NamespaceNot
	// NamespaceList matches only the listed namespaces.
	NamespaceList
)

type Wildcard struct {
	Constraint NamespaceConstraint
	URIs       []string
}

func (*Wildcard) term() {}

type GroupKind int

const (
	GroupSequence GroupKind = iota
	GroupChoice
	GroupAll
)

func (k GroupKind) String() string {
	switch k {
	case GroupSequence:
		return "sequence"
	case GroupChoice:
		return "choice"
	case GroupAll:
		return "all"
	}
	return "unknown"
}

type ModelGroup struct {
	Kind      GroupKind
	Particles []*Particle
}

func (*ModelGroup) term() {}

type AttributeUse struct {
	Name     QName
	Type     Datatype
	Required bool
}

type Type struct {
	// Name is zero for an anonymous type.
	Name QName

	// Simple reports whether the content is a single value of Datatype.
	Simple   bool
	Datatype Datatype

	Attributes        []*AttributeUse
	AttributeWildcard *Wildcard

	// Content is nil for an empty content.
	Content *Particle
	Mixed   bool

	Base             *Type
	HasNamedSubTypes bool
}

// AnyType returns the ur-type: any attribute and any mixed content.
func AnyType() *Type {
	return &Type{
		Name: QName{
			URI:   name.URIXSD,
			Local: TypeNameAnyType,
		},
		AttributeWildcard: &Wildcard{
			Constraint: NamespaceAny,
		},
		Content: NewParticle(0, Unbounded, &Wildcard{
			Constraint: NamespaceAny,
		}),
		Mixed: true,
	}
}

// SimpleType returns a type whose content is a value of dt without attributes.
func SimpleType(dt Datatype) *Type {
	return &Type{
		Name:     dt.Name,
		Simple:   true,
		Datatype: dt,
	}
}

type Schema struct {
	Elements   []*ElementDecl
	Attributes []*AttributeUse
	Types      []*Type
}

func (s *Schema) LookupType(q QName) (*Type, bool) {
	for _, t := range s.Types {
		if t.Name == q {
			return t, true
		}
	}
	return nil, false
}

func (s *Schema) LookupElement(q QName) (*ElementDecl, bool) {
	for _, e := range s.Elements {
		if e.Name == q {
			return e, true
		}
	}
	return nil, false
}

// Names collects the local names of every declaration in the schema keyed by
// namespace.
func (s *Schema) Names() map[string][]string {
	c := &nameCollector{
		names:   map[string][]string{},
		seen:    map[QName]struct{}{},
		visited: map[*Type]struct{}{},
	}
	for _, e := range s.Elements {
		c.element(e)
	}
	for _, a := range s.Attributes {
		c.add(a.Name)
	}
	for _, t := range s.Types {
		c.typ(t)
	}
	return c.names
}

type nameCollector struct {
	names   map[string][]string
	seen    map[QName]struct{}
	visited map[*Type]struct{}
}

func (c *nameCollector) add(q QName) {
	if _, ok := c.names[q.URI]; !ok {
		c.names[q.URI] = nil
	}
	if q.Local == "" {
		return
	}
	if _, ok := c.seen[q]; ok {
		return
	}
	c.seen[q] = struct{}{}
	c.names[q.URI] = append(c.names[q.URI], q.Local)
}

func (c *nameCollector) element(e *ElementDecl) {
	c.add(e.Name)
	if e.Type != nil {
		c.typ(e.Type)
	}
}

func (c *nameCollector) typ(t *Type) {
	if _, ok := c.visited[t]; ok {
		return
	}
	c.visited[t] = struct{}{}
	if !t.Name.IsZero() && t.Name.URI != name.URIXSD {
		c.add(t.Name)
	}
	for _, a := range t.Attributes {
		c.add(a.Name)
	}
	if t.AttributeWildcard != nil {
		c.wildcard(t.AttributeWildcard)
	}
	if t.Content != nil {
		c.particle(t.Content)
	}
}

func (c *nameCollector) wildcard(w *Wildcard) {
	if w.Constraint != NamespaceList {
		return
	}
	for _, uri := range w.URIs {
		c.add(QName{URI: uri})
	}
}

func (c *nameCollector) particle(p *Particle) {
	switch t := p.Term.(type) {
	case *ElementDecl:
		c.element(t)
	case *Wildcard:
		c.wildcard(t)
	case *ModelGroup:
		for _, q := range t.Particles {
			c.particle(q)
		}
	}
}
