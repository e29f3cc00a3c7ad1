package spec

import (
	"io"

	verr "github.com/nihei9/exigram/error"
	"github.com/nihei9/exigram/schema"
)

// ReadSchema parses a schema notation source and builds the schema it
// declares.
func ReadSchema(src io.Reader) (*schema.Schema, error) {
	root, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return Build(root)
}

// Build resolves the references among declarations of root. Every semantic
// error found is reported together as verr.SpecErrors.
func Build(root *RootNode) (*schema.Schema, error) {
	b := &builder{
		root:     root,
		types:    map[schema.QName]*typeEntry{},
		elements: map[schema.QName]*schema.ElementDecl{},
		s:        &schema.Schema{},
	}
	b.build()
	if len(b.errs) > 0 {
		return nil, b.errs
	}
	return b.s, nil
}

type typeState int

const (
	typeStateUnresolved typeState = iota
	typeStateResolving
	typeStateResolved
)

type typeEntry struct {
	simple *SimpleTypeNode
	node   *TypeNode
	typ    *schema.Type
	state  typeState
}

type builder struct {
	root     *RootNode
	types    map[schema.QName]*typeEntry
	elements map[schema.QName]*schema.ElementDecl
	globals  []*ElementNode
	s        *schema.Schema
	errs     verr.SpecErrors
}

func (b *builder) build() {
	b.declareTypes()
	b.declareElements()

	for _, st := range b.root.SimpleTypes {
		b.resolve(b.types[qnameOf(st.Namespace, st.Name)])
	}
	for _, tn := range b.root.Types {
		b.resolve(b.types[qnameOf(tn.Namespace, tn.Name)])
	}

	attrs := map[schema.QName]struct{}{}
	for _, an := range b.root.Attributes {
		q := qnameOf(an.Namespace, an.Name)
		if _, ok := attrs[q]; ok {
			b.semanticError(an.Pos, semErrDuplicateAttribute, an.Name)
			continue
		}
		attrs[q] = struct{}{}
		dt, ok := b.datatype(an.Namespace, an.Type)
		if !ok {
			continue
		}
		b.s.Attributes = append(b.s.Attributes, &schema.AttributeUse{
			Name: q,
			Type: dt,
		})
	}

	for _, en := range b.globals {
		b.elements[qnameOf(en.Namespace, en.Name)].Type = b.elementType(en)
	}
}

// declareTypes registers every named type before any of them is resolved
// so that references may point forward.
func (b *builder) declareTypes() {
	for _, st := range b.root.SimpleTypes {
		q := qnameOf(st.Namespace, st.Name)
		if _, ok := b.types[q]; ok {
			b.semanticError(st.Pos, semErrDuplicateType, st.Name)
			continue
		}
		t := &schema.Type{
			Name:   q,
			Simple: true,
		}
		b.types[q] = &typeEntry{
			simple: st,
			typ:    t,
		}
		b.s.Types = append(b.s.Types, t)
	}
	for _, tn := range b.root.Types {
		q := qnameOf(tn.Namespace, tn.Name)
		if _, ok := b.types[q]; ok {
			b.semanticError(tn.Pos, semErrDuplicateType, tn.Name)
			continue
		}
		t := &schema.Type{
			Name: q,
		}
		b.types[q] = &typeEntry{
			node: tn,
			typ:  t,
		}
		b.s.Types = append(b.s.Types, t)
	}
}

func (b *builder) declareElements() {
	for _, en := range b.root.Elements {
		q := qnameOf(en.Namespace, en.Name)
		if _, ok := b.elements[q]; ok {
			b.semanticError(en.Pos, semErrDuplicateElement, en.Name)
			continue
		}
		e := &schema.ElementDecl{
			Name:     q,
			Nillable: en.Nillable,
			Global:   true,
		}
		b.elements[q] = e
		b.globals = append(b.globals, en)
		b.s.Elements = append(b.s.Elements, e)
	}
}

// resolve fills the type of e in. A derived type gets the attributes and the
// content of its base followed by its own.
func (b *builder) resolve(e *typeEntry) {
	if e == nil || e.state == typeStateResolved {
		return
	}
	if e.state == typeStateResolving {
		if e.node != nil {
			b.semanticError(e.node.Pos, semErrCyclicExtension, e.node.Name)
		} else {
			b.semanticError(e.simple.Pos, semErrCyclicExtension, e.simple.Name)
		}
		return
	}
	e.state = typeStateResolving
	defer func() {
		e.state = typeStateResolved
	}()

	if e.simple != nil {
		dt, ok := b.datatype(e.simple.Namespace, e.simple.Base)
		if !ok {
			return
		}
		e.typ.Datatype = dt
		return
	}

	b.fillType(e.typ, e.node)
}

func (b *builder) fillType(t *schema.Type, tn *TypeNode) {
	t.Mixed = tn.Mixed
	if tn.Extends != nil {
		base, ok := b.lookupType(tn.Namespace, tn.Extends, true)
		if !ok {
			return
		}
		if base.Simple && tn.Content != nil {
			b.semanticError(tn.Extends.Pos, semErrExtendsSimple, tn.Extends.Name)
			return
		}
		t.Base = base
		t.Simple = base.Simple
		t.Datatype = base.Datatype
		t.Attributes = append(t.Attributes, base.Attributes...)
		t.AttributeWildcard = base.AttributeWildcard
		t.Content = base.Content
		t.Mixed = t.Mixed || base.Mixed
		if _, declared := b.types[base.Name]; declared {
			base.HasNamedSubTypes = true
		}
	}

	seen := map[schema.QName]struct{}{}
	for _, a := range t.Attributes {
		seen[a.Name] = struct{}{}
	}
	for _, an := range tn.Attributes {
		q := schema.QName{
			Local: an.Name,
		}
		if _, ok := seen[q]; ok {
			b.semanticError(an.Pos, semErrDuplicateAttribute, an.Name)
			continue
		}
		seen[q] = struct{}{}
		dt, ok := b.datatype(tn.Namespace, an.Type)
		if !ok {
			continue
		}
		t.Attributes = append(t.Attributes, &schema.AttributeUse{
			Name:     q,
			Type:     dt,
			Required: !an.Optional,
		})
	}
	if tn.AttributeWildcard != nil {
		t.AttributeWildcard = wildcard(tn.AttributeWildcard)
	}

	if tn.Value != nil {
		dt, ok := b.datatype(tn.Namespace, tn.Value)
		if !ok {
			return
		}
		t.Simple = true
		t.Datatype = dt
		return
	}
	if tn.Content == nil {
		return
	}
	own := b.particle(tn.Namespace, tn.Content)
	if own == nil {
		return
	}
	if t.Content == nil {
		t.Content = own
		return
	}
	t.Content = schema.NewParticle(1, 1, &schema.ModelGroup{
		Kind:      schema.GroupSequence,
		Particles: []*schema.Particle{t.Content, own},
	})
}

func (b *builder) particle(ns *NamespaceNode, pn *ParticleNode) *schema.Particle {
	if pn.Max != schema.Unbounded && pn.Max < pn.Min {
		b.semanticError(pn.Pos, semErrMaxLessThanMin, "")
		return nil
	}

	var term schema.Term
	switch {
	case pn.Element != nil:
		en := pn.Element
		q := schema.QName{
			Local: en.Name,
		}
		if ns.Qualified {
			q.URI = ns.URI
		}
		term = &schema.ElementDecl{
			Name:     q,
			Type:     b.elementType(en),
			Nillable: en.Nillable,
		}
	case pn.Ref != nil:
		e, ok := b.lookupElement(ns, pn.Ref)
		if !ok {
			b.semanticError(pn.Ref.Pos, semErrUndefinedElement, pn.Ref.Name)
			return nil
		}
		term = e
	case pn.Wildcard != nil:
		term = wildcard(pn.Wildcard)
	case pn.Group != nil:
		g := &schema.ModelGroup{
			Kind: pn.Group.Kind,
		}
		for _, c := range pn.Group.Particles {
			if g.Kind == schema.GroupAll && (c.Max == schema.Unbounded || c.Max > 1) {
				b.semanticError(c.Pos, semErrAllOccurs, "")
				continue
			}
			p := b.particle(ns, c)
			if p == nil {
				continue
			}
			g.Particles = append(g.Particles, p)
		}
		term = g
	}
	return schema.NewParticle(pn.Min, pn.Max, term)
}

// elementType returns nil for anyType, which the compiler treats as the
// ur-type.
func (b *builder) elementType(en *ElementNode) *schema.Type {
	if en.Anonymous != nil {
		t := &schema.Type{}
		b.fillType(t, en.Anonymous)
		return t
	}
	if en.Type.Name == schema.TypeNameAnyType {
		return nil
	}
	t, ok := b.lookupType(en.Namespace, en.Type, false)
	if !ok {
		return nil
	}
	return t
}

func (b *builder) lookupElement(ns *NamespaceNode, ref *TypeRefNode) (*schema.ElementDecl, bool) {
	if e, ok := b.elements[qnameOf(ns, ref.Name)]; ok {
		return e, true
	}
	for _, e := range b.s.Elements {
		if e.Name.Local == ref.Name {
			return e, true
		}
	}
	return nil, false
}

// lookupType finds a declared type in the namespace of the reference first,
// then a built-in type, then a declared type of any namespace. Only resolved
// types are complete; elements may refer to a type still being resolved.
func (b *builder) lookupType(ns *NamespaceNode, ref *TypeRefNode, resolved bool) (*schema.Type, bool) {
	e, ok := b.types[qnameOf(ns, ref.Name)]
	if !ok {
		if dt, ok := schema.Builtin(ref.Name); ok {
			return schema.SimpleType(dt), true
		}
		for q, f := range b.types {
			if q.Local == ref.Name && (e == nil || q.URI < e.typ.Name.URI) {
				e = f
			}
		}
	}
	if e == nil {
		b.semanticError(ref.Pos, semErrUndefinedType, ref.Name)
		return nil, false
	}
	if resolved {
		b.resolve(e)
	}
	return e.typ, true
}

func (b *builder) datatype(ns *NamespaceNode, ref *TypeRefNode) (schema.Datatype, bool) {
	t, ok := b.lookupType(ns, ref, true)
	if !ok {
		return schema.Datatype{}, false
	}
	if !t.Simple || len(t.Attributes) > 0 {
		b.semanticError(ref.Pos, semErrNotSimple, ref.Name)
		return schema.Datatype{}, false
	}
	return t.Datatype, true
}

func wildcard(wn *WildcardNode) *schema.Wildcard {
	switch {
	case wn.Any():
		return &schema.Wildcard{
			Constraint: schema.NamespaceAny,
		}
	case wn.Not:
		return &schema.Wildcard{
			Constraint: schema.NamespaceNot,
			URIs:       wn.URIs,
		}
	}
	return &schema.Wildcard{
		Constraint: schema.NamespaceList,
		URIs:       wn.URIs,
	}
}

func qnameOf(ns *NamespaceNode, local string) schema.QName {
	return schema.QName{
		URI:   ns.URI,
		Local: local,
	}
}

func (b *builder) semanticError(pos Position, semErr *SemanticError, detail string) {
	b.errs = append(b.errs, &verr.SpecError{
		Cause:  semErr,
		Detail: detail,
		Row:    pos.Row,
		Col:    pos.Col,
	})
}
