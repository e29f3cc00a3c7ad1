package spec

import (
	"io"

	verr "github.com/nihei9/exigram/error"
	"github.com/nihei9/exigram/schema"
)

type RootNode struct {
	SimpleTypes []*SimpleTypeNode
	Attributes  []*AttributeNode
	Types       []*TypeNode
	Elements    []*ElementNode
}

// NamespaceNode is the namespace in effect for a declaration. Qualified
// reports whether local elements belong to the namespace too.
type NamespaceNode struct {
	URI       string
	Qualified bool
}

type SimpleTypeNode struct {
	Name      string
	Namespace *NamespaceNode
	Base      *TypeRefNode
	Pos       Position
}

type AttributeNode struct {
	Name      string
	Namespace *NamespaceNode
	Type      *TypeRefNode
	Optional  bool
	Pos       Position
}

type TypeNode struct {
	// Name is empty for an anonymous type.
	Name              string
	Namespace         *NamespaceNode
	Extends           *TypeRefNode
	Mixed             bool
	Attributes        []*AttributeNode
	AttributeWildcard *WildcardNode
	Value             *TypeRefNode
	Content           *ParticleNode
	Pos               Position
}

type ElementNode struct {
	Name      string
	Namespace *NamespaceNode
	Type      *TypeRefNode
	Anonymous *TypeNode
	Nillable  bool
	Pos       Position
}

type TypeRefNode struct {
	Name string
	Pos  Position
}

type ParticleNode struct {
	Min      int
	Max      int
	Element  *ElementNode
	Ref      *TypeRefNode
	Wildcard *WildcardNode
	Group    *GroupNode
	Pos      Position
}

type GroupNode struct {
	Kind      schema.GroupKind
	Particles []*ParticleNode
}

type WildcardNode struct {
	Not  bool
	URIs []string
	Pos  Position
}

// Any reports whether the wildcard matches every namespace.
func (n *WildcardNode) Any() bool {
	return !n.Not && len(n.URIs) == 0
}

func raiseSyntaxError(pos Position, synErr *SyntaxError) {
	panic(&verr.SpecError{
		Cause: synErr,
		Row:   pos.Row,
		Col:   pos.Col,
	})
}

func Parse(src io.Reader) (*RootNode, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	root, err := p.parse()
	if err != nil {
		return nil, err
	}
	return root, nil
}

type parser struct {
	lex       *lexer
	peekedTok *token
	lastTok   *token
	ns        *NamespaceNode
}

func newParser(src io.Reader) (*parser, error) {
	lex, err := newLexer(src)
	if err != nil {
		return nil, err
	}
	return &parser{
		lex: lex,
		ns:  &NamespaceNode{},
	}, nil
}

func (p *parser) parse() (root *RootNode, retErr error) {
	defer func() {
		err := recover()
		if err != nil {
			retErr = err.(error)
			return
		}
	}()
	return p.parseRoot(), nil
}

func (p *parser) parseRoot() *RootNode {
	root := &RootNode{}
	decls := 0
	for !p.consume(tokenKindEOF) {
		switch {
		case p.consume(tokenKindKWNamespace):
			p.parseNamespace()
			continue
		case p.consume(tokenKindKWSimple):
			root.SimpleTypes = append(root.SimpleTypes, p.parseSimpleType())
		case p.consume(tokenKindKWAttribute):
			root.Attributes = append(root.Attributes, p.parseGlobalAttribute())
		case p.consume(tokenKindKWType):
			root.Types = append(root.Types, p.parseType())
		case p.consume(tokenKindKWElement):
			root.Elements = append(root.Elements, p.parseGlobalElement())
		default:
			p.raise(synErrUnexpectedToken)
		}
		decls++
	}
	if decls == 0 {
		raiseSyntaxError(p.lastTok.pos, synErrNoDeclaration)
	}
	return root
}

func (p *parser) parseNamespace() {
	if !p.consume(tokenKindString) {
		p.raise(synErrNoNamespaceURI)
	}
	ns := &NamespaceNode{
		URI: p.lastTok.text,
	}
	if p.consume(tokenKindKWQualified) {
		ns.Qualified = true
	}
	p.expectSemicolon()
	p.ns = ns
}

func (p *parser) parseSimpleType() *SimpleTypeNode {
	name, pos := p.parseDeclName()
	if !p.consume(tokenKindEquals) {
		p.raise(synErrNoEquals)
	}
	base := p.parseTypeRef()
	p.expectSemicolon()
	return &SimpleTypeNode{
		Name:      name,
		Namespace: p.ns,
		Base:      base,
		Pos:       pos,
	}
}

func (p *parser) parseGlobalAttribute() *AttributeNode {
	name, pos := p.parseDeclName()
	if !p.consume(tokenKindColon) {
		p.raise(synErrNoColon)
	}
	typ := p.parseTypeRef()
	p.expectSemicolon()
	return &AttributeNode{
		Name:      name,
		Namespace: p.ns,
		Type:      typ,
		Pos:       pos,
	}
}

func (p *parser) parseType() *TypeNode {
	name, pos := p.parseDeclName()
	t := &TypeNode{
		Name:      name,
		Namespace: p.ns,
		Pos:       pos,
	}
	if p.consume(tokenKindKWExtends) {
		t.Extends = p.parseTypeRef()
	}
	if p.consume(tokenKindKWMixed) {
		t.Mixed = true
	}
	p.parseTypeBody(t)
	return t
}

func (p *parser) parseGlobalElement() *ElementNode {
	name, pos := p.parseDeclName()
	elem := &ElementNode{
		Name:      name,
		Namespace: p.ns,
		Pos:       pos,
	}
	if !p.consume(tokenKindColon) {
		p.raise(synErrNoColon)
	}
	p.parseElementType(elem)
	if p.consume(tokenKindKWNillable) {
		elem.Nillable = true
	}
	p.expectSemicolon()
	return elem
}

func (p *parser) parseElementType(elem *ElementNode) {
	switch {
	case p.consume(tokenKindKWMixed):
		elem.Anonymous = &TypeNode{
			Namespace: p.ns,
			Mixed:     true,
			Pos:       p.lastTok.pos,
		}
		p.parseTypeBody(elem.Anonymous)
	case p.peek(tokenKindBlockOpen):
		elem.Anonymous = &TypeNode{
			Namespace: p.ns,
			Pos:       p.peekedTok.pos,
		}
		p.parseTypeBody(elem.Anonymous)
	default:
		elem.Type = p.parseTypeRef()
	}
}

func (p *parser) parseTypeBody(t *TypeNode) {
	if !p.consume(tokenKindBlockOpen) {
		p.raise(synErrNoBlockOpen)
	}
	for !p.consume(tokenKindBlockClose) {
		switch {
		case p.consume(tokenKindAt):
			pos := p.lastTok.pos
			if p.consume(tokenKindStar) {
				if t.AttributeWildcard != nil {
					raiseSyntaxError(pos, synErrDuplicateWildcard)
				}
				t.AttributeWildcard = p.parseNamespaceConstraint(pos)
				p.expectSemicolon()
				continue
			}
			t.Attributes = append(t.Attributes, p.parseLocalAttribute())
		case p.consume(tokenKindKWValue):
			pos := p.lastTok.pos
			if t.Value != nil || t.Content != nil {
				raiseSyntaxError(pos, synErrMultipleContents)
			}
			t.Value = p.parseTypeRef()
			p.expectSemicolon()
		default:
			pos := p.peekPos()
			g := p.parseGroup()
			if g == nil {
				p.raiseInBlock(synErrInvalidMember)
			}
			if t.Value != nil || t.Content != nil {
				raiseSyntaxError(pos, synErrMultipleContents)
			}
			t.Content = g
		}
	}
}

func (p *parser) parseLocalAttribute() *AttributeNode {
	name, pos := p.parseDeclName()
	attr := &AttributeNode{
		Name: name,
		Pos:  pos,
	}
	if p.consume(tokenKindOptional) {
		attr.Optional = true
	}
	if !p.consume(tokenKindColon) {
		p.raise(synErrNoColon)
	}
	attr.Type = p.parseTypeRef()
	p.expectSemicolon()
	return attr
}

// parseGroup returns nil when the next token doesn't start a model group.
func (p *parser) parseGroup() *ParticleNode {
	var kind schema.GroupKind
	switch {
	case p.consume(tokenKindKWSequence):
		kind = schema.GroupSequence
	case p.consume(tokenKindKWChoice):
		kind = schema.GroupChoice
	case p.consume(tokenKindKWAll):
		kind = schema.GroupAll
	default:
		return nil
	}
	particle := &ParticleNode{
		Pos: p.lastTok.pos,
	}
	particle.Min, particle.Max = p.parseOccurs()
	if !p.consume(tokenKindBlockOpen) {
		p.raise(synErrNoBlockOpen)
	}
	group := &GroupNode{
		Kind: kind,
	}
	for !p.consume(tokenKindBlockClose) {
		group.Particles = append(group.Particles, p.parseParticle())
	}
	if len(group.Particles) == 0 {
		raiseSyntaxError(particle.Pos, synErrNoParticle)
	}
	particle.Group = group
	return particle
}

func (p *parser) parseParticle() *ParticleNode {
	if g := p.parseGroup(); g != nil {
		return g
	}
	switch {
	case p.consume(tokenKindKWRef):
		pos := p.lastTok.pos
		ref := p.parseTypeRef()
		min, max := p.parseOccurs()
		p.expectSemicolon()
		return &ParticleNode{
			Min: min,
			Max: max,
			Ref: ref,
			Pos: pos,
		}
	case p.consume(tokenKindKWAny):
		pos := p.lastTok.pos
		w := p.parseNamespaceConstraint(pos)
		min, max := p.parseOccurs()
		p.expectSemicolon()
		return &ParticleNode{
			Min:      min,
			Max:      max,
			Wildcard: w,
			Pos:      pos,
		}
	case p.consume(tokenKindID):
		elem := &ElementNode{
			Name:      p.lastTok.text,
			Namespace: p.ns,
			Pos:       p.lastTok.pos,
		}
		if !p.consume(tokenKindColon) {
			p.raise(synErrNoColon)
		}
		p.parseElementType(elem)
		min, max := p.parseOccurs()
		if p.consume(tokenKindKWNillable) {
			elem.Nillable = true
		}
		p.expectSemicolon()
		return &ParticleNode{
			Min:     min,
			Max:     max,
			Element: elem,
			Pos:     elem.Pos,
		}
	}
	p.raiseInBlock(synErrInvalidParticle)
	return nil
}

// parseOccurs reads optional occurrence bounds. They default to exactly once.
func (p *parser) parseOccurs() (int, int) {
	if !p.consume(tokenKindOccursOpen) {
		return 1, 1
	}
	if !p.consume(tokenKindInteger) {
		p.raise(synErrInvalidOccurs)
	}
	min := p.lastTok.num
	if !p.consume(tokenKindRange) {
		p.raise(synErrInvalidOccurs)
	}
	max := schema.Unbounded
	switch {
	case p.consume(tokenKindInteger):
		max = p.lastTok.num
	case p.consume(tokenKindStar):
	default:
		p.raise(synErrInvalidOccurs)
	}
	if !p.consume(tokenKindOccursClose) {
		p.raise(synErrInvalidOccurs)
	}
	return min, max
}

func (p *parser) parseNamespaceConstraint(pos Position) *WildcardNode {
	w := &WildcardNode{
		Pos: pos,
	}
	if p.consume(tokenKindKWNot) {
		w.Not = true
	}
	for p.consume(tokenKindString) {
		w.URIs = append(w.URIs, p.lastTok.text)
	}
	if w.Not && len(w.URIs) == 0 {
		p.raise(synErrNoWildcardNamespace)
	}
	return w
}

// parseDeclName accepts keywords too because a name never appears where a
// keyword could.
func (p *parser) parseDeclName() (string, Position) {
	if p.consume(tokenKindID) {
		return p.lastTok.text, p.lastTok.pos
	}
	for _, kw := range keywords {
		if p.consume(kw) {
			return string(kw), p.lastTok.pos
		}
	}
	p.raise(synErrNoName)
	return "", Position{}
}

func (p *parser) parseTypeRef() *TypeRefNode {
	if !p.consume(tokenKindID) {
		p.raise(synErrNoTypeName)
	}
	return &TypeRefNode{
		Name: p.lastTok.text,
		Pos:  p.lastTok.pos,
	}
}

func (p *parser) expectSemicolon() {
	if !p.consume(tokenKindSemicolon) {
		p.raise(synErrNoSemicolon)
	}
}

// raise reports synErr at the token that failed to match.
func (p *parser) raise(synErr *SyntaxError) {
	raiseSyntaxError(p.peekPos(), synErr)
}

// raiseInBlock reports synErr, or an unclosed block when the source ends.
func (p *parser) raiseInBlock(synErr *SyntaxError) {
	if p.peek(tokenKindEOF) {
		p.raise(synErrUnclosedBlock)
	}
	p.raise(synErr)
}

func (p *parser) peekPos() Position {
	p.peek(tokenKindEOF)
	return p.peekedTok.pos
}

func (p *parser) peek(expected tokenKind) bool {
	if p.peekedTok == nil {
		tok, err := p.lex.next()
		if err != nil {
			panic(err)
		}
		p.peekedTok = tok
	}
	return p.peekedTok.kind == expected
}

func (p *parser) consume(expected tokenKind) bool {
	var tok *token
	var err error
	if p.peekedTok != nil {
		tok = p.peekedTok
		p.peekedTok = nil
	} else {
		tok, err = p.lex.next()
		if err != nil {
			panic(err)
		}
	}
	p.lastTok = tok
	if tok.kind == tokenKindInvalid {
		raiseSyntaxError(tok.pos, synErrInvalidToken)
	}
	if tok.kind == expected {
		return true
	}
	p.peekedTok = tok
	p.lastTok = nil

	return false
}
