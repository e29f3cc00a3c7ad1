package grammar

import (
	"sort"

	"github.com/golang/glog"
	"github.com/nihei9/exigram/grammar/name"
	"github.com/nihei9/exigram/schema"
	"github.com/pkg/errors"
)

type compileConfig struct {
	sourceName string
}

type CompileOption func(config *compileConfig)

// SourceName names the schema a grammar is compiled from.
func SourceName(name string) CompileOption {
	return func(config *compileConfig) {
		config.sourceName = name
	}
}

// Compile builds the schema-informed grammar of s. On failure no grammar is
// returned.
func Compile(s *schema.Schema, opts ...CompileOption) (*Grammar, error) {
	if s == nil {
		return nil, ErrNoSchema
	}
	config := &compileConfig{}
	for _, opt := range opts {
		opt(config)
	}

	c := newCompiler(s)
	g, err := c.compile()
	if err != nil {
		return nil, err
	}
	g.sourceName = config.sourceName

	glog.V(1).Infof("compiled %v: %v rules, %v types, %v global elements", config.sourceName, len(g.rules.rules), len(g.typeList), len(g.globalElements))

	return g, nil
}

type elementKey struct {
	name     *name.Context
	typ      *schema.Type
	nillable bool
}

type compiler struct {
	s           *schema.Schema
	g           *Grammar
	w           *name.TableWriter
	anyType     *schema.Type
	simpleTypes map[schema.Datatype]*schema.Type
	types       map[*schema.Type]*TypeGrammar
	pending     []*schema.Type
	elements    map[elementKey]*ElementGrammar
	ordinals    map[schema.Term]int
}

func newCompiler(s *schema.Schema) *compiler {
	return &compiler{
		s:           s,
		anyType:     schema.AnyType(),
		simpleTypes: map[schema.Datatype]*schema.Type{},
		types:       map[*schema.Type]*TypeGrammar{},
		elements:    map[elementKey]*ElementGrammar{},
	}
}

func (c *compiler) compile() (*Grammar, error) {
	names := name.NewSchemaTable(schema.BuiltinTypeNames(), c.s.Names())
	c.g = newGrammar(names)
	c.g.schemaInformed = true
	c.w = names.Writer()

	for _, a := range c.s.Attributes {
		c.g.attributes[c.name(a.Name)] = a.Type
	}

	builtins := schema.BuiltinTypeNames()
	sort.Strings(builtins)
	for _, local := range builtins {
		dt, ok := schema.Builtin(local)
		if !ok {
			continue
		}
		c.register(c.canonical(schema.SimpleType(dt)))
	}
	c.register(c.anyType)
	for _, t := range c.s.Types {
		if t.Name.IsZero() {
			return nil, errors.Wrap(ErrUndefinedType, "a schema type needs a name")
		}
		c.register(t)
	}
	for _, e := range c.s.Elements {
		c.g.addGlobalElement(c.elementGrammar(e))
	}

	for len(c.pending) > 0 {
		t := c.pending[0]
		c.pending = c.pending[1:]
		err := c.compileType(t)
		if err != nil {
			return nil, err
		}
	}

	c.attachNillableStarts()
	c.g.buildDocumentRules()

	tab, err := newCodeTable(c.g)
	if err != nil {
		return nil, err
	}
	c.g.table = tab

	return c.g, nil
}

func (c *compiler) name(q schema.QName) *name.Context {
	return c.w.Intern(q.URI, q.Local)
}

// canonical maps plain simple types to one instance per datatype so elements
// of the same simple type share a grammar.
func (c *compiler) canonical(t *schema.Type) *schema.Type {
	if t == nil {
		return c.anyType
	}
	if !t.Simple || len(t.Attributes) > 0 || t.AttributeWildcard != nil {
		return t
	}
	if !t.Name.IsZero() && t.Name != t.Datatype.Name {
		return t
	}
	if s, ok := c.simpleTypes[t.Datatype]; ok {
		return s
	}
	c.simpleTypes[t.Datatype] = t
	return t
}

func (c *compiler) register(t *schema.Type) {
	tg := c.typeGrammar(t)
	if !t.Name.IsZero() {
		if _, ok := c.g.types[t.Name]; !ok {
			c.g.types[t.Name] = tg
		}
	}
}

func (c *compiler) typeGrammar(t *schema.Type) *TypeGrammar {
	t = c.canonical(t)
	if tg, ok := c.types[t]; ok {
		return tg
	}
	tg := &TypeGrammar{
		Name:             t.Name,
		HasNamedSubTypes: t.HasNamedSubTypes,
	}
	c.types[t] = tg
	c.g.typeList = append(c.g.typeList, tg)
	c.pending = append(c.pending, t)
	return tg
}

func (c *compiler) elementGrammar(e *schema.ElementDecl) *ElementGrammar {
	t := c.canonical(e.Type)
	n := c.name(e.Name)
	k := elementKey{
		name:     n,
		typ:      t,
		nillable: e.Nillable,
	}
	if eg, ok := c.elements[k]; ok {
		return eg
	}
	eg := &ElementGrammar{
		Name:     n,
		Type:     c.typeGrammar(t),
		Nillable: e.Nillable,
	}
	c.elements[k] = eg
	c.g.elementList = append(c.g.elementList, eg)
	return eg
}

func (c *compiler) numberParticles(p *schema.Particle) {
	switch t := p.Term.(type) {
	case *schema.ElementDecl, *schema.Wildcard:
		if _, ok := c.ordinals[t]; !ok {
			c.ordinals[t] = len(c.ordinals)
		}
	case *schema.ModelGroup:
		for _, q := range t.Particles {
			c.numberParticles(q)
		}
	}
}

func (c *compiler) compileType(t *schema.Type) error {
	tg := c.types[t]
	c.ordinals = map[schema.Term]int{}
	if t.Content != nil {
		c.numberParticles(t.Content)
	}

	b := &protoBuilder{}
	mixed := map[*protoRule]*protoRule{}

	content, err := c.contentProto(b, t)
	if err != nil {
		return err
	}
	entry := b.newRule(RoleStartTag)
	entry.addEpsilon(content.start)
	entry2 := b.newRule(RoleElementContent)
	entry2.addEpsilon(content.start)
	if t.Mixed {
		for _, r := range content.rules {
			mixed[r] = r
		}
		mixed[entry] = entry2
		mixed[entry2] = entry2
	}
	parts := c.attributePhase(b, t)
	parts = append(parts, &proto{
		start: entry,
		rules: append([]*protoRule{entry}, content.rules...),
	})
	main := b.concat(RoleStartTag, parts...)

	emptyParts := c.attributePhase(b, t)
	emptyParts = append(emptyParts, b.empty(RoleStartTag))
	empty := b.concat(RoleStartTag, emptyParts...)
	emptyContent := b.empty(RoleElementContent)

	n := newNormalizer(t.Name, mixed)
	start := n.state([]*protoRule{main.start})
	start.first = true
	contentRule := n.state([]*protoRule{entry2})
	emptyStart := n.state([]*protoRule{empty.start})
	emptyEnd := n.state([]*protoRule{emptyContent.start})
	err = n.determinize()
	if err != nil {
		return err
	}
	assignContent(start, contentRule)
	assignContent(emptyStart, emptyEnd)

	blocks := minimize(n.order)
	out := emit(c.g.rules, n.order, blocks, tg)
	tg.Start = out[start.block]
	tg.Content = out[contentRule.block]
	tg.Empty = out[emptyStart.block]

	glog.V(1).Infof("type %v: %v proto rules, %v rules", t.Name, len(b.rules), blocks)

	return nil
}

func (c *compiler) attributePhase(b *protoBuilder, t *schema.Type) []*proto {
	uses := append([]*schema.AttributeUse{}, t.Attributes...)
	sort.SliceStable(uses, func(i, j int) bool {
		return uses[i].Name.Less(uses[j].Name)
	})
	var wild []Event
	if t.AttributeWildcard != nil {
		wild = attributeWildcardEvents(t.AttributeWildcard)
	}

	var ps []*proto
	for _, u := range uses {
		p := b.terminal(RoleStartTag, Event{
			Kind:     EventAttribute,
			Name:     c.name(u.Name),
			Datatype: u.Type,
		})
		if !u.Required {
			p.start.addEndElement()
		}
		for _, w := range wild {
			p.start.add(w, p.start)
		}
		ps = append(ps, p)
	}
	if len(wild) > 0 {
		r0 := b.newRule(RoleStartTag)
		for _, w := range wild {
			r0.add(w, r0)
		}
		r0.addEndElement()
		ps = append(ps, &proto{
			start: r0,
			rules: []*protoRule{r0},
		})
	}
	return ps
}

func attributeWildcardEvents(w *schema.Wildcard) []Event {
	if w.Constraint != schema.NamespaceList {
		return []Event{
			{Kind: EventAttributeGeneric},
		}
	}
	var evs []Event
	for _, uri := range w.URIs {
		evs = append(evs, Event{
			Kind: EventAttributeNS,
			URI:  uri,
		})
	}
	return evs
}

func elementWildcardEvents(w *schema.Wildcard, ordinal int) []Event {
	if w.Constraint != schema.NamespaceList {
		return []Event{
			{Kind: EventStartElementGeneric, ordinal: ordinal},
		}
	}
	var evs []Event
	for _, uri := range w.URIs {
		evs = append(evs, Event{
			Kind:    EventStartElementNS,
			URI:     uri,
			ordinal: ordinal,
		})
	}
	return evs
}

func (c *compiler) contentProto(b *protoBuilder, t *schema.Type) (*proto, error) {
	switch {
	case t.Simple:
		return b.terminal(RoleElementContent, Event{
			Kind:     EventCharacters,
			Datatype: t.Datatype,
		}), nil
	case t.Content == nil:
		return b.empty(RoleElementContent), nil
	}
	return c.particle(b, t.Content)
}

func (c *compiler) particle(b *protoBuilder, p *schema.Particle) (*proto, error) {
	if p.Min < 0 || (p.Max != schema.Unbounded && p.Max < p.Min) {
		return nil, errors.Wrapf(ErrInvalidOccurs, "minOccurs: %v, maxOccurs: %v", p.Min, p.Max)
	}
	var err error
	pr := b.repeat(RoleElementContent, p.Min, p.Max, func() *proto {
		t, e := c.term(b, p.Term)
		if e != nil {
			err = e
			return b.empty(RoleElementContent)
		}
		return t
	})
	if err != nil {
		return nil, err
	}
	return pr, nil
}

func (c *compiler) term(b *protoBuilder, term schema.Term) (*proto, error) {
	switch t := term.(type) {
	case *schema.ElementDecl:
		eg := c.elementGrammar(t)
		return b.terminal(RoleElementContent, Event{
			Kind:    EventStartElement,
			Name:    eg.Name,
			Element: eg,
			ordinal: c.ordinals[t],
		}), nil
	case *schema.Wildcard:
		return b.terminal(RoleElementContent, elementWildcardEvents(t, c.ordinals[t])...), nil
	case *schema.ModelGroup:
		ps := make([]*proto, 0, len(t.Particles))
		for _, q := range t.Particles {
			p, err := c.particle(b, q)
			if err != nil {
				return nil, err
			}
			ps = append(ps, p)
		}
		switch t.Kind {
		case schema.GroupSequence:
			return b.concat(RoleElementContent, ps...), nil
		case schema.GroupChoice:
			return b.choice(RoleElementContent, ps...), nil
		case schema.GroupAll:
			return b.all(RoleElementContent, ps...), nil
		}
	}
	return nil, errors.Errorf("unknown term: %T", term)
}

// attachNillableStarts gives nillable elements a copy of their type's first
// rule that admits xsi:nil in strict mode.
func (c *compiler) attachNillableStarts() {
	clones := map[*TypeGrammar]*Rule{}
	for _, eg := range c.g.elementList {
		if !eg.Nillable {
			continue
		}
		if r, ok := clones[eg.Type]; ok {
			eg.start = r
			continue
		}
		orig := eg.Type.Start
		r := c.g.rules.newRule(orig.Role)
		r.Type = orig.Type
		r.First = true
		r.Nillable = true
		r.Content = orig.Content
		for _, p := range orig.prods {
			if p.Next == orig.ID {
				p.Next = r.ID
			}
			r.prods = append(r.prods, p)
		}
		clones[eg.Type] = r
		eg.start = r
	}
}
