package grammar

import (
	"sort"

	"github.com/nihei9/exigram/grammar/name"
	"github.com/nihei9/exigram/schema"
	spec "github.com/nihei9/exigram/spec/grammar"
	"github.com/pkg/errors"
)

var roleNames = map[RuleRole]string{}

func init() {
	for r := RoleDocument; r <= RoleElementContent; r++ {
		roleNames[r] = r.String()
	}
}

func parseRole(s string) (RuleRole, bool) {
	for r, n := range roleNames {
		if n == s {
			return r, true
		}
	}
	return 0, false
}

var kindNames = map[string]schema.Kind{}

func init() {
	for k := schema.KindString; k <= schema.KindList; k++ {
		kindNames[k.String()] = k
	}
}

func exportDatatype(dt schema.Datatype) *spec.Datatype {
	return &spec.Datatype{
		URI:   dt.Name.URI,
		Local: dt.Name.Local,
		Kind:  dt.Kind.String(),
	}
}

func loadDatatype(dt *spec.Datatype) (schema.Datatype, error) {
	if dt == nil {
		return schema.Untyped, nil
	}
	k, ok := kindNames[dt.Kind]
	if !ok {
		return schema.Datatype{}, errors.Wrapf(ErrInvalidGrammar, "unknown datatype kind: %v", dt.Kind)
	}
	return schema.Datatype{
		Name: schema.QName{
			URI:   dt.URI,
			Local: dt.Local,
		},
		Kind: k,
	}, nil
}

func exportName(n *name.Context) spec.QName {
	return spec.QName{
		URI:       n.URIID,
		LocalName: n.LocalNameID,
	}
}

func hasDatatype(k EventKind) bool {
	return k == EventAttribute || k == EventCharacters || k == EventCharactersGeneric
}

// Export converts g into its portable form.
func Export(g *Grammar) *spec.CompiledGrammar {
	cg := &spec.CompiledGrammar{
		Name:           g.sourceName,
		SchemaInformed: g.schemaInformed,
		Document:       int(g.document.ID),
		Fragment:       int(g.fragment.ID),
	}

	for _, u := range g.names.Reader().URIs() {
		eu := &spec.URI{
			URI:      u.URI,
			Prefixes: append([]string{}, u.Prefixes()...),
		}
		for _, l := range u.LocalNames() {
			eu.LocalNames = append(eu.LocalNames, l.LocalName)
		}
		cg.URIs = append(cg.URIs, eu)
	}

	typeIdx := map[*TypeGrammar]int{}
	for i, t := range g.typeList {
		typeIdx[t] = i
		cg.Types = append(cg.Types, &spec.Type{
			URI:              t.Name.URI,
			Local:            t.Name.Local,
			HasNamedSubTypes: t.HasNamedSubTypes,
			Start:            int(t.Start.ID),
			Content:          int(t.Content.ID),
			Empty:            int(t.Empty.ID),
		})
	}

	elemIdx := map[*ElementGrammar]int{}
	for i, e := range g.elementList {
		elemIdx[e] = i
		cg.Elements = append(cg.Elements, &spec.Element{
			Name:     exportName(e.Name),
			Type:     typeIdx[e.Type],
			Nillable: e.Nillable,
			Start:    int(e.Start().ID),
		})
	}
	for _, e := range g.globalElements {
		cg.GlobalElements = append(cg.GlobalElements, elemIdx[e])
	}

	var attrs []*name.Context
	for n := range g.attributes {
		attrs = append(attrs, n)
	}
	sort.Slice(attrs, func(i, j int) bool {
		return attrs[i].Less(attrs[j])
	})
	for _, n := range attrs {
		cg.Attributes = append(cg.Attributes, &spec.Attribute{
			Name:     exportName(n),
			Datatype: exportDatatype(g.attributes[n]),
		})
	}

	for _, r := range g.rules.rules {
		er := &spec.Rule{
			ID:       int(r.ID),
			Role:     r.Role.String(),
			Type:     -1,
			First:    r.First,
			Nillable: r.Nillable,
			Content:  int(r.Content),
		}
		if r.Type != nil {
			er.Type = typeIdx[r.Type]
		}
		for _, p := range r.prods {
			ep := &spec.Production{
				Event:   p.Event.Kind.String(),
				URI:     p.Event.URI,
				Element: -1,
				Ordinal: p.Event.ordinal,
				Next:    int(p.Next),
			}
			if p.Event.Name != nil {
				n := exportName(p.Event.Name)
				ep.Name = &n
			}
			if p.Event.Element != nil {
				ep.Element = elemIdx[p.Event.Element]
			}
			if hasDatatype(p.Event.Kind) {
				ep.Datatype = exportDatatype(p.Event.Datatype)
			}
			er.Productions = append(er.Productions, ep)
		}
		cg.Rules = append(cg.Rules, er)
	}

	return cg
}

type loader struct {
	cg    *spec.CompiledGrammar
	g     *Grammar
	names [][]*name.Context
}

// Load rebuilds a grammar from its portable form.
func Load(cg *spec.CompiledGrammar) (*Grammar, error) {
	l := &loader{
		cg: cg,
	}
	g, err := l.load()
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (l *loader) name(q *spec.QName) (*name.Context, error) {
	if q == nil || q.URI < 0 || q.URI >= len(l.names) || q.LocalName < 0 || q.LocalName >= len(l.names[q.URI]) {
		return nil, errors.Wrapf(ErrInvalidGrammar, "unknown name: %+v", q)
	}
	return l.names[q.URI][q.LocalName], nil
}

func (l *loader) rule(id int) (*Rule, error) {
	r := l.g.rules.rule(RuleID(id))
	if r == nil {
		return nil, errors.Wrapf(ErrInvalidGrammar, "unknown rule: %v", id)
	}
	return r, nil
}

func (l *loader) load() (*Grammar, error) {
	cg := l.cg
	tab := name.NewTable()
	w := tab.Writer()
	for i, u := range cg.URIs {
		uc := w.InternURI(u.URI)
		if uc.ID != i {
			return nil, errors.Wrapf(ErrInvalidGrammar, "uri %v has id %v; want: %v", u.URI, uc.ID, i)
		}
		for _, p := range u.Prefixes {
			w.InternPrefix(uc.ID, p)
		}
		var locals []*name.Context
		for j, local := range u.LocalNames {
			n := w.Intern(u.URI, local)
			if n.LocalNameID != j {
				return nil, errors.Wrapf(ErrInvalidGrammar, "local name %v has id %v; want: %v", local, n.LocalNameID, j)
			}
			locals = append(locals, n)
		}
		l.names = append(l.names, locals)
	}

	g := newGrammar(tab)
	g.schemaInformed = cg.SchemaInformed
	g.sourceName = cg.Name
	l.g = g

	for range cg.Rules {
		g.rules.newRule(RoleDocument)
	}

	for _, et := range cg.Types {
		t := &TypeGrammar{
			Name: schema.QName{
				URI:   et.URI,
				Local: et.Local,
			},
			HasNamedSubTypes: et.HasNamedSubTypes,
		}
		var err error
		if t.Start, err = l.rule(et.Start); err != nil {
			return nil, err
		}
		if t.Content, err = l.rule(et.Content); err != nil {
			return nil, err
		}
		if t.Empty, err = l.rule(et.Empty); err != nil {
			return nil, err
		}
		g.typeList = append(g.typeList, t)
		if !t.Name.IsZero() {
			g.types[t.Name] = t
		}
	}

	for _, ee := range cg.Elements {
		n, err := l.name(&ee.Name)
		if err != nil {
			return nil, err
		}
		if ee.Type < 0 || ee.Type >= len(g.typeList) {
			return nil, errors.Wrapf(ErrInvalidGrammar, "unknown type: %v", ee.Type)
		}
		e := &ElementGrammar{
			Name:     n,
			Type:     g.typeList[ee.Type],
			Nillable: ee.Nillable,
		}
		start, err := l.rule(ee.Start)
		if err != nil {
			return nil, err
		}
		if start != e.Type.Start {
			e.start = start
		}
		g.elementList = append(g.elementList, e)
	}
	for _, i := range cg.GlobalElements {
		if i < 0 || i >= len(g.elementList) {
			return nil, errors.Wrapf(ErrInvalidGrammar, "unknown element: %v", i)
		}
		g.addGlobalElement(g.elementList[i])
	}

	for _, ea := range cg.Attributes {
		n, err := l.name(&ea.Name)
		if err != nil {
			return nil, err
		}
		dt, err := loadDatatype(ea.Datatype)
		if err != nil {
			return nil, err
		}
		g.attributes[n] = dt
	}

	for i, er := range cg.Rules {
		if er.ID != i {
			return nil, errors.Wrapf(ErrInvalidGrammar, "rule #%v has id %v", i, er.ID)
		}
		if err := l.loadRule(g.rules.rules[i], er); err != nil {
			return nil, err
		}
	}

	var err error
	if g.document, err = l.rule(cg.Document); err != nil {
		return nil, err
	}
	if g.fragment, err = l.rule(cg.Fragment); err != nil {
		return nil, err
	}

	if g.schemaInformed {
		tab, err := newCodeTable(g)
		if err != nil {
			return nil, err
		}
		g.table = tab
	}

	return g, nil
}

func (l *loader) loadRule(r *Rule, er *spec.Rule) error {
	role, ok := parseRole(er.Role)
	if !ok {
		return errors.Wrapf(ErrInvalidGrammar, "unknown role: %v", er.Role)
	}
	r.Role = role
	r.First = er.First
	r.Nillable = er.Nillable
	r.Content = RuleID(er.Content)
	if er.Type >= 0 {
		if er.Type >= len(l.g.typeList) {
			return errors.Wrapf(ErrInvalidGrammar, "unknown type: %v", er.Type)
		}
		r.Type = l.g.typeList[er.Type]
	}
	for _, ep := range er.Productions {
		kind, ok := ParseEventKind(ep.Event)
		if !ok {
			return errors.Wrapf(ErrInvalidGrammar, "unknown event: %v", ep.Event)
		}
		ev := Event{
			Kind:    kind,
			URI:     ep.URI,
			ordinal: ep.Ordinal,
		}
		if ep.Name != nil {
			n, err := l.name(ep.Name)
			if err != nil {
				return err
			}
			ev.Name = n
		}
		if ep.Element >= 0 {
			if ep.Element >= len(l.g.elementList) {
				return errors.Wrapf(ErrInvalidGrammar, "unknown element: %v", ep.Element)
			}
			ev.Element = l.g.elementList[ep.Element]
		}
		if hasDatatype(kind) {
			dt, err := loadDatatype(ep.Datatype)
			if err != nil {
				return err
			}
			ev.Datatype = dt
		}
		if ep.Next != int(NoRule) {
			if _, err := l.rule(ep.Next); err != nil {
				return err
			}
		}
		r.prods = append(r.prods, Production{
			Event: ev,
			Next:  RuleID(ep.Next),
		})
	}
	return nil
}
