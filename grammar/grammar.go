package grammar

import (
	"sort"

	"github.com/nihei9/exigram/grammar/name"
	"github.com/nihei9/exigram/schema"
)

// ElementGrammar is the grammar an element's content is coded with.
type ElementGrammar struct {
	Name *name.Context

	// Type is nil for built-in element grammars.
	Type     *TypeGrammar
	Nillable bool

	start *Rule
}

func (e *ElementGrammar) Start() *Rule {
	if e.start != nil {
		return e.start
	}
	return e.Type.Start
}

func (e *ElementGrammar) IsBuiltIn() bool {
	return e.Type == nil
}

// TypeGrammar holds the entry rules of a compiled type.
type TypeGrammar struct {
	Name             schema.QName
	HasNamedSubTypes bool

	// Start is the first rule of the type.
	Start *Rule

	// Content is the rule undeclared content in a start tag continues with.
	Content *Rule

	// Empty is the grammar of elements having xsi:nil="true".
	Empty *Rule
}

// Grammar is immutable once built and can be shared between coders. Learning
// happens in a Session.
type Grammar struct {
	names          *name.Table
	rules          *arena
	document       *Rule
	fragment       *Rule
	elements       map[*name.Context]*ElementGrammar
	globalElements []*ElementGrammar
	attributes     map[*name.Context]schema.Datatype
	types          map[schema.QName]*TypeGrammar
	typeList       []*TypeGrammar
	elementList    []*ElementGrammar
	schemaInformed bool
	table          *codeTable
	sourceName     string
}

func newGrammar(names *name.Table) *Grammar {
	return &Grammar{
		names:      names,
		rules:      &arena{},
		elements:   map[*name.Context]*ElementGrammar{},
		attributes: map[*name.Context]schema.Datatype{},
		types:      map[schema.QName]*TypeGrammar{},
	}
}

// NewBuiltInGrammar returns the grammar used to code documents without a
// schema.
func NewBuiltInGrammar() *Grammar {
	g := newGrammar(name.NewTable())
	g.buildDocumentRules()
	return g
}

func (g *Grammar) IsSchemaInformed() bool {
	return g.schemaInformed
}

func (g *Grammar) SourceName() string {
	return g.sourceName
}

func (g *Grammar) Names() *name.TableReader {
	return g.names.Reader()
}

func (g *Grammar) Document() *Rule {
	return g.document
}

func (g *Grammar) Fragment() *Rule {
	return g.fragment
}

func (g *Grammar) Rule(id RuleID) *Rule {
	return g.rules.rule(id)
}

func (g *Grammar) Rules() []*Rule {
	return g.rules.rules
}

func (g *Grammar) GlobalElement(n *name.Context) (*ElementGrammar, bool) {
	e, ok := g.elements[n]
	return e, ok
}

// GlobalElements returns the global element grammars sorted by local-name
// and then by uri.
func (g *Grammar) GlobalElements() []*ElementGrammar {
	return g.globalElements
}

func (g *Grammar) GlobalAttribute(n *name.Context) (schema.Datatype, bool) {
	dt, ok := g.attributes[n]
	return dt, ok
}

func (g *Grammar) TypeGrammar(q schema.QName) (*TypeGrammar, bool) {
	t, ok := g.types[q]
	return t, ok
}

func (g *Grammar) TypeGrammars() []*TypeGrammar {
	return g.typeList
}

func (g *Grammar) ElementGrammars() []*ElementGrammar {
	return g.elementList
}

func (g *Grammar) addGlobalElement(e *ElementGrammar) {
	g.elements[e.Name] = e
	g.globalElements = append(g.globalElements, e)
	sort.SliceStable(g.globalElements, func(i, j int) bool {
		return g.globalElements[i].Name.Less(g.globalElements[j].Name)
	})
}

// buildDocumentRules makes the document and fragment grammars. Schema-informed
// grammars list their global elements ahead of the generic start element.
func (g *Grammar) buildDocumentRules() {
	var ses []Event
	for i, e := range g.globalElements {
		ses = append(ses, Event{
			Kind:    EventStartElement,
			Name:    e.Name,
			Element: e,
			ordinal: i,
		})
	}

	doc := g.rules.newRule(RoleDocument)
	docContent := g.rules.newRule(RoleDocContent)
	docEnd := g.rules.newRule(RoleDocEnd)
	doc.prods = []Production{
		{Event: Event{Kind: EventStartDocument}, Next: docContent.ID},
	}
	for _, se := range ses {
		docContent.prods = append(docContent.prods, Production{Event: se, Next: docEnd.ID})
	}
	docContent.prods = append(docContent.prods, Production{
		Event: Event{Kind: EventStartElementGeneric, ordinal: len(ses)},
		Next:  docEnd.ID,
	})
	docEnd.prods = []Production{
		{Event: Event{Kind: EventEndDocument}, Next: NoRule},
	}

	frag := g.rules.newRule(RoleFragment)
	fragContent := g.rules.newRule(RoleFragmentContent)
	frag.prods = []Production{
		{Event: Event{Kind: EventStartDocument}, Next: fragContent.ID},
	}
	for _, se := range ses {
		fragContent.prods = append(fragContent.prods, Production{Event: se, Next: fragContent.ID})
	}
	fragContent.prods = append(fragContent.prods,
		Production{
			Event: Event{Kind: EventStartElementGeneric, ordinal: len(ses)},
			Next:  fragContent.ID,
		},
		Production{
			Event: Event{Kind: EventEndDocument},
			Next:  NoRule,
		},
	)

	g.document = doc
	g.fragment = frag
}
