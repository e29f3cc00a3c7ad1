package grammar

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/nihei9/exigram/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWidth(t *testing.T) {
	tests := []struct {
		n     int
		width int
	}{
		{n: 0, width: 0},
		{n: 1, width: 0},
		{n: 2, width: 1},
		{n: 3, width: 2},
		{n: 4, width: 2},
		{n: 5, width: 3},
		{n: 8, width: 3},
		{n: 9, width: 4},
	}
	for _, tt := range tests {
		if w := Width(tt.n); w != tt.width {
			t.Fatalf("unexpected width of %v; want: %v, got: %v", tt.n, tt.width, w)
		}
	}
}

func TestFidelity_Validate(t *testing.T) {
	tests := []struct {
		caption  string
		fidelity Fidelity
		err      error
	}{
		{
			caption:  "everything preserved",
			fidelity: Fidelity{Comments: true, ProcessingInstructions: true, DTD: true, Prefixes: true, LexicalValues: true, SelfContained: true},
		},
		{
			caption:  "strict with lexical values",
			fidelity: Fidelity{Strict: true, LexicalValues: true},
		},
		{
			caption:  "strict with comments",
			fidelity: Fidelity{Strict: true, Comments: true},
			err:      ErrStrictFidelity,
		},
		{
			caption:  "strict with self-contained elements",
			fidelity: Fidelity{Strict: true, SelfContained: true},
			err:      ErrStrictFidelity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			err := tt.fidelity.Validate()
			if err != tt.err {
				t.Fatalf("unexpected error; want: %v, got: %v", tt.err, err)
			}
		})
	}
}

func TestDeriveCodes_DocumentRules(t *testing.T) {
	g := NewBuiltInGrammar()
	f := Fidelity{Comments: true, ProcessingInstructions: true, DTD: true}

	doc := DeriveCodes(g.Document(), f)
	assert.Equal(t, 0, doc.FirstWidth)
	assert.Empty(t, doc.Second)

	content := DeriveCodes(g.Document().Next(0), f)
	assert.Equal(t, 1, content.FirstWidth)
	assert.Equal(t, 1, content.SecondWidth)
	end := DeriveCodes(g.Document().Next(0).Next(0), f)
	tests := []struct {
		codes *EventCodes
		kind  EventKind
		code  string
	}{
		{codes: content, kind: EventDocType, code: "1.0"},
		{codes: content, kind: EventComment, code: "1.1.0"},
		{codes: content, kind: EventProcessingInstruction, code: "1.1.1"},
		{codes: end, kind: EventComment, code: "1.0"},
		{codes: end, kind: EventProcessingInstruction, code: "1.1"},
	}
	for _, tt := range tests {
		c, ok := tt.codes.Undeclared(tt.kind)
		if !ok {
			t.Fatalf("%v has no code", tt.kind)
		}
		if c.String() != tt.code {
			t.Fatalf("unexpected code of %v; want: %v, got: %v", tt.kind, tt.code, c)
		}
	}
}

func TestDeriveCodes_BuiltInElement(t *testing.T) {
	g := NewBuiltInGrammar()
	s := g.NewSession()
	n := s.Names().Writer().Intern("", "note")
	e := s.BuiltInElementGrammar(n)
	startTag := e.Start()
	content := startTag.ContentRule()

	tests := []struct {
		caption     string
		rule        *Rule
		fidelity    Fidelity
		firstWidth  int
		secondWidth int
		codes       map[EventKind]string
	}{
		{
			caption:     "start tag without fidelity options",
			rule:        startTag,
			firstWidth:  0,
			secondWidth: 2,
			codes: map[EventKind]string{
				EventEndElement:          "0.0",
				EventAttributeGeneric:    "0.1",
				EventStartElementGeneric: "0.2",
				EventCharactersGeneric:   "0.3",
			},
		},
		{
			caption:     "start tag preserving everything",
			rule:        startTag,
			fidelity:    Fidelity{Comments: true, ProcessingInstructions: true, DTD: true, Prefixes: true, SelfContained: true},
			firstWidth:  0,
			secondWidth: 3,
			codes: map[EventKind]string{
				EventEndElement:            "0.0",
				EventAttributeGeneric:      "0.1",
				EventNamespaceDeclaration:  "0.2",
				EventSelfContained:         "0.3",
				EventStartElementGeneric:   "0.4",
				EventCharactersGeneric:     "0.5",
				EventEntityReference:       "0.6",
				EventComment:               "0.7.0",
				EventProcessingInstruction: "0.7.1",
			},
		},
		{
			caption:     "element content",
			rule:        content,
			firstWidth:  1,
			secondWidth: 1,
			codes: map[EventKind]string{
				EventStartElementGeneric: "1.0",
				EventCharactersGeneric:   "1.1",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			codes := DeriveCodes(tt.rule, tt.fidelity)
			assert.Equal(t, tt.firstWidth, codes.FirstWidth)
			assert.Equal(t, tt.secondWidth, codes.SecondWidth)
			for k, want := range tt.codes {
				c, ok := codes.Undeclared(k)
				require.True(t, ok, "%v has no code", k)
				assert.Equal(t, want, c.String(), "%v", k)
			}
			_, ok := codes.Undeclared(EventAttributeXsiType)
			assert.False(t, ok)
		})
	}
}

func TestDeriveCodes_SchemaElement(t *testing.T) {
	str := builtin("string")
	_, tg := compileType(t, &schema.Type{
		Attributes: []*schema.AttributeUse{
			{Name: qn("sku"), Type: str, Required: true},
			{Name: qn("color"), Type: str},
		},
		AttributeWildcard: &schema.Wildcard{
			Constraint: schema.NamespaceAny,
		},
	})

	codes := DeriveCodes(tg.Start, Fidelity{})
	assert.Equal(t, 2, codes.FirstWidth)
	assert.Equal(t, 3, codes.SecondWidth)

	tests := []struct {
		kind EventKind
		code string
	}{
		{kind: EventEndElement, code: "3.0"},
		{kind: EventAttributeXsiType, code: "3.1"},
		{kind: EventAttributeXsiNil, code: "3.2"},
		{kind: EventAttributeGeneric, code: "3.3"},
		{kind: EventStartElementGeneric, code: "3.5"},
		{kind: EventCharactersGeneric, code: "3.6"},
	}
	for _, tt := range tests {
		c, ok := codes.Undeclared(tt.kind)
		require.True(t, ok, "%v has no code", tt.kind)
		assert.Equal(t, tt.code, c.String(), "%v", tt.kind)
	}

	// AT(color) and AT(sku) with invalid values.
	c, ok := codes.Invalid(0)
	require.True(t, ok)
	assert.Equal(t, "3.4.0", c.String())
	assert.Equal(t, [3]int{2, 3, 1}, c.Widths)
	c, ok = codes.Invalid(1)
	require.True(t, ok)
	assert.Equal(t, "3.4.1", c.String())
	_, ok = codes.Invalid(2)
	assert.False(t, ok)

	strict := DeriveCodes(tg.Start, Fidelity{Strict: true})
	assert.Empty(t, strict.Second)
	assert.Equal(t, 2, strict.FirstWidth)
}

func TestEventCodes_Lookup(t *testing.T) {
	_, tg := compileType(t, &schema.Type{
		Attributes: []*schema.AttributeUse{
			{Name: qn("a"), Type: builtin("string")},
		},
	})
	codes := DeriveCodes(tg.Start, Fidelity{Comments: true, ProcessingInstructions: true})

	tests := []struct {
		caption  string
		parts    []int
		ok       bool
		complete bool
		kind     EventKind
	}{
		{caption: "declared", parts: []int{0}, ok: true, complete: true, kind: EventAttribute},
		{caption: "escape to the second level", parts: []int{2}, ok: true},
		{caption: "undeclared", parts: []int{2, 0}, ok: true, complete: true, kind: EventAttributeXsiType},
		{caption: "escape to the third level", parts: []int{2, 3}, ok: true},
		{caption: "invalid value", parts: []int{2, 3, 0}, ok: true, complete: true, kind: EventAttribute},
		{caption: "out of range", parts: []int{3}},
		{caption: "too many parts", parts: []int{0, 0}},
		{caption: "no such member", parts: []int{2, 3, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			c, complete, ok := codes.Lookup(tt.parts)
			if ok != tt.ok || complete != tt.complete {
				t.Fatalf("unexpected result; want: %v/%v, got: %v/%v", tt.ok, tt.complete, ok, complete)
			}
			if complete && c.Kind != tt.kind {
				t.Fatalf("unexpected kind; want: %v, got: %v", tt.kind, c.Kind)
			}
		})
	}

	// Every code the layout hands out resolves to itself.
	var all []Code
	for i := range codes.First {
		c, _ := codes.Declared(i)
		all = append(all, c)
	}
	for _, k := range []EventKind{EventAttributeXsiType, EventAttributeXsiNil, EventAttributeGeneric, EventStartElementGeneric, EventCharactersGeneric, EventComment, EventProcessingInstruction} {
		c, ok := codes.Undeclared(k)
		require.True(t, ok, "%v", k)
		all = append(all, c)
	}
	for _, c := range all {
		got, complete, ok := codes.Lookup(c.Parts[:c.Level])
		require.True(t, ok && complete, "%v", c)
		assert.Equal(t, c, got)
		for i := 0; i < c.Level; i++ {
			assert.Equal(t, c.Widths[i], codes.NextWidth(c.Parts[:i]))
		}
	}
}

// legalEvents lists the event kinds r must be able to code under f besides
// the events of its own productions.
func legalEvents(r *Rule, f Fidelity) []EventKind {
	var ks []EventKind
	misc := func() {
		if f.Comments {
			ks = append(ks, EventComment)
		}
		if f.ProcessingInstructions {
			ks = append(ks, EventProcessingInstruction)
		}
	}
	switch r.Role {
	case RoleDocContent:
		if f.DTD {
			ks = append(ks, EventDocType)
		}
		misc()
		return ks
	case RoleDocEnd, RoleFragmentContent:
		misc()
		return ks
	case RoleStartTag, RoleElementContent:
	default:
		return nil
	}

	if f.Strict && !r.BuiltIn {
		if r.First && r.Type != nil && r.Type.HasNamedSubTypes {
			ks = append(ks, EventAttributeXsiType)
		}
		if r.First && r.Nillable {
			ks = append(ks, EventAttributeXsiNil)
		}
		return ks
	}

	ks = append(ks, EventEndElement, EventStartElementGeneric, EventCharactersGeneric)
	if r.Role == RoleStartTag {
		ks = append(ks, EventAttributeGeneric)
	}
	if r.First {
		if !r.BuiltIn {
			ks = append(ks, EventAttributeXsiType, EventAttributeXsiNil)
		}
		if f.Prefixes {
			ks = append(ks, EventNamespaceDeclaration)
		}
		if f.SelfContained {
			ks = append(ks, EventSelfContained)
		}
	}
	if f.DTD {
		ks = append(ks, EventEntityReference)
	}
	misc()
	return ks
}

// codeOf returns the code of k in r, preferring a production declaring it.
func codeOf(r *Rule, codes *EventCodes, k EventKind) (Code, bool) {
	if num, ok := r.Find(func(e Event) bool {
		return e.Kind == k
	}); ok {
		return codes.Declared(num)
	}
	return codes.Undeclared(k)
}

func checkLookup(t *testing.T, codes *EventCodes, c Code) {
	t.Helper()
	for i := 0; i < c.Level; i++ {
		if w := codes.NextWidth(c.Parts[:i]); w != c.Widths[i] {
			t.Fatalf("unexpected width of part #%v of %v; want: %v, got: %v", i, c, c.Widths[i], w)
		}
		if i == 0 {
			continue
		}
		_, complete, ok := codes.Lookup(c.Parts[:i])
		if !ok || complete {
			t.Fatalf("the prefix %v of %v must continue; ok: %v, complete: %v", c.Parts[:i], c, ok, complete)
		}
	}
	got, complete, ok := codes.Lookup(c.Parts[:c.Level])
	if !ok || !complete {
		t.Fatalf("%v does not resolve; ok: %v, complete: %v", c, ok, complete)
	}
	if got != c {
		t.Fatalf("unexpected slot; want: %+v, got: %+v", c, got)
	}
}

// totalityRules collects rules of every shape a coder meets.
func totalityRules(t *testing.T) map[string]*Rule {
	t.Helper()
	rules := map[string]*Rule{}
	add := func(prefix string, rs []*Rule) {
		for _, r := range rs {
			rules[fmt.Sprintf("%v #%v", prefix, r.ID)] = r
		}
	}

	g := NewBuiltInGrammar()
	add("built-in", g.Rules())

	shop, err := Compile(productSchema())
	require.NoError(t, err)
	add("shop", shop.Rules())

	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		typ := &schema.Type{
			Name:    qn(fmt.Sprintf("T%v", i)),
			Content: randomParticle(rnd, 3),
			Mixed:   rnd.Intn(4) == 0,
		}
		if rnd.Intn(2) == 0 {
			typ.Attributes = append(typ.Attributes, &schema.AttributeUse{
				Name: qn("a"),
				Type: builtin("string"),
			})
		}
		if rnd.Intn(3) == 0 {
			typ.AttributeWildcard = &schema.Wildcard{Constraint: schema.NamespaceAny}
		}
		rg, err := Compile(&schema.Schema{Types: []*schema.Type{typ}})
		require.NoError(t, err, "type #%v", i)
		add(fmt.Sprintf("random %v", i), rg.Rules())
	}

	s := g.NewSession(MaxBuiltInElementGrammars(2))
	w := s.Names().Writer()
	fresh := s.BuiltInElementGrammar(w.Intern("", "fresh")).Start()
	learned := s.BuiltInElementGrammar(w.Intern("", "learned")).Start()
	shared := s.BuiltInElementGrammar(w.Intern("", "shared")).Start()
	require.True(t, s.LearnUndeclared(learned, Event{Kind: EventAttribute, Name: w.Intern("", "id")}))
	require.True(t, s.LearnUndeclared(learned, Event{Kind: EventStartElement, Name: w.Intern("", "x")}))
	require.True(t, s.LearnUndeclared(learned, Event{Kind: EventEndElement}))
	require.True(t, s.LearnUndeclared(learned.ContentRule(), Event{Kind: EventStartElement, Name: w.Intern("", "y")}))
	require.True(t, s.LearnUndeclared(learned.ContentRule(), Event{Kind: EventCharactersGeneric}))
	add("session fresh", []*Rule{fresh, fresh.ContentRule()})
	add("session learned", []*Rule{learned, learned.ContentRule()})
	add("session shared", []*Rule{shared, shared.ContentRule()})

	return rules
}

func TestDeriveCodes_EveryLegalEventHasACode(t *testing.T) {
	var fidelities []Fidelity
	for bits := 0; bits < 1<<7; bits++ {
		f := Fidelity{
			Comments:               bits&(1<<0) != 0,
			ProcessingInstructions: bits&(1<<1) != 0,
			DTD:                    bits&(1<<2) != 0,
			Prefixes:               bits&(1<<3) != 0,
			LexicalValues:          bits&(1<<4) != 0,
			SelfContained:          bits&(1<<5) != 0,
			Strict:                 bits&(1<<6) != 0,
		}
		if f.Validate() != nil {
			continue
		}
		fidelities = append(fidelities, f)
	}
	require.Len(t, fidelities, 66)

	for caption, r := range totalityRules(t) {
		t.Run(caption, func(t *testing.T) {
			for _, f := range fidelities {
				codes := DeriveCodes(r, f)
				for num := 0; num < r.Len(); num++ {
					c, ok := codes.Declared(num)
					if !ok {
						t.Fatalf("production #%v of %v has no code under %+v", num, r, f)
					}
					assert.Equal(t, num, c.Production)
					checkLookup(t, codes, c)
				}
				for _, k := range legalEvents(r, f) {
					c, ok := codeOf(r, codes, k)
					if !ok {
						t.Fatalf("%v has no code in %v under %+v", k, r, f)
					}
					checkLookup(t, codes, c)
				}
				if r.BuiltIn || f.Strict || r.Role != RoleStartTag {
					continue
				}
				for num := 0; num < r.Len(); num++ {
					if r.Production(num).Event.Kind != EventAttribute {
						continue
					}
					c, ok := codes.Invalid(num)
					if !ok {
						t.Fatalf("%v of %v has no code for an invalid value under %+v", r.Production(num).Event, r, f)
					}
					assert.Equal(t, num, c.Production)
					checkLookup(t, codes, c)
				}
			}
		})
	}
}
