package grammar

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/nihei9/exigram/schema"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_OptionalTrailingElement(t *testing.T) {
	_, tg := compileType(t, &schema.Type{
		Content: seq(elem("A", 1, 1), elem("B", 0, 1)),
	})

	start := tg.Start
	assert.Equal(t, RoleStartTag, start.Role)
	assert.True(t, start.First)
	assert.Equal(t, []string{"SE(A)"}, eventStrings(start))

	afterA := nextOf(t, start, "SE(A)")
	assert.Equal(t, []string{"SE(B)", "EE"}, eventStrings(afterA))
	assert.Equal(t, RoleElementContent, afterA.Role)

	afterB := nextOf(t, afterA, "SE(B)")
	assert.Equal(t, []string{"EE"}, eventStrings(afterB))
}

func TestCompile_AttributesAndWildcard(t *testing.T) {
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

	// color is optional, so the first rule offers sku as well.
	start := tg.Start
	assert.Equal(t, []string{"AT(color)", "AT(sku)", "AT(*)"}, eventStrings(start))

	afterColor := nextOf(t, start, "AT(color)")
	assert.Equal(t, []string{"AT(sku)", "AT(*)"}, eventStrings(afterColor))

	afterSku := nextOf(t, start, "AT(sku)")
	assert.Equal(t, []string{"AT(*)", "EE"}, eventStrings(afterSku))
	assert.Equal(t, afterSku, nextOf(t, afterSku, "AT(*)"))

	wild := nextOf(t, start, "AT(*)")
	assert.Equal(t, []string{"AT(color)", "AT(sku)", "AT(*)"}, eventStrings(wild))
	assert.False(t, wild.First)

	empty := tg.Empty
	assert.Equal(t, []string{"AT(color)", "AT(sku)", "AT(*)"}, eventStrings(empty))
	assert.Equal(t, []string{"AT(*)", "EE"}, eventStrings(nextOf(t, empty, "AT(sku)")))
}

func TestCompile_Particles(t *testing.T) {
	tests := []struct {
		caption string
		content *schema.Particle
		mixed   bool
		// paths lists the events offered after consuming a sequence of start
		// elements from the start rule.
		paths map[string][]string
	}{
		{
			caption: "unbounded repetition loops",
			content: seq(elem("A", 0, schema.Unbounded)),
			paths: map[string][]string{
				"":      {"SE(A)", "EE"},
				"A":     {"SE(A)", "EE"},
				"A,A,A": {"SE(A)", "EE"},
			},
		},
		{
			caption: "bounded repetition stops",
			content: seq(elem("A", 1, 2), elem("B", 1, 1)),
			paths: map[string][]string{
				"":    {"SE(A)"},
				"A":   {"SE(A)", "SE(B)"},
				"A,A": {"SE(B)"},
				"A,B": {"EE"},
			},
		},
		{
			caption: "choice offers every alternative",
			content: group(schema.GroupChoice, 1, 1, elem("B", 1, 1), elem("A", 1, 1)),
			paths: map[string][]string{
				"":  {"SE(B)", "SE(A)"},
				"A": {"EE"},
				"B": {"EE"},
			},
		},
		{
			caption: "optional choice",
			content: group(schema.GroupChoice, 0, 1, elem("A", 1, 1), elem("B", 1, 1)),
			paths: map[string][]string{
				"": {"SE(A)", "SE(B)", "EE"},
			},
		},
		{
			caption: "all accepts any order",
			content: group(schema.GroupAll, 1, 1, elem("A", 1, 1), elem("B", 1, 1)),
			paths: map[string][]string{
				"":    {"SE(A)", "SE(B)", "EE"},
				"B":   {"SE(A)", "SE(B)", "EE"},
				"B,A": {"SE(A)", "SE(B)", "EE"},
			},
		},
		{
			caption: "mixed content accepts characters everywhere",
			content: seq(elem("A", 1, 1)),
			mixed:   true,
			paths: map[string][]string{
				"":  {"SE(A)", "CH(*)"},
				"A": {"EE", "CH(*)"},
			},
		},
		{
			caption: "a shared prefix is merged",
			content: group(schema.GroupChoice, 1, 1,
				seq(elem("A", 1, 1), elem("B", 1, 1)),
				seq(elem("A", 1, 1), elem("C", 1, 1)),
			),
			paths: map[string][]string{
				"":  {"SE(A)"},
				"A": {"SE(B)", "SE(C)"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			_, tg := compileType(t, &schema.Type{
				Content: tt.content,
				Mixed:   tt.mixed,
			})
			for path, want := range tt.paths {
				r := tg.Start
				if path != "" {
					for _, local := range splitPath(path) {
						r = nextOf(t, r, fmt.Sprintf("SE(%v)", local))
					}
				}
				assert.Equal(t, want, eventStrings(r), "path: %q", path)
			}
		})
	}
}

func splitPath(path string) []string {
	var locals []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == ',' {
			locals = append(locals, path[start:i])
			start = i + 1
		}
	}
	return locals
}

func TestCompile_SimpleContent(t *testing.T) {
	g, tg := compileType(t, &schema.Type{
		Simple:   true,
		Datatype: builtin("int"),
		Attributes: []*schema.AttributeUse{
			{Name: qn("unit"), Type: builtin("string")},
		},
	})
	assert.Equal(t, []string{"AT(unit)", "CH"}, eventStrings(tg.Start))
	ch := tg.Start.Production(1)
	assert.Equal(t, builtin("int"), ch.Event.Datatype)
	assert.Equal(t, []string{"EE"}, eventStrings(tg.Start.Next(1)))

	// Built-in simple types are available for xsi:type.
	intType, ok := g.TypeGrammar(builtin("int").Name)
	require.True(t, ok)
	assert.Equal(t, []string{"CH"}, eventStrings(intType.Start))
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		caption string
		content *schema.Particle
		err     error
	}{
		{
			caption: "the same element with different types",
			content: group(schema.GroupChoice, 1, 1,
				elem("A", 1, 1),
				schema.NewParticle(1, 1, &schema.ElementDecl{
					Name: qn("A"),
					Type: schema.SimpleType(builtin("int")),
				}),
			),
			err: ErrAmbiguousContent,
		},
		{
			caption: "maxOccurs less than minOccurs",
			content: seq(elem("A", 2, 1)),
			err:     ErrInvalidOccurs,
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			s := &schema.Schema{
				Types: []*schema.Type{
					{Name: qn("T"), Content: tt.content},
				},
			}
			g, err := Compile(s)
			if !errors.Is(err, tt.err) {
				t.Fatalf("unexpected error; want: %v, got: %v", tt.err, err)
			}
			if g != nil {
				t.Fatalf("a failed compilation must not return a grammar")
			}
		})
	}
}

func TestCompile_DocumentGrammar(t *testing.T) {
	str := schema.SimpleType(builtin("string"))
	s := &schema.Schema{
		Elements: []*schema.ElementDecl{
			{Name: schema.QName{URI: "urn:b", Local: "note"}, Type: str, Global: true},
			{Name: schema.QName{URI: "urn:a", Local: "note"}, Type: str, Global: true},
			{Name: qn("body"), Type: str, Global: true},
		},
	}
	g, err := Compile(s)
	require.NoError(t, err)

	docContent := g.Document().Next(0)
	assert.Equal(t, RoleDocContent, docContent.Role)
	assert.Equal(t, []string{"SE(body)", "SE({urn:a}note)", "SE({urn:b}note)", "SE(*)"}, eventStrings(docContent))

	fragContent := g.Fragment().Next(0)
	assert.Equal(t, []string{"SE(body)", "SE({urn:a}note)", "SE({urn:b}note)", "SE(*)", "ED"}, eventStrings(fragContent))
	assert.Equal(t, fragContent, fragContent.Next(0))

	n, ok := g.Names().Lookup("urn:a", "note")
	require.True(t, ok)
	e, ok := g.GlobalElement(n)
	require.True(t, ok)
	assert.Equal(t, e, docContent.Production(1).Event.Element)
}

func TestCompile_Nillable(t *testing.T) {
	typ := &schema.Type{
		Name:    qn("T"),
		Content: seq(elem("A", 1, 1)),
	}
	s := &schema.Schema{
		Elements: []*schema.ElementDecl{
			{Name: qn("plain"), Type: typ, Global: true},
			{Name: qn("nil"), Type: typ, Global: true, Nillable: true},
		},
		Types: []*schema.Type{typ},
	}
	g, err := Compile(s)
	require.NoError(t, err)

	plainName, _ := g.Names().Lookup("", "plain")
	nilName, _ := g.Names().Lookup("", "nil")
	plain, _ := g.GlobalElement(plainName)
	nillable, _ := g.GlobalElement(nilName)

	assert.Equal(t, plain.Type, nillable.Type)
	assert.NotEqual(t, plain.Start(), nillable.Start())
	assert.Equal(t, eventStrings(plain.Start()), eventStrings(nillable.Start()))

	f := Fidelity{Strict: true}
	_, ok := DeriveCodes(plain.Start(), f).Undeclared(EventAttributeXsiNil)
	assert.False(t, ok)
	_, ok = DeriveCodes(nillable.Start(), f).Undeclared(EventAttributeXsiNil)
	assert.True(t, ok)
}

// randomParticle builds content models over a small set of element names so
// that alternatives overlap.
func randomParticle(rnd *rand.Rand, depth int) *schema.Particle {
	locals := []string{"a", "b", "c", "d"}
	min := rnd.Intn(2)
	max := min + rnd.Intn(2)
	if rnd.Intn(4) == 0 {
		max = schema.Unbounded
	}
	if depth == 0 || rnd.Intn(3) == 0 {
		if rnd.Intn(6) == 0 {
			return schema.NewParticle(min, max, &schema.Wildcard{Constraint: schema.NamespaceAny})
		}
		return elem(locals[rnd.Intn(len(locals))], min, max)
	}
	kinds := []schema.GroupKind{schema.GroupSequence, schema.GroupChoice, schema.GroupAll}
	var ps []*schema.Particle
	for i := rnd.Intn(3) + 1; i > 0; i-- {
		ps = append(ps, randomParticle(rnd, depth-1))
	}
	return group(kinds[rnd.Intn(len(kinds))], min, max, ps...)
}

func TestCompile_CanonicalOrder(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	str := builtin("string")
	for i := 0; i < 200; i++ {
		typ := &schema.Type{
			Name:    qn(fmt.Sprintf("T%v", i)),
			Content: randomParticle(rnd, 3),
			Mixed:   rnd.Intn(4) == 0,
		}
		for _, local := range []string{"z", "a", "m"} {
			if rnd.Intn(2) == 0 {
				typ.Attributes = append(typ.Attributes, &schema.AttributeUse{
					Name:     qn(local),
					Type:     str,
					Required: rnd.Intn(2) == 0,
				})
			}
		}
		if rnd.Intn(3) == 0 {
			typ.AttributeWildcard = &schema.Wildcard{Constraint: schema.NamespaceAny}
		}
		g, err := Compile(&schema.Schema{Types: []*schema.Type{typ}})
		require.NoError(t, err, "type #%v", i)

		for _, r := range g.Rules() {
			prods := r.Productions()
			seen := map[terminalKey]struct{}{}
			for j := range prods {
				k := prods[j].Event.key()
				if _, ok := seen[k]; ok {
					t.Fatalf("type #%v: rule %v is not deterministic", i, r)
				}
				seen[k] = struct{}{}
				if j > 0 && canonicalLess(prods[j].Event, prods[j-1].Event) {
					t.Fatalf("type #%v: rule %v is not sorted", i, r)
				}
			}
		}
	}
}
