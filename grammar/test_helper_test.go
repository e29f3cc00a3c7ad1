package grammar

import (
	"testing"

	"github.com/nihei9/exigram/schema"
)

func qn(local string) schema.QName {
	return schema.QName{
		Local: local,
	}
}

func builtin(local string) schema.Datatype {
	dt, _ := schema.Builtin(local)
	return dt
}

func elem(local string, min, max int) *schema.Particle {
	return schema.NewParticle(min, max, &schema.ElementDecl{
		Name: qn(local),
		Type: schema.SimpleType(builtin("string")),
	})
}

func group(kind schema.GroupKind, min, max int, ps ...*schema.Particle) *schema.Particle {
	return schema.NewParticle(min, max, &schema.ModelGroup{
		Kind:      kind,
		Particles: ps,
	})
}

func seq(ps ...*schema.Particle) *schema.Particle {
	return group(schema.GroupSequence, 1, 1, ps...)
}

// compileType compiles a schema having t as its only type and a global
// element root of type t.
func compileType(t *testing.T, typ *schema.Type) (*Grammar, *TypeGrammar) {
	t.Helper()
	if typ.Name.IsZero() {
		typ.Name = qn("T")
	}
	s := &schema.Schema{
		Elements: []*schema.ElementDecl{
			{Name: qn("root"), Type: typ, Global: true},
		},
		Types: []*schema.Type{typ},
	}
	g, err := Compile(s)
	if err != nil {
		t.Fatal(err)
	}
	tg, ok := g.TypeGrammar(typ.Name)
	if !ok {
		t.Fatalf("type grammar was not found: %v", typ.Name)
	}
	return g, tg
}

func eventStrings(r *Rule) []string {
	var evs []string
	for _, p := range r.Productions() {
		evs = append(evs, p.Event.String())
	}
	return evs
}

func nextOf(t *testing.T, r *Rule, ev string) *Rule {
	t.Helper()
	for i, p := range r.Productions() {
		if p.Event.String() == ev {
			return r.Next(i)
		}
	}
	t.Fatalf("%v has no production %v", r, ev)
	return nil
}
