package schema

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchema_Names(t *testing.T) {
	item := &Type{
		Name: QName{URI: "urn:shop", Local: "Item"},
		Attributes: []*AttributeUse{
			{Name: QName{Local: "sku"}, Type: Untyped, Required: true},
		},
	}
	item.Content = NewParticle(1, 1, &ModelGroup{
		Kind: GroupSequence,
		Particles: []*Particle{
			NewParticle(0, Unbounded, &ElementDecl{Name: QName{URI: "urn:shop", Local: "item"}, Type: item}),
			NewParticle(0, 1, &Wildcard{Constraint: NamespaceList, URIs: []string{"urn:ext"}}),
		},
	})
	s := &Schema{
		Elements: []*ElementDecl{
			{Name: QName{URI: "urn:shop", Local: "order"}, Type: item, Global: true},
		},
		Types: []*Type{item},
	}

	names := s.Names()
	for _, v := range names {
		sort.Strings(v)
	}
	assert.Equal(t, map[string][]string{
		"":         {"sku"},
		"urn:shop": {"Item", "item", "order"},
		"urn:ext":  nil,
	}, names)
}

func TestBuiltin(t *testing.T) {
	tests := []struct {
		local string
		kind  Kind
		ok    bool
	}{
		{local: "string", kind: KindString, ok: true},
		{local: "unsignedShort", kind: KindInteger, ok: true},
		{local: "gYearMonth", kind: KindDateTime, ok: true},
		{local: "NMTOKENS", kind: KindList, ok: true},
		{local: "anyType", ok: false},
		{local: "foo", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.local, func(t *testing.T) {
			dt, ok := Builtin(tt.local)
			if ok != tt.ok {
				t.Fatalf("unexpected result; want: %v, got: %v", tt.ok, ok)
			}
			if ok && dt.Kind != tt.kind {
				t.Fatalf("unexpected kind; want: %v, got: %v", tt.kind, dt.Kind)
			}
		})
	}
	if len(BuiltinTypeNames()) != 46 {
		t.Fatalf("unexpected built-in type count: %v", len(BuiltinTypeNames()))
	}
}
