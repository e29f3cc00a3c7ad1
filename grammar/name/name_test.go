package name

import (
	"testing"
)

func TestNewTable(t *testing.T) {
	tab := NewTable()
	r := tab.Reader()

	tests := []struct {
		uri      string
		id       int
		prefixes []string
		locals   []string
	}{
		{
			uri:      URIEmpty,
			id:       0,
			prefixes: []string{""},
		},
		{
			uri:      URIXML,
			id:       1,
			prefixes: []string{PrefixXML},
			locals:   []string{"base", "id", "lang", "space"},
		},
		{
			uri:      URIXSI,
			id:       2,
			prefixes: []string{PrefixXSI},
			locals:   []string{"nil", "type"},
		},
	}
	if r.URICount() != len(tests) {
		t.Fatalf("unexpected uri count; want: %v, got: %v", len(tests), r.URICount())
	}
	for _, tt := range tests {
		u, ok := r.LookupURI(tt.uri)
		if !ok {
			t.Fatalf("uri was not found: %v", tt.uri)
		}
		if u.ID != tt.id {
			t.Fatalf("unexpected uri id; want: %v, got: %v", tt.id, u.ID)
		}
		if len(u.Prefixes()) != len(tt.prefixes) {
			t.Fatalf("unexpected prefixes; want: %v, got: %v", tt.prefixes, u.Prefixes())
		}
		for i, p := range tt.prefixes {
			if u.Prefixes()[i] != p {
				t.Fatalf("unexpected prefix; want: %v, got: %v", p, u.Prefixes()[i])
			}
		}
		if u.LocalNameCount() != len(tt.locals) {
			t.Fatalf("unexpected local name count; want: %v, got: %v", len(tt.locals), u.LocalNameCount())
		}
		for i, l := range tt.locals {
			c, ok := u.LocalName(i)
			if !ok || c.LocalName != l || c.LocalNameID != i || c.URIID != tt.id {
				t.Fatalf("unexpected local name #%v; want: %v, got: %+v", i, l, c)
			}
		}
	}
}

func TestTableWriter_Intern(t *testing.T) {
	tab := NewTable()
	w := tab.Writer()

	a := w.Intern("urn:a", "x")
	b := w.Intern("urn:a", "y")
	c := w.Intern("", "x")
	if a.URIID != 3 || a.LocalNameID != 0 {
		t.Fatalf("unexpected ids: %+v", a)
	}
	if b.URIID != 3 || b.LocalNameID != 1 {
		t.Fatalf("unexpected ids: %+v", b)
	}
	if c.URIID != 0 || c.LocalNameID != 0 {
		t.Fatalf("unexpected ids: %+v", c)
	}
	if w.Intern("urn:a", "x") != a {
		t.Fatalf("interning must return the same context")
	}

	if !w.InternPrefix(a.URIID, "p") {
		t.Fatalf("a new prefix must be recorded")
	}
	if w.InternPrefix(a.URIID, "p") {
		t.Fatalf("a duplicate prefix must not be recorded")
	}
	if !w.InternPrefix(a.URIID, "q") {
		t.Fatalf("a new prefix must be recorded")
	}
	u, _ := tab.Reader().URI(a.URIID)
	if id, ok := u.PrefixID("q"); !ok || id != 1 {
		t.Fatalf("unexpected prefix id; want: 1, got: %v", id)
	}
}

func TestTable_Fork(t *testing.T) {
	tab := NewTable()
	shared := tab.Writer().Intern("urn:a", "x")

	f := tab.Fork()
	got, ok := f.Reader().Lookup("urn:a", "x")
	if !ok || got != shared {
		t.Fatalf("a forked table must share existing contexts")
	}

	private := f.Writer().Intern("urn:a", "y")
	if private.LocalNameID != 1 {
		t.Fatalf("unexpected local name id; want: 1, got: %v", private.LocalNameID)
	}
	if _, ok := tab.Reader().Lookup("urn:a", "y"); ok {
		t.Fatalf("an addition to a forked table must not leak into its parent")
	}
	f.Writer().InternURI("urn:b")
	if _, ok := tab.Reader().LookupURI("urn:b"); ok {
		t.Fatalf("an addition to a forked table must not leak into its parent")
	}
}

func TestNewSchemaTable(t *testing.T) {
	tab := NewSchemaTable([]string{"string", "boolean"}, map[string][]string{
		"urn:z": {"b", "a"},
		"":      {"zz", "aa"},
		"urn:a": {"m"},
	})
	r := tab.Reader()

	xsd, ok := r.LookupURI(URIXSD)
	if !ok || xsd.ID != 3 {
		t.Fatalf("the XML Schema namespace must follow the initial entries")
	}
	if l, _ := xsd.LocalName(0); l.LocalName != "boolean" {
		t.Fatalf("built-in type names must be sorted; got: %v", l.LocalName)
	}

	empty, _ := r.LookupURI("")
	if len(empty.LocalNames()) != 2 || empty.LocalNames()[0].LocalName != "aa" {
		t.Fatalf("unexpected local names in the empty namespace: %v", empty.LocalNames())
	}

	ua, _ := r.LookupURI("urn:a")
	uz, _ := r.LookupURI("urn:z")
	if ua.ID != 4 || uz.ID != 5 {
		t.Fatalf("namespaces must be registered in lexical order; urn:a: %v, urn:z: %v", ua.ID, uz.ID)
	}
	if l, _ := uz.LocalName(0); l.LocalName != "a" {
		t.Fatalf("local names must be sorted; got: %v", l.LocalName)
	}
}
