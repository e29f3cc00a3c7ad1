package name

import (
	"fmt"
	"sort"
)

const (
	URIEmpty = ""
	URIXML   = "http://www.w3.org/XML/1998/namespace"
	URIXSI   = "http://www.w3.org/2001/XMLSchema-instance"
	URIXSD   = "http://www.w3.org/2001/XMLSchema"

	PrefixXML = "xml"
	PrefixXSI = "xsi"

	LocalNameXsiNil  = "nil"
	LocalNameXsiType = "type"
)

// Context identifies one qualified name. The ids are positions inside the
// owning table and never change once assigned.
type Context struct {
	URIID       int
	LocalNameID int
	URI         string
	LocalName   string
}

func (c *Context) String() string {
	if c.URI == "" {
		return c.LocalName
	}
	return fmt.Sprintf("{%v}%v", c.URI, c.LocalName)
}

// Less orders names by local-name first and then by uri.
func (c *Context) Less(o *Context) bool {
	if c.LocalName != o.LocalName {
		return c.LocalName < o.LocalName
	}
	return c.URI < o.URI
}

type URIContext struct {
	ID         int
	URI        string
	prefixes   []string
	localNames []*Context
	index      map[string]*Context
}

func newURIContext(id int, uri string) *URIContext {
	return &URIContext{
		ID:    id,
		URI:   uri,
		index: map[string]*Context{},
	}
}

func (u *URIContext) Prefixes() []string {
	return u.prefixes
}

func (u *URIContext) PrefixID(prefix string) (int, bool) {
	for i, p := range u.prefixes {
		if p == prefix {
			return i, true
		}
	}
	return 0, false
}

func (u *URIContext) Prefix(id int) (string, bool) {
	if id < 0 || id >= len(u.prefixes) {
		return "", false
	}
	return u.prefixes[id], true
}

func (u *URIContext) LocalNames() []*Context {
	return u.localNames
}

func (u *URIContext) LocalNameCount() int {
	return len(u.localNames)
}

func (u *URIContext) LocalName(id int) (*Context, bool) {
	if id < 0 || id >= len(u.localNames) {
		return nil, false
	}
	return u.localNames[id], true
}

func (u *URIContext) LookupLocalName(local string) (*Context, bool) {
	c, ok := u.index[local]
	return c, ok
}

func (u *URIContext) clone() *URIContext {
	c := newURIContext(u.ID, u.URI)
	c.prefixes = append(c.prefixes, u.prefixes...)
	c.localNames = append(c.localNames, u.localNames...)
	for k, v := range u.index {
		c.index[k] = v
	}
	return c
}

type Table struct {
	uris  []*URIContext
	index map[string]*URIContext
}

// NewTable returns a table holding the entries every EXI stream starts with.
func NewTable() *Table {
	t := &Table{
		index: map[string]*URIContext{},
	}
	w := t.Writer()
	w.InternPrefix(w.InternURI(URIEmpty).ID, "")
	xml := w.InternURI(URIXML)
	w.InternPrefix(xml.ID, PrefixXML)
	for _, l := range []string{"base", "id", "lang", "space"} {
		w.Intern(URIXML, l)
	}
	xsi := w.InternURI(URIXSI)
	w.InternPrefix(xsi.ID, PrefixXSI)
	for _, l := range []string{LocalNameXsiNil, LocalNameXsiType} {
		w.Intern(URIXSI, l)
	}
	return t
}

// NewSchemaTable extends the initial entries with the XML Schema namespace and
// the namespaces a schema uses. Namespaces and their local names are
// registered in lexical order.
func NewSchemaTable(builtinTypes []string, names map[string][]string) *Table {
	t := NewTable()
	w := t.Writer()
	types := append([]string{}, builtinTypes...)
	sort.Strings(types)
	w.InternURI(URIXSD)
	for _, l := range types {
		w.Intern(URIXSD, l)
	}

	uris := make([]string, 0, len(names))
	for uri := range names {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	for _, uri := range uris {
		w.InternURI(uri)
		locals := append([]string{}, names[uri]...)
		sort.Strings(locals)
		for _, l := range locals {
			w.Intern(uri, l)
		}
	}
	return t
}

// Fork returns a table whose later additions are invisible to t. Contexts
// already present are shared, so lookups through either table yield the same
// pointers.
func (t *Table) Fork() *Table {
	f := &Table{
		uris:  make([]*URIContext, len(t.uris)),
		index: make(map[string]*URIContext, len(t.index)),
	}
	for i, u := range t.uris {
		c := u.clone()
		f.uris[i] = c
		f.index[c.URI] = c
	}
	return f
}

func (t *Table) Reader() *TableReader {
	return &TableReader{
		t: t,
	}
}

func (t *Table) Writer() *TableWriter {
	return &TableWriter{
		t: t,
	}
}

type TableReader struct {
	t *Table
}

func (r *TableReader) URICount() int {
	return len(r.t.uris)
}

func (r *TableReader) URI(id int) (*URIContext, bool) {
	if id < 0 || id >= len(r.t.uris) {
		return nil, false
	}
	return r.t.uris[id], true
}

func (r *TableReader) LookupURI(uri string) (*URIContext, bool) {
	u, ok := r.t.index[uri]
	return u, ok
}

func (r *TableReader) Lookup(uri, local string) (*Context, bool) {
	u, ok := r.t.index[uri]
	if !ok {
		return nil, false
	}
	return u.LookupLocalName(local)
}

func (r *TableReader) URIs() []*URIContext {
	return r.t.uris
}

type TableWriter struct {
	t *Table
}

func (w *TableWriter) InternURI(uri string) *URIContext {
	if u, ok := w.t.index[uri]; ok {
		return u
	}
	u := newURIContext(len(w.t.uris), uri)
	w.t.uris = append(w.t.uris, u)
	w.t.index[uri] = u
	return u
}

func (w *TableWriter) Intern(uri, local string) *Context {
	u := w.InternURI(uri)
	if c, ok := u.index[local]; ok {
		return c
	}
	c := &Context{
		URIID:       u.ID,
		LocalNameID: len(u.localNames),
		URI:         uri,
		LocalName:   local,
	}
	u.localNames = append(u.localNames, c)
	u.index[local] = c
	return c
}

// InternPrefix records prefix for the namespace uriID. It reports whether the
// prefix was new.
func (w *TableWriter) InternPrefix(uriID int, prefix string) bool {
	if uriID < 0 || uriID >= len(w.t.uris) {
		return false
	}
	u := w.t.uris[uriID]
	if _, ok := u.PrefixID(prefix); ok {
		return false
	}
	u.prefixes = append(u.prefixes, prefix)
	return true
}
