package infoset

import (
	"io"
	"sort"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/nihei9/exigram/driver"
	"github.com/nihei9/exigram/grammar"
	"github.com/nihei9/exigram/grammar/name"
	"github.com/pkg/errors"
)

const xmlnsPrefix = "xmlns"

// Options select the parts of a document its events keep.
type Options struct {
	Fidelity grammar.Fidelity

	// KeepWhitespace keeps whitespace-only text in elements that have child
	// elements.
	KeepWhitespace bool
}

// Parse reads an XML document into a tree.
func Parse(r io.Reader) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse XML")
	}
	return doc, nil
}

// Select returns the elements of doc the XPath expression expr selects.
func Select(doc *xmlquery.Node, expr string) ([]*xmlquery.Node, error) {
	e, err := xpath.Compile(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid XPath expression: %v", expr)
	}
	var elems []*xmlquery.Node
	for _, n := range xmlquery.QuerySelectorAll(doc, e) {
		if n.Type == xmlquery.ElementNode {
			elems = append(elems, n)
		}
	}
	return elems, nil
}

// Document returns the events of the document doc.
func Document(doc *xmlquery.Node, opts Options) []*driver.Event {
	w := newWalker(opts)
	w.emit(&driver.Event{
		Kind: grammar.EventStartDocument,
	})
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		w.node(c)
	}
	w.emit(&driver.Event{
		Kind: grammar.EventEndDocument,
	})
	return w.events
}

// Fragment returns the events of a fragment made of the elements roots. The
// namespaces their ancestors declare stay in scope.
func Fragment(roots []*xmlquery.Node, opts Options) []*driver.Event {
	w := newWalker(opts)
	w.emit(&driver.Event{
		Kind: grammar.EventStartDocument,
	})
	for _, r := range roots {
		w.scopes = []map[string]string{inherited(r)}
		w.inherit = w.scopes[0]
		w.element(r)
	}
	w.emit(&driver.Event{
		Kind: grammar.EventEndDocument,
	})
	return w.events
}

func inherited(n *xmlquery.Node) map[string]string {
	var chain []*xmlquery.Node
	for p := n.Parent; p != nil; p = p.Parent {
		chain = append(chain, p)
	}
	ns := map[string]string{}
	for i := len(chain) - 1; i >= 0; i-- {
		for prefix, uri := range declarations(chain[i]) {
			ns[prefix] = uri
		}
	}
	return ns
}

type walker struct {
	opts   Options
	events []*driver.Event
	scopes []map[string]string

	// inherit holds the namespaces a fragment root declares on behalf of its
	// ancestors.
	inherit map[string]string
	text    strings.Builder
	hasText bool
}

func newWalker(opts Options) *walker {
	return &walker{
		opts: opts,
	}
}

func (w *walker) emit(ev *driver.Event) {
	w.events = append(w.events, ev)
}

func (w *walker) node(n *xmlquery.Node) {
	switch n.Type {
	case xmlquery.ElementNode:
		w.element(n)
	case xmlquery.CommentNode:
		if w.opts.Fidelity.Comments {
			w.emit(&driver.Event{
				Kind:  grammar.EventComment,
				Value: n.Data,
			})
		}
	case xmlquery.DeclarationNode:
		if n.Data == "xml" || !w.opts.Fidelity.ProcessingInstructions {
			return
		}
		w.emit(&driver.Event{
			Kind:   grammar.EventProcessingInstruction,
			Target: n.Data,
			Value:  instruction(n),
		})
	}
}

// instruction restores the data of a processing instruction from the
// pseudo-attributes the parser splits it into.
func instruction(n *xmlquery.Node) string {
	var parts []string
	for _, a := range n.Attr {
		parts = append(parts, a.Name.Local+`="`+a.Value+`"`)
	}
	return strings.Join(parts, " ")
}

func (w *walker) element(n *xmlquery.Node) {
	w.scopes = append(w.scopes, declarations(n))

	q := driver.QName{
		URI:   n.NamespaceURI,
		Local: n.Data,
	}
	if w.opts.Fidelity.Prefixes {
		q.Prefix = n.Prefix
	}
	w.emit(&driver.Event{
		Kind: grammar.EventStartElement,
		Name: q,
	})

	if w.opts.Fidelity.Prefixes {
		w.namespaces(n, q)
	}
	w.inherit = nil
	w.attributes(n)

	elemContent := false
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			elemContent = true
			break
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case xmlquery.TextNode, xmlquery.CharDataNode:
			w.text.WriteString(c.Data)
			w.hasText = true
			continue
		}
		w.flushText(elemContent)
		w.node(c)
	}
	w.flushText(elemContent)

	w.emit(&driver.Event{
		Kind: grammar.EventEndElement,
		Name: q,
	})
	w.scopes = w.scopes[:len(w.scopes)-1]
}

func (w *walker) flushText(elemContent bool) {
	if !w.hasText {
		return
	}
	v := w.text.String()
	w.text.Reset()
	w.hasText = false
	if elemContent && !w.opts.KeepWhitespace && strings.TrimSpace(v) == "" {
		return
	}
	w.emit(&driver.Event{
		Kind:  grammar.EventCharacters,
		Value: v,
	})
}

// namespaces emits the declarations of n in document order, then those a
// fragment root inherits. The declaration of the prefix of the element
// itself is marked as local-element-ns.
func (w *walker) namespaces(n *xmlquery.Node, q driver.QName) {
	local := false
	decl := func(prefix, uri string) {
		ev := &driver.Event{
			Kind: grammar.EventNamespaceDeclaration,
			Name: driver.QName{
				URI:    uri,
				Prefix: prefix,
			},
		}
		if !local && prefix == q.Prefix && uri == q.URI {
			ev.LocalElementNS = true
			local = true
		}
		w.emit(ev)
	}
	own := map[string]struct{}{}
	for _, a := range n.Attr {
		prefix, ok := declaredPrefix(a)
		if !ok {
			continue
		}
		own[prefix] = struct{}{}
		decl(prefix, a.Value)
	}
	var prefixes []string
	for prefix := range w.inherit {
		if _, ok := own[prefix]; !ok {
			prefixes = append(prefixes, prefix)
		}
	}
	sort.Strings(prefixes)
	for _, prefix := range prefixes {
		decl(prefix, w.inherit[prefix])
	}
}

// attributes emits xsi:type and xsi:nil first and the rest ordered by local
// name and then by namespace.
func (w *walker) attributes(n *xmlquery.Node) {
	var xsiType, xsiNil *driver.Event
	var attrs []*driver.Event
	for _, a := range n.Attr {
		if _, ok := declaredPrefix(a); ok {
			continue
		}
		q := driver.QName{
			URI:   a.NamespaceURI,
			Local: a.Name.Local,
		}
		if w.opts.Fidelity.Prefixes {
			q.Prefix = attributePrefix(a)
		}
		switch {
		case q.URI == name.URIXSI && q.Local == name.LocalNameXsiType:
			if t, ok := w.typeName(a.Value); ok {
				xsiType = &driver.Event{
					Kind:     grammar.EventAttributeXsiType,
					Name:     q,
					Value:    a.Value,
					TypeName: t,
				}
				continue
			}
		case q.URI == name.URIXSI && q.Local == name.LocalNameXsiNil:
			if v := strings.TrimSpace(a.Value); v == "true" || v == "false" || v == "1" || v == "0" {
				xsiNil = &driver.Event{
					Kind:  grammar.EventAttributeXsiNil,
					Name:  q,
					Value: v,
				}
				continue
			}
		}
		attrs = append(attrs, &driver.Event{
			Kind:  grammar.EventAttribute,
			Name:  q,
			Value: a.Value,
		})
	}
	sort.SliceStable(attrs, func(i, j int) bool {
		a, b := attrs[i].Name, attrs[j].Name
		if a.Local != b.Local {
			return a.Local < b.Local
		}
		return a.URI < b.URI
	})
	if xsiType != nil {
		w.emit(xsiType)
	}
	if xsiNil != nil {
		w.emit(xsiNil)
	}
	for _, a := range attrs {
		w.emit(a)
	}
}

// typeName resolves the value of xsi:type against the namespaces in scope.
func (w *walker) typeName(v string) (driver.QName, bool) {
	v = strings.TrimSpace(v)
	prefix, local := "", v
	if i := strings.IndexByte(v, ':'); i >= 0 {
		prefix, local = v[:i], v[i+1:]
	}
	uri, ok := w.resolve(prefix)
	if !ok || local == "" {
		return driver.QName{}, false
	}
	return driver.QName{
		URI:    uri,
		Local:  local,
		Prefix: prefix,
	}, true
}

func (w *walker) resolve(prefix string) (string, bool) {
	for i := len(w.scopes) - 1; i >= 0; i-- {
		if uri, ok := w.scopes[i][prefix]; ok {
			return uri, true
		}
	}
	switch prefix {
	case "":
		return name.URIEmpty, true
	case name.PrefixXML:
		return name.URIXML, true
	}
	return "", false
}

func declarations(n *xmlquery.Node) map[string]string {
	decls := map[string]string{}
	for _, a := range n.Attr {
		if prefix, ok := declaredPrefix(a); ok {
			decls[prefix] = a.Value
		}
	}
	return decls
}

// declaredPrefix returns the prefix a declares when a is a namespace
// declaration.
func declaredPrefix(a xmlquery.Attr) (string, bool) {
	switch {
	case a.Name.Space == xmlnsPrefix:
		return a.Name.Local, true
	case a.Name.Space == "" && a.Name.Local == xmlnsPrefix:
		return "", true
	}
	return "", false
}

func attributePrefix(a xmlquery.Attr) string {
	switch {
	case a.NamespaceURI == "":
		return ""
	case a.NamespaceURI == name.URIXML:
		return name.PrefixXML
	case a.Name.Space == a.NamespaceURI:
		return ""
	}
	return a.Name.Space
}
