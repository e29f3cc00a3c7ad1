package infoset

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/nihei9/exigram/driver"
	"github.com/nihei9/exigram/grammar"
	"github.com/nihei9/exigram/grammar/name"
	"github.com/pkg/errors"
)

type nsDecl struct {
	prefix string
	uri    string
}

type attribute struct {
	name  driver.QName
	value string
	qname bool
}

type startTag struct {
	name  driver.QName
	decls []nsDecl
	attrs []attribute
}

func (t *startTag) declared(prefix string) (string, bool) {
	for _, d := range t.decls {
		if d.prefix == prefix {
			return d.uri, true
		}
	}
	return "", false
}

// Writer writes events as an XML document. A start tag is written once the
// event following its attributes arrives so that every name it carries can be
// bound to a prefix first. Names without a prefix get one named ns0, ns1 and
// so on.
type Writer struct {
	w      *bufio.Writer
	tag    *startTag
	open   []string
	scopes []map[string]string
	serial int
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w: bufio.NewWriter(w),
	}
}

// WriteEvents writes the events evs to w.
func WriteEvents(w io.Writer, evs []*driver.Event) error {
	xw := NewWriter(w)
	for _, ev := range evs {
		if err := xw.Write(ev); err != nil {
			return err
		}
	}
	return xw.Flush()
}

func (w *Writer) Write(ev *driver.Event) error {
	switch ev.Kind.Family() {
	case grammar.EventNamespaceDeclaration:
		if w.tag == nil {
			return fmt.Errorf("a namespace declaration must follow a start tag: %v", ev)
		}
		if _, ok := w.tag.declared(ev.Name.Prefix); !ok {
			w.tag.decls = append(w.tag.decls, nsDecl{
				prefix: ev.Name.Prefix,
				uri:    ev.Name.URI,
			})
		}
		return nil
	case grammar.EventAttribute:
		if w.tag == nil {
			return fmt.Errorf("an attribute must follow a start tag: %v", ev)
		}
		a := attribute{
			name:  ev.Name,
			value: ev.Value,
		}
		switch ev.Kind {
		case grammar.EventAttributeXsiType:
			a.name = xsiName(ev.Name, name.LocalNameXsiType)
			a.value = ""
			a.qname = true
			w.tag.attrs = append(w.tag.attrs, a, attribute{
				name: ev.TypeName,
			})
			return nil
		case grammar.EventAttributeXsiNil:
			a.name = xsiName(ev.Name, name.LocalNameXsiNil)
		}
		w.tag.attrs = append(w.tag.attrs, a)
		return nil
	case grammar.EventSelfContained:
		return nil
	}

	if err := w.closeTag(); err != nil {
		return err
	}

	var err error
	switch ev.Kind.Family() {
	case grammar.EventStartDocument:
	case grammar.EventStartElement:
		w.tag = &startTag{
			name: ev.Name,
		}
	case grammar.EventEndElement:
		if len(w.open) == 0 {
			return fmt.Errorf("no element to end: %v", ev)
		}
		n := w.open[len(w.open)-1]
		w.open = w.open[:len(w.open)-1]
		w.scopes = w.scopes[:len(w.scopes)-1]
		_, err = fmt.Fprintf(w.w, "</%v>", n)
	case grammar.EventCharacters:
		err = xml.EscapeText(w.w, []byte(ev.Value))
	case grammar.EventComment:
		_, err = fmt.Fprintf(w.w, "<!--%v-->", ev.Value)
	case grammar.EventProcessingInstruction:
		if ev.Value == "" {
			_, err = fmt.Fprintf(w.w, "<?%v?>", ev.Target)
		} else {
			_, err = fmt.Fprintf(w.w, "<?%v %v?>", ev.Target, ev.Value)
		}
	case grammar.EventDocType:
		err = w.writeDocType(ev)
	case grammar.EventEntityReference:
		_, err = fmt.Fprintf(w.w, "&%v;", ev.Value)
	case grammar.EventEndDocument:
		if len(w.open) > 0 {
			return fmt.Errorf("unclosed elements: %v", w.open)
		}
		return w.Flush()
	default:
		return fmt.Errorf("unknown event: %v", ev)
	}
	return errors.WithStack(err)
}

func (w *Writer) Flush() error {
	return errors.WithStack(w.w.Flush())
}

func xsiName(q driver.QName, local string) driver.QName {
	prefix := q.Prefix
	if prefix == "" {
		prefix = name.PrefixXSI
	}
	return driver.QName{
		URI:    name.URIXSI,
		Local:  local,
		Prefix: prefix,
	}
}

func (w *Writer) writeDocType(ev *driver.Event) error {
	if _, err := fmt.Fprintf(w.w, "<!DOCTYPE %v", ev.Value); err != nil {
		return err
	}
	switch {
	case ev.Public != "":
		if _, err := fmt.Fprintf(w.w, ` PUBLIC "%v" "%v"`, ev.Public, ev.System); err != nil {
			return err
		}
	case ev.System != "":
		if _, err := fmt.Fprintf(w.w, ` SYSTEM "%v"`, ev.System); err != nil {
			return err
		}
	}
	if ev.Text != "" {
		if _, err := fmt.Fprintf(w.w, " [%v]", ev.Text); err != nil {
			return err
		}
	}
	_, err := w.w.WriteString(">")
	return err
}

// closeTag writes the pending start tag, binding the names it carries.
func (w *Writer) closeTag() error {
	t := w.tag
	if t == nil {
		return nil
	}
	w.tag = nil

	elem := w.qualify(t, t.name, true)
	attrs := make([]string, len(t.attrs))
	for i := 0; i < len(t.attrs); i++ {
		a := t.attrs[i]
		attrs[i] = w.qualify(t, a.name, false)
		if a.qname {
			// The next entry holds the type name the value refers to.
			i++
			tn := t.attrs[i].name
			if tn.URI == name.URIEmpty {
				attrs[i] = tn.Local
			} else {
				attrs[i] = w.qualify(t, tn, false)
			}
		}
	}

	scope := map[string]string{}
	for _, d := range t.decls {
		scope[d.prefix] = d.uri
	}
	w.scopes = append(w.scopes, scope)
	w.open = append(w.open, elem)

	if _, err := fmt.Fprintf(w.w, "<%v", elem); err != nil {
		return errors.WithStack(err)
	}
	for _, d := range t.decls {
		n := "xmlns"
		if d.prefix != "" {
			n = "xmlns:" + d.prefix
		}
		if err := w.writeAttribute(n, d.uri); err != nil {
			return err
		}
	}
	for i := 0; i < len(t.attrs); i++ {
		a := t.attrs[i]
		v := a.value
		if a.qname {
			v = attrs[i+1]
		}
		if err := w.writeAttribute(attrs[i], v); err != nil {
			return err
		}
		if a.qname {
			i++
		}
	}
	_, err := w.w.WriteString(">")
	return errors.WithStack(err)
}

func (w *Writer) writeAttribute(n, v string) error {
	if _, err := fmt.Fprintf(w.w, ` %v="`, n); err != nil {
		return errors.WithStack(err)
	}
	if err := xml.EscapeText(w.w, []byte(v)); err != nil {
		return errors.WithStack(err)
	}
	_, err := w.w.WriteString(`"`)
	return errors.WithStack(err)
}

// lookup returns the namespace prefix is bound to in the scope of the tag t.
func (w *Writer) lookup(t *startTag, prefix string) (string, bool) {
	if uri, ok := t.declared(prefix); ok {
		return uri, true
	}
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

// qualify returns the lexical form of q, declaring a prefix on t when q has
// none bound. Unprefixed attributes have no namespace, so an attribute in a
// namespace always gets a prefix.
func (w *Writer) qualify(t *startTag, q driver.QName, elem bool) string {
	switch {
	case q.URI == name.URIEmpty:
		if _, ok := t.declared(""); elem && !ok {
			if uri, _ := w.lookup(t, ""); uri != name.URIEmpty {
				t.decls = append(t.decls, nsDecl{})
			}
		}
		return q.Local
	case q.URI == name.URIXML:
		return name.PrefixXML + ":" + q.Local
	}

	if q.Prefix != "" {
		uri, ok := w.lookup(t, q.Prefix)
		if ok && uri == q.URI {
			return q.Prefix + ":" + q.Local
		}
		if _, ok := t.declared(q.Prefix); !ok {
			t.decls = append(t.decls, nsDecl{
				prefix: q.Prefix,
				uri:    q.URI,
			})
			return q.Prefix + ":" + q.Local
		}
	}

	if elem {
		if uri, _ := w.lookup(t, ""); uri == q.URI {
			return q.Local
		}
	}
	for _, d := range t.decls {
		if d.prefix != "" && d.uri == q.URI {
			return d.prefix + ":" + q.Local
		}
	}
	for i := len(w.scopes) - 1; i >= 0; i-- {
		for prefix, uri := range w.scopes[i] {
			if prefix == "" || uri != q.URI {
				continue
			}
			if bound, _ := w.lookup(t, prefix); bound == q.URI {
				return prefix + ":" + q.Local
			}
		}
	}

	var prefix string
	for {
		prefix = fmt.Sprintf("ns%v", w.serial)
		w.serial++
		if _, ok := w.lookup(t, prefix); !ok {
			break
		}
	}
	t.decls = append(t.decls, nsDecl{
		prefix: prefix,
		uri:    q.URI,
	})
	return prefix + ":" + q.Local
}
