package driver

import (
	"strings"

	"github.com/golang/glog"
	"github.com/nihei9/exigram/grammar"
	"github.com/nihei9/exigram/grammar/name"
	"github.com/nihei9/exigram/schema"
	"github.com/pkg/errors"
)

// Encoder turns a stream of events into EXI event codes and values. Events
// must arrive in document order; the first error ends the stream.
type Encoder struct {
	*coder
	ch EncoderChannel
}

func NewEncoder(g *grammar.Grammar, ch EncoderChannel, opts ...Option) (*Encoder, error) {
	c, err := newCoder(g, opts...)
	if err != nil {
		return nil, err
	}
	return &Encoder{
		coder: c,
		ch:    ch,
	}, nil
}

// Encode dispatches ev to the method coding its family.
func (e *Encoder) Encode(ev *Event) error {
	switch ev.Kind.Family() {
	case grammar.EventStartDocument:
		return e.EncodeStartDocument()
	case grammar.EventEndDocument:
		return e.EncodeEndDocument()
	case grammar.EventStartElement:
		return e.EncodeStartElement(ev.Name)
	case grammar.EventAttribute:
		switch ev.Kind {
		case grammar.EventAttributeXsiType:
			return e.EncodeXsiType(ev.TypeName)
		case grammar.EventAttributeXsiNil:
			b, ok := parseBoolean(ev.Value)
			if !ok {
				return e.fail(errors.Wrapf(ErrInvalidValue, "xsi:nil: %q", ev.Value))
			}
			return e.EncodeXsiNil(b)
		}
		return e.EncodeAttribute(ev.Name, ev.Value)
	case grammar.EventNamespaceDeclaration:
		return e.EncodeNamespaceDeclaration(ev.Name.URI, ev.Name.Prefix, ev.LocalElementNS)
	case grammar.EventSelfContained:
		return e.EncodeSelfContained()
	case grammar.EventEndElement:
		return e.EncodeEndElement()
	case grammar.EventCharacters:
		return e.EncodeCharacters(ev.Value)
	case grammar.EventComment:
		return e.EncodeComment(ev.Value)
	case grammar.EventProcessingInstruction:
		return e.EncodeProcessingInstruction(ev.Target, ev.Value)
	case grammar.EventDocType:
		return e.EncodeDocType(ev.Value, ev.Public, ev.System, ev.Text)
	case grammar.EventEntityReference:
		return e.EncodeEntityReference(ev.Value)
	}
	return e.fail(errors.Wrapf(ErrUnexpectedEvent, "unknown event kind: %v", ev.Kind))
}

// begin checks that the stream accepts another event and returns the scope it
// belongs to. element requires an open element.
func (e *Encoder) begin(k grammar.EventKind, element bool) (*scope, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.done {
		return nil, e.fail(errors.Wrapf(ErrUnexpectedEvent, "%v after the end of the document", k))
	}
	if !e.started {
		return nil, e.fail(errors.Wrapf(ErrUnexpectedEvent, "%v before the start of the document", k))
	}
	if element && len(e.stack) < 2 {
		return nil, e.fail(errors.Wrapf(ErrUnexpectedEvent, "%v outside of an element", k))
	}
	return e.top(), nil
}

func (e *Encoder) writeCode(s *scope, code grammar.Code) error {
	for i := 0; i < code.Level; i++ {
		if err := e.ch.EncodeNBitUnsignedInteger(uint64(code.Parts[i]), code.Widths[i]); err != nil {
			return err
		}
	}
	if glog.V(3) {
		glog.Infof("encode %v %v in rule #%v (%v)", code, code.Kind, s.rule.ID, s.rule.Role)
	}
	return nil
}

// declared returns the code of the production of s matching a terminal.
func (e *Encoder) declared(s *scope, kind grammar.EventKind, n *name.Context, uri string) (grammar.Code, bool) {
	num, ok := e.g.Match(s.rule, kind, n, uri)
	if !ok {
		return grammar.Code{}, false
	}
	return e.eventCodes(s.rule).Declared(num)
}

func (e *Encoder) undeclared(s *scope, kind grammar.EventKind) (grammar.Code, bool) {
	return e.eventCodes(s.rule).Undeclared(kind)
}

func notRepresentable(kind grammar.EventKind, s *scope) error {
	return errors.Wrapf(ErrEventNotRepresentable, "%v in rule #%v (%v)", kind, s.rule.ID, s.rule.Role)
}

func (e *Encoder) EncodeStartDocument() error {
	if e.err != nil {
		return e.err
	}
	if e.started {
		return e.fail(errors.Wrap(ErrUnexpectedEvent, "the document has already started"))
	}
	if err := e.writeHeader(e.ch); err != nil {
		return e.fail(err)
	}
	e.started = true
	s := &scope{
		rule: e.root(),
	}
	e.push(s)
	code, ok := e.declared(s, grammar.EventStartDocument, nil, "")
	if !ok {
		return e.fail(notRepresentable(grammar.EventStartDocument, s))
	}
	if err := e.writeCode(s, code); err != nil {
		return e.fail(err)
	}
	e.advance(s, code, grammar.Event{})
	return nil
}

// EncodeStartElement codes the start of the element q. It tries the
// production declaring q, then a namespace wildcard, then the generic
// production, and last the undeclared one.
func (e *Encoder) EncodeStartElement(q QName) error {
	s, err := e.begin(grammar.EventStartElement, false)
	if err != nil {
		return err
	}
	if err := e.encodeStartElement(s, q); err != nil {
		return e.fail(err)
	}
	return nil
}

func (e *Encoder) encodeStartElement(s *scope, q QName) error {
	n, known := e.lookupName(q)
	if known {
		if code, ok := e.declared(s, grammar.EventStartElement, n, ""); ok {
			if err := e.writeCode(s, code); err != nil {
				return err
			}
			if err := e.writePrefix(e.ch, e.uriOf(n.URI), q.Prefix); err != nil {
				return err
			}
			e.enterElement(s, code, n).prefix = q.Prefix
			return nil
		}
	}

	if code, ok := e.declared(s, grammar.EventStartElementNS, nil, q.URI); ok {
		if err := e.writeCode(s, code); err != nil {
			return err
		}
		u := e.uriOf(q.URI)
		n, err := e.writeLocalName(e.ch, u, q.Local)
		if err != nil {
			return err
		}
		if err := e.writePrefix(e.ch, u, q.Prefix); err != nil {
			return err
		}
		e.enterElement(s, code, n).prefix = q.Prefix
		return nil
	}

	code, ok := e.declared(s, grammar.EventStartElementGeneric, nil, "")
	if !ok {
		code, ok = e.undeclared(s, grammar.EventStartElementGeneric)
		if !ok {
			return notRepresentable(grammar.EventStartElement, s)
		}
	}
	if err := e.writeCode(s, code); err != nil {
		return err
	}
	n, err := e.writeQName(e.ch, q)
	if err != nil {
		return err
	}
	if err := e.writePrefix(e.ch, e.uriOf(n.URI), q.Prefix); err != nil {
		return err
	}
	e.enterElement(s, code, n).prefix = q.Prefix
	return nil
}

// EncodeAttribute codes the attribute q of the open element. On schema-informed
// elements, xsi:type and xsi:nil take their dedicated productions when the
// current rule offers them.
func (e *Encoder) EncodeAttribute(q QName, value string) error {
	s, err := e.begin(grammar.EventAttribute, true)
	if err != nil {
		return err
	}
	if !s.rule.BuiltIn {
		switch {
		case isXsiType(q):
			if _, ok := e.undeclared(s, grammar.EventAttributeXsiType); ok {
				t, err := e.parseQName(value)
				if err != nil {
					return e.fail(err)
				}
				return e.EncodeXsiType(t)
			}
		case isXsiNil(q):
			if _, ok := e.undeclared(s, grammar.EventAttributeXsiNil); ok {
				if b, ok := parseBoolean(strings.TrimSpace(value)); ok {
					return e.EncodeXsiNil(b)
				}
			}
		}
	}
	if err := e.encodeAttribute(s, q, value); err != nil {
		return e.fail(err)
	}
	return nil
}

// parseQName resolves a lexical qualified name against the namespaces the open
// elements declare.
func (e *Encoder) parseQName(value string) (QName, error) {
	v := strings.TrimSpace(value)
	prefix, local := "", v
	if i := strings.IndexByte(v, ':'); i >= 0 {
		prefix, local = v[:i], v[i+1:]
	}
	uri, ok := e.resolvePrefix(prefix)
	if !ok {
		return QName{}, errors.Wrapf(ErrInvalidValue, "undeclared prefix: %q", prefix)
	}
	return QName{
		URI:    uri,
		Local:  local,
		Prefix: prefix,
	}, nil
}

func (e *Encoder) encodeAttribute(s *scope, q QName, value string) error {
	n, known := e.lookupName(q)
	if known {
		if code, ok := e.declared(s, grammar.EventAttribute, n, ""); ok {
			dt := s.rule.Production(code.Production).Event.Datatype
			if !e.values.IsValid(dt, value) {
				if e.fidelity.Strict {
					return errors.Wrapf(ErrInvalidValue, "%v: %q is not a valid %v", n, value, dt)
				}
				code, ok = e.eventCodes(s.rule).Invalid(code.Production)
				if !ok {
					return errors.Wrapf(ErrInvalidValue, "%v: %q is not a valid %v", n, value, dt)
				}
				dt = schema.Untyped
			}
			if err := e.writeCode(s, code); err != nil {
				return err
			}
			if err := e.writePrefix(e.ch, e.uriOf(n.URI), q.Prefix); err != nil {
				return err
			}
			if err := e.values.WriteValue(e.ch, dt, value); err != nil {
				return err
			}
			e.advance(s, code, grammar.Event{})
			return nil
		}
	}

	if code, ok := e.declared(s, grammar.EventAttributeNS, nil, q.URI); ok {
		if err := e.writeCode(s, code); err != nil {
			return err
		}
		u := e.uriOf(q.URI)
		n, err := e.writeLocalName(e.ch, u, q.Local)
		if err != nil {
			return err
		}
		if err := e.writePrefix(e.ch, u, q.Prefix); err != nil {
			return err
		}
		if err := e.values.WriteValue(e.ch, e.attributeType(n), value); err != nil {
			return err
		}
		e.advance(s, code, grammar.Event{})
		return nil
	}

	code, ok := e.declared(s, grammar.EventAttributeGeneric, nil, "")
	if !ok {
		code, ok = e.undeclared(s, grammar.EventAttributeGeneric)
		if !ok {
			return notRepresentable(grammar.EventAttribute, s)
		}
	}
	if err := e.writeCode(s, code); err != nil {
		return err
	}
	n, err := e.writeQName(e.ch, q)
	if err != nil {
		return err
	}
	if err := e.writePrefix(e.ch, e.uriOf(n.URI), q.Prefix); err != nil {
		return err
	}
	if err := e.values.WriteValue(e.ch, e.attributeType(n), value); err != nil {
		return err
	}
	e.advance(s, code, grammar.Event{
		Kind: grammar.EventAttribute,
		Name: n,
	})
	return nil
}

// attributeType returns the datatype of an attribute matched by a wildcard.
func (c *coder) attributeType(n *name.Context) schema.Datatype {
	if dt, ok := c.g.GlobalAttribute(n); ok {
		return dt
	}
	return schema.Untyped
}

// EncodeXsiType codes an xsi:type attribute naming the type t. The element
// continues with the grammar of t when the schema defines it.
func (e *Encoder) EncodeXsiType(t QName) error {
	s, err := e.begin(grammar.EventAttributeXsiType, true)
	if err != nil {
		return err
	}
	if s.rule.BuiltIn {
		return e.encodeAttributeOrFail(s, QName{URI: name.URIXSI, Local: name.LocalNameXsiType, Prefix: name.PrefixXSI}, t.Lexical())
	}
	code, ok := e.undeclared(s, grammar.EventAttributeXsiType)
	if !ok {
		return e.fail(notRepresentable(grammar.EventAttributeXsiType, s))
	}
	if err := e.writeCode(s, code); err != nil {
		return e.fail(err)
	}
	n, err := e.writeQName(e.ch, t)
	if err != nil {
		return e.fail(err)
	}
	if err := e.writePrefix(e.ch, e.uriOf(n.URI), t.Prefix); err != nil {
		return e.fail(err)
	}
	e.advance(s, code, grammar.Event{})
	e.switchType(s, t)
	return nil
}

// EncodeXsiNil codes an xsi:nil attribute. A nil element has no content.
func (e *Encoder) EncodeXsiNil(isNil bool) error {
	s, err := e.begin(grammar.EventAttributeXsiNil, true)
	if err != nil {
		return err
	}
	if s.rule.BuiltIn {
		return e.encodeAttributeOrFail(s, QName{URI: name.URIXSI, Local: name.LocalNameXsiNil, Prefix: name.PrefixXSI}, formatBoolean(isNil))
	}
	code, ok := e.undeclared(s, grammar.EventAttributeXsiNil)
	if !ok {
		return e.fail(notRepresentable(grammar.EventAttributeXsiNil, s))
	}
	if err := e.writeCode(s, code); err != nil {
		return e.fail(err)
	}
	if err := e.ch.EncodeBoolean(isNil); err != nil {
		return e.fail(err)
	}
	e.advance(s, code, grammar.Event{})
	if isNil {
		e.switchNil(s)
	}
	return nil
}

func (e *Encoder) encodeAttributeOrFail(s *scope, q QName, value string) error {
	if err := e.encodeAttribute(s, q, value); err != nil {
		return e.fail(err)
	}
	return nil
}

// EncodeNamespaceDeclaration codes a namespace declaration of the open
// element. Streams only carry them when they preserve prefixes.
func (e *Encoder) EncodeNamespaceDeclaration(uri, prefix string, localElementNS bool) error {
	s, err := e.begin(grammar.EventNamespaceDeclaration, true)
	if err != nil {
		return err
	}
	code, ok := e.undeclared(s, grammar.EventNamespaceDeclaration)
	if !ok {
		return e.fail(notRepresentable(grammar.EventNamespaceDeclaration, s))
	}
	if err := e.writeCode(s, code); err != nil {
		return e.fail(err)
	}
	u, err := e.writeURI(e.ch, uri)
	if err != nil {
		return e.fail(err)
	}
	if err := e.writePrefix(e.ch, u, prefix); err != nil {
		return e.fail(err)
	}
	if err := e.ch.EncodeBoolean(localElementNS); err != nil {
		return e.fail(err)
	}
	e.advance(s, code, grammar.Event{})
	e.declare(s, prefix, uri)
	return nil
}

// EncodeSelfContained makes the content of the open element a byte-aligned
// fragment coded with fresh tables.
func (e *Encoder) EncodeSelfContained() error {
	s, err := e.begin(grammar.EventSelfContained, true)
	if err != nil {
		return err
	}
	if err := e.encodeSelfContained(s); err != nil {
		return e.fail(err)
	}
	return nil
}

func (e *Encoder) encodeSelfContained(s *scope) error {
	code, ok := e.undeclared(s, grammar.EventSelfContained)
	if !ok {
		return notRepresentable(grammar.EventSelfContained, s)
	}
	if err := e.writeCode(s, code); err != nil {
		return err
	}
	e.advance(s, code, grammar.Event{})
	if err := e.ch.Align(); err != nil {
		return err
	}

	frag := e.enterSelfContained(s)
	sd, _ := e.eventCodes(frag).Declared(0)
	if err := e.ch.EncodeNBitUnsignedInteger(uint64(sd.Parts[0]), sd.Widths[0]); err != nil {
		return err
	}
	content := frag.Next(sd.Production)
	root := &scope{
		rule: content,
	}
	q := qnameOf(s.name, "")
	n, known := e.lookupName(q)
	if known {
		if code, ok := e.declared(root, grammar.EventStartElement, n, ""); ok {
			if err := e.writeCode(root, code); err != nil {
				return err
			}
			if err := e.writePrefix(e.ch, e.uriOf(n.URI), s.prefix); err != nil {
				return err
			}
			e.restartElement(s, content, code.Production, n)
			return nil
		}
	}
	code, ok = e.declared(root, grammar.EventStartElementGeneric, nil, "")
	if !ok {
		return notRepresentable(grammar.EventStartElementGeneric, root)
	}
	if err := e.writeCode(root, code); err != nil {
		return err
	}
	n, err := e.writeQName(e.ch, q)
	if err != nil {
		return err
	}
	if err := e.writePrefix(e.ch, e.uriOf(n.URI), s.prefix); err != nil {
		return err
	}
	e.restartElement(s, content, code.Production, n)
	return nil
}

func (e *Encoder) EncodeCharacters(value string) error {
	s, err := e.begin(grammar.EventCharacters, true)
	if err != nil {
		return err
	}
	if err := e.encodeCharacters(s, value); err != nil {
		return e.fail(err)
	}
	return nil
}

func (e *Encoder) encodeCharacters(s *scope, value string) error {
	if code, ok := e.declared(s, grammar.EventCharacters, nil, ""); ok {
		dt := s.rule.Production(code.Production).Event.Datatype
		if e.values.IsValid(dt, value) {
			if err := e.writeCode(s, code); err != nil {
				return err
			}
			if err := e.values.WriteValue(e.ch, dt, value); err != nil {
				return err
			}
			e.advance(s, code, grammar.Event{})
			return nil
		}
		if e.fidelity.Strict {
			return errors.Wrapf(ErrInvalidValue, "%q is not a valid %v", value, dt)
		}
	}
	code, ok := e.declared(s, grammar.EventCharactersGeneric, nil, "")
	if !ok {
		code, ok = e.undeclared(s, grammar.EventCharactersGeneric)
		if !ok {
			return notRepresentable(grammar.EventCharacters, s)
		}
	}
	if err := e.writeCode(s, code); err != nil {
		return err
	}
	if err := e.values.WriteValue(e.ch, schema.Untyped, value); err != nil {
		return err
	}
	e.advance(s, code, grammar.Event{
		Kind: grammar.EventCharactersGeneric,
	})
	return nil
}

func (e *Encoder) EncodeEndElement() error {
	s, err := e.begin(grammar.EventEndElement, true)
	if err != nil {
		return err
	}
	if err := e.encodeEndElement(s); err != nil {
		return e.fail(err)
	}
	return nil
}

func (e *Encoder) encodeEndElement(s *scope) error {
	code, ok := e.declared(s, grammar.EventEndElement, nil, "")
	if !ok {
		code, ok = e.undeclared(s, grammar.EventEndElement)
		if !ok {
			return notRepresentable(grammar.EventEndElement, s)
		}
	}
	if err := e.writeCode(s, code); err != nil {
		return err
	}
	e.advance(s, code, grammar.Event{
		Kind: grammar.EventEndElement,
	})
	if s.outer != nil {
		root := &scope{
			rule: s.fragment,
		}
		ed, ok := e.declared(root, grammar.EventEndDocument, nil, "")
		if !ok {
			return notRepresentable(grammar.EventEndDocument, root)
		}
		if err := e.writeCode(root, ed); err != nil {
			return err
		}
		if err := e.ch.Align(); err != nil {
			return err
		}
		e.leaveSelfContained(s)
	}
	e.pop()
	return nil
}

// encodeMisc codes an event that only exists at the second or third level,
// then its content.
func (e *Encoder) encodeMisc(k grammar.EventKind, element bool, write func() error) error {
	s, err := e.begin(k, element)
	if err != nil {
		return err
	}
	code, ok := e.undeclared(s, k)
	if !ok {
		return e.fail(notRepresentable(k, s))
	}
	if err := e.writeCode(s, code); err != nil {
		return e.fail(err)
	}
	if err := write(); err != nil {
		return e.fail(err)
	}
	e.advance(s, code, grammar.Event{})
	return nil
}

func (e *Encoder) EncodeComment(text string) error {
	return e.encodeMisc(grammar.EventComment, false, func() error {
		return e.ch.EncodeString(text)
	})
}

func (e *Encoder) EncodeProcessingInstruction(target, data string) error {
	return e.encodeMisc(grammar.EventProcessingInstruction, false, func() error {
		if err := e.ch.EncodeString(target); err != nil {
			return err
		}
		return e.ch.EncodeString(data)
	})
}

func (e *Encoder) EncodeDocType(root, public, system, text string) error {
	return e.encodeMisc(grammar.EventDocType, false, func() error {
		for _, v := range []string{root, public, system, text} {
			if err := e.ch.EncodeString(v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Encoder) EncodeEntityReference(name string) error {
	return e.encodeMisc(grammar.EventEntityReference, true, func() error {
		return e.ch.EncodeString(name)
	})
}

// EncodeEndDocument codes the end of the document and flushes the channel.
func (e *Encoder) EncodeEndDocument() error {
	s, err := e.begin(grammar.EventEndDocument, false)
	if err != nil {
		return err
	}
	if len(e.stack) != 1 {
		return e.fail(errors.Wrapf(ErrUnbalanced, "%v elements are still open", len(e.stack)-1))
	}
	code, ok := e.declared(s, grammar.EventEndDocument, nil, "")
	if !ok {
		return e.fail(notRepresentable(grammar.EventEndDocument, s))
	}
	if err := e.writeCode(s, code); err != nil {
		return e.fail(err)
	}
	e.pop()
	e.done = true
	if err := e.ch.Flush(); err != nil {
		return e.fail(err)
	}
	return nil
}
