package driver

import (
	"io"

	"github.com/golang/glog"
	"github.com/nihei9/exigram/grammar"
	"github.com/nihei9/exigram/grammar/name"
	"github.com/nihei9/exigram/schema"
	"github.com/pkg/errors"
)

type pendingCode struct {
	scope   *scope
	code    grammar.Code
	invalid bool
}

// Decoder reads EXI event codes and values back into events. It walks the
// same grammar an encoder did, so it needs the grammar and the options the
// stream was encoded with.
type Decoder struct {
	*coder
	ch      DecoderChannel
	pending *pendingCode
}

func NewDecoder(g *grammar.Grammar, ch DecoderChannel, opts ...Option) (*Decoder, error) {
	c, err := newCoder(g, opts...)
	if err != nil {
		return nil, err
	}
	return &Decoder{
		coder: c,
		ch:    ch,
	}, nil
}

func (d *Decoder) HasNext() bool {
	return d.err == nil && !d.done
}

// readCode reads an event code of r part by part.
func (d *Decoder) readCode(r *grammar.Rule) (grammar.Code, bool, error) {
	codes := d.eventCodes(r)
	var parts []int
	for {
		v, err := d.ch.DecodeNBitUnsignedInteger(codes.NextWidth(parts))
		if err != nil {
			return grammar.Code{}, false, err
		}
		parts = append(parts, int(v))
		code, complete, ok := codes.Lookup(parts)
		if !ok {
			return grammar.Code{}, false, errors.Wrapf(ErrMalformedEventCode, "%v in rule #%v (%v)", parts, r.ID, r.Role)
		}
		if !complete {
			continue
		}
		invalid := code.Level == 3 && codes.Second[code.Parts[1]].Family == grammar.FamilyInvalidAttribute
		if glog.V(3) {
			glog.Infof("decode %v %v in rule #%v (%v)", code, code.Kind, r.ID, r.Role)
		}
		return code, invalid, nil
	}
}

// NextEventType reads the code of the next event and returns its kind. The
// event stays pending until a Decode method of its family consumes it.
func (d *Decoder) NextEventType() (grammar.EventKind, error) {
	if d.err != nil {
		return 0, d.err
	}
	if d.pending != nil {
		return d.pending.code.Kind, nil
	}
	if d.done {
		return 0, io.EOF
	}
	if !d.started {
		if err := d.readHeader(d.ch); err != nil {
			return 0, d.fail(err)
		}
		d.started = true
		d.push(&scope{
			rule: d.root(),
		})
	}
	s := d.top()
	code, invalid, err := d.readCode(s.rule)
	if err != nil {
		return 0, d.fail(err)
	}
	d.pending = &pendingCode{
		scope:   s,
		code:    code,
		invalid: invalid,
	}
	return code.Kind, nil
}

// take consumes the pending code when its kind passes accept. A rejected code
// stays pending.
func (d *Decoder) take(want string, accept func(k grammar.EventKind) bool) (*pendingCode, error) {
	if _, err := d.NextEventType(); err != nil {
		return nil, err
	}
	p := d.pending
	if !accept(p.code.Kind) {
		return nil, errors.Wrapf(ErrUnexpectedEvent, "the next event is %v, not %v", p.code.Kind, want)
	}
	d.pending = nil
	return p, nil
}

func (d *Decoder) takeFamily(family grammar.EventKind) (*pendingCode, error) {
	return d.take(family.String(), func(k grammar.EventKind) bool {
		return k.Family() == family
	})
}

func (d *Decoder) takeKind(kind grammar.EventKind) (*pendingCode, error) {
	return d.take(kind.String(), func(k grammar.EventKind) bool {
		return k == kind
	})
}

func (d *Decoder) DecodeStartDocument() error {
	p, err := d.takeKind(grammar.EventStartDocument)
	if err != nil {
		return err
	}
	d.advance(p.scope, p.code, grammar.Event{})
	return nil
}

// DecodeStartElement returns the name of the element the pending code starts.
func (d *Decoder) DecodeStartElement() (QName, error) {
	p, err := d.takeFamily(grammar.EventStartElement)
	if err != nil {
		return QName{}, err
	}
	q, err := d.decodeStartElement(p)
	if err != nil {
		return QName{}, d.fail(err)
	}
	return q, nil
}

func (d *Decoder) decodeStartElement(p *pendingCode) (QName, error) {
	s := p.scope
	var n *name.Context
	var err error
	switch {
	case p.code.Kind == grammar.EventStartElement:
		n = s.rule.Production(p.code.Production).Event.Name
	case p.code.Kind == grammar.EventStartElementNS:
		u := d.uriOf(s.rule.Production(p.code.Production).Event.URI)
		n, err = d.readLocalName(d.ch, u)
	default:
		n, err = d.readQName(d.ch)
	}
	if err != nil {
		return QName{}, err
	}
	prefix, err := d.readPrefix(d.ch, d.uriOf(n.URI))
	if err != nil {
		return QName{}, err
	}
	d.enterElement(s, p.code, n).prefix = prefix
	return qnameOf(n, prefix), nil
}

// DecodeAttribute returns an attribute of the open element. xsi:type and
// xsi:nil coded with their dedicated productions are read with DecodeXsiType
// and DecodeXsiNil.
func (d *Decoder) DecodeAttribute() (QName, string, error) {
	p, err := d.take(grammar.EventAttribute.String(), func(k grammar.EventKind) bool {
		return k == grammar.EventAttribute || k == grammar.EventAttributeNS || k == grammar.EventAttributeGeneric
	})
	if err != nil {
		return QName{}, "", err
	}
	q, v, err := d.decodeAttribute(p)
	if err != nil {
		return QName{}, "", d.fail(err)
	}
	return q, v, nil
}

func (d *Decoder) decodeAttribute(p *pendingCode) (QName, string, error) {
	s := p.scope
	var n *name.Context
	var dt schema.Datatype
	var learn grammar.Event
	switch {
	case p.code.Kind == grammar.EventAttribute:
		ev := s.rule.Production(p.code.Production).Event
		n = ev.Name
		dt = ev.Datatype
		if p.invalid {
			dt = schema.Untyped
		}
	case p.code.Kind == grammar.EventAttributeNS:
		u := d.uriOf(s.rule.Production(p.code.Production).Event.URI)
		var err error
		n, err = d.readLocalName(d.ch, u)
		if err != nil {
			return QName{}, "", err
		}
		dt = d.attributeType(n)
	default:
		var err error
		n, err = d.readQName(d.ch)
		if err != nil {
			return QName{}, "", err
		}
		dt = d.attributeType(n)
		if p.code.Production < 0 {
			learn = grammar.Event{
				Kind: grammar.EventAttribute,
				Name: n,
			}
		}
	}
	prefix, err := d.readPrefix(d.ch, d.uriOf(n.URI))
	if err != nil {
		return QName{}, "", err
	}
	v, err := d.values.ReadValue(d.ch, dt)
	if err != nil {
		return QName{}, "", err
	}
	d.advance(s, p.code, learn)
	return qnameOf(n, prefix), v, nil
}

// DecodeXsiType returns the type an xsi:type attribute names.
func (d *Decoder) DecodeXsiType() (QName, error) {
	p, err := d.takeKind(grammar.EventAttributeXsiType)
	if err != nil {
		return QName{}, err
	}
	n, err := d.readQName(d.ch)
	if err != nil {
		return QName{}, d.fail(err)
	}
	prefix, err := d.readPrefix(d.ch, d.uriOf(n.URI))
	if err != nil {
		return QName{}, d.fail(err)
	}
	t := qnameOf(n, prefix)
	d.advance(p.scope, p.code, grammar.Event{})
	d.switchType(p.scope, t)
	return t, nil
}

func (d *Decoder) DecodeXsiNil() (bool, error) {
	p, err := d.takeKind(grammar.EventAttributeXsiNil)
	if err != nil {
		return false, err
	}
	b, err := d.ch.DecodeBoolean()
	if err != nil {
		return false, d.fail(err)
	}
	d.advance(p.scope, p.code, grammar.Event{})
	if b {
		d.switchNil(p.scope)
	}
	return b, nil
}

// DecodeNamespaceDeclaration returns the namespace, the prefix, and whether the
// prefix is the one of the element's own name.
func (d *Decoder) DecodeNamespaceDeclaration() (string, string, bool, error) {
	p, err := d.takeKind(grammar.EventNamespaceDeclaration)
	if err != nil {
		return "", "", false, err
	}
	u, err := d.readURI(d.ch)
	if err != nil {
		return "", "", false, d.fail(err)
	}
	prefix, err := d.readPrefix(d.ch, u)
	if err != nil {
		return "", "", false, d.fail(err)
	}
	local, err := d.ch.DecodeBoolean()
	if err != nil {
		return "", "", false, d.fail(err)
	}
	d.advance(p.scope, p.code, grammar.Event{})
	d.declare(p.scope, prefix, u.URI)
	return u.URI, prefix, local, nil
}

func (d *Decoder) DecodeSelfContained() error {
	p, err := d.takeKind(grammar.EventSelfContained)
	if err != nil {
		return err
	}
	if err := d.decodeSelfContained(p); err != nil {
		return d.fail(err)
	}
	return nil
}

func (d *Decoder) decodeSelfContained(p *pendingCode) error {
	s := p.scope
	d.advance(s, p.code, grammar.Event{})
	if err := d.ch.Align(); err != nil {
		return err
	}

	frag := d.enterSelfContained(s)
	sd, _, err := d.readCode(frag)
	if err != nil {
		return err
	}
	if sd.Kind != grammar.EventStartDocument {
		return errors.Wrapf(ErrMalformedEventCode, "a self-contained fragment starts with %v", sd.Kind)
	}
	content := frag.Next(sd.Production)
	code, _, err := d.readCode(content)
	if err != nil {
		return err
	}
	var n *name.Context
	switch code.Kind {
	case grammar.EventStartElement:
		n = content.Production(code.Production).Event.Name
	case grammar.EventStartElementGeneric:
		n, err = d.readQName(d.ch)
		if err != nil {
			return err
		}
	default:
		return errors.Wrapf(ErrMalformedEventCode, "a self-contained fragment continues with %v", code.Kind)
	}
	if _, err := d.readPrefix(d.ch, d.uriOf(n.URI)); err != nil {
		return err
	}
	d.restartElement(s, content, code.Production, n)
	return nil
}

// DecodeEndElement closes the open element and returns its name.
func (d *Decoder) DecodeEndElement() (QName, error) {
	p, err := d.takeKind(grammar.EventEndElement)
	if err != nil {
		return QName{}, err
	}
	s := p.scope
	q := qnameOf(s.name, s.prefix)
	d.advance(s, p.code, grammar.Event{
		Kind: grammar.EventEndElement,
	})
	if s.outer != nil {
		ed, _, err := d.readCode(s.fragment)
		if err != nil {
			return QName{}, d.fail(err)
		}
		if ed.Kind != grammar.EventEndDocument {
			return QName{}, d.fail(errors.Wrapf(ErrMalformedEventCode, "a self-contained fragment ends with %v", ed.Kind))
		}
		if err := d.ch.Align(); err != nil {
			return QName{}, d.fail(err)
		}
		d.leaveSelfContained(s)
	}
	d.pop()
	return q, nil
}

func (d *Decoder) DecodeCharacters() (string, error) {
	p, err := d.takeFamily(grammar.EventCharacters)
	if err != nil {
		return "", err
	}
	dt := schema.Untyped
	var learn grammar.Event
	if p.code.Kind == grammar.EventCharacters {
		dt = p.scope.rule.Production(p.code.Production).Event.Datatype
	} else if p.code.Production < 0 {
		learn = grammar.Event{
			Kind: grammar.EventCharactersGeneric,
		}
	}
	v, err := d.values.ReadValue(d.ch, dt)
	if err != nil {
		return "", d.fail(err)
	}
	d.advance(p.scope, p.code, learn)
	return v, nil
}

// decodeStrings reads the n strings an event of kind k carries.
func (d *Decoder) decodeStrings(k grammar.EventKind, n int) ([]string, error) {
	p, err := d.takeKind(k)
	if err != nil {
		return nil, err
	}
	vs := make([]string, n)
	for i := range vs {
		vs[i], err = d.ch.DecodeString()
		if err != nil {
			return nil, d.fail(err)
		}
	}
	d.advance(p.scope, p.code, grammar.Event{})
	return vs, nil
}

func (d *Decoder) DecodeComment() (string, error) {
	vs, err := d.decodeStrings(grammar.EventComment, 1)
	if err != nil {
		return "", err
	}
	return vs[0], nil
}

func (d *Decoder) DecodeProcessingInstruction() (string, string, error) {
	vs, err := d.decodeStrings(grammar.EventProcessingInstruction, 2)
	if err != nil {
		return "", "", err
	}
	return vs[0], vs[1], nil
}

// DecodeDocType returns the root element name, the public and system ids, and
// the internal subset.
func (d *Decoder) DecodeDocType() (string, string, string, string, error) {
	vs, err := d.decodeStrings(grammar.EventDocType, 4)
	if err != nil {
		return "", "", "", "", err
	}
	return vs[0], vs[1], vs[2], vs[3], nil
}

func (d *Decoder) DecodeEntityReference() (string, error) {
	vs, err := d.decodeStrings(grammar.EventEntityReference, 1)
	if err != nil {
		return "", err
	}
	return vs[0], nil
}

func (d *Decoder) DecodeEndDocument() error {
	p, err := d.takeKind(grammar.EventEndDocument)
	if err != nil {
		return err
	}
	d.advance(p.scope, p.code, grammar.Event{})
	d.pop()
	d.done = true
	return nil
}

// Next decodes the next event whatever its kind. It returns io.EOF once the
// document has ended.
func (d *Decoder) Next() (*Event, error) {
	k, err := d.NextEventType()
	if err != nil {
		return nil, err
	}
	ev := &Event{
		Kind: k,
	}
	switch k {
	case grammar.EventStartDocument:
		err = d.DecodeStartDocument()
	case grammar.EventEndDocument:
		err = d.DecodeEndDocument()
	case grammar.EventStartElement, grammar.EventStartElementNS, grammar.EventStartElementGeneric:
		ev.Name, err = d.DecodeStartElement()
	case grammar.EventAttribute, grammar.EventAttributeNS, grammar.EventAttributeGeneric:
		ev.Name, ev.Value, err = d.DecodeAttribute()
	case grammar.EventAttributeXsiType:
		ev.Name = QName{URI: name.URIXSI, Local: name.LocalNameXsiType, Prefix: name.PrefixXSI}
		ev.TypeName, err = d.DecodeXsiType()
	case grammar.EventAttributeXsiNil:
		ev.Name = QName{URI: name.URIXSI, Local: name.LocalNameXsiNil, Prefix: name.PrefixXSI}
		var b bool
		b, err = d.DecodeXsiNil()
		ev.Value = formatBoolean(b)
	case grammar.EventNamespaceDeclaration:
		ev.Name.URI, ev.Name.Prefix, ev.LocalElementNS, err = d.DecodeNamespaceDeclaration()
	case grammar.EventSelfContained:
		err = d.DecodeSelfContained()
	case grammar.EventEndElement:
		ev.Name, err = d.DecodeEndElement()
	case grammar.EventCharacters, grammar.EventCharactersGeneric:
		ev.Value, err = d.DecodeCharacters()
	case grammar.EventComment:
		ev.Value, err = d.DecodeComment()
	case grammar.EventProcessingInstruction:
		ev.Target, ev.Value, err = d.DecodeProcessingInstruction()
	case grammar.EventDocType:
		ev.Value, ev.Public, ev.System, ev.Text, err = d.DecodeDocType()
	case grammar.EventEntityReference:
		ev.Value, err = d.DecodeEntityReference()
	default:
		err = d.fail(errors.Wrapf(ErrMalformedEventCode, "unknown event kind: %v", k))
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}
