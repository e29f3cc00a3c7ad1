package driver

import (
	"github.com/golang/glog"
	"github.com/nihei9/exigram/grammar"
	"github.com/nihei9/exigram/grammar/name"
	"github.com/pkg/errors"
)

type Option func(c *coder) error

// WithFidelity selects the parts of the infoset the stream preserves.
func WithFidelity(f grammar.Fidelity) Option {
	return func(c *coder) error {
		if err := f.Validate(); err != nil {
			return err
		}
		c.fidelity = f
		return nil
	}
}

// WithSessionOptions sets the learning limits of the session a coder
// creates.
func WithSessionOptions(opts ...grammar.SessionOption) Option {
	return func(c *coder) error {
		c.sessionOpts = append(c.sessionOpts, opts...)
		return nil
	}
}

// WithSession makes a coder continue the session s, so the names and the
// productions it learned stay known. s must belong to the coder's grammar.
func WithSession(s *grammar.Session) Option {
	return func(c *coder) error {
		c.session = s
		return nil
	}
}

// AsFragment codes a fragment, which may have any number of root elements.
func AsFragment() Option {
	return func(c *coder) error {
		c.fragment = true
		return nil
	}
}

// WithCookie makes an encoder start the stream with the "$EXI" cookie.
// Decoders accept streams with and without it.
func WithCookie() Option {
	return func(c *coder) error {
		c.cookie = true
		return nil
	}
}

func WithValueCodec(v ValueCodec) Option {
	return func(c *coder) error {
		c.values = v
		return nil
	}
}

type scope struct {
	rule    *grammar.Rule
	element *grammar.ElementGrammar
	name    *name.Context
	prefix  string

	// ns holds the prefixes the element declares.
	ns map[string]string

	// fragment and outer are set on self-contained elements: fragment is the
	// rule the fragment continues with and outer the enclosing session.
	fragment *grammar.Rule
	outer    *grammar.Session
}

type codesKey struct {
	rule *grammar.Rule
	n    int
}

// coder is the grammar walker an encoder and a decoder share. Both sides call
// the same transitions in the same order, so they learn alike.
type coder struct {
	g           *grammar.Grammar
	session     *grammar.Session
	sessionOpts []grammar.SessionOption
	fidelity    grammar.Fidelity
	fragment    bool
	cookie      bool
	values      ValueCodec
	stack       []*scope
	codes       map[codesKey]*grammar.EventCodes
	started     bool
	done        bool
	err         error
}

func newCoder(g *grammar.Grammar, opts ...Option) (*coder, error) {
	c := &coder{
		g:      g,
		values: StringCodec{},
		codes:  map[codesKey]*grammar.EventCodes{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.fidelity.Strict && !g.IsSchemaInformed() {
		return nil, errors.Wrap(grammar.ErrNoSchema, "strict mode")
	}
	if c.session == nil {
		c.session = g.NewSession(c.sessionOpts...)
	}
	if c.session.Grammar() != g {
		return nil, errors.New("the session belongs to another grammar")
	}
	return c, nil
}

// Session returns the session the coder learns into.
func (c *coder) Session() *grammar.Session {
	return c.session
}

func (c *coder) root() *grammar.Rule {
	if c.fragment {
		return c.g.Fragment()
	}
	return c.g.Document()
}

func (c *coder) top() *scope {
	return c.stack[len(c.stack)-1]
}

func (c *coder) push(s *scope) {
	c.stack = append(c.stack, s)
}

func (c *coder) pop() *scope {
	s := c.top()
	c.stack = c.stack[:len(c.stack)-1]
	return s
}

// eventCodes returns the code layout of r. Layouts are cached per number of
// productions because built-in rules grow while the coder runs.
func (c *coder) eventCodes(r *grammar.Rule) *grammar.EventCodes {
	k := codesKey{
		rule: r,
		n:    r.Len(),
	}
	if codes, ok := c.codes[k]; ok {
		return codes
	}
	codes := grammar.DeriveCodes(r, c.fidelity)
	c.codes[k] = codes
	return codes
}

// fail makes the coder unusable. A failed stream cannot be resumed.
func (c *coder) fail(err error) error {
	if c.err == nil {
		c.err = err
	}
	return err
}

// advance moves s past an event coded with code. learn is the event a
// built-in rule learns when code is an undeclared one.
func (c *coder) advance(s *scope, code grammar.Code, learn grammar.Event) {
	if code.Production >= 0 {
		s.rule = s.rule.Next(code.Production)
		return
	}
	next := s.rule.UndeclaredNext(code.Kind)
	if c.session.LearnUndeclared(s.rule, learn) {
		delete(c.codes, codesKey{rule: s.rule, n: s.rule.Len() - 1})
	}
	s.rule = next
}

// enterElement moves s past a start element coded with code and pushes the
// scope of the element n.
func (c *coder) enterElement(s *scope, code grammar.Code, n *name.Context) *scope {
	var e *grammar.ElementGrammar
	if code.Production >= 0 {
		e = s.rule.Production(code.Production).Event.Element
	}
	if e == nil {
		e = c.session.ElementGrammar(n)
	}
	c.advance(s, code, grammar.Event{
		Kind: grammar.EventStartElement,
		Name: n,
	})
	child := &scope{
		rule:    e.Start(),
		element: e,
		name:    n,
	}
	c.push(child)
	return child
}

// switchType switches s to the grammar of the type q named by xsi:type. An
// unknown type leaves s as it is.
func (c *coder) switchType(s *scope, q QName) {
	tg, ok := c.g.TypeGrammar(schemaQName(q))
	if !ok {
		glog.V(2).Infof("xsi:type names an unknown type %v; the element keeps its grammar", q)
		return
	}
	s.rule = tg.Start
}

// switchNil switches s to the grammar of a nil element.
func (c *coder) switchNil(s *scope) {
	if s.rule.Type == nil {
		return
	}
	s.rule = s.rule.Type.Empty
}

// enterSelfContained codes the rest of s as a fragment of its own. The
// fragment starts with empty tables, so it can be decoded on its own.
func (c *coder) enterSelfContained(s *scope) *grammar.Rule {
	s.outer = c.session
	c.session = c.session.Fresh()
	return c.g.Fragment()
}

// restartElement resumes s once the fragment coded its start element with the
// production num of content. Built-in elements continue with a grammar of the
// fresh session.
func (c *coder) restartElement(s *scope, content *grammar.Rule, num int, n *name.Context) {
	s.fragment = content.Next(num)
	s.name = n
	if s.element.IsBuiltIn() {
		s.element = c.session.BuiltInElementGrammar(n)
		s.rule = s.element.Start()
	}
}

func (c *coder) leaveSelfContained(s *scope) {
	c.session = s.outer
	s.outer = nil
	s.fragment = nil
}

// resolvePrefix looks the namespace of prefix up in the declarations of the
// open elements.
func (c *coder) resolvePrefix(prefix string) (string, bool) {
	for i := len(c.stack) - 1; i >= 0; i-- {
		if uri, ok := c.stack[i].ns[prefix]; ok {
			return uri, true
		}
	}
	switch prefix {
	case "":
		return name.URIEmpty, true
	case name.PrefixXML:
		return name.URIXML, true
	case name.PrefixXSI:
		return name.URIXSI, true
	}
	return "", false
}

func (c *coder) declare(s *scope, prefix, uri string) {
	if s.ns == nil {
		s.ns = map[string]string{}
	}
	s.ns[prefix] = uri
}

func isXsiType(q QName) bool {
	return q.URI == name.URIXSI && q.Local == name.LocalNameXsiType
}

func isXsiNil(q QName) bool {
	return q.URI == name.URIXSI && q.Local == name.LocalNameXsiNil
}

// parseBoolean parses the lexical forms of xs:boolean.
func parseBoolean(s string) (bool, bool) {
	switch s {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	}
	return false, false
}

func formatBoolean(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
