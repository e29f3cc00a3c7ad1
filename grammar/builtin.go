package grammar

import (
	"github.com/golang/glog"
	"github.com/nihei9/exigram/grammar/name"
)

type sessionConfig struct {
	maxProductions int
	maxGrammars    int
}

type SessionOption func(config *sessionConfig)

// MaxBuiltInProductions limits the number of productions each built-in rule
// learns. A non-positive value means no limit.
func MaxBuiltInProductions(n int) SessionOption {
	return func(config *sessionConfig) {
		config.maxProductions = n
	}
}

// MaxBuiltInElementGrammars limits the number of built-in element grammars a
// session creates. Elements seen after the limit is reached share a single
// grammar that never learns. A non-positive value means no limit.
func MaxBuiltInElementGrammars(n int) SessionOption {
	return func(config *sessionConfig) {
		config.maxGrammars = n
	}
}

// Session holds the state a coder mutates while it codes: the name table and
// the built-in element grammars. A session must not be used by coders running
// concurrently.
type Session struct {
	g        *Grammar
	config   sessionConfig
	names    *name.Table
	rules    *arena
	elements map[*name.Context]*ElementGrammar
	generic  *ElementGrammar
}

func (g *Grammar) NewSession(opts ...SessionOption) *Session {
	config := sessionConfig{}
	for _, opt := range opts {
		opt(&config)
	}
	return g.newSession(config)
}

func (g *Grammar) newSession(config sessionConfig) *Session {
	return &Session{
		g:        g,
		config:   config,
		names:    g.names.Fork(),
		rules:    &arena{},
		elements: map[*name.Context]*ElementGrammar{},
	}
}

// Fresh returns an empty session sharing the grammar and the limits of s.
func (s *Session) Fresh() *Session {
	return s.g.newSession(s.config)
}

func (s *Session) Grammar() *Grammar {
	return s.g
}

func (s *Session) Names() *name.Table {
	return s.names
}

func (s *Session) MaxBuiltInProductions() int {
	return s.config.maxProductions
}

func (s *Session) MaxBuiltInElementGrammars() int {
	return s.config.maxGrammars
}

// BuiltInElementGrammarCount returns the number of element grammars the
// session learns into. The shared grammar is not counted.
func (s *Session) BuiltInElementGrammarCount() int {
	return len(s.elements)
}

// ElementGrammar returns the grammar of an element no production declares.
// A global element declaration wins over a built-in grammar.
func (s *Session) ElementGrammar(n *name.Context) *ElementGrammar {
	if e, ok := s.g.GlobalElement(n); ok {
		return e
	}
	return s.BuiltInElementGrammar(n)
}

func (s *Session) BuiltInElementGrammar(n *name.Context) *ElementGrammar {
	if e, ok := s.elements[n]; ok {
		return e
	}
	if s.config.maxGrammars > 0 && len(s.elements) >= s.config.maxGrammars {
		if s.generic == nil {
			s.generic = s.newBuiltInElementGrammar(nil, false)
			glog.V(2).Infof("element grammar limit reached; %v and later elements share one grammar", n)
		}
		return s.generic
	}
	e := s.newBuiltInElementGrammar(n, true)
	s.elements[n] = e
	glog.V(2).Infof("new built-in element grammar: %v", n)
	return e
}

// newBuiltInElementGrammar makes a start tag rule and an element content rule.
// Every event but the end element is undeclared at first. The end element of
// the content rule keeps the last code as the rule learns.
func (s *Session) newBuiltInElementGrammar(n *name.Context, learns bool) *ElementGrammar {
	startTag := s.rules.newRule(RoleStartTag)
	content := s.rules.newRule(RoleElementContent)

	startTag.BuiltIn = true
	startTag.First = true
	startTag.Content = content.ID
	startTag.noLearn = !learns

	content.BuiltIn = true
	content.Content = content.ID
	content.noLearn = !learns
	content.fallback = []Production{
		{Event: Event{Kind: EventEndElement}, Next: NoRule},
	}

	return &ElementGrammar{
		Name:  n,
		start: startTag,
	}
}

// Learn adds a production for an event r had no production for. It goes after
// the productions learned before and ahead of the end element a content rule
// starts with. It reports false when r is full or never learns.
func (s *Session) Learn(r *Rule, ev Event, next RuleID) bool {
	if !r.CanLearn(s.config.maxProductions) {
		return false
	}
	r.learn(Production{
		Event: ev,
		Next:  next,
	})
	glog.V(2).Infof("learned %v in rule #%v (%v)", ev, r.ID, r.Role)
	return true
}

// UndeclaredNext returns the rule an undeclared event of kind k continues with
// when it occurs in r.
func UndeclaredNext(r *Rule, k EventKind) RuleID {
	switch k.Family() {
	case EventEndElement:
		return NoRule
	case EventStartElement, EventCharacters, EventEntityReference:
		if r.Role == RoleStartTag && r.Content != NoRule {
			return r.Content
		}
	}
	return r.ID
}

// LearnUndeclared records ev, which r coded with an undeclared production, so
// the next occurrence of ev in r gets a production of its own.
func (s *Session) LearnUndeclared(r *Rule, ev Event) bool {
	if !r.BuiltIn {
		return false
	}
	switch ev.Kind {
	case EventStartElement, EventCharactersGeneric:
	case EventAttribute, EventEndElement:
		if r.Role != RoleStartTag {
			return false
		}
	default:
		return false
	}
	if ev.Kind == EventEndElement && r.HasEndElement() {
		return false
	}
	return s.Learn(r, ev, UndeclaredNext(r, ev.Kind))
}

// UndeclaredNext resolves the rule an undeclared event of kind k continues
// with when it occurs in r. It is nil for an end element.
func (r *Rule) UndeclaredNext(k EventKind) *Rule {
	return r.owner.rule(UndeclaredNext(r, k))
}
