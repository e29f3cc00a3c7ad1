package grammar

import (
	"fmt"
	"strings"
)

type RuleID int

// NoRule is the next rule of productions that close their grammar.
const NoRule = RuleID(-1)

func (id RuleID) Int() int {
	return int(id)
}

type RuleRole int

const (
	RoleDocument RuleRole = iota
	RoleDocContent
	RoleDocEnd
	RoleFragment
	RoleFragmentContent
	RoleStartTag
	RoleElementContent
)

func (r RuleRole) String() string {
	switch r {
	case RoleDocument:
		return "document"
	case RoleDocContent:
		return "doc-content"
	case RoleDocEnd:
		return "doc-end"
	case RoleFragment:
		return "fragment"
	case RoleFragmentContent:
		return "fragment-content"
	case RoleStartTag:
		return "start-tag"
	case RoleElementContent:
		return "element-content"
	}
	return "unknown"
}

func (r RuleRole) isElement() bool {
	return r == RoleStartTag || r == RoleElementContent
}

type Production struct {
	Event Event
	Next  RuleID
}

func (p Production) String() string {
	if p.Next == NoRule {
		return p.Event.String()
	}
	return fmt.Sprintf("%v -> %v", p.Event, p.Next)
}

// Rule is a grammar state. The declared productions never change after
// construction; only rules of built-in element grammars carry a learned tail.
type Rule struct {
	ID   RuleID
	Role RuleRole

	// Type is the type grammar a schema-informed rule belongs to.
	Type *TypeGrammar

	// First marks the rule an element grammar starts with.
	First    bool
	Nillable bool
	BuiltIn  bool

	// Content is the rule undeclared contents continue with.
	Content RuleID

	prods   []Production
	learned []Production

	// fallback productions stay after the learned tail.
	fallback []Production

	noLearn bool
	owner   *arena
}

func (r *Rule) Productions() []Production {
	if len(r.learned) == 0 && len(r.fallback) == 0 {
		return r.prods
	}
	prods := make([]Production, 0, r.Len())
	prods = append(prods, r.prods...)
	prods = append(prods, r.learned...)
	return append(prods, r.fallback...)
}

func (r *Rule) Declared() []Production {
	if len(r.fallback) == 0 {
		return r.prods
	}
	prods := make([]Production, 0, len(r.prods)+len(r.fallback))
	prods = append(prods, r.prods...)
	return append(prods, r.fallback...)
}

func (r *Rule) Learned() []Production {
	return r.learned
}

func (r *Rule) Len() int {
	return len(r.prods) + len(r.learned) + len(r.fallback)
}

func (r *Rule) Production(i int) Production {
	if i < len(r.prods) {
		return r.prods[i]
	}
	i -= len(r.prods)
	if i < len(r.learned) {
		return r.learned[i]
	}
	return r.fallback[i-len(r.learned)]
}

// Next resolves the next rule of the production num.
func (r *Rule) Next(num int) *Rule {
	return r.owner.rule(r.Production(num).Next)
}

func (r *Rule) ContentRule() *Rule {
	return r.owner.rule(r.Content)
}

// Find returns the index of the first production matching pred.
func (r *Rule) Find(pred func(e Event) bool) (int, bool) {
	for i, n := 0, r.Len(); i < n; i++ {
		if pred(r.Production(i).Event) {
			return i, true
		}
	}
	return 0, false
}

func (r *Rule) HasEndElement() bool {
	_, ok := r.Find(func(e Event) bool {
		return e.Kind == EventEndElement
	})
	return ok
}

func (r *Rule) hasDeclaredAttribute() bool {
	_, ok := r.Find(func(e Event) bool {
		return e.Kind == EventAttribute
	})
	return ok
}

// CanLearn reports whether the rule still admits new productions under the
// limit max. A non-positive max means no limit.
func (r *Rule) CanLearn(max int) bool {
	if !r.BuiltIn || r.noLearn {
		return false
	}
	return max <= 0 || len(r.learned) < max
}

func (r *Rule) learn(p Production) {
	r.learned = append(r.learned, p)
}

func (r *Rule) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%v %v:", r.ID, r.Role)
	for _, p := range r.Productions() {
		fmt.Fprintf(&b, " %v;", p)
	}
	return b.String()
}

// arena owns a set of rules. Productions refer to rules of the same arena by
// index, which lets rule graphs contain cycles.
type arena struct {
	rules []*Rule
}

func (a *arena) newRule(role RuleRole) *Rule {
	r := &Rule{
		ID:      RuleID(len(a.rules)),
		Role:    role,
		Content: NoRule,
		owner:   a,
	}
	a.rules = append(a.rules, r)
	return r
}

func (a *arena) rule(id RuleID) *Rule {
	if id < 0 || int(id) >= len(a.rules) {
		return nil
	}
	return a.rules[id]
}
