package grammar

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nihei9/exigram/schema"
	"github.com/pkg/errors"
)

// detRule is a deterministic rule standing for a set of proto rules.
type detRule struct {
	members []*protoRule
	role    RuleRole
	first   bool
	prods   []detProd

	// content is nil when undeclared content stays in the rule itself.
	content *detRule

	block int
}

type detProd struct {
	ev   Event
	next *detRule
}

type normalizer struct {
	typeName schema.QName
	mixed    map[*protoRule]*protoRule
	states   map[string]*detRule
	order    []*detRule
	queue    []*detRule
}

func newNormalizer(typeName schema.QName, mixed map[*protoRule]*protoRule) *normalizer {
	return &normalizer{
		typeName: typeName,
		mixed:    mixed,
		states:   map[string]*detRule{},
	}
}

func (n *normalizer) state(members []*protoRule) *detRule {
	uniq := map[int]*protoRule{}
	for _, m := range members {
		uniq[m.id] = m
	}
	ms := make([]*protoRule, 0, len(uniq))
	for _, m := range uniq {
		ms = append(ms, m)
	}
	sort.Slice(ms, func(i, j int) bool {
		return ms[i].id < ms[j].id
	})

	var b strings.Builder
	for _, m := range ms {
		fmt.Fprintf(&b, "%v,", m.id)
	}
	key := b.String()
	if d, ok := n.states[key]; ok {
		return d
	}

	role := RoleElementContent
	for _, m := range ms {
		if m.role == RoleStartTag {
			role = RoleStartTag
		}
	}
	d := &detRule{
		members: ms,
		role:    role,
	}
	n.states[key] = d
	n.order = append(n.order, d)
	n.queue = append(n.queue, d)
	return d
}

func (n *normalizer) offers(r *protoRule) []protoProd {
	prods := r.closure()
	target, ok := n.mixed[r]
	if !ok {
		return prods
	}
	for _, p := range prods {
		if p.ev.Kind == EventCharacters || p.ev.Kind == EventCharactersGeneric {
			return prods
		}
	}
	return append(append([]protoProd{}, prods...), protoProd{
		ev: Event{
			Kind:     EventCharactersGeneric,
			Datatype: schema.Untyped,
		},
		next: target,
	})
}

type terminalGroup struct {
	ev    Event
	nexts []*protoRule
}

// expand merges the productions of the members of d. Productions sharing a
// terminal continue with the union of their next rules.
func (n *normalizer) expand(d *detRule) error {
	var keys []terminalKey
	groups := map[terminalKey]*terminalGroup{}
	for _, m := range d.members {
		for _, p := range n.offers(m) {
			k := p.ev.key()
			g, ok := groups[k]
			if !ok {
				g = &terminalGroup{
					ev: p.ev,
				}
				groups[k] = g
				keys = append(keys, k)
			} else {
				if g.ev.Element != p.ev.Element || g.ev.Datatype != p.ev.Datatype {
					return errors.Wrapf(ErrAmbiguousContent, "type %v: conflicting declarations of %v", n.typeName, p.ev)
				}
				if p.ev.ordinal < g.ev.ordinal {
					g.ev.ordinal = p.ev.ordinal
				}
			}
			if p.next != nil {
				g.nexts = append(g.nexts, p.next)
			}
		}
	}

	for _, k := range keys {
		g := groups[k]
		if len(g.nexts) == 0 {
			d.prods = append(d.prods, detProd{
				ev: g.ev,
			})
			continue
		}
		d.prods = append(d.prods, detProd{
			ev:   g.ev,
			next: n.state(g.nexts),
		})
	}
	sort.SliceStable(d.prods, func(i, j int) bool {
		return canonicalLess(d.prods[i].ev, d.prods[j].ev)
	})
	return nil
}

func (n *normalizer) determinize() error {
	for len(n.queue) > 0 {
		d := n.queue[0]
		n.queue = n.queue[1:]
		if err := n.expand(d); err != nil {
			return err
		}
	}
	return nil
}

// assignContent sets the content rule of every start tag rule reachable from
// root.
func assignContent(root, content *detRule) {
	visited := map[*detRule]struct{}{}
	stack := []*detRule{root}
	for len(stack) > 0 {
		d := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := visited[d]; ok {
			continue
		}
		visited[d] = struct{}{}
		if d.role == RoleStartTag && d.content == nil {
			d.content = content
		}
		for _, p := range d.prods {
			if p.next != nil {
				stack = append(stack, p.next)
			}
		}
	}
}

func (d *detRule) signature() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v|%v|%v|", d.block, d.role, d.first)
	if d.content != nil {
		fmt.Fprintf(&b, "c%v|", d.content.block)
	}
	for _, p := range d.prods {
		fmt.Fprintf(&b, "%v:%p:%v:%p:%v:", p.ev.Kind, p.ev.Name, p.ev.URI, p.ev.Element, p.ev.Datatype)
		if p.next != nil {
			fmt.Fprintf(&b, "%v", p.next.block)
		}
		b.WriteString(";")
	}
	return b.String()
}

// minimize merges rules that offer the same events leading to equivalent
// rules. It refines a partition until it is stable and returns the number of
// blocks.
func minimize(rules []*detRule) int {
	for _, d := range rules {
		d.block = 0
	}
	count := 1
	for {
		ids := map[string]int{}
		next := make([]int, len(rules))
		for i, d := range rules {
			sig := d.signature()
			id, ok := ids[sig]
			if !ok {
				id = len(ids)
				ids[sig] = id
			}
			next[i] = id
		}
		for i, d := range rules {
			d.block = next[i]
		}
		if len(ids) == count {
			return count
		}
		count = len(ids)
	}
}

// emit adds one rule per block to a and returns the rules indexed by block.
func emit(a *arena, rules []*detRule, blocks int, tg *TypeGrammar) []*Rule {
	out := make([]*Rule, blocks)
	reps := make([]*detRule, blocks)
	for _, d := range rules {
		if out[d.block] != nil {
			continue
		}
		r := a.newRule(d.role)
		r.Type = tg
		r.First = d.first
		out[d.block] = r
		reps[d.block] = d
	}
	for b, d := range reps {
		r := out[b]
		for _, p := range d.prods {
			next := NoRule
			if p.next != nil {
				next = out[p.next.block].ID
			}
			r.prods = append(r.prods, Production{
				Event: p.ev,
				Next:  next,
			})
		}
		if d.content != nil {
			r.Content = out[d.content.block].ID
		} else {
			r.Content = r.ID
		}
	}
	return out
}
