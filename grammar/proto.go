package grammar

// protoRule is a rule of a grammar under construction. It may contain epsilon
// productions, which normalization removes.
type protoRule struct {
	id    int
	role  RuleRole
	prods []protoProd

	closed []protoProd
}

// protoProd is an epsilon production when eps is true. Otherwise ev is the
// terminal and next is nil for an end element.
type protoProd struct {
	eps  bool
	ev   Event
	next *protoRule
}

func (r *protoRule) add(ev Event, next *protoRule) {
	r.prods = append(r.prods, protoProd{
		ev:   ev,
		next: next,
	})
}

func (r *protoRule) addEpsilon(next *protoRule) {
	r.prods = append(r.prods, protoProd{
		eps:  true,
		next: next,
	})
}

func (r *protoRule) addEndElement() {
	for _, p := range r.prods {
		if !p.eps && p.ev.Kind == EventEndElement {
			return
		}
	}
	r.prods = append(r.prods, protoProd{
		ev: Event{
			Kind: EventEndElement,
		},
	})
}

type proto struct {
	start *protoRule
	rules []*protoRule
}

type protoBuilder struct {
	rules []*protoRule
}

func (b *protoBuilder) newRule(role RuleRole) *protoRule {
	r := &protoRule{
		id:   len(b.rules),
		role: role,
	}
	b.rules = append(b.rules, r)
	return r
}

// terminal makes the two-rule grammar `r0: ev r1; r1: EE`.
func (b *protoBuilder) terminal(role RuleRole, evs ...Event) *proto {
	r0 := b.newRule(role)
	r1 := b.newRule(role)
	for _, ev := range evs {
		r0.add(ev, r1)
	}
	r1.addEndElement()
	return &proto{
		start: r0,
		rules: []*protoRule{r0, r1},
	}
}

func (b *protoBuilder) empty(role RuleRole) *proto {
	r0 := b.newRule(role)
	r0.addEndElement()
	return &proto{
		start: r0,
		rules: []*protoRule{r0},
	}
}

// redirectEnd replaces every end element of p by an epsilon production to
// next.
func redirectEnd(p *proto, next *protoRule) {
	for _, r := range p.rules {
		for i, q := range r.prods {
			if q.eps || q.ev.Kind != EventEndElement {
				continue
			}
			r.prods[i] = protoProd{
				eps:  true,
				next: next,
			}
		}
	}
}

// concat joins grammars so that each one continues where the previous one
// ends. The arguments are consumed.
func (b *protoBuilder) concat(role RuleRole, ps ...*proto) *proto {
	if len(ps) == 0 {
		return b.empty(role)
	}
	acc := ps[0]
	for _, p := range ps[1:] {
		redirectEnd(acc, p.start)
		acc = &proto{
			start: acc.start,
			rules: append(acc.rules, p.rules...),
		}
	}
	return acc
}

// choice makes a grammar taking exactly one of ps.
func (b *protoBuilder) choice(role RuleRole, ps ...*proto) *proto {
	if len(ps) == 0 {
		return b.empty(role)
	}
	r0 := b.newRule(role)
	acc := &proto{
		start: r0,
		rules: []*protoRule{r0},
	}
	for _, p := range ps {
		r0.addEpsilon(p.start)
		acc.rules = append(acc.rules, p.rules...)
	}
	return acc
}

// all makes a grammar taking the members of ps in any order. Like other EXI
// implementations, the result also accepts repeated members.
func (b *protoBuilder) all(role RuleRole, ps ...*proto) *proto {
	r0 := b.newRule(role)
	r0.addEndElement()
	acc := &proto{
		start: r0,
		rules: []*protoRule{r0},
	}
	for _, p := range ps {
		redirectEnd(p, r0)
		r0.addEpsilon(p.start)
		acc.rules = append(acc.rules, p.rules...)
	}
	return acc
}

// repeat applies occurrence bounds to the grammar build makes. Each copy comes
// from a separate call of build.
func (b *protoBuilder) repeat(role RuleRole, min, max int, build func() *proto) *proto {
	var ps []*proto
	for i := 0; i < min; i++ {
		ps = append(ps, build())
	}
	if max < 0 {
		loop := build()
		redirectEnd(loop, loop.start)
		loop.start.addEndElement()
		ps = append(ps, loop)
	} else {
		for i := min; i < max; i++ {
			opt := build()
			opt.start.addEndElement()
			ps = append(ps, opt)
		}
	}
	return b.concat(role, ps...)
}

// closure returns the productions r offers once epsilon productions are
// followed.
func (r *protoRule) closure() []protoProd {
	if r.closed != nil {
		return r.closed
	}
	visited := map[*protoRule]struct{}{}
	type seenKey struct {
		key  terminalKey
		next *protoRule
	}
	seen := map[seenKey]struct{}{}
	var prods []protoProd
	var visit func(q *protoRule)
	visit = func(q *protoRule) {
		if _, ok := visited[q]; ok {
			return
		}
		visited[q] = struct{}{}
		for _, p := range q.prods {
			if p.eps {
				visit(p.next)
				continue
			}
			k := seenKey{
				key:  p.ev.key(),
				next: p.next,
			}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			prods = append(prods, p)
		}
	}
	visit(r)
	if prods == nil {
		prods = []protoProd{}
	}
	r.closed = prods
	return prods
}
