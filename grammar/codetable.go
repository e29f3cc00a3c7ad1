package grammar

import (
	"github.com/nihei9/exigram/compressor"
	"github.com/nihei9/exigram/grammar/name"
)

// codeTable maps (rule, terminal) pairs of the immutable rules of a grammar to
// production indexes.
type codeTable struct {
	terminals map[terminalKey]int
	table     compressor.Table
}

const noProduction = -1

func newCodeTable(g *Grammar) (*codeTable, error) {
	terminals := map[terminalKey]int{}
	for _, r := range g.rules.rules {
		for _, p := range r.prods {
			k := p.Event.key()
			if _, ok := terminals[k]; !ok {
				terminals[k] = len(terminals)
			}
		}
	}
	cols := len(terminals)
	if cols == 0 || len(g.rules.rules) == 0 {
		return &codeTable{
			terminals: terminals,
		}, nil
	}

	entries := make([]int, len(g.rules.rules)*cols)
	for i := range entries {
		entries[i] = noProduction
	}
	for _, r := range g.rules.rules {
		for i, p := range r.prods {
			entries[int(r.ID)*cols+terminals[p.Event.key()]] = i
		}
	}
	m, err := compressor.NewMatrix(entries, cols)
	if err != nil {
		return nil, err
	}
	tab, err := compressor.Smallest(m, noProduction)
	if err != nil {
		return nil, err
	}
	return &codeTable{
		terminals: terminals,
		table:     tab,
	}, nil
}

func (t *codeTable) lookup(r *Rule, k terminalKey) (int, bool) {
	col, ok := t.terminals[k]
	if !ok || t.table == nil {
		return 0, false
	}
	num, err := t.table.Lookup(int(r.ID), col)
	if err != nil || num == noProduction {
		return 0, false
	}
	return num, true
}

// Match returns the index of the production of r whose terminal is exactly
// the given one.
func (g *Grammar) Match(r *Rule, kind EventKind, n *name.Context, uri string) (int, bool) {
	k := terminalKey{
		kind: kind,
		name: n,
		uri:  uri,
	}
	if g.table != nil && r.owner == g.rules && len(r.learned) == 0 {
		return g.table.lookup(r, k)
	}
	return r.Find(func(e Event) bool {
		return e.key() == k
	})
}
