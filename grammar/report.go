package grammar

import (
	"fmt"

	spec "github.com/nihei9/exigram/spec/grammar"
)

func (f Fidelity) Names() []string {
	var names []string
	if f.Strict {
		names = append(names, "strict")
	}
	if f.Comments {
		names = append(names, "comments")
	}
	if f.ProcessingInstructions {
		names = append(names, "pis")
	}
	if f.DTD {
		names = append(names, "dtd")
	}
	if f.Prefixes {
		names = append(names, "prefixes")
	}
	if f.LexicalValues {
		names = append(names, "lexical-values")
	}
	if f.SelfContained {
		names = append(names, "self-contained")
	}
	return names
}

// NewReport lays out the event codes of every rule of g under f.
func NewReport(g *Grammar, f Fidelity) *spec.Report {
	rep := &spec.Report{
		Name:           g.sourceName,
		SchemaInformed: g.schemaInformed,
		Fidelity:       f.Names(),
	}
	for _, e := range g.globalElements {
		rep.GlobalElements = append(rep.GlobalElements, e.Name.String())
	}
	for _, t := range g.typeList {
		rep.Types = append(rep.Types, &spec.TypeReport{
			Name:    typeName(t),
			Start:   int(t.Start.ID),
			Content: int(t.Content.ID),
			Empty:   int(t.Empty.ID),
		})
	}
	for _, r := range g.rules.rules {
		rep.Rules = append(rep.Rules, ruleReport(r, f))
	}
	return rep
}

func typeName(t *TypeGrammar) string {
	if t.Name.IsZero() {
		return fmt.Sprintf("(anonymous #%v)", t.Start.ID)
	}
	return t.Name.String()
}

func ruleReport(r *Rule, f Fidelity) *spec.RuleReport {
	codes := DeriveCodes(r, f)
	rr := &spec.RuleReport{
		ID:          int(r.ID),
		Role:        r.Role.String(),
		First:       r.First,
		FirstWidth:  codes.FirstWidth,
		SecondWidth: codes.SecondWidth,
	}
	if r.Type != nil {
		rr.Type = typeName(r.Type)
	}
	for i := range codes.First {
		c, _ := codes.Declared(i)
		p := r.Production(i)
		cr := &spec.CodeReport{
			Code:  c.String(),
			Event: p.Event.String(),
			Bits:  bitCount(c),
		}
		if p.Next != NoRule {
			cr.Next = fmt.Sprintf("#%v", p.Next)
		}
		rr.Codes = append(rr.Codes, cr)
	}
	for i, s := range codes.Second {
		if s.Family == FamilyNone {
			c := codes.second(i, s)
			rr.Codes = append(rr.Codes, &spec.CodeReport{
				Code:  c.String(),
				Event: s.Kind.String(),
				Bits:  bitCount(c),
			})
			continue
		}
		for j, m := range s.Members {
			c := codes.third(i, s, j)
			ev := m.Kind.String()
			if s.Family == FamilyInvalidAttribute {
				ev = fmt.Sprintf("%v [invalid value]", r.Production(m.Production).Event)
			}
			rr.Codes = append(rr.Codes, &spec.CodeReport{
				Code:  c.String(),
				Event: ev,
				Bits:  bitCount(c),
			})
		}
	}
	return rr
}

func bitCount(c Code) int {
	n := 0
	for i := 0; i < c.Level; i++ {
		n += c.Widths[i]
	}
	return n
}
