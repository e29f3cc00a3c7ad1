package tester

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/nihei9/exigram/driver"
	"github.com/nihei9/exigram/driver/channel"
	verr "github.com/nihei9/exigram/error"
	"github.com/nihei9/exigram/grammar"
	"github.com/nihei9/exigram/grammar/name"
	"github.com/nihei9/exigram/infoset"
	"github.com/nihei9/exigram/spec"
)

// SchemaFileName is the name of the schema shared by the test cases of a
// directory. Cases in a directory without one use the built-in grammar.
const SchemaFileName = "schema.xsg"

const noEvent = "<none>"

// EventDiff is a position where the decoded events differ from the events of
// the source document.
type EventDiff struct {
	Index    int
	Expected string
	Actual   string
}

type TestResult struct {
	TestCasePath string
	Error        error
	Diffs        []*EventDiff
}

func (r *TestResult) String() string {
	if r.Error != nil {
		const indent1 = "    "
		const indent2 = indent1 + indent1

		msgLines := strings.Split(r.Error.Error(), "\n")
		msg := fmt.Sprintf("Failed %v:\n%v%v", r.TestCasePath, indent1, strings.Join(msgLines, "\n"+indent1))
		if len(r.Diffs) == 0 {
			return msg
		}
		var diffLines []string
		for _, diff := range r.Diffs {
			diffLines = append(diffLines, fmt.Sprintf("event #%v", diff.Index))
			diffLines = append(diffLines, fmt.Sprintf("%vexpected: %v", indent1, diff.Expected))
			diffLines = append(diffLines, fmt.Sprintf("%vactual:   %v", indent1, diff.Actual))
		}
		return fmt.Sprintf("%v\n%v%v", msg, indent2, strings.Join(diffLines, "\n"+indent2))
	}
	return fmt.Sprintf("Passed %v", r.TestCasePath)
}

type TestCase struct {
	Source     []byte
	SchemaPath string
}

type TestCaseWithMetadata struct {
	TestCase *TestCase
	FilePath string
	Error    error
}

// ListTestCases collects the XML documents under testPath. A file given
// directly is a test case whatever its extension.
func ListTestCases(testPath string) []*TestCaseWithMetadata {
	fi, err := os.Stat(testPath)
	if err != nil {
		return []*TestCaseWithMetadata{
			{
				FilePath: testPath,
				Error:    err,
			},
		}
	}
	if !fi.IsDir() {
		c, err := readTestCase(testPath)
		return []*TestCaseWithMetadata{
			{
				TestCase: c,
				FilePath: testPath,
				Error:    err,
			},
		}
	}

	es, err := os.ReadDir(testPath)
	if err != nil {
		return []*TestCaseWithMetadata{
			{
				FilePath: testPath,
				Error:    err,
			},
		}
	}
	var cases []*TestCaseWithMetadata
	for _, e := range es {
		if !e.IsDir() && filepath.Ext(e.Name()) != ".xml" {
			continue
		}
		cs := ListTestCases(filepath.Join(testPath, e.Name()))
		cases = append(cases, cs...)
	}
	return cases
}

func readTestCase(testCasePath string) (*TestCase, error) {
	src, err := os.ReadFile(testCasePath)
	if err != nil {
		return nil, err
	}
	c := &TestCase{
		Source: src,
	}
	schemaPath := filepath.Join(filepath.Dir(testCasePath), SchemaFileName)
	if _, err := os.Stat(schemaPath); err == nil {
		c.SchemaPath = schemaPath
	}
	return c, nil
}

// Tester encodes every test case and decodes it back, expecting the events
// the source document yields.
type Tester struct {
	Cache          *grammar.Cache
	Fidelity       grammar.Fidelity
	SessionOptions []grammar.SessionOption
	Cases          []*TestCaseWithMetadata
}

func (t *Tester) Run() []*TestResult {
	if t.Cache == nil {
		t.Cache = grammar.NewCache()
	}
	var rs []*TestResult
	for _, c := range t.Cases {
		rs = append(rs, t.runTest(c))
	}
	return rs
}

func (t *Tester) runTest(c *TestCaseWithMetadata) *TestResult {
	if c.Error != nil {
		return &TestResult{
			TestCasePath: c.FilePath,
			Error:        c.Error,
		}
	}

	g, err := t.grammar(c.TestCase.SchemaPath)
	if err != nil {
		return &TestResult{
			TestCasePath: c.FilePath,
			Error:        err,
		}
	}

	doc, err := infoset.Parse(bytes.NewReader(c.TestCase.Source))
	if err != nil {
		return &TestResult{
			TestCasePath: c.FilePath,
			Error:        err,
		}
	}
	want := infoset.Document(doc, infoset.Options{
		Fidelity: t.Fidelity,
	})

	got, err := t.roundTrip(g, want)
	if err != nil {
		return &TestResult{
			TestCasePath: c.FilePath,
			Error:        err,
		}
	}

	diffs := diffEvents(normalize(want, t.Fidelity), normalize(got, t.Fidelity))
	if len(diffs) > 0 {
		return &TestResult{
			TestCasePath: c.FilePath,
			Error:        fmt.Errorf("output mismatch"),
			Diffs:        diffs,
		}
	}
	return &TestResult{
		TestCasePath: c.FilePath,
	}
}

func (t *Tester) grammar(schemaPath string) (*grammar.Grammar, error) {
	if schemaPath == "" {
		return grammar.NewBuiltInGrammar(), nil
	}
	src, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, err
	}
	return t.Cache.Get(grammar.KeyOf(src), func() (*grammar.Grammar, error) {
		glog.V(1).Infof("compiling %v", schemaPath)
		s, err := spec.ReadSchema(bytes.NewReader(src))
		if err != nil {
			var specErrs verr.SpecErrors
			if errors.As(err, &specErrs) {
				for _, e := range specErrs {
					e.FilePath = schemaPath
					e.SourceName = schemaPath
				}
			}
			return nil, err
		}
		return grammar.Compile(s, grammar.SourceName(schemaPath))
	})
}

func (t *Tester) roundTrip(g *grammar.Grammar, evs []*driver.Event) ([]*driver.Event, error) {
	opts := []driver.Option{
		driver.WithFidelity(t.Fidelity),
		driver.WithSessionOptions(t.SessionOptions...),
	}
	var buf bytes.Buffer
	enc, err := driver.NewEncoder(g, channel.NewWriter(&buf), opts...)
	if err != nil {
		return nil, err
	}
	for _, ev := range evs {
		if err := enc.Encode(ev); err != nil {
			return nil, err
		}
	}
	glog.V(2).Infof("encoded %v events into %v bytes", len(evs), buf.Len())

	dec, err := driver.NewDecoder(g, channel.NewReader(&buf), opts...)
	if err != nil {
		return nil, err
	}
	var got []*driver.Event
	for {
		ev, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		got = append(got, ev)
	}
	return got, nil
}

// normalize renders events in a form that ignores what a coder may change
// without losing information: the variant of an event within its family, the
// name of an end element, self-contained markers, and an xsi:type or xsi:nil
// a built-in grammar codes as an ordinary attribute.
func normalize(evs []*driver.Event, f grammar.Fidelity) []string {
	var lines []string
	for _, ev := range evs {
		var l string
		switch ev.Kind.Family() {
		case grammar.EventSelfContained:
			continue
		case grammar.EventStartElement:
			l = fmt.Sprintf("SE %v", qname(ev.Name, f))
		case grammar.EventAttribute:
			l = attribute(ev, f)
		case grammar.EventNamespaceDeclaration:
			l = fmt.Sprintf("NS %v=%q %v", ev.Name.Prefix, ev.Name.URI, ev.LocalElementNS)
		case grammar.EventEndElement:
			l = "EE"
		default:
			e := *ev
			e.Kind = ev.Kind.Family()
			l = e.String()
		}
		lines = append(lines, l)
	}
	return lines
}

func qname(q driver.QName, f grammar.Fidelity) string {
	s := fmt.Sprintf("{%v}%v", q.URI, q.Local)
	if f.Prefixes && q.Prefix != "" {
		s = q.Prefix + ":" + s
	}
	return s
}

func attribute(ev *driver.Event, f grammar.Fidelity) string {
	n := ev.Name
	v := ev.Value
	switch ev.Kind {
	case grammar.EventAttributeXsiType:
		n = driver.QName{URI: name.URIXSI, Local: name.LocalNameXsiType, Prefix: n.Prefix}
		v = ev.TypeName.Local
	case grammar.EventAttributeXsiNil:
		n = driver.QName{URI: name.URIXSI, Local: name.LocalNameXsiNil, Prefix: n.Prefix}
	}
	if n.URI == name.URIXSI {
		switch n.Local {
		case name.LocalNameXsiType:
			if i := strings.LastIndexByte(v, ':'); i >= 0 {
				v = v[i+1:]
			}
			// Prefixes of xsi attributes are not kept by every grammar.
			n.Prefix = ""
		case name.LocalNameXsiNil:
			switch strings.TrimSpace(v) {
			case "1", "true":
				v = "true"
			case "0", "false":
				v = "false"
			}
			n.Prefix = ""
		}
	}
	return fmt.Sprintf("AT %v=%q", qname(n, f), v)
}

func diffEvents(expected, actual []string) []*EventDiff {
	var diffs []*EventDiff
	n := len(expected)
	if len(actual) > n {
		n = len(actual)
	}
	for i := 0; i < n; i++ {
		e, a := noEvent, noEvent
		if i < len(expected) {
			e = expected[i]
		}
		if i < len(actual) {
			a = actual[i]
		}
		if e != a {
			diffs = append(diffs, &EventDiff{
				Index:    i,
				Expected: e,
				Actual:   a,
			})
		}
	}
	return diffs
}
