package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/nihei9/exigram/grammar"
	spec "github.com/nihei9/exigram/spec/grammar"
	"github.com/spf13/cobra"
)

var showFlags = struct {
	coding *codingFlags
	json   *bool
}{}

func init() {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the rules of a grammar with their event codes",
		Example: `  exigram show -s shop.xsg
  exigram show -s shop.json --preserve-comments --json`,
		Args: cobra.NoArgs,
		RunE: runShow,
	}
	showFlags.coding = newCodingFlags(cmd.Flags(), true)
	showFlags.json = cmd.Flags().Bool("json", false, "print the report in JSON")
	rootCmd.AddCommand(cmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	f := showFlags.coding.fidelity()
	err := f.Validate()
	if err != nil {
		return err
	}
	g, err := showFlags.coding.grammar()
	if err != nil {
		return err
	}
	report := grammar.NewReport(g, f)

	if *showFlags.json {
		b, err := json.Marshal(report)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%v\n", string(b))
		return nil
	}
	return writeReport(os.Stdout, report)
}

const reportTemplate = `# Grammar

{{ printSummary . }}

# Global Elements

{{ range .GlobalElements -}}
{{ . }}
{{ else -}}
(none)
{{ end }}
# Types

{{ range .Types -}}
{{ printType . }}
{{ end }}
# Rules
{{ range .Rules }}
## Rule {{ .ID }} {{ printRuleHeader . }}

{{ range .Codes -}}
{{ printCode . }}
{{ end -}}
{{ end }}`

func writeReport(w io.Writer, report *spec.Report) error {
	fns := template.FuncMap{
		"printSummary": func(report *spec.Report) string {
			var b strings.Builder
			name := report.Name
			if name == "" {
				name = "(built-in)"
			}
			fmt.Fprintf(&b, "name: %v\n", name)
			fmt.Fprintf(&b, "schema-informed: %v\n", report.SchemaInformed)
			fidelity := "(none)"
			if len(report.Fidelity) > 0 {
				fidelity = strings.Join(report.Fidelity, ", ")
			}
			fmt.Fprintf(&b, "fidelity: %v", fidelity)
			return b.String()
		},
		"printType": func(t *spec.TypeReport) string {
			return fmt.Sprintf("%v: start #%v, content #%v, empty #%v", t.Name, t.Start, t.Content, t.Empty)
		},
		"printRuleHeader": func(r *spec.RuleReport) string {
			var b strings.Builder
			fmt.Fprintf(&b, "(%v", r.Role)
			if r.Type != "" {
				fmt.Fprintf(&b, " of %v", r.Type)
			}
			if r.First {
				fmt.Fprintf(&b, ", first")
			}
			fmt.Fprintf(&b, ") widths %v/%v", r.FirstWidth, r.SecondWidth)
			return b.String()
		},
		"printCode": func(c *spec.CodeReport) string {
			if c.Next != "" {
				return fmt.Sprintf("%-8v %2v bits  %v → %v", c.Code, c.Bits, c.Event, c.Next)
			}
			return fmt.Sprintf("%-8v %2v bits  %v", c.Code, c.Bits, c.Event)
		},
	}

	tmpl, err := template.New("").Funcs(fns).Parse(reportTemplate)
	if err != nil {
		return err
	}

	return tmpl.Execute(w, report)
}
