package grammar

// Report describes a grammar for humans: every rule with the event codes its
// productions and deviations get under one fidelity configuration.
type Report struct {
	Name           string        `json:"name"`
	SchemaInformed bool          `json:"schema_informed"`
	Fidelity       []string      `json:"fidelity"`
	GlobalElements []string      `json:"global_elements"`
	Types          []*TypeReport `json:"types"`
	Rules          []*RuleReport `json:"rules"`
}

type TypeReport struct {
	Name    string `json:"name"`
	Start   int    `json:"start"`
	Content int    `json:"content"`
	Empty   int    `json:"empty"`
}

type RuleReport struct {
	ID          int           `json:"id"`
	Role        string        `json:"role"`
	Type        string        `json:"type,omitempty"`
	First       bool          `json:"first,omitempty"`
	FirstWidth  int           `json:"first_width"`
	SecondWidth int           `json:"second_width"`
	Codes       []*CodeReport `json:"codes"`
}

type CodeReport struct {
	Code  string `json:"code"`
	Event string `json:"event"`
	Next  string `json:"next,omitempty"`
	Bits  int    `json:"bits"`
}
