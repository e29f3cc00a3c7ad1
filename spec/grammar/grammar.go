package grammar

// CompiledGrammar is the portable form of a grammar. Rules refer to each other
// and to names by index, the same way the in-memory grammar does.
type CompiledGrammar struct {
	Name           string       `json:"name"`
	SchemaInformed bool         `json:"schema_informed"`
	URIs           []*URI       `json:"uris"`
	Rules          []*Rule      `json:"rules"`
	Types          []*Type      `json:"types"`
	Elements       []*Element   `json:"elements"`
	GlobalElements []int        `json:"global_elements"`
	Attributes     []*Attribute `json:"attributes"`
	Document       int          `json:"document"`
	Fragment       int          `json:"fragment"`
}

type URI struct {
	URI        string   `json:"uri"`
	Prefixes   []string `json:"prefixes"`
	LocalNames []string `json:"local_names"`
}

// QName refers to an entry of URIs and its local name.
type QName struct {
	URI       int `json:"uri"`
	LocalName int `json:"local_name"`
}

type Datatype struct {
	URI   string `json:"uri,omitempty"`
	Local string `json:"local,omitempty"`
	Kind  string `json:"kind"`
}

type Rule struct {
	ID          int           `json:"id"`
	Role        string        `json:"role"`
	Type        int           `json:"type"`
	First       bool          `json:"first,omitempty"`
	Nillable    bool          `json:"nillable,omitempty"`
	Content     int           `json:"content"`
	Productions []*Production `json:"productions"`
}

type Production struct {
	Event    string    `json:"event"`
	Name     *QName    `json:"name,omitempty"`
	URI      string    `json:"uri,omitempty"`
	Element  int       `json:"element"`
	Datatype *Datatype `json:"datatype,omitempty"`
	Ordinal  int       `json:"ordinal"`
	Next     int       `json:"next"`
}

type Type struct {
	URI              string `json:"uri"`
	Local            string `json:"local"`
	HasNamedSubTypes bool   `json:"has_named_sub_types,omitempty"`
	Start            int    `json:"start"`
	Content          int    `json:"content"`
	Empty            int    `json:"empty"`
}

type Element struct {
	Name     QName `json:"name"`
	Type     int   `json:"type"`
	Nillable bool  `json:"nillable,omitempty"`
	Start    int   `json:"start"`
}

type Attribute struct {
	Name     QName     `json:"name"`
	Datatype *Datatype `json:"datatype"`
}
