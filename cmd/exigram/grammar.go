package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nihei9/exigram/driver"
	verr "github.com/nihei9/exigram/error"
	"github.com/nihei9/exigram/grammar"
	"github.com/nihei9/exigram/spec"
	gspec "github.com/nihei9/exigram/spec/grammar"
	"github.com/spf13/pflag"
)

// codingFlags are the options every command that codes a stream shares. The
// encoder and the decoder of a stream must agree on them.
type codingFlags struct {
	schema                *string
	strict                *bool
	preserveComments      *bool
	preservePIs           *bool
	preserveDTD           *bool
	preservePrefixes      *bool
	preserveLexicalValues *bool
	selfContained         *bool
	maxBuiltInProductions *int
	maxBuiltInGrammars    *int
}

// newCodingFlags registers the coding flags on fs. The schema flag is left out
// unless withSchema is set.
func newCodingFlags(fs *pflag.FlagSet, withSchema bool) *codingFlags {
	f := &codingFlags{
		strict:                fs.Bool("strict", false, "code only what the schema declares"),
		preserveComments:      fs.Bool("preserve-comments", false, "preserve comments"),
		preservePIs:           fs.Bool("preserve-pis", false, "preserve processing instructions"),
		preserveDTD:           fs.Bool("preserve-dtd", false, "preserve document types and entity references"),
		preservePrefixes:      fs.Bool("preserve-prefixes", false, "preserve namespace prefixes and declarations"),
		preserveLexicalValues: fs.Bool("preserve-lexical-values", false, "record that lexical values are preserved (the built-in value codec always keeps them)"),
		selfContained:         fs.Bool("self-contained", false, "allow self-contained elements"),
		maxBuiltInProductions: fs.Int("max-builtin-productions", 0, "the number of productions a built-in rule may learn (0 means no limit)"),
		maxBuiltInGrammars:    fs.Int("max-builtin-grammars", 0, "the number of built-in element grammars a stream may create (0 means no limit)"),
	}
	if withSchema {
		f.schema = fs.StringP("schema", "s", "", "schema (.xsg) or compiled grammar (.json) path (default the built-in grammar)")
	}
	return f
}

func (f *codingFlags) fidelity() grammar.Fidelity {
	return grammar.Fidelity{
		Comments:               *f.preserveComments,
		ProcessingInstructions: *f.preservePIs,
		DTD:                    *f.preserveDTD,
		Prefixes:               *f.preservePrefixes,
		LexicalValues:          *f.preserveLexicalValues,
		SelfContained:          *f.selfContained,
		Strict:                 *f.strict,
	}
}

func (f *codingFlags) sessionOptions() []grammar.SessionOption {
	return []grammar.SessionOption{
		grammar.MaxBuiltInProductions(*f.maxBuiltInProductions),
		grammar.MaxBuiltInElementGrammars(*f.maxBuiltInGrammars),
	}
}

func (f *codingFlags) options() []driver.Option {
	return []driver.Option{
		driver.WithFidelity(f.fidelity()),
		driver.WithSessionOptions(f.sessionOptions()...),
	}
}

func (f *codingFlags) grammar() (*grammar.Grammar, error) {
	if f.schema == nil || *f.schema == "" {
		return grammar.NewBuiltInGrammar(), nil
	}
	return readGrammar(*f.schema)
}

// readGrammar reads a compiled grammar when path ends with .json and compiles
// a schema otherwise.
func readGrammar(path string) (*grammar.Grammar, error) {
	if filepath.Ext(path) == ".json" {
		return readCompiledGrammar(path)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Cannot open the schema file %s: %w", path, err)
	}
	return compileSchema(src, path, path)
}

func compileSchema(src []byte, path, sourceName string) (*grammar.Grammar, error) {
	s, err := spec.ReadSchema(bytes.NewReader(src))
	if err != nil {
		var specErrs verr.SpecErrors
		if errors.As(err, &specErrs) {
			for _, e := range specErrs {
				e.FilePath = path
				e.SourceName = sourceName
			}
		}
		return nil, err
	}
	return grammar.Compile(s, grammar.SourceName(sourceName))
}

func readCompiledGrammar(path string) (*grammar.Grammar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Cannot open the compiled grammar %s: %w", path, err)
	}
	cg := &gspec.CompiledGrammar{}
	err = json.Unmarshal(data, cg)
	if err != nil {
		return nil, err
	}
	return grammar.Load(cg)
}

func openInput(path string) (*os.File, error) {
	if path == "" {
		return os.Stdin, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Cannot open the source file %s: %w", path, err)
	}
	return f, nil
}

func createOutput(path string) (*os.File, error) {
	if path == "" {
		return os.Stdout, nil
	}
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
}
