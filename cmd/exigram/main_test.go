package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	verr "github.com/nihei9/exigram/error"
	"github.com/nihei9/exigram/grammar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReport(t *testing.T) {
	g, err := compileSchema([]byte(`element order: { sequence { item: string [0..*]; } };`), "", "shop.xsg")
	require.NoError(t, err)

	var b strings.Builder
	err = writeReport(&b, grammar.NewReport(g, grammar.Fidelity{Comments: true}))
	require.NoError(t, err)
	out := b.String()
	assert.Contains(t, out, "name: shop.xsg")
	assert.Contains(t, out, "schema-informed: true")
	assert.Contains(t, out, "fidelity: comments")
	assert.Contains(t, out, "order")
	assert.Contains(t, out, "## Rule ")
}

func TestCompileSchema_ErrorsCarryTheSource(t *testing.T) {
	_, err := compileSchema([]byte(`element a: Unknown;`), "a.xsg", "stdin")
	var specErrs verr.SpecErrors
	require.True(t, errors.As(err, &specErrs))
	for _, e := range specErrs {
		assert.Equal(t, "a.xsg", e.FilePath)
		assert.Equal(t, "stdin", e.SourceName)
	}
}

func TestReadGrammar_CompiledGrammar(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "shop.xsg")
	require.NoError(t, os.WriteFile(schemaPath, []byte(`element a: string;`), 0644))

	compileFlags.output = new(string)
	*compileFlags.output = filepath.Join(dir, "shop.json")
	require.NoError(t, runCompile(nil, []string{schemaPath}))

	g, err := readGrammar(*compileFlags.output)
	require.NoError(t, err)
	assert.True(t, g.IsSchemaInformed())
	assert.Len(t, g.GlobalElements(), 1)
}
