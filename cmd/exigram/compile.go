package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/nihei9/exigram/grammar"
	"github.com/spf13/cobra"
)

var compileFlags = struct {
	output *string
}{}

func init() {
	cmd := &cobra.Command{
		Use:     "compile [<schema file path>]",
		Short:   "Compile a schema into a portable grammar",
		Example: `  exigram compile shop.xsg -o shop.json`,
		Args:    cobra.MaximumNArgs(1),
		RunE:    runCompile,
	}
	compileFlags.output = cmd.Flags().StringP("output", "o", "", "output file path (default stdout)")
	rootCmd.AddCommand(cmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	var path, sourceName string
	if len(args) > 0 {
		path = args[0]
		sourceName = path
	} else {
		sourceName = "stdin"
	}

	src, err := func() ([]byte, error) {
		f, err := openInput(path)
		if err != nil {
			return nil, err
		}
		if path != "" {
			defer f.Close()
		}
		return io.ReadAll(f)
	}()
	if err != nil {
		return err
	}

	g, err := compileSchema(src, path, sourceName)
	if err != nil {
		return err
	}

	b, err := json.Marshal(grammar.Export(g))
	if err != nil {
		return err
	}
	w, err := createOutput(*compileFlags.output)
	if err != nil {
		return fmt.Errorf("Cannot write the compiled grammar: %w", err)
	}
	if *compileFlags.output != "" {
		defer w.Close()
	}
	fmt.Fprintf(w, "%v\n", string(b))

	return nil
}
