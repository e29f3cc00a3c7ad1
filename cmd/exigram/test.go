package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/nihei9/exigram/grammar"
	"github.com/nihei9/exigram/tester"
	"github.com/spf13/cobra"
)

var testFlags = struct {
	coding *codingFlags
}{}

func init() {
	cmd := &cobra.Command{
		Use:   "test <test file path>|<test directory path>",
		Short: "Test that documents survive encoding and decoding",
		Long: `test encodes every .xml file under the given path and decodes it back.
The documents of a directory containing a ` + tester.SchemaFileName + ` file are coded
with the grammar of the schema, and the others with the built-in grammar.`,
		Example: `  exigram test testdata --preserve-comments`,
		Args:    cobra.ExactArgs(1),
		RunE:    runTest,
	}
	testFlags.coding = newCodingFlags(cmd.Flags(), false)
	rootCmd.AddCommand(cmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	var cs []*tester.TestCaseWithMetadata
	{
		cs = tester.ListTestCases(args[0])
		errOccurred := false
		for _, c := range cs {
			if c.Error != nil {
				fmt.Fprintf(os.Stderr, "Failed to read a test case or a directory: %v\n%v\n", c.FilePath, c.Error)
				errOccurred = true
			}
		}
		if errOccurred {
			return errors.New("Cannot run test")
		}
	}

	t := &tester.Tester{
		Cache:          grammar.NewCache(),
		Fidelity:       testFlags.coding.fidelity(),
		SessionOptions: testFlags.coding.sessionOptions(),
		Cases:          cs,
	}
	rs := t.Run()
	testFailed := false
	for _, r := range rs {
		fmt.Fprintln(os.Stdout, r)
		if r.Error != nil {
			testFailed = true
		}
	}
	if testFailed {
		return errors.New("Test failed")
	}
	return nil
}
