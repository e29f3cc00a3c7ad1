package main

import (
	"flag"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "exigram",
	Short: "Compile EXI grammars and code XML with them",
	Long: `exigram provides the following features:
- Compiles a schema written in the schema notation into an EXI grammar.
- Encodes an XML document into an EXI stream and decodes it back.
- Tests that documents survive the round trip through a grammar.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	// glog registers its flags (-v, --logtostderr, ...) on the Go flag set.
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}

func Execute() error {
	// Stops glog from complaining that the Go flag set has not been parsed.
	flag.CommandLine.Parse([]string{})

	return rootCmd.Execute()
}
