package main

import (
	"fmt"
	"io"

	"github.com/nihei9/exigram/driver"
	"github.com/nihei9/exigram/driver/channel"
	"github.com/nihei9/exigram/infoset"
	"github.com/spf13/cobra"
)

const (
	formatXML    = "xml"
	formatEvents = "events"
)

var decodeFlags = struct {
	coding   *codingFlags
	output   *string
	fragment *bool
	format   *string
}{}

func init() {
	cmd := &cobra.Command{
		Use:   "decode [<EXI file path>]",
		Short: "Decode an EXI stream",
		Example: `  exigram decode order.exi -s shop.xsg
  exigram decode items.exi --fragment --format events`,
		Args: cobra.MaximumNArgs(1),
		RunE: runDecode,
	}
	decodeFlags.coding = newCodingFlags(cmd.Flags(), true)
	decodeFlags.output = cmd.Flags().StringP("output", "o", "", "output file path (default stdout)")
	decodeFlags.fragment = cmd.Flags().Bool("fragment", false, "decode a fragment")
	decodeFlags.format = cmd.Flags().String("format", formatXML, "output format (xml|events)")
	rootCmd.AddCommand(cmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	var write func(w io.Writer, ev *driver.Event) error
	switch *decodeFlags.format {
	case formatXML:
	case formatEvents:
		write = func(w io.Writer, ev *driver.Event) error {
			_, err := fmt.Fprintln(w, ev)
			return err
		}
	default:
		return fmt.Errorf("Unknown output format: %v", *decodeFlags.format)
	}

	g, err := decodeFlags.coding.grammar()
	if err != nil {
		return err
	}

	var path string
	if len(args) > 0 {
		path = args[0]
	}
	r, err := openInput(path)
	if err != nil {
		return err
	}
	if path != "" {
		defer r.Close()
	}

	opts := decodeFlags.coding.options()
	if *decodeFlags.fragment {
		opts = append(opts, driver.AsFragment())
	}
	dec, err := driver.NewDecoder(g, channel.NewReader(r), opts...)
	if err != nil {
		return err
	}

	w, err := createOutput(*decodeFlags.output)
	if err != nil {
		return fmt.Errorf("Cannot write the document: %w", err)
	}
	if *decodeFlags.output != "" {
		defer w.Close()
	}
	if write == nil {
		xw := infoset.NewWriter(w)
		write = func(_ io.Writer, ev *driver.Event) error {
			return xw.Write(ev)
		}
	}

	for {
		ev, err := dec.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		err = write(w, ev)
		if err != nil {
			return err
		}
	}
}
