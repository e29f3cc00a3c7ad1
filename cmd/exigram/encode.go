package main

import (
	"fmt"

	"github.com/antchfx/xmlquery"
	"github.com/golang/glog"
	"github.com/nihei9/exigram/driver"
	"github.com/nihei9/exigram/driver/channel"
	"github.com/nihei9/exigram/infoset"
	"github.com/spf13/cobra"
)

var encodeFlags = struct {
	coding   *codingFlags
	output   *string
	fragment *bool
	selector *string
	cookie   *bool
}{}

func init() {
	cmd := &cobra.Command{
		Use:   "encode [<XML file path>]",
		Short: "Encode an XML document into an EXI stream",
		Example: `  exigram encode order.xml -s shop.xsg -o order.exi
  exigram encode catalogue.xml --select '//item' -o items.exi`,
		Args: cobra.MaximumNArgs(1),
		RunE: runEncode,
	}
	encodeFlags.coding = newCodingFlags(cmd.Flags(), true)
	encodeFlags.output = cmd.Flags().StringP("output", "o", "", "output file path (default stdout)")
	encodeFlags.fragment = cmd.Flags().Bool("fragment", false, "encode the top-level elements as a fragment")
	encodeFlags.selector = cmd.Flags().String("select", "", "encode the elements an XPath expression selects as a fragment")
	encodeFlags.cookie = cmd.Flags().Bool("cookie", false, "start the stream with the EXI cookie")
	rootCmd.AddCommand(cmd)
}

func runEncode(cmd *cobra.Command, args []string) error {
	g, err := encodeFlags.coding.grammar()
	if err != nil {
		return err
	}

	var doc *xmlquery.Node
	{
		var path string
		if len(args) > 0 {
			path = args[0]
		}
		f, err := openInput(path)
		if err != nil {
			return err
		}
		if path != "" {
			defer f.Close()
		}
		doc, err = infoset.Parse(f)
		if err != nil {
			return err
		}
	}

	infoOpts := infoset.Options{
		Fidelity: encodeFlags.coding.fidelity(),
	}
	opts := encodeFlags.coding.options()
	if *encodeFlags.cookie {
		opts = append(opts, driver.WithCookie())
	}
	var evs []*driver.Event
	switch {
	case *encodeFlags.selector != "":
		roots, err := infoset.Select(doc, *encodeFlags.selector)
		if err != nil {
			return err
		}
		evs = infoset.Fragment(roots, infoOpts)
		opts = append(opts, driver.AsFragment())
	case *encodeFlags.fragment:
		var roots []*xmlquery.Node
		for c := doc.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == xmlquery.ElementNode {
				roots = append(roots, c)
			}
		}
		evs = infoset.Fragment(roots, infoOpts)
		opts = append(opts, driver.AsFragment())
	default:
		evs = infoset.Document(doc, infoOpts)
	}

	w, err := createOutput(*encodeFlags.output)
	if err != nil {
		return fmt.Errorf("Cannot write the stream: %w", err)
	}
	if *encodeFlags.output != "" {
		defer w.Close()
	}

	ch := channel.NewWriter(w)
	enc, err := driver.NewEncoder(g, ch, opts...)
	if err != nil {
		return err
	}
	for _, ev := range evs {
		err := enc.Encode(ev)
		if err != nil {
			return fmt.Errorf("Cannot encode %v: %w", ev, err)
		}
	}
	glog.V(1).Infof("encoded %v events into %v bits", len(evs), ch.Bits())

	return nil
}
