package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dhamidi/sapling/baml"
	"github.com/dhamidi/sapling/format"
	"github.com/dhamidi/sapling/sitter"
	"github.com/spf13/cobra"
)

func newParseCmd(a *app) *cobra.Command {
	var outputFormat string
	var namedOnly bool

	cmd := &cobra.Command{
		Use:   "parse <file>...",
		Short: "Parse BAML files and dump their syntax trees",
		Long:  "Parse BAML files and dump their syntax trees. A file named - is read from standard input.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			encoder, err := format.New(outputFormat, out)
			if err != nil {
				return err
			}
			if enc, ok := encoder.(*format.JSONEncoder); ok {
				enc.NamedOnly = namedOnly
			}
			p := a.newParser()
			for _, filename := range args {
				src, err := readSource(cmd.InOrStdin(), filename)
				if err != nil {
					return err
				}
				tree, err := p.Parse(nil, src)
				if err != nil {
					return fmt.Errorf("parse %s: %w", filename, err)
				}
				if err := encoder.Encode(format.Document{Path: filename, Source: src, Tree: tree}); err != nil {
					return fmt.Errorf("encode: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "sexp", "output format ("+strings.Join(format.Names(), ", ")+")")
	cmd.Flags().BoolVar(&namedOnly, "named-only", false, "leave anonymous tokens out of json output")

	return cmd
}

// newParser returns a BAML parser with the configured options followed by
// extra.
func (a *app) newParser(extra ...sitter.Option) *sitter.Parser {
	opts := append([]sitter.Option{sitter.WithLanguage(baml.Language())}, a.cfg.Parser.Options()...)
	return sitter.NewParser(append(opts, extra...)...)
}

func readSource(stdin io.Reader, filename string) ([]byte, error) {
	if filename == "-" {
		src, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read standard input: %w", err)
		}
		return src, nil
	}
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	return src, nil
}
