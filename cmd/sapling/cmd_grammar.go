package main

import (
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/dhamidi/sapling/baml"
	"github.com/dhamidi/sapling/grammar"
	"github.com/iancoleman/strcase"
	"github.com/spf13/cobra"
	"golang.org/x/exp/ebnf"
)

func newGrammarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grammar",
		Short: "Inspect EBNF grammars and the compiled BAML tables",
	}

	cmd.AddCommand(newGrammarCheckCmd())
	cmd.AddCommand(newGrammarSourceCmd())
	cmd.AddCommand(newGrammarTablesCmd())
	cmd.AddCommand(newGrammarSymbolsCmd())
	cmd.AddCommand(newGrammarConflictsCmd())

	return cmd
}

func newGrammarCheckCmd() *cobra.Command {
	var startProduction string

	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Parse and verify an EBNF grammar file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := grammar.LoadFile(args[0])
			if err != nil {
				printErrors(cmd.OutOrStdout(), err)
				return err
			}
			if startProduction == "" {
				return nil
			}
			if err := ebnf.Verify(g, startProduction); err != nil {
				printErrors(cmd.OutOrStdout(), err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&startProduction, "start", "", "start production for verification (if empty, only checks syntax)")

	return cmd
}

func newGrammarSourceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "source",
		Short: "Print the embedded BAML grammar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write(baml.Source())
			return err
		},
	}
}

func newGrammarTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "Compile the BAML grammar and write its tables as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := baml.Compile()
			if err != nil {
				printErrors(cmd.ErrOrStderr(), err)
				return err
			}
			return tables.WriteJSON(cmd.OutOrStdout())
		},
	}
}

func newGrammarSymbolsCmd() *cobra.Command {
	var goConstants bool

	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "List the symbols of the BAML language",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := baml.Compile()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if goConstants {
				fmt.Fprintln(out, "const (")
			}
			for i, info := range tables.Symbols {
				switch {
				case goConstants && info.Named && info.Visible:
					fmt.Fprintf(out, "\tSym%s = %d\n", strcase.ToCamel(info.Name), i)
				case !goConstants:
					fmt.Fprintf(out, "%d\t%s\t%s\n", i, info.Name, symbolFlags(info))
				}
			}
			if goConstants {
				fmt.Fprintln(out, ")")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&goConstants, "go", false, "print named symbols as Go constants")

	return cmd
}

func symbolFlags(info grammar.SymbolInfo) string {
	var flags []byte
	for _, f := range []struct {
		set  bool
		flag byte
	}{
		{info.Terminal, 't'},
		{info.Named, 'n'},
		{info.Visible, 'v'},
		{info.Extra, 'x'},
		{info.Aux, 'a'},
		{info.External, 'e'},
	} {
		if f.set {
			flags = append(flags, f.flag)
		} else {
			flags = append(flags, '-')
		}
	}
	return string(flags)
}

func newGrammarConflictsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "List the resolved conflicts in the BAML parse table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := baml.Compile()
			if err != nil {
				return err
			}
			conflicts := tables.SortedConflicts()
			for _, c := range conflicts {
				fmt.Fprintln(cmd.OutOrStdout(), tables.DescribeConflict(c))
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d conflicts\n", len(conflicts))
			return nil
		},
	}
}

// printErrors prints each error of a list on its own line.
func printErrors(w io.Writer, err error) {
	for e := err; e != nil; e = errors.Unwrap(e) {
		v := reflect.ValueOf(e)
		if v.Kind() == reflect.Slice {
			for i := 0; i < v.Len(); i++ {
				fmt.Fprintln(w, v.Index(i).Interface())
			}
			return
		}
	}
	fmt.Fprintln(w, err)
}
