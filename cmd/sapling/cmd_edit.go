package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dhamidi/sapling/format"
	"github.com/dhamidi/sapling/sitter"
	"github.com/kr/pretty"
	"github.com/spf13/cobra"
)

// textEdit is one --edit flag: replace src[start:end] with text.
type textEdit struct {
	start, end int
	text       string
}

// parseEdit reads "start:end:text". The text may be a Go quoted string,
// which allows newlines and other escapes.
func parseEdit(s string) (textEdit, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return textEdit{}, fmt.Errorf("edit %q: want start:end:text", s)
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return textEdit{}, fmt.Errorf("edit %q: start: %w", s, err)
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return textEdit{}, fmt.Errorf("edit %q: end: %w", s, err)
	}
	text := parts[2]
	if strings.HasPrefix(text, `"`) {
		if text, err = strconv.Unquote(text); err != nil {
			return textEdit{}, fmt.Errorf("edit %q: text: %w", s, err)
		}
	}
	return textEdit{start: start, end: end, text: text}, nil
}

// treeShape is a comparable dump of the visible nodes of a tree.
type treeShape struct {
	Kind     string
	Start    uint32
	End      uint32
	Missing  bool
	Extra    bool
	Children []treeShape
}

func shapeOf(n sitter.Node) treeShape {
	s := treeShape{
		Kind:    n.Kind(),
		Start:   n.StartByte(),
		End:     n.EndByte(),
		Missing: n.IsMissing(),
		Extra:   n.IsExtra(),
	}
	for _, c := range n.Children() {
		s.Children = append(s.Children, shapeOf(c))
	}
	return s
}

// treeDiff describes where got differs from want, one path per line.
func treeDiff(want, got *sitter.Tree) []string {
	return pretty.Diff(shapeOf(want.RootNode()), shapeOf(got.RootNode()))
}

func newEditCmd(a *app) *cobra.Command {
	var edits []string
	var outputFormat string
	var verify bool
	var write bool
	var full bool

	cmd := &cobra.Command{
		Use:   "edit <file> --edit start:end:text...",
		Short: "Apply edits to a file and reparse it incrementally",
		Long: "Parse a file, apply the edits in order (each relative to the text left by\n" +
			"the previous one), reparse incrementally and print the new tree along with\n" +
			"reuse statistics. With --verify the result is compared to a full parse.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]
			src, err := readSource(cmd.InOrStdin(), filename)
			if err != nil {
				return err
			}
			p := a.newParser()
			tree, err := p.Parse(nil, src)
			if err != nil {
				return fmt.Errorf("parse %s: %w", filename, err)
			}

			for _, s := range edits {
				e, err := parseEdit(s)
				if err != nil {
					return err
				}
				if e.start < 0 || e.start > e.end || e.end > len(src) {
					return fmt.Errorf("edit %q: range outside %d bytes of text", s, len(src))
				}
				repl := []byte(e.text)
				ie := sitter.NewInputEdit(src, e.start, e.end, repl)
				src = ie.Apply(src, repl)
				tree = tree.Edit(ie)
			}

			if full {
				p = a.newParser(sitter.WithoutReuse())
			}
			next, err := p.Parse(tree, src)
			if err != nil {
				return fmt.Errorf("reparse %s: %w", filename, err)
			}
			stats := next.Stats()
			fmt.Fprintf(cmd.ErrOrStderr(), "reused %d nodes (%d bytes) and %d tokens, lexed %d tokens, %d recoveries\n",
				stats.ReusedNodes, stats.ReusedBytes, stats.ReusedTokens, stats.LexedTokens, stats.Recoveries)

			if verify {
				fresh, err := a.newParser(sitter.WithoutReuse()).Parse(nil, src)
				if err != nil {
					return fmt.Errorf("full parse %s: %w", filename, err)
				}
				if !sitter.Equal(fresh.RootNode(), next.RootNode()) {
					for _, d := range treeDiff(fresh, next) {
						fmt.Fprintln(cmd.ErrOrStderr(), d)
					}
					return fmt.Errorf("incremental parse of %s differs from a full parse", filename)
				}
			}

			if write && filename != "-" {
				if err := os.WriteFile(filename, src, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", filename, err)
				}
			}

			encoder, err := format.New(outputFormat, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return encoder.Encode(format.Document{Path: filename, Source: src, Tree: next})
		},
	}

	cmd.Flags().StringArrayVarP(&edits, "edit", "e", nil, "edit as start:end:text; repeatable")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "sexp", "output format ("+strings.Join(format.Names(), ", ")+")")
	cmd.Flags().BoolVar(&verify, "verify", true, "compare the result with a full parse")
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the edited text back to the file")
	cmd.Flags().BoolVar(&full, "full", false, "reparse from scratch instead of reusing the old tree")

	return cmd
}
