package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/dhamidi/sapling/format"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var errSyntax = errors.New("syntax errors found")

func newCheckCmd(a *app) *cobra.Command {
	var jobs int

	cmd := &cobra.Command{
		Use:   "check [path]...",
		Short: "Report syntax errors in BAML files",
		Long: "Parse every BAML file under the given paths (default .) in parallel and\n" +
			"print one line per syntax error. Exits with an error if any are found.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}
			files, err := a.collectFiles(args)
			if err != nil {
				return err
			}

			docs := make([]format.Document, len(files))
			g := new(errgroup.Group)
			g.SetLimit(max(1, jobs))
			for i, path := range files {
				g.Go(func() error {
					src, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("read %s: %w", path, err)
					}
					tree, err := a.newParser().Parse(nil, src)
					if err != nil {
						return fmt.Errorf("parse %s: %w", path, err)
					}
					docs[i] = format.Document{Path: path, Source: src, Tree: tree}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			enc := format.NewDiagnosticsEncoder(cmd.OutOrStdout())
			errorCount, badFiles := 0, 0
			for _, doc := range docs {
				if n := len(doc.Tree.Errors()); n > 0 {
					errorCount += n
					badFiles++
				}
				if err := enc.Encode(doc); err != nil {
					return err
				}
			}
			if errorCount > 0 {
				return fmt.Errorf("%w: %d in %d of %d files", errSyntax, errorCount, badFiles, len(docs))
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "checked %d files\n", len(docs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.GOMAXPROCS(0), "number of files parsed at once")

	return cmd
}

// collectFiles expands directories into the files the watch settings
// accept. Files named explicitly are always included.
func (a *app) collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && a.cfg.Watch.Excludes(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if a.cfg.Watch.Matches(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}
