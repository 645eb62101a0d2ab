package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dhamidi/sapling/baml"
	"github.com/dhamidi/sapling/format"
	"github.com/dhamidi/sapling/workspace"
	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir]...",
		Short: "Reparse BAML files as they change and report syntax errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			ws := workspace.New(args[0], baml.Language(), a.cfg.Parser.Options()...)
			files, err := a.collectFiles(args)
			if err != nil {
				return err
			}
			for _, path := range files {
				doc, err := ws.ScanFile(path)
				if err != nil {
					return err
				}
				report(out, doc)
			}

			w, err := workspace.NewWatcher(ws, workspace.WatcherConfig{
				Match:    a.cfg.Watch.Matches,
				Exclude:  a.cfg.Watch.Excludes,
				Debounce: a.cfg.Watch.Debounce(),
			})
			if err != nil {
				return err
			}
			defer w.Stop()
			w.OnUpdate = func(doc *workspace.Document) { report(out, doc) }
			w.OnRemove = func(path string) { fmt.Fprintf(out, "%s: removed\n", path) }

			fmt.Fprintf(cmd.ErrOrStderr(), "watching %d files\n", len(files))
			if err := w.Watch(ctx, args); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	return cmd
}

func report(out io.Writer, doc *workspace.Document) {
	if !doc.Tree.HasError() {
		fmt.Fprintf(out, "%s: ok\n", doc.Path)
		return
	}
	enc := format.NewDiagnosticsEncoder(out)
	if err := enc.Encode(format.Document{Path: doc.Path, Source: doc.Content, Tree: doc.Tree}); err != nil {
		fmt.Fprintf(out, "%s: %v\n", doc.Path, err)
	}
}
