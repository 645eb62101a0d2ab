package main

import (
	"fmt"
	"os"

	"github.com/dhamidi/sapling/config"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// version is set with -ldflags "-X main.version=...".
var version = "0.1.0"

// app holds the state shared by all commands.
type app struct {
	configPath string
	verbose    int
	logFile    string
	cfg        *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:          "sapling",
		Short:        "Incremental, error-tolerant parsing for BAML",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "configuration file (default "+config.FileName+")")
	rootCmd.PersistentFlags().CountVarP(&a.verbose, "verbose", "v", "log more; repeat for more detail")
	rootCmd.PersistentFlags().StringVar(&a.logFile, "log-file", "", "write logs to this file instead of stderr")

	rootCmd.AddCommand(newParseCmd(a))
	rootCmd.AddCommand(newCheckCmd(a))
	rootCmd.AddCommand(newEditCmd(a))
	rootCmd.AddCommand(newWatchCmd(a))
	rootCmd.AddCommand(newLSPCmd(a))
	rootCmd.AddCommand(newGrammarCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Log.Verbosity = a.verbose
	}
	if a.logFile != "" {
		cfg.Log.File = a.logFile
	}
	for _, warning := range config.Validate(cfg) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warning)
	}
	commonlog.Initialize(cfg.Log.Verbosity, cfg.Log.File)
	a.cfg = cfg
	return nil
}
