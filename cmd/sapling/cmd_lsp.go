package main

import (
	"fmt"

	"github.com/dhamidi/sapling/baml"
	"github.com/dhamidi/sapling/lsp"
	"github.com/spf13/cobra"
)

func newLSPCmd(a *app) *cobra.Command {
	var tcpAddress string

	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		RunE: func(cmd *cobra.Command, args []string) error {
			server := lsp.NewServer(lsp.Config{
				Version:       version,
				Language:      baml.Language(),
				ParserOptions: a.cfg.Parser.Options(),
				Match:         a.cfg.Watch.Matches,
			})

			transport, address := a.cfg.LSP.Transport, a.cfg.LSP.Address
			if cmd.Flags().Changed("tcp") {
				transport, address = "tcp", tcpAddress
			}
			switch transport {
			case "stdio":
				return server.RunStdio()
			case "tcp":
				return server.RunTCP(address)
			default:
				return fmt.Errorf("unknown lsp transport %q", transport)
			}
		},
	}

	cmd.Flags().StringVar(&tcpAddress, "tcp", "", "listen on this address instead of using stdio")

	return cmd
}
