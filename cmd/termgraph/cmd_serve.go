package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	termmcp "github.com/sanonone/termgraph/internal/mcp"
	"github.com/sanonone/termgraph/internal/server"
)

func newServeCmd(g *globals) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the definition search over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.Config.Server
			if addr != "" {
				cfg.Addr = addr
			}
			srv := server.NewServer(a.Searcher, cfg, a.Config.SearchOptions(), a.Logger)

			shutdownChan := make(chan os.Signal, 1)
			signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(shutdownChan)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Run() }()

			select {
			case err := <-errCh:
				return err
			case <-shutdownChan:
			case <-contextOf(cmd).Done():
			}
			srv.Shutdown()
			return <-errCh
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func newMCPCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the definition search as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := termmcp.NewMCPServer(a.Searcher, a.Vocab, a.Config.SearchOptions(), version)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(contextOf(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			a.Logger.Info("MCP server running on stdio", "name", termmcp.ServerName, "version", version)
			return s.Run(ctx, &mcp.StdioTransport{})
		},
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
