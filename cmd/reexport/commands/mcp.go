package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/reexport/internal/mcp"
	"github.com/Sumatoshi-tech/reexport/pkg/generate"
	"github.com/Sumatoshi-tech/reexport/pkg/observability"
)

const (
	mcpCommandName = "mcp"

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

func newMCPCommand(opts *globalOptions) *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   mcpCommandName,
		Short: "Start an MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server, on stdio by default.

Tools:
  - reexport_expand: expand a helper invocation against a package, without writing
  - reexport_scan: list the //reexport: directives under a directory

With --http the server listens on the given address using the streamable
HTTP transport.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv := mcp.NewServer(mcp.ServerDeps{
				Loader:  opts.loader(),
				Options: opts.generateOptions(generate.ModeDryRun),
				Logger:  opts.providers.Logger,
				Metrics: opts.red,
				Tracer:  opts.providers.Tracer,
			})

			if httpAddr == "" {
				return srv.Run(cmd.Context())
			}

			return serveHTTP(cmd.Context(), httpAddr,
				observability.HTTPMiddleware(opts.providers.Tracer, opts.red, srv.HTTPHandler()), opts)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "serve the streamable HTTP transport on this address instead of stdio")

	return cmd
}

func serveHTTP(ctx context.Context, addr string, handler http.Handler, opts *globalOptions) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- server.ListenAndServe()
	}()

	opts.providers.Logger.InfoContext(ctx, "mcp http server listening", "addr", addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("mcp http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err := server.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("mcp http shutdown: %w", err)
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("mcp http server: %w", err)
	}

	return nil
}
