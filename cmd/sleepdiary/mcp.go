package main

import (
	"fmt"
	"log"
	"os"

	"github.com/NicklasHM/P3-sleep-diary/internal/cli"
	"github.com/NicklasHM/P3-sleep-diary/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp [definition...]",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the diaries to AI agents as MCP tools: list_questions,
validate_answers, next_question and render_graph.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")
		cfg.Store.Definitions = append(cfg.Store.Definitions, args...)

		ctx, stop := signalContext()
		defer stop()

		app, err := cli.NewApp(ctx, cfg, logger, cli.AppOptions{})
		if err != nil {
			return err
		}
		defer app.Close()
		srv := mcp.NewServer(app)

		switch transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			logger.Info("Starting MCP server (stdio)")
			return srv.ServeStdio()
		case "sse":
			baseURL, _ := cmd.Flags().GetString("base-url")
			if baseURL == "" {
				baseURL = "http://localhost" + addr
			}
			if err := srv.ServeSSE(ctx, addr, baseURL); err != nil {
				return err
			}
			logger.Info("MCP server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport %q: supported are stdio and sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", ":8081", "Address to listen on (only for SSE)")
	mcpCmd.Flags().String("base-url", "", "Public base URL of the SSE endpoint")
}
