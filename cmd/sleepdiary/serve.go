package main

import (
	httpAdapter "github.com/NicklasHM/P3-sleep-diary/internal/adapters/http"
	"github.com/NicklasHM/P3-sleep-diary/internal/cli"
	"github.com/NicklasHM/P3-sleep-diary/internal/metrics"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [definition...]",
	Short: "Start the HTTP API",
	Long: `Starts the JSON API for questionnaires, questions, responses and wizard
sessions. Definition files given as arguments are seeded into the store next
to the ones listed under store.definitions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); cmd.Flags().Changed("addr") {
			cfg.HTTP.Addr = addr
		}
		cfg.Store.Definitions = append(cfg.Store.Definitions, args...)

		ctx, stop := signalContext()
		defer stop()

		m := metrics.New()
		app, err := cli.NewApp(ctx, cfg, logger, cli.AppOptions{Metrics: m})
		if err != nil {
			return err
		}
		defer app.Close()

		srv := httpAdapter.New(app, httpAdapter.WithLogger(logger), httpAdapter.WithMetrics(m))
		if err := srv.ListenAndServe(ctx, cfg.HTTP.Addr); err != nil {
			return err
		}
		logger.Info("HTTP server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
}
