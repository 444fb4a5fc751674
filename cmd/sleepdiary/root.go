package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/NicklasHM/P3-sleep-diary/internal/config"
	"github.com/NicklasHM/P3-sleep-diary/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sleepdiary",
	Short: "Sleep diary questionnaires with conditional questions",
	Long: `sleepdiary serves the morning and evening sleep diaries: a question graph
with conditional branches, validation of every answer, a step-by-step wizard
and an editor for the questions.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("config")
		v := config.New(file)
		bindFlag(v, "log.level", cmd, "log-level")
		bindFlag(v, "log.format", cmd, "log-format")
		bindFlag(v, "store.driver", cmd, "store")
		bindFlag(v, "store.dir", cmd, "data-dir")

		var err error
		cfg, err = config.Load(v)
		if err != nil {
			return err
		}
		logger = logging.New(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./sleepdiary.yaml or $HOME/.sleepdiary/sleepdiary.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().String("store", "memory", "Question store: memory or sqlite")
	rootCmd.PersistentFlags().String("data-dir", ".sleepdiary", "Directory of the sqlite database")
}

// bindFlag lets an explicitly set flag override the config file and env.
func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		v.Set(key, f.Value.String())
	}
}

// signalContext is canceled on interrupt or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
