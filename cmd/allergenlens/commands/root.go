package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/allergenlens/backend/config"
	"github.com/allergenlens/backend/internal/app"
	"github.com/allergenlens/backend/internal/logger"
)

var (
	logLevel   string
	jsonOutput bool
	noLLM      bool

	// services is built once per invocation by the root pre-run hook
	services *app.App
	log      *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "allergenlens",
	Short: "Resolve shopper questions to OpenFoodFacts allergen context",
	Long: `allergenlens runs the allergen resolver from the command line. It reads the
same configuration as the server (.env, config.yaml and ALLERGENLENS_* variables)
and prints the grounding context and sources a chat turn would receive.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLevelSet := cmd.Flags().Changed("log-level")
		cfg, err := config.LoadWith(func(c *config.Config) {
			if noLLM {
				c.LLM.Enabled = false
			}
			if logLevelSet {
				c.Log.Level = logLevel
			}
		})
		if err != nil {
			return err
		}

		log, err = logger.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}

		services, err = app.New(cmd.Context(), cfg, log)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if log != nil {
			defer log.Sync()
		}
		if services != nil {
			return services.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides log.level")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVar(&noLLM, "no-llm", false, "skip term extraction and relevance checks")

	rootCmd.AddCommand(resolveCmd, termsCmd, productCmd)
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
