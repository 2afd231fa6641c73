package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/logger"
)

var (
	configPath string
	verbose    bool

	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mmrctl",
	Short: "Indexing tools for the multimedia retrieval platform",
	Long: `mmrctl - command line access to the descriptor pipeline and the hash indexer.

Configuration is read from the YAML file given by --config, then overridden
by MR_* environment variables. A .env file in the working directory is
loaded first if present.

Examples:
  # Compute descriptors for a directory tree, 32 files per batch
  mmrctl compute --batch-size 32 ./corpus

  # Hash all stored descriptors into Redis
  mmrctl hashcodes --store redis

  # Export labeled descriptors for libSVM grid search
  mmrctl svmtrain -f labels.csv -o train.txt`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			slog.Debug("no .env file loaded", "error", err)
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
		globalConfig = cfg
		return nil
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel its context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging, including progress reports")
}
