package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(DefaultConfig()).Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func newRootCmd(config *Config) *cobra.Command {
	var logCloser io.Closer

	rootCmd := &cobra.Command{
		Use:   "streamhose",
		Short: "Stream line-delimited sources into batch-ingestion sinks",
		Long: `streamhose reads line-delimited (optionally gzipped) files and S3 objects,
splits them into records and delivers them in batches to a sink such as an
Amazon Data Firehose delivery stream, ClickHouse, OpenSearch, a file or stdout.

Configuration comes from flags, STREAMHOSE_* environment variables, an optional
.env file (--env-file) and an optional config file (--config).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadFromViper(cmd); err != nil {
				return err
			}
			if err := config.Validate(); err != nil {
				return err
			}
			logger, closer, err := newLogger(config.Log)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			logCloser = closer
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				_ = logCloser.Close()
			}
		},
	}

	// Setup flags from config
	config.SetupFlags(rootCmd)
	rootCmd.AddCommand(newRunCmd(config), newLambdaCmd(config))
	return rootCmd
}
