package main

import (
	"io"
	"log/slog"

	"github.com/SAP-F-2025/course-progression-service/internal/config"
	"github.com/SAP-F-2025/course-progression-service/internal/utils"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "course-progression",
	Short:         "Course progression and assessment engine",
	Long:          "Serves chapter progress, chapter quizzes, the timed final test and certificates.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

// bootstrap loads configuration and builds the process logger
func bootstrap(cmd *cobra.Command) (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}

	logger, closer := utils.NewLogger(utils.LoggerOptions{
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		File:        cfg.LogFile,
	})
	slog.SetDefault(logger)
	return cfg, logger, closer, nil
}
