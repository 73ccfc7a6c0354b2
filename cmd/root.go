package cmd

import (
	"fmt"
	"os"

	"albumvault/config"
	"albumvault/logger"
	"albumvault/server"

	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "albumvault",
	Short:         "albumvault stores users' albums and their uploaded songs.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		return logger.InitLogger(logger.Config{
			Level:      cfg.LogLevel,
			OutputPath: cfg.LogFile,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	// 不带子命令时直接启动服务
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cfg)
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
