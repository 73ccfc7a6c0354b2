package cmd

import (
	"fmt"

	"albumvault/db"
	"albumvault/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "创建或更新数据库表结构",
	RunE: func(cmd *cobra.Command, args []string) error {
		gdb, err := db.Open(cfg, logger.Named("gorm"))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close(gdb)

		if err := db.Migrate(gdb); err != nil {
			return err
		}
		fmt.Printf("数据库迁移完成 (%s)\n", cfg.DBDriver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
