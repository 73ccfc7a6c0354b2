package cmd

import (
	"context"
	"fmt"
	"time"

	"albumvault/db"
	"albumvault/logger"
	"albumvault/repository"
	"albumvault/storage"

	"github.com/spf13/cobra"
)

var (
	storageStats   bool
	storageOrphans bool
	storagePrune   bool
	storageGrace   time.Duration
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "音频存储管理",
	Long:  `查看音频存储中的文件，统计占用空间，找出或清理没有对应歌曲记录的文件。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		fmt.Printf("音频存储: %s\n", cfg.AudioStore)
		// 截止时间在列出文件之前确定，之后写入的文件不会被当作孤立文件
		cutoff := time.Now().Add(-storageGrace)

		store, err := storage.New(ctx, cfg, logger.Named("storage"))
		if err != nil {
			return err
		}
		objects, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("列出文件失败: %w", err)
		}

		if storageStats {
			stats := storage.Stats(objects)
			fmt.Printf("文件数: %d\n总大小: %.2f MB\n", stats.TotalObjects, float64(stats.TotalSize)/(1<<20))
			if stats.TotalObjects > 0 {
				fmt.Printf("最近修改: %s\n", stats.LastModified.Format(time.RFC3339))
			}
			return nil
		}

		if !storageOrphans && !storagePrune {
			printObjects(objects)
			return nil
		}

		gdb, err := db.Open(cfg, logger.Named("gorm"))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close(gdb)

		keys, err := repository.NewStore(gdb).Songs.AllAudioKeys(ctx)
		if err != nil {
			return fmt.Errorf("读取歌曲记录失败: %w", err)
		}
		orphans := storage.Orphans(objects, keys, cutoff)
		fmt.Printf("孤立文件: %d\n", len(orphans))
		printObjects(orphans)

		if !storagePrune {
			return nil
		}
		removed := 0
		for _, o := range orphans {
			if err := store.Remove(ctx, o.Key); err != nil {
				logger.Warn("删除孤立文件失败", logger.String("key", o.Key), logger.ErrorField(err))
				continue
			}
			removed++
		}
		fmt.Printf("已删除 %d/%d 个孤立文件\n", removed, len(orphans))
		return nil
	},
}

func printObjects(objects []storage.ObjectInfo) {
	for _, o := range objects {
		fmt.Printf("%-48s %10d  %s\n", o.Key, o.Size, o.LastModified.Format(time.RFC3339))
	}
}

func init() {
	rootCmd.AddCommand(storageCmd)

	storageCmd.Flags().BoolVarP(&storageStats, "stats", "s", false, "显示存储统计信息")
	storageCmd.Flags().BoolVar(&storageOrphans, "orphans", false, "列出没有歌曲记录的文件")
	storageCmd.Flags().BoolVar(&storagePrune, "prune", false, "删除没有歌曲记录的文件")
	storageCmd.Flags().DurationVar(&storageGrace, "grace", time.Hour, "忽略最近修改时间在此范围内的文件（上传可能尚未提交）")

	storageCmd.Example = `  # 列出所有文件
  albumvault storage

  # 显示统计信息
  albumvault storage -s

  # 找出并删除孤立文件
  albumvault storage --orphans
  albumvault storage --prune`
}
