package cmd

import (
	"context"
	"fmt"
	"time"

	"albumvault/core/auth"
	"albumvault/db"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试Redis连接，并写入一条短期的 token 吊销记录验证读写。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Redis配置: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := db.ConnectRedis(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		fmt.Println("Redis连接成功！")

		revoker := auth.NewRedisRevoker(client)
		probe := "probe-" + uuid.NewString()
		if err := revoker.Revoke(ctx, probe, time.Now().Add(5*time.Second)); err != nil {
			return fmt.Errorf("Redis写入失败: %w", err)
		}
		revoked, err := revoker.IsRevoked(ctx, probe)
		if err != nil {
			return fmt.Errorf("Redis读取失败: %w", err)
		}
		if !revoked {
			return fmt.Errorf("Redis读写测试失败: 写入的记录不存在")
		}
		fmt.Println("Redis基本操作测试成功！")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
