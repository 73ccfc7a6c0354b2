package cmd

import (
	"albumvault/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动 albumvault 服务器",
	Long:  `启动 HTTP API 服务器，提供用户、专辑和歌曲上传接口`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
