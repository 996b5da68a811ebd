// Package commands implements the xiaoyun CLI commands using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the CLI root command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "xiaoyun",
		Short: "Xiaoyun - 小雲貓咪聊天機器人",
		Long: `Xiaoyun is a LINE chatbot with the persona of a lazy little
cat. It turns model output into multi-message replies with stickers,
images and meow sounds.

Examples:
  xiaoyun serve
  xiaoyun chat
  xiaoyun config init
  xiaoyun config set-key`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newConfigCmd(),
	)

	// Global flags.
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}
