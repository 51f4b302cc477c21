// Package cmd implements the hermes CLI using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/hermes/internal/config"
	"github.com/crystaldolphin/hermes/internal/shared/cmdutils"
)

const version = "0.1.0"

var cfgPath string

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "hermes",
	Short: cmdutils.Logo + " hermes: streaming reply agent for Ouro conversations",
	Long: cmdutils.Logo + ` hermes joins the conversation backend as an agent account, answers
direct messages with a streamed model reply and stores the finished reply.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default ~/.hermes/config.json)")

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

func configPath() string {
	if cfgPath != "" {
		return cfgPath
	}
	return config.ConfigPath()
}
