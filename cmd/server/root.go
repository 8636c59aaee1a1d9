package main

import (
	"github.com/spf13/cobra"

	"github.com/Brownie44l1/ningapi/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Banknote recognition service with spoken feedback",
	Long: `server — identifies banknotes from photos and announces them by voice.

Commands:
  serve     Run the HTTP API (default)
  scan      Analyze one image file and announce the result

Examples:
  server serve --config config.yaml
  server scan billet.jpg`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd, scanCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
