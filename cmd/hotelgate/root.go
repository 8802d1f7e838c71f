package main

import (
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "hotelgate",
	Short: "Session gateway for the hospitality management front-end",
	Long: `hotelgate guards the admin, dashboard, restaurant and front-desk areas,
keeps session tokens, and proxies auth API calls to the backend service.`,
	SilenceUsage: true,
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file (env HOTELGATE_* overrides it)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(devBackendCmd)
}
