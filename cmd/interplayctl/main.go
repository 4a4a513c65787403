// Command interplayctl drives a running interplay API: it starts reports,
// prints the latest result and debug bundle, and runs operator actions.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	settings = viper.New()
	rootCmd  = &cobra.Command{
		Use:   "interplayctl",
		Short: "Operate the interplay report service",
		Long: `interplayctl talks to the interplay HTTP API. The server address and
admin token can also be set as INTERPLAY_SERVER and INTERPLAY_ADMIN_TOKEN.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().String("server", "http://localhost:8081", "API base URL")
	rootCmd.PersistentFlags().String("admin-token", "", "bearer token for operator routes")
	rootCmd.PersistentFlags().Duration("timeout", 0, "request timeout (default 30s)")
	_ = settings.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = settings.BindPFlag("admin_token", rootCmd.PersistentFlags().Lookup("admin-token"))
	_ = settings.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	settings.SetEnvPrefix("INTERPLAY")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()

	addCommands(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
