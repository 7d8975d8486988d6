package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/cmd/users"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "cloudwiseapi",
	Short: "CloudWise API server",
	Long: `CloudWise API server authenticates tenants against the external identity
provider, gates access to their cloud accounts and receives billing webhooks.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile == "" {
			return nil
		}
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (yaml, json or toml); environment variables override it")
	flags.String("db-url", "", "Database connection URL (env: CLOUDWISE_DATABASE_URL)")
	flags.String("server-addr", "", "Server bind address (env: CLOUDWISE_SERVER_ADDR)")
	flags.String("log-level", "", "Log level (env: CLOUDWISE_LOG_LEVEL)")

	for key, flag := range map[string]string{
		"database_url": "db-url",
		"server_addr":  "server-addr",
		"log_level":    "log-level",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(users.UsersCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
