package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/longkey1/lome/internal/lome/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const configFields = "configfile, model, openrouter_base_url, openrouter_token, server_url, session_token, local_user, listen_addr, session_secret, session_ttl, data_dir, store_driver, catalog_file, dedupe_window, log_level, log_format"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config [field]",
	Short: "Display current configuration",
	Long: `Display the current configuration values.
This command shows all configuration values loaded from the config file and environment variables.
Tokens and secrets are masked.

If a field name is specified, only that field's value is displayed.
Available fields: ` + configFields + `

Examples:
  lome config                  # Show all configuration
  lome config model            # Show only model
  lome config server_url       # Show only the server URL
  lome config openrouter_token # Show only the OpenRouter token (masked)`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		fields := [][2]string{
			{"configfile", viper.ConfigFileUsed()},
			{"model", cfg.Model},
			{"openrouter_base_url", cfg.OpenRouterBaseURL},
			{"openrouter_token", config.MaskToken(cfg.OpenRouterToken)},
			{"server_url", cfg.ServerURL},
			{"session_token", config.MaskToken(cfg.SessionToken)},
			{"local_user", cfg.LocalUser},
			{"listen_addr", cfg.ListenAddr},
			{"session_secret", config.MaskToken(cfg.SessionSecret)},
			{"session_ttl", cfg.SessionTTL},
			{"data_dir", cfg.DataDir},
			{"store_driver", cfg.StoreDriver},
			{"catalog_file", cfg.CatalogFile},
			{"dedupe_window", cfg.DedupeWindow},
			{"log_level", cfg.LogLevel},
			{"log_format", cfg.LogFormat},
		}

		// If a field is specified, show only that field
		if len(args) > 0 {
			field := strings.ToLower(args[0])
			for _, f := range fields {
				if f[0] == field || strings.ReplaceAll(f[0], "_", "") == field {
					fmt.Println(f[1])
					return
				}
			}
			fmt.Fprintf(os.Stderr, "Unknown field: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "Available fields: %s\n", configFields)
			os.Exit(1)
		}

		for _, f := range fields {
			fmt.Printf("%s: %s\n", f[0], f[1])
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
