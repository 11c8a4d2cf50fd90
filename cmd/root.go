/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/longkey1/lome/internal/lome/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lome",
	Short: "Chat with AI models from many providers",
	Long: `lome is a chat client and server for AI models from many providers,
routed through OpenRouter.

Conversations are stored by a backend that runs either in-process (the
default) or as a separate server ('lome serve') that clients reach through
server_url. You can configure the tool using a TOML configuration file.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/lome/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (forces debug logging)")
}

// userConfigDir returns $HOME/.config/lome
func userConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "lome"), nil
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Set environment variable prefix and automatic env
	viper.SetEnvPrefix("LOME")
	viper.AutomaticEnv()

	configDir, err := userConfigDir()
	cobra.CheckErr(err)
	dataDir, err := config.DefaultDataDir()
	cobra.CheckErr(err)

	config.SetDefaults(viper.GetViper(), dataDir)

	// Bind environment variables
	viper.BindEnv("openrouter_base_url", "LOME_OPENROUTER_BASE_URL")
	viper.BindEnv("openrouter_token", "LOME_OPENROUTER_TOKEN")
	viper.BindEnv("server_url", "LOME_SERVER_URL")
	viper.BindEnv("session_token", "LOME_SESSION_TOKEN")
	viper.BindEnv("data_dir", "LOME_DATA_DIR")
	viper.BindEnv("store_driver", "LOME_STORE_DRIVER")

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	} else {
		// Load system-wide config first (lower priority)
		systemConfigPaths := []string{
			"/etc/lome",
			"/usr/local/etc/lome",
		}

		systemConfigLoaded := false
		for _, path := range systemConfigPaths {
			viper.AddConfigPath(path)
		}
		viper.SetConfigType("toml")
		viper.SetConfigName("config")

		// Try to read system-wide config
		if err := viper.ReadInConfig(); err == nil {
			systemConfigLoaded = true
			if verbose {
				fmt.Fprintln(os.Stderr, "Loaded system-wide config:", viper.ConfigFileUsed())
			}
		}

		// Load user config (higher priority) - merge with system config
		viper.AddConfigPath(configDir)
		if systemConfigLoaded {
			if err := viper.MergeInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					fmt.Fprintf(os.Stderr, "Error merging user config file: %v\n", err)
				}
			} else if verbose {
				fmt.Fprintln(os.Stderr, "Merged user config:", viper.ConfigFileUsed())
			}
		} else {
			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
				}
			}
		}
	}

	if verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		fmt.Fprintln(os.Stderr, "Environment variables:")
		fmt.Fprintln(os.Stderr, "  LOME_MODEL:", viper.GetString("model"))
		fmt.Fprintln(os.Stderr, "  LOME_OPENROUTER_BASE_URL:", viper.GetString("openrouter_base_url"))
		fmt.Fprintln(os.Stderr, "  LOME_SERVER_URL:", viper.GetString("server_url"))
		fmt.Fprintln(os.Stderr, "  LOME_DATA_DIR:", viper.GetString("data_dir"))
		fmt.Fprintln(os.Stderr, "  LOME_STORE_DRIVER:", viper.GetString("store_driver"))
	}
}

// loadConfig loads the configuration and the logger it describes
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := cfg.NewLogger(os.Stderr, verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}
