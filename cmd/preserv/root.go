package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/preserv/pkg/preserv/config"
	"github.com/jamesainslie/preserv/pkg/preserv/logging"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "preserv",
		Short: "Fixity checking for digital archives",
		Long: `Preserv generates checksum manifests for archive trees and verifies
them later, detecting modified, missing, and new files.

Examples:
  preserv generate ~/archive       # Build a manifest for the archive
  preserv verify ~/archive         # Check the archive against the manifest
  preserv verify --adopt-new ~/archive  # Also fold new files into the manifest
  preserv stats                    # Show manifest statistics
  preserv history                  # View past runs
  preserv watch ~/archive          # Re-verify on filesystem changes`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/preserv/config.yaml)")
	rootCmd.PersistentFlags().StringP("manifest", "m", "", "manifest file path")
	rootCmd.PersistentFlags().IntP("workers", "w", 0, "override hashing worker count (0=auto)")
	rootCmd.PersistentFlags().StringP("output", "o", "pretty", "output format (pretty, plain, json)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	// Bind flags to viper
	_ = viper.BindPFlag("manifest_path", rootCmd.PersistentFlags().Lookup("manifest"))
	_ = viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		// Add config paths in order of precedence
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			viper.AddConfigPath(filepath.Join(xdgConfigHome, "preserv"))
		}

		homeDir, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(homeDir, ".config", "preserv"))
		}
	}

	// Set environment variable prefix and enable auto env binding
	viper.SetEnvPrefix("PRESERV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Set defaults from config package
	viper.SetDefault("manifest_path", config.DefaultManifestPath())
	viper.SetDefault("workers", config.DefaultWorkers())
	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.path", config.DefaultHistoryDir())
	viper.SetDefault("history.retention_days", config.DefaultRetentionDays)

	// Read config file (ignore if not found)
	_ = viper.ReadInConfig()
}

// initLogging configures file logging from the loaded configuration.
// The console level follows the quiet/verbose flags.
func initLogging(cfg *config.Config) {
	logCfg := logging.DefaultConfig()

	if cfg.Logging.Level != "" {
		logCfg.Level = cfg.Logging.Level
	}
	if cfg.Logging.Path != "" {
		logCfg.Path = cfg.Logging.Path
	}
	logCfg.Components = cfg.Logging.Components

	switch {
	case getVerbose():
		logCfg.ConsoleLevel = "debug"
	case getQuiet():
		logCfg.ConsoleLevel = "error"
	}

	if err := logging.Init(logCfg); err != nil {
		printError("Failed to initialize logging: %v", err)
	}
}

// Execute runs the root command.
func Execute() error {
	defer logging.Close()
	return rootCmd.Execute()
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
