package main

import (
	"fmt"
	"os"

	"github.com/cuemby/rocker/pkg/config"
	"github.com/cuemby/rocker/pkg/log"
	"github.com/cuemby/rocker/pkg/reexec"
	_ "github.com/cuemby/rocker/pkg/runtime" // registers the rocker-init and rocker-exec-* entry points
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

var (
	// Version is set via -ldflags at build time.
	Version = "dev"
)

func main() {
	if reexec.Init() {
		return
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "rocker",
	Short:   "rocker - a minimal Linux container runtime",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if unix.Geteuid() != 0 {
			return fmt.Errorf("You need root privileges to run this program.")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("data-dir", "", "Override the data directory (defaults to config/env/"+"/var/lib/rocker)")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(psCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(imagesCmd)
	rootCmd.AddCommand(rmiCmd)
}

func initLogging() {
	flags := rootCmd.PersistentFlags()
	configPath, _ := flags.GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		cfg = config.Default()
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.LogJSON, _ = flags.GetBool("log-json")
	}
	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}
