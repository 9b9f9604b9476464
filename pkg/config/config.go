// Package config resolves rocker's runtime configuration: data directory,
// bridge/subnet defaults and logging options. Precedence, highest first,
// is CLI flag > ROCKER_* environment variable > optional YAML file >
// built-in default.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every knob rocker's commands need at startup.
type Config struct {
	// DataDir is the root rocker uses for images, container rootfs
	// directories and the bookkeeping database.
	DataDir string `yaml:"data_dir"`

	// BridgeName names the host bridge. It is loaded and layered like the
	// other fields, but the network package does not read it: containers
	// always attach to network.BridgeName ("rocker0").
	BridgeName string `yaml:"bridge_name"`

	// BridgeCIDR is the bridge's address and subnet. It is loaded and
	// layered like the other fields, but the network package does not read
	// it: the bridge and container addresses always come from
	// network.BridgeCIDR ("172.28.0.1/16").
	BridgeCIDR string `yaml:"bridge_cidr"`

	LogLevel    string `yaml:"log_level"`
	LogJSON     bool   `yaml:"log_json"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns rocker's built-in configuration defaults.
func Default() Config {
	return Config{
		DataDir:     "/var/lib/rocker",
		BridgeName:  "rocker0",
		BridgeCIDR:  "172.28.0.1/16",
		LogLevel:    "info",
		LogJSON:     false,
		MetricsAddr: "",
	}
}

// Load builds a Config starting from Default, layering in an optional YAML
// file at path (ignored if empty or missing) and then ROCKER_* environment
// overrides. CLI flags are applied by the caller afterward since cobra
// flags are only available once Execute has parsed os.Args.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if uerr := yaml.Unmarshal(data, &cfg); uerr != nil {
				return Config{}, uerr
			}
		} else if !os.IsNotExist(err) {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ROCKER_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("ROCKER_BRIDGE_NAME"); v != "" {
		cfg.BridgeName = v
	}
	if v := os.Getenv("ROCKER_BRIDGE_CIDR"); v != "" {
		cfg.BridgeCIDR = v
	}
	if v := os.Getenv("ROCKER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ROCKER_LOG_JSON"); v != "" {
		cfg.LogJSON = v == "1" || v == "true"
	}
	if v := os.Getenv("ROCKER_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
}
