package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cuemby/rocker/pkg/image"
	"github.com/cuemby/rocker/pkg/log"
	"github.com/cuemby/rocker/pkg/metrics"
	"github.com/cuemby/rocker/pkg/runtime"
	"github.com/cuemby/rocker/pkg/store"
	"github.com/cuemby/rocker/pkg/types"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <image> <command> [args...]",
	Short: "Run a command in a new container",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringP("mem", "m", "", "Memory limit (e.g. 512M, 2GB)")
	runCmd.Flags().Float64("cpus", 0, "CPU quota in cores (e.g. 0.5)")
	runCmd.Flags().Int("pids-limit", 0, "Maximum number of PIDs")
	runCmd.Flags().StringP("username", "u", "", "Registry username")
	runCmd.Flags().StringP("password", "p", "", "Registry password")
	runCmd.Flags().String("metrics-addr", "", "Expose Prometheus metrics and a health endpoint on this address for the container's lifetime (e.g. :9090)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	imageName := args[0]
	command := args[1]
	cmdArgs := args[2:]

	ref, err := image.ParseRef(imageName)
	if err != nil {
		return err
	}

	mem, _ := cmd.Flags().GetString("mem")
	cpus, _ := cmd.Flags().GetFloat64("cpus")
	pidsLimit, _ := cmd.Flags().GetInt("pids-limit")

	limits := types.ResourceLimits{Memory: mem}
	if cpus > 0 {
		limits.CPUs = cpus
		limits.HasCPUs = true
	}
	if pidsLimit > 0 {
		limits.PidsLimit = pidsLimit
		limits.HasPids = true
	}

	s, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer s.Close()

	client, err := newRegistryClient(cmd)
	if err != nil {
		return err
	}

	images := image.NewManager(cfg.DataDir, client, s)
	rt := runtime.New(cfg.DataDir, s, images)

	if metricsAddr, _ := cmd.Flags().GetString("metrics-addr"); metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if cfg.MetricsAddr != "" {
		stopDebugServer := startDebugServer(cfg.MetricsAddr, s)
		defer stopDebugServer()
	}

	fmt.Printf("Pulling %s...\n", ref.String())

	return rt.Run(context.Background(), runtime.RunConfig{
		Ref:     ref,
		Command: command,
		Args:    cmdArgs,
		Limits:  limits,
	})
}

// startDebugServer exposes Prometheus metrics and a health endpoint for
// the lifetime of a "run" invocation, matching the teacher's debug-port
// convention. It is opt-in: only started when a metrics address is
// configured.
func startDebugServer(addr string, s *store.Store) func() {
	metrics.RegisterComponent("store", true, "open")

	collector := metrics.NewCollector(s)
	collector.Start()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", metrics.HealthHandler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithComponent("debug-server").Error().Err(err).Msg("debug server stopped")
		}
	}()

	return func() {
		collector.Stop()
		_ = srv.Close()
	}
}
