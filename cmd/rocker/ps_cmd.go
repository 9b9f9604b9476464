package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/cuemby/rocker/pkg/runtime"
	"github.com/cuemby/rocker/pkg/store"
	"github.com/spf13/cobra"
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List running containers",
	Args:  cobra.NoArgs,
	RunE:  runPs,
}

func runPs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer s.Close()

	rt := runtime.New(cfg.DataDir, s, nil)
	containers, err := rt.List()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "CONTAINER ID\tIMAGE\tCOMMAND")
	for _, c := range containers {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.ImageName, c.Command)
	}
	return nil
}
