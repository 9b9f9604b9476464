package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/rocker/pkg/runtime"
	"github.com/cuemby/rocker/pkg/store"
	"github.com/cuemby/rocker/pkg/types"
	"github.com/spf13/cobra"
)

var execCmd = &cobra.Command{
	Use:   "exec <container-id> <command> [args...]",
	Short: "Run a command inside a running container",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runExec,
}

func runExec(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	id := types.ContainerID(args[0])
	command := args[1]
	cmdArgs := args[2:]

	s, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer s.Close()

	rt := runtime.New(cfg.DataDir, s, nil)

	err = rt.Exec(context.Background(), id, command, cmdArgs)
	if errors.Is(err, runtime.ErrContainerNotRunning) {
		fmt.Printf("No such container: %s\n", id)
		return nil
	}
	return err
}
