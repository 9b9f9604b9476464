package main

import (
	"github.com/cuemby/rocker/pkg/registry"
	"github.com/spf13/cobra"
)

// newRegistryClient builds the registry.Client used by "run" from the
// --username/--password flags, falling back to anonymous pulls.
func newRegistryClient(cmd *cobra.Command) (registry.Client, error) {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	return registry.NewDockerClient(username, password), nil
}
