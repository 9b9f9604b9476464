package main

import (
	"fmt"

	"github.com/cuemby/rocker/pkg/image"
	"github.com/cuemby/rocker/pkg/rockerr"
	"github.com/cuemby/rocker/pkg/store"
	"github.com/spf13/cobra"
)

var rmiCmd = &cobra.Command{
	Use:   "rmi <name[:tag]>",
	Short: "Remove a cached image",
	Args:  cobra.ExactArgs(1),
	RunE:  runRmi,
}

func runRmi(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer s.Close()

	images := image.NewManager(cfg.DataDir, nil, s)
	hash, err := images.Resolve(args[0])
	if err != nil {
		return err
	}

	containers, err := s.ListContainers()
	if err != nil {
		return err
	}
	for _, c := range containers {
		if c.ImageHash == hash {
			return rockerr.New("rmi", rockerr.KindImageInUse, fmt.Errorf("container %s is using image %s", c.ID, hash))
		}
	}

	if err := images.Remove(hash); err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
