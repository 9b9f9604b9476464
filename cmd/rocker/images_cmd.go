package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/cuemby/rocker/pkg/image"
	"github.com/cuemby/rocker/pkg/store"
	"github.com/spf13/cobra"
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "List cached images",
	Args:  cobra.NoArgs,
	RunE:  runImages,
}

func runImages(cmd *cobra.Command, args []string) error {
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
	list, err := images.List()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "REPOSITORY\tTAG\tIMAGE ID")
	for _, img := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\n", img.Name, img.Tag, img.Hash)
	}
	return nil
}
