package main

import (
	"log"

	"github.com/spf13/cobra"

	migratetool "github.com/storefrontlab/storefront-api/internal/tools/migrate"
	seedtool "github.com/storefrontlab/storefront-api/internal/tools/seed"
)

func main() {
	root := &cobra.Command{
		Use:   "storefrontctl",
		Short: "Operational tooling for the storefront API",
	}
	root.AddCommand(migratetool.NewRootCommand(), seedtool.NewRootCommand())
	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}
