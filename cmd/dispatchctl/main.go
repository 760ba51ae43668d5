// Command dispatchctl inspects routing and upload admission offline, using
// the same catalog the server loads.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/chat-dispatch/internal/catalog"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var catalogPath string
	root := &cobra.Command{
		Use:           "dispatchctl",
		Short:         "Inspect chat dispatch routing and upload admission",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&catalogPath, "catalog", os.Getenv("CATALOG_FILE"), "catalog YAML file (built-in catalog when empty)")

	load := func() (*catalog.Catalog, error) { return catalog.Load(catalogPath) }
	root.AddCommand(
		newClassifyCmd(load),
		newCatalogCmd(load),
		newAdmitCmd(load),
		newHashPasswordCmd(),
	)
	return root
}
