package cmd

import (
	"fmt"
	"strings"

	"fatture/internal/config"
	"fatture/internal/invoice"

	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the document type codes used for classification",
	Long: `Print the TDxx document type catalog the parser classifies against. The
catalog is read from TD_CATALOG_PATH (one "TDxx description" per line); the
built-in FatturaPA list is used when the file is missing or has no entries.`,
	Args: cobra.NoArgs,
	RunE: runCatalog,
}

func init() {
	rootCmd.AddCommand(catalogCmd)

	catalogCmd.Flags().String("file", "", "Catalog file (default: TD_CATALOG_PATH)")
}

func runCatalog(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		path = cfg.CatalogPath
	}

	catalog := invoice.LoadCatalog(path)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Source: %s (%d entries)\n", catalog.Source(), catalog.Len())
	fmt.Fprintln(out, strings.Repeat("-", 60))
	for _, e := range catalog.Entries() {
		fmt.Fprintln(out, e)
	}
	return nil
}
