package cmd

import (
	"fmt"
	"os"

	"fatture/internal/logger"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "fatture",
	Short: "fatture - extract structured data from Italian e-invoice PDFs",
	Long: `fatture reads the text of Italian electronic invoices (the human readable
PDF rendering of FatturaPA documents) and recovers seller, buyer, the
DOCUMENTO header row, line items, totals and payment terms.

Text comes from the PDF text layer, with a fallback backend for documents
whose layout confuses the first one, and OCR (Google Cloud Vision or
Document AI) when neither yields the document keys. Results can be printed
as JSON or appended to CSV, Excel, Google Sheets and a SQLite archive.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Debug().
			Str("version", version).
			Msg("fatture executed without subcommand")

		fmt.Println("fatture: Italian e-invoice extraction")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
