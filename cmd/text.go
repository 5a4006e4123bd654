package cmd

import (
	"fmt"
	"io"
	"os"

	"fatture/internal/config"
	"fatture/internal/invoice"
	"fatture/internal/logger"
	"fatture/pkg/models"

	"github.com/spf13/cobra"
)

var textCmd = &cobra.Command{
	Use:   "text [text-file|-]",
	Short: "Parse invoice text that was already extracted",
	Long: `Parse plain text of an Italian e-invoice, as produced by "fatture ocr" or any
other PDF-to-text tool, and print the record as JSON. Use "-" to read from
standard input.`,
	Example: `  fatture ocr fattura.pdf --backend native | fatture text -
  fatture text fattura.txt --debug-header`,
	Args: cobra.ExactArgs(1),
	RunE: runText,
}

// TextOutput is the JSON output of the text command
type TextOutput struct {
	Record      *models.InvoiceRecord `json:"record"`
	Diagnostics *invoice.Diagnostics  `json:"diagnostics,omitempty"`
}

func init() {
	rootCmd.AddCommand(textCmd)

	textCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	textCmd.Flags().Bool("debug-header", false, "Include header and row diagnostics in the output")
}

func runText(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("text")

	outputPath, _ := cmd.Flags().GetString("output")
	debugHeader, _ := cmd.Flags().GetBool("debug-header")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var data []byte
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		log.Error().Err(err).Str("file", args[0]).Msg("Failed to read text")
		return fmt.Errorf("failed to read text: %w", err)
	}

	parser := invoice.NewParser(invoice.LoadCatalog(cfg.CatalogPath))
	output := TextOutput{}
	if debugHeader {
		output.Record, output.Diagnostics = parser.ParseWithDiagnostics(string(data))
	} else {
		output.Record = parser.Parse(string(data))
	}

	log.Info().
		Int("bytes", len(data)).
		Bool("document_keys", output.Record.HasDocumentKeys()).
		Msg("Text parsed")

	return writeJSONOutput(output, outputPath, log)
}
