package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"fatture/internal/config"
	"fatture/internal/export"
	"fatture/internal/invoice"
	"fatture/internal/logger"
	"fatture/internal/sheets"
	"fatture/internal/store"
	"fatture/pkg/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch [folder-path]",
	Short: "Parse all PDFs in a folder and export the records",
	Long: `Parse every PDF invoice below a folder in parallel and write one row per
document to the selected sinks: CSV, an Excel workbook, a Google Sheet and
the SQLite archive. Documents that fail are exported too, with the error
in the last column.

Every run gets a random run ID, stored with the archived records.

Optional environment variables:
  BATCH_WORKERS - Number of parallel workers (default: 4)
  EXCEL_PATH, EXCEL_SHEET - Default Excel workbook and worksheet
  GOOGLE_SHEET_URL, GOOGLE_SHEET_WORKSHEET - Default Google Sheet
  DATABASE_PATH - SQLite archive used with --db`,
	Example: `  # Parse a folder and write a CSV
  fatture batch ./fatture --csv risultati.csv

  # Append to an Excel workbook and archive the records, without OCR
  fatture batch ./fatture --excel fatture.xlsx --db --ocr none

  # Write to a Google Sheet with 8 workers
  fatture batch ./fatture --sheet https://docs.google.com/spreadsheets/d/... --workers 8`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

// Batch result statuses.
const (
	statusSuccess = "success"
	statusWarning = "warning"
	statusError   = "error"
)

// BatchResult represents the result of processing a single PDF
type BatchResult struct {
	Filename string
	Path     string
	Result   *invoice.ExtractResult
	Error    error
	Status   string
	Index    int
}

// WorkerJob represents a PDF processing job
type WorkerJob struct {
	FilePath string
	Index    int
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().String("csv", "", "Write results to this CSV file")
	batchCmd.Flags().String("excel", "", "Append results to this Excel workbook (default: EXCEL_PATH)")
	batchCmd.Flags().String("excel-sheet", "", "Excel worksheet (default: EXCEL_SHEET)")
	batchCmd.Flags().String("sheet", "", "Append results to this Google Sheet URL (default: GOOGLE_SHEET_URL)")
	batchCmd.Flags().String("worksheet", "", "Google Sheet worksheet (default: GOOGLE_SHEET_WORKSHEET)")
	batchCmd.Flags().String("db", "", "Archive records in SQLite: --db uses DATABASE_PATH, --db=path another file")
	batchCmd.Flags().Lookup("db").NoOptDefVal = "-"
	batchCmd.Flags().Int("workers", 0, "Number of parallel workers (default: BATCH_WORKERS)")
	batchCmd.Flags().String("ocr", "", "OCR backend: vision, documentai or none (default: OCR_BACKEND)")
	batchCmd.Flags().Int("timeout", 30, "Overall timeout in minutes")
	batchCmd.Flags().Bool("verbose", false, "Show detailed processing information")
}

func runBatch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("batch")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	folderPath := args[0]
	csvPath, _ := cmd.Flags().GetString("csv")
	excelPath, _ := cmd.Flags().GetString("excel")
	excelSheet, _ := cmd.Flags().GetString("excel-sheet")
	sheetURL, _ := cmd.Flags().GetString("sheet")
	worksheet, _ := cmd.Flags().GetString("worksheet")
	dbPath, _ := cmd.Flags().GetString("db")
	numWorkers, _ := cmd.Flags().GetInt("workers")
	ocrBackend, _ := cmd.Flags().GetString("ocr")
	timeoutMins, _ := cmd.Flags().GetInt("timeout")
	verbose, _ := cmd.Flags().GetBool("verbose")

	excelPath = firstNonEmpty(excelPath, cfg.ExcelPath)
	excelSheet = firstNonEmpty(excelSheet, cfg.ExcelSheet)
	sheetURL = firstNonEmpty(sheetURL, cfg.GoogleSheetURL)
	worksheet = firstNonEmpty(worksheet, cfg.GoogleSheetWorksheet)
	ocrBackend = firstNonEmpty(ocrBackend, cfg.OCRBackend)
	if dbPath == "-" {
		dbPath = cfg.DatabasePath
	}
	if numWorkers <= 0 {
		numWorkers = cfg.BatchWorkers
	}

	folderInfo, err := os.Stat(folderPath)
	if err != nil {
		return fmt.Errorf("folder not found: %s", folderPath)
	}
	if !folderInfo.IsDir() {
		return fmt.Errorf("path is not a directory: %s", folderPath)
	}

	runID := uuid.New().String()
	log = logger.WithFields(map[string]interface{}{
		"component": "batch",
		"run_id":    runID,
	})

	log.Info().
		Str("folder", folderPath).
		Str("ocr", ocrBackend).
		Int("workers", numWorkers).
		Msg("Starting batch processing")

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("                         ELABORAZIONE FATTURE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Cartella: %s\n", folderPath)
	fmt.Printf("Run: %s\n", runID)
	fmt.Printf("OCR: %s\n", ocrBackend)
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutMins)*time.Minute)
	defer cancel()

	pdfFiles, err := findPDFFiles(folderPath)
	if err != nil {
		return fmt.Errorf("failed to find PDF files: %w", err)
	}
	if len(pdfFiles) == 0 {
		fmt.Println("Nessun file PDF trovato nella cartella.")
		return nil
	}

	ocrService, err := createOCRService(ctx, ocrBackend, cfg, log)
	if err != nil {
		return err
	}
	if ocrService != nil {
		defer ocrService.Close()
	}

	extractor := invoice.NewExtractor(invoice.NewParser(invoice.LoadCatalog(cfg.CatalogPath)), ocrService)

	fmt.Printf("Elaborazione di %d PDF con %d worker paralleli...\n\n", len(pdfFiles), numWorkers)

	results := processPDFsInParallel(ctx, pdfFiles, extractor, numWorkers, log, verbose)
	fmt.Println()

	successCount, warningCount, errorCount := countStatuses(results)

	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("                 RISULTATO")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Completati: %d\n", successCount)
	if warningCount > 0 {
		fmt.Printf("Con avvisi: %d\n", warningCount)
	}
	if errorCount > 0 {
		fmt.Printf("Errori: %d\n", errorCount)
	}
	fmt.Println()

	if err := exportResults(ctx, results, exportTargets{
		runID:      runID,
		csvPath:    csvPath,
		excelPath:  excelPath,
		excelSheet: excelSheet,
		sheetURL:   sheetURL,
		worksheet:  worksheet,
		dbPath:     dbPath,
	}, log); err != nil {
		return err
	}

	fmt.Println(strings.Repeat("=", 80))

	log.Info().
		Int("total", len(pdfFiles)).
		Int("success", successCount).
		Int("warnings", warningCount).
		Int("errors", errorCount).
		Msg("Batch processing completed")

	return nil
}

type exportTargets struct {
	runID      string
	csvPath    string
	excelPath  string
	excelSheet string
	sheetURL   string
	worksheet  string
	dbPath     string
}

// exportResults writes every result to the configured sinks. A failing sink
// does not stop the others.
func exportResults(ctx context.Context, results []BatchResult, t exportTargets, log zerolog.Logger) error {
	var sinks []export.Sink
	var names []string
	var errs []error

	if t.csvPath != "" {
		f, err := os.Create(t.csvPath)
		if err != nil {
			errs = append(errs, fmt.Errorf("csv: %w", err))
		} else {
			sinks = append(sinks, export.NewCSVWriter(f))
			names = append(names, "CSV: "+t.csvPath)
		}
	}
	if t.excelPath != "" {
		s, err := export.OpenExcelSink(t.excelPath, t.excelSheet)
		if err != nil {
			errs = append(errs, fmt.Errorf("excel: %w", err))
		} else {
			sinks = append(sinks, s)
			names = append(names, fmt.Sprintf("Excel: %s (%s)", t.excelPath, t.excelSheet))
		}
	}
	if t.sheetURL != "" {
		svc, err := sheets.NewSheetsService(ctx, t.sheetURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("google sheets: %w", err))
		} else {
			sinks = append(sinks, svc.NewSink(ctx, t.worksheet))
			names = append(names, fmt.Sprintf("Google Sheet: %s (%s)", t.sheetURL, t.worksheet))
		}
	}

	for _, r := range results {
		row := export.Flatten(recordOf(r), metaOf(r))
		for i, s := range sinks {
			if err := s.Write(row); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", names[i], err))
			}
		}
	}
	for i, s := range sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", names[i], err))
			continue
		}
		fmt.Printf("Scritto %s (%d righe)\n", names[i], len(results))
	}

	if t.dbPath != "" {
		saved, err := archiveResults(ctx, results, t.runID, t.dbPath, log)
		if err != nil {
			errs = append(errs, fmt.Errorf("archive: %w", err))
		}
		if saved > 0 {
			fmt.Printf("Archiviati in %s: %d documenti\n", t.dbPath, saved)
		}
	}

	if err := errors.Join(errs...); err != nil {
		log.Error().Err(err).Msg("Export failed")
		return fmt.Errorf("export failed: %w", err)
	}
	return nil
}

// archiveResults saves the successfully extracted documents. A document
// that cannot be saved is logged and skipped.
func archiveResults(ctx context.Context, results []BatchResult, runID, dbPath string, log zerolog.Logger) (int, error) {
	archive, err := store.Open(ctx, dbPath)
	if err != nil {
		return 0, err
	}
	defer archive.Close()

	saved := 0
	var errs []error
	for _, r := range results {
		if r.Result == nil {
			continue
		}
		entry := &store.Entry{
			RunID:   runID,
			File:    r.Path,
			Backend: r.Result.Backend,
			OCRUsed: r.Result.OCRUsed,
			Record:  r.Result.Record,
		}
		if err := archive.Save(ctx, entry); err != nil {
			log.Error().Err(err).Str("file", r.Filename).Msg("Failed to archive invoice")
			errs = append(errs, fmt.Errorf("%s: %w", r.Filename, err))
			continue
		}
		saved++
	}
	return saved, errors.Join(errs...)
}

func recordOf(r BatchResult) *models.InvoiceRecord {
	if r.Result == nil {
		return nil
	}
	return r.Result.Record
}

func metaOf(r BatchResult) export.Meta {
	meta := export.Meta{File: r.Filename}
	if r.Result != nil {
		meta.Backend = r.Result.Backend
		meta.OCRUsed = r.Result.OCRUsed
	}
	if r.Error != nil {
		meta.Error = r.Error.Error()
	}
	return meta
}

// findPDFFiles finds all PDF files in the specified folder, sorted by path
func findPDFFiles(folderPath string) ([]string, error) {
	var pdfFiles []string

	err := filepath.Walk(folderPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(strings.ToLower(info.Name()), ".pdf") {
			pdfFiles = append(pdfFiles, path)
		}
		return nil
	})

	sort.Strings(pdfFiles)
	return pdfFiles, err
}

// processSinglePDF processes a single PDF file and returns the result
func processSinglePDF(ctx context.Context, pdfPath string, extractor invoice.InvoiceExtractor, log zerolog.Logger, verbose bool) BatchResult {
	result := BatchResult{
		Path:   pdfPath,
		Status: statusError,
	}

	extracted, err := extractor.ExtractInvoice(ctx, pdfPath)
	if err != nil {
		result.Error = err
		return result
	}

	result.Result = extracted
	result.Status = statusSuccess
	if !extracted.Record.HasDocumentKeys() ||
		invoice.NewTotalsValidation().Validate(extracted.Record).HasDiscrepancy {
		result.Status = statusWarning
	}

	if verbose {
		event := log.Info().
			Str("file", pdfPath).
			Str("backend", extracted.Backend).
			Bool("ocr_used", extracted.OCRUsed)
		if d := extracted.Record.Document; d != nil {
			event = event.
				Str("number", deref(d.Number)).
				Str("issue_date", deref(d.IssueDate))
		}
		event.Msg("PDF processed")
	}

	return result
}

// processPDFsInParallel processes PDFs using a worker pool pattern
func processPDFsInParallel(ctx context.Context, pdfFiles []string, extractor invoice.InvoiceExtractor, numWorkers int, log zerolog.Logger, verbose bool) []BatchResult {
	jobs := make(chan WorkerJob, len(pdfFiles))
	results := make([]BatchResult, len(pdfFiles))

	var processedCount int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for job := range jobs {
				log.Debug().
					Int("worker", workerID).
					Str("file", job.FilePath).
					Int("index", job.Index+1).
					Msg("Worker processing PDF")

				result := processSinglePDF(ctx, job.FilePath, extractor, log, verbose)
				result.Index = job.Index
				result.Filename = filepath.Base(job.FilePath)

				results[job.Index] = result

				mu.Lock()
				processedCount++
				fmt.Printf("[%d/%d] %s - %s%s\n", processedCount, len(pdfFiles), result.Filename,
					getStatusEmoji(result.Status), progressDetail(result))
				mu.Unlock()
			}
		}(w)
	}

	for i, pdfFile := range pdfFiles {
		jobs <- WorkerJob{FilePath: pdfFile, Index: i}
	}
	close(jobs)

	wg.Wait()

	return results
}

func progressDetail(r BatchResult) string {
	if r.Error != nil {
		return fmt.Sprintf(" (%s)", r.Error.Error())
	}
	if r.Result == nil || r.Result.Record.Document == nil {
		return ""
	}
	d := r.Result.Record.Document
	detail := " (" + firstNonEmpty(deref(d.Number), "?") + " del " + firstNonEmpty(deref(d.IssueDate), "?")
	if t := r.Result.Record.Totals.TotalAmount; t != nil {
		detail += fmt.Sprintf(", €%.2f", *t)
	}
	return detail + ")"
}

func countStatuses(results []BatchResult) (success, warning, failed int) {
	for _, r := range results {
		switch r.Status {
		case statusSuccess:
			success++
		case statusWarning:
			warning++
		case statusError:
			failed++
		}
	}
	return success, warning, failed
}

// getStatusEmoji returns an emoji for the processing status
func getStatusEmoji(status string) string {
	switch status {
	case statusSuccess:
		return "✅"
	case statusWarning:
		return "⚠️"
	case statusError:
		return "❌"
	default:
		return "❓"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
