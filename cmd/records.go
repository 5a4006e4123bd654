package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fatture/internal/config"
	"fatture/internal/logger"
	"fatture/internal/store"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var recordsCmd = &cobra.Command{
	Use:   "records [id]",
	Short: "List documents archived by batch --db",
	Long: `Show documents stored in the SQLite archive. Without arguments the newest
entries are listed as a table; with an ID the full record is printed as JSON.`,
	Example: `  fatture records --limit 20
  fatture records --run 5f0c... --json
  fatture records 3b1e7c2a-8d7f-4d7e-9a51-0c6a3f1d2e44`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRecords,
}

func init() {
	rootCmd.AddCommand(recordsCmd)

	recordsCmd.Flags().String("db", "", "SQLite database path (default: DATABASE_PATH)")
	recordsCmd.Flags().Int("limit", 50, "Maximum number of entries")
	recordsCmd.Flags().String("run", "", "Only entries of this batch run ID")
	recordsCmd.Flags().String("seller", "", "Only entries with this seller VAT ID")
	recordsCmd.Flags().String("number", "", "Only entries with this document number")
	recordsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runRecords(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("records")

	dbPath, _ := cmd.Flags().GetString("db")
	limit, _ := cmd.Flags().GetInt("limit")
	runID, _ := cmd.Flags().GetString("run")
	seller, _ := cmd.Flags().GetString("seller")
	number, _ := cmd.Flags().GetString("number")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dbPath = cfg.DatabasePath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	archive, err := store.Open(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	if len(args) == 1 {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid record ID %q: %w", args[0], err)
		}
		entry, err := archive.Get(ctx, id)
		if err != nil {
			return err
		}
		return writeJSONOutput(entry, "", log)
	}

	entries, err := archive.List(ctx, store.ListOptions{
		Limit:          limit,
		RunID:          runID,
		SellerVATID:    seller,
		DocumentNumber: number,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSONOutput(entries, "", log)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-36s  %-20s  %-12s  %-16s  %12s  %s\n", "ID", "CREATED", "DATE", "NUMBER", "TOTAL", "FILE")
	fmt.Fprintln(out, strings.Repeat("-", 120))
	for _, e := range entries {
		var date, num, total string
		if d := e.Record.Document; d != nil {
			date, num = deref(d.IssueDate), deref(d.Number)
		}
		if t := e.Record.Totals.TotalAmount; t != nil {
			total = fmt.Sprintf("%.2f", *t)
		}
		fmt.Fprintf(out, "%-36s  %-20s  %-12s  %-16s  %12s  %s\n",
			e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04:05"), date, num, total, e.File)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
