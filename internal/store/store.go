// Package store archives parsed invoices in a SQLite database.
//
// Each parsed document is one row keyed by a random UUID. The full record is
// kept as JSON next to a few indexed columns (document number, issue date,
// seller VAT ID, total) used for lookups.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fatture/internal/logger"
	"fatture/pkg/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for an unknown ID.
var ErrNotFound = errors.New("invoice not found in archive")

// createdAtLayout is fixed width so created_at sorts chronologically as text.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS invoices (
	id              TEXT PRIMARY KEY,
	run_id          TEXT NOT NULL DEFAULT '',
	file            TEXT NOT NULL,
	backend         TEXT NOT NULL DEFAULT '',
	ocr_used        INTEGER NOT NULL DEFAULT 0,
	document_number TEXT,
	issue_date      TEXT,
	seller_vat_id   TEXT,
	total_amount    REAL,
	record          TEXT NOT NULL,
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_invoices_number ON invoices(document_number);
CREATE INDEX IF NOT EXISTS idx_invoices_seller ON invoices(seller_vat_id);
CREATE INDEX IF NOT EXISTS idx_invoices_run ON invoices(run_id);
`

// Entry is one archived document.
type Entry struct {
	ID        uuid.UUID             `json:"id"`
	RunID     string                `json:"run_id,omitempty"`
	File      string                `json:"file"`
	Backend   string                `json:"backend"`
	OCRUsed   bool                  `json:"ocr_used"`
	Record    *models.InvoiceRecord `json:"record"`
	CreatedAt time.Time             `json:"created_at"`
}

// ListOptions filters List. The zero value lists the 50 newest entries.
type ListOptions struct {
	Limit          int
	RunID          string
	SellerVATID    string
	DocumentNumber string
}

// Store is safe for concurrent use.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	const op = "store.Open"

	log := logger.WithFile("store", path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// SQLite allows one writer; batch workers serialize through the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: apply schema: %w", op, err)
	}

	log.Debug().Msg("Opened invoice archive")
	return &Store{db: db, log: log}, nil
}

// Save inserts entry, assigning its ID and creation time when unset.
func (s *Store) Save(ctx context.Context, entry *Entry) error {
	const op = "store.Save"

	if entry.Record == nil {
		entry.Record = models.NewInvoiceRecord()
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(entry.Record)
	if err != nil {
		return fmt.Errorf("%s: encode record: %w", op, err)
	}

	var number, date, sellerVAT *string
	if d := entry.Record.Document; d != nil {
		number, date = d.Number, d.IssueDate
	}
	if entry.Record.Seller != nil {
		sellerVAT = entry.Record.Seller.VATID
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invoices (id, run_id, file, backend, ocr_used, document_number,
			issue_date, seller_vat_id, total_amount, record, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(), entry.RunID, entry.File, entry.Backend, entry.OCRUsed,
		number, date, sellerVAT, entry.Record.Totals.TotalAmount,
		string(data), entry.CreatedAt.UTC().Format(createdAtLayout),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Debug().
		Str("id", entry.ID.String()).
		Str("file", entry.File).
		Msg("Archived invoice")
	return nil
}

// Get returns the entry with id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	const op = "store.Get"

	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id.String())
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %s: %w", op, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

// List returns entries newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Entry, error) {
	const op = "store.List"

	if opts.Limit <= 0 {
		opts.Limit = 50
	}

	query := selectColumns + ` WHERE 1 = 1`
	var args []any
	if opts.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, opts.RunID)
	}
	if opts.SellerVATID != "" {
		query += ` AND seller_vat_id = ?`
		args = append(args, opts.SellerVATID)
	}
	if opts.DocumentNumber != "" {
		query += ` AND document_number = ?`
		args = append(args, opts.DocumentNumber)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, opts.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entries, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const selectColumns = `SELECT id, run_id, file, backend, ocr_used, record, created_at FROM invoices`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*Entry, error) {
	var (
		e         Entry
		id        string
		record    string
		createdAt string
	)
	if err := sc.Scan(&id, &e.RunID, &e.File, &e.Backend, &e.OCRUsed, &record, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if e.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", id, err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	e.Record = models.NewInvoiceRecord()
	if err := json.Unmarshal([]byte(record), e.Record); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	return &e, nil
}
