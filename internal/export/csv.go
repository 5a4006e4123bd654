package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVWriter writes rows as semicolon separated values, the separator
// spreadsheet programs expect with Italian locale settings.
type CSVWriter struct {
	w           *csv.Writer
	closer      io.Closer
	wroteHeader bool
}

// NewCSVWriter writes to w. If w is an io.Closer it is closed by Close.
func NewCSVWriter(w io.Writer) *CSVWriter {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	c := &CSVWriter{w: cw}
	if closer, ok := w.(io.Closer); ok {
		c.closer = closer
	}
	return c
}

// Write emits the header row before the first data row.
func (c *CSVWriter) Write(row Row) error {
	const op = "CSVWriter.Write"

	if !c.wroteHeader {
		if err := c.w.Write(Columns); err != nil {
			return fmt.Errorf("%s: header: %w", op, err)
		}
		c.wroteHeader = true
	}
	if err := c.w.Write(row.Strings()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close flushes buffered rows. A writer that received no rows still writes
// the header.
func (c *CSVWriter) Close() error {
	const op = "CSVWriter.Close"

	if !c.wroteHeader {
		if err := c.w.Write(Columns); err != nil {
			return fmt.Errorf("%s: header: %w", op, err)
		}
		c.wroteHeader = true
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
