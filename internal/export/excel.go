package export

import (
	"errors"
	"fmt"
	"os"

	"fatture/internal/logger"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the worksheet rows are appended to when none is given.
const DefaultSheet = "Fatture"

// ExcelSink appends rows to a worksheet of an .xlsx workbook. The workbook is
// created when the file does not exist and saved by Close.
type ExcelSink struct {
	file    *excelize.File
	path    string
	sheet   string
	nextRow int
	written int
	log     zerolog.Logger
}

// OpenExcelSink opens or creates the workbook at path and positions after the
// last used row of sheet, writing the header row when the sheet is new.
func OpenExcelSink(path, sheet string) (*ExcelSink, error) {
	const op = "OpenExcelSink"

	if sheet == "" {
		sheet = DefaultSheet
	}
	log := logger.WithFile("excel", path)

	var f *excelize.File
	if _, err := os.Stat(path); err == nil {
		f, err = excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: open workbook: %w", op, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		f = excelize.NewFile()
	} else {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s := &ExcelSink{file: f, path: path, sheet: sheet, log: log}

	index, err := f.GetSheetIndex(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if index == -1 {
		if index, err = f.NewSheet(sheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: create sheet: %w", op, err)
		}
		// A new workbook carries an empty default sheet.
		if f.SheetCount > 1 && f.GetSheetName(0) == "Sheet1" {
			if rows, _ := f.GetRows("Sheet1"); len(rows) == 0 {
				_ = f.DeleteSheet("Sheet1")
				index, _ = f.GetSheetIndex(sheet)
			}
		}
		log.Debug().Str("sheet", sheet).Msg("Created worksheet")
	}
	f.SetActiveSheet(index)

	rows, err := f.GetRows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: read rows: %w", op, err)
	}
	s.nextRow = len(rows) + 1
	if len(rows) == 0 {
		if err := s.writeRow(toAny(Columns)); err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: header: %w", op, err)
		}
	}
	return s, nil
}

// Write appends row. Amounts are stored as numbers, absent values as empty cells.
func (s *ExcelSink) Write(row Row) error {
	if err := s.writeRow(row); err != nil {
		return fmt.Errorf("ExcelSink.Write: %w", err)
	}
	s.written++
	return nil
}

func (s *ExcelSink) writeRow(values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, s.nextRow)
	if err != nil {
		return err
	}
	if err := s.file.SetSheetRow(s.sheet, cell, &values); err != nil {
		return err
	}
	s.nextRow++
	return nil
}

// Close sets the column widths, saves the workbook and releases it.
func (s *ExcelSink) Close() error {
	const op = "ExcelSink.Close"
	defer s.file.Close()

	for i, c := range Columns {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			continue
		}
		_ = s.file.SetColWidth(s.sheet, col, col, columnWidth(c))
	}

	if err := s.file.SaveAs(s.path); err != nil {
		return fmt.Errorf("%s: save: %w", op, err)
	}
	s.log.Info().
		Str("sheet", s.sheet).
		Int("rows", s.written).
		Msg("Saved workbook")
	return nil
}

func columnWidth(column string) float64 {
	switch column {
	case "file", "seller.legal_name", "buyer.legal_name", "seller.address", "buyer.address", "error":
		return 36
	case "document.type_code", "line_items":
		return 48
	case "ocr_used", "seller.province", "buyer.province", "seller.country", "buyer.country", "line_items.count":
		return 10
	default:
		return 18
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
