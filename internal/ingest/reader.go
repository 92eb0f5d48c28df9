// Package ingest reads the supplier record stream from a spreadsheet or
// delimited text file, applies the alias table (§6), and yields RawRecords
// with every numeric-looking field preserved as text.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/supplier-resolver/resolver/internal/domain"
)

// column describes one resolved source column: its position and the
// canonical field name it maps to (or "" if its header was unrecognized
// and the column is dropped).
type column struct {
	index     int
	canonical string
}

// ReadCSV streams RawRecords from delimited text. Every cell is kept as
// text; a bare 4-digit numeric postal is padded by the normalizer later,
// not here — ingest's only job is alias resolution and identifier
// derivation.
func ReadCSV(r io.Reader, fn func(domain.RawRecord) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read csv header: %w", err)
	}
	columns, idCol := resolveColumns(header)

	row := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read csv row %d: %w", row, err)
		}
		raw := buildRecord(record, columns, idCol, row)
		if err := fn(raw); err != nil {
			return err
		}
		row++
	}
}

// ReadXLSX streams RawRecords from the first sheet of an xlsx workbook.
func ReadXLSX(path string, fn func(domain.RawRecord) error) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open workbook %q: %w", path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.Rows(sheet)
	if err != nil {
		return fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return fmt.Errorf("workbook %q has no header row", path)
	}
	header, err := rows.Columns()
	if err != nil {
		return err
	}
	columns, idCol := resolveColumns(header)

	row := 0
	for rows.Next() {
		record, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return fmt.Errorf("read row %d: %w", row, err)
		}
		raw := buildRecord(record, columns, idCol, row)
		if err := fn(raw); err != nil {
			return err
		}
		row++
	}
	return rows.Error()
}

// resolveColumns maps each header cell to a canonical field name via the
// alias table. The identifier column, if present, is tracked separately
// since input_id is RawRecord.InputID rather than an ordinary field.
func resolveColumns(header []string) (cols []column, idCol int) {
	idCol = -1
	seen := make(map[string]bool)
	for i, h := range header {
		canonical, ok := ResolveHeader(h)
		if !ok {
			continue
		}
		if canonical == inputIDField {
			if idCol < 0 {
				idCol = i
			}
			continue
		}
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		cols = append(cols, column{index: i, canonical: canonical})
	}
	return cols, idCol
}

func buildRecord(record []string, columns []column, idCol int, rowNum int) domain.RawRecord {
	fields := make(map[string]domain.Value, len(columns))
	for _, c := range columns {
		if c.index >= len(record) {
			continue
		}
		fields[c.canonical] = cellValue(record[c.index])
	}

	inputID := fmt.Sprintf("row-%d", rowNum)
	if idCol >= 0 && idCol < len(record) {
		if trimmed := strings.TrimSpace(record[idCol]); trimmed != "" {
			inputID = trimmed
		}
	}

	return domain.RawRecord{InputID: inputID, Fields: fields}
}

// cellValue keeps every cell as KindString. Identifiers and postal codes
// must never round-trip through a numeric type and lose leading zeros;
// since ingest cannot tell which columns are "meant" to be numeric beyond
// what the alias table already names, every cell is read as text.
func cellValue(raw string) domain.Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return domain.Null()
	}
	return domain.StringValue(trimmed)
}
