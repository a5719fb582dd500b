package upload

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrMissingSheets is matched by [*MissingSheetsError].
var ErrMissingSheets = errors.New("workbook is missing required sheets")

// MissingSheetsError lists the requested sheets absent from a workbook.
type MissingSheetsError struct {
	Missing []string
}

func (e *MissingSheetsError) Error() string {
	return fmt.Sprintf("в файле нет листов: %s", strings.Join(e.Missing, ", "))
}

func (e *MissingSheetsError) Is(target error) bool { return target == ErrMissingSheets }

// CheckSheets opens an .xlsx workbook from r and verifies that every name in
// want is one of its sheets. Sheet names are compared exactly.
func CheckSheets(r io.Reader, want []string) error {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = book.Close() }()

	return requireSheets(book, want)
}

// CountRows returns, per requested sheet, the number of rows below the
// header row that have at least one non-blank cell.
func CountRows(r io.Reader, sheets []string) (map[string]int, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = book.Close() }()

	if err := requireSheets(book, sheets); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(sheets))
	for _, sheet := range sheets {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		n := 0
		for i, row := range rows {
			if i == 0 {
				continue // header
			}
			if !blank(row) {
				n++
			}
		}
		counts[sheet] = n
	}
	return counts, nil
}

func requireSheets(book *excelize.File, want []string) error {
	have := make(map[string]struct{})
	for _, name := range book.GetSheetList() {
		have[name] = struct{}{}
	}

	var missing []string
	for _, name := range want {
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingSheetsError{Missing: missing}
	}
	return nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
