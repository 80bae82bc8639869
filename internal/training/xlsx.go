package training

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/xuri/excelize/v2"

	"triage-chatbot/internal/symptoms"
)

// Row is one labelled training example: a symptom vector in vocabulary
// order and the prognosis label.
type Row struct {
	Features []int
	Label    string
}

// XLSXLog is the training table kept in a spreadsheet on disk.  The first
// row is the header (vocabulary ++ prognosis); every later row is an example.
// Appends are read-modify-write on the whole file, so they are serialised.
type XLSXLog struct {
	mu   sync.Mutex
	path string
}

// OpenXLSX opens the training spreadsheet at path, creating it with the
// vocabulary header when it does not exist.  An existing file must carry
// the vocabulary header.
func OpenXLSX(path string) (*XLSXLog, error) {
	l := &XLSXLog{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := l.create(); err != nil {
			return nil, err
		}
		return l, nil
	} else if err != nil {
		return nil, fmt.Errorf("training: stat %s: %w", path, err)
	}

	cols, err := l.Columns(context.Background())
	if err != nil {
		return nil, err
	}
	if err := symptoms.CheckColumns(cols); err != nil {
		return nil, fmt.Errorf("training: %s: %w", path, err)
	}
	return l, nil
}

func (l *XLSXLog) create() error {
	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("training: create dir: %w", err)
		}
	}
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	header := make([]interface{}, 0, symptoms.Len()+1)
	for _, c := range symptoms.Columns() {
		header = append(header, c)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("training: write header: %w", err)
	}
	if err := f.SaveAs(l.path); err != nil {
		return fmt.Errorf("training: save %s: %w", l.path, err)
	}
	return nil
}

// Columns returns the header row of the table.
func (l *XLSXLog) Columns(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.readRows()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("training: %s has no header row", l.path)
	}
	return rows[0], nil
}

// Append adds one example at the end of the table.
func (l *XLSXLog) Append(ctx context.Context, row Row) error {
	if len(row.Features) != symptoms.Len() {
		return fmt.Errorf("training: expected %d features, got %d", symptoms.Len(), len(row.Features))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return fmt.Errorf("training: open %s: %w", l.path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("training: read %s: %w", l.path, err)
	}
	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return err
	}

	values := make([]interface{}, 0, len(row.Features)+1)
	for _, v := range row.Features {
		values = append(values, v)
	}
	values = append(values, row.Label)
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("training: write row: %w", err)
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("training: save %s: %w", l.path, err)
	}
	return nil
}

// Rows returns every example in the table.
func (l *XLSXLog) Rows(ctx context.Context) ([]Row, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := l.readRows()
	if err != nil {
		return nil, err
	}
	if len(raw) <= 1 {
		return nil, nil
	}

	n := symptoms.Len()
	out := make([]Row, 0, len(raw)-1)
	for i, r := range raw[1:] {
		row := Row{Features: make([]int, n)}
		for j := 0; j < n && j < len(r); j++ {
			if r[j] == "" {
				continue
			}
			v, err := strconv.Atoi(r[j])
			if err != nil {
				return nil, fmt.Errorf("training: row %d column %d: %w", i+2, j+1, err)
			}
			row.Features[j] = v
		}
		if len(r) > n {
			row.Label = r[n]
		}
		out = append(out, row)
	}
	return out, nil
}

func (l *XLSXLog) readRows() ([][]string, error) {
	f, err := excelize.OpenFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("training: open %s: %w", l.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	if err != nil {
		return nil, fmt.Errorf("training: read %s: %w", l.path, err)
	}
	return rows, nil
}
