// Package workbook opens uploaded spreadsheets behind one read and edit
// interface. Legacy .xls files go through internal/xls; .xlsx files go
// through excelize.
package workbook

import (
	"bytes"
	"fmt"
	"time"

	"github.com/aspirant2018/niqatech-backend/internal/xls"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"

	"github.com/xuri/excelize/v2"
)

type Format string

const (
	FormatXLS  Format = "xls"
	FormatXLSX Format = "xlsx"
)

var zipSignature = []byte{'P', 'K', 0x03, 0x04}

type Kind uint8

const (
	Empty Kind = iota
	Text
	Number
	Bool
	Error
)

// Cell is a cell value independent of the file format.
type Cell struct {
	Kind   Kind
	Text   string
	Number float64
	Bool   bool
	IsDate bool
}

// Sheet gives positional access to one worksheet. Rows and columns are
// zero-based.
type Sheet interface {
	Name() string
	NumRows() int
	Cell(row, col int) Cell
}

// Workbook is an opened spreadsheet. It holds no file handles.
type Workbook struct {
	format   Format
	data     []byte
	sheets   []Sheet
	warnings []string
	date1904 bool
	legacy   *xls.Workbook
}

// Detect identifies the container format from the leading bytes.
func Detect(data []byte) (Format, error) {
	switch {
	case len(data) == 0:
		return "", errors.NewCorruptWorkbookError("empty buffer", nil)
	case xls.IsCFB(data):
		return FormatXLS, nil
	case bytes.HasPrefix(data, zipSignature):
		return FormatXLSX, nil
	}
	return "", errors.NewCorruptWorkbookError("unrecognized file signature", nil)
}

// Open parses data into a Workbook.
func Open(data []byte) (*Workbook, error) {
	format, err := Detect(data)
	if err != nil {
		return nil, err
	}

	w := &Workbook{format: format, data: data}
	switch format {
	case FormatXLS:
		legacy, err := xls.Open(data)
		if err != nil {
			return nil, err
		}
		w.legacy = legacy
		w.date1904 = legacy.Date1904()
		w.warnings = legacy.Warnings()
		for _, s := range legacy.Sheets() {
			w.sheets = append(w.sheets, legacySheet{s})
		}
	case FormatXLSX:
		sheets, date1904, err := readXLSX(data)
		if err != nil {
			return nil, err
		}
		w.sheets = sheets
		w.date1904 = date1904
	}
	return w, nil
}

func (w *Workbook) Format() Format {
	return w.format
}

func (w *Workbook) Sheets() []Sheet {
	return w.sheets
}

// Warnings lists damage that was tolerated while opening.
func (w *Workbook) Warnings() []string {
	return w.warnings
}

// DateTime converts a date serial using the workbook's date system.
func (w *Workbook) DateTime(serial float64) (time.Time, error) {
	t, err := excelize.ExcelDateToTime(serial, w.date1904)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to convert date serial %v: %w", serial, err)
	}
	return t, nil
}

type legacySheet struct {
	s *xls.Sheet
}

func (l legacySheet) Name() string {
	return l.s.Name
}

func (l legacySheet) NumRows() int {
	return l.s.NumRows()
}

func (l legacySheet) Cell(row, col int) Cell {
	c := l.s.Cell(row, col)
	switch c.Kind {
	case xls.CellText:
		return Cell{Kind: Text, Text: c.Text}
	case xls.CellNumber:
		return Cell{Kind: Number, Number: c.Number, IsDate: c.IsDate}
	case xls.CellBool:
		return Cell{Kind: Bool, Bool: c.Bool}
	case xls.CellError:
		return Cell{Kind: Error, Number: c.Number}
	}
	return Cell{}
}
