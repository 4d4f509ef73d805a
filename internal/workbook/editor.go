package workbook

import (
	"bytes"
	"fmt"

	"github.com/aspirant2018/niqatech-backend/internal/xls"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"

	"github.com/xuri/excelize/v2"
)

// EditableSheet writes single cells of one worksheet. Writes keep the
// cell's existing format.
type EditableSheet interface {
	SetNumber(row, col int, v float64) error
	SetText(row, col int, text string) error
	SetBlank(row, col int) error
}

// Editor is a writable copy of a workbook. The Workbook it came from is
// not affected by edits.
type Editor struct {
	format Format
	legacy *xls.Workbook
	book   *excelize.File
}

// Edit returns a writable copy of the workbook.
func (w *Workbook) Edit() (*Editor, error) {
	switch w.format {
	case FormatXLS:
		return &Editor{format: w.format, legacy: w.legacy.Clone()}, nil
	case FormatXLSX:
		f, err := excelize.OpenReader(bytes.NewReader(w.data))
		if err != nil {
			return nil, errors.NewCorruptWorkbookError("unreadable xlsx package", err)
		}
		return &Editor{format: w.format, book: f}, nil
	}
	return nil, fmt.Errorf("unsupported format %q", w.format)
}

// Sheet finds a worksheet of the copy by name.
func (e *Editor) Sheet(name string) (EditableSheet, error) {
	if e.legacy != nil {
		s, err := e.legacy.SheetByName(name)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	idx, err := e.book.GetSheetIndex(name)
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet '%s': %w", name, errors.ErrSheetNotFound)
	}
	return &xlsxSheet{f: e.book, name: name}, nil
}

// Bytes serializes the edited copy in its original format.
func (e *Editor) Bytes() ([]byte, error) {
	if e.legacy != nil {
		return e.legacy.Bytes()
	}
	buf, err := e.book.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// Close releases the excelize temporary files of an xlsx copy.
func (e *Editor) Close() error {
	if e.book != nil {
		return e.book.Close()
	}
	return nil
}

type xlsxSheet struct {
	f    *excelize.File
	name string
}

func (s *xlsxSheet) axis(row, col int) (string, error) {
	return excelize.CoordinatesToCellName(col+1, row+1)
}

func (s *xlsxSheet) SetNumber(row, col int, v float64) error {
	axis, err := s.axis(row, col)
	if err != nil {
		return err
	}
	return s.f.SetCellFloat(s.name, axis, v, -1, 64)
}

func (s *xlsxSheet) SetText(row, col int, text string) error {
	if text == "" {
		return s.SetBlank(row, col)
	}
	axis, err := s.axis(row, col)
	if err != nil {
		return err
	}
	return s.f.SetCellStr(s.name, axis, text)
}

func (s *xlsxSheet) SetBlank(row, col int) error {
	axis, err := s.axis(row, col)
	if err != nil {
		return err
	}
	return s.f.SetCellValue(s.name, axis, nil)
}
