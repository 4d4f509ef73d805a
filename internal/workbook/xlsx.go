package workbook

import (
	"bytes"
	"strconv"

	"github.com/aspirant2018/niqatech-backend/internal/xls"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"

	"github.com/xuri/excelize/v2"
)

type gridSheet struct {
	name  string
	cells [][]Cell
}

func (g *gridSheet) Name() string {
	return g.name
}

func (g *gridSheet) NumRows() int {
	return len(g.cells)
}

func (g *gridSheet) Cell(row, col int) Cell {
	if row < 0 || row >= len(g.cells) || col < 0 || col >= len(g.cells[row]) {
		return Cell{}
	}
	return g.cells[row][col]
}

func readXLSX(data []byte) ([]Sheet, bool, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, false, errors.NewCorruptWorkbookError("unreadable xlsx package", err)
	}
	defer f.Close()

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, false, errors.NewCorruptWorkbookError("unreadable sheet "+name, err)
		}
		g := &gridSheet{name: name, cells: make([][]Cell, len(rows))}
		for r, row := range rows {
			g.cells[r] = make([]Cell, len(row))
			for c, raw := range row {
				if raw == "" {
					continue
				}
				axis, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					continue
				}
				g.cells[r][c] = classify(f, name, axis, raw)
			}
		}
		sheets = append(sheets, g)
	}
	return sheets, date1904, nil
}

func classify(f *excelize.File, sheet, axis, raw string) Cell {
	typ, _ := f.GetCellType(sheet, axis)
	switch typ {
	case excelize.CellTypeBool:
		return Cell{Kind: Bool, Bool: raw == "1" || raw == "TRUE"}
	case excelize.CellTypeError:
		return Cell{Kind: Error, Text: raw}
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return Cell{Kind: Text, Text: raw}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Cell{Kind: Text, Text: raw}
	}
	return Cell{Kind: Number, Number: v, IsDate: typ == excelize.CellTypeDate || dateStyled(f, sheet, axis)}
}

func dateStyled(f *excelize.File, sheet, axis string) bool {
	id, err := f.GetCellStyle(sheet, axis)
	if err != nil || id == 0 {
		return false
	}
	style, err := f.GetStyle(id)
	if err != nil || style == nil {
		return false
	}
	switch n := style.NumFmt; {
	case n >= 14 && n <= 22, n >= 45 && n <= 47:
		return true
	}
	return style.CustomNumFmt != nil && xls.IsDateFormat(*style.CustomNumFmt)
}
