package xls

import (
	"errors"
	"fmt"
	"unicode/utf16"
)

// Default cell format for cells that did not exist before an edit.
const defaultXF uint16 = 0x0F

const maxLabelChars = 255

var (
	ErrReadOnly      = errors.New("workbook is read-only; edit a Clone")
	ErrSharedFormula = errors.New("cell is part of a shared or array formula")
	ErrTextTooLong   = fmt.Errorf("text longer than %d characters", maxLabelChars)
)

// Clone returns an editable deep copy of the workbook.
func (b *Workbook) Clone() *Workbook {
	c := &Workbook{
		book:     b.book,
		tail:     append([]byte(nil), b.tail...),
		sst:      b.sst,
		sstIndex: b.sstIndex,
		xfFmt:    b.xfFmt,
		formats:  b.formats,
		date1904: b.date1904,
		warnings: append([]string(nil), b.warnings...),
		editable: true,
	}
	c.entries = make([]Entry, len(b.entries))
	for i, e := range b.entries {
		c.entries[i] = Entry{Path: e.Path, Name: e.Name, Dir: e.Dir, Data: e.Data}
	}
	c.recs = make([]record, len(b.recs))
	for i, r := range b.recs {
		r.data = append([]byte(nil), r.data...)
		c.recs[i] = r
	}
	c.sheets = make([]*Sheet, len(b.sheets))
	for i, s := range b.sheets {
		c.sheets[i] = &Sheet{Name: s.Name, book: c, boundsheet: s.boundsheet, bofPos: s.bofPos}
	}
	c.loadSheets()
	c.warnings = c.warnings[:len(b.warnings)]
	return c
}

// SetNumber stores a number in the cell, keeping its format.
func (s *Sheet) SetNumber(row, col int, v float64) error {
	return s.set(row, col, func(xf uint16) []record {
		return []record{numberRecord(row, col, xf, v)}
	}, true)
}

// SetBlank clears the cell value, keeping its format. A cell with no
// record is left alone.
func (s *Sheet) SetBlank(row, col int) error {
	return s.set(row, col, func(xf uint16) []record {
		return []record{blankRecord(row, col, xf)}
	}, false)
}

// SetText stores text in the cell. Strings already present in the shared
// string table are referenced; others are written inline. Empty text
// clears the cell.
func (s *Sheet) SetText(row, col int, text string) error {
	if text == "" {
		return s.SetBlank(row, col)
	}
	if len(utf16.Encode([]rune(text))) > maxLabelChars {
		return ErrTextTooLong
	}
	return s.set(row, col, func(xf uint16) []record {
		if idx, ok := s.book.sstIndex[text]; ok {
			return []record{labelSSTRecord(row, col, xf, idx)}
		}
		return []record{labelRecord(row, col, xf, text)}
	}, true)
}

// set replaces the cell record at (row, col) with the records build
// returns, splitting multi-cell records around the column. When no record
// covers the cell and insert is true, a new record is placed in row and
// column order.
func (s *Sheet) set(row, col int, build func(xf uint16) []record, insert bool) error {
	if !s.book.editable {
		return ErrReadOnly
	}
	if row < 0 || row > 0xFFFF || col < 0 || col > 0xFF {
		return fmt.Errorf("cell (%d, %d) out of range", row, col)
	}
	lo, hi, err := s.bounds()
	if err != nil {
		return err
	}

	recs := s.book.recs
	for i := lo; i < hi; i++ {
		r, first, last, ok := cellSpan(recs[i])
		if !ok || r != row || col < first || col > last {
			continue
		}
		group, drop, err := s.replacement(i, hi, col, build)
		if err != nil {
			return err
		}
		for j := range group {
			group[j].anchor = recs[i].anchor
		}
		s.splice(i, drop, group)
		return s.load()
	}

	if !insert {
		return nil
	}
	recs = build(defaultXF)
	at, anchor := s.insertionPoint(lo, hi, row, col)
	for j := range recs {
		recs[j].anchor = anchor
	}
	s.splice(at, 0, recs)
	s.widen(row, col)
	return s.load()
}

// replacement builds the records that take the place of record i when
// column col is rewritten, and reports how many records it replaces.
func (s *Sheet) replacement(i, hi, col int, build func(xf uint16) []record) ([]record, int, error) {
	rec := s.book.recs[i]
	row, first, last, _ := cellSpan(rec)
	switch rec.typ {
	case recMulRK:
		xfs := make([]uint16, 0, last-first+1)
		rks := make([]uint32, 0, last-first+1)
		for c := first; c <= last; c++ {
			off := 4 + 6*(c-first)
			xfs = append(xfs, u16(rec.data, off))
			rks = append(rks, u32(rec.data, off+2))
		}
		k := col - first
		var group []record
		group = append(group, rkRun(row, first, xfs[:k], rks[:k])...)
		group = append(group, build(xfs[k])...)
		group = append(group, rkRun(row, col+1, xfs[k+1:], rks[k+1:])...)
		return group, 1, nil
	case recMulBlank:
		xfs := make([]uint16, 0, last-first+1)
		for c := first; c <= last; c++ {
			xfs = append(xfs, u16(rec.data, 4+2*(c-first)))
		}
		k := col - first
		var group []record
		group = append(group, blankRun(row, first, xfs[:k])...)
		group = append(group, build(xfs[k])...)
		group = append(group, blankRun(row, col+1, xfs[k+1:])...)
		return group, 1, nil
	case recFormula:
		drop := 1
		if i+1 < hi {
			switch s.book.recs[i+1].typ {
			case recShrFmla, recArray, recTable:
				return nil, 0, ErrSharedFormula
			case recString:
				drop = 2
			}
		}
		return build(u16(rec.data, 4)), drop, nil
	default:
		return build(u16(rec.data, 4)), 1, nil
	}
}

func rkRun(row, first int, xfs []uint16, rks []uint32) []record {
	switch len(rks) {
	case 0:
		return nil
	case 1:
		return []record{rkRecord(row, first, xfs[0], rks[0])}
	default:
		return []record{mulRKRecord(row, first, xfs, rks)}
	}
}

func blankRun(row, first int, xfs []uint16) []record {
	switch len(xfs) {
	case 0:
		return nil
	case 1:
		return []record{blankRecord(row, first, xfs[0])}
	default:
		return []record{mulBlankRecord(row, first, xfs)}
	}
}

// insertionPoint picks where a new cell record goes. Inside an existing
// row it precedes the first cell after it and takes over that cell's
// anchor, so row pointers in DBCELL records resolve to it.
func (s *Sheet) insertionPoint(lo, hi, row, col int) (int, int) {
	recs := s.book.recs
	prev, lastRow, dims := -1, -1, -1
	for i := lo; i < hi; i++ {
		switch recs[i].typ {
		case recRow:
			lastRow = i
			continue
		case recDimensions:
			dims = i
			continue
		}
		r, first, _, ok := cellSpan(recs[i])
		if !ok {
			continue
		}
		if r > row || (r == row && first > col) {
			if r == row {
				return i, recs[i].anchor
			}
			if prev >= 0 {
				return prev + 1, -1
			}
			return i, -1
		}
		prev = i
	}
	switch {
	case prev >= 0:
		return prev + 1, -1
	case lastRow >= 0:
		return lastRow + 1, -1
	case dims >= 0:
		return dims + 1, -1
	}
	return hi, -1
}

// widen grows DIMENSIONS and the ROW record of row to cover col.
func (s *Sheet) widen(row, col int) {
	lo, hi, err := s.bounds()
	if err != nil {
		return
	}
	for i := lo; i < hi; i++ {
		d := s.book.recs[i].data
		switch s.book.recs[i].typ {
		case recDimensions:
			if len(d) < 12 {
				continue
			}
			if uint32(row) < u32(d, 0) {
				putU32(d, 0, uint32(row))
			}
			if uint32(row+1) > u32(d, 4) {
				putU32(d, 4, uint32(row+1))
			}
			if uint16(col) < u16(d, 8) {
				putU16(d, 8, uint16(col))
			}
			if uint16(col+1) > u16(d, 10) {
				putU16(d, 10, uint16(col+1))
			}
		case recRow:
			if len(d) < 6 || int(u16(d, 0)) != row {
				continue
			}
			if uint16(col) < u16(d, 2) {
				putU16(d, 2, uint16(col))
			}
			if uint16(col+1) > u16(d, 4) {
				putU16(d, 4, uint16(col+1))
			}
		}
	}
}

func (s *Sheet) splice(at, drop int, group []record) {
	recs := s.book.recs
	out := make([]record, 0, len(recs)-drop+len(group))
	out = append(out, recs[:at]...)
	out = append(out, group...)
	out = append(out, recs[at+drop:]...)
	s.book.recs = out
}
