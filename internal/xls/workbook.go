package xls

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/aspirant2018/niqatech-backend/pkg/errors"
)

const workbookStream = "Workbook"

// CellKind classifies a cell value.
type CellKind uint8

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellBool
	CellError
)

// Cell is the decoded value of one cell record.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
	Bool   bool
	IsDate bool
	XF     uint16
}

type cellRef struct {
	row, col int
}

// Workbook is a BIFF8 workbook. The record list is kept verbatim so an
// editable copy can be serialized with every record it did not touch
// left byte-for-byte intact.
type Workbook struct {
	entries  []Entry
	book     int
	recs     []record
	tail     []byte
	sst      []string
	sstIndex map[string]int
	xfFmt    []uint16
	formats  map[uint16]string
	date1904 bool
	sheets   []*Sheet
	warnings []string
	editable bool
}

// Sheet is one worksheet substream.
type Sheet struct {
	Name string

	book       *Workbook
	boundsheet int
	bofPos     int
	cells      map[cellRef]Cell
	rows       int
	cols       int
}

// IsCFB reports whether data starts with the compound file signature.
func IsCFB(data []byte) bool {
	return len(data) >= len(cfbSignature) && bytes.Equal(data[:len(cfbSignature)], cfbSignature)
}

// Open parses a legacy .xls buffer. Damage limited to one sheet is
// recorded in Warnings and leaves that sheet empty.
func Open(data []byte) (*Workbook, error) {
	if len(data) == 0 {
		return nil, errors.NewCorruptWorkbookError("empty buffer", nil)
	}
	if !IsCFB(data) {
		return nil, errors.NewCorruptWorkbookError("not a compound file", nil)
	}

	entries, err := ReadContainer(data)
	if err != nil {
		return nil, errors.NewCorruptWorkbookError("unreadable container", err)
	}

	b := &Workbook{entries: entries, book: -1}
	for i, e := range entries {
		if e.Dir || len(e.Path) != 0 {
			continue
		}
		if strings.EqualFold(e.Name, workbookStream) {
			b.book = i
			break
		}
		if strings.EqualFold(e.Name, "Book") {
			return nil, errors.NewCorruptWorkbookError("unsupported BIFF version", nil)
		}
	}
	if b.book < 0 {
		return nil, errors.NewCorruptWorkbookError("workbook stream not found", nil)
	}

	b.recs, b.tail = splitRecords(entries[b.book].Data)
	if err := b.parseGlobals(); err != nil {
		return nil, err
	}
	b.loadSheets()
	return b, nil
}

func (b *Workbook) parseGlobals() error {
	if len(b.recs) == 0 || b.recs[0].typ != recBOF || len(b.recs[0].data) < 4 {
		return errors.NewCorruptWorkbookError("missing BOF record", nil)
	}
	if u16(b.recs[0].data, 0) != biff8Version {
		return errors.NewCorruptWorkbookError("unsupported BIFF version", nil)
	}
	if u16(b.recs[0].data, 2) != bofGlobals {
		return errors.NewCorruptWorkbookError("workbook globals not found", nil)
	}

	b.formats = make(map[uint16]string)
	b.sstIndex = make(map[string]int)
	for i := 1; i < len(b.recs); i++ {
		rec := b.recs[i]
		switch rec.typ {
		case recEOF:
			return nil
		case recDateMode:
			if len(rec.data) >= 2 {
				b.date1904 = u16(rec.data, 0) == 1
			}
		case recXF:
			if len(rec.data) >= 4 {
				b.xfFmt = append(b.xfFmt, u16(rec.data, 2))
			}
		case recFormat:
			if len(rec.data) >= 2 {
				if code, _, err := decodeUnicodeString(rec.data[2:]); err == nil {
					b.formats[u16(rec.data, 0)] = code
				}
			}
		case recBoundSheet:
			if len(rec.data) < 8 || rec.data[5] != sheetTypeWork {
				continue
			}
			name, err := decodeShortString(rec.data[6:])
			if err != nil {
				b.warn("sheet %d: unreadable name", len(b.sheets))
				name = fmt.Sprintf("Sheet%d", len(b.sheets)+1)
			}
			b.sheets = append(b.sheets, &Sheet{
				Name:       name,
				book:       b,
				boundsheet: i,
				bofPos:     int(u32(rec.data, 0)),
			})
		case recSST:
			segs := [][]byte{rec.data}
			for j := i + 1; j < len(b.recs) && b.recs[j].typ == recContinue; j++ {
				segs = append(segs, b.recs[j].data)
			}
			strs, err := parseSST(segs)
			if err != nil {
				b.warn("shared string table truncated after %d strings", len(strs))
			}
			b.sst = strs
			for idx, s := range strs {
				if _, ok := b.sstIndex[s]; !ok {
					b.sstIndex[s] = idx
				}
			}
		}
	}
	return errors.NewCorruptWorkbookError("workbook globals not terminated", nil)
}

func (b *Workbook) warn(format string, args ...interface{}) {
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
}

func (b *Workbook) loadSheets() {
	for _, s := range b.sheets {
		if err := s.load(); err != nil {
			b.warn("sheet '%s': %v", s.Name, err)
		}
	}
}

// Sheets returns the worksheets in workbook order.
func (b *Workbook) Sheets() []*Sheet {
	return b.sheets
}

// SheetByName finds a worksheet by its exact name.
func (b *Workbook) SheetByName(name string) (*Sheet, error) {
	for _, s := range b.sheets {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("sheet '%s': %w", name, errors.ErrSheetNotFound)
}

// Warnings lists the non-fatal problems met while opening.
func (b *Workbook) Warnings() []string {
	return b.warnings
}

// Date1904 reports whether date serials count from 1904-01-01.
func (b *Workbook) Date1904() bool {
	return b.date1904
}

// recordIndex returns the index of the record that was read at pos.
func (b *Workbook) recordIndex(pos int) int {
	for i, r := range b.recs {
		if r.pos == pos {
			return i
		}
	}
	return -1
}

// bounds returns the record index range [lo, hi) strictly inside the
// sheet's BOF and EOF, skipping nothing.
func (s *Sheet) bounds() (int, int, error) {
	recs := s.book.recs
	bof := s.book.recordIndex(s.bofPos)
	if bof < 0 || recs[bof].typ != recBOF {
		return 0, 0, fmt.Errorf("no BOF record at offset %d", s.bofPos)
	}
	depth := 0
	for i := bof + 1; i < len(recs); i++ {
		switch recs[i].typ {
		case recBOF:
			depth++
		case recEOF:
			if depth == 0 {
				return bof + 1, i, nil
			}
			depth--
		}
	}
	return bof + 1, len(recs), nil
}

func (s *Sheet) load() error {
	s.cells = make(map[cellRef]Cell)
	s.rows, s.cols = 0, 0

	lo, hi, err := s.bounds()
	if err != nil {
		return err
	}
	recs := s.book.recs
	depth := 0
	for i := lo; i < hi; i++ {
		rec := recs[i]
		switch rec.typ {
		case recBOF:
			depth++
			continue
		case recEOF:
			depth--
			continue
		}
		if depth > 0 {
			continue
		}
		s.decode(rec, recs[i+1:hi])
	}
	return nil
}

func (s *Sheet) put(row, col int, c Cell) {
	s.cells[cellRef{row, col}] = c
	if row+1 > s.rows {
		s.rows = row + 1
	}
	if col+1 > s.cols {
		s.cols = col + 1
	}
}

func (s *Sheet) decode(rec record, following []record) {
	d := rec.data
	if len(d) < 6 {
		return
	}
	row, col, xf := int(u16(d, 0)), int(u16(d, 2)), u16(d, 4)

	switch rec.typ {
	case recNumber:
		if len(d) >= 14 {
			v := math.Float64frombits(binary.LittleEndian.Uint64(d[6:]))
			s.put(row, col, s.number(v, xf))
		}
	case recRK:
		if len(d) >= 10 {
			s.put(row, col, s.number(decodeRK(u32(d, 6)), xf))
		}
	case recMulRK:
		_, first, last, ok := cellSpan(rec)
		if !ok || len(d) < 6+6*(last-first+1) {
			return
		}
		for c := first; c <= last; c++ {
			off := 4 + 6*(c-first)
			cxf := u16(d, off)
			s.put(row, c, s.number(decodeRK(u32(d, off+2)), cxf))
		}
	case recBlank:
		s.put(row, col, Cell{Kind: CellEmpty, XF: xf})
	case recMulBlank:
		_, first, last, ok := cellSpan(rec)
		if !ok || len(d) < 6+2*(last-first+1) {
			return
		}
		for c := first; c <= last; c++ {
			s.put(row, c, Cell{Kind: CellEmpty, XF: u16(d, 4+2*(c-first))})
		}
	case recLabelSST:
		if len(d) >= 10 {
			idx := int(u32(d, 6))
			text := ""
			if idx < len(s.book.sst) {
				text = s.book.sst[idx]
			}
			s.put(row, col, Cell{Kind: CellText, Text: text, XF: xf})
		}
	case recLabel, recRString:
		if text, _, err := decodeUnicodeString(d[6:]); err == nil {
			s.put(row, col, Cell{Kind: CellText, Text: text, XF: xf})
		}
	case recBoolErr:
		if len(d) >= 8 {
			if d[7] != 0 {
				s.put(row, col, Cell{Kind: CellError, Number: float64(d[6]), XF: xf})
			} else {
				s.put(row, col, Cell{Kind: CellBool, Bool: d[6] != 0, XF: xf})
			}
		}
	case recFormula:
		if len(d) >= 14 {
			s.put(row, col, s.formula(d, xf, following))
		}
	}
}

func (s *Sheet) number(v float64, xf uint16) Cell {
	return Cell{Kind: CellNumber, Number: v, XF: xf, IsDate: s.book.isDateXF(xf)}
}

// formula decodes the cached result of a FORMULA record. A string result
// is carried by the STRING record that follows it.
func (s *Sheet) formula(d []byte, xf uint16, following []record) Cell {
	if d[12] != 0xFF || d[13] != 0xFF {
		return s.number(math.Float64frombits(binary.LittleEndian.Uint64(d[6:])), xf)
	}
	switch d[6] {
	case 0:
		for _, next := range following {
			if next.typ == recShrFmla || next.typ == recArray || next.typ == recTable {
				continue
			}
			if next.typ == recString {
				if text, _, err := decodeUnicodeString(next.data); err == nil {
					return Cell{Kind: CellText, Text: text, XF: xf}
				}
			}
			break
		}
		return Cell{Kind: CellText, XF: xf}
	case 1:
		return Cell{Kind: CellBool, Bool: d[8] != 0, XF: xf}
	case 2:
		return Cell{Kind: CellError, Number: float64(d[8]), XF: xf}
	default:
		return Cell{Kind: CellText, XF: xf}
	}
}

// NumRows is the highest row index holding any cell record, blanks
// included, plus one.
func (s *Sheet) NumRows() int {
	return s.rows
}

// NumCols is the highest column index holding any cell record plus one.
func (s *Sheet) NumCols() int {
	return s.cols
}

// Cell returns the cell at (row, col); absent cells are CellEmpty.
func (s *Sheet) Cell(row, col int) Cell {
	return s.cells[cellRef{row, col}]
}

func (b *Workbook) isDateXF(xf uint16) bool {
	if int(xf) >= len(b.xfFmt) {
		return false
	}
	id := b.xfFmt[xf]
	switch {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 45 && id <= 47, id >= 50 && id <= 58:
		return true
	}
	code, ok := b.formats[id]
	return ok && IsDateFormat(code)
}

// IsDateFormat reports whether a number format code renders dates or
// times. Quoted literals, escaped characters and bracketed sections such
// as colours and locales are ignored.
func IsDateFormat(code string) bool {
	inQuote, inBracket, escaped := false, false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case escaped:
			escaped = false
		case inQuote:
			inQuote = r != '"'
		case inBracket:
			inBracket = r != ']'
		case r == '\\':
			escaped = true
		case r == '"':
			inQuote = true
		case r == '[':
			inBracket = true
		case r == 'y' || r == 'm' || r == 'd' || r == 'h' || r == 's':
			return true
		}
	}
	return false
}
