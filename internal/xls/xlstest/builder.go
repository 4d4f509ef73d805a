// Package xlstest builds BIFF8 workbooks in memory for tests. The output
// carries the records real files do (SST with CONTINUE, INDEX/DBCELL
// row blocks, MULRK and MULBLANK runs) so readers and editors can be
// exercised without binary fixtures on disk.
package xlstest

import (
	"encoding/binary"
	"math"
	"sort"
	"unicode/utf16"

	"github.com/aspirant2018/niqatech-backend/internal/xls"
)

// Cell formats registered in every book.
const (
	XFGeneral    uint16 = 15
	XFDate       uint16 = 16
	XFCustomDate uint16 = 17
	XFGrade      uint16 = 18
)

const (
	rowsPerBlock  = 32
	maxRecordData = 8224
	customDateFmt = 164
)

type cellKind int

const (
	kindText cellKind = iota
	kindLabel
	kindNumber
	kindFloat
	kindBlank
	kindFormulaNumber
	kindFormulaText
	kindBool
)

type cell struct {
	kind cellKind
	xf   uint16
	text string
	num  float64
	b    bool
}

// Book accumulates sheets and serializes them as an .xls file.
type Book struct {
	sheets   []*Sheet
	sst      []string
	sstIndex map[string]int
	sstLimit int
	streams  []xls.Entry
}

// Sheet accumulates the cells of one worksheet.
type Sheet struct {
	name      string
	book      *Book
	cells     map[[2]int]cell
	badOffset bool
}

func NewBook() *Book {
	return &Book{sstIndex: make(map[string]int), sstLimit: maxRecordData}
}

// SplitSST caps SST and CONTINUE payloads at n bytes so short strings
// straddle record boundaries.
func (b *Book) SplitSST(n int) *Book {
	b.sstLimit = n
	return b
}

// AddStream adds a root-level stream next to the workbook stream.
func (b *Book) AddStream(name string, data []byte) *Book {
	b.streams = append(b.streams, xls.Entry{Name: name, Data: data})
	return b
}

func (b *Book) AddSheet(name string) *Sheet {
	s := &Sheet{name: name, book: b, cells: make(map[[2]int]cell)}
	b.sheets = append(b.sheets, s)
	return s
}

// CorruptOffset points the sheet's BOUNDSHEET8 record past the stream end.
func (s *Sheet) CorruptOffset() *Sheet {
	s.badOffset = true
	return s
}

func (s *Sheet) set(row, col int, c cell) *Sheet {
	s.cells[[2]int{row, col}] = c
	return s
}

// Text stores a shared string.
func (s *Sheet) Text(row, col int, v string) *Sheet {
	if _, ok := s.book.sstIndex[v]; !ok {
		s.book.sstIndex[v] = len(s.book.sst)
		s.book.sst = append(s.book.sst, v)
	}
	return s.set(row, col, cell{kind: kindText, xf: XFGeneral, text: v})
}

// Label stores an inline string.
func (s *Sheet) Label(row, col int, v string) *Sheet {
	return s.set(row, col, cell{kind: kindLabel, xf: XFGeneral, text: v})
}

// Number stores v as an RK value when it packs losslessly.
func (s *Sheet) Number(row, col int, v float64) *Sheet {
	return s.set(row, col, cell{kind: kindNumber, xf: XFGeneral, num: v})
}

// Grade stores v with a two-decimal number format.
func (s *Sheet) Grade(row, col int, v float64) *Sheet {
	return s.set(row, col, cell{kind: kindNumber, xf: XFGrade, num: v})
}

// Float always stores v in a NUMBER record.
func (s *Sheet) Float(row, col int, v float64) *Sheet {
	return s.set(row, col, cell{kind: kindFloat, xf: XFGeneral, num: v})
}

// Date stores a date serial with a built-in date format.
func (s *Sheet) Date(row, col int, serial float64) *Sheet {
	return s.set(row, col, cell{kind: kindNumber, xf: XFDate, num: serial})
}

// CustomDate stores a date serial with a custom "dd/mm/yyyy" format.
func (s *Sheet) CustomDate(row, col int, serial float64) *Sheet {
	return s.set(row, col, cell{kind: kindFloat, xf: XFCustomDate, num: serial})
}

// Blank stores a formatted empty cell.
func (s *Sheet) Blank(row, col int) *Sheet {
	return s.set(row, col, cell{kind: kindBlank, xf: XFGeneral})
}

func (s *Sheet) Bool(row, col int, v bool) *Sheet {
	return s.set(row, col, cell{kind: kindBool, xf: XFGeneral, b: v})
}

// FormulaNumber stores a constant formula with a cached numeric result.
func (s *Sheet) FormulaNumber(row, col int, v float64) *Sheet {
	return s.set(row, col, cell{kind: kindFormulaNumber, xf: XFGeneral, num: v})
}

// FormulaText stores a formula whose cached result is a string.
func (s *Sheet) FormulaText(row, col int, v string) *Sheet {
	return s.set(row, col, cell{kind: kindFormulaText, xf: XFGeneral, text: v})
}

type rec struct {
	typ  uint16
	data []byte
}

type blockLayout struct {
	firstRow   int
	dbcell     int
	firstCells []int
}

type sheetLayout struct {
	bof    int
	index  int
	defCol int
	blocks []blockLayout
}

// Bytes serializes the book into a compound file.
func (b *Book) Bytes() []byte {
	return xls.WriteContainer(b.Entries())
}

// Entries returns the compound file streams: the workbook stream followed
// by any extra streams.
func (b *Book) Entries() []xls.Entry {
	var all []rec
	add := func(typ uint16, data []byte) int {
		all = append(all, rec{typ, data})
		return len(all) - 1
	}

	add(0x0809, bof(0x0005))
	add(0x0042, u16s(1200))
	add(0x0022, u16s(0))
	add(0x041E, append(u16s(customDateFmt), unicodeString("dd/mm/yyyy")...))
	for i := 0; i < 15; i++ {
		add(0x00E0, xf(0, true))
	}
	add(0x00E0, xf(0, false))
	add(0x00E0, xf(14, false))
	add(0x00E0, xf(customDateFmt, false))
	add(0x00E0, xf(2, false))

	bounds := make([]int, len(b.sheets))
	for i, s := range b.sheets {
		data := make([]byte, 6)
		data = append(data, shortString(s.name)...)
		bounds[i] = add(0x0085, data)
	}
	for _, r := range b.sstRecords() {
		add(r.typ, r.data)
	}
	add(0x000A, nil)

	layouts := make([]sheetLayout, len(b.sheets))
	for i, s := range b.sheets {
		layouts[i] = s.emit(add)
	}

	pos := make([]int, len(all)+1)
	for i, r := range all {
		pos[i+1] = pos[i] + 4 + len(r.data)
	}

	for i, s := range b.sheets {
		l := layouts[i]
		off := uint32(pos[l.bof])
		if s.badOffset {
			off = uint32(pos[len(all)] + 1024)
		}
		binary.LittleEndian.PutUint32(all[bounds[i]].data, off)

		idx := all[l.index].data
		binary.LittleEndian.PutUint32(idx[12:], uint32(pos[l.defCol]))
		for k, blk := range l.blocks {
			binary.LittleEndian.PutUint32(idx[16+4*k:], uint32(pos[blk.dbcell]))

			db := all[blk.dbcell].data
			binary.LittleEndian.PutUint32(db, uint32(pos[blk.dbcell]-pos[blk.firstRow]))
			base := pos[blk.firstRow] + 20
			for r, c := range blk.firstCells {
				binary.LittleEndian.PutUint16(db[4+2*r:], uint16(pos[c]-base))
				base = pos[c]
			}
		}
	}

	stream := make([]byte, 0, pos[len(all)])
	for _, r := range all {
		stream = append(stream, u16s(r.typ)...)
		stream = append(stream, u16s(uint16(len(r.data)))...)
		stream = append(stream, r.data...)
	}

	entries := []xls.Entry{{Name: "Workbook", Data: stream}}
	return append(entries, b.streams...)
}

func (s *Sheet) emit(add func(uint16, []byte) int) sheetLayout {
	keys := make([][2]int, 0, len(s.cells))
	for k := range s.cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	rows := make(map[int][]int)
	var rowOrder []int
	minRow, maxRow, minCol, maxCol := 0, 0, 0, 0
	for i, k := range keys {
		if _, ok := rows[k[0]]; !ok {
			rowOrder = append(rowOrder, k[0])
		}
		rows[k[0]] = append(rows[k[0]], k[1])
		if i == 0 || k[0] < minRow {
			minRow = k[0]
		}
		if k[0]+1 > maxRow {
			maxRow = k[0] + 1
		}
		if i == 0 || k[1] < minCol {
			minCol = k[1]
		}
		if k[1]+1 > maxCol {
			maxCol = k[1] + 1
		}
	}

	var blocks [][]int
	for _, r := range rowOrder {
		n := len(blocks)
		if n == 0 || blocks[n-1][0]/rowsPerBlock != r/rowsPerBlock {
			blocks = append(blocks, nil)
			n++
		}
		blocks[n-1] = append(blocks[n-1], r)
	}

	var l sheetLayout
	l.bof = add(0x0809, bof(0x0010))
	index := make([]byte, 16+4*len(blocks))
	binary.LittleEndian.PutUint32(index[4:], uint32(minRow))
	binary.LittleEndian.PutUint32(index[8:], uint32(maxRow))
	l.index = add(0x020B, index)
	l.defCol = add(0x0055, u16s(8))
	dims := make([]byte, 14)
	binary.LittleEndian.PutUint32(dims[0:], uint32(minRow))
	binary.LittleEndian.PutUint32(dims[4:], uint32(maxRow))
	binary.LittleEndian.PutUint16(dims[8:], uint16(minCol))
	binary.LittleEndian.PutUint16(dims[10:], uint16(maxCol))
	add(0x0200, dims)

	for _, blk := range blocks {
		var bl blockLayout
		for i, r := range blk {
			cols := rows[r]
			row := make([]byte, 16)
			binary.LittleEndian.PutUint16(row[0:], uint16(r))
			binary.LittleEndian.PutUint16(row[2:], uint16(cols[0]))
			binary.LittleEndian.PutUint16(row[4:], uint16(cols[len(cols)-1]+1))
			binary.LittleEndian.PutUint16(row[6:], 0x00FF)
			binary.LittleEndian.PutUint32(row[12:], 0x00000100)
			idx := add(0x0208, row)
			if i == 0 {
				bl.firstRow = idx
			}
		}
		for _, r := range blk {
			bl.firstCells = append(bl.firstCells, s.emitRow(r, rows[r], add))
		}
		bl.dbcell = add(0x00D7, make([]byte, 4+2*len(blk)))
		l.blocks = append(l.blocks, bl)
	}

	window := make([]byte, 18)
	binary.LittleEndian.PutUint16(window, 0x06B6)
	add(0x023E, window)
	add(0x000A, nil)
	return l
}

// emitRow writes the cell records of one row and returns the index of the
// first one. Adjacent blanks become MULBLANK and adjacent RK numbers
// become MULRK.
func (s *Sheet) emitRow(row int, cols []int, add func(uint16, []byte) int) int {
	first := -1
	track := func(i int) {
		if first < 0 {
			first = i
		}
	}

	for i := 0; i < len(cols); {
		c := s.cells[[2]int{row, cols[i]}]
		j := i + 1
		switch {
		case c.kind == kindBlank:
			for j < len(cols) && cols[j] == cols[j-1]+1 && s.cells[[2]int{row, cols[j]}].kind == kindBlank {
				j++
			}
			if j-i == 1 {
				track(add(0x0201, cellHeader(row, cols[i], c.xf)))
				break
			}
			data := make([]byte, 0, 6+2*(j-i))
			data = append(data, u16s(uint16(row))...)
			data = append(data, u16s(uint16(cols[i]))...)
			for k := i; k < j; k++ {
				data = append(data, u16s(s.cells[[2]int{row, cols[k]}].xf)...)
			}
			data = append(data, u16s(uint16(cols[j-1]))...)
			track(add(0x00BE, data))
		case c.kind == kindNumber && isRK(c.num):
			for j < len(cols) && cols[j] == cols[j-1]+1 {
				n := s.cells[[2]int{row, cols[j]}]
				if n.kind != kindNumber || !isRK(n.num) {
					break
				}
				j++
			}
			if j-i == 1 {
				rk, _ := xls.EncodeRK(c.num)
				track(add(0x027E, append(cellHeader(row, cols[i], c.xf), u32s(rk)...)))
				break
			}
			data := make([]byte, 0, 6+6*(j-i))
			data = append(data, u16s(uint16(row))...)
			data = append(data, u16s(uint16(cols[i]))...)
			for k := i; k < j; k++ {
				n := s.cells[[2]int{row, cols[k]}]
				rk, _ := xls.EncodeRK(n.num)
				data = append(data, u16s(n.xf)...)
				data = append(data, u32s(rk)...)
			}
			data = append(data, u16s(uint16(cols[j-1]))...)
			track(add(0x00BD, data))
		default:
			track(s.emitCell(row, cols[i], c, add))
		}
		i = j
	}
	return first
}

func (s *Sheet) emitCell(row, col int, c cell, add func(uint16, []byte) int) int {
	h := cellHeader(row, col, c.xf)
	switch c.kind {
	case kindText:
		return add(0x00FD, append(h, u32s(uint32(s.book.sstIndex[c.text]))...))
	case kindLabel:
		return add(0x0204, append(h, unicodeString(c.text)...))
	case kindBool:
		v := byte(0)
		if c.b {
			v = 1
		}
		return add(0x0205, append(h, v, 0))
	case kindFormulaNumber:
		data := append(h, f64s(c.num)...)
		data = append(data, 0, 0, 0, 0, 0, 0)
		data = append(data, u16s(9)...)
		data = append(data, 0x1F)
		data = append(data, f64s(c.num)...)
		return add(0x0006, data)
	case kindFormulaText:
		data := append(h, 0, 0, 0, 0, 0, 0, 0xFF, 0xFF)
		data = append(data, 0, 0, 0, 0, 0, 0)
		rgce := append([]byte{0x17}, shortString(c.text)...)
		data = append(data, u16s(uint16(len(rgce)))...)
		data = append(data, rgce...)
		idx := add(0x0006, data)
		add(0x0207, unicodeString(c.text))
		return idx
	default:
		return add(0x0203, append(h, f64s(c.num)...))
	}
}

func (b *Book) sstRecords() []rec {
	limit := b.sstLimit
	cur := make([]byte, 8)
	binary.LittleEndian.PutUint32(cur[0:], uint32(len(b.sst)))
	binary.LittleEndian.PutUint32(cur[4:], uint32(len(b.sst)))
	var out []rec
	typ := uint16(0x00FC)
	flush := func() {
		out = append(out, rec{typ, cur})
		typ = 0x003C
		cur = nil
	}

	for _, str := range b.sst {
		units := utf16.Encode([]rune(str))
		high := false
		for _, u := range units {
			if u > 0xFF {
				high = true
			}
		}
		width := 1
		flags := byte(0)
		if high {
			width, flags = 2, 1
		}
		if len(cur)+3+width > limit && len(units) > 0 || len(cur)+3 > limit {
			flush()
		}
		cur = append(cur, u16s(uint16(len(units)))...)
		cur = append(cur, flags)
		for _, u := range units {
			if len(cur)+width > limit {
				flush()
				cur = append(cur, flags)
			}
			if high {
				cur = append(cur, u16s(u)...)
			} else {
				cur = append(cur, byte(u))
			}
		}
	}
	flush()
	return out
}

func isRK(v float64) bool {
	_, ok := xls.EncodeRK(v)
	return ok
}

func bof(dt uint16) []byte {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint16(data[0:], 0x0600)
	binary.LittleEndian.PutUint16(data[2:], dt)
	binary.LittleEndian.PutUint16(data[4:], 0x0DBB)
	binary.LittleEndian.PutUint16(data[6:], 0x07CC)
	return data
}

func xf(format uint16, style bool) []byte {
	data := make([]byte, 20)
	binary.LittleEndian.PutUint16(data[2:], format)
	if style {
		binary.LittleEndian.PutUint16(data[4:], 0xFFF5)
	}
	return data
}

func cellHeader(row, col int, xf uint16) []byte {
	data := make([]byte, 6, 14)
	binary.LittleEndian.PutUint16(data[0:], uint16(row))
	binary.LittleEndian.PutUint16(data[2:], uint16(col))
	binary.LittleEndian.PutUint16(data[4:], xf)
	return data
}

func u16s(v uint16) []byte {
	out := make([]byte, 2)
	binary.LittleEndian.PutUint16(out, v)
	return out
}

func u32s(v uint32) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, v)
	return out
}

func f64s(v float64) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, math.Float64bits(v))
	return out
}

func unicodeString(v string) []byte {
	units := utf16.Encode([]rune(v))
	out := append(u16s(uint16(len(units))), 1)
	for _, u := range units {
		out = append(out, u16s(u)...)
	}
	return out
}

func shortString(v string) []byte {
	units := utf16.Encode([]rune(v))
	out := []byte{byte(len(units)), 1}
	for _, u := range units {
		out = append(out, u16s(u)...)
	}
	return out
}
