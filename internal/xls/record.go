package xls

import (
	"encoding/binary"
	"math"
)

// BIFF8 record identifiers.
const (
	recFormula    uint16 = 0x0006
	recEOF        uint16 = 0x000A
	recDateMode   uint16 = 0x0022
	recContinue   uint16 = 0x003C
	recBoundSheet uint16 = 0x0085
	recMulRK      uint16 = 0x00BD
	recMulBlank   uint16 = 0x00BE
	recRString    uint16 = 0x00D6
	recDBCell     uint16 = 0x00D7
	recXF         uint16 = 0x00E0
	recSST        uint16 = 0x00FC
	recLabelSST   uint16 = 0x00FD
	recExtSST     uint16 = 0x00FF
	recDimensions uint16 = 0x0200
	recBlank      uint16 = 0x0201
	recNumber     uint16 = 0x0203
	recLabel      uint16 = 0x0204
	recBoolErr    uint16 = 0x0205
	recString     uint16 = 0x0207
	recRow        uint16 = 0x0208
	recIndex      uint16 = 0x020B
	recArray      uint16 = 0x0221
	recTable      uint16 = 0x0236
	recRK         uint16 = 0x027E
	recFormat     uint16 = 0x041E
	recShrFmla    uint16 = 0x04BC
	recBOF        uint16 = 0x0809
)

const (
	biff8Version  uint16 = 0x0600
	bofGlobals    uint16 = 0x0005
	bofWorksheet  uint16 = 0x0010
	sheetTypeWork byte   = 0x00
	recHeaderSize        = 4
	rowRecordSize        = recHeaderSize + 16
)

// record is one BIFF record. pos is the offset of the record header in the
// stream it was read from, or -1 when the record was created by an edit.
// anchor is the source offset that pointers resolve to after the record
// list changes; records produced by replacing a record share its anchor.
type record struct {
	typ    uint16
	data   []byte
	pos    int
	anchor int
}

func (r record) size() int {
	return recHeaderSize + len(r.data)
}

// splitRecords cuts a BIFF stream into records. A trailing record whose
// declared length runs past the end of the stream is returned as tail.
func splitRecords(stream []byte) ([]record, []byte) {
	var recs []record
	off := 0
	for off+recHeaderSize <= len(stream) {
		typ := binary.LittleEndian.Uint16(stream[off:])
		size := int(binary.LittleEndian.Uint16(stream[off+2:]))
		end := off + recHeaderSize + size
		if end > len(stream) {
			break
		}
		recs = append(recs, record{
			typ:    typ,
			data:   stream[off+recHeaderSize : end],
			pos:    off,
			anchor: off,
		})
		off = end
	}
	return recs, stream[off:]
}

func u16(b []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(b[off:])
}

func u32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off:])
}

func putU16(b []byte, off int, v uint16) {
	binary.LittleEndian.PutUint16(b[off:], v)
}

func putU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:], v)
}

// decodeRK expands the 30-bit packed RK number representation.
func decodeRK(rk uint32) float64 {
	var v float64
	if rk&0x02 != 0 {
		v = float64(int32(rk) >> 2)
	} else {
		v = math.Float64frombits(uint64(rk&0xFFFFFFFC) << 32)
	}
	if rk&0x01 != 0 {
		v /= 100
	}
	return v
}

// EncodeRK packs v as an RK value when that is lossless.
func EncodeRK(v float64) (uint32, bool) {
	if i, ok := rkInt(v); ok {
		return uint32(i<<2) | 0x02, true
	}
	if i, ok := rkInt(v * 100); ok && float64(i)/100 == v {
		return uint32(i<<2) | 0x03, true
	}
	bits := math.Float64bits(v)
	if bits&0x00000003FFFFFFFF == 0 {
		return uint32(bits >> 32), true
	}
	if bits100 := math.Float64bits(v * 100); bits100&0x00000003FFFFFFFF == 0 &&
		math.Float64frombits(bits100)/100 == v {
		return uint32(bits100>>32) | 0x01, true
	}
	return 0, false
}

func rkInt(v float64) (int32, bool) {
	if v != math.Trunc(v) || v < -(1<<29) || v >= 1<<29 {
		return 0, false
	}
	return int32(v), true
}

func isCellRecord(typ uint16) bool {
	switch typ {
	case recNumber, recRK, recMulRK, recBlank, recMulBlank, recLabelSST,
		recLabel, recRString, recBoolErr, recFormula:
		return true
	}
	return false
}

// cellSpan returns the row and the inclusive column range a cell record
// covers. ok is false for records too short to carry their header.
func cellSpan(r record) (row, first, last int, ok bool) {
	switch r.typ {
	case recMulRK, recMulBlank:
		if len(r.data) < 6 {
			return 0, 0, 0, false
		}
		row = int(u16(r.data, 0))
		first = int(u16(r.data, 2))
		last = int(u16(r.data, len(r.data)-2))
		if last < first {
			return 0, 0, 0, false
		}
		return row, first, last, true
	default:
		if !isCellRecord(r.typ) || len(r.data) < 6 {
			return 0, 0, 0, false
		}
		row = int(u16(r.data, 0))
		first = int(u16(r.data, 2))
		return row, first, first, true
	}
}

func numberRecord(row, col int, xf uint16, v float64) record {
	data := make([]byte, 14)
	putU16(data, 0, uint16(row))
	putU16(data, 2, uint16(col))
	putU16(data, 4, xf)
	binary.LittleEndian.PutUint64(data[6:], math.Float64bits(v))
	return record{typ: recNumber, data: data, pos: -1, anchor: -1}
}

func rkRecord(row, col int, xf uint16, rk uint32) record {
	data := make([]byte, 10)
	putU16(data, 0, uint16(row))
	putU16(data, 2, uint16(col))
	putU16(data, 4, xf)
	putU32(data, 6, rk)
	return record{typ: recRK, data: data, pos: -1, anchor: -1}
}

func blankRecord(row, col int, xf uint16) record {
	data := make([]byte, 6)
	putU16(data, 0, uint16(row))
	putU16(data, 2, uint16(col))
	putU16(data, 4, xf)
	return record{typ: recBlank, data: data, pos: -1, anchor: -1}
}

func labelSSTRecord(row, col int, xf uint16, isst int) record {
	data := make([]byte, 10)
	putU16(data, 0, uint16(row))
	putU16(data, 2, uint16(col))
	putU16(data, 4, xf)
	putU32(data, 6, uint32(isst))
	return record{typ: recLabelSST, data: data, pos: -1, anchor: -1}
}

func labelRecord(row, col int, xf uint16, text string) record {
	data := make([]byte, 6, 6+3+2*len(text))
	putU16(data, 0, uint16(row))
	putU16(data, 2, uint16(col))
	putU16(data, 4, xf)
	data = append(data, encodeUnicodeString(text)...)
	return record{typ: recLabel, data: data, pos: -1, anchor: -1}
}

// mulRKRecord packs consecutive RK cells starting at first.
func mulRKRecord(row, first int, xfs []uint16, rks []uint32) record {
	data := make([]byte, 4+6*len(rks)+2)
	putU16(data, 0, uint16(row))
	putU16(data, 2, uint16(first))
	for i := range rks {
		putU16(data, 4+6*i, xfs[i])
		putU32(data, 6+6*i, rks[i])
	}
	putU16(data, len(data)-2, uint16(first+len(rks)-1))
	return record{typ: recMulRK, data: data, pos: -1, anchor: -1}
}

func mulBlankRecord(row, first int, xfs []uint16) record {
	data := make([]byte, 4+2*len(xfs)+2)
	putU16(data, 0, uint16(row))
	putU16(data, 2, uint16(first))
	for i, xf := range xfs {
		putU16(data, 4+2*i, xf)
	}
	putU16(data, len(data)-2, uint16(first+len(xfs)-1))
	return record{typ: recMulBlank, data: data, pos: -1, anchor: -1}
}
