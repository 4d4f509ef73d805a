package xls

import (
	"sort"
)

// Bytes serializes the workbook into a compound file. Stream offsets
// stored in BOUNDSHEET8, INDEX, DBCELL and EXTSST records are re-based
// onto the new record layout; every other stream is written unchanged.
func (b *Workbook) Bytes() ([]byte, error) {
	stream := b.stream()
	entries := make([]Entry, len(b.entries))
	copy(entries, b.entries)
	entries[b.book].Data = stream
	return WriteContainer(entries), nil
}

// positionMap translates offsets of the source stream to offsets of the
// serialized one.
type positionMap struct {
	exact   map[int]int
	anchors []int
}

func (m positionMap) translate(old int) int {
	if v, ok := m.exact[old]; ok {
		return v
	}
	i := sort.SearchInts(m.anchors, old+1) - 1
	if i < 0 {
		return old
	}
	a := m.anchors[i]
	return m.exact[a] + old - a
}

func (b *Workbook) stream() []byte {
	offsets := make([]int, len(b.recs))
	pm := positionMap{exact: make(map[int]int)}
	size := 0
	for i, r := range b.recs {
		offsets[i] = size
		if r.anchor >= 0 {
			if _, ok := pm.exact[r.anchor]; !ok {
				pm.exact[r.anchor] = size
				pm.anchors = append(pm.anchors, r.anchor)
			}
		}
		size += r.size()
	}
	sort.Ints(pm.anchors)

	out := make([]byte, size, size+len(b.tail))
	for i, r := range b.recs {
		off := offsets[i]
		putU16(out, off, r.typ)
		putU16(out, off+2, uint16(len(r.data)))
		copy(out[off+recHeaderSize:], r.data)
	}

	for i, r := range b.recs {
		d := out[offsets[i]+recHeaderSize : offsets[i]+r.size()]
		switch r.typ {
		case recBoundSheet:
			if len(d) >= 4 {
				putU32(d, 0, uint32(pm.translate(int(u32(d, 0)))))
			}
		case recIndex:
			if len(d) < 16 {
				continue
			}
			if xf := u32(d, 12); xf != 0 {
				putU32(d, 12, uint32(pm.translate(int(xf))))
			}
			for off := 16; off+4 <= len(d); off += 4 {
				putU32(d, off, uint32(pm.translate(int(u32(d, off)))))
			}
		case recDBCell:
			if r.pos < 0 || len(d) < 4 {
				continue
			}
			firstRow := r.pos - int(u32(d, 0))
			newFirstRow := pm.translate(firstRow)
			putU32(d, 0, uint32(offsets[i]-newFirstRow))

			base, newBase := firstRow+rowRecordSize, newFirstRow+rowRecordSize
			for off := 4; off+2 <= len(d); off += 2 {
				cell := base + int(u16(d, off))
				newCell := pm.translate(cell)
				delta := newCell - newBase
				if delta < 0 || delta > 0xFFFF {
					delta = 0
				}
				putU16(d, off, uint16(delta))
				base, newBase = cell, newCell
			}
		case recExtSST:
			for off := 2; off+8 <= len(d); off += 8 {
				if ib := u32(d, off); ib != 0 {
					putU32(d, off, uint32(pm.translate(int(ib))))
				}
			}
		}
	}

	return append(out, b.tail...)
}
