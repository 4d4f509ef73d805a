package xls

import (
	"errors"
	"unicode/utf16"
)

var errShortString = errors.New("string runs past end of record")

const (
	strHighByte = 0x01
	strExtSt    = 0x04
	strRichSt   = 0x08
)

// decodeChars reads n characters stored either as Latin-1 bytes or as
// UTF-16LE code units.
func decodeChars(b []byte, n int, high bool) (string, int, error) {
	if !high {
		if len(b) < n {
			return "", 0, errShortString
		}
		runes := make([]rune, n)
		for i := 0; i < n; i++ {
			runes[i] = rune(b[i])
		}
		return string(runes), n, nil
	}
	if len(b) < 2*n {
		return "", 0, errShortString
	}
	units := make([]uint16, n)
	for i := 0; i < n; i++ {
		units[i] = u16(b, 2*i)
	}
	return string(utf16.Decode(units)), 2 * n, nil
}

// decodeUnicodeString parses an XLUnicodeString (16-bit length) and
// returns the text and the number of bytes consumed. Rich text runs and
// phonetic blocks, when flagged, are skipped.
func decodeUnicodeString(b []byte) (string, int, error) {
	if len(b) < 3 {
		return "", 0, errShortString
	}
	n := int(u16(b, 0))
	flags := b[2]
	off := 3
	var runs, ext int
	if flags&strRichSt != 0 {
		if len(b) < off+2 {
			return "", 0, errShortString
		}
		runs = int(u16(b, off))
		off += 2
	}
	if flags&strExtSt != 0 {
		if len(b) < off+4 {
			return "", 0, errShortString
		}
		ext = int(u32(b, off))
		off += 4
	}
	s, used, err := decodeChars(b[off:], n, flags&strHighByte != 0)
	if err != nil {
		return "", 0, err
	}
	off += used + 4*runs + ext
	if off > len(b) {
		off = len(b)
	}
	return s, off, nil
}

// decodeShortString parses a ShortXLUnicodeString (8-bit length).
func decodeShortString(b []byte) (string, error) {
	if len(b) < 2 {
		return "", errShortString
	}
	s, _, err := decodeChars(b[2:], int(b[0]), b[1]&strHighByte != 0)
	return s, err
}

// encodeUnicodeString writes text as an XLUnicodeString, compressed when
// every character fits in a single byte.
func encodeUnicodeString(text string) []byte {
	units := utf16.Encode([]rune(text))
	compressed := true
	for _, u := range units {
		if u > 0xFF {
			compressed = false
			break
		}
	}
	if compressed {
		out := make([]byte, 3, 3+len(units))
		putU16(out, 0, uint16(len(units)))
		for _, u := range units {
			out = append(out, byte(u))
		}
		return out
	}
	out := make([]byte, 3+2*len(units))
	putU16(out, 0, uint16(len(units)))
	out[2] = strHighByte
	for i, u := range units {
		putU16(out, 3+2*i, u)
	}
	return out
}

// sstReader walks the SST payload and its CONTINUE records as one logical
// buffer. Character data split across a record boundary restarts with a
// fresh option byte in the next record.
type sstReader struct {
	segs [][]byte
	seg  int
	off  int
}

func (r *sstReader) advance() bool {
	for r.seg < len(r.segs) && r.off >= len(r.segs[r.seg]) {
		r.seg++
		r.off = 0
	}
	return r.seg < len(r.segs)
}

func (r *sstReader) read(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		if !r.advance() {
			return nil, errShortString
		}
		cur := r.segs[r.seg][r.off:]
		take := n - len(out)
		if take > len(cur) {
			take = len(cur)
		}
		out = append(out, cur[:take]...)
		r.off += take
	}
	return out, nil
}

func (r *sstReader) skip(n int) error {
	_, err := r.read(n)
	return err
}

func (r *sstReader) chars(n int, high bool) (string, error) {
	units := make([]uint16, 0, n)
	for len(units) < n {
		if r.seg >= len(r.segs) {
			return "", errShortString
		}
		if r.off >= len(r.segs[r.seg]) {
			r.seg++
			r.off = 0
			if r.seg >= len(r.segs) || len(r.segs[r.seg]) == 0 {
				return "", errShortString
			}
			high = r.segs[r.seg][0]&strHighByte != 0
			r.off = 1
			continue
		}
		cur := r.segs[r.seg][r.off:]
		if high {
			for len(cur) >= 2 && len(units) < n {
				units = append(units, u16(cur, 0))
				cur = cur[2:]
				r.off += 2
			}
			if len(cur) == 1 {
				return "", errShortString
			}
		} else {
			for len(cur) >= 1 && len(units) < n {
				units = append(units, uint16(cur[0]))
				cur = cur[1:]
				r.off++
			}
		}
	}
	return string(utf16.Decode(units)), nil
}

// parseSST decodes the shared string table. Strings decoded before a
// truncation are kept.
func parseSST(segs [][]byte) ([]string, error) {
	if len(segs) == 0 || len(segs[0]) < 8 {
		return nil, errShortString
	}
	unique := int(u32(segs[0], 4))
	r := &sstReader{segs: segs, off: 8}
	strs := make([]string, 0, unique)
	for i := 0; i < unique; i++ {
		hdr, err := r.read(3)
		if err != nil {
			return strs, err
		}
		n := int(u16(hdr, 0))
		flags := hdr[2]
		var runs, ext int
		if flags&strRichSt != 0 {
			b, err := r.read(2)
			if err != nil {
				return strs, err
			}
			runs = int(u16(b, 0))
		}
		if flags&strExtSt != 0 {
			b, err := r.read(4)
			if err != nil {
				return strs, err
			}
			ext = int(u32(b, 0))
		}
		s, err := r.chars(n, flags&strHighByte != 0)
		if err != nil {
			return strs, err
		}
		strs = append(strs, s)
		if err := r.skip(4*runs + ext); err != nil {
			return strs, err
		}
	}
	return strs, nil
}
