package xls

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
)

const (
	sectorSize     = 512
	miniSectorSize = 64
	miniCutoff     = 4096
	dirEntrySize   = 128
	headerDIFAT    = 109
	maxNameChars   = 31

	freeSect   uint32 = 0xFFFFFFFF
	endOfChain uint32 = 0xFFFFFFFE
	fatSect    uint32 = 0xFFFFFFFD
	difSect    uint32 = 0xFFFFFFFC
	noStream   uint32 = 0xFFFFFFFF

	typeStorage byte = 1
	typeStream  byte = 2
	typeRoot    byte = 5
)

var cfbSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// Class id Excel stamps on the root storage of a workbook.
var excelCLSID = [16]byte{0x20, 0x08, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0xC0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x46}

// Entry is one storage or stream of a compound file. Path lists the names
// of the enclosing storages below the root.
type Entry struct {
	Path []string
	Name string
	Dir  bool
	Data []byte
}

// ReadContainer lists every storage and stream of a compound file.
func ReadContainer(data []byte) ([]Entry, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open compound file: %w", err)
	}

	var entries []Entry
	raw := make(map[string]string)
	for {
		f, err := doc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to walk compound file: %w", err)
		}
		if len(f.Path) == 0 && f.Name == "Root Entry" {
			continue
		}

		entry := Entry{
			Path: make([]string, len(f.Path)),
			Name: rawName(f),
			Dir:  f.FileInfo().IsDir(),
		}
		for i := range f.Path {
			entry.Path[i] = f.Path[i]
			if name, ok := raw[strings.Join(f.Path[:i+1], "\x00")]; ok {
				entry.Path[i] = name
			}
		}
		raw[strings.Join(append(append([]string(nil), f.Path...), f.Name), "\x00")] = entry.Name
		if !entry.Dir {
			buf, err := io.ReadAll(f)
			if err != nil {
				return nil, fmt.Errorf("failed to read stream %q: %w", f.Name, err)
			}
			entry.Data = buf
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// rawName restores the leading control character mscfb moves out of the
// name of property set streams such as \x05SummaryInformation.
func rawName(f *mscfb.File) string {
	if f.Initial != 0 && !unicode.IsPrint(rune(f.Initial)) {
		return string(rune(f.Initial)) + f.Name
	}
	return f.Name
}

type dirNode struct {
	name     string
	kind     byte
	data     []byte
	children []*dirNode

	id    uint32
	left  uint32
	right uint32
	child uint32
	red   bool
	start uint32
}

func buildTree(entries []Entry) *dirNode {
	root := &dirNode{name: "Root Entry", kind: typeRoot}
	index := map[string]*dirNode{"": root}

	var storage func(path []string) *dirNode
	storage = func(path []string) *dirNode {
		key := strings.Join(path, "\x00")
		if n, ok := index[key]; ok {
			return n
		}
		parent := storage(path[:len(path)-1])
		n := &dirNode{name: path[len(path)-1], kind: typeStorage}
		parent.children = append(parent.children, n)
		index[key] = n
		return n
	}

	for _, e := range entries {
		if e.Dir {
			storage(append(append([]string(nil), e.Path...), e.Name))
			continue
		}
		parent := storage(e.Path)
		parent.children = append(parent.children, &dirNode{name: e.Name, kind: typeStream, data: e.Data})
	}
	return root
}

// lessName orders siblings the way compound file readers expect: shorter
// names first, then by upper-cased UTF-16 code units.
func lessName(a, b string) bool {
	ua := utf16.Encode([]rune(strings.ToUpper(a)))
	ub := utf16.Encode([]rune(strings.ToUpper(b)))
	if len(ua) != len(ub) {
		return len(ua) < len(ub)
	}
	for i := range ua {
		if ua[i] != ub[i] {
			return ua[i] < ub[i]
		}
	}
	return false
}

// linkSiblings arranges a storage's children as a balanced binary search
// tree. Every node is black except an incomplete bottom level, which is
// red, so every path carries the same number of black nodes.
func linkSiblings(children []*dirNode) uint32 {
	if len(children) == 0 {
		return noStream
	}
	sorted := append([]*dirNode(nil), children...)
	sort.SliceStable(sorted, func(i, j int) bool { return lessName(sorted[i].name, sorted[j].name) })

	depth := make(map[*dirNode]int, len(sorted))
	var balance func(nodes []*dirNode, d int) uint32
	balance = func(nodes []*dirNode, d int) uint32 {
		if len(nodes) == 0 {
			return noStream
		}
		mid := len(nodes) / 2
		n := nodes[mid]
		depth[n] = d
		n.left = balance(nodes[:mid], d+1)
		n.right = balance(nodes[mid+1:], d+1)
		return n.id
	}
	top := balance(sorted, 0)

	maxDepth := 0
	for _, d := range depth {
		if d > maxDepth {
			maxDepth = d
		}
	}
	if len(sorted) != 1<<(maxDepth+1)-1 {
		for n, d := range depth {
			n.red = d == maxDepth
		}
	}
	return top
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// WriteContainer serializes entries as a version 3 compound file with
// 512-byte sectors. A root "Workbook" stream shorter than the mini stream
// cutoff is zero-padded up to it, since Excel refuses smaller ones.
func WriteContainer(entries []Entry) []byte {
	padded := make([]Entry, len(entries))
	copy(padded, entries)
	for i, e := range padded {
		if !e.Dir && len(e.Path) == 0 && strings.EqualFold(e.Name, workbookStream) && len(e.Data) < miniCutoff {
			data := make([]byte, miniCutoff)
			copy(data, e.Data)
			padded[i].Data = data
		}
	}

	root := buildTree(padded)
	var nodes []*dirNode
	var walk func(n *dirNode)
	walk = func(n *dirNode) {
		n.id = uint32(len(nodes))
		nodes = append(nodes, n)
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(root)
	for _, n := range nodes {
		n.left, n.right, n.child = noStream, noStream, noStream
	}
	for _, n := range nodes {
		if n.kind != typeStream {
			n.child = linkSiblings(n.children)
		}
	}

	// Small streams live in the mini stream, addressed by the mini FAT.
	var mini []byte
	var miniFAT []uint32
	var big []*dirNode
	for _, n := range nodes {
		if n.kind != typeStream {
			continue
		}
		switch {
		case len(n.data) == 0:
			n.start = endOfChain
		case len(n.data) < miniCutoff:
			count := ceilDiv(len(n.data), miniSectorSize)
			first := len(miniFAT)
			for i := 0; i < count; i++ {
				if i == count-1 {
					miniFAT = append(miniFAT, endOfChain)
				} else {
					miniFAT = append(miniFAT, uint32(first+i+1))
				}
			}
			n.start = uint32(first)
			chunk := make([]byte, count*miniSectorSize)
			copy(chunk, n.data)
			mini = append(mini, chunk...)
		default:
			big = append(big, n)
		}
	}

	dirSecs := ceilDiv(len(nodes)*dirEntrySize, sectorSize)
	miniFATSecs := ceilDiv(len(miniFAT)*4, sectorSize)
	miniSecs := ceilDiv(len(mini), sectorSize)
	bigSecs := 0
	for _, n := range big {
		bigSecs += ceilDiv(len(n.data), sectorSize)
	}
	dataSecs := dirSecs + miniFATSecs + miniSecs + bigSecs

	fatSecs, difatSecs := 0, 0
	for {
		total := dataSecs + fatSecs + difatSecs
		needFAT := ceilDiv(total, sectorSize/4)
		needDIFAT := 0
		if needFAT > headerDIFAT {
			needDIFAT = ceilDiv(needFAT-headerDIFAT, sectorSize/4-1)
		}
		if needFAT == fatSecs && needDIFAT == difatSecs {
			break
		}
		fatSecs, difatSecs = needFAT, needDIFAT
	}

	fat := make([]uint32, fatSecs*sectorSize/4)
	for i := range fat {
		fat[i] = freeSect
	}
	next := 0
	alloc := func(count int, mark uint32) uint32 {
		if count == 0 {
			return endOfChain
		}
		start := next
		for i := 0; i < count; i++ {
			switch {
			case mark != 0:
				fat[start+i] = mark
			case i == count-1:
				fat[start+i] = endOfChain
			default:
				fat[start+i] = uint32(start + i + 1)
			}
		}
		next += count
		return uint32(start)
	}

	fatStart := alloc(fatSecs, fatSect)
	difatStart := alloc(difatSecs, difSect)
	dirStart := alloc(dirSecs, 0)
	miniFATStart := alloc(miniFATSecs, 0)
	miniStart := alloc(miniSecs, 0)
	for _, n := range big {
		n.start = alloc(ceilDiv(len(n.data), sectorSize), 0)
	}
	root.start = miniStart

	out := make([]byte, sectorSize*(1+next))
	sector := func(id uint32) []byte {
		off := sectorSize * (1 + int(id))
		return out[off : off+sectorSize]
	}
	writeChain := func(start uint32, data []byte) {
		for i := 0; i*sectorSize < len(data); i++ {
			end := (i + 1) * sectorSize
			if end > len(data) {
				end = len(data)
			}
			copy(sector(start+uint32(i)), data[i*sectorSize:end])
		}
	}

	// Header.
	h := out[:sectorSize]
	copy(h, cfbSignature)
	binary.LittleEndian.PutUint16(h[24:], 0x003E)
	binary.LittleEndian.PutUint16(h[26:], 0x0003)
	binary.LittleEndian.PutUint16(h[28:], 0xFFFE)
	binary.LittleEndian.PutUint16(h[30:], 9)
	binary.LittleEndian.PutUint16(h[32:], 6)
	binary.LittleEndian.PutUint32(h[44:], uint32(fatSecs))
	binary.LittleEndian.PutUint32(h[48:], dirStart)
	binary.LittleEndian.PutUint32(h[56:], miniCutoff)
	binary.LittleEndian.PutUint32(h[60:], miniFATStart)
	binary.LittleEndian.PutUint32(h[64:], uint32(miniFATSecs))
	binary.LittleEndian.PutUint32(h[68:], difatStart)
	binary.LittleEndian.PutUint32(h[72:], uint32(difatSecs))
	for i := 0; i < headerDIFAT; i++ {
		v := freeSect
		if i < fatSecs {
			v = fatStart + uint32(i)
		}
		binary.LittleEndian.PutUint32(h[76+4*i:], v)
	}

	// DIFAT sectors: 127 FAT sector ids then the next DIFAT sector.
	for d := 0; d < difatSecs; d++ {
		s := sector(difatStart + uint32(d))
		per := sectorSize/4 - 1
		for i := 0; i < per; i++ {
			v := freeSect
			if idx := headerDIFAT + d*per + i; idx < fatSecs {
				v = fatStart + uint32(idx)
			}
			binary.LittleEndian.PutUint32(s[4*i:], v)
		}
		nextDIFAT := endOfChain
		if d < difatSecs-1 {
			nextDIFAT = difatStart + uint32(d+1)
		}
		binary.LittleEndian.PutUint32(s[4*per:], nextDIFAT)
	}

	fatBytes := make([]byte, 4*len(fat))
	for i, v := range fat {
		binary.LittleEndian.PutUint32(fatBytes[4*i:], v)
	}
	writeChain(fatStart, fatBytes)

	dir := make([]byte, dirSecs*sectorSize)
	for i := len(nodes); i < dirSecs*sectorSize/dirEntrySize; i++ {
		e := dir[i*dirEntrySize : (i+1)*dirEntrySize]
		binary.LittleEndian.PutUint32(e[68:], noStream)
		binary.LittleEndian.PutUint32(e[72:], noStream)
		binary.LittleEndian.PutUint32(e[76:], noStream)
	}
	for _, n := range nodes {
		e := dir[int(n.id)*dirEntrySize : int(n.id+1)*dirEntrySize]
		name := utf16.Encode([]rune(n.name))
		if len(name) > maxNameChars {
			name = name[:maxNameChars]
		}
		for i, u := range name {
			binary.LittleEndian.PutUint16(e[2*i:], u)
		}
		binary.LittleEndian.PutUint16(e[64:], uint16(2*(len(name)+1)))
		e[66] = n.kind
		if !n.red {
			e[67] = 1
		}
		binary.LittleEndian.PutUint32(e[68:], n.left)
		binary.LittleEndian.PutUint32(e[72:], n.right)
		binary.LittleEndian.PutUint32(e[76:], n.child)
		switch n.kind {
		case typeRoot:
			copy(e[80:96], excelCLSID[:])
			binary.LittleEndian.PutUint32(e[116:], n.start)
			binary.LittleEndian.PutUint64(e[120:], uint64(len(mini)))
		case typeStream:
			binary.LittleEndian.PutUint32(e[116:], n.start)
			binary.LittleEndian.PutUint64(e[120:], uint64(len(n.data)))
		}
	}
	writeChain(dirStart, dir)

	miniFATBytes := make([]byte, miniFATSecs*sectorSize)
	for i := range miniFATBytes {
		miniFATBytes[i] = 0xFF
	}
	for i, v := range miniFAT {
		binary.LittleEndian.PutUint32(miniFATBytes[4*i:], v)
	}
	writeChain(miniFATStart, miniFATBytes)
	writeChain(miniStart, mini)
	for _, n := range big {
		writeChain(n.start, n.data)
	}

	return out
}
