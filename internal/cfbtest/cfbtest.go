// Package cfbtest writes small OLE2 compound files for tests: legacy Word
// documents with a piece table and BIFF8 workbooks.
package cfbtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"
)

const (
	sectorSize   = 512
	miniCutoff   = 4096
	fatEntries   = sectorSize / 4
	dirEntrySize = 128

	freeSect   uint32 = 0xFFFFFFFF
	endOfChain uint32 = 0xFFFFFFFE
	fatSect    uint32 = 0xFFFFFFFD
	noStream   uint32 = 0xFFFFFFFF
)

var le = binary.LittleEndian

// Stream is one named stream of the root storage.
type Stream struct {
	Name string
	Data []byte
}

// Build writes a version 3 compound file holding streams under the root
// storage. Streams are zero-padded to the mini stream cutoff so every one
// lives in regular sectors. Sector 0 is the only FAT sector and sector 1
// the only directory sector, which limits a file to three streams.
func Build(streams ...Stream) []byte {
	if len(streams) > sectorSize/dirEntrySize-1 {
		panic(fmt.Sprintf("cfbtest: %d streams, at most 3", len(streams)))
	}

	fat := make([]uint32, fatEntries)
	for i := range fat {
		fat[i] = freeSect
	}
	fat[0] = fatSect
	fat[1] = endOfChain

	var body bytes.Buffer
	starts := make([]uint32, len(streams))
	sizes := make([]uint32, len(streams))
	next := uint32(2)
	for i, s := range streams {
		data := pad(s.Data)
		n := uint32(len(data) / sectorSize)
		if next+n > fatEntries {
			panic("cfbtest: streams exceed one FAT sector")
		}
		starts[i], sizes[i] = next, uint32(len(data))
		for j := uint32(0); j < n; j++ {
			fat[next+j] = next + j + 1
		}
		fat[next+n-1] = endOfChain
		next += n
		body.Write(data)
	}

	out := make([]byte, 3*sectorSize, 3*sectorSize+body.Len())
	writeHeader(out[:sectorSize])
	for i, v := range fat {
		le.PutUint32(out[sectorSize+i*4:], v)
	}

	dir := out[2*sectorSize : 3*sectorSize]
	child := noStream
	if len(streams) > 0 {
		child = 1
	}
	writeEntry(dir[0:], "Root Entry", 5, child, noStream, endOfChain, 0)
	for i, s := range streams {
		right := noStream
		if i+1 < len(streams) {
			right = uint32(i + 2)
		}
		writeEntry(dir[(i+1)*dirEntrySize:], s.Name, 2, noStream, right, starts[i], sizes[i])
	}
	for i := len(streams) + 1; i < sectorSize/dirEntrySize; i++ {
		e := dir[i*dirEntrySize:]
		le.PutUint32(e[68:], noStream)
		le.PutUint32(e[72:], noStream)
		le.PutUint32(e[76:], noStream)
	}
	return append(out, body.Bytes()...)
}

func pad(data []byte) []byte {
	n := len(data)
	if n < miniCutoff {
		n = miniCutoff
	}
	if r := n % sectorSize; r != 0 {
		n += sectorSize - r
	}
	out := make([]byte, n)
	copy(out, data)
	return out
}

func writeHeader(h []byte) {
	copy(h, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
	le.PutUint16(h[24:], 0x003E) // minor version
	le.PutUint16(h[26:], 0x0003) // major version
	le.PutUint16(h[28:], 0xFFFE) // byte order
	le.PutUint16(h[30:], 0x0009) // sector shift
	le.PutUint16(h[32:], 0x0006) // mini sector shift
	le.PutUint32(h[44:], 1)      // FAT sectors
	le.PutUint32(h[48:], 1)      // first directory sector
	le.PutUint32(h[56:], miniCutoff)
	le.PutUint32(h[60:], endOfChain) // no mini FAT
	le.PutUint32(h[68:], endOfChain) // no DIFAT sectors
	le.PutUint32(h[76:], 0)          // FAT sector 0
	for off := 80; off < sectorSize; off += 4 {
		le.PutUint32(h[off:], freeSect)
	}
}

func writeEntry(e []byte, name string, objectType byte, child, right, start, size uint32) {
	u := utf16.Encode([]rune(name))
	for i, c := range u {
		le.PutUint16(e[i*2:], c)
	}
	le.PutUint16(e[64:], uint16((len(u)+1)*2))
	e[66] = objectType
	e[67] = 1 // black
	le.PutUint32(e[68:], noStream)
	le.PutUint32(e[72:], right)
	le.PutUint32(e[76:], child)
	le.PutUint32(e[116:], start)
	le.PutUint32(e[120:], size)
}

// Piece is one run of document text. Paragraphs end with '\r'. Compressed
// pieces are stored as cp1252, others as UTF-16LE.
type Piece struct {
	Text       string
	Compressed bool
}

// WordDocument builds a legacy .doc file whose text is described by the
// piece table of a 0Table stream.
func WordDocument(pieces ...Piece) []byte {
	const (
		textAt = 0x400
		clxAt  = 0x10
	)
	wd := make([]byte, textAt)
	le.PutUint16(wd[0x00:], 0xA5EC) // wIdent
	le.PutUint16(wd[0x02:], 0x00C1) // nFib

	var cps, fcs []uint32
	cp := uint32(0)
	for _, p := range pieces {
		cps = append(cps, cp)
		if p.Compressed {
			enc, err := charmap.Windows1252.NewEncoder().Bytes([]byte(p.Text))
			if err != nil {
				panic(fmt.Sprintf("cfbtest: %q is not cp1252: %v", p.Text, err))
			}
			fcs = append(fcs, uint32(len(wd))*2|0x40000000)
			wd = append(wd, enc...)
			cp += uint32(len(enc))
			continue
		}
		u := utf16.Encode([]rune(p.Text))
		fcs = append(fcs, uint32(len(wd)))
		for _, c := range u {
			wd = le.AppendUint16(wd, c)
		}
		cp += uint32(len(u))
	}
	cps = append(cps, cp)

	var plc []byte
	for _, c := range cps {
		plc = le.AppendUint32(plc, c)
	}
	for _, fc := range fcs {
		plc = le.AppendUint16(plc, 0)
		plc = le.AppendUint32(plc, fc)
		plc = le.AppendUint16(plc, 0)
	}
	table := make([]byte, clxAt)
	table = append(table, 0x02)
	table = le.AppendUint32(table, uint32(len(plc)))
	table = append(table, plc...)

	le.PutUint32(wd[0x01A2:], clxAt)
	le.PutUint32(wd[0x01A6:], uint32(len(table)-clxAt))
	return Build(Stream{Name: "WordDocument", Data: wd}, Stream{Name: "0Table", Data: table})
}

// Cell is one workbook cell. Value is a string (LABEL) or a float64
// (NUMBER).
type Cell struct {
	Row, Col int
	Value    interface{}
}

// Sheet is one worksheet of a workbook.
type Sheet struct {
	Name  string
	Cells []Cell
}

// BIFF8 record types.
const (
	recBOF        = 0x0809
	recEOF        = 0x000A
	recBoundSheet = 0x0085
	recLabel      = 0x0204
	recNumber     = 0x0203
)

// Workbook builds a legacy .xls file with a BIFF8 Workbook stream.
func Workbook(sheets ...Sheet) []byte {
	var globals bytes.Buffer
	record(&globals, recBOF, bof(0x0005))
	positions := make([]int, len(sheets))
	for i, s := range sheets {
		name := utf16.Encode([]rune(s.Name))
		data := make([]byte, 8, 8+2*len(name))
		data[6] = byte(len(name))
		data[7] = 1 // UTF-16 characters
		for _, c := range name {
			data = le.AppendUint16(data, c)
		}
		positions[i] = globals.Len() + 4
		record(&globals, recBoundSheet, data)
	}
	record(&globals, recEOF, nil)

	stream := globals.Bytes()
	for i, s := range sheets {
		le.PutUint32(stream[positions[i]:], uint32(len(stream)))
		var sub bytes.Buffer
		record(&sub, recBOF, bof(0x0010))
		for _, c := range s.Cells {
			head := make([]byte, 6)
			le.PutUint16(head[0:], uint16(c.Row))
			le.PutUint16(head[2:], uint16(c.Col))
			switch v := c.Value.(type) {
			case string:
				u := utf16.Encode([]rune(v))
				data := le.AppendUint16(head, uint16(len(u)))
				data = append(data, 1)
				for _, ch := range u {
					data = le.AppendUint16(data, ch)
				}
				record(&sub, recLabel, data)
			case float64:
				record(&sub, recNumber, le.AppendUint64(head, math.Float64bits(v)))
			default:
				panic(fmt.Sprintf("cfbtest: unsupported cell value %T", c.Value))
			}
		}
		record(&sub, recEOF, nil)
		stream = append(stream, sub.Bytes()...)
	}
	return Build(Stream{Name: "Workbook", Data: stream})
}

func bof(dt uint16) []byte {
	data := make([]byte, 16)
	le.PutUint16(data[0:], 0x0600) // BIFF8
	le.PutUint16(data[2:], dt)
	return data
}

func record(buf *bytes.Buffer, typ uint16, data []byte) {
	var head [4]byte
	le.PutUint16(head[0:], typ)
	le.PutUint16(head[2:], uint16(len(data)))
	buf.Write(head[:])
	buf.Write(data)
}
