package parser

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"

	"doctranslate/internal/model"
)

// ReadLegacyWordParagraphs returns every paragraph of a legacy OLE2 Word
// (.doc) file in order, blank ones included, so positions match the
// paragraph indices of the extracted bundle.
func ReadLegacyWordParagraphs(data []byte) ([]string, error) {
	var paras []string
	err := guard("doc", func() error {
		doc, err := mscfb.New(bytes.NewReader(data))
		if err != nil {
			return err
		}

		var wordDoc, table0, table1 []byte
		for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
			switch entry.Name {
			case "WordDocument":
				wordDoc, _ = io.ReadAll(entry)
			case "0Table":
				table0, _ = io.ReadAll(entry)
			case "1Table":
				table1, _ = io.ReadAll(entry)
			}
		}
		if len(wordDoc) == 0 {
			return errors.New("WordDocument stream not found")
		}

		text := extractWordText(wordDoc, table0, table1)
		text = filterWordFieldCodes(text)
		text = strings.TrimRight(text, "\n")
		for _, line := range strings.Split(text, "\n") {
			paras = append(paras, CleanText(line))
		}
		return nil
	})
	return paras, err
}

// parseWordLegacy emits one unit per non-blank paragraph of a .doc file.
func (dp *DocumentParser) parseWordLegacy(data []byte) (*model.Bundle, error) {
	paras, err := ReadLegacyWordParagraphs(data)
	if err != nil {
		return nil, model.Unreadable(model.FormatWord, err)
	}
	b := &model.Bundle{Format: model.FormatWord}
	for i, p := range paras {
		if p == "" {
			continue
		}
		b.Paragraphs = append(b.Paragraphs, model.Paragraph{Index: i + 1, Text: model.Text{Content: p}})
	}
	return b, nil
}

// extractWordText reads the document text through the piece table of the
// table stream selected by the FIB, falling back to a scan of the
// WordDocument stream.
func extractWordText(wordDoc, table0, table1 []byte) string {
	if len(wordDoc) < 12 {
		return ""
	}

	// FIB offset 0x000A, bit 9 (fWhichTblStm) selects 1Table over 0Table.
	flags := binary.LittleEndian.Uint16(wordDoc[0x0A:0x0C])
	tableData := table0
	if (flags>>9)&1 == 1 {
		tableData = table1
	}
	if len(tableData) == 0 {
		// Some writers set the flag wrongly; use whichever stream exists.
		tableData = table1
		if len(tableData) == 0 {
			tableData = table0
		}
	}

	if len(tableData) > 0 {
		if text := extractFromPieceTable(wordDoc, tableData); text != "" {
			return text
		}
	}
	return extractDirectText(wordDoc)
}

// Piece descriptor (PCD) layout inside PlcPcd.
const (
	pcdSize         = 8
	fcCompressedBit = 0x40000000
	fcMask          = 0x3FFFFFFF
	maxPieceChars   = 1000000
)

// extractFromPieceTable walks the CLX of the table stream (located by
// fcClx/lcbClx at FIB offset 0x01A2) and decodes every text piece.
func extractFromPieceTable(wordDoc, tableData []byte) string {
	if len(wordDoc) < 0x01AA {
		return ""
	}
	fcClx := int(binary.LittleEndian.Uint32(wordDoc[0x01A2:0x01A6]))
	lcbClx := int(binary.LittleEndian.Uint32(wordDoc[0x01A6:0x01AA]))
	if fcClx == 0 || lcbClx == 0 || fcClx+lcbClx > len(tableData) {
		return ""
	}
	clx := tableData[fcClx : fcClx+lcbClx]

	// Prc entries (0x01) precede the single Pcdt (0x02).
	pos := 0
	for pos < len(clx) && clx[pos] == 0x01 {
		if pos+3 > len(clx) {
			return ""
		}
		pos += 3 + int(binary.LittleEndian.Uint16(clx[pos+1:pos+3]))
	}
	if pos >= len(clx) || clx[pos] != 0x02 || pos+5 > len(clx) {
		return ""
	}
	lcb := int(binary.LittleEndian.Uint32(clx[pos+1 : pos+5]))
	pos += 5
	if lcb < 4+4+pcdSize || pos+lcb > len(clx) {
		return ""
	}
	plcPcd := clx[pos : pos+lcb]

	// n+1 character positions followed by n descriptors.
	n := (lcb - 4) / (4 + pcdSize)
	cps := (n + 1) * 4

	var sb strings.Builder
	for i := 0; i < n; i++ {
		cpStart := binary.LittleEndian.Uint32(plcPcd[i*4:])
		cpEnd := binary.LittleEndian.Uint32(plcPcd[(i+1)*4:])
		if cpEnd <= cpStart || cpEnd-cpStart > maxPieceChars {
			continue
		}
		fc := binary.LittleEndian.Uint32(plcPcd[cps+i*pcdSize+2:])
		decodePiece(&sb, wordDoc, fc, int(cpEnd-cpStart))
	}
	return sb.String()
}

// decodePiece appends one piece. Compressed pieces are cp1252 text at fc/2,
// others UTF-16LE at fc. Paragraph marks and line breaks become '\n', cell
// marks '\t'; other control characters are dropped.
func decodePiece(sb *strings.Builder, wordDoc []byte, fc uint32, chars int) {
	var runes []rune
	if fc&fcCompressedBit != 0 {
		off := int(fc&fcMask) / 2
		if off+chars > len(wordDoc) {
			return
		}
		text, err := charmap.Windows1252.NewDecoder().Bytes(wordDoc[off : off+chars])
		if err != nil {
			return
		}
		runes = []rune(string(text))
	} else {
		off := int(fc & fcMask)
		if off+chars*2 > len(wordDoc) {
			return
		}
		u16s := make([]uint16, chars)
		for j := range u16s {
			u16s[j] = binary.LittleEndian.Uint16(wordDoc[off+j*2:])
		}
		runes = utf16.Decode(u16s)
	}

	for _, r := range runes {
		switch {
		case r == 0x0D || r == 0x0B:
			sb.WriteByte('\n')
		case r == 0x07:
			sb.WriteByte('\t')
		case r >= 0x20 || r == 0x09:
			sb.WriteRune(r)
		}
	}
}

// extractDirectText scans the WordDocument stream for printable ASCII runs.
// It is used when no piece table can be read.
func extractDirectText(wordDoc []byte) string {
	var sb strings.Builder
	inText := false
	for _, b := range wordDoc {
		switch {
		case b == 0x0D || b == 0x0A:
			sb.WriteByte('\n')
			inText = true
		case (b >= 0x20 && b < 0x7F) || b == 0x09:
			sb.WriteByte(b)
			inText = true
		default:
			if inText {
				sb.WriteByte('\n')
			}
			inText = false
		}
	}
	return sb.String()
}

// wordFieldCodes are field instructions that leak into piece-table text.
var wordFieldCodes = []string{
	"HYPERLINK",
	"PAGEREF",
	"MERGEFORMAT",
	"TOC \\o",
	"TOC \\h",
	"\\l \"",
	" \\h",
}

// filterWordFieldCodes blanks lines holding field instructions. Lines are
// blanked rather than removed so later paragraphs keep their positions.
func filterWordFieldCodes(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		for _, code := range wordFieldCodes {
			if strings.Contains(line, code) {
				lines[i] = ""
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}
