package assembler

import (
	"bytes"
	"fmt"
	"log"

	"github.com/xuri/excelize/v2"

	"doctranslate/internal/errlog"
	"doctranslate/internal/model"
	"doctranslate/internal/parser"
)

// reassembleExcel overwrites translated cells of an .xlsx workbook. Cells
// holding formulas and cells whose translation equals the original are left
// alone, so formulas and formatting survive.
func reassembleExcel(original []byte, b *model.Bundle) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(original))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	written, skipped := 0, 0
	for _, sheet := range b.Sheets {
		if idx, err := f.GetSheetIndex(sheet.Name); err != nil || idx < 0 {
			log.Printf("[Excel] sheet %q not in original workbook, skipped", sheet.Name)
			errlog.Logf("[Excel] sheet %q not in original workbook, skipped", sheet.Name)
			continue
		}
		for _, cell := range sheet.Cells {
			if !cell.HasTranslation() || cell.Translated == cell.Content {
				continue
			}
			formula, err := f.GetCellFormula(sheet.Name, cell.Address)
			if err != nil {
				return nil, fmt.Errorf("%s!%s: %w", sheet.Name, cell.Address, err)
			}
			if formula != "" {
				skipped++
				continue
			}
			if err := f.SetCellStr(sheet.Name, cell.Address, cell.Translated); err != nil {
				return nil, fmt.Errorf("%s!%s: %w", sheet.Name, cell.Address, err)
			}
			written++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	log.Printf("[Excel] %d cells written, %d formula cells kept", written, skipped)
	return buf.Bytes(), nil
}

// reassembleExcelLegacy converts a legacy .xls workbook into a new .xlsx
// workbook holding every original cell as text, translated where available.
func reassembleExcelLegacy(original []byte, b *model.Bundle) ([]byte, error) {
	sheets, err := parser.ReadLegacyWorkbook(original)
	if err != nil {
		return nil, fmt.Errorf("read legacy workbook: %w", err)
	}
	tr := translations(b)

	f := excelize.NewFile()
	defer f.Close()
	first := f.GetSheetName(0)
	for i, ls := range sheets {
		if i == 0 {
			if err := f.SetSheetName(first, ls.Name); err != nil {
				return nil, fmt.Errorf("sheet %q: %w", ls.Name, err)
			}
		} else if _, err := f.NewSheet(ls.Name); err != nil {
			return nil, fmt.Errorf("sheet %q: %w", ls.Name, err)
		}
		for _, c := range ls.Cells {
			addr, err := excelize.CoordinatesToCellName(c.Col+1, c.Row+1)
			if err != nil {
				continue
			}
			value := c.Value
			if t, ok := tr[ls.Name+"!"+addr]; ok {
				value = t
			}
			if err := f.SetCellStr(ls.Name, addr, value); err != nil {
				return nil, fmt.Errorf("%s!%s: %w", ls.Name, addr, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	log.Printf("[Excel] legacy workbook converted: %d sheets", len(sheets))
	return buf.Bytes(), nil
}
