package parser

import (
	"bytes"
	"fmt"
	"log"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"

	"doctranslate/internal/model"
)

// parseExcel scans every sheet of an .xlsx workbook row by row and emits one
// unit per non-empty cell. Formula cells contribute their cached value.
func (dp *DocumentParser) parseExcel(data []byte) (*model.Bundle, error) {
	var b *model.Bundle
	err := guard("excel", func() error {
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return err
		}
		defer f.Close()

		b = &model.Bundle{Format: model.FormatExcel}
		for _, name := range f.GetSheetList() {
			sheet := model.Sheet{Name: name, Cells: []model.Cell{}}
			rows, err := f.GetRows(name)
			if err != nil {
				// Chart sheets and broken sheets have no cell grid.
				log.Printf("[Excel] sheet %q skipped: %v", name, err)
				b.Sheets = append(b.Sheets, sheet)
				continue
			}
			for r, row := range rows {
				for c, val := range row {
					if val == "" {
						continue
					}
					addr, err := excelize.CoordinatesToCellName(c+1, r+1)
					if err != nil {
						continue
					}
					sheet.Cells = append(sheet.Cells, model.Cell{Address: addr, Text: model.Text{Content: val}})
				}
			}
			b.Sheets = append(b.Sheets, sheet)
		}
		return nil
	})
	if err != nil {
		return nil, model.Unreadable(model.FormatExcel, err)
	}
	return b, nil
}

// LegacyCell is one non-empty cell of a legacy workbook, 0-based.
type LegacyCell struct {
	Row, Col int
	Value    string
}

// LegacySheet is one sheet of a legacy workbook.
type LegacySheet struct {
	Name  string
	Cells []LegacyCell
}

// ReadLegacyWorkbook reads every sheet of a BIFF (.xls) workbook.
func ReadLegacyWorkbook(data []byte) ([]LegacySheet, error) {
	var sheets []LegacySheet
	err := guard("xls", func() error {
		wb, err := xls.OpenReader(bytes.NewReader(data))
		if err != nil {
			return err
		}
		for i := 0; i < wb.GetNumberSheets(); i++ {
			sheet, err := wb.GetSheet(i)
			if err != nil {
				return fmt.Errorf("sheet %d: %w", i, err)
			}
			ls := LegacySheet{Name: sheet.GetName()}
			for rowIdx := 0; rowIdx < sheet.GetNumberRows(); rowIdx++ {
				row, err := sheet.GetRow(rowIdx)
				if err != nil || row == nil {
					continue
				}
				for colIdx, cell := range row.GetCols() {
					if val := cell.GetString(); val != "" {
						ls.Cells = append(ls.Cells, LegacyCell{Row: rowIdx, Col: colIdx, Value: val})
					}
				}
			}
			sheets = append(sheets, ls)
		}
		return nil
	})
	return sheets, err
}

// parseXLSLegacy extracts a legacy .xls workbook with the same addressing
// as parseExcel.
func (dp *DocumentParser) parseXLSLegacy(data []byte) (*model.Bundle, error) {
	sheets, err := ReadLegacyWorkbook(data)
	if err != nil {
		return nil, model.Unreadable(model.FormatExcel, err)
	}

	b := &model.Bundle{Format: model.FormatExcel}
	for _, ls := range sheets {
		sheet := model.Sheet{Name: ls.Name, Cells: []model.Cell{}}
		for _, c := range ls.Cells {
			addr, err := excelize.CoordinatesToCellName(c.Col+1, c.Row+1)
			if err != nil {
				continue
			}
			sheet.Cells = append(sheet.Cells, model.Cell{Address: addr, Text: model.Text{Content: c.Value}})
		}
		b.Sheets = append(b.Sheets, sheet)
	}
	return b, nil
}
