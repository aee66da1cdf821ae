package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/patient-docs/internal/entity"
)

// renderXLSX replaces {{key}} or {key} placeholders in every cell of every sheet.
func renderXLSX(tmpl []byte, rec entity.PatientRecord) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(tmpl))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	pairs := make([]string, 0, 2*len(entity.PatientFields))
	for k, v := range rec.Placeholders() {
		pairs = append(pairs, "{"+k+"}", v)
	}
	replacer := strings.NewReplacer(pairs...)

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		for r, row := range rows {
			for c, val := range row {
				if !strings.Contains(val, "{") {
					continue
				}
				filled := replacer.Replace(collapseDoubleBraces(val))
				if filled == val {
					continue
				}
				cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
				if err := f.SetCellValue(sheet, cell, filled); err != nil {
					return nil, fmt.Errorf("set %s!%s: %w", sheet, cell, err)
				}
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
