package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/zombor/payroll-scanner/internal/scanning"
)

// Columns: A-C full name (merged in the header), D salary, E advance,
// F payments, G balance = D - E - F.
const (
	firstCol = 1
	lastCol  = 7
)

var columnWidths = map[string]float64{
	"A": 35, "B": 20, "C": 20, "D": 18, "E": 18, "F": 18, "G": 18,
}

// Border styles as excelize numbers them
const (
	thin   = 1
	medium = 2
)

type cellKind int

const (
	kindPlain cellKind = iota
	kindHeader
	kindName
	kindSalary
	kindEditable
	kindBalance
	kindTotalLabel
	kindTotal
	kindTotalEditable
)

type styleKey struct {
	kind                     cellKind
	top, bottom, left, right int
}

// styles creates excelize styles lazily, one per kind and border combination
type styles struct {
	f     *excelize.File
	cache map[styleKey]int
}

func (s *styles) get(key styleKey) (int, error) {
	if id, ok := s.cache[key]; ok {
		return id, nil
	}

	numFmt := currencyFmt
	style := &excelize.Style{
		Border: []excelize.Border{
			{Type: "top", Color: "000000", Style: key.top},
			{Type: "bottom", Color: "000000", Style: key.bottom},
			{Type: "left", Color: "000000", Style: key.left},
			{Type: "right", Color: "000000", Style: key.right},
		},
	}
	switch key.kind {
	case kindHeader:
		style.Font = &excelize.Font{Bold: true, Size: 12}
		style.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9D9D9"}}
		style.Alignment = &excelize.Alignment{Horizontal: "center", Vertical: "center"}
	case kindSalary:
		style.CustomNumFmt = &numFmt
	case kindEditable:
		style.Font = &excelize.Font{Color: "FF0000"}
		style.CustomNumFmt = &numFmt
	case kindBalance, kindTotal:
		style.Font = &excelize.Font{Bold: true}
		style.CustomNumFmt = &numFmt
	case kindTotalEditable:
		style.Font = &excelize.Font{Bold: true, Color: "FF0000"}
		style.CustomNumFmt = &numFmt
	case kindTotalLabel:
		style.Font = &excelize.Font{Bold: true}
	}

	id, err := s.f.NewStyle(style)
	if err != nil {
		return 0, err
	}
	s.cache[key] = id
	return id, nil
}

func writeSheet(f *excelize.File, artifact Artifact, records []scanning.Record) error {
	sheet := artifact.Month
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}
	for col, width := range columnWidths {
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
	}
	st := &styles{f: f, cache: map[styleKey]int{}}

	// Period banner over the money columns
	if err := f.SetCellValue(sheet, "D1", fmt.Sprintf("%s %d", artifact.Month, artifact.Year)); err != nil {
		return err
	}
	if err := f.MergeCell(sheet, "D1", "G1"); err != nil {
		return err
	}
	banner, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFFF00"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "top", Color: "000000", Style: thin},
			{Type: "bottom", Color: "000000", Style: thin},
			{Type: "left", Color: "000000", Style: thin},
			{Type: "right", Color: "000000", Style: thin},
		},
	})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "D1", "G1", banner); err != nil {
		return err
	}

	headers := []string{"NOMBRE Y APELLIDO", "", "", "SUELDO", "ADELANTO", "PAGOS", "SALDO"}
	for i, h := range headers {
		if h == "" {
			continue
		}
		if err := f.SetCellValue(sheet, cellName(i+1, headerRow), h); err != nil {
			return err
		}
	}
	if err := f.MergeCell(sheet, "A3", "C3"); err != nil {
		return err
	}

	row := firstDataRow
	for _, rec := range records {
		if err := f.SetCellValue(sheet, cellName(1, row), fullName(rec)); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cellName(4, row), rec.Salary.InexactFloat64()); err != nil {
			return err
		}
		if err := f.SetCellFormula(sheet, cellName(7, row), fmt.Sprintf("D%d-E%d-F%d", row, row, row)); err != nil {
			return err
		}
		row++
	}

	totalRow := row
	lastDataRow := row - 1
	if err := f.SetCellValue(sheet, cellName(1, totalRow), "TOTALES"); err != nil {
		return err
	}
	for _, col := range []string{"D", "E", "F", "G"} {
		formula := fmt.Sprintf("SUM(%s%d:%s%d)", col, firstDataRow, col, lastDataRow)
		if err := f.SetCellFormula(sheet, fmt.Sprintf("%s%d", col, totalRow), formula); err != nil {
			return err
		}
	}

	// Thin grid inside the table, medium frame around it
	for r := headerRow; r <= totalRow; r++ {
		for c := firstCol; c <= lastCol; c++ {
			key := styleKey{kind: kindFor(r, c, totalRow), top: thin, bottom: thin, left: thin, right: thin}
			if r == headerRow {
				key.top = medium
			}
			if r == totalRow {
				key.bottom = medium
			}
			if c == firstCol {
				key.left = medium
			}
			if c == lastCol {
				key.right = medium
			}
			id, err := st.get(key)
			if err != nil {
				return err
			}
			cell := cellName(c, r)
			if err := f.SetCellStyle(sheet, cell, cell, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func kindFor(row, col, totalRow int) cellKind {
	switch {
	case row == headerRow:
		return kindHeader
	case row == totalRow:
		switch {
		case col == 1:
			return kindTotalLabel
		case col == 5 || col == 6:
			return kindTotalEditable
		case col >= 4:
			return kindTotal
		}
	default:
		switch col {
		case 4:
			return kindSalary
		case 5, 6:
			return kindEditable
		case 7:
			return kindBalance
		}
	}
	return kindPlain
}

// fullName renders "APELLIDO, NOMBRE" in upper case
func fullName(rec scanning.Record) string {
	first := rec.FirstName
	if first == "" {
		first = "N/A"
	}
	last := rec.LastName
	if last == "" {
		last = "N/A"
	}
	return strings.ToUpper(last + ", " + first)
}

func cellName(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		// col and row are always positive here
		panic(err)
	}
	return name
}
