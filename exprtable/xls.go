package exprtable

import (
	"fmt"

	"github.com/carbocation/pfx"
	"github.com/extrame/xls"
)

// ReadXLS reads the first worksheet of an Excel 97-2003 workbook as an
// expression table.
func ReadXLS(path string) (t *Table, err error) {
	// The xls package panics on rows that were never written to the sheet.
	defer func() {
		if r := recover(); r != nil {
			t, err = nil, fmt.Errorf("%s: unreadable worksheet: %v", path, r)
		}
	}()

	spreadsheet, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, pfx.Err(err)
	}

	if spreadsheet.NumSheets() < 1 {
		return nil, fmt.Errorf("%s: workbook has no sheets", path)
	}

	sheet := spreadsheet.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("%s: sheet 0 was nil", path)
	}

	records := make([][]string, 0, int(sheet.MaxRow)+1)
	for rowID := 0; rowID <= int(sheet.MaxRow); rowID++ {
		row := sheet.Row(rowID)
		if row == nil {
			continue
		}

		cols := make([]string, 0, row.LastCol()+1)
		for colID := 0; colID <= row.LastCol(); colID++ {
			cols = append(cols, row.Col(colID))
		}
		// Lcell points one past the last used cell
		for len(cols) > 0 && cols[len(cols)-1] == "" {
			cols = cols[:len(cols)-1]
		}
		if len(cols) < 1 {
			continue
		}
		records = append(records, cols)
	}

	if len(records) < 1 {
		return nil, fmt.Errorf("%s: sheet %q is empty", path, sheet.Name)
	}

	t, err = FromRecords(records[0], records[1:])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return t, nil
}
