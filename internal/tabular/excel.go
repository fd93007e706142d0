package tabular

// excel.go reads spreadsheet uploads via excelize. Only the first sheet is
// consumed, with its first row taken as the header.

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

func loadExcel(name string, data []byte, opts Options) (*UploadedTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{File: name, Reason: "open workbook: " + err.Error()}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{File: name, Reason: "workbook has no sheets"}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{File: name, Reason: fmt.Sprintf("read sheet %q: %v", sheets[0], err)}
	}
	if len(rows) == 0 {
		return nil, &ParseError{File: name, Reason: "empty file"}
	}
	if len(rows) < 2 {
		return nil, &ParseError{File: name, Reason: "file has a header but no data rows"}
	}

	header := rows[0]
	dataRows := rows[1:]
	if opts.MaxRows > 0 && len(dataRows) > opts.MaxRows {
		dataRows = dataRows[:opts.MaxRows]
	}

	// excelize trims trailing empty cells per row, which would trip the
	// strict column-count check for rows ending in blanks. Restore those
	// cells up to the header width; rows wider than the header stay invalid.
	padded := make([][]string, len(dataRows))
	for i, row := range dataRows {
		if len(row) < len(header) {
			p := make([]string, len(header))
			copy(p, row)
			row = p
		}
		padded[i] = row
	}

	return finishTable(name, header, padded, 2)
}
