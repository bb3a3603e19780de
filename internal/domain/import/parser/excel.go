package parser

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ParseXLSX parses the first sheet of an XLSX statement with the same header
// contract as ParseCSV.
func ParseXLSX(data []byte) ([]StatementRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrHeaderNotFound
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}

	return decodeRecords(rows, nil)
}
