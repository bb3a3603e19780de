// Package parser reads payment statement exports (CSV or XLSX) into rows.
// Column lookup is by header name; gocsv maps the matched columns onto
// StatementRow so CSV and XLSX share one decoding path.
package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gocarina/gocsv"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"

	"github.com/2gPigeon/jig-intern-public/internal/domain/import/sniffer"
	"github.com/2gPigeon/jig-intern-public/pkg/apperr"
)

// Required statement headers.
const (
	HeaderDescription  = "取引内容"
	HeaderDate         = "取引日"
	HeaderAmount       = "出金金額（円）"
	HeaderCounterparty = "取引先"

	// PaymentMarker is the description value of rows that are payments.
	PaymentMarker = "支払い"
)

// RequiredHeaders lists every column a statement must carry, in no particular order.
var RequiredHeaders = []string{HeaderDescription, HeaderDate, HeaderAmount, HeaderCounterparty}

// ErrHeaderNotFound is returned when the first row lacks a required column.
var ErrHeaderNotFound = apperr.ErrHeaderNotFound

// StatementRow is one data row with the four columns the import cares about.
type StatementRow struct {
	Description  string `csv:"取引内容"`
	Date         string `csv:"取引日"`
	Amount       string `csv:"出金金額（円）"`
	Counterparty string `csv:"取引先"`

	// Line is the 1-based record number, header included.
	Line int `csv:"-"`
}

// IsPayment reports whether the row is a payment row.
func (r StatementRow) IsPayment() bool {
	return r.Description == PaymentMarker
}

// Parse picks the decoder from the file content, falling back to the extension.
func Parse(filename string, data []byte) ([]StatementRow, error) {
	if IsXLSX(filename, data) {
		return ParseXLSX(data)
	}
	return ParseCSV(data)
}

// IsXLSX reports whether the payload looks like an XLSX workbook.
func IsXLSX(filename string, data []byte) bool {
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".xlsx")
}

// ParseCSV parses a CSV statement. A UTF-8 BOM is stripped, non UTF-8
// input is decoded as Shift_JIS and tab or semicolon separated exports are
// detected from the header line.
func ParseCSV(data []byte) ([]StatementRow, error) {
	data = normalizeCSVBytes(data)
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffer.DetectDelimiter(data, RequiredHeaders)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		records [][]string
		lines   []int
	)
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		// Blank lines are skipped by the reader, so the source line is taken from it.
		line, _ := reader.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
	return decodeRecords(records, lines)
}

// decodeRecords validates the header row and maps the records onto rows.
// lines holds the source line of each record; nil means records[i] is line i+1.
func decodeRecords(records [][]string, lines []int) ([]StatementRow, error) {
	if len(records) == 0 {
		return nil, ErrHeaderNotFound
	}

	header := make([]string, len(records[0]))
	index := make(map[string]int, len(header))
	for i, cell := range records[0] {
		header[i] = strings.TrimSpace(cell)
		if _, dup := index[header[i]]; !dup {
			index[header[i]] = i
		}
	}
	for _, name := range RequiredHeaders {
		if _, ok := index[name]; !ok {
			return nil, ErrHeaderNotFound
		}
	}

	data := make([][]string, 0, len(records))
	data = append(data, header)
	for _, rec := range records[1:] {
		data = append(data, joinSplitAmount(rec, len(header), index[HeaderAmount]))
	}

	in := &recordReader{records: data}
	var rows []StatementRow
	if err := gocsv.UnmarshalCSV(in, &rows); err != nil {
		return nil, fmt.Errorf("failed to map statement rows: %w", err)
	}
	for i := range rows {
		rows[i].Line = i + 2
		if i+1 < len(lines) {
			rows[i].Line = lines[i+1]
		}
	}
	return rows, nil
}

var thousandsGroup = regexp.MustCompile(`^\d{3}(\.\d+)?$`)

// joinSplitAmount re-joins an amount such as ¥1,200 that was exported without
// quotes and therefore split into "¥1" and "200". Only applies while the
// record is wider than the header.
func joinSplitAmount(rec []string, width, amountIdx int) []string {
	for len(rec) > width && amountIdx+1 < len(rec) {
		cur := strings.TrimSpace(rec[amountIdx])
		next := strings.TrimSpace(rec[amountIdx+1])
		if cur == "" || !isDigit(cur[len(cur)-1]) || !thousandsGroup.MatchString(next) {
			break
		}
		merged := make([]string, 0, len(rec)-1)
		merged = append(merged, rec[:amountIdx]...)
		merged = append(merged, cur+","+next)
		merged = append(merged, rec[amountIdx+2:]...)
		rec = merged
	}
	return rec
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// recordReader feeds already split records to gocsv.
type recordReader struct {
	records [][]string
	pos     int
}

func (r *recordReader) Read() ([]string, error) {
	if r.pos >= len(r.records) {
		return nil, io.EOF
	}
	rec := r.records[r.pos]
	r.pos++
	return rec, nil
}

func (r *recordReader) ReadAll() ([][]string, error) {
	rest := r.records[r.pos:]
	r.pos = len(r.records)
	return rest, nil
}

func normalizeCSVBytes(data []byte) []byte {
	data = stripUTF8BOM(data)
	if utf8.Valid(data) {
		return data
	}
	if decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(data); err == nil && utf8.Valid(decoded) {
		return decoded
	}
	if decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data); err == nil {
		return decoded
	}
	return data
}

func stripUTF8BOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
