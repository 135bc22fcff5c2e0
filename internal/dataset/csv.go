package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	MAX_SIZE_MB    = 10
	MAX_SIZE_BYTES = MAX_SIZE_MB * 1024 * 1024
)

var (
	ErrTooLarge  = fmt.Errorf("file exceeds %dMB limit", MAX_SIZE_MB)
	ErrNoHeaders = errors.New("CSV must include headers")
)

// Row maps a header to its trimmed cell value.
type Row map[string]string

// Table is a parsed CSV payload.
type Table struct {
	Headers []string
	Rows    []Row
}

// CheckSize rejects payloads over the upload limit.
func CheckSize(size int64) error {
	if size > MAX_SIZE_BYTES {
		return ErrTooLarge
	}
	return nil
}

// decoder picks the text decoding from the byte order mark. Spreadsheet
// exports are often UTF-16 with BOM.
func decoder(payload []byte) io.Reader {
	if len(payload) >= 2 && (payload[0] == 0xFE && payload[1] == 0xFF || payload[0] == 0xFF && payload[1] == 0xFE) {
		utf16bom := unicode.BOMOverride(unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder())
		return transform.NewReader(bytes.NewReader(payload), utf16bom)
	}
	// Strip a UTF-8 BOM if present
	return transform.NewReader(bytes.NewReader(payload), unicode.UTF8BOM.NewDecoder())
}

// Parse reads a header row followed by records. Cells are trimmed and blank
// lines skipped. Short records are padded with empty values.
func Parse(payload []byte) (*Table, error) {
	reader := csv.NewReader(decoder(payload))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	table := &Table{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		if isBlank(record) {
			continue
		}

		if table.Headers == nil {
			for _, h := range record {
				table.Headers = append(table.Headers, strings.TrimSpace(h))
			}
			continue
		}

		row := make(Row, len(table.Headers))
		for i, h := range table.Headers {
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			} else {
				row[h] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}

	if !hasHeaders(table.Headers) {
		return nil, ErrNoHeaders
	}
	return table, nil
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func hasHeaders(headers []string) bool {
	for _, h := range headers {
		if h != "" {
			return true
		}
	}
	return false
}
