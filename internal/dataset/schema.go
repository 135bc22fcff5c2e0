package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"
)

type ColumnType string

const (
	ColumnString ColumnType = "string"
	ColumnNumber ColumnType = "number"
	ColumnDate   ColumnType = "date"
)

// Rows looked at when guessing column types.
const SCHEMA_SAMPLE_SIZE = 50

type Column struct {
	Name string     `json:"name" yaml:"name"`
	Type ColumnType `json:"type" yaml:"type"`
}

type Schema struct {
	Columns []Column `json:"columns" yaml:"columns"`
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		names = append(names, c.Name)
	}
	return names
}

func (s Schema) typeOf(column string) ColumnType {
	for _, c := range s.Columns {
		if c.Name == column {
			return c.Type
		}
	}
	return ColumnString
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	time.RFC1123,
	time.RFC1123Z,
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// InferSchema guesses a type per header from the first rows. A column is a
// number or a date only if every non-empty sampled value is one.
func InferSchema(table *Table) Schema {
	sample := table.Rows
	if len(sample) > SCHEMA_SAMPLE_SIZE {
		sample = sample[:SCHEMA_SAMPLE_SIZE]
	}

	schema := Schema{Columns: make([]Column, 0, len(table.Headers))}
	for _, h := range table.Headers {
		schema.Columns = append(schema.Columns, Column{Name: h, Type: inferColumnType(sample, h)})
	}
	return schema
}

func inferColumnType(rows []Row, column string) ColumnType {
	sawNumber, sawDate := false, false
	for _, row := range rows {
		v := strings.TrimSpace(row[column])
		if v == "" {
			continue
		}
		if _, ok := parseNumber(v); ok {
			sawNumber = true
			continue
		}
		if _, ok := parseDate(v); ok {
			sawDate = true
			continue
		}
		return ColumnString
	}
	switch {
	case sawNumber && !sawDate:
		return ColumnNumber
	case sawDate && !sawNumber:
		return ColumnDate
	default:
		return ColumnString
	}
}
