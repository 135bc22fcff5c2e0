package dataset

import (
	"slices"
	"strings"
)

type Op string

const (
	OpEq       Op = "eq"
	OpContains Op = "contains"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
)

// Criterion restricts rows to those whose column matches value.
type Criterion struct {
	Column        string `json:"column" yaml:"column"`
	Op            Op     `json:"op" yaml:"op"`
	Value         string `json:"value" yaml:"value"`
	CaseSensitive bool   `json:"caseSensitive,omitempty" yaml:"case_sensitive,omitempty"`
}

// SanitizeCriteria drops rules on columns the schema does not have and rules
// with an unknown operator.
func SanitizeCriteria(criteria []Criterion, schema Schema) []Criterion {
	names := schema.Names()
	out := make([]Criterion, 0, len(criteria))
	for _, c := range criteria {
		if !slices.Contains(names, c.Column) {
			continue
		}
		switch c.Op {
		case OpEq, OpContains, OpGt, OpGte, OpLt, OpLte:
			out = append(out, c)
		}
	}
	return out
}

// ApplyCriteria keeps rows matching every rule.
func ApplyCriteria(rows []Row, schema Schema, criteria []Criterion) []Row {
	if len(criteria) == 0 {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if matchAll(row, schema, criteria) {
			out = append(out, row)
		}
	}
	return out
}

func matchAll(row Row, schema Schema, criteria []Criterion) bool {
	for _, rule := range criteria {
		if !matchRule(row, rule, schema.typeOf(rule.Column)) {
			return false
		}
	}
	return true
}

// value is a cell normalized for comparison. num is set for number and date
// columns (dates as unix milliseconds).
type value struct {
	str string
	num float64
}

func normalize(raw string, typ ColumnType) (value, bool) {
	trimmed := strings.TrimSpace(raw)
	switch typ {
	case ColumnNumber:
		n, ok := parseNumber(trimmed)
		return value{str: trimmed, num: n}, ok
	case ColumnDate:
		d, ok := parseDate(trimmed)
		return value{str: trimmed, num: float64(d.UnixMilli())}, ok
	default:
		return value{str: raw}, true
	}
}

func matchRule(row Row, rule Criterion, typ ColumnType) bool {
	left, ok := normalize(row[rule.Column], typ)
	if !ok {
		return false
	}
	right, ok := normalize(rule.Value, typ)
	if !ok {
		return false
	}

	switch rule.Op {
	case OpEq:
		if typ != ColumnString {
			return left.num == right.num
		}
		if rule.CaseSensitive {
			return left.str == right.str
		}
		return strings.EqualFold(left.str, right.str)
	case OpContains:
		if rule.CaseSensitive {
			return strings.Contains(left.str, right.str)
		}
		return strings.Contains(strings.ToLower(left.str), strings.ToLower(right.str))
	case OpGt, OpGte, OpLt, OpLte:
		l, r, ok := ordered(left, right, typ)
		if !ok {
			return false
		}
		switch rule.Op {
		case OpGt:
			return l > r
		case OpGte:
			return l >= r
		case OpLt:
			return l < r
		default:
			return l <= r
		}
	default:
		return false
	}
}

// ordered returns numeric operands. String columns compare numerically when
// both sides parse as numbers.
func ordered(left, right value, typ ColumnType) (float64, float64, bool) {
	if typ != ColumnString {
		return left.num, right.num, true
	}
	l, lok := parseNumber(strings.TrimSpace(left.str))
	r, rok := parseNumber(strings.TrimSpace(right.str))
	return l, r, lok && rok
}
