package dataset

import "strconv"

// Rows shown to a viewer at most.
const MAX_ROWS = 500

// Column name used for the serial number when requested.
const SERIAL_COLUMN = "#"

type DisplayOptions struct {
	ShowSerial      bool `json:"showSerial" yaml:"show_serial"`
	HideFirstColumn bool `json:"hideFirstColumn" yaml:"hide_first_column"`
}

// View is the filtered slice of a table a viewer gets to see.
type View struct {
	Columns   []Column `json:"columns"`
	Rows      []Row    `json:"rows"`
	Total     int      `json:"total"`
	Truncated bool     `json:"truncated"`
}

// BuildView filters rows, caps them at MAX_ROWS and applies display options.
func BuildView(table *Table, schema Schema, criteria []Criterion, opts DisplayOptions) View {
	filtered := ApplyCriteria(table.Rows, schema, criteria)
	preview := filtered
	if len(preview) > MAX_ROWS {
		preview = preview[:MAX_ROWS]
	}

	columns := schema.Columns
	if opts.HideFirstColumn && len(columns) > 0 {
		columns = columns[1:]
	}
	if opts.ShowSerial {
		columns = append([]Column{{Name: SERIAL_COLUMN, Type: ColumnNumber}}, columns...)
	}

	rows := make([]Row, 0, len(preview))
	for i, src := range preview {
		row := make(Row, len(columns))
		for _, c := range columns {
			if c.Name == SERIAL_COLUMN && opts.ShowSerial {
				row[SERIAL_COLUMN] = strconv.Itoa(i + 1)
				continue
			}
			row[c.Name] = src[c.Name]
		}
		rows = append(rows, row)
	}

	return View{
		Columns:   columns,
		Rows:      rows,
		Total:     len(filtered),
		Truncated: len(filtered) > len(preview),
	}
}
