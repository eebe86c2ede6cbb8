package store

import "fmt"

type column struct {
	name string
	// cast is appended to placeholders so text values bind to typed columns.
	cast string
	// generated columns are filled by the store when absent on insert.
	generated bool
}

type table struct {
	columns []column
	orderBy string
}

var schema = map[string]table{
	Events: {
		columns: []column{
			{name: "id", cast: "::text::uuid", generated: true},
			{name: "name"},
			{name: "location"},
			{name: "date", cast: "::text::date"},
			{name: "window_start"},
			{name: "window_end"},
			{name: "status"},
			{name: "owner_id"},
			{name: "created_at", generated: true},
		},
		orderBy: "created_at",
	},
	AttendanceRecords: {
		columns: []column{
			{name: "id", cast: "::text::uuid", generated: true},
			{name: "participant_key"},
			{name: "name"},
			{name: "contact_phone"},
			{name: "contact_email"},
			{name: "course"},
			{name: "year_level"},
			{name: "date", cast: "::text::date"},
			{name: "check_in_at"},
			{name: "status"},
		},
		orderBy: "check_in_at",
	},
}

func lookupTable(collection string) (table, error) {
	t, ok := schema[collection]
	if !ok {
		return table{}, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	return t, nil
}

func (t table) column(name string) (column, error) {
	for _, c := range t.columns {
		if c.name == name {
			return c, nil
		}
	}
	return column{}, fmt.Errorf("%w: %s", ErrUnknownField, name)
}

// checkFields verifies every key of row is a known column of t.
func (t table) checkFields(row Row) error {
	for k := range row {
		if _, err := t.column(k); err != nil {
			return err
		}
	}
	return nil
}
