package store

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// statement is one SQL text with its positional arguments.
type statement struct {
	sql  string
	args []any
}

// buildSelect renders a filtered select. ok is false when a filter can never
// match, such as an id that is not a uuid; Postgres would reject the cast.
func buildSelect(collection string, t table, filters []Filter) (stmt statement, ok bool, err error) {
	query := "SELECT " + selectList(t) + " FROM " + collection + " WHERE 1=1"
	args := []any{}
	argIndex := 1

	for _, f := range filters {
		c, err := t.column(f.Field)
		if err != nil {
			return statement{}, false, err
		}
		if c.cast == "::text::uuid" && !isUUID(f.Value) {
			return statement{}, false, nil
		}
		query += " AND " + c.name + " = $" + strconv.Itoa(argIndex) + c.cast
		args = append(args, f.Value)
		argIndex++
	}
	query += " ORDER BY " + t.orderBy

	return statement{sql: query, args: args}, true, nil
}

// buildInsert renders an insert of the known columns present in row, in
// schema order, returning the full stored row.
func buildInsert(collection string, t table, row Row) (statement, error) {
	if err := t.checkFields(row); err != nil {
		return statement{}, err
	}

	var (
		names        []string
		placeholders []string
		args         []any
	)
	for _, c := range t.columns {
		v, ok := row[c.name]
		if !ok {
			continue
		}
		names = append(names, c.name)
		placeholders = append(placeholders, "$"+strconv.Itoa(len(args)+1)+c.cast)
		args = append(args, v)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		collection,
		strings.Join(names, ", "),
		strings.Join(placeholders, ", "),
		selectList(t),
	)
	return statement{sql: query, args: args}, nil
}

// buildUpdate renders an update of patch by id. Columns are set in name
// order and the id is always the last argument.
func buildUpdate(collection string, t table, id string, patch Row) (statement, error) {
	if err := t.checkFields(patch); err != nil {
		return statement{}, err
	}

	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		sets []string
		args []any
	)
	for _, k := range keys {
		c, _ := t.column(k)
		sets = append(sets, c.name+" = $"+strconv.Itoa(len(args)+1)+c.cast)
		args = append(args, patch[k])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d::text::uuid", collection, strings.Join(sets, ", "), len(args))
	return statement{sql: query, args: args}, nil
}
