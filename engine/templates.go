package engine

import (
	"strings"

	"github.com/RinkuLib/RinkuLib/schema"
)

// Template helpers derive default statements for an entity from the naming
// strategy, with identifiers quoted through the engine's dialect. They
// produce ordinary templates, so callers can keep editing them with markers
// and optional variables before running them.

func (e *Engine) quoteTable(entity string) string {
	return e.dialect.QuoteIdentifier(e.naming.TableName(entity))
}

func (e *Engine) quoteColumn(col string) string {
	return e.dialect.QuoteIdentifier(e.naming.ColumnName(col))
}

// SelectTemplate builds `SELECT cols FROM table` with one optional equality
// predicate per column: every filter participates only when its variable is
// set.
func (e *Engine) SelectTemplate(entity string, columns ...string) string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(columns) == 0 {
		sb.WriteString("*")
	}
	for i, col := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e.quoteColumn(col))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(e.quoteTable(entity))
	if len(columns) > 0 {
		sb.WriteString(" WHERE ")
		for i, col := range columns {
			if i > 0 {
				sb.WriteString(" AND ")
			}
			sb.WriteString(e.quoteColumn(col))
			sb.WriteString(" = ?")
			sb.WriteByte(e.prefix)
			sb.WriteString(col)
		}
	}
	return sb.String()
}

// InsertTemplate builds `INSERT INTO table (cols) VALUES (@cols)`.
func (e *Engine) InsertTemplate(entity string, columns ...string) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(e.quoteTable(entity))
	sb.WriteString(" (")
	for i, col := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e.quoteColumn(col))
	}
	sb.WriteString(") VALUES (")
	for i, col := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte(e.prefix)
		sb.WriteString(col)
	}
	sb.WriteString(")")
	return sb.String()
}

// WithGeneratedID fills params[idColumn] from the named ID generator
// ("uuid", "ulid", "snowflake", "nanoid", or anything registered) when the
// caller did not supply one. Used with InsertTemplate.
func WithGeneratedID(params map[string]any, idColumn, generatorType string) (map[string]any, error) {
	if params == nil {
		params = make(map[string]any, 1)
	}
	if _, ok := params[idColumn]; ok {
		return params, nil
	}
	id, err := schema.GenerateID(generatorType)
	if err != nil {
		return nil, err
	}
	params[idColumn] = id
	return params, nil
}

// UpdateTemplate builds `UPDATE table SET col = ?@col, ... WHERE key = @key`.
// Assignments are optional, so untouched columns fall out of the statement.
func (e *Engine) UpdateTemplate(entity, keyColumn string, columns ...string) string {
	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(e.quoteTable(entity))
	sb.WriteString(" SET ")
	for i, col := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e.quoteColumn(col))
		sb.WriteString(" = ?")
		sb.WriteByte(e.prefix)
		sb.WriteString(col)
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(e.quoteColumn(keyColumn))
	sb.WriteString(" = ")
	sb.WriteByte(e.prefix)
	sb.WriteString(keyColumn)
	return sb.String()
}
