package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RinkuLib/RinkuLib/dialect"
	"github.com/RinkuLib/RinkuLib/template"
)

func TestTranslatePostgres(t *testing.T) {
	sql, args, err := translate(
		"SELECT * FROM T WHERE a = @A AND b = @B",
		'@',
		[]template.Binding{{Name: "A"}, {Name: "B"}},
		map[string]any{"a": 1, "B": "two"},
		dialect.NewPostgresDialect(),
	)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM T WHERE a = $1 AND b = $2", sql)
	assert.Equal(t, []any{1, "two"}, args)
}

func TestTranslateSpreadBindingsWin(t *testing.T) {
	sql, args, err := translate(
		"SELECT * FROM T WHERE c IN (@Cats_1, @Cats_2)",
		'@',
		[]template.Binding{
			{Name: "Cats_1", Value: 10, Role: template.RoleSpread},
			{Name: "Cats_2", Value: 20, Role: template.RoleSpread},
		},
		nil,
		dialect.NewPostgresDialect(),
	)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM T WHERE c IN ($1, $2)", sql)
	assert.Equal(t, []any{10, 20}, args)
}

func TestTranslateSkipsStringsAndComments(t *testing.T) {
	sql, args, err := translate(
		"SELECT '@NotAParam' /* @AlsoNot */ FROM T WHERE a = @A",
		'@',
		nil,
		map[string]any{"A": 9},
		dialect.NewMySQLDialect(),
	)
	require.NoError(t, err)
	assert.Equal(t, "SELECT '@NotAParam' /* @AlsoNot */ FROM T WHERE a = ?", sql)
	assert.Equal(t, []any{9}, args)
}

func TestTranslateMissingParameter(t *testing.T) {
	_, _, err := translate(
		"SELECT * FROM T WHERE a = @A", '@', nil, nil, dialect.NewPostgresDialect())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "@A")
}

func TestTranslateSQLServerPlaceholders(t *testing.T) {
	sql, _, err := translate(
		"WHERE a = @A AND b = @B", '@', nil,
		map[string]any{"A": 1, "B": 2},
		dialect.NewSQLServerDialect(),
	)
	require.NoError(t, err)
	assert.Equal(t, "WHERE a = @p1 AND b = @p2", sql)
}
