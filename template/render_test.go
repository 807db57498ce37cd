package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// render compiles src, applies state, and returns the final SQL.
func render(t *testing.T, src string, state map[string]any) (string, []Binding) {
	t.Helper()
	bp, err := Compile(src)
	require.NoError(t, err)
	b := bp.Builder()
	for k, v := range state {
		require.NoError(t, b.Set(k, v))
	}
	sql, binds, err := b.Render()
	require.NoError(t, err)
	return sql, binds
}

// =========================================================================
// End-to-end scenarios
// =========================================================================

func TestRenderOptionalPredicate(t *testing.T) {
	const src = `SELECT * FROM Users WHERE IsActive = 1 AND Name = ?@Name`

	sql, binds := render(t, src, nil)
	assert.Equal(t, `SELECT * FROM Users WHERE IsActive = 1`, sql)
	assert.Empty(t, binds)

	sql, binds = render(t, src, map[string]any{"Name": "ada"})
	assert.Equal(t, `SELECT * FROM Users WHERE IsActive = 1 AND Name = @Name`, sql)
	require.Len(t, binds, 1)
	assert.Equal(t, Binding{Name: "Name", Role: RoleStandard}, binds[0])
}

func TestRenderOptionalAssignment(t *testing.T) {
	const src = `UPDATE Users SET Email = @Email, Phone = ?@Phone WHERE ID = @ID`

	sql, binds := render(t, src, nil)
	assert.Equal(t, `UPDATE Users SET Email = @Email WHERE ID = @ID`, sql)
	require.Len(t, binds, 2)
	assert.Equal(t, "Email", binds[0].Name)
	assert.Equal(t, "ID", binds[1].Name)

	sql, _ = render(t, src, map[string]any{"Phone": "555"})
	assert.Equal(t, `UPDATE Users SET Email = @Email, Phone = @Phone WHERE ID = @ID`, sql)
}

func TestRenderSpreadHandler(t *testing.T) {
	const src = `SELECT * FROM Tasks WHERE CategoryID IN (?@Cats_X)`

	sql, binds := render(t, src, map[string]any{"Cats": []int{10, 20, 30}})
	assert.Equal(t, `SELECT * FROM Tasks WHERE CategoryID IN (@Cats_1, @Cats_2, @Cats_3)`, sql)
	require.Len(t, binds, 3)
	assert.Equal(t, Binding{Name: "Cats_1", Value: 10, Role: RoleSpread}, binds[0])
	assert.Equal(t, Binding{Name: "Cats_3", Value: 30, Role: RoleSpread}, binds[2])

	// Absent: the whole predicate disappears, not just the list.
	sql, binds = render(t, src, nil)
	assert.Equal(t, `SELECT * FROM Tasks`, sql)
	assert.Empty(t, binds)

	// Empty and optional behaves like absent.
	sql, _ = render(t, src, map[string]any{"Cats": []int{}})
	assert.Equal(t, `SELECT * FROM Tasks`, sql)
}

func TestRenderOffsetFetchSharesOneSegment(t *testing.T) {
	const src = `SELECT Name FROM Products ORDER BY ID OFFSET ?@Skip_N ROWS FETCH NEXT @Take_N ROWS ONLY`

	sql, binds := render(t, src, map[string]any{"Skip": 10, "Take": 20})
	assert.Equal(t, `SELECT Name FROM Products ORDER BY ID OFFSET 10 ROWS FETCH NEXT 20 ROWS ONLY`, sql)
	assert.Empty(t, binds, "base handlers splice text, they do not bind")

	sql, _ = render(t, src, nil)
	assert.Equal(t, `SELECT Name FROM Products ORDER BY ID`, sql)
}

func TestRenderContextJoinMergesSegments(t *testing.T) {
	const src = `SELECT * FROM Events WHERE Date > ?@MinDate &AND Date < ?@MaxDate`

	sql, _ := render(t, src, map[string]any{"MinDate": "2020-01-01", "MaxDate": "2020-12-31"})
	assert.Equal(t, `SELECT * FROM Events WHERE Date > @MinDate AND Date < @MaxDate`, sql)

	// One of the two is not enough: the merged segment needs both.
	sql, _ = render(t, src, map[string]any{"MinDate": "2020-01-01"})
	assert.Equal(t, `SELECT * FROM Events`, sql)

	sql, _ = render(t, src, nil)
	assert.Equal(t, `SELECT * FROM Events`, sql)
}

func TestRenderDynamicProjection(t *testing.T) {
	const src = `?SELECT ID, Name FROM Users UNION ALL ?SELECT ID, Name FROM ArchivedUsers`
	bp, err := Compile(src)
	require.NoError(t, err)

	b := bp.Builder()
	require.NoError(t, b.Use("Name"))
	sql, _, err := b.Render()
	require.NoError(t, err)
	assert.Equal(t, `SELECT Name FROM Users UNION ALL SELECT Name FROM ArchivedUsers`, sql)

	b.Reset()
	require.NoError(t, b.Use("ID"))
	sql, _, err = b.Render()
	require.NoError(t, err)
	assert.Equal(t, `SELECT ID FROM Users UNION ALL SELECT ID FROM ArchivedUsers`, sql)

	b.Reset()
	require.NoError(t, b.Use("ID"))
	require.NoError(t, b.Use("Name"))
	sql, _, err = b.Render()
	require.NoError(t, err)
	assert.Equal(t, `SELECT ID, Name FROM Users UNION ALL SELECT ID, Name FROM ArchivedUsers`, sql)
}

func TestRenderEmptyProjection(t *testing.T) {
	bp, err := Compile(`?SELECT ID, Name FROM Users`)
	require.NoError(t, err)
	_, _, err = bp.Builder().Render()
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindEmptyProjection, kind)
}

func TestRenderProjectionJoinedColumns(t *testing.T) {
	const src = `?SELECT Price &, Tax, Name FROM Products`
	bp, err := Compile(src)
	require.NoError(t, err)

	// Using either joined column keeps both.
	b := bp.Builder()
	require.NoError(t, b.Use("Tax"))
	sql, _, err := b.Render()
	require.NoError(t, err)
	assert.Equal(t, `SELECT Price, Tax FROM Products`, sql)

	b.Reset()
	require.NoError(t, b.Use("Name"))
	sql, _, err = b.Render()
	require.NoError(t, err)
	assert.Equal(t, `SELECT Name FROM Products`, sql)
}

func TestRenderProjectionBoundaryIsolatesModifier(t *testing.T) {
	const src = `?SELECT DISTINCT ??? ID, Name FROM Users`
	bp, err := Compile(src)
	require.NoError(t, err)

	b := bp.Builder()
	require.NoError(t, b.Use("Name"))
	sql, _, err := b.Render()
	require.NoError(t, err)
	assert.Equal(t, `SELECT DISTINCT Name FROM Users`, sql)
}

// =========================================================================
// Cleanup and clause behavior
// =========================================================================

func TestRenderStripsEmptyWhere(t *testing.T) {
	sql, _ := render(t, `SELECT * FROM T WHERE a = ?@A`, nil)
	assert.Equal(t, `SELECT * FROM T`, sql)

	sql, _ = render(t, `SELECT * FROM T WHERE a = ?@A ORDER BY a`, nil)
	assert.Equal(t, `SELECT * FROM T ORDER BY a`, sql)
}

func TestRenderFlagMarker(t *testing.T) {
	const src = `SELECT * FROM Orders WHERE Status = 1 AND Archived = 1 /*Archived*/`
	bp, err := Compile(src)
	require.NoError(t, err)

	sql, _, err := bp.Builder().Render()
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM Orders WHERE Status = 1`, sql)

	b := bp.Builder()
	require.NoError(t, b.Use("Archived"))
	sql, _, err = b.Render()
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM Orders WHERE Status = 1 AND Archived = 1`, sql)
}

func TestRenderClauseConditionalMarker(t *testing.T) {
	const src = `SELECT * FROM T /*WithOrder*/ORDER BY Name DESC`
	bp, err := Compile(src)
	require.NoError(t, err)

	sql, _, err := bp.Builder().Render()
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM T`, sql)

	b := bp.Builder()
	require.NoError(t, b.Use("WithOrder"))
	sql, _, err = b.Render()
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM T ORDER BY Name DESC`, sql)
}

func TestRenderLiteralHint(t *testing.T) {
	sql, _ := render(t, `SELECT/*~ TOP 10*/ * FROM T`, nil)
	assert.Equal(t, `SELECT TOP 10 * FROM T`, sql)
}

func TestRenderGrowthThroughFunctionalParens(t *testing.T) {
	const src = `SELECT * FROM T WHERE (A = ?@A OR B = 1) AND C = 1`

	sql, _ := render(t, src, nil)
	assert.Equal(t, `SELECT * FROM T WHERE C = 1`, sql)

	sql, binds := render(t, src, map[string]any{"A": 5})
	assert.Equal(t, `SELECT * FROM T WHERE (A = @A OR B = 1) AND C = 1`, sql)
	require.Len(t, binds, 1)
	assert.Equal(t, "A", binds[0].Name)
}

func TestRenderSubqueryBoundsFootprint(t *testing.T) {
	const src = `SELECT * FROM T WHERE EXISTS (SELECT 1 FROM X WHERE X.Y = ?@Y) AND Z = 1`

	// The optional variable only prunes inside the sub-query paren.
	sql, _ := render(t, src, nil)
	assert.Equal(t, `SELECT * FROM T WHERE EXISTS (SELECT 1 FROM X) AND Z = 1`, sql)

	sql, _ = render(t, src, map[string]any{"Y": 7})
	assert.Equal(t, `SELECT * FROM T WHERE EXISTS (SELECT 1 FROM X WHERE X.Y = @Y) AND Z = 1`, sql)
}

func TestRenderInsertLists(t *testing.T) {
	const src = `INSERT INTO Users (Name, Email /*@Email*/) VALUES (@Name, ?@Email)`

	sql, binds := render(t, src, map[string]any{"Name": "ada", "Email": "a@b.c"})
	assert.Equal(t, `INSERT INTO Users (Name, Email) VALUES (@Name, @Email)`, sql)
	require.Len(t, binds, 2)

	sql, binds = render(t, src, map[string]any{"Name": "ada"})
	assert.Equal(t, `INSERT INTO Users (Name) VALUES (@Name)`, sql)
	require.Len(t, binds, 1)
}

func TestRenderCase(t *testing.T) {
	const src = `SELECT CASE WHEN Type = 1 THEN 'A' /*Legacy*/ WHEN Type = 2 /*Legacy*/ THEN 'B' ELSE 'C' END AS Kind FROM Items`
	bp, err := Compile(src)
	require.NoError(t, err)

	sql, _, err := bp.Builder().Render()
	require.NoError(t, err)
	assert.Equal(t, `SELECT CASE WHEN Type = 1 THEN 'A' ELSE 'C' END AS Kind FROM Items`, sql)

	b := bp.Builder()
	require.NoError(t, b.Use("Legacy"))
	sql, _, err = b.Render()
	require.NoError(t, err)
	assert.Equal(t, `SELECT CASE WHEN Type = 1 THEN 'A' WHEN Type = 2 THEN 'B' ELSE 'C' END AS Kind FROM Items`, sql)
}

func TestRenderUnpairedThenWarnsAndEmitsVerbatim(t *testing.T) {
	const src = `SELECT CASE WHEN A = 1 THEN 1 /*X*/WHEN A = 2 THEN 2 END FROM T`
	bp, err := Compile(src)
	require.NoError(t, err)

	b := bp.Builder()
	sql, _, err := b.Render()
	require.NoError(t, err)
	assert.Equal(t, `SELECT CASE WHEN A = 1 THEN 1 THEN 2 END FROM T`, sql)
	assert.Len(t, b.Warnings(), 1)
}

func TestRenderInheritance(t *testing.T) {
	// The inner optional variable lives inside a clause made conditional by
	// a marker: pruning the outer prunes the inner and its bindings.
	const src = `SELECT * FROM T /*Outer*/WHERE A = @A AND B = ?@B`
	bp, err := Compile(src)
	require.NoError(t, err)

	b := bp.Builder()
	require.NoError(t, b.Set("B", 2))
	sql, binds, err := b.Render()
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM T`, sql)
	assert.Empty(t, binds)

	require.NoError(t, b.Use("Outer"))
	sql, binds, err = b.Render()
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM T WHERE A = @A AND B = @B`, sql)
	assert.Len(t, binds, 2)
}

// =========================================================================
// Handler failure modes
// =========================================================================

func TestRenderHandlerErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		state map[string]any
		kind  ErrorKind
		fix   map[string]any
	}{
		{"MissingRequired", `SELECT * FROM T OFFSET @Skip_N ROWS`, nil,
			KindHandlerMissingValue, map[string]any{"Skip": 1}},
		{"TypeMismatchNumeric", `SELECT * FROM T OFFSET @Skip_N ROWS`, map[string]any{"Skip": "ten"},
			KindHandlerType, map[string]any{"Skip": 1}},
		{"EmptyRequiredSpread", `SELECT * FROM T WHERE a IN (@Ids_X)`, map[string]any{"Ids": []int{}},
			KindHandlerEmpty, map[string]any{"Ids": []int{1}}},
		{"NonEnumerableSpread", `SELECT * FROM T WHERE a IN (@Ids_X)`, map[string]any{"Ids": 5},
			KindHandlerType, map[string]any{"Ids": []int{1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bp, err := Compile(tt.src)
			require.NoError(t, err)
			b := bp.Builder()
			for k, v := range tt.state {
				require.NoError(t, b.Set(k, v))
			}
			_, _, err = b.Render()
			require.Error(t, err)
			kind, ok := KindOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, kind)

			// Render errors leave the builder and blueprint reusable.
			for k, v := range tt.fix {
				require.NoError(t, b.Set(k, v))
			}
			_, _, err = b.Render()
			assert.NoError(t, err)
		})
	}
}

// =========================================================================
// Properties
// =========================================================================

func TestRenderIsDeterministic(t *testing.T) {
	const src = `SELECT * FROM T WHERE a = ?@A AND b IN (?@B_X) ORDER BY c OFFSET ?@C_N ROWS`
	state := map[string]any{"A": 1, "B": []int{1, 2}, "C": 3}

	sql1, binds1 := render(t, src, state)
	sql2, binds2 := render(t, src, state)
	assert.Equal(t, sql1, sql2)
	assert.Equal(t, binds1, binds2)
}

func TestRenderRepeatedOnSameBuilder(t *testing.T) {
	bp, err := Compile(`SELECT * FROM T WHERE a = ?@A`)
	require.NoError(t, err)
	b := bp.Builder()
	require.NoError(t, b.Set("A", 1))

	sql1, _, err := b.Render()
	require.NoError(t, err)
	sql2, _, err := b.Render()
	require.NoError(t, err)
	assert.Equal(t, sql1, sql2)
}

func TestRenderConcurrentBuildersShareBlueprint(t *testing.T) {
	bp, err := Compile(`SELECT * FROM T WHERE a = ?@A AND b = ?@B`)
	require.NoError(t, err)

	done := make(chan string, 16)
	for i := 0; i < 16; i++ {
		go func(on bool) {
			b := bp.Builder()
			if on {
				_ = b.Set("A", 1)
			}
			sql, _, err := b.Render()
			if err != nil {
				done <- "error"
				return
			}
			done <- sql
		}(i%2 == 0)
	}
	for i := 0; i < 16; i++ {
		got := <-done
		assert.Contains(t, []string{
			`SELECT * FROM T`,
			`SELECT * FROM T WHERE a = @A`,
		}, got)
	}
}

func TestRenderBalancedOutput(t *testing.T) {
	// Invariant 1: any state yields balanced parens and no dangling
	// operator before a clause end.
	const src = `SELECT * FROM T WHERE a = ?@A AND b IN (?@B_X) AND (c = ?@C OR d = 1) ORDER BY e`
	states := []map[string]any{
		nil,
		{"A": 1},
		{"B": []int{1}},
		{"C": 2},
		{"A": 1, "B": []int{1, 2}, "C": 3},
	}
	for _, st := range states {
		sql, _ := render(t, src, st)
		depth := 0
		for i := 0; i < len(sql); i++ {
			switch sql[i] {
			case '(':
				depth++
			case ')':
				depth--
			}
			require.GreaterOrEqual(t, depth, 0, "sql %q", sql)
		}
		assert.Zero(t, depth, "sql %q", sql)
		assert.NotRegexp(t, `(?i)(AND|OR|,)\s*$`, sql)
		assert.NotRegexp(t, `(?i)WHERE\s*$`, sql)
	}
}

func TestResetSelects(t *testing.T) {
	bp, err := Compile(`?SELECT ID, Name FROM Users WHERE a = ?@A`)
	require.NoError(t, err)

	b := bp.Builder()
	require.NoError(t, b.Use("ID"))
	require.NoError(t, b.Set("A", 1))
	sql, _, err := b.Render()
	require.NoError(t, err)
	assert.Equal(t, `SELECT ID FROM Users WHERE a = @A`, sql)

	b.ResetSelects()
	require.NoError(t, b.Use("Name"))
	sql, _, err = b.Render()
	require.NoError(t, err)
	assert.Equal(t, `SELECT Name FROM Users WHERE a = @A`, sql)
}
