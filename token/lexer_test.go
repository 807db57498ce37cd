package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []Token) []Kind {
	out := make([]Kind, 0, len(toks))
	for _, t := range toks {
		if t.Kind == Ws {
			continue
		}
		out = append(out, t.Kind)
	}
	return out
}

func TestLexBasicStatement(t *testing.T) {
	toks, err := Lex("SELECT * FROM Users WHERE Name = @Name", '@')
	require.NoError(t, err)

	assert.Equal(t,
		[]Kind{Section, Op, Section, Word, Section, Word, Op, Variable},
		kinds(toks))

	last := toks[len(toks)-1]
	assert.Equal(t, "Name", last.Name)
	assert.False(t, last.Optional)
	assert.EqualValues(t, 0, last.Handler)
}

func TestLexMultiWordKeywords(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		canon string
	}{
		{"GroupBy", "GROUP BY x", "GROUP BY"},
		{"OrderByLower", "order   by x", "ORDER BY"},
		{"UnionAll", "UNION ALL SELECT", "UNION ALL"},
		{"LeftJoin", "LEFT JOIN t", "LEFT JOIN"},
		{"LeftOuterJoin", "LEFT OUTER JOIN t", "LEFT OUTER JOIN"},
		{"BareJoin", "JOIN t", "JOIN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := Lex(tt.src, '@')
			require.NoError(t, err)
			require.NotEmpty(t, toks)
			assert.Equal(t, Section, toks[0].Kind)
			assert.Equal(t, tt.canon, toks[0].Canon)
		})
	}
}

func TestLexFetchIsNotAKeyword(t *testing.T) {
	toks, err := Lex("OFFSET 1 ROWS FETCH NEXT 2 ROWS ONLY", '@')
	require.NoError(t, err)
	assert.Equal(t, Section, toks[0].Kind)
	for _, tok := range toks[1:] {
		assert.NotEqual(t, Section, tok.Kind, "token %q", tok.Text)
	}
}

func TestLexVariables(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		varName  string
		optional bool
		handler  byte
	}{
		{"Plain", "@Name", "Name", false, 0},
		{"Optional", "?@Name", "Name", true, 0},
		{"Handler", "@Skip_N", "Skip", false, 'N'},
		{"HandlerLower", "@Skip_n", "Skip", false, 'N'},
		{"OptionalHandler", "?@Cats_X", "Cats", true, 'X'},
		{"UnderscoreKeepsName", "@Updated_At", "Updated_At", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := Lex(tt.src, '@')
			require.NoError(t, err)
			require.Len(t, toks, 1)
			tok := toks[0]
			assert.Equal(t, Variable, tok.Kind)
			assert.Equal(t, tt.varName, tok.Name)
			assert.Equal(t, tt.optional, tok.Optional)
			assert.Equal(t, tt.handler, tok.Handler)
		})
	}
}

func TestLexCustomPrefix(t *testing.T) {
	toks, err := Lex("WHERE a = :A", ':')
	require.NoError(t, err)
	last := toks[len(toks)-1]
	assert.Equal(t, Variable, last.Kind)
	assert.Equal(t, "A", last.Name)
}

func TestLexCommentsAndHints(t *testing.T) {
	toks, err := Lex("/* HasName */ x /*~ TOP 10*/", '@')
	require.NoError(t, err)

	require.Equal(t, Comment, toks[0].Kind)
	assert.Equal(t, "HasName", toks[0].Body)

	last := toks[len(toks)-1]
	require.Equal(t, LiteralHint, last.Kind)
	assert.Equal(t, " TOP 10", last.Body)
}

func TestLexSpecialTokens(t *testing.T) {
	toks, err := Lex("??? &AND &, ?SELECT ?", '@')
	require.NoError(t, err)

	nk := kinds(toks)
	require.Equal(t, []Kind{Boundary, ContextJoin, ContextJoin, DynamicSelect, Op}, nk)

	var joins []string
	for _, tok := range toks {
		if tok.Kind == ContextJoin {
			joins = append(joins, tok.Canon)
		}
	}
	assert.Equal(t, []string{"AND", ","}, joins)
}

func TestLexStringLiteral(t *testing.T) {
	toks, err := Lex("name = 'O''Brien'", '@')
	require.NoError(t, err)
	last := toks[len(toks)-1]
	assert.Equal(t, String, last.Kind)
	assert.Equal(t, "'O''Brien'", last.Text)
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"UnterminatedString", "WHERE a = 'oops"},
		{"UnterminatedComment", "WHERE a = 1 /* open"},
		{"MalformedVariable", "WHERE a = @1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lex(tt.src, '@')
			require.Error(t, err)
			var se *SyntaxError
			assert.ErrorAs(t, err, &se)
		})
	}
}
