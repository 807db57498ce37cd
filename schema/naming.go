package schema

import (
	"strings"
	"unicode"

	pluralizer "github.com/gertd/go-pluralize"
)

// Naming utilities for deriving table and column names from Go type and
// field names. The engine's template helpers use these to build default
// statements for an entity.

// pluralizeClient is a singleton for consistent pluralization behavior.
var pluralizeClient = pluralizer.NewClient()

// NamingStrategy converts Go names to database names.
type NamingStrategy interface {
	TableName(structName string) string
	ColumnName(fieldName string) string
}

// SnakeCaseNaming maps UserAccount -> user_accounts (optionally singular).
type SnakeCaseNaming struct {
	SingularTables bool
}

func (n SnakeCaseNaming) TableName(structName string) string {
	s := ToSnakeCase(structName)
	if n.SingularTables {
		return s
	}
	return Pluralize(s)
}

func (n SnakeCaseNaming) ColumnName(fieldName string) string {
	return ToSnakeCase(fieldName)
}

// VerbatimNaming keeps Go names as-is, pluralizing table names. Matches the
// PascalCase column style used throughout the template examples.
type VerbatimNaming struct {
	SingularTables bool
}

func (n VerbatimNaming) TableName(structName string) string {
	if n.SingularTables {
		return structName
	}
	return Pluralize(structName)
}

func (n VerbatimNaming) ColumnName(fieldName string) string { return fieldName }

// DefaultNaming is the strategy used when the engine is not configured.
var DefaultNaming NamingStrategy = VerbatimNaming{}

// Pluralize returns the plural form of a word.
func Pluralize(word string) string {
	return pluralizeClient.Plural(word)
}

// Singularize returns the singular form of a word.
func Singularize(word string) string {
	return pluralizeClient.Singular(word)
}

// ToSnakeCase converts CamelCase or PascalCase to snake_case, keeping
// acronym runs together (HTTPServer -> http_server).
func ToSnakeCase(name string) string {
	if name == "" {
		return name
	}
	var sb strings.Builder
	sb.Grow(len(name) + 4)
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (!unicode.IsUpper(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
