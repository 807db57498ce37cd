package dialect

import "strconv"

// Dialect controls how a rendered statement's named parameters are shipped
// to a driver and how identifiers are quoted.
type Dialect interface {
	Name() string
	// Placeholder returns the driver placeholder for the n-th parameter
	// (1-based).
	Placeholder(n int) string
	QuoteIdentifier(name string) string
}

type postgres struct{}

func NewPostgresDialect() Dialect { return postgres{} }

func (postgres) Name() string { return "postgres" }

func (postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgres) QuoteIdentifier(name string) string { return `"` + name + `"` }

type mysql struct{}

func NewMySQLDialect() Dialect { return mysql{} }

func (mysql) Name() string { return "mysql" }

func (mysql) Placeholder(int) string { return "?" }

func (mysql) QuoteIdentifier(name string) string { return "`" + name + "`" }

type sqlserver struct{}

func NewSQLServerDialect() Dialect { return sqlserver{} }

func (sqlserver) Name() string { return "sqlserver" }

func (sqlserver) Placeholder(n int) string { return "@p" + strconv.Itoa(n) }

func (sqlserver) QuoteIdentifier(name string) string { return "[" + name + "]" }
