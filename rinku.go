// Package rinku is a declarative micro-ORM core: a SQL template engine that
// compiles a parameterised SQL string into an immutable blueprint and, per
// call, prunes conditional fragments and splices handler-driven
// substitutions into a final statement plus a parameter-binding plan.
//
//	bp := rinku.MustCompile(`SELECT * FROM Users WHERE Name = ?@Name`)
//	b := bp.Builder()
//	b.Set("Name", "ada")
//	sql, binds, err := b.Render()
package rinku

import (
	"context"

	"github.com/RinkuLib/RinkuLib/connector"
	"github.com/RinkuLib/RinkuLib/engine"
	"github.com/RinkuLib/RinkuLib/template"
)

type (
	Blueprint = template.Blueprint
	Builder   = template.Builder
	Binding   = template.Binding
)

// Compile builds a blueprint from a template.
func Compile(src string, opts ...template.CompileOption) (*Blueprint, error) {
	return template.Compile(src, opts...)
}

// MustCompile is Compile, panicking on error.
func MustCompile(src string, opts ...template.CompileOption) *Blueprint {
	return template.MustCompile(src, opts...)
}

// Connect opens a PostgreSQL-backed engine.
func Connect(ctx context.Context, cfg connector.Config, opts ...engine.Option) (*engine.Engine, error) {
	db, err := connector.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return engine.New(db, opts...), nil
}
