package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/RinkuLib/RinkuLib/cache"
	"github.com/RinkuLib/RinkuLib/database"
	"github.com/RinkuLib/RinkuLib/dialect"
	"github.com/RinkuLib/RinkuLib/handler"
	"github.com/RinkuLib/RinkuLib/schema"
	"github.com/RinkuLib/RinkuLib/template"
	"github.com/RinkuLib/RinkuLib/token"
)

// Engine ties the template core to a database: it caches compiled
// blueprints, renders them per call, translates the binding plan into driver
// arguments and executes.
type Engine struct {
	db         database.Database
	dialect    dialect.Dialect
	handlers   *handler.Registry
	blueprints *cache.BlueprintCache
	signatures *schema.SignatureCache
	naming     schema.NamingStrategy
	prefix     byte
	logger     *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDialect sets the driver placeholder style. Default is postgres.
func WithDialect(d dialect.Dialect) Option {
	return func(e *Engine) { e.dialect = d }
}

// WithHandlers compiles templates against a specific handler registry.
func WithHandlers(r *handler.Registry) Option {
	return func(e *Engine) { e.handlers = r }
}

// WithPrefix sets the variable prefix for templates run by this engine.
func WithPrefix(p byte) Option {
	return func(e *Engine) { e.prefix = p }
}

// WithCacheSize bounds the blueprint LRU.
func WithCacheSize(n int) Option {
	return func(e *Engine) { e.blueprints = cache.NewBlueprintCache(n) }
}

// WithLogger enables debug traces of rendered statements.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithNaming sets the naming strategy used by the template helpers.
func WithNaming(n schema.NamingStrategy) Option {
	return func(e *Engine) { e.naming = n }
}

// New creates an engine over a database.
func New(db database.Database, opts ...Option) *Engine {
	e := &Engine{
		db:         db,
		dialect:    dialect.NewPostgresDialect(),
		handlers:   handler.Default(),
		blueprints: cache.NewBlueprintCache(256),
		signatures: schema.NewSignatureCache(),
		naming:     schema.DefaultNaming,
		prefix:     token.DefaultPrefix,
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Blueprint compiles or fetches the blueprint for a template.
func (e *Engine) Blueprint(src string) (*template.Blueprint, error) {
	return e.blueprints.GetOrCompile(src, e.prefix, template.WithHandlers(e.handlers))
}

// Render produces the final SQL and binding plan for a template under the
// given parameters. Booleans drive flags and projection columns; everything
// else is a variable value.
func (e *Engine) Render(src string, params map[string]any) (string, []template.Binding, error) {
	bp, err := e.Blueprint(src)
	if err != nil {
		return "", nil, err
	}
	b := bp.Builder()
	for name, v := range params {
		if err := b.Set(name, v); err != nil {
			return "", nil, err
		}
	}
	sql, binds, err := b.Render()
	if err != nil {
		return "", nil, err
	}
	for _, w := range b.Warnings() {
		e.logger.Warn("render warning", zap.String("warning", w))
	}
	return sql, binds, nil
}

// Signature renders a template and returns the schema signature the
// row-mapper collaborator caches against.
func (e *Engine) Signature(src string, params map[string]any) (*schema.Signature, error) {
	sql, binds, err := e.Render(src, params)
	if err != nil {
		return nil, err
	}
	return e.signatures.For(sql, binds), nil
}

// Query renders and executes a statement that returns rows.
func (e *Engine) Query(ctx context.Context, src string, params map[string]any) (database.Rows, error) {
	sql, args, err := e.prepare(src, params)
	if err != nil {
		return nil, err
	}
	return e.db.QueryContext(ctx, sql, args...)
}

// Exec renders and executes a statement without a result set.
func (e *Engine) Exec(ctx context.Context, src string, params map[string]any) (database.Result, error) {
	sql, args, err := e.prepare(src, params)
	if err != nil {
		return nil, err
	}
	return e.db.ExecContext(ctx, sql, args...)
}

func (e *Engine) prepare(src string, params map[string]any) (string, []any, error) {
	rendered, binds, err := e.Render(src, params)
	if err != nil {
		return "", nil, err
	}
	final, args, err := translate(rendered, e.prefix, binds, params, e.dialect)
	if err != nil {
		return "", nil, err
	}
	e.logger.Debug("prepared statement",
		zap.String("sql", final), zap.Int("args", len(args)))
	return final, args, nil
}

// Close releases the underlying database.
func (e *Engine) Close() error { return e.db.Close() }
