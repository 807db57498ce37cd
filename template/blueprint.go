package template

import (
	"github.com/RinkuLib/RinkuLib/handler"
	"github.com/RinkuLib/RinkuLib/token"
)

// Blueprint is the immutable compiled form of a template. It is safe for
// concurrent use: any number of builders may render it at once.
type Blueprint struct {
	src         string
	prefix      byte
	reg         *Registry
	segs        []Segment
	scopes      []scopeInfo
	projections []Projection
	handlers    handler.Snapshot
}

type compileConfig struct {
	prefix   byte
	handlers *handler.Registry
}

// CompileOption tweaks a single compilation.
type CompileOption func(*compileConfig)

// WithPrefix overrides the variable prefix character for this compilation.
func WithPrefix(prefix byte) CompileOption {
	return func(c *compileConfig) { c.prefix = prefix }
}

// WithHandlers compiles against a specific handler registry instead of the
// process-wide default. The blueprint keeps a snapshot either way.
func WithHandlers(r *handler.Registry) CompileOption {
	return func(c *compileConfig) { c.handlers = r }
}

var globalPrefix byte = token.DefaultPrefix

// SetDefaultPrefix overrides the process-wide variable prefix. Only
// templates compiled afterwards are affected.
func SetDefaultPrefix(prefix byte) {
	if prefix != 0 {
		globalPrefix = prefix
	}
}

// Compile lexes and fragments a template into a blueprint.
func Compile(src string, opts ...CompileOption) (*Blueprint, error) {
	cfg := compileConfig{prefix: globalPrefix, handlers: handler.Default()}
	for _, o := range opts {
		o(&cfg)
	}

	toks, err := token.Lex(src, cfg.prefix)
	if err != nil {
		return nil, asCompileError(err)
	}

	c := newCompiler(src, cfg.prefix, toks, cfg.handlers.Snapshot())
	bp, err := c.compile()
	if err != nil {
		return nil, err
	}
	return bp, nil
}

// MustCompile is Compile, panicking on error.
func MustCompile(src string, opts ...CompileOption) *Blueprint {
	bp, err := Compile(src, opts...)
	if err != nil {
		panic(err)
	}
	return bp
}

// Template returns the original template text.
func (bp *Blueprint) Template() string { return bp.src }

// Prefix returns the variable prefix this blueprint was compiled with.
func (bp *Blueprint) Prefix() byte { return bp.prefix }

// Keys returns the key registry.
func (bp *Blueprint) Keys() *Registry { return bp.reg }

// NumSegments returns the number of compiled segments.
func (bp *Blueprint) NumSegments() int { return len(bp.segs) }

// Segments returns a copy of the segment table, for inspection and tests.
func (bp *Blueprint) Segments() []Segment {
	out := make([]Segment, len(bp.segs))
	copy(out, bp.segs)
	return out
}

// Projections returns the dynamic-projection groupings.
func (bp *Blueprint) Projections() []Projection {
	out := make([]Projection, len(bp.projections))
	copy(out, bp.projections)
	return out
}

// Builder returns a fresh single-owner state vector for this blueprint.
func (bp *Blueprint) Builder() *Builder { return NewBuilder(bp) }
