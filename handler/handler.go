package handler

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Handlers turn a variable's render-time value into SQL text. A Base handler
// only produces text. A Special handler produces text and registers bound
// parameters on the binding plan.
//
// Registries are letter-indexed ('A'..'Z', case-insensitive) and intended for
// startup-time mutation. Blueprints capture a Snapshot at compile time, so
// later mutation never changes an existing blueprint.

// Base produces replacement text for a handled variable.
type Base interface {
	EmitText(name string, value any) (string, error)
}

// BaseFunc adapts a function to the Base interface.
type BaseFunc func(name string, value any) (string, error)

func (f BaseFunc) EmitText(name string, value any) (string, error) { return f(name, value) }

// Bind is one parameter produced by a Special handler.
type Bind struct {
	Name  string
	Value any
}

// Special produces replacement text plus one or more parameter bindings.
// The prefix byte is the template's variable sigil.
type Special interface {
	Expand(prefix byte, name string, value any) (string, []Bind, error)
}

// SpecialFunc adapts a function to the Special interface.
type SpecialFunc func(prefix byte, name string, value any) (string, []Bind, error)

func (f SpecialFunc) Expand(prefix byte, name string, value any) (string, []Bind, error) {
	return f(prefix, name, value)
}

// Registry holds the two letter-indexed handler tables.
type Registry struct {
	mu      sync.RWMutex
	base    [26]Base
	special [26]Special
}

func NewRegistry() *Registry { return &Registry{} }

var defaultRegistry = newDefaultRegistry()

// Default returns the process-wide registry, pre-populated with the
// reference handlers N, S, R and X.
func Default() *Registry { return defaultRegistry }

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.RegisterBase('N', BaseFunc(emitNumeric))
	_ = r.RegisterBase('S', BaseFunc(emitStringLiteral))
	_ = r.RegisterBase('R', BaseFunc(emitRaw))
	_ = r.RegisterSpecial('X', SpecialFunc(expandList))
	return r
}

func slot(letter byte) (int, error) {
	if letter >= 'a' && letter <= 'z' {
		letter -= 'a' - 'A'
	}
	if letter < 'A' || letter > 'Z' {
		return 0, fmt.Errorf("handler letter %q out of range", letter)
	}
	return int(letter - 'A'), nil
}

func (r *Registry) RegisterBase(letter byte, h Base) error {
	i, err := slot(letter)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.base[i] = h
	return nil
}

func (r *Registry) RegisterSpecial(letter byte, h Special) error {
	i, err := slot(letter)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.special[i] = h
	return nil
}

// Snapshot is an immutable copy of a registry taken at compile time.
type Snapshot struct {
	base    [26]Base
	special [26]Special
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{base: r.base, special: r.special}
}

// Base returns the base handler for a letter, or nil.
func (s Snapshot) Base(letter byte) Base {
	i, err := slot(letter)
	if err != nil {
		return nil
	}
	return s.base[i]
}

// Special returns the special handler for a letter, or nil.
func (s Snapshot) Special(letter byte) Special {
	i, err := slot(letter)
	if err != nil {
		return nil
	}
	return s.special[i]
}

// Known reports whether a letter resolves to any handler.
func (s Snapshot) Known(letter byte) bool {
	return s.Base(letter) != nil || s.Special(letter) != nil
}

// Enumerate flattens a slice or array value into its elements. Byte slices
// and strings are scalars, not enumerables.
func Enumerate(value any) ([]any, bool) {
	switch value.(type) {
	case nil, []byte, string:
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// emitNumeric renders a numeric value as its decimal representation.
func emitNumeric(name string, value any) (string, error) {
	switch v := value.(type) {
	case int:
		return strconv.Itoa(v), nil
	case int8:
		return strconv.FormatInt(int64(v), 10), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	}
	return "", fmt.Errorf("handler N: %s is %T, not numeric", name, value)
}

// emitStringLiteral renders a string as a single-quoted SQL literal with
// embedded quotes doubled.
func emitStringLiteral(name string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("handler S: %s is %T, not string", name, value)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'", nil
}

// emitRaw splices the string value verbatim. No escaping is applied.
func emitRaw(name string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("handler R: %s is %T, not string", name, value)
	}
	return s, nil
}

// expandList spreads an enumerable as @Name_1, @Name_2, ... and registers
// one binding per element. Emptiness is decided by the renderer before this
// handler runs.
func expandList(prefix byte, name string, value any) (string, []Bind, error) {
	items, ok := Enumerate(value)
	if !ok {
		return "", nil, fmt.Errorf("handler X: %s is %T, not enumerable", name, value)
	}
	var sb strings.Builder
	sb.Grow(len(items) * (len(name) + 6))
	binds := make([]Bind, 0, len(items))
	for i, v := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := name + "_" + strconv.Itoa(i+1)
		sb.WriteByte(prefix)
		sb.WriteString(n)
		binds = append(binds, Bind{Name: n, Value: v})
	}
	return sb.String(), binds, nil
}
