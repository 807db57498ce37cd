package template

import (
	"sort"
	"strings"
)

// Bank identifies the kind of a key. The final index space is dense and
// bank-partitioned: projection columns first, then bare flags, then ordinary
// variables, then special-handler and base-handler variables. Within a bank,
// first appearance wins.
type Bank uint8

const (
	BankSelect Bank = iota
	BankFlag
	BankVariable
	BankSpecial
	BankBase
)

// Registry is the case-insensitive, insertion-ordered key index of a
// blueprint. It never mutates after compilation.
type Registry struct {
	names []string
	banks []Bank
	index map[string]int

	endSelects     int
	startVariables int
}

func newRegistry() *Registry {
	return &Registry{index: make(map[string]int, 16)}
}

func fold(name string) string { return strings.ToLower(name) }

// getOrAdd registers a name under bank if it is new and returns its
// provisional id. An existing name keeps its original bank: a projection
// column or flag that collides with a variable resolves to the variable.
func (r *Registry) getOrAdd(name string, bank Bank) int {
	f := fold(name)
	if i, ok := r.index[f]; ok {
		return i
	}
	i := len(r.names)
	r.names = append(r.names, name)
	r.banks = append(r.banks, bank)
	r.index[f] = i
	return i
}

func (r *Registry) lookup(name string) (int, bool) {
	i, ok := r.index[fold(name)]
	return i, ok
}

// finalize reorders entries into bank order (stable within a bank) and
// returns the remap from provisional to final ids.
func (r *Registry) finalize() []int {
	order := make([]int, len(r.names))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return r.banks[order[a]] < r.banks[order[b]]
	})

	remap := make([]int, len(r.names))
	names := make([]string, len(r.names))
	banks := make([]Bank, len(r.names))
	for newIdx, oldIdx := range order {
		remap[oldIdx] = newIdx
		names[newIdx] = r.names[oldIdx]
		banks[newIdx] = r.banks[oldIdx]
	}
	r.names = names
	r.banks = banks
	for i, n := range r.names {
		r.index[fold(n)] = i
	}

	r.endSelects = 0
	for r.endSelects < len(banks) && banks[r.endSelects] == BankSelect {
		r.endSelects++
	}
	r.startVariables = r.endSelects
	for r.startVariables < len(banks) && banks[r.startVariables] == BankFlag {
		r.startVariables++
	}
	return remap
}

// Count returns the number of distinct keys.
func (r *Registry) Count() int { return len(r.names) }

// Name returns the key name at a dense index.
func (r *Registry) Name(i int) string { return r.names[i] }

// BankOf returns the bank of the key at a dense index.
func (r *Registry) BankOf(i int) Bank { return r.banks[i] }

// IndexOf resolves a name case-insensitively.
func (r *Registry) IndexOf(name string) (int, bool) { return r.lookup(name) }

// EndSelects is the exclusive upper bound of the projection-column bank.
func (r *Registry) EndSelects() int { return r.endSelects }

// StartVariables is the index of the first variable key.
func (r *Registry) StartVariables() int { return r.startVariables }

// Keys returns all key names in dense-index order.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
