package schema

import (
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/RinkuLib/RinkuLib/template"
	"github.com/RinkuLib/RinkuLib/utils"
)

// Signature is the contract between the template core and the external
// row-mapper: given a final SQL string and its binding plan, the core hands
// back a stable fingerprint the mapper caches its column-matching and
// constructor decisions against. The ID is a ULID minted once per distinct
// statement shape.
type Signature struct {
	ID          string
	Fingerprint uint64
	SQL         string
	Params      []string
}

// Mapper is the row-mapper collaborator. It receives the signature of a
// rendered statement and is free to cache against Signature.Fingerprint.
type Mapper interface {
	Prepare(sig *Signature) error
}

// SignatureFor derives the mapper-facing signature of a rendered statement.
func SignatureFor(finalSQL string, binds []template.Binding) *Signature {
	params := make([]string, len(binds))
	fp := utils.FingerprintString(finalSQL)
	for i, b := range binds {
		params[i] = b.Name
		fp = utils.Mix64(fp, utils.FingerprintString(b.Name))
	}
	return &Signature{
		ID:          ulid.Make().String(),
		Fingerprint: fp,
		SQL:         finalSQL,
		Params:      params,
	}
}

// SignatureCache deduplicates signatures per statement shape so a mapper
// sees one stable ID per shape instead of one per render.
type SignatureCache struct {
	mu   sync.RWMutex
	data map[uint64]*Signature
}

func NewSignatureCache() *SignatureCache {
	return &SignatureCache{data: make(map[uint64]*Signature, 64)}
}

// For returns the cached signature for a rendered statement, creating it on
// first sight.
func (c *SignatureCache) For(finalSQL string, binds []template.Binding) *Signature {
	probe := SignatureFor(finalSQL, binds)

	c.mu.RLock()
	if sig, ok := c.data[probe.Fingerprint]; ok {
		c.mu.RUnlock()
		return sig
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if sig, ok := c.data[probe.Fingerprint]; ok {
		return sig
	}
	c.data[probe.Fingerprint] = probe
	return probe
}
