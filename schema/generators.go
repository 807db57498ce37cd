package schema

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// IDGenerator produces values for identifier slots in insert templates.
type IDGenerator interface {
	Generate() (any, error)
	Type() string
}

// UUIDGenerator generates UUID v4 values.
type UUIDGenerator struct{}

func (g UUIDGenerator) Generate() (any, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate UUID: %w", err)
	}
	return id.String(), nil
}

func (g UUIDGenerator) Type() string { return "uuid" }

// ULIDGenerator generates monotonic ULID values.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ULIDGenerator) Generate() (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), g.entropy)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}

func (g *ULIDGenerator) Type() string { return "ulid" }

// SnowflakeGenerator generates time-ordered int64 IDs:
// 41 bits of millisecond timestamp, 10 bits of machine id, 12 bits of
// sequence.
type SnowflakeGenerator struct {
	mu        sync.Mutex
	machineID uint64
	sequence  uint64
	lastTime  uint64
	epoch     uint64
}

func NewSnowflakeGenerator(machineID uint64) *SnowflakeGenerator {
	epoch := uint64(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli())
	return &SnowflakeGenerator{machineID: machineID & 0x3FF, epoch: epoch}
}

func (g *SnowflakeGenerator) Generate() (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := uint64(time.Now().UnixMilli())
	if now < g.lastTime {
		return nil, fmt.Errorf("clock moved backwards")
	}
	if now == g.lastTime {
		g.sequence = (g.sequence + 1) & 0xFFF
		if g.sequence == 0 {
			// Sequence exhausted for this millisecond.
			for now <= g.lastTime {
				now = uint64(time.Now().UnixMilli())
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastTime = now

	id := ((now - g.epoch) << 22) | (g.machineID << 12) | g.sequence
	return int64(id), nil
}

func (g *SnowflakeGenerator) Type() string { return "snowflake" }

const nanoIDAlphabet = "_-0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NanoIDGenerator generates URL-safe random string IDs.
type NanoIDGenerator struct {
	size     int
	alphabet string
}

func NewNanoIDGenerator(size int, alphabet string) *NanoIDGenerator {
	if size <= 0 {
		size = 21
	}
	if alphabet == "" {
		alphabet = nanoIDAlphabet
	}
	return &NanoIDGenerator{size: size, alphabet: alphabet}
}

func (g *NanoIDGenerator) Generate() (any, error) {
	buf := make([]byte, g.size)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	id := make([]byte, g.size)
	for i, b := range buf {
		id[i] = g.alphabet[int(b)%len(g.alphabet)]
	}
	return string(id), nil
}

func (g *NanoIDGenerator) Type() string { return "nanoid" }

// GeneratorRegistry maps generator type names to implementations.
type GeneratorRegistry struct {
	mu         sync.RWMutex
	generators map[string]IDGenerator
}

var defaultGenerators = NewGeneratorRegistry()

func NewGeneratorRegistry() *GeneratorRegistry {
	r := &GeneratorRegistry{generators: make(map[string]IDGenerator, 4)}
	r.Register("uuid", UUIDGenerator{})
	r.Register("ulid", NewULIDGenerator())
	r.Register("snowflake", NewSnowflakeGenerator(1))
	r.Register("nanoid", NewNanoIDGenerator(21, ""))
	return r
}

func (r *GeneratorRegistry) Register(name string, g IDGenerator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[name] = g
}

func (r *GeneratorRegistry) Get(name string) (IDGenerator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.generators[name]
	return g, ok
}

func (r *GeneratorRegistry) Generate(generatorType string) (any, error) {
	g, ok := r.Get(generatorType)
	if !ok {
		return nil, fmt.Errorf("unknown generator type: %s", generatorType)
	}
	return g.Generate()
}

// RegisterGenerator adds a generator to the process-wide registry.
func RegisterGenerator(name string, g IDGenerator) {
	defaultGenerators.Register(name, g)
}

// GenerateID produces an ID of the named type from the process-wide
// registry.
func GenerateID(generatorType string) (any, error) {
	return defaultGenerators.Generate(generatorType)
}
