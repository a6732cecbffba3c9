// Package id provides centralized ID generation for the relay.
//
// Endpoints and workers carry prefixed ULIDs so that log lines from one run
// sort by creation time and can be told apart at a glance:
//   - ep_*:  coordinator- or worker-facing pipe endpoint
//   - wrk_*: spawned worker stage
//
// A run as a whole is identified by a UUID, which is handed to worker
// processes through their environment so their diagnostics can be joined
// with the coordinator's.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ============================================================================
// Type-Safe ID Wrappers
// ============================================================================

// EndpointID identifies one end of a pipe
type EndpointID string

// WorkerID identifies a spawned worker stage
type WorkerID string

// RunID identifies one relay invocation
type RunID string

const (
	EndpointPrefix = "ep"
	WorkerPrefix   = "wrk"
)

// ============================================================================
// ULID Generator
// ============================================================================

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// ============================================================================
// Typed ID Generators
// ============================================================================

// NewEndpointID generates a new endpoint ID
func NewEndpointID() EndpointID {
	return EndpointID(Default().GenerateWithPrefix(EndpointPrefix))
}

// NewWorkerID generates a new worker ID
func NewWorkerID() WorkerID {
	return WorkerID(Default().GenerateWithPrefix(WorkerPrefix))
}

// NewRunID generates a new run ID
func NewRunID() RunID {
	return RunID(uuid.NewString())
}

func (id EndpointID) String() string { return string(id) }
func (id WorkerID) String() string   { return string(id) }
func (id RunID) String() string      { return string(id) }
