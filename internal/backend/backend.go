// Package backend selects and runs the analysis backend that receives the
// extracted facts for a module.
package backend

import (
	"context"
	"time"

	"disasmfacts/internal/arch"
	"disasmfacts/internal/facts"
	"disasmfacts/internal/mangle"
)

// Backend is an analysis engine loaded with one module's facts.
type Backend interface {
	Name() string
	ISA() arch.ISA

	// Load inserts every tuple of acc in one batch and evaluates the rules.
	facts.Sink

	// Facts returns the stored tuples of a relation, derived ones included.
	// Order is unspecified and exact duplicates are collapsed. Numbers come
	// back as int64; unsigned values keep their bits.
	Facts(relation string) ([][]interface{}, error)

	// Signature returns the column kinds of a declared relation.
	Signature(relation string) ([]mangle.Kind, bool)

	Query(ctx context.Context, query string) (*mangle.QueryResult, error)
	Stats() mangle.Stats
	Close() error
}

// Config configures backend construction.
type Config struct {
	FactLimit    int
	QueryTimeout time.Duration
}

// Factory builds a backend instance.
type Factory func(cfg Config) (Backend, error)
