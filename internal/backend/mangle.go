package backend

import (
	"context"
	"embed"
	"fmt"
	"sync"

	"disasmfacts/internal/arch"
	"disasmfacts/internal/facts"
	"disasmfacts/internal/logging"
	"disasmfacts/internal/mangle"
)

//go:embed schemas/*.mg
var schemaFS embed.FS

// mangleBackend stores facts in a Mangle engine and evaluates the schema
// rules once all facts are in.
type mangleBackend struct {
	name   string
	isa    arch.ISA
	engine *mangle.Engine

	mu     sync.Mutex
	loaded bool
}

// MangleFactory returns a factory for a Mangle-backed backend whose program
// is the concatenation of the named embedded schema files.
func MangleFactory(name string, isa arch.ISA, schemas ...string) Factory {
	return func(cfg Config) (Backend, error) {
		engine := mangle.NewEngine(mangle.Config{
			FactLimit:    cfg.FactLimit,
			QueryTimeout: cfg.QueryTimeout,
		})
		if err := engine.LoadSchemaFS(schemaFS, schemas...); err != nil {
			return nil, err
		}
		return &mangleBackend{name: name, isa: isa, engine: engine}, nil
	}
}

func (b *mangleBackend) Name() string  { return b.name }
func (b *mangleBackend) ISA() arch.ISA { return b.isa }

// Load implements facts.Sink. A backend accepts exactly one batch.
func (b *mangleBackend) Load(ctx context.Context, acc *facts.Accumulator) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.loaded {
		return fmt.Errorf("backend %s already loaded", b.name)
	}

	timer := logging.StartTimer(logging.CategoryBackend, "backend load")
	defer timer.StopWithInfo()

	for _, rel := range acc.Relations() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !b.engine.IsDeclared(rel) {
			return fmt.Errorf("backend %s: relation %s is not declared", b.name, rel)
		}

		tuples := acc.Tuples(rel)
		batch := make([]mangle.Fact, len(tuples))
		for i, t := range tuples {
			args, err := toEngineArgs(t)
			if err != nil {
				return fmt.Errorf("backend %s: load %s%s: %w", b.name, rel, t, err)
			}
			batch[i] = mangle.Fact{Predicate: rel, Args: args}
		}
		if err := b.engine.Insert(batch...); err != nil {
			return fmt.Errorf("backend %s: load %s: %w", b.name, rel, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.engine.Evaluate(); err != nil {
		return fmt.Errorf("backend %s: %w", b.name, err)
	}
	b.loaded = true

	logging.Backend("%s loaded %d tuples from %d relations", b.name, acc.Total(), len(acc.Relations()))
	return nil
}

func (b *mangleBackend) Facts(relation string) ([][]interface{}, error) {
	return b.engine.Facts(relation)
}

func (b *mangleBackend) Signature(relation string) ([]mangle.Kind, bool) {
	return b.engine.Signature(relation)
}

func (b *mangleBackend) Query(ctx context.Context, query string) (*mangle.QueryResult, error) {
	return b.engine.Query(ctx, query)
}

func (b *mangleBackend) Stats() mangle.Stats {
	return b.engine.Stats()
}

func (b *mangleBackend) Close() error {
	return b.engine.Close()
}

// toEngineArgs converts tuple values to the engine's int64 and string terms.
// Mangle numbers are signed 64-bit, so a uint64 is stored as the int64 with
// the same bits: 0xffffffff81000000 reads back as -2130706432 and
// uint64(v) recovers the address.
func toEngineArgs(t facts.Tuple) ([]interface{}, error) {
	args := make([]interface{}, len(t))
	for i, v := range t {
		switch x := v.(type) {
		case uint64:
			args[i] = int64(x)
		case int64, string:
			args[i] = x
		default:
			return nil, fmt.Errorf("arg %d: unsupported value type %T", i, v)
		}
	}
	return args, nil
}
