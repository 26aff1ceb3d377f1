// Package mangle wraps the Google Mangle Datalog engine as the fact store and
// rule evaluator behind disasmfacts analysis backends.
//
// Arguments are int64 or string. Callers holding other Go types convert
// before inserting; the engine never guesses.
package mangle

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"disasmfacts/internal/logging"
)

// Config holds Mangle engine configuration.
type Config struct {
	FactLimit    int           // 0 disables the limit
	QueryTimeout time.Duration // applied when the caller's context has no deadline
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{FactLimit: 1000000, QueryTimeout: 30 * time.Second}
}

// Kind is the declared type of one predicate column.
type Kind int

const (
	KindAny Kind = iota
	KindNumber
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "any"
	}
}

// Fact is one predicate application.
type Fact struct {
	Predicate string
	Args      []interface{}
}

// QueryResult holds the variable bindings of every answer to a query.
type QueryResult struct {
	Bindings []map[string]interface{}
	Duration time.Duration
}

// Stats counts stored facts.
type Stats struct {
	TotalFacts      int
	PredicateCounts map[string]int
}

// predInfo is what the engine knows about one declared predicate.
type predInfo struct {
	sym   ast.PredicateSym
	kinds []Kind
}

// Engine holds a Mangle program and its in-memory fact store.
type Engine struct {
	cfg Config

	mu      sync.RWMutex
	units   []parse.SourceUnit
	program *analysis.ProgramInfo
	preds   map[string]predInfo
	store   factstore.ConcurrentFactStore
	stored  int
	warned  bool
}

// NewEngine creates an engine with no program loaded.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:   cfg,
		preds: make(map[string]predInfo),
		store: factstore.NewConcurrentFactStore(factstore.NewSimpleInMemoryStore()),
	}
}

// LoadSchemaFS loads the named schema files from fsys, in order.
func (e *Engine) LoadSchemaFS(fsys fs.FS, names ...string) error {
	for _, name := range names {
		src, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("failed to read schema file %s: %w", name, err)
		}
		if err := e.LoadSchema(name, src); err != nil {
			return err
		}
	}
	return nil
}

// LoadSchema adds a program fragment. The whole program is re-analyzed; a
// fragment that does not analyze is dropped again.
func (e *Engine) LoadSchema(name string, src []byte) error {
	unit, err := parse.Unit(bytes.NewReader(src))
	if err != nil {
		return fmt.Errorf("failed to parse schema %s: %w", name, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	units := append(e.units, unit)
	if err := e.analyzeLocked(units); err != nil {
		return fmt.Errorf("failed to analyze schema %s: %w", name, err)
	}
	e.units = units
	logging.BackendDebug("schema %s: %d predicates declared", name, len(e.preds))
	return nil
}

func (e *Engine) analyzeLocked(units []parse.SourceUnit) error {
	var merged parse.SourceUnit
	for _, u := range units {
		merged.Clauses = append(merged.Clauses, u.Clauses...)
		merged.Decls = append(merged.Decls, u.Decls...)
	}
	info, err := analysis.AnalyzeOneUnit(merged, nil)
	if err != nil {
		return err
	}

	preds := make(map[string]predInfo, len(info.Decls))
	for sym, decl := range info.Decls {
		preds[sym.Symbol] = predInfo{sym: sym, kinds: columnKinds(sym, decl)}
	}

	e.program = info
	e.preds = preds
	return nil
}

// columnKinds reads the first bound declaration of a predicate.
func columnKinds(sym ast.PredicateSym, decl *ast.Decl) []Kind {
	kinds := make([]Kind, sym.Arity)
	if decl == nil || len(decl.Bounds) == 0 {
		return kinds
	}
	for i, b := range decl.Bounds[0].Bounds {
		if i >= len(kinds) {
			break
		}
		if c, ok := b.(ast.Constant); ok {
			switch c.Symbol {
			case "/number":
				kinds[i] = KindNumber
			case "/string":
				kinds[i] = KindString
			}
		}
	}
	return kinds
}

// IsDeclared reports whether the loaded program declares predicate.
func (e *Engine) IsDeclared(predicate string) bool {
	_, ok := e.Signature(predicate)
	return ok
}

// Signature returns the column kinds of a declared predicate.
func (e *Engine) Signature(predicate string) ([]Kind, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.preds[predicate]
	if !ok {
		return nil, false
	}
	return append([]Kind(nil), p.kinds...), true
}

// Predicates returns the declared predicate names, sorted.
func (e *Engine) Predicates() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.preds))
	for name := range e.preds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Insert stores facts. Rules are not evaluated; call Evaluate once all facts
// are in. Exact duplicates are stored once and do not count toward the limit.
func (e *Engine) Insert(facts ...Fact) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.program == nil {
		return fmt.Errorf("no schemas loaded")
	}
	for _, f := range facts {
		atom, err := e.atomLocked(f)
		if err != nil {
			return err
		}
		if !e.store.Add(atom) {
			continue
		}
		e.stored++
		if limit := e.cfg.FactLimit; limit > 0 {
			if e.stored > limit {
				return fmt.Errorf("fact limit exceeded: %d", limit)
			}
			if !e.warned && e.stored*100 >= limit*85 {
				logging.BackendWarn("fact store at %d of %d facts", e.stored, limit)
				e.warned = true
			}
		}
	}
	return nil
}

func (e *Engine) atomLocked(f Fact) (ast.Atom, error) {
	p, ok := e.preds[f.Predicate]
	if !ok {
		return ast.Atom{}, fmt.Errorf("predicate %s is not declared", f.Predicate)
	}
	if len(f.Args) != len(p.kinds) {
		return ast.Atom{}, fmt.Errorf("predicate %s expects %d args, got %d", f.Predicate, len(p.kinds), len(f.Args))
	}
	args := make([]ast.BaseTerm, len(f.Args))
	for i, v := range f.Args {
		c, err := toConstant(v, p.kinds[i])
		if err != nil {
			return ast.Atom{}, fmt.Errorf("predicate %s arg %d: %w", f.Predicate, i, err)
		}
		args[i] = c
	}
	return ast.Atom{Predicate: p.sym, Args: args}, nil
}

func toConstant(v interface{}, kind Kind) (ast.Constant, error) {
	switch x := v.(type) {
	case int64:
		if kind == KindString {
			return ast.Constant{}, fmt.Errorf("expected string, got number %d", x)
		}
		return ast.Number(x), nil
	case string:
		if kind == KindNumber {
			return ast.Constant{}, fmt.Errorf("expected number, got string %q", x)
		}
		return ast.String(x), nil
	default:
		return ast.Constant{}, fmt.Errorf("unsupported argument type %T", v)
	}
}

// Evaluate runs the program's rules to a fixpoint over the stored facts.
func (e *Engine) Evaluate() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.program == nil {
		return fmt.Errorf("no schemas loaded")
	}
	timer := logging.StartTimer(logging.CategoryBackend, "rule evaluation")
	stats, err := mengine.EvalProgramWithStats(e.program, e.store)
	timer.Stop()
	if err != nil {
		return fmt.Errorf("evaluate rules: %w", err)
	}
	logging.BackendDebug("rule evaluation stats: %+v", stats)
	return nil
}

// Facts returns every stored tuple of a predicate, derived ones included.
func (e *Engine) Facts(predicate string) ([][]interface{}, error) {
	e.mu.RLock()
	p, ok := e.preds[predicate]
	store := e.store
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("predicate %s is not declared", predicate)
	}

	var out [][]interface{}
	err := store.GetFacts(ast.NewQuery(p.sym), func(a ast.Atom) error {
		row := make([]interface{}, len(a.Args))
		for i, arg := range a.Args {
			row[i] = fromTerm(arg)
		}
		out = append(out, row)
		return nil
	})
	return out, err
}

// Query matches one atom such as "symbol(EA, T, B, V, Name)" against the
// stored facts, derived ones included once Evaluate has run. A variable that
// repeats must bind the same value everywhere. The context bounds the scan;
// without a deadline the configured timeout applies.
func (e *Engine) Query(ctx context.Context, query string) (*QueryResult, error) {
	atom, err := parseQuery(query)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	loaded := e.program != nil
	p, ok := e.preds[atom.Predicate.Symbol]
	store := e.store
	e.mu.RUnlock()
	if !loaded {
		return nil, fmt.Errorf("no schemas loaded")
	}
	if !ok || p.sym.Arity != atom.Predicate.Arity {
		return nil, fmt.Errorf("predicate %s/%d is not declared", atom.Predicate.Symbol, atom.Predicate.Arity)
	}
	atom.Predicate = p.sym

	if _, ok := ctx.Deadline(); !ok && e.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.QueryTimeout)
		defer cancel()
	}

	start := time.Now()
	res := &QueryResult{}
	err = store.GetFacts(atom, func(fact ast.Atom) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if row, ok := bind(atom.Args, fact.Args); ok {
			res.Bindings = append(res.Bindings, row)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", query, err)
	}
	res.Duration = time.Since(start)
	return res, nil
}

func bind(pattern, args []ast.BaseTerm) (map[string]interface{}, bool) {
	row := make(map[string]interface{})
	seen := make(map[string]ast.BaseTerm)
	for i, t := range pattern {
		v, ok := t.(ast.Variable)
		if !ok || v.Symbol == "_" {
			continue
		}
		if prev, ok := seen[v.Symbol]; ok {
			if !prev.Equals(args[i]) {
				return nil, false
			}
			continue
		}
		seen[v.Symbol] = args[i]
		row[v.Symbol] = fromTerm(args[i])
	}
	return row, true
}

func parseQuery(query string) (ast.Atom, error) {
	q := strings.TrimSpace(query)
	q = strings.TrimSpace(strings.TrimPrefix(q, "?"))
	q = strings.TrimSuffix(q, ".")
	if q == "" {
		return ast.Atom{}, fmt.Errorf("empty query")
	}
	atom, err := parse.Atom(q)
	if err != nil {
		return ast.Atom{}, fmt.Errorf("failed to parse query %q: %w", query, err)
	}
	return atom, nil
}

func fromTerm(t ast.BaseTerm) interface{} {
	c, ok := t.(ast.Constant)
	if !ok {
		return t.String()
	}
	switch c.Type {
	case ast.NumberType:
		return c.NumValue
	case ast.StringType, ast.NameType:
		return c.Symbol
	default:
		return c.String()
	}
}

// Stats counts the stored facts per predicate.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := Stats{PredicateCounts: make(map[string]int)}
	for _, sym := range e.store.ListPredicates() {
		n := 0
		_ = e.store.GetFacts(ast.NewQuery(sym), func(ast.Atom) error {
			n++
			return nil
		})
		st.PredicateCounts[sym.Symbol] = n
		st.TotalFacts += n
	}
	return st
}

// Close drops every stored fact. The program stays loaded.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store = factstore.NewConcurrentFactStore(factstore.NewSimpleInMemoryStore())
	e.stored = 0
	e.warned = false
	return nil
}
