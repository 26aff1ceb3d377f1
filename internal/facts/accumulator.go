package facts

import "sort"

// Accumulator collects tuples per relation, preserving insertion order within
// each relation and the order in which relations first appeared. Duplicate
// tuples are kept.
type Accumulator struct {
	order     []string
	relations map[string][]Tuple
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{relations: make(map[string][]Tuple)}
}

// Add appends one tuple to a relation.
func (a *Accumulator) Add(relation string, args ...interface{}) {
	a.touch(relation)
	a.relations[relation] = append(a.relations[relation], Tuple(args))
}

// Declare registers a relation without adding tuples, so that it is reported
// (as empty) by Relations.
func (a *Accumulator) Declare(relation string) {
	a.touch(relation)
}

func (a *Accumulator) touch(relation string) {
	if _, ok := a.relations[relation]; !ok {
		a.order = append(a.order, relation)
		a.relations[relation] = nil
	}
}

// Merge appends every tuple of other after the tuples already held.
func (a *Accumulator) Merge(other *Accumulator) {
	if other == nil {
		return
	}
	for _, rel := range other.order {
		a.touch(rel)
		a.relations[rel] = append(a.relations[rel], other.relations[rel]...)
	}
}

// Relations returns relation names in first-seen order.
func (a *Accumulator) Relations() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// SortedRelations returns relation names in lexical order.
func (a *Accumulator) SortedRelations() []string {
	out := a.Relations()
	sort.Strings(out)
	return out
}

// Tuples returns the tuples of a relation in insertion order.
func (a *Accumulator) Tuples(relation string) []Tuple {
	return a.relations[relation]
}

// Len returns the number of tuples in a relation.
func (a *Accumulator) Len(relation string) int {
	return len(a.relations[relation])
}

// Total returns the number of tuples across all relations.
func (a *Accumulator) Total() int {
	n := 0
	for _, ts := range a.relations {
		n += len(ts)
	}
	return n
}

// Counts returns the tuple count of every relation.
func (a *Accumulator) Counts() map[string]int {
	out := make(map[string]int, len(a.relations))
	for rel, ts := range a.relations {
		out[rel] = len(ts)
	}
	return out
}
