package facts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccumulatorOrder(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(DataByte, uint64(0x1000), uint64(0x90))
	acc.Add(Symbol, uint64(0), "NOTYPE", "GLOBAL", "DEFAULT", "a")
	acc.Add(DataByte, uint64(0x1001), uint64(0x00))
	acc.Add(DataByte, uint64(0x1001), uint64(0x00))

	assert.Equal(t, []string{DataByte, Symbol}, acc.Relations())
	assert.Equal(t, 3, acc.Len(DataByte), "duplicates are kept")
	assert.Equal(t, 4, acc.Total())
	assert.Equal(t, Tuple{uint64(0x1000), uint64(0x90)}, acc.Tuples(DataByte)[0])
	assert.Equal(t, map[string]int{DataByte: 3, Symbol: 1}, acc.Counts())
}

func TestAccumulatorMerge(t *testing.T) {
	a := NewAccumulator()
	a.Add(DataByte, uint64(1), uint64(1))
	b := NewAccumulator()
	b.Add(AddressInData, uint64(2), uint64(3))
	b.Add(DataByte, uint64(2), uint64(2))

	a.Merge(b)
	a.Merge(nil)

	assert.Equal(t, []string{DataByte, AddressInData}, a.Relations())
	assert.Equal(t, []Tuple{{uint64(1), uint64(1)}, {uint64(2), uint64(2)}}, a.Tuples(DataByte))
	assert.Equal(t, []string{AddressInData, DataByte}, a.SortedRelations())
}

func TestAccumulatorDeclare(t *testing.T) {
	acc := NewAccumulator()
	acc.Declare(Relocation)
	assert.Equal(t, []string{Relocation}, acc.Relations())
	assert.Equal(t, 0, acc.Len(Relocation))
	assert.Equal(t, 0, acc.Total())
}

func TestTupleString(t *testing.T) {
	assert.Equal(t, `(4096, "main")`, Tuple{uint64(4096), "main"}.String())
}
