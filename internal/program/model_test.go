package program

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSectionGeometry(t *testing.T) {
	sec := &Section{
		Name: ".data",
		ByteIntervals: []*ByteInterval{
			{Address: Ptr(0x2010), Size: 0x10},
			{Address: Ptr(0x2000), Size: 0x8},
		},
	}
	addr, ok := sec.Address()
	require.True(t, ok)
	assert.Equal(t, uint64(0x2000), addr)

	size, ok := sec.Size()
	require.True(t, ok)
	assert.Equal(t, uint64(0x20), size)
}

func TestSectionGeometry_Unresolvable(t *testing.T) {
	empty := &Section{Name: ".empty"}
	_, ok := empty.Address()
	assert.False(t, ok)

	partial := &Section{
		Name: ".text",
		ByteIntervals: []*ByteInterval{
			{Address: Ptr(0x1000), Size: 4},
			{Size: 4},
		},
	}
	_, ok = partial.Size()
	assert.False(t, ok)
}

func TestModuleRange(t *testing.T) {
	mod := &Module{
		Sections: []*Section{
			{Name: ".text", ByteIntervals: []*ByteInterval{{Address: Ptr(0x1000), Size: 0x800}}},
			{Name: ".bss", ByteIntervals: []*ByteInterval{{Address: Ptr(0x1800), Size: 0x800}}},
		},
	}
	addr, ok := mod.Address()
	require.True(t, ok)
	size, ok := mod.Size()
	require.True(t, ok)
	assert.Equal(t, uint64(0x1000), addr)
	assert.Equal(t, uint64(0x1000), size)

	_, ok = (&Module{}).Address()
	assert.False(t, ok)
}

func TestInitializedSize(t *testing.T) {
	bi := &ByteInterval{Size: 8, Contents: []byte{1, 2, 3}}
	assert.Equal(t, uint64(3), bi.InitializedSize())
	assert.Equal(t, []byte{1, 2, 3}, bi.Bytes())

	bss := &ByteInterval{Size: 0x100}
	assert.Equal(t, uint64(0), bss.InitializedSize())
	assert.Empty(t, bss.Bytes())
}

func TestSectionFlags(t *testing.T) {
	sec := &Section{Flags: FlagExecutable | FlagInitialized}
	assert.True(t, sec.IsFlagSet(FlagExecutable))
	assert.True(t, sec.IsFlagSet(FlagExecutable|FlagInitialized))
	assert.False(t, sec.IsFlagSet(FlagWritable))
}

func TestAuxDataLookup(t *testing.T) {
	id := uuid.New()
	var aux AuxData

	_, found, present := aux.LookupSymbolInfo(id)
	assert.False(t, found)
	assert.False(t, present)

	aux.SymbolInfo = map[uuid.UUID]SymbolInfo{id: {Type: "FUNC"}}
	info, found, present := aux.LookupSymbolInfo(id)
	assert.True(t, found)
	assert.True(t, present)
	assert.Equal(t, "FUNC", info.Type)

	_, found, present = aux.LookupSectionProperties(id)
	assert.False(t, found)
	assert.False(t, present)
}

func TestAuxDataError(t *testing.T) {
	err := error(&AuxDataError{Table: TableSymbolInfo, Entity: "Symbol main", ID: uuid.Nil})
	assert.True(t, errors.Is(err, ErrMissingAuxData))
	assert.Contains(t, err.Error(), "Symbol main")
	assert.Contains(t, err.Error(), TableSymbolInfo)

	var auxErr *AuxDataError
	require.True(t, errors.As(err, &auxErr))
	assert.Equal(t, TableSymbolInfo, auxErr.Table)

	tableErr := &AuxDataError{Table: TableSectionProperties}
	assert.Equal(t, "missing elfSectionProperties AuxData table", tableErr.Error())

	assert.True(t, errors.Is(Preconditionf("section %s has no address", ".text"), ErrPreconditionViolation))
}
