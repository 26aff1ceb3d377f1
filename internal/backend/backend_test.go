package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disasmfacts/internal/arch"
	"disasmfacts/internal/facts"
	"disasmfacts/internal/mangle"
)

func testConfig() Config {
	return Config{FactLimit: 10000, QueryTimeout: 5 * time.Second}
}

func selectBackend(t *testing.T, isa arch.ISA) Backend {
	t.Helper()
	b, err := Select(isa, testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestDefaultRegistry(t *testing.T) {
	assert.Equal(t, []string{NameARM32, NameX64}, Names())
	assert.True(t, Default().Has(arch.ISAX64))
	assert.True(t, Default().Has(arch.ISAARM))
	assert.False(t, Default().Has(arch.ISAARM64))
}

func TestSelect(t *testing.T) {
	tests := []struct {
		isa  arch.ISA
		name string
	}{
		{arch.ISAX64, NameX64},
		{arch.ISAARM, NameARM32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := selectBackend(t, tt.isa)
			assert.Equal(t, tt.name, b.Name())
			assert.Equal(t, tt.isa, b.ISA())
		})
	}
}

func TestSelect_Unsupported(t *testing.T) {
	for _, isa := range []arch.ISA{arch.ISAARM64, arch.ISAIA32, arch.ISAUndefined, arch.ISAMIPS32} {
		_, err := Select(isa, testConfig())
		require.Error(t, err, isa.String())
		assert.True(t, errors.Is(err, arch.ErrUnsupportedArchitecture))
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	r := NewRegistry()
	r.Register(arch.ISAX64, "broken", MangleFactory("broken", arch.ISAX64, "schemas/missing.mg"))
	_, err := r.Select(arch.ISAX64, testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestRegistry_Replace(t *testing.T) {
	r := NewRegistry()
	r.Register(arch.ISAARM64, "first", MangleFactory("first", arch.ISAARM64, "schemas/base.mg"))
	r.Register(arch.ISAARM64, "second", MangleFactory("second", arch.ISAARM64, "schemas/base.mg"))
	assert.Equal(t, []string{"second"}, r.Names())

	b, err := r.Select(arch.ISAARM64, testConfig())
	require.NoError(t, err)
	assert.Equal(t, "second", b.Name())
}

func sampleFacts() *facts.Accumulator {
	acc := facts.NewAccumulator()
	acc.Add(facts.DataByte, uint64(0x1000), uint64(0xe8))
	acc.Add(facts.DataByte, uint64(0x1000), uint64(0xe8)) // duplicate
	acc.Add(facts.AddressInData, uint64(0x3000), uint64(0x1000))
	acc.Add(facts.Symbol, uint64(0x1000), "FUNC", "GLOBAL", "DEFAULT", "main")
	acc.Add(facts.EntryPoint, uint64(0x1000))
	acc.Add(facts.InstructionComplete, uint64(0x1000), uint64(5), "", "call", uint64(1), uint64(0), uint64(0), uint64(0))
	acc.Add(facts.OpImmediate, uint64(1), int64(0x1005))
	acc.Add(facts.FDEEntry, uint64(0x2018), uint64(0x14), uint64(0x2000), uint64(0x1000), uint64(0x1010), uint64(0))
	acc.Declare(facts.Relocation)
	return acc
}

func TestMangleBackend_LoadAndDerive(t *testing.T) {
	b := selectBackend(t, arch.ISAX64)
	require.NoError(t, b.Load(context.Background(), sampleFacts()))

	bytes, err := b.Facts(facts.DataByte)
	require.NoError(t, err)
	assert.Len(t, bytes, 1, "exact duplicates collapse in the store")

	ptrs, err := b.Facts("data_pointer_to_symbol")
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{int64(0x3000), "main"}}, ptrs)

	entry, err := b.Facts("entry_in_code")
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{int64(0x1000)}}, entry)

	calls, err := b.Facts("direct_call")
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{int64(0x1000), int64(0x1005)}}, calls)

	covers, err := b.Facts("fde_covers_symbol")
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{"main", int64(0x1000), int64(0x1010)}}, covers)

	stats := b.Stats()
	assert.Equal(t, 1, stats.PredicateCounts[facts.Symbol])
}

func TestMangleBackend_ARMCallRule(t *testing.T) {
	b := selectBackend(t, arch.ISAARM)
	acc := facts.NewAccumulator()
	acc.Add(facts.InstructionComplete, uint64(0x8000), uint64(4), "", "bl", uint64(1), uint64(0), uint64(0), uint64(0))
	acc.Add(facts.InstructionComplete, uint64(0x8004), uint64(4), "", "call", uint64(1), uint64(0), uint64(0), uint64(0))
	acc.Add(facts.OpImmediate, uint64(1), int64(0x9000))
	require.NoError(t, b.Load(context.Background(), acc))

	calls, err := b.Facts("direct_call")
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{int64(0x8000), int64(0x9000)}}, calls)
}

func TestMangleBackend_Query(t *testing.T) {
	b := selectBackend(t, arch.ISAX64)
	require.NoError(t, b.Load(context.Background(), sampleFacts()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := b.Query(ctx, "symbol(EA, Type, Binding, Visibility, Name)")
	require.NoError(t, err)
	require.Len(t, res.Bindings, 1)
	assert.Equal(t, "main", res.Bindings[0]["Name"])
	assert.Equal(t, int64(0x1000), res.Bindings[0]["EA"])
}

func TestMangleBackend_HighAddressesKeepTheirBits(t *testing.T) {
	const kernelData = uint64(0xffffffff81000000)

	b := selectBackend(t, arch.ISAX64)
	acc := facts.NewAccumulator()
	acc.Add(facts.DataByte, kernelData, uint64(0xff))
	acc.Add(facts.AddressInData, kernelData, kernelData)
	require.NoError(t, b.Load(context.Background(), acc))

	rows, err := b.Facts(facts.AddressInData)
	require.NoError(t, err)
	require.Equal(t, [][]interface{}{{int64(-2130706432), int64(-2130706432)}}, rows)
	assert.Equal(t, kernelData, uint64(rows[0][0].(int64)))

	bytes, err := b.Facts(facts.DataByte)
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{int64(-2130706432), int64(0xff)}}, bytes)
}

func TestMangleBackend_Signature(t *testing.T) {
	b := selectBackend(t, arch.ISAX64)

	kinds, ok := b.Signature(facts.Symbol)
	require.True(t, ok)
	assert.Equal(t, []mangle.Kind{mangle.KindNumber, mangle.KindString, mangle.KindString, mangle.KindString, mangle.KindString}, kinds)

	_, ok = b.Signature("bogus_relation")
	assert.False(t, ok)
}

func TestMangleBackend_LoadErrors(t *testing.T) {
	t.Run("unsupported value type", func(t *testing.T) {
		b := selectBackend(t, arch.ISAX64)
		acc := facts.NewAccumulator()
		acc.Add(facts.EntryPoint, 0x1000)
		err := b.Load(context.Background(), acc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported value type int")
	})

	t.Run("unknown relation", func(t *testing.T) {
		b := selectBackend(t, arch.ISAX64)
		acc := facts.NewAccumulator()
		acc.Add("bogus_relation", uint64(1))
		err := b.Load(context.Background(), acc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bogus_relation")
	})

	t.Run("second load", func(t *testing.T) {
		b := selectBackend(t, arch.ISAX64)
		require.NoError(t, b.Load(context.Background(), facts.NewAccumulator()))
		err := b.Load(context.Background(), facts.NewAccumulator())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already loaded")
	})

	t.Run("fact limit", func(t *testing.T) {
		b, err := Select(arch.ISAX64, Config{FactLimit: 2})
		require.NoError(t, err)
		acc := facts.NewAccumulator()
		for i := 0; i < 3; i++ {
			acc.Add(facts.DataByte, uint64(i), uint64(0))
		}
		err = b.Load(context.Background(), acc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fact limit")
	})

	t.Run("cancelled", func(t *testing.T) {
		b := selectBackend(t, arch.ISAX64)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := b.Load(ctx, sampleFacts())
		require.ErrorIs(t, err, context.Canceled)
	})
}
