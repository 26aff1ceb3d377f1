package export

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disasmfacts/internal/facts"
)

func sampleFacts() *facts.Accumulator {
	acc := facts.NewAccumulator()
	acc.Add(facts.DataByte, uint64(0x1001), uint64(0x10))
	acc.Add(facts.DataByte, uint64(0x1000), uint64(0x90))
	acc.Add(facts.DataByte, uint64(0x1000), uint64(0x90))
	acc.Add(facts.Symbol, uint64(0x1000), "FUNC", "GLOBAL", "DEFAULT", "main")
	acc.Add(facts.Relocation, uint64(0x2000), "R_X86_64_PC32", "puts\tplt", int64(-4))
	acc.Add(facts.EntryPoint, ^uint64(0))
	acc.Declare(facts.FDEEntry)
	return acc
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestWriteFactsDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "facts")
	require.NoError(t, WriteFactsDir(dir, sampleFacts()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{
		"data_byte.facts", "entry_point.facts", "fde_entry.facts", "relocation.facts", "symbol.facts",
	}, names)

	// Accumulation order and duplicates are kept.
	assert.Equal(t, "4097\t16\n4096\t144\n4096\t144\n", readFile(t, filepath.Join(dir, "data_byte.facts")))
	assert.Equal(t, "4096\tFUNC\tGLOBAL\tDEFAULT\tmain\n", readFile(t, filepath.Join(dir, "symbol.facts")))
	assert.Equal(t, "8192\tR_X86_64_PC32\tputs\\tplt\t-4\n", readFile(t, filepath.Join(dir, "relocation.facts")))
	assert.Equal(t, "18446744073709551615\n", readFile(t, filepath.Join(dir, "entry_point.facts")))
	assert.Empty(t, readFile(t, filepath.Join(dir, "fde_entry.facts")))
}

func TestWriteFactsDir_Overwrites(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "symbol.facts"), []byte("stale\n"), 0644))

	acc := facts.NewAccumulator()
	acc.Add(facts.Symbol, uint64(0), "NOTYPE", "GLOBAL", "DEFAULT", "x")
	require.NoError(t, WriteFactsDir(dir, acc))
	assert.Equal(t, "0\tNOTYPE\tGLOBAL\tDEFAULT\tx\n", readFile(t, filepath.Join(dir, "symbol.facts")))
}

func TestWriteSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.db")
	ctx := context.Background()
	require.NoError(t, WriteSQLite(ctx, path, sampleFacts()))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query(`SELECT seq, c0, c1 FROM "data_byte" ORDER BY seq`)
	require.NoError(t, err)
	var got [][3]int64
	for rows.Next() {
		var r [3]int64
		require.NoError(t, rows.Scan(&r[0], &r[1], &r[2]))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, [][3]int64{{0, 0x1001, 0x10}, {1, 0x1000, 0x90}, {2, 0x1000, 0x90}}, got)

	var name string
	var addend int64
	require.NoError(t, db.QueryRow(`SELECT c2, c3 FROM "relocation"`).Scan(&name, &addend))
	assert.Equal(t, "puts\tplt", name)
	assert.Equal(t, int64(-4), addend)

	var entry int64
	require.NoError(t, db.QueryRow(`SELECT c0 FROM "entry_point"`).Scan(&entry))
	assert.Equal(t, int64(-1), entry)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "fde_entry"`).Scan(&n))
	assert.Zero(t, n)
}

func TestWriteSQLite_ReplacesTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.db")
	ctx := context.Background()
	require.NoError(t, WriteSQLite(ctx, path, sampleFacts()))

	acc := facts.NewAccumulator()
	acc.Add(facts.DataByte, uint64(7), uint64(8))
	require.NoError(t, WriteSQLite(ctx, path, acc))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "data_byte"`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestWriteSQLite_RaggedRelation(t *testing.T) {
	acc := facts.NewAccumulator()
	acc.Add(facts.Option, "a")
	acc.Add(facts.Option, "b", "c")

	err := WriteSQLite(context.Background(), filepath.Join(t.TempDir(), "facts.db"), acc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relation option")
}

func TestWriteSQLite_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WriteSQLite(ctx, filepath.Join(t.TempDir(), "facts.db"), sampleFacts())
	require.Error(t, err)
}
