package extract

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disasmfacts/internal/arch"
	"disasmfacts/internal/facts"
	"disasmfacts/internal/program"
)

func testModule() *program.Module {
	text := &program.Section{
		ID:    uuid.New(),
		Name:  ".text",
		Flags: program.FlagReadable | program.FlagExecutable | program.FlagLoaded | program.FlagInitialized,
		ByteIntervals: []*program.ByteInterval{
			{ID: uuid.New(), Address: program.Ptr(0x1000), Size: 0x80, Contents: make([]byte, 0x80)},
		},
	}
	bss := &program.Section{
		ID:    uuid.New(),
		Name:  ".bss",
		Flags: program.FlagReadable | program.FlagWritable | program.FlagLoaded,
		ByteIntervals: []*program.ByteInterval{
			{ID: uuid.New(), Address: program.Ptr(0x2000), Size: 0x40},
		},
	}
	mainSym := &program.Symbol{ID: uuid.New(), Name: "main", Address: program.Ptr(0x1050)}
	ext := &program.Symbol{ID: uuid.New(), Name: "puts"}

	return &program.Module{
		Name:          "sample",
		ISA:           arch.ISAX64,
		FileFormat:    arch.FormatELF,
		PreferredAddr: 0x400000,
		EntryPoint:    &program.CodeBlock{ID: uuid.New(), Address: program.Ptr(0x1000)},
		Sections:      []*program.Section{text, bss},
		Symbols:       []*program.Symbol{mainSym, ext},
		Aux: program.AuxData{
			SectionProperties: map[uuid.UUID]program.SectionProperties{
				text.ID: {Type: 1, Flags: 6},
				bss.ID:  {Type: 8, Flags: 3},
			},
		},
	}
}

func TestSymbols_DefaultDescriptor(t *testing.T) {
	mod := testModule()
	acc := facts.NewAccumulator()
	require.NoError(t, Symbols(mod, acc))

	want := []facts.Tuple{
		{uint64(0x1050), "NOTYPE", "GLOBAL", "DEFAULT", "main"},
		{uint64(0), "NOTYPE", "GLOBAL", "DEFAULT", "puts"},
	}
	if diff := cmp.Diff(want, acc.Tuples(facts.Symbol)); diff != "" {
		t.Errorf("symbol mismatch (-want +got):\n%s", diff)
	}

	wantSize := []facts.Tuple{
		{uint64(0x1050), uint64(0), uint64(0), "main"},
		{uint64(0), uint64(0), uint64(0), "puts"},
	}
	if diff := cmp.Diff(wantSize, acc.Tuples(facts.SymbolSize)); diff != "" {
		t.Errorf("symbol_size mismatch (-want +got):\n%s", diff)
	}
}

func TestSymbols_FromTable(t *testing.T) {
	mod := testModule()
	mod.Aux.SymbolInfo = map[uuid.UUID]program.SymbolInfo{
		mod.Symbols[0].ID: {Size: 42, Type: "FUNC", Binding: "GLOBAL", Visibility: "HIDDEN", SectionIndex: 14},
		mod.Symbols[1].ID: {Type: "FUNC", Binding: "WEAK", Visibility: "DEFAULT"},
	}

	acc := facts.NewAccumulator()
	require.NoError(t, Symbols(mod, acc))

	want := []facts.Tuple{
		{uint64(0x1050), "FUNC", "GLOBAL", "HIDDEN", "main"},
		{uint64(0), "FUNC", "WEAK", "DEFAULT", "puts"},
	}
	if diff := cmp.Diff(want, acc.Tuples(facts.Symbol)); diff != "" {
		t.Errorf("symbol mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, facts.Tuple{uint64(0x1050), uint64(42), uint64(14), "main"}, acc.Tuples(facts.SymbolSize)[0])
}

func TestSymbols_MissingEntry(t *testing.T) {
	mod := testModule()
	mod.Aux.SymbolInfo = map[uuid.UUID]program.SymbolInfo{
		mod.Symbols[0].ID: {Type: "FUNC", Binding: "GLOBAL", Visibility: "DEFAULT"},
	}

	err := Symbols(mod, facts.NewAccumulator())
	require.Error(t, err)
	assert.True(t, errors.Is(err, program.ErrMissingAuxData))

	var auxErr *program.AuxDataError
	require.True(t, errors.As(err, &auxErr))
	assert.Equal(t, program.TableSymbolInfo, auxErr.Table)
	assert.Equal(t, mod.Symbols[1].ID, auxErr.ID)
	assert.Contains(t, err.Error(), "puts")
}

func TestSymbols_Empty(t *testing.T) {
	mod := testModule()
	mod.Symbols = nil
	acc := facts.NewAccumulator()
	require.NoError(t, Symbols(mod, acc))
	assert.Equal(t, 0, acc.Len(facts.Symbol))
	assert.Contains(t, acc.Relations(), facts.Symbol)
}

func TestSections(t *testing.T) {
	mod := testModule()
	acc := facts.NewAccumulator()
	require.NoError(t, Sections(mod, acc))

	want := []facts.Tuple{
		{".text", uint64(0x80), uint64(0x1000), uint64(1), uint64(6)},
		{".bss", uint64(0x40), uint64(0x2000), uint64(8), uint64(3)},
	}
	if diff := cmp.Diff(want, acc.Tuples(facts.SectionComplete)); diff != "" {
		t.Errorf("section_complete mismatch (-want +got):\n%s", diff)
	}
}

func TestSections_Errors(t *testing.T) {
	t.Run("absent table", func(t *testing.T) {
		mod := testModule()
		mod.Aux.SectionProperties = nil
		err := Sections(mod, facts.NewAccumulator())
		require.Error(t, err)
		assert.True(t, errors.Is(err, program.ErrMissingAuxData))
		assert.Contains(t, err.Error(), program.TableSectionProperties)
	})

	t.Run("absent table on a module without sections", func(t *testing.T) {
		err := Sections(&program.Module{}, facts.NewAccumulator())
		require.Error(t, err)
		assert.True(t, errors.Is(err, program.ErrMissingAuxData))
	})

	t.Run("absent table wins over an unaddressed section", func(t *testing.T) {
		mod := testModule()
		mod.Aux.SectionProperties = nil
		mod.Sections[0].ByteIntervals[0].Address = nil
		err := Sections(mod, facts.NewAccumulator())
		assert.True(t, errors.Is(err, program.ErrMissingAuxData))
	})

	t.Run("missing entry", func(t *testing.T) {
		mod := testModule()
		delete(mod.Aux.SectionProperties, mod.Sections[1].ID)
		err := Sections(mod, facts.NewAccumulator())
		require.Error(t, err)
		var auxErr *program.AuxDataError
		require.True(t, errors.As(err, &auxErr))
		assert.Equal(t, mod.Sections[1].ID, auxErr.ID)
		assert.Contains(t, err.Error(), ".bss")
	})

	t.Run("unaddressed section", func(t *testing.T) {
		mod := testModule()
		mod.Sections[0].ByteIntervals[0].Address = nil
		err := Sections(mod, facts.NewAccumulator())
		require.Error(t, err)
		assert.True(t, errors.Is(err, program.ErrPreconditionViolation))
	})

	t.Run("section without intervals", func(t *testing.T) {
		mod := testModule()
		mod.Sections[1].ByteIntervals = nil
		err := Sections(mod, facts.NewAccumulator())
		require.Error(t, err)
		assert.True(t, errors.Is(err, program.ErrPreconditionViolation))
	})
}

func TestMetadata(t *testing.T) {
	mod := testModule()
	mod.Aux.BinaryType = []string{"EXEC", "DYN"}
	mod.Aux.Relocations = []program.Relocation{{Address: 0x3000, Type: "R_X86_64_GLOB_DAT", Name: "puts", Addend: -4}}
	mod.Aux.ImportEntries = []program.ImportEntry{{Address: 0x4000, Ordinal: -1, Function: "ExitProcess", Library: "KERNEL32.dll"}}
	mod.Aux.DataDirectories = []program.DataDirectory{{Type: "IMPORT", Address: 0x5000, Size: 0x28}}

	acc := facts.NewAccumulator()
	Metadata(mod, []string{"no-cfi-directives"}, acc)

	want := map[string][]facts.Tuple{
		facts.BinaryType:    {{"EXEC"}, {"DYN"}},
		facts.BinaryFormat:  {{"ELF"}},
		facts.EntryPoint:    {{uint64(0x1000)}},
		facts.BaseAddress:   {{uint64(0x400000)}},
		facts.Relocation:    {{uint64(0x3000), "R_X86_64_GLOB_DAT", "puts", int64(-4)}},
		facts.ImportEntry:   {{uint64(0x4000), int64(-1), "ExitProcess", "KERNEL32.dll"}},
		facts.DataDirectory: {{uint64(0x5000), uint64(0x28), "IMPORT"}},
		facts.BinaryISA:     {{"X64"}},
		facts.Option:        {{"no-cfi-directives"}},
	}
	for rel, tuples := range want {
		if diff := cmp.Diff(tuples, acc.Tuples(rel)); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", rel, diff)
		}
	}
}

func TestMetadata_AbsentTablesAndEntry(t *testing.T) {
	mod := testModule()
	mod.EntryPoint = nil
	mod.ISA = arch.ISAARM64
	mod.FileFormat = arch.FormatUndefined

	acc := facts.NewAccumulator()
	Metadata(mod, nil, acc)

	assert.Equal(t, 0, acc.Len(facts.EntryPoint))
	assert.Equal(t, 0, acc.Len(facts.BinaryType))
	assert.Equal(t, 0, acc.Len(facts.Relocation))
	assert.Equal(t, []facts.Tuple{{"ARM"}}, acc.Tuples(facts.BinaryISA))
	assert.Equal(t, []facts.Tuple{{"Undefined"}}, acc.Tuples(facts.BinaryFormat))
	assert.Equal(t, []facts.Tuple{{uint64(0x400000)}}, acc.Tuples(facts.BaseAddress))
}

func TestMetadata_EntryWithoutAddress(t *testing.T) {
	mod := testModule()
	mod.EntryPoint.Address = nil
	acc := facts.NewAccumulator()
	Metadata(mod, nil, acc)
	assert.Equal(t, 0, acc.Len(facts.EntryPoint))
}
