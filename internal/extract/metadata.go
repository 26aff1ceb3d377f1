package extract

import (
	"disasmfacts/internal/arch"
	"disasmfacts/internal/facts"
	"disasmfacts/internal/program"
)

// Metadata emits the module-level relations: binary type, format, entry
// point, base address, relocations, imports, data directories, ISA and the
// decoder options in effect. Absent tables contribute nothing.
func Metadata(mod *program.Module, options []string, acc *facts.Accumulator) {
	acc.Declare(facts.BinaryType)
	for _, t := range mod.Aux.BinaryType {
		acc.Add(facts.BinaryType, t)
	}

	acc.Add(facts.BinaryFormat, mod.FileFormat.String())

	acc.Declare(facts.EntryPoint)
	if ea, ok := mod.EntryPoint.Addr(); ok {
		acc.Add(facts.EntryPoint, ea)
	}

	acc.Add(facts.BaseAddress, mod.PreferredAddr)

	acc.Declare(facts.Relocation)
	for _, r := range mod.Aux.Relocations {
		acc.Add(facts.Relocation, r.Address, r.Type, r.Name, r.Addend)
	}

	acc.Declare(facts.ImportEntry)
	for _, imp := range mod.Aux.ImportEntries {
		acc.Add(facts.ImportEntry, imp.Address, imp.Ordinal, imp.Function, imp.Library)
	}

	acc.Declare(facts.DataDirectory)
	for _, dd := range mod.Aux.DataDirectories {
		acc.Add(facts.DataDirectory, dd.Address, dd.Size, dd.Type)
	}

	acc.Add(facts.BinaryISA, arch.CanonicalName(mod.ISA))

	acc.Declare(facts.Option)
	for _, opt := range options {
		acc.Add(facts.Option, opt)
	}
}
