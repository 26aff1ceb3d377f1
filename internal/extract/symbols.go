// Package extract turns the symbols, sections and metadata of a program
// module into relational facts.
package extract

import (
	"disasmfacts/internal/facts"
	"disasmfacts/internal/logging"
	"disasmfacts/internal/program"
)

// Symbols emits one symbol(EA, Type, Binding, Visibility, Name) and one
// symbol_size(EA, Size, SectionIndex, Name) tuple per symbol, in model order.
// Undefined symbols get EA 0. When the module carries a symbol descriptor
// table every symbol must have an entry in it; when it carries none, every
// symbol uses program.DefaultSymbolInfo.
func Symbols(mod *program.Module, acc *facts.Accumulator) error {
	acc.Declare(facts.Symbol)
	acc.Declare(facts.SymbolSize)

	for _, sym := range mod.Symbols {
		ea, _ := sym.Addr()

		info, found, present := mod.Aux.LookupSymbolInfo(sym.ID)
		switch {
		case !present:
			info = program.DefaultSymbolInfo
		case !found:
			return &program.AuxDataError{Table: program.TableSymbolInfo, Entity: "symbol " + sym.Name, ID: sym.ID}
		}

		acc.Add(facts.Symbol, ea, info.Type, info.Binding, info.Visibility, sym.Name)
		acc.Add(facts.SymbolSize, ea, info.Size, info.SectionIndex, sym.Name)
	}

	logging.FactsDebug("emitted %d symbols", len(mod.Symbols))
	return nil
}
