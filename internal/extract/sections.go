package extract

import (
	"disasmfacts/internal/facts"
	"disasmfacts/internal/logging"
	"disasmfacts/internal/program"
)

// Sections emits section_complete(Name, Size, EA, Type, Flags) per section in
// model order. Type and Flags come from the section properties table, which
// must be present and must cover every section.
func Sections(mod *program.Module, acc *facts.Accumulator) error {
	acc.Declare(facts.SectionComplete)
	if mod.Aux.SectionProperties == nil {
		return &program.AuxDataError{Table: program.TableSectionProperties}
	}

	for _, sec := range mod.Sections {
		addr, ok := sec.Address()
		if !ok {
			return program.Preconditionf("section %s has no resolvable address", sec.Name)
		}
		size, ok := sec.Size()
		if !ok {
			return program.Preconditionf("section %s has no resolvable size", sec.Name)
		}

		props, found, _ := mod.Aux.LookupSectionProperties(sec.ID)
		if !found {
			return &program.AuxDataError{Table: program.TableSectionProperties, Entity: "section " + sec.Name, ID: sec.ID}
		}

		acc.Add(facts.SectionComplete, sec.Name, size, addr, props.Type, props.Flags)
	}

	logging.FactsDebug("emitted %d sections", len(mod.Sections))
	return nil
}
