// Package facts defines the relation vocabulary produced by the extractor and
// the ordered accumulator that carries tuples from the extractor to a sink.
package facts

import (
	"context"
	"fmt"
	"strings"
)

// Relation names.
const (
	DataByte      = "data_byte"
	AddressInData = "address_in_data"

	Symbol          = "symbol"
	SymbolSize      = "symbol_size"
	SectionComplete = "section_complete"

	BinaryType    = "binary_type"
	BinaryFormat  = "binary_format"
	EntryPoint    = "entry_point"
	BaseAddress   = "base_address"
	Relocation    = "relocation"
	ImportEntry   = "import_entry"
	DataDirectory = "data_directory"
	BinaryISA     = "binary_isa"
	Option        = "option"

	InstructionComplete = "instruction_complete"
	InvalidOpCode       = "invalid_op_code"
	OpRegDirect         = "op_regdirect"
	OpImmediate         = "op_immediate"
	OpIndirect          = "op_indirect"
	OpPrefetch          = "op_prefetch"
	OpBarrier           = "op_barrier"

	CIEEntry = "cie_entry"
	FDEEntry = "fde_entry"

	Invalid = "invalid"
)

// Tuple is one row of a relation. Values are uint64, int64 or string.
type Tuple []interface{}

// String renders the tuple as a Datalog-style argument list.
func (t Tuple) String() string {
	parts := make([]string, len(t))
	for i, v := range t {
		switch x := v.(type) {
		case string:
			parts[i] = fmt.Sprintf("%q", x)
		default:
			parts[i] = fmt.Sprintf("%v", x)
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Sink receives a complete set of facts in one batch.
type Sink interface {
	Load(ctx context.Context, acc *Accumulator) error
}
