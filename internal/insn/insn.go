// Package insn decodes candidate instructions at every plausible offset of a
// byte interval (superset disassembly) and records them as facts. Deciding
// which candidates are real code is left to the analysis rules.
package insn

import (
	"github.com/pkg/errors"

	"disasmfacts/internal/arch"
	"disasmfacts/internal/facts"
	"disasmfacts/internal/logging"
	"disasmfacts/internal/program"
)

// Decoder records instruction candidates for one byte interval at a time.
// A Decoder keeps its operand table across intervals, so operand ids are
// unique within everything it decoded.
type Decoder interface {
	DecodeInterval(bi *program.ByteInterval, acc *facts.Accumulator) error
}

// maxOperands is the operand slot count of instruction_complete.
const maxOperands = 4

// record is one decoded candidate before it is written out.
type record struct {
	size   uint64
	prefix string
	opcode string
	ops    [maxOperands]uint64
}

// decodeFunc decodes the candidate at ea from buf. Operands are interned in
// t and their ids stored in the record.
type decodeFunc func(ea uint64, buf []byte, t *operandTable, acc *facts.Accumulator) (record, error)

type superset struct {
	isa    arch.ISA
	step   uint64 // candidate spacing and alignment
	maxLen int    // longest encoding; bounds the slice handed to decode
	minLen int    // candidates with fewer bytes left are not attempted
	decode decodeFunc
	ops    *operandTable
}

// New returns the instruction decoder for an ISA.
func New(isa arch.ISA) (Decoder, error) {
	s := &superset{isa: isa, ops: newOperandTable()}
	switch isa {
	case arch.ISAX64:
		s.step, s.minLen, s.maxLen, s.decode = 1, 1, 15, decodeX86
	case arch.ISAARM:
		s.step, s.minLen, s.maxLen, s.decode = 4, 4, 4, decodeARM
	case arch.ISAARM64:
		s.step, s.minLen, s.maxLen, s.decode = 4, 4, 4, decodeARM64
	default:
		return nil, errors.Wrapf(arch.ErrUnsupportedArchitecture, "no instruction decoder for %s", isa)
	}
	return s, nil
}

// DecodeInterval attempts a decode at every aligned offset of the
// initialized bytes. Undecodable offsets become invalid_op_code facts.
func (s *superset) DecodeInterval(bi *program.ByteInterval, acc *facts.Accumulator) error {
	base, ok := bi.Addr()
	if !ok {
		return errors.Wrapf(program.ErrPreconditionViolation, "byte interval %s has no address", bi.ID)
	}

	acc.Declare(facts.InstructionComplete)
	acc.Declare(facts.InvalidOpCode)
	declareOperandRelations(acc)

	data := bi.Bytes()
	start := uint64(0)
	if rem := base % s.step; rem != 0 {
		start = s.step - rem
	}

	var valid, invalid int
	for off := start; off+uint64(s.minLen) <= uint64(len(data)); off += s.step {
		ea := base + off
		end := off + uint64(s.maxLen)
		if end > uint64(len(data)) {
			end = uint64(len(data))
		}

		r, err := s.decode(ea, data[off:end], s.ops, acc)
		if err != nil {
			acc.Add(facts.InvalidOpCode, ea)
			invalid++
			continue
		}
		acc.Add(facts.InstructionComplete, ea, r.size, r.prefix, r.opcode, r.ops[0], r.ops[1], r.ops[2], r.ops[3])
		valid++
	}

	logging.InsnDebug("%s interval %#x: %d candidates, %d invalid", s.isa, base, valid, invalid)
	return nil
}
