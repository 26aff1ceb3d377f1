package insn

import (
	"strconv"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"

	"disasmfacts/internal/facts"
	"disasmfacts/internal/logging"
)

func decodeARM64(ea uint64, buf []byte, t *operandTable, acc *facts.Accumulator) (record, error) {
	inst, err := arm64asm.Decode(buf)
	if err != nil {
		return record{}, err
	}

	r := record{
		size:   4,
		opcode: strings.ToLower(inst.Op.String()),
	}
	for i, arg := range inst.Args {
		if arg == nil {
			break
		}
		if i >= maxOperands {
			logging.InsnDebug("%#x: %s operand %d dropped", ea, r.opcode, i+1)
			break
		}
		r.ops[i] = t.intern(arm64Operand(ea, r.opcode, i, arg), acc)
	}
	if isBarrier(r.opcode) && r.ops[0] == 0 {
		r.ops[0] = t.intern(operand{kind: facts.OpBarrier, text: "SY"}, acc)
	}
	return r, nil
}

func arm64Operand(ea uint64, opcode string, idx int, arg arm64asm.Arg) operand {
	if isBarrier(opcode) {
		return operand{kind: facts.OpBarrier, text: arg.String()}
	}
	if idx == 0 && strings.HasPrefix(opcode, "prfm") {
		return operand{kind: facts.OpPrefetch, text: arg.String()}
	}

	switch a := arg.(type) {
	case arm64asm.Reg:
		return regOperand(a.String())
	case arm64asm.RegSP:
		return regOperand(a.String())
	case arm64asm.Imm:
		return immOperand(int64(a.Imm))
	case arm64asm.Imm64:
		return immOperand(int64(a.Imm))
	case arm64asm.PCRel:
		return immOperand(int64(ea) + int64(a))
	case arm64asm.MemImmediate:
		return operand{
			kind:  facts.OpIndirect,
			seg:   noReg,
			base:  a.Base.String(),
			index: noReg,
			disp:  memDisplacement(a.String()),
		}
	case arm64asm.MemExtend:
		return operand{
			kind:  facts.OpIndirect,
			seg:   noReg,
			base:  a.Base.String(),
			index: a.Index.String(),
			scale: int64(1) << a.Amount,
		}
	default:
		return regOperand(arg.String())
	}
}

// memDisplacement extracts the immediate offset from an operand spelled like
// "[X29,#-16]!" or "[SP,#0x20]". The offset field of MemImmediate is not
// exported, so the assembler text is the only source.
func memDisplacement(s string) int64 {
	idx := strings.Index(s, "#")
	if idx < 0 {
		return 0
	}
	num := s[idx+1:]
	if end := strings.IndexAny(num, "],"); end >= 0 {
		num = num[:end]
	}
	v, err := strconv.ParseInt(num, 0, 64)
	if err != nil {
		return 0
	}
	return v
}
