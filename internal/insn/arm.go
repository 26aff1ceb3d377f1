package insn

import (
	"strings"

	"golang.org/x/arch/arm/armasm"

	"disasmfacts/internal/facts"
)

// armPCBias is how far ahead of the instruction the ARM-mode PC reads.
const armPCBias = 8

func decodeARM(ea uint64, buf []byte, t *operandTable, acc *facts.Accumulator) (record, error) {
	inst, err := armasm.Decode(buf, armasm.ModeARM)
	if err != nil {
		return record{}, err
	}

	r := record{
		size:   uint64(inst.Len),
		opcode: strings.ToLower(inst.Op.String()),
	}
	for i, arg := range inst.Args {
		if arg == nil || i >= maxOperands {
			break
		}
		r.ops[i] = t.intern(armOperand(ea, r.opcode, arg), acc)
	}
	if isBarrier(r.opcode) && r.ops[0] == 0 {
		r.ops[0] = t.intern(operand{kind: facts.OpBarrier, text: "SY"}, acc)
	}
	return r, nil
}

func armOperand(ea uint64, opcode string, arg armasm.Arg) operand {
	if isBarrier(opcode) {
		return operand{kind: facts.OpBarrier, text: arg.String()}
	}

	switch a := arg.(type) {
	case armasm.Reg:
		return regOperand(a.String())
	case armasm.Imm:
		return immOperand(int64(a))
	case armasm.ImmAlt:
		return immOperand(int64(a.Imm()))
	case armasm.PCRel:
		return immOperand(int64(ea) + armPCBias + int64(a))
	case armasm.Mem:
		op := operand{kind: facts.OpIndirect, seg: noReg, base: a.Base.String(), index: noReg}
		if a.Sign != 0 {
			op.index = a.Index.String()
			op.scale = int64(a.Sign)
		} else {
			op.disp = int64(a.Offset)
		}
		return op
	default:
		// Register lists, shifted registers and the like keep their
		// assembler spelling.
		return regOperand(arg.String())
	}
}

func isBarrier(opcode string) bool {
	switch opcode {
	case "dmb", "dsb", "isb":
		return true
	}
	return false
}
