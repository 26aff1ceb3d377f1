package insn

import (
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"disasmfacts/internal/facts"
)

func decodeX86(ea uint64, buf []byte, t *operandTable, acc *facts.Accumulator) (record, error) {
	inst, err := x86asm.Decode(buf, 64)
	if err != nil {
		return record{}, err
	}

	r := record{
		size:   uint64(inst.Len),
		prefix: x86Prefix(inst),
		opcode: strings.ToLower(inst.Op.String()),
	}
	for i, arg := range inst.Args {
		if arg == nil {
			break
		}
		r.ops[i] = t.intern(x86Operand(ea, inst, arg), acc)
	}
	return r, nil
}

// x86Prefix returns the explicit lock/rep prefix of an instruction, if any.
// Implicit and ignored prefixes carry flag bits and never compare equal.
func x86Prefix(inst x86asm.Inst) string {
	for _, p := range inst.Prefix {
		if p == 0 {
			break
		}
		switch p {
		case x86asm.PrefixLOCK:
			return "lock"
		case x86asm.PrefixREP:
			return "rep"
		case x86asm.PrefixREPN:
			return "repne"
		}
	}
	return ""
}

func x86Operand(ea uint64, inst x86asm.Inst, arg x86asm.Arg) operand {
	switch a := arg.(type) {
	case x86asm.Reg:
		return regOperand(a.String())
	case x86asm.Imm:
		return immOperand(int64(a))
	case x86asm.Rel:
		// Branch targets are recorded absolute.
		return immOperand(int64(ea) + int64(inst.Len) + int64(a))
	case x86asm.Mem:
		return operand{
			kind:  facts.OpIndirect,
			seg:   x86Reg(a.Segment),
			base:  x86Reg(a.Base),
			index: x86Reg(a.Index),
			scale: int64(a.Scale),
			disp:  a.Disp,
			size:  uint64(inst.MemBytes) * 8,
		}
	default:
		return regOperand(arg.String())
	}
}

func x86Reg(r x86asm.Reg) string {
	if r == 0 {
		return noReg
	}
	return r.String()
}
