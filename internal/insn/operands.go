package insn

import "disasmfacts/internal/facts"

// operand is the normalized form of one instruction operand. kind is the
// relation the operand is recorded in; unused fields stay zero.
type operand struct {
	kind string

	reg string
	imm int64

	seg, base, index string
	scale, disp      int64
	size             uint64

	text string
}

func regOperand(name string) operand { return operand{kind: facts.OpRegDirect, reg: name} }
func immOperand(v int64) operand     { return operand{kind: facts.OpImmediate, imm: v} }

// operandTable assigns ids to distinct operands in first-seen order. Id 0 is
// reserved for an empty slot.
type operandTable struct {
	ids map[operand]uint64
}

func newOperandTable() *operandTable {
	return &operandTable{ids: make(map[operand]uint64)}
}

// intern returns the id of op, recording its fact the first time it is seen.
func (t *operandTable) intern(op operand, acc *facts.Accumulator) uint64 {
	if id, ok := t.ids[op]; ok {
		return id
	}
	id := uint64(len(t.ids) + 1)
	t.ids[op] = id

	switch op.kind {
	case facts.OpRegDirect:
		acc.Add(facts.OpRegDirect, id, op.reg)
	case facts.OpImmediate:
		acc.Add(facts.OpImmediate, id, op.imm)
	case facts.OpIndirect:
		acc.Add(facts.OpIndirect, id, op.seg, op.base, op.index, op.scale, op.disp, op.size)
	case facts.OpBarrier:
		acc.Add(facts.OpBarrier, id, op.text)
	case facts.OpPrefetch:
		acc.Add(facts.OpPrefetch, id, op.text)
	}
	return id
}

func (t *operandTable) len() int { return len(t.ids) }

func declareOperandRelations(acc *facts.Accumulator) {
	for _, rel := range []string{facts.OpRegDirect, facts.OpImmediate, facts.OpIndirect, facts.OpBarrier, facts.OpPrefetch} {
		acc.Declare(rel)
	}
}

// noReg is the register name used for absent segment, base or index registers.
const noReg = "NONE"
