package discover

import (
	"golang.org/x/arch/x86/x86asm"
)

const int3 = 0xcc

// isENDBR reports whether code starts with ENDBR64 (f3 0f 1e fa) or ENDBR32
// (f3 0f 1e fb). x86asm does not decode these CET markers, which sit at
// function entries of binaries built with -fcf-protection.
func isENDBR(code []byte) bool {
	return len(code) >= 4 &&
		code[0] == 0xf3 && code[1] == 0x0f && code[2] == 0x1e &&
		(code[3] == 0xfa || code[3] == 0xfb)
}

func scanAMD64(code []byte, base uint64, rec *recorder) {
	var (
		prev      *x86asm.Inst
		prevStart uint64 // address of prev, or of the ENDBR in front of it
		boundary  = true // start of code, or after ret/padding/undecodable bytes
		endbr     uint64
		hasEndbr  bool
	)

	for off := 0; off < len(code); {
		addr := base + uint64(off)

		if isENDBR(code[off:]) {
			endbr, hasEndbr = addr, true
			off += 4
			continue
		}

		inst, err := x86asm.Decode(code[off:], 64)
		if err != nil {
			prev, boundary, hasEndbr = nil, true, false
			off++
			continue
		}

		start := addr
		if hasEndbr {
			start = endbr
		}

		switch {
		// push rbp; mov rbp, rsp
		case prev != nil &&
			prev.Op == x86asm.PUSH && prev.Args[0] == x86asm.RBP &&
			inst.Op == x86asm.MOV && inst.Args[0] == x86asm.RBP && inst.Args[1] == x86asm.RSP:
			rec.prologue(prevStart, PrologueClassic)

		// sub rsp, imm
		case boundary && inst.Op == x86asm.SUB && inst.Args[0] == x86asm.RSP:
			if imm, ok := inst.Args[1].(x86asm.Imm); ok && imm > 0 {
				rec.prologue(start, PrologueNoFramePointer)
			}

		// push rbp
		case boundary && inst.Op == x86asm.PUSH && inst.Args[0] == x86asm.RBP:
			rec.prologue(start, ProloguePushOnly)

		// lea rsp, [rsp-imm]
		case boundary && inst.Op == x86asm.LEA && inst.Args[0] == x86asm.RSP:
			rec.prologue(start, PrologueLEABased)
		}

		switch inst.Op {
		case x86asm.CALL:
			if dst, ok := branchTargetAMD64(inst, addr); ok {
				rec.branch(addr, dst, EvidenceCall)
			}
		case x86asm.JMP:
			// Conditional jumps have their own ops, so JMP is unconditional.
			if dst, ok := branchTargetAMD64(inst, addr); ok {
				rec.branch(addr, dst, EvidenceJump)
			}
		}

		boundary = inst.Op == x86asm.RET || inst.Op == x86asm.NOP || code[off] == int3
		prev, prevStart, hasEndbr = &inst, start, false
		off += inst.Len
	}
}

// branchTargetAMD64 resolves the destination of a CALL or JMP. Only
// pc-relative and absolute operands are resolvable. RIP-relative memory
// operands name a pointer slot (PLT/GOT), not code, and are ignored.
func branchTargetAMD64(inst x86asm.Inst, src uint64) (uint64, bool) {
	switch arg := inst.Args[0].(type) {
	case x86asm.Rel:
		return src + uint64(inst.Len) + uint64(int64(arg)), true
	case x86asm.Mem:
		if arg.Base == 0 && arg.Index == 0 && arg.Segment == 0 {
			return uint64(arg.Disp), true
		}
	}
	return 0, false
}
