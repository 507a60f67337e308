package discover

import (
	"encoding/binary"

	"golang.org/x/arch/arm64/arm64asm"
)

const arm64InsnLen = 4

// Fixed-register prologue encodings, matched on the raw instruction word.
const (
	// stp x29, x30, [sp, #imm]!
	stpFramePairMask = 0xffc07fff
	stpFramePairBits = 0xa9807bfd
	// str x30, [sp, #imm]!
	strLRPreIndexMask = 0xffe00fff
	strLRPreIndexBits = 0xf8000ffe
	// sub sp, sp, #imm
	subSPMask = 0xff8003ff
	subSPBits = 0xd10003ff

	retMask = 0xfffffc1f
	retBits = 0xd65f0000
	nopWord = 0xd503201f
)

func scanARM64(code []byte, base uint64, rec *recorder) {
	boundary := true

	for off := 0; off+arm64InsnLen <= len(code); off += arm64InsnLen {
		addr := base + uint64(off)
		word := binary.LittleEndian.Uint32(code[off:])

		switch {
		case word&stpFramePairMask == stpFramePairBits:
			rec.prologue(addr, PrologueSTPFramePair)
		case word&strLRPreIndexMask == strLRPreIndexBits:
			rec.prologue(addr, PrologueSTRLRPreIndex)
		case boundary && word&subSPMask == subSPBits:
			rec.prologue(addr, PrologueSubSP)
		}

		boundary = word&retMask == retBits || word == nopWord

		inst, err := arm64asm.Decode(code[off : off+arm64InsnLen])
		if err != nil {
			// Zero padding between functions does not decode.
			boundary = true
			continue
		}

		switch inst.Op {
		case arm64asm.BL:
			if dst, ok := branchTargetARM64(inst, addr); ok {
				rec.branch(addr, dst, EvidenceCall)
			}
		case arm64asm.B:
			// B.cond carries a condition and stays inside the function.
			if hasCond(inst) {
				continue
			}
			if dst, ok := branchTargetARM64(inst, addr); ok {
				rec.branch(addr, dst, EvidenceJump)
			}
		}
	}
}

func hasCond(inst arm64asm.Inst) bool {
	for _, arg := range inst.Args {
		if _, ok := arg.(arm64asm.Cond); ok {
			return true
		}
	}
	return false
}

// branchTargetARM64 resolves the pc-relative destination of BL or B.
func branchTargetARM64(inst arm64asm.Inst, src uint64) (uint64, bool) {
	pcrel, ok := inst.Args[0].(arm64asm.PCRel)
	if !ok {
		return 0, false
	}
	return src + uint64(int64(pcrel)), true
}
