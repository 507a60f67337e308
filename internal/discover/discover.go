// Package discover recovers function entry points from raw machine code
// through instruction-level disassembly. It is used to populate the
// function list of binaries whose symbol table is stripped or incomplete.
//
// Two signals are combined in a single decoding pass:
//
//   - Prologue shapes, such as push rbp; mov rbp, rsp on AMD64 or
//     stp x29, x30, [sp, #-n]! on ARM64.
//   - Branch targets of direct CALL/BL (calls) and unconditional JMP/B
//     (jumps, often tail calls).
//
// An [Entry] records which signals fired for an address. [Entry.Likely]
// keeps the addresses with a prologue or a direct call, which are reliable
// enough to be treated as function starts.
package discover

import (
	"cmp"
	"debug/elf"
	"fmt"
	"slices"
	"strings"
)

// Arch is a supported CPU architecture.
type Arch string

// Supported architectures.
const (
	ArchAMD64 Arch = "amd64"
	ArchARM64 Arch = "arm64"
)

// ArchFromELF maps an ELF machine to an Arch.
func ArchFromELF(m elf.Machine) (Arch, error) {
	switch m {
	case elf.EM_X86_64:
		return ArchAMD64, nil
	case elf.EM_AARCH64:
		return ArchARM64, nil
	default:
		return "", fmt.Errorf("unsupported ELF machine: %s", m)
	}
}

// Evidence is a set of signals pointing at an entry point.
type Evidence uint8

// Signals.
const (
	EvidencePrologue Evidence = 1 << iota
	EvidenceCall
	EvidenceJump
)

// Has reports whether every signal in f is set.
func (e Evidence) Has(f Evidence) bool {
	return e&f == f
}

func (e Evidence) String() string {
	var parts []string
	if e.Has(EvidencePrologue) {
		parts = append(parts, "prologue")
	}
	if e.Has(EvidenceCall) {
		parts = append(parts, "call")
	}
	if e.Has(EvidenceJump) {
		parts = append(parts, "jump")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// PrologueKind names a recognized prologue shape.
type PrologueKind string

// AMD64 prologues.
const (
	PrologueClassic        PrologueKind = "classic"
	PrologueNoFramePointer PrologueKind = "no-frame-pointer"
	ProloguePushOnly       PrologueKind = "push-only"
	PrologueLEABased       PrologueKind = "lea-based"
)

// ARM64 prologues.
const (
	PrologueSTPFramePair  PrologueKind = "stp-frame-pair"
	PrologueSTRLRPreIndex PrologueKind = "str-lr-preindex"
	PrologueSubSP         PrologueKind = "sub-sp"
)

// Entry is a probable function entry point.
type Entry struct {
	Address  uint64       `json:"address"`
	Evidence Evidence     `json:"evidence"`
	Prologue PrologueKind `json:"prologue,omitempty"`
	// Callers holds the addresses of direct calls and jumps to Address.
	Callers []uint64 `json:"callers,omitempty"`
}

// Likely reports whether the entry is backed by a prologue or a direct call.
// Jump targets alone are often branches inside a function.
func (e Entry) Likely() bool {
	return e.Evidence.Has(EvidencePrologue) || e.Evidence.Has(EvidenceCall)
}

// Entries decodes code, mapped at base, and returns the entry points it
// finds sorted by address. Branch targets outside code are dropped.
// Entries performs no I/O and works with any binary format.
func Entries(code []byte, base uint64, arch Arch) ([]Entry, error) {
	rec := newRecorder(base, base+uint64(len(code)))

	switch arch {
	case ArchAMD64:
		scanAMD64(code, base, rec)
	case ArchARM64:
		scanARM64(code, base, rec)
	default:
		return nil, fmt.Errorf("unsupported architecture: %s", arch)
	}

	return rec.sorted(), nil
}

// LikelyStarts returns the sorted addresses of the likely entries.
func LikelyStarts(entries []Entry) []uint64 {
	var starts []uint64
	for _, e := range entries {
		if e.Likely() {
			starts = append(starts, e.Address)
		}
	}
	return starts
}

type recorder struct {
	lo, hi  uint64
	entries map[uint64]*Entry
}

func newRecorder(lo, hi uint64) *recorder {
	return &recorder{lo: lo, hi: hi, entries: make(map[uint64]*Entry)}
}

func (r *recorder) entry(addr uint64) *Entry {
	e, ok := r.entries[addr]
	if !ok {
		e = &Entry{Address: addr}
		r.entries[addr] = e
	}
	return e
}

func (r *recorder) prologue(addr uint64, kind PrologueKind) {
	e := r.entry(addr)
	e.Evidence |= EvidencePrologue
	// push rbp is seen before the mov that upgrades it to a classic frame.
	if e.Prologue == "" || (kind == PrologueClassic && e.Prologue == ProloguePushOnly) {
		e.Prologue = kind
	}
}

func (r *recorder) branch(src, dst uint64, ev Evidence) {
	if dst < r.lo || dst >= r.hi {
		return
	}
	e := r.entry(dst)
	e.Evidence |= ev
	e.Callers = append(e.Callers, src)
}

func (r *recorder) sorted() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return cmp.Compare(a.Address, b.Address)
	})
	return out
}
