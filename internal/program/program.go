// Package program is an in-memory analysis database for a loaded binary:
// its mapped bytes, its functions and its symbol table. It is the host
// side of a signature scan.
package program

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/maxgio92/sigmatch"
)

// Function is a function body spanning [Start, End).
type Function struct {
	Start uint64 `json:"start" yaml:"start"`
	End   uint64 `json:"end" yaml:"end"`
}

// Contains reports whether addr is inside the function.
func (f Function) Contains(addr uint64) bool {
	return addr >= f.Start && addr < f.End
}

// Program implements sigmatch.Database.
type Program struct {
	segments []sigmatch.Segment
	funcs    []Function
	byAddr   map[uint64]string
	byName   map[string]uint64
	renames  []sigmatch.Symbol
	// shadowed holds symbol names displaced while building the table.
	shadowed []sigmatch.Symbol
}

// New builds a Program. Segments and functions are sorted by address;
// functions that overlap an earlier one are dropped. Symbols with an empty
// name are ignored.
//
// Each address shows one name and each name labels one address: a later
// symbol at the same address replaces the earlier label, and a name seen
// again at another address moves there. Displaced names are still reported
// by Symbols so that they stay reserved.
func New(segments []sigmatch.Segment, funcs []Function, symbols []sigmatch.Symbol) *Program {
	p := &Program{
		segments: slices.Clone(segments),
		byAddr:   make(map[uint64]string, len(symbols)),
		byName:   make(map[string]uint64, len(symbols)),
	}
	slices.SortFunc(p.segments, func(a, b sigmatch.Segment) int {
		return cmp.Compare(a.Addr, b.Addr)
	})

	sorted := slices.Clone(funcs)
	slices.SortFunc(sorted, func(a, b Function) int {
		return cmp.Compare(a.Start, b.Start)
	})
	for _, f := range sorted {
		if f.End <= f.Start {
			continue
		}
		if n := len(p.funcs); n > 0 && p.funcs[n-1].End > f.Start {
			continue
		}
		p.funcs = append(p.funcs, f)
	}

	for _, s := range symbols {
		if s.Name == "" {
			continue
		}
		p.shadowed = append(p.shadowed, p.bind(s.Address, s.Name)...)
	}
	return p
}

// Segments implements sigmatch.Memory.
func (p *Program) Segments() []sigmatch.Segment {
	return p.segments
}

// Functions returns the known functions sorted by start address.
func (p *Program) Functions() []Function {
	return p.funcs
}

// FunctionContaining implements sigmatch.FunctionLookup.
func (p *Program) FunctionContaining(addr uint64) (uint64, bool) {
	i, found := slices.BinarySearchFunc(p.funcs, addr, func(f Function, a uint64) int {
		return cmp.Compare(f.Start, a)
	})
	if found {
		return p.funcs[i].Start, true
	}
	if i == 0 {
		return 0, false
	}
	if f := p.funcs[i-1]; f.Contains(addr) {
		return f.Start, true
	}
	return 0, false
}

// Symbols implements sigmatch.SymbolTable. It includes names displaced
// while building the table, so a shared name appears once per address.
func (p *Program) Symbols() []sigmatch.Symbol {
	out := make([]sigmatch.Symbol, 0, len(p.byAddr)+len(p.shadowed))
	for addr, name := range p.byAddr {
		out = append(out, sigmatch.Symbol{Address: addr, Name: name})
	}
	out = append(out, p.shadowed...)
	slices.SortFunc(out, func(a, b sigmatch.Symbol) int {
		if c := cmp.Compare(a.Address, b.Address); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return slices.Compact(out)
}

// CurrentName implements sigmatch.SymbolTable. Unnamed addresses get a
// generated "sub_<HEX>" label.
func (p *Program) CurrentName(addr uint64) string {
	if name, ok := p.byAddr[addr]; ok {
		return name
	}
	return fmt.Sprintf("sub_%X", addr)
}

// SetName implements sigmatch.SymbolTable.
func (p *Program) SetName(addr uint64, name string) error {
	if err := validName(name); err != nil {
		return fmt.Errorf("%w: %q: %v", sigmatch.ErrRenameRejected, name, err)
	}
	if owner, ok := p.byName[name]; ok && owner != addr {
		return fmt.Errorf("%w: %q already names 0x%X", sigmatch.ErrRenameRejected, name, owner)
	}
	p.bind(addr, name)
	p.renames = append(p.renames, sigmatch.Symbol{Address: addr, Name: name})
	return nil
}

// Renames returns the names applied through SetName, in order.
func (p *Program) Renames() []sigmatch.Symbol {
	return p.renames
}

// bind labels addr with name and returns the labels it displaced.
func (p *Program) bind(addr uint64, name string) []sigmatch.Symbol {
	var displaced []sigmatch.Symbol
	if old, ok := p.byAddr[addr]; ok && old != name {
		delete(p.byName, old)
		displaced = append(displaced, sigmatch.Symbol{Address: addr, Name: old})
	}
	if prev, ok := p.byName[name]; ok && prev != addr {
		delete(p.byAddr, prev)
		displaced = append(displaced, sigmatch.Symbol{Address: prev, Name: name})
	}
	p.byAddr[addr] = name
	p.byName[name] = addr
	return displaced
}

const nameSpecials = "_.$@?:<>"

func validName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name")
	}
	if name[0] >= '0' && name[0] <= '9' {
		return fmt.Errorf("starts with a digit")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune(nameSpecials, r):
		default:
			return fmt.Errorf("invalid character %q", r)
		}
	}
	return nil
}
