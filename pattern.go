package sigmatch

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Pattern is a compiled byte signature. Build one with ParsePattern; the
// zero value is empty and never matches.
type Pattern struct {
	values []byte
	// wild[i] marks position i as a wildcard.
	wild []bool

	// Longest run of exact bytes, used to locate candidates with bytes.Index.
	anchor    []byte
	anchorOff int
}

// ParsePattern compiles a signature string such as "48 8B ?? 90".
// Tokens are separated by whitespace; each is two hex digits or one of
// the wildcards "?" and "??".
func ParsePattern(s string) (Pattern, error) {
	var p Pattern
	for _, tok := range strings.Fields(s) {
		switch tok {
		case "?", "??":
			p.values = append(p.values, 0)
			p.wild = append(p.wild, true)
		default:
			if len(tok) != 2 {
				return Pattern{}, fmt.Errorf("%w: bad token %q", ErrInvalidPattern, tok)
			}
			v, err := strconv.ParseUint(tok, 16, 8)
			if err != nil {
				return Pattern{}, fmt.Errorf("%w: bad hex byte %q", ErrInvalidPattern, tok)
			}
			p.values = append(p.values, byte(v))
			p.wild = append(p.wild, false)
		}
	}
	if len(p.values) == 0 {
		return Pattern{}, ErrEmptyPattern
	}
	p.compile()
	return p, nil
}

// MustParsePattern is like ParsePattern but panics on error.
func MustParsePattern(s string) Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pattern) compile() {
	bestOff, bestLen := 0, 0
	runOff, runLen := 0, 0
	for i, wild := range p.wild {
		if wild {
			runLen = 0
			continue
		}
		if runLen == 0 {
			runOff = i
		}
		runLen++
		if runLen > bestLen {
			bestOff, bestLen = runOff, runLen
		}
	}
	p.anchorOff = bestOff
	p.anchor = p.values[bestOff : bestOff+bestLen]
}

// At returns the byte expected at position i, or wildcard=true when any
// byte matches there.
func (p Pattern) At(i int) (b byte, wildcard bool) {
	return p.values[i], p.wild[i]
}

// Len returns the number of byte positions in the pattern.
func (p Pattern) Len() int {
	return len(p.values)
}

// String renders the pattern in canonical form.
func (p Pattern) String() string {
	parts := make([]string, len(p.values))
	for i, b := range p.values {
		if p.wild[i] {
			parts[i] = "??"
		} else {
			parts[i] = fmt.Sprintf("%02X", b)
		}
	}
	return strings.Join(parts, " ")
}

// MatchAt reports whether the pattern matches buf starting at off.
func (p Pattern) MatchAt(buf []byte, off int) bool {
	if len(p.values) == 0 || off < 0 || off+len(p.values) > len(buf) {
		return false
	}
	for i, b := range p.values {
		if !p.wild[i] && buf[off+i] != b {
			return false
		}
	}
	return true
}

// Index returns the offset of the first match in buf at or after from,
// or -1. The whole pattern must fit inside buf.
func (p Pattern) Index(buf []byte, from int) int {
	n := len(p.values)
	if n == 0 || from < 0 {
		return -1
	}
	if len(p.anchor) == 0 {
		// Only wildcards: the first position with room wins.
		if from+n <= len(buf) {
			return from
		}
		return -1
	}
	for pos := from; pos+n <= len(buf); {
		j := bytes.Index(buf[pos+p.anchorOff:], p.anchor)
		if j < 0 {
			return -1
		}
		cand := pos + j
		if cand+n > len(buf) {
			return -1
		}
		if p.MatchAt(buf, cand) {
			return cand
		}
		pos = cand + 1
	}
	return -1
}

// Find returns the lowest address a in [from, to) at which the pattern
// matches mem and a+Len() <= to. Matches never straddle a gap between
// segments.
func (p Pattern) Find(mem Memory, from, to uint64) (uint64, bool) {
	window := AddressRange{Start: from, End: to}
	if window.Empty() || len(p.values) == 0 {
		return 0, false
	}
	for _, seg := range mem.Segments() {
		lo := max(from, seg.Addr)
		hi := min(to, seg.End())
		if lo >= hi || hi-lo < uint64(len(p.values)) {
			continue
		}
		if off := p.Index(seg.Data[lo-seg.Addr:hi-seg.Addr], 0); off >= 0 {
			return lo + uint64(off), true
		}
	}
	return 0, false
}

// PatternFinder locates pattern occurrences. A Database that can search
// natively may implement it; otherwise Pattern.Find is used.
type PatternFinder interface {
	FindPattern(p Pattern, from, to uint64) (uint64, bool)
}

// MemoryFinder is a PatternFinder backed by Pattern.Find over a Memory.
type MemoryFinder struct {
	Memory Memory
}

// FindPattern implements PatternFinder.
func (f MemoryFinder) FindPattern(p Pattern, from, to uint64) (uint64, bool) {
	return p.Find(f.Memory, from, to)
}
