package sigmatch

import (
	"cmp"
	"slices"
)

// AddressRange is a half-open [Start, End) span of addresses.
type AddressRange struct {
	Start uint64 `json:"start" yaml:"start"`
	End   uint64 `json:"end" yaml:"end"`
}

// Contains reports whether addr falls inside the range.
func (r AddressRange) Contains(addr uint64) bool {
	return addr >= r.Start && addr < r.End
}

// Empty reports whether the range holds no addresses.
func (r AddressRange) Empty() bool {
	return r.Start >= r.End
}

// Segment is a contiguous block of bytes loaded at Addr.
type Segment struct {
	Addr uint64
	Data []byte
}

// End returns the first address past the segment.
func (s Segment) End() uint64 {
	return s.Addr + uint64(len(s.Data))
}

// Memory is a read-only view of a program's address space. Segments must be
// sorted by address and must not overlap. Addresses not covered by a segment
// hold no bytes and never match a pattern.
type Memory interface {
	Segments() []Segment
}

// Bounds returns the smallest range covering every segment of mem.
func Bounds(mem Memory) AddressRange {
	segs := mem.Segments()
	if len(segs) == 0 {
		return AddressRange{}
	}
	r := AddressRange{Start: segs[0].Addr, End: segs[0].End()}
	for _, s := range segs[1:] {
		r.Start = min(r.Start, s.Addr)
		r.End = max(r.End, s.End())
	}
	return r
}

// Buffer is an in-memory Memory made of one or more segments.
type Buffer struct {
	segs []Segment
}

// NewBuffer returns a single-segment Buffer mapping data at base.
func NewBuffer(base uint64, data []byte) *Buffer {
	return &Buffer{segs: []Segment{{Addr: base, Data: data}}}
}

// NewSegmentedBuffer returns a Buffer over the given segments, sorted by address.
func NewSegmentedBuffer(segs ...Segment) *Buffer {
	sorted := slices.Clone(segs)
	slices.SortFunc(sorted, func(a, b Segment) int {
		return cmp.Compare(a.Addr, b.Addr)
	})
	return &Buffer{segs: sorted}
}

// Segments implements Memory.
func (b *Buffer) Segments() []Segment {
	return b.segs
}
