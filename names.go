package sigmatch

import "strconv"

// NameRegistry is the set of labels in use during a scan. It only grows.
type NameRegistry struct {
	names map[string]struct{}
}

// NewNameRegistry returns a registry seeded with names.
func NewNameRegistry(names ...string) *NameRegistry {
	r := &NameRegistry{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		r.Add(n)
	}
	return r
}

// Contains reports whether name is taken.
func (r *NameRegistry) Contains(name string) bool {
	_, ok := r.names[name]
	return ok
}

// Add marks name as taken.
func (r *NameRegistry) Add(name string) {
	r.names[name] = struct{}{}
}

// Len returns the number of names in the registry.
func (r *NameRegistry) Len() int {
	return len(r.names)
}

// AllocateName returns base if it is free in reg, otherwise base with the
// smallest numeric suffix "_1", "_2", ... that is free. The result is not
// added to reg; the caller does that once the name has actually been applied.
func AllocateName(base string, reg *NameRegistry) string {
	if !reg.Contains(base) {
		return base
	}
	for i := 1; ; i++ {
		name := base + "_" + strconv.Itoa(i)
		if !reg.Contains(name) {
			return name
		}
	}
}
