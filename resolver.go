package sigmatch

// FunctionLookup resolves an address to the function containing it.
type FunctionLookup interface {
	// FunctionContaining returns the start address of the function that
	// contains addr, or false when addr lies outside every function.
	FunctionContaining(addr uint64) (start uint64, ok bool)
}

// FunctionCandidate is a match confirmed to sit exactly at a function entry.
type FunctionCandidate struct {
	Start uint64
}

// FunctionResolver accepts only matches that land on a function start.
// Matches inside a function body are coincidences and are rejected.
type FunctionResolver struct {
	lookup FunctionLookup
}

// NewFunctionResolver returns a resolver over lookup.
func NewFunctionResolver(lookup FunctionLookup) *FunctionResolver {
	return &FunctionResolver{lookup: lookup}
}

// Resolve returns the candidate for addr, or false if no function starts at addr.
func (r *FunctionResolver) Resolve(addr uint64) (FunctionCandidate, bool) {
	start, ok := r.lookup.FunctionContaining(addr)
	if !ok || start != addr {
		return FunctionCandidate{}, false
	}
	return FunctionCandidate{Start: start}, true
}
