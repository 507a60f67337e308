package sigmatch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Symbol is a named address in the host symbol table.
type Symbol struct {
	Address uint64 `json:"address" yaml:"address"`
	Name    string `json:"name" yaml:"name"`
}

// SymbolTable is the host's naming interface.
type SymbolTable interface {
	// Symbols returns every named address.
	Symbols() []Symbol
	// CurrentName returns the label shown for addr.
	CurrentName(addr uint64) string
	// SetName binds name to addr without prompting. Refusals wrap
	// ErrRenameRejected.
	SetName(addr uint64, name string) error
}

// Database is the analysis database a scan runs against.
type Database interface {
	Memory
	FunctionLookup
	SymbolTable
}

// Assignment records one applied rename.
type Assignment struct {
	Address   uint64 `json:"address" yaml:"address"`
	OldName   string `json:"old_name" yaml:"old_name"`
	NewName   string `json:"new_name" yaml:"new_name"`
	Signature string `json:"signature" yaml:"signature"`
}

// ScanResult summarizes a scan.
type ScanResult struct {
	// Signatures is the number of signatures fully processed.
	Signatures int `json:"signatures"`
	// Total is the number of signatures submitted.
	Total int `json:"total"`
	// Matches counts every pattern hit, function start or not.
	Matches  int `json:"matches"`
	Renamed  int `json:"renamed"`
	Rejected int `json:"rejected"`
	// Completed is false when the scan was cancelled.
	Completed   bool         `json:"completed"`
	Assignments []Assignment `json:"assignments,omitempty"`
}

// Progress is reported periodically while scanning.
type Progress struct {
	Done      int
	Total     int
	Signature string
}

func (p Progress) String() string {
	if p.Signature == "" {
		return fmt.Sprintf("Progress: %d/%d", p.Done, p.Total)
	}
	return fmt.Sprintf("Progress: %d/%d (%s)", p.Done, p.Total, p.Signature)
}

const (
	defaultProgressInterval    = 100
	defaultCancelCheckInterval = 4096
)

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger used for rename and summary events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithProgress registers a callback invoked every progress interval.
func WithProgress(fn func(Progress)) Option {
	return func(s *Scanner) { s.progress = fn }
}

// WithProgressInterval sets how many signatures pass between progress reports.
func WithProgressInterval(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.progressInterval = n
		}
	}
}

// WithCancelCheckInterval sets how many matches of a single signature pass
// between cancellation checks. Zero checks only between signatures.
func WithCancelCheckInterval(n int) Option {
	return func(s *Scanner) {
		if n >= 0 {
			s.cancelCheckInterval = n
		}
	}
}

// WithFinder overrides the pattern search primitive.
func WithFinder(f PatternFinder) Option {
	return func(s *Scanner) { s.finder = f }
}

// Scanner applies signature names to matching function starts.
type Scanner struct {
	db                  Database
	finder              PatternFinder
	resolver            *FunctionResolver
	logger              zerolog.Logger
	progress            func(Progress)
	progressInterval    int
	cancelCheckInterval int
}

// NewScanner returns a Scanner over db. If db implements PatternFinder its
// native search is used.
func NewScanner(db Database, opts ...Option) *Scanner {
	s := &Scanner{
		db:                  db,
		resolver:            NewFunctionResolver(db),
		logger:              zerolog.Nop(),
		progressInterval:    defaultProgressInterval,
		cancelCheckInterval: defaultCancelCheckInterval,
	}
	if f, ok := db.(PatternFinder); ok {
		s.finder = f
	} else {
		s.finder = MemoryFinder{Memory: db}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// scanState is owned by a single Scan call.
type scanState struct {
	bounds  AddressRange
	names   *NameRegistry
	renamed map[uint64]struct{}
	result  ScanResult
}

// Scan runs every signature in order over the whole address space. The
// first signature to claim a function start wins it. Cancelling ctx stops
// the scan early; renames already applied stay in place and the result
// reports Completed=false. Scan only fails on invalid input, before any
// rename is attempted.
func (s *Scanner) Scan(ctx context.Context, sigs []Signature) (ScanResult, error) {
	for _, sig := range sigs {
		if sig.Pattern.Len() == 0 {
			return ScanResult{}, &InputError{Err: fmt.Errorf("signature %q: %w", sig.Name, ErrEmptyPattern)}
		}
	}

	st := s.init(len(sigs))

	s.logger.Info().
		Int("signatures", len(sigs)).
		Str("range", fmt.Sprintf("0x%X-0x%X", st.bounds.Start, st.bounds.End)).
		Int("names", st.names.Len()).
		Msg("Starting signature scan")

	cancelled := false
	for i, sig := range sigs {
		if i%s.progressInterval == 0 {
			s.report(Progress{Done: i, Total: len(sigs), Signature: sig.Name})
		}
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		if !s.scanSignature(ctx, st, sig) {
			cancelled = true
			break
		}
		st.result.Signatures++
	}

	st.result.Completed = !cancelled
	s.report(Progress{Done: st.result.Signatures, Total: len(sigs)})

	ev := s.logger.Info().
		Int("processed", st.result.Signatures).
		Int("total", len(sigs)).
		Int("matches", st.result.Matches).
		Int("renamed", st.result.Renamed).
		Int("rejected", st.result.Rejected)
	if cancelled {
		ev.Msg("Scan cancelled")
	} else {
		ev.Msgf("Done, renamed %d functions", st.result.Renamed)
	}

	return st.result, nil
}

func (s *Scanner) init(total int) *scanState {
	symbols := s.db.Symbols()
	names := NewNameRegistry()
	for _, sym := range symbols {
		names.Add(sym.Name)
	}
	return &scanState{
		bounds:  Bounds(s.db),
		names:   names,
		renamed: make(map[uint64]struct{}),
		result:  ScanResult{Total: total},
	}
}

// scanSignature walks every occurrence of sig. It returns false if the
// scan was cancelled part way through.
func (s *Scanner) scanSignature(ctx context.Context, st *scanState, sig Signature) bool {
	cursor := st.bounds.Start
	hits := 0
	for st.bounds.Contains(cursor) {
		found, ok := s.finder.FindPattern(sig.Pattern, cursor, st.bounds.End)
		if !ok {
			return true
		}
		st.result.Matches++
		hits++

		if cand, ok := s.resolver.Resolve(found); ok {
			if _, claimed := st.renamed[cand.Start]; !claimed {
				s.rename(st, sig, cand.Start)
			}
		}

		cursor = found + 1
		if s.cancelCheckInterval > 0 && hits%s.cancelCheckInterval == 0 && ctx.Err() != nil {
			return false
		}
	}
	return true
}

func (s *Scanner) rename(st *scanState, sig Signature, addr uint64) {
	name := AllocateName(sig.Name, st.names)
	old := s.db.CurrentName(addr)

	if err := s.db.SetName(addr, name); err != nil {
		st.result.Rejected++
		s.logger.Error().
			Err(err).
			Str("address", fmt.Sprintf("0x%X", addr)).
			Str("name", name).
			Msgf("Failed to set name %s for 0x%X", name, addr)
		return
	}

	st.names.Add(name)
	st.renamed[addr] = struct{}{}
	st.result.Renamed++
	st.result.Assignments = append(st.result.Assignments, Assignment{
		Address:   addr,
		OldName:   old,
		NewName:   name,
		Signature: sig.Name,
	})

	s.logger.Info().
		Str("address", fmt.Sprintf("0x%X", addr)).
		Str("old", old).
		Str("new", name).
		Str("signature", sig.Name).
		Msgf("0x%X: %s -> %s", addr, old, name)
}

func (s *Scanner) report(p Progress) {
	if s.progress != nil {
		s.progress(p)
	}
}
