package program

import (
	"cmp"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/rs/zerolog"

	"github.com/maxgio92/sigmatch"
	"github.com/maxgio92/sigmatch/internal/discover"
)

type options struct {
	discover bool
	logger   zerolog.Logger
}

// Option configures ELF loading.
type Option func(*options)

// WithDiscovery toggles recovery of functions missing from the symbol table.
func WithDiscovery(enabled bool) Option {
	return func(o *options) { o.discover = enabled }
}

// WithLogger sets the logger used while loading.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Open loads the ELF binary at path.
func Open(path string, opts ...Option) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open binary: %w", err)
	}
	defer f.Close()

	return FromELF(f, opts...)
}

// FromELF loads allocated sections as segments, STT_FUNC symbols as
// functions and every named symbol into the symbol table. With discovery
// enabled, likely entry points in .text that no symbol covers become
// functions running up to the next known start.
func FromELF(r io.ReaderAt, opts ...Option) (*Program, error) {
	o := options{discover: true, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF file: %w", err)
	}
	defer f.Close()

	segments, err := loadSegments(f)
	if err != nil {
		return nil, err
	}

	symbols, funcs, err := loadSymbols(f)
	if err != nil {
		return nil, err
	}

	o.logger.Debug().
		Int("segments", len(segments)).
		Int("symbols", len(symbols)).
		Int("functions", len(funcs)).
		Msg("Loaded ELF symbol table")

	if o.discover {
		found, err := discoverFunctions(f, funcs)
		if err != nil {
			o.logger.Warn().Err(err).Msg("Function discovery skipped")
		} else {
			o.logger.Debug().Int("functions", len(found)).Msg("Discovered functions without symbols")
			funcs = append(funcs, found...)
		}
	}

	return New(segments, funcs, symbols), nil
}

func loadSegments(f *elf.File) ([]sigmatch.Segment, error) {
	var segments []sigmatch.Segment
	for _, sec := range f.Sections {
		if sec.Flags&elf.SHF_ALLOC == 0 || sec.Type == elf.SHT_NOBITS || sec.Size == 0 {
			continue
		}
		data, err := sec.Data()
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read section %s: %w", sec.Name, err)
		}
		segments = append(segments, sigmatch.Segment{Addr: sec.Addr, Data: data})
	}
	if len(segments) == 0 {
		return nil, errors.New("no allocated sections found")
	}
	return segments, nil
}

func loadSymbols(f *elf.File) ([]sigmatch.Symbol, []Function, error) {
	syms, err := f.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, nil, fmt.Errorf("failed to read symbol table: %w", err)
	}
	dyn, err := f.DynamicSymbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, nil, fmt.Errorf("failed to read dynamic symbol table: %w", err)
	}

	var (
		symbols []sigmatch.Symbol
		funcs   []Function
	)
	for _, s := range append(append([]elf.Symbol(nil), syms...), dyn...) {
		if s.Name == "" || s.Section == elf.SHN_UNDEF || s.Value == 0 {
			continue
		}
		symbols = append(symbols, sigmatch.Symbol{Address: s.Value, Name: s.Name})
		if elf.ST_TYPE(s.Info) == elf.STT_FUNC && s.Size > 0 {
			funcs = append(funcs, Function{Start: s.Value, End: s.Value + s.Size})
		}
	}
	return symbols, funcs, nil
}

// discoverFunctions returns functions for the likely entries in .text that
// fall outside every known function. Each ends at the next known or
// discovered start, or at the end of .text.
func discoverFunctions(f *elf.File, known []Function) ([]Function, error) {
	text := f.Section(".text")
	if text == nil {
		return nil, errors.New("no .text section found")
	}
	arch, err := discover.ArchFromELF(f.Machine)
	if err != nil {
		return nil, err
	}
	code, err := text.Data()
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read .text section: %w", err)
	}

	entries, err := discover.Entries(code, text.Addr, arch)
	if err != nil {
		return nil, err
	}

	return fillGaps(discover.LikelyStarts(entries), known, text.Addr+text.Size), nil
}

// fillGaps turns sorted candidate starts into functions, skipping any start
// inside a known function.
func fillGaps(starts []uint64, known []Function, end uint64) []Function {
	boundaries := make([]uint64, 0, len(starts)+len(known))
	for _, k := range known {
		boundaries = append(boundaries, k.Start)
	}

	sortedKnown := slices.Clone(known)
	slices.SortFunc(sortedKnown, func(a, b Function) int {
		return cmp.Compare(a.Start, b.Start)
	})
	covered := func(addr uint64) bool {
		i, found := slices.BinarySearchFunc(sortedKnown, addr, func(f Function, a uint64) int {
			return cmp.Compare(f.Start, a)
		})
		return found || (i > 0 && sortedKnown[i-1].Contains(addr))
	}

	var kept []uint64
	for _, s := range starts {
		if covered(s) {
			continue
		}
		kept = append(kept, s)
		boundaries = append(boundaries, s)
	}
	slices.Sort(boundaries)
	boundaries = slices.Compact(boundaries)

	funcs := make([]Function, 0, len(kept))
	for _, s := range kept {
		next := end
		i, found := slices.BinarySearch(boundaries, s)
		if found {
			i++
		}
		if i < len(boundaries) {
			next = min(next, boundaries[i])
		}
		if next > s {
			funcs = append(funcs, Function{Start: s, End: next})
		}
	}
	return funcs
}
