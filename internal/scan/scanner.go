// Package scan turns raw byte ranges into data_byte and address_in_data facts.
//
// Every byte yields one data_byte fact. Every offset with at least a pointer's
// worth of bytes left yields an address_in_data fact when the little-endian
// word read there falls inside the module's address range. Candidates are
// taken at every offset, aligned or not; the analysis engine scores them.
package scan

import (
	"context"
	"encoding/binary"
	"fmt"

	"golang.org/x/sync/errgroup"

	"disasmfacts/internal/arch"
	"disasmfacts/internal/facts"
	"disasmfacts/internal/logging"
	"disasmfacts/internal/program"
)

// Scanner extracts byte and address-candidate facts for one module.
type Scanner struct {
	width    int
	min, max uint64
}

// New returns a scanner for the given pointer width and inclusive address
// bounds. Only 4 and 8 byte pointers are supported.
func New(pointerWidth int, min, max uint64) (*Scanner, error) {
	if pointerWidth != 4 && pointerWidth != 8 {
		return nil, fmt.Errorf("scan with %d-byte pointers: %w", pointerWidth, arch.ErrUnsupportedArchitecture)
	}
	return &Scanner{width: pointerWidth, min: min, max: max}, nil
}

// ForModule builds a scanner from the module's instruction set and address
// range. The upper bound is the end of the module, inclusive.
func ForModule(mod *program.Module) (*Scanner, error) {
	addr, ok := mod.Address()
	if !ok {
		return nil, program.Preconditionf("module %s has non-addressable section data", mod.Name)
	}
	size, ok := mod.Size()
	if !ok {
		return nil, program.Preconditionf("module %s has non-calculable size", mod.Name)
	}
	width, err := arch.PointerWidth(mod.ISA)
	if err != nil {
		return nil, err
	}
	return New(width, addr, addr+size)
}

// PointerWidth returns the word size used for address candidates.
func (s *Scanner) PointerWidth() int { return s.width }

// Bounds returns the inclusive candidate range.
func (s *Scanner) Bounds() (min, max uint64) { return s.min, s.max }

// Scan appends facts for data located at base.
func (s *Scanner) Scan(base uint64, data []byte, acc *facts.Accumulator) {
	acc.Declare(facts.DataByte)
	acc.Declare(facts.AddressInData)

	ea := base
	for i := range data {
		acc.Add(facts.DataByte, ea, uint64(data[i]))
		if len(data)-i >= s.width {
			if v := s.word(data[i : i+s.width]); v >= s.min && v <= s.max {
				acc.Add(facts.AddressInData, ea, v)
			}
		}
		ea++
	}
}

// word decodes exactly s.width little-endian bytes, zero-extended.
func (s *Scanner) word(b []byte) uint64 {
	if s.width == 8 {
		return binary.LittleEndian.Uint64(b)
	}
	return uint64(binary.LittleEndian.Uint32(b))
}

// ScanInterval scans the initialized bytes of one byte interval.
func (s *Scanner) ScanInterval(bi *program.ByteInterval, acc *facts.Accumulator) error {
	addr, ok := bi.Addr()
	if !ok {
		return program.Preconditionf("byte interval %s is non-addressable", bi.ID)
	}
	s.Scan(addr, bi.Bytes(), acc)
	return nil
}

// ScanIntervals scans several byte intervals, up to workers at a time, and
// returns their facts concatenated in input order. The result is identical
// to scanning the intervals one after another.
func (s *Scanner) ScanIntervals(ctx context.Context, intervals []*program.ByteInterval, workers int) (*facts.Accumulator, error) {
	out := facts.NewAccumulator()
	if workers <= 1 || len(intervals) <= 1 {
		for _, bi := range intervals {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := s.ScanInterval(bi, out); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	parts := make([]*facts.Accumulator, len(intervals))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, bi := range intervals {
		i, bi := i, bi
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			part := facts.NewAccumulator()
			if err := s.ScanInterval(bi, part); err != nil {
				return err
			}
			parts[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, part := range parts {
		out.Merge(part)
	}
	logging.ScanDebug("scanned %d intervals with %d workers: %d bytes, %d address candidates",
		len(intervals), workers, out.Len(facts.DataByte), out.Len(facts.AddressInData))
	return out, nil
}
