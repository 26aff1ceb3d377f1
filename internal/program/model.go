// Package program holds the read-only program model the fact extractor runs
// over: a module with its sections, byte intervals, symbols and the auxiliary
// metadata tables produced by the binary loader.
package program

import (
	"github.com/google/uuid"

	"disasmfacts/internal/arch"
)

// SectionFlags is a bit set of section properties.
type SectionFlags uint32

const (
	FlagReadable SectionFlags = 1 << iota
	FlagWritable
	FlagExecutable
	FlagLoaded
	FlagInitialized
	FlagThreadLocal
)

// ByteInterval is a contiguous run of bytes belonging to one section.
// Contents holds the initialized prefix; the remainder up to Size is
// uninitialized.
type ByteInterval struct {
	ID       uuid.UUID
	Address  *uint64
	Size     uint64
	Contents []byte
}

// Addr returns the interval's base address.
func (b *ByteInterval) Addr() (uint64, bool) {
	if b.Address == nil {
		return 0, false
	}
	return *b.Address, true
}

// InitializedSize is the number of bytes with defined content.
func (b *ByteInterval) InitializedSize() uint64 {
	n := uint64(len(b.Contents))
	if b.Size > 0 && n > b.Size {
		return b.Size
	}
	return n
}

// Bytes returns a view of the initialized content. Callers must not modify it.
func (b *ByteInterval) Bytes() []byte {
	return b.Contents[:b.InitializedSize()]
}

// Section groups byte intervals under one name and flag set.
type Section struct {
	ID            uuid.UUID
	Name          string
	Flags         SectionFlags
	ByteIntervals []*ByteInterval
}

// IsFlagSet reports whether all bits of f are set.
func (s *Section) IsFlagSet(f SectionFlags) bool {
	return s.Flags&f == f
}

// Address is the lowest byte interval address. It is unresolvable when the
// section has no intervals or any interval is unaddressed.
func (s *Section) Address() (uint64, bool) {
	lo, _, ok := extent(s.ByteIntervals)
	return lo, ok
}

// Size is the address extent covered by the section's byte intervals.
func (s *Section) Size() (uint64, bool) {
	lo, hi, ok := extent(s.ByteIntervals)
	return hi - lo, ok
}

func extent(intervals []*ByteInterval) (lo, hi uint64, ok bool) {
	if len(intervals) == 0 {
		return 0, 0, false
	}
	for i, bi := range intervals {
		addr, has := bi.Addr()
		if !has {
			return 0, 0, false
		}
		end := addr + bi.Size
		if i == 0 || addr < lo {
			lo = addr
		}
		if i == 0 || end > hi {
			hi = end
		}
	}
	return lo, hi, true
}

// Symbol is a named program symbol, optionally bound to an address.
type Symbol struct {
	ID      uuid.UUID
	Name    string
	Address *uint64
}

// Addr returns the symbol address.
func (s *Symbol) Addr() (uint64, bool) {
	if s.Address == nil {
		return 0, false
	}
	return *s.Address, true
}

// CodeBlock is a block of code referenced by the module, such as its entry point.
type CodeBlock struct {
	ID      uuid.UUID
	Address *uint64
}

// Addr returns the block address.
func (c *CodeBlock) Addr() (uint64, bool) {
	if c == nil || c.Address == nil {
		return 0, false
	}
	return *c.Address, true
}

// Module is one loaded binary image.
type Module struct {
	Name          string
	ISA           arch.ISA
	FileFormat    arch.FileFormat
	PreferredAddr uint64
	EntryPoint    *CodeBlock
	Sections      []*Section
	Symbols       []*Symbol
	Aux           AuxData
}

// Address is the lowest address of any byte interval in the module.
func (m *Module) Address() (uint64, bool) {
	lo, _, ok := extent(m.allIntervals())
	return lo, ok
}

// Size is the extent of all byte intervals in the module.
func (m *Module) Size() (uint64, bool) {
	lo, hi, ok := extent(m.allIntervals())
	return hi - lo, ok
}

func (m *Module) allIntervals() []*ByteInterval {
	var out []*ByteInterval
	for _, s := range m.Sections {
		out = append(out, s.ByteIntervals...)
	}
	return out
}

// FindSection returns the first section with the given name.
func (m *Module) FindSection(name string) *Section {
	for _, s := range m.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Ptr returns a pointer to a copy of v, for populating optional addresses.
func Ptr(v uint64) *uint64 {
	return &v
}
