// Package unwind decodes .eh_frame call frame information into cie_entry and
// fde_entry facts.
package unwind

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"

	"github.com/go-delve/delve/pkg/dwarf/leb128"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"disasmfacts/internal/facts"
	"disasmfacts/internal/logging"
	"disasmfacts/internal/program"
)

// SectionName is the section the decoder reads.
const SectionName = ".eh_frame"

// Decoder walks the .eh_frame section of a module.
type Decoder struct {
	ptrSize int
}

// New returns a decoder for a target with the given pointer width in bytes.
func New(pointerWidth int) *Decoder {
	return &Decoder{ptrSize: pointerWidth}
}

// Decode emits facts for every well-formed record of the module's .eh_frame
// section. A module without the section produces no facts. A malformed record
// stops the walk of its byte interval; records before it are kept.
func (d *Decoder) Decode(mod *program.Module, acc *facts.Accumulator) error {
	acc.Declare(facts.CIEEntry)
	acc.Declare(facts.FDEEntry)

	sec := mod.FindSection(SectionName)
	if sec == nil {
		return nil
	}

	for _, bi := range sec.ByteIntervals {
		base, ok := bi.Addr()
		if !ok {
			return errors.Wrapf(program.ErrPreconditionViolation, "%s byte interval %s has no address", SectionName, bi.ID)
		}
		p := &parser{ptrSize: d.ptrSize, base: base, data: bi.Bytes(), cies: make(map[uint64]*cie), acc: acc}
		if err := p.run(); err != nil {
			logging.UnwindWarn("%s at %#x: %v (%d CIEs, %d FDEs kept)", SectionName, base, err, p.nCIE, p.nFDE)
			continue
		}
		logging.UnwindDebug("%s at %#x: %d CIEs, %d FDEs", SectionName, base, p.nCIE, p.nFDE)
	}
	return nil
}

// recordHeader opens every record whose length fits in 32 bits.
type recordHeader struct {
	Length uint32
	ID     uint32
}

// extendedHeader opens a record whose length field is the 0xffffffff escape.
type extendedHeader struct {
	Escape uint32
	Length uint64
	ID     uint32
}

// cie holds what FDEs need from their CIE.
type cie struct {
	augmentation string
	fdeEnc       byte
	lsdaEnc      byte
}

type parser struct {
	ptrSize int
	base    uint64
	data    []byte
	cies    map[uint64]*cie
	acc     *facts.Accumulator

	nCIE, nFDE int
}

func (p *parser) run() error {
	off := 0
	for off < len(p.data) {
		next, err := p.record(off)
		if err != nil {
			return errors.Wrapf(err, "record at %#x", p.base+uint64(off))
		}
		if next < 0 {
			return nil
		}
		off = next
	}
	return nil
}

// record decodes the record at off and returns the offset of the next one,
// or -1 at the zero terminator.
func (p *parser) record(off int) (int, error) {
	rest := p.data[off:]
	if len(rest) < 4 {
		return 0, errors.Wrap(io.ErrUnexpectedEOF, "length")
	}
	if binary.LittleEndian.Uint32(rest) == 0 {
		return -1, nil
	}

	var (
		length uint64
		id     uint32
		idPos  int
	)
	if binary.LittleEndian.Uint32(rest) == 0xffffffff {
		var h extendedHeader
		if err := struc.UnpackWithOrder(bytes.NewReader(rest), &h, binary.LittleEndian); err != nil {
			return 0, errors.Wrap(err, "extended header")
		}
		length, id, idPos = h.Length, h.ID, off+12
	} else {
		var h recordHeader
		if err := struc.UnpackWithOrder(bytes.NewReader(rest), &h, binary.LittleEndian); err != nil {
			return 0, errors.Wrap(err, "header")
		}
		length, id, idPos = uint64(h.Length), h.ID, off+4
	}
	if length < 4 {
		return 0, errors.Errorf("length %#x too short for a record id", length)
	}
	if length > uint64(len(p.data)-idPos) {
		return 0, errors.Errorf("length %#x overruns section", length)
	}
	end := idPos + int(length)

	body := &cursor{p: p, pos: idPos + 4, end: end}
	ea := p.base + uint64(off)
	if id == 0 {
		if err := p.cie(ea, length, body); err != nil {
			return 0, errors.Wrap(err, "CIE")
		}
	} else {
		cieAddr := p.base + uint64(idPos) - uint64(id)
		if err := p.fde(ea, length, cieAddr, body); err != nil {
			return 0, errors.Wrap(err, "FDE")
		}
	}
	return end, nil
}

func (p *parser) cie(ea, length uint64, c *cursor) error {
	version, err := c.byte()
	if err != nil {
		return errors.Wrap(err, "version")
	}

	aug, err := c.cstring()
	if err != nil {
		return errors.Wrap(err, "augmentation")
	}
	if strings.Contains(aug, "eh") {
		c.pos += p.ptrSize
	}
	codeAlign, err := c.uleb()
	if err != nil {
		return errors.Wrap(err, "code alignment")
	}
	dataAlign, err := c.sleb()
	if err != nil {
		return errors.Wrap(err, "data alignment")
	}
	var retReg uint64
	if version == 1 {
		b, err := c.byte()
		if err != nil {
			return errors.Wrap(err, "return register")
		}
		retReg = uint64(b)
	} else if retReg, err = c.uleb(); err != nil {
		return errors.Wrap(err, "return register")
	}

	info := &cie{augmentation: aug, fdeEnc: encAbsPtr, lsdaEnc: encOmit}
	if strings.HasPrefix(aug, "z") {
		if _, err := c.uleb(); err != nil {
			return errors.Wrap(err, "augmentation length")
		}
		for _, ch := range aug[1:] {
			switch ch {
			case 'R':
				if info.fdeEnc, err = c.byte(); err != nil {
					return errors.Wrap(err, "FDE encoding")
				}
			case 'L':
				if info.lsdaEnc, err = c.byte(); err != nil {
					return errors.Wrap(err, "LSDA encoding")
				}
			case 'P':
				enc, err := c.byte()
				if err != nil {
					return errors.Wrap(err, "personality encoding")
				}
				if _, err := c.pointer(enc); err != nil {
					return errors.Wrap(err, "personality")
				}
			case 'S', 'B':
			default:
				// Unknown augmentation: the rest of the data cannot be interpreted.
				return errors.Errorf("unknown augmentation %q", aug)
			}
		}
	}

	p.cies[ea] = info
	p.acc.Add(facts.CIEEntry, ea, length, uint64(version), aug, codeAlign, dataAlign, retReg)
	p.nCIE++
	return nil
}

func (p *parser) fde(ea, length, cieAddr uint64, c *cursor) error {
	info, ok := p.cies[cieAddr]
	if !ok {
		return errors.Errorf("no CIE at %#x", cieAddr)
	}

	start, err := c.pointer(info.fdeEnc)
	if err != nil {
		return errors.Wrap(err, "initial location")
	}
	// The range uses the value format only; no base is applied.
	size, err := c.pointer(info.fdeEnc & 0x0f)
	if err != nil {
		return errors.Wrap(err, "address range")
	}

	var lsda uint64
	if strings.HasPrefix(info.augmentation, "z") {
		if _, err := c.uleb(); err != nil {
			return errors.Wrap(err, "augmentation length")
		}
		if strings.Contains(info.augmentation, "L") && info.lsdaEnc != encOmit {
			if lsda, err = c.pointer(info.lsdaEnc); err != nil {
				return errors.Wrap(err, "LSDA")
			}
		}
	}

	p.acc.Add(facts.FDEEntry, ea, length, cieAddr, start, start+size, lsda)
	p.nFDE++
	return nil
}

// cursor reads within one record body.
type cursor struct {
	p        *parser
	pos, end int
}

func (c *cursor) addr() uint64 {
	return c.p.base + uint64(c.pos)
}

func (c *cursor) need(n int) error {
	if c.pos+n > c.end {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (c *cursor) byte() (byte, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	b := c.p.data[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) cstring() (string, error) {
	if c.pos > c.end {
		return "", io.ErrUnexpectedEOF
	}
	i := bytes.IndexByte(c.p.data[c.pos:c.end], 0)
	if i < 0 {
		return "", io.ErrUnexpectedEOF
	}
	s := string(c.p.data[c.pos : c.pos+i])
	c.pos += i + 1
	return s, nil
}

func (c *cursor) fixed(n int) (uint64, error) {
	if err := c.need(n); err != nil {
		return 0, err
	}
	b := c.p.data[c.pos : c.pos+n]
	c.pos += n
	switch n {
	case 2:
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(b)), nil
	default:
		return binary.LittleEndian.Uint64(b), nil
	}
}

// leb returns the remaining record bytes up to and including the next byte
// without a continuation bit. The leb128 decoders panic on a short buffer, so
// the terminator must be found first.
func (c *cursor) leb() (*bytes.Reader, error) {
	if c.pos >= c.end {
		return nil, io.ErrUnexpectedEOF
	}
	for i := c.pos; i < c.end; i++ {
		if c.p.data[i]&0x80 == 0 {
			return bytes.NewReader(c.p.data[c.pos : i+1]), nil
		}
	}
	return nil, io.ErrUnexpectedEOF
}

func (c *cursor) uleb() (uint64, error) {
	r, err := c.leb()
	if err != nil {
		return 0, err
	}
	v, n := leb128.DecodeUnsigned(r)
	c.pos += int(n)
	return v, nil
}

func (c *cursor) sleb() (int64, error) {
	r, err := c.leb()
	if err != nil {
		return 0, err
	}
	v, n := leb128.DecodeSigned(r)
	c.pos += int(n)
	return v, nil
}
