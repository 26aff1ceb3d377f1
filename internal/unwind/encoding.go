package unwind

import "github.com/pkg/errors"

// DW_EH_PE pointer encodings.
const (
	encAbsPtr  = 0x00
	encULEB128 = 0x01
	encUData2  = 0x02
	encUData4  = 0x03
	encUData8  = 0x04
	encSLEB128 = 0x09
	encSData2  = 0x0a
	encSData4  = 0x0b
	encSData8  = 0x0c

	encPCRel   = 0x10
	encDataRel = 0x30

	encOmit = 0xff
)

// pointer reads one encoded pointer. pcrel is relative to the field itself;
// datarel is taken relative to the start of the section being decoded. The
// indirect bit is ignored: the pointer's own value is returned.
func (c *cursor) pointer(enc byte) (uint64, error) {
	if enc == encOmit {
		return 0, nil
	}

	at := c.addr()
	var v uint64
	var err error
	switch enc & 0x0f {
	case encAbsPtr:
		v, err = c.fixed(c.p.ptrSize)
	case encULEB128:
		v, err = c.uleb()
	case encUData2:
		v, err = c.fixed(2)
	case encUData4:
		v, err = c.fixed(4)
	case encUData8:
		v, err = c.fixed(8)
	case encSLEB128:
		var s int64
		s, err = c.sleb()
		v = uint64(s)
	case encSData2:
		v, err = c.fixed(2)
		v = uint64(int64(int16(v)))
	case encSData4:
		v, err = c.fixed(4)
		v = uint64(int64(int32(v)))
	case encSData8:
		v, err = c.fixed(8)
	default:
		return 0, errors.Errorf("unsupported pointer format %#x", enc&0x0f)
	}
	if err != nil {
		return 0, err
	}

	switch enc & 0x70 {
	case 0:
	case encPCRel:
		v += at
	case encDataRel:
		v += c.p.base
	default:
		return 0, errors.Errorf("unsupported pointer application %#x", enc&0x70)
	}
	return v, nil
}
