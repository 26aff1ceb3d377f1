package arch

import "strings"

// FileFormat identifies the container format a module was loaded from.
type FileFormat int

const (
	FormatUndefined FileFormat = iota
	FormatCOFF
	FormatELF
	FormatPE
	FormatIdaProDb32
	FormatIdaProDb64
	FormatXCOFF
	FormatMACHO
	FormatRAW
)

// String returns the canonical format name; unknown values are "Undefined".
func (f FileFormat) String() string {
	switch f {
	case FormatCOFF:
		return "COFF"
	case FormatELF:
		return "ELF"
	case FormatPE:
		return "PE"
	case FormatIdaProDb32:
		return "IdaProDb32"
	case FormatIdaProDb64:
		return "IdaProDb64"
	case FormatXCOFF:
		return "XCOFF"
	case FormatMACHO:
		return "MACHO"
	case FormatRAW:
		return "RAW"
	default:
		return "Undefined"
	}
}

// ParseFileFormat maps a case-insensitive name to a FileFormat. Unknown
// names map to FormatUndefined.
func ParseFileFormat(name string) FileFormat {
	for f := FormatCOFF; f <= FormatRAW; f++ {
		if strings.EqualFold(f.String(), name) {
			return f
		}
	}
	if strings.EqualFold(name, "mach-o") {
		return FormatMACHO
	}
	return FormatUndefined
}
