// Package arch defines the instruction-set and file-format identities of a
// loaded module and the per-architecture parameters the fact extractor needs.
package arch

import (
	"fmt"
	"strings"
)

// ISA identifies the instruction set of a module.
type ISA int

const (
	ISAUndefined ISA = iota
	ISAIA32
	ISAPPC32
	ISAX64
	ISAARM
	ISAValidButUnsupported
	ISAPPC64
	ISAARM64
	ISAMIPS32
	ISAMIPS64
)

var isaNames = [...]string{
	ISAUndefined:           "Undefined",
	ISAIA32:                "IA32",
	ISAPPC32:               "PPC32",
	ISAX64:                 "X64",
	ISAARM:                 "ARM",
	ISAValidButUnsupported: "ValidButUnsupported",
	ISAPPC64:               "PPC64",
	ISAARM64:               "ARM64",
	ISAMIPS32:              "MIPS32",
	ISAMIPS64:              "MIPS64",
}

func (i ISA) String() string {
	if i < 0 || int(i) >= len(isaNames) {
		return fmt.Sprintf("ISA(%d)", int(i))
	}
	return isaNames[i]
}

// ParseISA maps a case-insensitive identity name to its ISA.
func ParseISA(name string) (ISA, error) {
	for i, n := range isaNames {
		if strings.EqualFold(n, name) {
			return ISA(i), nil
		}
	}
	switch strings.ToLower(name) {
	case "x86_64", "amd64":
		return ISAX64, nil
	case "arm32":
		return ISAARM, nil
	case "aarch64":
		return ISAARM64, nil
	}
	return ISAUndefined, fmt.Errorf("unknown instruction set %q", name)
}

// PointerWidth returns the native pointer size in bytes for the instruction set.
func PointerWidth(isa ISA) (int, error) {
	switch isa {
	case ISAX64, ISAARM64:
		return 8, nil
	case ISAARM:
		return 4, nil
	case ISAUndefined, ISAIA32, ISAPPC32, ISAValidButUnsupported, ISAPPC64, ISAMIPS32, ISAMIPS64:
		return 0, fmt.Errorf("pointer width for %s: %w", isa, ErrUnsupportedArchitecture)
	default:
		return 0, fmt.Errorf("pointer width for %s: %w", isa, ErrUnsupportedArchitecture)
	}
}

// CanonicalName is the instruction-set string published in the binary_isa
// relation. Both ARM variants share one analysis namespace.
func CanonicalName(isa ISA) string {
	switch isa {
	case ISAX64:
		return "X64"
	case ISAARM, ISAARM64:
		return "ARM"
	default:
		return "Undefined"
	}
}
