package program

import "github.com/google/uuid"

// Aux table names, as used in error reports and manifests.
const (
	TableSymbolInfo        = "elfSymbolInfo"
	TableSectionProperties = "elfSectionProperties"
	TableRelocations       = "relocations"
	TableImportEntries     = "importEntries"
	TableDataDirectories   = "dataDirectories"
	TableBinaryType        = "binaryType"
)

// SymbolInfo is the ELF symbol descriptor attached to a symbol.
type SymbolInfo struct {
	Size         uint64 `yaml:"size"`
	Type         string `yaml:"type"`
	Binding      string `yaml:"binding"`
	Visibility   string `yaml:"visibility"`
	SectionIndex uint64 `yaml:"section_index"`
}

// DefaultSymbolInfo is used for every symbol when the module carries no
// symbol descriptor table.
var DefaultSymbolInfo = SymbolInfo{Type: "NOTYPE", Binding: "GLOBAL", Visibility: "DEFAULT"}

// SectionProperties is the ELF section descriptor: raw section type and flags.
type SectionProperties struct {
	Type  uint64 `yaml:"type"`
	Flags uint64 `yaml:"flags"`
}

// Relocation is one relocation entry.
type Relocation struct {
	Address uint64 `yaml:"address"`
	Type    string `yaml:"type"`
	Name    string `yaml:"name"`
	Addend  int64  `yaml:"addend"`
}

// ImportEntry is one PE import table entry.
type ImportEntry struct {
	Address  uint64 `yaml:"address"`
	Ordinal  int64  `yaml:"ordinal"`
	Function string `yaml:"function"`
	Library  string `yaml:"library"`
}

// DataDirectory is one PE data directory entry.
type DataDirectory struct {
	Type    string `yaml:"type"`
	Address uint64 `yaml:"address"`
	Size    uint64 `yaml:"size"`
}

// AuxData holds the auxiliary metadata tables of a module. A nil map or
// slice means the table is absent; a non-nil empty one is present but empty.
type AuxData struct {
	SymbolInfo        map[uuid.UUID]SymbolInfo
	SectionProperties map[uuid.UUID]SectionProperties
	Relocations       []Relocation
	ImportEntries     []ImportEntry
	DataDirectories   []DataDirectory
	BinaryType        []string
}

// LookupSymbolInfo returns the descriptor for a symbol. present is false when
// the table itself is absent.
func (a *AuxData) LookupSymbolInfo(id uuid.UUID) (info SymbolInfo, found, present bool) {
	if a.SymbolInfo == nil {
		return SymbolInfo{}, false, false
	}
	info, found = a.SymbolInfo[id]
	return info, found, true
}

// LookupSectionProperties returns the descriptor for a section. present is
// false when the table itself is absent.
func (a *AuxData) LookupSectionProperties(id uuid.UUID) (props SectionProperties, found, present bool) {
	if a.SectionProperties == nil {
		return SectionProperties{}, false, false
	}
	props, found = a.SectionProperties[id]
	return props, found, true
}
