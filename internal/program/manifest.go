package program

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"disasmfacts/internal/arch"
)

// manifestNamespace seeds name-derived UUIDs so that a manifest without
// explicit ids always yields the same identities.
var manifestNamespace = uuid.MustParse("6f1c3e52-8d0b-4c55-9a1e-2b7d4f0c9e31")

// Manifest is the YAML serialization of a Module.
type Manifest struct {
	Name          string            `yaml:"name"`
	ISA           string            `yaml:"isa"`
	FileFormat    string            `yaml:"file_format"`
	PreferredAddr uint64            `yaml:"preferred_address"`
	EntryPoint    *uint64           `yaml:"entry_point,omitempty"`
	Sections      []SectionManifest `yaml:"sections"`
	Symbols       []SymbolManifest  `yaml:"symbols,omitempty"`
	Aux           AuxManifest       `yaml:"aux,omitempty"`
}

// SectionManifest describes one section.
type SectionManifest struct {
	ID            string             `yaml:"id,omitempty"`
	Name          string             `yaml:"name"`
	Flags         []string           `yaml:"flags"`
	ByteIntervals []IntervalManifest `yaml:"byte_intervals"`
	Properties    *SectionProperties `yaml:"properties,omitempty"`
}

// IntervalManifest describes one byte interval. Content is given either as
// whitespace-separated hex or as base64.
type IntervalManifest struct {
	ID      string  `yaml:"id,omitempty"`
	Address *uint64 `yaml:"address,omitempty"`
	Size    uint64  `yaml:"size,omitempty"`
	Hex     string  `yaml:"hex,omitempty"`
	Base64  string  `yaml:"base64,omitempty"`
}

// SymbolManifest describes one symbol.
type SymbolManifest struct {
	ID      string      `yaml:"id,omitempty"`
	Name    string      `yaml:"name"`
	Address *uint64     `yaml:"address,omitempty"`
	Info    *SymbolInfo `yaml:"info,omitempty"`
}

// AuxManifest carries the module-level aux tables. SymbolInfo and
// SectionProperties force the presence (or absence) of the per-entity
// tables; when unset, a table is present iff some entity carries an entry.
type AuxManifest struct {
	SymbolInfo        *bool           `yaml:"symbol_info,omitempty"`
	SectionProperties *bool           `yaml:"section_properties,omitempty"`
	BinaryType        []string        `yaml:"binary_type,omitempty"`
	Relocations       []Relocation    `yaml:"relocations,omitempty"`
	ImportEntries     []ImportEntry   `yaml:"import_entries,omitempty"`
	DataDirectories   []DataDirectory `yaml:"data_directories,omitempty"`
}

var flagNames = map[string]SectionFlags{
	"readable":     FlagReadable,
	"writable":     FlagWritable,
	"executable":   FlagExecutable,
	"loaded":       FlagLoaded,
	"initialized":  FlagInitialized,
	"thread_local": FlagThreadLocal,
}

// LoadManifest reads a YAML manifest file and builds its Module.
func LoadManifest(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes YAML manifest bytes and builds its Module.
func ParseManifest(data []byte) (*Module, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return m.Build()
}

// Build converts the manifest into a Module.
func (m *Manifest) Build() (*Module, error) {
	isa, err := arch.ParseISA(m.ISA)
	if err != nil {
		return nil, err
	}

	mod := &Module{
		Name:          m.Name,
		ISA:           isa,
		FileFormat:    arch.ParseFileFormat(m.FileFormat),
		PreferredAddr: m.PreferredAddr,
	}
	if m.EntryPoint != nil {
		mod.EntryPoint = &CodeBlock{
			ID:      deriveID("block", "entry", 0),
			Address: Ptr(*m.EntryPoint),
		}
	}

	sectionProps := make(map[uuid.UUID]SectionProperties)
	for i, sm := range m.Sections {
		id, err := parseOrDerive(sm.ID, "section", sm.Name, i)
		if err != nil {
			return nil, err
		}
		sec := &Section{ID: id, Name: sm.Name}
		for _, f := range sm.Flags {
			bit, ok := flagNames[strings.ToLower(f)]
			if !ok {
				return nil, fmt.Errorf("section %s: unknown flag %q", sm.Name, f)
			}
			sec.Flags |= bit
		}
		for j, im := range sm.ByteIntervals {
			bi, err := im.build(sm.Name, j)
			if err != nil {
				return nil, fmt.Errorf("section %s: %w", sm.Name, err)
			}
			sec.ByteIntervals = append(sec.ByteIntervals, bi)
		}
		if sm.Properties != nil {
			sectionProps[id] = *sm.Properties
		}
		mod.Sections = append(mod.Sections, sec)
	}

	symbolInfo := make(map[uuid.UUID]SymbolInfo)
	for i, sm := range m.Symbols {
		id, err := parseOrDerive(sm.ID, "symbol", sm.Name, i)
		if err != nil {
			return nil, err
		}
		sym := &Symbol{ID: id, Name: sm.Name}
		if sm.Address != nil {
			sym.Address = Ptr(*sm.Address)
		}
		if sm.Info != nil {
			symbolInfo[id] = *sm.Info
		}
		mod.Symbols = append(mod.Symbols, sym)
	}

	if tablePresent(m.Aux.SymbolInfo, len(symbolInfo)) {
		mod.Aux.SymbolInfo = symbolInfo
	}
	if tablePresent(m.Aux.SectionProperties, len(sectionProps)) {
		mod.Aux.SectionProperties = sectionProps
	}
	mod.Aux.BinaryType = m.Aux.BinaryType
	mod.Aux.Relocations = m.Aux.Relocations
	mod.Aux.ImportEntries = m.Aux.ImportEntries
	mod.Aux.DataDirectories = m.Aux.DataDirectories

	return mod, nil
}

func (im IntervalManifest) build(section string, index int) (*ByteInterval, error) {
	id, err := parseOrDerive(im.ID, "interval/"+section, "", index)
	if err != nil {
		return nil, err
	}
	var content []byte
	switch {
	case im.Hex != "" && im.Base64 != "":
		return nil, fmt.Errorf("byte interval %d: both hex and base64 content given", index)
	case im.Hex != "":
		content, err = hex.DecodeString(strings.Join(strings.Fields(im.Hex), ""))
	case im.Base64 != "":
		content, err = base64.StdEncoding.DecodeString(im.Base64)
	}
	if err != nil {
		return nil, fmt.Errorf("byte interval %d: %w", index, err)
	}
	size := im.Size
	if size == 0 {
		size = uint64(len(content))
	}
	if uint64(len(content)) > size {
		return nil, fmt.Errorf("byte interval %d: %d content bytes exceed size %d", index, len(content), size)
	}
	bi := &ByteInterval{ID: id, Size: size, Contents: content}
	if im.Address != nil {
		bi.Address = Ptr(*im.Address)
	}
	return bi, nil
}

func tablePresent(explicit *bool, entries int) bool {
	if explicit != nil {
		return *explicit
	}
	return entries > 0
}

func parseOrDerive(raw, kind, name string, index int) (uuid.UUID, error) {
	if raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%s %s: invalid id: %w", kind, name, err)
		}
		return id, nil
	}
	return deriveID(kind, name, index), nil
}

func deriveID(kind, name string, index int) uuid.UUID {
	return uuid.NewSHA1(manifestNamespace, []byte(fmt.Sprintf("%s/%s/%d", kind, name, index)))
}
