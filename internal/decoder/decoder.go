// Package decoder runs the whole fact extraction for one module and hands
// the result to the analysis backend for the module's ISA.
package decoder

import (
	"context"
	"fmt"
	"time"

	"disasmfacts/internal/arch"
	"disasmfacts/internal/backend"
	"disasmfacts/internal/config"
	"disasmfacts/internal/extract"
	"disasmfacts/internal/facts"
	"disasmfacts/internal/hints"
	"disasmfacts/internal/insn"
	"disasmfacts/internal/logging"
	"disasmfacts/internal/program"
	"disasmfacts/internal/scan"
	"disasmfacts/internal/unwind"
)

// InstructionDecoderFactory builds the instruction decoder for an ISA.
type InstructionDecoderFactory func(isa arch.ISA) (insn.Decoder, error)

// ExceptionDecoder appends call frame facts for a module.
type ExceptionDecoder interface {
	Decode(mod *program.Module, acc *facts.Accumulator) error
}

// ExceptionDecoderFactory builds the exception decoder for a pointer width.
type ExceptionDecoderFactory func(pointerWidth int) ExceptionDecoder

// Config configures a Decoder. Zero-valued collaborators fall back to the
// built-in ones.
type Config struct {
	ScanWorkers      int
	SkipInstructions bool
	SkipUnwind       bool
	HintsPath        string
	Backend          backend.Config

	Registry     *backend.Registry
	Instructions InstructionDecoderFactory
	Exceptions   ExceptionDecoderFactory
}

// ConfigFrom derives a decoder configuration from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		ScanWorkers:      cfg.Decode.ScanWorkers,
		SkipInstructions: cfg.Decode.SkipInstructions,
		SkipUnwind:       cfg.Decode.SkipUnwind,
		HintsPath:        cfg.Decode.Hints,
		Backend: backend.Config{
			FactLimit:    cfg.Backend.FactLimit,
			QueryTimeout: cfg.GetQueryTimeout(),
		},
	}
}

// Decoder extracts facts from program modules.
type Decoder struct {
	cfg Config
}

// Result is a successful decode: the loaded backend and the ordered facts
// that were handed to it.
type Result struct {
	Module   string
	Backend  backend.Backend
	Facts    *facts.Accumulator
	Duration time.Duration
}

// New creates a Decoder.
func New(cfg Config) *Decoder {
	if cfg.Registry == nil {
		cfg.Registry = backend.Default()
	}
	if cfg.Instructions == nil {
		cfg.Instructions = insn.New
	}
	if cfg.Exceptions == nil {
		cfg.Exceptions = func(width int) ExceptionDecoder { return unwind.New(width) }
	}
	return &Decoder{cfg: cfg}
}

// Decode extracts every fact of mod, loads them into a fresh backend and
// returns both. options are recorded as option facts and the hints file, if
// configured, is appended last. On any error the
// partial facts and the backend are discarded.
func (d *Decoder) Decode(ctx context.Context, mod *program.Module, options []string) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryDecode, "decode "+mod.Name)

	if _, ok := mod.Address(); !ok {
		return nil, program.Preconditionf("module %s has no resolvable address", mod.Name)
	}
	if _, ok := mod.Size(); !ok {
		return nil, program.Preconditionf("module %s has no resolvable size", mod.Name)
	}

	b, err := d.cfg.Registry.Select(mod.ISA, d.cfg.Backend)
	if err != nil {
		return nil, err
	}

	acc, err := d.extract(ctx, mod, options)
	if err == nil && d.cfg.HintsPath != "" {
		err = hints.ReadFile(d.cfg.HintsPath, b, acc)
	}
	if err == nil {
		err = b.Load(ctx, acc)
	}
	if err != nil {
		if cerr := b.Close(); cerr != nil {
			logging.DecodeWarn("closing backend after failed decode: %v", cerr)
		}
		logging.DecodeError("decode %s failed: %v", mod.Name, err)
		return nil, err
	}

	for _, rel := range acc.Relations() {
		logging.DecodeDebug("%s: %d", rel, acc.Len(rel))
	}
	return &Result{
		Module:   mod.Name,
		Backend:  b,
		Facts:    acc,
		Duration: timer.StopWithInfo(),
	}, nil
}

func (d *Decoder) extract(ctx context.Context, mod *program.Module, options []string) (*facts.Accumulator, error) {
	scanner, err := scan.ForModule(mod)
	if err != nil {
		return nil, err
	}

	var decoder insn.Decoder
	if !d.cfg.SkipInstructions {
		if decoder, err = d.cfg.Instructions(mod.ISA); err != nil {
			return nil, err
		}
	}

	acc := facts.NewAccumulator()
	for _, sec := range mod.Sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch {
		case sec.IsFlagSet(program.FlagExecutable):
			logging.DecodeDebug("section %s: code", sec.Name)
			if decoder != nil {
				for _, bi := range sec.ByteIntervals {
					if err := decoder.DecodeInterval(bi, acc); err != nil {
						return nil, fmt.Errorf("section %s: %w", sec.Name, err)
					}
				}
			}
		case sec.IsFlagSet(program.FlagInitialized):
			logging.DecodeDebug("section %s: data", sec.Name)
		default:
			logging.DecodeDebug("section %s: skipped", sec.Name)
			continue
		}

		scanned, err := scanner.ScanIntervals(ctx, sec.ByteIntervals, d.cfg.ScanWorkers)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", sec.Name, err)
		}
		acc.Merge(scanned)
	}

	if err := extract.Symbols(mod, acc); err != nil {
		return nil, err
	}
	if err := extract.Sections(mod, acc); err != nil {
		return nil, err
	}
	extract.Metadata(mod, options, acc)

	if !d.cfg.SkipUnwind {
		if err := d.cfg.Exceptions(scanner.PointerWidth()).Decode(mod, acc); err != nil {
			return nil, err
		}
	}
	return acc, nil
}
