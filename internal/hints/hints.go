// Package hints reads user-supplied facts from a tab-separated file and adds
// them to a module's facts before the backend is loaded.
//
// Each non-blank line is a relation name followed by its arguments, all
// separated by tabs:
//
//	invalid	4198400	user-provided-hint
//
// Number columns accept decimal or 0x-prefixed values. A leading minus sign
// makes the value signed; otherwise it is read as an unsigned address.
package hints

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"disasmfacts/internal/facts"
	"disasmfacts/internal/logging"
	"disasmfacts/internal/mangle"
)

// Signatures reports the column kinds of the relations a backend declares.
type Signatures interface {
	Signature(relation string) ([]mangle.Kind, bool)
}

// ReadFile adds every hint in path to acc.
func ReadFile(path string, sig Signatures, acc *facts.Accumulator) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open hints: %w", err)
	}
	defer f.Close()

	n, err := Read(f, sig, acc)
	if err != nil {
		return fmt.Errorf("hints %s: %w", path, err)
	}
	logging.Decode("loaded %d hints from %s", n, path)
	return nil
}

// Read adds every hint in r to acc and returns how many were added. Nothing
// is added unless the whole input is valid.
func Read(r io.Reader, sig Signatures, acc *facts.Accumulator) (int, error) {
	type hint struct {
		relation string
		args     []interface{}
	}
	var parsed []hint

	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		rel := fields[0]
		kinds, ok := sig.Signature(rel)
		if !ok {
			return 0, fmt.Errorf("line %d: relation %s is not declared", line, rel)
		}
		if len(fields)-1 != len(kinds) {
			return 0, fmt.Errorf("line %d: relation %s expects %d args, got %d", line, rel, len(kinds), len(fields)-1)
		}
		args := make([]interface{}, len(kinds))
		for i, kind := range kinds {
			v, err := parseValue(fields[i+1], kind)
			if err != nil {
				return 0, fmt.Errorf("line %d: %s arg %d: %w", line, rel, i, err)
			}
			args[i] = v
		}
		parsed = append(parsed, hint{relation: rel, args: args})
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}

	for _, h := range parsed {
		acc.Add(h.relation, h.args...)
	}
	return len(parsed), nil
}

func parseValue(field string, kind mangle.Kind) (interface{}, error) {
	if kind != mangle.KindNumber {
		return field, nil
	}
	if strings.HasPrefix(field, "-") {
		return strconv.ParseInt(field, 0, 64)
	}
	return strconv.ParseUint(field, 0, 64)
}
