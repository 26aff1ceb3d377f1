// Package export writes an accumulated fact set to disk, either as a
// directory of tab-separated .facts files or as a SQLite database.
package export

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"disasmfacts/internal/facts"
	"disasmfacts/internal/logging"
)

// FactsExt is the file extension of one relation in a facts directory.
const FactsExt = ".facts"

// WriteFactsDir writes one <relation>.facts file per relation of acc into
// dir, creating it if needed. Columns are tab-separated and numbers are
// decimal. Declared relations without tuples get an empty file.
func WriteFactsDir(dir string, acc *facts.Accumulator) error {
	timer := logging.StartTimer(logging.CategoryExport, "write facts dir")
	defer timer.Stop()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create facts dir: %w", err)
	}
	for _, rel := range acc.SortedRelations() {
		path := filepath.Join(dir, rel+FactsExt)
		if err := writeRelation(path, acc.Tuples(rel)); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		logging.ExportDebug("%s: %d tuples", path, acc.Len(rel))
	}
	logging.Export("wrote %d relations to %s", len(acc.Relations()), dir)
	return nil
}

func writeRelation(path string, tuples []facts.Tuple) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	for _, t := range tuples {
		for i, v := range t {
			if i > 0 {
				w.WriteByte('\t')
			}
			w.WriteString(formatValue(v))
		}
		w.WriteByte('\n')
	}
	return w.Flush()
}

// tsvEscaper keeps one tuple per line when a string column carries
// separators.
var tsvEscaper = strings.NewReplacer("\\", "\\\\", "\t", "\\t", "\n", "\\n")

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case uint64:
		return strconv.FormatUint(x, 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case string:
		return tsvEscaper.Replace(x)
	default:
		return tsvEscaper.Replace(fmt.Sprint(x))
	}
}
