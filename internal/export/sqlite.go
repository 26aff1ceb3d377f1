package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"disasmfacts/internal/facts"
	"disasmfacts/internal/logging"
)

// WriteSQLite stores every relation of acc as a table in the SQLite database
// at path. Each table has a seq column holding the accumulation order and
// one column c0..cN per argument. Existing tables of the same name are
// replaced. The whole write is one transaction.
//
// uint64 values above the int64 range are stored with their two's
// complement bit pattern.
func WriteSQLite(ctx context.Context, path string, acc *facts.Accumulator) (err error) {
	timer := logging.StartTimer(logging.CategoryExport, "write sqlite")
	defer timer.Stop()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, rel := range acc.SortedRelations() {
		if err = writeTable(ctx, tx, rel, acc.Tuples(rel)); err != nil {
			return fmt.Errorf("relation %s: %w", rel, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	logging.Export("wrote %d relations to %s", len(acc.Relations()), path)
	return nil
}

func writeTable(ctx context.Context, tx *sql.Tx, rel string, tuples []facts.Tuple) error {
	arity := 0
	if len(tuples) > 0 {
		arity = len(tuples[0])
	}

	cols := []string{"seq INTEGER NOT NULL"}
	for i := 0; i < arity; i++ {
		cols = append(cols, fmt.Sprintf("c%d", i))
	}
	table := quoteIdent(rel)
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(cols, ", "))); err != nil {
		return err
	}
	if len(tuples) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", arity+1), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, placeholders))
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]interface{}, arity+1)
	for seq, t := range tuples {
		if len(t) != arity {
			return fmt.Errorf("tuple %d has %d columns, want %d", seq, len(t), arity)
		}
		args[0] = int64(seq)
		for i, v := range t {
			args[i+1] = sqlValue(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

func sqlValue(v interface{}) interface{} {
	if u, ok := v.(uint64); ok {
		return int64(u)
	}
	return v
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
