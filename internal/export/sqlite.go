package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/brickbot/clifile/metadata"
)

// SQLite writes img to the SQLite database at path, replacing tables of
// the same name. Every present metadata table becomes a table of the same
// name holding raw column values keyed by row. The derived tables types, methods and user_strings
// hold resolved names, signatures and body sizes, and meta holds the image
// summary fields.
func SQLite(ctx context.Context, img *metadata.Image, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("export: opening database: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("export: begin: %w", err)
	}
	defer tx.Rollback()

	for id := metadata.TableID(0); id < metadata.NumTables; id++ {
		t := img.Table(id)
		if t == nil || t.Rows() == 0 {
			continue
		}
		if err := writeTable(ctx, tx, t); err != nil {
			return fmt.Errorf("export: table %s: %w", id, err)
		}
	}

	s, err := Summarize(img)
	if err != nil {
		return err
	}
	if err := writeDerived(ctx, tx, img, s); err != nil {
		return fmt.Errorf("export: derived tables: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("export: commit: %w", err)
	}
	metadata.Logger().Debug("sqlite export written",
		zap.String("path", path), zap.Int("types", len(s.Types)))
	return nil
}

func quote(name string) string { return `"` + strings.ReplaceAll(name, `"`, `""`) + `"` }

func createAndPrepare(ctx context.Context, tx *sql.Tx, table string, cols []string) (*sql.Stmt, error) {
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c)
		marks[i] = "?"
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(table)); err != nil {
		return nil, err
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quote(table), strings.Join(quoted, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return nil, err
	}
	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quote(table), strings.Join(marks, ", "))
	return tx.PrepareContext(ctx, insert)
}

func writeTable(ctx context.Context, tx *sql.Tx, t *metadata.Table) error {
	cols := []string{"row"}
	for _, c := range t.Columns() {
		cols = append(cols, c.Name)
	}
	stmt, err := createAndPrepare(ctx, tx, t.ID().String(), cols)
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for row := uint32(1); row <= t.Rows(); row++ {
		values, err := t.Row(row)
		if err != nil {
			return err
		}
		args[0] = int64(row)
		for i, v := range values {
			args[i+1] = int64(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

func writeDerived(ctx context.Context, tx *sql.Tx, img *metadata.Image, s *Summary) error {
	meta, err := createAndPrepare(ctx, tx, "meta", []string{"key", "value"})
	if err != nil {
		return err
	}
	defer meta.Close()
	for _, kv := range [][2]string{
		{"assembly", s.Assembly},
		{"metadata_version", s.MetadataVersion},
		{"table_stream", s.TableStream},
		{"entry_point", s.EntryPoint},
		{"pe32_plus", fmt.Sprint(s.PE32Plus)},
	} {
		if _, err := meta.ExecContext(ctx, kv[0], kv[1]); err != nil {
			return err
		}
	}

	types, err := createAndPrepare(ctx, tx, "types", []string{"token", "name", "extends", "fields", "methods"})
	if err != nil {
		return err
	}
	defer types.Close()
	methods, err := createAndPrepare(ctx, tx, "methods",
		[]string{"token", "type_token", "name", "signature", "rva", "code_size", "max_stack", "clauses"})
	if err != nil {
		return err
	}
	defer methods.Close()

	for _, ti := range s.Types {
		if _, err := types.ExecContext(ctx, ti.Token, ti.Name, ti.Extends, ti.Fields, len(ti.Methods)); err != nil {
			return err
		}
		for _, m := range ti.Methods {
			if _, err := methods.ExecContext(ctx, m.Token, ti.Token, m.Name, m.Signature,
				nullable(int64(m.RVA)), nullable(int64(m.CodeSize)), m.MaxStack, m.Clauses); err != nil {
				return err
			}
		}
	}

	strs, err := createAndPrepare(ctx, tx, "user_strings", []string{"offset", "value"})
	if err != nil {
		return err
	}
	defer strs.Close()
	for off, v := range img.UserStrings().All() {
		if _, err := strs.ExecContext(ctx, off, v); err != nil {
			return err
		}
	}
	return nil
}

func nullable(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
