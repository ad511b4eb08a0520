package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/querylift/internal/model"
)

// CreateTables creates one table per plain shape and one per subtype of
// every hierarchy. Tables that already exist are left alone.
func (s *Store) CreateTables(ctx context.Context, m *model.Model) error {
	for _, shape := range m.Shapes() {
		for _, stmt := range tableDDL(shape) {
			if err := s.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("create tables for %s: %w", shape.Name, err)
			}
		}
	}
	return nil
}

func tableDDL(shape *model.EntityShape) []string {
	if !shape.IsHierarchy() {
		return []string{createTable(shape.Table, shape, shape.Properties)}
	}
	var out []string
	for _, st := range shape.Subtypes {
		var props []model.Property
		for _, p := range shape.Properties {
			if st.Has(p.Name) {
				props = append(props, p)
			}
		}
		out = append(out, createTable(st.Table, shape, props))
	}
	return out
}

func createTable(table string, shape *model.EntityShape, props []model.Property) string {
	var cols []string
	for _, p := range props {
		col := quote(p.Column) + " " + columnType(p.Type)
		if !p.Nullable {
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}
	var keys []string
	for _, k := range shape.KeyProperties() {
		keys = append(keys, quote(k.Column))
	}
	cols = append(cols, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(table), strings.Join(cols, ", "))
}

// columnType picks the SQLite type whose affinity matches the semantic
// type's comparisons.
func columnType(t model.Type) string {
	switch t.Kind {
	case model.KindBool, model.KindInt, model.KindEnum:
		return "INTEGER"
	case model.KindFloat:
		return "REAL"
	case model.KindDecimal:
		return "NUMERIC"
	case model.KindBytes:
		return "BLOB"
	}
	return "TEXT"
}

func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
