package metadata

import (
	"context"
	"fmt"
	"sync"

	"github.com/queryowl/queryowl/internal/db/connection"
	"github.com/queryowl/queryowl/internal/models"
)

// Introspector reads the system catalogs of the live session's database. It
// keeps no snapshot cache, since the caller decides when to re-introspect.
// Column detail, fetched table by table as the user expands the sidebar, is
// cached for the life of a session.
type Introspector struct {
	mu      sync.Mutex
	columns map[string][]models.ColumnDetail
}

// NewIntrospector returns an introspector with an empty column cache.
func NewIntrospector() *Introspector {
	return &Introspector{columns: make(map[string][]models.ColumnDetail)}
}

// InvalidateColumns drops the lazy column cache. Called after a schema change
// and when the live session is swapped.
func (in *Introspector) InvalidateColumns() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.columns = make(map[string][]models.ColumnDetail)
}

// TableColumns returns per-column detail for one table, serving repeats from
// the cache. An empty schemaName means public.
func (in *Introspector) TableColumns(ctx context.Context, sess *connection.Session, schemaName, tableName string) ([]models.ColumnDetail, error) {
	if schemaName == "" {
		schemaName = "public"
	}
	key := schemaName + "." + tableName

	in.mu.Lock()
	if cached, ok := in.columns[key]; ok {
		in.mu.Unlock()
		return cached, nil
	}
	in.mu.Unlock()

	cols, err := fetchTableColumns(ctx, sess, schemaName, tableName)
	if err != nil {
		return nil, err
	}

	in.mu.Lock()
	in.columns[key] = cols
	in.mu.Unlock()
	return cols, nil
}

func fetchTableColumns(ctx context.Context, sess *connection.Session, schemaName, tableName string) ([]models.ColumnDetail, error) {
	query := `
		SELECT
			a.attname AS name,
			pg_catalog.format_type(a.atttypid, a.atttypmod) AS data_type,
			NOT a.attnotnull AS is_nullable,
			COALESCE(pg_catalog.pg_get_expr(d.adbin, d.adrelid), '') AS default_value,
			a.attidentity IN ('a', 'd') AS is_identity,
			EXISTS (
				SELECT 1 FROM pg_catalog.pg_constraint c
				WHERE c.conrelid = a.attrelid AND c.contype = 'p' AND a.attnum = ANY (c.conkey)
			) AS is_primary_key,
			EXISTS (
				SELECT 1 FROM pg_catalog.pg_constraint c
				WHERE c.conrelid = a.attrelid AND c.contype = 'u' AND a.attnum = ANY (c.conkey)
			) AS is_unique,
			COALESCE(pg_catalog.col_description(a.attrelid, a.attnum), '') AS comment
		FROM pg_catalog.pg_attribute a
		JOIN pg_catalog.pg_class cl ON cl.oid = a.attrelid
		JOIN pg_catalog.pg_namespace ns ON ns.oid = cl.relnamespace
		LEFT JOIN pg_catalog.pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		WHERE ns.nspname = $1 AND cl.relname = $2
		  AND a.attnum > 0 AND NOT a.attisdropped
		ORDER BY a.attnum;
	`

	rows, err := sess.Pool().Query(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("fetching columns for %s.%s: %w", schemaName, tableName, err)
	}
	defer rows.Close()

	var cols []models.ColumnDetail
	for rows.Next() {
		var c models.ColumnDetail
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable, &c.DefaultValue,
			&c.IsIdentity, &c.IsPrimaryKey, &c.IsUnique, &c.Comment); err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading columns for %s.%s: %w", schemaName, tableName, err)
	}
	if cols == nil {
		return nil, &models.NotFoundError{Kind: "table", ID: schemaName + "." + tableName}
	}
	return cols, nil
}
