package metadata

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/queryowl/queryowl/internal/db/connection"
	"github.com/queryowl/queryowl/internal/logger"
	"github.com/queryowl/queryowl/internal/models"
)

// Snapshot assembles the full schema picture in one pass, one catalog query
// per category, run concurrently over the session pool. A category that fails
// (missing view on an old server, revoked privilege) logs a warning, comes
// back empty and is named in Partial; the snapshot itself always succeeds.
func (in *Introspector) Snapshot(ctx context.Context, sess *connection.Session) (*models.SchemaSnapshot, error) {
	snap := &models.SchemaSnapshot{
		Schemas:           []models.SchemaInfo{},
		Tables:            []models.TableInfo{},
		Views:             []models.ViewInfo{},
		MaterializedViews: []models.MaterializedViewInfo{},
		Indexes:           []models.IndexInfo{},
		Functions:         []models.FunctionInfo{},
		Triggers:          []models.TriggerInfo{},
		Sequences:         []models.SequenceInfo{},
		ForeignKeys:       []models.ForeignKeyInfo{},
		Constraints:       []models.Constraint{},
		Enums:             []models.EnumInfo{},
	}

	var mu sync.Mutex
	fail := func(category string, err error) {
		logger.Warn("schema category unavailable", "category", category, "error", err)
		mu.Lock()
		snap.Partial = append(snap.Partial, category)
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		list, err := listSchemas(ctx, sess)
		if err != nil {
			fail("schemas", err)
			return nil
		}
		snap.Schemas = list
		return nil
	})
	g.Go(func() error {
		list, err := listTables(ctx, sess)
		if err != nil {
			fail("tables", err)
			return nil
		}
		snap.Tables = list
		return nil
	})
	g.Go(func() error {
		list, err := listViews(ctx, sess)
		if err != nil {
			fail("views", err)
			return nil
		}
		snap.Views = list
		return nil
	})
	g.Go(func() error {
		list, err := listMaterializedViews(ctx, sess)
		if err != nil {
			fail("materializedViews", err)
			return nil
		}
		snap.MaterializedViews = list
		return nil
	})
	g.Go(func() error {
		list, err := listIndexes(ctx, sess)
		if err != nil {
			fail("indexes", err)
			return nil
		}
		snap.Indexes = list
		return nil
	})
	g.Go(func() error {
		list, err := listFunctions(ctx, sess)
		if err != nil {
			fail("functions", err)
			return nil
		}
		snap.Functions = list
		return nil
	})
	g.Go(func() error {
		list, err := listTriggers(ctx, sess)
		if err != nil {
			fail("triggers", err)
			return nil
		}
		snap.Triggers = list
		return nil
	})
	g.Go(func() error {
		list, err := listSequences(ctx, sess)
		if err != nil {
			fail("sequences", err)
			return nil
		}
		snap.Sequences = list
		return nil
	})
	g.Go(func() error {
		cons, fks, err := listConstraints(ctx, sess)
		if err != nil {
			fail("constraints", err)
			fail("foreignKeys", err)
			return nil
		}
		snap.Constraints = cons
		snap.ForeignKeys = fks
		return nil
	})
	g.Go(func() error {
		list, err := listEnums(ctx, sess)
		if err != nil {
			fail("enums", err)
			return nil
		}
		snap.Enums = list
		return nil
	})

	// Workers only ever return nil; failures degrade to Partial.
	_ = g.Wait()

	sort.Strings(snap.Partial)
	return snap, nil
}

func listSchemas(ctx context.Context, sess *connection.Session) ([]models.SchemaInfo, error) {
	query := `
		SELECT n.nspname, pg_catalog.pg_get_userbyid(n.nspowner)
		FROM pg_catalog.pg_namespace n
		WHERE n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		  AND n.nspname NOT LIKE 'pg\_temp\_%' AND n.nspname NOT LIKE 'pg\_toast\_temp\_%'
		ORDER BY n.nspname;
	`

	rows, err := sess.Pool().Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.SchemaInfo{}
	for rows.Next() {
		var s models.SchemaInfo
		if err := rows.Scan(&s.Name, &s.Owner); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func listTables(ctx context.Context, sess *connection.Session) ([]models.TableInfo, error) {
	query := `
		SELECT
			n.nspname,
			c.relname,
			c.reltuples::bigint,
			pg_catalog.pg_size_pretty(pg_catalog.pg_total_relation_size(c.oid))
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'p')
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		  AND n.nspname NOT LIKE 'pg\_temp\_%' AND n.nspname NOT LIKE 'pg\_toast\_temp\_%'
		ORDER BY n.nspname, c.relname;
	`

	rows, err := sess.Pool().Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.TableInfo{}
	for rows.Next() {
		var t models.TableInfo
		if err := rows.Scan(&t.Schema, &t.Name, &t.EstimatedRows, &t.Size); err != nil {
			return nil, err
		}
		// reltuples is -1 before the first analyze.
		if t.EstimatedRows < 0 {
			t.EstimatedRows = 0
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func listViews(ctx context.Context, sess *connection.Session) ([]models.ViewInfo, error) {
	query := `
		SELECT schemaname, viewname
		FROM pg_catalog.pg_views
		WHERE schemaname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY schemaname, viewname;
	`

	rows, err := sess.Pool().Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.ViewInfo{}
	for rows.Next() {
		var v models.ViewInfo
		if err := rows.Scan(&v.Schema, &v.Name); err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

func listMaterializedViews(ctx context.Context, sess *connection.Session) ([]models.MaterializedViewInfo, error) {
	query := `
		SELECT m.schemaname, m.matviewname, m.ispopulated
		FROM pg_catalog.pg_matviews m
		WHERE m.schemaname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY m.schemaname, m.matviewname;
	`

	rows, err := sess.Pool().Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.MaterializedViewInfo{}
	for rows.Next() {
		var v models.MaterializedViewInfo
		if err := rows.Scan(&v.Schema, &v.Name, &v.Populated); err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

func listIndexes(ctx context.Context, sess *connection.Session) ([]models.IndexInfo, error) {
	query := `
		SELECT schemaname, tablename, indexname, indexdef
		FROM pg_catalog.pg_indexes
		WHERE schemaname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY schemaname, tablename, indexname;
	`

	rows, err := sess.Pool().Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.IndexInfo{}
	for rows.Next() {
		var idx models.IndexInfo
		if err := rows.Scan(&idx.Schema, &idx.Table, &idx.Name, &idx.Definition); err != nil {
			return nil, err
		}
		list = append(list, idx)
	}
	return list, rows.Err()
}

func listFunctions(ctx context.Context, sess *connection.Session) ([]models.FunctionInfo, error) {
	// prokind exists from PG11 on; trigger functions are reported with their
	// own kind so the sidebar can group them.
	query := `
		SELECT
			n.nspname,
			p.proname,
			pg_catalog.pg_get_function_identity_arguments(p.oid),
			COALESCE(pg_catalog.pg_get_function_result(p.oid), ''),
			CASE
				WHEN p.prokind = 'p' THEN 'procedure'
				WHEN p.prorettype = 'trigger'::pg_catalog.regtype THEN 'trigger'
				ELSE 'function'
			END
		FROM pg_catalog.pg_proc p
		JOIN pg_catalog.pg_namespace n ON n.oid = p.pronamespace
		WHERE p.prokind IN ('f', 'p')
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY n.nspname, p.proname;
	`

	rows, err := sess.Pool().Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.FunctionInfo{}
	for rows.Next() {
		var f models.FunctionInfo
		if err := rows.Scan(&f.Schema, &f.Name, &f.Arguments, &f.ReturnType, &f.Kind); err != nil {
			return nil, err
		}
		list = append(list, f)
	}
	return list, rows.Err()
}

func listTriggers(ctx context.Context, sess *connection.Session) ([]models.TriggerInfo, error) {
	query := `
		SELECT n.nspname, c.relname, t.tgname, pg_catalog.pg_get_triggerdef(t.oid)
		FROM pg_catalog.pg_trigger t
		JOIN pg_catalog.pg_class c ON t.tgrelid = c.oid
		JOIN pg_catalog.pg_namespace n ON c.relnamespace = n.oid
		WHERE NOT t.tgisinternal
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY n.nspname, c.relname, t.tgname;
	`

	rows, err := sess.Pool().Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.TriggerInfo{}
	for rows.Next() {
		var tr models.TriggerInfo
		if err := rows.Scan(&tr.Schema, &tr.Table, &tr.Name, &tr.Definition); err != nil {
			return nil, err
		}
		list = append(list, tr)
	}
	return list, rows.Err()
}

func listSequences(ctx context.Context, sess *connection.Session) ([]models.SequenceInfo, error) {
	query := `
		SELECT schemaname, sequencename,
		       COALESCE(start_value, 0), COALESCE(min_value, 0),
		       COALESCE(max_value, 0), COALESCE(increment_by, 0), cycle
		FROM pg_catalog.pg_sequences
		WHERE schemaname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY schemaname, sequencename;
	`

	rows, err := sess.Pool().Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.SequenceInfo{}
	for rows.Next() {
		var s models.SequenceInfo
		if err := rows.Scan(&s.Schema, &s.Name, &s.StartValue, &s.MinValue,
			&s.MaxValue, &s.Increment, &s.Cycle); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// listConstraints reads every table constraint once; foreign keys are split
// into their own richer list while staying in the constraints category too.
func listConstraints(ctx context.Context, sess *connection.Session) ([]models.Constraint, []models.ForeignKeyInfo, error) {
	query := `
		SELECT
			ns.nspname,
			cl.relname,
			con.conname,
			con.contype::text,
			pg_catalog.pg_get_constraintdef(con.oid),
			ARRAY(
				SELECT att.attname
				FROM unnest(con.conkey) WITH ORDINALITY AS u(attnum, attposition)
				JOIN pg_catalog.pg_attribute att ON att.attrelid = con.conrelid
					AND att.attnum = u.attnum
				ORDER BY u.attposition
			),
			COALESCE(nf.nspname, ''),
			COALESCE(clf.relname, ''),
			ARRAY(
				SELECT att.attname
				FROM unnest(con.confkey) WITH ORDINALITY AS u(attnum, attposition)
				JOIN pg_catalog.pg_attribute att ON att.attrelid = con.confrelid
					AND att.attnum = u.attnum
				ORDER BY u.attposition
			)
		FROM pg_catalog.pg_constraint con
		JOIN pg_catalog.pg_class cl ON con.conrelid = cl.oid
		JOIN pg_catalog.pg_namespace ns ON cl.relnamespace = ns.oid
		LEFT JOIN pg_catalog.pg_class clf ON con.confrelid = clf.oid
		LEFT JOIN pg_catalog.pg_namespace nf ON clf.relnamespace = nf.oid
		WHERE con.contype IN ('p', 'u', 'f', 'c')
		  AND ns.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY ns.nspname, cl.relname,
			CASE con.contype WHEN 'p' THEN 1 WHEN 'u' THEN 2 WHEN 'f' THEN 3 ELSE 4 END,
			con.conname;
	`

	rows, err := sess.Pool().Query(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cons := []models.Constraint{}
	fks := []models.ForeignKeyInfo{}
	for rows.Next() {
		var c models.Constraint
		var foreignSchema, foreignTable string
		var foreignCols []string
		if err := rows.Scan(&c.Schema, &c.Table, &c.Name, &c.Type, &c.Definition,
			&c.Columns, &foreignSchema, &foreignTable, &foreignCols); err != nil {
			return nil, nil, err
		}
		if c.Type == "f" {
			c.ForeignTable = foreignSchema + "." + foreignTable
			c.ForeignCols = foreignCols
			fks = append(fks, models.ForeignKeyInfo{
				Schema:         c.Schema,
				Table:          c.Table,
				Name:           c.Name,
				Columns:        c.Columns,
				ForeignSchema:  foreignSchema,
				ForeignTable:   foreignTable,
				ForeignColumns: foreignCols,
				Definition:     c.Definition,
			})
		}
		cons = append(cons, c)
	}
	return cons, fks, rows.Err()
}

func listEnums(ctx context.Context, sess *connection.Session) ([]models.EnumInfo, error) {
	query := `
		SELECT n.nspname, t.typname,
		       array_agg(e.enumlabel ORDER BY e.enumsortorder)
		FROM pg_catalog.pg_type t
		JOIN pg_catalog.pg_namespace n ON t.typnamespace = n.oid
		JOIN pg_catalog.pg_enum e ON t.oid = e.enumtypid
		WHERE t.typtype = 'e'
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		GROUP BY n.nspname, t.typname
		ORDER BY n.nspname, t.typname;
	`

	rows, err := sess.Pool().Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.EnumInfo{}
	for rows.Next() {
		var e models.EnumInfo
		if err := rows.Scan(&e.Schema, &e.Name, &e.Labels); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
