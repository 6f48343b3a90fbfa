package metadata

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/queryowl/queryowl/internal/db/connection"
	"github.com/queryowl/queryowl/internal/models"
)

// CreateStatement reconstructs a runnable CREATE TABLE for display and copy.
// Columns, types, NOT NULL, defaults, identity and table constraints are
// covered; partitioning and storage options are not reproduced. An empty
// schemaName means public.
func (in *Introspector) CreateStatement(ctx context.Context, sess *connection.Session, schemaName, tableName string) (string, error) {
	if schemaName == "" {
		schemaName = "public"
	}

	cols, err := in.TableColumns(ctx, sess, schemaName, tableName)
	if err != nil {
		return "", err
	}
	cons, err := tableConstraints(ctx, sess, schemaName, tableName)
	if err != nil {
		return "", err
	}
	return renderCreateTable(schemaName, tableName, cols, cons), nil
}

// tableConstraints returns one table's constraints in definition order:
// primary key, unique, foreign keys, checks.
func tableConstraints(ctx context.Context, sess *connection.Session, schemaName, tableName string) ([]models.Constraint, error) {
	query := `
		SELECT
			con.conname,
			con.contype::text,
			pg_catalog.pg_get_constraintdef(con.oid)
		FROM pg_catalog.pg_constraint con
		JOIN pg_catalog.pg_class cl ON con.conrelid = cl.oid
		JOIN pg_catalog.pg_namespace ns ON cl.relnamespace = ns.oid
		WHERE ns.nspname = $1 AND cl.relname = $2
		  AND con.contype IN ('p', 'u', 'f', 'c')
		ORDER BY
			CASE con.contype WHEN 'p' THEN 1 WHEN 'u' THEN 2 WHEN 'f' THEN 3 ELSE 4 END,
			con.conname;
	`

	rows, err := sess.Pool().Query(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("fetching constraints for %s.%s: %w", schemaName, tableName, err)
	}
	defer rows.Close()

	var cons []models.Constraint
	for rows.Next() {
		c := models.Constraint{Schema: schemaName, Table: tableName}
		if err := rows.Scan(&c.Name, &c.Type, &c.Definition); err != nil {
			return nil, fmt.Errorf("scanning constraint row: %w", err)
		}
		cons = append(cons, c)
	}
	return cons, rows.Err()
}

// renderCreateTable assembles the DDL text from already-fetched parts. A
// single-column primary key folds into its column line; everything else
// becomes a named table constraint.
func renderCreateTable(schemaName, tableName string, cols []models.ColumnDetail, cons []models.Constraint) string {
	var inlinePK string
	var tableCons []models.Constraint
	for _, c := range cons {
		if c.Type == "p" && singleColumnPK(c.Definition, cols) != "" {
			inlinePK = singleColumnPK(c.Definition, cols)
			continue
		}
		tableCons = append(tableCons, c)
	}

	var lines []string
	for _, col := range cols {
		var b strings.Builder
		b.WriteString("    ")
		b.WriteString(pgx.Identifier{col.Name}.Sanitize())
		b.WriteString(" ")
		b.WriteString(col.DataType)
		if col.IsIdentity {
			b.WriteString(" GENERATED BY DEFAULT AS IDENTITY")
		} else if col.DefaultValue != "" {
			b.WriteString(" DEFAULT ")
			b.WriteString(col.DefaultValue)
		}
		if !col.IsNullable {
			b.WriteString(" NOT NULL")
		}
		if col.Name == inlinePK {
			b.WriteString(" PRIMARY KEY")
		}
		lines = append(lines, b.String())
	}

	for _, c := range tableCons {
		lines = append(lines, fmt.Sprintf("    CONSTRAINT %s %s",
			pgx.Identifier{c.Name}.Sanitize(), c.Definition))
	}

	qualified := pgx.Identifier{schemaName, tableName}.Sanitize()
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n);", qualified, strings.Join(lines, ",\n"))
}

// singleColumnPK returns the column name when the primary-key definition
// covers exactly one existing column, else "".
func singleColumnPK(definition string, cols []models.ColumnDetail) string {
	open := strings.Index(definition, "(")
	close := strings.LastIndex(definition, ")")
	if open == -1 || close <= open {
		return ""
	}
	inner := definition[open+1 : close]
	if strings.Contains(inner, ",") {
		return ""
	}
	name := strings.Trim(strings.TrimSpace(inner), `"`)
	for _, c := range cols {
		if c.Name == name {
			return name
		}
	}
	return ""
}
