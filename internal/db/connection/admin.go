package connection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/queryowl/queryowl/internal/models"
)

// Server-level operations run against the maintenance database over a
// short-lived connection; they work without (and never disturb) the live
// session.

const maintenanceDB = "postgres"

// DatabaseInfo describes one database on a server.
type DatabaseInfo struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
	Size  string `json:"size"`
}

// CreateDatabaseSpec carries the optional clauses of CREATE DATABASE.
type CreateDatabaseSpec struct {
	Name     string `json:"name"`
	Encoding string `json:"encoding,omitempty"`
	Template string `json:"template,omitempty"`
	Owner    string `json:"owner,omitempty"`
}

func adminConnect(ctx context.Context, params models.ServerParams) (*pgx.Conn, error) {
	conn := models.Connection{
		Host:     params.Host,
		Port:     params.Port,
		Database: maintenanceDB,
		Username: params.Username,
		SSLMode:  params.SSLMode,
	}
	c, err := pgx.Connect(ctx, buildConnString(conn, params.Secret))
	if err != nil {
		return nil, classifyDialError(err, params.Host, params.Port)
	}
	return c, nil
}

// ListDatabases returns the server's non-template databases with owner and
// pretty-printed size.
func ListDatabases(ctx context.Context, params models.ServerParams) ([]DatabaseInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	c, err := adminConnect(ctx, params)
	if err != nil {
		return nil, err
	}
	defer c.Close(context.Background())

	query := `
		SELECT
			datname AS name,
			pg_catalog.pg_get_userbyid(datdba) AS owner,
			pg_catalog.pg_size_pretty(pg_catalog.pg_database_size(datname)) AS size
		FROM pg_catalog.pg_database
		WHERE datistemplate = false
		ORDER BY datname;
	`

	rows, err := c.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing databases: %w", err)
	}
	defer rows.Close()

	var databases []DatabaseInfo
	for rows.Next() {
		var db DatabaseInfo
		if err := rows.Scan(&db.Name, &db.Owner, &db.Size); err != nil {
			return nil, fmt.Errorf("scanning database row: %w", err)
		}
		databases = append(databases, db)
	}
	return databases, rows.Err()
}

// CreateDatabase issues CREATE DATABASE with sanitized identifiers. CREATE
// DATABASE cannot take bind parameters, so everything is quoted explicitly.
func CreateDatabase(ctx context.Context, params models.ServerParams, spec CreateDatabaseSpec) error {
	if strings.TrimSpace(spec.Name) == "" {
		return &models.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	c, err := adminConnect(ctx, params)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	var sb strings.Builder
	sb.WriteString("CREATE DATABASE ")
	sb.WriteString(pgx.Identifier{spec.Name}.Sanitize())
	if spec.Owner != "" {
		sb.WriteString(" OWNER ")
		sb.WriteString(pgx.Identifier{spec.Owner}.Sanitize())
	}
	if spec.Template != "" {
		sb.WriteString(" TEMPLATE ")
		sb.WriteString(pgx.Identifier{spec.Template}.Sanitize())
	}
	if spec.Encoding != "" {
		sb.WriteString(" ENCODING ")
		sb.WriteString(quoteLiteral(spec.Encoding))
	}

	if _, err := c.Exec(ctx, sb.String()); err != nil {
		return fmt.Errorf("creating database %q: %w", spec.Name, err)
	}
	return nil
}

// quoteLiteral single-quotes a string literal, doubling embedded quotes.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
