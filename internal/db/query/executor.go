package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/queryowl/queryowl/internal/db/connection"
	"github.com/queryowl/queryowl/internal/models"
)

// typeMap resolves type OIDs to their names for column metadata. The built-in
// map covers every type the Value conversion understands; unknown OIDs keep
// their numeric form.
var typeMap = pgtype.NewMap()

// Executor runs SQL against a live session and normalizes the outcome into a
// QueryResult envelope. The row limit is enforced here, at consumption time,
// never by rewriting the user's SQL.
type Executor struct {
	// DefaultLimit applies when the caller passes no limit.
	DefaultLimit int
	// CountCeiling stops the counting drain on huge results; past it the
	// total is reported as an inexact lower bound.
	CountCeiling int64
	// Timeout bounds each execution.
	Timeout time.Duration
}

// NewExecutor returns an executor with the given bounds, substituting
// defaults for zero values.
func NewExecutor(defaultLimit int, countCeiling int64, timeout time.Duration) *Executor {
	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	if countCeiling <= 0 {
		countCeiling = 1_000_000
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{DefaultLimit: defaultLimit, CountCeiling: countCeiling, Timeout: timeout}
}

// Execute runs sql on the session and returns the result envelope. Single
// statements go over the extended protocol with typed values; bodies with
// multiple statements fall back to the simple protocol, and the envelope
// follows the last statement's wire result, which is how the server itself
// reports multi-statement bodies. Errors are *models.ValidationError or
// *models.QueryError; nothing panics across this boundary.
func (e *Executor) Execute(ctx context.Context, sess *connection.Session, sql string, limit int) (*models.QueryResult, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, &models.ValidationError{Field: "sql", Reason: "must not be empty"}
	}
	if limit <= 0 {
		limit = e.DefaultLimit
	}

	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	stmts := SplitStatements(sql)
	if len(stmts) > 1 {
		return e.executeMulti(ctx, sess, sql, stmts, limit)
	}
	return e.executeSingle(ctx, sess, sql, limit)
}

func (e *Executor) executeSingle(ctx context.Context, sess *connection.Session, sql string, limit int) (*models.QueryResult, error) {
	class := Classify(sql)
	start := time.Now()

	rows, err := sess.Pool().Query(ctx, sql)
	if err != nil {
		return nil, queryError(err, start)
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	if len(fds) == 0 {
		// No row description: the statement acknowledges instead of answering.
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, queryError(err, start)
		}
		return ackResult(rows.CommandTag(), class, start), nil
	}

	columns := describeColumns(fds)
	result := make([]models.Row, 0, min(limit, 512))
	var total int64
	exact := true

	for rows.Next() {
		total++
		if len(result) >= limit {
			// Keep draining to count, but materialize nothing further.
			if total >= e.CountCeiling {
				exact = false
				break
			}
			continue
		}
		values, err := rows.Values()
		if err != nil {
			return nil, queryError(err, start)
		}
		row := make(models.Row, len(values))
		for i, v := range values {
			row[fds[i].Name] = models.FromOID(fds[i].DataTypeOID, v)
		}
		result = append(result, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, queryError(err, start)
	}

	return &models.QueryResult{
		Table: &models.TableResult{
			Columns:      columns,
			Rows:         result,
			TotalRows:    total,
			ReturnedRows: len(result),
			LimitApplied: total > int64(len(result)) || !exact,
			ResultLimit:  limit,
			TotalExact:   exact,
		},
		ElapsedMS:     time.Since(start).Milliseconds(),
		SchemaChanged: class.InvalidatesSchema,
	}, nil
}

// multiResult is one statement's outcome on the simple-protocol path, with at
// most limit rows materialized.
type multiResult struct {
	fds   []pgconn.FieldDescription
	rows  []models.Row
	total int64
	exact bool
	tag   pgconn.CommandTag
}

// executeMulti sends the whole body over the simple protocol so the server
// runs every statement, then builds the envelope from the last result. Values
// arrive in text format and are decoded by type OID. Results are consumed
// result-by-result and row-by-row: each result materializes at most limit
// rows, the rest of its cursor is drained counting-only, same as the single
// path. Only the most recent result's capped rows are ever resident.
func (e *Executor) executeMulti(ctx context.Context, sess *connection.Session, sql string, stmts []string, limit int) (*models.QueryResult, error) {
	start := time.Now()

	conn, err := sess.Pool().Acquire(ctx)
	if err != nil {
		return nil, queryError(err, start)
	}
	defer conn.Release()

	mrr := conn.Conn().PgConn().Exec(ctx, sql)

	var last multiResult
	seen := false
	for mrr.NextResult() {
		res, err := e.readResult(mrr.ResultReader(), limit)
		if err != nil {
			_ = mrr.Close()
			return nil, queryError(err, start)
		}
		last = res
		seen = true
	}
	if err := mrr.Close(); err != nil {
		return nil, queryError(err, start)
	}
	if !seen {
		return nil, queryError(fmt.Errorf("server returned no results"), start)
	}

	schemaChanged := false
	for _, stmt := range stmts {
		if Classify(stmt).InvalidatesSchema {
			schemaChanged = true
			break
		}
	}

	lastClass := Classify(stmts[len(stmts)-1])

	if len(last.fds) == 0 {
		out := ackResult(last.tag, lastClass, start)
		out.SchemaChanged = schemaChanged
		return out, nil
	}

	rows := last.rows
	if rows == nil {
		rows = []models.Row{}
	}
	return &models.QueryResult{
		Table: &models.TableResult{
			Columns:      describeColumns(last.fds),
			Rows:         rows,
			TotalRows:    last.total,
			ReturnedRows: len(rows),
			LimitApplied: last.total > int64(len(rows)) || !last.exact,
			ResultLimit:  limit,
			TotalExact:   last.exact,
		},
		ElapsedMS:     time.Since(start).Milliseconds(),
		SchemaChanged: schemaChanged,
	}, nil
}

// readResult drains one result reader, keeping at most limit decoded rows and
// counting the remainder up to the ceiling. The raw wire values are only
// valid until the next row, so kept rows are decoded immediately.
func (e *Executor) readResult(rr *pgconn.ResultReader, limit int) (multiResult, error) {
	fds := rr.FieldDescriptions()
	res := multiResult{
		fds:   make([]pgconn.FieldDescription, len(fds)),
		exact: true,
	}
	copy(res.fds, fds)

	for rr.NextRow() {
		res.total++
		if len(res.rows) >= limit {
			if res.total >= e.CountCeiling {
				res.exact = false
				break
			}
			continue
		}
		raw := rr.Values()
		row := make(models.Row, len(raw))
		for i, cell := range raw {
			row[res.fds[i].Name] = models.DecodeText(res.fds[i].DataTypeOID, cell)
		}
		res.rows = append(res.rows, row)
	}

	tag, err := rr.Close()
	if err != nil {
		return multiResult{}, err
	}
	res.tag = tag
	return res, nil
}

func ackResult(tag pgconn.CommandTag, class Classification, start time.Time) *models.QueryResult {
	return &models.QueryResult{
		Ack: &models.AckResult{
			Status:       "success",
			QueryType:    class.QueryType,
			Message:      tag.String(),
			AffectedRows: tag.RowsAffected(),
		},
		ElapsedMS:     time.Since(start).Milliseconds(),
		SchemaChanged: class.InvalidatesSchema,
	}
}

func describeColumns(fds []pgconn.FieldDescription) []models.Column {
	columns := make([]models.Column, len(fds))
	for i, fd := range fds {
		name := fmt.Sprintf("oid:%d", fd.DataTypeOID)
		if t, ok := typeMap.TypeForOID(fd.DataTypeOID); ok {
			name = t.Name
		}
		columns[i] = models.Column{
			Name:     fd.Name,
			TypeOID:  fd.DataTypeOID,
			TypeName: name,
		}
	}
	return columns
}

// queryError wraps a failed execution, carrying the server's diagnostics
// verbatim. Elapsed time is reported on errors too.
func queryError(err error, start time.Time) *models.QueryError {
	elapsed := time.Since(start).Milliseconds()

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &models.QueryError{
			Severity:  pgErr.Severity,
			Code:      pgErr.Code,
			Message:   pgErr.Message,
			Detail:    pgErr.Detail,
			Hint:      pgErr.Hint,
			Position:  int(pgErr.Position),
			ElapsedMS: elapsed,
		}
	}
	return &models.QueryError{
		Message:   err.Error(),
		ElapsedMS: elapsed,
	}
}
