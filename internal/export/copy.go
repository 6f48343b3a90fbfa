package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/queryowl/queryowl/internal/db/connection"
	"github.com/queryowl/queryowl/internal/logger"
	"github.com/queryowl/queryowl/internal/models"
)

// countingWriter tracks bytes flowing to the output file so a failed export
// can report how far it got.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// copyOut streams the query server-side through COPY TO STDOUT straight into
// w, never materializing rows in the application. The server applies the same
// NULL marker and quoting rules as the in-process CSV writer, so both paths
// produce identical bytes. Headers are written by the exporter beforehand;
// COPY of an arbitrary query cannot emit them itself when the caller wants
// exporter-controlled quoting.
func copyOut(ctx context.Context, sess *connection.Session, sql string, w io.Writer, opts models.ExportOptions) (int64, error) {
	inner := strings.TrimRight(strings.TrimSpace(sql), ";")

	if opts.IncludeHeaders {
		cols, err := probeColumns(ctx, sess, inner)
		if err != nil {
			return 0, err
		}
		cw := &csvWriter{w: w, quoteAll: opts.QuoteAllValues}
		if err := cw.writeHeader(cols); err != nil {
			return 0, err
		}
	}

	var b strings.Builder
	b.WriteString("COPY (")
	b.WriteString(inner)
	b.WriteString(") TO STDOUT WITH (FORMAT csv, NULL '")
	b.WriteString(nullToken)
	b.WriteString("'")
	if opts.QuoteAllValues {
		b.WriteString(", FORCE_QUOTE *")
	}
	b.WriteString(")")

	conn, err := sess.Pool().Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	tag, err := conn.Conn().PgConn().CopyTo(ctx, w, b.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// probeColumns fetches the query's column list without fetching data, for
// the header row the exporter writes ahead of COPY.
func probeColumns(ctx context.Context, sess *connection.Session, sql string) ([]models.Column, error) {
	rows, err := sess.Pool().Query(ctx, fmt.Sprintf("SELECT * FROM (%s) AS _probe LIMIT 0", sql))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	cols := make([]models.Column, len(fds))
	for i, fd := range fds {
		cols[i] = models.Column{Name: fd.Name, TypeOID: fd.DataTypeOID}
	}
	for rows.Next() {
	}
	return cols, rows.Err()
}

// estimateRows asks the planner how many rows the query will produce. A
// failed or unparsable estimate reports ok=false and the caller assumes the
// result is large.
func estimateRows(ctx context.Context, sess *connection.Session, sql string) (int64, bool) {
	inner := strings.TrimRight(strings.TrimSpace(sql), ";")

	var raw []byte
	if err := sess.Pool().QueryRow(ctx, "EXPLAIN (FORMAT JSON) "+inner).Scan(&raw); err != nil {
		logger.Debug("row estimate unavailable", "error", err)
		return 0, false
	}

	var plans []struct {
		Plan struct {
			PlanRows float64 `json:"Plan Rows"`
		} `json:"Plan"`
	}
	if err := json.Unmarshal(raw, &plans); err != nil || len(plans) == 0 {
		return 0, false
	}
	return int64(plans[0].Plan.PlanRows), true
}
