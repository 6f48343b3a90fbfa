package export

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/queryowl/queryowl/internal/db/connection"
	"github.com/queryowl/queryowl/internal/logger"
	"github.com/queryowl/queryowl/internal/models"
)

// Exporter writes query results to files. Three strategies, picked per job:
// the in-memory view rows, a server-side COPY for large CSV exports, or a
// row-by-row stream for everything else. Memory stays bounded on the two
// full-result paths no matter how many rows the query produces.
type Exporter struct {
	// LargeThreshold is the estimated row count at which full-result CSV
	// exports switch to native COPY when the job allows it.
	LargeThreshold int64
	// Timeout bounds one export run.
	Timeout time.Duration
}

// NewExporter returns an exporter with the given bounds, substituting
// defaults for zero values.
func NewExporter(largeThreshold int64, timeout time.Duration) *Exporter {
	if largeThreshold <= 0 {
		largeThreshold = 100_000
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Exporter{LargeThreshold: largeThreshold, Timeout: timeout}
}

// Export runs one job. On failure the partial output file is left in place
// and the returned *models.ExportError reports how much of it was written;
// the caller warns the user the file is incomplete.
func (e *Exporter) Export(ctx context.Context, sess *connection.Session, job models.ExportJob) (*models.ExportSummary, error) {
	if err := validateJob(job); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	start := time.Now()

	switch {
	case job.Scope == models.ScopeView:
		return e.run(job, start, models.StrategyMemory, func(cw *countingWriter) (int64, error) {
			return e.writeView(cw, job)
		})

	case e.useNativeCopy(ctx, sess, job):
		return e.run(job, start, models.StrategyCopy, func(cw *countingWriter) (int64, error) {
			return copyOut(ctx, sess, job.SQL, cw, job.Options)
		})

	default:
		return e.run(job, start, models.StrategyStream, func(cw *countingWriter) (int64, error) {
			return e.writeStream(ctx, sess, cw, job)
		})
	}
}

// useNativeCopy decides whether a full-result job takes the COPY path: csv
// only, opted in, and either estimated large or too opaque to estimate.
func (e *Exporter) useNativeCopy(ctx context.Context, sess *connection.Session, job models.ExportJob) bool {
	if job.Scope != models.ScopeAll || job.Format != models.FormatCSV || !job.Options.UseNativeCopy {
		return false
	}
	estimate, ok := estimateRows(ctx, sess, job.SQL)
	if !ok {
		return true
	}
	return estimate >= e.LargeThreshold
}

// run owns the output file lifecycle around one strategy. The file is never
// deleted on failure; the error says how far the write got.
func (e *Exporter) run(job models.ExportJob, start time.Time, strategy models.ExportStrategy, write func(*countingWriter) (int64, error)) (*models.ExportSummary, error) {
	file, err := os.Create(job.OutputPath)
	if err != nil {
		return nil, &models.ExportError{Path: job.OutputPath, Err: err}
	}

	cw := &countingWriter{w: file}
	rows, err := write(cw)
	if err != nil {
		_ = file.Close()
		return nil, &models.ExportError{Path: job.OutputPath, Rows: rows, Bytes: cw.n, Err: err}
	}
	if err := file.Close(); err != nil {
		return nil, &models.ExportError{Path: job.OutputPath, Rows: rows, Bytes: cw.n, Err: err}
	}

	summary := &models.ExportSummary{
		Path:      job.OutputPath,
		Format:    job.Format,
		Strategy:  strategy,
		Rows:      rows,
		Bytes:     cw.n,
		ElapsedMS: time.Since(start).Milliseconds(),
	}
	logger.Info("export complete",
		"path", summary.Path,
		"strategy", string(strategy),
		"rows", summary.Rows,
		"bytes", summary.Bytes)
	return summary, nil
}

// writeView formats the caller's already-capped in-memory rows.
func (e *Exporter) writeView(cw *countingWriter, job models.ExportJob) (int64, error) {
	src := newTableResultSource(job.View)
	defer src.Close()

	bw := bufio.NewWriterSize(cw, 64*1024)
	rows, err := e.writeFormat(bw, src, job)
	if err != nil {
		_ = bw.Flush()
		return rows, err
	}
	return rows, bw.Flush()
}

// writeStream re-executes the query without a row cap and streams the cursor
// to the file. Only one row is decoded at a time.
func (e *Exporter) writeStream(ctx context.Context, sess *connection.Session, cw *countingWriter, job models.ExportJob) (int64, error) {
	rows, err := sess.Pool().Query(ctx, job.SQL)
	if err != nil {
		return 0, err
	}

	fds := rows.FieldDescriptions()
	cols := make([]models.Column, len(fds))
	for i, fd := range fds {
		cols[i] = models.Column{Name: fd.Name, TypeOID: fd.DataTypeOID}
	}

	src := newPgxRowSource(rows, cols)
	defer src.Close()

	bw := bufio.NewWriterSize(cw, 64*1024)
	n, err := e.writeFormat(bw, src, job)
	if err != nil {
		_ = bw.Flush()
		return n, err
	}
	return n, bw.Flush()
}

func (e *Exporter) writeFormat(w *bufio.Writer, src RowSource, job models.ExportJob) (int64, error) {
	if job.Format == models.FormatJSON {
		return writeJSON(w, src)
	}
	return writeCSV(w, src, job.Options)
}

func validateJob(job models.ExportJob) error {
	if strings.TrimSpace(job.OutputPath) == "" {
		return &models.ValidationError{Field: "outputPath", Reason: "must not be empty"}
	}
	if job.Format != models.FormatCSV && job.Format != models.FormatJSON {
		return &models.ValidationError{Field: "format", Reason: fmt.Sprintf("unsupported format %q", job.Format)}
	}
	switch job.Scope {
	case models.ScopeView:
		if job.View == nil {
			return &models.ValidationError{Field: "view", Reason: "view-scope export needs the in-memory result"}
		}
	case models.ScopeAll:
		if strings.TrimSpace(job.SQL) == "" {
			return &models.ValidationError{Field: "sql", Reason: "must not be empty"}
		}
	default:
		return &models.ValidationError{Field: "scope", Reason: fmt.Sprintf("unsupported scope %q", job.Scope)}
	}
	return nil
}
