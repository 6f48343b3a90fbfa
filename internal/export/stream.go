package export

import (
	"encoding/json"
	"io"

	"github.com/jackc/pgx/v5"

	"github.com/queryowl/queryowl/internal/models"
)

// RowSource feeds rows to the streaming writers one at a time; the full
// result set is never resident. The production source wraps a pgx cursor; the
// tests use a synthetic one.
type RowSource interface {
	Columns() []models.Column
	// Next advances to the next row, reporting false at the end.
	Next() bool
	// Values returns the current row.
	Values() ([]models.Value, error)
	// Err reports any error the cursor hit.
	Err() error
	Close()
}

// pgxRowSource adapts a live pgx cursor.
type pgxRowSource struct {
	rows pgx.Rows
	cols []models.Column
	buf  []models.Value
}

func newPgxRowSource(rows pgx.Rows, cols []models.Column) *pgxRowSource {
	return &pgxRowSource{
		rows: rows,
		cols: cols,
		buf:  make([]models.Value, len(cols)),
	}
}

func (s *pgxRowSource) Columns() []models.Column { return s.cols }

func (s *pgxRowSource) Next() bool { return s.rows.Next() }

func (s *pgxRowSource) Values() ([]models.Value, error) {
	raw, err := s.rows.Values()
	if err != nil {
		return nil, err
	}
	for i, v := range raw {
		s.buf[i] = models.FromOID(s.cols[i].TypeOID, v)
	}
	return s.buf, nil
}

func (s *pgxRowSource) Err() error { return s.rows.Err() }

func (s *pgxRowSource) Close() { s.rows.Close() }

// writeCSV drains src into w row by row. Returns the number of rows written.
func writeCSV(w io.Writer, src RowSource, opts models.ExportOptions) (int64, error) {
	cw := &csvWriter{w: w, quoteAll: opts.QuoteAllValues}

	if opts.IncludeHeaders {
		if err := cw.writeHeader(src.Columns()); err != nil {
			return 0, err
		}
	}

	var rows int64
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return rows, err
		}
		if err := cw.writeRecord(values); err != nil {
			return rows, err
		}
		rows++
	}
	return rows, src.Err()
}

// writeJSON drains src into w as an array of row objects, keys in column
// order, NULL as JSON null. Rows are serialized one at a time.
func writeJSON(w io.Writer, src RowSource) (int64, error) {
	if _, err := io.WriteString(w, "[\n"); err != nil {
		return 0, err
	}

	cols := src.Columns()
	var rows int64
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return rows, err
		}
		if rows > 0 {
			if _, err := io.WriteString(w, ",\n"); err != nil {
				return rows, err
			}
		}
		if err := writeJSONRow(w, cols, values); err != nil {
			return rows, err
		}
		rows++
	}
	if err := src.Err(); err != nil {
		return rows, err
	}

	if _, err := io.WriteString(w, "\n]\n"); err != nil {
		return rows, err
	}
	return rows, nil
}

// writeJSONRow assembles one object by hand to preserve column order, which
// map-based marshaling would sort away.
func writeJSONRow(w io.Writer, cols []models.Column, values []models.Value) error {
	if _, err := io.WriteString(w, "  {"); err != nil {
		return err
	}
	for i, col := range cols {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		key, err := json.Marshal(col.Name)
		if err != nil {
			return err
		}
		val, err := values[i].MarshalJSON()
		if err != nil {
			return err
		}
		if _, err := w.Write(append(append(key, ':'), val...)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "}")
	return err
}

// tableResultSource replays an in-memory TableResult, for view-scope exports.
type tableResultSource struct {
	table *models.TableResult
	buf   []models.Value
	idx   int
}

func newTableResultSource(table *models.TableResult) *tableResultSource {
	return &tableResultSource{
		table: table,
		buf:   make([]models.Value, len(table.Columns)),
		idx:   -1,
	}
}

func (s *tableResultSource) Columns() []models.Column { return s.table.Columns }

func (s *tableResultSource) Next() bool {
	s.idx++
	return s.idx < len(s.table.Rows)
}

func (s *tableResultSource) Values() ([]models.Value, error) {
	row := s.table.Rows[s.idx]
	for i, col := range s.table.Columns {
		s.buf[i] = row[col.Name]
	}
	return s.buf, nil
}

func (s *tableResultSource) Err() error { return nil }

func (s *tableResultSource) Close() {}
