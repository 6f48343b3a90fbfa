package export

import (
	"io"
	"strings"

	"github.com/queryowl/queryowl/internal/models"
)

// nullToken is how NULL appears in exported CSV: a bare unquoted marker, so
// re-importing with NULL 'NULL' reproduces the original NULLs. A text value
// that happens to be the string NULL is quoted to stay distinguishable.
const nullToken = "NULL"

// csvWriter writes records with the exporter's quoting rules. encoding/csv
// cannot express them (no per-field quote control, and the NULL marker must
// stay unquoted even under force-quoting), so the escaping is done here,
// mirroring COPY's csv FORCE_QUOTE * output byte for byte.
type csvWriter struct {
	w        io.Writer
	quoteAll bool
}

func (cw *csvWriter) writeHeader(cols []models.Column) error {
	fields := make([]string, len(cols))
	for i, c := range cols {
		fields[i] = cw.escape(c.Name, cw.quoteAll)
	}
	return cw.writeLine(fields)
}

func (cw *csvWriter) writeRecord(values []models.Value) error {
	fields := make([]string, len(values))
	for i, v := range values {
		if v.IsNull() {
			fields[i] = nullToken
			continue
		}
		fields[i] = cw.escape(v.Text(), cw.quoteAll)
	}
	return cw.writeLine(fields)
}

func (cw *csvWriter) writeLine(fields []string) error {
	_, err := io.WriteString(cw.w, strings.Join(fields, ",")+"\n")
	return err
}

// escape quotes a field when forced or when it contains a comma, quote or
// newline, doubling embedded quotes. A bare field equal to the NULL marker is
// always quoted so it cannot be mistaken for NULL.
func (cw *csvWriter) escape(s string, force bool) string {
	if !force && s != nullToken && !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
