package models

import (
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgtype"
)

// Kind discriminates the variants a cell value can take. There is no
// catch-all: every database value is mapped onto exactly one of these.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindText
	KindJSON
	KindTime
)

// Value is a single result cell. NULL is a first-class variant, never a
// sentinel string, so renderers can distinguish NULL from the text 'NULL'.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	t    time.Time
}

func NullValue() Value            { return Value{kind: KindNull} }
func BoolValue(b bool) Value      { return Value{kind: KindBool, b: b} }
func IntValue(i int64) Value      { return Value{kind: KindInt, i: i} }
func FloatValue(f float64) Value  { return Value{kind: KindFloat, f: f} }
func TextValue(s string) Value    { return Value{kind: KindText, s: s} }
func TimeValue(t time.Time) Value { return Value{kind: KindTime, t: t} }

// JSONValue wraps an already-serialized JSON document.
func JSONValue(raw string) Value { return Value{kind: KindJSON, s: raw} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Text renders the value in PostgreSQL's text conventions (booleans as t/f,
// NaN/Infinity spelled out) so exported files read the same whether they were
// produced in-process or by server-side COPY. NULL renders empty; callers that
// need the NULL marker check IsNull first.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		if v.b {
			return "t"
		}
		return "f"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		switch {
		case math.IsNaN(v.f):
			return "NaN"
		case math.IsInf(v.f, 1):
			return "Infinity"
		case math.IsInf(v.f, -1):
			return "-Infinity"
		}
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText, KindJSON:
		return v.s
	case KindTime:
		return v.t.Format("2006-01-02 15:04:05.999999-07:00")
	}
	return ""
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			// JSON has no representation for these; fall back to the text form.
			return json.Marshal(v.Text())
		}
		return json.Marshal(v.f)
	case KindText:
		return json.Marshal(v.s)
	case KindJSON:
		return []byte(v.s), nil
	case KindTime:
		return json.Marshal(v.t.Format(time.RFC3339Nano))
	}
	return []byte("null"), nil
}

// UnmarshalJSON rebuilds a Value from its wire form. The bridge needs this
// for view-scope exports, where the shell sends the in-memory rows back.
// Numbers with no fraction or exponent come back as Int, everything else
// numeric as Float; objects and arrays stay raw JSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*v = NullValue()
		return nil
	}

	switch trimmed[0] {
	case '{', '[':
		*v = JSONValue(trimmed)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = TextValue(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
		return nil
	}

	if !strings.ContainsAny(trimmed, ".eE") {
		if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			*v = IntValue(i)
			return nil
		}
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return fmt.Errorf("unsupported JSON value %q", trimmed)
	}
	*v = FloatValue(f)
	return nil
}

// FromOID converts a value produced by the driver's typed scan path (pgx
// rows.Values) into a Value, using the column's type OID to keep distinctions
// the Go type alone cannot carry (date vs timestamp, bytea vs text).
func FromOID(oid uint32, src any) Value {
	switch v := src.(type) {
	case nil:
		return NullValue()
	case bool:
		return BoolValue(v)
	case int16:
		return IntValue(int64(v))
	case int32:
		return IntValue(int64(v))
	case int64:
		return IntValue(v)
	case uint32:
		return IntValue(int64(v))
	case float32:
		return FloatValue(float64(v))
	case float64:
		return FloatValue(v)
	case string:
		return TextValue(v)
	case time.Time:
		if oid == pgtype.DateOID {
			return TextValue(v.Format("2006-01-02"))
		}
		return TimeValue(v)
	case []byte:
		if oid == pgtype.ByteaOID || !utf8.Valid(v) {
			return TextValue(`\x` + hex.EncodeToString(v))
		}
		return TextValue(string(v))
	case [16]byte:
		return TextValue(formatUUID(v))
	case map[string]any, []any:
		raw, err := json.Marshal(v)
		if err != nil {
			return TextValue(fmt.Sprintf("%v", v))
		}
		return JSONValue(string(raw))
	case pgtype.Time:
		return TextValue(formatMicroseconds(v.Microseconds))
	}

	if valuer, ok := src.(driver.Valuer); ok {
		// driver.Value is confined to the base types the switch above handles,
		// so this recurses at most once.
		if dv, err := valuer.Value(); err == nil {
			out := FromOID(oid, dv)
			// Numeric comes back as its text form; keep it numeric when it
			// fits a float64 without surprises.
			if oid == pgtype.NumericOID && out.kind == KindText {
				if f, err := strconv.ParseFloat(out.s, 64); err == nil && !math.IsInf(f, 0) {
					return FloatValue(f)
				}
			}
			return out
		}
	}

	return TextValue(fmt.Sprintf("%v", src))
}

// DecodeText converts a raw text-format wire value (simple query protocol)
// into a Value using the column's type OID. Unparseable values degrade to
// text rather than failing the whole result.
func DecodeText(oid uint32, raw []byte) Value {
	if raw == nil {
		return NullValue()
	}
	s := string(raw)
	switch oid {
	case pgtype.BoolOID:
		return BoolValue(s == "t" || s == "true")
	case pgtype.Int2OID, pgtype.Int4OID, pgtype.Int8OID:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return IntValue(i)
		}
	case pgtype.Float4OID, pgtype.Float8OID, pgtype.NumericOID:
		switch s {
		case "NaN":
			return FloatValue(math.NaN())
		case "Infinity":
			return FloatValue(math.Inf(1))
		case "-Infinity":
			return FloatValue(math.Inf(-1))
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return FloatValue(f)
		}
	case pgtype.JSONOID, pgtype.JSONBOID:
		return JSONValue(s)
	case pgtype.TimestampOID:
		if t, err := time.Parse("2006-01-02 15:04:05.999999999", s); err == nil {
			return TimeValue(t)
		}
	case pgtype.TimestamptzOID:
		for _, layout := range []string{
			"2006-01-02 15:04:05.999999999-07:00",
			"2006-01-02 15:04:05.999999999-07",
		} {
			if t, err := time.Parse(layout, s); err == nil {
				return TimeValue(t)
			}
		}
	}
	return TextValue(s)
}

func formatUUID(b [16]byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

func formatMicroseconds(us int64) string {
	t := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(us) * time.Microsecond)
	return t.Format("15:04:05.999999")
}
