package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestFromOID(t *testing.T) {
	ts := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		oid  uint32
		src  any
		kind Kind
		text string
	}{
		{"nil", pgtype.TextOID, nil, KindNull, ""},
		{"bool true", pgtype.BoolOID, true, KindBool, "t"},
		{"bool false", pgtype.BoolOID, false, KindBool, "f"},
		{"int16", pgtype.Int2OID, int16(7), KindInt, "7"},
		{"int32", pgtype.Int4OID, int32(-42), KindInt, "-42"},
		{"int64", pgtype.Int8OID, int64(1 << 40), KindInt, "1099511627776"},
		{"float", pgtype.Float8OID, 2.5, KindFloat, "2.5"},
		{"text", pgtype.TextOID, "hello", KindText, "hello"},
		{"date keeps date shape", pgtype.DateOID, ts, KindText, "2024-03-15"},
		{"timestamp", pgtype.TimestamptzOID, ts, KindTime, "2024-03-15 10:30:00+00:00"},
		{"bytea", pgtype.ByteaOID, []byte{0xde, 0xad}, KindText, `\xdead`},
		{"uuid", pgtype.UUIDOID, [16]byte{0x55, 0x0e, 0x84, 0x00, 0xe2, 0x9b, 0x41, 0xd4, 0xa7, 0x16, 0x44, 0x66, 0x55, 0x44, 0x00, 0x00}, KindText, "550e8400-e29b-41d4-a716-446655440000"},
		{"json object", pgtype.JSONBOID, map[string]any{"a": float64(1)}, KindJSON, `{"a":1}`},
		{"json array", pgtype.JSONBOID, []any{float64(1), "x"}, KindJSON, `[1,"x"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := FromOID(tt.oid, tt.src)
			if v.Kind() != tt.kind {
				t.Errorf("kind = %d, want %d", v.Kind(), tt.kind)
			}
			if v.Text() != tt.text {
				t.Errorf("text = %q, want %q", v.Text(), tt.text)
			}
		})
	}
}

func TestFromOIDNumeric(t *testing.T) {
	n := pgtype.Numeric{Valid: true}
	if err := n.Scan("10050.25"); err != nil {
		t.Fatalf("scan numeric: %v", err)
	}

	v := FromOID(pgtype.NumericOID, n)
	if v.Kind() != KindFloat {
		t.Fatalf("kind = %d, want KindFloat", v.Kind())
	}
	if v.Text() != "10050.25" {
		t.Errorf("text = %q, want %q", v.Text(), "10050.25")
	}
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name string
		oid  uint32
		raw  []byte
		kind Kind
		text string
	}{
		{"null", pgtype.TextOID, nil, KindNull, ""},
		{"bool", pgtype.BoolOID, []byte("t"), KindBool, "t"},
		{"int", pgtype.Int8OID, []byte("123"), KindInt, "123"},
		{"float", pgtype.Float8OID, []byte("1.5"), KindFloat, "1.5"},
		{"numeric", pgtype.NumericOID, []byte("99.99"), KindFloat, "99.99"},
		{"nan", pgtype.Float8OID, []byte("NaN"), KindFloat, "NaN"},
		{"json passthrough", pgtype.JSONBOID, []byte(`{"k":"v"}`), KindJSON, `{"k":"v"}`},
		{"text", pgtype.VarcharOID, []byte("abc"), KindText, "abc"},
		{"empty string is not null", pgtype.TextOID, []byte(""), KindText, ""},
		{"unparseable int degrades", pgtype.Int8OID, []byte("not-a-number"), KindText, "not-a-number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := DecodeText(tt.oid, tt.raw)
			if v.Kind() != tt.kind {
				t.Errorf("kind = %d, want %d", v.Kind(), tt.kind)
			}
			if v.Text() != tt.text {
				t.Errorf("text = %q, want %q", v.Text(), tt.text)
			}
			if tt.raw == nil && !v.IsNull() {
				t.Error("nil raw should be NULL")
			}
		})
	}
}

func TestDecodeTextTimestamps(t *testing.T) {
	tests := []struct {
		oid  uint32
		raw  string
		want string
	}{
		{pgtype.TimestampOID, "2024-03-15 10:30:00", "2024-03-15T10:30:00Z"},
		{pgtype.TimestampOID, "2024-03-15 10:30:00.123456", "2024-03-15T10:30:00.123456Z"},
		{pgtype.TimestamptzOID, "2024-03-15 10:30:00+00", "2024-03-15T10:30:00Z"},
		{pgtype.TimestamptzOID, "2024-03-15 10:30:00.5+05:30", "2024-03-15T10:30:00.5+05:30"},
	}

	for _, tt := range tests {
		v := DecodeText(tt.oid, []byte(tt.raw))
		if v.Kind() != KindTime {
			t.Errorf("%q: kind = %d, want KindTime", tt.raw, v.Kind())
			continue
		}
		got, err := v.MarshalJSON()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var s string
		if err := json.Unmarshal(got, &s); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if s != tt.want {
			t.Errorf("%q: marshaled as %q, want %q", tt.raw, s, tt.want)
		}
	}
}

func TestValueMarshalJSON(t *testing.T) {
	row := Row{
		"id":     IntValue(1),
		"name":   TextValue("widget"),
		"price":  FloatValue(9.99),
		"active": BoolValue(true),
		"spec":   JSONValue(`{"w":10}`),
		"note":   NullValue(),
	}

	raw, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("marshal row: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal row: %v", err)
	}

	if decoded["id"] != float64(1) {
		t.Errorf("id = %v", decoded["id"])
	}
	if decoded["name"] != "widget" {
		t.Errorf("name = %v", decoded["name"])
	}
	if decoded["active"] != true {
		t.Errorf("active = %v", decoded["active"])
	}
	if decoded["note"] != nil {
		t.Errorf("note = %v, want nil", decoded["note"])
	}
	spec, ok := decoded["spec"].(map[string]any)
	if !ok || spec["w"] != float64(10) {
		t.Errorf("spec = %v", decoded["spec"])
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	row := Row{
		"id":     IntValue(42),
		"name":   TextValue("widget"),
		"price":  FloatValue(9.99),
		"active": BoolValue(false),
		"spec":   JSONValue(`{"w":10}`),
		"tags":   JSONValue(`[1,"x"]`),
		"note":   NullValue(),
	}

	raw, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Row
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for name, want := range row {
		got, ok := back[name]
		if !ok {
			t.Errorf("%s missing after round trip", name)
			continue
		}
		if got.Kind() != want.Kind() {
			t.Errorf("%s: kind = %d, want %d", name, got.Kind(), want.Kind())
		}
		if got.Text() != want.Text() {
			t.Errorf("%s: text = %q, want %q", name, got.Text(), want.Text())
		}
	}
}

func TestValueMarshalNaN(t *testing.T) {
	raw, err := json.Marshal(FloatValue(math.NaN()))
	if err != nil {
		t.Fatalf("marshal NaN: %v", err)
	}
	if string(raw) != `"NaN"` {
		t.Errorf("NaN marshaled as %s", raw)
	}
}
