package metadata

import (
	"strings"
	"testing"

	"github.com/queryowl/queryowl/internal/models"
)

func TestRenderCreateTableBasic(t *testing.T) {
	cols := []models.ColumnDetail{
		{Name: "id", DataType: "integer", IsIdentity: true},
		{Name: "name", DataType: "text", IsNullable: true},
		{Name: "created_at", DataType: "timestamp with time zone", IsNullable: true, DefaultValue: "now()"},
	}
	cons := []models.Constraint{
		{Name: "users_pkey", Type: "p", Definition: "PRIMARY KEY (id)"},
	}

	got := renderCreateTable("public", "users", cols, cons)

	want := `CREATE TABLE "public"."users" (
    "id" integer GENERATED BY DEFAULT AS IDENTITY NOT NULL PRIMARY KEY,
    "name" text,
    "created_at" timestamp with time zone DEFAULT now()
);`
	if got != want {
		t.Errorf("renderCreateTable =\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderCreateTableCompositeKeyAndForeignKey(t *testing.T) {
	cols := []models.ColumnDetail{
		{Name: "order_id", DataType: "integer"},
		{Name: "product_id", DataType: "integer"},
		{Name: "qty", DataType: "integer", DefaultValue: "1"},
	}
	cons := []models.Constraint{
		{Name: "order_items_pkey", Type: "p", Definition: "PRIMARY KEY (order_id, product_id)"},
		{Name: "order_items_order_fk", Type: "f", Definition: "FOREIGN KEY (order_id) REFERENCES orders(id)"},
		{Name: "order_items_qty_check", Type: "c", Definition: "CHECK ((qty > 0))"},
	}

	got := renderCreateTable("public", "order_items", cols, cons)

	// Composite key stays a table-level constraint.
	if strings.Contains(got, `"order_id" integer PRIMARY KEY`) {
		t.Error("composite primary key folded into a single column")
	}
	for _, want := range []string{
		`CONSTRAINT "order_items_pkey" PRIMARY KEY (order_id, product_id)`,
		`CONSTRAINT "order_items_order_fk" FOREIGN KEY (order_id) REFERENCES orders(id)`,
		`CONSTRAINT "order_items_qty_check" CHECK ((qty > 0))`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestRenderCreateTableNotNull(t *testing.T) {
	cols := []models.ColumnDetail{
		{Name: "code", DataType: "character varying(10)", IsNullable: true},
	}
	got := renderCreateTable("app", "lookup", cols, nil)

	if !strings.Contains(got, `"app"."lookup"`) {
		t.Errorf("schema qualification missing:\n%s", got)
	}
	if strings.Contains(got, "NOT NULL") {
		t.Errorf("nullable column rendered NOT NULL:\n%s", got)
	}
}

func TestSingleColumnPK(t *testing.T) {
	cols := []models.ColumnDetail{{Name: "id"}, {Name: "ref"}}

	tests := []struct {
		definition string
		want       string
	}{
		{"PRIMARY KEY (id)", "id"},
		{`PRIMARY KEY ("id")`, "id"},
		{"PRIMARY KEY (id, ref)", ""},
		{"PRIMARY KEY (missing)", ""},
		{"garbage", ""},
	}
	for _, tt := range tests {
		if got := singleColumnPK(tt.definition, cols); got != tt.want {
			t.Errorf("singleColumnPK(%q) = %q, want %q", tt.definition, got, tt.want)
		}
	}
}
