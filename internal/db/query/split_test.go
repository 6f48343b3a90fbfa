package query

import (
	"testing"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			"single statement",
			"SELECT 1",
			[]string{"SELECT 1"},
		},
		{
			"trailing semicolon",
			"SELECT 1;",
			[]string{"SELECT 1"},
		},
		{
			"two statements",
			"CREATE TABLE t(id int); INSERT INTO t VALUES (1)",
			[]string{"CREATE TABLE t(id int)", "INSERT INTO t VALUES (1)"},
		},
		{
			"semicolon in string literal",
			"SELECT 'a;b'; SELECT 2",
			[]string{"SELECT 'a;b'", "SELECT 2"},
		},
		{
			"doubled quote in literal",
			"SELECT 'it''s; fine'",
			[]string{"SELECT 'it''s; fine'"},
		},
		{
			"semicolon in quoted identifier",
			`SELECT 1 AS "a;b"`,
			[]string{`SELECT 1 AS "a;b"`},
		},
		{
			"dollar-quoted function body",
			"CREATE FUNCTION f() RETURNS int AS $$ BEGIN RETURN 1; END; $$ LANGUAGE plpgsql; SELECT f()",
			[]string{
				"CREATE FUNCTION f() RETURNS int AS $$ BEGIN RETURN 1; END; $$ LANGUAGE plpgsql",
				"SELECT f()",
			},
		},
		{
			"tagged dollar quote",
			"SELECT $body$ a; b $body$",
			[]string{"SELECT $body$ a; b $body$"},
		},
		{
			"semicolon in line comment",
			"SELECT 1 -- trailing; note\n; SELECT 2",
			[]string{"SELECT 1 -- trailing; note", "SELECT 2"},
		},
		{
			"semicolon in block comment",
			"SELECT 1 /* a; b */; SELECT 2",
			[]string{"SELECT 1 /* a; b */", "SELECT 2"},
		},
		{
			"escape string",
			`SELECT E'a\';b'; SELECT 2`,
			[]string{`SELECT E'a\';b'`, "SELECT 2"},
		},
		{
			"comment-only fragment dropped",
			"SELECT 1; -- done",
			[]string{"SELECT 1"},
		},
		{
			"empty fragments dropped",
			";;SELECT 1;;",
			[]string{"SELECT 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitStatements(tt.sql)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitStatements(%q) = %q, want %q", tt.sql, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("statement %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitStatementsPositionalParam(t *testing.T) {
	// A lone $1 is a parameter placeholder, not a dollar-quote opener.
	got := SplitStatements("SELECT $1; SELECT $2")
	if len(got) != 2 {
		t.Fatalf("got %q, want two statements", got)
	}
}
