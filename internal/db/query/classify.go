package query

import (
	"strings"

	"github.com/queryowl/queryowl/internal/models"
)

// StatementClass says whether a statement answers with rows or with an
// acknowledgment.
type StatementClass int

const (
	Acknowledgment StatementClass = iota
	ResultProducing
)

// DDLCategory buckets schema-changing statements by their leading verb.
type DDLCategory string

const (
	DDLCreate   DDLCategory = "create"
	DDLDrop     DDLCategory = "drop"
	DDLAlter    DDLCategory = "alter"
	DDLTruncate DDLCategory = "truncate"
	DDLRename   DDLCategory = "rename"
)

// Classification is the outcome of inspecting a statement's leading keywords.
// The wire result still has the final say on shape; classification supplies
// the query-type label and the schema-invalidation signal.
type Classification struct {
	Class             StatementClass
	QueryType         models.QueryType
	DDL               DDLCategory
	InvalidatesSchema bool
}

// resultLeaders are the keywords that open row-returning statements.
var resultLeaders = map[string]bool{
	"SELECT":  true,
	"WITH":    true,
	"VALUES":  true,
	"TABLE":   true,
	"SHOW":    true,
	"EXPLAIN": true,
}

// schemaObjects are the object kinds whose CREATE/DROP/ALTER invalidates the
// schema snapshot.
var schemaObjects = map[string]bool{
	"TABLE":     true,
	"VIEW":      true,
	"INDEX":     true,
	"FUNCTION":  true,
	"PROCEDURE": true,
	"SEQUENCE":  true,
	"TYPE":      true,
	"SCHEMA":    true,
	"TRIGGER":   true,
	"EXTENSION": true,
	"DOMAIN":    true,
}

// objectModifiers are words that may appear between the verb and the object
// kind (CREATE OR REPLACE FUNCTION, DROP TABLE IF EXISTS, CREATE UNIQUE
// INDEX CONCURRENTLY).
var objectModifiers = map[string]bool{
	"OR":           true,
	"REPLACE":      true,
	"UNIQUE":       true,
	"MATERIALIZED": true,
	"TEMP":         true,
	"TEMPORARY":    true,
	"UNLOGGED":     true,
	"GLOBAL":       true,
	"LOCAL":        true,
	"IF":           true,
	"NOT":          true,
	"EXISTS":       true,
	"CONCURRENTLY": true,
	"RECURSIVE":    true,
	"FOREIGN":      true,
}

// Classify inspects a statement's leading keywords. For multi-statement
// bodies the caller classifies each piece; see Execute for how the envelope
// follows the last statement.
func Classify(sql string) Classification {
	first, rest := leadingKeyword(sql)

	if resultLeaders[first] {
		return Classification{Class: ResultProducing, QueryType: models.QueryTypeOther}
	}

	switch first {
	case "CREATE", "DROP", "ALTER":
		c := Classification{
			QueryType: models.QueryType(first),
			DDL:       DDLCategory(strings.ToLower(first)),
		}
		c.InvalidatesSchema = touchesSchemaObject(rest)
		return c

	case "TRUNCATE":
		return Classification{
			QueryType:         models.QueryTypeTruncate,
			DDL:               DDLTruncate,
			InvalidatesSchema: true,
		}

	case "RENAME":
		return Classification{
			QueryType:         models.QueryTypeOther,
			DDL:               DDLRename,
			InvalidatesSchema: true,
		}

	case "INSERT", "UPDATE", "DELETE":
		c := Classification{QueryType: models.QueryType(first)}
		if hasReturning(sql) {
			c.Class = ResultProducing
		}
		return c
	}

	return Classification{QueryType: models.QueryTypeOther}
}

// leadingKeyword returns the statement's first keyword uppercased, plus the
// remainder, after skipping whitespace and comments.
func leadingKeyword(sql string) (string, string) {
	i := skipSpaceAndComments(sql, 0)
	j := i
	for j < len(sql) && isWordChar(sql[j]) {
		j++
	}
	return strings.ToUpper(sql[i:j]), sql[j:]
}

// touchesSchemaObject scans past modifier words for an object kind in the
// invalidation table.
func touchesSchemaObject(rest string) bool {
	// A handful of modifiers at most can precede the object kind.
	for k := 0; k < 8; k++ {
		var word string
		word, rest = nextWord(rest)
		if word == "" {
			return false
		}
		if schemaObjects[word] {
			return true
		}
		if !objectModifiers[word] {
			return false
		}
	}
	return false
}

func nextWord(s string) (string, string) {
	i := skipSpaceAndComments(s, 0)
	j := i
	for j < len(s) && isWordChar(s[j]) {
		j++
	}
	return strings.ToUpper(s[i:j]), s[j:]
}

// hasReturning looks for a top-level RETURNING keyword outside strings,
// comments and dollar-quoted bodies.
func hasReturning(sql string) bool {
	i := 0
	n := len(sql)
	for i < n {
		c := sql[i]
		switch {
		case c == '-' && i+1 < n && sql[i+1] == '-':
			end := strings.IndexByte(sql[i:], '\n')
			if end == -1 {
				return false
			}
			i += end + 1
		case c == '/' && i+1 < n && sql[i+1] == '*':
			i = skipBlockComment(sql, i)
		case c == '\'':
			i = skipSingleQuoted(sql, i, hasEPrefix(sql[:i]))
		case c == '"':
			i = skipDoubleQuoted(sql, i)
		case c == '$':
			if tag, ok := dollarTag(sql[i:]); ok {
				i = skipDollarQuoted(sql, i, tag)
			} else {
				i++
			}
		case isWordChar(c):
			j := i
			for j < n && isWordChar(sql[j]) {
				j++
			}
			if strings.EqualFold(sql[i:j], "RETURNING") {
				return true
			}
			i = j
		default:
			i++
		}
	}
	return false
}

// skipSpaceAndComments advances past whitespace and both comment forms.
func skipSpaceAndComments(s string, i int) int {
	n := len(s)
	for i < n {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '-' && i+1 < n && s[i+1] == '-':
			end := strings.IndexByte(s[i:], '\n')
			if end == -1 {
				return n
			}
			i += end + 1
		case c == '/' && i+1 < n && s[i+1] == '*':
			i = skipBlockComment(s, i)
		default:
			return i
		}
	}
	return i
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
