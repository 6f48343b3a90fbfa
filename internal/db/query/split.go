package query

import (
	"strings"
)

// SplitStatements splits a SQL body on top-level semicolons. Semicolons
// inside single/double quotes, dollar-quoted bodies and both comment forms do
// not split; a function body with internal semicolons stays one statement.
// Empty fragments (trailing semicolons, comment-only pieces) are dropped.
func SplitStatements(sql string) []string {
	var stmts []string
	var cur strings.Builder

	i := 0
	n := len(sql)
	for i < n {
		c := sql[i]

		switch {
		case c == '-' && i+1 < n && sql[i+1] == '-':
			end := strings.IndexByte(sql[i:], '\n')
			if end == -1 {
				cur.WriteString(sql[i:])
				i = n
			} else {
				cur.WriteString(sql[i : i+end+1])
				i += end + 1
			}

		case c == '/' && i+1 < n && sql[i+1] == '*':
			j := skipBlockComment(sql, i)
			cur.WriteString(sql[i:j])
			i = j

		case c == '\'':
			j := skipSingleQuoted(sql, i, hasEPrefix(cur.String()))
			cur.WriteString(sql[i:j])
			i = j

		case c == '"':
			j := skipDoubleQuoted(sql, i)
			cur.WriteString(sql[i:j])
			i = j

		case c == '$':
			if tag, ok := dollarTag(sql[i:]); ok {
				j := skipDollarQuoted(sql, i, tag)
				cur.WriteString(sql[i:j])
				i = j
			} else {
				cur.WriteByte(c)
				i++
			}

		case c == ';':
			if s := strings.TrimSpace(cur.String()); s != "" && !isCommentOnly(s) {
				stmts = append(stmts, s)
			}
			cur.Reset()
			i++

		default:
			cur.WriteByte(c)
			i++
		}
	}

	if s := strings.TrimSpace(cur.String()); s != "" && !isCommentOnly(s) {
		stmts = append(stmts, s)
	}
	return stmts
}

// skipBlockComment returns the index just past a /* */ comment starting at i.
// PostgreSQL block comments nest.
func skipBlockComment(sql string, i int) int {
	n := len(sql)
	depth := 0
	for i < n {
		if i+1 < n && sql[i] == '/' && sql[i+1] == '*' {
			depth++
			i += 2
			continue
		}
		if i+1 < n && sql[i] == '*' && sql[i+1] == '/' {
			depth--
			i += 2
			if depth == 0 {
				return i
			}
			continue
		}
		i++
	}
	return n
}

func skipSingleQuoted(sql string, i int, estring bool) int {
	n := len(sql)
	i++ // opening quote
	for i < n {
		switch {
		case estring && sql[i] == '\\':
			i += 2
		case sql[i] == '\'':
			if i+1 < n && sql[i+1] == '\'' {
				i += 2 // doubled quote
				continue
			}
			return i + 1
		default:
			i++
		}
	}
	return n
}

func skipDoubleQuoted(sql string, i int) int {
	n := len(sql)
	i++
	for i < n {
		if sql[i] == '"' {
			if i+1 < n && sql[i+1] == '"' {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return n
}

// dollarTag reads a $tag$ opener at the start of s, returning the full tag
// including both dollars.
func dollarTag(s string) (string, bool) {
	if len(s) < 2 || s[0] != '$' {
		return "", false
	}
	for j := 1; j < len(s); j++ {
		c := s[j]
		if c == '$' {
			return s[:j+1], true
		}
		if !isTagChar(c) {
			return "", false
		}
	}
	return "", false
}

func isTagChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func skipDollarQuoted(sql string, i int, tag string) int {
	close := strings.Index(sql[i+len(tag):], tag)
	if close == -1 {
		return len(sql)
	}
	return i + len(tag) + close + len(tag)
}

// hasEPrefix reports whether the text so far ends in a lone E, meaning the
// quote that follows opens an E'...' string with backslash escapes. The E of
// an identifier like CASE does not count.
func hasEPrefix(s string) bool {
	if s == "" {
		return false
	}
	last := s[len(s)-1]
	if last != 'e' && last != 'E' {
		return false
	}
	if len(s) == 1 {
		return true
	}
	return !isTagChar(s[len(s)-2])
}

func isCommentOnly(s string) bool {
	i := skipSpaceAndComments(s, 0)
	return i >= len(s)
}
