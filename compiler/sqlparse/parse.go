// Package sqlparse splits a SQL template into literal text and named
// `:param` (or `:param.column`) markers.
package sqlparse

import (
	"fmt"
	"strings"

	"github.com/syssam/daogen"
)

// Marker is one occurrence of a named bind marker.
type Marker struct {
	Name  string // method parameter name
	Field string // column of a whole-row parameter, for ":p.col"
	Pos   int    // byte offset of the ':' in the template
}

// String returns the marker as written.
func (m Marker) String() string {
	if m.Field != "" {
		return ":" + m.Name + "." + m.Field
	}
	return ":" + m.Name
}

// Template is a parsed SQL template. Markers[i] sits between Parts[i] and
// Parts[i+1], so len(Parts) == len(Markers)+1.
type Template struct {
	Source  string
	Parts   []string
	Markers []Marker

	semis []int // offsets of top-level ';'
}

// Error is a template syntax error.
type Error struct {
	Pos int
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("sql template: offset %d: %s", e.Pos, e.Msg)
}

const (
	sText = iota
	sSQ   // '...'
	sDQ   // "..."
	sBT   // `...`
	sLC   // -- ...
	sBC   // /* ... */
)

// Parse parses a template. Quoted literals, identifiers, comments and
// PostgreSQL "::type" casts never produce markers.
func Parse(q string) (*Template, error) {
	t := &Template{Source: q}
	var (
		buf   strings.Builder
		state = sText
		start int // where the current quote or comment began
	)
	for i := 0; i < len(q); {
		c := q[i]
		switch state {
		case sText:
			switch {
			case c == ';':
				t.semis = append(t.semis, i)
			case c == '\'':
				state, start = sSQ, i
			case c == '"':
				state, start = sDQ, i
			case c == '`':
				state, start = sBT, i
			case c == '-' && i+1 < len(q) && q[i+1] == '-':
				state, start = sLC, i
			case c == '/' && i+1 < len(q) && q[i+1] == '*':
				state, start = sBC, i
				buf.WriteString("/*")
				i += 2
				continue
			case c == ':' && i+1 < len(q) && q[i+1] == ':':
				buf.WriteString("::")
				i += 2
				for i < len(q) && isIdent(q[i]) {
					buf.WriteByte(q[i])
					i++
				}
				continue
			case c == ':' && i+1 < len(q) && isIdentStart(q[i+1]):
				m, next := scanMarker(q, i)
				t.Parts = append(t.Parts, buf.String())
				t.Markers = append(t.Markers, m)
				buf.Reset()
				i = next
				continue
			}
			buf.WriteByte(c)
			i++
		case sSQ, sDQ, sBT:
			quote := closer(state)
			buf.WriteByte(c)
			i++
			if c == '\\' && state != sBT && i < len(q) {
				buf.WriteByte(q[i])
				i++
				continue
			}
			if c == quote {
				if i < len(q) && q[i] == quote {
					buf.WriteByte(q[i])
					i++
				} else {
					state = sText
				}
			}
		case sLC:
			buf.WriteByte(c)
			i++
			if c == '\n' || c == '\r' {
				state = sText
			}
		case sBC:
			if c == '*' && i+1 < len(q) && q[i+1] == '/' {
				buf.WriteString("*/")
				i += 2
				state = sText
				continue
			}
			buf.WriteByte(c)
			i++
		}
	}
	switch state {
	case sSQ, sDQ, sBT:
		return nil, &Error{Pos: start, Msg: "unterminated quoted text"}
	case sBC:
		return nil, &Error{Pos: start, Msg: "unterminated block comment"}
	}
	t.Parts = append(t.Parts, buf.String())
	return t, nil
}

// scanMarker reads ":name" or ":name.field" starting at the colon.
func scanMarker(q string, i int) (Marker, int) {
	m := Marker{Pos: i}
	j := i + 1
	for j < len(q) && isIdent(q[j]) {
		j++
	}
	m.Name = q[i+1 : j]
	if j+1 < len(q) && q[j] == '.' && isIdentStart(q[j+1]) {
		k := j + 1
		for k < len(q) && isIdent(q[k]) {
			k++
		}
		m.Field = q[j+1 : k]
		j = k
	}
	return m, j
}

func closer(state int) byte {
	switch state {
	case sDQ:
		return '"'
	case sBT:
		return '`'
	default:
		return '\''
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdent(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// Names returns the distinct parameter names referenced, in order of first use.
func (t *Template) Names() []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range t.Markers {
		if !seen[m.Name] {
			seen[m.Name] = true
			names = append(names, m.Name)
		}
	}
	return names
}

// Native renders the template with one placeholder per marker.
func (t *Template) Native(style daogen.Placeholder) string {
	return daogen.Expand(style, t.Parts, nil)
}

// Statements counts the top-level statements of the template, separated by
// ';' outside quotes and comments. A trailing ';' does not start a new one.
func (t *Template) Statements() int {
	if len(t.semis) == 0 {
		return 1
	}
	n := len(t.semis)
	if strings.TrimSpace(t.Source[t.semis[n-1]+1:]) != "" {
		n++
	}
	return n
}
