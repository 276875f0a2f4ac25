// Package diag holds the diagnostics collected while resolving converters and
// assembling method bodies.
//
// A Set is immutable. Components never fail through control flow when they
// find a problem in a user declaration; they return a Set describing it and
// let the caller decide. An empty Set means success.
package diag

import (
	"fmt"
	"go/token"
	"slices"
	"strings"
)

// Level is the severity of a Message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warning"
	default:
		return "error"
	}
}

// Message is a single diagnostic fact.
type Message struct {
	Level Level
	Pos   token.Position
	Text  string
}

// String formats the message as "pos: level: text".
func (m Message) String() string {
	var b strings.Builder
	if m.Pos.IsValid() {
		b.WriteString(m.Pos.String())
		b.WriteString(": ")
	}
	if m.Level != LevelError {
		b.WriteString(m.Level.String())
		b.WriteString(": ")
	}
	b.WriteString(m.Text)
	return b.String()
}

func (m Message) key() string {
	return fmt.Sprintf("%d|%s|%s", m.Level, m.Pos, m.Text)
}

// Set is an immutable, deduplicated and ordered collection of messages.
// The zero value is the empty set.
type Set struct {
	msgs []Message
}

// Empty is the success sentinel.
var Empty = Set{}

// Errorf returns a set with a single error message.
func Errorf(format string, args ...any) Set {
	return Of(Message{Level: LevelError, Text: fmt.Sprintf(format, args...)})
}

// ErrorAt returns a set with a single error message attached to pos.
func ErrorAt(pos token.Position, format string, args ...any) Set {
	return Of(Message{Level: LevelError, Pos: pos, Text: fmt.Sprintf(format, args...)})
}

// Warnf returns a set with a single warning.
func Warnf(format string, args ...any) Set {
	return Of(Message{Level: LevelWarn, Text: fmt.Sprintf(format, args...)})
}

// Of builds a set from the given messages, dropping duplicates.
func Of(msgs ...Message) Set {
	return Empty.With(msgs...)
}

// With returns a new set holding s and msgs.
func (s Set) With(msgs ...Message) Set {
	if len(msgs) == 0 {
		return s
	}
	seen := make(map[string]struct{}, len(s.msgs)+len(msgs))
	out := make([]Message, 0, len(s.msgs)+len(msgs))
	for _, m := range s.msgs {
		seen[m.key()] = struct{}{}
		out = append(out, m)
	}
	for _, m := range msgs {
		if _, ok := seen[m.key()]; ok {
			continue
		}
		seen[m.key()] = struct{}{}
		out = append(out, m)
	}
	return Set{msgs: out}
}

// Merge returns the union of s and others.
func (s Set) Merge(others ...Set) Set {
	out := s
	for _, o := range others {
		out = out.With(o.msgs...)
	}
	return out
}

// Prefix returns a copy of s with every message text prefixed.
func (s Set) Prefix(p string) Set {
	if len(s.msgs) == 0 {
		return s
	}
	out := make([]Message, len(s.msgs))
	for i, m := range s.msgs {
		m.Text = p + m.Text
		out[i] = m
	}
	return Set{msgs: out}
}

// At returns a copy of s where messages without a position get pos.
func (s Set) At(pos token.Position) Set {
	if len(s.msgs) == 0 || !pos.IsValid() {
		return s
	}
	out := make([]Message, len(s.msgs))
	for i, m := range s.msgs {
		if !m.Pos.IsValid() {
			m.Pos = pos
		}
		out[i] = m
	}
	return Set{msgs: out}
}

// Len returns the number of messages.
func (s Set) Len() int { return len(s.msgs) }

// IsEmpty reports whether the set is the success sentinel.
func (s Set) IsEmpty() bool { return len(s.msgs) == 0 }

// HasErrors reports whether the set contains at least one error.
func (s Set) HasErrors() bool {
	return slices.ContainsFunc(s.msgs, func(m Message) bool { return m.Level == LevelError })
}

// Errors returns only the error-level part of the set.
func (s Set) Errors() Set {
	var out []Message
	for _, m := range s.msgs {
		if m.Level == LevelError {
			out = append(out, m)
		}
	}
	return Set{msgs: out}
}

// Messages returns a copy of the messages in insertion order.
func (s Set) Messages() []Message {
	return slices.Clone(s.msgs)
}

// Lines returns the messages formatted one per element.
func (s Set) Lines() []string {
	lines := make([]string, len(s.msgs))
	for i, m := range s.msgs {
		lines[i] = m.String()
	}
	return lines
}

// Contains reports whether any message text contains substr.
func (s Set) Contains(substr string) bool {
	return slices.ContainsFunc(s.msgs, func(m Message) bool { return strings.Contains(m.Text, substr) })
}

// String joins the messages one per line.
func (s Set) String() string {
	return strings.Join(s.Lines(), "\n")
}
