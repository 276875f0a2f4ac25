package convert

import (
	"go/types"
	"strings"
)

// Key identifies a resolution request: an optional converter name and the
// Go type to convert. Two keys are equal iff their names are equal and
// their types are identical.
type Key struct {
	Name string
	Type types.Type
}

// TypeKey returns the unnamed key for t.
func TypeKey(t types.Type) Key { return Key{Type: t} }

// Named reports whether the key carries an explicit converter name.
func (k Key) Named() bool { return k.Name != "" }

// Equal reports whether k and o identify the same request.
func (k Key) Equal(o Key) bool {
	return k.Name == o.Name && identical(k.Type, o.Type)
}

func identical(a, b types.Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return types.Identical(a, b)
}

// id is the map key of k. Identical types have equal type strings when
// they are qualified by full package path.
func (k Key) id() string {
	return k.Name + "\x00" + typeID(k.Type)
}

func typeID(t types.Type) string {
	if t == nil {
		return ""
	}
	return types.TypeString(t, nil)
}

// String returns the key for diagnostics.
func (k Key) String() string {
	s := TypeString(k.Type)
	if k.Name != "" {
		return k.Name + "(" + s + ")"
	}
	return s
}

// TypeString formats t qualified by package name only.
func TypeString(t types.Type) string {
	if t == nil {
		return "<nil>"
	}
	return types.TypeString(t, func(p *types.Package) string { return p.Name() })
}

// Path is the ordered set of keys being resolved or emitted, outermost
// first. A key already on the path signals a conversion cycle.
type Path []Key

// Contains reports whether k is on the path.
func (p Path) Contains(k Key) bool {
	for _, o := range p {
		if o.Equal(k) {
			return true
		}
	}
	return false
}

// With returns a new path with k appended; p is not modified.
func (p Path) With(k Key) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, k)
}

// Cycle formats the cycle closed by k, e.g. "A -> B -> A".
func (p Path) Cycle(k Key) string {
	start := 0
	for i, o := range p {
		if o.Equal(k) {
			start = i
			break
		}
	}
	parts := make([]string, 0, len(p)-start+1)
	for _, o := range p[start:] {
		parts = append(parts, o.String())
	}
	parts = append(parts, k.String())
	return strings.Join(parts, " -> ")
}
