package convert

import (
	"go/types"
	"path"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Layer is the position of a store in a CompositeStore.
type Layer int

const (
	Local Layer = iota
	Global
	Basic
)

// String implements fmt.Stringer.
func (l Layer) String() string {
	switch l {
	case Local:
		return "local"
	case Global:
		return "global"
	default:
		return "basic"
	}
}

// builder constructs an entry's converter on first use. Annotated
// delegates are built lazily since they resolve other converters.
type builder func(c *CompositeStore, key Key, path Path) Converter

type entry struct {
	key   Key
	conv  Converter
	build builder
}

// Store is an insertion-ordered map from keys to converters, one per
// direction.
type Store struct {
	layer Layer
	dirs  [2]struct {
		index map[string]*entry
		order []*entry
	}
}

// NewStore returns an empty store for the given layer.
func NewStore(l Layer) *Store {
	s := &Store{layer: l}
	for i := range s.dirs {
		s.dirs[i].index = make(map[string]*entry)
	}
	return s
}

// Layer returns the store's layer.
func (s *Store) Layer() Layer { return s.layer }

// Put inserts a known-good converter, replacing any previous entry.
func (s *Store) Put(dir Direction, key Key, c Converter) {
	s.put(dir, &entry{key: key, conv: c})
}

// PutFunc inserts a converter built on first lookup.
func (s *Store) PutFunc(dir Direction, key Key, build builder) {
	s.put(dir, &entry{key: key, build: build})
}

func (s *Store) put(dir Direction, e *entry) {
	d := &s.dirs[dir]
	id := e.key.id()
	if _, ok := d.index[id]; !ok {
		d.order = append(d.order, e)
	} else {
		for i, o := range d.order {
			if o.key.id() == id {
				d.order[i] = e
			}
		}
	}
	d.index[id] = e
}

// Get returns the converter stored under key, if it is already built.
func (s *Store) Get(dir Direction, key Key) (Converter, bool) {
	e, ok := s.dirs[dir].index[key.id()]
	if !ok || e.conv == nil {
		return nil, false
	}
	return e.conv, true
}

func (s *Store) lookup(dir Direction, key Key) (*entry, bool) {
	e, ok := s.dirs[dir].index[key.id()]
	return e, ok
}

// Keys returns the stored keys in insertion order.
func (s *Store) Keys(dir Direction) []Key {
	keys := make([]Key, len(s.dirs[dir].order))
	for i, e := range s.dirs[dir].order {
		keys[i] = e.key
	}
	return keys
}

// Len returns the number of entries for dir.
func (s *Store) Len(dir Direction) int { return len(s.dirs[dir].order) }

// Builtins returns the basic store: the Go types database/sql binds and
// scans without help.
func Builtins() *Store {
	s := NewStore(Basic)
	native := func(t types.Type) {
		s.Put(Encode, TypeKey(t), newNativeEncoder(t, nil, false))
		s.Put(Decode, TypeKey(t), newNativeDecoder(t, nil))
	}
	for _, k := range []types.BasicKind{
		types.Bool, types.String,
		types.Int, types.Int8, types.Int16, types.Int32, types.Int64,
		types.Uint, types.Uint8, types.Uint16, types.Uint32, types.Uint64,
		types.Float32, types.Float64,
	} {
		native(types.Typ[k])
	}
	for _, name := range []string{"byte", "rune"} {
		native(types.Universe.Lookup(name).Type())
	}
	native(types.NewSlice(types.Typ[types.Byte]))
	native(types.NewSlice(types.Typ[types.Uint8]))
	// Named library types are matched by type string; the converter is
	// built for the type that was looked up.
	for _, rt := range []reflect.Type{reflect.TypeFor[time.Time](), reflect.TypeFor[uuid.UUID]()} {
		id := rt.PkgPath() + "." + rt.Name()
		for _, dir := range []Direction{Encode, Decode} {
			s.put(dir, &entry{key: Key{Type: libType(id)}, build: func(_ *CompositeStore, key Key, _ Path) Converter {
				if dir == Encode {
					return newNativeEncoder(key.Type, nil, false)
				}
				return newNativeDecoder(key.Type, nil)
			}})
		}
	}
	return s
}

// libType is a placeholder named type whose type string is id. It only
// serves as a store key.
func libType(id string) types.Type {
	i := len(id) - 1
	for i >= 0 && id[i] != '.' {
		i--
	}
	pkg := types.NewPackage(id[:i], path.Base(id[:i]))
	tn := types.NewTypeName(0, pkg, id[i+1:], nil)
	return types.NewNamed(tn, types.NewStruct(nil, nil), nil)
}
