package daogen

import (
	"database/sql/driver"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack stores V in a single binary column encoded with MessagePack.
// It implements driver.Valuer and sql.Scanner, so the generator binds and
// scans it natively:
//
//	type Profile struct {
//		ID       int64
//		Settings daogen.Msgpack[Settings]
//	}
type Msgpack[T any] struct {
	V T
}

// Value implements driver.Valuer.
func (m Msgpack[T]) Value() (driver.Value, error) {
	b, err := msgpack.Marshal(m.V)
	if err != nil {
		return nil, fmt.Errorf("daogen: msgpack encode %T: %w", m.V, err)
	}
	return b, nil
}

// Scan implements sql.Scanner. A NULL column leaves the zero value.
func (m *Msgpack[T]) Scan(src any) error {
	var zero T
	m.V = zero
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return m.decode(v)
	case string:
		return m.decode([]byte(v))
	default:
		return fmt.Errorf("daogen: msgpack: unsupported column type %T", src)
	}
}

func (m *Msgpack[T]) decode(b []byte) error {
	if err := msgpack.Unmarshal(b, &m.V); err != nil {
		return fmt.Errorf("daogen: msgpack decode %T: %w", m.V, err)
	}
	return nil
}
