// Package convert resolves and emits the conversions between Go values and
// SQL columns or rows.
//
// An Encoder turns a Go value into bind arguments, a Decoder turns scanned
// columns (or a whole row) into a Go value. Converters are built once per
// distinct Key by a CompositeStore, cached for the run and never mutated,
// so a cached converter can be shared by every method that needs it.
package convert

import (
	"go/types"

	"github.com/syssam/daogen/compiler/diag"
	"github.com/syssam/daogen/compiler/nullness"
	"github.com/syssam/daogen/compiler/shape"
)

// Direction tells encoders from decoders.
type Direction int

const (
	Encode Direction = iota
	Decode
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == Decode {
		return "decoder"
	}
	return "encoder"
}

// Capability is the SQL-side extent of a converter.
type Capability int

const (
	// Column converters read or write a single column.
	Column Capability = iota
	// Row converters read or write several columns by name.
	Row
)

// String implements fmt.Stringer.
func (c Capability) String() string {
	if c == Row {
		return "row"
	}
	return "column"
}

// Converter is the common surface of encoders and decoders.
type Converter interface {
	// Type is the Go type the converter was built for; nil when the
	// construction failed before a type was known.
	Type() types.Type
	// Messages is empty iff the converter is usable.
	Messages() diag.Set
	// Fallible reports whether the conversion calls a delegate that
	// returns an error.
	Fallible() bool
	Capability() Capability
	String() string
}

// Encoder converts a Go value into bind arguments.
type Encoder interface {
	Converter
	isEncoder()
}

// Decoder converts scanned columns into a Go value.
type Decoder interface {
	Converter
	isDecoder()
}

type base struct {
	typ      types.Type
	msgs     diag.Set
	fallible bool
	desc     string
}

func (b *base) Type() types.Type       { return b.typ }
func (b *base) Messages() diag.Set     { return b.msgs }
func (b *base) Fallible() bool         { return b.fallible }
func (b *base) Capability() Capability { return Column }
func (b *base) String() string         { return b.desc }

// Failed is a converter that could not be built. It is both an Encoder and
// a Decoder so that every resolution returns a value.
type Failed struct {
	base
}

func (*Failed) isEncoder() {}
func (*Failed) isDecoder() {}

func newFailed(t types.Type, msgs diag.Set) *Failed {
	return &Failed{base{typ: t, msgs: msgs, desc: "failed " + TypeString(t)}}
}

// Usable reports whether c can be emitted.
func Usable(c Converter) bool {
	return c != nil && c.Messages().IsEmpty()
}

// valueFlag is the flag of an intermediate value of type t, such as the
// result of a delegate call.
func valueFlag(t types.Type) nullness.Flag {
	if _, ok := shape.Optional(t); ok {
		return nullness.OptionalWrapper
	}
	if shape.Nilable(t) {
		return nullness.Unspecified
	}
	return nullness.NonNull
}

// field is one struct field (or delegate parameter) bound to a column.
type field struct {
	col  string
	v    *types.Var
	flag nullness.Flag
	enc  columnEncoder
	dec  columnDecoder
}
