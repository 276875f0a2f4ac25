package convert

import (
	"fmt"
	"go/types"

	"github.com/syssam/daogen/compiler/shape"
)

// DelegateShape is the closed set of user function shapes a converter can
// delegate to.
type DelegateShape int

const (
	Invalid DelegateShape = iota
	// DecodeColumnFunc is func(P) T or func(P) (T, error).
	DecodeColumnFunc
	// DecodeRowFunc is func(a A, b B, ...) T; parameters name the columns.
	DecodeRowFunc
	// DecodeCursorFunc is func(*sql.Rows) (T, error).
	DecodeCursorFunc
	// EncodeFunc is func(T) K or func(T) (K, error).
	EncodeFunc
	// EncodeMethod is func (T) M() K or func (T) M() (K, error).
	EncodeMethod
)

var delegateShapes = [...]string{
	Invalid:          "invalid",
	DecodeColumnFunc: "column decoder",
	DecodeRowFunc:    "row decoder",
	DecodeCursorFunc: "cursor decoder",
	EncodeFunc:       "encoder function",
	EncodeMethod:     "encoder method",
}

// String implements fmt.Stringer.
func (s DelegateShape) String() string { return delegateShapes[s] }

// Direction returns the direction a valid shape converts in.
func (s DelegateShape) Direction() Direction {
	if s == EncodeFunc || s == EncodeMethod {
		return Encode
	}
	return Decode
}

// Delegate is a classified user function or method.
type Delegate struct {
	Func  *types.Func
	Shape DelegateShape
	// In is the encoded type (the parameter or receiver) for encoders.
	In types.Type
	// Out is the first result: the bound type for encoders, the decoded
	// type for decoders.
	Out      types.Type
	Fallible bool
	// Reason tells why an Invalid delegate cannot be used.
	Reason string
}

// Name returns the qualified function name for diagnostics.
func (d Delegate) Name() string {
	if d.Func == nil {
		return "<nil>"
	}
	sig := d.Func.Type().(*types.Signature)
	if recv := sig.Recv(); recv != nil {
		return TypeString(recv.Type()) + "." + d.Func.Name()
	}
	if d.Func.Pkg() != nil {
		return d.Func.Pkg().Name() + "." + d.Func.Name()
	}
	return d.Func.Name()
}

// String implements fmt.Stringer.
func (d Delegate) String() string {
	if d.Shape == Invalid {
		return fmt.Sprintf("%s: %s", d.Name(), d.Reason)
	}
	return fmt.Sprintf("%s (%s)", d.Name(), d.Shape)
}

// ClassifyDelegate determines the shape of fn used in direction dir from
// code generated into the package out.
func ClassifyDelegate(fn *types.Func, dir Direction, out *types.Package) Delegate {
	d := Delegate{Func: fn}
	invalid := func(format string, args ...any) Delegate {
		d.Shape, d.Reason = Invalid, fmt.Sprintf(format, args...)
		return d
	}
	sig := fn.Type().(*types.Signature)
	switch {
	case sig.Variadic():
		return invalid("is variadic")
	case sig.TypeParams().Len() > 0 || sig.RecvTypeParams().Len() > 0:
		return invalid("is generic")
	case !accessible(fn, out):
		return invalid("is not exported")
	}
	res := sig.Results()
	switch res.Len() {
	case 1:
	case 2:
		if !shape.IsError(res.At(1).Type()) {
			return invalid("has a second result that is not error")
		}
		d.Fallible = true
	default:
		return invalid("must return a value and an optional error")
	}
	d.Out = res.At(0).Type()
	if shape.IsError(d.Out) {
		return invalid("must return a value and an optional error")
	}
	params := sig.Params()
	if dir == Encode {
		if recv := sig.Recv(); recv != nil {
			if params.Len() != 0 {
				return invalid("takes parameters")
			}
			d.Shape, d.In = EncodeMethod, recv.Type()
			return d
		}
		if params.Len() != 1 {
			return invalid("takes %d parameters, want 1", params.Len())
		}
		d.Shape, d.In = EncodeFunc, params.At(0).Type()
		return d
	}
	if sig.Recv() != nil {
		return invalid("is a method")
	}
	switch n := params.Len(); {
	case n == 0:
		return invalid("takes no parameters")
	case n == 1 && isRows(params.At(0).Type()):
		if !d.Fallible {
			return invalid("reads *sql.Rows but does not return error")
		}
		d.Shape = DecodeCursorFunc
	case n == 1:
		d.Shape, d.In = DecodeColumnFunc, params.At(0).Type()
	default:
		for i := range n {
			if params.At(i).Name() == "" || params.At(i).Name() == "_" {
				return invalid("parameter %d is unnamed", i)
			}
		}
		d.Shape = DecodeRowFunc
	}
	return d
}

func isRows(t types.Type) bool {
	p, ok := types.Unalias(t).(*types.Pointer)
	return ok && shape.Is(p.Elem(), "database/sql", "Rows")
}

// accessible reports whether generated code in package out may refer to
// obj.
func accessible(obj types.Object, out *types.Package) bool {
	return obj.Exported() || obj.Pkg() == nil || out != nil && obj.Pkg().Path() == out.Path()
}
