package convert

import (
	"fmt"
	"go/token"
	"go/types"
	"testing"

	"github.com/dave/jennifer/jen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"

	"github.com/syssam/daogen/compiler/internal/loadtest"
	"github.com/syssam/daogen/compiler/nullness"
)

var outPkg = types.NewPackage("example.com/store", "store")

func newStore(t *testing.T) (*CompositeStore, *packages.Package) {
	t.Helper()
	pkg := loadtest.Load(t, "model")
	r := NewRegistry()
	return r.Composite(outPkg, nullness.NewResolver(), pkg.Fset), pkg
}

func render(codes []jen.Code) string {
	return fmt.Sprintf("%#v", jen.Block(codes...))
}

func TestBuiltins(t *testing.T) {
	c, pkg := newStore(t)
	for _, typ := range []types.Type{
		types.Typ[types.String],
		types.Typ[types.Int64],
		types.Universe.Lookup("byte").Type(),
		types.NewSlice(types.Typ[types.Byte]),
		loadtest.Type(t, pkg, "User").Underlying().(*types.Struct).Field(5).Type(), // time.Time
		loadtest.Type(t, pkg, "User").Underlying().(*types.Struct).Field(6).Type(), // uuid.UUID
	} {
		enc := c.Encoder(nil, TypeKey(typ))
		require.True(t, Usable(enc), "%s: %s", TypeString(typ), enc.Messages())
		assert.IsType(t, &NativeEncoder{}, enc)
		dec := c.Decoder(nil, TypeKey(typ))
		require.True(t, Usable(dec), TypeString(typ))
		assert.IsType(t, &NativeDecoder{}, dec)
		assert.True(t, types.Identical(typ, dec.Type()))
	}
	assert.Zero(t, c.Scans())
}

func TestResolve(t *testing.T) {
	c, pkg := newStore(t)
	typ := func(name string) types.Type { return loadtest.Type(t, pkg, name) }

	t.Run("Memoized", func(t *testing.T) {
		c, _ := newStore(t)
		enc := c.Encoder(nil, TypeKey(typ("User")))
		require.True(t, Usable(enc), enc.Messages().String())
		scans := c.Scans()
		assert.Positive(t, scans)
		assert.Same(t, enc, c.Encoder(nil, TypeKey(typ("User"))))
		assert.Equal(t, scans, c.Scans())
	})

	t.Run("Row", func(t *testing.T) {
		enc := c.Encoder(nil, TypeKey(typ("User")))
		row, ok := enc.(*RowEncoder)
		require.True(t, ok, "%T", enc)
		assert.Equal(t, Row, row.Capability())
		assert.Equal(t, []string{"id", "name", "email", "status", "joined_at", "external_key"}, row.Columns())
		f, ok := row.field("email")
		require.True(t, ok)
		assert.Equal(t, nullness.Nullable, f.flag)

		dec := c.Decoder(nil, TypeKey(typ("User")))
		require.IsType(t, &RowDecoder{}, dec)
		assert.Equal(t, row.Columns(), dec.(*RowDecoder).Columns())
	})

	t.Run("Owner", func(t *testing.T) {
		r := NewRegistry()
		local := r.Composite(pkg.Types, nil, pkg.Fset)
		local.Encoder(nil, TypeKey(typ("Email")))
		_, ok := local.Local.Get(Encode, TypeKey(typ("Email")))
		assert.True(t, ok)
		_, ok = local.Global.Get(Encode, TypeKey(typ("Email")))
		assert.False(t, ok)

		global := r.Composite(outPkg, nil, nil)
		global.Encoder(nil, TypeKey(types.NewPointer(typ("UserID"))))
		_, ok = global.Global.Get(Encode, TypeKey(types.NewPointer(typ("UserID"))))
		assert.True(t, ok)
	})

	t.Run("Cycle", func(t *testing.T) {
		enc := c.Encoder(nil, TypeKey(typ("Node")))
		assert.False(t, Usable(enc))
		assert.True(t, enc.Messages().Contains("conversion cycle: model.Node -> *model.Node -> model.Node"), enc.Messages().String())

		dec := c.Decoder(nil, TypeKey(typ("A")))
		assert.False(t, Usable(dec))
		assert.True(t, dec.Messages().Contains("conversion cycle: model.A -> model.B -> *model.A -> model.A"), dec.Messages().String())
		// The intermediate type is cached as a failure too.
		assert.False(t, Usable(c.Decoder(nil, TypeKey(typ("B")))))
	})

	t.Run("Wrapper", func(t *testing.T) {
		enc := c.Encoder(nil, TypeKey(typ("Email")))
		require.IsType(t, &WrapperEncoder{}, enc)
		assert.Equal(t, Column, enc.Capability())
		require.IsType(t, &WrapperDecoder{}, c.Decoder(nil, TypeKey(typ("Email"))))

		enc = c.Encoder(nil, TypeKey(typ("Maybe")))
		assert.True(t, enc.Messages().Contains("single-field wrapper model.Maybe: field V is nullable"), enc.Messages().String())
	})

	t.Run("Enum", func(t *testing.T) {
		enc := c.Encoder(nil, TypeKey(typ("Status")))
		require.IsType(t, &EnumEncoder{}, enc)
		var names []string
		for _, k := range enc.(*EnumEncoder).consts {
			names = append(names, k.Name())
		}
		assert.Equal(t, []string{"Active", "Suspended", "Deleted"}, names)
		require.IsType(t, &EnumDecoder{}, c.Decoder(nil, TypeKey(typ("Status"))))
	})

	t.Run("Conversion", func(t *testing.T) {
		enc := c.Encoder(nil, TypeKey(typ("UserID")))
		require.IsType(t, &NativeEncoder{}, enc)
		assert.Equal(t, "conversion model.UserID -> int64", enc.String())
		dec := c.Decoder(nil, TypeKey(typ("Temp")))
		require.IsType(t, &NativeDecoder{}, dec)
		assert.True(t, types.Identical(types.Typ[types.Float64], dec.(*NativeDecoder).source()))
	})

	t.Run("Optional", func(t *testing.T) {
		enc := c.Encoder(nil, TypeKey(typ("Profile")))
		require.IsType(t, &RowEncoder{}, enc)
		f, ok := enc.(*RowEncoder).field("nickname")
		require.True(t, ok)
		assert.Equal(t, nullness.OptionalWrapper, f.flag)
		require.IsType(t, &OptionalEncoder{}, f.enc)
		assert.Equal(t, "String", f.enc.(*OptionalEncoder).value)
		f, _ = enc.(*RowEncoder).field("score")
		assert.Equal(t, "V", f.enc.(*OptionalEncoder).value)
	})

	t.Run("Delegates", func(t *testing.T) {
		enc := c.Encoder(nil, TypeKey(typ("Hex")))
		require.IsType(t, &DelegateEncoder{}, enc)
		assert.Equal(t, EncodeMethod, enc.(*DelegateEncoder).d.Shape)
		assert.False(t, enc.Fallible())

		dec := c.Decoder(nil, TypeKey(typ("Hex")))
		require.IsType(t, &DelegateDecoder{}, dec)
		assert.True(t, dec.Fallible())

		enc = c.Encoder(nil, TypeKey(typ("Code")))
		require.True(t, Usable(enc), enc.Messages().String())
		assert.True(t, enc.Fallible())

		dec = c.Decoder(nil, TypeKey(typ("Point")))
		require.IsType(t, &RowDelegateDecoder{}, dec)
		assert.Equal(t, Row, dec.Capability())

		dec = c.Decoder(nil, TypeKey(typ("Tally")))
		require.IsType(t, &CursorDecoder{}, dec)
		assert.Equal(t, Row, dec.Capability())
	})

	t.Run("TooMany", func(t *testing.T) {
		dec := c.Decoder(nil, TypeKey(typ("Ambig")))
		assert.True(t, dec.Messages().Contains("too many decoders for model.Ambig: model.NewAmbig, model.ParseAmbig"), dec.Messages().String())
	})

	t.Run("NotFound", func(t *testing.T) {
		enc := c.Encoder(nil, TypeKey(typ("Lonely")))
		assert.True(t, enc.Messages().Contains("no encoder for model.Lonely: field x of model.Lonely is not exported"), enc.Messages().String())
		assert.True(t, enc.Messages().HasErrors())
		enc = c.Encoder(nil, TypeKey(typ("Point")))
		assert.False(t, Usable(enc))
	})

	t.Run("Pointer", func(t *testing.T) {
		enc := c.Encoder(nil, TypeKey(types.NewPointer(typ("Email"))))
		require.IsType(t, &PointerEncoder{}, enc)
		assert.Equal(t, Column, enc.Capability())
		dec := c.Decoder(nil, TypeKey(types.NewPointer(typ("User"))))
		require.IsType(t, &PointerDecoder{}, dec)
		assert.Equal(t, Row, dec.Capability())
	})
}

func TestRegistry(t *testing.T) {
	pkg := loadtest.Load(t, "model")
	fn := func(name string) *types.Func { return loadtest.Func(t, pkg, name) }
	r := NewRegistry()
	msgs := r.Declare(pkg.Types, []Annotation{
		{Dir: Encode, Func: fn("EncodeMoney")},
		{Dir: Decode, Func: fn("DecodeMoney")},
		{Dir: Encode, Name: "upper", Func: fn("Upper")},
		{Dir: Encode, Func: fn("DupA")},
		{Dir: Encode, Func: fn("DupB")},
		{Dir: Encode, Func: fn("Variadic"), Pos: token.Position{Filename: "model.go", Line: 9}},
	})
	assert.True(t, msgs.Contains("too many annotated encoders for model.Dup: model.DupA, model.DupB"), msgs.String())
	assert.True(t, msgs.Contains("encoder model.Variadic: is variadic"), msgs.String())

	c := r.Composite(outPkg, nil, nil)
	typ := func(name string) types.Type { return loadtest.Type(t, pkg, name) }

	t.Run("Annotated", func(t *testing.T) {
		enc := c.Encoder(nil, TypeKey(typ("Money")))
		require.IsType(t, &DelegateEncoder{}, enc)
		assert.Equal(t, "delegate model.EncodeMoney", enc.String())
		dec := c.Decoder(nil, TypeKey(typ("Money")))
		require.IsType(t, &DelegateDecoder{}, dec)
		assert.Zero(t, c.Scans())
	})

	t.Run("Precedence", func(t *testing.T) {
		// Dup.String is structurally eligible, but the annotations win.
		enc := c.Encoder(nil, TypeKey(typ("Dup")))
		assert.True(t, enc.Messages().Contains("too many annotated encoders"), enc.Messages().String())
	})

	t.Run("Named", func(t *testing.T) {
		str := types.Typ[types.String]
		enc := c.Encoder(nil, Key{Name: "upper", Type: str})
		require.IsType(t, &DelegateEncoder{}, enc)

		enc = c.Encoder(nil, Key{Name: "upper", Type: typ("UserID")})
		assert.True(t, enc.Messages().Contains(`encoder "upper" has wrong type: model.UserID is not assignable to string`), enc.Messages().String())

		enc = c.Encoder(nil, Key{Name: "lower", Type: str})
		assert.True(t, enc.Messages().Contains(`encoder "lower" not found`))

		// Named lookups are not cached by type.
		_, ok := c.Global.Get(Encode, TypeKey(str))
		assert.False(t, ok)
	})

	t.Run("DeclaredTwice", func(t *testing.T) {
		r := NewRegistry()
		msgs := r.Declare(pkg.Types, []Annotation{
			{Dir: Encode, Name: "upper", Func: fn("Upper")},
			{Dir: Encode, Name: "upper", Func: fn("EncodeMoney")},
		})
		assert.True(t, msgs.Contains(`encoder "upper" is declared more than once`))
		enc := r.Composite(outPkg, nil, nil).Encoder(nil, Key{Name: "upper", Type: types.Typ[types.String]})
		assert.False(t, Usable(enc))
	})
}

func TestClassifyDelegate(t *testing.T) {
	pkg := loadtest.Load(t, "model")
	tests := []struct {
		fn     string
		dir    Direction
		shape  DelegateShape
		reason string
	}{
		{"ParseHex", Decode, DecodeColumnFunc, ""},
		{"NewPoint", Decode, DecodeRowFunc, ""},
		{"NewTally", Decode, DecodeCursorFunc, ""},
		{"EncodeMoney", Encode, EncodeFunc, ""},
		{"Hex.String", Encode, EncodeMethod, ""},
		{"Code.Int64", Encode, EncodeMethod, ""},
		{"Variadic", Encode, Invalid, "is variadic"},
		{"Hex.String", Decode, Invalid, "is a method"},
		{"Upper", Decode, DecodeColumnFunc, ""},
	}
	for _, tt := range tests {
		t.Run(tt.fn+"/"+tt.dir.String(), func(t *testing.T) {
			d := ClassifyDelegate(loadtest.Func(t, pkg, tt.fn), tt.dir, outPkg)
			assert.Equal(t, tt.shape, d.Shape, d.String())
			assert.Equal(t, tt.reason, d.Reason)
		})
	}

	t.Run("Unexported", func(t *testing.T) {
		fn := types.NewFunc(token.NoPos, pkg.Types, "decode", types.NewSignatureType(nil, nil, nil,
			types.NewTuple(types.NewVar(token.NoPos, nil, "s", types.Typ[types.String])),
			types.NewTuple(types.NewVar(token.NoPos, nil, "", types.Typ[types.Int])), false))
		assert.Equal(t, "is not exported", ClassifyDelegate(fn, Decode, outPkg).Reason)
		assert.Equal(t, DecodeColumnFunc, ClassifyDelegate(fn, Decode, pkg.Types).Shape)
	})

	t.Run("SecondResult", func(t *testing.T) {
		fn := types.NewFunc(token.NoPos, pkg.Types, "Decode", types.NewSignatureType(nil, nil, nil,
			types.NewTuple(types.NewVar(token.NoPos, nil, "s", types.Typ[types.String])),
			types.NewTuple(
				types.NewVar(token.NoPos, nil, "", types.Typ[types.Int]),
				types.NewVar(token.NoPos, nil, "", types.Typ[types.Bool]),
			), false))
		assert.Equal(t, "has a second result that is not error", ClassifyDelegate(fn, Decode, outPkg).Reason)
	})
}
