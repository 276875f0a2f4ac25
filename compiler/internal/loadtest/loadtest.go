// Package loadtest loads the fixture packages under testdata for tests of
// the compiler packages.
package loadtest

import (
	"go/types"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"
)

// Path is the import path prefix of the fixture packages.
const Path = "github.com/syssam/daogen/compiler/internal/loadtest/testdata/"

// Mode is the load mode the fixtures are loaded with.
const Mode = packages.NeedName | packages.NeedTypes | packages.NeedTypesInfo |
	packages.NeedSyntax | packages.NeedImports | packages.NeedDeps | packages.NeedFiles

var cache sync.Map // name -> *packages.Package

// Load loads the fixture package testdata/<name>, once per test binary.
func Load(t testing.TB, name string) *packages.Package {
	t.Helper()
	if pkg, ok := cache.Load(name); ok {
		return pkg.(*packages.Package)
	}
	pkgs, err := packages.Load(&packages.Config{Mode: Mode}, Path+name)
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	require.Empty(t, pkgs[0].Errors, "loading %s", name)
	pkg, _ := cache.LoadOrStore(name, pkgs[0])
	return pkg.(*packages.Package)
}

// Type returns the type declared as name in pkg.
func Type(t testing.TB, pkg *packages.Package, name string) types.Type {
	t.Helper()
	obj := pkg.Types.Scope().Lookup(name)
	require.NotNil(t, obj, "%s is not declared in %s", name, pkg.PkgPath)
	return obj.Type()
}

// Func returns the function or method name of pkg. Methods are named
// "Type.Method".
func Func(t testing.TB, pkg *packages.Package, name string) *types.Func {
	t.Helper()
	for i := range len(name) {
		if name[i] != '.' {
			continue
		}
		typ := Type(t, pkg, name[:i])
		obj, _, _ := types.LookupFieldOrMethod(typ, true, pkg.Types, name[i+1:])
		fn, ok := obj.(*types.Func)
		require.True(t, ok, "%s is not a method", name)
		return fn
	}
	fn, ok := pkg.Types.Scope().Lookup(name).(*types.Func)
	require.True(t, ok, "%s is not a function", name)
	return fn
}
