package load

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/daogen/compiler/convert"
	"github.com/syssam/daogen/compiler/nullness"
)

func loadOne(t *testing.T, cfg *LoadConfig, pattern string) *Package {
	t.Helper()
	pkgs, err := cfg.Load(pattern)
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	return pkgs[0]
}

func TestLoad(t *testing.T) {
	pkg := loadOne(t, &LoadConfig{}, "./testdata/valid")
	assert.Equal(t, "valid", pkg.Name)
	assert.True(t, pkg.Diagnostics.IsEmpty(), pkg.Diagnostics.String())
	assert.Equal(t, nullness.Marked, pkg.Default)
	require.Len(t, pkg.Repositories, 1)

	repo := pkg.Repositories[0]
	assert.Equal(t, "UserStore", repo.Name)
	assert.Equal(t, Config{"fetch_size": "50", "timeout": "2s"}, repo.Config)
	require.Len(t, repo.Methods, 4)

	t.Run("Query", func(t *testing.T) {
		m := repo.Methods[0]
		assert.Equal(t, "Find", m.Name)
		assert.Equal(t, KindQuery, m.Kind)
		assert.Equal(t, "SELECT id, name, email\nFROM users WHERE id = :id", m.SQL)
		assert.Equal(t, "UserStore.Find", m.Op(repo))
		assert.True(t, m.Diagnostics.IsEmpty(), m.Diagnostics.String())
		assert.Equal(t, 2, m.Sig.Params().Len())
	})

	t.Run("Exec", func(t *testing.T) {
		m := repo.Methods[1]
		assert.Equal(t, KindExec, m.Kind)
		assert.True(t, m.Keys)
		assert.Equal(t, nullness.MarkNullable, m.Marks["return"])
	})

	t.Run("Overrides", func(t *testing.T) {
		m := repo.Methods[2]
		assert.Equal(t, Config{"max_rows": "10", "no_rows": "null"}, m.Config)
		assert.Equal(t, nullness.MarkNonNull, m.Marks["ids[]"])
		assert.Equal(t, nullness.Unmarked, m.Default)
		// The method scope overrides the package default.
		r := nullness.NewResolver()
		pkg.Register(r)
		ptr := repo.Methods[0].Sig.Results().At(0).Type()
		assert.Equal(t, nullness.NonNull, r.FlagOf(repo.Methods[0].Scope, nullness.Occurrence{Type: ptr}))
		assert.Equal(t, nullness.Unspecified, r.FlagOf(m.Scope, nullness.Occurrence{Type: ptr}))
	})

	t.Run("Use", func(t *testing.T) {
		assert.Equal(t, map[string]string{"name": "upper"}, repo.Methods[3].Use)
	})

	t.Run("Annotations", func(t *testing.T) {
		require.Len(t, pkg.Annotations, 2)
		assert.Equal(t, convert.Encode, pkg.Annotations[0].Dir)
		assert.Equal(t, "upper", pkg.Annotations[0].Name)
		assert.Equal(t, "Upper", pkg.Annotations[0].Func.Name())
		assert.Equal(t, convert.Decode, pkg.Annotations[1].Dir)
		assert.Empty(t, pkg.Annotations[1].Name)
		assert.Positive(t, pkg.Annotations[1].Pos.Line)
	})

	t.Run("TypeMarks", func(t *testing.T) {
		require.Len(t, pkg.TypeMarks, 1)
		for tn, m := range pkg.TypeMarks {
			assert.Equal(t, "Email", tn.Name())
			assert.Equal(t, nullness.MarkNonNull, m)
		}
	})
}

func TestLoadFailure(t *testing.T) {
	pkg := loadOne(t, &LoadConfig{}, "./testdata/failure")
	msgs := pkg.Diagnostics
	assert.True(t, msgs.Contains("NotAnInterface is not an interface"), msgs.String())
	assert.True(t, msgs.Contains("unknown directive //dao:bogus on type Broken"), msgs.String())
	assert.True(t, msgs.Contains("//dao:encoder takes at most one name"), msgs.String())

	require.Len(t, pkg.Repositories, 1)
	methods := pkg.Repositories[0].Methods
	require.Len(t, methods, 4)
	assert.True(t, methods[0].Diagnostics.Contains("//dao:exec conflicts with //dao:query"))
	assert.True(t, methods[1].Diagnostics.Contains("method NoSQL has no //dao:query, //dao:exec or //dao:batch directive"))
	bad := methods[2].Diagnostics
	assert.True(t, bad.Contains("//dao:nullable: BadTargets has no parameter missing"), bad.String())
	assert.True(t, bad.Contains(`//dao:use: "x" is not target=converter`), bad.String())
	assert.True(t, bad.Contains(`//dao:config: "limit" is not key=value`), bad.String())
	assert.True(t, methods[3].Diagnostics.Contains("method Empty has an empty query statement"))
	for _, m := range bad.Messages() {
		assert.True(t, m.Pos.IsValid())
	}
}

func TestBuildFlags(t *testing.T) {
	pkg := loadOne(t, &LoadConfig{}, "./testdata/buildflags")
	require.Len(t, pkg.Repositories, 2)
	assert.Equal(t, "GroupStore", pkg.Repositories[0].Name)

	pkg = loadOne(t, &LoadConfig{BuildFlags: []string{"-tags", "hidegroups"}}, "./testdata/buildflags")
	require.Len(t, pkg.Repositories, 1)
	assert.Equal(t, "UserStore", pkg.Repositories[0].Name)
}

func TestLoadError(t *testing.T) {
	_, err := (&LoadConfig{}).Load("./testdata/missing")
	require.Error(t, err)
}
