package gen

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syssam/daogen/compiler/diag"
)

// scratchCopy copies the files of testdata/<fixture> into a fresh directory
// under testdata, so the generated file lands inside the module without
// touching the fixture.
func scratchCopy(t *testing.T, fixture string) string {
	t.Helper()
	root, err := os.MkdirTemp("testdata", "run-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(root) })
	dst := filepath.Join(root, fixture)
	require.NoError(t, os.Mkdir(dst, 0o755))
	src := filepath.Join("testdata", fixture)
	entries, err := os.ReadDir(src)
	require.NoError(t, err)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(src, e.Name()))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dst, e.Name()), b, 0o644))
	}
	return "./" + filepath.ToSlash(dst)
}

// TestGeneratedCodeRuns generates each fixture and runs its own tests,
// which call the generated methods against sqlite.
func TestGeneratedCodeRuns(t *testing.T) {
	if testing.Short() {
		t.Skip("builds and runs the generated packages")
	}
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go command not found")
	}
	for _, fixture := range []string{"store", "broken"} {
		t.Run(fixture, func(t *testing.T) {
			pkg := scratchCopy(t, fixture)
			g, err := NewGenerator(WithSink(diag.Discard))
			require.NoError(t, err)
			plan, err := g.Generate(context.Background(), pkg)
			require.NoError(t, err)
			require.Len(t, plan.Files, 1)

			out, err := exec.Command(goBin, "test", "-count=1", "-vet=off", pkg).CombinedOutput()
			require.NoError(t, err, "%s", out)
		})
	}
}
