package gen

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/tools/imports"
)

// render renders f and formats it with goimports.
func render(f *File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.JenFile().Render(&buf); err != nil {
		return nil, NewGenerationError(f.Impl.Repo.Name, f.Path, "render", err)
	}
	formatted, err := imports.Process(f.Path, buf.Bytes(), nil)
	if err != nil {
		// Keep the unformatted source next to the target for debugging
		// (errors intentionally ignored as we're already in error state).
		debugPath := f.Path + ".error"
		_ = os.MkdirAll(filepath.Dir(debugPath), 0o755)
		_ = os.WriteFile(debugPath, buf.Bytes(), 0o644)
		return nil, NewGenerationError(f.Impl.Repo.Name, f.Path, fmt.Sprintf("format (unformatted written to %s)", debugPath), err)
	}
	return formatted, nil
}

// writeFile renders f and writes it to disk.
func writeFile(f *File) error {
	src, err := render(f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return NewGenerationError(f.Impl.Repo.Name, f.Path, "create directory", err)
	}
	if err := os.WriteFile(f.Path, src, 0o644); err != nil {
		return NewGenerationError(f.Impl.Repo.Name, f.Path, "write", err)
	}
	return nil
}

// headerLines strips comment markers from a configured header so that
// both "// Code generated" and "Code generated" are accepted.
func headerLines(h string) []string {
	lines := strings.Split(strings.TrimSpace(h), "\n")
	for i, l := range lines {
		l = strings.TrimSpace(l)
		l = strings.TrimPrefix(l, "//")
		lines[i] = strings.TrimPrefix(l, " ")
	}
	return lines
}
