package walker_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lore/internal/walker"
)

var goOnly = map[string]bool{"go": true}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func relPaths(files []walker.FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelPath
	}
	return out
}

func TestWalkFiltersByExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "README.md", "# readme\n")
	writeFile(t, root, "pkg/util.go", "package pkg\n")

	files, err := walker.Walk(context.Background(), root, goOnly)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.go", "pkg/util.go"}, relPaths(files))
}

func TestWalkDefaultIgnores(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "vendor/dep/dep.go", "package dep\n")
	writeFile(t, root, ".git/hooks/hook.go", "package hooks\n")

	files, err := walker.Walk(context.Background(), root, goOnly)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.go"}, relPaths(files))
}

func TestWalkIgnoreFileGlobs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, walker.IgnoreFile, "# generated code\ngen\n**/*_gen.go\n")
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "gen/out.go", "package gen\n")
	writeFile(t, root, "pkg/types_gen.go", "package pkg\n")
	writeFile(t, root, "pkg/types.go", "package pkg\n")

	files, err := walker.Walk(context.Background(), root, goOnly)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.go", "pkg/types.go"}, relPaths(files))
}

func TestWalkSkipsEmptyFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "empty.go", "")
	writeFile(t, root, "full.go", "package main\n")

	files, err := walker.Walk(context.Background(), root, goOnly)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"full.go"}, relPaths(files))
}

func TestWalkHonorsCancellation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := walker.Walk(ctx, root, goOnly)
	assert.ErrorIs(t, err, context.Canceled)
}
