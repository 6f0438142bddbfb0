// Package walker discovers source files for indexing. Exclusions come from
// a .loreignore file of doublestar glob patterns at the project root, or a
// built-in default set when none exists.
package walker

import (
	"bufio"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FileInfo describes a discovered source file.
type FileInfo struct {
	Path    string
	RelPath string
	Size    int64
}

// maxFileSize is the largest file considered for indexing (1 MB).
const maxFileSize = 1 << 20

// IgnoreFile is the name of the per-project exclusion file.
const IgnoreFile = ".loreignore"

var defaultPatterns = []string{
	"**/.git/**",
	"**/.svn/**",
	"**/.hg/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/.idea/**",
	"**/.vscode/**",
	"**/.lore/**",
	"**/dist/**",
	"**/build/**",
}

// ignoreSet holds compiled-in-spirit glob patterns. A path is excluded when
// any pattern matches its slash-relative form.
type ignoreSet struct {
	patterns []string
}

func (s ignoreSet) excluded(rel string, isDir bool) bool {
	// Directories match both "dir" style patterns and "dir/**" contents
	// patterns, so a matching directory prunes its whole subtree.
	candidates := []string{rel}
	if isDir {
		candidates = append(candidates, rel+"/")
	}
	for _, p := range s.patterns {
		for _, c := range candidates {
			if ok, err := doublestar.Match(p, c); err == nil && ok {
				return true
			}
		}
		if isDir {
			if ok, err := doublestar.Match(p, rel+"/x"); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// loadIgnoreSet reads IgnoreFile under root. Blank lines and # comments are
// skipped. Bare directory names are widened to match at any depth.
func loadIgnoreSet(root string) ignoreSet {
	f, err := os.Open(filepath.Join(root, IgnoreFile))
	if err != nil {
		return ignoreSet{patterns: defaultPatterns}
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.ContainsAny(line, "*?[") && !strings.Contains(line, "/") {
			// A bare name like "testdata" means that directory or file
			// anywhere in the tree.
			patterns = append(patterns, line, "**/"+line, "**/"+line+"/**", line+"/**")
			continue
		}
		patterns = append(patterns, line)
	}
	if len(patterns) == 0 {
		return ignoreSet{patterns: defaultPatterns}
	}
	return ignoreSet{patterns: patterns}
}

// Walk returns the source files under root whose extension is in
// allowedExts, excluding ignored paths, symlinks, and empty or oversized
// files. It stops with ctx.Err() when the context is canceled.
func Walk(ctx context.Context, root string, allowedExts map[string]bool) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	ignores := loadIgnoreSet(absRoot)

	var files []FileInfo
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == absRoot {
			return nil
		}

		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if ignores.excluded(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if ignores.excluded(rel, false) {
			return nil
		}

		ext := strings.TrimPrefix(filepath.Ext(path), ".")
		if !allowedExts[ext] {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		if info.Size() == 0 || info.Size() > maxFileSize {
			return nil
		}

		files = append(files, FileInfo{Path: path, RelPath: rel, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
