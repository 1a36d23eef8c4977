package ignore

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// DefaultPatterns is the built-in denylist merged with user patterns: build
// outputs, VCS metadata, dependency caches, and dotfiles.
var DefaultPatterns = []string{
	".*",
	".git/",
	".svn/",
	".hg/",
	"node_modules/",
	"vendor/",
	"dist/",
	"build/",
	"out/",
	"target/",
	"bin/",
	"obj/",
	"__pycache__/",
	".cache/",
	"*.min.js",
	"*.map",
	"*.lock",
}

// Engine filters traversal using gitignore pattern semantics: a trailing "/"
// marks a directory pattern, a pattern without "/" matches a basename at any
// depth, and patterns containing "/" are rooted at the codebase root.
type Engine struct {
	matcher  *gitignore.GitIgnore
	patterns []string
}

// New creates an Engine from the default denylist merged with the given user
// patterns. Duplicates are removed; order is defaults first, then user
// patterns in their given order.
func New(userPatterns ...string) *Engine {
	seen := make(map[string]struct{})
	merged := make([]string, 0, len(DefaultPatterns)+len(userPatterns))

	for _, p := range append(append([]string{}, DefaultPatterns...), userPatterns...) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		merged = append(merged, p)
	}

	matcher := gitignore.CompileIgnoreLines(merged...)

	return &Engine{matcher: matcher, patterns: merged}
}

// Patterns returns the merged pattern list.
func (e *Engine) Patterns() []string {
	out := make([]string, len(e.patterns))
	copy(out, e.patterns)
	return out
}

// Matches reports whether the path, relative to the codebase root and using
// "/" separators, is excluded from traversal.
func (e *Engine) Matches(relPath string) bool {
	return e.matcher.MatchesPath(relPath)
}

// Walk traverses root, skipping ignored directories entirely and invoking
// fn for each non-ignored regular file whose lowercase dotted extension is
// in exts. A nil exts admits every file. Relative paths passed to fn always
// use "/" separators. filepath.WalkDir visits directory entries in lexical
// order, so traversal order is deterministic.
func (e *Engine) Walk(root string, exts map[string]bool, fn func(absPath, relPath string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if e.Matches(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		if e.Matches(rel) {
			return nil
		}

		if exts != nil {
			ext := strings.ToLower(filepath.Ext(path))
			if !exts[ext] {
				return nil
			}
		}

		return fn(path, rel)
	})
}
