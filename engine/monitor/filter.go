package monitor

import (
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// filter compiles a Config's include/exclude globs once and answers whether
// a path should be observed, §4.1 step 2.
type filter struct {
	include     []glob.Glob
	exclude     []glob.Glob
	excludeDirs []string
}

func newFilter(cfg Config) *filter {
	f := &filter{excludeDirs: append([]string(nil), cfg.ExcludeDirs...)}
	for _, pattern := range cfg.IncludeGlobs {
		if g, err := compileGlob(pattern); err == nil {
			f.include = append(f.include, g)
		}
	}
	for _, pattern := range cfg.ExcludeGlobs {
		if g, err := compileGlob(pattern); err == nil {
			f.exclude = append(f.exclude, g)
		}
	}
	return f
}

// compileGlob normalizes the spec's glob dialect (`*`, `*.ext`, `prefix/*`,
// exact literals) onto gobwas/glob, which otherwise treats `/` as a regular
// character — exactly what the exact-literal and prefix forms need.
func compileGlob(pattern string) (glob.Glob, error) {
	return glob.Compile(pattern, '/')
}

// Allowed reports whether path should reach the Gap Detector: it must not
// lie under an excluded directory ancestor, must not match any exclude glob,
// and must match at least one include glob.
func (f *filter) Allowed(path string) bool {
	clean := filepath.ToSlash(path)
	for _, dir := range f.excludeDirs {
		if underDir(clean, dir) {
			return false
		}
	}
	for _, g := range f.exclude {
		if g.Match(clean) || g.Match(filepath.Base(clean)) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, g := range f.include {
		if g.Match(clean) || g.Match(filepath.Base(clean)) {
			return true
		}
	}
	return false
}

// underDir reports whether path has dir as a path-component ancestor
// anywhere along its length, not merely as a string prefix.
func underDir(path, dir string) bool {
	if dir == "" {
		return false
	}
	parts := strings.Split(path, "/")
	for _, p := range parts {
		if p == dir {
			return true
		}
	}
	return false
}
