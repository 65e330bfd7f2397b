package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_ExcludesDirAncestor(t *testing.T) {
	f := newFilter(Config{
		IncludeGlobs: []string{"*"},
		ExcludeDirs:  []string{"vendor", ".git"},
	})

	assert.False(t, f.Allowed("project/vendor/pkg/file.go"))
	assert.False(t, f.Allowed(".git/HEAD"))
	assert.True(t, f.Allowed("project/pkg/file.go"))
}

func TestFilter_ExcludeGlobWins(t *testing.T) {
	f := newFilter(Config{
		IncludeGlobs: []string{"*.go"},
		ExcludeGlobs: []string{"*_test.go"},
	})

	assert.True(t, f.Allowed("foo.go"))
	assert.False(t, f.Allowed("foo_test.go"))
	assert.False(t, f.Allowed("foo.md"))
}

func TestFilter_PrefixGlob(t *testing.T) {
	f := newFilter(Config{IncludeGlobs: []string{"internal/*"}})
	assert.True(t, f.Allowed("internal/x.go"))
	assert.False(t, f.Allowed("other/x.go"))
}
