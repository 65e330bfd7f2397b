package gaps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/fortitude/engine/models"
)

func TestDetector_TODOComment(t *testing.T) {
	d := New(DefaultConfig())
	content := FileContent{
		Path: "x.go",
		Lines: []string{
			"package x",
			"",
			"// TODO: Implement async error handling",
			"func Foo() {}",
		},
	}
	gaps := d.AnalyzeContent(content)
	require.NotEmpty(t, gaps)
	found := false
	for _, g := range gaps {
		if g.GapType == models.GapTodoComment {
			found = true
			assert.Contains(t, g.Description, "Implement async error handling")
			assert.Equal(t, 3, g.Line)
		}
	}
	assert.True(t, found)
}

func TestDetector_MissingDocumentation(t *testing.T) {
	d := New(DefaultConfig())
	content := FileContent{
		Path:  "x.go",
		Lines: []string{"package x", "func PublicFunc() {}"},
	}
	gaps := d.AnalyzeContent(content)
	require.Len(t, gaps, 1)
	assert.Equal(t, models.GapMissingDocumentation, gaps[0].GapType)
}

func TestDetector_DocumentedPublicFuncWithGoodDoc_NoGap(t *testing.T) {
	d := New(DefaultConfig())
	content := FileContent{
		Path: "x.go",
		Lines: []string{
			"package x",
			"// PublicFunc does the thing. Example: PublicFunc() returns nil.",
			"// Params: none.",
			"func PublicFunc() {}",
		},
	}
	gaps := d.AnalyzeContent(content)
	for _, g := range gaps {
		assert.NotEqual(t, models.GapAPIDocumentationGap, g.GapType)
		assert.NotEqual(t, models.GapMissingDocumentation, g.GapType)
	}
}

func TestDetector_UndocumentedTechnology(t *testing.T) {
	d := New(DefaultConfig())
	content := FileContent{
		Path: "x.go",
		Lines: []string{
			"package x",
			`import "github.com/some/library"`,
		},
	}
	gaps := d.AnalyzeContent(content)
	require.Len(t, gaps, 1)
	assert.Equal(t, models.GapUndocumentedTechnology, gaps[0].GapType)
	assert.Equal(t, "library", gaps[0].Metadata["name"])
}

func TestDetector_DedupesSameFileLine_KeepsHighestConfidence(t *testing.T) {
	gs := dedupeByLine([]models.DetectedGap{
		{FilePath: "a.go", Line: 1, Confidence: 0.5, Description: "low"},
		{FilePath: "a.go", Line: 1, Confidence: 0.9, Description: "high"},
	})
	require.Len(t, gs, 1)
	assert.Equal(t, "high", gs[0].Description)
}

func TestIsBinary(t *testing.T) {
	assert.True(t, isBinary([]byte{0x00, 0x01, 0x02}))
	assert.False(t, isBinary([]byte("hello world")))
}
