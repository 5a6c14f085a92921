package ingest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerplexity_MissingDirectory(t *testing.T) {
	docs := collect(t, NewPerplexityProducer(t.TempDir()))
	assert.Empty(t, docs)
}

func TestPerplexity_MarkdownWithHeading(t *testing.T) {
	vault := t.TempDir()
	writeFile(t, filepath.Join(vault, "perplexity", "research.md"),
		"# Quarterly fox census\n\nPopulation is stable.\n")

	docs := collect(t, NewPerplexityProducer(vault))

	require.Len(t, docs, 1)
	assert.Equal(t, "perplexity", docs[0].Source)
	assert.Equal(t, "perplexity/research.md", docs[0].Path)
	assert.Equal(t, "Quarterly fox census", docs[0].Title)
	assert.Equal(t, "# Quarterly fox census\n\nPopulation is stable.", docs[0].Content)
}

func TestPerplexity_HeadingBelowTopStillCounts(t *testing.T) {
	vault := t.TempDir()
	writeFile(t, filepath.Join(vault, "perplexity", "notes.md"),
		"intro paragraph\n\n# Later heading\nbody\n")

	docs := collect(t, NewPerplexityProducer(vault))
	require.Len(t, docs, 1)
	assert.Equal(t, "Later heading", docs[0].Title)
}

func TestPerplexity_TextWithoutHeading(t *testing.T) {
	vault := t.TempDir()
	writeFile(t, filepath.Join(vault, "perplexity", "notes.txt"), "just plain text\n")

	docs := collect(t, NewPerplexityProducer(vault))
	require.Len(t, docs, 1)
	assert.Equal(t, "Perplexity export: notes.txt", docs[0].Title)
	assert.Equal(t, "just plain text", docs[0].Content)
}

func TestPerplexity_IgnoresOtherExtensions(t *testing.T) {
	vault := t.TempDir()
	writeFile(t, filepath.Join(vault, "perplexity", "image.png"), "binary")
	writeFile(t, filepath.Join(vault, "perplexity", "nested", "deep.md"), "# Deep")

	docs := collect(t, NewPerplexityProducer(vault))
	require.Len(t, docs, 1)
	assert.Equal(t, "perplexity/nested/deep.md", docs[0].Path)
}
