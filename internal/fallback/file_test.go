package fallback

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/shelfwise/internal/logger"
)

const sampleContent = `
- title: Middlemarch
  author: George Eliot
  enrichment:
    themes: [marriage, ambition]
    mood: reflective
    narrativeStyle: omniscient
    similarBooks: [North and South]
    analysis: A study of provincial life.
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestFileProvider_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.yaml")
	writeFile(t, path, sampleContent)

	p, err := NewFileProvider(path, logger.Discard())
	require.NoError(t, err)
	defer p.Close()

	got, ok := p.Lookup("Middlemarch", "George Eliot")
	require.True(t, ok)
	assert.Equal(t, "A study of provincial life.", got.Analysis)
	assert.Equal(t, "omniscient", got.NarrativeStyle)
	assert.Equal(t, []string{"marriage", "ambition"}, got.Themes)
	assert.Equal(t, []string{"North and South"}, got.SimilarBooks)
}

func TestFileProvider_MissingFile(t *testing.T) {
	p, err := NewFileProvider(filepath.Join(t.TempDir(), "absent.yaml"), logger.Discard())
	require.NoError(t, err)
	defer p.Close()

	assert.Zero(t, p.Len())
}

func TestFileProvider_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.yaml")
	writeFile(t, path, "- title: [unclosed")

	_, err := NewFileProvider(path, logger.Discard())
	assert.Error(t, err)
}

func TestFileProvider_ReloadKeepsEntriesOnParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.yaml")
	writeFile(t, path, sampleContent)

	p, err := NewFileProvider(path, logger.Discard())
	require.NoError(t, err)
	defer p.Close()

	writeFile(t, path, "- title: [unclosed")
	assert.Error(t, p.Reload())
	assert.Equal(t, 1, p.Len())
}

func TestFileProvider_WatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.yaml")

	p, err := NewFileProvider(path, logger.Discard())
	require.NoError(t, err)
	p.settle = 10 * time.Millisecond
	require.NoError(t, p.Watch())
	defer p.Close()

	assert.Zero(t, p.Len())
	writeFile(t, path, sampleContent)

	assert.Eventually(t, func() bool {
		_, ok := p.Lookup("Middlemarch", "George Eliot")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFileProvider_CloseIsIdempotent(t *testing.T) {
	p, err := NewFileProvider(filepath.Join(t.TempDir(), "x.yaml"), logger.Discard())
	require.NoError(t, err)
	require.NoError(t, p.Watch())

	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
}
