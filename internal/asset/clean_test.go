package asset

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/forge/internal/glob"
)

func TestCleanEmptyMatchSet(t *testing.T) {
	p := NewPipeline(t.TempDir(), 1, nil)

	removed, err := p.Clean(context.Background(), glob.MustNew("./.tmp/**/*.css"))
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestCleanRemovesMatches(t *testing.T) {
	root := t.TempDir()
	mkfile(t, root, ".tmp/templates.js", "x")
	mkfile(t, root, ".tmp/nested/app.js", "x")
	mkfile(t, root, ".tmp/keep.css", "x")
	mkfile(t, root, "build/index.html", "x")
	mkfile(t, root, "build/js/app.js", "x")

	p := NewPipeline(root, 1, nil)
	removed, err := p.Clean(context.Background(), glob.MustNew(
		"./.tmp/**/*.js",
		"./build/**/*.html",
		"./build/js/**/*.js",
	))
	require.NoError(t, err)

	assert.Len(t, removed, 4)
	assert.NoFileExists(t, filepath.Join(root, ".tmp", "templates.js"))
	assert.NoFileExists(t, filepath.Join(root, "build", "js", "app.js"))
	assert.FileExists(t, filepath.Join(root, ".tmp", "keep.css"))
}
