package glob

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(rel), 0644))
}

func TestNewDeduplicates(t *testing.T) {
	s, err := New(
		"./public/**/*.js",
		"public/**/*.js",
		"./public/**/*.js",
		"!./public/**/*.spec.js",
		"!public/**/*.spec.js",
		"",
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"public/**/*.js"}, s.Include())
	assert.Equal(t, []string{"public/**/*.spec.js"}, s.Exclude())
	assert.Equal(t, []string{"public/**/*.js", "!public/**/*.spec.js"}, s.Patterns())
}

func TestNewInvalidPattern(t *testing.T) {
	_, err := New("public/[abc")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "public/**", Normalize("./public/"))
	assert.Equal(t, "public/scss/main.scss", Normalize("./public/scss/main.scss"))
	assert.Equal(t, "views/**/*.*", Normalize("views/**/*.*"))
}

func TestMatches(t *testing.T) {
	s := MustNew("./public/scss/**/*.scss", "views/**/*.*", "!./public/scss/main.scss")

	tests := []struct {
		path string
		want bool
	}{
		{"public/scss/partials/_nav.scss", true},
		{"./public/scss/bootstrap.scss", true},
		{"public/scss/main.scss", false},
		{"views/layout.ejs", true},
		{"routes/index.js", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Matches(tt.path))
		})
	}
}

func TestBases(t *testing.T) {
	s := MustNew("./public/scss/**/*.scss", "views/**/*.*", "*.js", "public/scss/main.scss")
	assert.Equal(t, []string{".", "public/scss", "views"}, s.Bases())
}

func TestExpand(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "public/app/a.js")
	writeFile(t, root, "public/app/nested/b.js")
	writeFile(t, root, "public/app/a.spec.js")
	writeFile(t, root, "public/app/readme.md")

	s := MustNew("public/**/*.js", "public/app/**/*.js", "!public/**/*.spec.js")
	matches, err := s.Expand(root)
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, filepath.Join(root, "public", "app", "a.js"), matches[0].Path)
	assert.Equal(t, filepath.Join(root, "public"), matches[0].Base)
	assert.Equal(t, filepath.Join("app", "a.js"), matches[0].Rel)
	assert.Equal(t, filepath.Join("app", "nested", "b.js"), matches[1].Rel)
}

func TestExpandLiteralPattern(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "public/scss/main.scss")

	matches, err := MustNew("./public/scss/main.scss").Expand(root)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "main.scss", matches[0].Rel)
}

func TestExpandNoMatches(t *testing.T) {
	matches, err := MustNew(".tmp/**/*.css").Expand(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRelative(t *testing.T) {
	root := t.TempDir()
	assert.Equal(t, "public/css/app.css", Relative(root, filepath.Join(root, "public", "css", "app.css")))
	assert.Equal(t, "public/css/app.css", Relative(root, "./public/css/app.css"))
}
