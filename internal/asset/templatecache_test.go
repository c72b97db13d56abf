package asset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/forge/internal/glob"
)

func TestTemplateCache(t *testing.T) {
	root := t.TempDir()
	mkfile(t, root, "public/app/layout/shell.html", "<div class=\"shell\">\n    <span>Hello</span>\n</div>\n")
	mkfile(t, root, "public/app/home.html", "<section ng-if=\"vm.ready\"></section>")

	p := NewPipeline(root, 1, nil)
	opts := TemplateCacheOptions{Module: "app.core", Root: "app/"}

	report, err := p.TemplateCache(context.Background(), glob.MustNew("./public/**/*.html"), ".tmp/templates.js", opts, NewMinifier())
	require.NoError(t, err)
	assert.Len(t, report.Processed, 2)
	assert.Empty(t, report.Failed)

	data, err := os.ReadFile(filepath.Join(root, ".tmp", "templates.js"))
	require.NoError(t, err)
	out := string(data)

	assert.True(t, strings.HasPrefix(out, `angular.module("app.core").run(["$templateCache", function($templateCache) {`))
	assert.Contains(t, out, `$templateCache.put("app/app/home.html",`)
	assert.Contains(t, out, `$templateCache.put("app/app/layout/shell.html",`)
	assert.Contains(t, out, `ng-if=\"vm.ready\"`)
	assert.True(t, strings.HasSuffix(out, "}]);\n"))
}

func TestTemplateCacheUnchangedIsNotRewritten(t *testing.T) {
	root := t.TempDir()
	mkfile(t, root, "public/a.html", "<p>a</p>")

	p := NewPipeline(root, 1, nil)
	set := glob.MustNew("public/**/*.html")
	opts := TemplateCacheOptions{Module: "app.core"}

	_, err := p.TemplateCache(context.Background(), set, ".tmp/templates.js", opts, NewMinifier())
	require.NoError(t, err)

	second, err := p.TemplateCache(context.Background(), set, ".tmp/templates.js", opts, NewMinifier())
	require.NoError(t, err)
	assert.Len(t, second.Skipped, 1)
}

func TestRenderTemplateCacheStandalone(t *testing.T) {
	out := RenderTemplateCache(TemplateCacheOptions{Module: "templates", Standalone: true}, nil)
	assert.Equal(t, "angular.module(\"templates\", []).run([\"$templateCache\", function($templateCache) {}]);\n", out)
}

func TestJSStringEscapesScriptClose(t *testing.T) {
	assert.NotContains(t, jsString("</script>"), "</script>")
}
