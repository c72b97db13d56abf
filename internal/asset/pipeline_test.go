package asset

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/forge/internal/errors"
	"github.com/conneroisu/forge/internal/glob"
)

func mkfile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

// upper is a fake style compiler: it upper-cases its input and rejects
// files containing "syntax error".
var upper = TransformFunc(func(ctx context.Context, src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if strings.Contains(string(data), "syntax error") {
		return stderrors.New("Invalid CSS after \"a {\"")
	}
	return os.WriteFile(dst, []byte(strings.ToUpper(string(data))), 0644)
})

func TestPipelinePerFileErrorIsolation(t *testing.T) {
	root := t.TempDir()
	mkfile(t, root, "public/scss/main.scss", "a { color: red }")
	mkfile(t, root, "public/scss/broken.scss", "a { syntax error")
	mkfile(t, root, "public/scss/pages/home.scss", "b { color: blue }")

	p := NewPipeline(root, 2, nil)
	report, err := p.Run(context.Background(), Job{
		Name:      "sass",
		Globs:     glob.MustNew("public/scss/**/*.scss"),
		Dest:      "public/css",
		Transform: upper,
		Rename:    ReplaceExt(".css"),
	})
	require.NoError(t, err)

	assert.Len(t, report.Processed, 2)
	require.Len(t, report.Failed, 1)
	assert.False(t, report.OK())
	assert.True(t, errors.IsTransformError(report.Failed[0]))
	assert.Contains(t, report.Failed[0].Error(), "broken.scss")

	out, err := os.ReadFile(filepath.Join(root, "public", "css", "main.css"))
	require.NoError(t, err)
	assert.Equal(t, "A { COLOR: RED }", string(out))
	assert.FileExists(t, filepath.Join(root, "public", "css", "pages", "home.css"))
	assert.NoFileExists(t, filepath.Join(root, "public", "css", "broken.css"))
}

func TestPipelineNewerOnlyIsIdempotent(t *testing.T) {
	root := t.TempDir()
	mkfile(t, root, "src/client/images/logo.png", "png")
	mkfile(t, root, "src/client/images/icons/star.svg", "<svg/>")

	var writes int32
	counting := TransformFunc(func(ctx context.Context, src, dst string) error {
		atomic.AddInt32(&writes, 1)
		return Copy(ctx, src, dst)
	})

	job := Job{
		Name:      "images",
		Globs:     glob.MustNew("./src/client/images/**/*.*"),
		Dest:      "build/images",
		Transform: counting,
		NewerOnly: true,
	}
	p := NewPipeline(root, 4, nil)

	first, err := p.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Len(t, first.Processed, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&writes))

	out := filepath.Join(root, "build", "images", "logo.png")
	before, err := os.Stat(out)
	require.NoError(t, err)

	second, err := p.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Empty(t, second.Processed)
	assert.Len(t, second.Skipped, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&writes))

	after, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())

	// A newer source is processed again.
	future := time.Now().Add(time.Hour)
	src := filepath.Join(root, "src", "client", "images", "logo.png")
	require.NoError(t, os.Chtimes(src, future, future))

	third, err := p.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Len(t, third.Processed, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&writes))
}

func TestPipelineFailedTransformLeavesNoOutput(t *testing.T) {
	root := t.TempDir()
	mkfile(t, root, "src/client/images/logo.png", "png")

	var calls int32
	flaky := TransformFunc(func(ctx context.Context, src, dst string) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			require.NoError(t, os.WriteFile(dst, []byte("trunc"), 0644))
			return stderrors.New("imagemin: killed")
		}
		return os.WriteFile(dst, []byte("good"), 0644)
	})

	job := Job{
		Name:      "images",
		Globs:     glob.MustNew("./src/client/images/**/*.*"),
		Dest:      "build/images",
		Transform: flaky,
		NewerOnly: true,
	}
	p := NewPipeline(root, 1, nil)
	out := filepath.Join(root, "build", "images", "logo.png")

	first, err := p.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Len(t, first.Failed, 1)
	assert.NoFileExists(t, out)

	second, err := p.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Len(t, second.Processed, 1)
	assert.Empty(t, second.Skipped)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "good", string(data))
}

func TestChainFailureLeavesNoOutput(t *testing.T) {
	root := t.TempDir()
	mkfile(t, root, "public/scss/main.scss", "a { color: red }")

	prefixer := TransformFunc(func(ctx context.Context, src, dst string) error {
		return stderrors.New("autoprefixer: unknown browser query")
	})

	report, err := NewPipeline(root, 1, nil).Run(context.Background(), Job{
		Name:      "sass",
		Globs:     glob.MustNew("public/scss/*.scss"),
		Dest:      "public/css",
		Transform: Chain(upper, prefixer),
		Rename:    ReplaceExt(".css"),
	})
	require.NoError(t, err)
	assert.Len(t, report.Failed, 1)
	assert.NoFileExists(t, filepath.Join(root, "public", "css", "main.css"))
}

func TestPipelineRequiresTransformer(t *testing.T) {
	_, err := NewPipeline(t.TempDir(), 1, nil).Run(context.Background(), Job{Name: "x"})
	assert.Error(t, err)
}

func TestPipelineCancelled(t *testing.T) {
	root := t.TempDir()
	mkfile(t, root, "fonts/a.woff", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline(root, 1, nil).Run(ctx, Job{
		Name:      "fonts",
		Globs:     glob.MustNew("fonts/**"),
		Dest:      "build/fonts",
		Transform: Copy,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCopyAndChain(t *testing.T) {
	root := t.TempDir()
	src := mkfile(t, root, "in.txt", "hello")
	dst := filepath.Join(root, "out.txt")

	suffix := TransformFunc(func(ctx context.Context, src, dst string) error {
		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		return os.WriteFile(dst, append(data, '!'), 0644)
	})

	require.NoError(t, Chain(Copy, suffix, suffix).Transform(context.Background(), src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello!!", string(data))
}

func TestCommandLine(t *testing.T) {
	c := Command{
		Name:     "postcss",
		Args:     []string{"{input}", "--use", "autoprefixer", "--env={browsers}", "-o", "{output}", "{files}"},
		Browsers: []string{"last 2 version", "> 5%"},
	}

	line := c.CommandLine(
		map[string]string{"input": "public/css/main.css", "output": "my dir/main.css"},
		[]string{"a.js", "b c.js"},
	)

	assert.Equal(t,
		`postcss public/css/main.css --use autoprefixer '--env=last 2 version, > 5%' -o 'my dir/main.css' a.js 'b c.js'`,
		line,
	)
}

func TestCommandRun(t *testing.T) {
	out, err := Command{Name: "echo", Args: []string{"compiled", "{input}"}}.
		Run(context.Background(), map[string]string{"input": "main.scss"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "compiled main.scss\n", out)

	_, err = Command{Name: "false"}.Run(context.Background(), nil, nil)
	assert.Error(t, err)

	_, err = Command{}.Run(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestCommandRunCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Command{Name: "sleep", Args: []string{"30"}}.Run(ctx, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestCommandRunKeepsOutputOnFailure(t *testing.T) {
	_, err := Command{Name: "sh", Args: []string{"-c", "echo '{input}: line 3, col 5, Missing semicolon. (W033)'; exit 2"}}.
		Run(context.Background(), map[string]string{"input": "app.js"}, nil)

	var toolErr *errors.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "sh", toolErr.Tool)
	require.Len(t, toolErr.Diagnostics, 1)
	assert.Equal(t, "app.js", toolErr.Diagnostics[0].File)
}

func TestMinifyTransformer(t *testing.T) {
	root := t.TempDir()
	src := mkfile(t, root, "app.css", "a {\n  color: #ff0000;\n}\n")
	dst := filepath.Join(root, "out", "app.css")

	require.NoError(t, Minify(NewMinifier()).Transform(context.Background(), src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "a{color:red}", string(data))
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, MediaHTML, MediaType("a/b.HTML"))
	assert.Equal(t, MediaCSS, MediaType("a.css"))
	assert.Equal(t, MediaJS, MediaType("a.js"))
	assert.Equal(t, "", MediaType("a.png"))
}
