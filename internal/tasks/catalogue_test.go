package tasks

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/forge/internal/asset"
	"github.com/conneroisu/forge/internal/config"
	"github.com/conneroisu/forge/internal/runner"
	"github.com/conneroisu/forge/internal/supervisor"
	"github.com/conneroisu/forge/internal/watcher"
)

const layout = `<!DOCTYPE html>
<html>
<head>
    <title><%= title %></title>
    <!-- inject:css -->
    <!-- endinject -->
</head>
<body>
    <%- body %>
    <!-- build:js js/app.js -->
    <script src="/public/app/app.module.js"></script>
    <!-- inject:templates:js -->
    <!-- endinject -->
    <!-- endbuild -->
</body>
</html>
`

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func project(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	write(t, root, "views/layout.ejs", layout)
	write(t, root, "public/scss/main.scss", "body { color: red }")
	write(t, root, "public/scss/vendor/bootstrap.scss", ".btn { padding: 0 }")
	write(t, root, "public/app/home.html", "<section>\n  <h1>Home</h1>\n</section>\n")
	write(t, root, "public/app/app.module.js", "angular.module('app', ['app.core']);\n")
	write(t, root, "src/client/images/logo.png", "png")
	write(t, root, "bower_components/font-awesome/fonts/fa.woff", "woff")
	return root
}

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(viper.New())
	require.NoError(t, err)
	cfg.Server.Port = 7203
	cfg.Reload.Port = 0
	cfg.Reload.Debounce = 10 * time.Millisecond
	return cfg
}

// fakeSass copies the source, rejecting files containing "error".
var fakeSass = asset.TransformFunc(func(ctx context.Context, src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if strings.Contains(string(data), "error") {
		return stderrors.New("Invalid CSS")
	}
	return os.WriteFile(dst, []byte("/* compiled */"+string(data)), 0644)
})

type recorder struct {
	mu      sync.Mutex
	started []string
}

func (r *recorder) observe(e runner.Event) {
	if e.Kind != runner.EventStarted {
		return
	}
	r.mu.Lock()
	r.started = append(r.started, e.Task)
	r.mu.Unlock()
}

func (r *recorder) tasks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.started...)
}

func newCatalogue(t *testing.T, root string, opts ...Option) (*Catalogue, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	base := []Option{
		WithRoot(root),
		WithOutput(&out),
		WithStyleCompiler(fakeSass),
	}
	c, err := New(loadConfig(t), append(base, opts...)...)
	require.NoError(t, err)
	return c, &out
}

func read(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestCatalogueTasks(t *testing.T) {
	c, _ := newCatalogue(t, t.TempDir())

	assert.Equal(t, []string{
		"bootstrap", "clean", "clean-code", "default", "fonts", "help", "images",
		"inject", "optimize", "sass", "serve-dev", "templatecache", "vet",
	}, c.Registry().Names())
	assert.Equal(t, Names(), c.Registry().Names())
	assert.Equal(t, "Compile SASS to CSS", Describe(Sass))

	plan, err := c.Registry().Plan(Default)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bootstrap", "sass", "templatecache", "inject", "serve-dev", "default"}, plan)
	assert.Equal(t, Default, plan[len(plan)-1])

	plan, err = c.Registry().Plan(Optimize)
	require.NoError(t, err)
	assert.Equal(t, Optimize, plan[len(plan)-1])
	assert.Contains(t, plan, Inject)
}

func TestHelp(t *testing.T) {
	c, out := newCatalogue(t, t.TempDir())

	_, err := c.Run(context.Background(), Help)
	require.NoError(t, err)

	text := out.String()
	mainAt := strings.Index(text, "Main Tasks")
	subAt := strings.Index(text, "Sub Tasks")
	require.True(t, mainAt >= 0 && subAt > mainAt)

	assert.Less(t, strings.Index(text, "    vet"), subAt)
	assert.Greater(t, strings.Index(text, "    clean-code"), subAt)
	assert.Greater(t, strings.Index(text, "    serve-dev"), subAt)
	assert.Contains(t, text, "Compile SASS to CSS")
}

func TestInjectRunsPrerequisites(t *testing.T) {
	root := project(t)
	rec := &recorder{}
	c, _ := newCatalogue(t, root, WithObserver(rec.observe))

	result, err := c.Run(context.Background(), Inject)
	require.NoError(t, err)
	assert.True(t, result.Succeeded())

	started := rec.tasks()
	require.Len(t, started, 4)
	assert.Equal(t, Inject, started[3])

	assert.Equal(t, "/* compiled */body { color: red }", read(t, root, "public/css/main.css"))
	assert.FileExists(t, filepath.Join(root, "public", "css", "vendor", "bootstrap.css"))
	assert.Contains(t, read(t, root, ".tmp/templates.js"), `$templateCache.put("app/app/home.html"`)

	doc := read(t, root, "views/layout.ejs")
	assert.Contains(t, doc, `<link rel="stylesheet" href="/public/css/main.css">`)
	assert.Contains(t, doc, `<link rel="stylesheet" href="/public/css/vendor/bootstrap.css">`)
	assert.Contains(t, doc, "<%= title %>")
}

func TestInjectWithoutMarkerFails(t *testing.T) {
	root := project(t)
	write(t, root, "views/layout.ejs", "<html></html>")
	c, _ := newCatalogue(t, root)

	result, err := c.Run(context.Background(), Inject)
	require.Error(t, err)
	assert.Equal(t, runner.StatusFailed, result.Tasks[Inject].Status)
	assert.Equal(t, runner.StatusSucceeded, result.Tasks[Sass].Status)
}

func TestOptimize(t *testing.T) {
	root := project(t)
	c, _ := newCatalogue(t, root)

	_, err := c.Run(context.Background(), Optimize)
	require.NoError(t, err)

	doc := read(t, root, "build/layout.ejs")
	assert.Contains(t, doc, `<script src="js/app.js"></script>`)
	assert.NotContains(t, doc, "app.module.js")
	assert.NotContains(t, doc, "build:js")
	assert.Contains(t, doc, `<link rel="stylesheet" href="/public/css/main.css">`)

	bundle := read(t, root, "build/js/app.js")
	assert.Contains(t, bundle, "app.core")
	assert.Contains(t, bundle, "$templateCache")

	// The source layout keeps its build block.
	assert.Contains(t, read(t, root, "views/layout.ejs"), "build:js")
}

func TestOptimizeCompactTemplateMarker(t *testing.T) {
	root := project(t)
	compact := strings.Replace(layout,
		"<!-- inject:templates:js -->\n    <!-- endinject -->",
		"<!--inject:templates:js-->\n    <!--endinject-->", 1)
	write(t, root, "views/layout.ejs", compact)
	c, _ := newCatalogue(t, root)

	_, err := c.Run(context.Background(), Optimize)
	require.NoError(t, err)

	assert.Contains(t, read(t, root, "build/layout.ejs"), `<script src="js/app.js"></script>`)
	assert.Contains(t, read(t, root, "build/js/app.js"), "$templateCache")
}

func TestSassFailureDoesNotFailTask(t *testing.T) {
	root := project(t)
	write(t, root, "public/scss/main.scss", "body { error }")
	c, _ := newCatalogue(t, root)

	_, err := c.Run(context.Background(), Sass)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(root, "public", "css", "main.css"))
}

func TestCleanNothingToDelete(t *testing.T) {
	c, _ := newCatalogue(t, t.TempDir())
	_, err := c.Run(context.Background(), Clean)
	assert.NoError(t, err)
}

func TestCleanTasks(t *testing.T) {
	root := project(t)
	write(t, root, ".tmp/styles.css", "x")
	write(t, root, ".tmp/templates.js", "x")
	write(t, root, "build/layout.html", "x")
	write(t, root, "build/js/app.js", "x")
	write(t, root, "build/images/logo.png", "x")
	c, _ := newCatalogue(t, root)

	_, err := c.Run(context.Background(), Clean)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(root, ".tmp", "styles.css"))
	assert.FileExists(t, filepath.Join(root, ".tmp", "templates.js"))

	_, err = c.Run(context.Background(), CleanCode)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(root, ".tmp", "templates.js"))
	assert.NoFileExists(t, filepath.Join(root, "build", "layout.html"))
	assert.NoFileExists(t, filepath.Join(root, "build", "js", "app.js"))
	assert.FileExists(t, filepath.Join(root, "build", "images", "logo.png"))
}

func TestImagesAndFonts(t *testing.T) {
	root := project(t)
	var compressed int
	images := asset.TransformFunc(func(ctx context.Context, src, dst string) error {
		compressed++
		return asset.Copy(ctx, src, dst)
	})
	c, _ := newCatalogue(t, root, WithImageCompressor(images))

	_, err := c.Run(context.Background(), Images)
	require.NoError(t, err)
	_, err = c.Run(context.Background(), Images)
	require.NoError(t, err)
	assert.Equal(t, 1, compressed, "unchanged images are skipped")
	assert.Equal(t, "png", read(t, root, "build/images/logo.png"))

	_, err = c.Run(context.Background(), Fonts)
	require.NoError(t, err)
	assert.Equal(t, "woff", read(t, root, "build/fonts/fa.woff"))
}

type fakeBridge struct {
	mu      sync.Mutex
	changed [][]string
	reloads int
}

func (b *fakeBridge) Changed(paths []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.changed = append(b.changed, paths)
}

func (b *fakeBridge) Reload() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reloads++
}

type fakeServer struct {
	changed []string
}

func (s *fakeServer) Changed(paths []string) bool {
	s.changed = append(s.changed, paths...)
	return true
}

func dispatch(t *testing.T, c *Catalogue, bridge *fakeBridge, server *fakeServer, files ...string) {
	t.Helper()
	bindings, err := c.Bindings(bridge, server)
	require.NoError(t, err)

	events := make([]watcher.ChangeEvent, len(files))
	for i, f := range files {
		events[i] = watcher.ChangeEvent{Path: f, Type: watcher.EventTypeModified}
	}
	require.NoError(t, watcher.NewBindings(nil, bindings...).Handle(context.Background(), events))
}

func TestStyleChangeRerunsOnlySass(t *testing.T) {
	root := project(t)
	rec := &recorder{}
	c, _ := newCatalogue(t, root, WithObserver(rec.observe))
	bridge, server := &fakeBridge{}, &fakeServer{}

	dispatch(t, c, bridge, server, "public/scss/_variables.scss")

	assert.Equal(t, []string{Sass}, rec.tasks())
	assert.Empty(t, server.changed)
	assert.Empty(t, bridge.changed, "style sources inject CSS instead of reloading")
	assert.Zero(t, bridge.reloads)
	assert.FileExists(t, filepath.Join(root, "public", "css", "main.css"))
}

func TestServerChangeRestartsWithoutReload(t *testing.T) {
	c, _ := newCatalogue(t, project(t))
	bridge, server := &fakeBridge{}, &fakeServer{}

	dispatch(t, c, bridge, server, "bin/www")

	assert.Equal(t, []string{"bin/www"}, server.changed)
	assert.Empty(t, bridge.changed)
}

func TestTemplateChangeRebuildsAndReloads(t *testing.T) {
	root := project(t)
	rec := &recorder{}
	c, _ := newCatalogue(t, root, WithObserver(rec.observe))
	bridge, server := &fakeBridge{}, &fakeServer{}

	dispatch(t, c, bridge, server, "public/app/home.html")

	assert.Equal(t, []string{TemplateCache}, rec.tasks())
	assert.Equal(t, 1, bridge.reloads)
	assert.FileExists(t, filepath.Join(root, ".tmp", "templates.js"))
}

func TestReloadSetChanges(t *testing.T) {
	c, _ := newCatalogue(t, project(t))
	bridge, server := &fakeBridge{}, &fakeServer{}

	dispatch(t, c, bridge, server, "public/css/main.css", "routes/index.js", "public/scss/main.scss", "public/scss/_vars.scss")

	require.Len(t, bridge.changed, 1)
	assert.Equal(t, []string{"public/css/main.css", "routes/index.js"}, bridge.changed[0])
}

type fakeProcess struct{ exit chan error }

func (p *fakeProcess) PID() int    { return 4242 }
func (p *fakeProcess) Wait() error { return <-p.exit }
func (p *fakeProcess) Kill() error {
	select {
	case p.exit <- nil:
	default:
	}
	return nil
}

type fakeLauncher struct {
	mu       sync.Mutex
	launches int
	env      map[string]string
}

func (l *fakeLauncher) Launch(ctx context.Context, env map[string]string) (supervisor.Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches++
	l.env = env
	return &fakeProcess{exit: make(chan error, 1)}, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

func TestServeDev(t *testing.T) {
	root := project(t)
	launcher := &fakeLauncher{}
	c, _ := newCatalogue(t, root, WithLauncher(launcher))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Run(ctx, Default)
		done <- err
	}()

	require.Eventually(t, func() bool { return launcher.count() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "7203", launcher.env["PORT"])
	assert.Equal(t, "dev", launcher.env["NODE_ENV"])
	assert.FileExists(t, filepath.Join(root, "public", "css", "main.css"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve-dev did not stop")
	}
	assert.Equal(t, 1, launcher.count())
}
