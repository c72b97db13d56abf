// Package tasks defines forge's task catalogue: every named task, its
// prerequisites and the action it runs, wired to one loaded configuration.
package tasks

import (
	"context"
	"io"
	"os"
	"sort"

	"github.com/conneroisu/forge/internal/asset"
	"github.com/conneroisu/forge/internal/config"
	"github.com/conneroisu/forge/internal/glob"
	"github.com/conneroisu/forge/internal/logging"
	"github.com/conneroisu/forge/internal/runner"
	"github.com/conneroisu/forge/internal/supervisor"
)

// Task names.
const (
	Help          = "help"
	Default       = "default"
	Vet           = "vet"
	TemplateCache = "templatecache"
	Optimize      = "optimize"
	CleanCode     = "clean-code"
	Bootstrap     = "bootstrap"
	Sass          = "sass"
	Images        = "images"
	Fonts         = "fonts"
	Inject        = "inject"
	ServeDev      = "serve-dev"
	Clean         = "clean"
)

// Catalogue owns the registry and runner for one configuration.
type Catalogue struct {
	cfg      *config.Config
	root     string
	logger   logging.Logger
	out      io.Writer
	pipeline *asset.Pipeline
	minifier *asset.Minifier

	styles   asset.Transformer
	images   asset.Transformer
	launcher supervisor.Launcher
	observer runner.Observer

	registry *runner.Registry
	runner   *runner.Runner
}

// Option customises a Catalogue.
type Option func(*Catalogue)

// WithRoot sets the project root all configured paths are relative to.
func WithRoot(root string) Option {
	return func(c *Catalogue) { c.root = root }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Catalogue) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithOutput sets where help and linter reports are printed.
func WithOutput(w io.Writer) Option {
	return func(c *Catalogue) { c.out = w }
}

// WithStyleCompiler replaces the configured sass + autoprefixer chain.
func WithStyleCompiler(t asset.Transformer) Option {
	return func(c *Catalogue) { c.styles = t }
}

// WithImageCompressor replaces the configured image compressor.
func WithImageCompressor(t asset.Transformer) Option {
	return func(c *Catalogue) { c.images = t }
}

// WithLauncher replaces how serve-dev starts the app server.
func WithLauncher(l supervisor.Launcher) Option {
	return func(c *Catalogue) { c.launcher = l }
}

// WithObserver receives runner events for every task run.
func WithObserver(o runner.Observer) Option {
	return func(c *Catalogue) { c.observer = o }
}

// New builds the catalogue for cfg.
func New(cfg *config.Config, opts ...Option) (*Catalogue, error) {
	c := &Catalogue{
		cfg:      cfg,
		root:     ".",
		logger:   logging.Discard(),
		out:      os.Stdout,
		minifier: asset.NewMinifier(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.pipeline = asset.NewPipeline(c.root, cfg.Tools.Workers, c.logger)

	if c.styles == nil {
		steps := []asset.Transformer{asset.NewCommand(cfg.Tools.Sass, nil)}
		if cfg.Tools.Autoprefixer.Enabled() {
			steps = append(steps, asset.NewCommand(cfg.Tools.Autoprefixer, cfg.Tools.Browsers))
		}
		c.styles = asset.Chain(steps...)
	}
	if c.images == nil {
		c.images = asset.Copy
		if cfg.Tools.Imagemin.Enabled() {
			c.images = asset.NewCommand(cfg.Tools.Imagemin, nil)
		}
	}
	if c.launcher == nil {
		c.launcher = supervisor.ExecLauncher{
			Command: cfg.Server.Command,
			Args:    []string{cfg.Server.Script},
			Dir:     c.root,
			Stdout:  os.Stdout,
			Stderr:  os.Stderr,
		}
	}

	registry, err := runner.NewRegistry(c.definitions()...)
	if err != nil {
		return nil, err
	}
	c.registry = registry

	ropts := []runner.Option{runner.WithLogger(c.logger)}
	if c.observer != nil {
		ropts = append(ropts, runner.WithObserver(c.observer))
	}
	c.runner = runner.New(registry, ropts...)
	return c, nil
}

var descriptions = map[string]string{
	Help:          "List the available tasks",
	Default:       "Build and serve the app for development",
	Vet:           "Analyze source with JSHint and JSCS",
	TemplateCache: "Create the AngularJS $templateCache",
	Optimize:      "Optimize the javascript, css and html",
	CleanCode:     "Remove generated scripts and markup",
	Bootstrap:     "Compile Bootstrap SASS to CSS",
	Sass:          "Compile SASS to CSS",
	Images:        "Copy and compress the images",
	Fonts:         "Copy the fonts",
	Inject:        "Wire up the app css into the layout",
	ServeDev:      "Run the app server with restart and browser reload",
	Clean:         "Remove generated styles",
}

// Names lists every task, sorted.
func Names() []string {
	names := make([]string, 0, len(descriptions))
	for name := range descriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the one-line description of a task.
func Describe(name string) string {
	return descriptions[name]
}

func (c *Catalogue) definitions() []runner.Definition {
	def := func(name string, action runner.Action, deps ...string) runner.Definition {
		return runner.Definition{Name: name, Description: descriptions[name], Deps: deps, Action: action}
	}
	return []runner.Definition{
		def(Help, c.help),
		def(Default, nil, ServeDev),
		def(Vet, c.vet),
		def(TemplateCache, c.templateCache),
		def(Optimize, c.optimize, Inject),
		def(CleanCode, c.cleanCode),
		def(Bootstrap, c.bootstrap),
		def(Sass, c.sass),
		def(Images, c.imagesTask),
		def(Fonts, c.fonts),
		def(Inject, c.inject, Bootstrap, Sass, TemplateCache),
		def(ServeDev, c.serveDev, Inject),
		def(Clean, c.clean),
	}
}

// Registry returns the task registry.
func (c *Catalogue) Registry() *runner.Registry {
	return c.registry
}

// Run runs name and its prerequisites.
func (c *Catalogue) Run(ctx context.Context, name string) (*runner.Result, error) {
	return c.runner.Run(ctx, name)
}

// runTask adapts Run for watch bindings and hooks.
func (c *Catalogue) runTask(ctx context.Context, name string) error {
	_, err := c.Run(ctx, name)
	return err
}

func (c *Catalogue) globs(patterns ...string) (glob.Set, error) {
	return glob.New(patterns...)
}
