package tasks

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/forge/internal/glob"
	"github.com/conneroisu/forge/internal/reload"
	"github.com/conneroisu/forge/internal/supervisor"
	"github.com/conneroisu/forge/internal/watcher"
)

// Reloader is the part of the reload bridge the watch bindings use.
type Reloader interface {
	Changed(paths []string)
	Reload()
}

// Restarter is the part of the supervisor the watch bindings use.
type Restarter interface {
	Changed(paths []string) bool
}

func paths(events []watcher.ChangeEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Path
	}
	return out
}

// Bindings returns the development watch bindings: style sources rerun the
// style tasks, templates rebuild the template cache and reload, server
// sources restart the app and everything in the reload set is pushed to the
// browser.
func (c *Catalogue) Bindings(bridge Reloader, server Restarter) ([]watcher.Binding, error) {
	styles, err := c.globs(c.cfg.Globs.Styles...)
	if err != nil {
		return nil, err
	}
	templates, err := c.globs(c.cfg.Globs.HTMLTemplates...)
	if err != nil {
		return nil, err
	}
	serverSet, err := c.serverWatch()
	if err != nil {
		return nil, err
	}
	reloadSet, err := c.globs(c.reloadPatterns()...)
	if err != nil {
		return nil, err
	}

	templateTasks := watcher.TaskBinding("templates", templates, c.runTask, c.cfg.Watch.TemplateTasks...)
	templateRun := templateTasks.Handler
	templateTasks.Handler = func(ctx context.Context, events []watcher.ChangeEvent) error {
		if err := templateRun(ctx, events); err != nil {
			return err
		}
		bridge.Reload()
		return nil
	}

	return []watcher.Binding{
		watcher.TaskBinding("styles", styles, c.runTask, c.cfg.Watch.StyleTasks...),
		templateTasks,
		{
			Name:  "server",
			Globs: serverSet,
			Handler: func(ctx context.Context, events []watcher.ChangeEvent) error {
				server.Changed(paths(events))
				return nil
			},
		},
		{
			Name:  "reload",
			Globs: reloadSet,
			Handler: func(ctx context.Context, events []watcher.ChangeEvent) error {
				bridge.Changed(paths(events))
				return nil
			},
		},
	}, nil
}

func (c *Catalogue) serverWatch() (glob.Set, error) {
	return c.globs(c.cfg.Paths.Server)
}

// reloadPatterns is the reload set plus the client scripts, minus the
// server sources, which restart the app instead, and minus the style
// sources, which recompile and inject the resulting CSS.
func (c *Catalogue) reloadPatterns() []string {
	patterns := append([]string(nil), c.cfg.Globs.Reload...)
	patterns = append(patterns, c.cfg.Globs.JS...)
	patterns = append(patterns, "!"+glob.Normalize(c.cfg.Paths.Server))
	for _, p := range c.cfg.Globs.Styles {
		if !strings.HasPrefix(p, "!") {
			patterns = append(patterns, "!"+p)
		}
	}
	return patterns
}

func (c *Catalogue) serveDev(ctx context.Context) error {
	serverSet, err := c.serverWatch()
	if err != nil {
		return err
	}
	bridge := reload.New(reload.OptionsFromConfig(c.cfg, c.logger))

	sup := supervisor.New(supervisor.Options{
		Launcher:     c.launcher,
		Env:          supervisor.Env(c.cfg.Server.Port, c.cfg.Server.Environment),
		Watch:        serverSet,
		Delay:        c.cfg.Server.Delay,
		RestartDelay: c.cfg.Reload.Delay,
		Logger:       c.logger,
		Hooks: supervisor.Hooks{
			OnStart: func(ctx context.Context, h supervisor.Handle) {
				if bridge.Active() {
					return
				}
				if err := bridge.Start(ctx); err != nil {
					c.logger.Error(ctx, err, "Failed to start reload bridge")
				}
			},
			BeforeRestart: func(ctx context.Context, changed []string) {
				if err := c.runTask(ctx, Vet); err != nil {
					c.logger.Warn(ctx, err, "vet failed")
				}
			},
			OnRestart: func(ctx context.Context, changed []string) {
				bridge.Notify("reloading now ...")
				bridge.Reload()
			},
		},
	})

	bindings, err := c.Bindings(bridge, sup)
	if err != nil {
		return err
	}
	dispatch := watcher.NewBindings(c.logger, bindings...)

	fw, err := watcher.NewFileWatcher(c.root, c.cfg.Reload.Debounce, c.logger)
	if err != nil {
		return err
	}
	defer fw.Stop()

	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.IgnoreDirs("node_modules", "bower_components", filepath.Base(filepath.Clean(c.cfg.Paths.Build))))
	for _, base := range dispatch.Bases() {
		if _, err := os.Stat(filepath.Join(c.root, base)); err != nil {
			c.logger.Debug(ctx, "Skipping missing watch directory", "dir", base)
			continue
		}
		if err := fw.AddRecursive(base); err != nil {
			return err
		}
	}
	fw.AddHandler(dispatch.Handle)

	if err := fw.Start(ctx); err != nil {
		return err
	}

	c.logger.Info(ctx, "Serving for development", "port", c.cfg.Server.Port, "reload_port", c.cfg.Reload.Port)
	return sup.Run(ctx)
}
