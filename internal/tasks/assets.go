package tasks

import (
	"context"
	"path/filepath"

	"github.com/conneroisu/forge/internal/asset"
	"github.com/conneroisu/forge/internal/lint"
)

func (c *Catalogue) vet(ctx context.Context) error {
	v, err := lint.NewVetter(c.cfg, c.root, c.logger)
	if err != nil {
		return err
	}
	v.Out = c.out
	return v.Vet(ctx)
}

// compileStyles compiles every file matched by patterns into paths.css.
// A file that fails to compile is logged; the task still succeeds so a
// running watcher keeps going.
func (c *Catalogue) compileStyles(ctx context.Context, name string, patterns []string) error {
	set, err := c.globs(patterns...)
	if err != nil {
		return err
	}
	_, err = c.pipeline.Run(ctx, asset.Job{
		Name:      name,
		Globs:     set,
		Dest:      c.cfg.Paths.CSS,
		Transform: c.styles,
		Rename:    asset.ReplaceExt(".css"),
	})
	return err
}

func (c *Catalogue) bootstrap(ctx context.Context) error {
	c.logger.Info(ctx, "Compiling Bootstrap SASS --> CSS")
	return c.compileStyles(ctx, Bootstrap, c.cfg.Globs.Bootstrap)
}

func (c *Catalogue) sass(ctx context.Context) error {
	c.logger.Info(ctx, "Compiling SASS --> CSS")
	return c.compileStyles(ctx, Sass, c.cfg.Globs.Sass)
}

func (c *Catalogue) imagesTask(ctx context.Context) error {
	c.logger.Info(ctx, "Copying and compressing the images")
	set, err := c.globs(c.cfg.Globs.Images...)
	if err != nil {
		return err
	}
	_, err = c.pipeline.Run(ctx, asset.Job{
		Name:      Images,
		Globs:     set,
		Dest:      c.cfg.BuildPath("images"),
		Transform: c.images,
		NewerOnly: true,
	})
	return err
}

func (c *Catalogue) fonts(ctx context.Context) error {
	c.logger.Info(ctx, "Copying fonts")
	set, err := c.globs(c.cfg.Globs.Fonts...)
	if err != nil {
		return err
	}
	_, err = c.pipeline.Run(ctx, asset.Job{
		Name:      Fonts,
		Globs:     set,
		Dest:      c.cfg.BuildPath("fonts"),
		Transform: asset.Copy,
	})
	return err
}

func (c *Catalogue) templateCache(ctx context.Context) error {
	c.logger.Info(ctx, "Creating AngularJS $templateCache")
	set, err := c.globs(c.cfg.Globs.HTMLTemplates...)
	if err != nil {
		return err
	}
	_, err = c.pipeline.TemplateCache(ctx, set, c.cfg.TemplateCachePath(), asset.TemplateCacheOptions{
		Module:     c.cfg.TemplateCache.Module,
		Standalone: c.cfg.TemplateCache.Standalone,
		Root:       c.cfg.TemplateCache.Root,
	}, c.minifier)
	return err
}

func (c *Catalogue) cleanCode(ctx context.Context) error {
	set, err := c.globs(
		filepath.ToSlash(filepath.Join(c.cfg.Paths.Temp, "**/*.js")),
		filepath.ToSlash(filepath.Join(c.cfg.Paths.Build, "**/*.html")),
		filepath.ToSlash(filepath.Join(c.cfg.Paths.Build, "js/**/*.js")),
	)
	if err != nil {
		return err
	}
	_, err = c.pipeline.Clean(ctx, set)
	return err
}

func (c *Catalogue) clean(ctx context.Context) error {
	set, err := c.globs(filepath.ToSlash(filepath.Join(c.cfg.Paths.Temp, "**/*.css")))
	if err != nil {
		return err
	}
	_, err = c.pipeline.Clean(ctx, set)
	return err
}
