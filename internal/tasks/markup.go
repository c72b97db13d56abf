package tasks

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/forge/internal/inject"
)

// urls expands patterns and converts each match to a root relative URL.
func (c *Catalogue) urls(patterns ...string) ([]string, error) {
	set, err := c.globs(patterns...)
	if err != nil {
		return nil, err
	}
	matches, err := set.Expand(c.root)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(c.root, m.Path)
		if err != nil {
			return nil, err
		}
		out = append(out, inject.URL(rel))
	}
	return out, nil
}

func (c *Catalogue) inject(ctx context.Context) error {
	c.logger.Info(ctx, "Wire up the app css into the layout")

	index := c.pipeline.Resolve(c.cfg.Paths.Index)
	doc, err := os.ReadFile(index)
	if err != nil {
		return fmt.Errorf("reading layout: %w", err)
	}

	css, err := c.urls(filepath.ToSlash(filepath.Join(c.cfg.Paths.CSS, "**/*.css")))
	if err != nil {
		return err
	}

	out, err := inject.Inject(doc, inject.StartTag("css"), css)
	if err != nil {
		return fmt.Errorf("%s: %w", c.cfg.Paths.Index, err)
	}
	if bytes.Equal(out, doc) {
		return nil
	}
	return os.WriteFile(index, out, 0644)
}

func (c *Catalogue) optimize(ctx context.Context) error {
	c.logger.Info(ctx, "Optimizing the javascript, css, html")

	index := c.pipeline.Resolve(c.cfg.Paths.Index)
	doc, err := os.ReadFile(index)
	if err != nil {
		return fmt.Errorf("reading layout: %w", err)
	}

	templates := inject.URL(c.cfg.TemplateCachePath())
	doc, err = inject.Inject(doc, inject.StartTag("templates:js"), []string{templates})
	if err != nil {
		return fmt.Errorf("%s: %w", c.cfg.Paths.Index, err)
	}

	doc, bundles, err := inject.Useref(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", c.cfg.Paths.Index, err)
	}

	build := c.pipeline.Resolve(c.cfg.Paths.Build)
	writer := inject.BundleWriter{
		SearchPath: c.root,
		OutDir:     build,
		Minify:     c.minifier.Bytes,
	}
	for _, b := range bundles {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := writer.Write(ctx, b)
		if err != nil {
			return err
		}
		c.logger.Debug(ctx, "Wrote bundle", "file", out, "sources", len(b.Sources))
	}

	if err := os.MkdirAll(build, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(build, filepath.Base(index)), doc, 0644)
}
