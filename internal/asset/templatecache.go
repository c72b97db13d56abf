package asset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/conneroisu/forge/internal/errors"
	"github.com/conneroisu/forge/internal/glob"
)

// TemplateCacheOptions controls the generated Angular module.
type TemplateCacheOptions struct {
	Module     string
	Standalone bool
	Root       string
}

// TemplateCache minifies every HTML template matched by set and writes a
// single script registering them in Angular's $templateCache to dst. A
// template that fails to read or minify is reported and left out of the
// bundle. The file is only rewritten when its content changes.
func (p *Pipeline) TemplateCache(ctx context.Context, set glob.Set, dst string, opts TemplateCacheOptions, m *Minifier) (*Report, error) {
	matches, err := set.Expand(p.root)
	if err != nil {
		return nil, err
	}

	collector := errors.NewErrorCollector()
	report := &Report{Job: "templatecache"}
	entries := make([]string, 0, len(matches))

	for _, match := range matches {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		raw, err := os.ReadFile(match.Path)
		if err != nil {
			collector.Add(errors.NewTransformError(match.Path, "cannot read template", err).WithTask("templatecache"))
			continue
		}

		minified, err := m.String(MediaHTML, string(raw))
		if err != nil {
			terr := errors.NewTransformError(match.Path, "cannot minify template", err).WithTask("templatecache")
			p.logger.Error(ctx, terr, "Template skipped", "file", match.Path)
			collector.Add(terr)
			continue
		}

		key := path.Join(opts.Root, filepath.ToSlash(match.Rel))
		entries = append(entries, fmt.Sprintf("$templateCache.put(%s,%s);", jsString(key), jsString(minified)))
		report.Processed = append(report.Processed, match.Path)
	}
	report.Failed = collector.Errors()

	out := []byte(RenderTemplateCache(opts, entries))
	target := p.Resolve(dst)
	if sameContent(target, out) {
		report.Skipped = append(report.Skipped, target)
		return report, nil
	}
	if err := writeFile(target, out); err != nil {
		return report, fmt.Errorf("writing %s: %w", target, err)
	}

	p.logger.Info(ctx, "Template cache written",
		"file", target,
		"templates", len(entries),
		"failed", len(report.Failed),
	)
	return report, nil
}

// RenderTemplateCache renders the module wrapper around the put statements.
func RenderTemplateCache(opts TemplateCacheOptions, entries []string) string {
	module := jsString(opts.Module)
	if opts.Standalone {
		module += ", []"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "angular.module(%s).run([\"$templateCache\", function($templateCache) {", module)
	for _, e := range entries {
		b.WriteString(e)
		b.WriteByte('\n')
	}
	b.WriteString("}]);\n")
	return b.String()
}

func jsString(s string) string {
	// JSON string literals are valid JavaScript and escape "<", ">" and "&",
	// which keeps "</script>" out of the bundle.
	b, _ := json.Marshal(s)
	return string(b)
}
