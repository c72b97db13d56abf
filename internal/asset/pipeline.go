package asset

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/forge/internal/errors"
	"github.com/conneroisu/forge/internal/glob"
	"github.com/conneroisu/forge/internal/logging"
)

// Job describes one pipeline invocation: which files to read, how to
// transform each one and where the results go.
type Job struct {
	Name      string
	Globs     glob.Set
	Dest      string
	Transform Transformer
	// Rename maps the path relative to the glob base onto the output name,
	// e.g. to swap .scss for .css. Nil keeps the name.
	Rename func(rel string) string
	// NewerOnly skips files whose output exists and is not older than the
	// source.
	NewerOnly bool
}

// Report summarises a pipeline run. Failed holds one transform error per
// file that could not be processed.
type Report struct {
	Job       string
	Processed []string
	Skipped   []string
	Failed    []error
}

// OK reports whether no file failed.
func (r *Report) OK() bool {
	return len(r.Failed) == 0
}

// Pipeline runs jobs relative to a project root with bounded parallelism.
type Pipeline struct {
	root    string
	workers int
	logger  logging.Logger
}

// NewPipeline creates a pipeline rooted at root.
func NewPipeline(root string, workers int, logger logging.Logger) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pipeline{
		root:    root,
		workers: workers,
		logger:  logger.WithComponent("pipeline"),
	}
}

// Root returns the project root the pipeline resolves globs against.
func (p *Pipeline) Root() string {
	return p.root
}

// Resolve joins a configured path onto the project root.
func (p *Pipeline) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.root, path)
}

// Run executes job. Per-file failures are logged and collected in the
// report without stopping the other files; the returned error is reserved
// for problems with the job itself, such as an unreadable glob or a
// cancelled context.
func (p *Pipeline) Run(ctx context.Context, job Job) (*Report, error) {
	if job.Transform == nil {
		return nil, fmt.Errorf("job %q has no transformer", job.Name)
	}

	matches, err := job.Globs.Expand(p.root)
	if err != nil {
		return nil, err
	}

	dest := p.Resolve(job.Dest)
	collector := errors.NewErrorCollector()
	report := &Report{Job: job.Name}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(p.workers)

	for _, m := range matches {
		if ctx.Err() != nil {
			break
		}

		rel := m.Rel
		if job.Rename != nil {
			rel = job.Rename(rel)
		}
		out := filepath.Join(dest, rel)
		src := m.Path

		g.Go(func() error {
			if job.NewerOnly && upToDate(src, out) {
				mu.Lock()
				report.Skipped = append(report.Skipped, src)
				mu.Unlock()
				return nil
			}

			if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
				collector.Add(errors.NewTransformError(src, "cannot create output directory", err).WithTask(job.Name))
				return nil
			}

			if err := job.Transform.Transform(ctx, src, out); err != nil {
				terr := errors.NewTransformError(src, "transformation failed", err).WithTask(job.Name)
				p.logger.Error(ctx, terr, "File failed, continuing", "task", job.Name, "file", src)
				collector.Add(terr)
				discard(ctx, p.logger, out)
				return nil
			}

			p.logger.Debug(ctx, "Wrote file", "task", job.Name, "file", out)
			mu.Lock()
			report.Processed = append(report.Processed, out)
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	sort.Strings(report.Processed)
	sort.Strings(report.Skipped)
	report.Failed = collector.Errors()

	if err := ctx.Err(); err != nil {
		return report, err
	}

	p.logger.Info(ctx, "Pipeline finished",
		"task", job.Name,
		"processed", len(report.Processed),
		"skipped", len(report.Skipped),
		"failed", len(report.Failed),
	)
	return report, nil
}

// discard removes the partial output of a failed transform so a later
// newer-only run does not mistake it for a finished file.
func discard(ctx context.Context, logger logging.Logger, out string) {
	for _, f := range []string{out, out + ".tmp"} {
		if err := os.Remove(f); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			logger.Warn(ctx, err, "Cannot remove partial output", "file", f)
		}
	}
}

// upToDate reports whether out exists and is not older than src.
func upToDate(src, out string) bool {
	outInfo, err := os.Stat(out)
	if err != nil {
		return false
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false
	}
	return !outInfo.ModTime().Before(srcInfo.ModTime())
}

// ReplaceExt returns a Rename func swapping the extension for ext.
func ReplaceExt(ext string) func(string) string {
	return func(rel string) string {
		return rel[:len(rel)-len(filepath.Ext(rel))] + ext
	}
}
