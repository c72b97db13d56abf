// Package lint implements the vet task: it runs the configured style
// checker and linter over the project's JavaScript files.
package lint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bitfield/script"

	"github.com/conneroisu/forge/internal/asset"
	"github.com/conneroisu/forge/internal/config"
	forgeerrors "github.com/conneroisu/forge/internal/errors"
	"github.com/conneroisu/forge/internal/glob"
	"github.com/conneroisu/forge/internal/logging"
)

// Checker runs one external tool over a list of files and returns what it
// printed.
type Checker interface {
	Run(ctx context.Context, vars map[string]string, files []string) (string, error)
}

// Vetter lints the files matched by Files. Every checker sees the full file
// list; the run fails if any checker reports a problem.
type Vetter struct {
	Root     string
	Files    glob.Set
	Checkers map[string]Checker
	// Order in which Checkers run.
	Order   []string
	Verbose bool
	Out     io.Writer
	Logger  logging.Logger
}

// NewVetter wires jscs and jshint from the configuration. Tools without a
// command are left out.
func NewVetter(cfg *config.Config, root string, logger logging.Logger) (*Vetter, error) {
	files, err := glob.New(cfg.Globs.AllJS...)
	if err != nil {
		return nil, err
	}

	v := &Vetter{
		Root:     root,
		Files:    files,
		Checkers: make(map[string]Checker),
		Verbose:  cfg.Verbose,
		Out:      os.Stdout,
		Logger:   logger,
	}
	for _, tool := range []struct {
		name string
		cfg  config.ToolConfig
	}{
		{"jscs", cfg.Tools.JSCS},
		{"jshint", cfg.Tools.JSHint},
	} {
		if !tool.cfg.Enabled() {
			continue
		}
		v.Checkers[tool.name] = asset.NewCommand(tool.cfg, nil)
		v.Order = append(v.Order, tool.name)
	}
	return v, nil
}

// Vet runs every checker. Zero matched files is a successful, empty run.
func (v *Vetter) Vet(ctx context.Context) error {
	logger := v.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	out := v.Out
	if out == nil {
		out = io.Discard
	}

	matches, err := v.Files.Expand(v.Root)
	if err != nil {
		return err
	}
	files := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(v.Root, m.Path)
		if err != nil {
			rel = m.Path
		}
		files = append(files, rel)
	}

	logger.Info(ctx, "Analyzing source with JSHint and JSCS", "files", len(files))
	if len(files) == 0 {
		return nil
	}

	if v.Verbose {
		if _, err := script.Slice(files).WithStdout(out).Stdout(); err != nil {
			return err
		}
	}

	var errs []error
	for _, name := range v.Order {
		if err := ctx.Err(); err != nil {
			return err
		}
		checker := v.Checkers[name]
		if checker == nil {
			continue
		}

		if cmd, ok := checker.(asset.Command); ok {
			logger.Debug(ctx, "Running linter", "tool", name, "command", cmd.CommandLine(nil, files))
		}
		report, err := checker.Run(ctx, nil, files)
		if report != "" {
			_, _ = io.WriteString(out, report)
		}
		counts := forgeerrors.CountBySeverity(forgeerrors.ParseToolOutput(name, report))
		if err != nil {
			logger.Warn(ctx, err, "Lint reported problems", "tool", name,
				"errors", counts[forgeerrors.SeverityError],
				"warnings", counts[forgeerrors.SeverityWarning],
			)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
