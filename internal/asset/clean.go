package asset

import (
	"context"
	stderrors "errors"
	"os"

	"github.com/conneroisu/forge/internal/errors"
	"github.com/conneroisu/forge/internal/glob"
)

// Clean removes every file matched by set. Matching nothing is not an
// error. Files that cannot be removed are reported as cleanup errors and
// fail the call once every other match has been attempted.
func (p *Pipeline) Clean(ctx context.Context, set glob.Set) ([]string, error) {
	p.logger.Info(ctx, "Cleaning", "patterns", set.Patterns())

	matches, err := set.Expand(p.root)
	if err != nil {
		return nil, err
	}

	collector := errors.NewErrorCollector()
	var removed []string

	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := os.Remove(m.Path); err != nil && !stderrors.Is(err, os.ErrNotExist) {
			collector.Add(errors.NewCleanupError(m.Path, err))
			continue
		}
		removed = append(removed, m.Path)
	}

	p.logger.Info(ctx, "Cleaned", "removed", len(removed), "failed", collector.Len())
	return removed, collector.Err()
}
