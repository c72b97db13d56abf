package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/conneroisu/forge/internal/glob"
	"github.com/conneroisu/forge/internal/logging"
)

// Binding pairs a glob set with the action taken when matching files change.
type Binding struct {
	Name    string
	Globs   glob.Set
	Handler ChangeHandler
}

// TaskRunner runs a named task to completion.
type TaskRunner func(ctx context.Context, task string) error

// TaskBinding reruns tasks, in order, whenever a file matching set changes.
// Each batch triggers one rerun. A batch arriving while the previous rerun
// is still in progress waits for it.
func TaskBinding(name string, set glob.Set, run TaskRunner, tasks ...string) Binding {
	var mu sync.Mutex
	return Binding{
		Name:  name,
		Globs: set,
		Handler: func(ctx context.Context, events []ChangeEvent) error {
			mu.Lock()
			defer mu.Unlock()

			for _, task := range tasks {
				if err := run(ctx, task); err != nil {
					return fmt.Errorf("task %s: %w", task, err)
				}
			}
			return nil
		},
	}
}

// Bindings dispatches each batch to every binding with at least one
// matching path. A binding only sees its own matches.
type Bindings struct {
	bindings []Binding
	logger   logging.Logger
}

// NewBindings creates a dispatcher over bindings.
func NewBindings(logger logging.Logger, bindings ...Binding) *Bindings {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Bindings{bindings: bindings, logger: logger.WithComponent("watch")}
}

// Bases returns the directories that must be watched to observe every
// binding.
func (b *Bindings) Bases() []string {
	seen := make(map[string]bool)
	var out []string
	for _, binding := range b.bindings {
		for _, base := range binding.Globs.Bases() {
			if !seen[base] {
				seen[base] = true
				out = append(out, base)
			}
		}
	}
	return out
}

// Handle is a ChangeHandler. Failures of individual bindings are logged and
// joined; other bindings still run.
func (b *Bindings) Handle(ctx context.Context, events []ChangeEvent) error {
	var errs []error
	for _, binding := range b.bindings {
		matched := Match(binding.Globs, events)
		if len(matched) == 0 {
			continue
		}

		b.logger.Info(ctx, "Files changed", "binding", binding.Name, "count", len(matched), "first", matched[0].Path)
		if err := binding.Handler(ctx, matched); err != nil {
			b.logger.Error(ctx, err, "Watch binding failed", "binding", binding.Name)
			errs = append(errs, fmt.Errorf("%s: %w", binding.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Match returns the events whose path is matched by set.
func Match(set glob.Set, events []ChangeEvent) []ChangeEvent {
	var out []ChangeEvent
	for _, ev := range events {
		if set.Matches(ev.Path) {
			out = append(out, ev)
		}
	}
	return out
}
