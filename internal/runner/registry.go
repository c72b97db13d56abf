// Package runner executes named build tasks in dependency order.
//
// A Registry holds the task definitions and is immutable once built. A
// Runner resolves the transitive prerequisites of a root task and runs each
// task in its own goroutine as soon as all of its prerequisites have
// completed. Tasks whose prerequisites failed are never started.
package runner

import (
	"context"
	"fmt"
	"sort"

	"github.com/gammazero/toposort"

	"github.com/conneroisu/forge/internal/errors"
)

// Action is the work a task performs. Returning marks the task complete; an
// action that streams output to disk returns only after the last write.
type Action func(ctx context.Context) error

// Definition describes one task.
type Definition struct {
	Name        string
	Description string
	Deps        []string
	Action      Action
}

// Registry maps task names to definitions. It is safe for concurrent reads
// and is never mutated after NewRegistry returns.
type Registry struct {
	defs  map[string]Definition
	names []string
}

// NewRegistry validates defs and builds a registry. Duplicate names,
// references to unknown tasks and dependency cycles are rejected.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]Definition, len(defs))}

	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("task with empty name")
		}
		if _, dup := r.defs[d.Name]; dup {
			return nil, fmt.Errorf("task %q defined twice", d.Name)
		}
		d.Deps = append([]string(nil), d.Deps...)
		r.defs[d.Name] = d
		r.names = append(r.names, d.Name)
	}
	sort.Strings(r.names)

	var edges []toposort.Edge
	for _, name := range r.names {
		for _, dep := range r.defs[name].Deps {
			if _, ok := r.defs[dep]; !ok {
				return nil, errors.NewUnknownTaskError(dep).WithTask(name)
			}
			if dep == name {
				return nil, cycleError(name)
			}
			edges = append(edges, toposort.Edge{dep, name})
		}
	}

	if len(edges) > 0 {
		if _, err := toposort.Toposort(edges); err != nil {
			return nil, &errors.ForgeError{
				Type:    errors.ErrorTypeTask,
				Code:    errors.ErrCycle.Code,
				Message: "task dependencies form a cycle",
				Cause:   err,
			}
		}
	}

	return r, nil
}

func cycleError(task string) error {
	return &errors.ForgeError{
		Type:    errors.ErrorTypeTask,
		Code:    errors.ErrCycle.Code,
		Message: "task depends on itself",
		Task:    task,
	}
}

// Names returns all task names in lexical order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Plan returns root and all of its transitive prerequisites, ordered so that
// every task appears after its prerequisites.
func (r *Registry) Plan(root string) ([]string, error) {
	if _, ok := r.defs[root]; !ok {
		return nil, errors.NewUnknownTaskError(root)
	}

	closure := make(map[string]bool)
	var visit func(string)
	visit = func(name string) {
		if closure[name] {
			return
		}
		closure[name] = true
		for _, dep := range r.defs[name].Deps {
			visit(dep)
		}
	}
	visit(root)

	if len(closure) == 1 {
		return []string{root}, nil
	}

	var edges []toposort.Edge
	for _, name := range r.names {
		if !closure[name] {
			continue
		}
		for _, dep := range r.defs[name].Deps {
			edges = append(edges, toposort.Edge{dep, name})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("ordering %q: %w", root, err)
	}

	order := make([]string, 0, len(closure))
	for _, node := range sorted {
		order = append(order, node.(string))
	}
	return order, nil
}
