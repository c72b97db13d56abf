package runner

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conneroisu/forge/internal/errors"
	"github.com/conneroisu/forge/internal/logging"
)

// Status is the terminal state of a task within one run.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusSucceeded
	StatusFailed
	StatusSkipped
)

// String returns the string representation of the Status
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// EventKind identifies what happened to a task.
type EventKind int

const (
	EventStarted EventKind = iota
	EventSucceeded
	EventFailed
	EventSkipped
)

// Event is delivered to observers as tasks change state.
type Event struct {
	RunID string
	Task  string
	Kind  EventKind
	Err   error
	Time  time.Time
}

// Observer receives task events. It is called from task goroutines and
// must be safe for concurrent use.
type Observer func(Event)

// TaskResult records how one task ended.
type TaskResult struct {
	Name     string
	Status   Status
	Err      error
	Duration time.Duration
}

// Result describes one invocation of Run.
type Result struct {
	RunID string
	Root  string
	Plan  []string
	Tasks map[string]TaskResult
	// Started lists tasks in the order their actions began.
	Started  []string
	Duration time.Duration
}

// Succeeded reports whether every task in the plan succeeded.
func (r *Result) Succeeded() bool {
	for _, tr := range r.Tasks {
		if tr.Status != StatusSucceeded {
			return false
		}
	}
	return true
}

// Runner executes tasks from a Registry.
type Runner struct {
	registry  *Registry
	logger    logging.Logger
	observers []Observer
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for task start/finish lines.
func WithLogger(logger logging.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver registers an observer for task events.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// New creates a runner over registry.
func New(registry *Registry, opts ...Option) *Runner {
	r := &Runner{
		registry: registry,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("runner")
	return r
}

// Registry returns the registry the runner executes from.
func (r *Runner) Registry() *Registry {
	return r.registry
}

type node struct {
	def  Definition
	done chan struct{}
	res  TaskResult
}

// Run executes root and its prerequisites. Every call is an independent
// run. Tasks without a dependency relation may execute concurrently. A
// failing task does not cancel siblings already in flight, but dependents of
// a failed or skipped task are skipped. The returned error joins every task
// failure; the Result is non-nil whenever root exists.
func (r *Runner) Run(ctx context.Context, root string) (*Result, error) {
	plan, err := r.registry.Plan(root)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID)
	start := time.Now()

	nodes := make(map[string]*node, len(plan))
	for _, name := range plan {
		def, _ := r.registry.Lookup(name)
		nodes[name] = &node{
			def:  def,
			done: make(chan struct{}),
			res:  TaskResult{Name: name, Status: StatusPending},
		}
	}

	var (
		mu      sync.Mutex
		started []string
		wg      sync.WaitGroup
	)

	for _, name := range plan {
		n := nodes[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(n.done)

			for _, dep := range n.def.Deps {
				d := nodes[dep]
				<-d.done
				if d.res.Status != StatusSucceeded {
					n.res.Status = StatusSkipped
					n.res.Err = errors.NewPrerequisiteError(n.def.Name, dep)
					logger.Warn(ctx, n.res.Err, "Skipping '"+n.def.Name+"'", "task", n.def.Name)
					r.emit(Event{RunID: runID, Task: n.def.Name, Kind: EventSkipped, Err: n.res.Err})
					return
				}
			}

			mu.Lock()
			started = append(started, n.def.Name)
			mu.Unlock()

			n.res.Status = StatusRunning
			r.emit(Event{RunID: runID, Task: n.def.Name, Kind: EventStarted})
			logger.Info(ctx, "Starting '"+n.def.Name+"'...", "task", n.def.Name)
			op := logging.StartOperation(logger, n.def.Name)

			actionErr := r.invoke(ctx, n.def)
			if actionErr != nil {
				n.res.Status = StatusFailed
				n.res.Err = errors.NewTaskError(n.def.Name, actionErr)
				n.res.Duration = op.EndWithError(ctx, actionErr)
				r.emit(Event{RunID: runID, Task: n.def.Name, Kind: EventFailed, Err: n.res.Err})
				return
			}

			n.res.Status = StatusSucceeded
			n.res.Duration = op.End(ctx)
			r.emit(Event{RunID: runID, Task: n.def.Name, Kind: EventSucceeded})
		}()
	}

	wg.Wait()

	result := &Result{
		RunID:    runID,
		Root:     root,
		Plan:     plan,
		Tasks:    make(map[string]TaskResult, len(plan)),
		Started:  started,
		Duration: time.Since(start),
	}

	var failures []error
	for _, name := range plan {
		res := nodes[name].res
		result.Tasks[name] = res
		if res.Status == StatusFailed {
			failures = append(failures, res.Err)
		}
	}

	if len(failures) > 0 {
		return result, stderrors.Join(failures...)
	}
	if root := result.Tasks[root]; root.Status != StatusSucceeded {
		return result, root.Err
	}
	return result, nil
}

// invoke runs the action, turning a panic into a task failure so one
// misbehaving task cannot take the whole run down.
func (r *Runner) invoke(ctx context.Context, def Definition) (err error) {
	if def.Action == nil {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return def.Action(ctx)
}

func (r *Runner) emit(e Event) {
	if len(r.observers) == 0 {
		return
	}
	e.Time = time.Now()
	for _, o := range r.observers {
		o(e)
	}
}
