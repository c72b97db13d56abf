// Package supervisor runs the application server during development:
// it launches the process, restarts it when its sources change, and reports
// lifecycle transitions through hooks.
package supervisor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/forge/internal/errors"
	"github.com/conneroisu/forge/internal/glob"
	"github.com/conneroisu/forge/internal/logging"
)

// State of the supervised process.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateCrashed
	StateExited
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateCrashed:
		return "crashed"
	case StateExited:
		return "exited"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Handle is a snapshot of the supervised process.
type Handle struct {
	PID      int
	Watch    glob.Set
	Env      map[string]string
	State    State
	Restarts int
}

// Process is a launched server.
type Process interface {
	PID() int
	// Wait blocks until the process exits. A non-nil error means it crashed.
	Wait() error
	// Kill stops the process and everything it spawned.
	Kill() error
}

// Launcher starts the server with the given extra environment.
type Launcher interface {
	Launch(ctx context.Context, env map[string]string) (Process, error)
}

// Hooks are called from the supervisor goroutine unless noted. They must not
// block for long; BeforeRestart runs in its own goroutine and OnRestart runs
// after the restart delay, also in its own goroutine.
type Hooks struct {
	OnStart       func(ctx context.Context, h Handle)
	BeforeRestart func(ctx context.Context, changed []string)
	OnRestart     func(ctx context.Context, changed []string)
	OnCrash       func(ctx context.Context, err error)
	OnExit        func(ctx context.Context)
}

// Options configures a Supervisor.
type Options struct {
	Launcher Launcher
	Env      map[string]string
	Watch    glob.Set
	// Delay collects further changes before restarting.
	Delay time.Duration
	// RestartDelay postpones the OnRestart hook after a restart.
	RestartDelay time.Duration
	Hooks        Hooks
	Logger       logging.Logger
}

// Supervisor owns at most one server process at a time.
type Supervisor struct {
	opts   Options
	logger logging.Logger

	mu      sync.Mutex
	handle  Handle
	pending map[string]bool
	signal  chan struct{}
}

// New creates a supervisor. Nothing runs until Run is called.
func New(opts Options) *Supervisor {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Supervisor{
		opts:   opts,
		logger: logger.WithComponent("supervisor"),
		handle: Handle{
			Watch: opts.Watch,
			Env:   opts.Env,
			State: StateStopped,
		},
		pending: make(map[string]bool),
		signal:  make(chan struct{}, 1),
	}
}

// Handle returns the current process snapshot.
func (s *Supervisor) Handle() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Changed queues a restart when any of paths is in the watch set and
// reports whether one was queued. Paths are project relative.
func (s *Supervisor) Changed(paths []string) bool {
	queued := false
	s.mu.Lock()
	for _, p := range paths {
		if s.opts.Watch.Matches(p) {
			s.pending[glob.Normalize(p)] = true
			queued = true
		}
	}
	s.mu.Unlock()

	if queued {
		select {
		case s.signal <- struct{}{}:
		default:
		}
	}
	return queued
}

func (s *Supervisor) takePending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.pending))
	for p := range s.pending {
		out = append(out, p)
	}
	sort.Strings(out)
	s.pending = make(map[string]bool)
	return out
}

func (s *Supervisor) setState(state State, pid int) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle.State = state
	s.handle.PID = pid
	return s.handle
}

type exit struct {
	gen int
	err error
}

// Run launches the server and supervises it until ctx is cancelled, then
// kills it. Failing to launch the first time is returned as an error; later
// launch failures are reported as crashes.
func (s *Supervisor) Run(ctx context.Context) error {
	if s.opts.Launcher == nil {
		return errors.NewProcessError("no launcher configured", nil)
	}

	exits := make(chan exit, 1)
	var current Process
	gen := 0

	launch := func() error {
		gen++
		s.setState(StateStarting, 0)

		proc, err := s.opts.Launcher.Launch(ctx, s.opts.Env)
		if err != nil {
			s.setState(StateCrashed, 0)
			return errors.NewProcessError("launching server", err)
		}
		current = proc
		h := s.setState(StateRunning, proc.PID())
		s.logger.Info(ctx, "Server started", "pid", proc.PID())

		go func(gen int, p Process) {
			err := p.Wait()
			select {
			case exits <- exit{gen: gen, err: err}:
			case <-ctx.Done():
			}
		}(gen, proc)

		if s.opts.Hooks.OnStart != nil {
			s.opts.Hooks.OnStart(ctx, h)
		}
		return nil
	}

	stop := func() {
		if current == nil {
			return
		}
		if err := current.Kill(); err != nil {
			s.logger.Warn(ctx, err, "Failed to stop server", "pid", current.PID())
		}
		current = nil
	}

	if err := launch(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			stop()
			s.setState(StateStopped, 0)
			return nil

		case ev := <-exits:
			if ev.gen != gen {
				continue
			}
			current = nil
			if ev.err != nil {
				s.setState(StateCrashed, 0)
				s.logger.Error(ctx, ev.err, "Server crashed, waiting for file changes before restarting")
				if s.opts.Hooks.OnCrash != nil {
					s.opts.Hooks.OnCrash(ctx, ev.err)
				}
			} else {
				s.setState(StateExited, 0)
				s.logger.Info(ctx, "Server exited cleanly")
				if s.opts.Hooks.OnExit != nil {
					s.opts.Hooks.OnExit(ctx)
				}
			}

		case <-s.signal:
			if s.opts.Delay > 0 {
				select {
				case <-time.After(s.opts.Delay):
				case <-ctx.Done():
					continue
				}
			}
			changed := s.takePending()
			if len(changed) == 0 {
				continue
			}
			s.restart(ctx, changed, stop, launch)
		}
	}
}

func (s *Supervisor) restart(ctx context.Context, changed []string, stop func(), launch func() error) {
	s.logger.Info(ctx, "Files changed, restarting server", "files", changed)

	if s.opts.Hooks.BeforeRestart != nil {
		go s.opts.Hooks.BeforeRestart(ctx, changed)
	}

	stop()

	s.mu.Lock()
	s.handle.Restarts++
	s.mu.Unlock()

	if err := launch(); err != nil {
		s.logger.Error(ctx, err, "Server failed to restart")
		if s.opts.Hooks.OnCrash != nil {
			s.opts.Hooks.OnCrash(ctx, err)
		}
		return
	}

	if s.opts.Hooks.OnRestart != nil {
		delay := s.opts.RestartDelay
		go func() {
			select {
			case <-time.After(delay):
				s.opts.Hooks.OnRestart(ctx, changed)
			case <-ctx.Done():
			}
		}()
	}
}

// Env builds the environment passed to the server from a port and an
// environment name.
func Env(port int, environment string) map[string]string {
	return map[string]string{
		"PORT":     fmt.Sprint(port),
		"NODE_ENV": environment,
	}
}
