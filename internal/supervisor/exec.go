package supervisor

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/shirou/gopsutil/v3/process"
)

// ExecLauncher starts Command with Args as a child process inheriting the
// current environment plus the supervisor's variables.
type ExecLauncher struct {
	Command string
	Args    []string
	Dir     string
	Stdout  io.Writer
	Stderr  io.Writer
}

// Launch implements Launcher.
func (l ExecLauncher) Launch(ctx context.Context, env map[string]string) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Command == "" {
		return nil, stderrors.New("no server command configured")
	}

	// Kill takes down the whole process tree, so no CommandContext here.
	cmd := exec.Command(l.Command, l.Args...)
	cmd.Dir = l.Dir
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	cmd.Env = append(os.Environ(), envList(env)...)

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

type execProcess struct {
	cmd      *exec.Cmd
	done     chan struct{}
	err      error
	killOnce sync.Once
	killed   atomic.Bool
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

// Wait reports a crash for non-zero exits. A process stopped by Kill is not
// a crash.
func (p *execProcess) Wait() error {
	<-p.done
	if p.killed.Load() {
		return nil
	}
	return p.err
}

func (p *execProcess) Kill() error {
	var err error
	p.killOnce.Do(func() {
		p.killed.Store(true)
		err = killTree(int32(p.cmd.Process.Pid))
		<-p.done
	})
	return err
}

// killTree kills pid after its descendants. A process that already exited
// is not an error.
func killTree(pid int32) error {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return nil
	}

	children, _ := proc.Children()
	for _, child := range children {
		_ = killTree(child.Pid)
	}

	if err := proc.Kill(); err != nil {
		if running, rerr := proc.IsRunning(); rerr == nil && !running {
			return nil
		}
		return err
	}
	return nil
}
