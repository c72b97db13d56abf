// Package asset implements the file pipelines behind the style, image, font
// and template tasks. Every transformation is an external capability behind
// the Transformer interface; the pipeline only decides which files go where
// and keeps going when a single file fails.
package asset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitfield/script"

	"github.com/conneroisu/forge/internal/config"
	"github.com/conneroisu/forge/internal/errors"
)

// Transformer turns the file at src into the file at dst.
type Transformer interface {
	Transform(ctx context.Context, src, dst string) error
}

// TransformFunc adapts a function to Transformer.
type TransformFunc func(ctx context.Context, src, dst string) error

// Transform calls f.
func (f TransformFunc) Transform(ctx context.Context, src, dst string) error {
	return f(ctx, src, dst)
}

// Copy writes src to dst unchanged.
var Copy = TransformFunc(func(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := script.File(src).WriteFile(dst); err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return nil
})

// Chain runs steps in sequence. The first step reads src; every later step
// reads and rewrites dst.
func Chain(steps ...Transformer) Transformer {
	return TransformFunc(func(ctx context.Context, src, dst string) error {
		in := src
		for _, step := range steps {
			if err := step.Transform(ctx, in, dst); err != nil {
				return err
			}
			in = dst
		}
		return nil
	})
}

// Command runs an external tool. Args may use the placeholders {input},
// {output}, {files} and {browsers}.
type Command struct {
	Name     string
	Args     []string
	Browsers []string
}

// NewCommand builds a Command from a tool entry in the configuration.
func NewCommand(tool config.ToolConfig, browsers []string) Command {
	return Command{Name: tool.Command, Args: tool.Args, Browsers: browsers}
}

// Transform runs the command with {input}=src and {output}=dst.
func (c Command) Transform(ctx context.Context, src, dst string) error {
	_, err := c.Run(ctx, map[string]string{"input": src, "output": dst}, nil)
	return err
}

// Run executes the command with the given placeholder values and returns its
// combined output. files replaces a {files} argument with one argument per
// file. Cancelling ctx kills the tool.
func (c Command) Run(ctx context.Context, vars map[string]string, files []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.Name == "" {
		return "", fmt.Errorf("no command configured")
	}

	argv := c.argv(vars, files)
	out, err := script.NewPipe().Filter(func(_ io.Reader, w io.Writer) error {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Stdout = w
		cmd.Stderr = w
		cmd.WaitDelay = killGrace
		return cmd.Run()
	}).String()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, ctxErr
	}
	if err != nil {
		return out, errors.NewToolError(c.Name, out, err)
	}
	return out, nil
}

// killGrace bounds how long a cancelled tool's output pipes stay open.
const killGrace = 2 * time.Second

// CommandLine renders the shell-quoted command line.
func (c Command) CommandLine(vars map[string]string, files []string) string {
	argv := c.argv(vars, files)
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

func (c Command) argv(vars map[string]string, files []string) []string {
	argv := []string{c.Name}
	for _, arg := range c.Args {
		if arg == "{files}" {
			argv = append(argv, files...)
			continue
		}

		expanded := strings.ReplaceAll(arg, "{browsers}", strings.Join(c.Browsers, ", "))
		for k, v := range vars {
			expanded = strings.ReplaceAll(expanded, "{"+k+"}", v)
		}
		argv = append(argv, expanded)
	}
	return argv
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`;&|<>()*?[]{}!#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Minify is a transformer that minifies HTML, CSS and JavaScript files by
// extension and copies anything else.
func Minify(m *Minifier) Transformer {
	return TransformFunc(func(ctx context.Context, src, dst string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		mediatype := MediaType(src)
		if mediatype == "" {
			return Copy(ctx, src, dst)
		}

		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		out, err := m.Bytes(mediatype, data)
		if err != nil {
			return fmt.Errorf("minifying %s: %w", src, err)
		}
		return writeFile(dst, out)
	})
}

func writeFile(dst string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

// sameContent reports whether dst already holds data.
func sameContent(dst string, data []byte) bool {
	existing, err := os.ReadFile(dst)
	return err == nil && bytes.Equal(existing, data)
}
