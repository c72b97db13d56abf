package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/conneroisu/forge/internal/runner"
	"github.com/conneroisu/forge/internal/tasks"
)

func init() {
	_ = message.Set(language.English, "%d tasks",
		plural.Selectf(1, "%d",
			"=1", "1 task",
			"other", "%d tasks",
		))
}

// taskCommands returns one subcommand per task. help is served by the
// help command instead.
func (a *app) taskCommands() []*cobra.Command {
	var cmds []*cobra.Command
	for _, name := range tasks.Names() {
		if name == tasks.Help {
			continue
		}
		cmds = append(cmds, &cobra.Command{
			Use:   name,
			Short: tasks.Describe(name),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runTasks(cmd, name)
			},
		})
	}
	return cmds
}

func (a *app) newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <task>...",
		Short: "Run one or more tasks in order",
		Long: `Run each named task, with its prerequisites, one after the other.
The first failing task stops the run.

Examples:
  forge run clean sass
  forge run templatecache inject`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTasks(cmd, args...)
		},
	}
}

func (a *app) newHelpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "help [command]",
		Short: "List the available tasks, or show help for a command",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				target, _, err := cmd.Root().Find(args)
				if err != nil {
					return err
				}
				return target.Help()
			}
			return a.runTasks(cmd, tasks.Help)
		},
	}
}

// runTasks runs names in order against the loaded configuration.
func (a *app) runTasks(cmd *cobra.Command, names ...string) error {
	cat, err := tasks.New(a.cfg,
		tasks.WithRoot(a.flags.Cwd),
		tasks.WithLogger(a.logger),
		tasks.WithOutput(cmd.OutOrStdout()),
	)
	if err != nil {
		return err
	}

	for _, name := range names {
		if _, ok := cat.Registry().Lookup(name); !ok {
			return fmt.Errorf("task %q is not defined, run \"forge help\" to list tasks", name)
		}
	}

	for _, name := range names {
		result, err := cat.Run(cmd.Context(), name)
		if result != nil && name != tasks.Help {
			printSummary(cmd.ErrOrStderr(), result)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func printSummary(w io.Writer, r *runner.Result) {
	var succeeded, failed, skipped int
	for _, tr := range r.Tasks {
		switch tr.Status {
		case runner.StatusSucceeded:
			succeeded++
		case runner.StatusFailed:
			failed++
		case runner.StatusSkipped:
			skipped++
		}
	}

	verb := "Finished"
	if !r.Succeeded() {
		verb = "Failed"
	}

	p := message.NewPrinter(language.English)
	p.Fprintf(w, "%s '%s' after %v (%s: %d succeeded, %d failed, %d skipped)\n",
		verb, r.Root, r.Duration.Round(time.Millisecond),
		p.Sprintf("%d tasks", len(r.Plan)),
		succeeded, failed, skipped,
	)
}
