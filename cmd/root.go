// Package cmd provides the forge command-line interface.
//
// Configuration is resolved with clear precedence:
//  1. Command-line flags (--log-level, --verbose)
//  2. Individual environment variables (FORGE_SERVER_PORT, FORGE_RELOAD_PORT, ...)
//  3. The configuration file: --config, then FORGE_CONFIG_FILE, then
//     .forge.yml in the project directory
//  4. Built-in defaults matching the conventional project layout
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/forge/internal/config"
	"github.com/conneroisu/forge/internal/logging"
	"github.com/conneroisu/forge/internal/tasks"
)

// app is the state shared by the command tree of one invocation.
type app struct {
	v      *viper.Viper
	flags  GlobalFlags
	cfg    *config.Config
	logger logging.Logger
}

// NewRootCommand builds the forge command tree. Running it without a
// subcommand runs the default task.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "forge",
		Short: "Build and development task runner for Express + Angular apps",
		Long: `forge builds the assets of an Express + Angular application and runs it
for development with automatic restarts and live browser reload.

Quick Start:
  forge                 Build, serve and watch (same as "forge default")
  forge help            List the available tasks
  forge optimize        Bundle and minify for production
  forge run sass inject Run several tasks in order`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.initConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTasks(cmd, tasks.Default)
		},
	}

	if err := a.flags.Register(root.PersistentFlags(), a.v); err != nil {
		panic(err)
	}

	root.AddCommand(a.taskCommands()...)
	root.AddCommand(a.newRunCommand(), a.newConfigCommand(), newVersionCommand())
	root.SetHelpCommand(a.newHelpCommand())
	root.InitDefaultHelpCmd()
	return root
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	}
	return err
}

// initConfig loads the configuration and builds the logger.
func (a *app) initConfig(cmd *cobra.Command, args []string) error {
	v := a.v
	switch {
	case a.flags.ConfigFile != "":
		v.SetConfigFile(a.flags.ConfigFile)
	case os.Getenv("FORGE_CONFIG_FILE") != "":
		v.SetConfigFile(os.Getenv("FORGE_CONFIG_FILE"))
	default:
		v.AddConfigPath(a.flags.Cwd)
		v.SetConfigType("yaml")
		v.SetConfigName(".forge")
	}

	v.SetEnvPrefix("FORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	cfg, err := config.LoadFrom(v)
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    cmd.ErrOrStderr(),
		Component: "forge",
	})
	if used := v.ConfigFileUsed(); used != "" {
		if _, err := os.Stat(used); err == nil {
			a.logger.Debug(cmd.Context(), "Using config file", "file", filepath.Clean(used))
		}
	}
	return nil
}
