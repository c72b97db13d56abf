// Package internal contains the core implementation packages for forge.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - config: Configuration loading with viper, defaults and validation
//   - glob: Gulp-style glob sets with "**" and "!" exclusions
//   - runner: Task registry and dependency-ordered task execution
//   - asset: File pipelines, external tool transforms, minification and the
//     template cache
//   - inject: Layout marker injection and build block bundling
//   - lint: The vet task over jscs and jshint
//   - watcher: File system monitoring with debouncing and watch bindings
//   - supervisor: App server process lifecycle with restart on change
//   - reload: Browser reload bridge with websocket hub and proxy
//   - tasks: The task catalogue wiring everything to one configuration
//   - errors: Error taxonomy, collection and tool output parsing
//   - logging: Structured logging over log/slog
//
// # Inter-Package Communication
//
//   - The runner executes task actions defined by the tasks catalogue
//   - The watcher delivers coalesced change batches to watch bindings
//   - Bindings rerun tasks, restart the supervised server or push reloads
//   - The supervisor starts the reload bridge once the app is running
package internal
