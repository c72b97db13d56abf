package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/forge/internal/glob"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validatePorts(config); err != nil {
		return err
	}

	if err := validatePathsConfig(&config.Paths); err != nil {
		return fmt.Errorf("paths config: %w", err)
	}

	if err := validateGlobsConfig(&config.Globs); err != nil {
		return fmt.Errorf("globs config: %w", err)
	}

	switch config.Server.Environment {
	case "dev", "build":
	default:
		return &ValidationError{
			Field:   "server.environment",
			Value:   config.Server.Environment,
			Message: "must be \"dev\" or \"build\"",
		}
	}

	if config.Server.Delay < 0 || config.Reload.Delay < 0 || config.Reload.Debounce < 0 {
		return &ValidationError{Field: "delay", Message: "delays cannot be negative"}
	}

	if config.Tools.Workers < 1 {
		config.Tools.Workers = 1
	}

	return nil
}

func validatePorts(config *Config) error {
	// 0 is allowed for system-assigned ports in testing
	for field, port := range map[string]int{
		"server.port": config.Server.Port,
		"reload.port": config.Reload.Port,
	} {
		if port < 0 || port > 65535 {
			return &ValidationError{
				Field:   field,
				Value:   port,
				Message: fmt.Sprintf("port %d is not in valid range 0-65535", port),
			}
		}
	}

	if config.Server.Port != 0 && config.Server.Port == config.Reload.Port {
		return &ValidationError{
			Field:   "reload.port",
			Value:   config.Reload.Port,
			Message: "reload bridge cannot share the application server port",
		}
	}

	return nil
}

// validatePathsConfig rejects output directories that escape the project.
func validatePathsConfig(paths *PathsConfig) error {
	outputs := map[string]string{
		"temp":  paths.Temp,
		"build": paths.Build,
		"css":   paths.CSS,
	}
	for field, p := range outputs {
		if err := validatePath(p); err != nil {
			return &ValidationError{Field: field, Value: p, Message: err.Error()}
		}
	}

	if paths.Index == "" {
		return &ValidationError{Field: "index", Message: "empty path"}
	}

	return nil
}

func validateGlobsConfig(globs *GlobsConfig) error {
	sets := map[string][]string{
		"sass":           globs.Sass,
		"bootstrap":      globs.Bootstrap,
		"styles":         globs.Styles,
		"fonts":          globs.Fonts,
		"images":         globs.Images,
		"html_templates": globs.HTMLTemplates,
		"alljs":          globs.AllJS,
		"js":             globs.JS,
		"reload":         globs.Reload,
	}

	for field, patterns := range sets {
		if _, err := glob.New(patterns...); err != nil {
			return &ValidationError{Field: field, Value: patterns, Message: err.Error()}
		}
	}

	return nil
}

// validatePath validates an output path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	if strings.HasPrefix(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	if filepath.IsAbs(cleanPath) {
		return fmt.Errorf("output path should be relative: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
