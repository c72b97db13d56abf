// Package config provides configuration management for forge using Viper
// for loading from files, environment variables and command-line flags.
//
// The resulting Config is built once at process start and passed explicitly
// to every component. Nothing mutates it afterwards.
package config

import (
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"

	forgeerrors "github.com/conneroisu/forge/internal/errors"
)

type Config struct {
	Paths         PathsConfig         `yaml:"paths" mapstructure:"paths"`
	Globs         GlobsConfig         `yaml:"globs" mapstructure:"globs"`
	TemplateCache TemplateCacheConfig `yaml:"template_cache" mapstructure:"template_cache"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Reload        ReloadConfig        `yaml:"reload" mapstructure:"reload"`
	Watch         WatchConfig         `yaml:"watch" mapstructure:"watch"`
	Tools         ToolsConfig         `yaml:"tools" mapstructure:"tools"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
	Verbose       bool                `yaml:"-" mapstructure:"verbose"`
}

// PathsConfig holds the directories the tasks read from and write to.
type PathsConfig struct {
	Client    string `yaml:"client" mapstructure:"client"`
	ClientApp string `yaml:"client_app" mapstructure:"client_app"`
	Temp      string `yaml:"temp" mapstructure:"temp"`
	Server    string `yaml:"server" mapstructure:"server"`
	Views     string `yaml:"views" mapstructure:"views"`
	Build     string `yaml:"build" mapstructure:"build"`
	CSS       string `yaml:"css" mapstructure:"css"`
	Index     string `yaml:"index" mapstructure:"index"`
}

// GlobsConfig holds the file sets. Entries starting with "!" exclude.
type GlobsConfig struct {
	Sass          []string `yaml:"sass" mapstructure:"sass"`
	Bootstrap     []string `yaml:"bootstrap" mapstructure:"bootstrap"`
	Styles        []string `yaml:"styles" mapstructure:"styles"`
	Fonts         []string `yaml:"fonts" mapstructure:"fonts"`
	Images        []string `yaml:"images" mapstructure:"images"`
	HTMLTemplates []string `yaml:"html_templates" mapstructure:"html_templates"`
	AllJS         []string `yaml:"alljs" mapstructure:"alljs"`
	JS            []string `yaml:"js" mapstructure:"js"`
	Reload        []string `yaml:"reload" mapstructure:"reload"`
}

type TemplateCacheConfig struct {
	File       string `yaml:"file" mapstructure:"file"`
	Module     string `yaml:"module" mapstructure:"module"`
	Standalone bool   `yaml:"standalone" mapstructure:"standalone"`
	Root       string `yaml:"root" mapstructure:"root"`
}

type ServerConfig struct {
	Host        string        `yaml:"host" mapstructure:"host"`
	Port        int           `yaml:"port" mapstructure:"port"`
	Command     string        `yaml:"command" mapstructure:"command"`
	Script      string        `yaml:"script" mapstructure:"script"`
	Environment string        `yaml:"environment" mapstructure:"environment"`
	Delay       time.Duration `yaml:"delay" mapstructure:"delay"`
}

type ReloadConfig struct {
	Port          int           `yaml:"port" mapstructure:"port"`
	Delay         time.Duration `yaml:"delay" mapstructure:"delay"`
	InjectChanges bool          `yaml:"inject_changes" mapstructure:"inject_changes"`
	Notify        bool          `yaml:"notify" mapstructure:"notify"`
	Debounce      time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

// WatchConfig names the tasks rerun when a watched file set changes.
type WatchConfig struct {
	StyleTasks    []string `yaml:"style_tasks" mapstructure:"style_tasks"`
	TemplateTasks []string `yaml:"template_tasks" mapstructure:"template_tasks"`
}

// ToolConfig describes an external command. Args may contain the
// placeholders {input}, {output}, {files} and {browsers}. An empty Command
// disables the tool.
type ToolConfig struct {
	Command string   `yaml:"command" mapstructure:"command"`
	Args    []string `yaml:"args" mapstructure:"args"`
}

// Enabled reports whether the tool has a command configured.
func (t ToolConfig) Enabled() bool {
	return t.Command != ""
}

type ToolsConfig struct {
	Sass         ToolConfig `yaml:"sass" mapstructure:"sass"`
	Autoprefixer ToolConfig `yaml:"autoprefixer" mapstructure:"autoprefixer"`
	Browsers     []string   `yaml:"browsers" mapstructure:"browsers"`
	Imagemin     ToolConfig `yaml:"imagemin" mapstructure:"imagemin"`
	JSHint       ToolConfig `yaml:"jshint" mapstructure:"jshint"`
	JSCS         ToolConfig `yaml:"jscs" mapstructure:"jscs"`
	Workers      int        `yaml:"workers" mapstructure:"workers"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerAddr returns host:port of the supervised server.
func (c *Config) ServerAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// ProxyTarget returns the URL the reload bridge forwards to.
func (c *Config) ProxyTarget() string {
	return "http://" + c.ServerAddr()
}

// TemplateCachePath returns where templatecache writes its bundle.
func (c *Config) TemplateCachePath() string {
	return filepath.Join(c.Paths.Temp, c.TemplateCache.File)
}

// BuildPath joins elem onto the build output directory.
func (c *Config) BuildPath(elem ...string) string {
	return filepath.Join(append([]string{c.Paths.Build}, elem...)...)
}

func configError(code, message string, v *viper.Viper, cause error) error {
	err := forgeerrors.NewConfigError(code, message, cause)
	if file := v.ConfigFileUsed(); file != "" {
		err = err.WithPath(file)
	}
	return err
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applying defaults and validation.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, configError("DECODE_FAILED", "cannot decode configuration", v, err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, configError("INVALID_CONFIG", "invalid configuration", v, err)
	}

	return &config, nil
}
