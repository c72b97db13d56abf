package cmd

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// GlobalFlags are accepted by every command.
type GlobalFlags struct {
	ConfigFile string
	Cwd        string
	LogLevel   string
	Verbose    bool
}

// Register adds the flags to fs and binds the ones that are configuration
// keys to v, so a flag overrides the file and environment.
func (f *GlobalFlags) Register(fs *pflag.FlagSet, v *viper.Viper) error {
	fs.StringVar(&f.ConfigFile, "config", "", "config file (default is .forge.yml, can also use FORGE_CONFIG_FILE env var)")
	fs.StringVar(&f.Cwd, "cwd", ".", "project directory all configured paths are relative to")
	fs.StringVarP(&f.LogLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
	fs.BoolVarP(&f.Verbose, "verbose", "v", false, "print the files vet checks")

	bindings := map[string]string{
		"log.level": "log-level",
		"verbose":   "verbose",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}
