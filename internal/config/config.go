// Package config locates and reads config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ralt/apm/internal/models"
	"github.com/ralt/apm/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	fileName = "config"
	fileType = "yaml"

	// EnvPrefix is the prefix of environment overrides, e.g. APM_MAPPINGS_FILE
	EnvPrefix = "APM"

	DefaultMappingsFile = "package_mappings.yaml"
	DefaultPolicyFile   = "curation_policy.yaml"
)

// flagKeys maps command-line flags onto config keys
var flagKeys = map[string]string{
	"mappings": "mappings_file",
	"policy":   "policy_file",
	"fdroidcl": "fdroidcl_path",
	"adb":      "adb_path",
}

// Dir returns the per-user config directory (~/.config/apm)
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "apm")
	}
	return filepath.Join(home, ".config", "apm")
}

// Locations returns the candidate config files in lookup order. An explicit
// path replaces the search entirely.
func Locations(explicit string) []string {
	if explicit != "" {
		return []string{utils.ExpandHome(explicit)}
	}
	return []string{
		filepath.Join(Dir(), fileName+"."+fileType),
		filepath.Join(".", fileName+"."+fileType),
	}
}

// Find returns the first existing config file
func Find(explicit string) (string, error) {
	locations := Locations(explicit)
	for _, path := range locations {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", models.NewError(models.ErrConfigLoad, strings.Join(locations, ", "),
		errors.New("no configuration file found"))
}

// Load reads the config file found by Find. Flags in fs that are set
// override the file; environment variables prefixed with APM override both.
// There are no built-in repository defaults: a missing file is an error.
func Load(explicit string, fs *pflag.FlagSet) (*models.Config, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, err
	}
	return LoadFile(path, fs)
}

// LoadFile reads the config at path
func LoadFile(path string, fs *pflag.FlagSet) (*models.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(fileType)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows about
	for _, key := range flagKeys {
		_ = v.BindEnv(key)
	}
	if fs != nil {
		for flag, key := range flagKeys {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", flag, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, models.NewError(models.ErrConfigLoad, path, err)
	}

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, models.NewError(models.ErrConfigLoad, path, err)
	}
	cfg.Source = path

	applyDefaults(&cfg, filepath.Dir(path), fs)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	logrus.Debugf("Loaded config from %s", path)
	return &cfg, nil
}

func applyDefaults(cfg *models.Config, baseDir string, fs *pflag.FlagSet) {
	if cfg.MappingsFile == "" {
		cfg.MappingsFile = filepath.Join(Dir(), DefaultMappingsFile)
	}
	if cfg.PolicyFile == "" {
		cfg.PolicyFile = filepath.Join(Dir(), DefaultPolicyFile)
	}
	if cfg.CacheDir == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			cfg.CacheDir = filepath.Join(dir, "fdroidcl")
		}
	}

	// Paths given on the command line are relative to the working directory
	cfg.MappingsFile = resolvePath(pathBase(baseDir, fs, "mappings"), cfg.MappingsFile)
	cfg.PolicyFile = resolvePath(pathBase(baseDir, fs, "policy"), cfg.PolicyFile)
	cfg.CacheDir = resolvePath(baseDir, cfg.CacheDir)
	if cfg.FDroidCLPath != "" {
		cfg.FDroidCLPath = utils.ExpandHome(cfg.FDroidCLPath)
	}
}

func pathBase(baseDir string, fs *pflag.FlagSet, flag string) string {
	if fs != nil && fs.Changed(flag) {
		return "."
	}
	return baseDir
}

// resolvePath expands ~ and makes relative paths relative to the config file
func resolvePath(baseDir, path string) string {
	if path == "" {
		return ""
	}
	path = utils.ExpandHome(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// Validate checks the repository list
func Validate(cfg *models.Config) error {
	seen := make(map[string]bool)
	for i, repo := range cfg.Repositories {
		if strings.TrimSpace(repo.Name) == "" {
			return models.NewError(models.ErrInvalidConfig, cfg.Source,
				fmt.Errorf("repository #%d has no name", i+1))
		}
		if strings.TrimSpace(repo.URL) == "" {
			return models.NewError(models.ErrInvalidConfig, cfg.Source,
				fmt.Errorf("repository %q has no url", repo.Name))
		}
		key := strings.ToLower(repo.Name)
		if seen[key] {
			return models.NewError(models.ErrInvalidConfig, cfg.Source,
				fmt.Errorf("repository %q is defined twice", repo.Name))
		}
		seen[key] = true
	}
	return nil
}
