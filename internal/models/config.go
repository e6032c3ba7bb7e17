package models

// Repository is an F-Droid style repository known to the external tool
type Repository struct {
	Name        string `mapstructure:"name" yaml:"name"`
	URL         string `mapstructure:"url" yaml:"url"`
	Enabled     *bool  `mapstructure:"enabled" yaml:"enabled,omitempty"`
	Priority    int    `mapstructure:"priority" yaml:"priority,omitempty"`
	Description string `mapstructure:"description" yaml:"description,omitempty"`
}

// IsEnabled reports whether the repository is enabled. Repositories are
// enabled unless the config says otherwise.
func (r Repository) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// UpdateConfig controls the update command
type UpdateConfig struct {
	ContinueOnRepoFailure *bool `mapstructure:"continue_on_repo_failure" yaml:"continue_on_repo_failure,omitempty"`
}

// Config contains the whole apm configuration. It is built once per
// invocation and passed explicitly to every component.
type Config struct {
	// Files
	MappingsFile string `mapstructure:"mappings_file" yaml:"mappings_file"`
	PolicyFile   string `mapstructure:"policy_file" yaml:"policy_file"`
	CacheDir     string `mapstructure:"cache_dir" yaml:"cache_dir"`

	// External tools
	FDroidCLPath string `mapstructure:"fdroidcl_path" yaml:"fdroidcl_path"`
	ADBPath      string `mapstructure:"adb_path" yaml:"adb_path"`

	Repositories []Repository `mapstructure:"repositories" yaml:"repositories"`
	Updates      UpdateConfig `mapstructure:"updates" yaml:"updates"`

	// Where the config was read from, for messages
	Source string `mapstructure:"-" yaml:"-"`
}

// EnabledRepositories returns the enabled repositories in config order
func (c *Config) EnabledRepositories() []Repository {
	var repos []Repository
	for _, r := range c.Repositories {
		if r.IsEnabled() {
			repos = append(repos, r)
		}
	}
	return repos
}

// ContinueOnRepoFailure reports whether device updates should still run
// after a repository refresh failed. Defaults to true.
func (c *Config) ContinueOnRepoFailure() bool {
	return c.Updates.ContinueOnRepoFailure == nil || *c.Updates.ContinueOnRepoFailure
}
