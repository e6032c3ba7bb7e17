package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ralt/apm/internal/models"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `mappings_file: mappings.yaml
policy_file: /etc/apm/policy.yaml
cache_dir: cache
adb_path: /usr/bin/adb
repositories:
  - name: F-Droid
    url: https://f-droid.org/repo
    priority: 1
    description: Main repository
  - name: IzzyOnDroid
    url: https://apt.izzysoft.de/fdroid/repo
    enabled: false
    priority: 2
updates:
  continue_on_repo_failure: false
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	dir := filepath.Dir(path)

	cfg, err := LoadFile(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, filepath.Join(dir, "mappings.yaml"), cfg.MappingsFile)
	assert.Equal(t, "/etc/apm/policy.yaml", cfg.PolicyFile)
	assert.Equal(t, filepath.Join(dir, "cache"), cfg.CacheDir)
	assert.Equal(t, "/usr/bin/adb", cfg.ADBPath)
	assert.False(t, cfg.ContinueOnRepoFailure())

	require.Len(t, cfg.Repositories, 2)
	assert.Equal(t, "F-Droid", cfg.Repositories[0].Name)
	assert.Equal(t, "Main repository", cfg.Repositories[0].Description)
	assert.True(t, cfg.Repositories[0].IsEnabled())
	assert.False(t, cfg.Repositories[1].IsEnabled())

	enabled := cfg.EnabledRepositories()
	require.Len(t, enabled, 1)
	assert.Equal(t, "F-Droid", enabled[0].Name)
}

func TestLoadFileDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, "repositories: []\n")

	cfg, err := LoadFile(path, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(Dir(), DefaultMappingsFile), cfg.MappingsFile)
	assert.Equal(t, filepath.Join(Dir(), DefaultPolicyFile), cfg.PolicyFile)
	assert.True(t, cfg.ContinueOnRepoFailure())
	assert.Empty(t, cfg.EnabledRepositories())
}

func TestLoadFileFlagsOverride(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("mappings", "", "")
	fs.String("policy", "", "")
	require.NoError(t, fs.Parse([]string{"--mappings", "/tmp/other.yaml"}))

	cfg, err := LoadFile(path, fs)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.yaml", cfg.MappingsFile)
	assert.Equal(t, "/etc/apm/policy.yaml", cfg.PolicyFile)
}

func TestLoadFileEnvOverride(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	t.Setenv("APM_POLICY_FILE", "/srv/policy.yaml")

	cfg, err := LoadFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/srv/policy.yaml", cfg.PolicyFile)
}

func TestLoadFileMalformed(t *testing.T) {
	path := writeConfig(t, "repositories: [\n")

	_, err := LoadFile(path, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConfigLoadFailed)
	assert.Contains(t, err.Error(), path)
}

func TestLoadFileInvalidRepositories(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing name", "repositories:\n  - url: https://example.org/repo\n", "has no name"},
		{"missing url", "repositories:\n  - name: Example\n", "has no url"},
		{"duplicate", "repositories:\n  - name: A\n    url: u1\n  - name: a\n    url: u2\n", "defined twice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.content), nil)
			require.Error(t, err)
			kind, ok := models.KindOf(err)
			require.True(t, ok)
			assert.Equal(t, models.ErrInvalidConfig, kind)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFind(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	_, err := Find(filepath.Join(home, "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConfigLoadFailed)

	userConfig := filepath.Join(home, ".config", "apm", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(userConfig), 0755))
	require.NoError(t, os.WriteFile(userConfig, []byte(sampleConfig), 0644))

	found, err := Find("")
	require.NoError(t, err)
	assert.Equal(t, userConfig, found)

	explicit := writeConfig(t, sampleConfig)
	found, err = Find(explicit)
	require.NoError(t, err)
	assert.Equal(t, explicit, found)
}

func TestLocations(t *testing.T) {
	t.Setenv("HOME", "/home/user")

	assert.Equal(t, []string{"/home/user/apm.yaml"}, Locations("~/apm.yaml"))
	assert.Equal(t, []string{
		"/home/user/.config/apm/config.yaml",
		"config.yaml",
	}, Locations(""))
}

func TestSampleConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := LoadFile(filepath.Join("..", "..", "configs", "config.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "apm", "package_mappings.yaml"), cfg.MappingsFile)
	assert.Equal(t, filepath.Join(home, ".cache", "fdroidcl"), cfg.CacheDir)
	assert.Len(t, cfg.EnabledRepositories(), 2)
	assert.True(t, cfg.ContinueOnRepoFailure())
}
