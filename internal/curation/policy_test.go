package curation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ralt/apm/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "curation_policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadPolicy(t *testing.T) {
	path := writePolicy(t, `approved_licenses:
  - GPL-3.0-only
  - Apache-2.0
approved_categories:
  - Security
blocked_anti_features:
  - Ads
  - Tracking
quality_filters:
  min_target_sdk: 26
  max_age_days: 365
  require_source_code: true
`)

	p, err := LoadPolicy(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"GPL-3.0-only", "Apache-2.0"}, p.ApprovedLicenses)
	assert.Equal(t, []string{"Security"}, p.ApprovedCategories)
	assert.Equal(t, []string{"Ads", "Tracking"}, p.BlockedAntiFeatures)
	require.NotNil(t, p.QualityFilters.MinTargetSDK)
	assert.Equal(t, 26, *p.QualityFilters.MinTargetSDK)
	require.NotNil(t, p.QualityFilters.MaxAgeDays)
	assert.Equal(t, 365, *p.QualityFilters.MaxAgeDays)
	require.NotNil(t, p.QualityFilters.RequireSourceCode)
	assert.True(t, *p.QualityFilters.RequireSourceCode)

	// Unset thresholds stay unset
	assert.Nil(t, p.QualityFilters.MinDownloads)
	assert.Nil(t, p.QualityFilters.MinRating)
	assert.Nil(t, p.QualityFilters.RequireReproducibleBuilds)
}

func TestLoadPolicyEmptyFile(t *testing.T) {
	p, err := LoadPolicy(writePolicy(t, ""))
	require.NoError(t, err)
	assert.Empty(t, p.ApprovedLicenses)
	assert.Nil(t, p.QualityFilters.MinTargetSDK)
}

func TestLoadPolicyErrors(t *testing.T) {
	tests := map[string]string{
		"unknown key":        "approved_license:\n  - MIT\n",
		"unknown threshold":  "quality_filters:\n  min_sdk: 21\n",
		"wrong type":         "approved_licenses: MIT\n",
		"negative threshold": "quality_filters:\n  min_downloads: -1\n",
		"empty value":        "blocked_anti_features:\n  - \"\"\n",
		"broken yaml":        "approved_licenses: [MIT\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := writePolicy(t, content)

			p, err := LoadPolicy(path)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, models.ErrConfigLoadFailed)
			assert.Contains(t, err.Error(), path)
		})
	}
}

func TestLoadPolicyMissingFile(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConfigLoadFailed)
	assert.Contains(t, err.Error(), "policy file not found")
}

func TestSamplePolicy(t *testing.T) {
	p, err := LoadPolicy(filepath.Join("..", "..", "configs", "curation_policy.yaml"))
	require.NoError(t, err)
	assert.Contains(t, p.BlockedAntiFeatures, "Tracking")
	require.NotNil(t, p.QualityFilters.MinTargetSDK)
	assert.Equal(t, 26, *p.QualityFilters.MinTargetSDK)
	assert.Nil(t, p.QualityFilters.MinDownloads)
}
