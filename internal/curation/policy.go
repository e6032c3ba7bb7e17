package curation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ralt/apm/internal/models"
	"gopkg.in/yaml.v3"
)

// Policy is a curation policy snapshot. Empty sets mean no restriction;
// nil quality thresholds are not checked.
type Policy struct {
	ApprovedLicenses    []string       `yaml:"approved_licenses"`
	ApprovedCategories  []string       `yaml:"approved_categories"`
	BlockedAntiFeatures []string       `yaml:"blocked_anti_features"`
	QualityFilters      QualityFilters `yaml:"quality_filters"`
}

// QualityFilters holds optional numeric and boolean thresholds
type QualityFilters struct {
	MinDownloads              *int64   `yaml:"min_downloads,omitempty"`
	MinRating                 *float64 `yaml:"min_rating,omitempty"`
	MinTargetSDK              *int     `yaml:"min_target_sdk,omitempty"`
	MaxAgeDays                *int     `yaml:"max_age_days,omitempty"`
	RequireSourceCode         *bool    `yaml:"require_source_code,omitempty"`
	RequireReproducibleBuilds *bool    `yaml:"require_reproducible_builds,omitempty"`
}

// LoadPolicy reads and validates a policy file. Any failure, including a
// missing file, is a ConfigLoadError: there is no built-in fallback policy.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("policy file not found: %w", err)
		}
		return nil, models.NewError(models.ErrConfigLoad, path, err)
	}

	p, err := ParsePolicy(data)
	if err != nil {
		return nil, models.NewError(models.ErrConfigLoad, path, err)
	}
	return p, nil
}

// ParsePolicy decodes a policy document. Unknown keys are rejected so a
// misspelled threshold does not silently disable a rule.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing policy: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks threshold ranges
func (p *Policy) Validate() error {
	q := p.QualityFilters
	if q.MinDownloads != nil && *q.MinDownloads < 0 {
		return fmt.Errorf("min_downloads must not be negative")
	}
	if q.MinRating != nil && *q.MinRating < 0 {
		return fmt.Errorf("min_rating must not be negative")
	}
	if q.MinTargetSDK != nil && *q.MinTargetSDK < 0 {
		return fmt.Errorf("min_target_sdk must not be negative")
	}
	if q.MaxAgeDays != nil && *q.MaxAgeDays < 0 {
		return fmt.Errorf("max_age_days must not be negative")
	}
	for _, set := range [][]string{p.ApprovedLicenses, p.ApprovedCategories, p.BlockedAntiFeatures} {
		for _, v := range set {
			if v == "" {
				return fmt.Errorf("policy lists must not contain empty values")
			}
		}
	}
	return nil
}
