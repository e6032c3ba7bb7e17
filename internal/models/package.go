package models

import "time"

// AliasEntry maps a friendly name to a canonical package identifier
type AliasEntry struct {
	Alias     string `json:"alias" yaml:"alias"`
	PackageID string `json:"package_id" yaml:"package_id"`
	Category  string `json:"category" yaml:"category"`
}

// PackageMetadata describes a candidate package as reported by the
// repository-management tool
type PackageMetadata struct {
	// Core metadata
	PackageID    string
	Name         string
	License      string
	Categories   []string
	AntiFeatures []string

	// Quality signals
	Added        time.Time
	TargetSDK    int
	Downloads    int64
	Rating       float64
	HasSource    bool
	Reproducible bool

	// Version information, when the index carries it
	SuggestedVersion string
}
