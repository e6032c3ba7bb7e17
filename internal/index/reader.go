// Package index reads package metadata from local repository index files
// produced by the external repository-management tool.
package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/ralt/apm/internal/models"
	"github.com/ralt/apm/internal/utils"
)

// rawIndex is the subset of an F-Droid index-v1 document apm reads.
// Apps may be a list (current format) or a map keyed by package name.
type rawIndex struct {
	Apps     json.RawMessage         `json:"apps"`
	Packages map[string][]rawPackage `json:"packages"`
}

type rawApp struct {
	PackageName          string   `json:"packageName"`
	Name                 string   `json:"name"`
	License              string   `json:"license"`
	Categories           []string `json:"categories"`
	AntiFeatures         []string `json:"antiFeatures"`
	Added                int64    `json:"added"`
	SourceCode           string   `json:"sourceCode"`
	SuggestedVersionName string   `json:"suggestedVersionName"`

	// Not part of the F-Droid format; mirrors that track them may add these
	Downloads    int64   `json:"downloads"`
	Rating       float64 `json:"rating"`
	Reproducible bool    `json:"reproducible"`
}

type rawPackage struct {
	VersionCode      int64  `json:"versionCode"`
	VersionName      string `json:"versionName"`
	TargetSdkVersion int    `json:"targetSdkVersion"`
}

// Load reads an index file, plain or gzip-compressed
func Load(path string) ([]models.PackageMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	pkgs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pkgs, nil
}

// Parse decodes index data into metadata records sorted by package ID
func Parse(data []byte) ([]models.PackageMetadata, error) {
	switch DetectFormat(data) {
	case FormatGzipJSON:
		var err error
		data, err = utils.GzipDecompress(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress index: %w", err)
		}
	case FormatUnknown:
		return nil, fmt.Errorf("unrecognized index format")
	}

	// Indexes run to several megabytes
	var raw rawIndex
	if err := sonic.ConfigStd.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}

	apps, err := decodeApps(raw.Apps)
	if err != nil {
		return nil, err
	}

	pkgs := make([]models.PackageMetadata, 0, len(apps))
	for _, app := range apps {
		if app.PackageName == "" {
			continue
		}
		pkgs = append(pkgs, toMetadata(app, raw.Packages[app.PackageName]))
	}

	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].PackageID < pkgs[j].PackageID })
	return pkgs, nil
}

func decodeApps(data json.RawMessage) ([]rawApp, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var apps []rawApp
		if err := sonic.ConfigStd.Unmarshal(trimmed, &apps); err != nil {
			return nil, fmt.Errorf("failed to decode apps: %w", err)
		}
		return apps, nil
	}

	var byName map[string]rawApp
	if err := sonic.ConfigStd.Unmarshal(trimmed, &byName); err != nil {
		return nil, fmt.Errorf("failed to decode apps: %w", err)
	}
	apps := make([]rawApp, 0, len(byName))
	for name, app := range byName {
		if app.PackageName == "" {
			app.PackageName = name
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// toMetadata converts an app entry. The target SDK comes from the highest
// version code listed for the app.
func toMetadata(app rawApp, versions []rawPackage) models.PackageMetadata {
	meta := models.PackageMetadata{
		PackageID:        app.PackageName,
		Name:             app.Name,
		License:          app.License,
		Categories:       app.Categories,
		AntiFeatures:     app.AntiFeatures,
		HasSource:        app.SourceCode != "",
		Downloads:        app.Downloads,
		Rating:           app.Rating,
		Reproducible:     app.Reproducible,
		SuggestedVersion: app.SuggestedVersionName,
	}

	// F-Droid timestamps are milliseconds since the epoch
	if app.Added > 0 {
		meta.Added = time.UnixMilli(app.Added).UTC()
	}

	var latest *rawPackage
	for i := range versions {
		if latest == nil || versions[i].VersionCode > latest.VersionCode {
			latest = &versions[i]
		}
	}
	if latest != nil {
		meta.TargetSDK = latest.TargetSdkVersion
		if meta.SuggestedVersion == "" {
			meta.SuggestedVersion = latest.VersionName
		}
	}

	return meta
}

// Find returns the metadata record for packageID
func Find(pkgs []models.PackageMetadata, packageID string) (models.PackageMetadata, bool) {
	i := sort.Search(len(pkgs), func(i int) bool { return pkgs[i].PackageID >= packageID })
	if i < len(pkgs) && pkgs[i].PackageID == packageID {
		return pkgs[i], true
	}
	return models.PackageMetadata{}, false
}
