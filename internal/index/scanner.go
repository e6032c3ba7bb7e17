package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ralt/apm/internal/models"
	"github.com/sirupsen/logrus"
)

// Scan recursively looks for index files under dir, returned in
// lexical path order
func Scan(ctx context.Context, dir string) ([]string, error) {
	var paths []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Check context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if info.IsDir() || !IsIndexFileName(path) {
			return nil
		}

		format, err := DetectFileFormat(path)
		if err != nil {
			logrus.Warnf("Failed to detect format for %s: %v", path, err)
			return nil
		}
		if format == FormatUnknown {
			logrus.Debugf("Skipping %s: not a JSON index", path)
			return nil
		}

		logrus.Debugf("Found %s index: %s", format, path)
		paths = append(paths, path)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	logrus.Debugf("Found %d index files in %s", len(paths), dir)
	return paths, nil
}

// LoadAll reads every index in paths and merges them. When a package is
// listed by several indexes the first one wins, so callers pass paths in
// priority order.
func LoadAll(ctx context.Context, paths []string) ([]models.PackageMetadata, error) {
	seen := make(map[string]bool)
	var merged []models.PackageMetadata

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pkgs, err := Load(path)
		if err != nil {
			return nil, err
		}

		for _, p := range pkgs {
			if seen[p.PackageID] {
				continue
			}
			seen[p.PackageID] = true
			merged = append(merged, p)
		}
		logrus.Debugf("Loaded %d packages from %s", len(pkgs), path)
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].PackageID < merged[j].PackageID })
	return merged, nil
}
