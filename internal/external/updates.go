package external

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// AvailableUpdates compares the third-party packages installed on device
// with the versions fdroidcl knows about. Packages fdroidcl does not carry,
// or whose versions cannot be read, are skipped.
func AvailableUpdates(ctx context.Context, adb *ADB, fdroid *FDroidCL, device string) ([]Update, error) {
	installed, err := adb.InstalledPackages(ctx, device)
	if err != nil {
		return nil, err
	}

	logrus.Infof("Checking for updates for %d installed packages...", len(installed))

	var updates []Update
	for _, pkg := range installed {
		if err := ctx.Err(); err != nil {
			return updates, err
		}

		current, err := adb.PackageVersion(ctx, device, pkg)
		if err != nil || current == "" {
			logrus.Debugf("No installed version for %s: %v", pkg, err)
			continue
		}

		latest, err := fdroid.LatestVersion(ctx, pkg)
		if err != nil || latest == "" {
			logrus.Debugf("%s not available from repositories", pkg)
			continue
		}

		if versionName(latest) != current {
			updates = append(updates, Update{Package: pkg, CurrentVersion: current, LatestVersion: latest})
		}
	}
	return updates, nil
}

// versionName drops the "(versionCode)" suffix fdroidcl prints
func versionName(v string) string {
	if fields := strings.Fields(v); len(fields) > 0 {
		return fields[0]
	}
	return v
}
