package external

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ralt/apm/internal/utils"
)

// Locations tried when adb is not on PATH
var adbFallbackPaths = []string{
	"/usr/bin/adb",
	"/usr/local/bin/adb",
	"~/android-sdk/platform-tools/adb",
	"~/Android/Sdk/platform-tools/adb",
	"/opt/android-sdk/platform-tools/adb",
}

// FindADB returns configured if set, otherwise adb from PATH or a common
// SDK location. It returns "" when adb cannot be found.
func FindADB(configured string) string {
	if configured != "" {
		return utils.ExpandHome(configured)
	}
	if path, err := exec.LookPath("adb"); err == nil {
		return path
	}
	for _, p := range adbFallbackPaths {
		p = utils.ExpandHome(p)
		if info, err := os.Stat(p); err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
			return filepath.Clean(p)
		}
	}
	return ""
}

// Update describes an installed package with a newer version available
type Update struct {
	Package        string
	CurrentVersion string
	LatestVersion  string
}

// ADB queries devices through the Android debug bridge
type ADB struct {
	runner Runner
	path   string
}

// NewADB creates a client for the adb binary at path
func NewADB(runner Runner, path string) *ADB {
	return &ADB{runner: runner, path: path}
}

// Available reports whether an adb binary was found
func (a *ADB) Available() bool {
	return a.path != ""
}

func (a *ADB) output(ctx context.Context, device string, args ...string) (string, error) {
	if device != "" {
		args = append([]string{"-s", device}, args...)
	}
	return a.runner.Output(ctx, nil, a.path, args...)
}

// Devices lists the serials of connected devices
func (a *ADB) Devices(ctx context.Context) ([]string, error) {
	out, err := a.output(ctx, "", "devices")
	if err != nil {
		return nil, err
	}
	return parseDevices(out), nil
}

func parseDevices(out string) []string {
	var devices []string
	lines := strings.Split(out, "\n")
	for _, line := range lines[min(1, len(lines)):] {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == "device" {
			devices = append(devices, fields[0])
		}
	}
	return devices
}

// InstalledPackages lists third-party packages installed on device
func (a *ADB) InstalledPackages(ctx context.Context, device string) ([]string, error) {
	out, err := a.output(ctx, device, "shell", "pm", "list", "packages", "-3")
	if err != nil {
		return nil, err
	}

	var pkgs []string
	for _, line := range strings.Split(out, "\n") {
		if name, ok := strings.CutPrefix(strings.TrimSpace(line), "package:"); ok && name != "" {
			pkgs = append(pkgs, name)
		}
	}
	return pkgs, nil
}

// PackageVersion returns the installed versionName of packageID, or "" when
// dumpsys does not report one
func (a *ADB) PackageVersion(ctx context.Context, device, packageID string) (string, error) {
	out, err := a.output(ctx, device, "shell", "dumpsys", "package", packageID)
	if err != nil {
		return "", err
	}
	return parseVersionName(out), nil
}

func parseVersionName(out string) string {
	for _, line := range strings.Split(out, "\n") {
		if _, after, ok := strings.Cut(line, "versionName="); ok {
			if fields := strings.Fields(after); len(fields) > 0 {
				return fields[0]
			}
		}
	}
	return ""
}

// DeviceInfo returns "brand model" for device, falling back to the serial
func (a *ADB) DeviceInfo(ctx context.Context, device string) string {
	model, err := a.output(ctx, device, "shell", "getprop", "ro.product.model")
	if err != nil || model == "" {
		return device
	}
	brand, err := a.output(ctx, device, "shell", "getprop", "ro.product.brand")
	if err != nil || brand == "" {
		return model
	}
	return brand + " " + model
}
