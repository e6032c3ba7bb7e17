package external

import (
	"context"
	"strings"
)

// FDroidCL drives the fdroidcl repository client
type FDroidCL struct {
	runner Runner
	path   string
}

// NewFDroidCL creates a client. An empty path means "fdroidcl" from PATH.
func NewFDroidCL(runner Runner, path string) *FDroidCL {
	if path == "" {
		path = "fdroidcl"
	}
	return &FDroidCL{runner: runner, path: path}
}

// Update refreshes the repository indexes
func (f *FDroidCL) Update(ctx context.Context) error {
	_, err := f.runner.Output(ctx, nil, f.path, "update")
	return err
}

// Search returns fdroidcl's search listing for query; an empty query lists
// everything
func (f *FDroidCL) Search(ctx context.Context, query string) (string, error) {
	args := []string{"search"}
	if query != "" {
		args = append(args, query)
	}
	return f.runner.Output(ctx, nil, f.path, args...)
}

// Install installs packageID, on device when it is not empty
func (f *FDroidCL) Install(ctx context.Context, packageID, device string) error {
	return f.runner.Run(ctx, deviceEnv(device), f.path, "install", packageID)
}

// LatestVersion returns the version fdroidcl reports for packageID, or ""
// when its output carries none
func (f *FDroidCL) LatestVersion(ctx context.Context, packageID string) (string, error) {
	out, err := f.runner.Output(ctx, nil, f.path, "show", packageID)
	if err != nil {
		return "", err
	}
	return parseShowVersion(out), nil
}

func parseShowVersion(out string) string {
	for _, line := range strings.Split(out, "\n") {
		if _, after, ok := strings.Cut(line, "Version:"); ok {
			return strings.TrimSpace(after)
		}
	}
	return ""
}

func deviceEnv(device string) []string {
	if device == "" {
		return nil
	}
	return []string{"ANDROID_SERIAL=" + device}
}
