package external

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ralt/apm/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	env  []string
	name string
	args []string
}

// fakeRunner answers commands from a table keyed by the joined arguments
type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []call
}

func (f *fakeRunner) Output(ctx context.Context, env []string, name string, args ...string) (string, error) {
	f.calls = append(f.calls, call{env: env, name: name, args: args})
	key := strings.Join(args, " ")
	return f.outputs[key], f.errs[key]
}

func (f *fakeRunner) Run(ctx context.Context, env []string, name string, args ...string) error {
	f.calls = append(f.calls, call{env: env, name: name, args: args})
	return f.errs[strings.Join(args, " ")]
}

func TestFDroidCLInstall(t *testing.T) {
	r := &fakeRunner{}
	f := NewFDroidCL(r, "")

	require.NoError(t, f.Install(context.Background(), "org.videolan.vlc", "emulator-5554"))
	require.NoError(t, f.Install(context.Background(), "org.videolan.vlc", ""))

	require.Len(t, r.calls, 2)
	assert.Equal(t, "fdroidcl", r.calls[0].name)
	assert.Equal(t, []string{"install", "org.videolan.vlc"}, r.calls[0].args)
	assert.Equal(t, []string{"ANDROID_SERIAL=emulator-5554"}, r.calls[0].env)
	assert.Nil(t, r.calls[1].env)
}

func TestFDroidCLSearchAndShow(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"search":                "org.videolan.vlc | VLC\ncom.termux | Termux",
		"search vlc":            "org.videolan.vlc | VLC",
		"show org.videolan.vlc": "Package    : org.videolan.vlc\nName       : VLC\nVersion: 3.5.4 (13050405)\n",
	}}
	f := NewFDroidCL(r, "/opt/bin/fdroidcl")

	out, err := f.Search(context.Background(), "vlc")
	require.NoError(t, err)
	assert.Equal(t, "org.videolan.vlc | VLC", out)

	out, err = f.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, out, "com.termux")

	v, err := f.LatestVersion(context.Background(), "org.videolan.vlc")
	require.NoError(t, err)
	assert.Equal(t, "3.5.4 (13050405)", v)
	assert.Equal(t, "/opt/bin/fdroidcl", r.calls[0].name)
}

func TestADBDevices(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"devices": "List of devices attached\nemulator-5554\tdevice\n0123456789ABCDEF\tunauthorized\nR58M123\tdevice",
	}}
	a := NewADB(r, "/usr/bin/adb")

	devices, err := a.Devices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"emulator-5554", "R58M123"}, devices)
	assert.True(t, a.Available())
	assert.False(t, NewADB(r, "").Available())
}

func TestADBPackages(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"-s R58M123 shell pm list packages -3":              "package:org.videolan.vlc\npackage:com.termux\n\n",
		"-s R58M123 shell dumpsys package org.videolan.vlc": "Packages:\n    versionCode=13050300 minSdk=21\n    versionName=3.5.3 extra\n",
		"-s R58M123 shell getprop ro.product.model":         "Pixel 7",
		"-s R58M123 shell getprop ro.product.brand":         "google",
	}}
	a := NewADB(r, "adb")
	ctx := context.Background()

	pkgs, err := a.InstalledPackages(ctx, "R58M123")
	require.NoError(t, err)
	assert.Equal(t, []string{"org.videolan.vlc", "com.termux"}, pkgs)

	v, err := a.PackageVersion(ctx, "R58M123", "org.videolan.vlc")
	require.NoError(t, err)
	assert.Equal(t, "3.5.3", v)

	assert.Equal(t, "google Pixel 7", a.DeviceInfo(ctx, "R58M123"))
	assert.Equal(t, "other", a.DeviceInfo(ctx, "other"))
}

func TestExecRunnerMissingBinary(t *testing.T) {
	r := NewExecRunner()

	_, err := r.Output(context.Background(), nil, "apm-definitely-not-installed-tool", "update")
	require.Error(t, err)
	kind, ok := models.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, models.ErrExternal, kind)
	assert.Contains(t, err.Error(), "please install it first")
}

func TestProber(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodHead, r.Method)
		switch r.URL.Path {
		case "/repo/index-v1.jar":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewProber(time.Second, 0)
	ctx := context.Background()

	require.NoError(t, p.Probe(ctx, srv.URL+"/repo"))
	require.NoError(t, p.Probe(ctx, srv.URL+"/repo/"))

	err := p.Probe(ctx, srv.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(3), hits.Load())
}

func TestProberUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewProber(200*time.Millisecond, 0).Probe(context.Background(), url)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}

func TestAvailableUpdates(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"-s R58M123 shell pm list packages -3":               "package:org.videolan.vlc\npackage:com.termux\npackage:com.example.local",
		"-s R58M123 shell dumpsys package org.videolan.vlc":  "versionName=3.5.3",
		"-s R58M123 shell dumpsys package com.termux":        "versionName=0.118.0",
		"-s R58M123 shell dumpsys package com.example.local": "versionName=1.0",
		"show org.videolan.vlc":                              "Version: 3.5.4 (13050405)",
		"show com.termux":                                    "Version: 0.118.0 (118)",
	}}
	adb := NewADB(r, "adb")
	fdroid := NewFDroidCL(r, "fdroidcl")

	updates, err := AvailableUpdates(context.Background(), adb, fdroid, "R58M123")
	require.NoError(t, err)
	assert.Equal(t, []Update{{
		Package:        "org.videolan.vlc",
		CurrentVersion: "3.5.3",
		LatestVersion:  "3.5.4 (13050405)",
	}}, updates)
}
