package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ralt/apm/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleIndex = `{
  "repo": {"name": "F-Droid", "timestamp": 1717000000000},
  "apps": [
    {
      "packageName": "org.videolan.vlc",
      "name": "VLC",
      "license": "GPL-2.0-or-later",
      "categories": ["Multimedia"],
      "added": 1325376000000,
      "sourceCode": "https://code.videolan.org/videolan/vlc-android",
      "suggestedVersionName": "3.5.4"
    },
    {
      "packageName": "com.example.adware",
      "license": "MIT",
      "categories": ["Games"],
      "antiFeatures": ["Ads", "Tracking"],
      "downloads": 42,
      "rating": 2.5
    }
  ],
  "packages": {
    "org.videolan.vlc": [
      {"versionCode": 13050405, "versionName": "3.5.4", "targetSdkVersion": 33},
      {"versionCode": 13050300, "versionName": "3.5.3", "targetSdkVersion": 31}
    ],
    "com.example.adware": [
      {"versionCode": 7, "versionName": "0.7", "targetSdkVersion": 21}
    ]
  }
}`

func TestParse(t *testing.T) {
	pkgs, err := Parse([]byte(sampleIndex))
	require.NoError(t, err)
	require.Len(t, pkgs, 2)

	// Sorted by package ID
	adware, vlc := pkgs[0], pkgs[1]

	assert.Equal(t, "org.videolan.vlc", vlc.PackageID)
	assert.Equal(t, "VLC", vlc.Name)
	assert.Equal(t, "GPL-2.0-or-later", vlc.License)
	assert.Equal(t, []string{"Multimedia"}, vlc.Categories)
	assert.True(t, vlc.HasSource)
	assert.Equal(t, 33, vlc.TargetSDK)
	assert.Equal(t, "3.5.4", vlc.SuggestedVersion)
	assert.Equal(t, time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC), vlc.Added)

	assert.Equal(t, "com.example.adware", adware.PackageID)
	assert.Equal(t, []string{"Ads", "Tracking"}, adware.AntiFeatures)
	assert.False(t, adware.HasSource)
	assert.True(t, adware.Added.IsZero())
	assert.Equal(t, int64(42), adware.Downloads)
	assert.Equal(t, 2.5, adware.Rating)
	assert.Equal(t, 21, adware.TargetSDK)
	assert.Equal(t, "0.7", adware.SuggestedVersion)
}

func TestParseAppsAsMap(t *testing.T) {
	pkgs, err := Parse([]byte(`{"apps": {"com.termux": {"license": "GPL-3.0-only", "categories": ["Development"]}}}`))
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	assert.Equal(t, "com.termux", pkgs[0].PackageID)
	assert.Equal(t, "GPL-3.0-only", pkgs[0].License)
}

func TestParseLargeIndex(t *testing.T) {
	const n = 2000
	apps := make([]string, 0, n)
	packages := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("org.example.app%04d", i)
		apps = append(apps, fmt.Sprintf(`{"packageName":%q,"name":"App \u00e9 %d","license":"GPL-3.0","added":1325376000000}`, id, i))
		packages = append(packages, fmt.Sprintf(`%q:[{"versionCode":%d,"versionName":"1.%d","targetSdkVersion":33}]`, id, i+1, i))
	}
	data := fmt.Sprintf(`{"apps":[%s],"packages":{%s}}`, strings.Join(apps, ","), strings.Join(packages, ","))

	pkgs, err := Parse([]byte(data))
	require.NoError(t, err)
	require.Len(t, pkgs, n)

	last, ok := Find(pkgs, "org.example.app1999")
	require.True(t, ok)
	assert.Equal(t, "App é 1999", last.Name)
	assert.Equal(t, 33, last.TargetSDK)
	assert.Equal(t, "1.1999", last.SuggestedVersion)
}

func TestParseGzip(t *testing.T) {
	compressed, err := utils.GzipCompress([]byte(sampleIndex))
	require.NoError(t, err)

	pkgs, err := Parse(compressed)
	require.NoError(t, err)
	assert.Len(t, pkgs, 2)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("PK\x03\x04 jar"))
	assert.ErrorContains(t, err, "unrecognized index format")

	_, err = Parse([]byte(`{"apps": [`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"apps": "nope"}`))
	assert.Error(t, err)

	pkgs, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, pkgs)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatGzipJSON, DetectFormat([]byte{0x1F, 0x8B, 0x08}))
	assert.Equal(t, FormatJSON, DetectFormat([]byte("\n  {\"apps\": []}")))
	assert.Equal(t, FormatUnknown, DetectFormat([]byte("PK\x03\x04")))
	assert.Equal(t, FormatUnknown, DetectFormat(nil))
	assert.Equal(t, "json.gz", FormatGzipJSON.String())
}

func TestFind(t *testing.T) {
	pkgs, err := Parse([]byte(sampleIndex))
	require.NoError(t, err)

	p, ok := Find(pkgs, "org.videolan.vlc")
	require.True(t, ok)
	assert.Equal(t, "VLC", p.Name)

	_, ok = Find(pkgs, "org.videolan")
	assert.False(t, ok)
}

func TestScanAndLoadAll(t *testing.T) {
	dir := t.TempDir()
	fdroid := filepath.Join(dir, "f-droid", "index-v1.json")
	izzy := filepath.Join(dir, "izzy", "index-v1.json.gz")
	require.NoError(t, utils.WriteFile(fdroid, []byte(sampleIndex), 0644))

	compressed, err := utils.GzipCompress([]byte(`{"apps": [
		{"packageName": "org.videolan.vlc", "license": "Proprietary"},
		{"packageName": "com.beemdevelopment.aegis", "license": "GPL-3.0-only"}
	]}`))
	require.NoError(t, err)
	require.NoError(t, utils.WriteFile(izzy, compressed, 0644))

	// Ignored: wrong name, and right name with non-JSON content
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index-v1.json"), []byte("garbage"), 0644))

	paths, err := Scan(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{fdroid, izzy}, paths)

	pkgs, err := LoadAll(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, pkgs, 3)

	vlc, ok := Find(pkgs, "org.videolan.vlc")
	require.True(t, ok)
	assert.Equal(t, "GPL-2.0-or-later", vlc.License, "first index wins")
}

func TestScanCancelled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index-v1.json"), []byte(sampleIndex), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Scan(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}
