package index

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
)

// Format is the on-disk encoding of an index file
type Format int

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatGzipJSON
)

// String returns the string representation of Format
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatGzipJSON:
		return "json.gz"
	default:
		return "unknown"
	}
}

// Magic bytes for index detection
var gzipMagic = []byte{0x1F, 0x8B}

// DetectFormat determines the index format from its leading bytes
func DetectFormat(header []byte) Format {
	if bytes.HasPrefix(header, gzipMagic) {
		return FormatGzipJSON
	}

	trimmed := bytes.TrimLeft(header, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}

	return FormatUnknown
}

// DetectFileFormat determines the format of the index file at path
func DetectFileFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	// Read first 512 bytes for magic byte detection
	header := make([]byte, 512)
	n, err := f.Read(header)
	if err != nil && n == 0 {
		return FormatUnknown, err
	}

	return DetectFormat(header[:n]), nil
}

// IsIndexFileName reports whether base looks like an F-Droid index file
func IsIndexFileName(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, "index-v1") &&
		(strings.HasSuffix(base, ".json") || strings.HasSuffix(base, ".json.gz"))
}
