package utils

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// MaxDecompressedSize caps how much a gzip index or report may expand to.
const MaxDecompressedSize = 256 << 20

var gzipMagic = []byte{0x1F, 0x8B}

// GzipCompress compresses data at the best compression level
func GzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func GzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, MaxDecompressedSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed data exceeds %d bytes", MaxDecompressedSize)
	}
	return out, nil
}

// IsGzip reports whether data starts with the gzip magic bytes
func IsGzip(data []byte) bool {
	return bytes.HasPrefix(data, gzipMagic)
}
