package core

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Stream compression codecs understood by text-like writers.
const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
	CompressionXZ   = "xz"
)

var compressionSuffixes = map[string]string{
	".gz":   CompressionGzip,
	".gzip": CompressionGzip,
	".zst":  CompressionZstd,
	".zstd": CompressionZstd,
	".xz":   CompressionXZ,
}

// ResolveCompression maps a user supplied codec name to a stream codec. An
// empty name or "infer" picks the codec from the path suffix.
func ResolveCompression(name, path string) (string, error) {
	switch strings.ToLower(name) {
	case "", "infer":
		return compressionFromPath(path), nil
	case "none", "uncompressed":
		return CompressionNone, nil
	case "gzip", "gz":
		return CompressionGzip, nil
	case "zstd", "zst":
		return CompressionZstd, nil
	case "xz":
		return CompressionXZ, nil
	default:
		return "", InvalidOptionf("unsupported compression %q (supported: gzip, zstd, xz)", name)
	}
}

func compressionFromPath(path string) string {
	lower := strings.ToLower(path)
	for suffix, codec := range compressionSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return codec
		}
	}
	return CompressionNone
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// NewCompressWriter wraps w with the given codec. Closing the returned writer
// flushes the codec but never closes w. level is honoured by gzip and zstd.
func NewCompressWriter(w io.Writer, codec string, level *int) (io.WriteCloser, error) {
	switch codec {
	case "", CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionGzip:
		lvl := gzip.DefaultCompression
		if level != nil {
			lvl = *level
		}
		gw, err := gzip.NewWriterLevel(w, lvl)
		if err != nil {
			return nil, InvalidOptionf("gzip compression level %d: %s", lvl, err)
		}
		return gw, nil
	case CompressionZstd:
		opts := []zstd.EOption{}
		if level != nil {
			opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(*level)))
		}
		zw, err := zstd.NewWriter(w, opts...)
		if err != nil {
			return nil, fmt.Errorf("zstd.NewWriter: %w", err)
		}
		return zw, nil
	case CompressionXZ:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("xz.NewWriter: %w", err)
		}
		return xw, nil
	default:
		return nil, InvalidOptionf("unsupported compression %q", codec)
	}
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r *readCloser) Close() error { return r.close() }

// OpenDecompressed opens path for reading, transparently decompressing
// gzip, zstd and xz files recognised by their suffix.
func OpenDecompressed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, MarkNotFound(err)
	}

	switch compressionFromPath(path) {
	case CompressionGzip:
		gr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip.NewReader: %w", err)
		}
		return &readCloser{Reader: gr, close: func() error {
			gr.Close()
			return f.Close()
		}}, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd.NewReader: %w", err)
		}
		return &readCloser{Reader: zr, close: func() error {
			zr.Close()
			return f.Close()
		}}, nil
	case CompressionXZ:
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("xz.NewReader: %w", err)
		}
		return &readCloser{Reader: xr, close: f.Close}, nil
	default:
		return f, nil
	}
}
