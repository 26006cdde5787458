package image

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/imamik/amiforge/internal/config"
)

// decompressCommand returns the remote command that undoes codec.
func decompressCommand(codec string) (string, error) {
	switch codec {
	case config.CompressionGzip:
		return "gzip -d -c", nil
	case config.CompressionZstd:
		return "zstd -d -c", nil
	case config.CompressionNone:
		return "cat", nil
	default:
		return "", fmt.Errorf("unsupported compression %q", codec)
	}
}

func newEncoder(codec string, w io.Writer) (io.WriteCloser, error) {
	switch codec {
	case config.CompressionGzip:
		return gzip.NewWriter(w), nil
	case config.CompressionZstd:
		return zstd.NewWriter(w)
	default:
		return nil, fmt.Errorf("unsupported compression %q", codec)
	}
}

// compressStream returns a reader of src compressed with codec. Closing the
// reader stops the compressor.
func compressStream(codec string, src io.Reader) (io.ReadCloser, error) {
	if _, err := decompressCommand(codec); err != nil {
		return nil, err
	}
	if codec == config.CompressionNone {
		return io.NopCloser(src), nil
	}

	pr, pw := io.Pipe()
	go func() {
		enc, err := newEncoder(codec, pw)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(enc, src); err != nil {
			_ = enc.Close()
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(enc.Close())
	}()
	return pr, nil
}
