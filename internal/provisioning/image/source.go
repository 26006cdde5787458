package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/imamik/amiforge/internal/platform/s3"
)

// GiB is the volume size unit.
const GiB int64 = 1 << 30

// ImageSource is a raw disk image to upload.
type ImageSource interface {
	// Name identifies the source in descriptions and logs.
	Name() string
	// Size returns the image size in bytes. Errors that mean the image does
	// not exist are *PreconditionError.
	Size(ctx context.Context) (int64, error)
	Open(ctx context.Context) (io.ReadCloser, error)
}

// VolumeSizeGiB returns the whole-GiB volume size that holds size bytes.
// It is never less than 1.
func VolumeSizeGiB(size int64) int32 {
	if size <= 0 {
		return 1
	}
	return int32((size + GiB - 1) / GiB)
}

// FileSource reads an image from the local filesystem.
type FileSource struct {
	Path string
}

// Name returns the file path.
func (f FileSource) Name() string { return f.Path }

// Size returns the file size. The path must name an existing regular file.
func (f FileSource) Size(context.Context) (int64, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, &PreconditionError{Reason: fmt.Sprintf("image file %s does not exist", f.Path)}
		}
		return 0, fmt.Errorf("failed to stat image file %s: %w", f.Path, err)
	}
	if !info.Mode().IsRegular() {
		return 0, &PreconditionError{Reason: fmt.Sprintf("image file %s is not a regular file", f.Path)}
	}
	return info.Size(), nil
}

// Open opens the file for reading.
func (f FileSource) Open(context.Context) (io.ReadCloser, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file %s: %w", f.Path, err)
	}
	return file, nil
}

// ObjectStore reads objects from a bucket.
type ObjectStore interface {
	Size(ctx context.Context, obj s3.Object) (int64, error)
	Open(ctx context.Context, obj s3.Object) (io.ReadCloser, error)
}

// ObjectSource streams an image from object storage without staging it locally.
type ObjectSource struct {
	Store  ObjectStore
	Object s3.Object
}

// Name returns the object URL.
func (o ObjectSource) Name() string { return o.Object.String() }

// Size returns the object size.
func (o ObjectSource) Size(ctx context.Context) (int64, error) {
	size, err := o.Store.Size(ctx, o.Object)
	if err != nil {
		if s3.IsNotFound(err) {
			return 0, &PreconditionError{Reason: fmt.Sprintf("image object %s does not exist", o.Object)}
		}
		return 0, err
	}
	return size, nil
}

// Open streams the object body.
func (o ObjectSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return o.Store.Open(ctx, o.Object)
}
