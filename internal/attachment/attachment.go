// Package attachment is the image-attachment capability composed by avatars
// and page headers: content-sniffed MIME detection, validation rules, and
// pluggable blob storage (local filesystem or S3-compatible).
package attachment

import (
	"context"
	"errors"
	"io"
)

// Sentinel errors for attachment operations.
var (
	ErrInvalidConfig = errors.New("attachment: invalid configuration")
	ErrEmptyFile     = errors.New("attachment: file is empty")
	ErrNotFound      = errors.New("attachment: file not found")
	ErrAccessDenied  = errors.New("attachment: access denied")
	ErrUploadFailed  = errors.New("attachment: upload failed")
	ErrDeleteFailed  = errors.New("attachment: delete failed")
	ErrExists        = errors.New("attachment: file already exists")
)

// Store is the blob storage half of the capability. Implementations must
// detect the content type from magic bytes when none is supplied and run any
// validation rules before writing.
type Store interface {
	// Put uploads data from a reader. The size is the exact byte count.
	Put(ctx context.Context, r io.Reader, size int64, opts ...Option) (*FileInfo, error)

	// Get retrieves a stored file. The caller closes the returned reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a stored file. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns the public URL for a stored file.
	URL(key string) string
}

// FileInfo describes a stored attachment.
type FileInfo struct {
	// Key is the storage key (path) for the file.
	Key string

	// Filename is the final path component of Key.
	Filename string

	// ContentType is the detected MIME type.
	ContentType string

	// Size is the file size in bytes.
	Size int64
}

// Option configures Put operations.
type Option func(*putOptions)

type putOptions struct {
	key         string           // explicit key, replaces the generated one
	prefix      string           // path prefix, e.g. "avatars"
	contentType string           // overrides magic-byte detection
	rules       []ValidationRule // run before writing
}

// WithKey sets an explicit storage key, replacing the generated one.
func WithKey(key string) Option {
	return func(o *putOptions) { o.key = key }
}

// WithPrefix sets a path prefix for the generated key.
// Example: WithPrefix("avatars") yields "avatars/{uuid}.{ext}".
func WithPrefix(prefix string) Option {
	return func(o *putOptions) { o.prefix = prefix }
}

// WithContentType overrides magic-byte detection. Use sparingly.
func WithContentType(ct string) Option {
	return func(o *putOptions) { o.contentType = ct }
}

// WithValidation adds rules applied before the write. Any failure aborts the
// upload with a *FileValidationError.
func WithValidation(rules ...ValidationRule) Option {
	return func(o *putOptions) { o.rules = append(o.rules, rules...) }
}
