package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// LocalConfig holds filesystem storage configuration.
type LocalConfig struct {
	// Root is the directory files are written under (required).
	Root string `env:"STORAGE_LOCAL_ROOT" envDefault:"./data/attachments"`

	// PublicURL is the URL prefix files are served from.
	PublicURL string `env:"STORAGE_PUBLIC_URL" envDefault:"/files"`
}

// Local stores attachments on the local filesystem, the storage the forum
// uses for avatars and page headers by default.
type Local struct {
	cfg LocalConfig
}

// NewLocal creates a filesystem store rooted at cfg.Root, creating the
// directory when missing.
func NewLocal(cfg LocalConfig) (*Local, error) {
	if cfg.Root == "" {
		return nil, ErrInvalidConfig
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &Local{cfg: cfg}, nil
}

// Put writes the data to disk. The file is created exclusively so a key
// collision surfaces as ErrExists, which backs the unique-filename invariant.
func (l *Local) Put(ctx context.Context, r io.Reader, size int64, opts ...Option) (*FileInfo, error) {
	o := &putOptions{}
	for _, opt := range opts {
		opt(o)
	}

	contentType := o.contentType
	var body io.Reader = r
	if contentType == "" {
		var err error
		contentType, body, err = detectMIMEWithReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
	}

	if err := Validate(size, contentType, o.rules...); err != nil {
		return nil, err
	}

	key := o.key
	if key == "" {
		key = buildKey(o.prefix, contentType)
	}

	full, err := l.fullPath(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrExists, key)
		}
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	written, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(full)
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	return &FileInfo{
		Key:         key,
		Filename:    path.Base(key),
		ContentType: contentType,
		Size:        written,
	}, nil
}

// Get opens a stored file for reading.
func (l *Local) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	full, err := l.fullPath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	return f, nil
}

// Delete removes a stored file. A missing file is not an error.
func (l *Local) Delete(ctx context.Context, key string) error {
	full, err := l.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// FileServer serves the stored files over HTTP. Mount it at the store's
// public URL prefix.
func (l *Local) FileServer() http.Handler {
	return http.FileServer(http.Dir(l.cfg.Root))
}

// URL returns the public URL the file is served from.
func (l *Local) URL(key string) string {
	return strings.TrimSuffix(l.cfg.PublicURL, "/") + "/" + key
}

// fullPath resolves a key inside the root, rejecting traversal outside it.
func (l *Local) fullPath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: invalid key %q", ErrAccessDenied, key)
	}
	return filepath.Join(l.cfg.Root, clean), nil
}

// pathSegmentRegex matches characters unsafe in key path segments.
var pathSegmentRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// buildKey constructs "{prefix}/{uuid}.{ext}" from the content type.
func buildKey(prefix, contentType string) string {
	ext := ExtFromMIME(contentType)
	if ext == "" {
		ext = ".bin"
	}
	filename := uuid.NewString() + ext

	if prefix == "" {
		return filename
	}
	return sanitizePathSegment(prefix) + "/" + filename
}

// sanitizePathSegment strips traversal attempts and unsafe characters.
func sanitizePathSegment(segment string) string {
	segment = strings.Trim(segment, " /\\")
	segment = strings.ReplaceAll(segment, "..", "")
	segment = pathSegmentRegex.ReplaceAllString(segment, "_")
	return url.PathEscape(segment)
}

var _ Store = (*Local)(nil)
