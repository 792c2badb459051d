package attachment

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

const (
	// MIMEOctetStream is the fallback when detection fails.
	MIMEOctetStream = "application/octet-stream"

	// http.DetectContentType reads at most 512 bytes.
	mimeDetectionBytes = 512
)

// imageTypes contains the image MIME types the forum recognizes.
var imageTypes = map[string]struct{}{
	"image/jpeg":    {},
	"image/png":     {},
	"image/gif":     {},
	"image/webp":    {},
	"image/svg+xml": {},
	"image/bmp":     {},
	"image/avif":    {},
}

// mimeExtensions maps image MIME types to preferred file extensions.
var mimeExtensions = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
	"image/bmp":     ".bmp",
	"image/avif":    ".avif",
}

// DetectMIME sniffs the MIME type of a multipart upload from magic bytes.
// The filename extension and the client-supplied Content-Type header are
// deliberately ignored.
func DetectMIME(fh *multipart.FileHeader) string {
	if fh == nil {
		return MIMEOctetStream
	}

	f, err := fh.Open()
	if err != nil {
		return MIMEOctetStream
	}
	defer f.Close()

	buf := make([]byte, mimeDetectionBytes)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return MIMEOctetStream
	}
	return http.DetectContentType(buf[:n])
}

// ExtFromMIME returns the file extension for an image MIME type, or "".
func ExtFromMIME(mimeType string) string {
	return mimeExtensions[normalizeMIME(mimeType)]
}

// IsImage reports whether the MIME type is a recognized image type.
func IsImage(mimeType string) bool {
	_, ok := imageTypes[normalizeMIME(mimeType)]
	return ok
}

// detectMIMEWithReader sniffs the type and hands back a seekable reader over
// the full content. Non-seekable input is buffered in memory; attachment
// uploads are small by validation, so this is acceptable.
func detectMIMEWithReader(r io.Reader) (string, io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		buf := make([]byte, mimeDetectionBytes)
		n, _ := rs.Read(buf)
		if _, err := rs.Seek(0, io.SeekStart); err != nil {
			return "", nil, err
		}
		if n == 0 {
			return MIMEOctetStream, rs, nil
		}
		return http.DetectContentType(buf[:n]), rs, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", nil, err
	}
	if len(data) == 0 {
		return MIMEOctetStream, bytes.NewReader(nil), nil
	}
	return http.DetectContentType(data), bytes.NewReader(data), nil
}

// normalizeMIME strips parameters like charset and lowercases the type.
func normalizeMIME(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	return strings.TrimSpace(strings.ToLower(mimeType))
}

// matchesMIME reports whether the MIME type matches any allowed pattern.
// Supports wildcards like "image/*".
func matchesMIME(mimeType string, allowed []string) bool {
	mimeType = normalizeMIME(mimeType)

	for _, pattern := range allowed {
		pattern = strings.TrimSpace(strings.ToLower(pattern))
		if mimeType == pattern {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
			if strings.HasPrefix(mimeType, prefix+"/") {
				return true
			}
		}
	}
	return false
}
