package attachment

import (
	"context"
	"fmt"
	"mime/multipart"
)

// PutFile uploads a multipart form file. The MIME type is detected from
// magic bytes before validation so the rules see the real type, not the
// client-supplied header.
func PutFile(ctx context.Context, s Store, fh *multipart.FileHeader, opts ...Option) (*FileInfo, error) {
	if fh == nil || fh.Size == 0 {
		return nil, ErrEmptyFile
	}

	o := &putOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if len(o.rules) > 0 {
		mimeType := DetectMIME(fh)
		if err := Validate(fh.Size, mimeType, o.rules...); err != nil {
			return nil, err
		}
		// Pass the detected type down to skip re-detection.
		opts = append(opts, WithContentType(mimeType))
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("attachment: failed to open file: %w", err)
	}
	defer f.Close()

	return s.Put(ctx, f, fh.Size, opts...)
}
