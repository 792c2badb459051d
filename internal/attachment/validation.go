package attachment

import (
	"fmt"
	"mime/multipart"
)

// Error codes for FileValidationError.
const (
	ErrCodeFileTooLarge = "file_too_large"
	ErrCodeFileTooSmall = "file_too_small"
	ErrCodeInvalidMIME  = "invalid_mime"
	ErrCodeEmptyFile    = "empty_file"
)

// FileValidationError is a failed upload validation, carrying enough data to
// re-render the form with a field error.
type FileValidationError struct {
	Field   string // form field name
	Code    string // machine-readable code
	Message string // human-readable message
}

func (e *FileValidationError) Error() string {
	return e.Message
}

// ValidationRule is the validation half of the attachment capability: a
// check over the file's size and sniffed content type.
type ValidationRule interface {
	Validate(size int64, mimeType string) error
}

// Validate runs all rules, returning the first failure.
func Validate(size int64, mimeType string, rules ...ValidationRule) error {
	for _, rule := range rules {
		if err := rule.Validate(size, mimeType); err != nil {
			return err
		}
	}
	return nil
}

// ValidateFile sniffs the MIME type of a multipart upload and runs the rules
// against it.
func ValidateFile(fh *multipart.FileHeader, rules ...ValidationRule) error {
	if fh == nil {
		return &FileValidationError{Field: "attachment", Code: ErrCodeEmptyFile, Message: "file is empty"}
	}
	return Validate(fh.Size, DetectMIME(fh), rules...)
}

type maxSizeRule struct {
	maxBytes int64
}

// MaxSize rejects files larger than the given byte count.
func MaxSize(bytes int64) ValidationRule {
	return &maxSizeRule{maxBytes: bytes}
}

func (r *maxSizeRule) Validate(size int64, _ string) error {
	if size > r.maxBytes {
		return &FileValidationError{
			Field:   "attachment",
			Code:    ErrCodeFileTooLarge,
			Message: fmt.Sprintf("file size %d exceeds limit of %d bytes", size, r.maxBytes),
		}
	}
	return nil
}

type minSizeRule struct {
	minBytes int64
}

// MinSize rejects files smaller than the given byte count.
func MinSize(bytes int64) ValidationRule {
	return &minSizeRule{minBytes: bytes}
}

func (r *minSizeRule) Validate(size int64, _ string) error {
	if size < r.minBytes {
		return &FileValidationError{
			Field:   "attachment",
			Code:    ErrCodeFileTooSmall,
			Message: fmt.Sprintf("file size %d is below minimum of %d bytes", size, r.minBytes),
		}
	}
	return nil
}

type notEmptyRule struct{}

// NotEmpty rejects empty files.
func NotEmpty() ValidationRule {
	return notEmptyRule{}
}

func (notEmptyRule) Validate(size int64, _ string) error {
	if size == 0 {
		return &FileValidationError{
			Field:   "attachment",
			Code:    ErrCodeEmptyFile,
			Message: "file is empty",
		}
	}
	return nil
}

type allowedTypesRule struct {
	patterns []string
}

// AllowedTypes accepts only files whose sniffed MIME type matches one of the
// patterns. Wildcards like "image/*" are supported.
func AllowedTypes(patterns ...string) ValidationRule {
	return &allowedTypesRule{patterns: patterns}
}

func (r *allowedTypesRule) Validate(_ int64, mimeType string) error {
	if !matchesMIME(mimeType, r.patterns) {
		return &FileValidationError{
			Field:   "attachment",
			Code:    ErrCodeInvalidMIME,
			Message: fmt.Sprintf("file type %q is not allowed", mimeType),
		}
	}
	return nil
}

// ImageOnly accepts only image files. Equivalent to AllowedTypes("image/*").
func ImageOnly() ValidationRule {
	return AllowedTypes("image/*")
}
