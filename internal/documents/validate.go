package documents

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/docker/go-units"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"studyai-backend/internal/shared/util"
)

const (
	MaxFileSize     int64 = 50 * 1024 * 1024
	MaxFileNameLen        = 255
	maxSubjectLen         = 200
	maxMimeLen            = 255

	genericMime = "application/octet-stream"
)

var allowedExtensions = map[string]string{
	"pdf":  "application/pdf",
	"txt":  "text/plain",
	"md":   "text/markdown",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"webp": "image/webp",
}

var allowedMimeTypes = map[string]string{
	"application/pdf":    "pdf",
	"text/plain":         "txt",
	"text/markdown":      "md",
	"application/msword": "doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/webp": "webp",
}

var academicYearPattern = regexp.MustCompile(`^\d{4}-\d{4}$`)

// Validate checks the PYQ fields that were supplied; empty fields are allowed.
func (m PYQMetadata) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Subject, validation.RuneLength(0, maxSubjectLen)),
		validation.Field(&m.Semester, validation.Min(1), validation.Max(12)),
		validation.Field(&m.AcademicYear, validation.Match(academicYearPattern).Error("must look like 2023-2024")),
	)
}

// fileType resolves the extension and media type for an upload. Names with an
// extension are checked against the extension allow-list; extensionless names
// fall back to the declared media type.
func fileType(fileName, contentType string) (ext string, mime string, err error) {
	mime = normalizeMime(contentType)
	ext = strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if ext != "" {
		extMime, ok := allowedExtensions[ext]
		if !ok {
			return "", "", fmt.Errorf("%w: file type .%s is not allowed", ErrInvalidInput, ext)
		}
		return ext, extMime, nil
	}

	mimeExt, ok := allowedMimeTypes[mime]
	if !ok {
		return "", "", fmt.Errorf("%w: file type %q is not allowed", ErrInvalidInput, contentType)
	}
	return mimeExt, mime, nil
}

func checkSize(size int64) error {
	if size > MaxFileSize {
		return fmt.Errorf("%w: file is %s, limit is %s", ErrInvalidInput,
			units.BytesSize(float64(size)), units.BytesSize(float64(MaxFileSize)))
	}
	return nil
}

func normalizeMime(raw string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(util.StorableText(raw), ";")[0]))
}
