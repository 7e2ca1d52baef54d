package documents

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/google/uuid"

	"studyai-backend/internal/extract"
	"studyai-backend/internal/shared/metrics"
	"studyai-backend/internal/shared/storage/object"
	"studyai-backend/internal/shared/telemetry"
	"studyai-backend/internal/shared/util"
)

// Service contains business logic for documents.
type Service struct {
	Store     object.ObjectStore
	Repo      Repo
	Extractor extract.Extractor
	// Now defaults to time.Now; tests pin it.
	Now func() time.Time
}

// UploadInput is one file handed to Upload. Size is the declared length or
// -1 when unknown; the bytes actually read are checked either way.
type UploadInput struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
	Category    string
	PYQ         PYQMetadata
}

// Upload validates, stores and records one document. When the metadata
// insert fails the stored object is removed again.
func (s *Service) Upload(ctx context.Context, ownerID string, in UploadInput) (Document, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Document{}, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if in.Body == nil {
		return Document{}, fmt.Errorf("%w: file is required", ErrInvalidInput)
	}
	name, err := util.SanitizeFileName(in.FileName)
	if err != nil {
		return Document{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	if err := checkSize(in.Size); err != nil {
		return Document{}, err
	}
	ext, mimeType, err := fileType(name, in.ContentType)
	if err != nil {
		return Document{}, err
	}
	declared := util.TruncateRunes(normalizeMime(in.ContentType), maxMimeLen)
	if declared == "" || declared == genericMime {
		declared = mimeType
	}

	category := ParseCategory(in.Category)
	var pyq PYQMetadata
	if category == CategoryPYQ {
		pyq = PYQMetadata{
			Subject:      strings.TrimSpace(util.StorableText(in.PYQ.Subject)),
			Semester:     in.PYQ.Semester,
			AcademicYear: strings.TrimSpace(in.PYQ.AcademicYear),
		}
		if err := pyq.Validate(); err != nil {
			return Document{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	data, err := io.ReadAll(io.LimitReader(in.Body, MaxFileSize+1))
	if err != nil {
		return Document{}, fmt.Errorf("%w: unable to read file: %v", ErrInvalidInput, err)
	}
	if err := checkSize(int64(len(data))); err != nil {
		return Document{}, err
	}

	now := s.now()
	key := storageKey(ownerID, ext, now)
	if err := s.Store.Put(ctx, key, mimeType, bytes.NewReader(data), int64(len(data))); err != nil {
		metrics.IncUploadFailed()
		return Document{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	doc := Document{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		FileName:      util.TruncateRunes(name, MaxFileNameLen),
		StorageKey:    key,
		MimeType:      declared,
		SizeBytes:     int64(len(data)),
		ExtractedText: s.Extractor.Text(data, mimeType, name),
		Category:      category,
		PYQ:           pyq,
		CreatedAt:     now,
	}

	if err := s.Repo.Create(ctx, doc); err != nil {
		metrics.IncUploadFailed()
		s.compensate(ctx, key, err)
		return Document{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	metrics.IncUploaded()
	telemetry.Info("document.uploaded", map[string]any{
		"document_id": doc.ID,
		"user_id":     ownerID,
		"category":    string(category),
		"file_type":   declared,
		"size":        units.HumanSize(float64(doc.SizeBytes)),
	})
	return doc, nil
}

// compensate removes an orphaned object. Its failure is logged only; the
// caller reports the original persistence error.
func (s *Service) compensate(ctx context.Context, key string, cause error) {
	// The request context may already be cancelled; the cleanup still runs.
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.Store.Delete(cleanupCtx, key); err != nil {
		telemetry.Error("document.compensation_failed", map[string]any{
			"storage_key": key,
			"cause":       cause.Error(),
			"error":       err.Error(),
		})
	}
}

// List returns the owner's documents in category, newest first.
func (s *Service) List(ctx context.Context, ownerID string, category Category) ([]Document, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	docs, err := s.Repo.ListByOwner(ctx, ownerID, category)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return docs, nil
}

// ListAll returns every document the owner has, newest first.
func (s *Service) ListAll(ctx context.Context, ownerID string) ([]Document, error) {
	return s.List(ctx, ownerID, "")
}

// Delete removes the stored object and then the metadata row. Documents that
// do not exist or belong to another owner yield ErrNotFound and nothing is
// touched.
func (s *Service) Delete(ctx context.Context, ownerID, documentID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if _, err := uuid.Parse(documentID); err != nil {
		return ErrNotFound
	}

	doc, err := s.Repo.GetByID(ctx, ownerID, documentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if err := s.Store.Delete(ctx, doc.StorageKey); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := s.Repo.Delete(ctx, ownerID, documentID); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	metrics.IncDeleted()
	telemetry.Info("document.deleted", map[string]any{
		"document_id": documentID,
		"user_id":     ownerID,
	})
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// storageKey builds <hashed owner>/<unix millis>-<random>.<ext>.
func storageKey(ownerID, ext string, now time.Time) string {
	return fmt.Sprintf("%s/%d-%s.%s", util.OwnerPrefix(ownerID), now.UnixMilli(), randomSuffix(), ext)
}

func randomSuffix() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
