package documents

import (
	"strings"
	"time"
)

// Category partitions a student's documents by purpose.
type Category string

const (
	CategoryResearch Category = "research"
	CategoryNotes    Category = "notes"
	CategoryPYQ      Category = "pyq"
	CategoryGeneral  Category = "general"
)

// ParseCategory coerces unknown or empty values to CategoryGeneral.
func ParseCategory(raw string) Category {
	switch c := Category(strings.ToLower(strings.TrimSpace(raw))); c {
	case CategoryResearch, CategoryNotes, CategoryPYQ, CategoryGeneral:
		return c
	default:
		return CategoryGeneral
	}
}

// PYQMetadata describes a previous-year question paper. Only kept for
// documents in CategoryPYQ.
type PYQMetadata struct {
	Subject      string
	Semester     int
	AcademicYear string
}

// Document represents an uploaded document owned by a user.
type Document struct {
	ID            string
	OwnerID       string
	FileName      string
	StorageKey    string
	// MimeType is the media type the client declared, or the extension's
	// type when none was sent. Extraction always goes by the extension.
	MimeType      string
	SizeBytes     int64
	ExtractedText string
	Category      Category
	PYQ           PYQMetadata
	CreatedAt     time.Time
}
