package documents

import (
	"errors"
	"time"
)

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	DocumentID   string    `json:"documentId"`
	FileName     string    `json:"fileName"`
	MimeType     string    `json:"mimeType"`
	SizeBytes    int64     `json:"sizeBytes"`
	Category     Category  `json:"category"`
	Subject      string    `json:"subject,omitempty"`
	Semester     int       `json:"semester,omitempty"`
	AcademicYear string    `json:"academicYear,omitempty"`
	HasText      bool      `json:"hasText"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

func toResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		DocumentID:   doc.ID,
		FileName:     doc.FileName,
		MimeType:     doc.MimeType,
		SizeBytes:    doc.SizeBytes,
		Category:     doc.Category,
		Subject:      doc.PYQ.Subject,
		Semester:     doc.PYQ.Semester,
		AcademicYear: doc.PYQ.AcademicYear,
		HasText:      doc.ExtractedText != "",
		UploadedAt:   doc.CreatedAt,
	}
}

type uploadEventResponse struct {
	Index    int               `json:"index"`
	FileName string            `json:"fileName"`
	Status   UploadEventKind   `json:"status"`
	Document *DocumentResponse `json:"document,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func toEventResponse(ev UploadEvent) uploadEventResponse {
	out := uploadEventResponse{Index: ev.Index, FileName: ev.FileName, Status: ev.Kind}
	if ev.Document != nil {
		resp := toResponse(*ev.Document)
		out.Document = &resp
	}
	if ev.Err != nil {
		out.Error = publicMessage(ev.Err)
	}
	return out
}

// publicMessage hides storage and database details from clients.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return err.Error()
	case errors.Is(err, ErrStorage):
		return "failed to store document"
	case errors.Is(err, ErrPersistence):
		return "failed to save document"
	default:
		return "upload failed"
	}
}
