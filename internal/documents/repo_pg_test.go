package documents

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var documentColumnNames = []string{
	"id", "owner_id", "filename", "file_path", "file_type", "file_size", "extracted_text",
	"category", "subject", "semester", "academic_year", "created_at",
}

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreateStoresNullsForMissingPYQFields(t *testing.T) {
	repo, mock := newMockRepo(t)
	doc := Document{
		ID:         "8d7c4b1e-7a54-4c0e-9a55-3d1f1f0c8a11",
		OwnerID:    "user-1",
		FileName:   "notes.txt",
		StorageKey: "abc/1-ff.txt",
		MimeType:   "text/plain",
		SizeBytes:  25,
		Category:   CategoryNotes,
		CreatedAt:  time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(
			doc.ID,
			doc.OwnerID,
			doc.FileName,
			doc.StorageKey,
			doc.MimeType,
			doc.SizeBytes,
			nil, // extracted_text
			"notes",
			nil, // subject
			nil, // semester
			nil, // academic_year
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCreateKeepsPYQFields(t *testing.T) {
	repo, mock := newMockRepo(t)
	doc := Document{
		ID:            "8d7c4b1e-7a54-4c0e-9a55-3d1f1f0c8a12",
		OwnerID:       "user-1",
		FileName:      "dbms.pdf",
		StorageKey:    "abc/2-ee.pdf",
		MimeType:      "application/pdf",
		SizeBytes:     1024,
		ExtractedText: "[PDF Document: dbms.pdf] - Content will be analyzed by AI",
		Category:      CategoryPYQ,
		PYQ:           PYQMetadata{Subject: "DBMS", Semester: 5, AcademicYear: "2023-2024"},
		CreatedAt:     time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(
			doc.ID, doc.OwnerID, doc.FileName, doc.StorageKey, doc.MimeType, doc.SizeBytes,
			doc.ExtractedText, "pyq", "DBMS", 5, "2023-2024", sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListByOwnerFiltersCategory(t *testing.T) {
	repo, mock := newMockRepo(t)
	newer := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	rows := sqlmock.NewRows(documentColumnNames).
		AddRow("doc-2", "user-1", "b.pdf", "k/2.pdf", "application/pdf", int64(20), nil, "pyq", "OS", int64(3), "2022-2023", newer).
		AddRow("doc-1", "user-1", "a.txt", "k/1.txt", "text/plain", int64(10), "hello", "pyq", nil, nil, nil, older)

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE owner_id = \\$1 AND \\(\\$2 = '' OR category = \\$2\\) ORDER BY created_at DESC").
		WithArgs("user-1", "pyq").
		WillReturnRows(rows)

	docs, err := repo.ListByOwner(context.Background(), "user-1", CategoryPYQ)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].PYQ != (PYQMetadata{Subject: "OS", Semester: 3, AcademicYear: "2022-2023"}) {
		t.Fatalf("unexpected pyq metadata %+v", docs[0].PYQ)
	}
	if docs[0].ExtractedText != "" {
		t.Fatalf("expected empty text for NULL column, got %q", docs[0].ExtractedText)
	}
	if docs[1].ExtractedText != "hello" || docs[1].PYQ != (PYQMetadata{}) {
		t.Fatalf("unexpected second document %+v", docs[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListByOwnerEmptyCategoryListsAll(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM documents").
		WithArgs("user-1", "").
		WillReturnRows(sqlmock.NewRows(documentColumnNames))

	docs, err := repo.ListByOwner(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if docs == nil || len(docs) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", docs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE owner_id = \\$1 AND id = \\$2").
		WithArgs("user-2", "doc-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "user-2", "doc-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoDeleteScopesToOwner(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("DELETE FROM documents WHERE owner_id = \\$1 AND id = \\$2").
		WithArgs("user-1", "doc-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "user-1", "doc-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
