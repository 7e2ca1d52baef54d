package documents

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, owner_id, filename, file_path, file_type, file_size, extracted_text, category, subject, semester, academic_year, created_at`

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    owner_id,
    filename,
    file_path,
    file_type,
    file_size,
    extracted_text,
    category,
    subject,
    semester,
    academic_year,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.DB.ExecContext(ctx, query,
		doc.ID,
		doc.OwnerID,
		doc.FileName,
		doc.StorageKey,
		doc.MimeType,
		doc.SizeBytes,
		nullString(doc.ExtractedText),
		string(doc.Category),
		nullString(doc.PYQ.Subject),
		nullInt(doc.PYQ.Semester),
		nullString(doc.PYQ.AcademicYear),
		doc.CreatedAt,
	)
	return err
}

// GetByID fetches a document by ID for an owner.
func (r *PGRepo) GetByID(ctx context.Context, ownerID, documentID string) (Document, error) {
	const query = `
SELECT ` + documentColumns + `
FROM documents
WHERE owner_id = $1 AND id = $2
LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, ownerID, documentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// ListByOwner lists an owner's documents ordered newest-first.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string, category Category) ([]Document, error) {
	const query = `
SELECT ` + documentColumns + `
FROM documents
WHERE owner_id = $1 AND ($2 = '' OR category = $2)
ORDER BY created_at DESC`

	rows, err := r.DB.QueryContext(ctx, query, ownerID, string(category))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Delete removes a document row. Zero affected rows means another request
// already removed it.
func (r *PGRepo) Delete(ctx context.Context, ownerID, documentID string) error {
	const query = `DELETE FROM documents WHERE owner_id = $1 AND id = $2`
	_, err := r.DB.ExecContext(ctx, query, ownerID, documentID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var category string
	var extracted sql.NullString
	var subject sql.NullString
	var semester sql.NullInt32
	var academicYear sql.NullString
	if err := row.Scan(
		&doc.ID,
		&doc.OwnerID,
		&doc.FileName,
		&doc.StorageKey,
		&doc.MimeType,
		&doc.SizeBytes,
		&extracted,
		&category,
		&subject,
		&semester,
		&academicYear,
		&doc.CreatedAt,
	); err != nil {
		return Document{}, err
	}
	doc.Category = Category(category)
	if extracted.Valid {
		doc.ExtractedText = extracted.String
	}
	if subject.Valid {
		doc.PYQ.Subject = subject.String
	}
	if semester.Valid {
		doc.PYQ.Semester = int(semester.Int32)
	}
	if academicYear.Valid {
		doc.PYQ.AcademicYear = academicYear.String
	}
	return doc, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v int) sql.NullInt32 {
	return sql.NullInt32{Int32: int32(v), Valid: v != 0}
}

var _ Repo = (*PGRepo)(nil)
