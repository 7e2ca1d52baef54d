package documents

import "context"

// Repo defines persistence operations for document metadata. Every method
// is scoped to an owner; rows belonging to other owners are invisible.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, ownerID, documentID string) (Document, error)
	// ListByOwner returns documents newest first. An empty category lists all.
	ListByOwner(ctx context.Context, ownerID string, category Category) ([]Document, error)
	// Delete removes the row. Deleting an absent row is not an error.
	Delete(ctx context.Context, ownerID, documentID string) error
}
