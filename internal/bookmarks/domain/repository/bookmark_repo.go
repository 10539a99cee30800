package repository

import (
	"context"

	"linkvault/internal/bookmarks/domain/model"
)

// BookmarkRepository defines owner-scoped persistence operations for
// bookmarks. Implementations return typed errors from internal/shared/errors;
// the backend's row policies are the final authority on ownership.
type BookmarkRepository interface {
	// List returns every bookmark owned by ownerID, newest first.
	List(ctx context.Context, ownerID string) ([]model.Bookmark, error)

	// Insert stores a new bookmark for ownerID. The backend assigns id and
	// creation time.
	Insert(ctx context.Context, ownerID, title, url string) (*model.Bookmark, error)

	// Delete removes the bookmark with the given id. Absent rows and rows
	// owned by someone else report not found.
	Delete(ctx context.Context, id string) error
}
