package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"linkvault/internal/emulator/domain/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrBookmarkNotFound = errors.New("bookmark not found")

// CreateBookmark stores a new row with a store-assigned id and creation time,
// mirroring column defaults in a real database.
func (s *Store) CreateBookmark(ctx context.Context, ownerID, title, url string) (*model.Bookmark, error) {
	row := &model.Bookmark{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     title,
		URL:       url,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bookmark: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, BookmarkKey(row.ID), data, 0)
	pipe.SAdd(ctx, OwnerBookmarksKey(ownerID), row.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to save bookmark: %w", err)
	}

	return row, nil
}

// GetBookmark retrieves a bookmark by id.
func (s *Store) GetBookmark(ctx context.Context, id string) (*model.Bookmark, error) {
	data, err := s.client.Get(ctx, BookmarkKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrBookmarkNotFound
		}
		return nil, fmt.Errorf("failed to get bookmark: %w", err)
	}

	var row model.Bookmark
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bookmark: %w", err)
	}

	return &row, nil
}

// ListBookmarksByOwner retrieves all rows owned by one user, in no particular
// order; callers apply whatever ordering the query asked for.
func (s *Store) ListBookmarksByOwner(ctx context.Context, ownerID string) ([]model.Bookmark, error) {
	ids, err := s.client.SMembers(ctx, OwnerBookmarksKey(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmark ids: %w", err)
	}

	rows := make([]model.Bookmark, 0, len(ids))
	for _, id := range ids {
		row, err := s.GetBookmark(ctx, id)
		if err != nil {
			// Ids whose record disappeared are skipped.
			continue
		}
		rows = append(rows, *row)
	}

	return rows, nil
}

// DeleteBookmark removes a row and returns its final image.
func (s *Store) DeleteBookmark(ctx context.Context, id string) (*model.Bookmark, error) {
	row, err := s.GetBookmark(ctx, id)
	if err != nil {
		return nil, err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, BookmarkKey(id))
	pipe.SRem(ctx, OwnerBookmarksKey(row.OwnerID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to delete bookmark: %w", err)
	}

	return row, nil
}
