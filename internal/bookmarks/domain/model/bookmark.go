package model

import "time"

// Bookmark is one saved link owned by exactly one user. The id and creation
// time are assigned by the backend; rows are never updated in place.
type Bookmark struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}
