package model

import "time"

// Bookmark is one stored row. The JSON shape doubles as the storage encoding
// and the REST wire encoding, so field names follow the table columns.
type Bookmark struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}
