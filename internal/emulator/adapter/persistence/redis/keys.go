package redis

import "strings"

const (
	// KeyPrefixUser is the prefix for user record keys
	KeyPrefixUser = "linkvault:user:"
	// KeyPrefixEmail is the prefix for the email-to-user-id index
	KeyPrefixEmail = "linkvault:email:"
	// KeyPrefixBookmark is the prefix for bookmark record keys
	KeyPrefixBookmark = "linkvault:bookmark:"
	// KeyPrefixRefresh is the prefix for refresh session keys
	KeyPrefixRefresh = "linkvault:refresh:"
)

// UserKey returns the Redis key for a user record
func UserKey(id string) string {
	return KeyPrefixUser + id
}

// EmailKey returns the Redis key indexing an email to its user id.
// Email lookups are case-insensitive.
func EmailKey(email string) string {
	return KeyPrefixEmail + strings.ToLower(email)
}

// BookmarkKey returns the Redis key for a bookmark record
func BookmarkKey(id string) string {
	return KeyPrefixBookmark + id
}

// OwnerBookmarksKey returns the key for the set of bookmark ids owned by one
// user
func OwnerBookmarksKey(ownerID string) string {
	return "linkvault:owner:" + ownerID + ":bookmarks"
}

// RefreshKey returns the Redis key for a refresh session, addressed by the
// token hash, never the token itself
func RefreshKey(tokenHash string) string {
	return KeyPrefixRefresh + tokenHash
}

// UserRefreshSetKey returns the key for the set of refresh session hashes
// held by one user
func UserRefreshSetKey(userID string) string {
	return "linkvault:refreshes:" + userID
}
