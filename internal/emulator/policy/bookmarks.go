package policy

// BookmarksTable is the table the default rules guard.
const BookmarksTable = "bookmarks"

// BookmarkRules mirrors the row-level security a hosted deployment declares
// in SQL: every operation requires an authenticated caller acting on rows it
// owns.
func BookmarkRules() map[Operation]string {
	return map[Operation]string{
		OpSelect: `auth != null && auth.uid == row.owner_id`,
		OpInsert: `auth != null && auth.uid == row.owner_id`,
		OpDelete: `auth != null && auth.uid == row.owner_id`,
	}
}
