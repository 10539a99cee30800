package model

// EventType identifies the kind of row change carried by the feed.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventDelete EventType = "DELETE"
)

// ChangeEvent is one row-level notification from the change feed. Delivery is
// at least once and unordered. Delete events carry the full prior row in
// OldRow so they stay attributable to an owner after the row is gone.
type ChangeEvent struct {
	Type   EventType `json:"type"`
	Row    *Bookmark `json:"row,omitempty"`
	OldRow *Bookmark `json:"old_row,omitempty"`
}

// Affected returns the row image the event is about: the new row for inserts,
// the prior row for deletes.
func (e ChangeEvent) Affected() *Bookmark {
	if e.Type == EventDelete {
		return e.OldRow
	}
	return e.Row
}

// OwnerID returns the owner of the affected row, empty when the event has no
// row image.
func (e ChangeEvent) OwnerID() string {
	if row := e.Affected(); row != nil {
		return row.OwnerID
	}
	return ""
}
