package model

// EventType identifies the kind of row change published on the bus.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventDelete EventType = "DELETE"
)

// ChangeEvent is published after a row mutation commits. Delete events carry
// the full prior row in OldRow so subscribers can still attribute them to an
// owner.
type ChangeEvent struct {
	Event  EventType `json:"event"`
	Row    *Bookmark `json:"row,omitempty"`
	OldRow *Bookmark `json:"old_row,omitempty"`
}

// OwnerID returns the owner of the affected row, empty when the event carries
// no row image.
func (e ChangeEvent) OwnerID() string {
	switch {
	case e.Event == EventDelete && e.OldRow != nil:
		return e.OldRow.OwnerID
	case e.Row != nil:
		return e.Row.OwnerID
	}
	return ""
}
