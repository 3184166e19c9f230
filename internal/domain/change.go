package domain

// ChangeType is the kind of row-level change carried by the feed.
type ChangeType string

const (
	ChangeInserted ChangeType = "INSERT"
	ChangeUpdated  ChangeType = "UPDATE"
	ChangeDeleted  ChangeType = "DELETE"
)

// Change is one row-level notification from the change feed.
// New is set for inserts and updates, Old for deletes (and optionally updates).
type Change struct {
	Type ChangeType `json:"type"`
	New  *Bookmark  `json:"new,omitempty"`
	Old  *Bookmark  `json:"old,omitempty"`
}

// Record returns the row the change is about: New when present, else Old.
func (c Change) Record() (Bookmark, bool) {
	switch {
	case c.New != nil:
		return *c.New, true
	case c.Old != nil:
		return *c.Old, true
	default:
		return Bookmark{}, false
	}
}
