package index

import (
	"sort"

	"github.com/MrSnakeDoc/shelf/internal/domain"
)

// Collection is the local, ordered view of one owner's bookmarks.
//
// It is an immutable value: every mutation returns a new Collection and
// leaves the receiver untouched. Identifiers are unique.
type Collection struct {
	items []domain.Bookmark
}

// Transform maps a prior collection to the next one.
type Transform func(Collection) Collection

// Empty returns a collection with no bookmarks.
func Empty() Collection {
	return Collection{}
}

// FromLoad builds a collection from a full reload result.
// Rows are ordered newest first and duplicate ids keep their first row.
func FromLoad(rows []domain.Bookmark) Collection {
	items := make([]domain.Bookmark, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		if seen[row.ID] {
			continue
		}
		seen[row.ID] = true
		items = append(items, row)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return Collection{items: items}
}

// Len returns the number of bookmarks.
func (c Collection) Len() int { return len(c.items) }

// Items returns a copy of the bookmarks in display order.
func (c Collection) Items() []domain.Bookmark {
	out := make([]domain.Bookmark, len(c.items))
	copy(out, c.items)
	return out
}

// has reports whether id is present.
func (c Collection) has(id string) bool {
	return c.indexOf(id) >= 0
}

// Prepend puts b at the front. If the id is already present the
// collection is returned unchanged.
func (c Collection) Prepend(b domain.Bookmark) Collection {
	if c.has(b.ID) {
		return c
	}
	items := make([]domain.Bookmark, 0, len(c.items)+1)
	items = append(items, b)
	items = append(items, c.items...)
	return Collection{items: items}
}

// Replace swaps the bookmark with b's id in place, keeping its position.
// Absent ids leave the collection unchanged.
func (c Collection) Replace(b domain.Bookmark) Collection {
	i := c.indexOf(b.ID)
	if i < 0 {
		return c
	}
	items := c.Items()
	items[i] = b
	return Collection{items: items}
}

// Remove drops the bookmark with the given id; absent ids are a no-op.
func (c Collection) Remove(id string) Collection {
	i := c.indexOf(id)
	if i < 0 {
		return c
	}
	items := make([]domain.Bookmark, 0, len(c.items)-1)
	items = append(items, c.items[:i]...)
	items = append(items, c.items[i+1:]...)
	return Collection{items: items}
}

// Apply reconciles one change feed event.
//
//	INSERT: prepend unless the id is already present
//	UPDATE: replace in place, ignore unknown ids
//	DELETE: remove, ignore unknown ids
//
// Replaying the same change is a no-op.
func (c Collection) Apply(ch domain.Change) Collection {
	record, ok := ch.Record()
	if !ok {
		return c
	}
	switch ch.Type {
	case domain.ChangeInserted:
		return c.Prepend(record)
	case domain.ChangeUpdated:
		return c.Replace(record)
	case domain.ChangeDeleted:
		return c.Remove(record.ID)
	default:
		return c
	}
}

func (c Collection) indexOf(id string) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}
