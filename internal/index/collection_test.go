package index

import (
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/domain"
)

func bm(id string, minute int) domain.Bookmark {
	return domain.Bookmark{
		ID:        id,
		UserID:    "owner-a",
		Title:     "title " + id,
		URL:       "https://" + id + ".example.com",
		CreatedAt: time.Date(2026, 1, 1, 0, minute, 0, 0, time.UTC),
	}
}

func ins(b domain.Bookmark) domain.Change { return domain.Change{Type: domain.ChangeInserted, New: &b} }
func upd(b domain.Bookmark) domain.Change { return domain.Change{Type: domain.ChangeUpdated, New: &b} }
func del(b domain.Bookmark) domain.Change { return domain.Change{Type: domain.ChangeDeleted, Old: &b} }

func TestEmpty(t *testing.T) {
	c := Empty()
	if c.Len() != 0 {
		t.Errorf("Empty() should have no items, got %d", c.Len())
	}
	if len(c.Items()) != 0 {
		t.Errorf("Empty().Items() should be empty, got %v", c.Items())
	}
}

func TestFromLoadOrdersNewestFirst(t *testing.T) {
	c := FromLoad([]domain.Bookmark{bm("a", 1), bm("c", 3), bm("b", 2), bm("c", 3)})

	want := []string{"c", "b", "a"}
	if got := ids(c); !reflect.DeepEqual(got, want) {
		t.Errorf("FromLoad() ids = %v, want %v", got, want)
	}
}

func TestPrependSkipsDuplicates(t *testing.T) {
	c := FromLoad([]domain.Bookmark{bm("a", 1)})

	c = c.Prepend(bm("b", 2))
	if got := ids(c); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("Prepend() ids = %v", got)
	}

	again := c.Prepend(bm("b", 2))
	if again.Len() != 2 {
		t.Errorf("Prepend() of existing id should not grow, got %d", again.Len())
	}
}

func TestReplaceKeepsPosition(t *testing.T) {
	c := FromLoad([]domain.Bookmark{bm("a", 1), bm("b", 2), bm("c", 3)})

	renamed := bm("b", 2)
	renamed.Title = "renamed"
	c = c.Replace(renamed)

	if got := ids(c); !reflect.DeepEqual(got, []string{"c", "b", "a"}) {
		t.Errorf("Replace() moved items: %v", got)
	}
	if b, _ := get(c, "b"); b.Title != "renamed" {
		t.Errorf("Replace() title = %q, want renamed", b.Title)
	}

	unchanged := c.Replace(bm("zzz", 9))
	if !reflect.DeepEqual(ids(unchanged), ids(c)) {
		t.Error("Replace() of unknown id should be a no-op")
	}
}

func TestRemove(t *testing.T) {
	c := FromLoad([]domain.Bookmark{bm("1", 1)})

	if got := c.Remove("2"); got.Len() != 1 {
		t.Errorf("Remove() of absent id should be a no-op, got len %d", got.Len())
	}
	if got := c.Remove("1"); got.Len() != 0 {
		t.Errorf("Remove() of present id should empty the collection, got len %d", got.Len())
	}
}

func TestTransformsDoNotMutateReceiver(t *testing.T) {
	base := FromLoad([]domain.Bookmark{bm("a", 1), bm("b", 2)})
	before := ids(base)

	_ = base.Prepend(bm("c", 3))
	_ = base.Remove("a")
	_ = base.Replace(bm("b", 5))
	items := base.Items()
	items[0].Title = "mutated"

	if !reflect.DeepEqual(ids(base), before) {
		t.Errorf("receiver ids changed: %v, want %v", ids(base), before)
	}
	if b, _ := get(base, "b"); b.Title == "mutated" {
		t.Error("Items() should return a copy")
	}
}

func TestApplyInsertAfterOptimisticInsert(t *testing.T) {
	created := bm("new", 5)
	c := FromLoad([]domain.Bookmark{bm("a", 1)}).Prepend(created)

	c = c.Apply(ins(created))
	if c.Len() != 2 {
		t.Errorf("INSERT for an already present id should not change length, got %d", c.Len())
	}
}

func TestApplyUpdateUnknownIsDiscarded(t *testing.T) {
	c := FromLoad([]domain.Bookmark{bm("a", 1)})
	c = c.Apply(upd(bm("ghost", 2)))
	if c.has("ghost") {
		t.Error("UPDATE for an unknown id should be discarded")
	}
}

func TestApplyEmptyChangeIsIgnored(t *testing.T) {
	c := FromLoad([]domain.Bookmark{bm("a", 1)})
	c = c.Apply(domain.Change{Type: domain.ChangeDeleted})
	if c.Len() != 1 {
		t.Errorf("change without record should be ignored, got len %d", c.Len())
	}
}

func TestApplyReplayIsIdempotent(t *testing.T) {
	a, b, c, d := bm("a", 1), bm("b", 2), bm("c", 3), bm("d", 4)
	bRenamed := b
	bRenamed.Title = "renamed"

	sequences := map[string][]domain.Change{
		"inserts only":        {ins(a), ins(b), ins(c)},
		"insert then delete":  {ins(a), ins(b), del(a)},
		"update in the mix":   {ins(a), ins(b), upd(bRenamed), ins(c)},
		"delete before exist": {del(d), ins(a), ins(d), del(a)},
		"everything":          {ins(a), ins(b), ins(c), upd(bRenamed), del(c), ins(d), del(a)},
	}

	for name, events := range sequences {
		t.Run(name, func(t *testing.T) {
			once := Empty()
			for _, ev := range events {
				once = once.Apply(ev)
			}

			twice := Empty()
			for _, ev := range events {
				twice = twice.Apply(ev)
			}
			for _, ev := range events {
				twice = twice.Apply(ev)
			}

			if !sameSet(once, twice) {
				t.Errorf("double replay = %v, single replay = %v", twice.Items(), once.Items())
			}

			dup := Empty()
			for _, ev := range events {
				dup = dup.Apply(ev).Apply(ev)
			}
			if !sameSet(once, dup) {
				t.Errorf("duplicated delivery = %v, single replay = %v", dup.Items(), once.Items())
			}
		})
	}
}

func sameSet(a, b Collection) bool {
	ai, bi := a.Items(), b.Items()
	if len(ai) != len(bi) {
		return false
	}
	sort.Slice(ai, func(i, j int) bool { return ai[i].ID < ai[j].ID })
	sort.Slice(bi, func(i, j int) bool { return bi[i].ID < bi[j].ID })
	return reflect.DeepEqual(ai, bi)
}

func ids(c Collection) []string {
	out := make([]string, 0, c.Len())
	for _, b := range c.items {
		out = append(out, b.ID)
	}
	return out
}

func get(c Collection, id string) (domain.Bookmark, bool) {
	if i := c.indexOf(id); i >= 0 {
		return c.items[i], true
	}
	return domain.Bookmark{}, false
}
