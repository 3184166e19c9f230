package homepage

import (
	"errors"
	"strings"

	"github.com/MrSnakeDoc/shelf/internal/domain"
)

// ErrNothingToImport is returned when a file holds no usable link.
var ErrNothingToImport = errors.New("no bookmarks or services found")

// Drafts reads either a bookmarks.yaml or a services.yaml and returns the
// links it holds, without duplicates (compared after URL normalization).
func Drafts(data []byte) ([]domain.Draft, error) {
	var drafts []domain.Draft

	bookmarks, bookmarksErr := ParseBookmarks(data)
	if bookmarksErr == nil {
		drafts = MapBookmarks(bookmarks)
	}

	if len(drafts) == 0 {
		services, err := ParseServices(data)
		if err != nil {
			if bookmarksErr != nil {
				return nil, err
			}
			return nil, ErrNothingToImport
		}
		drafts = MapServices(services)
	}

	if len(drafts) == 0 {
		return nil, ErrNothingToImport
	}
	return dedupe(drafts), nil
}

func dedupe(drafts []domain.Draft) []domain.Draft {
	seen := make(map[string]bool, len(drafts))
	out := drafts[:0]
	for _, d := range drafts {
		key := strings.ToLower(domain.NormalizeURL(d.URL))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}
