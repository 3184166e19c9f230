package homepage

import (
	"net/url"
	"sort"
	"strings"

	"github.com/MrSnakeDoc/shelf/internal/domain"
)

// MapBookmarks converts BookmarksConfig to drafts, in file order.
// The bookmark name becomes the title, or the abbreviation when the name is
// blank. Entries without href are skipped.
func MapBookmarks(config BookmarksConfig) []domain.Draft {
	var drafts []domain.Draft

	for _, group := range config {
		for _, groupName := range sortedKeys(group) {
			for _, named := range group[groupName] {
				for _, name := range sortedKeys(named) {
					links := named[name]
					if len(links) == 0 || links[0].Href == "" {
						continue
					}
					title := strings.TrimSpace(name)
					if title == "" {
						title = links[0].Abbr
					}
					drafts = append(drafts, domain.Draft{Title: title, URL: links[0].Href})
				}
			}
		}
	}

	return drafts
}

// MapServices converts ServicesConfig to drafts, in file order.
// Services whose href has no hostname are skipped.
func MapServices(config ServicesConfig) []domain.Draft {
	var drafts []domain.Draft

	for _, groupMap := range config {
		for _, groupName := range sortedKeys(groupMap) {
			for _, serviceMap := range groupMap[groupName] {
				for _, serviceName := range sortedKeys(serviceMap) {
					props := serviceMap[serviceName]
					if props.Href == "" {
						continue
					}

					parsedURL, err := url.Parse(props.Href)
					if err != nil || parsedURL.Hostname() == "" {
						continue
					}

					title := serviceName
					if title == "" {
						title = extractServiceName(parsedURL.Hostname())
					}
					drafts = append(drafts, domain.Draft{Title: title, URL: props.Href})
				}
			}
		}
	}

	return drafts
}

// extractServiceName extracts the first DNS label as service name
// Example: "jellyfin.domain.ext" -> "jellyfin"
func extractServiceName(hostname string) string {
	parts := strings.Split(hostname, ".")
	if len(parts) > 0 {
		return parts[0]
	}
	return hostname
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
