package homepage

// ServicesConfig is services.yaml: groups of named services.
// Homepage uses dynamic keys, so we parse as []map[string][]map[string]ServiceProps
type ServicesConfig []map[string][]map[string]ServiceProps

// ServiceProps contains the service properties shelf cares about
type ServiceProps struct {
	Href        string `yaml:"href"`
	Icon        string `yaml:"icon,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// BookmarksConfig is bookmarks.yaml:
//
//	- Group:
//	    - Name:
//	        - href: https://example.com
//	          abbr: EX
//
// Each name maps to a list that holds a single link.
type BookmarksConfig []BookmarkGroup

// BookmarkGroup maps a group name to its named links.
type BookmarkGroup map[string][]map[string][]BookmarkLink

// BookmarkLink is the only entry under a bookmark name.
type BookmarkLink struct {
	Href        string `yaml:"href"`
	Abbr        string `yaml:"abbr,omitempty"`
	Icon        string `yaml:"icon,omitempty"`
	Description string `yaml:"description,omitempty"`
}
