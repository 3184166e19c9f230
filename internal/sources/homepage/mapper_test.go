package homepage

import (
	"errors"
	"testing"

	"github.com/MrSnakeDoc/shelf/internal/domain"
)

func TestMapServices(t *testing.T) {
	config := ServicesConfig{
		{
			"Infrastructure": []map[string]ServiceProps{
				{
					"AdGuard Home": {
						Icon:        "adguard-home.svg",
						Href:        "https://adguard.domain.ext",
						Description: "Network-wide ads blocking",
					},
				},
				{
					"Traefik": {
						Icon:        "traefik.svg",
						Href:        "https://traefik.domain.ext",
						Description: "Cloud Native Application Proxy",
					},
				},
			},
		},
	}

	drafts := MapServices(config)

	want := []domain.Draft{
		{Title: "AdGuard Home", URL: "https://adguard.domain.ext"},
		{Title: "Traefik", URL: "https://traefik.domain.ext"},
	}
	if len(drafts) != len(want) {
		t.Fatalf("MapServices() returned %v drafts, want %v", len(drafts), len(want))
	}
	for i := range want {
		if drafts[i] != want[i] {
			t.Errorf("drafts[%d] = %+v, want %+v", i, drafts[i], want[i])
		}
	}
}

func TestMapServicesSkipsUnusableHref(t *testing.T) {
	config := ServicesConfig{
		{
			"Media": []map[string]ServiceProps{
				{"NoHref": {Icon: "x.svg"}},
				{"Relative": {Href: "/just/a/path"}},
				{"Jellyfin": {Href: "https://jellyfin.domain.ext"}},
			},
		},
	}

	drafts := MapServices(config)
	if len(drafts) != 1 {
		t.Fatalf("MapServices() returned %v drafts, want 1", len(drafts))
	}
	if drafts[0].Title != "Jellyfin" {
		t.Errorf("draft Title = %v, want Jellyfin", drafts[0].Title)
	}
}

func TestMapBookmarks(t *testing.T) {
	config := BookmarksConfig{
		{
			"Developer": []map[string][]BookmarkLink{
				{"Github": {{Abbr: "GH", Href: "https://github.com/"}}},
				{"Empty": {}},
				{"NoHref": {{Abbr: "NH"}}},
				{" ": {{Abbr: "GO", Href: "https://go.dev/"}}},
			},
		},
	}

	drafts := MapBookmarks(config)
	if len(drafts) != 2 {
		t.Fatalf("MapBookmarks() returned %v drafts, want 2", len(drafts))
	}
	if drafts[0].Title != "Github" || drafts[0].URL != "https://github.com/" {
		t.Errorf("drafts[0] = %+v", drafts[0])
	}
	if drafts[1].Title != "GO" || drafts[1].URL != "https://go.dev/" {
		t.Errorf("drafts[1] = %+v", drafts[1])
	}
}

func TestExtractServiceName(t *testing.T) {
	tests := []struct {
		hostname string
		want     string
	}{
		{"jellyfin.domain.ext", "jellyfin"},
		{"adguard.domain.ext", "adguard"},
		{"localhost", "localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			if got := extractServiceName(tt.hostname); got != tt.want {
				t.Errorf("extractServiceName(%q) = %q, want %q", tt.hostname, got, tt.want)
			}
		})
	}
}

func TestDrafts(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr error
	}{
		{
			name: "bookmarks file",
			input: `
- Developer:
    - Github:
        - href: https://github.com/
    - Github mirror:
        - href: HTTPS://GITHUB.COM/
`,
			want: []string{"Github"},
		},
		{
			name: "services file",
			input: `
- Infrastructure:
    - Traefik:
        href: https://traefik.domain.ext
`,
			want: []string{"Traefik"},
		},
		{
			name:    "nothing usable",
			input:   "[]",
			wantErr: ErrNothingToImport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts, err := Drafts([]byte(tt.input))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Drafts() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Drafts() error = %v", err)
			}
			if len(drafts) != len(tt.want) {
				t.Fatalf("Drafts() returned %v drafts, want %v", len(drafts), len(tt.want))
			}
			for i, title := range tt.want {
				if drafts[i].Title != title {
					t.Errorf("drafts[%d].Title = %q, want %q", i, drafts[i].Title, title)
				}
			}
		})
	}
}

func TestDraftsInvalidYAML(t *testing.T) {
	if _, err := Drafts([]byte("- [unclosed")); err == nil {
		t.Error("Drafts() with invalid yaml should return error")
	}
}
