package domain

import (
	"errors"
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "bare host gets https", input: "example.com", expected: "https://example.com"},
		{name: "http kept unchanged", input: "http://x.com", expected: "http://x.com"},
		{name: "https kept unchanged", input: "https://x.com/a?b=c", expected: "https://x.com/a?b=c"},
		{name: "scheme is case-insensitive", input: "HTTPS://X.com", expected: "HTTPS://X.com"},
		{name: "mixed case http", input: "Http://x.com", expected: "Http://x.com"},
		{name: "surrounding spaces trimmed", input: "  example.com  ", expected: "https://example.com"},
		{name: "other scheme is prefixed", input: "ftp://x.com", expected: "https://ftp://x.com"},
		{name: "empty stays empty", input: "   ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeURL(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDraftValidate(t *testing.T) {
	tests := []struct {
		name      string
		draft     Draft
		expected  Draft
		wantField string
	}{
		{
			name:     "valid draft trimmed and normalized",
			draft:    Draft{Title: "  Docs ", URL: " go.dev "},
			expected: Draft{Title: "Docs", URL: "https://go.dev"},
		},
		{
			name:      "empty title rejected",
			draft:     Draft{Title: "   ", URL: "go.dev"},
			wantField: "title",
		},
		{
			name:      "empty url rejected",
			draft:     Draft{Title: "Docs", URL: ""},
			wantField: "url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.draft.Validate()
			if tt.wantField != "" {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("Validate() error = %v, want *ValidationError", err)
				}
				if verr.Field != tt.wantField {
					t.Errorf("Validate() field = %q, want %q", verr.Field, tt.wantField)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("Validate() = %+v, want %+v", result, tt.expected)
			}
		})
	}
}

func TestChangeRecord(t *testing.T) {
	newRow := &Bookmark{ID: "new"}
	oldRow := &Bookmark{ID: "old"}

	if r, ok := (Change{Type: ChangeUpdated, New: newRow, Old: oldRow}).Record(); !ok || r.ID != "new" {
		t.Errorf("Record() should prefer New, got %q (ok=%v)", r.ID, ok)
	}
	if r, ok := (Change{Type: ChangeDeleted, Old: oldRow}).Record(); !ok || r.ID != "old" {
		t.Errorf("Record() should fall back to Old, got %q (ok=%v)", r.ID, ok)
	}
	if _, ok := (Change{Type: ChangeDeleted}).Record(); ok {
		t.Error("Record() on empty change should report false")
	}
}
