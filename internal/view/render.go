package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/domain"
)

// SkeletonCount is the number of placeholder cards shown while loading.
const SkeletonCount = 3

//go:embed templates/*.html
var templateFS embed.FS

// Model is everything the app fragment shows.
type Model struct {
	SignedIn  bool
	Email     string
	Providers []string
	Loading   bool
	Busy      bool
	Bookmarks []domain.Bookmark
}

// PageData fills the outer HTML page.
type PageData struct {
	Title   string
	Version string
	WSPath  string
	App     template.HTML
}

// Renderer turns models into HTML.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"skeletons": func() []int { return make([]int, SkeletonCount) },
		"maxTitle":  func() int { return domain.MaxTitleLength },
		"createdAt": func(t time.Time) string { return t.UTC().Format("Jan 2, 2006 15:04") },
		"isoTime":   func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// App renders the live fragment.
func (r *Renderer) App(m Model) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "app", m); err != nil {
		return "", fmt.Errorf("failed to render app: %w", err)
	}
	return buf.String(), nil
}

// Page writes the full document with an initial fragment.
func (r *Renderer) Page(w io.Writer, data PageData) error {
	if err := r.tmpl.ExecuteTemplate(w, "page", data); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}
	return nil
}

// DevLogin writes the email prompt of the dev identity provider.
func (r *Renderer) DevLogin(w io.Writer, state string) error {
	return r.tmpl.ExecuteTemplate(w, "dev_login", struct{ State string }{state})
}
