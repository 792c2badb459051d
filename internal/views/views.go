// Package views renders the HTML pages from embedded templates and builds
// the XML documents served through content negotiation.
package views

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"
)

//go:embed templates
var templatesFS embed.FS

// Renderer holds the parsed template set. Each page template is parsed
// together with the shared layout so pages can fill the layout's blocks.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"markdown": Markdown,
	"formatTime": func(t time.Time) string {
		return t.Format("Jan 2, 2006 15:04")
	},
	"plural": func(n int, singular, plural string) string {
		if n == 1 {
			return singular
		}
		return plural
	},
}

// New parses all embedded templates.
func New() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template)}

	layout, err := template.New("layout").Funcs(funcs).ParseFS(templatesFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("views: parse layout: %w", err)
	}

	err = fs.WalkDir(templatesFS, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || p == "templates/layout.html" {
			return err
		}
		name := strings.TrimSuffix(strings.TrimPrefix(p, "templates/"), path.Ext(p))
		tmpl, err := layout.Clone()
		if err != nil {
			return err
		}
		tmpl, err = tmpl.ParseFS(templatesFS, p)
		if err != nil {
			return fmt.Errorf("views: parse %s: %w", p, err)
		}
		r.pages[name] = tmpl
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Render executes the named page template into w.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("views: unknown template %q", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}
