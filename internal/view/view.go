// Package view renders the server-side HTML pages.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/thing-service/pkg/jwtutil"
	"github.com/suteetoe/thing-service/pkg/middleware"
)

//go:embed templates
var templatesFS embed.FS

// AssetPather resolves a logical asset name to its public URL
type AssetPather interface {
	Path(logical string) string
}

// View is what every template receives; the page specific data is in Page
type View struct {
	Page        interface{}
	Flash       Flash
	CurrentUser *jwtutil.UserClaims
}

// Renderer implements echo.Renderer over the embedded templates
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses every page together with the layout and the partials
func NewRenderer(assets AssetPather) (*Renderer, error) {
	funcs := template.FuncMap{
		"assetPath":     assets.Path,
		"pluralize":     pluralize,
		"thingPath":     func(id uint) string { return fmt.Sprintf("/things/%d", id) },
		"editThingPath": func(id uint) string { return fmt.Sprintf("/things/%d/edit", id) },
		"datetime":      func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04:05 UTC") },
	}

	var pages, partials []string
	err := fs.WalkDir(templatesFS, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || p == "templates/layout.html" {
			return err
		}
		if strings.HasPrefix(path.Base(p), "_") {
			partials = append(partials, p)
		} else {
			pages = append(pages, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, p := range pages {
		files := append([]string{"templates/layout.html"}, partials...)
		files = append(files, p)
		tmpl, err := template.New(path.Base(p)).Funcs(funcs).ParseFS(templatesFS, files...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", p, err)
		}
		name := strings.TrimSuffix(strings.TrimPrefix(p, "templates/"), ".html")
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render writes the page called name (e.g. "things/index") inside the layout
func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("template %s not found", name)
	}

	v := View{Page: data}
	if c != nil {
		v.Flash = ConsumeFlash(c)
		if claims, ok := middleware.ClaimsFromContext(c); ok {
			v.CurrentUser = claims
		}
	}
	return tmpl.ExecuteTemplate(w, "layout", v)
}

// Has reports whether a page called name exists
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

func pluralize(count int, singular string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %ss", count, singular)
}
