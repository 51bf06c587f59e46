// Package views holds the HTML templates and static assets served by the
// server. Both are embedded in the binary.
package views

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/gofiber/template/html/v2"
)

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// DefaultLayout wraps every page. Pages are inserted with {{embed}}.
const DefaultLayout = "layouts/base"

// New returns the template engine over the embedded templates. Pages are
// named by their path without the extension, e.g. "users/show".
func New() *html.Engine {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(fmt.Sprintf("views: embedded templates missing: %v", err))
	}
	return NewFromFS(sub)
}

// NewFromFS returns a template engine over fsys with Funcs registered.
func NewFromFS(fsys fs.FS) *html.Engine {
	engine := html.NewFileSystem(http.FS(fsys), ".html")
	for name, fn := range Funcs() {
		engine.AddFunc(name, fn)
	}
	return engine
}

// Static serves the embedded stylesheet and images.
func Static() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("views: embedded static files missing: %v", err))
	}
	return http.FS(sub)
}

// Funcs are the helpers available to every template.
func Funcs() map[string]interface{} {
	return map[string]interface{}{
		"date": func(t time.Time) string {
			return t.Format("02 January 2006")
		},
		"datetime": func(t time.Time) string {
			return t.UTC().Format("2006-01-02 15:04")
		},
		"has": func(set map[uint]bool, id uint) bool {
			return set[id]
		},
		"add": func(a, b int) int {
			return a + b
		},
		"sub": func(a, b int) int {
			return a - b
		},
	}
}
