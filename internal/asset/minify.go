package asset

import (
	"path/filepath"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

const (
	MediaHTML = "text/html"
	MediaCSS  = "text/css"
	MediaJS   = "application/javascript"
)

// Minifier wraps a tdewolff minifier configured for templates and bundles.
// Empty attributes and quotes are kept so Angular directives survive.
type Minifier struct {
	m *minify.M
}

// NewMinifier creates a minifier for HTML, CSS and JavaScript.
func NewMinifier() *Minifier {
	m := minify.New()
	m.Add(MediaHTML, &html.Minifier{
		KeepDefaultAttrVals: true,
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepQuotes:          true,
	})
	m.AddFunc(MediaCSS, css.Minify)
	m.AddFunc(MediaJS, js.Minify)
	return &Minifier{m: m}
}

// String minifies s as mediatype.
func (m *Minifier) String(mediatype, s string) (string, error) {
	return m.m.String(mediatype, s)
}

// Bytes minifies b as mediatype.
func (m *Minifier) Bytes(mediatype string, b []byte) ([]byte, error) {
	return m.m.Bytes(mediatype, b)
}

// MediaType maps a file extension onto a supported media type, or "".
func MediaType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return MediaHTML
	case ".css":
		return MediaCSS
	case ".js":
		return MediaJS
	default:
		return ""
	}
}
