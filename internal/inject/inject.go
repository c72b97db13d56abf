// Package inject rewrites the markup entry point: it injects references to
// generated assets between marker comments and collapses build blocks into
// single bundle references.
//
// Documents are treated as text and only the marked regions are touched, so
// server-side template syntax elsewhere in the file survives unchanged.
package inject

import (
	"bytes"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// EndTag closes every injection block.
const EndTag = "<!-- endinject -->"

// StartTag returns the marker gulp-inject uses for files of the given kind,
// e.g. "<!-- inject:css -->" or "<!-- inject:templates:js -->".
func StartTag(name string) string {
	return "<!-- inject:" + name + " -->"
}

// Reference renders the tag that loads url, chosen by extension. Unknown
// extensions produce no tag.
func Reference(url string) string {
	switch strings.ToLower(path.Ext(url)) {
	case ".css":
		return fmt.Sprintf(`<link rel="stylesheet" href="%s">`, url)
	case ".js":
		return fmt.Sprintf(`<script src="%s"></script>`, url)
	default:
		return ""
	}
}

// URL converts a project relative file path into the root relative URL
// written into the document.
func URL(file string) string {
	return path.Clean("/" + filepath.ToSlash(file))
}

// Inject replaces whatever sits between start and the next end marker with
// one reference per url, indented like the start marker. Markers match with
// or without the spaces inside the comment, so "<!--inject:css-->" finds the
// same block as StartTag("css"); the markers are kept as written. Every
// occurrence of start is processed. A document without the marker is an
// error.
func Inject(doc []byte, start string, urls []string) ([]byte, error) {
	startRe := markerPattern(start)
	if !startRe.Match(doc) {
		return nil, fmt.Errorf("marker %q not found", start)
	}

	var out bytes.Buffer
	rest := doc
	for {
		loc := startRe.FindIndex(rest)
		if loc == nil {
			out.Write(rest)
			break
		}

		afterStart := loc[1]
		end := endMarker.FindIndex(rest[afterStart:])
		if end == nil {
			return nil, fmt.Errorf("marker %q has no matching %q", start, EndTag)
		}
		endTag := rest[afterStart+end[0] : afterStart+end[1]]

		indent := lineIndent(rest, loc[0])

		out.Write(rest[:afterStart])
		out.WriteByte('\n')
		for _, u := range urls {
			ref := Reference(u)
			if ref == "" {
				continue
			}
			out.WriteString(indent)
			out.WriteString(ref)
			out.WriteByte('\n')
		}
		out.WriteString(indent)
		out.Write(endTag)

		rest = rest[afterStart+end[1]:]
	}

	return out.Bytes(), nil
}

var endMarker = regexp.MustCompile(`<!--\s*endinject\s*-->`)

// markerPattern matches the comment tag with any whitespace inside the
// comment delimiters.
func markerPattern(tag string) *regexp.Regexp {
	inner := strings.TrimSpace(tag)
	inner = strings.TrimPrefix(inner, "<!--")
	inner = strings.TrimSuffix(inner, "-->")
	return regexp.MustCompile(`<!--\s*` + regexp.QuoteMeta(strings.TrimSpace(inner)) + `\s*-->`)
}

// lineIndent returns the whitespace preceding position i on its line.
func lineIndent(doc []byte, i int) string {
	lineStart := bytes.LastIndexByte(doc[:i], '\n') + 1
	prefix := doc[lineStart:i]
	if len(bytes.TrimLeft(prefix, " \t")) != 0 {
		return ""
	}
	return string(prefix)
}
