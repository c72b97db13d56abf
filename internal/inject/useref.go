package inject

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var buildBlock = regexp.MustCompile(`(?s)([ \t]*)<!--\s*build:(css|js)\s+(\S+)\s*-->(.*?)<!--\s*endbuild\s*-->`)

// Bundle is one build block: the files it references and the single file
// they are concatenated into.
type Bundle struct {
	Type    string
	Target  string
	Sources []string
}

// Useref replaces every build block in doc with a single reference to its
// target and returns the bundles that need to be produced. References inside
// a block are read with an HTML tokenizer; external URLs are ignored.
func Useref(doc []byte) ([]byte, []Bundle, error) {
	var bundles []Bundle
	var parseErr error

	out := buildBlock.ReplaceAllFunc(doc, func(block []byte) []byte {
		m := buildBlock.FindSubmatch(block)
		indent, kind, target, body := string(m[1]), string(m[2]), string(m[3]), m[4]

		sources, err := references(body, kind)
		if err != nil && parseErr == nil {
			parseErr = fmt.Errorf("build block %s: %w", target, err)
		}
		bundles = append(bundles, Bundle{Type: kind, Target: target, Sources: sources})

		return []byte(indent + Reference(target))
	})
	if parseErr != nil {
		return nil, nil, parseErr
	}

	return out, bundles, nil
}

// references collects script src or stylesheet href attributes from body.
func references(body []byte, kind string) ([]string, error) {
	z := html.NewTokenizer(bytes.NewReader(body))
	var refs []string

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return refs, nil
			}
			return refs, z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch {
			case kind == "js" && tok.Data == "script":
				if src := attr(tok, "src"); src != "" && local(src) {
					refs = append(refs, src)
				}
			case kind == "css" && tok.Data == "link" && strings.EqualFold(attr(tok, "rel"), "stylesheet"):
				if href := attr(tok, "href"); href != "" && local(href) {
					refs = append(refs, href)
				}
			}
		}
	}
}

func attr(tok html.Token, name string) string {
	for _, a := range tok.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func local(ref string) bool {
	return !strings.Contains(ref, "://") && !strings.HasPrefix(ref, "//")
}

// BundleWriter concatenates bundle sources found under SearchPath into
// files under OutDir.
type BundleWriter struct {
	SearchPath string
	OutDir     string
	// Minify, when set, post-processes each bundle. mediatype is
	// "text/css" or "application/javascript".
	Minify func(mediatype string, data []byte) ([]byte, error)
}

// Write produces b and returns the path written.
func (w BundleWriter) Write(ctx context.Context, b Bundle) (string, error) {
	var buf bytes.Buffer
	for _, src := range b.Sources {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := filepath.Join(w.SearchPath, filepath.FromSlash(strings.TrimPrefix(path.Clean("/"+src), "/")))
		data, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("bundle %s: %w", b.Target, err)
		}
		buf.Write(data)
		if b.Type == "js" {
			buf.WriteString(";\n")
		} else {
			buf.WriteByte('\n')
		}
	}

	data := buf.Bytes()
	if w.Minify != nil {
		mediatype := "application/javascript"
		if b.Type == "css" {
			mediatype = "text/css"
		}
		min, err := w.Minify(mediatype, data)
		if err != nil {
			return "", fmt.Errorf("minifying bundle %s: %w", b.Target, err)
		}
		data = min
	}

	out := filepath.Join(w.OutDir, filepath.FromSlash(strings.TrimPrefix(path.Clean("/"+b.Target), "/")))
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return "", err
	}
	return out, nil
}
