package reload

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/forge/internal/logging"
)

// newProxy forwards requests to target and adds the client script to HTML
// responses.
func newProxy(target string, logger logging.Logger) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parsing proxy target: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("proxy target %q must be an absolute URL", target)
	}

	proxy := httputil.NewSingleHostReverseProxy(u)
	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		// Ask for an uncompressed body so it can be rewritten.
		r.Header.Del("Accept-Encoding")
	}
	proxy.ModifyResponse = func(resp *http.Response) error {
		if !isHTML(resp) {
			return nil
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return err
		}

		ctx := resp.Request.Context()
		if nonce := scriptNonce(resp.Header); nonce != "" {
			ctx = templ.WithNonce(ctx, nonce)
		}
		out, err := InjectScript(ctx, body)
		if err != nil {
			return err
		}

		resp.Body = io.NopCloser(bytes.NewReader(out))
		resp.ContentLength = int64(len(out))
		resp.Header.Set("Content-Length", strconv.Itoa(len(out)))
		return nil
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn(r.Context(), err, "App server unreachable", "path", r.URL.Path)
		http.Error(w, "forge: app server unavailable, waiting for restart", http.StatusBadGateway)
	}

	return proxy, nil
}

// scriptNonce returns the nonce the app allows scripts with, taken from the
// script-src (or default-src) directive of its Content-Security-Policy.
func scriptNonce(h http.Header) string {
	var fallback string
	for _, policy := range h.Values("Content-Security-Policy") {
		for _, directive := range strings.Split(policy, ";") {
			fields := strings.Fields(directive)
			if len(fields) == 0 {
				continue
			}
			name := strings.ToLower(fields[0])
			if name != "script-src" && name != "default-src" {
				continue
			}
			for _, src := range fields[1:] {
				if !strings.HasPrefix(src, "'nonce-") || !strings.HasSuffix(src, "'") {
					continue
				}
				nonce := strings.TrimSuffix(strings.TrimPrefix(src, "'nonce-"), "'")
				if name == "script-src" {
					return nonce
				}
				if fallback == "" {
					fallback = nonce
				}
			}
		}
	}
	return fallback
}

func isHTML(resp *http.Response) bool {
	if resp.Header.Get("Content-Encoding") != "" {
		return false
	}
	mediatype, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && mediatype == "text/html"
}
