// Package glob implements gulp-style glob sets: an ordered list of
// include patterns supporting "**", with "!"-prefixed patterns excluding
// matches. Patterns are normalised and deduplicated when the set is built.
package glob

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Set is an immutable collection of include and exclude patterns.
type Set struct {
	include []string
	exclude []string
}

// Match is a file found by Expand together with the static base of the
// pattern that matched it. Rel is the path relative to Base, which is what
// pipelines preserve when writing to a destination directory.
type Match struct {
	Path string
	Base string
	Rel  string
}

// New builds a Set from patterns. Duplicate patterns are dropped and empty
// ones ignored. An invalid pattern is an error.
func New(patterns ...string) (Set, error) {
	var s Set
	seen := make(map[string]bool, len(patterns))

	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		negated := strings.HasPrefix(raw, "!")
		p := Normalize(strings.TrimPrefix(raw, "!"))
		if !doublestar.ValidatePattern(p) {
			return Set{}, fmt.Errorf("invalid glob pattern %q", raw)
		}

		key := p
		if negated {
			key = "!" + p
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		if negated {
			s.exclude = append(s.exclude, p)
		} else {
			s.include = append(s.include, p)
		}
	}

	return s, nil
}

// MustNew is New for patterns known at compile time.
func MustNew(patterns ...string) Set {
	s, err := New(patterns...)
	if err != nil {
		panic(err)
	}
	return s
}

// Normalize converts a pattern or path to the slash separated, cleaned,
// relative form used for matching. "./public/**" becomes "public/**".
func Normalize(p string) string {
	p = filepath.ToSlash(p)
	trailing := strings.HasSuffix(p, "/")
	p = path.Clean(p)
	if trailing && p != "." && p != "/" {
		p += "/**"
	}
	return p
}

// Include returns the include patterns.
func (s Set) Include() []string {
	return append([]string(nil), s.include...)
}

// Exclude returns the exclude patterns without their "!" prefix.
func (s Set) Exclude() []string {
	return append([]string(nil), s.exclude...)
}

// Empty reports whether the set has no include patterns.
func (s Set) Empty() bool {
	return len(s.include) == 0
}

// Patterns returns the set in its original notation.
func (s Set) Patterns() []string {
	out := append([]string(nil), s.include...)
	for _, p := range s.exclude {
		out = append(out, "!"+p)
	}
	return out
}

// Matches reports whether name is matched by an include pattern and by no
// exclude pattern.
func (s Set) Matches(name string) bool {
	name = Normalize(name)

	for _, p := range s.exclude {
		if ok, _ := doublestar.Match(p, name); ok {
			return false
		}
	}
	for _, p := range s.include {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Bases returns the static directory prefix of every include pattern,
// deduplicated and sorted. These are the directories a watcher needs to
// observe.
func (s Set) Bases() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range s.include {
		base, _ := doublestar.SplitPattern(p)
		if base == "" {
			base = "."
		}
		if !seen[base] {
			seen[base] = true
			out = append(out, base)
		}
	}
	sort.Strings(out)
	return out
}

// Expand returns every regular file under root matched by the set, in
// lexical order. A file matched by several include patterns is reported once,
// with the base of the first pattern that matched it. Patterns that match
// nothing are not an error.
func (s Set) Expand(root string) ([]Match, error) {
	if root == "" {
		root = "."
	}
	fsys := os.DirFS(root)

	seen := make(map[string]bool)
	var out []Match

	for _, p := range s.include {
		matches, err := doublestar.Glob(fsys, p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", p, err)
		}
		sort.Strings(matches)

		base, _ := doublestar.SplitPattern(p)
		if base == "" {
			base = "."
		}

		for _, m := range matches {
			if seen[m] || s.excluded(m) {
				continue
			}
			seen[m] = true

			rel := strings.TrimPrefix(m, base+"/")
			if base == m {
				rel = path.Base(m)
			}
			if base == "." {
				rel = m
			}

			out = append(out, Match{
				Path: filepath.Join(root, filepath.FromSlash(m)),
				Base: filepath.Join(root, filepath.FromSlash(base)),
				Rel:  filepath.FromSlash(rel),
			})
		}
	}

	return out, nil
}

func (s Set) excluded(name string) bool {
	for _, p := range s.exclude {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Relative converts an absolute or root-relative file path into the form
// Matches expects. Paths outside root are returned normalised but
// unchanged.
func Relative(root, name string) string {
	if root == "" {
		root = "."
	}
	if filepath.IsAbs(name) {
		absRoot, err := filepath.Abs(root)
		if err == nil {
			if rel, err := filepath.Rel(absRoot, name); err == nil && !strings.HasPrefix(rel, "..") {
				return Normalize(rel)
			}
		}
	}
	return Normalize(name)
}
