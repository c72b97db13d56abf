package errors

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Severity classifies a diagnostic.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARN"
	default:
		return "ERROR"
	}
}

// Diagnostic is one problem reported by an external tool.
type Diagnostic struct {
	Tool     string   `json:"tool"`
	Severity Severity `json:"severity"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	Code     string   `json:"code,omitempty"`
	Message  string   `json:"message"`
	Raw      string   `json:"raw"`
}

// Location returns file:line:column, omitting what is unknown.
func (d *Diagnostic) Location() string {
	if d.File == "" {
		return ""
	}
	loc := d.File
	if d.Line > 0 {
		loc += ":" + strconv.Itoa(d.Line)
		if d.Column > 0 {
			loc += ":" + strconv.Itoa(d.Column)
		}
	}
	return loc
}

// String formats the diagnostic on one line.
func (d *Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", d.Severity)
	if d.Tool != "" {
		b.WriteString(" " + d.Tool)
	}
	if loc := d.Location(); loc != "" {
		b.WriteString(" " + loc)
	}
	b.WriteString(": " + d.Message)
	if d.Code != "" {
		b.WriteString(" (" + d.Code + ")")
	}
	return b.String()
}

type linePattern struct {
	regex *regexp.Regexp
	parse func(m []string) *Diagnostic
}

// continuation patterns complete the previous diagnostic instead of
// starting a new one.
var (
	// dart-sass:   public/scss/main.scss 3:18  root stylesheet
	sassLocation = regexp.MustCompile(`^\s*(\S+\.s[ac]ss) (\d+):(\d+)\b`)
	// jscs:        3 |if (x) y();
	//          --------^
	jscsSource = regexp.MustCompile(`^\s*(\d+) \|`)
	jscsCaret  = regexp.MustCompile(`^-*\^$`)
)

var patterns = []linePattern{
	{
		// public/app/app.js: line 3, col 5, Missing semicolon. (W033)
		regex: regexp.MustCompile(`^(.+?): line (\d+), col (\d+), (.+?)(?: \(([EWI]\d+)\))?$`),
		parse: func(m []string) *Diagnostic {
			d := &Diagnostic{File: m[1], Line: atoi(m[2]), Column: atoi(m[3]), Message: m[4], Code: m[5]}
			switch {
			case strings.HasPrefix(m[5], "W"):
				d.Severity = SeverityWarning
			case strings.HasPrefix(m[5], "I"):
				d.Severity = SeverityInfo
			default:
				d.Severity = SeverityError
			}
			return d
		},
	},
	{
		// Error: Invalid CSS after "a": expected "{" on line 3 of public/scss/main.scss
		regex: regexp.MustCompile(`^(?:Error: )?(.+) on line (\d+) of (\S+)$`),
		parse: func(m []string) *Diagnostic {
			return &Diagnostic{Severity: SeverityError, File: m[3], Line: atoi(m[2]), Message: m[1]}
		},
	},
	{
		// requireCurlyBraces: Missing curly braces at public/app/app.js :
		regex: regexp.MustCompile(`^(?:(\w+): )?(.+) at (\S+) :$`),
		parse: func(m []string) *Diagnostic {
			return &Diagnostic{Severity: SeverityError, File: m[3], Code: m[1], Message: m[2]}
		},
	},
	{
		// CssSyntaxError: public/css/main.css:4:2: Unknown word
		regex: regexp.MustCompile(`^(?:\w*Error: )?(\S+?):(\d+):(\d+):? (.+)$`),
		parse: func(m []string) *Diagnostic {
			return &Diagnostic{Severity: SeverityError, File: m[1], Line: atoi(m[2]), Column: atoi(m[3]), Message: m[4]}
		},
	},
	{
		// Error: expected "}".
		regex: regexp.MustCompile(`^(?:\w*Error|error): (.+)$`),
		parse: func(m []string) *Diagnostic {
			return &Diagnostic{Severity: SeverityError, Message: m[1]}
		},
	},
}

// ParseToolOutput extracts diagnostics from the output of sass, postcss,
// jshint and jscs. Lines that match no known format are ignored.
func ParseToolOutput(tool, output string) []*Diagnostic {
	var (
		diags      []*Diagnostic
		last       *Diagnostic
		sourceLine int
	)

	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if last != nil && last.Line == 0 {
			if m := sassLocation.FindStringSubmatch(line); m != nil && last.File == "" {
				last.File, last.Line, last.Column = m[1], atoi(m[2]), atoi(m[3])
				continue
			}
			if m := jscsSource.FindStringSubmatch(line); m != nil && last.File != "" {
				sourceLine = atoi(m[1])
				continue
			}
			if jscsCaret.MatchString(strings.TrimSpace(line)) && sourceLine > 0 {
				last.Line = sourceLine
				continue
			}
		}

		for _, p := range patterns {
			m := p.regex.FindStringSubmatch(strings.TrimSpace(line))
			if m == nil {
				continue
			}
			d := p.parse(m)
			d.Tool = tool
			d.Raw = strings.TrimSpace(line)
			diags = append(diags, d)
			last = d
			sourceLine = 0
			break
		}
	}
	return diags
}

// FormatDiagnostics renders diagnostics one per line, suitable for a
// terminal or a browser notification.
func FormatDiagnostics(diags []*Diagnostic) string {
	lines := make([]string, len(diags))
	for i, d := range diags {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}

// CountBySeverity tallies diagnostics.
func CountBySeverity(diags []*Diagnostic) map[Severity]int {
	counts := make(map[Severity]int)
	for _, d := range diags {
		counts[d.Severity]++
	}
	return counts
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// ToolError reports an external tool exiting with a failure, together with
// the diagnostics found in its output.
type ToolError struct {
	Tool        string
	Output      string
	Diagnostics []*Diagnostic
	Cause       error
}

// NewToolError parses output and wraps cause.
func NewToolError(tool, output string, cause error) *ToolError {
	return &ToolError{
		Tool:        tool,
		Output:      output,
		Diagnostics: ParseToolOutput(tool, output),
		Cause:       cause,
	}
}

func (e *ToolError) Error() string {
	if len(e.Diagnostics) > 0 {
		d := e.Diagnostics[0]
		msg := e.Tool + ": " + d.Message
		if loc := d.Location(); loc != "" {
			msg = e.Tool + ": " + loc + ": " + d.Message
		}
		if n := len(e.Diagnostics) - 1; n > 0 {
			msg += fmt.Sprintf(" (and %d more)", n)
		}
		return msg
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		return fmt.Sprintf("%s: %v: %s", e.Tool, e.Cause, out)
	}
	return fmt.Sprintf("%s: %v", e.Tool, e.Cause)
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}
