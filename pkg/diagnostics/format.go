package diagnostics

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	colorRed   = "\033[31m"
	colorBold  = "\033[1m"
	colorCyan  = "\033[36m"
	colorReset = "\033[0m"
)

// FormatOptions controls how diagnostics are rendered.
type FormatOptions struct {
	JSON  bool // one JSON array instead of human-readable text
	Color bool // ANSI colors for terminals
}

type jsonSpan struct {
	File      string `json:"file"`
	StartLine int    `json:"startLine"`
	StartCol  int    `json:"startCol"`
	EndLine   int    `json:"endLine"`
	EndCol    int    `json:"endCol"`
}

type jsonDiag struct {
	Category string   `json:"category"`
	Message  string   `json:"message"`
	Span     jsonSpan `json:"span"`
}

func toJSON(d Diagnostic) jsonDiag {
	return jsonDiag{
		Category: d.Category,
		Message:  d.Message,
		Span: jsonSpan{
			File:      d.Start.File,
			StartLine: d.Start.Line,
			StartCol:  d.Start.Col,
			EndLine:   d.End.Line,
			EndCol:    d.End.Col,
		},
	}
}

func paint(on bool, color, s string) string {
	if !on {
		return s
	}
	return color + s + colorReset
}

// FormatDiagnostic renders one diagnostic: heading, location, the offending
// source line and a caret underline of the span.
func FormatDiagnostic(d Diagnostic, opts FormatOptions) string {
	if opts.JSON {
		b, _ := json.Marshal(toJSON(d))
		return string(b)
	}

	var sb strings.Builder
	sb.WriteString(paint(opts.Color, colorBold+colorRed, d.Category))
	sb.WriteString(": ")
	sb.WriteString(d.Message)
	sb.WriteString("\n  --> ")
	sb.WriteString(paint(opts.Color, colorCyan, d.Start.String()))

	line := d.Start.LineText()
	if line == "" {
		return sb.String()
	}
	width := 1
	if d.End.Line == d.Start.Line && d.End.Col > d.Start.Col {
		width = d.End.Col - d.Start.Col
	}
	pad := d.Start.Col - 1
	if pad < 0 {
		pad = 0
	}
	gutter := fmt.Sprintf("%4d | ", d.Start.Line)
	sb.WriteString("\n")
	sb.WriteString(gutter)
	sb.WriteString(line)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat(" ", len(gutter)-2))
	sb.WriteString("| ")
	sb.WriteString(leadingWhitespace(line, pad))
	sb.WriteString(paint(opts.Color, colorRed, strings.Repeat("^", width)))
	return sb.String()
}

// leadingWhitespace keeps tabs from the source line so the caret lines up.
func leadingWhitespace(line string, n int) string {
	runes := []rune(line)
	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i < len(runes) && runes[i] == '\t' {
			sb.WriteRune('\t')
			continue
		}
		sb.WriteRune(' ')
	}
	return sb.String()
}

// FormatDiagnostics renders a list of diagnostics.
func FormatDiagnostics(diags []Diagnostic, opts FormatOptions) string {
	if opts.JSON {
		out := make([]jsonDiag, len(diags))
		for i, d := range diags {
			out[i] = toJSON(d)
		}
		b, _ := json.Marshal(out)
		return string(b)
	}
	parts := make([]string, len(diags))
	for i, d := range diags {
		parts[i] = FormatDiagnostic(d, opts)
	}
	return strings.Join(parts, "\n\n")
}

// Report writes every diagnostic recorded since the previous Report and
// returns true when the sink holds no diagnostics at all.
func (s *Sink) Report(w io.Writer, opts FormatOptions) bool {
	pending := s.Pending()
	if len(pending) > 0 {
		fmt.Fprintln(w, FormatDiagnostics(pending, opts))
	}
	return !s.HasErrors()
}
