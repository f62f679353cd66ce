package diagnostics

import (
	"fmt"
	"strings"
)

// Position is a point in a source file. Index is a 0-based rune offset,
// Line and Col are 1-based. Source holds the whole text the position refers to
// so a diagnostic can render the offending line without re-reading the file.
type Position struct {
	Index  int
	Line   int
	Col    int
	File   string
	Source string
}

// Start returns the position of the first character of src.
func Start(src, file string) Position {
	return Position{Index: 0, Line: 1, Col: 1, File: file, Source: src}
}

// Advance moves the position past ch.
func (p *Position) Advance(ch rune) {
	p.Index++
	if ch == '\n' {
		p.Line++
		p.Col = 1
		return
	}
	p.Col++
}

func (p Position) String() string {
	file := p.File
	if file == "" {
		file = "<input>"
	}
	return fmt.Sprintf("%s:%d:%d", file, p.Line, p.Col)
}

// LineText returns the source line the position is on, without its newline.
func (p Position) LineText() string {
	if p.Line < 1 {
		return ""
	}
	lines := strings.Split(p.Source, "\n")
	if p.Line > len(lines) {
		return ""
	}
	return strings.TrimRight(lines[p.Line-1], "\r")
}
