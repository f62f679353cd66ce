// Package diagnostics collects and renders lexical, syntax and compile errors.
package diagnostics

// Diagnostic categories, printed as the heading of each report.
const (
	Lexical = "Lexical Error"
	Syntax  = "Syntax Error"
	Compile = "Compile Error"
)

// Diagnostic is a single error tied to a source span. End is exclusive.
type Diagnostic struct {
	Start    Position `json:"-"`
	End      Position `json:"-"`
	Category string   `json:"category"`
	Message  string   `json:"message"`
}

// MakeDiag creates a new Diagnostic.
func MakeDiag(start, end Position, category, message string) Diagnostic {
	return Diagnostic{
		Start:    start,
		End:      end,
		Category: category,
		Message:  message,
	}
}

func (d Diagnostic) Error() string {
	return d.Category + ": " + d.Message + " at " + d.Start.String()
}

// Sink accumulates diagnostics across the lexing and parsing phases. It is
// not safe for concurrent use; every compilation owns its own sink.
type Sink struct {
	diags    []Diagnostic
	reported int
}

// NewSink returns an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// Add records a diagnostic.
func (s *Sink) Add(start, end Position, category, message string) {
	s.diags = append(s.diags, MakeDiag(start, end, category, message))
}

// Append records already-built diagnostics.
func (s *Sink) Append(diags ...Diagnostic) {
	s.diags = append(s.diags, diags...)
}

// Len returns the number of recorded diagnostics.
func (s *Sink) Len() int {
	return len(s.diags)
}

// HasErrors reports whether anything was recorded.
func (s *Sink) HasErrors() bool {
	return len(s.diags) > 0
}

// Diagnostics returns every recorded diagnostic in the order it was added.
func (s *Sink) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(s.diags))
	copy(out, s.diags)
	return out
}

// Since returns the diagnostics recorded after the first mark entries.
func (s *Sink) Since(mark int) []Diagnostic {
	if mark >= len(s.diags) {
		return nil
	}
	out := make([]Diagnostic, len(s.diags)-mark)
	copy(out, s.diags[mark:])
	return out
}

// Pending returns the diagnostics not yet handed out by Report and marks them
// as reported.
func (s *Sink) Pending() []Diagnostic {
	pending := s.Since(s.reported)
	s.reported = len(s.diags)
	return pending
}
