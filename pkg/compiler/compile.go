package compiler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/llir/llvm/ir"

	"github.com/SohamMalakar/kitty/pkg/diagnostics"
)

// Phase identifies the pipeline stage that rejected a program.
type Phase int

const (
	PhaseLex Phase = iota + 1
	PhaseParse
	PhaseGenerate
)

func (p Phase) String() string {
	switch p {
	case PhaseLex:
		return "lex"
	case PhaseParse:
		return "parse"
	case PhaseGenerate:
		return "generate"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// ExitCode is the process status the driver uses for a failure in p.
func (p Phase) ExitCode() int {
	return int(p)
}

// PhaseError reports every diagnostic of the phase that stopped compilation.
type PhaseError struct {
	Phase       Phase
	Diagnostics []diagnostics.Diagnostic
}

func (e *PhaseError) Error() string {
	if len(e.Diagnostics) == 0 {
		return fmt.Sprintf("%s failed", e.Phase)
	}
	msg := fmt.Sprintf("%s failed: %s", e.Phase, e.Diagnostics[0].Error())
	if n := len(e.Diagnostics) - 1; n > 0 {
		msg += fmt.Sprintf(" (and %d more)", n)
	}
	return msg
}

// Result holds the output of every phase that ran.
type Result struct {
	Tokens  []Token
	Program *Program
	Module  *ir.Module
}

type options struct {
	tokens io.Writer
	ast    io.Writer
	ir     io.Writer
}

// Option configures Compile.
type Option func(*options)

// WithTokenSink writes the token listing to w, one token per line.
func WithTokenSink(w io.Writer) Option {
	return func(o *options) { o.tokens = w }
}

// WithASTSink writes the AST as indented JSON to w, even when parsing
// reported errors.
func WithASTSink(w io.Writer) Option {
	return func(o *options) { o.ast = w }
}

// WithIRSink writes the textual IR module to w.
func WithIRSink(w io.Writer) Option {
	return func(o *options) { o.ir = w }
}

// Compile runs src through lexing, parsing and code generation, stopping
// after the first phase that fails. The returned Result is partially filled
// when err is a *PhaseError.
//
// Pipeline: source → Lex → Parse → Generate → LLVM IR module
func Compile(src, filename string, opts ...Option) (*Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	sink := diagnostics.NewSink()
	res := &Result{}

	res.Tokens = Lex(src, filename, sink)
	if o.tokens != nil {
		if err := WriteTokens(o.tokens, res.Tokens); err != nil {
			return res, fmt.Errorf("writing token listing: %w", err)
		}
	}
	if sink.HasErrors() {
		return res, &PhaseError{Phase: PhaseLex, Diagnostics: sink.Diagnostics()}
	}

	mark := sink.Len()
	res.Program = Parse(res.Tokens, sink)
	if o.ast != nil {
		if err := WriteAST(o.ast, res.Program); err != nil {
			return res, fmt.Errorf("writing AST dump: %w", err)
		}
	}
	if sink.HasErrors() {
		return res, &PhaseError{Phase: PhaseParse, Diagnostics: sink.Since(mark)}
	}

	mod, err := Generate(res.Program, filename)
	if err != nil {
		var ge *GenError
		if errors.As(err, &ge) {
			return res, &PhaseError{Phase: PhaseGenerate, Diagnostics: []diagnostics.Diagnostic{ge.Diagnostic()}}
		}
		return res, err
	}
	res.Module = mod
	if o.ir != nil {
		if _, err := io.WriteString(o.ir, mod.String()); err != nil {
			return res, fmt.Errorf("writing IR: %w", err)
		}
	}
	return res, nil
}

// WriteTokens lists tokens one per line.
func WriteTokens(w io.Writer, tokens []Token) error {
	for _, tok := range tokens {
		if _, err := fmt.Fprintln(w, tok); err != nil {
			return err
		}
	}
	return nil
}

// WriteAST writes the structural dump of prog as indented JSON.
func WriteAST(w io.Writer, prog *Program) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(prog.Dump())
}
