package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/SohamMalakar/kitty/pkg/compiler"
	"github.com/SohamMalakar/kitty/pkg/diagnostics"
)

const testSource = `var x: int = 2;
var y: int = 3;
var z: int = x + y * 2;
printf("%d\n", z);
`

func main() {
	src := testSource
	filename := "<builtin>"
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(4)
		}
		src = string(data)
		filename = os.Args[1]
	}

	fmt.Printf("Source:\n%s\n", src)

	// Lex
	sink := diagnostics.NewSink()
	tokens := compiler.Lex(src, filename, sink)

	fmt.Printf("Tokens (%d)\n", len(tokens))
	for _, tok := range tokens {
		fmt.Println(" ", tok)
	}
	fmt.Println()
	if !sink.Report(os.Stderr, diagnostics.FormatOptions{}) {
		os.Exit(1)
	}

	// Parse
	prog := compiler.Parse(tokens, sink)

	fmt.Println("AST")
	for _, s := range prog.Statements {
		fmt.Println(" ", s)
	}
	fmt.Println()
	if err := compiler.WriteAST(os.Stdout, prog); err != nil {
		fmt.Fprintln(os.Stderr, "ast dump error:", err)
	}
	fmt.Println()
	if !sink.Report(os.Stderr, diagnostics.FormatOptions{}) {
		os.Exit(2)
	}

	// IR generation
	gen := compiler.NewGenerator(filename)
	mod, err := gen.Generate(prog)
	if err != nil {
		var ge *compiler.GenError
		if errors.As(err, &ge) {
			fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostic(ge.Diagnostic(), diagnostics.FormatOptions{}))
		} else {
			fmt.Fprintln(os.Stderr, "codegen error:", err)
		}
		os.Exit(3)
	}

	fmt.Println("Generated IR")
	fmt.Print(mod)
	fmt.Println()
	fmt.Print(gen.Symbols())
}
