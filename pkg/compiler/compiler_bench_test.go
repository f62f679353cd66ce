package compiler

import (
	"testing"

	"github.com/SohamMalakar/kitty/pkg/diagnostics"
)

// simpleSource is a minimal program used for benchmarking the fast path.
const simpleSource = `
def add(a: int, b: int) -> int:
	return a + b;
end

var x: int = add(3, 4);
return x;
`

// complexSource exercises loops, branches, recursion, strings and mixed
// arithmetic.
const complexSource = `
def abs_val(n: int) -> int:
	if n < 0:
		return 0 - n;
	end
	return n;
end

def fib(n: int) -> int:
	if n == 0:
		return 0;
	elif n == 1:
		return 1;
	end
	return fib(n - 1) + fib(n - 2);
end

def sum_to(n: int) -> int:
	var total: int = 0;
	var i: int = 1;
	while i <= n:
		if i % 3 == 0:
			i = i + 1;
			continue;
		end
		total = total + i;
		i = i + 1;
	end
	return total;
end

def norm(x: float, y: float) -> float:
	return (x ^ 2 + y ^ 2) ^ 0.5;
end

def label(n: int) -> str:
	if n > 100:
		return "big";
	end
	return "small";
end

var s: int = sum_to(50);
var f: int = fib(8);
var a: int = abs_val(0 - 42);
var d: float = norm(3, 4);
var l: str = label(s) + "!";
printf("%d %d %d %.1f %s\n", s, f, a, d, l);
return s + f + a;
`

func lexBench(b *testing.B, src string) []Token {
	b.Helper()
	sink := diagnostics.NewSink()
	tokens := Lex(src, "bench.kt", sink)
	if sink.HasErrors() {
		b.Fatal(sink.Diagnostics())
	}
	return tokens
}

func parseBench(b *testing.B, src string) *Program {
	b.Helper()
	sink := diagnostics.NewSink()
	prog := Parse(lexBench(b, src), sink)
	if sink.HasErrors() {
		b.Fatal(sink.Diagnostics())
	}
	return prog
}

// --- Lex benchmarks ---

func BenchmarkLex_Simple(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		lexBench(b, simpleSource)
	}
}

func BenchmarkLex_Complex(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		lexBench(b, complexSource)
	}
}

// --- Parse benchmarks ---
// Tokens are pre-computed outside the timed region.

func BenchmarkParse_Simple(b *testing.B) {
	tokens := lexBench(b, simpleSource)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Parse(tokens, diagnostics.NewSink())
	}
}

func BenchmarkParse_Complex(b *testing.B) {
	tokens := lexBench(b, complexSource)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Parse(tokens, diagnostics.NewSink())
	}
}

// --- Generate benchmarks ---
// The AST is pre-computed outside the timed region.

func BenchmarkGenerate_Simple(b *testing.B) {
	prog := parseBench(b, simpleSource)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Generate(prog, "bench.kt"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGenerate_Complex(b *testing.B) {
	prog := parseBench(b, complexSource)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Generate(prog, "bench.kt"); err != nil {
			b.Fatal(err)
		}
	}
}

// --- Full pipeline benchmarks ---

func BenchmarkCompilerPipeline_Simple(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Compile(simpleSource, "bench.kt"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCompilerPipeline_Complex(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		res, err := Compile(complexSource, "bench.kt")
		if err != nil {
			b.Fatal(err)
		}
		_ = res.Module.String()
	}
}
