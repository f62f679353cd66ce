package compiler

import (
	"strings"
	"testing"

	"github.com/SohamMalakar/kitty/pkg/diagnostics"
)

func parseSource(t *testing.T, src string) (*Program, *diagnostics.Sink) {
	t.Helper()
	sink := diagnostics.NewSink()
	tokens := Lex(src, "test.kt", sink)
	if sink.HasErrors() {
		t.Fatalf("lex errors: %v", sink.Diagnostics())
	}
	return Parse(tokens, sink), sink
}

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	prog, sink := parseSource(t, src)
	if sink.HasErrors() {
		t.Fatalf("Parse(%q) failed: %v", src, sink.Diagnostics())
	}
	return prog
}

func TestParseExpressionPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1 + 2 * 3;", "(1 + (2 * 3))"},
		{"8 - 3 - 2;", "((8 - 3) - 2)"},
		{"8 / 4 / 2;", "((8 / 4) / 2)"},
		{"2 ^ 3 ^ 2;", "(2 ^ (3 ^ 2))"},
		{"2 ** 3 ^ 2;", "(2 ** (3 ^ 2))"},
		{"2 * 3 ^ 2;", "(2 * (3 ^ 2))"},
		{"2 ^ 3 * 2;", "((2 ^ 3) * 2)"},
		{"(1 + 2) * 3;", "((1 + 2) * 3)"},
		{"10 % 3 * 2;", "((10 % 3) * 2)"},
		{"a < b == c > d;", "((a < b) == (c > d))"},
		{"a + 1 >= b - 1 != true;", "(((a + 1) >= (b - 1)) != true)"},
		{"f(1, 2 + 3) * 2;", "(f(1, (2 + 3)) * 2)"},
		{"g();", "g()"},
		{"x <= 1.5;", "(x <= 1.5)"},
		{`concat("a", "b");`, `concat("a", "b")`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			prog := mustParse(t, tt.input)
			if len(prog.Statements) != 1 {
				t.Fatalf("expected 1 statement, got %d", len(prog.Statements))
			}
			stmt, ok := prog.Statements[0].(*ExpressionStatement)
			if !ok {
				t.Fatalf("expected *ExpressionStatement, got %T", prog.Statements[0])
			}
			if got := stmt.Expr.String(); got != tt.expected {
				t.Errorf("got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestParseExponentIsRightAssociative(t *testing.T) {
	prog := mustParse(t, "2 ^ 3 ^ 2;")
	root := prog.Statements[0].(*ExpressionStatement).Expr.(*InfixExpression)
	if _, ok := root.Left.(*IntegerLiteral); !ok {
		t.Fatalf("left operand should be the literal 2, got %s", root.Left)
	}
	right, ok := root.Right.(*InfixExpression)
	if !ok || right.Operator != "^" {
		t.Fatalf("right operand should be 3 ^ 2, got %s", root.Right)
	}
}

func TestParseStatements(t *testing.T) {
	src := `
var x: int = 2;
x = x + 1;
def add(a: int, b: float) -> float:
	return a + b;
end
def noop() -> void:
	return;
end;
while x < 10:
	if x == 5:
		break;
	end
	x = x + 1;
	continue;
end
printf("%d\n", x);
`
	prog := mustParse(t, src)
	if len(prog.Statements) != 6 {
		t.Fatalf("expected 6 statements, got %d: %s", len(prog.Statements), prog)
	}

	v := prog.Statements[0].(*VarStatement)
	if v.Name.Value != "x" || v.ValueType != "int" || v.Value.String() != "2" {
		t.Errorf("var statement = %s", v)
	}

	a := prog.Statements[1].(*AssignStatement)
	if a.Name.Value != "x" || a.Value.String() != "(x + 1)" {
		t.Errorf("assign statement = %s", a)
	}

	fn := prog.Statements[2].(*FunctionStatement)
	if fn.Name.Value != "add" || fn.ReturnType != "float" || len(fn.Params) != 2 {
		t.Fatalf("function statement = %s", fn)
	}
	if fn.Params[0].Name.Value != "a" || fn.Params[0].Type != "int" || fn.Params[1].Type != "float" {
		t.Errorf("params = %+v", fn.Params)
	}
	if ret, ok := fn.Body[0].(*ReturnStatement); !ok || ret.Value.String() != "(a + b)" {
		t.Errorf("body = %s", blockString(fn.Body))
	}

	noop := prog.Statements[3].(*FunctionStatement)
	if ret := noop.Body[0].(*ReturnStatement); ret.Value != nil {
		t.Errorf("bare return should have nil value, got %s", ret.Value)
	}

	loop := prog.Statements[4].(*WhileStatement)
	if loop.Condition.String() != "(x < 10)" || len(loop.Body) != 3 {
		t.Fatalf("while statement = %s", loop)
	}
	inner := loop.Body[0].(*IfStatement)
	if _, ok := inner.Body[0].(*BreakStatement); !ok {
		t.Errorf("expected break in if body, got %s", blockString(inner.Body))
	}
	if len(inner.ElseBody) != 0 {
		t.Errorf("if without else should have empty ElseBody")
	}
	if _, ok := loop.Body[2].(*ContinueStatement); !ok {
		t.Errorf("expected continue, got %s", loop.Body[2])
	}

	call := prog.Statements[5].(*ExpressionStatement).Expr.(*CallExpression)
	if call.Function.Value != "printf" || len(call.Args) != 2 {
		t.Errorf("call = %s", call)
	}
}

func TestParseElifChain(t *testing.T) {
	src := `
if a: x = 1;
elif b: x = 2;
elif c: x = 3;
else: x = 4;
end
`
	prog := mustParse(t, src)
	if len(prog.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Statements))
	}
	top := prog.Statements[0].(*IfStatement)
	if top.Condition.String() != "a" {
		t.Errorf("condition = %s", top.Condition)
	}

	// Each elif is the only statement of the previous else body.
	conds := []string{"b", "c"}
	cur := top
	for _, want := range conds {
		if len(cur.ElseBody) != 1 {
			t.Fatalf("expected nested if in else body, got %d statements", len(cur.ElseBody))
		}
		next, ok := cur.ElseBody[0].(*IfStatement)
		if !ok {
			t.Fatalf("expected *IfStatement, got %T", cur.ElseBody[0])
		}
		if next.Condition.String() != want {
			t.Errorf("elif condition = %s, want %s", next.Condition, want)
		}
		cur = next
	}
	if len(cur.ElseBody) != 1 || cur.ElseBody[0].String() != "x = 4;" {
		t.Errorf("final else body = %s", blockString(cur.ElseBody))
	}
}

func TestParseRecovery(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		diags      int
		statements []string
	}{
		{
			name:       "Missing semicolon",
			input:      "var x: int = 1\nvar y: int = 2;\nvar z: int = 3;",
			diags:      1,
			statements: []string{"var z: int = 3;"},
		},
		{
			name:       "Several bad statements",
			input:      "var = 1; x = ; y = 2;",
			diags:      2,
			statements: []string{"y = 2;"},
		},
		{
			name:       "Missing closing paren",
			input:      "x = (1 + 2; y = 3;",
			diags:      1,
			statements: []string{"y = 3;"},
		},
		{
			name:       "Call of non-identifier",
			input:      "1(2); ok();",
			diags:      1,
			statements: []string{"ok();"},
		},
		{
			name:       "Integer out of range",
			input:      "var x: int = 99999999999; var y: int = 1;",
			diags:      1,
			statements: []string{"var y: int = 1;"},
		},
		{
			name:       "Stray end",
			input:      "end x = 1;",
			diags:      1,
			statements: []string{"x = 1;"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, sink := parseSource(t, tt.input)
			if sink.Len() != tt.diags {
				t.Errorf("expected %d diagnostics, got %d: %v", tt.diags, sink.Len(), sink.Diagnostics())
			}
			for _, d := range sink.Diagnostics() {
				if d.Category != diagnostics.Syntax {
					t.Errorf("category = %q", d.Category)
				}
			}
			var got []string
			for _, s := range prog.Statements {
				got = append(got, s.String())
			}
			if strings.Join(got, " ") != strings.Join(tt.statements, " ") {
				t.Errorf("statements = %q, want %q", got, tt.statements)
			}
		})
	}
}

func TestParseRecoveryInsideBlock(t *testing.T) {
	prog, sink := parseSource(t, "while x < 3: y = ; x = x + 1; end\nz = 1;")
	if sink.Len() != 1 {
		t.Fatalf("expected 1 diagnostic, got %v", sink.Diagnostics())
	}
	if len(prog.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(prog.Statements))
	}
	loop := prog.Statements[0].(*WhileStatement)
	if len(loop.Body) != 1 || loop.Body[0].String() != "x = (x + 1);" {
		t.Errorf("loop body = %s", blockString(loop.Body))
	}
}

func TestParseDiagnosticSpan(t *testing.T) {
	_, sink := parseSource(t, "x = 1\ny = 2;")
	diags := sink.Diagnostics()
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %v", diags)
	}
	d := diags[0]
	if d.Start.Line != 2 || d.Start.Col != 1 || d.End.Col != 2 {
		t.Errorf("span = %d:%d-%d, want 2:1-2", d.Start.Line, d.Start.Col, d.End.Col)
	}
	if !strings.Contains(d.Message, "';'") {
		t.Errorf("message = %q", d.Message)
	}
}

func TestParseUnterminatedBlock(t *testing.T) {
	_, sink := parseSource(t, "def f() -> int:\n\treturn 1;\n")
	if !sink.HasErrors() {
		t.Fatal("expected a diagnostic for the missing 'end'")
	}
	if msg := sink.Diagnostics()[0].Message; !strings.Contains(msg, "'end'") {
		t.Errorf("message = %q", msg)
	}
}

// Either the program has no more statements than terminators, or something
// was reported.
func TestParseStatementCountBound(t *testing.T) {
	inputs := []string{
		"",
		"1;",
		"1 2 3;",
		"var x: int = 1; x = 2;",
		"if x: y = 1; end",
		"def f() -> void: end",
		"while true: break; end; 1;",
		";;;",
		"end end end",
		"x = = 1;",
	}
	for _, src := range inputs {
		prog, sink := parseSource(t, src)
		terminators := 0
		for _, tk := range Lex(src, "", diagnostics.NewSink()) {
			if tk.Type == SEMICOLON || tk.Type == END {
				terminators++
			}
		}
		if len(prog.Statements) > terminators && !sink.HasErrors() {
			t.Errorf("%q: %d statements for %d terminators", src, len(prog.Statements), terminators)
		}
	}
}

func TestParseAddsMissingEOF(t *testing.T) {
	sink := diagnostics.NewSink()
	tokens := Lex("x = 1;", "", sink)
	prog := Parse(tokens[:len(tokens)-1], sink)
	if sink.HasErrors() || len(prog.Statements) != 1 {
		t.Errorf("statements=%d diags=%v", len(prog.Statements), sink.Diagnostics())
	}
	if prog := Parse(nil, sink); len(prog.Statements) != 0 {
		t.Errorf("empty token slice parsed into %d statements", len(prog.Statements))
	}
}
