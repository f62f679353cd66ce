package compiler

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"
)

func TestDump(t *testing.T) {
	prog := mustParse(t, "var x: int = 1 + 2.5;")
	got := prog.Dump()

	want := map[string]any{
		"type": KindProgram,
		"statements": []any{
			map[string]any{
				"type":       KindVarStatement,
				"name":       map[string]any{"type": KindIdentifierLiteral, "value": "x"},
				"value_type": "int",
				"value": map[string]any{
					"type":     KindInfixExpression,
					"left":     map[string]any{"type": KindIntegerLiteral, "value": int32(1)},
					"operator": "+",
					"right":    map[string]any{"type": KindFloatLiteral, "value": 2.5},
				},
			},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Dump() =\n%#v\nwant\n%#v", got, want)
	}
}

func TestDumpJSON(t *testing.T) {
	prog := mustParse(t, `
def f(n: int) -> void:
	if n > 0:
		return;
	else:
		printf("%d", n);
	end
end
`)
	var buf bytes.Buffer
	if err := WriteAST(&buf, prog); err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("AST dump is not valid JSON: %v\n%s", err, buf.String())
	}
	stmts := decoded["statements"].([]any)
	fn := stmts[0].(map[string]any)
	if fn["type"] != "FunctionStatement" || fn["return_type"] != "void" {
		t.Errorf("function dump = %v", fn)
	}
	body := fn["body"].([]any)
	ifStmt := body[0].(map[string]any)
	ret := ifStmt["body"].([]any)[0].(map[string]any)
	if ret["type"] != "ReturnStatement" || ret["value"] != nil {
		t.Errorf("bare return dump = %v", ret)
	}
	if len(ifStmt["else_body"].([]any)) != 1 {
		t.Errorf("else body dump = %v", ifStmt["else_body"])
	}
}

func TestNodeKinds(t *testing.T) {
	tests := []struct {
		node Node
		kind NodeKind
	}{
		{&Program{}, KindProgram},
		{&ExpressionStatement{}, KindExpressionStatement},
		{&VarStatement{}, KindVarStatement},
		{&AssignStatement{}, KindAssignStatement},
		{&FunctionStatement{}, KindFunctionStatement},
		{&ReturnStatement{}, KindReturnStatement},
		{&IfStatement{}, KindIfStatement},
		{&WhileStatement{}, KindWhileStatement},
		{&BreakStatement{}, KindBreakStatement},
		{&ContinueStatement{}, KindContinueStatement},
		{&InfixExpression{}, KindInfixExpression},
		{&CallExpression{}, KindCallExpression},
		{&IntegerLiteral{}, KindIntegerLiteral},
		{&FloatLiteral{}, KindFloatLiteral},
		{&BooleanLiteral{}, KindBooleanLiteral},
		{&StringLiteral{}, KindStringLiteral},
		{&IdentifierLiteral{}, KindIdentifierLiteral},
	}
	for _, tt := range tests {
		if got := tt.node.Kind(); got != tt.kind {
			t.Errorf("%T.Kind() = %s, want %s", tt.node, got, tt.kind)
		}
	}
}

func TestNodePositions(t *testing.T) {
	prog := mustParse(t, "x = 1;\n  y = foo(2);")
	second := prog.Statements[1].(*AssignStatement)
	if p := second.Position(); p.Line != 2 || p.Col != 3 {
		t.Errorf("statement position = %d:%d, want 2:3", p.Line, p.Col)
	}
	call := second.Value.(*CallExpression)
	if p := call.Position(); p.Line != 2 || p.Col != 7 {
		t.Errorf("call position = %d:%d, want 2:7", p.Line, p.Col)
	}
	if e := call.End(); e.Line != 2 || e.Col != 13 {
		t.Errorf("call end = %d:%d, want 2:13", e.Line, e.Col)
	}
	if e := second.End(); e.Line != 2 || e.Col != 14 {
		t.Errorf("statement end = %d:%d, want 2:14", e.Line, e.Col)
	}
	if e := second.Name.End(); e.Col != 4 {
		t.Errorf("name end col = %d, want 4", e.Col)
	}
}
