package runtime

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lemonberrylabs/cfpl/pkg/syntax"
	"github.com/lemonberrylabs/cfpl/pkg/types"
)

func newEngine(t *testing.T, source, stdin string, out *strings.Builder) *Engine {
	t.Helper()

	program, err := syntax.Parse(source)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return NewEngine(program, Options{Stdin: strings.NewReader(stdin), Stdout: out})
}

func runProgram(t *testing.T, source, stdin string) string {
	t.Helper()

	var out strings.Builder
	engine := newEngine(t, source, stdin, &out)
	if err := engine.Execute(context.Background()); err != nil {
		t.Fatalf("execution error: %v", err)
	}
	return out.String()
}

func runProgramExpectError(t *testing.T, source, stdin string) *types.Error {
	t.Helper()

	var out strings.Builder
	engine := newEngine(t, source, stdin, &out)
	err := engine.Execute(context.Background())
	if err == nil {
		t.Fatal("expected error but got nil")
	}
	var cerr *types.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *types.Error, got %T: %v", err, err)
	}
	if cerr.Stage != types.StageInterpreter {
		t.Errorf("stage = %s, want %s", cerr.Stage, types.StageInterpreter)
	}
	return cerr
}

func TestOutput(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			"integer division and remainder",
			"VAR a = 7, b = 2 AS INT\nSTART\nOUTPUT: a / b & \" \" & a % b & \" \" & -7 / 2 & \" \" & -7 % 2\nSTOP\n",
			"3 1 -3 -1",
		},
		{
			"float promotion",
			"VAR f = 10 AS FLOAT\nSTART\nOUTPUT: f / 4 & \" \" & f\nSTOP\n",
			"2.5 10.0",
		},
		{
			"mixed arithmetic widens",
			"START\nOUTPUT: 1 + 2.0\nSTOP\n",
			"3.0",
		},
		{
			"int wraps around",
			"VAR a = 2147483647 AS INT\nSTART\na = a + 1\nOUTPUT: a\nSTOP\n",
			"-2147483648",
		},
		{
			"booleans print uppercase",
			"VAR b = \"TRUE\" AS BOOL\nSTART\nOUTPUT: b & \" \" & NOT b\nSTOP\n",
			"TRUE FALSE",
		},
		{
			"chars concatenate",
			"VAR c = 'x' AS CHAR\nSTART\nOUTPUT: c & c\nSTOP\n",
			"xx",
		},
		{
			"comparisons",
			"START\nOUTPUT: (1 == 1.0) & (2 <> 3) & (2.5 > 2) & (3 <= 2)\nSTOP\n",
			"TRUETRUETRUEFALSE",
		},
		{
			"structural equality across kinds",
			"START\nOUTPUT: ('a' == \"a\") & ('a' == 'a')\nSTOP\n",
			"FALSETRUE",
		},
		{
			"float division by zero",
			"START\nOUTPUT: 1.0 / 0\nSTOP\n",
			"Infinity",
		},
		{
			"newline expressions",
			"START\nOUTPUT: 1 & # & 2 & [#] & 3\nSTOP\n",
			"1\n2\n3",
		},
		{
			"while loop",
			"VAR i = 0 AS INT\nSTART\nWHILE (i < 3)\nSTART\nOUTPUT: i\ni = i + 1\nSTOP\nSTOP\n",
			"012",
		},
		{
			"if else",
			"VAR i = 5 AS INT\nSTART\nIF (i > 9)\nSTART\nOUTPUT: \"big\"\nSTOP\nELSE\nSTART\nOUTPUT: \"small\"\nSTOP\nSTOP\n",
			"small",
		},
		{
			"chained assignment",
			"VAR x, y AS INT\nSTART\nx = y = 4\nOUTPUT: x + y\nSTOP\n",
			"8",
		},
		{
			"unary plus and minus",
			"VAR f = 1.5 AS FLOAT\nSTART\nOUTPUT: -f & \" \" & +3 & \" \" & -(-2)\nSTOP\n",
			"-1.5 3 2",
		},
		{
			"and short-circuits",
			"START\nOUTPUT: \"FALSE\" AND (1 / 0 > 0)\nSTOP\n",
			"FALSE",
		},
		{
			"or short-circuits",
			"START\nOUTPUT: \"TRUE\" OR (1 / 0 > 0)\nSTOP\n",
			"TRUE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := runProgram(t, tt.source, "")
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		name       string
		source     string
		stdin      string
		wantMsg    string
		wantLexeme string
	}{
		{"integer division by zero", "START\nOUTPUT: 1 / 0\nSTOP\n", "", "Division by zero.", "/"},
		{"modulo by zero", "START\nOUTPUT: 1 % 0\nSTOP\n", "", "Division by zero.", "%"},
		{"float modulo", "START\nOUTPUT: 1.5 % 2\nSTOP\n", "", "Operands must be integers.", "%"},
		{"char arithmetic", "START\nOUTPUT: 'a' + 1\nSTOP\n", "", "Operands must be numbers.", "+"},
		{"string comparison", "START\nOUTPUT: \"x\" < 1\nSTOP\n", "", "Operands must be numbers.", "<"},
		{"negated char", "START\nOUTPUT: -'a'\nSTOP\n", "", "Operand must be a number.", "-"},
		{"non-bool condition", "VAR a = 1 AS INT\nSTART\nIF (a + 1)\nSTART\nSTOP\nSTOP\n", "", "Expected 'BOOL' evaluation result.", "IF"},
		{"non-bool loop condition", "START\nWHILE (1)\nSTART\nSTOP\nSTOP\n", "", "Expected 'BOOL' evaluation result.", "WHILE"},
		{"initialiser mismatch", "VAR a = 1 AS INT\nVAR c = a AS CHAR\nSTART\nSTOP\n", "", "Expected 'CHAR' type.", "c"},
		{"assignment mismatch", "VAR a AS INT\nVAR f = 1.5 AS FLOAT\nSTART\na = f\nSTOP\n", "", "Expected 'INT' type.", "a"},
		{"bad int input", "VAR a AS INT\nSTART\nINPUT: a\nSTOP\n", "abc\n", "Invalid INT input 'abc'.", "a"},
		{"bad float input", "VAR f AS FLOAT\nSTART\nINPUT: f\nSTOP\n", "Inf\n", "Invalid FLOAT input 'Inf'.", "f"},
		{"bad bool input", "VAR b AS BOOL\nSTART\nINPUT: b\nSTOP\n", "yes\n", "Invalid BOOL input 'yes'.", "b"},
		{"empty char input", "VAR c AS CHAR\nSTART\nINPUT: c\nSTOP\n", "\n", "Invalid CHAR input ''.", "c"},
		{"exhausted input", "VAR a, b AS INT\nSTART\nINPUT: a, b\nSTOP\n", "1\n", "Unexpected end of input.", "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runProgramExpectError(t, tt.source, tt.stdin)
			if err.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Lexeme != tt.wantLexeme {
				t.Errorf("lexeme = %q, want %q", err.Lexeme, tt.wantLexeme)
			}
		})
	}
}

func TestOutputBeforeErrorIsKept(t *testing.T) {
	var out strings.Builder
	engine := newEngine(t, "START\nOUTPUT: \"a\"\nOUTPUT: 1 / 0\nOUTPUT: \"b\"\nSTOP\n", "", &out)
	if err := engine.Execute(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if out.String() != "a" {
		t.Errorf("stdout = %q, want %q", out.String(), "a")
	}
}

func TestInput(t *testing.T) {
	source := `VAR a, b AS INT
VAR c AS CHAR
VAR d AS BOOL
VAR f AS FLOAT
START
INPUT: a, b
INPUT: c
INPUT: d
INPUT: f
OUTPUT: a + b & c & d & f
STOP
`
	got := runProgram(t, source, "3 4 ignored\nxyz\nTRUE\r\n  -2.5\n")
	if want := "7xTRUE-2.5"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestInputNumbersAcrossLines(t *testing.T) {
	source := "VAR a, b, c AS INT\nSTART\nINPUT: a, b\nINPUT: c\nOUTPUT: a * b * c\nSTOP\n"
	got := runProgram(t, source, "2\n\n3\n   4")
	if got != "24" {
		t.Errorf("got %q, want %q", got, "24")
	}
}

func TestScopeAfterExecution(t *testing.T) {
	var out strings.Builder
	engine := newEngine(t, "VAR f = 10 AS FLOAT\nVAR n AS INT\nSTART\nf = n + 3\nSTOP\n", "", &out)
	if err := engine.Execute(context.Background()); err != nil {
		t.Fatalf("execution error: %v", err)
	}

	f, ok := engine.Scope().Get("f")
	if !ok {
		t.Fatal("f is not defined")
	}
	if f.Kind() != types.KindFloat || f.AsFloat() != 3 {
		t.Errorf("f = %v (%s), want 3.0 FLOAT", f, f.Kind())
	}
	if names := engine.Scope().Names(); len(names) != 2 || names[0] != "f" || names[1] != "n" {
		t.Errorf("names = %v, want [f n]", names)
	}
}

const infiniteLoop = "START\nWHILE (\"TRUE\")\nSTART\nSTOP\nSTOP\n"

func TestStepLimit(t *testing.T) {
	program, err := syntax.Parse(infiniteLoop)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	engine := NewEngine(program, Options{MaxSteps: 100})

	err = engine.Execute(context.Background())
	var cerr *types.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *types.Error, got %v", err)
	}
	if !strings.Contains(cerr.Message, "maximum step limit of 100") {
		t.Errorf("message = %q", cerr.Message)
	}
	if engine.StepCount() != 101 {
		t.Errorf("step count = %d, want 101", engine.StepCount())
	}
}

func TestContextCancellation(t *testing.T) {
	program, err := syntax.Parse(infiniteLoop)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	engine := NewEngine(program, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := engine.Execute(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestCancel(t *testing.T) {
	program, err := syntax.Parse(infiniteLoop)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	engine := NewEngine(program, Options{})
	engine.Cancel()

	if err := engine.Execute(context.Background()); !errors.Is(err, ErrCancelled) {
		t.Errorf("got %v, want ErrCancelled", err)
	}
}

func TestOutputLimit(t *testing.T) {
	program, err := syntax.Parse("START\nOUTPUT: \"abc\"\nOUTPUT: \"def\"\nSTOP\n")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	var out strings.Builder
	engine := NewEngine(program, Options{Stdout: &out, MaxOutput: 4})

	err = engine.Execute(context.Background())
	var cerr *types.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *types.Error, got %v", err)
	}
	if cerr.Lexeme != "OUTPUT" {
		t.Errorf("lexeme = %q, want OUTPUT", cerr.Lexeme)
	}
	if out.String() != "abc" {
		t.Errorf("stdout = %q, want %q", out.String(), "abc")
	}
}
