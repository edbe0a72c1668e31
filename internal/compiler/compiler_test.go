package compiler

import (
	"bytes"
	"strings"
	"testing"

	"nbfc/internal/bfi"
	"nbfc/internal/lexer"
	"nbfc/internal/parser"
)

// compileAndRun lexes, parses, compiles, and executes source through the
// interpreter package, returning stdout. It adds no main of its own: only
// the parser wraps bare top-level statements into one, and a source with
// neither fails to compile.
func compileAndRun(t *testing.T, source string) string {
	t.Helper()

	l := lexer.New(source)
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse errors for %q: %v", source, errs)
	}

	out, err := Compile(program)
	if err != nil {
		t.Fatalf("Compile(%q) failed: %v", source, err)
	}

	var stdout bytes.Buffer
	interp, err := bfi.New(out, strings.NewReader(""), &stdout)
	if err != nil {
		t.Fatalf("bfi.New failed on compiled output of %q: %v\n--- BF ---\n%s", source, err, out)
	}
	if err := interp.Run(50_000_000); err != nil {
		t.Fatalf("running compiled output of %q failed: %v\n--- BF ---\n%s", source, err, out)
	}
	return stdout.String()
}

func TestEndToEnd(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "putc literals",
			source: `fun main() { putc('A'); putc('\n'); }`,
			want:   "A\n",
		},
		{
			name:   "print and multiply",
			source: `fun main() { var x = 3; var y = 4; print(x*y); putc('\n'); }`,
			want:   "12\n",
		},
		{
			name:   "while counting",
			source: `fun main() { var i = 0; while (i < 5) { putc('0' + i); i = i + 1; } putc('\n'); }`,
			want:   "01234\n",
		},
		{
			name:   "recursion",
			source: `fun f(n) { if (n > 0) { putc('.'); f(n-1); } } fun main() { f(5); putc('\n'); }`,
			want:   ".....\n",
		},
		{
			name: "fibonacci",
			source: `fun main() {
				var pre = 0; var fib = 1;
				while (fib < 100) {
					print(fib); putc(' ');
					var t = fib;
					fib = fib + pre;
					pre = t;
				}
				putc('\n');
			}`,
			want: "1 1 2 3 5 8 13 21 34 55 89 \n",
		},
		{
			name:   "array string walk",
			source: `fun main() { var s[6] = "Hello"; var i = 0; while (s[i]) { putc(s[i]); i = i + 1; } putc('\n'); }`,
			want:   "Hello\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compileAndRun(t, tt.source)
			if got != tt.want {
				t.Errorf("stdout = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMainMissingIsError(t *testing.T) {
	l := lexer.New(`fun helper() { putc('x'); }`)
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	if _, err := Compile(program); err == nil {
		t.Fatal("expected an error for a program with no zero-argument main")
	}
}

func TestRedefiningPrintIsRejected(t *testing.T) {
	l := lexer.New(`fun print(x) { putc(x); } fun main() { print(1); }`)
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	if _, err := Compile(program); err == nil {
		t.Fatal("expected an error when a user function redefines print")
	}
}
