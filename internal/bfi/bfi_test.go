package bfi

import (
	"bytes"
	"strings"
	"testing"
)

func run(t *testing.T, code, input string, maxSteps uint64) string {
	t.Helper()
	var out bytes.Buffer
	interp, err := New(code, strings.NewReader(input), &out)
	if err != nil {
		t.Fatalf("New(%q): %v", code, err)
	}
	if err := interp.Run(maxSteps); err != nil {
		t.Fatalf("Run(%q): %v", code, err)
	}
	return out.String()
}

func TestHelloWorld(t *testing.T) {
	// Prints 'A' (65): 5 tens and 15 ones.
	code := "+++++[>++++++++++<-]>+++++++++++++++."
	got := run(t, code, "", DefaultMaxSteps)
	if got != "A" {
		t.Fatalf("got %q, want %q", got, "A")
	}
}

func TestLoopRetestsConditionEveryIteration(t *testing.T) {
	// Move cell 0's value into cell 1, the classic idiom: this only
	// terminates if ']' retests the loop variable rather than
	// unconditionally jumping back into the body.
	code := "+++[>+<-]>."
	got := run(t, code, "", DefaultMaxSteps)
	if len(got) != 1 || got[0] != 3 {
		t.Fatalf("got %q, want a single byte with value 3", got)
	}
}

func TestClearCellShorthand(t *testing.T) {
	code := "+++++[-]."
	got := run(t, code, "", DefaultMaxSteps)
	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("got %q, want a single zero byte", got)
	}
}

func TestNegativeTapeIndices(t *testing.T) {
	code := "<+++.>"
	got := run(t, code, "", DefaultMaxSteps)
	if len(got) != 1 || got[0] != 3 {
		t.Fatalf("got %q, want a single byte with value 3", got)
	}
}

func TestReadEchoesInput(t *testing.T) {
	code := ",."
	got := run(t, code, "z", DefaultMaxSteps)
	if got != "z" {
		t.Fatalf("got %q, want %q", got, "z")
	}
}

func TestEOFOnReadIsAnError(t *testing.T) {
	var out bytes.Buffer
	interp, err := New(",.", strings.NewReader(""), &out)
	if err != nil {
		t.Fatal(err)
	}
	err = interp.Run(DefaultMaxSteps)
	if _, ok := err.(*EOFError); !ok {
		t.Fatalf("expected *EOFError, got %T (%v)", err, err)
	}
}

func TestStepLimitExceeded(t *testing.T) {
	code := "+[]" // infinite loop
	var out bytes.Buffer
	interp, err := New(code, strings.NewReader(""), &out)
	if err != nil {
		t.Fatal(err)
	}
	err = interp.Run(100)
	if err == nil {
		t.Fatal("expected a step-limit error")
	}
	if _, ok := err.(*StepLimitError); !ok {
		t.Fatalf("expected *StepLimitError, got %T (%v)", err, err)
	}
}

func TestStripComments(t *testing.T) {
	got := StripComments("++ # this is a comment\n+.")
	want := "++ \n+."
	if got != want {
		t.Fatalf("StripComments = %q, want %q", got, want)
	}
}

func TestUnmatchedBracketIsRejected(t *testing.T) {
	if _, err := New("[+", strings.NewReader(""), &bytes.Buffer{}); err == nil {
		t.Fatal("expected an error for an unmatched '['")
	}
	if _, err := New("+]", strings.NewReader(""), &bytes.Buffer{}); err == nil {
		t.Fatal("expected an error for an unmatched ']'")
	}
}
