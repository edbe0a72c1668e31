package funcs

import (
	"fmt"

	"nbfc/internal/lexer"
	"nbfc/internal/parser"
)

// standardLibrarySource defines every built-in function available to NBF
// programs before user code is registered. nprint prints a non-negative
// integer in decimal with no leading zeroes, digit by digit, without ever
// materialising more than a handful of temporaries - the same algorithm the
// reference implementation special-cased for print(), generalised here into
// an ordinary function so print(x) can simply dispatch to it.
const standardLibrarySource = `
fun nprint(x) {
	var value = x;
	var old_power = 1;
	while (value or old_power) {
		var digit = value;
		var power = 1;
		while (digit > 9) {
			digit = digit / 10;
			power = power * 10;
		}
		if (power < old_power) {
			putc('0');
			old_power = old_power / 10;
		} else {
			putc(digit + '0');
			value = value - digit * power;
			old_power = power / 10;
		}
	}
}

fun print(x) {
	nprint(x);
}
`

// RegisterStandardLibrary parses and registers the built-in library into t.
// Must be called before any user function is defined, so user code cannot
// shadow a built-in name.
func RegisterStandardLibrary(t *Table) error {
	l := lexer.New(standardLibrarySource)
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return fmt.Errorf("funcs: internal error parsing standard library: %v", errs)
	}

	for _, fn := range program.Functions {
		if err := t.defineBuiltin(&Function{Name: fn.Name, Parameters: fn.Parameters, Body: fn.Body}); err != nil {
			return fmt.Errorf("funcs: internal error registering standard library: %w", err)
		}
	}
	return nil
}
