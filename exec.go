package spl

import (
	"os"
)

// Exec scans, parses and runs script on a fresh interpreter. The
// interpreter is returned, even after a runtime error, so callers can
// inspect the global scope.
func Exec(script string, opts ...Option) (*Interpreter, error) {
	program, err := Parse(script)
	if err != nil {
		return nil, err
	}
	in, err := New(opts...)
	if err != nil {
		return nil, err
	}
	return in, in.Run(program)
}

// ExecFile runs the script stored in filename.
func ExecFile(filename string, opts ...Option) (*Interpreter, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, &SPLError{Code: ErrCodeInput, Message: "cannot read script " + filename, Cause: err}
	}
	return Exec(string(content), opts...)
}
