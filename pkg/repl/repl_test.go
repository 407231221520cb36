package repl

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

type scriptedReader struct {
	lines   []string
	prompts []string
	history []string
}

func (r *scriptedReader) Prompt(prompt string) (string, error) {
	r.prompts = append(r.prompts, prompt)
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *scriptedReader) AppendHistory(item string) {
	r.history = append(r.history, item)
}

func newTestSession(t *testing.T) (*Session, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	s, err := NewSession(Config{Out: &out, Err: &errOut})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s, &out, &errOut
}

func TestBraceDelta(t *testing.T) {
	cases := map[string]int{
		"func f() {":        1,
		"}":                 -1,
		"if x { y = 1 }":    0,
		`print("{")`:        0,
		`print("\"{")`:      0,
		"while true { // }": 1,
		"  }} else {":       -1,
		"plain statement":   0,
	}
	for line, want := range cases {
		if got := BraceDelta(line); got != want {
			t.Fatalf("BraceDelta(%q) = %d, want %d", line, got, want)
		}
	}
}

func TestLoopKeepsStateAcrossInputs(t *testing.T) {
	s, out, errOut := newTestSession(t)
	reader := &scriptedReader{lines: []string{
		"var total: int = 0",
		"func add(a: int, b: int) {",
		"  return a + b",
		"}",
		"total = add(total, 40)",
		"total + 2",
		`print("done")`,
	}}
	if err := s.Loop(reader); err != nil {
		t.Fatalf("loop failed: %v", err)
	}
	if errOut.Len() != 0 {
		t.Fatalf("unexpected errors: %s", errOut.String())
	}
	if out.String() != "42\ndone\n\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
	if reader.prompts[2] != continuationPrompt || reader.prompts[3] != continuationPrompt {
		t.Fatalf("expected continuation prompts inside the function body, got %q", reader.prompts)
	}
	if len(reader.history) != 5 || reader.history[1] != "func add(a: int, b: int) {   return a + b }" {
		t.Fatalf("unexpected history %q", reader.history)
	}
}

func TestLoopRecoversFromErrors(t *testing.T) {
	s, out, errOut := newTestSession(t)
	reader := &scriptedReader{lines: []string{
		"var x: int = 1",
		"x = x / 0",
		"missing(1)",
		"var = 3",
		"x",
	}}
	if err := s.Loop(reader); err != nil {
		t.Fatalf("loop failed: %v", err)
	}
	errs := errOut.String()
	for _, want := range []string{"RUNTIME_ERROR", "NAME_ERROR", "SYNTAX_ERROR"} {
		if !strings.Contains(errs, want) {
			t.Fatalf("expected %s in %q", want, errs)
		}
	}
	if !strings.HasPrefix(out.String(), "1\n") {
		t.Fatalf("expected x to survive the failed inputs, got %q", out.String())
	}
}

func TestCommands(t *testing.T) {
	s, out, errOut := newTestSession(t)
	reader := &scriptedReader{lines: []string{
		"var name: str = \"spl\"",
		"func id(v: int) {",
		"return v",
		"}",
		":functions",
		":globals",
		":bogus",
		":quit",
		"print(\"unreachable\")",
	}}
	if err := s.Loop(reader); err != nil {
		t.Fatalf("loop failed: %v", err)
	}
	if out.String() != "id\nname: str = spl\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
	if !strings.Contains(errOut.String(), "unknown command") {
		t.Fatalf("expected unknown command notice, got %q", errOut.String())
	}
	if len(reader.lines) != 1 {
		t.Fatalf("expected :quit to stop reading, %d lines left", len(reader.lines))
	}
}

func TestEvalDoesNotEchoUnit(t *testing.T) {
	s, out, _ := newTestSession(t)
	if err := s.Eval("print(1)\n[1, [2]]"); err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if out.String() != "1\n[1, [2]]\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
}
