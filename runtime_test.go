package spl

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oarkflow/log"
)

func TestSPLErrorFormatting(t *testing.T) {
	err := &SPLError{Code: ErrCodeSyntax, Message: "expected ')'", Line: 3, Column: 7}
	if got := err.Error(); got != "SYNTAX_ERROR at 3:7: expected ')'" {
		t.Fatalf("unexpected message %q", got)
	}
	cause := errors.New("disk gone")
	wrapped := &SPLError{Code: ErrCodeInput, Message: "cannot read", Cause: cause}
	if got := wrapped.Error(); got != "INPUT_VALIDATION_ERROR: cannot read: disk gone" {
		t.Fatalf("unexpected message %q", got)
	}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected Unwrap to expose the cause")
	}
	var nilErr *SPLError
	if nilErr.Error() != "" || nilErr.Unwrap() != nil {
		t.Fatalf("nil SPLError should be inert")
	}
}

func TestExecFileMissing(t *testing.T) {
	_, err := ExecFile(filepath.Join(t.TempDir(), "missing.spl"))
	var splErr *SPLError
	if !errors.As(err, &splErr) || splErr.Code != ErrCodeInput {
		t.Fatalf("expected input validation error, got %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist error, got %v", err)
	}
}

func TestExecFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.spl")
	if err := os.WriteFile(path, []byte("var who: str = \"world\"\nprint(\"hello\", who)\n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	var out bytes.Buffer
	in, err := ExecFile(path, WithOutput(&out))
	if err != nil {
		t.Fatalf("exec file failed: %v", err)
	}
	if out.String() != "hello world\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
	if v, ok := in.Lookup("who"); !ok || v.Inspect() != "world" {
		t.Fatalf("expected global who=world, got %v", v)
	}
}

func TestRuntimeConfigDefaultsApplyToNewInterpreters(t *testing.T) {
	orig := GetRuntimeConfig()
	t.Cleanup(func() { SetRuntimeConfig(orig) })
	cfg := orig
	cfg.LogExecution = true
	SetRuntimeConfig(cfg)

	in, err := New()
	if err != nil {
		t.Fatalf("new interpreter: %v", err)
	}
	if !in.config.LogExecution {
		t.Fatalf("expected process defaults to be picked up")
	}
	in, _ = New(WithRuntimeConfig(RuntimeConfig{}))
	if in.config.LogExecution {
		t.Fatalf("expected option to override process defaults")
	}
}

func TestLogExecutionAndTraceCalls(t *testing.T) {
	var logs, out bytes.Buffer
	logger := &log.Logger{Level: log.DebugLevel, Writer: &log.IOWriter{Writer: &logs}}
	_, err := Exec("func twice(n: int) {\n  return n * 2\n}\nprint(twice(2))",
		WithOutput(&out),
		WithLogger(logger),
		WithRunID("run-42"),
		WithRuntimeConfig(RuntimeConfig{LogExecution: true, TraceCalls: true}),
	)
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	text := logs.String()
	for _, want := range []string{"run-42", "run finished", "twice"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in logs:\n%s", want, text)
		}
	}

	logs.Reset()
	_, err = Exec("print(1 / 0)", WithOutput(&out), WithLogger(logger), WithRuntimeConfig(RuntimeConfig{LogExecution: true}))
	if err == nil {
		t.Fatalf("expected runtime error")
	}
	if !strings.Contains(logs.String(), "run failed") {
		t.Fatalf("expected failure to be logged:\n%s", logs.String())
	}
}

func TestOptionValidation(t *testing.T) {
	for name, opt := range map[string]Option{
		"nil output":   WithOutput(nil),
		"nil registry": WithRegistry(nil),
		"blank run id": WithRunID("  "),
	} {
		_, err := New(opt)
		var splErr *SPLError
		if !errors.As(err, &splErr) || splErr.Code != ErrCodeInput {
			t.Fatalf("%s: expected input validation error, got %v", name, err)
		}
	}
}
