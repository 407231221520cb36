package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oarkflow/spl"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	orig := spl.GetRuntimeConfig()
	t.Cleanup(func() { spl.SetRuntimeConfig(orig) })
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"spl"}, args...))
	return out.String(), err
}

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.spl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestRunCommand(t *testing.T) {
	path := writeScript(t, "func fib(n: int) {\n  if n < 2 {\n    return n\n  }\n  return fib(n - 1) + fib(n - 2)\n}\nprint(fib(10))\n")
	out, err := runCLI(t, "run", path)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "55\n" {
		t.Fatalf("unexpected output %q", out)
	}
	out, err = runCLI(t, path)
	if err != nil || out != "55\n" {
		t.Fatalf("bare script argument should run it, got %q, %v", out, err)
	}
}

func TestRunCommandErrors(t *testing.T) {
	_, err := runCLI(t, "run", "-e", "print(1)\nprint(nope)")
	var splErr *spl.SPLError
	if !errors.As(err, &splErr) || splErr.Code != spl.ErrCodeName || splErr.Line != 2 {
		t.Fatalf("expected a positioned name error, got %v", err)
	}
	_, err = runCLI(t, "run", filepath.Join(t.TempDir(), "missing.spl"))
	if !errors.As(err, &splErr) || splErr.Code != spl.ErrCodeInput {
		t.Fatalf("expected input validation error, got %v", err)
	}
	_, err = runCLI(t, "run")
	if !errors.As(err, &splErr) || splErr.Code != spl.ErrCodeInput {
		t.Fatalf("expected missing script error, got %v", err)
	}
}

func TestTokensCommand(t *testing.T) {
	out, err := runCLI(t, "tokens", "-e", "x = 1")
	if err != nil {
		t.Fatalf("tokens failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 || lines[0] != "1:1\tIDENT\t\"x\"" || !strings.Contains(lines[3], "EOF") {
		t.Fatalf("unexpected token listing %q", out)
	}
	out, err = runCLI(t, "tokens", "--json", "-e", "var")
	if err != nil {
		t.Fatalf("tokens --json failed: %v", err)
	}
	if !strings.Contains(out, `"type":"VAR"`) {
		t.Fatalf("expected JSON tokens, got %q", out)
	}
}

func TestParseCommand(t *testing.T) {
	out, err := runCLI(t, "parse", "-e", "print(1 + 2 * 3)")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !strings.Contains(out, "(1 + (2 * 3))") {
		t.Fatalf("expected precedence in rendered tree, got %q", out)
	}
	_, err = runCLI(t, "parse", "-e", "var x int = 1")
	var splErr *spl.SPLError
	if !errors.As(err, &splErr) || splErr.Code != spl.ErrCodeSyntax {
		t.Fatalf("expected syntax error, got %v", err)
	}
}

func TestConfigFlag(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "spl.yaml")
	if err := os.WriteFile(cfgPath, []byte("log:\n  level: bogus\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := runCLI(t, "--config", cfgPath, "builtins"); err == nil {
		t.Fatalf("expected invalid config to fail")
	}
	out, err := runCLI(t, "builtins")
	if err != nil {
		t.Fatalf("builtins failed: %v", err)
	}
	if !strings.Contains(out, "print\n") {
		t.Fatalf("expected print in builtin listing, got %q", out)
	}
}
