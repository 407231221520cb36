package spl

import (
	"fmt"
	"strings"
	"sync"
)

type RuntimeConfig struct {
	// LogExecution logs every run at info level and failures at error level.
	LogExecution bool
	// TraceCalls debug-logs each user-defined function call.
	TraceCalls bool
}

var (
	runtimeConfigMu sync.RWMutex
	runtimeConfig   = RuntimeConfig{
		LogExecution: false,
		TraceCalls:   false,
	}
)

func SetRuntimeConfig(cfg RuntimeConfig) {
	runtimeConfigMu.Lock()
	defer runtimeConfigMu.Unlock()
	runtimeConfig = cfg
}

func GetRuntimeConfig() RuntimeConfig {
	runtimeConfigMu.RLock()
	defer runtimeConfigMu.RUnlock()
	return runtimeConfig
}

type ErrorCode string

const (
	ErrCodeLexical  ErrorCode = "LEXICAL_ERROR"
	ErrCodeSyntax   ErrorCode = "SYNTAX_ERROR"
	ErrCodeType     ErrorCode = "TYPE_ERROR"
	ErrCodeName     ErrorCode = "NAME_ERROR"
	ErrCodeRuntime  ErrorCode = "RUNTIME_ERROR"
	ErrCodeInput    ErrorCode = "INPUT_VALIDATION_ERROR"
	ErrCodeRegistry ErrorCode = "REGISTRY_ERROR"
)

// SPLError is the single error type produced by scanning, parsing and
// evaluation. Line and Column are zero when no source position is known.
type SPLError struct {
	Code    ErrorCode
	Message string
	Line    int
	Column  int
	Token   string
	Cause   error
}

func (e *SPLError) Error() string {
	if e == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(string(e.Code))
	if e.Line > 0 {
		fmt.Fprintf(&sb, " at %d:%d", e.Line, e.Column)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	return sb.String()
}

func (e *SPLError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func lexicalError(line, column int, format string, args ...any) *SPLError {
	return &SPLError{Code: ErrCodeLexical, Message: fmt.Sprintf(format, args...), Line: line, Column: column}
}

func syntaxError(tok Token, format string, args ...any) *SPLError {
	return &SPLError{
		Code:    ErrCodeSyntax,
		Message: fmt.Sprintf(format, args...),
		Line:    tok.Line,
		Column:  tok.Column,
		Token:   tok.Literal,
	}
}

func typeError(format string, args ...any) *SPLError {
	return &SPLError{Code: ErrCodeType, Message: fmt.Sprintf(format, args...)}
}

func nameError(name, format string, args ...any) *SPLError {
	return &SPLError{Code: ErrCodeName, Message: fmt.Sprintf(format, args...), Token: name}
}

func runtimeError(format string, args ...any) *SPLError {
	return &SPLError{Code: ErrCodeRuntime, Message: fmt.Sprintf(format, args...)}
}
