package spl

import (
	"io"
	"strings"

	"github.com/oarkflow/log"
)

type Option func(*Interpreter) error

// WithOutput sets where print writes. The default is os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(in *Interpreter) error {
		if w == nil {
			return &SPLError{Code: ErrCodeInput, Message: "output writer must not be nil"}
		}
		in.out = w
		return nil
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(in *Interpreter) error {
		if logger != nil {
			in.logger = logger
		}
		return nil
	}
}

// WithRegistry replaces the process-wide builtin registry for one interpreter.
func WithRegistry(r *Registry) Option {
	return func(in *Interpreter) error {
		if r == nil {
			return &SPLError{Code: ErrCodeInput, Message: "registry must not be nil"}
		}
		in.registry = r
		return nil
	}
}

func WithRuntimeConfig(cfg RuntimeConfig) Option {
	return func(in *Interpreter) error {
		in.config = cfg
		return nil
	}
}

func WithRunID(id string) Option {
	return func(in *Interpreter) error {
		if strings.TrimSpace(id) == "" {
			return &SPLError{Code: ErrCodeInput, Message: "run id must not be empty"}
		}
		in.runID = id
		return nil
	}
}

// WithGlobals binds Go values in the global scope before the program runs.
// Supported kinds are those accepted by FromNative.
func WithGlobals(data map[string]any) Option {
	return func(in *Interpreter) error {
		for name, raw := range data {
			v, ok := FromNative(raw)
			if !ok {
				return &SPLError{Code: ErrCodeInput, Message: "unsupported global value for " + name, Token: name}
			}
			in.env.Define(name, copyValue(v))
		}
		return nil
	}
}
