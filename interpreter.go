package spl

import (
	"io"
	"os"
	"sort"
	"time"

	"github.com/oarkflow/log"
	"github.com/oarkflow/xid"
)

// Interpreter executes programs against one scope stack and one table of
// user-defined functions. It is not safe for concurrent use; create one per
// goroutine.
type Interpreter struct {
	env       *Environment
	functions map[string]*Function
	registry  *Registry
	out       io.Writer
	logger    *log.Logger
	config    RuntimeConfig
	runID     string
}

func New(opts ...Option) (*Interpreter, error) {
	in := &Interpreter{
		env:       NewEnvironment(),
		functions: make(map[string]*Function),
		registry:  DefaultRegistry(),
		out:       os.Stdout,
		logger:    defaultLogger(),
		config:    GetRuntimeConfig(),
		runID:     xid.New().String(),
	}
	for _, opt := range opts {
		if err := opt(in); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func defaultLogger() *log.Logger {
	logger := log.DefaultLogger
	logger.Level = log.WarnLevel
	return &logger
}

func (in *Interpreter) RunID() string {
	return in.runID
}

// Run registers the program's functions and executes its top-level
// statements in order. A top-level return is evaluated and ignored.
func (in *Interpreter) Run(program *Program) (err error) {
	start := time.Now()
	in.logger.Debug().
		Str("run_id", in.runID).
		Int("functions", len(program.Functions)).
		Int("statements", len(program.Statements)).
		Msg("run started")
	defer func() { in.logRun(start, err) }()

	in.DefineFunctions(program.Functions)
	for _, stmt := range program.Statements {
		if _, err := in.Execute(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) logRun(start time.Time, err error) {
	elapsed := time.Since(start)
	if err != nil {
		if in.config.LogExecution {
			in.logger.Error().Str("run_id", in.runID).Dur("elapsed", elapsed).Err(err).Msg("run failed")
		} else {
			in.logger.Debug().Str("run_id", in.runID).Dur("elapsed", elapsed).Err(err).Msg("run failed")
		}
		return
	}
	if in.config.LogExecution {
		in.logger.Info().Str("run_id", in.runID).Dur("elapsed", elapsed).Msg("run finished")
		return
	}
	in.logger.Debug().Str("run_id", in.runID).Dur("elapsed", elapsed).Msg("run finished")
}

// DefineFunctions adds or replaces user-defined functions by name.
func (in *Interpreter) DefineFunctions(fns []*Function) {
	for _, fn := range fns {
		in.functions[fn.Name] = fn
	}
}

// Functions lists the names of the user-defined functions, sorted.
func (in *Interpreter) Functions() []string {
	names := make([]string, 0, len(in.functions))
	for name := range in.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs one top-level statement against the global scope. The
// returned value is non-nil only for a return statement. After an error
// every frame but the global one is dropped, so the interpreter stays usable.
func (in *Interpreter) Execute(stmt Statement) (Value, error) {
	ret, err := in.execStatement(stmt)
	if err != nil {
		in.env.Reset()
		return nil, err
	}
	return ret, nil
}

// Evaluate computes a single expression in the global scope.
func (in *Interpreter) Evaluate(expr Expression) (Value, error) {
	v, err := in.evalExpression(expr)
	if err != nil {
		in.env.Reset()
		return nil, err
	}
	return v, nil
}

// Lookup reads a variable visible from the current scope.
func (in *Interpreter) Lookup(name string) (Value, bool) {
	return in.env.Get(name)
}

// Globals returns a snapshot of the global scope.
func (in *Interpreter) Globals() map[string]Value {
	return in.env.Globals()
}
