package spl

import (
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/oarkflow/log"
)

// CallContext is handed to builtins on every call.
type CallContext struct {
	Name   string
	Out    io.Writer
	Logger *log.Logger
}

type BuiltinHandler func(ctx *CallContext, args []Value) (Value, error)

// Registry maps builtin names to handlers. It is the only structure shared
// between interpreters and is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	builtins map[string]BuiltinHandler
	opts     FunctionRegistryOptions
}

type FunctionRegistryOptions struct {
	AllowOverride bool
	Frozen        bool
}

var (
	functionRegistryInitOnce sync.Once
	functionRegistry         = &Registry{
		builtins: make(map[string]BuiltinHandler),
		opts: FunctionRegistryOptions{
			AllowOverride: false,
			Frozen:        false,
		},
	}
)

// NewRegistry returns a registry preloaded with the standard builtins.
func NewRegistry(opts FunctionRegistryOptions) *Registry {
	r := &Registry{builtins: make(map[string]BuiltinHandler)}
	registerDefaultBuiltins(r)
	r.opts = opts
	return r
}

// DefaultRegistry is the registry used by interpreters built without
// WithRegistry.
func DefaultRegistry() *Registry {
	ensureFunctionRegistryInitialized()
	return functionRegistry
}

func RegisterBuiltin(name string, handler BuiltinHandler) {
	ensureFunctionRegistryInitialized()
	_ = functionRegistry.register(name, handler, false)
}

func RegisterBuiltinE(name string, handler BuiltinHandler) error {
	ensureFunctionRegistryInitialized()
	return functionRegistry.register(name, handler, false)
}

func UnregisterBuiltin(name string) error {
	ensureFunctionRegistryInitialized()
	return functionRegistry.Unregister(name)
}

func LookupBuiltin(name string) (BuiltinHandler, bool) {
	ensureFunctionRegistryInitialized()
	return functionRegistry.Lookup(name)
}

func SetFunctionRegistryOptions(opts FunctionRegistryOptions) {
	ensureFunctionRegistryInitialized()
	functionRegistry.SetOptions(opts)
}

func GetFunctionRegistryOptions() FunctionRegistryOptions {
	ensureFunctionRegistryInitialized()
	return functionRegistry.Options()
}

func FreezeFunctionRegistry() {
	ensureFunctionRegistryInitialized()
	functionRegistry.mu.Lock()
	functionRegistry.opts.Frozen = true
	functionRegistry.mu.Unlock()
}

func UnfreezeFunctionRegistry() {
	ensureFunctionRegistryInitialized()
	functionRegistry.mu.Lock()
	functionRegistry.opts.Frozen = false
	functionRegistry.mu.Unlock()
}

func ensureFunctionRegistryInitialized() {
	functionRegistryInitOnce.Do(func() {
		registerDefaultBuiltins(functionRegistry)
	})
}

func (r *Registry) Register(name string, handler BuiltinHandler) error {
	return r.register(name, handler, false)
}

func (r *Registry) register(name string, handler BuiltinHandler, internal bool) error {
	n := strings.TrimSpace(name)
	if n == "" || handler == nil {
		return &SPLError{Code: ErrCodeRegistry, Message: "invalid builtin registration"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opts.Frozen && !internal {
		return &SPLError{Code: ErrCodeRegistry, Message: "function registry is frozen"}
	}
	if _, exists := r.builtins[n]; exists && !r.opts.AllowOverride && !internal {
		return &SPLError{Code: ErrCodeRegistry, Message: "builtin already exists: " + n, Token: n}
	}
	r.builtins[n] = handler
	return nil
}

func (r *Registry) Unregister(name string) error {
	n := strings.TrimSpace(name)
	if n == "" {
		return &SPLError{Code: ErrCodeRegistry, Message: "invalid builtin name"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opts.Frozen {
		return &SPLError{Code: ErrCodeRegistry, Message: "function registry is frozen"}
	}
	delete(r.builtins, n)
	return nil
}

func (r *Registry) Lookup(name string) (BuiltinHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.builtins[name]
	return handler, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.builtins))
	for name := range r.builtins {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (r *Registry) SetOptions(opts FunctionRegistryOptions) {
	r.mu.Lock()
	r.opts = opts
	r.mu.Unlock()
}

func (r *Registry) Options() FunctionRegistryOptions {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.opts
}

// Call runs the named builtin. ok is false when the name is not registered,
// in which case the caller falls back to user-defined functions.
func (r *Registry) Call(ctx *CallContext, name string, args []Value) (result Value, ok bool, err error) {
	handler, ok := r.Lookup(name)
	if !ok {
		return nil, false, nil
	}
	result, err = handler(ctx, args)
	if err != nil {
		return nil, true, err
	}
	if result == nil {
		result = UnitValue
	}
	return result, true, nil
}
