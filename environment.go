package spl

// Environment is a stack of scope frames. Frame 0 is the global scope and
// lives as long as the Environment. Each active function call records the
// index of its first frame; lookups inside a call see only the call's own
// frames and the global frame.
type Environment struct {
	frames []map[string]Value
	bases  []int
}

func NewEnvironment() *Environment {
	return &Environment{frames: []map[string]Value{make(map[string]Value)}}
}

func (e *Environment) Push() {
	e.frames = append(e.frames, make(map[string]Value))
}

func (e *Environment) Pop() {
	if len(e.frames) <= 1 {
		return
	}
	e.frames[len(e.frames)-1] = nil
	e.frames = e.frames[:len(e.frames)-1]
}

// EnterCall pushes a frame holding only the given bindings and starts a new
// call boundary. It must be paired with LeaveCall.
func (e *Environment) EnterCall(params map[string]Value) {
	e.bases = append(e.bases, len(e.frames))
	e.frames = append(e.frames, params)
}

func (e *Environment) LeaveCall() {
	if len(e.bases) == 0 {
		return
	}
	base := e.bases[len(e.bases)-1]
	e.bases = e.bases[:len(e.bases)-1]
	for i := base; i < len(e.frames); i++ {
		e.frames[i] = nil
	}
	e.frames = e.frames[:base]
}

// Depth is the number of live frames, including the global one.
func (e *Environment) Depth() int {
	return len(e.frames)
}

// Reset drops every frame except the global one.
func (e *Environment) Reset() {
	for i := 1; i < len(e.frames); i++ {
		e.frames[i] = nil
	}
	e.frames = e.frames[:1]
	e.bases = e.bases[:0]
}

// Define binds name in the innermost frame, replacing an existing binding
// in that frame.
func (e *Environment) Define(name string, val Value) {
	e.frames[len(e.frames)-1][name] = val
}

func (e *Environment) Get(name string) (Value, bool) {
	if frame, ok := e.find(name); ok {
		return e.frames[frame][name], true
	}
	return nil, false
}

// Assign rebinds the nearest visible binding of name.
func (e *Environment) Assign(name string, val Value) bool {
	frame, ok := e.find(name)
	if !ok {
		return false
	}
	e.frames[frame][name] = val
	return true
}

// Globals returns a copy of the global frame.
func (e *Environment) Globals() map[string]Value {
	out := make(map[string]Value, len(e.frames[0]))
	for k, v := range e.frames[0] {
		out[k] = v
	}
	return out
}

func (e *Environment) find(name string) (int, bool) {
	base := 0
	if len(e.bases) > 0 {
		base = e.bases[len(e.bases)-1]
	}
	for i := len(e.frames) - 1; i >= base; i-- {
		if _, ok := e.frames[i][name]; ok {
			return i, true
		}
	}
	if base > 0 {
		if _, ok := e.frames[0][name]; ok {
			return 0, true
		}
	}
	return -1, false
}
