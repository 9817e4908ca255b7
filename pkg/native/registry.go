// Package native implements the bridge between bytecode-level native method
// calls and Go: a registry of closures keyed by the same (class, method,
// descriptor) triple the class file format itself uses to identify a
// method, so dispatch is a single map lookup rather than a big switch
// threaded through the interpreter.
package native

import (
	"fmt"
	"io"
	"strings"

	"govm/pkg/object"
)

// Host is the slice of interpreter functionality a native implementation
// may need: heap allocation and the configured output stream. It is
// defined here, not imported from pkg/interp, so pkg/interp can depend on
// pkg/native without a cycle; *interp.VM satisfies it.
type Host interface {
	AllocateString(s string) (*object.Object, error)
	AllocateArray(elementType string, length int) (*object.Object, error)
	AllocateClass(className string, fieldDescriptors []string) (*object.Object, error)
	Stdout() io.Writer
	InvokeVirtual(receiver *object.Object, name, descriptor string) (object.Value, error)
}

// Func is one native method's implementation: args holds one object.Value
// per declared parameter, with the receiver prepended as args[0] for
// instance methods (the same convention invoke() uses for bytecode-backed
// methods).
type Func func(host Host, args []object.Value) (object.Value, error)

// Registry maps (class, method, descriptor) to its native implementation.
// It also holds the side tables a few natives need for state that doesn't
// fit in an object.Object's fixed Fields slice, keyed by instance identity.
type Registry struct {
	host     Host
	funcs    map[string]Func
	maps     map[*object.Object]*NativeHashMap
	builders map[*object.Object]*strings.Builder
}

// NewRegistry builds a registry wired to host and pre-populated with the
// platform natives this interpreter supports.
func NewRegistry(host Host) *Registry {
	r := &Registry{
		host:     host,
		funcs:    make(map[string]Func),
		maps:     make(map[*object.Object]*NativeHashMap),
		builders: make(map[*object.Object]*strings.Builder),
	}
	registerPlatform(r)
	return r
}

// Register installs (or overwrites) the implementation for one native
// method. Exported so embedding programs can add natives beyond the
// built-in platform set without forking this package.
func (r *Registry) Register(class, method, descriptor string, fn Func) {
	r.funcs[key(class, method, descriptor)] = fn
}

// Call dispatches to the registered implementation, or reports an
// UnsatisfiedLinkError-style failure if none exists.
func (r *Registry) Call(class, method, descriptor string, args []object.Value) (object.Value, error) {
	fn, ok := r.funcs[key(class, method, descriptor)]
	if !ok {
		return object.Value{}, fmt.Errorf("UnsatisfiedLinkError: %s.%s%s", class, method, descriptor)
	}
	return fn(r.host, args)
}

func key(class, method, descriptor string) string {
	return class + "." + method + ":" + descriptor
}
