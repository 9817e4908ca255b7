// Package interp implements the stack-of-frames bytecode interpreter: frame
// construction and argument placement, the dispatch loop, method resolution
// for the four invoke forms, and exception handler search.
package interp

import (
	"fmt"

	"govm/pkg/classfile"
	"govm/pkg/loader"
	"govm/pkg/object"
)

// Frame is one method activation: its local variable slots, an operand
// stack with an explicit stack pointer (mirroring the teacher's SP-indexed
// design), and a cursor into the owning method's decoded instruction
// sequence rather than a raw byte program counter, since classfile already
// decodes bytecode once at load time.
type Frame struct {
	Locals  []object.Value
	Operand []object.Value
	SP      int

	Class  *loader.LoadedClass
	Method *classfile.MethodInfo
	Code   *classfile.CodeAttribute

	// IP indexes Code.Instructions; it is not a byte address. Branch
	// targets and exception ranges are byte addresses and must be
	// converted via Code.IndexForAddress before being assigned here.
	IP int
}

// NewFrame allocates a fresh frame sized per the method's Code attribute.
func NewFrame(class *loader.LoadedClass, method *classfile.MethodInfo) *Frame {
	code := method.Code
	return &Frame{
		Locals:  make([]object.Value, code.MaxLocals),
		Operand: make([]object.Value, code.MaxStack),
		Class:   class,
		Method:  method,
		Code:    code,
	}
}

func (f *Frame) Push(v object.Value) {
	if f.SP >= len(f.Operand) {
		panic(fmt.Sprintf("%s.%s: operand stack overflow (max %d)", f.Class.Name, f.Method.Name, len(f.Operand)))
	}
	f.Operand[f.SP] = v
	f.SP++
}

func (f *Frame) Pop() object.Value {
	if f.SP <= 0 {
		panic(fmt.Sprintf("%s.%s: operand stack underflow", f.Class.Name, f.Method.Name))
	}
	f.SP--
	return f.Operand[f.SP]
}

func (f *Frame) PopN(n int) []object.Value {
	out := make([]object.Value, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = f.Pop()
	}
	return out
}

// jumpTo moves the frame's instruction cursor to the instruction beginning
// at the given byte address (as found in a branch offset or exception
// handler entry).
func (f *Frame) jumpTo(addr uint32) error {
	idx, ok := f.Code.IndexForAddress(addr)
	if !ok {
		return fmt.Errorf("%s.%s: no instruction at address %d", f.Class.Name, f.Method.Name, addr)
	}
	f.IP = idx
	return nil
}

// currentAddress returns the byte address of the instruction this frame is
// currently positioned at, used for exception handler range tests and error
// messages.
func (f *Frame) currentAddress() uint32 {
	return f.Code.Instructions[f.IP].Address
}
