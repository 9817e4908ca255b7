package interp

import (
	"fmt"
	"io"
	"os"

	"govm/pkg/classfile"
	"govm/pkg/heap"
	"govm/pkg/loader"
	"govm/pkg/native"
	"govm/pkg/object"
	"govm/pkg/observe"
)

// maxFrameDepth bounds recursion the same way the teacher's VM does, turning
// runaway recursive bytecode into a reported error instead of a Go stack
// overflow.
const maxFrameDepth = 2048

// VM ties together a class loader, a managed heap and the native bridge,
// and drives method execution. It implements loader.Linker so the loader
// can call back into it to run <clinit>, and heap.Root so the heap's
// collector can walk every reference this call stack currently holds.
type VM struct {
	loader *loader.Loader
	heap   *heap.Heap
	native *native.Registry
	out    io.Writer

	frames []*Frame

	// lambdas maps a LambdaMetafactory proxy object to the concrete method
	// it forwards interface calls to; see handleLambdaMetafactory.
	lambdas map[*object.Object]*lambdaTarget

	// observer is nil unless the caller opts into the observation hook; a
	// nil *observe.Hook is valid and every Emit* call on it is a no-op.
	observer *observe.Hook
}

// SetObserver installs the observation hook this VM reports frame,
// instruction and heap state to. Passing nil disables observation.
func (vm *VM) SetObserver(h *observe.Hook) { vm.observer = h }

// New builds a VM over an already-constructed loader and heap, and installs
// itself as the loader's <clinit> linker. It builds its own native registry
// with itself as the registry's Host, so natives can allocate heap objects
// and write to the configured stdout.
func New(ld *loader.Loader, h *heap.Heap) *VM {
	vm := &VM{loader: ld, heap: h, out: os.Stdout}
	vm.native = native.NewRegistry(vm)
	ld.SetLinker(vm)
	return vm
}

// SetStdout redirects the stream java/io/PrintStream natives write to,
// mainly so tests can capture program output.
func (vm *VM) SetStdout(w io.Writer) { vm.out = w }

// Stdout implements native.Host.
func (vm *VM) Stdout() io.Writer { return vm.out }

// AllocateString implements native.Host.
func (vm *VM) AllocateString(s string) (*object.Object, error) { return vm.heap.AllocateString(s) }

// AllocateArray implements native.Host.
func (vm *VM) AllocateArray(elementType string, length int) (*object.Object, error) {
	return vm.heap.AllocateArray(elementType, length)
}

// AllocateClass implements native.Host.
func (vm *VM) AllocateClass(className string, fieldDescriptors []string) (*object.Object, error) {
	return vm.heap.AllocateClass(className, fieldDescriptors)
}

// InvokeVirtual implements native.Host, letting a native method call a
// no-argument virtual method on receiver through the interpreter. None of
// the built-in natives in pkg/native call it.
func (vm *VM) InvokeVirtual(receiver *object.Object, name, descriptor string) (object.Value, error) {
	class, err := vm.loader.Load(receiver.ClassName)
	if err != nil {
		return object.Value{}, err
	}
	owner, method := class.ResolveVirtual(name, descriptor)
	if method == nil {
		return object.Value{}, fmt.Errorf("no such method %s%s on %s", name, descriptor, receiver.ClassName)
	}
	return vm.invoke(owner, method, []object.Value{{Tag: object.TagRef, Ref: receiver}})
}

// Roots implements heap.Root: every reference currently live in any frame's
// locals or operand stack, across the whole call chain, plus every
// reference held in a loaded class's static storage.
func (vm *VM) Roots() []*object.Object {
	var out []*object.Object
	for _, f := range vm.frames {
		for _, v := range f.Locals {
			if v.Tag == object.TagRef && v.Ref != nil {
				out = append(out, v.Ref)
			}
		}
		for i := 0; i < f.SP; i++ {
			if f.Operand[i].Tag == object.TagRef && f.Operand[i].Ref != nil {
				out = append(out, f.Operand[i].Ref)
			}
		}
	}
	out = append(out, vm.loader.StaticRoots()...)
	return out
}

// RunClinit implements loader.Linker.
func (vm *VM) RunClinit(class *loader.LoadedClass) error {
	method := class.FindMethod("<clinit>", "()V")
	if method == nil {
		return nil
	}
	_, err := vm.invoke(class, method, nil)
	return err
}

// RunMain resolves and executes mainClassName's public static void
// main(String[]) method, passing an empty argument array.
func (vm *VM) RunMain(mainClassName string) error {
	class, err := vm.loader.Load(mainClassName)
	if err != nil {
		return err
	}
	if err := vm.loader.EnsureInitialized(class); err != nil {
		return err
	}
	method := class.FindMethod("main", "([Ljava/lang/String;)V")
	if method == nil {
		return fmt.Errorf("%s: no main([Ljava/lang/String;)V method", mainClassName)
	}
	argsArray, err := vm.heap.AllocateArray("Ljava/lang/String;", 0)
	if err != nil {
		return err
	}
	_, err = vm.invoke(class, method, []object.Value{{Tag: object.TagRef, Ref: argsArray}})
	return err
}

// invoke executes method on class with args already placed as the initial
// locals (receiver first, for instance methods). It is the single entry
// point every invoke* instruction and <clinit>/bootstrap call goes through.
func (vm *VM) invoke(class *loader.LoadedClass, method *classfile.MethodInfo, args []object.Value) (object.Value, error) {
	if method.AccessFlags&classfile.AccNative != 0 {
		return vm.native.Call(class.Name, method.Name, method.Descriptor, args)
	}
	if method.AccessFlags&classfile.AccAbstract != 0 {
		return object.Value{}, fmt.Errorf("AbstractMethodError: %s.%s%s", class.Name, method.Name, method.Descriptor)
	}
	if method.Code == nil {
		return object.Value{}, fmt.Errorf("%s.%s%s: no Code attribute", class.Name, method.Name, method.Descriptor)
	}

	if len(vm.frames) >= maxFrameDepth {
		return object.Value{}, fmt.Errorf("stack overflow: frame depth exceeded %d", maxFrameDepth)
	}

	frame := NewFrame(class, method)
	if err := placeMethodArgs(frame, method, args); err != nil {
		return object.Value{}, err
	}

	vm.frames = append(vm.frames, frame)
	defer func() { vm.frames = vm.frames[:len(vm.frames)-1] }()

	vm.observer.EmitFrame(class.Name+"."+method.Name+method.Descriptor, frame.IP, frame.Locals, nil)
	return vm.run(frame)
}

// run drives the dispatch loop for frame until it returns a value, throws an
// exception that propagates past this frame, or falls off the end of a void
// method.
func (vm *VM) run(frame *Frame) (object.Value, error) {
	for frame.IP < len(frame.Code.Instructions) {
		instr := frame.Code.Instructions[frame.IP]
		vm.observer.EmitInstruction(instr.Op.Mnemonic, instr.Address)
		retVal, returned, err := vm.step(frame, instr)
		if vm.observer.SnapOnWrite() {
			vm.observer.EmitHeapSnapshot(0, vm.heap.LiveObjects(0))
			vm.observer.EmitHeapSnapshot(1, vm.heap.LiveObjects(1))
		}
		if err != nil {
			javaExc, ok := err.(*JavaException)
			if !ok {
				return object.Value{}, fmt.Errorf("%s.%s%s @%d: %w", frame.Class.Name, frame.Method.Name, frame.Method.Descriptor, instr.Address, err)
			}
			handler, herr := vm.findHandler(frame.Class, frame.Code, instr.Address, javaExc)
			if herr != nil {
				return object.Value{}, herr
			}
			if handler == nil {
				return object.Value{}, javaExc
			}
			frame.SP = 0
			frame.Push(object.Value{Tag: object.TagRef, Ref: javaExc.Object})
			if err := frame.jumpTo(uint32(handler.HandlerPC)); err != nil {
				return object.Value{}, err
			}
			continue
		}
		if returned {
			return retVal, nil
		}
		// step already advanced frame.IP for non-branching instructions;
		// branching instructions set it directly via jumpTo.
	}
	return object.Value{}, nil
}
