package interp

import (
	"fmt"

	"govm/pkg/classfile"
	"govm/pkg/loader"
	"govm/pkg/object"
)

// JavaException wraps a thrown object so it can travel through the same Go
// error channel as decode/link failures; the dispatch loop type-asserts for
// it to run the handler search instead of aborting the invocation.
type JavaException struct {
	Object *object.Object
}

func (e *JavaException) Error() string {
	return fmt.Sprintf("exception: %s", e.Object.ClassName)
}

func newJavaException(className string) error {
	return &JavaException{Object: &object.Object{Kind: object.KindClassInstance, ClassName: className}}
}

// findHandler searches code's exception table (resolved against owner's
// constant pool) for the first entry covering pc whose catch type is either
// absent (finally-style catch-all) or a superclass/self of the thrown
// object's class, resolved via the loader's subtype walk.
func (vm *VM) findHandler(owner *loader.LoadedClass, code *classfile.CodeAttribute, pc uint32, exc *JavaException) (*classfile.ExceptionHandler, error) {
	thrownClass, err := vm.loader.Load(exc.Object.ClassName)
	if err != nil {
		return nil, err
	}

	for i := range code.ExceptionHandlers {
		h := &code.ExceptionHandlers[i]
		if pc < uint32(h.StartPC) || pc >= uint32(h.EndPC) {
			continue
		}
		if h.CatchType == 0 {
			return h, nil
		}
		catchName, err := classfile.ResolveClassName(owner.ConstantPool, h.CatchType)
		if err != nil {
			return nil, fmt.Errorf("resolving catch type: %w", err)
		}
		catchClass, err := vm.loader.Load(catchName)
		if err != nil {
			return nil, err
		}
		if isInstanceOf(thrownClass, catchClass) {
			return h, nil
		}
	}
	return nil, nil
}

// isInstanceOf reports whether an object of class objClass is assignable to
// target, via the loader's subclass/interface walk.
func isInstanceOf(objClass, target *loader.LoadedClass) bool {
	if objClass == nil || target == nil {
		return false
	}
	return objClass.IsSubtypeOf(target)
}
