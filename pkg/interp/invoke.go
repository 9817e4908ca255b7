package interp

import (
	"fmt"
	"strings"

	"govm/pkg/classfile"
	"govm/pkg/loader"
	"govm/pkg/object"
)

// resolveLdc resolves a single-width ldc/ldc_w constant: an int, a float, an
// interned string instance, or a class literal mirror.
func (vm *VM) resolveLdc(frame *Frame, index uint16) (object.Value, error) {
	pool := frame.Class.ConstantPool
	if int(index) >= len(pool) || pool[index] == nil {
		return object.Value{}, fmt.Errorf("ldc: invalid constant pool index %d", index)
	}

	switch c := pool[index].(type) {
	case *classfile.ConstantInteger:
		return iv(c.Value), nil
	case *classfile.ConstantFloat:
		return fv(c.Value), nil
	case *classfile.ConstantString:
		s, err := classfile.ResolveUtf8(pool, c.StringIndex)
		if err != nil {
			return object.Value{}, err
		}
		obj, err := vm.heap.AllocateString(s)
		if err != nil {
			return object.Value{}, err
		}
		return object.Value{Tag: object.TagRef, Ref: obj}, nil
	case *classfile.ConstantClass:
		name, err := classfile.ResolveUtf8(pool, c.NameIndex)
		if err != nil {
			return object.Value{}, err
		}
		obj, err := vm.classMirror(name)
		if err != nil {
			return object.Value{}, err
		}
		return object.Value{Tag: object.TagRef, Ref: obj}, nil
	default:
		return object.Value{}, fmt.Errorf("ldc: unsupported constant at index %d (tag %d)", index, pool[index].Tag())
	}
}

// resolveLdc2 resolves the double-width ldc2_w forms: long or double.
func (vm *VM) resolveLdc2(frame *Frame, index uint16) (object.Value, error) {
	pool := frame.Class.ConstantPool
	if int(index) >= len(pool) || pool[index] == nil {
		return object.Value{}, fmt.Errorf("ldc2_w: invalid constant pool index %d", index)
	}
	switch c := pool[index].(type) {
	case *classfile.ConstantLong:
		return lv(c.Value), nil
	case *classfile.ConstantDouble:
		return dv(c.Value), nil
	default:
		return object.Value{}, fmt.Errorf("ldc2_w: unsupported constant at index %d (tag %d)", index, pool[index].Tag())
	}
}

// classMirror builds the minimal java/lang/Class instance a class literal
// evaluates to: enough to expose a name to code that calls getName()/
// toString() on it, via the native bridge.
func (vm *VM) classMirror(name string) (*object.Object, error) {
	obj, err := vm.heap.AllocateClass("java/lang/Class", []string{"Ljava/lang/String;"})
	if err != nil {
		return nil, err
	}
	nameObj, err := vm.heap.AllocateString(name)
	if err != nil {
		return nil, err
	}
	obj.Fields[0] = object.Value{Tag: object.TagRef, Ref: nameObj}
	return obj, nil
}

func (vm *VM) getStatic(frame *Frame, index uint16) (object.Value, error) {
	ref, err := classfile.ResolveFieldref(frame.Class.ConstantPool, index)
	if err != nil {
		return object.Value{}, err
	}
	owner, err := vm.loader.Load(ref.ClassName)
	if err != nil {
		return object.Value{}, err
	}
	if err := vm.loader.EnsureInitialized(owner); err != nil {
		return object.Value{}, err
	}
	decl, slot, err := resolveStaticField(owner, ref.Name)
	if err != nil {
		return object.Value{}, err
	}
	return decl.StaticValues[slot], nil
}

func (vm *VM) putStatic(frame *Frame, index uint16) error {
	ref, err := classfile.ResolveFieldref(frame.Class.ConstantPool, index)
	if err != nil {
		return err
	}
	owner, err := vm.loader.Load(ref.ClassName)
	if err != nil {
		return err
	}
	if err := vm.loader.EnsureInitialized(owner); err != nil {
		return err
	}
	decl, slot, err := resolveStaticField(owner, ref.Name)
	if err != nil {
		return err
	}
	decl.StaticValues[slot] = frame.Pop()
	return nil
}

func resolveStaticField(owner *loader.LoadedClass, name string) (*loader.LoadedClass, int, error) {
	for cur := owner; cur != nil; cur = cur.Super {
		if idx, ok := cur.StaticFieldIndex[name]; ok {
			return cur, idx, nil
		}
	}
	return nil, 0, fmt.Errorf("no such static field %s on %s", name, owner.Name)
}

func (vm *VM) getField(frame *Frame, index uint16) (object.Value, error) {
	ref, err := classfile.ResolveFieldref(frame.Class.ConstantPool, index)
	if err != nil {
		return object.Value{}, err
	}
	owner, err := vm.loader.Load(ref.ClassName)
	if err != nil {
		return object.Value{}, err
	}
	target := frame.Pop()
	if target.Ref == nil {
		return object.Value{}, newJavaException("java/lang/NullPointerException")
	}
	slot, ok := owner.InstanceFieldIndex[ref.Name]
	if !ok {
		return object.Value{}, fmt.Errorf("no such field %s on %s", ref.Name, owner.Name)
	}
	return target.Ref.Fields[slot], nil
}

func (vm *VM) putField(frame *Frame, index uint16) error {
	ref, err := classfile.ResolveFieldref(frame.Class.ConstantPool, index)
	if err != nil {
		return err
	}
	owner, err := vm.loader.Load(ref.ClassName)
	if err != nil {
		return err
	}
	value := frame.Pop()
	target := frame.Pop()
	if target.Ref == nil {
		return newJavaException("java/lang/NullPointerException")
	}
	slot, ok := owner.InstanceFieldIndex[ref.Name]
	if !ok {
		return fmt.Errorf("no such field %s on %s", ref.Name, owner.Name)
	}
	target.Ref.Fields[slot] = value
	return nil
}

// invokeVirtual resolves the method symbolically, then redispatches against
// the receiver's actual runtime class, the override rule every virtual call
// follows.
func (vm *VM) invokeVirtual(frame *Frame, index uint16) (object.Value, bool, error) {
	ref, err := classfile.ResolveMethodref(frame.Class.ConstantPool, index)
	if err != nil {
		return object.Value{}, false, err
	}
	params, err := parseParamDescriptors(ref.Descriptor)
	if err != nil {
		return object.Value{}, false, err
	}
	args := frame.PopN(len(params) + 1)
	receiver := args[0]
	if receiver.Ref == nil {
		return object.Value{}, false, newJavaException("java/lang/NullPointerException")
	}

	if receiver.Ref.Kind == object.KindArrayInstance {
		return vm.invokeArrayMethod(receiver.Ref, ref.Name, ref.Descriptor)
	}
	if target, ok := vm.lambdas[receiver.Ref]; ok {
		return vm.invokeLambda(target, args[1:])
	}

	runtimeClass, err := vm.loader.Load(receiver.Ref.ClassName)
	if err != nil {
		return object.Value{}, false, err
	}
	owner, method := runtimeClass.ResolveVirtual(ref.Name, ref.Descriptor)
	if method == nil {
		return object.Value{}, false, fmt.Errorf("no such method %s%s on %s", ref.Name, ref.Descriptor, runtimeClass.Name)
	}
	retVal, err := vm.invoke(owner, method, args)
	return retVal, !isVoidReturn(ref.Descriptor), err
}

// invokeSpecial resolves directly against the named class (constructors,
// private methods and explicit super calls all bypass virtual dispatch).
func (vm *VM) invokeSpecial(frame *Frame, index uint16) (object.Value, bool, error) {
	ref, err := classfile.ResolveMethodref(frame.Class.ConstantPool, index)
	if err != nil {
		return object.Value{}, false, err
	}
	params, err := parseParamDescriptors(ref.Descriptor)
	if err != nil {
		return object.Value{}, false, err
	}
	args := frame.PopN(len(params) + 1)
	if args[0].Ref == nil {
		return object.Value{}, false, newJavaException("java/lang/NullPointerException")
	}

	named, err := vm.loader.Load(ref.ClassName)
	if err != nil {
		return object.Value{}, false, err
	}
	owner, method := named.ResolveVirtual(ref.Name, ref.Descriptor)
	if method == nil {
		return object.Value{}, false, fmt.Errorf("no such method %s%s on %s", ref.Name, ref.Descriptor, named.Name)
	}
	retVal, err := vm.invoke(owner, method, args)
	return retVal, !isVoidReturn(ref.Descriptor), err
}

// invokeStatic resolves a static method, walking the superclass chain (not
// interfaces) for an inherited static, and runs the declaring class's
// <clinit> first.
func (vm *VM) invokeStatic(frame *Frame, index uint16) (object.Value, bool, error) {
	ref, err := classfile.ResolveMethodref(frame.Class.ConstantPool, index)
	if err != nil {
		return object.Value{}, false, err
	}
	owner, err := vm.loader.Load(ref.ClassName)
	if err != nil {
		return object.Value{}, false, err
	}
	if err := vm.loader.EnsureInitialized(owner); err != nil {
		return object.Value{}, false, err
	}

	decl, method := resolveStaticMethod(owner, ref.Name, ref.Descriptor)
	if method == nil {
		return object.Value{}, false, fmt.Errorf("no such static method %s%s on %s", ref.Name, ref.Descriptor, owner.Name)
	}
	params, err := parseParamDescriptors(ref.Descriptor)
	if err != nil {
		return object.Value{}, false, err
	}
	args := frame.PopN(len(params))
	retVal, err := vm.invoke(decl, method, args)
	return retVal, !isVoidReturn(ref.Descriptor), err
}

func resolveStaticMethod(owner *loader.LoadedClass, name, descriptor string) (*loader.LoadedClass, *classfile.MethodInfo) {
	for cur := owner; cur != nil; cur = cur.Super {
		if m := cur.FindMethod(name, descriptor); m != nil {
			return cur, m
		}
	}
	return nil, nil
}

// invokeInterface resolves a method declared on an interface against the
// receiver's actual runtime class, same override rule as invokeVirtual.
func (vm *VM) invokeInterface(frame *Frame, index uint16) (object.Value, bool, error) {
	ref, err := classfile.ResolveInterfaceMethodref(frame.Class.ConstantPool, index)
	if err != nil {
		return object.Value{}, false, err
	}
	params, err := parseParamDescriptors(ref.Descriptor)
	if err != nil {
		return object.Value{}, false, err
	}
	args := frame.PopN(len(params) + 1)
	receiver := args[0]
	if receiver.Ref == nil {
		return object.Value{}, false, newJavaException("java/lang/NullPointerException")
	}
	if target, ok := vm.lambdas[receiver.Ref]; ok {
		return vm.invokeLambda(target, args[1:])
	}

	runtimeClass, err := vm.loader.Load(receiver.Ref.ClassName)
	if err != nil {
		return object.Value{}, false, err
	}
	owner, method := runtimeClass.ResolveVirtual(ref.Name, ref.Descriptor)
	if method == nil {
		return object.Value{}, false, fmt.Errorf("no such method %s%s on %s", ref.Name, ref.Descriptor, runtimeClass.Name)
	}
	retVal, err := vm.invoke(owner, method, args)
	return retVal, !isVoidReturn(ref.Descriptor), err
}

// invokeArrayMethod covers the handful of java/lang/Object methods arrays
// respond to directly, since an array instance has no backing LoadedClass
// to dispatch through.
func (vm *VM) invokeArrayMethod(arr *object.Object, name, descriptor string) (object.Value, bool, error) {
	if name == "clone" && descriptor == "()Ljava/lang/Object;" {
		placed, err := vm.heap.AllocateArray(arr.ElementType, len(arr.Elements))
		if err != nil {
			return object.Value{}, false, err
		}
		copy(placed.Elements, arr.Elements)
		return object.Value{Tag: object.TagRef, Ref: placed}, true, nil
	}
	return object.Value{}, false, fmt.Errorf("unsupported array method %s%s", name, descriptor)
}

func (vm *VM) executeNew(frame *Frame, index uint16) (object.Value, error) {
	name, err := classfile.ResolveClassName(frame.Class.ConstantPool, index)
	if err != nil {
		return object.Value{}, err
	}
	class, err := vm.loader.Load(name)
	if err != nil {
		return object.Value{}, err
	}
	if err := vm.loader.EnsureInitialized(class); err != nil {
		return object.Value{}, err
	}
	obj, err := vm.heap.AllocateClass(name, class.NewInstanceFieldDescriptors())
	if err != nil {
		return object.Value{}, err
	}
	return object.Value{Tag: object.TagRef, Ref: obj}, nil
}

// atypeDescriptors maps newarray's atype operand to the array element
// descriptor letter, per the JVM spec's fixed T_* constant assignment.
var atypeDescriptors = map[int32]string{
	4:  "Z",
	5:  "C",
	6:  "F",
	7:  "D",
	8:  "B",
	9:  "S",
	10: "I",
	11: "J",
}

func (vm *VM) executeNewarray(frame *Frame, atype int32) (object.Value, error) {
	descriptor, ok := atypeDescriptors[atype]
	if !ok {
		return object.Value{}, fmt.Errorf("newarray: unknown atype %d", atype)
	}
	length := frame.Pop().Int
	if length < 0 {
		return object.Value{}, newJavaException("java/lang/NegativeArraySizeException")
	}
	obj, err := vm.heap.AllocateArray(descriptor, int(length))
	if err != nil {
		return object.Value{}, err
	}
	return object.Value{Tag: object.TagRef, Ref: obj}, nil
}

func (vm *VM) executeAnewarray(frame *Frame, index uint16) (object.Value, error) {
	name, err := classfile.ResolveClassName(frame.Class.ConstantPool, index)
	if err != nil {
		return object.Value{}, err
	}
	length := frame.Pop().Int
	if length < 0 {
		return object.Value{}, newJavaException("java/lang/NegativeArraySizeException")
	}
	elementType := name
	if !strings.HasPrefix(name, "[") {
		elementType = "L" + name + ";"
	}
	obj, err := vm.heap.AllocateArray(elementType, int(length))
	if err != nil {
		return object.Value{}, err
	}
	return object.Value{Tag: object.TagRef, Ref: obj}, nil
}

func (vm *VM) executeMultianewarray(frame *Frame, index uint16, dimensions uint8) (object.Value, error) {
	name, err := classfile.ResolveClassName(frame.Class.ConstantPool, index)
	if err != nil {
		return object.Value{}, err
	}
	if int(dimensions) == 0 || !strings.HasPrefix(name, "[") {
		return object.Value{}, fmt.Errorf("multianewarray: invalid array class %s", name)
	}
	counts := frame.PopN(int(dimensions))
	lens := make([]int, len(counts))
	for i, c := range counts {
		if c.Int < 0 {
			return object.Value{}, newJavaException("java/lang/NegativeArraySizeException")
		}
		lens[i] = int(c.Int)
	}
	obj, err := vm.buildMultiArray(name, lens)
	if err != nil {
		return object.Value{}, err
	}
	return object.Value{Tag: object.TagRef, Ref: obj}, nil
}

// buildMultiArray allocates one array level per entry in lens, recursing
// into the element type for as many dimensions as the caller supplied; any
// further nested array dimension beyond len(lens) is left null, matching
// multianewarray's partial-initialization semantics.
func (vm *VM) buildMultiArray(arrayTypeDesc string, lens []int) (*object.Object, error) {
	elementType := arrayTypeDesc[1:]
	arr, err := vm.heap.AllocateArray(elementType, lens[0])
	if err != nil {
		return nil, err
	}
	if len(lens) > 1 && strings.HasPrefix(elementType, "[") {
		for i := range arr.Elements {
			sub, err := vm.buildMultiArray(elementType, lens[1:])
			if err != nil {
				return nil, err
			}
			arr.Elements[i] = object.Value{Tag: object.TagRef, Ref: sub}
		}
	}
	return arr, nil
}

func (vm *VM) executeCheckcast(frame *Frame, index uint16) error {
	name, err := classfile.ResolveClassName(frame.Class.ConstantPool, index)
	if err != nil {
		return err
	}
	top := frame.Pop()
	if top.Ref == nil {
		frame.Push(top)
		return nil
	}
	ok, err := vm.isAssignable(top.Ref, name)
	if err != nil {
		return err
	}
	frame.Push(top)
	if !ok {
		return newJavaException("java/lang/ClassCastException")
	}
	return nil
}

func (vm *VM) executeInstanceof(frame *Frame, index uint16) (object.Value, error) {
	name, err := classfile.ResolveClassName(frame.Class.ConstantPool, index)
	if err != nil {
		return object.Value{}, err
	}
	top := frame.Pop()
	if top.Ref == nil {
		return iv(0), nil
	}
	ok, err := vm.isAssignable(top.Ref, name)
	if err != nil {
		return object.Value{}, err
	}
	if ok {
		return iv(1), nil
	}
	return iv(0), nil
}

// isAssignable implements the narrow slice of JVM assignability checkcast
// and instanceof need: class/interface subtyping for ClassInstances, and an
// exact element-type match (plus the universal array-to-Object widening)
// for ArrayInstances. It does not model array covariance between distinct
// reference element types.
func (vm *VM) isAssignable(obj *object.Object, targetName string) (bool, error) {
	if strings.HasPrefix(targetName, "[") {
		if obj.Kind != object.KindArrayInstance {
			return false, nil
		}
		return arrayElementAssignable(obj.ElementType, targetName[1:]), nil
	}
	if obj.Kind == object.KindArrayInstance {
		return targetName == "java/lang/Object", nil
	}
	objClass, err := vm.loader.Load(obj.ClassName)
	if err != nil {
		return false, err
	}
	targetClass, err := vm.loader.Load(targetName)
	if err != nil {
		return false, err
	}
	return objClass.IsSubtypeOf(targetClass), nil
}

func arrayElementAssignable(elemType, targetElem string) bool {
	if strings.HasPrefix(targetElem, "[") {
		if !strings.HasPrefix(elemType, "[") {
			return false
		}
		return arrayElementAssignable(elemType[1:], targetElem[1:])
	}
	return elemType == targetElem
}
