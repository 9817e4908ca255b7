package interp

import (
	"fmt"
	"strconv"
	"strings"

	"govm/pkg/classfile"
	"govm/pkg/object"
)

// lambdaTarget records what a LambdaMetafactory-produced proxy object
// actually dispatches to, since the proxy's declared type is the functional
// interface it implements rather than a real loaded class.
type lambdaTarget struct {
	targetClass  string
	targetMethod string
	targetDesc   string
	refKind      uint8
	captured     []object.Value
}

// REF_invokeStatic and friends, from CONSTANT_MethodHandle's reference_kind.
const (
	refInvokeVirtual = 5
	refInvokeStatic  = 6
	refInvokeSpecial = 7
)

func (vm *VM) executeInvokedynamic(frame *Frame, index uint16) (object.Value, bool, error) {
	pool := frame.Class.ConstantPool
	invDyn, ok := pool[index].(*classfile.ConstantInvokeDynamic)
	if !ok {
		return object.Value{}, false, fmt.Errorf("invokedynamic: CP index %d is not InvokeDynamic", index)
	}
	methodName, descriptor, err := classfile.ResolveNameAndType(pool, invDyn.NameAndTypeIndex)
	if err != nil {
		return object.Value{}, false, err
	}

	if int(invDyn.BootstrapMethodAttrIndex) >= len(frame.Class.BootstrapMethods) {
		return object.Value{}, false, fmt.Errorf("invokedynamic: bootstrap method index %d out of range", invDyn.BootstrapMethodAttrIndex)
	}
	bsm := frame.Class.BootstrapMethods[invDyn.BootstrapMethodAttrIndex]

	mh, ok := pool[bsm.MethodRef].(*classfile.ConstantMethodHandle)
	if !ok {
		return object.Value{}, false, fmt.Errorf("invokedynamic: bootstrap method is not a MethodHandle")
	}
	if mh.ReferenceKind != refInvokeStatic {
		return object.Value{}, false, fmt.Errorf("invokedynamic: unsupported bootstrap reference kind %d", mh.ReferenceKind)
	}
	bsmRef, err := classfile.ResolveMethodref(pool, mh.ReferenceIndex)
	if err != nil {
		return object.Value{}, false, err
	}

	switch bsmRef.ClassName + "." + bsmRef.Name {
	case "java/lang/invoke/LambdaMetafactory.metafactory":
		return vm.handleLambdaMetafactory(frame, pool, bsm, methodName, descriptor)
	case "java/lang/invoke/StringConcatFactory.makeConcatWithConstants":
		return vm.handleStringConcatFactory(frame, pool, bsm, descriptor)
	default:
		return object.Value{}, false, fmt.Errorf("invokedynamic: unsupported bootstrap method %s.%s", bsmRef.ClassName, bsmRef.Name)
	}
}

// handleLambdaMetafactory builds a proxy object implementing the functional
// interface named by the call site's own return type, remembering which
// concrete method it forwards to in vm.lambdas. Captured arguments (the
// factory descriptor's own parameters) are closed over at this point, the
// same way a real lambda captures its enclosing locals.
func (vm *VM) handleLambdaMetafactory(frame *Frame, pool []classfile.ConstantPoolEntry, bsm classfile.BootstrapMethod, methodName, descriptor string) (object.Value, bool, error) {
	if len(bsm.BootstrapArguments) < 3 {
		return object.Value{}, false, fmt.Errorf("LambdaMetafactory: expected at least 3 bootstrap arguments, got %d", len(bsm.BootstrapArguments))
	}
	implHandle, ok := pool[bsm.BootstrapArguments[1]].(*classfile.ConstantMethodHandle)
	if !ok {
		return object.Value{}, false, fmt.Errorf("LambdaMetafactory: bootstrap arg[1] is not a MethodHandle")
	}
	switch implHandle.ReferenceKind {
	case refInvokeVirtual, refInvokeStatic, refInvokeSpecial:
	default:
		return object.Value{}, false, fmt.Errorf("LambdaMetafactory: unsupported impl reference kind %d", implHandle.ReferenceKind)
	}
	implRef, err := classfile.ResolveMethodref(pool, implHandle.ReferenceIndex)
	if err != nil {
		return object.Value{}, false, err
	}

	interfaceName := strings.TrimSuffix(returnDescriptor(descriptor), ";")
	interfaceName = strings.TrimPrefix(interfaceName, "L")

	params, err := parseParamDescriptors(descriptor)
	if err != nil {
		return object.Value{}, false, err
	}
	captured := frame.PopN(len(params))

	proxy, err := vm.heap.AllocateClass(interfaceName, nil)
	if err != nil {
		return object.Value{}, false, err
	}
	if vm.lambdas == nil {
		vm.lambdas = make(map[*object.Object]*lambdaTarget)
	}
	vm.lambdas[proxy] = &lambdaTarget{
		targetClass:  implRef.ClassName,
		targetMethod: implRef.Name,
		targetDesc:   implRef.Descriptor,
		refKind:      implHandle.ReferenceKind,
		captured:     captured,
	}

	_ = methodName // the single abstract method's name isn't needed: any interface call dispatches to the same captured target
	return object.Value{Tag: object.TagRef, Ref: proxy}, true, nil
}

// invokeLambda runs a proxy object's captured target, prepending any
// captured arguments ahead of the call-site arguments the way a real
// lambda's closure would.
func (vm *VM) invokeLambda(target *lambdaTarget, callArgs []object.Value) (object.Value, bool, error) {
	args := append(append([]object.Value(nil), target.captured...), callArgs...)

	class, err := vm.loader.Load(target.targetClass)
	if err != nil {
		return object.Value{}, false, err
	}

	switch target.refKind {
	case refInvokeStatic:
		if err := vm.loader.EnsureInitialized(class); err != nil {
			return object.Value{}, false, err
		}
		declClass, method := resolveStaticMethod(class, target.targetMethod, target.targetDesc)
		if method == nil {
			return object.Value{}, false, fmt.Errorf("lambda target %s.%s%s not found", target.targetClass, target.targetMethod, target.targetDesc)
		}
		retVal, err := vm.invoke(declClass, method, args)
		return retVal, !isVoidReturn(target.targetDesc), err
	default:
		if len(args) == 0 || args[0].Ref == nil {
			return object.Value{}, false, newJavaException("java/lang/NullPointerException")
		}
		runtimeClass, err := vm.loader.Load(args[0].Ref.ClassName)
		if err != nil {
			return object.Value{}, false, err
		}
		declClass, method := runtimeClass.ResolveVirtual(target.targetMethod, target.targetDesc)
		if method == nil {
			return object.Value{}, false, fmt.Errorf("lambda target %s.%s%s not found", target.targetClass, target.targetMethod, target.targetDesc)
		}
		retVal, err := vm.invoke(declClass, method, args)
		return retVal, !isVoidReturn(target.targetDesc), err
	}
}

// handleStringConcatFactory evaluates a single indy-based string
// concatenation call site: the recipe string encodes argument holes
// (\x01) and constant holes (\x02, filled from the remaining bootstrap
// arguments) in left-to-right order.
func (vm *VM) handleStringConcatFactory(frame *Frame, pool []classfile.ConstantPoolEntry, bsm classfile.BootstrapMethod, descriptor string) (object.Value, bool, error) {
	recipe := ""
	if len(bsm.BootstrapArguments) > 0 {
		if s, ok := pool[bsm.BootstrapArguments[0]].(*classfile.ConstantString); ok {
			var err error
			recipe, err = classfile.ResolveUtf8(pool, s.StringIndex)
			if err != nil {
				return object.Value{}, false, err
			}
		}
	}

	params, err := parseParamDescriptors(descriptor)
	if err != nil {
		return object.Value{}, false, err
	}
	args := frame.PopN(len(params))

	constants := make([]string, 0, len(bsm.BootstrapArguments)-1)
	for i := 1; i < len(bsm.BootstrapArguments); i++ {
		switch c := pool[bsm.BootstrapArguments[i]].(type) {
		case *classfile.ConstantString:
			s, err := classfile.ResolveUtf8(pool, c.StringIndex)
			if err != nil {
				return object.Value{}, false, err
			}
			constants = append(constants, s)
		case *classfile.ConstantInteger:
			constants = append(constants, strconv.FormatInt(int64(c.Value), 10))
		default:
			constants = append(constants, "")
		}
	}

	var out strings.Builder
	argIdx, constIdx := 0, 0
	for i := 0; i < len(recipe); i++ {
		switch recipe[i] {
		case '\x01':
			if argIdx < len(args) {
				out.WriteString(vm.valueToString(args[argIdx]))
				argIdx++
			}
		case '\x02':
			if constIdx < len(constants) {
				out.WriteString(constants[constIdx])
				constIdx++
			}
		default:
			out.WriteByte(recipe[i])
		}
	}

	obj, err := vm.heap.AllocateString(out.String())
	if err != nil {
		return object.Value{}, false, err
	}
	return object.Value{Tag: object.TagRef, Ref: obj}, true, nil
}

// valueToString renders a value for string concatenation: ints and longs in
// decimal, floats and doubles in Go's shortest 'g' form (so 1.0 renders as
// "1" and 1e10 as "1e+10", not Java's "1.0" and "1.0E10"), "null" for a null
// reference, the backing UTF-16 content for a String instance, and
// ClassName@identity for any other object. Values carry no source type, so
// char and boolean arguments render as their int value.
func (vm *VM) valueToString(v object.Value) string {
	switch v.Tag {
	case object.TagInt:
		return strconv.FormatInt(int64(v.Int), 10)
	case object.TagLong:
		return strconv.FormatInt(v.Long, 10)
	case object.TagFloat:
		return strconv.FormatFloat(float64(v.Float), 'g', -1, 32)
	case object.TagDouble:
		return strconv.FormatFloat(v.Dbl, 'g', -1, 64)
	case object.TagRef:
		if v.Ref == nil {
			return "null"
		}
		if v.Ref.ClassName == "java/lang/String" {
			return object.StringContents(v.Ref)
		}
		return fmt.Sprintf("%s@%x", v.Ref.ClassName, v.Ref.Header.Identity)
	default:
		return ""
	}
}
