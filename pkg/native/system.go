package native

import (
	"fmt"
	"math"
	"time"

	"govm/pkg/object"
)

// registerSystem installs the JDK-internal natives that nearly every class
// ends up calling transitively: java/lang/Object, java/lang/System,
// java/lang/Class, the Float/Double bit-conversion intrinsics, java/lang/
// Math's genuinely native entries, and a couple of java/lang/Thread/
// Runtime stubs, enough to let a single-threaded program run to completion.
func registerSystem(r *Registry) {
	r.Register("java/lang/Object", "registerNatives", "()V", noop)
	r.Register("java/lang/Object", "hashCode", "()I", func(_ Host, args []object.Value) (object.Value, error) {
		return identityHash(args[0]), nil
	})
	r.Register("java/lang/Object", "getClass", "()Ljava/lang/Class;", func(host Host, args []object.Value) (object.Value, error) {
		return classMirror(host, args[0].Ref.ClassName)
	})
	r.Register("java/lang/Object", "notifyAll", "()V", noop)
	r.Register("java/lang/Object", "notify", "()V", noop)
	r.Register("java/lang/Object", "wait", "()V", noop)

	r.Register("java/lang/System", "registerNatives", "()V", noop)
	r.Register("java/lang/System", "identityHashCode", "(Ljava/lang/Object;)I", func(_ Host, args []object.Value) (object.Value, error) {
		return identityHash(args[0]), nil
	})
	r.Register("java/lang/System", "arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V", systemArraycopy)
	r.Register("java/lang/System", "nanoTime", "()J", func(_ Host, _ []object.Value) (object.Value, error) {
		return object.Value{Tag: object.TagLong, Long: time.Now().UnixNano()}, nil
	})
	r.Register("java/lang/System", "currentTimeMillis", "()J", func(_ Host, _ []object.Value) (object.Value, error) {
		return object.Value{Tag: object.TagLong, Long: time.Now().UnixNano() / int64(time.Millisecond)}, nil
	})

	r.Register("java/lang/Float", "floatToRawIntBits", "(F)I", func(_ Host, args []object.Value) (object.Value, error) {
		return object.Value{Tag: object.TagInt, Int: int32(math.Float32bits(args[0].Float))}, nil
	})
	r.Register("java/lang/Float", "isNaN", "(F)Z", func(_ Host, args []object.Value) (object.Value, error) {
		return boolValue(math.IsNaN(float64(args[0].Float))), nil
	})
	r.Register("java/lang/Double", "doubleToRawLongBits", "(D)J", func(_ Host, args []object.Value) (object.Value, error) {
		return object.Value{Tag: object.TagLong, Long: int64(math.Float64bits(args[0].Dbl))}, nil
	})
	r.Register("java/lang/Double", "longBitsToDouble", "(J)D", func(_ Host, args []object.Value) (object.Value, error) {
		return object.Value{Tag: object.TagDouble, Dbl: math.Float64frombits(uint64(args[0].Long))}, nil
	})

	r.Register("java/lang/Math", "sqrt", "(D)D", func(_ Host, args []object.Value) (object.Value, error) {
		return object.Value{Tag: object.TagDouble, Dbl: math.Sqrt(args[0].Dbl)}, nil
	})
	r.Register("java/lang/Math", "pow", "(DD)D", func(_ Host, args []object.Value) (object.Value, error) {
		return object.Value{Tag: object.TagDouble, Dbl: math.Pow(args[0].Dbl, args[1].Dbl)}, nil
	})

	r.Register("java/lang/Class", "isArray", "()Z", func(_ Host, args []object.Value) (object.Value, error) {
		name := object.StringContents(classMirrorName(args[0].Ref))
		return boolValue(len(name) > 0 && name[0] == '['), nil
	})
	r.Register("java/lang/Class", "isPrimitive", "()Z", func(_ Host, args []object.Value) (object.Value, error) {
		switch object.StringContents(classMirrorName(args[0].Ref)) {
		case "int", "long", "float", "double", "boolean", "byte", "char", "short", "void":
			return boolValue(true), nil
		default:
			return boolValue(false), nil
		}
	})

	r.Register("java/lang/Thread", "currentThread", "()Ljava/lang/Thread;", func(host Host, _ []object.Value) (object.Value, error) {
		obj, err := host.AllocateClass("java/lang/Thread", nil)
		if err != nil {
			return object.Value{}, err
		}
		return object.Value{Tag: object.TagRef, Ref: obj}, nil
	})
	r.Register("java/lang/Thread", "setPriority", "(I)V", noop)
	r.Register("java/lang/Runtime", "maxMemory", "()J", func(_ Host, _ []object.Value) (object.Value, error) {
		return object.Value{Tag: object.TagLong, Long: 1 << 30}, nil
	})
}

func noop(_ Host, _ []object.Value) (object.Value, error) { return object.Value{}, nil }

func boolValue(b bool) object.Value {
	if b {
		return object.Value{Tag: object.TagInt, Int: 1}
	}
	return object.Value{Tag: object.TagInt, Int: 0}
}

func identityHash(v object.Value) object.Value {
	if v.Ref == nil {
		return object.Value{Tag: object.TagInt, Int: 0}
	}
	return object.Value{Tag: object.TagInt, Int: int32(v.Ref.Header.Identity)}
}

// classMirror allocates the minimal java/lang/Class instance getClass()/
// class-literal evaluation produces: a single field holding the class's
// binary name as a String.
func classMirror(host Host, className string) (object.Value, error) {
	obj, err := host.AllocateClass("java/lang/Class", []string{"Ljava/lang/String;"})
	if err != nil {
		return object.Value{}, err
	}
	nameObj, err := host.AllocateString(className)
	if err != nil {
		return object.Value{}, err
	}
	obj.Fields[0] = object.Value{Tag: object.TagRef, Ref: nameObj}
	return object.Value{Tag: object.TagRef, Ref: obj}, nil
}

func classMirrorName(mirror *object.Object) *object.Object {
	if mirror == nil || len(mirror.Fields) == 0 {
		return nil
	}
	return mirror.Fields[0].Ref
}

func systemArraycopy(_ Host, args []object.Value) (object.Value, error) {
	src, srcPos, dst, dstPos, length := args[0], args[1].Int, args[2], args[3].Int, args[4].Int
	if src.Ref == nil || dst.Ref == nil {
		return object.Value{}, fmt.Errorf("NullPointerException: arraycopy with null array")
	}
	if srcPos < 0 || dstPos < 0 || length < 0 ||
		int(srcPos+length) > len(src.Ref.Elements) || int(dstPos+length) > len(dst.Ref.Elements) {
		return object.Value{}, fmt.Errorf("ArrayIndexOutOfBoundsException: arraycopy out of range")
	}
	copy(dst.Ref.Elements[dstPos:dstPos+length], src.Ref.Elements[srcPos:srcPos+length])
	return object.Value{}, nil
}
