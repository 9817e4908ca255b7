package native

import (
	"strconv"

	"govm/pkg/object"
)

// registerBoxing installs the boxed-primitive natives: the *Value unboxing
// methods of Integer/Long/Double/Float/Boolean/Character, valueOf for
// Integer/Long/Double/Boolean (Float and Character have none here), and the
// static Integer.toString(int) and Integer.parseInt. The interpreter only
// dispatches here for a method its loaded class file marks ACC_NATIVE, so
// the wrapper classes' .class files are still loaded and their other
// methods run as bytecode.
func registerBoxing(r *Registry) {
	registerUnbox(r, "java/lang/Integer", "intValue", "()I", 0)

	registerUnbox(r, "java/lang/Long", "longValue", "()J", 0)
	registerUnbox(r, "java/lang/Double", "doubleValue", "()D", 0)
	registerUnbox(r, "java/lang/Float", "floatValue", "()F", 0)
	registerUnbox(r, "java/lang/Boolean", "booleanValue", "()Z", 0)
	registerUnbox(r, "java/lang/Character", "charValue", "()C", 0)

	r.Register("java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;", func(host Host, args []object.Value) (object.Value, error) {
		return boxScalar(host, "java/lang/Integer", "I", args[0])
	})
	r.Register("java/lang/Long", "valueOf", "(J)Ljava/lang/Long;", func(host Host, args []object.Value) (object.Value, error) {
		return boxScalar(host, "java/lang/Long", "J", args[0])
	})
	r.Register("java/lang/Double", "valueOf", "(D)Ljava/lang/Double;", func(host Host, args []object.Value) (object.Value, error) {
		return boxScalar(host, "java/lang/Double", "D", args[0])
	})
	r.Register("java/lang/Boolean", "valueOf", "(Z)Ljava/lang/Boolean;", func(host Host, args []object.Value) (object.Value, error) {
		return boxScalar(host, "java/lang/Boolean", "Z", args[0])
	})

	r.Register("java/lang/Integer", "toString", "(I)Ljava/lang/String;", func(host Host, args []object.Value) (object.Value, error) {
		obj, err := host.AllocateString(strconv.FormatInt(int64(args[0].Int), 10))
		return object.Value{Tag: object.TagRef, Ref: obj}, err
	})
	r.Register("java/lang/Integer", "parseInt", "(Ljava/lang/String;)I", func(_ Host, args []object.Value) (object.Value, error) {
		n, err := strconv.ParseInt(object.StringContents(args[0].Ref), 10, 32)
		if err != nil {
			return object.Value{}, err
		}
		return object.Value{Tag: object.TagInt, Int: int32(n)}, nil
	})
}

// boxScalar allocates a single-field instance of one of the boxed primitive
// wrapper classes, storing the primitive value in its lone field.
func boxScalar(host Host, className, fieldDescriptor string, v object.Value) (object.Value, error) {
	obj, err := host.AllocateClass(className, []string{fieldDescriptor})
	if err != nil {
		return object.Value{}, err
	}
	obj.Fields[0] = v
	return object.Value{Tag: object.TagRef, Ref: obj}, nil
}

// registerUnbox registers the trivial "read the lone boxed field back out"
// instance method every wrapper class exposes, e.g. Integer.intValue().
func registerUnbox(r *Registry, class, method, descriptor string, fieldIndex int) {
	r.Register(class, method, descriptor, func(_ Host, args []object.Value) (object.Value, error) {
		receiver := args[0].Ref
		if receiver == nil || len(receiver.Fields) <= fieldIndex {
			return object.Value{}, nil
		}
		return receiver.Fields[fieldIndex], nil
	})
}
