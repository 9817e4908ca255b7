package native

import (
	"fmt"
	"strconv"
	gostrings "strings"

	"govm/pkg/object"
)

// registerStrings installs java/lang/String's handful of genuinely native
// entry points and a set of java/lang/StringBuilder methods. As with every
// native, the interpreter dispatches here only for a method its loaded
// class file marks ACC_NATIVE. StringBuilder instances keep their mutable
// buffer in the registry's builders side table, the same pattern
// NativeHashMap uses for HashMap instances.
func registerStrings(r *Registry) {
	r.Register("java/lang/String", "length", "()I", func(_ Host, args []object.Value) (object.Value, error) {
		return object.Value{Tag: object.TagInt, Int: int32(len([]rune(object.StringContents(args[0].Ref))))}, nil
	})
	r.Register("java/lang/String", "charAt", "(I)C", func(_ Host, args []object.Value) (object.Value, error) {
		runes := []rune(object.StringContents(args[0].Ref))
		idx := args[1].Int
		if idx < 0 || int(idx) >= len(runes) {
			return object.Value{}, stringIndexOutOfBounds()
		}
		return object.Value{Tag: object.TagInt, Int: int32(runes[idx])}, nil
	})
	r.Register("java/lang/String", "equals", "(Ljava/lang/Object;)Z", func(_ Host, args []object.Value) (object.Value, error) {
		other := args[1]
		if other.Ref == nil || other.Ref.ClassName != "java/lang/String" {
			return boolValue(false), nil
		}
		return boolValue(object.StringContents(args[0].Ref) == object.StringContents(other.Ref)), nil
	})
	r.Register("java/lang/String", "hashCode", "()I", func(_ Host, args []object.Value) (object.Value, error) {
		return object.Value{Tag: object.TagInt, Int: javaStringHash(object.StringContents(args[0].Ref))}, nil
	})
	r.Register("java/lang/String", "concat", "(Ljava/lang/String;)Ljava/lang/String;", func(host Host, args []object.Value) (object.Value, error) {
		obj, err := host.AllocateString(object.StringContents(args[0].Ref) + object.StringContents(args[1].Ref))
		return object.Value{Tag: object.TagRef, Ref: obj}, err
	})
	r.Register("java/lang/String", "valueOf", "(I)Ljava/lang/String;", func(host Host, args []object.Value) (object.Value, error) {
		obj, err := host.AllocateString(strconv.FormatInt(int64(args[0].Int), 10))
		return object.Value{Tag: object.TagRef, Ref: obj}, err
	})
	r.Register("java/lang/String", "isEmpty", "()Z", func(_ Host, args []object.Value) (object.Value, error) {
		return boolValue(object.StringContents(args[0].Ref) == ""), nil
	})

	r.Register("java/lang/StringBuilder", "<init>", "()V", func(_ Host, args []object.Value) (object.Value, error) {
		r.builders[args[0].Ref] = &gostrings.Builder{}
		return object.Value{}, nil
	})
	appendOverload := func(render func(object.Value) string) Func {
		return func(_ Host, args []object.Value) (object.Value, error) {
			b := r.builders[args[0].Ref]
			b.WriteString(render(args[1]))
			return args[0], nil
		}
	}
	r.Register("java/lang/StringBuilder", "append", "(Ljava/lang/String;)Ljava/lang/StringBuilder;", appendOverload(func(v object.Value) string { return object.StringContents(v.Ref) }))
	r.Register("java/lang/StringBuilder", "append", "(I)Ljava/lang/StringBuilder;", appendOverload(func(v object.Value) string { return strconv.FormatInt(int64(v.Int), 10) }))
	r.Register("java/lang/StringBuilder", "append", "(J)Ljava/lang/StringBuilder;", appendOverload(func(v object.Value) string { return strconv.FormatInt(v.Long, 10) }))
	r.Register("java/lang/StringBuilder", "append", "(C)Ljava/lang/StringBuilder;", appendOverload(func(v object.Value) string { return string(rune(v.Int)) }))
	r.Register("java/lang/StringBuilder", "append", "(Z)Ljava/lang/StringBuilder;", appendOverload(func(v object.Value) string { return strconv.FormatBool(v.Int != 0) }))
	r.Register("java/lang/StringBuilder", "toString", "()Ljava/lang/String;", func(host Host, args []object.Value) (object.Value, error) {
		obj, err := host.AllocateString(r.builders[args[0].Ref].String())
		return object.Value{Tag: object.TagRef, Ref: obj}, err
	})
	r.Register("java/lang/StringBuilder", "length", "()I", func(_ Host, args []object.Value) (object.Value, error) {
		return object.Value{Tag: object.TagInt, Int: int32(r.builders[args[0].Ref].Len())}, nil
	})
}

// javaStringHash reproduces String.hashCode's s[0]*31^(n-1) + ... + s[n-1]
// recurrence exactly, since user bytecode may rely on its specific values
// (e.g. as HashMap bucket indices or printed test output).
func javaStringHash(s string) int32 {
	var h int32
	for _, r := range s {
		if r >= 0x10000 {
			// Java hashes the UTF-16 surrogate pair, not the code point.
			r -= 0x10000
			h = 31*h + int32(0xD800+(r>>10))
			h = 31*h + int32(0xDC00+(r&0x3FF))
			continue
		}
		h = 31*h + int32(r)
	}
	return h
}

func stringIndexOutOfBounds() error {
	return fmt.Errorf("StringIndexOutOfBoundsException: index out of range")
}
