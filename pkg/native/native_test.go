package native

import (
	"bytes"
	"io"
	"testing"

	"govm/pkg/object"
)

// fakeHost is a minimal Host good enough to exercise natives in isolation,
// without a real loader or heap behind it.
type fakeHost struct {
	out   bytes.Buffer
	nextID uint64
}

func (h *fakeHost) AllocateString(s string) (*object.Object, error) {
	units := make([]object.Value, 0, len(s))
	for _, r := range s {
		units = append(units, object.Value{Tag: object.TagInt, Int: int32(r)})
	}
	h.nextID++
	chars := &object.Object{Header: object.Header{Identity: h.nextID}, Kind: object.KindArrayInstance, ElementType: "C", Elements: units}
	h.nextID++
	return &object.Object{
		Header:    object.Header{Identity: h.nextID},
		Kind:      object.KindClassInstance,
		ClassName: "java/lang/String",
		Fields:    []object.Value{{Tag: object.TagRef, Ref: chars}},
	}, nil
}

func (h *fakeHost) AllocateArray(elementType string, length int) (*object.Object, error) {
	h.nextID++
	return object.NewArrayInstance(elementType, length, h.nextID), nil
}

func (h *fakeHost) AllocateClass(className string, fieldDescriptors []string) (*object.Object, error) {
	h.nextID++
	return object.NewClassInstance(className, fieldDescriptors, h.nextID), nil
}

func (h *fakeHost) Stdout() io.Writer { return &h.out }

func (h *fakeHost) InvokeVirtual(*object.Object, string, string) (object.Value, error) {
	return object.Value{}, nil
}

func newTestRegistry() (*Registry, *fakeHost) {
	host := &fakeHost{}
	return NewRegistry(host), host
}

func strVal(r *Registry, host *fakeHost, s string) object.Value {
	obj, err := host.AllocateString(s)
	if err != nil {
		panic(err)
	}
	return object.Value{Tag: object.TagRef, Ref: obj}
}

func TestHashMapNatives(t *testing.T) {
	t.Run("put and get", func(t *testing.T) {
		r, host := newTestRegistry()
		m, _ := host.AllocateClass("java/util/HashMap", nil)
		mv := object.Value{Tag: object.TagRef, Ref: m}
		if _, err := r.Call("java/util/HashMap", "<init>", "()V", []object.Value{mv}); err != nil {
			t.Fatalf("<init>: %v", err)
		}
		key := strVal(r, host, "key1")
		value := strVal(r, host, "value1")
		if _, err := r.Call("java/util/HashMap", "put", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;", []object.Value{mv, key, value}); err != nil {
			t.Fatalf("put: %v", err)
		}
		got, err := r.Call("java/util/HashMap", "get", "(Ljava/lang/Object;)Ljava/lang/Object;", []object.Value{mv, key})
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if object.StringContents(got.Ref) != "value1" {
			t.Errorf("get(key1): got %q, want %q", object.StringContents(got.Ref), "value1")
		}
	})

	t.Run("get missing key returns null", func(t *testing.T) {
		r, host := newTestRegistry()
		m, _ := host.AllocateClass("java/util/HashMap", nil)
		mv := object.Value{Tag: object.TagRef, Ref: m}
		r.Call("java/util/HashMap", "<init>", "()V", []object.Value{mv})

		got, err := r.Call("java/util/HashMap", "get", "(Ljava/lang/Object;)Ljava/lang/Object;", []object.Value{mv, strVal(r, host, "nonexistent")})
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Ref != nil {
			t.Errorf("get(nonexistent): got %v, want null", got)
		}
	})

	t.Run("overwrite value", func(t *testing.T) {
		r, host := newTestRegistry()
		m, _ := host.AllocateClass("java/util/HashMap", nil)
		mv := object.Value{Tag: object.TagRef, Ref: m}
		r.Call("java/util/HashMap", "<init>", "()V", []object.Value{mv})

		key := strVal(r, host, "key")
		r.Call("java/util/HashMap", "put", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;", []object.Value{mv, key, strVal(r, host, "old")})
		r.Call("java/util/HashMap", "put", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;", []object.Value{mv, key, strVal(r, host, "new")})

		got, _ := r.Call("java/util/HashMap", "get", "(Ljava/lang/Object;)Ljava/lang/Object;", []object.Value{mv, key})
		if object.StringContents(got.Ref) != "new" {
			t.Errorf("get(key) after overwrite: got %q, want %q", object.StringContents(got.Ref), "new")
		}
	})

	t.Run("size tracks distinct keys", func(t *testing.T) {
		r, host := newTestRegistry()
		m, _ := host.AllocateClass("java/util/HashMap", nil)
		mv := object.Value{Tag: object.TagRef, Ref: m}
		r.Call("java/util/HashMap", "<init>", "()V", []object.Value{mv})

		for _, k := range []string{"a", "b", "c"} {
			r.Call("java/util/HashMap", "put", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;", []object.Value{mv, strVal(r, host, k), strVal(r, host, k)})
		}
		got, _ := r.Call("java/util/HashMap", "size", "()I", []object.Value{mv})
		if got.Int != 3 {
			t.Errorf("size: got %d, want 3", got.Int)
		}
	})

	t.Run("integer keys compare by value", func(t *testing.T) {
		r, host := newTestRegistry()
		m, _ := host.AllocateClass("java/util/HashMap", nil)
		mv := object.Value{Tag: object.TagRef, Ref: m}
		r.Call("java/util/HashMap", "<init>", "()V", []object.Value{mv})

		box0, _ := r.Call("java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;", []object.Value{{Tag: object.TagInt, Int: 0}})
		box0Again, _ := r.Call("java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;", []object.Value{{Tag: object.TagInt, Int: 0}})
		r.Call("java/util/HashMap", "put", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;", []object.Value{mv, box0, {Tag: object.TagInt, Int: 1}})

		got, _ := r.Call("java/util/HashMap", "get", "(Ljava/lang/Object;)Ljava/lang/Object;", []object.Value{mv, box0Again})
		if got.Int != 1 {
			t.Errorf("get(boxed 0): got %v, want int(1)", got)
		}
	})
}

func TestIntegerBoxing(t *testing.T) {
	t.Run("valueOf and intValue roundtrip", func(t *testing.T) {
		r, _ := newTestRegistry()
		boxed, err := r.Call("java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;", []object.Value{{Tag: object.TagInt, Int: 42}})
		if err != nil {
			t.Fatalf("valueOf: %v", err)
		}
		got, err := r.Call("java/lang/Integer", "intValue", "()I", []object.Value{boxed})
		if err != nil {
			t.Fatalf("intValue: %v", err)
		}
		if got.Int != 42 {
			t.Errorf("intValue(valueOf(42)): got %d, want 42", got.Int)
		}
	})

	t.Run("valueOf preserves negative value", func(t *testing.T) {
		r, _ := newTestRegistry()
		boxed, _ := r.Call("java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;", []object.Value{{Tag: object.TagInt, Int: -100}})
		got, _ := r.Call("java/lang/Integer", "intValue", "()I", []object.Value{boxed})
		if got.Int != -100 {
			t.Errorf("intValue(valueOf(-100)): got %d, want -100", got.Int)
		}
	})

	t.Run("distinct values box distinctly", func(t *testing.T) {
		r, _ := newTestRegistry()
		a, _ := r.Call("java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;", []object.Value{{Tag: object.TagInt, Int: 10}})
		b, _ := r.Call("java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;", []object.Value{{Tag: object.TagInt, Int: 20}})
		av, _ := r.Call("java/lang/Integer", "intValue", "()I", []object.Value{a})
		bv, _ := r.Call("java/lang/Integer", "intValue", "()I", []object.Value{b})
		if av.Int == bv.Int {
			t.Errorf("valueOf(10) and valueOf(20) should be different")
		}
	})
}

func TestStringBuilderNatives(t *testing.T) {
	r, host := newTestRegistry()
	sb, _ := host.AllocateClass("java/lang/StringBuilder", nil)
	sbv := object.Value{Tag: object.TagRef, Ref: sb}
	if _, err := r.Call("java/lang/StringBuilder", "<init>", "()V", []object.Value{sbv}); err != nil {
		t.Fatalf("<init>: %v", err)
	}

	r.Call("java/lang/StringBuilder", "append", "(Ljava/lang/String;)Ljava/lang/StringBuilder;", []object.Value{sbv, strVal(r, host, "count: ")})
	r.Call("java/lang/StringBuilder", "append", "(I)Ljava/lang/StringBuilder;", []object.Value{sbv, {Tag: object.TagInt, Int: 7}})

	got, err := r.Call("java/lang/StringBuilder", "toString", "()Ljava/lang/String;", []object.Value{sbv})
	if err != nil {
		t.Fatalf("toString: %v", err)
	}
	if want := "count: 7"; object.StringContents(got.Ref) != want {
		t.Errorf("toString: got %q, want %q", object.StringContents(got.Ref), want)
	}
}

func TestUnregisteredNativeFails(t *testing.T) {
	r, _ := newTestRegistry()
	if _, err := r.Call("com/example/Nope", "missing", "()V", nil); err == nil {
		t.Errorf("Call on unregistered native: got nil error, want UnsatisfiedLinkError")
	}
}

func TestSystemArraycopy(t *testing.T) {
	r, host := newTestRegistry()
	src, _ := host.AllocateArray("I", 3)
	dst, _ := host.AllocateArray("I", 3)
	for i := range src.Elements {
		src.Elements[i] = object.Value{Tag: object.TagInt, Int: int32(i + 1)}
	}
	args := []object.Value{
		{Tag: object.TagRef, Ref: src}, {Tag: object.TagInt, Int: 0},
		{Tag: object.TagRef, Ref: dst}, {Tag: object.TagInt, Int: 0},
		{Tag: object.TagInt, Int: 3},
	}
	if _, err := r.Call("java/lang/System", "arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V", args); err != nil {
		t.Fatalf("arraycopy: %v", err)
	}
	for i, want := range []int32{1, 2, 3} {
		if dst.Elements[i].Int != want {
			t.Errorf("dst[%d]: got %d, want %d", i, dst.Elements[i].Int, want)
		}
	}
}
