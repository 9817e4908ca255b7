package native

import "govm/pkg/object"

// NativeHashMap backs a single java/util/HashMap instance. The JVM-visible
// object carries no state of its own (it has no declared fields in this
// interpreter), so Registry keeps one of these per instance, keyed by the
// instance's identity, and these natives look it up on every call.
type NativeHashMap struct {
	data map[interface{}]object.Value
}

func newNativeHashMap() *NativeHashMap {
	return &NativeHashMap{data: make(map[interface{}]object.Value)}
}

// Get returns the stored value for key, and whether it was present.
func (m *NativeHashMap) Get(key interface{}) (object.Value, bool) {
	v, ok := m.data[key]
	return v, ok
}

// Put stores a key-value pair and returns the previous value, if any.
func (m *NativeHashMap) Put(key interface{}, value object.Value) (object.Value, bool) {
	old, had := m.data[key]
	m.data[key] = value
	return old, had
}

// Remove deletes key and returns its prior value, if any.
func (m *NativeHashMap) Remove(key interface{}) (object.Value, bool) {
	old, had := m.data[key]
	delete(m.data, key)
	return old, had
}

// registerHashMap installs java/util/HashMap's native backing. Keys are
// normalized by mapKey so that two boxed Integers (or two Strings) with
// equal contents collide the way Java's equals/hashCode contract requires,
// rather than comparing by object identity.
func registerHashMap(r *Registry) {
	r.Register("java/util/HashMap", "<init>", "()V", func(_ Host, args []object.Value) (object.Value, error) {
		r.maps[args[0].Ref] = newNativeHashMap()
		return object.Value{}, nil
	})
	r.Register("java/util/HashMap", "put", "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;", func(_ Host, args []object.Value) (object.Value, error) {
		m := r.maps[args[0].Ref]
		old, had := m.Put(mapKey(args[1]), args[2])
		if !had {
			return object.Value{Tag: object.TagRef}, nil
		}
		return old, nil
	})
	r.Register("java/util/HashMap", "get", "(Ljava/lang/Object;)Ljava/lang/Object;", func(_ Host, args []object.Value) (object.Value, error) {
		m := r.maps[args[0].Ref]
		v, ok := m.Get(mapKey(args[1]))
		if !ok {
			return object.Value{Tag: object.TagRef}, nil
		}
		return v, nil
	})
	r.Register("java/util/HashMap", "remove", "(Ljava/lang/Object;)Ljava/lang/Object;", func(_ Host, args []object.Value) (object.Value, error) {
		m := r.maps[args[0].Ref]
		v, ok := m.Remove(mapKey(args[1]))
		if !ok {
			return object.Value{Tag: object.TagRef}, nil
		}
		return v, nil
	})
	r.Register("java/util/HashMap", "containsKey", "(Ljava/lang/Object;)Z", func(_ Host, args []object.Value) (object.Value, error) {
		m := r.maps[args[0].Ref]
		_, ok := m.Get(mapKey(args[1]))
		return boolValue(ok), nil
	})
	r.Register("java/util/HashMap", "size", "()I", func(_ Host, args []object.Value) (object.Value, error) {
		m := r.maps[args[0].Ref]
		return object.Value{Tag: object.TagInt, Int: int32(len(m.data))}, nil
	})
}

// mapKey normalizes a HashMap key argument so boxed primitives and strings
// compare by content: a String's decoded contents, the value of the lone
// field of any other object with exactly one field (which covers the boxed
// wrappers), or (for anything else) the object's own identity.
func mapKey(v object.Value) interface{} {
	if v.Tag != object.TagRef || v.Ref == nil {
		return nil
	}
	if v.Ref.ClassName == "java/lang/String" {
		return object.StringContents(v.Ref)
	}
	if len(v.Ref.Fields) == 1 {
		return v.Ref.Fields[0]
	}
	return v.Ref
}
