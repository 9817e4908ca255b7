// Package object defines the runtime object model: headers, class instances
// and array instances that the heap allocates and the interpreter operates
// on.
package object

import "fmt"

// Kind distinguishes the two shapes an Object can take.
type Kind uint8

const (
	KindClassInstance Kind = iota
	KindArrayInstance
)

// Header is the bookkeeping every heap object carries regardless of kind:
// the collector's mark bit, which generation it currently lives in, and a
// monotonic identity assigned at construction (used for identity hashCode
// and reference equality).
type Header struct {
	Marked     bool
	Generation uint8
	Identity   uint64
}

// Monitor is the placeholder the spec calls for: enough state to make
// monitorexit-without-monitorenter detectable, without implementing real
// mutual exclusion in a single-threaded interpreter.
type Monitor struct {
	Held  bool
	Depth int
}

// Object is a heap-allocated value: either a ClassInstance or an
// ArrayInstance, distinguished by Kind. ClassName and ElementType are valid
// only for the matching Kind.
type Object struct {
	Header  Header
	Kind    Kind
	Monitor Monitor

	// KindClassInstance
	ClassName string
	Fields    []Value

	// KindArrayInstance
	ElementType string
	Elements    []Value
}

// Value is the tagged union of everything that can sit in a local slot, an
// operand stack entry, a field or an array element. Exactly one of the
// numeric fields is meaningful, selected by Tag.
type Tag uint8

const (
	TagDefault Tag = iota
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagRef
)

type Value struct {
	Tag   Tag
	Int   int32
	Long  int64
	Float float32
	Dbl   float64
	Ref   *Object // nil means the Java null reference when Tag == TagRef
}

func (v Value) String() string {
	switch v.Tag {
	case TagDefault:
		return "<default>"
	case TagInt:
		return fmt.Sprintf("int(%d)", v.Int)
	case TagLong:
		return fmt.Sprintf("long(%d)", v.Long)
	case TagFloat:
		return fmt.Sprintf("float(%v)", v.Float)
	case TagDouble:
		return fmt.Sprintf("double(%v)", v.Dbl)
	case TagRef:
		if v.Ref == nil {
			return "ref(null)"
		}
		return fmt.Sprintf("ref(#%d)", v.Ref.Header.Identity)
	default:
		return "<invalid>"
	}
}

// IsReference reports whether v is a (possibly null) reference value.
func (v Value) IsReference() bool { return v.Tag == TagRef }

// ZeroInt, ZeroLong, ... are convenience constructors for the zero value of
// each Value kind, used when laying out fresh fields, array elements and
// default locals.
func ZeroInt() Value    { return Value{Tag: TagInt} }
func ZeroLong() Value   { return Value{Tag: TagLong} }
func ZeroFloat() Value  { return Value{Tag: TagFloat} }
func ZeroDouble() Value { return Value{Tag: TagDouble} }
func NullRef() Value    { return Value{Tag: TagRef} }
func Default() Value    { return Value{Tag: TagDefault} }

// ZeroForDescriptor returns the zero value appropriate for a field or array
// element descriptor: numeric primitive descriptors get their numeric zero,
// everything else (object and array descriptors) gets null.
func ZeroForDescriptor(descriptor string) Value {
	if len(descriptor) == 0 {
		return NullRef()
	}
	switch descriptor[0] {
	case 'J':
		return ZeroLong()
	case 'F':
		return ZeroFloat()
	case 'D':
		return ZeroDouble()
	case 'Z', 'B', 'C', 'S', 'I':
		return ZeroInt()
	default: // 'L' or '['
		return NullRef()
	}
}

// NewClassInstance builds a fresh, zeroed ClassInstance. fieldDescriptors is
// indexed identically to the eventual Fields slice and supplies the zero
// value for each slot.
func NewClassInstance(className string, fieldDescriptors []string, identity uint64) *Object {
	fields := make([]Value, len(fieldDescriptors))
	for i, d := range fieldDescriptors {
		fields[i] = ZeroForDescriptor(d)
	}
	return &Object{
		Header:    Header{Identity: identity},
		Kind:      KindClassInstance,
		ClassName: className,
		Fields:    fields,
	}
}

// NewArrayInstance builds a fresh, zeroed array of the given length and
// element type descriptor (a single-letter primitive code, or "L<name>;"/
// "[..." for reference element types).
func NewArrayInstance(elementType string, length int, identity uint64) *Object {
	elements := make([]Value, length)
	zero := ZeroForDescriptor(elementType)
	for i := range elements {
		elements[i] = zero
	}
	return &Object{
		Header:      Header{Identity: identity},
		Kind:        KindArrayInstance,
		ElementType: elementType,
		Elements:    elements,
	}
}

// Length returns the array length, or -1 if this object is not an array.
func (o *Object) Length() int {
	if o.Kind != KindArrayInstance {
		return -1
	}
	return len(o.Elements)
}

// StringContents decodes the Go string backing a java/lang/String
// instance's char-array field, the inverse of the encoding Heap.
// AllocateString performs.
func StringContents(str *Object) string {
	if str == nil || len(str.Fields) == 0 || str.Fields[0].Ref == nil {
		return ""
	}
	elements := str.Fields[0].Ref.Elements
	units := make([]uint16, len(elements))
	for i, v := range elements {
		units[i] = uint16(v.Int)
	}
	return utf16ToString(units)
}

func utf16ToString(units []uint16) string {
	var b []rune
	for i := 0; i < len(units); i++ {
		u := units[i]
		if u >= 0xD800 && u <= 0xDBFF && i+1 < len(units) && units[i+1] >= 0xDC00 && units[i+1] <= 0xDFFF {
			r := 0x10000 + (rune(u)-0xD800)<<10 + (rune(units[i+1]) - 0xDC00)
			b = append(b, r)
			i++
			continue
		}
		b = append(b, rune(u))
	}
	return string(b)
}
