package loader

import (
	"govm/pkg/classfile"
	"govm/pkg/object"
)

// InitState tracks a class's progress through <clinit>, monotonically:
// Uninitialized -> InProgress -> Initialized. It never regresses.
type InitState uint8

const (
	Uninitialized InitState = iota
	InProgress
	Initialized
)

// FieldSlot records one slot of a class's instance field layout: the
// declaring class (for access checks) and the field's own name/descriptor.
// Its position in the flattened layout is its index in the slice holding it.
type FieldSlot struct {
	DeclaringClass string
	Name           string
	Descriptor     string
}

// MethodKey identifies a method by name and descriptor, the pair every
// dispatch site resolves against.
type MethodKey struct {
	Name       string
	Descriptor string
}

// LoadedClass is the linked, laid-out form of a decoded ClassFile: field
// slots flattened across the hierarchy, a name/descriptor-indexed method
// table, static storage, and the class-initialization state machine.
type LoadedClass struct {
	Name       string
	Super      *LoadedClass // nil only for java/lang/Object
	SuperName  string
	Interfaces []*LoadedClass

	ConstantPool []classfile.ConstantPoolEntry
	AccessFlags  uint16

	// Instance layout: superclass fields first, then this class's own
	// declared fields in declaration order.
	InstanceFields      []FieldSlot
	InstanceFieldIndex  map[string]int // name -> slot
	instanceDescriptors []string       // slot -> descriptor, used for zeroing new instances

	// Static storage, declared directly on this class only.
	StaticFields     []FieldSlot
	StaticValues     []object.Value
	StaticFieldIndex map[string]int

	// MethodTable maps (name, descriptor) to the method declared directly
	// on this class. Inherited methods are resolved by walking Super at
	// dispatch time, not copied into this table.
	MethodTable map[MethodKey]*classfile.MethodInfo
	Methods     []classfile.MethodInfo

	SourceFile       string
	BootstrapMethods []classfile.BootstrapMethod

	InitState InitState
}

// IsInterface reports whether this class was declared with ACC_INTERFACE.
func (c *LoadedClass) IsInterface() bool {
	return c.AccessFlags&classfile.AccInterface != 0
}

// FindMethod looks up a method declared directly on this class (no
// hierarchy walk); used for <clinit> and main lookup and as the per-class
// step of the ResolveVirtual and static-method walks.
func (c *LoadedClass) FindMethod(name, descriptor string) *classfile.MethodInfo {
	return c.MethodTable[MethodKey{Name: name, Descriptor: descriptor}]
}

// ResolveVirtual walks this class and its superclasses for the first
// declaration of (name, descriptor), then, if none declares it, every
// interface they implement (transitively); the override rule invokevirtual
// and invokeinterface both bottom out in.
func (c *LoadedClass) ResolveVirtual(name, descriptor string) (*LoadedClass, *classfile.MethodInfo) {
	for cur := c; cur != nil; cur = cur.Super {
		if m := cur.FindMethod(name, descriptor); m != nil {
			return cur, m
		}
	}
	for _, iface := range c.allInterfaces() {
		if m := iface.FindMethod(name, descriptor); m != nil {
			return iface, m
		}
	}
	return nil, nil
}

// ImplementsInterface reports whether this class implements iface, directly,
// via a superclass, or transitively via another implemented interface.
func (c *LoadedClass) ImplementsInterface(iface *LoadedClass) bool {
	for _, candidate := range c.allInterfaces() {
		if candidate == iface || candidate.Name == iface.Name {
			return true
		}
	}
	return false
}

func (c *LoadedClass) allInterfaces() []*LoadedClass {
	var out []*LoadedClass
	seen := make(map[string]bool)
	var visit func(*LoadedClass)
	visit = func(k *LoadedClass) {
		if k == nil {
			return
		}
		for _, iface := range k.Interfaces {
			if !seen[iface.Name] {
				seen[iface.Name] = true
				out = append(out, iface)
				visit(iface)
			}
		}
		visit(k.Super)
	}
	visit(c)
	return out
}

// IsSubclassOf reports whether c is class or a (transitive) subclass of it.
func (c *LoadedClass) IsSubclassOf(class *LoadedClass) bool {
	for cur := c; cur != nil; cur = cur.Super {
		if cur == class || cur.Name == class.Name {
			return true
		}
	}
	return false
}

// IsSubtypeOf reports whether c is assignable to target: either by class
// inheritance or by implementing target as an interface.
func (c *LoadedClass) IsSubtypeOf(target *LoadedClass) bool {
	if target.IsInterface() {
		return c.ImplementsInterface(target) || c.Name == target.Name
	}
	return c.IsSubclassOf(target)
}

// NewInstanceFieldDescriptors returns the per-slot descriptors used to zero
// a fresh ClassInstance's fields, in slot order.
func (c *LoadedClass) NewInstanceFieldDescriptors() []string {
	return c.instanceDescriptors
}
