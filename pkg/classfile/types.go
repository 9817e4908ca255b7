package classfile

// ClassFile is the fully decoded image of a single .class file: magic,
// version, constant pool, access flags, hierarchy references, members and
// class-level attributes. It is produced once by Decode and is treated as
// immutable afterward — the loader builds a mutable LoadedClass on top of it.
type ClassFile struct {
	MinorVersion     uint16
	MajorVersion     uint16
	ConstantPool     []ConstantPoolEntry
	AccessFlags      uint16
	ThisClass        uint16
	SuperClass       uint16
	Interfaces       []uint16
	Fields           []FieldInfo
	Methods          []MethodInfo
	BootstrapMethods []BootstrapMethod
	SourceFile       string
	Attributes       []AttributeInfo
}

// FieldInfo describes one declared field.
type FieldInfo struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Attributes  []AttributeInfo
}

// MethodInfo describes one declared method.
type MethodInfo struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Attributes  []AttributeInfo
	Code        *CodeAttribute
}

// AttributeInfo is a raw, name-resolved attribute. Attributes the decoder
// does not specifically understand are kept in this opaque form so unknown
// attributes never fault the decoder.
type AttributeInfo struct {
	Name string
	Data []byte
}

// ExceptionHandler is one row of a Code attribute's exception table, in
// original byte addresses.
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

// LineNumberEntry maps a byte address to a source line.
type LineNumberEntry struct {
	StartPC    uint16
	LineNumber uint16
}

// CodeAttribute is the decoded Code attribute of a method: stack/locals
// limits, the decoded instruction sequence, the exception table and a
// memoized address-to-sequence-index map used to resolve branch targets.
type CodeAttribute struct {
	MaxStack          uint16
	MaxLocals         uint16
	Raw               []byte
	Instructions      []Instruction
	ExceptionHandlers []ExceptionHandler
	LineNumbers       []LineNumberEntry
	Attributes        []AttributeInfo

	addrToIndex map[uint32]int
}

// IndexForAddress converts a byte address (as used by branch offsets and the
// exception table) into an index into Instructions. The second return value
// is false if no instruction begins at that address.
func (c *CodeAttribute) IndexForAddress(addr uint32) (int, bool) {
	idx, ok := c.addrToIndex[addr]
	return idx, ok
}

// BootstrapMethod is one entry of the BootstrapMethods attribute, used by
// invokedynamic/Dynamic constant pool entries. Bootstrap methods are decoded
// but, per the engine's scope, only a small fixed set of well-known
// bootstraps (LambdaMetafactory, StringConcatFactory) are actually executed.
type BootstrapMethod struct {
	MethodRef          uint16
	BootstrapArguments []uint16
}

// ClassName returns the fully qualified (slash-separated) name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return ResolveClassName(cf.ConstantPool, cf.ThisClass)
}

// SuperClassName returns the superclass name, or "" if this class has none
// (only java/lang/Object has no superclass).
func (cf *ClassFile) SuperClassName() string {
	if cf.SuperClass == 0 {
		return ""
	}
	name, err := ResolveClassName(cf.ConstantPool, cf.SuperClass)
	if err != nil {
		return ""
	}
	return name
}

// InterfaceNames resolves every implemented/extended interface name.
func (cf *ClassFile) InterfaceNames() ([]string, error) {
	names := make([]string, len(cf.Interfaces))
	for i, idx := range cf.Interfaces {
		name, err := ResolveClassName(cf.ConstantPool, idx)
		if err != nil {
			return nil, err
		}
		names[i] = name
	}
	return names, nil
}

// FindMethod finds a method by name and descriptor, declared directly on
// this class (no hierarchy walk).
func (cf *ClassFile) FindMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name && cf.Methods[i].Descriptor == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}

// FindField finds a field declared directly on this class.
func (cf *ClassFile) FindField(name string) *FieldInfo {
	for i := range cf.Fields {
		if cf.Fields[i].Name == name {
			return &cf.Fields[i]
		}
	}
	return nil
}

// IsInterface reports whether the ACC_INTERFACE flag is set.
func (cf *ClassFile) IsInterface() bool {
	return cf.AccessFlags&AccInterface != 0
}
