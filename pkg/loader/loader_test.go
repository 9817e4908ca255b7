package loader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"govm/pkg/classfile"
	"govm/pkg/classpath"
)

// builder assembles minimal .class files for loader tests. Constant pool
// slots are numbered explicitly rather than tracked through a running
// counter, since each build shape (with/without superclass, field,
// interface) lays the pool out differently.
type builder struct{}

func newBuilder() *builder { return &builder{} }

func (b *builder) build(className, superName string, fieldName, fieldDesc string, isInterface bool) []byte {
	var out bytes.Buffer
	w16 := func(v uint16) { binary.Write(&out, binary.BigEndian, v) }
	w32 := func(v uint32) { binary.Write(&out, binary.BigEndian, v) }
	w8 := func(v uint8) { out.WriteByte(v) }
	utf8 := func(s string) {
		w8(1)
		w16(uint16(len(s)))
		out.WriteString(s)
	}
	class := func(nameIdx uint16) {
		w8(7)
		w16(nameIdx)
	}

	w32(0xCAFEBABE)
	w16(0)
	w16(52)

	// slot1: Utf8(className), slot2: Class(1)
	// if super: slot3: Utf8(superName), slot4: Class(3)
	// if field: next two slots: Utf8(fieldName), Utf8(fieldDesc)
	next := uint16(3)
	var superClassIdx, fieldNameIdx, fieldDescIdx uint16
	if superName != "" {
		next += 2
	}
	if fieldName != "" {
		fieldNameIdx = next
		fieldDescIdx = next + 1
		next += 2
	}
	poolCount := next

	w16(poolCount)
	utf8(className)
	class(1)
	if superName != "" {
		utf8(superName)
		class(3)
		superClassIdx = 4
	}
	if fieldName != "" {
		utf8(fieldName)
		utf8(fieldDesc)
	}

	flags := uint16(classfile.AccPublic | classfile.AccSuper)
	if isInterface {
		flags |= classfile.AccInterface | classfile.AccAbstract
	}
	w16(flags)
	w16(2)             // this_class
	w16(superClassIdx) // super_class (0 means none)
	w16(0)             // interfaces

	if fieldName != "" {
		w16(1) // fields_count
		w16(0) // access flags
		w16(fieldNameIdx)
		w16(fieldDescIdx)
		w16(0) // field attributes
	} else {
		w16(0)
	}

	w16(0) // methods
	w16(0) // class attributes

	return out.Bytes()
}

// buildImplementing builds a class with a non-empty superclass and exactly
// one entry in its interfaces list, exercising the loader's
// not-an-interface check independently of the superclass path.
func (b *builder) buildImplementing(className, superName, interfaceName string) []byte {
	var out bytes.Buffer
	w16 := func(v uint16) { binary.Write(&out, binary.BigEndian, v) }
	w32 := func(v uint32) { binary.Write(&out, binary.BigEndian, v) }
	w8 := func(v uint8) { out.WriteByte(v) }
	utf8 := func(s string) {
		w8(1)
		w16(uint16(len(s)))
		out.WriteString(s)
	}
	class := func(nameIdx uint16) {
		w8(7)
		w16(nameIdx)
	}

	w32(0xCAFEBABE)
	w16(0)
	w16(52)

	// slot1: Utf8(className), slot2: Class(1)
	// slot3: Utf8(superName), slot4: Class(3)
	// slot5: Utf8(interfaceName), slot6: Class(5)
	w16(7)
	utf8(className)
	class(1)
	utf8(superName)
	class(3)
	utf8(interfaceName)
	class(5)

	w16(uint16(classfile.AccPublic | classfile.AccSuper))
	w16(2) // this_class
	w16(4) // super_class
	w16(1) // interfaces_count
	w16(6) // interfaces[0]

	w16(0) // fields
	w16(0) // methods
	w16(0) // class attributes

	return out.Bytes()
}

func writeClass(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	full := filepath.Join(dir, name+".class")
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadResolvesSuperclassAndLayout(t *testing.T) {
	dir := t.TempDir()

	writeClass(t, dir, "java/lang/Object", newBuilder().build("java/lang/Object", "", "", "", false))
	writeClass(t, dir, "Base", newBuilder().build("Base", "java/lang/Object", "x", "I", false))
	writeClass(t, dir, "Derived", newBuilder().build("Derived", "Base", "y", "I", false))

	path := classpath.NewPath(classpath.NewDirectoryResolver(dir))
	l := New(path)

	derived, err := l.Load("Derived")
	if err != nil {
		t.Fatalf("loading Derived: %v", err)
	}

	if len(derived.InstanceFields) != 2 {
		t.Fatalf("expected 2 instance fields (inherited x, own y), got %d", len(derived.InstanceFields))
	}
	if derived.InstanceFields[0].Name != "x" || derived.InstanceFields[1].Name != "y" {
		t.Errorf("field order: got %v", derived.InstanceFields)
	}
	if derived.InstanceFieldIndex["x"] != 0 || derived.InstanceFieldIndex["y"] != 1 {
		t.Errorf("field index map: got %v", derived.InstanceFieldIndex)
	}
	if !derived.IsSubclassOf(derived.Super) {
		t.Error("expected Derived to be a subclass of Base")
	}
}

func TestLoadMissingClassReturnsClassNotFoundError(t *testing.T) {
	dir := t.TempDir()
	path := classpath.NewPath(classpath.NewDirectoryResolver(dir))
	l := New(path)

	_, err := l.Load("DoesNotExist")
	if err == nil {
		t.Fatal("expected error loading a missing class")
	}
	var notFound *ClassNotFoundError
	if !asClassNotFound(err, &notFound) {
		t.Errorf("expected *ClassNotFoundError, got %T: %v", err, err)
	}
}

func asClassNotFound(err error, target **ClassNotFoundError) bool {
	if cnf, ok := err.(*ClassNotFoundError); ok {
		*target = cnf
		return true
	}
	return false
}

func TestNonInterfaceInInterfacesListIsRejected(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "java/lang/Object", newBuilder().build("java/lang/Object", "", "", "", false))
	writeClass(t, dir, "SomeInterface", newBuilder().build("SomeInterface", "java/lang/Object", "", "", true))
	writeClass(t, dir, "NotAnInterface", newBuilder().build("NotAnInterface", "java/lang/Object", "", "", false))
	writeClass(t, dir, "GoodImpl", newBuilder().buildImplementing("GoodImpl", "java/lang/Object", "SomeInterface"))
	writeClass(t, dir, "BadImpl", newBuilder().buildImplementing("BadImpl", "java/lang/Object", "NotAnInterface"))

	path := classpath.NewPath(classpath.NewDirectoryResolver(dir))
	l := New(path)

	good, err := l.Load("GoodImpl")
	if err != nil {
		t.Fatalf("loading a class implementing an actual interface: %v", err)
	}
	iface, err := l.Load("SomeInterface")
	if err != nil {
		t.Fatalf("loading interface: %v", err)
	}
	if !good.ImplementsInterface(iface) {
		t.Error("expected GoodImpl to implement SomeInterface")
	}

	_, err = l.Load("BadImpl")
	if err == nil {
		t.Fatal("expected an error loading a class that names a non-interface in its interfaces list")
	}
	if !errors.Is(err, ErrNotAnInterface) {
		t.Errorf("expected ErrNotAnInterface, got %v", err)
	}
}

func TestEnsureInitializedAllowsSameChainReentry(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, "java/lang/Object", newBuilder().build("java/lang/Object", "", "", "", false))
	writeClass(t, dir, "Self", newBuilder().build("Self", "java/lang/Object", "", "", false))

	path := classpath.NewPath(classpath.NewDirectoryResolver(dir))
	l := New(path)
	l.SetLinker(&recursingLinker{loader: l})

	self, err := l.Load("Self")
	if err != nil {
		t.Fatalf("loading Self: %v", err)
	}

	if err := l.EnsureInitialized(self); err != nil {
		t.Fatalf("same-chain re-entry should return nil, got %v", err)
	}
	if self.InitState != Initialized {
		t.Errorf("expected Self to end up Initialized, got %v", self.InitState)
	}
}

// recursingLinker simulates a <clinit> that re-enters EnsureInitialized on
// its own class, same call stack, before the class has finished initializing.
type recursingLinker struct {
	loader *Loader
}

func (r *recursingLinker) RunClinit(class *LoadedClass) error {
	return r.loader.EnsureInitialized(class)
}
