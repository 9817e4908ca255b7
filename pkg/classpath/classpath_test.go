package classpath

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// minimalClassBytes builds the smallest well-formed .class file decodable by
// pkg/classfile: a public class extending java/lang/Object with no members.
func minimalClassBytes(className string) []byte {
	var buf bytes.Buffer

	w16 := func(v uint16) { binary.Write(&buf, binary.BigEndian, v) }
	w32 := func(v uint32) { binary.Write(&buf, binary.BigEndian, v) }
	w8 := func(v uint8) { buf.WriteByte(v) }
	writeUtf8Entry := func(s string) {
		w8(1) // TagUtf8
		w16(uint16(len(s)))
		buf.WriteString(s)
	}

	w32(0xCAFEBABE)
	w16(0)  // minor
	w16(52) // major

	// constant pool: #1 Utf8 class name, #2 Class -> #1, #3 Utf8 "java/lang/Object", #4 Class -> #3
	w16(5) // count
	writeUtf8Entry(className)
	w8(7) // TagClass
	w16(1)
	writeUtf8Entry("java/lang/Object")
	w8(7) // TagClass
	w16(3)

	w16(0x0021) // ACC_PUBLIC | ACC_SUPER
	w16(2)      // this_class
	w16(4)      // super_class
	w16(0)      // interfaces
	w16(0)      // fields
	w16(0)      // methods
	w16(0)      // class attributes

	return buf.Bytes()
}

func TestDirectoryResolver(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "com", "example"), 0o755); err != nil {
		t.Fatal(err)
	}
	classPath := filepath.Join(dir, "com", "example", "Foo.class")
	if err := os.WriteFile(classPath, minimalClassBytes("com/example/Foo"), 0o644); err != nil {
		t.Fatal(err)
	}

	resolver := NewDirectoryResolver(dir)
	defer resolver.Close()

	cf, err := resolver.Resolve("com/example/Foo")
	if err != nil {
		t.Fatalf("resolving com/example/Foo: %v", err)
	}
	name, err := cf.ClassName()
	if err != nil {
		t.Fatalf("resolving class name: %v", err)
	}
	if name != "com/example/Foo" {
		t.Errorf("class name: got %q, want %q", name, "com/example/Foo")
	}

	if _, err := resolver.Resolve("com/example/Missing"); err == nil {
		t.Error("expected error resolving missing class, got nil")
	}
}

func TestJarResolver(t *testing.T) {
	dir := t.TempDir()
	jarPath := filepath.Join(dir, "lib.jar")

	f, err := os.Create(jarPath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("com/example/Bar.class")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(minimalClassBytes("com/example/Bar")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	resolver := NewJarResolver(jarPath)
	defer resolver.Close()

	cf, err := resolver.Resolve("com/example/Bar")
	if err != nil {
		t.Fatalf("resolving com/example/Bar: %v", err)
	}
	name, err := cf.ClassName()
	if err != nil {
		t.Fatalf("resolving class name: %v", err)
	}
	if name != "com/example/Bar" {
		t.Errorf("class name: got %q, want %q", name, "com/example/Bar")
	}
}

func TestPathSearchOrder(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	if err := os.WriteFile(filepath.Join(dirA, "Dup.class"), minimalClassBytes("Dup"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dirB, "Dup.class"), minimalClassBytes("DupFromB"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dirB, "OnlyB.class"), minimalClassBytes("OnlyB"), 0o644); err != nil {
		t.Fatal(err)
	}

	path := NewPath(NewDirectoryResolver(dirA), NewDirectoryResolver(dirB))
	defer path.Close()

	dup, err := path.Resolve("Dup")
	if err != nil {
		t.Fatalf("resolving Dup: %v", err)
	}
	dupName, err := dup.ClassName()
	if err != nil {
		t.Fatalf("resolving Dup class name: %v", err)
	}
	if dupName != "Dup" {
		t.Errorf("Dup resolved from the wrong resolver: got class %q, want %q from the first", dupName, "Dup")
	}
	if _, err := path.Resolve("OnlyB"); err != nil {
		t.Fatalf("resolving OnlyB from second resolver: %v", err)
	}
	if _, err := path.Resolve("Nowhere"); err == nil {
		t.Error("expected error resolving a class in no resolver, got nil")
	}
}
