package classfile

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// classBuilder assembles a minimal, well-formed .class file byte-by-byte so
// the decoder tests don't depend on a prebuilt javac fixture on disk.
type classBuilder struct {
	pool   []ConstantPoolEntry // 1-indexed, pool[0] unused
	buf    bytes.Buffer
}

func newClassBuilder() *classBuilder {
	return &classBuilder{pool: []ConstantPoolEntry{nil}}
}

func (b *classBuilder) addUtf8(s string) uint16 {
	b.pool = append(b.pool, &ConstantUtf8{Value: s})
	return uint16(len(b.pool) - 1)
}

func (b *classBuilder) addClass(nameIndex uint16) uint16 {
	b.pool = append(b.pool, &ConstantClass{NameIndex: nameIndex})
	return uint16(len(b.pool) - 1)
}

func (b *classBuilder) w16(v uint16) { binary.Write(&b.buf, binary.BigEndian, v) }
func (b *classBuilder) w32(v uint32) { binary.Write(&b.buf, binary.BigEndian, v) }
func (b *classBuilder) w8(v uint8)   { b.buf.WriteByte(v) }

// build produces the full class file bytes for a single class named
// className, extending java/lang/Object, with one method whose raw bytecode
// is code and whose max stack/locals are supplied directly.
func (b *classBuilder) build(className string, code []byte, maxStack, maxLocals uint16) []byte {
	thisName := b.addUtf8(className)
	thisClass := b.addClass(thisName)
	superName := b.addUtf8("java/lang/Object")
	superClass := b.addClass(superName)
	methodName := b.addUtf8("run")
	methodDesc := b.addUtf8("()V")
	codeAttrName := b.addUtf8("Code")

	b.w32(classMagic)
	b.w16(0)  // minor
	b.w16(52) // major

	b.w16(uint16(len(b.pool))) // constant_pool_count
	for i := 1; i < len(b.pool); i++ {
		switch e := b.pool[i].(type) {
		case *ConstantUtf8:
			b.w8(TagUtf8)
			raw := encodeModifiedUTF8(e.Value)
			b.w16(uint16(len(raw)))
			b.buf.Write(raw)
		case *ConstantClass:
			b.w8(TagClass)
			b.w16(e.NameIndex)
		}
	}

	b.w16(AccPublic | AccSuper) // access_flags
	b.w16(thisClass)
	b.w16(superClass)
	b.w16(0) // interfaces_count
	b.w16(0) // fields_count

	b.w16(1) // methods_count
	b.w16(AccPublic | AccStatic)
	b.w16(methodName)
	b.w16(methodDesc)
	b.w16(1) // method attributes_count

	var codeAttr bytes.Buffer
	binary.Write(&codeAttr, binary.BigEndian, maxStack)
	binary.Write(&codeAttr, binary.BigEndian, maxLocals)
	binary.Write(&codeAttr, binary.BigEndian, uint32(len(code)))
	codeAttr.Write(code)
	binary.Write(&codeAttr, binary.BigEndian, uint16(0)) // exception_table_count
	binary.Write(&codeAttr, binary.BigEndian, uint16(0)) // attributes_count

	b.w16(codeAttrName)
	b.w32(uint32(codeAttr.Len()))
	b.buf.Write(codeAttr.Bytes())

	b.w16(0) // class attributes_count

	return b.buf.Bytes()
}

func TestDecodeMinimalClass(t *testing.T) {
	code := []byte{0xb1} // return
	data := newClassBuilder().build("Sample", code, 1, 1)

	cf, err := Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding minimal class: %v", err)
	}

	if cf.MajorVersion != 52 {
		t.Errorf("major version: got %d, want 52", cf.MajorVersion)
	}

	name, err := cf.ClassName()
	if err != nil {
		t.Fatalf("resolving class name: %v", err)
	}
	if name != "Sample" {
		t.Errorf("class name: got %q, want %q", name, "Sample")
	}

	if cf.SuperClassName() != "java/lang/Object" {
		t.Errorf("super class: got %q, want java/lang/Object", cf.SuperClassName())
	}

	method := cf.FindMethod("run", "()V")
	if method == nil {
		t.Fatal("run()V method not found")
	}
	if method.Code == nil {
		t.Fatal("run method has no Code attribute")
	}
	if method.Code.MaxStack != 1 || method.Code.MaxLocals != 1 {
		t.Errorf("code limits: got stack=%d locals=%d, want 1/1", method.Code.MaxStack, method.Code.MaxLocals)
	}
	if len(method.Code.Instructions) != 1 {
		t.Fatalf("expected 1 decoded instruction, got %d", len(method.Code.Instructions))
	}
	if method.Code.Instructions[0].Op.Mnemonic != "return" {
		t.Errorf("instruction: got %q, want %q", method.Code.Instructions[0].Op.Mnemonic, "return")
	}
}

func TestDecodeInvalidMagic(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{0xDE, 0xAD, 0xBE, 0xEF}))
	if err == nil {
		t.Error("expected error for invalid magic number, got nil")
	}
}

func TestDecodeTruncated(t *testing.T) {
	data := newClassBuilder().build("Sample", []byte{0xb1}, 1, 1)
	_, err := Decode(bytes.NewReader(data[:len(data)-10]))
	if err == nil {
		t.Error("expected error decoding truncated class file, got nil")
	}
}

func TestModifiedUTF8RoundTrip(t *testing.T) {
	cases := []string{
		"",
		"hello",
		"café",   // requires a two-byte sequence
		"\U0001F600", // requires the surrogate-pair encoding
		"a b",   // embedded NUL uses the 0xC0 0x80 sequence
	}
	for _, s := range cases {
		encoded := encodeModifiedUTF8(s)
		decoded, err := decodeModifiedUTF8(encoded)
		if err != nil {
			t.Errorf("decoding %q: %v", s, err)
			continue
		}
		if decoded != s {
			t.Errorf("round trip: got %q, want %q", decoded, s)
		}
	}
}

func TestDecodeInstructionsSimpleSequence(t *testing.T) {
	// iconst_1, istore_1, iload_1, ireturn
	code := []byte{0x04, 0x3c, 0x1b, 0xac}
	instrs, addrToIndex, err := decodeInstructions(code)
	if err != nil {
		t.Fatalf("decoding instructions: %v", err)
	}
	if len(instrs) != 4 {
		t.Fatalf("expected 4 instructions, got %d", len(instrs))
	}
	want := []string{"iconst_1", "istore_1", "iload_1", "ireturn"}
	for i, m := range want {
		if instrs[i].Op.Mnemonic != m {
			t.Errorf("instruction %d: got %q, want %q", i, instrs[i].Op.Mnemonic, m)
		}
	}
	for i, instr := range instrs {
		idx, ok := addrToIndex[instr.Address]
		if !ok || idx != i {
			t.Errorf("address map for instruction %d (addr %d): got idx=%d ok=%v, want %d/true", i, instr.Address, idx, ok, i)
		}
	}
}

func TestDecodeInstructionsBipushAndBranch(t *testing.T) {
	// bipush 10, ifeq +4, goto -3, nop (only the decoded operands are
	// checked; branch targets are not resolved here)
	code := []byte{0x10, 0x0a, 0x99, 0x00, 0x04, 0xa7, 0xff, 0xfd, 0x00}
	instrs, _, err := decodeInstructions(code)
	if err != nil {
		t.Fatalf("decoding instructions: %v", err)
	}
	if instrs[0].Op.Mnemonic != "bipush" || instrs[0].Op.IntValue != 10 {
		t.Errorf("bipush: got mnemonic=%q value=%d", instrs[0].Op.Mnemonic, instrs[0].Op.IntValue)
	}
	if instrs[1].Op.Mnemonic != "ifeq" || instrs[1].Op.BranchOffset != 4 {
		t.Errorf("ifeq: got mnemonic=%q offset=%d", instrs[1].Op.Mnemonic, instrs[1].Op.BranchOffset)
	}
	if instrs[2].Op.Mnemonic != "goto" || instrs[2].Op.BranchOffset != -3 {
		t.Errorf("goto: got mnemonic=%q offset=%d", instrs[2].Op.Mnemonic, instrs[2].Op.BranchOffset)
	}
}

func TestDecodeTableswitch(t *testing.T) {
	// tableswitch at address 1 (one nop pad byte before it), default=20,
	// low=0, high=1, two jump offsets.
	var buf bytes.Buffer
	buf.WriteByte(0x00) // nop, so tableswitch starts at address 1
	buf.WriteByte(OpTableswitch)
	// padding to next 4-byte boundary from address 2: (4-(2%4))%4 = 2
	buf.Write([]byte{0, 0})
	binary.Write(&buf, binary.BigEndian, int32(20)) // default
	binary.Write(&buf, binary.BigEndian, int32(0))  // low
	binary.Write(&buf, binary.BigEndian, int32(1))  // high
	binary.Write(&buf, binary.BigEndian, int32(30)) // offset for 0
	binary.Write(&buf, binary.BigEndian, int32(40)) // offset for 1

	instrs, _, err := decodeInstructions(buf.Bytes())
	if err != nil {
		t.Fatalf("decoding tableswitch: %v", err)
	}
	if len(instrs) != 2 {
		t.Fatalf("expected 2 instructions (nop, tableswitch), got %d", len(instrs))
	}
	ts := instrs[1].Op
	if ts.Mnemonic != "tableswitch" {
		t.Fatalf("expected tableswitch, got %q", ts.Mnemonic)
	}
	if ts.DefaultOffset != 20 || ts.Low != 0 || ts.High != 1 {
		t.Errorf("tableswitch header: got default=%d low=%d high=%d", ts.DefaultOffset, ts.Low, ts.High)
	}
	if len(ts.JumpOffsets) != 2 || ts.JumpOffsets[0] != 30 || ts.JumpOffsets[1] != 40 {
		t.Errorf("tableswitch offsets: got %v", ts.JumpOffsets)
	}
}

func TestDecodeLookupswitchRejectsNonIncreasingMatches(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(OpLookupswitch)
	pad := (4 - (1 % 4)) % 4
	buf.Write(make([]byte, pad))
	binary.Write(&buf, binary.BigEndian, int32(0)) // default
	binary.Write(&buf, binary.BigEndian, int32(2)) // npairs
	binary.Write(&buf, binary.BigEndian, int32(5))
	binary.Write(&buf, binary.BigEndian, int32(100))
	binary.Write(&buf, binary.BigEndian, int32(3)) // not strictly increasing
	binary.Write(&buf, binary.BigEndian, int32(200))

	_, _, err := decodeInstructions(buf.Bytes())
	if err == nil {
		t.Error("expected error for non-increasing lookupswitch match table, got nil")
	}
}
