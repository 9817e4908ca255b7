package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// ParseFile opens and decodes a .class file from the given path.
func ParseFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// DecodeBytes decodes a .class file already held in memory, used by the
// class path resolvers once they've read an entry's bytes off disk or out
// of a jar.
func DecodeBytes(data []byte) (*ClassFile, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a complete .class file from r and returns its decoded image.
// It checks that the magic number equals 0xCAFEBABE and that every region it
// reads is present in full (a short stream is an error). Field and method
// names and descriptors, and the names of field and method attributes, must
// resolve to Utf8 entries. It does not check that a Code attribute or its
// nested attributes are consumed exactly, nor that r ends after the class
// attributes; a class attribute whose name does not resolve is kept with an
// empty name, and a Code sub-attribute whose name does not resolve is dropped.
func Decode(r io.Reader) (*ClassFile, error) {
	cf := &ClassFile{}

	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, fmt.Errorf("reading magic number: %w", err)
	}
	if magic != classMagic {
		return nil, fmt.Errorf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic)
	}

	if err := binary.Read(r, binary.BigEndian, &cf.MinorVersion); err != nil {
		return nil, fmt.Errorf("reading minor version: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.MajorVersion); err != nil {
		return nil, fmt.Errorf("reading major version: %w", err)
	}

	var cpCount uint16
	if err := binary.Read(r, binary.BigEndian, &cpCount); err != nil {
		return nil, fmt.Errorf("reading constant pool count: %w", err)
	}
	pool, err := parseConstantPool(r, cpCount)
	if err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}
	cf.ConstantPool = pool

	if err := binary.Read(r, binary.BigEndian, &cf.AccessFlags); err != nil {
		return nil, fmt.Errorf("reading access flags: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.ThisClass); err != nil {
		return nil, fmt.Errorf("reading this_class: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cf.SuperClass); err != nil {
		return nil, fmt.Errorf("reading super_class: %w", err)
	}

	var interfacesCount uint16
	if err := binary.Read(r, binary.BigEndian, &interfacesCount); err != nil {
		return nil, fmt.Errorf("reading interfaces count: %w", err)
	}
	cf.Interfaces = make([]uint16, interfacesCount)
	for i := uint16(0); i < interfacesCount; i++ {
		if err := binary.Read(r, binary.BigEndian, &cf.Interfaces[i]); err != nil {
			return nil, fmt.Errorf("reading interface %d: %w", i, err)
		}
	}

	var fieldsCount uint16
	if err := binary.Read(r, binary.BigEndian, &fieldsCount); err != nil {
		return nil, fmt.Errorf("reading fields count: %w", err)
	}
	cf.Fields, err = parseFields(r, cf.ConstantPool, fieldsCount)
	if err != nil {
		return nil, fmt.Errorf("parsing fields: %w", err)
	}

	var methodsCount uint16
	if err := binary.Read(r, binary.BigEndian, &methodsCount); err != nil {
		return nil, fmt.Errorf("reading methods count: %w", err)
	}
	cf.Methods, err = parseMethods(r, cf.ConstantPool, methodsCount)
	if err != nil {
		return nil, fmt.Errorf("parsing methods: %w", err)
	}

	if err := cf.parseClassAttributes(r); err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}

	return cf, nil
}

func parseFields(r io.Reader, pool []ConstantPoolEntry, count uint16) ([]FieldInfo, error) {
	fields := make([]FieldInfo, count)
	for i := uint16(0); i < count; i++ {
		var accessFlags, nameIndex, descIndex, attrCount uint16
		if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
			return nil, fmt.Errorf("reading field %d access flags: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, fmt.Errorf("reading field %d name index: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
			return nil, fmt.Errorf("reading field %d descriptor index: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
			return nil, fmt.Errorf("reading field %d attributes count: %w", i, err)
		}

		name, err := ResolveUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving field %d name: %w", i, err)
		}
		desc, err := ResolveUtf8(pool, descIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving field %d descriptor: %w", i, err)
		}

		attrs, err := parseAttributeInfos(r, pool, attrCount)
		if err != nil {
			return nil, fmt.Errorf("parsing field %d attributes: %w", i, err)
		}

		fields[i] = FieldInfo{
			AccessFlags: accessFlags,
			Name:        name,
			Descriptor:  desc,
			Attributes:  attrs,
		}
	}
	return fields, nil
}

func parseMethods(r io.Reader, pool []ConstantPoolEntry, count uint16) ([]MethodInfo, error) {
	methods := make([]MethodInfo, count)
	for i := uint16(0); i < count; i++ {
		var accessFlags, nameIndex, descIndex, attrCount uint16
		if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
			return nil, fmt.Errorf("reading method %d access flags: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, fmt.Errorf("reading method %d name index: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
			return nil, fmt.Errorf("reading method %d descriptor index: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
			return nil, fmt.Errorf("reading method %d attributes count: %w", i, err)
		}

		name, err := ResolveUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving method %d name: %w", i, err)
		}
		desc, err := ResolveUtf8(pool, descIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving method %d descriptor: %w", i, err)
		}

		attrs, err := parseAttributeInfos(r, pool, attrCount)
		if err != nil {
			return nil, fmt.Errorf("parsing method %d attributes: %w", i, err)
		}

		m := MethodInfo{
			AccessFlags: accessFlags,
			Name:        name,
			Descriptor:  desc,
			Attributes:  attrs,
		}

		for _, attr := range attrs {
			if attr.Name == "Code" {
				code, err := parseCodeAttribute(attr.Data, pool)
				if err != nil {
					return nil, fmt.Errorf("parsing Code attribute for method %s: %w", name, err)
				}
				m.Code = code
				break
			}
		}

		methods[i] = m
	}
	return methods, nil
}

func parseAttributeInfos(r io.Reader, pool []ConstantPoolEntry, count uint16) ([]AttributeInfo, error) {
	attrs := make([]AttributeInfo, count)
	for i := uint16(0); i < count; i++ {
		var nameIndex uint16
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, fmt.Errorf("reading attribute %d name index: %w", i, err)
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, fmt.Errorf("reading attribute %d length: %w", i, err)
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("reading attribute %d data: %w", i, err)
		}

		name, err := ResolveUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}

		attrs[i] = AttributeInfo{Name: name, Data: data}
	}
	return attrs, nil
}

// parseCodeAttribute decodes the body of a Code attribute: stack/locals
// limits, the raw bytecode, the exception table and whichever nested
// attributes it understands (LineNumberTable). It also runs the
// instruction decoder over the raw bytecode so callers get a ready-to-walk
// instruction sequence instead of a byte blob.
func parseCodeAttribute(data []byte, pool []ConstantPoolEntry) (*CodeAttribute, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("Code attribute too short: %d bytes", len(data))
	}

	maxStack := binary.BigEndian.Uint16(data[0:2])
	maxLocals := binary.BigEndian.Uint16(data[2:4])
	codeLength := binary.BigEndian.Uint32(data[4:8])

	if uint64(len(data)) < 8+uint64(codeLength) {
		return nil, fmt.Errorf("Code attribute data too short for code_length %d", codeLength)
	}

	raw := make([]byte, codeLength)
	copy(raw, data[8:8+codeLength])

	instructions, addrToIndex, err := decodeInstructions(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding instructions: %w", err)
	}

	offset := 8 + int(codeLength)
	if offset+2 > len(data) {
		return nil, fmt.Errorf("Code attribute truncated before exception table count")
	}
	exTableLen := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2
	handlers := make([]ExceptionHandler, exTableLen)
	for i := uint16(0); i < exTableLen; i++ {
		if offset+8 > len(data) {
			return nil, fmt.Errorf("Code attribute truncated in exception table at entry %d", i)
		}
		handlers[i] = ExceptionHandler{
			StartPC:   binary.BigEndian.Uint16(data[offset : offset+2]),
			EndPC:     binary.BigEndian.Uint16(data[offset+2 : offset+4]),
			HandlerPC: binary.BigEndian.Uint16(data[offset+4 : offset+6]),
			CatchType: binary.BigEndian.Uint16(data[offset+6 : offset+8]),
		}
		offset += 8
	}

	if offset+2 > len(data) {
		return nil, fmt.Errorf("Code attribute truncated before attributes count")
	}
	attrCount := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2

	var lineNumbers []LineNumberEntry
	var nested []AttributeInfo
	for i := uint16(0); i < attrCount; i++ {
		if offset+6 > len(data) {
			return nil, fmt.Errorf("Code attribute truncated in nested attribute %d", i)
		}
		nameIndex := binary.BigEndian.Uint16(data[offset : offset+2])
		length := binary.BigEndian.Uint32(data[offset+2 : offset+6])
		offset += 6
		if uint64(offset)+uint64(length) > uint64(len(data)) {
			return nil, fmt.Errorf("Code attribute truncated in nested attribute %d data", i)
		}
		attrData := data[offset : offset+int(length)]
		offset += int(length)

		name, err := ResolveUtf8(pool, nameIndex)
		if err != nil {
			continue
		}
		if name == "LineNumberTable" {
			entries, err := parseLineNumberTable(attrData)
			if err != nil {
				return nil, fmt.Errorf("parsing LineNumberTable: %w", err)
			}
			lineNumbers = append(lineNumbers, entries...)
			continue
		}
		nested = append(nested, AttributeInfo{Name: name, Data: append([]byte(nil), attrData...)})
	}

	return &CodeAttribute{
		MaxStack:          maxStack,
		MaxLocals:         maxLocals,
		Raw:               raw,
		Instructions:      instructions,
		ExceptionHandlers: handlers,
		LineNumbers:       lineNumbers,
		Attributes:        nested,
		addrToIndex:       addrToIndex,
	}, nil
}

func parseLineNumberTable(data []byte) ([]LineNumberEntry, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("LineNumberTable too short")
	}
	count := binary.BigEndian.Uint16(data[0:2])
	offset := 2
	entries := make([]LineNumberEntry, count)
	for i := uint16(0); i < count; i++ {
		if offset+4 > len(data) {
			return nil, fmt.Errorf("LineNumberTable truncated at entry %d", i)
		}
		entries[i] = LineNumberEntry{
			StartPC:    binary.BigEndian.Uint16(data[offset : offset+2]),
			LineNumber: binary.BigEndian.Uint16(data[offset+2 : offset+4]),
		}
		offset += 4
	}
	return entries, nil
}

func (cf *ClassFile) parseClassAttributes(r io.Reader) error {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return err
	}
	for i := uint16(0); i < count; i++ {
		var nameIndex uint16
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return err
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return err
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return err
		}
		name, err := ResolveUtf8(cf.ConstantPool, nameIndex)
		if err != nil {
			// An attribute whose name index itself doesn't resolve is kept
			// around opaquely rather than failing the whole decode.
			cf.Attributes = append(cf.Attributes, AttributeInfo{Name: "", Data: data})
			continue
		}
		switch name {
		case "BootstrapMethods":
			methods, err := parseBootstrapMethods(data)
			if err != nil {
				return fmt.Errorf("parsing BootstrapMethods: %w", err)
			}
			cf.BootstrapMethods = methods
		case "SourceFile":
			if len(data) >= 2 {
				idx := binary.BigEndian.Uint16(data[0:2])
				if s, err := ResolveUtf8(cf.ConstantPool, idx); err == nil {
					cf.SourceFile = s
				}
			}
		default:
			cf.Attributes = append(cf.Attributes, AttributeInfo{Name: name, Data: data})
		}
	}
	return nil
}

func parseBootstrapMethods(data []byte) ([]BootstrapMethod, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("BootstrapMethods data too short")
	}
	numMethods := binary.BigEndian.Uint16(data[0:2])
	offset := 2
	methods := make([]BootstrapMethod, numMethods)
	for i := uint16(0); i < numMethods; i++ {
		if offset+4 > len(data) {
			return nil, fmt.Errorf("BootstrapMethods truncated at method %d", i)
		}
		methodRef := binary.BigEndian.Uint16(data[offset : offset+2])
		numArgs := binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += 4
		args := make([]uint16, numArgs)
		for j := uint16(0); j < numArgs; j++ {
			if offset+2 > len(data) {
				return nil, fmt.Errorf("BootstrapMethods truncated at arg %d of method %d", j, i)
			}
			args[j] = binary.BigEndian.Uint16(data[offset : offset+2])
			offset += 2
		}
		methods[i] = BootstrapMethod{MethodRef: methodRef, BootstrapArguments: args}
	}
	return methods, nil
}
