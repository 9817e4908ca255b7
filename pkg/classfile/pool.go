package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// ConstantPoolEntry is implemented by every entry kind that can occupy a
// constant pool slot.
type ConstantPoolEntry interface {
	Tag() uint8
}

type ConstantUtf8 struct{ Value string }

func (c *ConstantUtf8) Tag() uint8 { return TagUtf8 }

type ConstantInteger struct{ Value int32 }

func (c *ConstantInteger) Tag() uint8 { return TagInteger }

type ConstantFloat struct{ Value float32 }

func (c *ConstantFloat) Tag() uint8 { return TagFloat }

type ConstantLong struct{ Value int64 }

func (c *ConstantLong) Tag() uint8 { return TagLong }

type ConstantDouble struct{ Value float64 }

func (c *ConstantDouble) Tag() uint8 { return TagDouble }

type ConstantClass struct{ NameIndex uint16 }

func (c *ConstantClass) Tag() uint8 { return TagClass }

type ConstantString struct{ StringIndex uint16 }

func (c *ConstantString) Tag() uint8 { return TagString }

type ConstantFieldref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantFieldref) Tag() uint8 { return TagFieldref }

type ConstantMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantMethodref) Tag() uint8 { return TagMethodref }

type ConstantInterfaceMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantInterfaceMethodref) Tag() uint8 { return TagInterfaceMethodref }

type ConstantNameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (c *ConstantNameAndType) Tag() uint8 { return TagNameAndType }

type ConstantMethodHandle struct {
	ReferenceKind  uint8
	ReferenceIndex uint16
}

func (c *ConstantMethodHandle) Tag() uint8 { return TagMethodHandle }

type ConstantMethodType struct{ DescriptorIndex uint16 }

func (c *ConstantMethodType) Tag() uint8 { return TagMethodType }

type ConstantDynamic struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (c *ConstantDynamic) Tag() uint8 { return TagDynamic }

type ConstantInvokeDynamic struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (c *ConstantInvokeDynamic) Tag() uint8 { return TagInvokeDynamic }

type ConstantModule struct{ NameIndex uint16 }

func (c *ConstantModule) Tag() uint8 { return TagModule }

type ConstantPackage struct{ NameIndex uint16 }

func (c *ConstantPackage) Tag() uint8 { return TagPackage }

// parseConstantPool reads constant_pool_count-1 entries from r. The returned
// slice is 1-indexed: index 0 is nil, and the second slot of every Long/Double
// entry is also left nil, per the class file format.
func parseConstantPool(r io.Reader, count uint16) ([]ConstantPoolEntry, error) {
	pool := make([]ConstantPoolEntry, count)

	for i := uint16(1); i < count; i++ {
		var tag uint8
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return nil, fmt.Errorf("reading constant pool tag at index %d: %w", i, err)
		}

		switch tag {
		case TagUtf8:
			var length uint16
			if err := binary.Read(r, binary.BigEndian, &length); err != nil {
				return nil, fmt.Errorf("reading Utf8 length at index %d: %w", i, err)
			}
			raw := make([]byte, length)
			if _, err := io.ReadFull(r, raw); err != nil {
				return nil, fmt.Errorf("reading Utf8 bytes at index %d: %w", i, err)
			}
			s, err := decodeModifiedUTF8(raw)
			if err != nil {
				return nil, fmt.Errorf("decoding Utf8 at index %d: %w", i, err)
			}
			pool[i] = &ConstantUtf8{Value: s}

		case TagInteger:
			var val int32
			if err := binary.Read(r, binary.BigEndian, &val); err != nil {
				return nil, fmt.Errorf("reading Integer at index %d: %w", i, err)
			}
			pool[i] = &ConstantInteger{Value: val}

		case TagFloat:
			var bits uint32
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return nil, fmt.Errorf("reading Float at index %d: %w", i, err)
			}
			pool[i] = &ConstantFloat{Value: math.Float32frombits(bits)}

		case TagLong:
			var val int64
			if err := binary.Read(r, binary.BigEndian, &val); err != nil {
				return nil, fmt.Errorf("reading Long at index %d: %w", i, err)
			}
			pool[i] = &ConstantLong{Value: val}
			i++ // long occupies two indices; the second stays nil

		case TagDouble:
			var bits uint64
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return nil, fmt.Errorf("reading Double at index %d: %w", i, err)
			}
			pool[i] = &ConstantDouble{Value: math.Float64frombits(bits)}
			i++ // double occupies two indices; the second stays nil

		case TagClass:
			var nameIndex uint16
			if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
				return nil, fmt.Errorf("reading Class at index %d: %w", i, err)
			}
			pool[i] = &ConstantClass{NameIndex: nameIndex}

		case TagString:
			var stringIndex uint16
			if err := binary.Read(r, binary.BigEndian, &stringIndex); err != nil {
				return nil, fmt.Errorf("reading String at index %d: %w", i, err)
			}
			pool[i] = &ConstantString{StringIndex: stringIndex}

		case TagFieldref:
			classIndex, natIndex, err := readRefPair(r)
			if err != nil {
				return nil, fmt.Errorf("reading Fieldref at index %d: %w", i, err)
			}
			pool[i] = &ConstantFieldref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}

		case TagMethodref:
			classIndex, natIndex, err := readRefPair(r)
			if err != nil {
				return nil, fmt.Errorf("reading Methodref at index %d: %w", i, err)
			}
			pool[i] = &ConstantMethodref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}

		case TagInterfaceMethodref:
			classIndex, natIndex, err := readRefPair(r)
			if err != nil {
				return nil, fmt.Errorf("reading InterfaceMethodref at index %d: %w", i, err)
			}
			pool[i] = &ConstantInterfaceMethodref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}

		case TagNameAndType:
			nameIndex, descIndex, err := readRefPair(r)
			if err != nil {
				return nil, fmt.Errorf("reading NameAndType at index %d: %w", i, err)
			}
			pool[i] = &ConstantNameAndType{NameIndex: nameIndex, DescriptorIndex: descIndex}

		case TagMethodHandle:
			var kind uint8
			if err := binary.Read(r, binary.BigEndian, &kind); err != nil {
				return nil, fmt.Errorf("reading MethodHandle kind at index %d: %w", i, err)
			}
			var refIndex uint16
			if err := binary.Read(r, binary.BigEndian, &refIndex); err != nil {
				return nil, fmt.Errorf("reading MethodHandle ref index at index %d: %w", i, err)
			}
			pool[i] = &ConstantMethodHandle{ReferenceKind: kind, ReferenceIndex: refIndex}

		case TagMethodType:
			var descIndex uint16
			if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
				return nil, fmt.Errorf("reading MethodType at index %d: %w", i, err)
			}
			pool[i] = &ConstantMethodType{DescriptorIndex: descIndex}

		case TagDynamic:
			bsmIndex, natIndex, err := readRefPair(r)
			if err != nil {
				return nil, fmt.Errorf("reading Dynamic at index %d: %w", i, err)
			}
			pool[i] = &ConstantDynamic{BootstrapMethodAttrIndex: bsmIndex, NameAndTypeIndex: natIndex}

		case TagInvokeDynamic:
			bsmIndex, natIndex, err := readRefPair(r)
			if err != nil {
				return nil, fmt.Errorf("reading InvokeDynamic at index %d: %w", i, err)
			}
			pool[i] = &ConstantInvokeDynamic{BootstrapMethodAttrIndex: bsmIndex, NameAndTypeIndex: natIndex}

		case TagModule:
			var nameIndex uint16
			if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
				return nil, fmt.Errorf("reading Module at index %d: %w", i, err)
			}
			pool[i] = &ConstantModule{NameIndex: nameIndex}

		case TagPackage:
			var nameIndex uint16
			if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
				return nil, fmt.Errorf("reading Package at index %d: %w", i, err)
			}
			pool[i] = &ConstantPackage{NameIndex: nameIndex}

		default:
			return nil, fmt.Errorf("unknown constant pool tag %d at index %d", tag, i)
		}
	}

	return pool, nil
}

func readRefPair(r io.Reader) (uint16, uint16, error) {
	var a, b uint16
	if err := binary.Read(r, binary.BigEndian, &a); err != nil {
		return 0, 0, err
	}
	if err := binary.Read(r, binary.BigEndian, &b); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func checkIndex(pool []ConstantPoolEntry, index uint16) error {
	if int(index) >= len(pool) || pool[index] == nil {
		return fmt.Errorf("invalid constant pool index %d", index)
	}
	return nil
}

// ResolveUtf8 returns the Utf8 string at the given constant pool index.
func ResolveUtf8(pool []ConstantPoolEntry, index uint16) (string, error) {
	if err := checkIndex(pool, index); err != nil {
		return "", err
	}
	utf8, ok := pool[index].(*ConstantUtf8)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Utf8 (tag=%d)", index, pool[index].Tag())
	}
	return utf8.Value, nil
}

// ResolveClassName returns the name referenced by a CONSTANT_Class entry.
func ResolveClassName(pool []ConstantPoolEntry, classIndex uint16) (string, error) {
	if err := checkIndex(pool, classIndex); err != nil {
		return "", err
	}
	class, ok := pool[classIndex].(*ConstantClass)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Class", classIndex)
	}
	return ResolveUtf8(pool, class.NameIndex)
}

// MemberRefInfo holds resolved field/method reference info (shared shape for
// Fieldref, Methodref and InterfaceMethodref).
type MemberRefInfo struct {
	ClassName  string
	Name       string
	Descriptor string
}

func resolveMemberRef(pool []ConstantPoolEntry, index uint16, classIndex, natIndex uint16) (*MemberRefInfo, error) {
	className, err := ResolveClassName(pool, classIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving class: %w", err)
	}
	if err := checkIndex(pool, natIndex); err != nil {
		return nil, err
	}
	nat, ok := pool[natIndex].(*ConstantNameAndType)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not NameAndType", natIndex)
	}
	name, err := ResolveUtf8(pool, nat.NameIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving name: %w", err)
	}
	desc, err := ResolveUtf8(pool, nat.DescriptorIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving descriptor: %w", err)
	}
	return &MemberRefInfo{ClassName: className, Name: name, Descriptor: desc}, nil
}

// ResolveFieldref resolves a CONSTANT_Fieldref entry.
func ResolveFieldref(pool []ConstantPoolEntry, index uint16) (*MemberRefInfo, error) {
	if err := checkIndex(pool, index); err != nil {
		return nil, err
	}
	ref, ok := pool[index].(*ConstantFieldref)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not Fieldref", index)
	}
	return resolveMemberRef(pool, index, ref.ClassIndex, ref.NameAndTypeIndex)
}

// ResolveMethodref resolves a CONSTANT_Methodref entry.
func ResolveMethodref(pool []ConstantPoolEntry, index uint16) (*MemberRefInfo, error) {
	if err := checkIndex(pool, index); err != nil {
		return nil, err
	}
	ref, ok := pool[index].(*ConstantMethodref)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not Methodref", index)
	}
	return resolveMemberRef(pool, index, ref.ClassIndex, ref.NameAndTypeIndex)
}

// ResolveInterfaceMethodref resolves a CONSTANT_InterfaceMethodref entry.
func ResolveInterfaceMethodref(pool []ConstantPoolEntry, index uint16) (*MemberRefInfo, error) {
	if err := checkIndex(pool, index); err != nil {
		return nil, err
	}
	ref, ok := pool[index].(*ConstantInterfaceMethodref)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not InterfaceMethodref", index)
	}
	return resolveMemberRef(pool, index, ref.ClassIndex, ref.NameAndTypeIndex)
}

// ResolveNameAndType resolves a CONSTANT_NameAndType entry directly.
func ResolveNameAndType(pool []ConstantPoolEntry, index uint16) (name, descriptor string, err error) {
	if err := checkIndex(pool, index); err != nil {
		return "", "", err
	}
	nat, ok := pool[index].(*ConstantNameAndType)
	if !ok {
		return "", "", fmt.Errorf("constant pool index %d is not NameAndType", index)
	}
	name, err = ResolveUtf8(pool, nat.NameIndex)
	if err != nil {
		return "", "", err
	}
	descriptor, err = ResolveUtf8(pool, nat.DescriptorIndex)
	return name, descriptor, err
}
