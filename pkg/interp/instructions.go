package interp

import (
	"fmt"
	"math"

	"govm/pkg/classfile"
	"govm/pkg/object"
)

// step executes a single decoded instruction against frame, returning
// (value, true, nil) on a method return, (_, false, nil) to continue at the
// next sequential instruction, or a non-nil error (possibly a
// *JavaException) otherwise. step advances frame.IP itself through a
// deferred increment; branching instructions move frame.IP via jumpTo and
// clear advance so that increment is skipped. The dispatch loop does not
// touch frame.IP.
func (vm *VM) step(frame *Frame, instr classfile.Instruction) (object.Value, bool, error) {
	op := instr.Op
	advance := true
	defer func() {
		if advance {
			frame.IP++
		}
	}()

	switch op.Mnemonic {
	case "nop":

	case "aconst_null":
		frame.Push(object.NullRef())
	case "iconst_m1":
		frame.Push(iv(-1))
	case "iconst_0":
		frame.Push(iv(0))
	case "iconst_1":
		frame.Push(iv(1))
	case "iconst_2":
		frame.Push(iv(2))
	case "iconst_3":
		frame.Push(iv(3))
	case "iconst_4":
		frame.Push(iv(4))
	case "iconst_5":
		frame.Push(iv(5))
	case "lconst_0":
		frame.Push(lv(0))
	case "lconst_1":
		frame.Push(lv(1))
	case "fconst_0":
		frame.Push(fv(0))
	case "fconst_1":
		frame.Push(fv(1))
	case "fconst_2":
		frame.Push(fv(2))
	case "dconst_0":
		frame.Push(dv(0))
	case "dconst_1":
		frame.Push(dv(1))
	case "bipush", "sipush":
		frame.Push(iv(op.IntValue))

	case "ldc", "ldc_w":
		v, err := vm.resolveLdc(frame, op.Index)
		if err != nil {
			return object.Value{}, false, fmt.Errorf("%s: %w", op.Mnemonic, err)
		}
		frame.Push(v)
	case "ldc2_w":
		v, err := vm.resolveLdc2(frame, op.Index)
		if err != nil {
			return object.Value{}, false, fmt.Errorf("ldc2_w: %w", err)
		}
		frame.Push(v)

	case "iload", "iload_0", "iload_1", "iload_2", "iload_3",
		"fload", "fload_0", "fload_1", "fload_2", "fload_3",
		"aload", "aload_0", "aload_1", "aload_2", "aload_3":
		frame.Push(frame.Locals[localIndex(op)])
	case "lload", "lload_0", "lload_1", "lload_2", "lload_3":
		frame.Push(frame.Locals[localIndex(op)])
	case "dload", "dload_0", "dload_1", "dload_2", "dload_3":
		frame.Push(frame.Locals[localIndex(op)])

	case "istore", "istore_0", "istore_1", "istore_2", "istore_3",
		"fstore", "fstore_0", "fstore_1", "fstore_2", "fstore_3",
		"astore", "astore_0", "astore_1", "astore_2", "astore_3",
		"lstore", "lstore_0", "lstore_1", "lstore_2", "lstore_3",
		"dstore", "dstore_0", "dstore_1", "dstore_2", "dstore_3":
		frame.Locals[localIndex(op)] = frame.Pop()

	case "iaload":
		v, err := arrayLoad(frame, object.TagInt)
		if err != nil {
			return object.Value{}, false, err
		}
		frame.Push(v)
	case "laload":
		v, err := arrayLoad(frame, object.TagLong)
		if err != nil {
			return object.Value{}, false, err
		}
		frame.Push(v)
	case "faload":
		v, err := arrayLoad(frame, object.TagFloat)
		if err != nil {
			return object.Value{}, false, err
		}
		frame.Push(v)
	case "daload":
		v, err := arrayLoad(frame, object.TagDouble)
		if err != nil {
			return object.Value{}, false, err
		}
		frame.Push(v)
	case "aaload":
		v, err := arrayLoad(frame, object.TagRef)
		if err != nil {
			return object.Value{}, false, err
		}
		frame.Push(v)
	case "baload", "caload", "saload":
		v, err := arrayLoad(frame, object.TagInt)
		if err != nil {
			return object.Value{}, false, err
		}
		frame.Push(v)

	case "iastore", "lastore", "fastore", "dastore", "aastore", "bastore", "castore", "sastore":
		if err := arrayStore(frame); err != nil {
			return object.Value{}, false, err
		}

	case "pop":
		frame.Pop()
	case "pop2":
		frame.Pop()
		frame.Pop()
	case "dup":
		v := frame.Pop()
		frame.Push(v)
		frame.Push(v)
	case "dup_x1":
		v1, v2 := frame.Pop(), frame.Pop()
		frame.Push(v1)
		frame.Push(v2)
		frame.Push(v1)
	case "dup_x2":
		v1, v2, v3 := frame.Pop(), frame.Pop(), frame.Pop()
		frame.Push(v1)
		frame.Push(v3)
		frame.Push(v2)
		frame.Push(v1)
	case "dup2":
		v1, v2 := frame.Pop(), frame.Pop()
		frame.Push(v2)
		frame.Push(v1)
		frame.Push(v2)
		frame.Push(v1)
	case "dup2_x1":
		v1, v2, v3 := frame.Pop(), frame.Pop(), frame.Pop()
		frame.Push(v2)
		frame.Push(v1)
		frame.Push(v3)
		frame.Push(v2)
		frame.Push(v1)
	case "dup2_x2":
		v1, v2, v3, v4 := frame.Pop(), frame.Pop(), frame.Pop(), frame.Pop()
		frame.Push(v2)
		frame.Push(v1)
		frame.Push(v4)
		frame.Push(v3)
		frame.Push(v2)
		frame.Push(v1)
	case "swap":
		v1, v2 := frame.Pop(), frame.Pop()
		frame.Push(v1)
		frame.Push(v2)

	case "iadd":
		b, a := frame.Pop().Int, frame.Pop().Int
		frame.Push(iv(a + b))
	case "isub":
		b, a := frame.Pop().Int, frame.Pop().Int
		frame.Push(iv(a - b))
	case "imul":
		b, a := frame.Pop().Int, frame.Pop().Int
		frame.Push(iv(a * b))
	case "idiv":
		b, a := frame.Pop().Int, frame.Pop().Int
		if b == 0 {
			return object.Value{}, false, newJavaException("java/lang/ArithmeticException")
		}
		if b == -1 && a == math.MinInt32 {
			return object.Value{}, false, newJavaException("java/lang/ArithmeticException")
		}
		frame.Push(iv(a / b))
	case "irem":
		b, a := frame.Pop().Int, frame.Pop().Int
		if b == 0 {
			return object.Value{}, false, newJavaException("java/lang/ArithmeticException")
		}
		frame.Push(iv(a % b))
	case "ineg":
		v := frame.Pop().Int
		if v == math.MinInt32 {
			return object.Value{}, false, newJavaException("java/lang/ArithmeticException")
		}
		frame.Push(iv(-v))
	case "ishl":
		b, a := frame.Pop().Int, frame.Pop().Int
		frame.Push(iv(a << (uint32(b) & 0x1f)))
	case "ishr":
		b, a := frame.Pop().Int, frame.Pop().Int
		frame.Push(iv(a >> (uint32(b) & 0x1f)))
	case "iushr":
		b, a := frame.Pop().Int, frame.Pop().Int
		frame.Push(iv(int32(uint32(a) >> (uint32(b) & 0x1f))))
	case "iand":
		b, a := frame.Pop().Int, frame.Pop().Int
		frame.Push(iv(a & b))
	case "ior":
		b, a := frame.Pop().Int, frame.Pop().Int
		frame.Push(iv(a | b))
	case "ixor":
		b, a := frame.Pop().Int, frame.Pop().Int
		frame.Push(iv(a ^ b))

	case "ladd":
		b, a := frame.Pop().Long, frame.Pop().Long
		frame.Push(lv(a + b))
	case "lsub":
		b, a := frame.Pop().Long, frame.Pop().Long
		frame.Push(lv(a - b))
	case "lmul":
		b, a := frame.Pop().Long, frame.Pop().Long
		frame.Push(lv(a * b))
	case "ldiv":
		b, a := frame.Pop().Long, frame.Pop().Long
		if b == 0 {
			return object.Value{}, false, newJavaException("java/lang/ArithmeticException")
		}
		if b == -1 && a == math.MinInt64 {
			return object.Value{}, false, newJavaException("java/lang/ArithmeticException")
		}
		frame.Push(lv(a / b))
	case "lrem":
		b, a := frame.Pop().Long, frame.Pop().Long
		if b == 0 {
			return object.Value{}, false, newJavaException("java/lang/ArithmeticException")
		}
		frame.Push(lv(a % b))
	case "lneg":
		v := frame.Pop().Long
		if v == math.MinInt64 {
			return object.Value{}, false, newJavaException("java/lang/ArithmeticException")
		}
		frame.Push(lv(-v))
	case "lshl":
		b, a := frame.Pop().Int, frame.Pop().Long
		frame.Push(lv(a << (uint64(b) & 0x3f)))
	case "lshr":
		b, a := frame.Pop().Int, frame.Pop().Long
		frame.Push(lv(a >> (uint64(b) & 0x3f)))
	case "lushr":
		b, a := frame.Pop().Int, frame.Pop().Long
		frame.Push(lv(int64(uint64(a) >> (uint64(b) & 0x3f))))
	case "land":
		b, a := frame.Pop().Long, frame.Pop().Long
		frame.Push(lv(a & b))
	case "lor":
		b, a := frame.Pop().Long, frame.Pop().Long
		frame.Push(lv(a | b))
	case "lxor":
		b, a := frame.Pop().Long, frame.Pop().Long
		frame.Push(lv(a ^ b))
	case "lcmp":
		b, a := frame.Pop().Long, frame.Pop().Long
		frame.Push(iv(cmp3(a, b)))

	case "fadd":
		b, a := frame.Pop().Float, frame.Pop().Float
		frame.Push(fv(a + b))
	case "fsub":
		b, a := frame.Pop().Float, frame.Pop().Float
		frame.Push(fv(a - b))
	case "fmul":
		b, a := frame.Pop().Float, frame.Pop().Float
		frame.Push(fv(a * b))
	case "fdiv":
		b, a := frame.Pop().Float, frame.Pop().Float
		frame.Push(fv(a / b))
	case "frem":
		b, a := frame.Pop().Float, frame.Pop().Float
		frame.Push(fv(float32(math.Mod(float64(a), float64(b)))))
	case "fneg":
		frame.Push(fv(-frame.Pop().Float))
	case "fcmpl", "fcmpg":
		b, a := frame.Pop().Float, frame.Pop().Float
		frame.Push(iv(floatCmp3(float64(a), float64(b), op.Mnemonic == "fcmpg")))

	case "dadd":
		b, a := frame.Pop().Dbl, frame.Pop().Dbl
		frame.Push(dv(a + b))
	case "dsub":
		b, a := frame.Pop().Dbl, frame.Pop().Dbl
		frame.Push(dv(a - b))
	case "dmul":
		b, a := frame.Pop().Dbl, frame.Pop().Dbl
		frame.Push(dv(a * b))
	case "ddiv":
		b, a := frame.Pop().Dbl, frame.Pop().Dbl
		frame.Push(dv(a / b))
	case "drem":
		b, a := frame.Pop().Dbl, frame.Pop().Dbl
		frame.Push(dv(math.Mod(a, b)))
	case "dneg":
		frame.Push(dv(-frame.Pop().Dbl))
	case "dcmpl", "dcmpg":
		b, a := frame.Pop().Dbl, frame.Pop().Dbl
		frame.Push(iv(floatCmp3(a, b, op.Mnemonic == "dcmpg")))

	case "iinc":
		idx := localIndex(op)
		frame.Locals[idx] = iv(frame.Locals[idx].Int + op.IntValue)

	case "i2l":
		frame.Push(lv(int64(frame.Pop().Int)))
	case "i2f":
		frame.Push(fv(float32(frame.Pop().Int)))
	case "i2d":
		frame.Push(dv(float64(frame.Pop().Int)))
	case "l2i":
		frame.Push(iv(int32(frame.Pop().Long)))
	case "l2f":
		frame.Push(fv(float32(frame.Pop().Long)))
	case "l2d":
		frame.Push(dv(float64(frame.Pop().Long)))
	case "f2i":
		frame.Push(iv(f2i(frame.Pop().Float)))
	case "f2l":
		frame.Push(lv(f2l(frame.Pop().Float)))
	case "f2d":
		frame.Push(dv(float64(frame.Pop().Float)))
	case "d2i":
		frame.Push(iv(d2i(frame.Pop().Dbl)))
	case "d2l":
		frame.Push(lv(d2l(frame.Pop().Dbl)))
	case "d2f":
		frame.Push(fv(float32(frame.Pop().Dbl)))
	case "i2b":
		frame.Push(iv(int32(int8(frame.Pop().Int))))
	case "i2c":
		frame.Push(iv(int32(uint16(frame.Pop().Int))))
	case "i2s":
		frame.Push(iv(int32(int16(frame.Pop().Int))))

	case "ifeq":
		advance = !branchIf(frame, op, frame.Pop().Int == 0)
	case "ifne":
		advance = !branchIf(frame, op, frame.Pop().Int != 0)
	case "iflt":
		advance = !branchIf(frame, op, frame.Pop().Int < 0)
	case "ifge":
		advance = !branchIf(frame, op, frame.Pop().Int >= 0)
	case "ifgt":
		advance = !branchIf(frame, op, frame.Pop().Int > 0)
	case "ifle":
		advance = !branchIf(frame, op, frame.Pop().Int <= 0)
	case "if_icmpeq":
		b, a := frame.Pop().Int, frame.Pop().Int
		advance = !branchIf(frame, op, a == b)
	case "if_icmpne":
		b, a := frame.Pop().Int, frame.Pop().Int
		advance = !branchIf(frame, op, a != b)
	case "if_icmplt":
		b, a := frame.Pop().Int, frame.Pop().Int
		advance = !branchIf(frame, op, a < b)
	case "if_icmpge":
		b, a := frame.Pop().Int, frame.Pop().Int
		advance = !branchIf(frame, op, a >= b)
	case "if_icmpgt":
		b, a := frame.Pop().Int, frame.Pop().Int
		advance = !branchIf(frame, op, a > b)
	case "if_icmple":
		b, a := frame.Pop().Int, frame.Pop().Int
		advance = !branchIf(frame, op, a <= b)
	case "if_acmpeq":
		b, a := frame.Pop().Ref, frame.Pop().Ref
		advance = !branchIf(frame, op, a == b)
	case "if_acmpne":
		b, a := frame.Pop().Ref, frame.Pop().Ref
		advance = !branchIf(frame, op, a != b)
	case "ifnull":
		advance = !branchIf(frame, op, frame.Pop().Ref == nil)
	case "ifnonnull":
		advance = !branchIf(frame, op, frame.Pop().Ref != nil)
	case "goto", "goto_w":
		advance = !branchIf(frame, op, true)
	case "jsr", "jsr_w":
		frame.Push(object.Value{Tag: object.TagInt, Int: int32(instr.Address + instr.Length)})
		advance = !branchIf(frame, op, true)
	case "ret":
		addr := uint32(frame.Locals[op.Local].Int)
		if err := frame.jumpTo(addr); err != nil {
			return object.Value{}, false, err
		}
		advance = false

	case "tableswitch":
		v := frame.Pop().Int
		target := op.DefaultOffset
		if v >= op.Low && v <= op.High {
			target = op.JumpOffsets[v-op.Low]
		}
		if err := frame.jumpTo(uint32(int64(instr.Address) + int64(target))); err != nil {
			return object.Value{}, false, err
		}
		advance = false

	case "lookupswitch":
		v := frame.Pop().Int
		target := op.DefaultOffset
		for _, pair := range op.Pairs {
			if pair.Match == v {
				target = pair.Offset
				break
			}
		}
		if err := frame.jumpTo(uint32(int64(instr.Address) + int64(target))); err != nil {
			return object.Value{}, false, err
		}
		advance = false

	case "ireturn", "freturn", "areturn", "lreturn", "dreturn":
		return frame.Pop(), true, nil
	case "return":
		return object.Value{}, true, nil

	case "getstatic":
		v, err := vm.getStatic(frame, op.Index)
		if err != nil {
			return object.Value{}, false, err
		}
		frame.Push(v)
	case "putstatic":
		if err := vm.putStatic(frame, op.Index); err != nil {
			return object.Value{}, false, err
		}
	case "getfield":
		v, err := vm.getField(frame, op.Index)
		if err != nil {
			return object.Value{}, false, err
		}
		frame.Push(v)
	case "putfield":
		if err := vm.putField(frame, op.Index); err != nil {
			return object.Value{}, false, err
		}

	case "invokevirtual":
		retVal, hasRet, err := vm.invokeVirtual(frame, op.Index)
		if err != nil {
			return object.Value{}, false, err
		}
		if hasRet {
			frame.Push(retVal)
		}
	case "invokespecial":
		retVal, hasRet, err := vm.invokeSpecial(frame, op.Index)
		if err != nil {
			return object.Value{}, false, err
		}
		if hasRet {
			frame.Push(retVal)
		}
	case "invokestatic":
		retVal, hasRet, err := vm.invokeStatic(frame, op.Index)
		if err != nil {
			return object.Value{}, false, err
		}
		if hasRet {
			frame.Push(retVal)
		}
	case "invokeinterface":
		retVal, hasRet, err := vm.invokeInterface(frame, op.Index)
		if err != nil {
			return object.Value{}, false, err
		}
		if hasRet {
			frame.Push(retVal)
		}
	case "invokedynamic":
		retVal, hasRet, err := vm.executeInvokedynamic(frame, op.Index)
		if err != nil {
			return object.Value{}, false, err
		}
		if hasRet {
			frame.Push(retVal)
		}

	case "new":
		v, err := vm.executeNew(frame, op.Index)
		if err != nil {
			return object.Value{}, false, err
		}
		frame.Push(v)
	case "newarray":
		v, err := vm.executeNewarray(frame, op.IntValue)
		if err != nil {
			return object.Value{}, false, err
		}
		frame.Push(v)
	case "anewarray":
		v, err := vm.executeAnewarray(frame, op.Index)
		if err != nil {
			return object.Value{}, false, err
		}
		frame.Push(v)
	case "multianewarray":
		v, err := vm.executeMultianewarray(frame, op.Index, op.Dimensions)
		if err != nil {
			return object.Value{}, false, err
		}
		frame.Push(v)
	case "arraylength":
		ref := frame.Pop()
		if ref.Ref == nil {
			return object.Value{}, false, newJavaException("java/lang/NullPointerException")
		}
		frame.Push(iv(int32(ref.Ref.Length())))
	case "athrow":
		ref := frame.Pop()
		if ref.Ref == nil {
			return object.Value{}, false, newJavaException("java/lang/NullPointerException")
		}
		return object.Value{}, false, &JavaException{Object: ref.Ref}

	case "checkcast":
		if err := vm.executeCheckcast(frame, op.Index); err != nil {
			return object.Value{}, false, err
		}
	case "instanceof":
		v, err := vm.executeInstanceof(frame, op.Index)
		if err != nil {
			return object.Value{}, false, err
		}
		frame.Push(v)

	case "monitorenter":
		ref := frame.Pop()
		if ref.Ref == nil {
			return object.Value{}, false, newJavaException("java/lang/NullPointerException")
		}
		ref.Ref.Monitor.Held = true
		ref.Ref.Monitor.Depth++
	case "monitorexit":
		ref := frame.Pop()
		if ref.Ref == nil {
			return object.Value{}, false, newJavaException("java/lang/NullPointerException")
		}
		if !ref.Ref.Monitor.Held || ref.Ref.Monitor.Depth == 0 {
			return object.Value{}, false, newJavaException("java/lang/IllegalMonitorStateException")
		}
		ref.Ref.Monitor.Depth--
		if ref.Ref.Monitor.Depth == 0 {
			ref.Ref.Monitor.Held = false
		}

	default:
		return object.Value{}, false, fmt.Errorf("unimplemented opcode %s (0x%02x)", op.Mnemonic, op.Opcode)
	}

	return object.Value{}, false, nil
}

func iv(i int32) object.Value    { return object.Value{Tag: object.TagInt, Int: i} }
func lv(l int64) object.Value    { return object.Value{Tag: object.TagLong, Long: l} }
func fv(f float32) object.Value  { return object.Value{Tag: object.TagFloat, Float: f} }
func dv(d float64) object.Value  { return object.Value{Tag: object.TagDouble, Dbl: d} }

// localIndex recovers the local variable slot a load/store instruction
// addresses. The explicit-index forms (iload, istore, wide iload, ...)
// carry it in Op.Local; the compact *_0.._3 forms carry no operand bytes at
// all, so decodeInstructions leaves Local at zero and the slot is implicit
// in the mnemonic's trailing digit instead.
func localIndex(op classfile.Operation) int {
	if op.Kind == classfile.OperandLocalIndex || op.Kind == classfile.OperandIincTriple {
		return int(op.Local)
	}
	n := len(op.Mnemonic)
	if n == 0 {
		return 0
	}
	last := op.Mnemonic[n-1]
	if last < '0' || last > '3' {
		return 0
	}
	return int(last - '0')
}

// branchIf resolves a conditional/unconditional branch relative to instr's
// address when cond is true, jumping the frame there; it reports whether a
// jump was taken (the caller treats a taken jump as "don't auto-advance").
func branchIf(frame *Frame, op classfile.Operation, cond bool) bool {
	if !cond {
		return false
	}
	addr := frame.currentAddress()
	target := uint32(int64(addr) + int64(op.BranchOffset))
	if err := frame.jumpTo(target); err != nil {
		panic(err) // unreachable for well-formed bytecode; decodeInstructions validated addresses
	}
	return true
}

func cmp3(a, b int64) int32 {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

func floatCmp3(a, b float64, nanGreater bool) int32 {
	if math.IsNaN(a) || math.IsNaN(b) {
		if nanGreater {
			return 1
		}
		return -1
	}
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

func f2i(f float32) int32 {
	if math.IsNaN(float64(f)) {
		return 0
	}
	if f >= math.MaxInt32 {
		return math.MaxInt32
	}
	if f <= math.MinInt32 {
		return math.MinInt32
	}
	return int32(f)
}

func f2l(f float32) int64 {
	if math.IsNaN(float64(f)) {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	if f <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(f)
}

func d2i(d float64) int32 {
	if math.IsNaN(d) {
		return 0
	}
	if d >= math.MaxInt32 {
		return math.MaxInt32
	}
	if d <= math.MinInt32 {
		return math.MinInt32
	}
	return int32(d)
}

func d2l(d float64) int64 {
	if math.IsNaN(d) {
		return 0
	}
	if d >= math.MaxInt64 {
		return math.MaxInt64
	}
	if d <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(d)
}

func arrayLoad(frame *Frame, want object.Tag) (object.Value, error) {
	index := frame.Pop().Int
	ref := frame.Pop()
	if ref.Ref == nil {
		return object.Value{}, newJavaException("java/lang/NullPointerException")
	}
	arr := ref.Ref
	if index < 0 || int(index) >= len(arr.Elements) {
		return object.Value{}, newJavaException("java/lang/ArrayIndexOutOfBoundsException")
	}
	return arr.Elements[index], nil
}

func arrayStore(frame *Frame) error {
	value := frame.Pop()
	index := frame.Pop().Int
	ref := frame.Pop()
	if ref.Ref == nil {
		return newJavaException("java/lang/NullPointerException")
	}
	arr := ref.Ref
	if index < 0 || int(index) >= len(arr.Elements) {
		return newJavaException("java/lang/ArrayIndexOutOfBoundsException")
	}
	arr.Elements[index] = value
	return nil
}
