package interp

import (
	"fmt"
	"strings"

	"govm/pkg/classfile"
	"govm/pkg/object"
)

// parseParamDescriptors splits a method descriptor's parameter list into its
// individual field descriptors, in order. The operand stack and args slices
// this package passes around hold one object.Value per parameter regardless
// of its JVM computational-type width, so callers never need a separate
// slot count — only local variable placement does, via paramSlotWidth.
func parseParamDescriptors(descriptor string) ([]string, error) {
	start := strings.IndexByte(descriptor, '(')
	end := strings.IndexByte(descriptor, ')')
	if start != 0 || end < start {
		return nil, fmt.Errorf("invalid method descriptor: %s", descriptor)
	}
	params := descriptor[start+1 : end]

	var out []string
	i := 0
	for i < len(params) {
		j := i
		for j < len(params) && params[j] == '[' {
			j++
		}
		if j >= len(params) {
			return nil, fmt.Errorf("truncated type descriptor in %s", descriptor)
		}
		switch params[j] {
		case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
			j++
		case 'L':
			for j < len(params) && params[j] != ';' {
				j++
			}
			if j >= len(params) {
				return nil, fmt.Errorf("unterminated class type in %s", descriptor)
			}
			j++
		default:
			return nil, fmt.Errorf("invalid type descriptor char %q in %s", params[j], descriptor)
		}
		out = append(out, params[i:j])
		i = j
	}
	return out, nil
}

// returnDescriptor returns the portion of a method descriptor after the
// closing paren: "V" for void, or a field descriptor otherwise.
func returnDescriptor(descriptor string) string {
	end := strings.IndexByte(descriptor, ')')
	if end < 0 || end+1 >= len(descriptor) {
		return "V"
	}
	return descriptor[end+1:]
}

func isVoidReturn(descriptor string) bool {
	return returnDescriptor(descriptor) == "V"
}

// paramSlotWidth reports how many local variable slots a parameter of this
// descriptor occupies: 2 for long/double, 1 for everything else.
func paramSlotWidth(descriptor string) int {
	if descriptor == "J" || descriptor == "D" {
		return 2
	}
	return 1
}

// placeArgs writes args (one object.Value per parameter, in order) into
// locals starting at startSlot, honoring the two-slot width of long/double
// parameters the way the class file format itself does.
func placeArgs(locals []object.Value, startSlot int, paramDescriptors []string, args []object.Value) {
	slot := startSlot
	for i, d := range paramDescriptors {
		locals[slot] = args[i]
		slot += paramSlotWidth(d)
	}
}

// placeMethodArgs lays args out into frame's locals: a receiver in slot 0
// for instance methods (args[0]), followed by the declared parameters at
// their slot-width-correct offsets.
func placeMethodArgs(frame *Frame, method *classfile.MethodInfo, args []object.Value) error {
	params, err := parseParamDescriptors(method.Descriptor)
	if err != nil {
		return err
	}

	startSlot := 0
	argIdx := 0
	if method.AccessFlags&classfile.AccStatic == 0 {
		if len(args) == 0 {
			return fmt.Errorf("%s%s: missing receiver argument", method.Name, method.Descriptor)
		}
		frame.Locals[0] = args[0]
		startSlot = 1
		argIdx = 1
	}

	placeArgs(frame.Locals, startSlot, params, args[argIdx:])
	return nil
}
