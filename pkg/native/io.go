package native

import (
	"fmt"

	"govm/pkg/object"
)

// registerIO installs java/io/PrintStream's print/println family, the only
// native I/O surface this interpreter exposes. print and println share one
// render function per descriptor in printlnOverloads, so System.out.println(x) and
// System.out.print(x) behave identically for every argument type except
// the trailing newline.
func registerIO(r *Registry) {
	printlnOverloads := map[string]func(object.Value) string{
		"()V":                     func(object.Value) string { return "" },
		"(Ljava/lang/String;)V":   func(v object.Value) string { return object.StringContents(v.Ref) },
		"(Ljava/lang/Object;)V":   func(v object.Value) string { return printObjectValue(v) },
		"(I)V":                    func(v object.Value) string { return fmt.Sprintf("%d", v.Int) },
		"(J)V":                    func(v object.Value) string { return fmt.Sprintf("%d", v.Long) },
		"(F)V":                    func(v object.Value) string { return fmt.Sprintf("%v", v.Float) },
		"(D)V":                    func(v object.Value) string { return fmt.Sprintf("%v", v.Dbl) },
		"(Z)V":                    func(v object.Value) string { return fmt.Sprintf("%t", v.Int != 0) },
		"(C)V":                    func(v object.Value) string { return string(rune(v.Int)) },
	}
	for descriptor, render := range printlnOverloads {
		render := render
		r.Register("java/io/PrintStream", "println", descriptor, func(host Host, args []object.Value) (object.Value, error) {
			var payload object.Value
			if len(args) > 1 {
				payload = args[1]
			}
			fmt.Fprintln(host.Stdout(), render(payload))
			return object.Value{}, nil
		})
		if descriptor == "()V" {
			continue
		}
		r.Register("java/io/PrintStream", "print", descriptor, func(host Host, args []object.Value) (object.Value, error) {
			fmt.Fprint(host.Stdout(), render(args[1]))
			return object.Value{}, nil
		})
	}
}

// printObjectValue renders an arbitrary Object argument to print/println:
// strings by content, null as "null", everything else by the same
// ClassName@identity approximation invokedynamic string concatenation
// uses, since calling back into a real toString() risks reentering the
// interpreter from inside a native call.
func printObjectValue(v object.Value) string {
	if v.Ref == nil {
		return "null"
	}
	if v.Ref.ClassName == "java/lang/String" {
		return object.StringContents(v.Ref)
	}
	return fmt.Sprintf("%s@%x", v.Ref.ClassName, v.Ref.Header.Identity)
}
