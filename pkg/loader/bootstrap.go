package loader

// PlatformClasses is the small, fixed set of classes the runtime needs
// loaded and linked before any user bytecode executes: the root of the
// class hierarchy, the boxed primitive types the interpreter allocates
// directly (autoboxing and String construction), and the throwable
// hierarchy the exception-handling search relies on for subtype tests.
var PlatformClasses = []string{
	"java/lang/Object",
	"java/lang/String",
	"java/lang/Class",
	"java/lang/Throwable",
	"java/lang/Exception",
	"java/lang/RuntimeException",
	"java/lang/Error",
	"java/lang/NullPointerException",
	"java/lang/ArithmeticException",
	"java/lang/ClassCastException",
	"java/lang/ArrayIndexOutOfBoundsException",
	"java/lang/NegativeArraySizeException",
	"java/lang/IllegalMonitorStateException",
	"java/lang/ClassNotFoundException",
	"java/lang/Integer",
	"java/lang/Long",
	"java/lang/Float",
	"java/lang/Double",
	"java/lang/Boolean",
	"java/lang/Character",
	"java/lang/Byte",
	"java/lang/Short",
}

// Bootstrap eagerly loads (without running <clinit>) every class in
// PlatformClasses, so later lookups — especially the exception search's
// subtype walk against Throwable — never pay a first-use load cost and
// never fail mid-interpretation due to a missing platform class.
func (l *Loader) Bootstrap() error {
	for _, name := range PlatformClasses {
		if _, err := l.Load(name); err != nil {
			return err
		}
	}
	return nil
}
