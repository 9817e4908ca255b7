// Package loader resolves class names to decoded class files via
// pkg/classpath, recursively loads the superclass and interface chain,
// computes instance/static layout, and drives class initialization with
// cycle detection.
package loader

import (
	"errors"
	"fmt"

	"govm/pkg/classfile"
	"govm/pkg/classpath"
	"govm/pkg/object"
)

// Linker is the one method the interpreter calls back into the loader for:
// running a class's <clinit>, which may itself need to recursively load and
// initialize other classes. The interpreter supplies the implementation
// since running bytecode is its job, not the loader's.
type Linker interface {
	RunClinit(class *LoadedClass) error
}

// Loader owns the class registry: every class it has loaded, keyed by
// binary name, plus the classpath it resolves unloaded names through.
type Loader struct {
	path    *classpath.Path
	classes map[string]*LoadedClass
	linker  Linker
}

// New builds a loader over the given classpath. SetLinker must be called
// before any class initialization is attempted (the interpreter calls it
// once it exists, to break the loader/interpreter construction cycle).
func New(path *classpath.Path) *Loader {
	return &Loader{
		path:    path,
		classes: make(map[string]*LoadedClass),
	}
}

// SetLinker installs the callback used to run <clinit>.
func (l *Loader) SetLinker(linker Linker) { l.linker = linker }

// Loaded returns every class loaded so far, in no particular order. The
// heap's root walk does not use it; it goes through StaticRoots.
func (l *Loader) Loaded() []*LoadedClass {
	out := make([]*LoadedClass, 0, len(l.classes))
	for _, c := range l.classes {
		out = append(out, c)
	}
	return out
}

// Load resolves, recursively loads, and links name (a slash-separated
// binary class name), memoizing the result. It does not run <clinit>;
// callers that need an initialized class should call EnsureInitialized.
func (l *Loader) Load(name string) (*LoadedClass, error) {
	if c, ok := l.classes[name]; ok {
		return c, nil
	}

	cf, err := l.path.Resolve(name)
	if err != nil {
		if errors.Is(err, classpath.ErrNotFound) {
			return nil, &ClassNotFoundError{Name: name}
		}
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}

	return l.link(name, cf)
}

func (l *Loader) link(name string, cf *classfile.ClassFile) (*LoadedClass, error) {
	lc := &LoadedClass{
		Name:             name,
		ConstantPool:     cf.ConstantPool,
		AccessFlags:      cf.AccessFlags,
		SourceFile:       cf.SourceFile,
		BootstrapMethods: cf.BootstrapMethods,
		MethodTable:      make(map[MethodKey]*classfile.MethodInfo),
	}

	// Insert into the registry before recursing into superclass/interfaces
	// so a class circularly referencing itself (directly, via a cycle in
	// the hierarchy) resolves to the in-progress entry instead of looping.
	l.classes[name] = lc

	superName := cf.SuperClassName()
	lc.SuperName = superName
	if superName != "" {
		super, err := l.Load(superName)
		if err != nil {
			return nil, fmt.Errorf("loading superclass %s of %s: %w", superName, name, err)
		}
		lc.Super = super
	}

	ifaceNames, err := cf.InterfaceNames()
	if err != nil {
		return nil, fmt.Errorf("resolving interfaces of %s: %w", name, err)
	}
	for _, ifaceName := range ifaceNames {
		iface, err := l.Load(ifaceName)
		if err != nil {
			return nil, fmt.Errorf("loading interface %s of %s: %w", ifaceName, name, err)
		}
		if !iface.IsInterface() {
			return nil, fmt.Errorf("%s: %s is not an interface: %w", name, ifaceName, ErrNotAnInterface)
		}
		lc.Interfaces = append(lc.Interfaces, iface)
	}

	layoutInstanceFields(lc, cf)
	layoutStaticFields(lc, cf)

	lc.Methods = cf.Methods
	for i := range lc.Methods {
		m := &lc.Methods[i]
		lc.MethodTable[MethodKey{Name: m.Name, Descriptor: m.Descriptor}] = m
	}

	return lc, nil
}

// layoutInstanceFields flattens the instance field layout as superclass
// fields followed by this class's own declared instance fields, in
// declaration order — the invariant LoadedClass documents.
func layoutInstanceFields(lc *LoadedClass, cf *classfile.ClassFile) {
	lc.InstanceFieldIndex = make(map[string]int)

	if lc.Super != nil {
		lc.InstanceFields = append(lc.InstanceFields, lc.Super.InstanceFields...)
		lc.instanceDescriptors = append(lc.instanceDescriptors, lc.Super.instanceDescriptors...)
		for name, idx := range lc.Super.InstanceFieldIndex {
			lc.InstanceFieldIndex[name] = idx
		}
	}

	for _, f := range cf.Fields {
		if f.AccessFlags&classfile.AccStatic != 0 {
			continue
		}
		slot := len(lc.InstanceFields)
		lc.InstanceFields = append(lc.InstanceFields, FieldSlot{
			DeclaringClass: lc.Name,
			Name:           f.Name,
			Descriptor:     f.Descriptor,
		})
		lc.instanceDescriptors = append(lc.instanceDescriptors, f.Descriptor)
		lc.InstanceFieldIndex[f.Name] = slot
	}
}

// layoutStaticFields builds static storage for fields declared directly on
// this class, zeroed per descriptor per the LoadedClass invariant.
func layoutStaticFields(lc *LoadedClass, cf *classfile.ClassFile) {
	lc.StaticFieldIndex = make(map[string]int)

	for _, f := range cf.Fields {
		if f.AccessFlags&classfile.AccStatic == 0 {
			continue
		}
		slot := len(lc.StaticFields)
		lc.StaticFields = append(lc.StaticFields, FieldSlot{
			DeclaringClass: lc.Name,
			Name:           f.Name,
			Descriptor:     f.Descriptor,
		})
		lc.StaticValues = append(lc.StaticValues, object.ZeroForDescriptor(f.Descriptor))
		lc.StaticFieldIndex[f.Name] = slot
	}
}

// EnsureInitialized runs this class's (and transitively its superclass's)
// <clinit>, exactly once. Re-entry while InProgress always originates from
// the same initialization chain (this interpreter has one call stack and no
// concurrent callers), so it returns immediately rather than re-running
// <clinit> or treating the re-entry as an error.
func (l *Loader) EnsureInitialized(lc *LoadedClass) error {
	switch lc.InitState {
	case Initialized, InProgress:
		return nil
	}

	lc.InitState = InProgress

	if lc.Super != nil {
		if err := l.EnsureInitialized(lc.Super); err != nil {
			return err
		}
	}

	if l.linker != nil {
		if err := l.linker.RunClinit(lc); err != nil {
			return err
		}
	}

	lc.InitState = Initialized
	return nil
}

// StaticRoots collects every reference value currently held in any loaded
// class's static storage, used by the heap's root walk.
func (l *Loader) StaticRoots() []*object.Object {
	var out []*object.Object
	for _, c := range l.classes {
		for _, v := range c.StaticValues {
			if v.Tag == object.TagRef && v.Ref != nil {
				out = append(out, v.Ref)
			}
		}
	}
	return out
}
