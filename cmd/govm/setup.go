package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"govm/pkg/classfile"
	"govm/pkg/classpath"
	"govm/pkg/heap"
	"govm/pkg/interp"
	"govm/pkg/loader"
	"govm/pkg/object"
	"govm/pkg/observe"
	"govm/pkg/vmconfig"
)

// lateRoot breaks the construction cycle between heap.New (which needs a
// heap.Root) and interp.New (which needs the heap): the heap is built
// against this indirection first, then its vm field is filled in once the VM
// itself exists.
type lateRoot struct {
	vm *interp.VM
}

func (r *lateRoot) Roots() []*object.Object {
	if r.vm == nil {
		return nil
	}
	return r.vm.Roots()
}

// buildVM wires a loader, heap and interpreter over classFilePath's
// containing directory as the class path, per cmd/gojvm's convention of
// treating the argument file's directory as the search root. It returns the
// VM, the binary class name to run, and the observation hook (nil unless
// cfg names an output file).
func buildVM(cfg vmconfig.Config, classFilePath string) (*interp.VM, string, *observe.Hook, error) {
	dir := filepath.Dir(classFilePath)
	className := strings.TrimSuffix(filepath.Base(classFilePath), ".class")

	resolvers := []classpath.Resolver{classpath.NewDirectoryResolver(dir)}
	for _, entry := range cfg.ClassPath {
		if strings.HasSuffix(entry, ".jar") {
			resolvers = append(resolvers, classpath.NewJarResolver(entry))
		} else if strings.HasSuffix(entry, ".jmod") {
			resolvers = append(resolvers, classpath.NewJmodResolver(entry))
		} else {
			resolvers = append(resolvers, classpath.NewDirectoryResolver(entry))
		}
	}
	path := classpath.NewPath(resolvers...)

	ld := loader.New(path)

	root := &lateRoot{}
	h := heap.New(cfg.HeapCapacity, root)

	vm := interp.New(ld, h)
	root.vm = vm

	if err := ld.Bootstrap(); err != nil {
		return nil, "", nil, fmt.Errorf("bootstrapping platform classes: %w", err)
	}

	var hook *observe.Hook
	if cfg.ObservationFile != "" {
		f, err := os.Create(cfg.ObservationFile)
		if err != nil {
			return nil, "", nil, fmt.Errorf("opening observation file %s: %w", cfg.ObservationFile, err)
		}
		hook = observe.New(nil, f, cfg.SnapOnWrite)
		vm.SetObserver(hook)
	}

	return vm, className, hook, nil
}

// buildObservedVM is buildVM plus a guaranteed observation hook: vis always
// observes, using cfg.ObservationFile's JSON array sink when set and a
// framed transport to stdout otherwise.
func buildObservedVM(cfg vmconfig.Config, classFilePath string) (*interp.VM, string, *observe.Hook, error) {
	vm, className, hook, err := buildVM(cfg, classFilePath)
	if err != nil {
		return nil, "", nil, err
	}
	if hook == nil {
		hook = observe.New(os.Stdout, nil, cfg.SnapOnWrite)
	}
	vm.SetObserver(hook)
	return vm, className, hook, nil
}

// decodeClassFile parses classFilePath directly, without going through a
// class path resolver, for the parse subcommand's decode-only use.
func decodeClassFile(classFilePath string) (*classfile.ClassFile, error) {
	f, err := os.Open(classFilePath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", classFilePath, err)
	}
	defer f.Close()
	return classfile.Decode(f)
}
