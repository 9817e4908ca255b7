package classpath

import (
	"fmt"
	"os"
	"path/filepath"

	mmap "github.com/edsrzf/mmap-go"

	"govm/pkg/classfile"
)

// DirectoryResolver resolves classes directly under a root directory,
// mapping a binary name like "com/example/Foo" to
// "<root>/com/example/Foo.class". It memory-maps each file it reads rather
// than copying it through os.ReadFile, since class files on a local
// classpath are typically read once and are otherwise untouched.
type DirectoryResolver struct {
	Root string
}

// NewDirectoryResolver builds a resolver rooted at the given directory.
func NewDirectoryResolver(root string) *DirectoryResolver {
	return &DirectoryResolver{Root: root}
}

func (d *DirectoryResolver) Resolve(name string) (*classfile.ClassFile, error) {
	path := filepath.Join(d.Root, filepath.FromSlash(name)+".class")

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("directory resolver: opening %s: %w", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("directory resolver: stat %s: %w", path, err)
	}
	if stat.Size() == 0 {
		return nil, fmt.Errorf("directory resolver: %s is empty", path)
	}

	mapped, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("directory resolver: mapping %s: %w", path, err)
	}
	defer mapped.Unmap()

	// Copy out of the mapping before decoding: the decoder reads from this
	// copy, and the mapping is released by the deferred Unmap when Resolve
	// returns.
	data := make([]byte, len(mapped))
	copy(data, mapped)

	cf, err := classfile.DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("directory resolver: decoding %s: %w", path, err)
	}
	return cf, nil
}

func (d *DirectoryResolver) Close() error { return nil }
