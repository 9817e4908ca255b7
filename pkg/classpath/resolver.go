// Package classpath resolves a binary class name to its decoded class file,
// searching an ordered list of locations the way the JVM's own classpath
// does: each resolver is tried in turn and the first hit wins.
package classpath

import (
	"errors"
	"fmt"

	"govm/pkg/classfile"
)

// ErrNotFound is returned by a Resolver when it has no entry for the
// requested class; Path tries the next resolver in the chain.
var ErrNotFound = errors.New("classpath: class not found")

// Resolver locates and decodes a single class by its binary name
// (slash-separated, e.g. "java/lang/Object").
type Resolver interface {
	Resolve(name string) (*classfile.ClassFile, error)
	// Close releases any resources (open archives, mappings) held by the
	// resolver.
	Close() error
}

// Path is an ordered chain of resolvers, searched front to back. It caches
// every class it has successfully resolved so a class is only ever decoded
// once regardless of how many loaders ask for it.
type Path struct {
	resolvers []Resolver
	cache     map[string]*classfile.ClassFile
}

// NewPath builds a classpath out of the given resolvers, in search order.
func NewPath(resolvers ...Resolver) *Path {
	return &Path{
		resolvers: resolvers,
		cache:     make(map[string]*classfile.ClassFile),
	}
}

// Resolve returns the decoded class file for name, consulting the cache
// first and then each resolver in order.
func (p *Path) Resolve(name string) (*classfile.ClassFile, error) {
	if cf, ok := p.cache[name]; ok {
		return cf, nil
	}

	for _, r := range p.resolvers {
		cf, err := r.Resolve(name)
		if err == nil {
			p.cache[name] = cf
			return cf, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("classpath: resolving %s: %w", name, err)
		}
	}

	return nil, fmt.Errorf("classpath: class %s not found in any resolver: %w", name, ErrNotFound)
}

// Close closes every resolver in the chain, returning the first error
// encountered (if any) after attempting to close them all.
func (p *Path) Close() error {
	var firstErr error
	for _, r := range p.resolvers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
