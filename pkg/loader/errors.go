package loader

import (
	"errors"
	"fmt"
)

// Sentinel error kinds the loader distinguishes, following the platform's
// own split between "the class isn't there at all", "it's structurally
// wrong", and "linking it violates a hierarchy invariant".
var (
	ErrClassNotFound = errors.New("loader: class not found")
	ErrNotAnInterface = errors.New("loader: expected an interface")
	ErrCircularInit   = errors.New("loader: circular class initialization")
	ErrIncompatibleClassChange = errors.New("loader: incompatible class change")
)

// ClassNotFoundError wraps ErrClassNotFound with the class name that
// couldn't be resolved.
type ClassNotFoundError struct {
	Name string
}

func (e *ClassNotFoundError) Error() string {
	return fmt.Sprintf("class %s not found", e.Name)
}

func (e *ClassNotFoundError) Unwrap() error { return ErrClassNotFound }

// CircularInitError describes a class whose <clinit> is requested again
// while it is already InProgress. Loader.EnsureInitialized does not return
// it: on this single call stack such a re-entry returns nil.
type CircularInitError struct {
	Name string
}

func (e *CircularInitError) Error() string {
	return fmt.Sprintf("class %s: circular initialization detected", e.Name)
}

func (e *CircularInitError) Unwrap() error { return ErrCircularInit }
