// Package vmconfig holds the flat configuration struct cmd/govm populates
// from flags and passes down to the loader, heap and observation hook.
package vmconfig

// Config is the complete set of knobs a govm run can be configured with.
// It carries no defaults of its own; cmd/govm is responsible for filling
// in every field (including zero values where a flag was left unset).
type Config struct {
	// ClassPath is the ordered list of directories and jar/jmod archives
	// searched for a class by binary name, first match wins.
	ClassPath []string

	// HeapCapacity is the fixed number of object slots the heap's two
	// generations are allocated with, the --mem flag's value.
	HeapCapacity int

	// ObservationFile is the --file flag's value: a path the observation
	// hook's JSON array sink is written to. Empty disables the file sink.
	ObservationFile string

	// SnapOnWrite is the --snap flag: when true, a full heap snapshot record
	// per generation is emitted after every executed instruction, not only
	// after those that write to the heap.
	SnapOnWrite bool
}
