package classpath

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"

	"govm/pkg/classfile"
)

// ArchiveResolver resolves classes out of a zip-based archive: a .jar (class
// files stored at their binary-name path) or a .jmod (class files stored
// under a "classes/" prefix, with a four-byte "JM\x01\x00" header preceding
// the zip central directory).
type ArchiveResolver struct {
	path      string
	prefix    string
	zipData   []byte
	zipReader *zip.Reader
}

// NewJarResolver resolves classes out of a plain jar file.
func NewJarResolver(path string) *ArchiveResolver {
	return &ArchiveResolver{path: path, prefix: ""}
}

// NewJmodResolver resolves classes out of a jmod module file, whose class
// entries live under "classes/".
func NewJmodResolver(path string) *ArchiveResolver {
	return &ArchiveResolver{path: path, prefix: "classes/"}
}

func (a *ArchiveResolver) ensureOpen() error {
	if a.zipReader != nil {
		return nil
	}

	f, err := os.Open(a.path)
	if err != nil {
		return fmt.Errorf("archive resolver: opening %s: %w", a.path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("archive resolver: stat %s: %w", a.path, err)
	}

	data := make([]byte, stat.Size())
	if _, err := io.ReadFull(f, data); err != nil {
		return fmt.Errorf("archive resolver: reading %s: %w", a.path, err)
	}

	if a.prefix != "" {
		// jmod files prefix the zip data with a 4-byte magic header that
		// archive/zip doesn't understand.
		if len(data) < 4 {
			return fmt.Errorf("archive resolver: %s too short to be a jmod", a.path)
		}
		data = data[4:]
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("archive resolver: opening zip in %s: %w", a.path, err)
	}

	a.zipData = data
	a.zipReader = reader
	return nil
}

func (a *ArchiveResolver) Resolve(name string) (*classfile.ClassFile, error) {
	if err := a.ensureOpen(); err != nil {
		return nil, err
	}

	target := a.prefix + name + ".class"
	for _, file := range a.zipReader.File {
		if file.Name != target {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("archive resolver: opening %s in %s: %w", target, a.path, err)
		}
		defer rc.Close()

		cf, err := classfile.Decode(rc)
		if err != nil {
			return nil, fmt.Errorf("archive resolver: decoding %s: %w", target, err)
		}
		return cf, nil
	}

	return nil, fmt.Errorf("%s not found in %s: %w", target, a.path, ErrNotFound)
}

func (a *ArchiveResolver) Close() error {
	a.zipReader = nil
	a.zipData = nil
	return nil
}
