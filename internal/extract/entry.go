package extract

import (
	"io"
	"io/fs"
	"iter"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Kind distinguishes directory entries from file entries.
type Kind uint8

const (
	KindFile Kind = iota
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Entry is one item of an open archive.
type Entry struct {
	// Name is the slash-separated path relative to the archive root,
	// without the trailing slash of directory entries.
	Name string

	Kind Kind

	// Mode holds the permission bits recorded in the archive, if any.
	Mode fs.FileMode

	// Size is the declared uncompressed size of a file entry.
	Size uint64

	file *zip.File
}

// Open returns the entry's content stream. Each call starts a new stream;
// callers should read an entry once.
func (e *Entry) Open() (io.ReadCloser, error) {
	return e.file.Open()
}

// Entries yields the entries of r in archive order.
func Entries(r *zip.Reader) iter.Seq2[int, *Entry] {
	return func(yield func(int, *Entry) bool) {
		for i, f := range r.File {
			if !yield(i, newEntry(f)) {
				return
			}
		}
	}
}

func newEntry(f *zip.File) *Entry {
	entry := &Entry{
		Name: f.Name,
		Mode: f.Mode().Perm(),
		file: f,
	}
	if strings.HasSuffix(f.Name, "/") || f.Mode().IsDir() {
		entry.Kind = KindDirectory
		entry.Name = strings.TrimSuffix(f.Name, "/")
		return entry
	}
	entry.Kind = KindFile
	entry.Size = f.UncompressedSize64
	return entry
}
