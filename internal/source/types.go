// Package source loads view files and hands out stable identifiers and
// content hashes for them.
package source

type (
	// FileID uniquely identifies a view file within a FileSet.
	FileID uint32
	// FileFlags encodes metadata about a view file.
	FileFlags uint8 // метаданные
)

const (
	// FileVirtual indicates the file was added from memory (test, stdin, etc.).
	FileVirtual FileFlags = 1 << iota
	FileHadBOM
	FileNormalizedCRLF
)

// File captures metadata and content for a single view file.
type File struct {
	ID   FileID
	Path string
	// VirtualPath is Path relative to the set's base directory, with forward
	// slashes. Generated builders are registered under it.
	VirtualPath string
	Content     []byte
	Hash        [32]byte
	Flags       FileFlags
}
