package ports

import "time"

// Archiver abstracts single-file archive operations for testability.
// Production code uses ZipArchiver adapter; tests use MockArchiver.
type Archiver interface {
	// Pack writes a one-entry archive of srcPath to archivePath, replacing
	// any archive already there. The entry is named after srcPath's base name.
	Pack(srcPath, archivePath string) error

	// Unpack extracts every entry of archivePath into destDir, creating
	// destDir if needed and overwriting files of the same name.
	Unpack(archivePath, destDir string) error

	// List returns the entries stored in the archive.
	List(archivePath string) ([]EntryInfo, error)

	// ReadEntry returns the uncompressed contents of the named entry.
	ReadEntry(archivePath, name string) ([]byte, error)
}

// EntryInfo contains metadata about an entry in an archive.
type EntryInfo struct {
	Name     string
	Size     int64
	CRC32    uint32
	Method   uint16
	Modified time.Time
}
