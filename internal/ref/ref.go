// Package ref builds file and archive references and derives archive
// paths from source paths.
package ref

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Convention names how an archive path is derived from its source path.
type Convention string

const (
	// Replace swaps the source extension for ".zip" (note.txt -> note.zip).
	Replace Convention = "replace"
	// Append adds ".zip" after the full name (note.txt -> note.txt.zip).
	Append Convention = "append"
	// Suffix swaps the extension for "_archive.zip" (note.txt -> note_archive.zip).
	Suffix Convention = "suffix"
)

// DefaultConvention is used when none is configured.
const DefaultConvention = Replace

// ArchiveExt is the extension of every derived archive.
const ArchiveExt = ".zip"

// ErrSelfArchive is returned when a derived archive path would be the source itself.
var ErrSelfArchive = errors.New("archive path collides with source path")

// Conventions lists the recognized conventions in display order.
func Conventions() []Convention {
	return []Convention{Replace, Append, Suffix}
}

// ParseConvention parses a convention name. The empty string yields the default.
func ParseConvention(name string) (Convention, error) {
	switch c := Convention(strings.ToLower(strings.TrimSpace(name))); c {
	case "":
		return DefaultConvention, nil
	case Replace, Append, Suffix:
		return c, nil
	default:
		return "", fmt.Errorf("unknown archive naming convention: %q (want replace, append or suffix)", name)
	}
}

func (c Convention) String() string { return string(c) }

// File is an absolute, cleaned path to a source file.
// The zero value is invalid; use NewFile.
type File struct {
	path string
}

// NewFile resolves path to an absolute file reference.
func NewFile(path string) (File, error) {
	if strings.TrimSpace(path) == "" {
		return File{}, errors.New("empty file path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return File{}, fmt.Errorf("resolving %s: %w", path, err)
	}
	return File{path: abs}, nil
}

// Path returns the absolute path.
func (f File) Path() string { return f.path }

// Base returns the final path element, which is also the archive entry name.
func (f File) Base() string { return filepath.Base(f.path) }

// Dir returns the directory containing the file.
func (f File) Dir() string { return filepath.Dir(f.path) }

func (f File) String() string { return f.path }

// IsZero reports whether f was not built by NewFile.
func (f File) IsZero() bool { return f.path == "" }

// Archive is an absolute path to an archive derived from a File.
type Archive struct {
	path string
}

// NewArchive resolves path to an absolute archive reference.
// Used when an archive is addressed directly rather than derived.
func NewArchive(path string) (Archive, error) {
	f, err := NewFile(path)
	if err != nil {
		return Archive{}, err
	}
	return Archive{path: f.path}, nil
}

// Path returns the absolute path.
func (a Archive) Path() string { return a.path }

// Dir returns the directory containing the archive.
func (a Archive) Dir() string { return filepath.Dir(a.path) }

func (a Archive) String() string { return a.path }

// ArchiveFor derives the archive path for f under convention c.
func ArchiveFor(f File, c Convention) (Archive, error) {
	if f.IsZero() {
		return Archive{}, errors.New("empty file reference")
	}
	dir, base := filepath.Split(f.path)
	var name string
	switch c {
	case Append:
		name = base + ArchiveExt
	case Suffix:
		name = stem(base) + "_archive" + ArchiveExt
	case Replace, "":
		name = stem(base) + ArchiveExt
	default:
		return Archive{}, fmt.Errorf("unknown archive naming convention: %q", c)
	}
	p := filepath.Join(dir, name)
	if p == f.path {
		return Archive{}, fmt.Errorf("%s: %w", f.path, ErrSelfArchive)
	}
	return Archive{path: p}, nil
}

// stem strips the extension from base. A leading dot alone does not
// start an extension, so ".env" keeps its name.
func stem(base string) string {
	ext := filepath.Ext(base)
	if ext == base || ext == "" {
		return base
	}
	return strings.TrimSuffix(base, ext)
}
