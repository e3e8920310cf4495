// Package content reads and writes the text of a single file in a
// named character encoding.
package content

import (
	"errors"
	"os"

	"github.com/mcdonaldj/filepack/internal/adapters/osfs"
	"github.com/mcdonaldj/filepack/internal/errdefs"
	"github.com/mcdonaldj/filepack/internal/ports"
	"github.com/mcdonaldj/filepack/internal/ref"
)

// FilePerm is the mode for newly created files.
const FilePerm os.FileMode = 0644

// Store implements ports.ContentStore on a ports.FileSystem.
type Store struct {
	fs ports.FileSystem
}

// NewStore creates a content store on the given filesystem.
func NewStore(fs ports.FileSystem) *Store {
	return &Store{fs: fs}
}

// NewDefaultStore creates a content store on the real filesystem.
func NewDefaultStore() *Store {
	return NewStore(osfs.New())
}

// Load returns the full decoded text of file.
func (s *Store) Load(file ref.File, encoding string) (string, error) {
	codec, err := LookupEncoding(encoding)
	if err != nil {
		return "", errdefs.New("load", file.Path(), errdefs.ErrUnknownEncoding, err)
	}

	info, err := s.fs.Stat(file.Path())
	if err != nil {
		return "", errdefs.FromOS("load", file.Path(), err)
	}
	if info.IsDir() {
		return "", errdefs.New("load", file.Path(), errdefs.ErrIO, errors.New("is a directory"))
	}

	data, err := s.fs.ReadFile(file.Path())
	if err != nil {
		return "", errdefs.FromOS("load", file.Path(), err)
	}

	text, err := codec.Decode(data)
	if err != nil {
		return "", errdefs.New("load", file.Path(), errdefs.ErrIO, err)
	}
	return text, nil
}

// Save replaces the contents of file with text encoded as encoding,
// creating the file and its parent directory when missing.
func (s *Store) Save(file ref.File, text, encoding string) error {
	if file.IsZero() {
		return errdefs.New("save", "", errdefs.ErrIO, errors.New("empty file reference"))
	}
	codec, err := LookupEncoding(encoding)
	if err != nil {
		return errdefs.New("save", file.Path(), errdefs.ErrUnknownEncoding, err)
	}

	data, err := codec.Encode(text)
	if err != nil {
		return errdefs.New("save", file.Path(), errdefs.ErrIO, err)
	}

	if err := s.fs.MkdirAll(file.Dir(), 0755); err != nil {
		return errdefs.New("save", file.Path(), errdefs.ErrIO, err)
	}
	if err := s.fs.WriteFile(file.Path(), data, FilePerm); err != nil {
		return errdefs.New("save", file.Path(), errdefs.ErrIO, err)
	}
	return nil
}

// Compile-time check that Store implements ports.ContentStore.
var _ ports.ContentStore = (*Store)(nil)
