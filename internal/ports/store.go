package ports

import "github.com/mcdonaldj/filepack/internal/ref"

// ContentStore reads and writes the text of a single file.
type ContentStore interface {
	// Load returns the decoded text of the file.
	Load(file ref.File, encoding string) (string, error)

	// Save replaces the file's contents with text encoded as encoding.
	Save(file ref.File, text, encoding string) error
}
