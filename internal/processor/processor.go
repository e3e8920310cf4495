// Package processor composes the content store and the archiver: save
// text then pack it, or derive the archive for a file and unpack it.
package processor

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"

	"github.com/mcdonaldj/filepack/internal/adapters/osfs"
	"github.com/mcdonaldj/filepack/internal/adapters/ziparchiver"
	"github.com/mcdonaldj/filepack/internal/config"
	"github.com/mcdonaldj/filepack/internal/content"
	"github.com/mcdonaldj/filepack/internal/diff"
	"github.com/mcdonaldj/filepack/internal/errdefs"
	"github.com/mcdonaldj/filepack/internal/ports"
	"github.com/mcdonaldj/filepack/internal/ref"
)

// Service provides save/pack/restore operations with injected dependencies.
// It holds no per-call state; concurrent calls on different paths are safe.
type Service struct {
	fs         ports.FileSystem
	store      ports.ContentStore
	archiver   ports.Archiver
	convention ref.Convention
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithConvention sets the archive naming convention.
func WithConvention(c ref.Convention) Option {
	return func(s *Service) { s.convention = c }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a new service with the given dependencies.
func NewService(fs ports.FileSystem, store ports.ContentStore, archiver ports.Archiver, opts ...Option) *Service {
	s := &Service{
		fs:         fs,
		store:      store,
		archiver:   archiver,
		convention: ref.DefaultConvention,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewDefaultService creates a service with real production dependencies.
func NewDefaultService(opts ...Option) *Service {
	fs := osfs.New()
	return NewService(fs, content.NewStore(fs), ziparchiver.New(), opts...)
}

// NewFromConfig creates a production service honoring cfg's convention
// and compression settings.
func NewFromConfig(cfg *config.Config, opts ...Option) *Service {
	fs := osfs.New()
	all := append([]Option{WithConvention(cfg.ConventionValue())}, opts...)
	return NewService(fs, content.NewStore(fs), ziparchiver.New(cfg.ArchiverOptions()...), all...)
}

// Convention returns the archive naming convention in force.
func (s *Service) Convention() ref.Convention {
	return s.convention
}

// ArchiveFor derives the archive reference for file.
func (s *Service) ArchiveFor(file ref.File) (ref.Archive, error) {
	return ref.ArchiveFor(file, s.convention)
}

// Load returns the decoded text of file.
func (s *Service) Load(file ref.File, encoding string) (string, error) {
	return s.store.Load(file, encoding)
}

// Save replaces the contents of file with text.
func (s *Service) Save(file ref.File, text, encoding string) error {
	if err := s.store.Save(file, text, encoding); err != nil {
		return err
	}
	s.logger.Debug("saved file", "path", file.Path(), "encoding", encoding, "chars", len(text))
	return nil
}

// Pack archives file next to itself and returns the archive reference.
func (s *Service) Pack(file ref.File) (ref.Archive, error) {
	archive, err := s.ArchiveFor(file)
	if err != nil {
		return ref.Archive{}, errdefs.New("pack", file.Path(), errdefs.ErrIO, err)
	}
	if err := s.archiver.Pack(file.Path(), archive.Path()); err != nil {
		return ref.Archive{}, errdefs.FromOS("pack", file.Path(), err)
	}
	s.logger.Debug("packed file", "path", file.Path(), "archive", archive.Path(), "convention", s.convention)
	return archive, nil
}

// Unpack extracts archive into targetDir, or into the archive's own
// directory when targetDir is empty.
func (s *Service) Unpack(archive ref.Archive, targetDir string) error {
	if targetDir == "" {
		targetDir = archive.Dir()
	}
	if err := s.archiver.Unpack(archive.Path(), targetDir); err != nil {
		return errdefs.FromOS("unpack", archive.Path(), err)
	}
	s.logger.Debug("unpacked archive", "archive", archive.Path(), "target", targetDir)
	return nil
}

// Process saves text to file and then packs it. A pack failure leaves
// the saved file in place.
func (s *Service) Process(file ref.File, text, encoding string) (ref.Archive, error) {
	if err := s.Save(file, text, encoding); err != nil {
		return ref.Archive{}, err
	}
	archive, err := s.Pack(file)
	if err != nil {
		s.logger.Warn("file saved but not archived", "path", file.Path(), "error", err)
		return ref.Archive{}, err
	}
	return archive, nil
}

// Restore unpacks the archive derived from file into targetDir, or into
// the archive's directory when targetDir is empty.
func (s *Service) Restore(file ref.File, targetDir string) error {
	archive, err := s.ArchiveFor(file)
	if err != nil {
		return errdefs.New("restore", file.Path(), errdefs.ErrIO, err)
	}
	return s.Unpack(archive, targetDir)
}

// Entries lists the archive derived from file.
func (s *Service) Entries(file ref.File) (ref.Archive, []ports.EntryInfo, error) {
	archive, err := s.ArchiveFor(file)
	if err != nil {
		return ref.Archive{}, nil, errdefs.New("list", file.Path(), errdefs.ErrIO, err)
	}
	entries, err := s.archiver.List(archive.Path())
	if err != nil {
		return archive, nil, errdefs.FromOS("list", archive.Path(), err)
	}
	return archive, entries, nil
}

// Verify checks that file's archive holds exactly one entry, named after
// file, whose size and CRC32 match the file on disk.
func (s *Service) Verify(file ref.File) error {
	archive, entries, err := s.Entries(file)
	if err != nil {
		return err
	}
	if len(entries) != 1 {
		return errdefs.New("verify", archive.Path(), errdefs.ErrMismatch,
			fmt.Errorf("expected 1 entry, found %d", len(entries)))
	}
	entry := entries[0]
	if entry.Name != file.Base() {
		return errdefs.New("verify", archive.Path(), errdefs.ErrMismatch,
			fmt.Errorf("entry %q does not match %q", entry.Name, file.Base()))
	}

	data, err := s.fs.ReadFile(file.Path())
	if err != nil {
		return errdefs.FromOS("verify", file.Path(), err)
	}
	if int64(len(data)) != entry.Size {
		return errdefs.New("verify", archive.Path(), errdefs.ErrMismatch,
			fmt.Errorf("size mismatch: archive %d bytes, file %d bytes", entry.Size, len(data)))
	}
	if sum := crc32.ChecksumIEEE(data); sum != entry.CRC32 {
		return errdefs.New("verify", archive.Path(), errdefs.ErrMismatch,
			fmt.Errorf("checksum mismatch: archive %08x, file %08x", entry.CRC32, sum))
	}
	s.logger.Debug("verified archive", "archive", archive.Path(), "crc32", fmt.Sprintf("%08x", entry.CRC32))
	return nil
}

// Diff compares the archived copy of file (old) with its current content
// (new). A missing file diffs as empty text.
func (s *Service) Diff(file ref.File, encoding string) (*diff.Result, error) {
	archive, err := s.ArchiveFor(file)
	if err != nil {
		return nil, errdefs.New("diff", file.Path(), errdefs.ErrIO, err)
	}
	codec, err := content.LookupEncoding(encoding)
	if err != nil {
		return nil, errdefs.New("diff", file.Path(), errdefs.ErrUnknownEncoding, err)
	}

	raw, err := s.archiver.ReadEntry(archive.Path(), file.Base())
	if err != nil {
		return nil, errdefs.FromOS("diff", archive.Path(), err)
	}
	archived, err := codec.Decode(raw)
	if err != nil {
		// Undecodable entries are compared as raw bytes
		archived = string(raw)
	}

	current, err := s.store.Load(file, codec.Name())
	if err != nil {
		switch {
		case errors.Is(err, errdefs.ErrNotFound):
			current = ""
		case errors.Is(err, errdefs.ErrIO):
			data, readErr := s.fs.ReadFile(file.Path())
			if readErr != nil {
				return nil, err
			}
			current = string(data)
		default:
			return nil, err
		}
	}

	return diff.Compute(archived, current), nil
}
