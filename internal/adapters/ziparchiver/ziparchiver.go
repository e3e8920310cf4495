// Package ziparchiver provides an archiver adapter using the archive/zip package.
package ziparchiver

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/mcdonaldj/filepack/internal/errdefs"
	"github.com/mcdonaldj/filepack/internal/ports"
)

// MaxDecompressSize is the maximum allowed uncompressed entry size (10GB).
// This prevents decompression bomb attacks (G110).
const MaxDecompressSize = 10 * 1024 * 1024 * 1024 // 10GB

// Method selects how the entry is stored.
type Method string

const (
	Deflate Method = "deflate"
	Store   Method = "store"
)

// ParseMethod parses a compression method name. The empty string yields Deflate.
func ParseMethod(name string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(name))); m {
	case "":
		return Deflate, nil
	case Deflate, Store:
		return m, nil
	default:
		return "", fmt.Errorf("unknown compression method: %q (want deflate or store)", name)
	}
}

// ZipArchiver implements ports.Archiver using archive/zip with the
// klauspost deflate codec.
type ZipArchiver struct {
	method Method
	level  int
}

// Option configures a ZipArchiver.
type Option func(*ZipArchiver)

// WithMethod sets the compression method for new archives.
func WithMethod(m Method) Option {
	return func(a *ZipArchiver) { a.method = m }
}

// WithLevel sets the deflate level (-2..9, see compress/flate).
func WithLevel(level int) Option {
	return func(a *ZipArchiver) { a.level = level }
}

// New creates a new ZipArchiver adapter.
func New(opts ...Option) *ZipArchiver {
	a := &ZipArchiver{method: Deflate, level: flate.DefaultCompression}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *ZipArchiver) zipMethod() uint16 {
	if a.method == Store {
		return zip.Store
	}
	return zip.Deflate
}

// Pack writes a one-entry archive of srcPath to archivePath.
// The archive is written to a temporary file and renamed into place, so a
// failed pack never leaves a partial archive behind.
func (a *ZipArchiver) Pack(srcPath, archivePath string) error {
	info, err := os.Stat(srcPath)
	if err != nil {
		return errdefs.FromOS("pack", srcPath, err)
	}
	if !info.Mode().IsRegular() {
		return errdefs.New("pack", srcPath, errdefs.ErrIO, errors.New("not a regular file"))
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return errdefs.FromOS("pack", srcPath, err)
	}
	defer func() { _ = src.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(archivePath), "."+filepath.Base(archivePath)+"-*")
	if err != nil {
		return errdefs.New("pack", archivePath, errdefs.ErrIO, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := a.writeEntry(tmp, src, info); err != nil {
		return errdefs.New("pack", archivePath, errdefs.ErrIO, err)
	}

	if err := tmp.Close(); err != nil {
		return errdefs.New("pack", archivePath, errdefs.ErrIO, fmt.Errorf("closing zip file: %w", err))
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return errdefs.FromOS("pack", archivePath, err)
	}
	if err := os.Rename(tmpPath, archivePath); err != nil {
		return errdefs.FromOS("pack", archivePath, err)
	}
	committed = true
	return nil
}

func (a *ZipArchiver) writeEntry(out io.Writer, src io.Reader, info os.FileInfo) error {
	w := zip.NewWriter(out)
	level := a.level
	w.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("building header: %w", err)
	}
	header.Name = filepath.Base(info.Name())
	header.Method = a.zipMethod()

	entry, err := w.CreateHeader(header)
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("creating entry: %w", err)
	}
	if _, err := io.Copy(entry, src); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing entry: %w", err)
	}

	// Close zip writer to flush the central directory
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing zip writer: %w", err)
	}
	return nil
}

// open opens an archive and registers the klauspost decompressor.
// Open failures are classified into not-found, corrupt and i/o kinds.
func open(op, archivePath string) (*zip.ReadCloser, error) {
	if _, err := os.Stat(archivePath); err != nil {
		return nil, errdefs.FromOS(op, archivePath, err)
	}
	r, err := zip.OpenReader(archivePath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		if isCorrupt(err) {
			return nil, errdefs.New(op, archivePath, errdefs.ErrCorruptArchive, err)
		}
		return nil, errdefs.FromOS(op, archivePath, err)
	}
	r.RegisterDecompressor(zip.Deflate, flate.NewReader)
	return r, nil
}

func isCorrupt(err error) bool {
	var flateErr flate.CorruptInputError
	return errors.As(err, &flateErr) ||
		errors.Is(err, zip.ErrFormat) ||
		errors.Is(err, zip.ErrAlgorithm) ||
		errors.Is(err, zip.ErrChecksum) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}

// Unpack extracts every entry of archivePath into destDir.
// All entries are validated before destDir is touched.
func (a *ZipArchiver) Unpack(archivePath, destDir string) error {
	r, err := open("unpack", archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	// Get cleaned absolute path for destination
	absDestDir, err := filepath.Abs(destDir)
	if err != nil {
		return errdefs.New("unpack", destDir, errdefs.ErrIO, fmt.Errorf("resolving destination path: %w", err))
	}
	absDestDir = filepath.Clean(absDestDir)

	for _, f := range r.File {
		if err := checkEntry(f, absDestDir); err != nil {
			return errdefs.New("unpack", archivePath, errdefs.ErrCorruptArchive, err)
		}
	}

	if err := os.MkdirAll(absDestDir, 0755); err != nil {
		return errdefs.FromOS("unpack", absDestDir, err)
	}

	for _, f := range r.File {
		fpath := filepath.Join(absDestDir, f.Name)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(fpath, 0755); err != nil {
				return errdefs.FromOS("unpack", fpath, fmt.Errorf("creating directory: %w", err))
			}
			continue
		}

		// Create parent directories
		if err := os.MkdirAll(filepath.Dir(fpath), 0755); err != nil {
			return errdefs.FromOS("unpack", fpath, fmt.Errorf("creating parent directory: %w", err))
		}

		if err := extractFile(f, fpath); err != nil {
			if isCorrupt(err) {
				return errdefs.New("unpack", archivePath, errdefs.ErrCorruptArchive, fmt.Errorf("extracting %s: %w", f.Name, err))
			}
			return errdefs.FromOS("unpack", fpath, fmt.Errorf("extracting %s: %w", f.Name, err))
		}
	}

	return nil
}

// checkEntry rejects entries that cannot be extracted safely into absDestDir.
func checkEntry(f *zip.File, absDestDir string) error {
	// SECURITY: Block symlinks to prevent symlink attacks
	if f.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("symlinks not supported: %s", f.Name)
	}

	// SECURITY: Check for ZipSlip vulnerability
	target := filepath.Join(absDestDir, f.Name)
	if !isWithinDir(absDestDir, target) {
		return fmt.Errorf("invalid file path (path traversal detected): %s", f.Name)
	}

	// A file entry must name something below absDestDir, not the directory itself.
	if !f.FileInfo().IsDir() && filepath.Clean(target) == absDestDir {
		return fmt.Errorf("invalid file name: %q", f.Name)
	}

	// SECURITY: Limit decompression size to prevent zip bombs (G110)
	if f.UncompressedSize64 > MaxDecompressSize {
		return fmt.Errorf("file too large: %d bytes exceeds limit of %d bytes", f.UncompressedSize64, uint64(MaxDecompressSize))
	}
	return nil
}

// extractFile extracts a single entry to destPath through a temporary
// file, replacing destPath only once the entry has been fully read.
func extractFile(f *zip.File, destPath string) error {
	declaredSize := f.UncompressedSize64

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(destPath), "."+filepath.Base(destPath)+"-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	// Use LimitReader to enforce size limit during decompression
	// Add 1 byte to detect if actual size exceeds declared size
	limitedReader := io.LimitReader(rc, int64(declaredSize)+1)
	written, err := io.Copy(tmp, limitedReader)
	if err != nil {
		return err
	}

	// Check if more data was available than declared (corrupted/malicious zip)
	if written > int64(declaredSize) {
		return fmt.Errorf("decompressed size exceeds declared size: %w", zip.ErrFormat)
	}

	if err := tmp.Close(); err != nil {
		return err
	}
	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0644
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return err
	}
	committed = true
	return nil
}

// isWithinDir checks if the target path is within the base directory.
func isWithinDir(absBaseDir, targetPath string) bool {
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}
	absTarget = filepath.Clean(absTarget)

	return strings.HasPrefix(absTarget, absBaseDir+string(filepath.Separator)) ||
		absTarget == absBaseDir
}

// List returns the entries stored in the archive, directories excluded.
func (a *ZipArchiver) List(archivePath string) ([]ports.EntryInfo, error) {
	r, err := open("list", archivePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	var entries []ports.EntryInfo
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}

		// Safe conversion: check for overflow before uint64 -> int64
		size := int64(0)
		if f.UncompressedSize64 <= math.MaxInt64 {
			size = int64(f.UncompressedSize64)
		}
		entries = append(entries, ports.EntryInfo{
			Name:     f.Name,
			Size:     size,
			CRC32:    f.CRC32,
			Method:   f.Method,
			Modified: f.Modified,
		})
	}

	return entries, nil
}

// ReadEntry reads the contents of the named entry.
func (a *ZipArchiver) ReadEntry(archivePath, name string) ([]byte, error) {
	r, err := open("read", archivePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		if f.UncompressedSize64 > MaxDecompressSize {
			return nil, errdefs.New("read", archivePath, errdefs.ErrCorruptArchive,
				fmt.Errorf("entry too large: %s", name))
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errdefs.New("read", archivePath, errdefs.ErrCorruptArchive, err)
		}
		defer func() { _ = rc.Close() }()

		content, err := io.ReadAll(rc)
		if err != nil {
			if isCorrupt(err) {
				return nil, errdefs.New("read", archivePath, errdefs.ErrCorruptArchive, err)
			}
			return nil, errdefs.New("read", archivePath, errdefs.ErrIO, err)
		}
		return content, nil
	}

	return nil, errdefs.New("read", archivePath, errdefs.ErrNotFound, fmt.Errorf("entry not in archive: %s", name))
}

// Compile-time check that ZipArchiver implements ports.Archiver.
var _ ports.Archiver = (*ZipArchiver)(nil)
