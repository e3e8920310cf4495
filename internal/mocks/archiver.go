package mocks

import (
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/mcdonaldj/filepack/internal/ports"
)

// MockArchiver implements ports.Archiver for testing.
// Packing records the source's base name and, when FS is set, its content,
// so a later Unpack writes that content back through FS.
type MockArchiver struct {
	// FS is consulted by Pack and written by Unpack when non-nil
	FS *MockFileSystem
	// PackCalls records calls to Pack
	PackCalls []PackCall
	// UnpackCalls records calls to Unpack
	UnpackCalls []UnpackCall
	// Archives maps archive paths to entry name -> content
	Archives map[string]map[string][]byte
	// Errors maps method calls to errors
	Errors map[string]error
}

// PackCall records parameters of a Pack call.
type PackCall struct {
	SrcPath     string
	ArchivePath string
}

// UnpackCall records parameters of an Unpack call.
type UnpackCall struct {
	ArchivePath string
	DestDir     string
}

// NewMockArchiver creates a new mock archiver.
func NewMockArchiver() *MockArchiver {
	return &MockArchiver{
		Archives: make(map[string]map[string][]byte),
		Errors:   make(map[string]error),
	}
}

// Pack records the call and stores a one-entry archive.
func (m *MockArchiver) Pack(srcPath, archivePath string) error {
	m.PackCalls = append(m.PackCalls, PackCall{SrcPath: srcPath, ArchivePath: archivePath})
	if err, ok := m.Errors["Pack"]; ok {
		return err
	}
	var content []byte
	if m.FS != nil {
		data, err := m.FS.ReadFile(srcPath)
		if err != nil {
			return err
		}
		content = data
	}
	m.Archives[archivePath] = map[string][]byte{filepath.Base(srcPath): content}
	return nil
}

// Unpack records the call and writes stored entries into destDir when FS is set.
func (m *MockArchiver) Unpack(archivePath, destDir string) error {
	m.UnpackCalls = append(m.UnpackCalls, UnpackCall{ArchivePath: archivePath, DestDir: destDir})
	if err, ok := m.Errors["Unpack"]; ok {
		return err
	}
	entries, ok := m.Archives[archivePath]
	if !ok {
		return os.ErrNotExist
	}
	if m.FS == nil {
		return nil
	}
	for name, content := range entries {
		if err := m.FS.WriteFile(filepath.Join(destDir, name), content, 0644); err != nil {
			return err
		}
	}
	return nil
}

// List returns entry metadata for a stored archive.
func (m *MockArchiver) List(archivePath string) ([]ports.EntryInfo, error) {
	if err, ok := m.Errors["List"]; ok {
		return nil, err
	}
	entries, ok := m.Archives[archivePath]
	if !ok {
		return nil, os.ErrNotExist
	}
	var infos []ports.EntryInfo
	for name, content := range entries {
		infos = append(infos, ports.EntryInfo{
			Name:  name,
			Size:  int64(len(content)),
			CRC32: crc32.ChecksumIEEE(content),
		})
	}
	return infos, nil
}

// ReadEntry returns the stored content of an entry.
func (m *MockArchiver) ReadEntry(archivePath, name string) ([]byte, error) {
	if err, ok := m.Errors["ReadEntry"]; ok {
		return nil, err
	}
	entries, ok := m.Archives[archivePath]
	if !ok {
		return nil, os.ErrNotExist
	}
	content, ok := entries[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return content, nil
}

// Compile-time check that MockArchiver implements ports.Archiver.
var _ ports.Archiver = (*MockArchiver)(nil)
