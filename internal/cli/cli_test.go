package cli

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mcdonaldj/filepack/internal/config"
	"github.com/mcdonaldj/filepack/internal/diff"
	"github.com/mcdonaldj/filepack/internal/errdefs"
	"github.com/mcdonaldj/filepack/internal/ports"
	"github.com/mcdonaldj/filepack/internal/ref"
)

// ============================================================================
// Mock implementations for testing
// ============================================================================

// mockConfigService implements ConfigService for testing.
type mockConfigService struct {
	config     *config.Config
	loadErr    error
	saveErr    error
	saved      *config.Config
	loadedFrom string
	configPath string
}

func newMockConfigService() *mockConfigService {
	cfg := config.DefaultConfig()
	return &mockConfigService{
		config:     cfg,
		configPath: "/test/.filepack/config.yaml",
	}
}

func (m *mockConfigService) Load() (*config.Config, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	cfg := *m.config
	return &cfg, nil
}

func (m *mockConfigService) LoadFrom(path string) (*config.Config, error) {
	m.loadedFrom = path
	return m.Load()
}

func (m *mockConfigService) Save(cfg *config.Config) error {
	m.saved = cfg
	return m.saveErr
}

func (m *mockConfigService) ConfigPath() (string, error) {
	return m.configPath, nil
}

func (m *mockConfigService) DefaultConfig() *config.Config {
	return config.DefaultConfig()
}

// mockFileService implements FileService for testing error paths.
type mockFileService struct {
	err          error
	diffResult   *diff.Result
	lastTarget   string
	lastEncoding string
}

func (m *mockFileService) ArchiveFor(file ref.File) (ref.Archive, error) {
	return ref.ArchiveFor(file, ref.Replace)
}
func (m *mockFileService) Load(file ref.File, encoding string) (string, error) {
	m.lastEncoding = encoding
	return "", m.err
}
func (m *mockFileService) Save(file ref.File, text, encoding string) error {
	m.lastEncoding = encoding
	return m.err
}
func (m *mockFileService) Pack(file ref.File) (ref.Archive, error) {
	if m.err != nil {
		return ref.Archive{}, m.err
	}
	return m.ArchiveFor(file)
}
func (m *mockFileService) Unpack(archive ref.Archive, targetDir string) error {
	m.lastTarget = targetDir
	return m.err
}
func (m *mockFileService) Process(file ref.File, text, encoding string) (ref.Archive, error) {
	m.lastEncoding = encoding
	if m.err != nil {
		return ref.Archive{}, m.err
	}
	return m.ArchiveFor(file)
}
func (m *mockFileService) Restore(file ref.File, targetDir string) error {
	m.lastTarget = targetDir
	return m.err
}
func (m *mockFileService) Entries(file ref.File) (ref.Archive, []ports.EntryInfo, error) {
	a, _ := m.ArchiveFor(file)
	return a, nil, m.err
}
func (m *mockFileService) Verify(file ref.File) error { return m.err }
func (m *mockFileService) Diff(file ref.File, encoding string) (*diff.Result, error) {
	m.lastEncoding = encoding
	return m.diffResult, m.err
}

// ============================================================================
// Test helper
// ============================================================================

// testCLI creates a CLI for testing with mocks and exit tracking.
type testCLI struct {
	*CLI
	out        *bytes.Buffer
	errOut     *bytes.Buffer
	exitCode   int
	exitCalled bool
	cfgSvc     *mockConfigService
}

func newTestCLI(args ...string) *testCLI {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	tc := &testCLI{
		out:    out,
		errOut: errOut,
		cfgSvc: newMockConfigService(),
	}

	tc.CLI = NewForTesting(out, errOut, append([]string{"filepack"}, args...))
	tc.Exit = func(code int) {
		tc.exitCode = code
		tc.exitCalled = true
	}
	tc.ConfigSvc = tc.cfgSvc
	return tc
}

func (tc *testCLI) withService(svc FileService) *testCLI {
	tc.NewService = func(*config.Config, *slog.Logger) FileService { return svc }
	return tc
}

// ============================================================================
// Tests
// ============================================================================

func TestVersionFlags(t *testing.T) {
	for _, arg := range []string{"version", "-v", "--version"} {
		t.Run(arg, func(t *testing.T) {
			tc := newTestCLI(arg)
			tc.Version = "2.0.0"
			tc.Run()

			if !strings.Contains(tc.out.String(), "filepack v2.0.0") {
				t.Errorf("output = %q, expected version", tc.out.String())
			}
			if tc.exitCalled {
				t.Error("version should not exit")
			}
		})
	}
}

func TestHelp(t *testing.T) {
	tc := newTestCLI("help")
	tc.Run()
	for _, cmd := range []string{"save", "load", "pack", "unpack", "process", "restore", "list", "verify", "diff"} {
		if !strings.Contains(tc.out.String(), "filepack "+cmd) {
			t.Errorf("usage should mention %q", cmd)
		}
	}
}

func TestNoCommand(t *testing.T) {
	tc := newTestCLI()
	tc.Run()
	if tc.exitCode != ExitFailure {
		t.Errorf("exitCode = %d, expected %d", tc.exitCode, ExitFailure)
	}
}

func TestUnknownCommand(t *testing.T) {
	tc := newTestCLI("frobnicate")
	tc.Run()

	if !strings.Contains(tc.errOut.String(), "Unknown command: frobnicate") {
		t.Errorf("stderr = %q", tc.errOut.String())
	}
	if tc.exitCode != ExitFailure {
		t.Errorf("exitCode = %d, expected %d", tc.exitCode, ExitFailure)
	}
}

func TestMissingArgumentPrintsUsage(t *testing.T) {
	for _, cmd := range []string{"save", "load", "pack", "unpack", "process", "restore", "list", "verify", "diff"} {
		t.Run(cmd, func(t *testing.T) {
			tc := newTestCLI(cmd)
			tc.Run()
			if !strings.Contains(tc.out.String(), "Usage: filepack "+cmd) {
				t.Errorf("output = %q, expected usage", tc.out.String())
			}
			if tc.exitCode != ExitFailure {
				t.Errorf("exitCode = %d, expected %d", tc.exitCode, ExitFailure)
			}
		})
	}
}

func TestProcessLoadRestoreEndToEnd(t *testing.T) {
	dir := t.TempDir()
	note := filepath.Join(dir, "note.txt")

	tc := newTestCLI("process", note, "--text", "hello world")
	tc.Run()
	if tc.exitCalled {
		t.Fatalf("process exited %d: %s", tc.exitCode, tc.errOut.String())
	}
	if !strings.Contains(tc.out.String(), filepath.Join(dir, "note.zip")) {
		t.Errorf("output = %q, expected archive path", tc.out.String())
	}

	tc = newTestCLI("load", note)
	tc.Run()
	if tc.out.String() != "hello world" {
		t.Errorf("load output = %q, expected %q", tc.out.String(), "hello world")
	}

	out := filepath.Join(dir, "out")
	tc = newTestCLI("restore", note, "--target", out)
	tc.Run()
	if tc.exitCalled {
		t.Fatalf("restore exited %d: %s", tc.exitCode, tc.errOut.String())
	}
	data, err := os.ReadFile(filepath.Join(out, "note.txt"))
	if err != nil {
		t.Fatalf("restored file missing: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("restored = %q", data)
	}

	tc = newTestCLI("verify", note)
	tc.Run()
	if !strings.Contains(tc.out.String(), "Checksum verified for note.txt") {
		t.Errorf("verify output = %q", tc.out.String())
	}

	tc = newTestCLI("list", note)
	tc.Run()
	if !strings.Contains(tc.out.String(), "note.txt") || !strings.Contains(tc.out.String(), "11 B") {
		t.Errorf("list output = %q", tc.out.String())
	}
}

func TestSaveFromStdinThenPackAndUnpack(t *testing.T) {
	dir := t.TempDir()
	note := filepath.Join(dir, "note.txt")

	tc := newTestCLI("save", note, "--encoding=latin1")
	tc.In = strings.NewReader("café")
	tc.Run()
	if tc.exitCalled {
		t.Fatalf("save exited %d: %s", tc.exitCode, tc.errOut.String())
	}
	raw, _ := os.ReadFile(note)
	if !bytes.Equal(raw, []byte("caf\xe9")) {
		t.Errorf("saved bytes = %q, expected latin1", raw)
	}

	tc = newTestCLI("pack", note, "--convention", "append")
	tc.Run()
	archive := filepath.Join(dir, "note.txt.zip")
	if _, err := os.Stat(archive); err != nil {
		t.Fatalf("archive not created: %v (%s)", err, tc.errOut.String())
	}

	out := filepath.Join(dir, "unpacked")
	tc = newTestCLI("unpack", archive, "--target="+out)
	tc.Run()
	if tc.exitCalled {
		t.Fatalf("unpack exited %d: %s", tc.exitCode, tc.errOut.String())
	}
	got, _ := os.ReadFile(filepath.Join(out, "note.txt"))
	if !bytes.Equal(got, raw) {
		t.Errorf("unpacked bytes = %q, expected %q", got, raw)
	}
}

func TestDiffOutput(t *testing.T) {
	dir := t.TempDir()
	note := filepath.Join(dir, "note.txt")

	newTestCLI("process", note, "--text", "one\ntwo\n").Run()
	tc := newTestCLI("diff", note)
	tc.Run()
	if !strings.Contains(tc.out.String(), "matches its archive") {
		t.Errorf("diff output = %q", tc.out.String())
	}

	newTestCLI("save", note, "--text", "one\nthree\n").Run()
	tc = newTestCLI("diff", note)
	tc.Run()
	output := tc.out.String()
	for _, want := range []string{"-two", "+three", " one", "1 added, 1 deleted"} {
		if !strings.Contains(output, want) {
			t.Errorf("diff output missing %q:\n%s", want, output)
		}
	}
}

func TestNotFoundExitCode(t *testing.T) {
	dir := t.TempDir()
	for _, cmd := range []string{"pack", "restore", "load"} {
		t.Run(cmd, func(t *testing.T) {
			tc := newTestCLI(cmd, filepath.Join(dir, "ghost.txt"))
			tc.Run()
			if tc.exitCode != ExitNotFound {
				t.Errorf("exitCode = %d, expected %d (stderr %q)", tc.exitCode, ExitNotFound, tc.errOut.String())
			}
		})
	}
}

func TestServiceErrorsAreReported(t *testing.T) {
	svc := &mockFileService{err: errdefs.New("pack", "/x", errdefs.ErrCorruptArchive, errors.New("bad header"))}
	tc := newTestCLI("restore", "/data/note.txt").withService(svc)
	tc.Run()

	if tc.exitCode != ExitFailure {
		t.Errorf("exitCode = %d, expected %d", tc.exitCode, ExitFailure)
	}
	if !strings.Contains(tc.errOut.String(), "Restore failed") || !strings.Contains(tc.errOut.String(), "corrupt archive") {
		t.Errorf("stderr = %q", tc.errOut.String())
	}
}

func TestEncodingFallsBackToConfig(t *testing.T) {
	svc := &mockFileService{}
	tc := newTestCLI("save", "/data/note.txt", "--text", "x").withService(svc)
	tc.cfgSvc.config.Encoding = "windows-1252"
	tc.Run()
	if svc.lastEncoding != "windows-1252" {
		t.Errorf("encoding = %q, expected config value", svc.lastEncoding)
	}

	tc = newTestCLI("save", "/data/note.txt", "--text", "x", "--encoding", "utf-16le").withService(svc)
	tc.Run()
	if svc.lastEncoding != "utf-16le" {
		t.Errorf("encoding = %q, expected flag value", svc.lastEncoding)
	}
}

func TestTargetDirFallsBackToConfig(t *testing.T) {
	svc := &mockFileService{}
	tc := newTestCLI("restore", "/data/note.txt").withService(svc)
	tc.cfgSvc.config.TargetDir = "/restores"
	tc.Run()
	if svc.lastTarget != "/restores" {
		t.Errorf("target = %q, expected /restores", svc.lastTarget)
	}

	tc = newTestCLI("restore", "/data/note.txt").withService(svc)
	tc.Run()
	if svc.lastTarget != "/data" {
		t.Errorf("target = %q, expected archive dir /data", svc.lastTarget)
	}
}

func TestConventionFlagOverridesConfig(t *testing.T) {
	var seen *config.Config
	tc := newTestCLI("pack", "/data/note.txt", "--convention", "suffix")
	tc.NewService = func(cfg *config.Config, _ *slog.Logger) FileService {
		seen = cfg
		return &mockFileService{}
	}
	tc.Run()
	if seen == nil || seen.Convention != "suffix" {
		t.Errorf("convention = %+v, expected suffix", seen)
	}
}

func TestInvalidConventionFlag(t *testing.T) {
	tc := newTestCLI("pack", "/data/note.txt", "--convention", "sideways").withService(&mockFileService{})
	tc.Run()
	if tc.exitCode != ExitFailure {
		t.Errorf("exitCode = %d, expected %d", tc.exitCode, ExitFailure)
	}
}

func TestConfigFlagUsesLoadFrom(t *testing.T) {
	tc := newTestCLI("verify", "/data/note.txt", "--config", "/etc/filepack.toml").withService(&mockFileService{})
	tc.Run()
	if tc.cfgSvc.loadedFrom != "/etc/filepack.toml" {
		t.Errorf("loadedFrom = %q", tc.cfgSvc.loadedFrom)
	}
}

func TestConfigLoadError(t *testing.T) {
	tc := newTestCLI("pack", "/data/note.txt").withService(&mockFileService{})
	tc.cfgSvc.loadErr = errors.New("bad yaml")
	tc.Run()
	if !strings.Contains(tc.errOut.String(), "Error loading config") {
		t.Errorf("stderr = %q", tc.errOut.String())
	}
	if tc.exitCode != ExitFailure {
		t.Errorf("exitCode = %d, expected %d", tc.exitCode, ExitFailure)
	}
}

func TestVerboseLogsToStderr(t *testing.T) {
	dir := t.TempDir()
	tc := newTestCLI("process", filepath.Join(dir, "note.txt"), "--text", "x", "--verbose")
	tc.Run()
	if !strings.Contains(tc.errOut.String(), "packed file") {
		t.Errorf("stderr = %q, expected debug log", tc.errOut.String())
	}
}

func TestInitConfig(t *testing.T) {
	tc := newTestCLI("init")
	tc.Run()
	if tc.cfgSvc.saved == nil {
		t.Fatal("init should save a config")
	}
	if !strings.Contains(tc.out.String(), "Created config at /test/.filepack/config.yaml") {
		t.Errorf("output = %q", tc.out.String())
	}

	tc = newTestCLI("init")
	tc.cfgSvc.saveErr = errors.New("read-only")
	tc.Run()
	if tc.exitCode != ExitFailure {
		t.Errorf("exitCode = %d, expected %d", tc.exitCode, ExitFailure)
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{11, "11 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.bytes); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, expected %q", tt.bytes, got, tt.want)
		}
	}
}
