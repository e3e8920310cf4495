// Package cli provides the command-line interface with injectable io.Writer for testing.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/mcdonaldj/filepack/internal/config"
	"github.com/mcdonaldj/filepack/internal/diff"
	"github.com/mcdonaldj/filepack/internal/errdefs"
	"github.com/mcdonaldj/filepack/internal/ports"
	"github.com/mcdonaldj/filepack/internal/processor"
	"github.com/mcdonaldj/filepack/internal/ref"
)

// Exit codes.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitNotFound = 2
)

// ConfigService provides configuration operations for the CLI.
type ConfigService interface {
	Load() (*config.Config, error)
	LoadFrom(path string) (*config.Config, error)
	Save(cfg *config.Config) error
	ConfigPath() (string, error)
	DefaultConfig() *config.Config
}

// FileService provides the save/pack/restore operations for the CLI.
type FileService interface {
	ArchiveFor(file ref.File) (ref.Archive, error)
	Load(file ref.File, encoding string) (string, error)
	Save(file ref.File, text, encoding string) error
	Pack(file ref.File) (ref.Archive, error)
	Unpack(archive ref.Archive, targetDir string) error
	Process(file ref.File, text, encoding string) (ref.Archive, error)
	Restore(file ref.File, targetDir string) error
	Entries(file ref.File) (ref.Archive, []ports.EntryInfo, error)
	Verify(file ref.File) error
	Diff(file ref.File, encoding string) (*diff.Result, error)
}

// ServiceFactory builds a FileService for the resolved configuration.
type ServiceFactory func(cfg *config.Config, logger *slog.Logger) FileService

// CLI represents the command-line interface with injectable dependencies.
type CLI struct {
	Out     io.Writer // Standard output
	Err     io.Writer // Standard error
	In      io.Reader // Standard input, read by save/process without --text
	Version string    // Application version
	Args    []string  // Command arguments (like os.Args)

	// Exit function for testability (defaults to os.Exit)
	Exit func(code int)

	// Injectable dependencies (nil means use defaults)
	ConfigSvc  ConfigService
	NewService ServiceFactory

	// Color functions (can be disabled for testing)
	green  func(a ...interface{}) string
	yellow func(a ...interface{}) string
	cyan   func(a ...interface{}) string
	gray   func(a ...interface{}) string
	red    func(a ...interface{}) string
}

// New creates a new CLI with default settings.
func New(version string) *CLI {
	return &CLI{
		Out:     os.Stdout,
		Err:     os.Stderr,
		In:      os.Stdin,
		Version: version,
		Args:    os.Args,
		Exit:    os.Exit,
		green:   color.New(color.FgGreen, color.Bold).SprintFunc(),
		yellow:  color.New(color.FgYellow).SprintFunc(),
		cyan:    color.New(color.FgCyan).SprintFunc(),
		gray:    color.New(color.FgHiBlack).SprintFunc(),
		red:     color.New(color.FgRed).SprintFunc(),
	}
}

// NewForTesting creates a CLI configured for testing (no colors, captured output).
func NewForTesting(out, errOut io.Writer, args []string) *CLI {
	noColor := func(a ...interface{}) string { return fmt.Sprint(a...) }
	return &CLI{
		Out:     out,
		Err:     errOut,
		In:      eofReader{},
		Version: "test",
		Args:    args,
		Exit:    func(int) {},
		green:   noColor,
		yellow:  noColor,
		cyan:    noColor,
		gray:    noColor,
		red:     noColor,
	}
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

// defaultConfigService wraps the config package functions.
type defaultConfigService struct{}

func (d *defaultConfigService) Load() (*config.Config, error)                { return config.Load() }
func (d *defaultConfigService) LoadFrom(path string) (*config.Config, error) { return config.LoadFrom(path) }
func (d *defaultConfigService) Save(cfg *config.Config) error                { return cfg.Save() }
func (d *defaultConfigService) ConfigPath() (string, error)                  { return config.ConfigPath() }
func (d *defaultConfigService) DefaultConfig() *config.Config                { return config.DefaultConfig() }

func defaultServiceFactory(cfg *config.Config, logger *slog.Logger) FileService {
	return processor.NewFromConfig(cfg, processor.WithLogger(logger))
}

// Helper methods to get the service or default
func (c *CLI) configSvc() ConfigService {
	if c.ConfigSvc != nil {
		return c.ConfigSvc
	}
	return &defaultConfigService{}
}

func (c *CLI) serviceFactory() ServiceFactory {
	if c.NewService != nil {
		return c.NewService
	}
	return defaultServiceFactory
}

// Run executes the CLI with the configured arguments.
func (c *CLI) Run() {
	if len(c.Args) < 2 {
		c.PrintUsage()
		c.Exit(ExitFailure)
		return
	}

	switch c.Args[1] {
	case "save":
		c.RunSave()
	case "load", "cat":
		c.RunLoad()
	case "pack":
		c.RunPack()
	case "unpack":
		c.RunUnpack()
	case "process":
		c.RunProcess()
	case "restore":
		c.RunRestore()
	case "list":
		c.RunList()
	case "verify":
		c.RunVerify()
	case "diff":
		c.RunDiff()
	case "init":
		c.InitConfig()
	case "version", "-v", "--version":
		fmt.Fprintf(c.Out, "filepack v%s\n", c.Version)
	case "help", "-h", "--help":
		c.PrintUsage()
	default:
		fmt.Fprintf(c.Err, "Unknown command: %s\n", c.Args[1])
		c.PrintUsage()
		c.Exit(ExitFailure)
	}
}

// PrintUsage prints the help message.
func (c *CLI) PrintUsage() {
	fmt.Fprintln(c.Out, `filepack - Single-File Archive Tool

Usage:
  filepack save <file> [--text=T] [--encoding=E]      Write text (or stdin) to file
  filepack load <file> [--encoding=E]                 Print the file's text
  filepack pack <file>                                Archive file next to itself
  filepack unpack <archive> [--target=DIR]            Extract an archive
  filepack process <file> [--text=T] [--encoding=E]   Save then pack
  filepack restore <file> [--target=DIR]              Extract the archive derived from file
  filepack list <file>                                Show the archive entry for file
  filepack verify <file>                              Check the archive matches file
  filepack diff <file> [--encoding=E]                 Compare archived and current text
  filepack init                                       Create default config file
  filepack version, -v                                Show version
  filepack help, -h                                   Show this help

Flags for every command:
  --convention=replace|append|suffix   Archive naming (note.zip, note.txt.zip, note_archive.zip)
  --config=PATH                        Config file (.yaml or .toml)
  --verbose                            Log each step to stderr

Config: ~/.filepack/config.yaml (override with FILEPACK_CONFIG)`)
}

// commonFlags holds flags accepted by every file command.
type commonFlags struct {
	convention string
	configPath string
	verbose    bool
}

func (c *CLI) newFlagSet(name string, common *commonFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(c.Err)
	fs.StringVar(&common.convention, "convention", "", "archive naming convention (replace, append, suffix)")
	fs.StringVar(&common.configPath, "config", "", "config file path")
	fs.BoolVar(&common.verbose, "verbose", false, "log each step to stderr")
	return fs
}

// parse parses the command's flags and returns its positional arguments.
func (c *CLI) parse(fs *pflag.FlagSet, usage string, want int) ([]string, bool) {
	if err := fs.Parse(c.Args[2:]); err != nil {
		fmt.Fprintln(c.Out, usage)
		c.Exit(ExitFailure)
		return nil, false
	}
	if fs.NArg() != want {
		fmt.Fprintln(c.Out, usage)
		c.Exit(ExitFailure)
		return nil, false
	}
	return fs.Args(), true
}

// setup loads the config, applies flag overrides and builds the service.
func (c *CLI) setup(common *commonFlags) (*config.Config, FileService, bool) {
	svc := c.configSvc()

	var (
		cfg *config.Config
		err error
	)
	if common.configPath != "" {
		path, expandErr := config.ExpandPath(common.configPath)
		if expandErr != nil {
			c.fail("Error loading config", expandErr)
			return nil, nil, false
		}
		cfg, err = svc.LoadFrom(path)
	} else {
		cfg, err = svc.Load()
	}
	if err != nil {
		c.fail("Error loading config", err)
		return nil, nil, false
	}

	if common.convention != "" {
		conv, err := ref.ParseConvention(common.convention)
		if err != nil {
			c.fail("Error", err)
			return nil, nil, false
		}
		cfg.Convention = string(conv)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if common.verbose {
		logger = slog.New(slog.NewTextHandler(c.Err, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	return cfg, c.serviceFactory()(cfg, logger), true
}

// fileArg resolves a positional path argument to a file reference.
func (c *CLI) fileArg(path string) (ref.File, bool) {
	f, err := ref.NewFile(path)
	if err != nil {
		c.fail("Error", err)
		return ref.File{}, false
	}
	return f, true
}

// fail prints err and exits with a code reflecting its kind.
func (c *CLI) fail(prefix string, err error) {
	fmt.Fprintf(c.Err, "%s %s: %v\n", c.red("x"), prefix, err)
	c.Exit(exitCode(err))
}

func exitCode(err error) int {
	if errors.Is(err, errdefs.ErrNotFound) {
		return ExitNotFound
	}
	return ExitFailure
}
