package cli

import (
	"fmt"
	"io"

	"github.com/mcdonaldj/filepack/internal/config"
	"github.com/mcdonaldj/filepack/internal/diff"
	"github.com/mcdonaldj/filepack/internal/ref"
)

// readText returns --text when given, otherwise all of stdin.
func (c *CLI) readText(text string, textSet bool) (string, bool) {
	if textSet {
		return text, true
	}
	data, err := io.ReadAll(c.In)
	if err != nil {
		c.fail("Error reading stdin", err)
		return "", false
	}
	return string(data), true
}

func encodingOr(flagValue, configured string) string {
	if flagValue != "" {
		return flagValue
	}
	return configured
}

// RunSave writes text to a file.
func (c *CLI) RunSave() {
	var common commonFlags
	var text, encoding string
	fs := c.newFlagSet("save", &common)
	fs.StringVar(&text, "text", "", "text to write (default: read stdin)")
	fs.StringVar(&encoding, "encoding", "", "text encoding (default from config)")

	args, ok := c.parse(fs, "Usage: filepack save <file> [--text=T] [--encoding=E]", 1)
	if !ok {
		return
	}
	cfg, svc, ok := c.setup(&common)
	if !ok {
		return
	}
	file, ok := c.fileArg(args[0])
	if !ok {
		return
	}
	body, ok := c.readText(text, fs.Changed("text"))
	if !ok {
		return
	}

	enc := encodingOr(encoding, cfg.Encoding)
	if err := svc.Save(file, body, enc); err != nil {
		c.fail("Save failed", err)
		return
	}
	fmt.Fprintf(c.Out, "%s Saved %s %s\n", c.green("*"), file.Path(), c.gray("("+enc+")"))
}

// RunLoad prints a file's text.
func (c *CLI) RunLoad() {
	var common commonFlags
	var encoding string
	fs := c.newFlagSet("load", &common)
	fs.StringVar(&encoding, "encoding", "", "text encoding (default from config)")

	args, ok := c.parse(fs, "Usage: filepack load <file> [--encoding=E]", 1)
	if !ok {
		return
	}
	cfg, svc, ok := c.setup(&common)
	if !ok {
		return
	}
	file, ok := c.fileArg(args[0])
	if !ok {
		return
	}

	text, err := svc.Load(file, encodingOr(encoding, cfg.Encoding))
	if err != nil {
		c.fail("Load failed", err)
		return
	}
	fmt.Fprint(c.Out, text)
}

// RunPack archives a file next to itself.
func (c *CLI) RunPack() {
	var common commonFlags
	fs := c.newFlagSet("pack", &common)

	args, ok := c.parse(fs, "Usage: filepack pack <file>", 1)
	if !ok {
		return
	}
	_, svc, ok := c.setup(&common)
	if !ok {
		return
	}
	file, ok := c.fileArg(args[0])
	if !ok {
		return
	}

	archive, err := svc.Pack(file)
	if err != nil {
		c.fail("Pack failed", err)
		return
	}
	fmt.Fprintf(c.Out, "%s Packed %s -> %s\n", c.green("*"), file.Base(), c.cyan(archive.Path()))
}

// RunUnpack extracts an archive given by path.
func (c *CLI) RunUnpack() {
	var common commonFlags
	var target string
	fs := c.newFlagSet("unpack", &common)
	fs.StringVar(&target, "target", "", "extraction directory (default: archive's directory)")

	args, ok := c.parse(fs, "Usage: filepack unpack <archive> [--target=DIR]", 1)
	if !ok {
		return
	}
	cfg, svc, ok := c.setup(&common)
	if !ok {
		return
	}
	archive, err := ref.NewArchive(args[0])
	if err != nil {
		c.fail("Error", err)
		return
	}

	dir := c.targetDir(target, cfg.TargetDir, archive)
	if err := svc.Unpack(archive, dir); err != nil {
		c.fail("Unpack failed", err)
		return
	}
	fmt.Fprintf(c.Out, "%s Unpacked %s -> %s\n", c.green("*"), archive.Path(), c.cyan(dir))
}

// RunProcess saves text to a file and packs it.
func (c *CLI) RunProcess() {
	var common commonFlags
	var text, encoding string
	fs := c.newFlagSet("process", &common)
	fs.StringVar(&text, "text", "", "text to write (default: read stdin)")
	fs.StringVar(&encoding, "encoding", "", "text encoding (default from config)")

	args, ok := c.parse(fs, "Usage: filepack process <file> [--text=T] [--encoding=E]", 1)
	if !ok {
		return
	}
	cfg, svc, ok := c.setup(&common)
	if !ok {
		return
	}
	file, ok := c.fileArg(args[0])
	if !ok {
		return
	}
	body, ok := c.readText(text, fs.Changed("text"))
	if !ok {
		return
	}

	archive, err := svc.Process(file, body, encodingOr(encoding, cfg.Encoding))
	if err != nil {
		c.fail("Process failed", err)
		return
	}
	fmt.Fprintf(c.Out, "%s Saved and packed %s -> %s\n", c.green("*"), file.Base(), c.cyan(archive.Path()))
}

// RunRestore extracts the archive derived from a file.
func (c *CLI) RunRestore() {
	var common commonFlags
	var target string
	fs := c.newFlagSet("restore", &common)
	fs.StringVar(&target, "target", "", "extraction directory (default: archive's directory)")

	args, ok := c.parse(fs, "Usage: filepack restore <file> [--target=DIR]", 1)
	if !ok {
		return
	}
	cfg, svc, ok := c.setup(&common)
	if !ok {
		return
	}
	file, ok := c.fileArg(args[0])
	if !ok {
		return
	}
	archive, err := svc.ArchiveFor(file)
	if err != nil {
		c.fail("Error", err)
		return
	}

	dir := c.targetDir(target, cfg.TargetDir, archive)
	fmt.Fprintf(c.Out, "Restoring %s from %s...\n", file.Base(), archive.Path())
	if err := svc.Restore(file, dir); err != nil {
		c.fail("Restore failed", err)
		return
	}
	fmt.Fprintf(c.Out, "%s Restored %s into %s\n", c.green("*"), file.Base(), c.cyan(dir))
}

// targetDir picks the flag value, then the configured directory, then the
// archive's own directory.
func (c *CLI) targetDir(flagValue, configured string, archive ref.Archive) string {
	if flagValue != "" {
		return flagValue
	}
	if configured != "" {
		if expanded, err := config.ExpandPath(configured); err == nil {
			return expanded
		}
	}
	return archive.Dir()
}

// RunList shows the archive entry for a file.
func (c *CLI) RunList() {
	var common commonFlags
	fs := c.newFlagSet("list", &common)

	args, ok := c.parse(fs, "Usage: filepack list <file>", 1)
	if !ok {
		return
	}
	_, svc, ok := c.setup(&common)
	if !ok {
		return
	}
	file, ok := c.fileArg(args[0])
	if !ok {
		return
	}

	archive, entries, err := svc.Entries(file)
	if err != nil {
		c.fail("Error", err)
		return
	}

	fmt.Fprintf(c.Out, "Archive %s:\n\n", c.cyan(archive.Path()))
	fmt.Fprintf(c.Out, "  %-24s %10s %8s %s\n", "NAME", "SIZE", "CRC32", "MODIFIED")
	fmt.Fprintf(c.Out, "  %-24s %10s %8s %s\n", "----", "----", "-----", "--------")
	for _, e := range entries {
		modified := c.gray("-")
		if !e.Modified.IsZero() {
			modified = e.Modified.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(c.Out, "  %-24s %10s %08x %s\n", e.Name, FormatSize(e.Size), e.CRC32, modified)
	}
}

// RunVerify checks an archive against its source file.
func (c *CLI) RunVerify() {
	var common commonFlags
	fs := c.newFlagSet("verify", &common)

	args, ok := c.parse(fs, "Usage: filepack verify <file>", 1)
	if !ok {
		return
	}
	_, svc, ok := c.setup(&common)
	if !ok {
		return
	}
	file, ok := c.fileArg(args[0])
	if !ok {
		return
	}

	if err := svc.Verify(file); err != nil {
		c.fail("Verification failed", err)
		return
	}
	fmt.Fprintf(c.Out, "%s Checksum verified for %s\n", c.green("*"), file.Base())
}

// RunDiff compares the archived text of a file with its current text.
func (c *CLI) RunDiff() {
	var common commonFlags
	var encoding string
	fs := c.newFlagSet("diff", &common)
	fs.StringVar(&encoding, "encoding", "", "text encoding (default from config)")

	args, ok := c.parse(fs, "Usage: filepack diff <file> [--encoding=E]", 1)
	if !ok {
		return
	}
	cfg, svc, ok := c.setup(&common)
	if !ok {
		return
	}
	file, ok := c.fileArg(args[0])
	if !ok {
		return
	}

	result, err := svc.Diff(file, encodingOr(encoding, cfg.Encoding))
	if err != nil {
		c.fail("Diff failed", err)
		return
	}

	switch {
	case !result.Changed():
		fmt.Fprintf(c.Out, "%s %s matches its archive\n", c.green("*"), file.Base())
		return
	case result.IsBinary:
		fmt.Fprintf(c.Out, "Binary content differs for %s\n", file.Base())
		return
	}

	fmt.Fprintf(c.Out, "--- %s (archived)\n+++ %s (current)\n", file.Base(), file.Base())
	for _, l := range result.Lines {
		switch l.Type {
		case diff.Added:
			fmt.Fprintln(c.Out, c.green("+"+l.Content))
		case diff.Deleted:
			fmt.Fprintln(c.Out, c.red("-"+l.Content))
		default:
			fmt.Fprintln(c.Out, c.gray(" "+l.Content))
		}
	}
	fmt.Fprintf(c.Out, "\n%s added, %s deleted\n",
		c.green(fmt.Sprintf("%d", result.Added)),
		c.red(fmt.Sprintf("%d", result.Deleted)))
}

// InitConfig creates the default config file.
func (c *CLI) InitConfig() {
	svc := c.configSvc()
	cfg := svc.DefaultConfig()
	if err := svc.Save(cfg); err != nil {
		c.fail("Error saving config", err)
		return
	}
	path, err := svc.ConfigPath()
	if err != nil {
		c.fail("Error", err)
		return
	}
	fmt.Fprintf(c.Out, "Created config at %s\n", path)
}

// FormatSize formats bytes as human-readable size
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
