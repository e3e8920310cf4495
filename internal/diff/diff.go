// Package diff computes line diffs between an archived copy of a file
// and its current content.
package diff

import (
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Line types.
const (
	Same    = ' '
	Added   = '+'
	Deleted = '-'
)

// Line represents a single line in the diff output
type Line struct {
	Num1    int    // Line number in the old text (0 if added)
	Num2    int    // Line number in the new text (0 if deleted)
	Type    rune   // '+' added, '-' deleted, ' ' unchanged
	Content string // Line content without the trailing newline
}

// Result contains the line-by-line diff of two texts
type Result struct {
	Lines    []Line
	Added    int
	Deleted  int
	IsBinary bool
}

// Changed reports whether the two texts differ.
func (r *Result) Changed() bool {
	return r.Added > 0 || r.Deleted > 0
}

// IsBinaryContent checks if content appears to be binary
func IsBinaryContent(content string) bool {
	if len(content) == 0 {
		return false
	}
	// Check first 8000 bytes for null bytes or invalid UTF-8
	checkLen := len(content)
	if checkLen > 8000 {
		checkLen = 8000
	}
	sample := content[:checkLen]

	// Check for null bytes (common in binary files)
	if strings.Contains(sample, "\x00") {
		return true
	}

	// A cut at checkLen may split a rune, so only the full string is checked for validity
	return !utf8.ValidString(content)
}

// Compute diffs old against new line by line.
func Compute(old, new string) *Result {
	result := &Result{}
	if IsBinaryContent(old) || IsBinaryContent(new) {
		result.IsBinary = true
		if old != new {
			result.Added, result.Deleted = 1, 1
		}
		return result
	}

	dmp := diffmatchpatch.New()
	chars1, chars2, lineArray := dmp.DiffLinesToChars(old, new)
	diffs := dmp.DiffMain(chars1, chars2, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	n1, n2 := 0, 0
	for _, d := range diffs {
		for _, text := range splitLines(d.Text) {
			line := Line{Content: text}
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				n1++
				n2++
				line.Type, line.Num1, line.Num2 = Same, n1, n2
			case diffmatchpatch.DiffDelete:
				n1++
				line.Type, line.Num1 = Deleted, n1
				result.Deleted++
			case diffmatchpatch.DiffInsert:
				n2++
				line.Type, line.Num2 = Added, n2
				result.Added++
			}
			result.Lines = append(result.Lines, line)
		}
	}

	return result
}

// splitLines splits text into lines, dropping the empty tail after a final newline.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
