// Package source holds the text of one rule file and the line-level
// facilities the resolver needs: logical-line assembly across continuations,
// comment stripping, whole-word search and range edits.
package source

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
)

// File is the editable buffer for one workspace file.
type File struct {
	Path  string
	Lines []string
	Hash  string
}

// New returns an empty buffer for path.
func New(path string) *File {
	return &File{Path: path, Lines: []string{""}}
}

// NewText returns a buffer for path holding text.
func NewText(path, text string) *File {
	f := New(path)
	f.SetText(text)
	return f
}

// Text joins the buffer back into a single string.
func (f *File) Text() string {
	return strings.Join(f.Lines, "\n")
}

// SetText replaces the whole buffer.
func (f *File) SetText(text string) {
	f.Lines = splitLines(text)
	f.Hash = hashText(text)
}

// Load reads the file through readFile. It reports false, leaving the buffer
// untouched, when the content fingerprint matches the one already loaded.
func (f *File) Load(readFile func(string) ([]byte, error)) (bool, error) {
	content, err := readFile(f.Path)
	if err != nil {
		return false, err
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(content))
	if hash == f.Hash {
		return false, nil
	}
	f.Lines = splitLines(string(content))
	f.Hash = hash
	return true, nil
}

// Line returns line n (0-based), or "" when out of range.
func (f *File) Line(n int) string {
	if n < 0 || n >= len(f.Lines) {
		return ""
	}
	return f.Lines[n]
}

// CodeLine assembles the logical statement around line n (0-based). It
// returns the physical lines joined before n, line n itself, and the lines
// joined after it. With strip set, comments are removed from every part and
// continuation markers are dropped from the joined parts.
func (f *File) CodeLine(n int, backward, forward, strip bool) (pre []string, cur string, post []string) {
	if n < 0 || n >= len(f.Lines) {
		return nil, "", nil
	}
	clean := func(s string) string {
		if strip {
			return StripComment(s)
		}
		return s
	}
	cur = clean(f.Lines[n])
	if backward {
		for i := n - 1; i >= 0 && Continues(f.Lines[i]); i-- {
			pre = append([]string{dropContinuation(clean(f.Lines[i]))}, pre...)
		}
	}
	if forward && Continues(f.Lines[n]) {
		cur = dropContinuation(cur)
		for i := n + 1; i < len(f.Lines); i++ {
			next := clean(f.Lines[i])
			more := Continues(f.Lines[i])
			if more {
				next = dropContinuation(next)
			}
			post = append(post, next)
			if !more {
				break
			}
		}
	}
	return pre, cur, post
}

// FindWord locates the first whole-word, case-insensitive occurrence of word
// in the code part of line n. Columns are -1 when the word is absent.
func (f *File) FindWord(n int, word string) (line, start, end int) {
	code := StripComment(f.Line(n))
	spans := WordSpans(code, word)
	if len(spans) == 0 {
		return n, -1, -1
	}
	return n, spans[0][0], spans[0][1]
}

// WordSpans returns every whole-word, case-insensitive occurrence of word in
// line as [start, end) byte offsets.
func WordSpans(line, word string) [][2]int {
	if word == "" {
		return nil
	}
	re := WordPattern(word)
	var out [][2]int
	for _, m := range re.FindAllStringIndex(line, -1) {
		out = append(out, [2]int{m[0], m[1]})
	}
	return out
}

// WordPattern compiles the whole-word matcher used for reference scans.
func WordPattern(word string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func hashText(text string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(text)))
}
