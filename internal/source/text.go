package source

import (
	"regexp"
	"strings"
)

const (
	commentChar      = '#'
	continuationChar = '\\'
	quoteChar        = '"'
	// MemberSep separates the segments of a member-access chain.
	MemberSep = "%"
)

var (
	identRe    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	wordRe     = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	objBreakRe = regexp.MustCompile(`[^A-Za-z0-9_%]+`)
)

// CommentIndex returns the byte offset of the comment marker in line, or -1.
// Markers inside double-quoted strings do not count.
func CommentIndex(line string) int {
	inString := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case quoteChar:
			inString = !inString
		case commentChar:
			if !inString {
				return i
			}
		}
	}
	return -1
}

// StripComment drops the comment part of line. Column offsets of the
// remaining text are unchanged.
func StripComment(line string) string {
	if i := CommentIndex(line); i >= 0 {
		return line[:i]
	}
	return line
}

// Continues reports whether the statement on line carries on to the next
// physical line.
func Continues(line string) bool {
	code := strings.TrimRight(StripComment(line), " \t")
	return strings.HasSuffix(code, string(continuationChar))
}

func dropContinuation(s string) string {
	t := strings.TrimRight(s, " \t")
	if strings.HasSuffix(t, string(continuationChar)) {
		return t[:len(t)-1]
	}
	return s
}

// IsIdentifier reports whether s is a valid rule-language name.
func IsIdentifier(s string) bool {
	return identRe.MatchString(s)
}

// LinePrefix is the logical text up to col on the current line. It reports
// false when the cursor sits inside a string literal.
func LinePrefix(pre []string, cur string, col int) (string, bool) {
	if col < 0 {
		col = 0
	}
	if col > len(cur) {
		col = len(cur)
	}
	prefix := strings.Join(pre, "") + cur[:col]
	if strings.Count(prefix, string(quoteChar))%2 == 1 {
		return "", false
	}
	return prefix, true
}

// ExpandName returns the identifier that spans col in line, or "".
func ExpandName(line string, col int) string {
	for _, m := range wordRe.FindAllStringIndex(line, -1) {
		if m[0] <= col && col <= m[1] {
			return line[m[0]:m[1]]
		}
		if m[0] > col {
			break
		}
	}
	return ""
}

// ParenLevel scans line backward to the innermost unclosed "(". It returns
// the text at that nesting level with closed groups removed, and the [start,
// end) sections that make it up. When every group is closed the first
// section starts at 0.
func ParenLevel(line string) (string, [][2]int) {
	level := 0
	end := len(line)
	var sections [][2]int
	i := len(line) - 1
scan:
	for ; i >= 0; i-- {
		switch line[i] {
		case ')':
			if level == 0 {
				sections = append(sections, [2]int{i + 1, end})
			}
			level++
		case '(':
			level--
			if level == 0 {
				end = i
			}
			if level < 0 {
				break scan
			}
		}
	}
	sections = append(sections, [2]int{i + 1, end})
	for l, r := 0, len(sections)-1; l < r; l, r = l+1, r-1 {
		sections[l], sections[r] = sections[r], sections[l]
	}
	var b strings.Builder
	for _, s := range sections {
		b.WriteString(line[s[0]:s[1]])
	}
	return b.String(), sections
}

// VarStack extracts the member-access chain that ends the prefix, split on
// the member separator. A plain name yields a single segment.
func VarStack(prefix string) []string {
	if prefix == "" {
		return []string{""}
	}
	final, sections := ParenLevel(prefix)
	if final == "" {
		return []string{""}
	}
	last := 0
	for i, s := range sections {
		if !strings.HasPrefix(prefix[s[0]:s[1]], MemberSep) {
			last = i
		}
	}
	var b strings.Builder
	for _, s := range sections[last:] {
		b.WriteString(prefix[s[0]:s[1]])
	}
	parts := objBreakRe.Split(b.String(), -1)
	return strings.Split(parts[len(parts)-1], MemberSep)
}

// SplitArgs splits an argument list on commas that are not nested in
// parentheses or strings. An empty list yields one empty argument.
func SplitArgs(s string) []string {
	var out []string
	depth := 0
	inString := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case quoteChar:
			inString = !inString
		case '(':
			if !inString {
				depth++
			}
		case ')':
			if !inString && depth > 0 {
				depth--
			}
		case ',':
			if !inString && depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

// OpenCall splits a prefix that ends inside an unclosed call into the callee
// expression, the raw arguments typed so far, and the statement text that
// precedes the callee.
func OpenCall(prefix string) (callee string, args []string, lead string, ok bool) {
	_, sections := ParenLevel(prefix)
	first := sections[0][0]
	if first <= 1 {
		return "", nil, "", false
	}
	args = SplitArgs(prefix[first:])
	text, calleeSections := ParenLevel(prefix[:first-1])
	callee = strings.TrimSpace(text)
	if callee == "" {
		return "", nil, "", false
	}
	start := calleeSections[len(calleeSections)-1][0]
	tail := strings.TrimRight(prefix[start:first-1], " \t")
	j := len(tail)
	for j > 0 && isChainByte(tail[j-1]) {
		j--
	}
	return callee, args, prefix[:start] + tail[:j], true
}

func isChainByte(c byte) bool {
	return c == '_' || c == '%' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
