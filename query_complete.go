package rulesls

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Complete returns the keywords that extend the partial word ending at
// (line, col). The partial word is made of letters, digits, '.' and '_'.
func (q *QueryBuilder) Complete(path string, line, col int) []CompletionItem {
	fi := q.ws.files[path]
	if fi == nil {
		return nil
	}
	text := fi.File.Line(line)
	if col > len(text) {
		col = len(text)
	}
	start := col
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' {
			break
		}
		start -= size
	}
	word := text[start:col]
	if word == "" {
		return nil
	}
	var out []CompletionItem
	for _, item := range q.ws.keywords {
		if strings.HasPrefix(item.Label, word) {
			out = append(out, item)
		}
	}
	return out
}
