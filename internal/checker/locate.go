package checker

import (
	"fmt"
	"regexp"
	"strings"
)

// Locate places r in the checked text. A record naming a line stays there.
// Otherwise it goes to the line declaring its sid, then to the first line
// containing its content, and finally to line 0. start and end are byte
// columns on that line; end is 0 when the record covers the whole line.
func Locate(lines []string, r Record) (line, start, end int) {
	start, end = r.StartChar, r.EndChar
	switch {
	case r.Line >= 0:
		return r.Line, start, end
	case r.SID > 0:
		re := regexp.MustCompile(fmt.Sprintf(`\bsid\s*:\s*%d\s*;`, r.SID))
		for i, text := range lines {
			if re.MatchString(text) {
				return i, start, end
			}
		}
	case r.Content != "":
		for i, text := range lines {
			if col := strings.Index(text, r.Content); col >= 0 {
				return i, col, col + len(r.Content)
			}
		}
	}
	return 0, start, end
}
