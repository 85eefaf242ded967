package checker

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Keyword is one rule keyword the engine supports.
type Keyword struct {
	Label  string
	Detail string
	Doc    string
	// Markdown is set when Doc links to the keyword's documentation.
	Markdown bool
	// Deprecated marks content modifiers, which have sticky-buffer
	// replacements.
	Deprecated bool
}

// Keywords lists the keywords of the engine binary.
func (e *Engine) Keywords(ctx context.Context) ([]Keyword, error) {
	dir, err := os.MkdirTemp("", "rulesls-keywords-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	cfgFile, err := writeConfig(dir, e.Config)
	if err != nil {
		return nil, err
	}
	out, err := e.runner().Run(ctx, e.binary(), "--list-keywords=csv", "-l", dir, "-c", cfgFile)
	if err != nil {
		return nil, err
	}
	return ParseKeywords(string(out.Stdout)), nil
}

// ParseKeywords parses the semicolon-separated keyword table. The first line
// is a header; rows with fewer than four fields are skipped.
func ParseKeywords(csv string) []Keyword {
	lines := strings.Split(strings.TrimRight(csv, "\n"), "\n")
	if len(lines) < 2 {
		return nil
	}
	var out []Keyword
	for _, line := range lines[1:] {
		f := strings.Split(strings.TrimRight(line, "\r"), ";")
		if len(f) < 4 {
			continue
		}
		kw := Keyword{Label: f[0], Doc: f[1], Detail: f[3]}
		switch {
		case strings.Contains(f[3], "sticky"):
			kw.Detail = "Sticky Buffer"
		case f[3] == "none":
			kw.Detail = "No option"
		}
		if len(f) > 5 && strings.Contains(f[4], "https") {
			kw.Doc += "\n\n[Documentation](" + f[4] + ")"
			kw.Markdown = true
		}
		if strings.Contains(f[3], "content modifier") {
			kw.Deprecated = true
			kw.Detail = "Content Modifier"
		}
		out = append(out, kw)
	}
	return out
}
