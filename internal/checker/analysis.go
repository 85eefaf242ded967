package checker

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// Signature is the engine-analysis summary of one rule.
type Signature struct {
	SID      int
	Content  string
	Warnings []string
	Info     []string
}

// ParseAnalysis reads the engine-analysis output in dir: rules.json when
// the engine wrote it, rules_analysis.txt otherwise. A run that produced
// neither yields no signatures.
func ParseAnalysis(dir string) ([]Signature, error) {
	jsonPath := filepath.Join(dir, "rules.json")
	if _, err := os.Stat(jsonPath); err == nil {
		return parseAnalysisJSON(jsonPath)
	}
	sigs, err := parseAnalysisText(filepath.Join(dir, "rules_analysis.txt"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return sigs, err
}

// parseAnalysisText reads the legacy text report. Each rule is a block that
// starts with a "==" header carrying the sid and ends with a blank line.
func parseAnalysisText(path string) ([]Signature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Signature
	var sig *Signature
	haveContent := false
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "=="):
			fields := strings.Split(line, " ")
			sig = &Signature{}
			if len(fields) > 2 {
				sig.SID, _ = strconv.Atoi(fields[2])
			}
			haveContent = false
		case sig == nil:
		case line == "":
			out = append(out, *sig)
			sig = nil
		case !haveContent:
			sig.Content = strings.TrimSpace(line)
			haveContent = true
		case strings.Contains(line, "Warning: "):
			_, w, _ := strings.Cut(line, "arning: ")
			sig.Warnings = append(sig.Warnings, strings.TrimSpace(w))
		case strings.Contains(line, "Fast Pattern"):
			sig.Info = append(sig.Info, strings.TrimSpace(line))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

type analysisMatch struct {
	Name    string `json:"name"`
	Content *struct {
		Pattern string `json:"pattern"`
		IsMPM   bool   `json:"is_mpm"`
	} `json:"content"`
}

type analysisEngine struct {
	Name     string          `json:"name"`
	IsMPM    bool            `json:"is_mpm"`
	AppProto *string         `json:"app_proto"`
	Matches  []analysisMatch `json:"matches"`
}

type analysisRule struct {
	Raw   string   `json:"raw"`
	ID    *int     `json:"id"`
	Flags []string `json:"flags"`
	MPM   *struct {
		Pattern string `json:"pattern"`
		Buffer  string `json:"buffer"`
	} `json:"mpm"`
	Engines  []analysisEngine `json:"engines"`
	Warnings []string         `json:"warnings"`
	Notes    []string         `json:"notes"`
}

// parseAnalysisJSON reads the line-delimited JSON report and adds the
// checker's own performance hints to what the engine says.
func parseAnalysisJSON(path string) ([]Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var out []Signature
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var r analysisRule
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			continue
		}
		out = append(out, analyzeRule(&r))
	}
	return out, nil
}

func analyzeRule(r *analysisRule) Signature {
	sig := Signature{Content: r.Raw}
	if r.ID != nil {
		sig.SID = *r.ID
	}
	if slices.Contains(r.Flags, "toserver") && slices.Contains(r.Flags, "toclient") {
		sig.Warnings = append(sig.Warnings, "Rule inspect server and client side, consider adding a flow keyword")
	}

	if r.MPM != nil {
		sig.Info = append(sig.Info, fastPattern(r.MPM.Pattern, r.MPM.Buffer))
	} else {
		// Older engines report the fast pattern inside the engine list.
		var buffer, pattern string
		for _, e := range r.Engines {
			if !e.IsMPM {
				continue
			}
			buffer = e.Name
			for _, m := range e.Matches {
				if m.Content != nil && m.Content.IsMPM {
					pattern = m.Content.Pattern
				}
			}
		}
		if buffer != "" && pattern != "" {
			sig.Info = append(sig.Info, fastPattern(pattern, buffer))
		}
	}
	sig.Warnings = append(sig.Warnings, r.Warnings...)
	sig.Info = append(sig.Info, r.Notes...)

	if len(r.Engines) == 0 {
		return sig
	}
	var appProto string
	multipleProto, rawMatch, content, pcre := false, false, false, false
	for _, e := range r.Engines {
		if e.AppProto != nil {
			switch {
			case appProto == "":
				appProto = *e.AppProto
			case appProto != *e.AppProto && !(isHTTP(appProto) && isHTTP(*e.AppProto)):
				multipleProto = true
			}
		} else {
			rawMatch = true
		}
		for _, m := range e.Matches {
			switch m.Name {
			case "content":
				content = true
			case "pcre":
				pcre = true
			}
		}
	}
	if pcre && !content {
		sig.Warnings = append(sig.Warnings, "Rule with pcre without content match (possible performance issue)")
	}
	if appProto != "" && rawMatch {
		sig.Warnings = append(sig.Warnings, fmt.Sprintf("Application layer %q combined with raw match, consider using a match on application buffer", appProto))
	}
	if multipleProto {
		sig.Warnings = append(sig.Warnings, "Multiple application layers in same signature")
	}
	return sig
}

// fastPattern quotes the pattern verbatim; records() finds it in the rule
// text by splitting on the quotes.
func fastPattern(pattern, buffer string) string {
	return `Fast Pattern "` + pattern + `" on ` + buffer
}

func isHTTP(proto string) bool {
	return proto == "http" || proto == "http2"
}

// records converts the signature into warning and info records. A fast
// pattern note is only kept for rules with several content matches and no
// explicit fast_pattern, and it is narrowed to the pattern's columns.
func (s Signature) records() (warns, info []Record) {
	for _, w := range s.Warnings {
		warns = append(warns, Record{Message: w, Source: SourceEngineAnalysis, SID: s.SID, Line: -1, Content: s.Content})
	}
	for _, msg := range s.Info {
		rec := Record{Message: msg, Source: SourceEngineAnalysis, SID: s.SID, Line: -1, Content: s.Content, StartChar: 0, EndChar: 1}
		if strings.Contains(msg, `Fast Pattern "`) {
			if strings.Contains(s.Content, "fast_pattern") || strings.Count(s.Content, "content:") <= 1 {
				continue
			}
			if parts := strings.Split(msg, `"`); len(parts) > 1 {
				if i := strings.Index(s.Content, parts[1]); i >= 0 {
					rec.StartChar = i
					rec.EndChar = i + len(parts[1])
				}
			}
		}
		info = append(info, rec)
	}
	return warns, info
}
