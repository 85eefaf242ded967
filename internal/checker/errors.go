package checker

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Engine error codes the checker treats specially.
const (
	codeVariable     = 101
	codeOpenRuleFile = 41
	codeOpenDataset  = 322
	codeBadSignature = 39
	codeRuleFile     = 42
)

// Codes that carry no information for the user.
var uselessCodes = map[int]bool{40: true, 43: true, 44: true}

var (
	datasetRe  = regexp.MustCompile(`^fopen '([^:]*)' failed: No such file or directory`)
	hashFileRe = regexp.MustCompile(`^opening hash file ([^:]*): No such file or directory`)
	sidRe      = regexp.MustCompile(`sid *:(\d+)`)
	atLineRe   = regexp.MustCompile(`at line (\d+)$`)
)

// ParseErrors turns the JSON log lines the engine writes to stderr on a
// failed test run into errors and warnings. Output that is not JSON is
// returned whole as a single error. With single set, the per-file rule
// errors (codes 39 and 42) are dropped.
func ParseErrors(stderr string, single bool) (errs, warns []Record) {
	var variables, files []string
	ignoreNext := false

	for _, line := range strings.SplitAfter(stderr, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var l engineLine
		if err := json.Unmarshal([]byte(line), &l); err != nil || l.Engine == nil {
			return []Record{{Message: stderr, Source: SourceSyntaxCheck, Line: -1}}, nil
		}
		code := l.Engine.ErrorCode
		rec := Record{Message: l.Engine.Message, Source: SourceSyntaxCheck, Line: -1, Code: code}
		if single && (code == codeBadSignature || code == codeRuleFile) {
			continue
		}

		switch code {
		case codeVariable:
			if parts := strings.Split(rec.Message, `"`); len(parts) > 1 {
				v := "$" + parts[1]
				if !slices.Contains(variables, v) {
					variables = append(variables, v)
					rec.Message = fmt.Sprintf("Custom address variable %q is used and need to be defined in probes configuration", v)
					warns = append(warns, rec)
				}
			}
			continue
		case codeOpenDataset:
			if m := datasetRe.FindStringSubmatch(rec.Message); m != nil {
				rec.Message = fmt.Sprintf("Dataset source %q is a dependency and needs to be added to rulesets", m[1])
				warns = append(warns, rec)
				ignoreNext = true
				continue
			}
		case codeOpenRuleFile:
			if m := hashFileRe.FindStringSubmatch(rec.Message); m != nil {
				name := m[1]
				if i := strings.LastIndexByte(name, '/'); i >= 0 {
					name = name[i+1:]
				}
				files = append(files, name)
				rec.Message = fmt.Sprintf("External file %q is a dependency and needs to be added to rulesets", name)
				warns = append(warns, rec)
				continue
			}
		}
		if uselessCodes[code] {
			continue
		}

		if code == codeBadSignature {
			if ignoreNext {
				// A dataset failure is followed by one or more setup errors for
				// the same rule; the first unrelated one ends the run.
				if !strings.Contains(rec.Message, "failed to set up dataset") {
					ignoreNext = false
				}
				continue
			}
			if mentionsAny(rec.Message, variables, files) {
				continue
			}
			if strings.Contains(rec.Message, "error parsing signature") {
				full := rec.Message
				rec.Message, _, _ = strings.Cut(full, " from file")
				if m := sidRe.FindStringSubmatch(line); m != nil {
					rec.SID, _ = strconv.Atoi(m[1])
				}
				if m := atLineRe.FindStringSubmatch(full); m != nil {
					if n, err := strconv.Atoi(m[1]); err == nil && len(errs) > 0 {
						errs[len(errs)-1].Line = n - 1
					}
					continue
				}
			}
		}
		if code == codeRuleFile {
			rec.Message, _, _ = strings.Cut(rec.Message, " from")
		}
		errs = append(errs, rec)
	}
	return errs, warns
}

// mentionsAny reports whether msg refers to one of the undefined variables
// or to a missing external file used as a keyword value.
func mentionsAny(msg string, variables, files []string) bool {
	for _, v := range variables {
		if strings.Contains(msg, v) {
			return true
		}
	}
	for _, f := range files {
		if regexp.MustCompile(`: *` + regexp.QuoteMeta(f) + ` *;`).MatchString(msg) {
			return true
		}
	}
	return false
}
