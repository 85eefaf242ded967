package parser

import (
	"regexp"
	"strings"
)

const ident = `[A-Za-z_][A-Za-z0-9_]*`

var (
	moduleRe    = regexp.MustCompile(`(?i)^\s*module\s+(` + ident + `)\s*$`)
	typeRe      = regexp.MustCompile(`(?i)^\s*type\s+(` + ident + `)(?:\s+extends\s+(` + ident + `))?\s*$`)
	callableRe  = regexp.MustCompile(`(?i)^\s*(subroutine|function)\s+(` + ident + `)\s*(?:\((.*)\))?\s*(?:result\s+(` + ident + `))?\s*$`)
	interfaceRe = regexp.MustCompile(`(?i)^\s*interface(?:\s+(` + ident + `))?\s*$`)
	blockRe     = regexp.MustCompile(`(?i)^\s*block\s*$`)
	endRe       = regexp.MustCompile(`(?i)^\s*end(?:\s+(module|type|subroutine|function|interface|block))?(?:\s+(` + ident + `))?\s*$`)
	varRe       = regexp.MustCompile(`(?i)^\s*var\s+([^:]+):\s*(` + ident + `)\s*(?:=.*)?$`)
	methodRe    = regexp.MustCompile(`(?i)^\s*method\s+(` + ident + `)\s*(?:=>\s*(` + ident + `))?\s*$`)
	procedureRe = regexp.MustCompile(`(?i)^\s*procedure\s+(.+)$`)
	docRe       = regexp.MustCompile(`^\s*##\s?(.*)$`)

	scopeStartRe  = regexp.MustCompile(`(?i)^\s*(module|type|subroutine|function|interface|block)\b`)
	typeHeaderRe  = regexp.MustCompile(`(?i)^\s*type\b`)
	bindingRe     = regexp.MustCompile(`(?i)^\s*method\b`)
	statementLead = regexp.MustCompile(`^\s*$`)
	identRe       = regexp.MustCompile(`^` + ident + `$`)
)

// IsScopeStart reports whether line opens a scope.
func IsScopeStart(line string) bool {
	return scopeStartRe.MatchString(line)
}

// IsEnd reports whether line closes a scope.
func IsEnd(line string) bool {
	return endRe.MatchString(line)
}

// IsTypeHeader reports whether line is (the start of) a type declaration.
func IsTypeHeader(line string) bool {
	return typeHeaderRe.MatchString(line)
}

// IsBindingTarget reports whether prefix is a method binding statement whose
// text already includes the "=>" operator, so the word that follows names an
// implementation outside the type.
func IsBindingTarget(prefix string) bool {
	return bindingRe.MatchString(prefix) && strings.Contains(prefix, "=>")
}

// IsStatementPosition reports whether lead, the text before a callee, leaves
// the callee at the start of a statement where keyword statements may appear.
func IsStatementPosition(lead string) bool {
	return statementLead.MatchString(lead)
}
