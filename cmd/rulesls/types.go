package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLILocation is a JSON-friendly source range. Lines and columns are 0-based.
type CLILocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLISymbol is one outline entry.
type CLISymbol struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Container string `json:"container,omitempty"`
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

type CLISignature struct {
	Label  string   `json:"label"`
	Doc    string   `json:"doc,omitempty"`
	Params []string `json:"params"`
	Active int      `json:"active"`
}

// CLIDiagnostic is one problem reported by check.
type CLIDiagnostic struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Severity string `json:"severity"`
	Source   string `json:"source"`
	Message  string `json:"message"`
	Code     int    `json:"code,omitempty"`
}

type CLIIndexSummary struct {
	Root        string   `json:"root"`
	Dirs        int      `json:"dirs"`
	Files       int      `json:"files"`
	Symbols     int      `json:"symbols"`
	Diagnostics int      `json:"diagnostics"`
	Warnings    []string `json:"warnings"`
}

type CLIExport struct {
	Database   string `json:"database"`
	Files      int    `json:"files"`
	Unchanged  int    `json:"unchanged"`
	Symbols    int    `json:"symbols"`
	References int    `json:"references"`
}

// CLIEdit is one replacement of a rename.
type CLIEdit struct {
	Line     int    `json:"line"`
	StartCol int    `json:"start_col"`
	EndCol   int    `json:"end_col"`
	NewText  string `json:"new_text"`
}

// CLIRename holds the edits of a rename keyed by file, and the rendered diff
// when --diff was given.
type CLIRename struct {
	Files map[string][]CLIEdit `json:"files"`
	Diff  string               `json:"diff,omitempty"`
}

// CLIStoredSymbol is one symbol read back from an exported database.
type CLIStoredSymbol struct {
	Name       string            `json:"name"`
	Kind       string            `json:"kind"`
	FQSN       string            `json:"fqsn"`
	File       string            `json:"file"`
	StartLine  int               `json:"start_line"`
	EndLine    int               `json:"end_line"`
	TypeName   string            `json:"type_name,omitempty"`
	Link       string            `json:"link,omitempty"`
	Children   []CLIStoredSymbol `json:"children,omitempty"`
	References []CLILocation     `json:"references,omitempty"`
}

// CLIStoredReference is a stored occurrence of the symbol named by Symbol.
type CLIStoredReference struct {
	Symbol string `json:"symbol"`
	CLILocation
}
