package parser

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jward/rulesls/internal/symbols"
)

//go:embed intrinsics.yaml
var intrinsicsYAML []byte

type intrinsicEntry struct {
	Name   string   `yaml:"name"`
	Params []string `yaml:"params"`
	Doc    string   `yaml:"doc"`
}

type intrinsicFile struct {
	Functions  []intrinsicEntry `yaml:"functions"`
	Statements []intrinsicEntry `yaml:"statements"`
}

// Intrinsics holds the built-in symbol tables keyed by folded name.
type Intrinsics struct {
	Functions  map[string]*symbols.Symbol
	Statements map[string]*symbols.Symbol
}

var loadIntrinsics = sync.OnceValues(func() (*Intrinsics, error) {
	return decodeIntrinsics(intrinsicsYAML)
})

func decodeIntrinsics(data []byte) (*Intrinsics, error) {
	var f intrinsicFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode intrinsics: %w", err)
	}
	in := &Intrinsics{
		Functions:  make(map[string]*symbols.Symbol, len(f.Functions)),
		Statements: make(map[string]*symbols.Symbol, len(f.Statements)),
	}
	for _, e := range f.Functions {
		in.Functions[symbols.Key(e.Name)] = symbols.Builtin(e.Name, symbols.KindFunction, builtinParams(e.Params), e.Doc)
	}
	for _, e := range f.Statements {
		in.Statements[symbols.Key(e.Name)] = symbols.Builtin(e.Name, symbols.KindSubroutine, builtinParams(e.Params), e.Doc)
	}
	return in, nil
}

func builtinParams(raw []string) []symbols.Param {
	params := make([]symbols.Param, 0, len(raw))
	for _, r := range raw {
		name, def, _ := strings.Cut(r, "=")
		params = append(params, symbols.Param{Name: name, Default: def})
	}
	return params
}

// LoadIntrinsics returns the embedded built-in tables.
func LoadIntrinsics() (*Intrinsics, error) {
	return loadIntrinsics()
}

// Intrinsic looks up a built-in function by name.
func Intrinsic(name string) *symbols.Symbol {
	in, err := loadIntrinsics()
	if err != nil {
		return nil
	}
	return in.Functions[symbols.Key(name)]
}

// Statement looks up a statement keyword by name.
func Statement(name string) *symbols.Symbol {
	in, err := loadIntrinsics()
	if err != nil {
		return nil
	}
	return in.Statements[symbols.Key(name)]
}
