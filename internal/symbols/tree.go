package symbols

// Tree is the symbol arena for one parsed file. Symbols are addressed by
// their index in Symbols; Roots lists the file-level declarations in source
// order.
type Tree struct {
	Path    string
	Gen     uint64
	Symbols []Symbol
	Roots   []ID
}

// NewTree returns an empty arena for path.
func NewTree(path string) *Tree {
	return &Tree{Path: path}
}

// Add appends sym under parent (NoID for file level) and returns its ID. The
// FQSN is derived from the parent chain. Pointers returned by Get before an
// Add may be invalidated by it.
func (t *Tree) Add(parent ID, sym Symbol) ID {
	id := ID(len(t.Symbols))
	sym.ID = id
	sym.Parent = parent
	sym.Children = nil
	sym.tree = t
	sym.key = Key(sym.Name)
	if !sym.Link.Valid() {
		sym.Link = Ref{ID: NoID}
	}
	if !sym.Inherit.Valid() {
		sym.Inherit = Ref{ID: NoID}
	}
	if parent == NoID {
		sym.FQSN = sym.key
		t.Roots = append(t.Roots, id)
	} else {
		sym.FQSN = t.Symbols[parent].FQSN + Separator + sym.key
	}
	t.Symbols = append(t.Symbols, sym)
	if parent != NoID {
		t.Symbols[parent].Children = append(t.Symbols[parent].Children, id)
	}
	return id
}

// Get returns the symbol with the given ID, or nil when out of range.
func (t *Tree) Get(id ID) *Symbol {
	if id < 0 || int(id) >= len(t.Symbols) {
		return nil
	}
	return &t.Symbols[id]
}

// Len is the number of symbols in the arena.
func (t *Tree) Len() int {
	return len(t.Symbols)
}

// Root returns the file-level declarations in order.
func (t *Tree) Root() []*Symbol {
	out := make([]*Symbol, 0, len(t.Roots))
	for _, id := range t.Roots {
		out = append(out, &t.Symbols[id])
	}
	return out
}

// ChildrenOf returns the symbols directly owned by s.
func (t *Tree) ChildrenOf(s *Symbol) []*Symbol {
	out := make([]*Symbol, 0, len(s.Children))
	for _, id := range s.Children {
		out = append(out, &t.Symbols[id])
	}
	return out
}

// Child finds a direct child of scope by folded name. A nil scope searches
// the file-level declarations.
func (t *Tree) Child(scope *Symbol, key string) *Symbol {
	ids := t.Roots
	if scope != nil {
		ids = scope.Children
	}
	for _, id := range ids {
		if t.Symbols[id].key == key {
			return &t.Symbols[id]
		}
	}
	return nil
}

// InnerScope returns the innermost scope whose line range contains line
// (1-based), or nil when line is at file level.
func (t *Tree) InnerScope(line int) *Symbol {
	var found *Symbol
	ids := t.Roots
	for {
		var next *Symbol
		for _, id := range ids {
			s := &t.Symbols[id]
			if s.Kind.IsScope() && s.StartLine <= line && line <= s.EndLine {
				next = s
				break
			}
		}
		if next == nil {
			return found
		}
		found = next
		ids = next.Children
	}
}

// Scopes returns every scope in the file in pre-order.
func (t *Tree) Scopes() []*Symbol {
	var out []*Symbol
	var walk func(ids []ID)
	walk = func(ids []ID) {
		for _, id := range ids {
			s := &t.Symbols[id]
			if !s.Kind.IsScope() {
				continue
			}
			out = append(out, s)
			walk(s.Children)
		}
	}
	walk(t.Roots)
	return out
}

// Walk visits every symbol in declaration order.
func (t *Tree) Walk(fn func(*Symbol)) {
	for i := range t.Symbols {
		fn(&t.Symbols[i])
	}
}
