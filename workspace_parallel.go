package rulesls

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jward/rulesls/internal/parser"
	"github.com/jward/rulesls/internal/source"
)

// parseResult is what one parse worker produces for one path.
type parseResult struct {
	index *FileIndex
	err   error
}

// parseAll loads and parses paths on at most workers goroutines. Workers
// touch no shared state: each writes only its own slot of the result slice,
// so the merge that follows sees the same order regardless of scheduling.
func (w *Workspace) parseAll(ctx context.Context, paths []string, workers int) ([]parseResult, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]parseResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = w.parseFile(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// parseFile is a pure path-in, index-out step. A panic in the parser is
// reported as that file's error so one bad file cannot take down the load.
func (w *Workspace) parseFile(path string) (res parseResult) {
	defer func() {
		if r := recover(); r != nil {
			res = parseResult{err: fmt.Errorf("parser panic: %v", r)}
		}
	}()

	f := source.New(path)
	if _, err := f.Load(w.readFile); err != nil {
		return parseResult{err: err}
	}
	tree, diags, err := parser.Parse(f)
	if err != nil {
		return parseResult{err: err}
	}
	return parseResult{index: &FileIndex{File: f, Tree: tree, Diagnostics: diags}}
}
