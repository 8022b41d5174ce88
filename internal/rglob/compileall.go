package rglob

import "golang.org/x/sync/errgroup"

// CompileAll compiles every expression in exprs concurrently;
// compilation is pure, so the fan-out needs no coordination beyond the
// join. It returns compiled globs in input order, or the first
// BadPattern error encountered.
func CompileAll(exprs []string) ([]*Glob, error) {
	globs := make([]*Glob, len(exprs))
	var g errgroup.Group
	for i, expr := range exprs {
		i, expr := i, expr
		g.Go(func() error {
			compiled, err := Compile(expr)
			if err != nil {
				return err
			}
			globs[i] = compiled
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return globs, nil
}
