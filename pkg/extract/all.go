package extract

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-undead/pkg/model"
)

// ExtractAll extracts paths (relative to root) with up to workers parallel
// parsers. The result is sorted by path. The first error cancels the rest.
func ExtractAll(ctx context.Context, root string, paths []string, workers int) ([]*model.SourceFile, error) {
	if workers < 1 {
		workers = 1
	}
	e := NewCExtractor()
	files := make([]*model.SourceFile, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range paths {
		g.Go(func() error {
			f, err := e.Extract(ctx, root, p)
			if err != nil {
				return err
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
