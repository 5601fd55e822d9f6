package ingest

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hireloop/resume-intake/internal/loader"
)

// DefaultConcurrency bounds parallel document ingestion.
const DefaultConcurrency = 4

// DiscoverFiles walks root recursively and returns the supported files in
// lexical order.
func DiscoverFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if loader.Supported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: discover files in %s", root)
	}
	return files, nil
}

// IngestDir discovers and ingests every supported file under root with
// bounded concurrency. Per-document failures land in the report; only
// discovery errors and context cancellation fail the run.
func (s *Service) IngestDir(ctx context.Context, root string, concurrency int) (*BatchReport, error) {
	files, err := DiscoverFiles(root)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	s.Logger.Info("starting ingestion",
		zap.String("root", root),
		zap.Int("files", len(files)),
		zap.Int("concurrency", concurrency))

	report := &BatchReport{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result := s.IngestFile(gctx, path)

			mu.Lock()
			report.Add(result)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "ingest: run cancelled")
	}

	report.Sort()
	return report, nil
}
