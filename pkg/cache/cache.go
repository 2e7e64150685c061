// Package cache localizes workload files under <root>/<bucket>/<key>. Each
// distinct file of a workload is fetched once per job.
package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuemby/minicluster/pkg/log"
	"github.com/cuemby/minicluster/pkg/metrics"
	"github.com/cuemby/minicluster/pkg/objstore"
	"github.com/cuemby/minicluster/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel fetches when none is configured
const DefaultConcurrency = 4

// GetFiles flattens the targets of every op and deduplicates them by id.
// The first reference to an id wins and first-seen order is preserved.
func GetFiles(w *types.Workload) []*types.File {
	if w == nil {
		return nil
	}

	seen := make(map[int32]struct{})
	var files []*types.File
	for _, op := range w.Ops {
		if op == nil {
			continue
		}
		for _, f := range op.Targets {
			if f == nil {
				continue
			}
			if _, ok := seen[f.ID]; ok {
				continue
			}
			seen[f.ID] = struct{}{}
			files = append(files, f)
		}
	}
	return files
}

// Localizer downloads workload files into <root>/<bucket>/<key>
type Localizer struct {
	root        string
	fetcher     objstore.Fetcher
	concurrency int
	logger      zerolog.Logger
}

// NewLocalizer creates a localizer writing under root. concurrency < 1
// falls back to DefaultConcurrency.
func NewLocalizer(root string, fetcher objstore.Fetcher, concurrency int) *Localizer {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Localizer{
		root:        root,
		fetcher:     fetcher,
		concurrency: concurrency,
		logger:      log.WithComponent("cache"),
	}
}

// Root returns the cache root directory
func (l *Localizer) Root() string {
	return l.root
}

// PathFor returns the cache path for an object address without fetching it
func (l *Localizer) PathFor(addr objstore.Address) (string, error) {
	bucketDir := filepath.Join(l.root, addr.Bucket)
	dest := filepath.Join(bucketDir, filepath.FromSlash(addr.Key))

	// Keys containing .. must not escape the bucket directory
	if dest != bucketDir && !strings.HasPrefix(dest, bucketDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: key %q escapes the cache directory", types.ErrAddress, addr.Key)
	}
	if dest == bucketDir {
		return "", fmt.Errorf("%w: key %q names the bucket directory", types.ErrAddress, addr.Key)
	}
	return dest, nil
}

// Localize fetches one file and writes it to its cache path, overwriting any
// previous copy. It returns the local path.
func (l *Localizer) Localize(ctx context.Context, f *types.File) (string, error) {
	addr, err := objstore.ParseAddress(f.Path)
	if err != nil {
		return "", err
	}

	dest, err := l.PathFor(addr)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create cache directory: %w", types.ErrStorage, err)
	}

	data, err := l.fetcher.Fetch(ctx, addr.Bucket, addr.Key)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(dest, data, 0644); err != nil {
		return "", fmt.Errorf("%w: failed to write %s: %w", types.ErrStorage, dest, err)
	}

	metrics.FilesLocalized.Inc()
	metrics.BytesFetched.Add(float64(len(data)))

	l.logger.Debug().
		Int32("file_id", f.ID).
		Str("address", addr.String()).
		Str("path", dest).
		Int("bytes", len(data)).
		Msg("Localized file")

	return dest, nil
}

// LocalizeAll localizes every distinct file of the workload. Fetches run
// concurrently; the result follows GetFiles order. Any failure fails the
// whole call and no partial result is returned.
func (l *Localizer) LocalizeAll(ctx context.Context, w *types.Workload) ([]types.LocalFile, error) {
	files := GetFiles(w)
	if len(files) == 0 {
		return nil, nil
	}

	local := make([]types.LocalFile, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			path, err := l.Localize(gctx, f)
			if err != nil {
				return fmt.Errorf("failed to localize file %d: %w", f.ID, err)
			}
			local[i] = types.LocalFile{File: f, Path: path}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return local, nil
}

// Clear removes the cache root and everything under it
func (l *Localizer) Clear() error {
	if err := os.RemoveAll(l.root); err != nil {
		return fmt.Errorf("failed to clear cache %s: %w", l.root, err)
	}
	return nil
}
