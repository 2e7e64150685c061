package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cuemby/minicluster/pkg/metrics"
	"github.com/cuemby/minicluster/pkg/objstore"
	"github.com/cuemby/minicluster/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func file(id int32, path string) *types.File {
	return &types.File{ID: id, Path: path}
}

func TestGetFiles(t *testing.T) {
	a := file(1, "s3://foo/a.csv")
	b := file(2, "s3://foo/b.csv")
	c := file(3, "s3://bar/c.csv")

	tests := []struct {
		name     string
		workload *types.Workload
		want     []int32
	}{
		{name: "nil workload", workload: nil, want: nil},
		{name: "no ops", workload: &types.Workload{}, want: nil},
		{name: "op without targets", workload: &types.Workload{Ops: []*types.Op{{Statement: "SELECT 1"}}}, want: nil},
		{
			name: "shared across ops",
			workload: &types.Workload{Ops: []*types.Op{
				{Targets: []*types.File{b, a}},
				{Targets: []*types.File{a, c, b}},
				{Targets: []*types.File{c}},
			}},
			want: []int32{2, 1, 3},
		},
		{
			name: "repeated within one op",
			workload: &types.Workload{Ops: []*types.Op{
				{Targets: []*types.File{a, a, a}},
			}},
			want: []int32{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := GetFiles(tt.workload)
			var ids []int32
			for _, f := range files {
				ids = append(ids, f.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestGetFiles_FirstReferenceWins(t *testing.T) {
	first := file(1, "s3://foo/a.csv")
	second := file(1, "s3://foo/a.csv")
	w := &types.Workload{Ops: []*types.Op{
		{Targets: []*types.File{first}},
		{Targets: []*types.File{second}},
	}}

	files := GetFiles(w)
	require.Len(t, files, 1)
	assert.Same(t, first, files[0])
}

func TestLocalize(t *testing.T) {
	root := t.TempDir()
	fetcher := objstore.NewStaticFetcher([]byte("a_INTEGER\n1\n"))
	l := NewLocalizer(root, fetcher, 1)

	path, err := l.Localize(context.Background(), file(1, "s3://foo/bar/baz.csv"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "foo", "bar", "baz.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a_INTEGER\n1\n", string(data))
}

func TestLocalize_TwiceOverwrites(t *testing.T) {
	root := t.TempDir()
	m := objstore.NewMemoryFetcher()
	m.Put("foo", "bar", []byte("first"))
	l := NewLocalizer(root, m, 1)
	f := file(1, "s3://foo/bar")

	first, err := l.Localize(context.Background(), f)
	require.NoError(t, err)

	m.Put("foo", "bar", []byte("second"))
	second, err := l.Localize(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, m.Calls("foo", "bar"))
	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestLocalize_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
		kind error
	}{
		{name: "wrong scheme", path: "not_s3!", kind: types.ErrAddress},
		{name: "bucket only", path: "s3://foo", kind: types.ErrAddress},
		{name: "escapes bucket", path: "s3://foo/../../etc/passwd", kind: types.ErrAddress},
		{name: "missing object", path: "s3://foo/missing.csv", kind: objstore.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			l := NewLocalizer(root, objstore.NewMemoryFetcher(), 1)

			_, err := l.Localize(context.Background(), file(1, tt.path))
			assert.ErrorIs(t, err, tt.kind)
			assert.ErrorIs(t, err, types.ErrStorage)
		})
	}
}

func TestLocalize_Metrics(t *testing.T) {
	l := NewLocalizer(t.TempDir(), objstore.NewStaticFetcher([]byte("12345")), 1)
	files := testutil.ToFloat64(metrics.FilesLocalized)
	bytes := testutil.ToFloat64(metrics.BytesFetched)

	_, err := l.Localize(context.Background(), file(1, "s3://foo/bar"))
	require.NoError(t, err)

	assert.Equal(t, files+1, testutil.ToFloat64(metrics.FilesLocalized))
	assert.Equal(t, bytes+5, testutil.ToFloat64(metrics.BytesFetched))
}

func TestLocalizeAll(t *testing.T) {
	root := t.TempDir()
	m := objstore.NewMemoryFetcher()
	m.Put("foo", "a.csv", []byte("a"))
	m.Put("foo", "b.csv", []byte("b"))
	m.Put("bar", "c.csv", []byte("c"))
	l := NewLocalizer(root, m, 2)

	w := &types.Workload{Ops: []*types.Op{
		{SequenceNum: 1, Targets: []*types.File{file(3, "s3://bar/c.csv"), file(1, "s3://foo/a.csv")}},
		{SequenceNum: 2, Targets: []*types.File{file(1, "s3://foo/a.csv"), file(2, "s3://foo/b.csv")}},
	}}

	local, err := l.LocalizeAll(context.Background(), w)
	require.NoError(t, err)
	require.Len(t, local, 3)

	wantIDs := []int32{3, 1, 2}
	wantPaths := []string{
		filepath.Join(root, "bar", "c.csv"),
		filepath.Join(root, "foo", "a.csv"),
		filepath.Join(root, "foo", "b.csv"),
	}
	for i, lf := range local {
		assert.Equal(t, wantIDs[i], lf.File.ID)
		assert.Equal(t, wantPaths[i], lf.Path)
		assert.FileExists(t, lf.Path)
	}

	// Shared file fetched once per call
	assert.Equal(t, 1, m.Calls("foo", "a.csv"))
}

func TestLocalizeAll_Empty(t *testing.T) {
	l := NewLocalizer(t.TempDir(), objstore.NewStaticFetcher(nil), 0)
	assert.Equal(t, DefaultConcurrency, l.concurrency)

	local, err := l.LocalizeAll(context.Background(), &types.Workload{})
	require.NoError(t, err)
	assert.Empty(t, local)
}

func TestLocalizeAll_AnyFailureFailsAll(t *testing.T) {
	m := objstore.NewMemoryFetcher()
	m.Put("foo", "a.csv", []byte("a"))
	l := NewLocalizer(t.TempDir(), m, 4)

	w := &types.Workload{Ops: []*types.Op{
		{Targets: []*types.File{file(1, "s3://foo/a.csv"), file(2, "s3://foo/missing.csv")}},
	}}

	local, err := l.LocalizeAll(context.Background(), w)
	assert.Nil(t, local)
	assert.ErrorIs(t, err, objstore.ErrNotFound)
}

// concurrencyFetcher records the peak number of in-flight fetches
type concurrencyFetcher struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	release  chan struct{}
}

func (f *concurrencyFetcher) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()

	select {
	case <-f.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return []byte(key), nil
}

func TestLocalizeAll_BoundedConcurrency(t *testing.T) {
	f := &concurrencyFetcher{release: make(chan struct{})}
	close(f.release)
	l := NewLocalizer(t.TempDir(), f, 2)

	var targets []*types.File
	for i := int32(1); i <= 8; i++ {
		targets = append(targets, file(i, "s3://foo/"+string(rune('a'+i))))
	}

	local, err := l.LocalizeAll(context.Background(), &types.Workload{Ops: []*types.Op{{Targets: targets}}})
	require.NoError(t, err)
	assert.Len(t, local, 8)
	assert.LessOrEqual(t, f.peak, 2)
}

func TestLocalizeAll_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := NewLocalizer(t.TempDir(), objstore.NewStaticFetcher([]byte("x")), 1)

	_, err := l.LocalizeAll(ctx, &types.Workload{Ops: []*types.Op{{Targets: []*types.File{file(1, "s3://foo/bar")}}}})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClear(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache")
	l := NewLocalizer(root, objstore.NewStaticFetcher([]byte("x")), 1)
	_, err := l.Localize(context.Background(), file(1, "s3://foo/bar"))
	require.NoError(t, err)

	require.NoError(t, l.Clear())
	assert.NoDirExists(t, root)
	assert.NoError(t, l.Clear())
}
