package job

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/cuemby/minicluster/pkg/cache"
	"github.com/cuemby/minicluster/pkg/db"
	"github.com/cuemby/minicluster/pkg/objstore"
	"github.com/cuemby/minicluster/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingStore logs every call instead of touching a database
type recordingStore struct {
	calls  []string
	result *types.ResultSet
	err    error
}

func (s *recordingStore) Drop(ctx context.Context, table string) error {
	s.calls = append(s.calls, "drop "+table)
	return s.err
}

func (s *recordingStore) Load(ctx context.Context, table, source string) error {
	s.calls = append(s.calls, "load "+table)
	return s.err
}

func (s *recordingStore) Execute(ctx context.Context, query string, args ...any) error {
	s.calls = append(s.calls, "exec "+query)
	return s.err
}

func (s *recordingStore) Query(ctx context.Context, query string, args ...any) (*types.ResultSet, error) {
	s.calls = append(s.calls, "query "+query)
	if s.err != nil {
		return nil, s.err
	}
	if s.result == nil {
		return &types.ResultSet{}, nil
	}
	return s.result, nil
}

type failingLocalizer struct{ err error }

func (f failingLocalizer) LocalizeAll(ctx context.Context, w *types.Workload) ([]types.LocalFile, error) {
	return nil, f.err
}

func newEnv(t *testing.T) (*cache.Localizer, *db.Gateway, *objstore.MemoryFetcher) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "cache")
	fetcher := objstore.NewMemoryFetcher()
	return cache.NewLocalizer(root, fetcher, 2), db.NewGateway(filepath.Join(root, "db.sqlite")), fetcher
}

func TestRun_ZeroOpsTouchesNothing(t *testing.T) {
	store := &recordingStore{}
	j := New(&types.Workload{}, store)

	require.NoError(t, j.Build(context.Background(), failingLocalizer{}))
	result, err := j.Run(context.Background())

	require.NoError(t, err)
	assert.True(t, result.Empty())
	assert.Empty(t, store.calls)
}

func TestNew_NilWorkload(t *testing.T) {
	store := &recordingStore{}
	result, err := New(nil, store).Run(context.Background())

	require.NoError(t, err)
	assert.True(t, result.Empty())
	assert.Empty(t, store.calls)
}

func TestRun_OrderBySequenceNumber(t *testing.T) {
	store := &recordingStore{}
	w := &types.Workload{Ops: []*types.Op{
		{Statement: "C", SequenceNum: 3},
		{Statement: "A", SequenceNum: 1},
		{Statement: "B", SequenceNum: 2},
	}}

	_, err := New(w, store).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"exec A", "exec B", "query C"}, store.calls)
	// The caller's workload is not reordered
	assert.Equal(t, "C", w.Ops[0].Statement)
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	store := &recordingStore{err: boom}
	w := &types.Workload{Ops: []*types.Op{
		{Statement: "A", SequenceNum: 1},
		{Statement: "B", SequenceNum: 2},
	}}

	_, err := New(w, store).Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"exec A"}, store.calls)
}

func TestBuild_DropsBeforeLoad(t *testing.T) {
	localizer, _, fetcher := newEnv(t)
	fetcher.Put("foo", "a.csv", []byte("a_INTEGER\n1\n"))
	fetcher.Put("foo", "b.csv", []byte("b_TEXT\nx\n"))
	store := &recordingStore{}

	w := &types.Workload{Ops: []*types.Op{
		{Statement: "SELECT 1", SequenceNum: 1, Targets: []*types.File{
			{ID: 1, Path: "s3://foo/a.csv"},
			{ID: 2, Path: "s3://foo/b.csv"},
		}},
	}}

	j := New(w, store)
	require.NoError(t, j.Build(context.Background(), localizer))

	assert.Equal(t, []string{"drop dataset_1", "load dataset_1", "drop dataset_2", "load dataset_2"}, store.calls)
	assert.Len(t, j.Localized(), 2)
}

func TestBuild_LocalizeFailure(t *testing.T) {
	store := &recordingStore{}
	w := &types.Workload{Ops: []*types.Op{{Statement: "SELECT 1", Targets: []*types.File{{ID: 1, Path: "s3://foo/a"}}}}}

	err := New(w, store).Build(context.Background(), failingLocalizer{err: types.ErrStorage})
	assert.ErrorIs(t, err, types.ErrStorage)
	assert.Empty(t, store.calls)
}

func TestBuildRun_EndToEnd(t *testing.T) {
	ctx := context.Background()
	localizer, gateway, fetcher := newEnv(t)
	fetcher.Put("mini-cluster-tests", "simple-csv.csv", []byte("a_INTEGER,b_TEXT\n1,hello\n"))

	target := &types.File{ID: 1, Path: "s3://mini-cluster-tests/simple-csv.csv"}
	w := &types.Workload{Ops: []*types.Op{
		{Statement: "INSERT INTO dataset_1 VALUES (2, 'world')", SequenceNum: 1, Targets: []*types.File{target}},
		{Statement: "SELECT a, b FROM dataset_1 ORDER BY a", SequenceNum: 2, Targets: []*types.File{target}},
	}}

	j := New(w, gateway)
	require.NoError(t, j.Build(ctx, localizer))
	result, err := j.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, result.Columns)
	require.Len(t, result.Rows, 2)
	assert.EqualValues(t, 1, result.Rows[0][0])
	assert.Equal(t, "world", result.Rows[1][1])
	assert.Equal(t, 1, fetcher.Calls("mini-cluster-tests", "simple-csv.csv"))
}

func TestBuild_ReloadsFreshContents(t *testing.T) {
	ctx := context.Background()
	localizer, gateway, fetcher := newEnv(t)
	target := &types.File{ID: 7, Path: "s3://foo/data.csv"}
	w := &types.Workload{Ops: []*types.Op{
		{Statement: "SELECT COUNT(*) AS n FROM dataset_7", SequenceNum: 1, Targets: []*types.File{target}},
	}}

	fetcher.Put("foo", "data.csv", []byte("v_INTEGER\n1\n"))
	j := New(w, gateway)
	require.NoError(t, j.Build(ctx, localizer))
	result, err := j.Run(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.Rows[0][0])

	fetcher.Put("foo", "data.csv", []byte("v_INTEGER\n1\n2\n3\n"))
	j = New(w, gateway)
	require.NoError(t, j.Build(ctx, localizer))
	result, err = j.Run(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, result.Rows[0][0])
}

func TestRun_SideEffectsOnlyFromEarlierOps(t *testing.T) {
	ctx := context.Background()
	_, gateway, _ := newEnv(t)
	w := &types.Workload{Ops: []*types.Op{
		{Statement: "CREATE TABLE t (a INTEGER)", SequenceNum: 1},
		{Statement: "INSERT INTO t VALUES (5)", SequenceNum: 2},
		{Statement: "SELECT * FROM t", SequenceNum: 3},
	}}

	result, err := New(w, gateway).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, result.Columns)
	require.Len(t, result.Rows, 1)
	assert.EqualValues(t, 5, result.Rows[0][0])
}

func TestBuild_SchemaError(t *testing.T) {
	ctx := context.Background()
	localizer, gateway, fetcher := newEnv(t)
	fetcher.Put("foo", "empty.csv", []byte{})
	w := &types.Workload{Ops: []*types.Op{
		{Statement: "SELECT * FROM dataset_1", SequenceNum: 1, Targets: []*types.File{{ID: 1, Path: "s3://foo/empty.csv"}}},
	}}

	err := New(w, gateway).Build(ctx, localizer)
	assert.ErrorIs(t, err, types.ErrSchema)

	exists, err := gateway.TableExists(ctx, "dataset_1")
	require.NoError(t, err)
	assert.False(t, exists)
}

// Compile-time checks against the concrete implementations
var (
	_ Localizer = (*cache.Localizer)(nil)
	_ Store     = (*db.Gateway)(nil)
)
