package objstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cuemby/minicluster/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	body  string
	err   error
	input *s3.GetObjectInput
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestS3Fetcher_Fetch(t *testing.T) {
	api := &fakeS3{body: "a_INTEGER,b_TEXT\n1,hello\n"}
	f := &S3Fetcher{api: api}

	data, err := f.Fetch(context.Background(), "mini-cluster-tests", "simple-csv.csv")
	require.NoError(t, err)
	assert.Equal(t, "a_INTEGER,b_TEXT\n1,hello\n", string(data))
	assert.Equal(t, "mini-cluster-tests", aws.ToString(api.input.Bucket))
	assert.Equal(t, "simple-csv.csv", aws.ToString(api.input.Key))
}

func TestS3Fetcher_NotFound(t *testing.T) {
	f := &S3Fetcher{api: &fakeS3{err: &s3types.NoSuchKey{Message: aws.String("no such key")}}}

	_, err := f.Fetch(context.Background(), "b", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, types.ErrStorage)
}

func TestS3Fetcher_TransportError(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	f := &S3Fetcher{api: &fakeS3{err: boom}}

	_, err := f.Fetch(context.Background(), "b", "k")
	assert.ErrorIs(t, err, types.ErrStorage)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}
