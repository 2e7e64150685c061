// Package objstore fetches objects addressed as s3://bucket/key.
package objstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/minicluster/pkg/types"
)

// Scheme is the only recognised address scheme
const Scheme = "s3://"

// ErrNotFound is returned when the requested object does not exist
var ErrNotFound = fmt.Errorf("%w: object not found", types.ErrStorage)

// Fetcher is the storage port: fetch an object's bytes by bucket and key.
// Implementations buffer the whole object in memory.
type Fetcher interface {
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
}

// Address is a parsed object address
type Address struct {
	Bucket string
	Key    string
}

func (a Address) String() string {
	return Scheme + a.Bucket + "/" + a.Key
}

// ParseAddress splits s3://bucket/key/path into bucket and key. The key is
// everything after the first slash following the bucket. An address that
// lacks the scheme, or names a bucket with no key, is an ErrAddress.
func ParseAddress(addr string) (Address, error) {
	rest, ok := strings.CutPrefix(addr, Scheme)
	if !ok {
		return Address{}, fmt.Errorf("%w: %q is not an %s path", types.ErrAddress, addr, Scheme)
	}

	bucket, key, ok := strings.Cut(rest, "/")
	if !ok {
		return Address{}, fmt.Errorf("%w: illegal target %q: path must point to a bucket object", types.ErrAddress, addr)
	}
	if bucket == "" || key == "" {
		return Address{}, fmt.Errorf("%w: illegal target %q: empty bucket or key", types.ErrAddress, addr)
	}

	return Address{Bucket: bucket, Key: key}, nil
}
