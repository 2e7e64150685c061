package types

import (
	"errors"
	"fmt"
)

// Error kinds. Stages wrap their causes so that errors.Is(err, ErrX) holds
// for the kind and the underlying cause stays reachable.
var (
	ErrNetwork  = errors.New("network error")
	ErrStorage  = errors.New("storage error")
	ErrSchema   = errors.New("schema error")
	ErrDatabase = errors.New("database error")
	ErrProtocol = errors.New("protocol error")
	ErrRender   = errors.New("render error")
)

var (
	// ErrAddress is a malformed object address. It is a storage error.
	ErrAddress = fmt.Errorf("%w: malformed object address", ErrStorage)

	// ErrInvalidWorkload is a decoded workload that breaks its invariants
	ErrInvalidWorkload = fmt.Errorf("%w: invalid workload", ErrProtocol)
)
