package upstream

import "errors"

// ErrAuthentication indicates the replayed session credentials were
// rejected by the upstream.
var ErrAuthentication = errors.New("upstream rejected session credentials")

// ErrUnavailable indicates the upstream could not be reached or answered
// with a non-auth failure status.
var ErrUnavailable = errors.New("upstream unavailable")

// ErrTimeout indicates no data arrived within the configured read bound.
var ErrTimeout = errors.New("upstream read timed out")
