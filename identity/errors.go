package identity

import "errors"

// Errors returned by LoadOrCreate. All are fatal at startup — a
// malformed stored key must never be silently regenerated, since that
// would invalidate the user's identity without telling them.
var (
	// ErrKeyIO wraps a failure to read or write the key file.
	ErrKeyIO = errors.New("identity: key file I/O error")
	// ErrMalformedKey is returned when the stored key does not decode to
	// exactly 32 bytes.
	ErrMalformedKey = errors.New("identity: stored key is malformed")
)
