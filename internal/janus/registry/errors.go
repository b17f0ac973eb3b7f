package registry

import "errors"

var (
	// ErrStorageUnavailable wraps any failure of the key/value substrate.
	ErrStorageUnavailable = errors.New("registry storage unavailable")

	// ErrInventoryUnavailable wraps any failure of the live-inventory
	// provider. It is never conflated with an empty inventory.
	ErrInventoryUnavailable = errors.New("registry inventory unavailable")

	// ErrKeyMismatch reports a stored map entry whose key differs from the
	// record's own id.
	ErrKeyMismatch = errors.New("registry key does not match record id")

	// ErrInconsistentRecord reports a stored document that cannot be decoded
	// or a record whose uninstall fields disagree.
	ErrInconsistentRecord = errors.New("registry record inconsistent")
)
