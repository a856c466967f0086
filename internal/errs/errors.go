package errs

import "errors"

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrValidation       = errors.New("validation failed")
	ErrDecryption       = errors.New("decryption failed")
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("message store unavailable")
	ErrQueueUnavailable = errors.New("offline queue unavailable")
)
