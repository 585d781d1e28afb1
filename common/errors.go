package common

import "errors"

// Sentinel errors for engine operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Engine lifecycle errors.
	ErrNotInitialized  = errors.New("engine not initialized")
	ErrCleanupFinished = errors.New("engine already cleaned up")
	ErrTimeout         = errors.New("operation timed out")
	ErrCancelled       = errors.New("operation cancelled")

	// Credential errors.
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrCredentialStorage   = errors.New("failed to store credentials")
	ErrDecryption          = errors.New("decryption error")

	// Snapshot store errors.
	ErrSnapshotLoad = errors.New("failed to load snapshot")
	ErrSnapshotSave = errors.New("failed to save snapshot")

	// DNS errors.
	ErrResolveFailed = errors.New("host resolution failed")
)

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
