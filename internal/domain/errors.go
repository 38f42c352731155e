package domain

import "errors"

// Failure taxonomy shared by the vault, token service, clients and pollers.
// Callers wrap these with context and test with errors.Is.
var (
	// ErrCredentialMissing means no usable refresh token exists; the user
	// must re-authorize.
	ErrCredentialMissing = errors.New("credential missing")

	// ErrRefreshFailed means the upstream rejected a token refresh. The
	// stored token is left untouched and the next tick retries.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrTransport covers network, timeout and conflict errors talking to
	// the chat or mail API. The credential is skipped for this tick.
	ErrTransport = errors.New("transport error")

	// ErrDispatchFailed means every candidate webhook URL failed.
	ErrDispatchFailed = errors.New("dispatch failed")

	// ErrDecryption means a sealed credential blob is corrupt or tampered.
	// The credential needs to be reconnected.
	ErrDecryption = errors.New("credential decryption failed")
)
