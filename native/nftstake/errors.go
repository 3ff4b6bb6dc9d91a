package nftstake

import "errors"

var (
	ErrNotInitialized     = errors.New("nftstake: platform not initialized")
	ErrAlreadyInitialized = errors.New("nftstake: platform already initialized")
	ErrPermissionDenied   = errors.New("nftstake: permission denied")
	ErrPoolNotFound       = errors.New("nftstake: pool not found")
	ErrRecordNotFound     = errors.New("nftstake: stake record not found")
	ErrLengthMismatch     = errors.New("nftstake: input length mismatch")
	ErrEmptyBatch         = errors.New("nftstake: empty batch")
	ErrInvalidSignature   = errors.New("nftstake: invalid signature")
	ErrInsufficientFunds  = errors.New("nftstake: insufficient funds")
	ErrPoolEnded          = errors.New("nftstake: pool no longer accepts stakes")
	ErrStillLocked        = errors.New("nftstake: pool still locked")
	ErrInvalidRate        = errors.New("nftstake: invalid reward rate")
	ErrRateTooHigh        = errors.New("nftstake: daily rate exceeds pool maximum")
	ErrRateMismatch       = errors.New("nftstake: daily rate must match pool rate")
	ErrWrongCollection    = errors.New("nftstake: asset collection does not match pool")
	ErrInvalidTime        = errors.New("nftstake: evaluation time precedes stake time")
	ErrNotOwned           = errors.New("nftstake: asset not held by caller")
)
