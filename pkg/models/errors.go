package models

import "errors"

// Sentinel errors for asset operations. Handlers map these onto HTTP
// statuses; anything unrecognized surfaces as a 500.
var (
	// Request validation errors
	ErrInvalidRequest       = errors.New("invalid request")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Storage errors
	ErrAssetNotFound = errors.New("asset not found")
	ErrStorage       = errors.New("storage failure")

	// Pipeline errors
	ErrProcessing = errors.New("media processing failed")
	ErrIO         = errors.New("local file i/o failed")
)
