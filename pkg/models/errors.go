package models

import "errors"

var (
	ErrInvalidEvent     = errors.New("invalid login event")
	ErrGeoLookup        = errors.New("geo lookup failed")
	ErrModelUnavailable = errors.New("anomaly model unavailable")
	ErrInvalidWeights   = errors.New("ensemble weights must be non-negative and sum to 1")
	ErrNotFound         = errors.New("not found")
)
