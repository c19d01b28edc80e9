package analysis

import "errors"

// ErrInvalidPeriod is returned for an unknown period type
var ErrInvalidPeriod = errors.New("invalid period type")

// ErrInvalidLookback is returned for a negative lookback window
var ErrInvalidLookback = errors.New("invalid lookback hours")
