// Package core defines sentinel errors.
package core

import (
	"errors"
	"fmt"
)

var (
	// Frame decoding errors
	ErrInsufficientData    = errors.New("dissector: insufficient data")
	ErrMalformedOptions    = errors.New("dissector: malformed options")
	ErrTruncatedOptionList = errors.New("dissector: truncated option list")

	// Capture errors
	ErrUnsupportedLinkType = errors.New("dissector: unsupported link type")
	ErrSourceClosed        = errors.New("dissector: source closed")

	// Configuration errors
	ErrConfigInvalid = errors.New("dissector: invalid configuration")
)

// LayerError reports the layer at which decoding of a frame stopped.
type LayerError struct {
	Layer Layer
	Err   error
}

func (e *LayerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Layer, e.Err)
}

func (e *LayerError) Unwrap() error {
	return e.Err
}

// Reason returns a short label for the underlying sentinel, suitable for metrics.
func (e *LayerError) Reason() string {
	switch {
	case errors.Is(e.Err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(e.Err, ErrMalformedOptions):
		return "malformed_options"
	case errors.Is(e.Err, ErrTruncatedOptionList):
		return "truncated_option_list"
	default:
		return "other"
	}
}
