package framecache

import "errors"

var (
	// ErrInvalidCacheSize is returned when a negative cache budget is configured.
	ErrInvalidCacheSize = errors.New("framecache: invalid cache size")

	// ErrInvalidFrameCount is returned when a negative look-ahead or look-behind count is configured.
	ErrInvalidFrameCount = errors.New("framecache: invalid frame count")

	// ErrInvalidFrameRate is returned when the assumed frame rate is not positive.
	ErrInvalidFrameRate = errors.New("framecache: invalid frame rate")

	// ErrLoaderStopped is returned when a request is made after Close.
	ErrLoaderStopped = errors.New("framecache: loader stopped")

	// ErrEmptyFrame is reported when a decoder returns neither a frame nor an error.
	ErrEmptyFrame = errors.New("framecache: decoder returned no frame")

	// ErrFrameTooLarge is reported when a decoded frame alone exceeds the cache budget.
	ErrFrameTooLarge = errors.New("framecache: frame exceeds cache budget")

	// ErrDecoderPanic is reported when the decoder panics.
	ErrDecoderPanic = errors.New("framecache: decoder panicked")
)
