package stream

import "errors"

var (
	// ErrInvalidRequest indicates the source URL provided is missing or malformed.
	ErrInvalidRequest = errors.New("invalid conversion request")

	ErrJobNotFound = errors.New("job not found")

	// ErrFileNotFound is returned by the media server for any request which
	// does not resolve to a servable file inside of a job directory.
	ErrFileNotFound = errors.New("stream file not found")
)
