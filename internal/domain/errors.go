package domain

import "errors"

var (
	// ErrUnknownEventSignature is returned when a log's topic0 matches none of the registrar events
	ErrUnknownEventSignature = errors.New("unknown event signature")

	// ErrMalformedEvent is returned when a log's topic or data layout does not match its signature
	ErrMalformedEvent = errors.New("malformed event log")

	// ErrMissingBlockHeader is returned when a batch carries a log for a block it has no header for
	ErrMissingBlockHeader = errors.New("missing block header for log")
)
