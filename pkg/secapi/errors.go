package secapi

import "errors"

var (
	// ErrNotImplemented is returned for option combinations the client does not support,
	// such as chunking on both axes or chunking raw records.
	ErrNotImplemented = errors.New("not implemented")
	// ErrInvalidArgument is returned for malformed arguments, before any request is sent.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnsupportedType is returned when the security type is not one the server lists.
	ErrUnsupportedType = errors.New("unsupported security type")
)
