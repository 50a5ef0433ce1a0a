package metadata

import "errors"

var (
	errShortHeap     = errors.New("heap data truncated")
	errOutOfRange    = errors.New("index out of range")
	errBadBlobHeader = errors.New("malformed blob header")
	errBadTildeMagic = errors.New("malformed tilde stream")
)
