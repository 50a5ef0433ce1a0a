package cil

import "errors"

// ErrTruncated is returned when an instruction's operand would run past
// the end of the code buffer.
var ErrTruncated = errors.New("cil: instruction truncated")
