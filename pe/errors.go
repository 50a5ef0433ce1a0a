package pe

import "errors"

var (
	errBadMagic  = errors.New("bad magic")
	errTooShort  = errors.New("buffer too short")
	errNoSection = errors.New("rva does not resolve to any section")
)
