package assembly

import "errors"

var (
	errNotMemberRef               = errors.New("token is not a MemberRef")
	errTokenOutOfRange             = errors.New("token out of range")
	errUnsupportedMemberRefParent  = errors.New("unsupported MemberRef parent (only TypeRef is resolved)")
	errUnsupportedResolutionScope  = errors.New("unsupported TypeRef resolution scope (only AssemblyRef is resolved)")
)
