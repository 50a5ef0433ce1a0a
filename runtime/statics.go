package runtime

import (
	"fmt"

	"github.com/ili-run/cilrun/metadata"
	"github.com/ili-run/cilrun/value"
)

// staticKey identifies a static field or a type's init state across
// assemblies, since tokens are only unique within their own assembly.
type staticKey struct {
	module string
	token  uint32
}

// statics is the lazy-initialized static-field store spec §4.5 describes:
// each type initializes at most once, the first time one of its static
// fields is touched, and the "already initialized" mark is inserted before
// the cctor actually runs so a cctor that itself touches the same type's
// fields does not recurse into its own initializer.
type statics struct {
	fields      map[staticKey]value.Variable
	initialized map[staticKey]bool
}

func newStatics() *statics {
	return &statics{
		fields:      map[staticKey]value.Variable{},
		initialized: map[staticKey]bool{},
	}
}

func fieldKey(module string, fieldToken metadata.Token) staticKey {
	return staticKey{module: module, token: fieldToken.Uint32()}
}

func typeKey(module string, typeToken metadata.Token) staticKey {
	return staticKey{module: module, token: typeToken.Uint32()}
}

// beginInit marks typeKey as initialized and reports whether it was already
// marked — the guard must be set before the cctor runs, not after, per
// spec §4.5.
func (s *statics) beginInit(k staticKey) (alreadyStarted bool) {
	if s.initialized[k] {
		return true
	}
	s.initialized[k] = true
	return false
}

func (s *statics) get(k staticKey) value.Variable {
	return s.fields[k]
}

func (s *statics) set(k staticKey, v value.Variable) {
	s.fields[k] = v
}

func (s *statics) String() string {
	return fmt.Sprintf("statics{%d fields, %d types touched}", len(s.fields), len(s.initialized))
}
