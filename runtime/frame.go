package runtime

import (
	"github.com/ili-run/cilrun/assembly"
	"github.com/ili-run/cilrun/metadata"
	"github.com/ili-run/cilrun/value"
)

// localSlots is the fixed local-variable capacity spec §4.2 assigns every
// frame, regardless of what a method's (unparsed) local-variable signature
// would actually ask for.
const localSlots = 256

// frame is one call's activation record: the method it is executing, the
// decoded bytecode it steps through, its local slots, and a signed program
// counter so Br/Br_s can move it anywhere — including backward — without
// the dispatch loop caching instructions ahead of where PC actually is.
type frame struct {
	asm   *assembly.Assembly
	token metadata.Token
	code  []byte

	locals [localSlots]value.Variable
	filled [localSlots]bool // Ldloc clears a slot after reading it (spec §4.4)

	pc int64
}

func newFrame(asm *assembly.Assembly, token metadata.Token, code []byte) *frame {
	return &frame{asm: asm, token: token, code: code}
}

func (f *frame) setLocal(i int, v value.Variable) {
	f.locals[i] = v
	f.filled[i] = true
}

// takeLocal reads slot i and clears it, implementing Ldloc's literal
// move-not-copy semantics.
func (f *frame) takeLocal(i int) (value.Variable, bool) {
	if !f.filled[i] {
		return value.Variable{}, false
	}
	v := f.locals[i]
	f.filled[i] = false
	return v, true
}

// localHandle returns a stable pointer-surrogate for slot i, used by
// Ldloca_s to push a Pointer without itself reading/clearing the slot the
// way Ldloc does.
func (f *frame) localHandle(i int) uint64 {
	return uint64(f.token.Uint32())<<32 | uint64(uint32(i))
}
