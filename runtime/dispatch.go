package runtime

import (
	"fmt"

	"github.com/ili-run/cilrun/assembly"
	"github.com/ili-run/cilrun/cil"
	"github.com/ili-run/cilrun/metadata"
	"github.com/ili-run/cilrun/value"
)

// execute steps f from its current PC until a Ret, implementing the
// opcode handler table from spec §4.4. PC is read fresh each iteration —
// Br/Br_s set the next PC, which is stored into f.pc at the end of the
// step — so a branch backward re-enters the
// loop at the right place instead of the loop having pre-decoded ahead.
func (r *Runtime) execute(f *frame, stack *value.Stack, depth int) error {
	for {
		if f.pc < 0 || int(f.pc) >= len(f.code) {
			return fmt.Errorf("runtime: pc %d out of range: %w", f.pc, ErrTokenOutOfRange)
		}
		instr, err := cil.Decode(f.code, int(f.pc))
		if err != nil {
			return fmt.Errorf("runtime: decode at %d: %w", f.pc, err)
		}
		if _, known := cil.LookupInfo(instr.Op); !known {
			return &UnimplementedOpcodeError{Op: byte(instr.Op)}
		}
		if r.diag != nil {
			r.diag.Opcode(instr.Op.String(), depth)
		}

		next := f.pc + int64(instr.Length())

		switch instr.Op {
		case cil.Nop:
			// no-op

		case cil.Brk:
			// original_source's Runtime::brk() raises SIGILL; this interpreter
			// has no signal to raise, so it surfaces the same "illegal
			// instruction" condition as a returned error instead.
			return fmt.Errorf("runtime: brk at %d: %w", f.pc, ErrIllegalInstruction)

		case cil.Ldarg0, cil.Ldarg1, cil.Ldarg2, cil.Ldarg3, cil.LdargS:
			// Accepted but inert: this interpreter never materializes call
			// arguments into a frame (spec §4.4's explicit open point).

		case cil.Ldloc0, cil.Ldloc1, cil.Ldloc2, cil.Ldloc3:
			if err := pushLocal(f, stack, instr.ImplicitLocal()); err != nil {
				return err
			}

		case cil.LdlocS:
			if err := pushLocal(f, stack, int(instr.Uint8Operand())); err != nil {
				return err
			}

		case cil.LdlocaS:
			idx := int(instr.Uint8Operand())
			if err := stack.Push(value.FromPointer(f.localHandle(idx))); err != nil {
				return err
			}

		case cil.Stloc0, cil.Stloc1, cil.Stloc2, cil.Stloc3:
			v, err := stack.PopAny()
			if err != nil {
				return err
			}
			f.setLocal(instr.ImplicitLocal(), v)

		case cil.StlocS:
			v, err := stack.PopAny()
			if err != nil {
				return err
			}
			f.setLocal(int(instr.Uint8Operand()), v)

		case cil.LdcI4M1, cil.LdcI40, cil.LdcI41, cil.LdcI42, cil.LdcI43,
			cil.LdcI44, cil.LdcI45, cil.LdcI46, cil.LdcI47, cil.LdcI48:
			err := stack.Push(value.FromInt32(ldcI4ShortValue(instr.Op)))
			if err != nil {
				return err
			}
		case cil.LdcI4S:
			if err := stack.Push(value.FromInt32(int32(instr.Int8Operand()))); err != nil {
				return err
			}
		case cil.LdcI4:
			if err := stack.Push(value.FromInt32(instr.Int32Operand())); err != nil {
				return err
			}
		case cil.LdcI8:
			if err := stack.Push(value.FromInt64(instr.Int64Operand())); err != nil {
				return err
			}
		case cil.LdcR4:
			if err := stack.Push(value.FromFloat64(float64(instr.Float32Operand()))); err != nil {
				return err
			}
		case cil.LdcR8:
			if err := stack.Push(value.FromFloat64(instr.Float64Operand())); err != nil {
				return err
			}

		case cil.Pop:
			if _, err := stack.PopAny(); err != nil {
				return err
			}

		case cil.BrS:
			next = f.pc + int64(instr.Length()) + int64(instr.Int8Operand())

		case cil.Br:
			next = f.pc + int64(instr.Length()) + int64(instr.Int32Operand())

		case cil.Ldstr:
			// The raw userstring token is pushed as-is, undecoded, per spec
			// §4.4's explicit open point — callers wanting text must resolve
			// it themselves via the assembly's UserStrings heap.
			if err := stack.Push(value.FromObjectHandle(uint64(instr.TokenOperand()))); err != nil {
				return err
			}

		case cil.Ldsfld, cil.Ldsflda, cil.Stsfld:
			if err := r.execStaticField(f, instr, stack, depth); err != nil {
				return err
			}

		case cil.Call, cil.Newobj:
			if err := r.execCall(f, instr, stack, depth); err != nil {
				return err
			}

		case cil.Ret:
			// Ret ends this frame's dispatch without touching the shared
			// stack — pulling an exit code from the stack top is spec §6's
			// named future extension, not current behavior, and the
			// original's `case Ret: return;` never touches the stack either.
			return nil

		default:
			return &UnimplementedOpcodeError{Op: byte(instr.Op)}
		}

		f.pc = next
	}
}

func ldcI4ShortValue(op cil.Opcode) int32 {
	switch op {
	case cil.LdcI4M1:
		return -1
	case cil.LdcI40:
		return 0
	case cil.LdcI41:
		return 1
	case cil.LdcI42:
		return 2
	case cil.LdcI43:
		return 3
	case cil.LdcI44:
		return 4
	case cil.LdcI45:
		return 5
	case cil.LdcI46:
		return 6
	case cil.LdcI47:
		return 7
	default:
		return 8
	}
}

func pushLocal(f *frame, stack *value.Stack, idx int) error {
	v, ok := f.takeLocal(idx)
	if !ok {
		return fmt.Errorf("runtime: ldloc %d: local never set: %w", idx, ErrMemberNotFound)
	}
	return stack.Push(v)
}

// resolveField maps a Ldsfld/Ldsflda/Stsfld token to its owning assembly,
// owning type token, and field token, following the MemberRef chain for a
// cross-assembly field the way execCall follows it for methods.
func (r *Runtime) resolveField(f *frame, fieldTok metadata.Token) (*assembly.Assembly, metadata.Token, metadata.Token, error) {
	if fieldTok.IsNull() {
		return nil, metadata.Token{}, metadata.Token{}, fmt.Errorf("runtime: field: %w", ErrNullToken)
	}
	if fieldTok.ID == metadata.TableField {
		_, typeTok, ok := f.asm.TypeDefOfField(fieldTok)
		if !ok {
			return nil, metadata.Token{}, metadata.Token{}, fmt.Errorf("runtime: field %s: %w", fieldTok, ErrMemberNotFound)
		}
		return f.asm, typeTok, fieldTok, nil
	}
	if fieldTok.ID != metadata.TableMemberRef {
		return nil, metadata.Token{}, metadata.Token{}, fmt.Errorf("runtime: field %s: %w", fieldTok, ErrInvalidCallToken)
	}
	qn, err := f.asm.QualifiedMemberName(fieldTok)
	if err != nil {
		return nil, metadata.Token{}, metadata.Token{}, err
	}
	target, err := r.resolveAssembly(qn.AssemblyName)
	if err != nil {
		return nil, metadata.Token{}, metadata.Token{}, err
	}
	_, resolvedTok, found := target.FieldByName(qn.NamespaceName, qn.TypeName, qn.MethodName)
	if !found {
		return nil, metadata.Token{}, metadata.Token{}, fmt.Errorf("runtime: field %s: %w", qn, ErrMemberNotFound)
	}
	_, typeTok, ok := target.TypeDefOfField(resolvedTok)
	if !ok {
		return nil, metadata.Token{}, metadata.Token{}, fmt.Errorf("runtime: field %s: %w", qn, ErrMemberNotFound)
	}
	return target, typeTok, resolvedTok, nil
}

func (r *Runtime) execStaticField(f *frame, instr cil.Instruction, stack *value.Stack, depth int) error {
	targetAsm, typeTok, fieldTok, err := r.resolveField(f, metadata.FromUint32(instr.TokenOperand()))
	if err != nil {
		return err
	}
	if err := r.ensureTypeInit(targetAsm, typeTok, stack, depth+1); err != nil {
		return err
	}
	k := fieldKey(targetAsm.ModuleName(), fieldTok)

	switch instr.Op {
	case cil.Ldsfld:
		return stack.Push(r.statics.get(k))
	case cil.Ldsflda:
		// Ldsflda pushes a managed reference (O), not an unmanaged Pointer
		// — distinct from Ldloca_s's Pointer tag, per spec §4.5. No real
		// address exists for a static field, so the field's own token
		// stands in as a stable, comparable surrogate payload.
		return stack.Push(value.FromObjectHandle(uint64(fieldTok.Uint32())))
	case cil.Stsfld:
		v, err := stack.PopAny()
		if err != nil {
			return err
		}
		r.statics.set(k, v)
		return nil
	}
	return nil
}

// execCall resolves Call/Newobj's token to a concrete method, optionally
// across assemblies, and runs it on a fresh frame that shares stack.
func (r *Runtime) execCall(f *frame, instr cil.Instruction, stack *value.Stack, depth int) error {
	tok := metadata.FromUint32(instr.TokenOperand())
	targetAsm, methodTok, md, err := r.resolveMethod(f.asm, tok)
	if err != nil {
		return err
	}

	if instr.Op == cil.Newobj {
		_, typeTok, ok := targetAsm.TypeDefOfMethod(methodTok)
		if !ok {
			return fmt.Errorf("runtime: newobj %s: %w", tok, ErrMemberNotFound)
		}
		size := targetAsm.TypeSize(typeTok)
		handle := r.heap.Alloc(size)
		if err := stack.Push(value.FromObjectHandle(handle)); err != nil {
			return err
		}
		// The constructor's own Ret never touches the shared stack (see
		// execute's Ret case), so the O reference just pushed survives the
		// call untouched — this is the caller's "new object" result.
		return r.call(targetAsm, methodTok, md, stack, depth+1)
	}

	return r.call(targetAsm, methodTok, md, stack, depth+1)
}

// resolveMethod maps a Call/Newobj token to its owning assembly and typed
// row, following MemberRef -> TypeRef -> AssemblyRef for a cross-assembly
// reference per spec §4.6.
func (r *Runtime) resolveMethod(caller *assembly.Assembly, tok metadata.Token) (*assembly.Assembly, metadata.Token, metadata.MethodDef, error) {
	if tok.IsNull() {
		return nil, metadata.Token{}, metadata.MethodDef{}, fmt.Errorf("runtime: call: %w", ErrNullToken)
	}
	if tok.ID == metadata.TableMethodDef {
		md, ok := caller.MethodDef(tok)
		if !ok {
			return nil, metadata.Token{}, metadata.MethodDef{}, fmt.Errorf("runtime: call %s: %w", tok, ErrTokenOutOfRange)
		}
		return caller, tok, md, nil
	}
	if tok.ID != metadata.TableMemberRef {
		return nil, metadata.Token{}, metadata.MethodDef{}, fmt.Errorf("runtime: call %s: %w", tok, ErrInvalidCallToken)
	}

	qn, err := caller.QualifiedMemberName(tok)
	if err != nil {
		return nil, metadata.Token{}, metadata.MethodDef{}, err
	}
	target, err := r.resolveAssembly(qn.AssemblyName)
	if err != nil {
		return nil, metadata.Token{}, metadata.MethodDef{}, err
	}
	md, resolvedTok, found := target.MethodByName(qn.NamespaceName, qn.TypeName, qn.MethodName)
	if !found {
		return nil, metadata.Token{}, metadata.MethodDef{}, fmt.Errorf("runtime: call %s: %w", qn, ErrMemberNotFound)
	}
	return target, resolvedTok, md, nil
}
