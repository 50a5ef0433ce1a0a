// Package runtime executes CIL bytecode decoded by cil and resolved by
// assembly and metadata: it owns the call stack, the evaluation stack, the
// static-field store, and the managed heap, and implements the embedding
// contract spec §6 names (newRuntime / addAssemblyLoader / addAssembly /
// run).
package runtime

import (
	"fmt"

	"github.com/ili-run/cilrun/assembly"
	"github.com/ili-run/cilrun/diag"
	"github.com/ili-run/cilrun/metadata"
	"github.com/ili-run/cilrun/value"
)

// AssemblyLoader resolves a module name to an assembly, or returns a nil
// assembly (with a nil error) to pass the name to the next loader in the
// chain. Named here rather than reusing loader.Loader to keep this package
// free of a dependency on loader (which itself depends on assembly only,
// not runtime — the host wires the two together).
type AssemblyLoader func(name string) (*assembly.Assembly, error)

// Runtime is one interpreter session: a registry of loaded assemblies, an
// ordered loader chain consulted on a registry miss, and the mutable state
// (statics, heap) shared across every call made during Run.
type Runtime struct {
	assemblies map[string]*assembly.Assembly
	loaders    []AssemblyLoader

	statics *statics
	heap    *Heap
	diag    *diag.Logger

	stackReserve int
}

// NewRuntime constructs an empty Runtime. stackReserve sizes every method
// call's evaluation stack; pass 0 to fall back to the entry assembly's own
// Optional-Header SizeOfStackReserve at Run time.
func NewRuntime(stackReserve int, logger *diag.Logger) *Runtime {
	return &Runtime{
		assemblies:   map[string]*assembly.Assembly{},
		statics:      newStatics(),
		heap:         NewHeap(),
		diag:         logger,
		stackReserve: stackReserve,
	}
}

// AddAssemblyLoader appends l to the loader chain. Loaders are tried in the
// order they were added; the first to return a non-nil assembly wins.
func (r *Runtime) AddAssemblyLoader(l AssemblyLoader) {
	r.loaders = append(r.loaders, l)
}

// AddAssembly registers asm directly under its own module name, as if a
// loader had already resolved it — used for the entry assembly and for
// tests that skip the loader chain entirely.
func (r *Runtime) AddAssembly(asm *assembly.Assembly) {
	r.assemblies[asm.ModuleName()] = asm
	if r.diag != nil {
		r.diag.AssemblyLoaded(asm.ModuleName())
	}
}

// resolveAssembly returns the assembly registered (or resolvable via the
// loader chain) under name, caching a loader hit in the registry so a
// repeated reference doesn't re-walk the chain.
func (r *Runtime) resolveAssembly(name string) (*assembly.Assembly, error) {
	if asm, ok := r.assemblies[name]; ok {
		return asm, nil
	}
	for _, load := range r.loaders {
		asm, err := load(name)
		if err != nil {
			return nil, err
		}
		if asm != nil {
			r.assemblies[name] = asm
			if r.diag != nil {
				r.diag.AssemblyLoaded(name)
			}
			return asm, nil
		}
	}
	return nil, fmt.Errorf("runtime: resolve %q: %w", name, ErrAssemblyNotFound)
}

// Run executes entry's EntrypointToken to completion. It always returns 0:
// spec §6 reserves pulling an exit code from the stack top after Ret for a
// future extension, and the original runtime (runtime.cpp's run) returns 0
// unconditionally too.
func (r *Runtime) Run(entry *assembly.Assembly) (int32, error) {
	if entry.EntrypointToken.IsNull() {
		return 0, fmt.Errorf("runtime: run: %w", ErrNullToken)
	}
	r.AddAssembly(entry)

	reserve := r.stackReserve
	if reserve == 0 {
		reserve = int(entry.SizeOfStackReserve)
	}
	if reserve == 0 {
		reserve = 1 << 20
	}

	md, ok := entry.MethodDef(entry.EntrypointToken)
	if !ok {
		return 0, fmt.Errorf("runtime: run: %w", ErrMemberNotFound)
	}
	if err := r.call(entry, entry.EntrypointToken, md, value.NewStack(reserve), 0); err != nil {
		return 0, err
	}
	return 0, nil
}

// call resolves methodToken's bytecode and runs it on a fresh frame sharing
// the caller's evaluation stack. Ret ends the frame; it never yields a
// value to the caller, per spec §4.4/§6 and the original's `case Ret:
// return;`.
func (r *Runtime) call(asm *assembly.Assembly, methodToken metadata.Token, md metadata.MethodDef, stack *value.Stack, depth int) error {
	code, err := asm.ByteCode(md)
	if err != nil {
		return fmt.Errorf("runtime: call %s: %w", methodToken, err)
	}

	if r.diag != nil {
		name, _ := asm.Strings.String(md.Name())
		r.diag.MethodEnter(name, depth)
		defer r.diag.MethodReturn(name, depth)
	}

	f := newFrame(asm, methodToken, code)
	return r.execute(f, stack, depth)
}

// ensureTypeInit runs typeToken's .cctor exactly once, the first time any
// of its static fields is touched, per spec §4.5. The guard is recorded
// before the cctor body runs so a cctor that reads/writes its own type's
// statics does not re-enter this function.
func (r *Runtime) ensureTypeInit(asm *assembly.Assembly, typeToken metadata.Token, stack *value.Stack, depth int) error {
	k := typeKey(asm.ModuleName(), typeToken)
	if r.statics.beginInit(k) {
		return nil
	}
	typeRow, ok := asm.TableEntry(typeToken)
	if !ok {
		return nil
	}
	typeDef := metadata.TypeDef{Row: typeRow}
	typeName, _ := asm.Strings.String(typeDef.TypeName())
	nsName, _ := asm.Strings.String(typeDef.TypeNamespace())

	md, tok, found := asm.MethodByName(nsName, typeName, ".cctor")
	if !found {
		return nil
	}
	return r.call(asm, tok, md, stack, depth+1)
}
