package metadata

import "encoding/binary"

// RowSize returns the fixed row byte size for id under the small-index
// assumption (spec §4.1: unsupported table ids have size 0; this is an
// acceptable simplification for small assemblies only, not a contract).
func RowSize(id TableID) int {
	switch id {
	case TableModule:
		return 10
	case TableTypeRef:
		return 6
	case TableTypeDef:
		return 14
	case TableField:
		return 6
	case TableMethodDef:
		return 14
	case TableParam:
		return 6
	case TableMemberRef:
		return 6
	case TableClassLayout:
		return 8
	case TableAssemblyRef:
		return 20
	default:
		return 0
	}
}

// Row is a raw, fixed-size slice of bytes for one table row. Typed views
// are produced on demand (spec §9: "typed row views can be produced on
// demand rather than eagerly materialized").
type Row []byte

func u16(b []byte, off int) uint16 { return binary.LittleEndian.Uint16(b[off : off+2]) }
func u32(b []byte, off int) uint32 { return binary.LittleEndian.Uint32(b[off : off+4]) }

// StringIndex, BlobIndex, GUIDIndex are heap offsets, all
// 2 bytes wide under the small-heap assumption.
type StringIndex uint32
type BlobIndex uint32
type GUIDIndex uint32

// TableIndex is a 1-based row index into a fixed table, 2 bytes wide under
// the small-table assumption.
type TableIndex uint32

// Module is table id 0x00.
type Module struct{ Row Row }

func (m Module) Generation() uint16    { return u16(m.Row, 0) }
func (m Module) Name() StringIndex     { return StringIndex(u16(m.Row, 2)) }
func (m Module) Mvid() GUIDIndex       { return GUIDIndex(u16(m.Row, 4)) }
func (m Module) EncID() GUIDIndex      { return GUIDIndex(u16(m.Row, 6)) }
func (m Module) EncBaseID() GUIDIndex  { return GUIDIndex(u16(m.Row, 8)) }

// TypeRef is table id 0x01.
type TypeRef struct{ Row Row }

func (t TypeRef) ResolutionScope() Token   { return decodeResolutionScope(u16(t.Row, 0)) }
func (t TypeRef) TypeName() StringIndex    { return StringIndex(u16(t.Row, 2)) }
func (t TypeRef) TypeNamespace() StringIndex { return StringIndex(u16(t.Row, 4)) }

// TypeDef is table id 0x02.
type TypeDef struct{ Row Row }

func (t TypeDef) Flags() uint32            { return u32(t.Row, 0) }
func (t TypeDef) TypeName() StringIndex    { return StringIndex(u16(t.Row, 4)) }
func (t TypeDef) TypeNamespace() StringIndex { return StringIndex(u16(t.Row, 6)) }
func (t TypeDef) Extends() Token           { return decodeTypeDefOrRef(u16(t.Row, 8)) }
func (t TypeDef) FieldList() TableIndex    { return TableIndex(u16(t.Row, 10)) }
func (t TypeDef) MethodList() TableIndex   { return TableIndex(u16(t.Row, 12)) }

// Field is table id 0x04.
type Field struct{ Row Row }

func (f Field) Flags() uint16         { return u16(f.Row, 0) }
func (f Field) Name() StringIndex     { return StringIndex(u16(f.Row, 2)) }
func (f Field) Signature() BlobIndex  { return BlobIndex(u16(f.Row, 4)) }

// MethodDef is table id 0x06.
type MethodDef struct{ Row Row }

func (m MethodDef) RVA() uint32            { return u32(m.Row, 0) }
func (m MethodDef) ImplFlags() uint16      { return u16(m.Row, 4) }
func (m MethodDef) Flags() uint16          { return u16(m.Row, 6) }
func (m MethodDef) Name() StringIndex      { return StringIndex(u16(m.Row, 8)) }
func (m MethodDef) Signature() BlobIndex   { return BlobIndex(u16(m.Row, 10)) }
func (m MethodDef) ParamList() TableIndex  { return TableIndex(u16(m.Row, 12)) }

// Param is table id 0x08.
type Param struct{ Row Row }

func (p Param) Flags() uint16     { return u16(p.Row, 0) }
func (p Param) Sequence() uint16  { return u16(p.Row, 2) }
func (p Param) Name() StringIndex { return StringIndex(u16(p.Row, 4)) }

// MemberRef is table id 0x0A.
type MemberRef struct{ Row Row }

func (m MemberRef) Class() Token         { return decodeMemberRefParent(u16(m.Row, 0)) }
func (m MemberRef) Name() StringIndex    { return StringIndex(u16(m.Row, 2)) }
func (m MemberRef) Signature() BlobIndex { return BlobIndex(u16(m.Row, 4)) }

// ClassLayout is table id 0x0F. Sized and supported here even though the
// reference source leaves its row size at 0 (see SPEC_FULL.md §1 / DESIGN.md
// for the rationale).
type ClassLayout struct{ Row Row }

func (c ClassLayout) PackingSize() uint16 { return u16(c.Row, 0) }
func (c ClassLayout) ClassSize() uint32   { return u32(c.Row, 2) }
func (c ClassLayout) Parent() TableIndex  { return TableIndex(u16(c.Row, 6)) }

// AssemblyRef is table id 0x23.
type AssemblyRef struct{ Row Row }

func (a AssemblyRef) MajorVersion() uint16     { return u16(a.Row, 0) }
func (a AssemblyRef) MinorVersion() uint16     { return u16(a.Row, 2) }
func (a AssemblyRef) BuildNumber() uint16      { return u16(a.Row, 4) }
func (a AssemblyRef) RevisionNumber() uint16   { return u16(a.Row, 6) }
func (a AssemblyRef) Flags() uint32            { return u32(a.Row, 8) }
func (a AssemblyRef) PublicKeyOrToken() BlobIndex { return BlobIndex(u16(a.Row, 12)) }
func (a AssemblyRef) Name() StringIndex        { return StringIndex(u16(a.Row, 14)) }
func (a AssemblyRef) Culture() StringIndex     { return StringIndex(u16(a.Row, 16)) }
func (a AssemblyRef) HashValue() BlobIndex     { return BlobIndex(u16(a.Row, 18)) }

// Coded-index table tags, all 2-byte wide under the small-index assumption.
// Only tags that name a table this package actually supports can be
// followed further; others still decode to a correctly-tagged Token.
const (
	tableModuleRef TableID = 0x1A
	tableTypeSpec  TableID = 0x1B
)

func decodeResolutionScope(raw uint16) Token {
	tables := [4]TableID{TableModule, tableModuleRef, TableAssemblyRef, TableTypeRef}
	tag := raw & 0x3
	index := uint32(raw >> 2)
	return Token{ID: tables[tag], Index: index}
}

func decodeTypeDefOrRef(raw uint16) Token {
	tables := [3]TableID{TableTypeDef, TableTypeRef, tableTypeSpec}
	tag := raw & 0x3
	if tag > 2 {
		tag = 2
	}
	index := uint32(raw >> 2)
	return Token{ID: tables[tag], Index: index}
}

func decodeMemberRefParent(raw uint16) Token {
	tables := [5]TableID{TableTypeDef, TableTypeRef, tableModuleRef, TableMethodDef, tableTypeSpec}
	tag := raw & 0x7
	if tag > 4 {
		tag = 4
	}
	index := uint32(raw >> 3)
	return Token{ID: tables[tag], Index: index}
}
