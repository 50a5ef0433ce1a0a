package assembly

import (
	"fmt"

	"github.com/ili-run/cilrun/metadata"
)

// RowCount returns the number of rows assembly-local table id carries.
func (a *Assembly) RowCount(id metadata.TableID) int {
	return a.Tables.RowCount(id)
}

// TableEntry resolves a token to its raw row, checking the token's table id
// and bounds per spec §4.1: "a null token or out-of-range index yields
// absent."
func (a *Assembly) TableEntry(tok metadata.Token) (metadata.Row, bool) {
	if tok.IsNull() {
		return nil, false
	}
	return a.Tables.Row(tok.ID, tok.Index)
}

// MethodDef resolves a MethodDef token to its typed row.
func (a *Assembly) MethodDef(tok metadata.Token) (metadata.MethodDef, bool) {
	if tok.ID != metadata.TableMethodDef {
		return metadata.MethodDef{}, false
	}
	row, ok := a.TableEntry(tok)
	if !ok {
		return metadata.MethodDef{}, false
	}
	return metadata.MethodDef{Row: row}, true
}

// Field resolves a Field token to its typed row.
func (a *Assembly) Field(tok metadata.Token) (metadata.Field, bool) {
	if tok.ID != metadata.TableField {
		return metadata.Field{}, false
	}
	row, ok := a.TableEntry(tok)
	if !ok {
		return metadata.Field{}, false
	}
	return metadata.Field{Row: row}, true
}

// TypeDefOfMethod scans TypeDef rows for the one whose method range
// contains methodToken, per spec §4.1: "type i owns methods in
// [type[i].methodList, type[i+1].methodList); the last type owns the tail."
func (a *Assembly) TypeDefOfMethod(methodToken metadata.Token) (metadata.TypeDef, metadata.Token, bool) {
	count := a.RowCount(metadata.TableTypeDef)
	for i := 1; i <= count; i++ {
		row, _ := a.Tables.Row(metadata.TableTypeDef, uint32(i))
		td := metadata.TypeDef{Row: row}
		start := td.MethodList()

		var end metadata.TableIndex
		if i < count {
			nextRow, _ := a.Tables.Row(metadata.TableTypeDef, uint32(i+1))
			end = metadata.TypeDef{Row: nextRow}.MethodList()
		} else {
			end = metadata.TableIndex(a.RowCount(metadata.TableMethodDef) + 1)
		}

		if uint32(methodToken.Index) >= uint32(start) && uint32(methodToken.Index) < uint32(end) {
			return td, metadata.Token{ID: metadata.TableTypeDef, Index: uint32(i)}, true
		}
	}
	return metadata.TypeDef{}, metadata.Token{}, false
}

// MethodByName linearly scans TypeDef rows for a namespace+name match, then
// that type's method range for a name match, per spec §4.1.
func (a *Assembly) MethodByName(namespaceName, typeName, methodName string) (metadata.MethodDef, metadata.Token, bool) {
	count := a.RowCount(metadata.TableTypeDef)
	for i := 1; i <= count; i++ {
		row, _ := a.Tables.Row(metadata.TableTypeDef, uint32(i))
		td := metadata.TypeDef{Row: row}

		ns, err := a.Strings.String(td.TypeNamespace())
		if err != nil || ns != namespaceName {
			continue
		}
		tn, err := a.Strings.String(td.TypeName())
		if err != nil || tn != typeName {
			continue
		}

		start := td.MethodList()
		var end metadata.TableIndex
		if i < count {
			nextRow, _ := a.Tables.Row(metadata.TableTypeDef, uint32(i+1))
			end = metadata.TypeDef{Row: nextRow}.MethodList()
		} else {
			end = metadata.TableIndex(a.RowCount(metadata.TableMethodDef) + 1)
		}

		for idx := uint32(start); idx < uint32(end); idx++ {
			mdRow, ok := a.Tables.Row(metadata.TableMethodDef, idx)
			if !ok {
				continue
			}
			md := metadata.MethodDef{Row: mdRow}
			name, err := a.Strings.String(md.Name())
			if err == nil && name == methodName {
				return md, metadata.Token{ID: metadata.TableMethodDef, Index: idx}, true
			}
		}
	}
	return metadata.MethodDef{}, metadata.Token{}, false
}

// TypeDefOfField scans TypeDef rows for the one whose field range contains
// fieldToken, mirroring TypeDefOfMethod but over FieldList instead of
// MethodList.
func (a *Assembly) TypeDefOfField(fieldToken metadata.Token) (metadata.TypeDef, metadata.Token, bool) {
	count := a.RowCount(metadata.TableTypeDef)
	for i := 1; i <= count; i++ {
		row, _ := a.Tables.Row(metadata.TableTypeDef, uint32(i))
		td := metadata.TypeDef{Row: row}
		start := td.FieldList()

		var end metadata.TableIndex
		if i < count {
			nextRow, _ := a.Tables.Row(metadata.TableTypeDef, uint32(i+1))
			end = metadata.TypeDef{Row: nextRow}.FieldList()
		} else {
			end = metadata.TableIndex(a.RowCount(metadata.TableField) + 1)
		}

		if uint32(fieldToken.Index) >= uint32(start) && uint32(fieldToken.Index) < uint32(end) {
			return td, metadata.Token{ID: metadata.TableTypeDef, Index: uint32(i)}, true
		}
	}
	return metadata.TypeDef{}, metadata.Token{}, false
}

// FieldByName linearly scans TypeDef rows for a namespace+name match, then
// that type's field range for a name match, mirroring MethodByName.
func (a *Assembly) FieldByName(namespaceName, typeName, fieldName string) (metadata.Field, metadata.Token, bool) {
	count := a.RowCount(metadata.TableTypeDef)
	for i := 1; i <= count; i++ {
		row, _ := a.Tables.Row(metadata.TableTypeDef, uint32(i))
		td := metadata.TypeDef{Row: row}

		ns, err := a.Strings.String(td.TypeNamespace())
		if err != nil || ns != namespaceName {
			continue
		}
		tn, err := a.Strings.String(td.TypeName())
		if err != nil || tn != typeName {
			continue
		}

		start := td.FieldList()
		var end metadata.TableIndex
		if i < count {
			nextRow, _ := a.Tables.Row(metadata.TableTypeDef, uint32(i+1))
			end = metadata.TypeDef{Row: nextRow}.FieldList()
		} else {
			end = metadata.TableIndex(a.RowCount(metadata.TableField) + 1)
		}

		for idx := uint32(start); idx < uint32(end); idx++ {
			fRow, ok := a.Tables.Row(metadata.TableField, idx)
			if !ok {
				continue
			}
			field := metadata.Field{Row: fRow}
			name, err := a.Strings.String(field.Name())
			if err == nil && name == fieldName {
				return field, metadata.Token{ID: metadata.TableField, Index: idx}, true
			}
		}
	}
	return metadata.Field{}, metadata.Token{}, false
}

// QualifiedName is the (assembly, namespace, type, method) tuple spec §4.1
// names for qualifiedMemberName.
type QualifiedName struct {
	AssemblyName   string
	NamespaceName  string
	TypeName       string
	MethodName     string
}

func (q QualifiedName) String() string {
	return fmt.Sprintf("[%s]%s.%s::%s", q.AssemblyName, q.NamespaceName, q.TypeName, q.MethodName)
}

// QualifiedMemberName resolves MemberRef -> TypeRef -> AssemblyRef per spec
// §4.1.
func (a *Assembly) QualifiedMemberName(memberRefToken metadata.Token) (QualifiedName, error) {
	if memberRefToken.ID != metadata.TableMemberRef {
		return QualifiedName{}, fmt.Errorf("assembly: qualified member name: %w", errNotMemberRef)
	}
	row, ok := a.TableEntry(memberRefToken)
	if !ok {
		return QualifiedName{}, fmt.Errorf("assembly: qualified member name: %w", errTokenOutOfRange)
	}
	mr := metadata.MemberRef{Row: row}
	methodName, err := a.Strings.String(mr.Name())
	if err != nil {
		return QualifiedName{}, err
	}

	classTok := mr.Class()
	if classTok.ID != metadata.TableTypeRef {
		return QualifiedName{}, fmt.Errorf("assembly: qualified member name: %w", errUnsupportedMemberRefParent)
	}
	trRow, ok := a.TableEntry(classTok)
	if !ok {
		return QualifiedName{}, fmt.Errorf("assembly: qualified member name: %w", errTokenOutOfRange)
	}
	tr := metadata.TypeRef{Row: trRow}
	typeName, err := a.Strings.String(tr.TypeName())
	if err != nil {
		return QualifiedName{}, err
	}
	nsName, err := a.Strings.String(tr.TypeNamespace())
	if err != nil {
		return QualifiedName{}, err
	}

	scopeTok := tr.ResolutionScope()
	if scopeTok.ID != metadata.TableAssemblyRef {
		return QualifiedName{}, fmt.Errorf("assembly: qualified member name: %w", errUnsupportedResolutionScope)
	}
	arRow, ok := a.TableEntry(scopeTok)
	if !ok {
		return QualifiedName{}, fmt.Errorf("assembly: qualified member name: %w", errTokenOutOfRange)
	}
	ar := metadata.AssemblyRef{Row: arRow}
	asmName, err := a.Strings.String(ar.Name())
	if err != nil {
		return QualifiedName{}, err
	}

	return QualifiedName{
		AssemblyName:  asmName,
		NamespaceName: nsName,
		TypeName:      typeName,
		MethodName:    methodName,
	}, nil
}

// ClassLayoutOfType linearly scans ClassLayout rows by Parent index, per
// spec §4.1.
func (a *Assembly) ClassLayoutOfType(typeDefToken metadata.Token) (metadata.ClassLayout, bool) {
	count := a.RowCount(metadata.TableClassLayout)
	for i := 1; i <= count; i++ {
		row, _ := a.Tables.Row(metadata.TableClassLayout, uint32(i))
		cl := metadata.ClassLayout{Row: row}
		if uint32(cl.Parent()) == typeDefToken.Index {
			return cl, true
		}
	}
	return metadata.ClassLayout{}, false
}

// TypeSize returns the heap allocation size for typeDefToken: the
// ClassLayout's ClassSize when present, else a per-field fallback since
// this interpreter does not decode field-signature element types (spec
// §4.1 explicitly treats the no-layout case as open work).
func (a *Assembly) TypeSize(typeDefToken metadata.Token) uint32 {
	if cl, ok := a.ClassLayoutOfType(typeDefToken); ok {
		return cl.ClassSize()
	}

	if _, ok := a.TableEntry(typeDefToken); !ok {
		return 0
	}

	fieldCount := a.fieldCountOfType(typeDefToken)
	const fallbackFieldSize = 8
	return uint32(fieldCount) * fallbackFieldSize
}

func (a *Assembly) fieldCountOfType(typeDefToken metadata.Token) int {
	count := a.RowCount(metadata.TableTypeDef)
	idx := int(typeDefToken.Index)
	if idx < 1 || idx > count {
		return 0
	}
	row, _ := a.Tables.Row(metadata.TableTypeDef, uint32(idx))
	td := metadata.TypeDef{Row: row}
	start := td.FieldList()

	var end metadata.TableIndex
	if idx < count {
		nextRow, _ := a.Tables.Row(metadata.TableTypeDef, uint32(idx+1))
		end = metadata.TypeDef{Row: nextRow}.FieldList()
	} else {
		end = metadata.TableIndex(a.RowCount(metadata.TableField) + 1)
	}
	if uint32(end) <= uint32(start) {
		return 0
	}
	return int(uint32(end) - uint32(start))
}
