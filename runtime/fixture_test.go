package runtime

import (
	"encoding/binary"

	"github.com/ili-run/cilrun/metadata"
)

// methodSpec is one MethodDef to embed: name plus its tiny-header-wrapped
// bytecode.
type methodSpec struct {
	name string
	code []byte
}

// fieldSpec is one Field to embed: just a name, since this interpreter
// never decodes field signatures.
type fieldSpec struct {
	name string
}

// buildOpts configures buildAssembly. memberRefName/memberRefAssembly/
// memberRefType/memberRefNamespace describe a single MemberRef pointing at
// another assembly's type+member, used by the cross-assembly call tests.
// classSize, if nonzero, adds a ClassLayout row for the one TypeDef.
type buildOpts struct {
	moduleName    string
	typeName      string
	typeNamespace string
	methods       []methodSpec
	fields        []fieldSpec
	classSize     uint32

	memberRefName      string
	memberRefAssembly  string
	memberRefType      string
	memberRefNamespace string
}

// buildAssembly always sets the entrypoint to MethodDef row 1: every
// fixture's first method is its EntrypointToken target.
func buildAssembly(o buildOpts) []byte {
	const (
		coffOffset = 0x80
		numDirs    = 16
		optHdrSize = 0x70 + numDirs*8
	)
	sectionTableOffset := coffOffset + 24 + optHdrSize
	sectionRawOffset := sectionTableOffset + 40
	const sectionRVA = 0x2000
	const cliHeaderSize = 72
	const metaRootOffsetInSection = cliHeaderSize
	const methodCodeBaseOffset = 0x1000

	stringsHeap := []byte{0}
	intern := func(s string) uint32 {
		if s == "" {
			return 0
		}
		idx := uint32(len(stringsHeap))
		stringsHeap = append(stringsHeap, []byte(s)...)
		stringsHeap = append(stringsHeap, 0)
		return idx
	}

	moduleNameIdx := intern(o.moduleName)
	typeNameIdx := intern(o.typeName)
	typeNsIdx := intern(o.typeNamespace)

	// Lay out method bytecode blocks back to back, each generously spaced.
	methodRVAs := make([]uint32, len(o.methods))
	codeBlocks := [][]byte{}
	cursor := methodCodeBaseOffset
	for i, m := range o.methods {
		methodRVAs[i] = uint32(sectionRVA + cursor)
		codeBlocks = append(codeBlocks, m.code)
		cursor += 0x200
	}

	moduleRow := make([]byte, metadata.RowSize(metadata.TableModule))
	binary.LittleEndian.PutUint16(moduleRow[2:4], uint16(moduleNameIdx))

	typeRow := make([]byte, metadata.RowSize(metadata.TableTypeDef))
	binary.LittleEndian.PutUint16(typeRow[4:6], uint16(typeNameIdx))
	binary.LittleEndian.PutUint16(typeRow[6:8], uint16(typeNsIdx))
	binary.LittleEndian.PutUint16(typeRow[10:12], 1) // FieldList starts at row 1
	binary.LittleEndian.PutUint16(typeRow[12:14], 1) // MethodList starts at row 1

	var fieldRows []byte
	for _, fl := range o.fields {
		row := make([]byte, metadata.RowSize(metadata.TableField))
		binary.LittleEndian.PutUint16(row[2:4], uint16(intern(fl.name)))
		fieldRows = append(fieldRows, row...)
	}

	var methodRows []byte
	for i, m := range o.methods {
		row := make([]byte, metadata.RowSize(metadata.TableMethodDef))
		binary.LittleEndian.PutUint32(row[0:4], methodRVAs[i])
		binary.LittleEndian.PutUint16(row[8:10], uint16(intern(m.name)))
		binary.LittleEndian.PutUint16(row[12:14], 1)
		methodRows = append(methodRows, row...)
	}

	var classLayoutRows []byte
	if o.classSize != 0 {
		row := make([]byte, metadata.RowSize(metadata.TableClassLayout))
		binary.LittleEndian.PutUint32(row[2:6], o.classSize)
		binary.LittleEndian.PutUint16(row[6:8], 1) // Parent = TypeDef row 1
		classLayoutRows = append(classLayoutRows, row...)
	}

	var assemblyRefRows, typeRefRows, memberRefRows []byte
	if o.memberRefName != "" {
		arRow := make([]byte, metadata.RowSize(metadata.TableAssemblyRef))
		binary.LittleEndian.PutUint16(arRow[14:16], uint16(intern(o.memberRefAssembly)))
		assemblyRefRows = arRow

		trRow := make([]byte, metadata.RowSize(metadata.TableTypeRef))
		// ResolutionScope coded index: tag 2 = AssemblyRef, row 1 -> (1<<2)|2
		binary.LittleEndian.PutUint16(trRow[0:2], uint16(1<<2|2))
		binary.LittleEndian.PutUint16(trRow[2:4], uint16(intern(o.memberRefType)))
		binary.LittleEndian.PutUint16(trRow[4:6], uint16(intern(o.memberRefNamespace)))
		typeRefRows = trRow

		mrRow := make([]byte, metadata.RowSize(metadata.TableMemberRef))
		// MemberRefParent coded index: tag 1 = TypeRef, row 1 -> (1<<3)|1
		binary.LittleEndian.PutUint16(mrRow[0:2], uint16(1<<3|1))
		binary.LittleEndian.PutUint16(mrRow[2:4], uint16(intern(o.memberRefName)))
		memberRefRows = mrRow
	}

	valid := uint64(0)
	valid |= 1 << uint(metadata.TableModule)
	valid |= 1 << uint(metadata.TableTypeDef)
	valid |= 1 << uint(metadata.TableMethodDef)
	if len(o.fields) > 0 {
		valid |= 1 << uint(metadata.TableField)
	}
	if o.classSize != 0 {
		valid |= 1 << uint(metadata.TableClassLayout)
	}
	if o.memberRefName != "" {
		valid |= 1 << uint(metadata.TableTypeRef)
		valid |= 1 << uint(metadata.TableMemberRef)
		valid |= 1 << uint(metadata.TableAssemblyRef)
	}

	tilde := make([]byte, 24)
	binary.LittleEndian.PutUint64(tilde[8:16], valid)

	count32 := func(n int) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(n))
		return b
	}

	// Table ids in increasing order: Module(0x00) < TypeRef(0x01) <
	// TypeDef(0x02) < Field(0x04) < MethodDef(0x06) < MemberRef(0x0A) <
	// ClassLayout(0x0F) < AssemblyRef(0x23).
	tilde = append(tilde, count32(1)...) // Module
	if o.memberRefName != "" {
		tilde = append(tilde, count32(1)...) // TypeRef
	}
	tilde = append(tilde, count32(1)...) // TypeDef
	if len(o.fields) > 0 {
		tilde = append(tilde, count32(len(o.fields))...) // Field
	}
	tilde = append(tilde, count32(len(o.methods))...) // MethodDef
	if o.memberRefName != "" {
		tilde = append(tilde, count32(1)...) // MemberRef
	}
	if o.classSize != 0 {
		tilde = append(tilde, count32(1)...) // ClassLayout
	}
	if o.memberRefName != "" {
		tilde = append(tilde, count32(1)...) // AssemblyRef
	}

	tilde = append(tilde, moduleRow...)
	if o.memberRefName != "" {
		tilde = append(tilde, typeRefRows...)
	}
	tilde = append(tilde, typeRow...)
	tilde = append(tilde, fieldRows...)
	tilde = append(tilde, methodRows...)
	if o.memberRefName != "" {
		tilde = append(tilde, memberRefRows...)
	}
	tilde = append(tilde, classLayoutRows...)
	if o.memberRefName != "" {
		tilde = append(tilde, assemblyRefRows...)
	}

	version := "v4.0.30319\x00\x00"
	type streamSpec struct {
		name string
		data []byte
	}
	streams := []streamSpec{
		{"#Strings", stringsHeap},
		{"#~", tilde},
	}

	headerBytesLen := 0
	for _, s := range streams {
		nameLen := ((len(s.name) + 1 + 3) / 4) * 4
		headerBytesLen += 8 + nameLen
	}
	prefixLen := 16 + len(version) + 4
	dataStart := prefixLen + headerBytesLen

	var metaRoot []byte
	metaRoot = binary.LittleEndian.AppendUint32(metaRoot, 0x424A5342)
	metaRoot = binary.LittleEndian.AppendUint16(metaRoot, 1)
	metaRoot = binary.LittleEndian.AppendUint16(metaRoot, 1)
	metaRoot = binary.LittleEndian.AppendUint32(metaRoot, 0)
	metaRoot = binary.LittleEndian.AppendUint32(metaRoot, uint32(len(version)))
	metaRoot = append(metaRoot, []byte(version)...)
	metaRoot = binary.LittleEndian.AppendUint16(metaRoot, 0)
	metaRoot = binary.LittleEndian.AppendUint16(metaRoot, uint16(len(streams)))

	dc := dataStart
	for _, s := range streams {
		metaRoot = binary.LittleEndian.AppendUint32(metaRoot, uint32(dc))
		metaRoot = binary.LittleEndian.AppendUint32(metaRoot, uint32(len(s.data)))
		nameBytes := append([]byte(s.name), 0)
		for len(nameBytes)%4 != 0 {
			nameBytes = append(nameBytes, 0)
		}
		metaRoot = append(metaRoot, nameBytes...)
		dc += len(s.data)
	}
	for _, s := range streams {
		metaRoot = append(metaRoot, s.data...)
	}

	cliHeader := make([]byte, cliHeaderSize)
	binary.LittleEndian.PutUint32(cliHeader[0:4], cliHeaderSize)
	binary.LittleEndian.PutUint32(cliHeader[8:12], sectionRVA+metaRootOffsetInSection)
	binary.LittleEndian.PutUint32(cliHeader[12:16], uint32(len(metaRoot)))
	entrypointToken := metadata.Token{ID: metadata.TableMethodDef, Index: 1}.Uint32()
	binary.LittleEndian.PutUint32(cliHeader[20:24], entrypointToken)

	sectionSize := cursor
	section := make([]byte, sectionSize)
	copy(section[0:], cliHeader)
	copy(section[metaRootOffsetInSection:], metaRoot)
	for i, block := range codeBlocks {
		off := int(methodRVAs[i] - sectionRVA)
		copy(section[off:], block)
	}

	buf := make([]byte, sectionRawOffset+len(section))
	binary.LittleEndian.PutUint16(buf[0:2], 0x5A4D)
	binary.LittleEndian.PutUint32(buf[0x3c:0x40], coffOffset)

	coff := buf[coffOffset:]
	binary.LittleEndian.PutUint32(coff[0:4], 0x00004550)
	binary.LittleEndian.PutUint16(coff[4:6], 0x8664)
	binary.LittleEndian.PutUint16(coff[6:8], 1)
	binary.LittleEndian.PutUint16(coff[20:22], optHdrSize)

	opt := buf[coffOffset+24:]
	binary.LittleEndian.PutUint16(opt[0:2], 0x20b)
	binary.LittleEndian.PutUint64(opt[0x48:0x50], 1<<16)
	binary.LittleEndian.PutUint32(opt[0x6c:0x70], numDirs)
	binary.LittleEndian.PutUint32(opt[0x70+14*8:0x70+14*8+4], sectionRVA)
	binary.LittleEndian.PutUint32(opt[0x70+14*8+4:0x70+14*8+8], cliHeaderSize)

	sec := buf[sectionTableOffset:]
	copy(sec[0:8], []byte(".text\x00\x00\x00"))
	binary.LittleEndian.PutUint32(sec[8:12], uint32(len(section)))
	binary.LittleEndian.PutUint32(sec[12:16], sectionRVA)
	binary.LittleEndian.PutUint32(sec[16:20], uint32(len(section)))
	binary.LittleEndian.PutUint32(sec[20:24], uint32(sectionRawOffset))

	copy(buf[sectionRawOffset:], section)
	return buf
}

func tinyMethod(code []byte) []byte {
	header := byte(0x2) | byte(len(code))<<2
	return append([]byte{header}, code...)
}
