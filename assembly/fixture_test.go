package assembly

import (
	"encoding/binary"

	"github.com/ili-run/cilrun/metadata"
)

// buildTestAssembly assembles a minimal-but-real PE+CLI byte image with one
// Module, one TypeDef ("Program"), and one MethodDef ("Main") whose RVA
// points at methodCode, copied verbatim: the caller supplies the method
// header (tiny or fat) as well as the code bytes. It is the only fixture
// used across this package's tests; scenario-specific code is injected via
// the methodCode parameter.
func buildTestAssembly(methodCode []byte) []byte {
	const (
		coffOffset = 0x80
		numDirs    = 16
		optHdrSize = 0x70 + numDirs*8
	)
	sectionTableOffset := coffOffset + 24 + optHdrSize
	sectionRawOffset := sectionTableOffset + 40

	const sectionRVA = 0x2000
	const cliHeaderOffsetInSection = 0
	const cliHeaderSize = 72
	const metaRootOffsetInSection = cliHeaderSize
	const methodCodeOffsetInSection = 0x1000 // generous separation

	// --- build #Strings heap: index 0 is always the empty string ---
	stringsHeap := []byte{0}
	internStr := func(s string) uint32 {
		idx := uint32(len(stringsHeap))
		stringsHeap = append(stringsHeap, []byte(s)...)
		stringsHeap = append(stringsHeap, 0)
		return idx
	}
	moduleNameIdx := internStr("Test.dll")
	typeNameIdx := internStr("Program")
	typeNsIdx := internStr("")
	methodNameIdx := internStr("Main")

	// --- build #~ tables: Module(1 row), TypeDef(1 row), MethodDef(1 row) ---
	moduleRow := make([]byte, metadata.RowSize(metadata.TableModule))
	binary.LittleEndian.PutUint16(moduleRow[2:4], uint16(moduleNameIdx))

	methodRVA := uint32(sectionRVA + methodCodeOffsetInSection)
	methodRow := make([]byte, metadata.RowSize(metadata.TableMethodDef))
	binary.LittleEndian.PutUint32(methodRow[0:4], methodRVA)
	binary.LittleEndian.PutUint16(methodRow[8:10], uint16(methodNameIdx))
	binary.LittleEndian.PutUint16(methodRow[12:14], 1) // ParamList, unused

	typeRow := make([]byte, metadata.RowSize(metadata.TableTypeDef))
	binary.LittleEndian.PutUint16(typeRow[4:6], uint16(typeNameIdx))
	binary.LittleEndian.PutUint16(typeRow[6:8], uint16(typeNsIdx))
	binary.LittleEndian.PutUint16(typeRow[10:12], 1) // FieldList
	binary.LittleEndian.PutUint16(typeRow[12:14], 1) // MethodList

	var valid uint64
	valid |= 1 << uint(metadata.TableModule)
	valid |= 1 << uint(metadata.TableTypeDef)
	valid |= 1 << uint(metadata.TableMethodDef)

	tilde := make([]byte, 24)
	binary.LittleEndian.PutUint64(tilde[8:16], valid)
	// Row counts, then rows, must appear in increasing table-id order:
	// Module(0x00) < TypeDef(0x02) < MethodDef(0x06).
	rowCount := make([]byte, 4)
	binary.LittleEndian.PutUint32(rowCount, 1)
	tilde = append(tilde, rowCount...) // Module: 1
	tilde = append(tilde, rowCount...) // TypeDef: 1
	tilde = append(tilde, rowCount...) // MethodDef: 1
	tilde = append(tilde, moduleRow...)
	tilde = append(tilde, typeRow...)
	tilde = append(tilde, methodRow...)

	// --- build metadata root: BSJB prefix, version string, stream headers, stream data ---
	version := "v4.0.30319\x00\x00" // padded to 4-byte boundary (12 bytes)
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
	prefixLen := 16 + len(version) + 4 // BSJB+ver+reserved+len, then flags+streams
	dataStart := prefixLen + headerBytesLen

	var metaRoot []byte
	metaRoot = binary.LittleEndian.AppendUint32(metaRoot, bsjbMagic)
	metaRoot = binary.LittleEndian.AppendUint16(metaRoot, 1) // major
	metaRoot = binary.LittleEndian.AppendUint16(metaRoot, 1) // minor
	metaRoot = binary.LittleEndian.AppendUint32(metaRoot, 0) // reserved
	metaRoot = binary.LittleEndian.AppendUint32(metaRoot, uint32(len(version)))
	metaRoot = append(metaRoot, []byte(version)...)
	metaRoot = binary.LittleEndian.AppendUint16(metaRoot, 0) // flags
	metaRoot = binary.LittleEndian.AppendUint16(metaRoot, uint16(len(streams)))

	cursor := dataStart
	for _, s := range streams {
		metaRoot = binary.LittleEndian.AppendUint32(metaRoot, uint32(cursor))
		metaRoot = binary.LittleEndian.AppendUint32(metaRoot, uint32(len(s.data)))
		nameBytes := append([]byte(s.name), 0)
		for len(nameBytes)%4 != 0 {
			nameBytes = append(nameBytes, 0)
		}
		metaRoot = append(metaRoot, nameBytes...)
		cursor += len(s.data)
	}
	for _, s := range streams {
		metaRoot = append(metaRoot, s.data...)
	}

	// --- CLI header ---
	cliHeader := make([]byte, cliHeaderSize)
	binary.LittleEndian.PutUint32(cliHeader[0:4], cliHeaderSize)
	binary.LittleEndian.PutUint16(cliHeader[4:6], 2)
	binary.LittleEndian.PutUint16(cliHeader[6:8], 5)
	binary.LittleEndian.PutUint32(cliHeader[8:12], sectionRVA+metaRootOffsetInSection)
	binary.LittleEndian.PutUint32(cliHeader[12:16], uint32(len(metaRoot)))
	entrypointToken := metadata.Token{ID: metadata.TableMethodDef, Index: 1}.Uint32()
	binary.LittleEndian.PutUint32(cliHeader[20:24], entrypointToken)

	// --- assemble the section payload ---
	sectionSize := methodCodeOffsetInSection + len(methodCode)
	section := make([]byte, sectionSize)
	copy(section[cliHeaderOffsetInSection:], cliHeader)
	copy(section[metaRootOffsetInSection:], metaRoot)
	copy(section[methodCodeOffsetInSection:], methodCode)

	// --- assemble the full image ---
	buf := make([]byte, sectionRawOffset+len(section))
	binary.LittleEndian.PutUint16(buf[0:2], dosMagicForTest)
	binary.LittleEndian.PutUint32(buf[0x3c:0x40], coffOffset)

	coff := buf[coffOffset:]
	binary.LittleEndian.PutUint32(coff[0:4], peSigForTest)
	binary.LittleEndian.PutUint16(coff[4:6], 0x8664)
	binary.LittleEndian.PutUint16(coff[6:8], 1)
	binary.LittleEndian.PutUint16(coff[20:22], optHdrSize)

	opt := buf[coffOffset+24:]
	binary.LittleEndian.PutUint16(opt[0:2], pe32PlusIDForTest)
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

const (
	dosMagicForTest    = 0x5A4D
	peSigForTest       = 0x00004550
	pe32PlusIDForTest  = 0x20b
)
