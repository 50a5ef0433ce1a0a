// Package pe decodes the Portable Executable envelope far enough to reach
// the CLI runtime header: DOS/COFF/Optional headers, data directories, and
// the section table, plus RVA-to-file-offset translation.
package pe

import (
	"encoding/binary"
	"fmt"
)

const (
	dosMagic   = 0x5A4D // "MZ"
	peSig      = 0x00004550
	pe32PlusID = 0x20b
)

// Section is one PE section header plus the byte range it occupies in the
// file image.
type Section struct {
	Name           string
	VirtualAddress uint32
	VirtualSize    uint32
	RawDataOffset  uint32
	RawDataSize    uint32
}

// Contains reports whether rva falls inside this section's virtual range.
func (s Section) Contains(rva uint32) bool {
	return rva >= s.VirtualAddress && rva < s.VirtualAddress+s.VirtualSize
}

// FileOffset translates an RVA known to lie inside this section into a file
// offset.
func (s Section) FileOffset(rva uint32) uint32 {
	return s.RawDataOffset + (rva - s.VirtualAddress)
}

// DataDirectory is one entry of the optional header's directory table.
type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

// Image is a parsed PE/COFF envelope over a byte buffer it does not own a
// copy of — Data references the original bytes; the other fields hold
// values decoded from them.
type Image struct {
	Data []byte

	Machine              uint16
	NumberOfSections     uint16
	SizeOfStackReserve   uint64
	Directories          []DataDirectory
	Sections             []Section
}

// Parse decodes the DOS header, COFF header, PE32+ optional header, data
// directories, and section table from data. It returns an error naming the
// phase that failed, per the "load error naming the phase" contract.
func Parse(data []byte) (*Image, error) {
	if len(data) < 0x40 {
		return nil, fmt.Errorf("pe: dos header: %w", errTooShort)
	}
	if binary.LittleEndian.Uint16(data[0:2]) != dosMagic {
		return nil, fmt.Errorf("pe: dos header: %w", errBadMagic)
	}
	coffOffset := binary.LittleEndian.Uint32(data[0x3c:0x40])
	if int(coffOffset)+24 > len(data) {
		return nil, fmt.Errorf("pe: coff header: %w", errTooShort)
	}

	coff := data[coffOffset:]
	if binary.LittleEndian.Uint32(coff[0:4]) != peSig {
		return nil, fmt.Errorf("pe: coff header: %w", errBadMagic)
	}
	img := &Image{Data: data}
	img.Machine = binary.LittleEndian.Uint16(coff[4:6])
	img.NumberOfSections = binary.LittleEndian.Uint16(coff[6:8])
	sizeOfOptionalHeader := binary.LittleEndian.Uint16(coff[20:22])

	optOffset := int(coffOffset) + 24
	if optOffset+int(sizeOfOptionalHeader) > len(data) {
		return nil, fmt.Errorf("pe: optional header: %w", errTooShort)
	}
	opt := data[optOffset : optOffset+int(sizeOfOptionalHeader)]
	if len(opt) < 2 || binary.LittleEndian.Uint16(opt[0:2]) != pe32PlusID {
		return nil, fmt.Errorf("pe: optional header: %w", errBadMagic)
	}
	// PE32+ optional header: magic(2) ... imageBase at offset 0x18,
	// sizeOfStackReserve at offset 0x48, numberOfRvaAndSizes at offset
	// 0x6c, directories starting at 0x70.
	if len(opt) < 0x70 {
		return nil, fmt.Errorf("pe: optional header: %w", errTooShort)
	}
	img.SizeOfStackReserve = binary.LittleEndian.Uint64(opt[0x48:0x50])
	numDirs := binary.LittleEndian.Uint32(opt[0x6c:0x70])

	dirStart := 0x70
	for i := uint32(0); i < numDirs; i++ {
		off := dirStart + int(i)*8
		if off+8 > len(opt) {
			break
		}
		img.Directories = append(img.Directories, DataDirectory{
			VirtualAddress: binary.LittleEndian.Uint32(opt[off : off+4]),
			Size:           binary.LittleEndian.Uint32(opt[off+4 : off+8]),
		})
	}

	sectionStart := optOffset + int(sizeOfOptionalHeader)
	for i := uint16(0); i < img.NumberOfSections; i++ {
		off := sectionStart + int(i)*40
		if off+40 > len(data) {
			return nil, fmt.Errorf("pe: section table: %w", errTooShort)
		}
		row := data[off : off+40]
		name := row[0:8]
		n := 0
		for n < 8 && name[n] != 0 {
			n++
		}
		sec := Section{
			Name:           string(name[:n]),
			VirtualSize:    binary.LittleEndian.Uint32(row[8:12]),
			VirtualAddress: binary.LittleEndian.Uint32(row[12:16]),
			RawDataSize:    binary.LittleEndian.Uint32(row[16:20]),
			RawDataOffset:  binary.LittleEndian.Uint32(row[20:24]),
		}
		img.Sections = append(img.Sections, sec)
	}

	return img, nil
}

// Directory returns the index-th data directory, or the zero value if the
// optional header did not carry that many entries.
func (img *Image) Directory(index int) DataDirectory {
	if index < 0 || index >= len(img.Directories) {
		return DataDirectory{}
	}
	return img.Directories[index]
}

// SectionForRVA returns the section whose virtual range contains rva, or
// nil if no section does.
func (img *Image) SectionForRVA(rva uint32) *Section {
	for i := range img.Sections {
		if img.Sections[i].Contains(rva) {
			return &img.Sections[i]
		}
	}
	return nil
}

// Bytes returns the size bytes at rva, translated through the owning
// section, or an error if rva does not resolve.
func (img *Image) Bytes(rva uint32, size int) ([]byte, error) {
	sec := img.SectionForRVA(rva)
	if sec == nil {
		return nil, fmt.Errorf("pe: rva 0x%x: %w", rva, errNoSection)
	}
	off := int(sec.FileOffset(rva))
	if off+size > len(img.Data) || off < 0 {
		return nil, fmt.Errorf("pe: rva 0x%x: %w", rva, errTooShort)
	}
	return img.Data[off : off+size], nil
}

// CLRRuntimeHeaderDirectoryIndex is the well-known data-directory slot (14)
// carrying the CLR/CLI runtime header.
const CLRRuntimeHeaderDirectoryIndex = 14
