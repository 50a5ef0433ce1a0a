// Package assembly ties the pe and metadata packages together: it owns an
// assembly's raw bytes, walks the fixed parse phases spec §4.1 names, and
// exposes token resolution plus the reverse lookups (typeDefOfMethod,
// methodByName, qualifiedMemberName, classLayoutOfType, typeSize) that the
// runtime needs to execute a method.
package assembly

import (
	"encoding/binary"
	"fmt"

	"github.com/ili-run/cilrun/metadata"
	"github.com/ili-run/cilrun/pe"
)

const (
	bsjbMagic  = 0x424A5342
	cliHeaderMagicSize = 72 // fixed CLI runtime header size, spec §6
)

// Assembly owns one parsed PE file's worth of CLI metadata and code.
type Assembly struct {
	Data []byte

	Image               *pe.Image
	SizeOfStackReserve  uint64
	EntrypointToken     metadata.Token

	Strings     metadata.StringsHeap
	Blobs       metadata.BlobHeap
	UserStrings metadata.UserStringHeap
	GUIDs       metadata.GUIDHeap
	Tables      *metadata.TableSet

	moduleName string
}

// Parse runs the fixed phases of spec §4.1 over data, returning a load
// error naming the offending phase on any failure.
func Parse(data []byte) (*Assembly, error) {
	img, err := pe.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("assembly: headers: %w", err)
	}

	a := &Assembly{Data: data, Image: img, SizeOfStackReserve: img.SizeOfStackReserve}

	cliDir := img.Directory(pe.CLRRuntimeHeaderDirectoryIndex)
	if cliDir.VirtualAddress == 0 {
		return nil, fmt.Errorf("assembly: cli header: %w", errMissingCLIHeader)
	}
	cliHeader, err := img.Bytes(cliDir.VirtualAddress, cliHeaderMagicSize)
	if err != nil {
		return nil, fmt.Errorf("assembly: cli header: %w", err)
	}
	if binary.LittleEndian.Uint32(cliHeader[0:4]) != cliHeaderMagicSize {
		return nil, fmt.Errorf("assembly: cli header: %w", errBadCLIHeaderSize)
	}
	metaRVA := binary.LittleEndian.Uint32(cliHeader[8:12])
	metaSize := binary.LittleEndian.Uint32(cliHeader[12:16])
	entrypointRaw := binary.LittleEndian.Uint32(cliHeader[20:24])
	a.EntrypointToken = metadata.FromUint32(entrypointRaw)

	metaRoot, err := img.Bytes(metaRVA, int(metaSize))
	if err != nil {
		return nil, fmt.Errorf("assembly: metadata root: %w", err)
	}
	if err := a.parseMetadataRoot(metaRoot); err != nil {
		return nil, fmt.Errorf("assembly: metadata root: %w", err)
	}

	return a, nil
}

// parseMetadataRoot decodes the BSJB prefix, the variable-length version
// string, and the stream header table, then parses each stream.
func (a *Assembly) parseMetadataRoot(root []byte) error {
	if len(root) < 16 || binary.LittleEndian.Uint32(root[0:4]) != bsjbMagic {
		return errBadMetadataMagic
	}
	versionLen := binary.LittleEndian.Uint32(root[12:16])
	cursor := 16 + int(versionLen)
	if cursor+4 > len(root) {
		return errTruncatedMetadataRoot
	}
	streamCount := binary.LittleEndian.Uint16(root[cursor+2 : cursor+4])
	cursor += 4

	type streamHeader struct {
		offset uint32
		size   uint32
		name   string
	}
	var headers []streamHeader
	for i := uint16(0); i < streamCount; i++ {
		if cursor+8 > len(root) {
			return errTruncatedMetadataRoot
		}
		off := binary.LittleEndian.Uint32(root[cursor : cursor+4])
		size := binary.LittleEndian.Uint32(root[cursor+4 : cursor+8])
		cursor += 8
		nameStart := cursor
		nameEnd := nameStart
		for nameEnd < len(root) && nameEnd-nameStart < 32 && root[nameEnd] != 0 {
			nameEnd++
		}
		name := string(root[nameStart:nameEnd])
		// Name is NUL-terminated and padded to a 4-byte boundary.
		consumed := nameEnd - nameStart + 1
		consumed = (consumed + 3) &^ 3
		cursor = nameStart + consumed
		headers = append(headers, streamHeader{offset: off, size: size, name: name})
	}

	for _, h := range headers {
		if int(h.offset)+int(h.size) > len(root) {
			return errTruncatedMetadataRoot
		}
		data := root[h.offset : h.offset+h.size]
		switch h.name {
		case "#Strings":
			a.Strings = metadata.StringsHeap{Data: data}
		case "#US":
			a.UserStrings = metadata.UserStringHeap{Blob: metadata.BlobHeap{Data: data}}
		case "#GUID":
			a.GUIDs = metadata.GUIDHeap{Data: data}
		case "#Blob":
			a.Blobs = metadata.BlobHeap{Data: data}
		case "#~":
			ts, err := metadata.ParseTilde(data)
			if err != nil {
				return err
			}
			a.Tables = ts
		}
	}
	if a.Tables == nil {
		return errMissingTildeStream
	}

	if mod, ok := a.moduleRow(); ok {
		if name, err := a.Strings.String(mod.Name()); err == nil {
			a.moduleName = name
		}
	}
	return nil
}

func (a *Assembly) moduleRow() (metadata.Module, bool) {
	row, ok := a.Tables.Row(metadata.TableModule, 1)
	if !ok {
		return metadata.Module{}, false
	}
	return metadata.Module{Row: row}, true
}

// ModuleName returns this assembly's Module.Name string, used to key the
// runtime's assembly registry.
func (a *Assembly) ModuleName() string { return a.moduleName }
