package assembly

import (
	"encoding/binary"
	"fmt"

	"github.com/ili-run/cilrun/metadata"
)

const (
	corILMethodTinyFormat = 0x2
	corILMethodFatFormat  = 0x3
	corILMethodFormatMask = 0x3
)

// ByteCode resolves methodDef's RVA to its code-byte slice, trying the
// tiny header first and falling back to the fat header, per
// original_source/rewrite's Method::getByteCode. Neither pattern matching
// is UnsupportedMethodHeader (spec §7).
func (a *Assembly) ByteCode(methodDef metadata.MethodDef) ([]byte, error) {
	rva := methodDef.RVA()
	if rva == 0 {
		return nil, fmt.Errorf("assembly: bytecode: %w", errAbstractMethod)
	}
	sec := a.Image.SectionForRVA(rva)
	if sec == nil {
		return nil, fmt.Errorf("assembly: bytecode: %w", errTokenOutOfRange)
	}
	off := int(sec.FileOffset(rva))
	if off >= len(a.Data) {
		return nil, fmt.Errorf("assembly: bytecode: %w", errTokenOutOfRange)
	}
	remainder := a.Data[off:]

	if len(remainder) < 1 {
		return nil, fmt.Errorf("assembly: bytecode: %w", errUnsupportedMethodHeader)
	}
	header := remainder[0]
	switch header & corILMethodFormatMask {
	case corILMethodTinyFormat:
		codeSize := int(header >> 2)
		if 1+codeSize > len(remainder) {
			return nil, fmt.Errorf("assembly: bytecode: %w", errTokenOutOfRange)
		}
		return remainder[1 : 1+codeSize], nil

	case corILMethodFatFormat:
		if len(remainder) < 12 {
			return nil, fmt.Errorf("assembly: bytecode: %w", errTokenOutOfRange)
		}
		flags := binary.LittleEndian.Uint16(remainder[0:2])
		headerSizeDwords := flags >> 12
		headerBytes := int(headerSizeDwords) * 4
		codeSize := int(binary.LittleEndian.Uint32(remainder[4:8]))
		if headerBytes+codeSize > len(remainder) {
			return nil, fmt.Errorf("assembly: bytecode: %w", errTokenOutOfRange)
		}
		return remainder[headerBytes : headerBytes+codeSize], nil

	default:
		return nil, fmt.Errorf("assembly: bytecode: %w", errUnsupportedMethodHeader)
	}
}
