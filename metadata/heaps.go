package metadata

import (
	"fmt"
	"unicode/utf16"
)

// DecodeBlobLength decodes a blob-heap length prefix per spec §4.1: the top
// bits of the first byte select a 1/2/4-byte header encoding a 7/14/29-bit
// length. Returns the decoded length and the header's byte width.
func DecodeBlobLength(data []byte) (length int, headerLen int, err error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("metadata: blob length: %w", errShortHeap)
	}
	b0 := data[0]
	switch {
	case b0&0x80 == 0:
		return int(b0), 1, nil
	case b0&0xC0 == 0x80:
		if len(data) < 2 {
			return 0, 0, fmt.Errorf("metadata: blob length: %w", errShortHeap)
		}
		return int(b0&0x3F)<<8 | int(data[1]), 2, nil
	case b0&0xE0 == 0xC0:
		if len(data) < 4 {
			return 0, 0, fmt.Errorf("metadata: blob length: %w", errShortHeap)
		}
		return int(b0&0x1F)<<24 | int(data[1])<<16 | int(data[2])<<8 | int(data[3]), 4, nil
	default:
		return 0, 0, fmt.Errorf("metadata: blob length: %w", errBadBlobHeader)
	}
}

// EncodeBlobLength is the inverse of DecodeBlobLength, used only by tests to
// exercise the round-trip invariant from spec §8.
func EncodeBlobLength(length int) []byte {
	switch {
	case length < 1<<7:
		return []byte{byte(length)}
	case length < 1<<14:
		return []byte{0x80 | byte(length>>8), byte(length)}
	default:
		return []byte{
			0xC0 | byte(length>>24),
			byte(length >> 16),
			byte(length >> 8),
			byte(length),
		}
	}
}

// StringsHeap is the #Strings stream: NUL-terminated UTF-8 strings at
// arbitrary byte offsets.
type StringsHeap struct{ Data []byte }

func (h StringsHeap) String(index StringIndex) (string, error) {
	off := int(index)
	if off < 0 || off > len(h.Data) {
		return "", fmt.Errorf("metadata: string index %d: %w", index, errOutOfRange)
	}
	end := off
	for end < len(h.Data) && h.Data[end] != 0 {
		end++
	}
	return string(h.Data[off:end]), nil
}

// BlobHeap is the #Blob stream: length-prefixed byte sequences.
type BlobHeap struct{ Data []byte }

func (h BlobHeap) Blob(index BlobIndex) ([]byte, error) {
	off := int(index)
	if off < 0 || off >= len(h.Data) {
		if off == 0 && len(h.Data) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("metadata: blob index %d: %w", index, errOutOfRange)
	}
	length, headerLen, err := DecodeBlobLength(h.Data[off:])
	if err != nil {
		return nil, err
	}
	start := off + headerLen
	end := start + length
	if end > len(h.Data) {
		return nil, fmt.Errorf("metadata: blob index %d: %w", index, errShortHeap)
	}
	return h.Data[start:end], nil
}

// UserStringHeap is the #US stream: blobs whose payload is UTF-16 code
// units followed by a single terminator byte.
type UserStringHeap struct{ Blob BlobHeap }

func (h UserStringHeap) String(index BlobIndex) (string, error) {
	raw, err := h.Blob.Blob(index)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", nil
	}
	payload := raw[:len(raw)-1] // drop terminator byte
	if len(payload)%2 != 0 {
		return "", fmt.Errorf("metadata: user string index %d: %w", index, errBadBlobHeader)
	}
	units := make([]uint16, len(payload)/2)
	for i := range units {
		units[i] = uint16(payload[2*i]) | uint16(payload[2*i+1])<<8
	}
	return string(utf16.Decode(units)), nil
}

// GUIDHeap is the #GUID stream: fixed 16-byte entries, 1-based index.
type GUIDHeap struct{ Data []byte }

func (h GUIDHeap) GUID(index GUIDIndex) ([16]byte, error) {
	var g [16]byte
	if index == 0 {
		return g, nil
	}
	off := int(index-1) * 16
	if off+16 > len(h.Data) {
		return g, fmt.Errorf("metadata: guid index %d: %w", index, errOutOfRange)
	}
	copy(g[:], h.Data[off:off+16])
	return g, nil
}
