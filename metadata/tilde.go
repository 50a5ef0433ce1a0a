package metadata

import (
	"encoding/binary"
	"fmt"
)

// HeapSizes records which of the three index-sized heaps (#Strings, #GUID,
// #Blob) use large (4-byte) indices.
// This interpreter's row decoders assume none of them do (spec §4.1's
// small-assembly simplification); the flags are still recorded so a caller
// can detect and reject a large-index assembly explicitly rather than
// silently misdecoding it.
type HeapSizes struct {
	LargeStrings bool
	LargeGUID    bool
	LargeBlob    bool
}

// TableSet holds the decoded #~ tables: one row slice per table id, at the
// fixed row size RowSize(id).
type TableSet struct {
	Heaps HeapSizes
	rows  [64][]Row
}

// RowCount returns the number of rows parsed for id.
func (ts *TableSet) RowCount(id TableID) int {
	return len(ts.rows[id])
}

// Row returns the index-th (1-based) row of table id, or false if index is
// out of range.
func (ts *TableSet) Row(id TableID, index uint32) (Row, bool) {
	if index == 0 || int(index) > len(ts.rows[id]) {
		return nil, false
	}
	return ts.rows[id][index-1], true
}

// ParseTilde decodes the #~ stream per spec §4.1: heapSize flags, a 64-bit
// valid bitmask, one 32-bit row count per set bit (in table-id order), then
// that many fixed-size rows per table, in the same order.
func ParseTilde(data []byte) (*TableSet, error) {
	if len(data) < 24 {
		return nil, fmt.Errorf("metadata: tilde header: %w", errBadTildeMagic)
	}
	heapSizeByte := data[6]
	valid := binary.LittleEndian.Uint64(data[8:16])

	ts := &TableSet{Heaps: HeapSizes{
		LargeStrings: heapSizeByte&0x01 != 0,
		LargeGUID:    heapSizeByte&0x02 != 0,
		LargeBlob:    heapSizeByte&0x04 != 0,
	}}

	cursor := 24
	var presentIDs []TableID
	rowCounts := make(map[TableID]uint32)
	for id := 0; id < 64; id++ {
		if valid&(1<<uint(id)) == 0 {
			continue
		}
		if cursor+4 > len(data) {
			return nil, fmt.Errorf("metadata: tilde row counts: %w", errBadTildeMagic)
		}
		count := binary.LittleEndian.Uint32(data[cursor : cursor+4])
		rowCounts[TableID(id)] = count
		presentIDs = append(presentIDs, TableID(id))
		cursor += 4
	}

	for _, id := range presentIDs {
		count := rowCounts[id]
		size := RowSize(id)
		if size == 0 || count == 0 {
			continue
		}
		rows := make([]Row, count)
		for i := uint32(0); i < count; i++ {
			if cursor+size > len(data) {
				return nil, fmt.Errorf("metadata: table %#x row %d: %w", byte(id), i+1, errBadTildeMagic)
			}
			rows[i] = Row(data[cursor : cursor+size])
			cursor += size
		}
		ts.rows[id] = rows
	}

	return ts, nil
}
