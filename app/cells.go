package main

import (
	"encoding/binary"
)

// The four B-tree cell shapes. A zero OverflowPage means the payload is
// entirely local.

// TableLeafCell holds one table row: rowid plus the record payload
type TableLeafCell struct {
	PayloadSize  uint64
	Rowid        int64
	LocalPayload []byte
	OverflowPage uint32
}

// TableInteriorCell points at a child page; Key is the greatest rowid in
// that child's subtree
type TableInteriorCell struct {
	LeftChild uint32
	Key       int64
}

// IndexLeafCell holds one index entry payload
type IndexLeafCell struct {
	PayloadSize  uint64
	LocalPayload []byte
	OverflowPage uint32
}

// IndexInteriorCell holds a child pointer and a separator key payload.
// Separators are real index entries, not just routing information.
type IndexInteriorCell struct {
	LeftChild    uint32
	PayloadSize  uint64
	LocalPayload []byte
	OverflowPage uint32
}

// payloadLimits returns the local-payload bounds for a cell on a page with
// the given usable size. Index pages embed less payload than table leaves.
func payloadLimits(usable int, isIndex bool) (maxLocal, minLocal int) {
	minLocal = (usable-12)*32/255 - 23
	if isIndex {
		maxLocal = (usable-12)*64/255 - 23
	} else {
		maxLocal = usable - 35
	}
	return maxLocal, minLocal
}

// splitPayload splits a cell slot into its local payload and, when the
// declared payload exceeds what the cell may embed, the first overflow page
// number stored in the 4 bytes after the local portion.
func splitPayload(slot []byte, prefix int, payloadSize uint64, usable int, isIndex bool) ([]byte, uint32, error) {
	maxLocal, minLocal := payloadLimits(usable, isIndex)

	if payloadSize <= uint64(maxLocal) {
		local, err := subBytes(slot, prefix, int(payloadSize))
		if err != nil {
			return nil, 0, NewDatabaseError("split_payload", ErrCorruptCell, map[string]interface{}{
				"payload_size": payloadSize,
				"slot_size":    len(slot),
			})
		}
		return local, 0, nil
	}

	localSize := minLocal + int((payloadSize-uint64(minLocal))%uint64(usable-4))
	if localSize > maxLocal {
		localSize = minLocal
	}

	if prefix+localSize+4 > len(slot) {
		return nil, 0, NewDatabaseError("split_payload_overflow", ErrCorruptCell, map[string]interface{}{
			"payload_size": payloadSize,
			"local_size":   localSize,
			"slot_size":    len(slot),
		})
	}

	local := slot[prefix : prefix+localSize]
	overflowPage := binary.BigEndian.Uint32(slot[prefix+localSize : prefix+localSize+4])
	if overflowPage == 0 {
		return nil, 0, NewDatabaseError("split_payload_overflow", ErrCorruptCell, map[string]interface{}{
			"payload_size": payloadSize,
			"local_size":   localSize,
		})
	}
	return local, overflowPage, nil
}

// parseTableLeafCell decodes a table leaf cell slot:
// payload-size varint, rowid varint, payload, optional overflow pointer
func parseTableLeafCell(slot []byte, usable int) (*TableLeafCell, error) {
	payloadSize, n, err := readVarint(slot, 0)
	if err != nil {
		return nil, err
	}
	rowid, m, err := readVarint(slot, n)
	if err != nil {
		return nil, err
	}

	local, overflow, err := splitPayload(slot, n+m, payloadSize, usable, false)
	if err != nil {
		return nil, err
	}

	return &TableLeafCell{
		PayloadSize:  payloadSize,
		Rowid:        int64(rowid),
		LocalPayload: local,
		OverflowPage: overflow,
	}, nil
}

// parseTableInteriorCell decodes a table interior cell slot:
// 4-byte left child page number, rowid varint
func parseTableInteriorCell(slot []byte) (*TableInteriorCell, error) {
	if len(slot) < 5 {
		return nil, NewDatabaseError("parse_table_interior_cell", ErrCorruptCell, map[string]interface{}{
			"slot_size": len(slot),
		})
	}
	leftChild := binary.BigEndian.Uint32(slot[:4])
	key, _, err := readVarint(slot, 4)
	if err != nil {
		return nil, err
	}
	return &TableInteriorCell{
		LeftChild: leftChild,
		Key:       int64(key),
	}, nil
}

// parseIndexLeafCell decodes an index leaf cell slot:
// payload-size varint, payload, optional overflow pointer
func parseIndexLeafCell(slot []byte, usable int) (*IndexLeafCell, error) {
	payloadSize, n, err := readVarint(slot, 0)
	if err != nil {
		return nil, err
	}

	local, overflow, err := splitPayload(slot, n, payloadSize, usable, true)
	if err != nil {
		return nil, err
	}

	return &IndexLeafCell{
		PayloadSize:  payloadSize,
		LocalPayload: local,
		OverflowPage: overflow,
	}, nil
}

// parseIndexInteriorCell decodes an index interior cell slot:
// 4-byte left child page number, payload-size varint, payload, optional overflow
func parseIndexInteriorCell(slot []byte, usable int) (*IndexInteriorCell, error) {
	if len(slot) < 5 {
		return nil, NewDatabaseError("parse_index_interior_cell", ErrCorruptCell, map[string]interface{}{
			"slot_size": len(slot),
		})
	}
	leftChild := binary.BigEndian.Uint32(slot[:4])
	payloadSize, n, err := readVarint(slot, 4)
	if err != nil {
		return nil, err
	}

	local, overflow, err := splitPayload(slot, 4+n, payloadSize, usable, true)
	if err != nil {
		return nil, err
	}

	return &IndexInteriorCell{
		LeftChild:    leftChild,
		PayloadSize:  payloadSize,
		LocalPayload: local,
		OverflowPage: overflow,
	}, nil
}
