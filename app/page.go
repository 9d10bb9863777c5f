package main

import (
	"bytes"
	"encoding/binary"
	"sort"
)

// BTreePage is a decoded B-tree page. Exactly one of the cell slices is
// populated, matching the page type.
type BTreePage struct {
	Number    int
	Header    PageHeader
	RightMost uint32 // interior pages only

	TableLeafCells     []*TableLeafCell
	TableInteriorCells []*TableInteriorCell
	IndexLeafCells     []*IndexLeafCell
	IndexInteriorCells []*IndexInteriorCell
}

// databaseHeaderSize is the length of the file header that page 1 carries
// before its own B-tree page header.
const databaseHeaderSize = 100

// parseBTreePage decodes a raw page into its typed cells. Cell slots are
// computed from the ascending-sorted cell-pointer offsets (each slot ends at
// the next pointer, the last at the page end), while the cells themselves
// are decoded in cell-pointer-array order, which is key order.
func parseBTreePage(data []byte, pageNum int, usable int) (*BTreePage, error) {
	headerOff := 0
	if pageNum == 1 {
		headerOff = databaseHeaderSize
	}
	if len(data) < headerOff+12 {
		return nil, NewDatabaseError("parse_page", ErrInvalidDatabase, map[string]interface{}{
			"page_num":  pageNum,
			"page_size": len(data),
		})
	}

	page := &BTreePage{Number: pageNum}
	if err := binary.Read(bytes.NewReader(data[headerOff:headerOff+8]), binary.BigEndian, &page.Header); err != nil {
		return nil, NewDatabaseError("parse_page_header", err, map[string]interface{}{
			"page_num": pageNum,
		})
	}

	switch page.Header.PageType {
	case PageTypeLeafTable, PageTypeLeafIndex, PageTypeInteriorTable, PageTypeInteriorIndex:
	default:
		return nil, NewDatabaseError("parse_page_header", ErrInvalidPageType, map[string]interface{}{
			"page_num":  pageNum,
			"page_type": page.Header.PageType,
		})
	}

	if page.Header.PageType.IsInterior() {
		page.RightMost = binary.BigEndian.Uint32(data[headerOff+8 : headerOff+12])
	}

	pointers, err := readCellPointers(data, headerOff+page.Header.Size(), int(page.Header.CellCount))
	if err != nil {
		return nil, err
	}

	slotEnds := slotEndOffsets(pointers, len(data))

	for i, ptr := range pointers {
		slot := data[ptr:slotEnds[i]]

		switch page.Header.PageType {
		case PageTypeLeafTable:
			cell, err := parseTableLeafCell(slot, usable)
			if err != nil {
				return nil, cellError(err, pageNum, i, ptr)
			}
			page.TableLeafCells = append(page.TableLeafCells, cell)
		case PageTypeInteriorTable:
			cell, err := parseTableInteriorCell(slot)
			if err != nil {
				return nil, cellError(err, pageNum, i, ptr)
			}
			page.TableInteriorCells = append(page.TableInteriorCells, cell)
		case PageTypeLeafIndex:
			cell, err := parseIndexLeafCell(slot, usable)
			if err != nil {
				return nil, cellError(err, pageNum, i, ptr)
			}
			page.IndexLeafCells = append(page.IndexLeafCells, cell)
		case PageTypeInteriorIndex:
			cell, err := parseIndexInteriorCell(slot, usable)
			if err != nil {
				return nil, cellError(err, pageNum, i, ptr)
			}
			page.IndexInteriorCells = append(page.IndexInteriorCells, cell)
		}
	}

	return page, nil
}

// readCellPointers reads the 2-byte cell pointer array that follows the page header
func readCellPointers(data []byte, offset, cellCount int) ([]int, error) {
	if offset+cellCount*2 > len(data) {
		return nil, NewDatabaseError("read_cell_pointers", ErrInvalidCellPointer, map[string]interface{}{
			"offset":     offset,
			"cell_count": cellCount,
			"page_size":  len(data),
		})
	}

	pointers := make([]int, cellCount)
	for i := range pointers {
		ptr := int(binary.BigEndian.Uint16(data[offset+i*2 : offset+i*2+2]))
		if ptr == 0 || ptr >= len(data) {
			return nil, NewDatabaseError("read_cell_pointers", ErrInvalidCellPointer, map[string]interface{}{
				"pointer_index": i,
				"pointer_value": ptr,
				"page_size":     len(data),
			})
		}
		pointers[i] = ptr
	}
	return pointers, nil
}

// slotEndOffsets computes each cell's slot end: the next-higher cell pointer,
// or the page end for the highest one
func slotEndOffsets(pointers []int, pageSize int) []int {
	sorted := make([]int, len(pointers))
	copy(sorted, pointers)
	sort.Ints(sorted)

	ends := make([]int, len(pointers))
	for i, ptr := range pointers {
		// First sorted offset strictly greater than ptr.
		j := sort.SearchInts(sorted, ptr+1)
		if j < len(sorted) {
			ends[i] = sorted[j]
		} else {
			ends[i] = pageSize
		}
	}
	return ends
}

func cellError(err error, pageNum, cellIndex, pointer int) error {
	return NewDatabaseError("parse_cell", err, map[string]interface{}{
		"page_num":    pageNum,
		"cell_index":  cellIndex,
		"cell_offset": pointer,
	})
}

// OverflowPage is one link of an overflow chain: the next page number
// (0 terminates the chain) followed by a payload chunk
type OverflowPage struct {
	NextPage uint32
	Data     []byte
}

// parseOverflowPage decodes a raw overflow page
func parseOverflowPage(data []byte) (*OverflowPage, error) {
	if len(data) < 4 {
		return nil, NewDatabaseError("parse_overflow_page", ErrCorruptPayload, map[string]interface{}{
			"page_size": len(data),
		})
	}
	return &OverflowPage{
		NextPage: binary.BigEndian.Uint32(data[:4]),
		Data:     data[4:],
	}, nil
}
