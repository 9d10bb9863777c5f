package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

const testPageSize = 512

// buildLeafTablePage lays out a leaf table page with the given cells placed
// from the page end downward; the cell-pointer array keeps rowid order.
func buildLeafTablePage(t *testing.T, headerOff int, rows []struct {
	rowid   int64
	payload []byte
}) []byte {
	t.Helper()
	page := make([]byte, testPageSize)
	page[headerOff] = byte(PageTypeLeafTable)
	binary.BigEndian.PutUint16(page[headerOff+3:], uint16(len(rows)))

	// Cells are allocated from the page end downward, as SQLite does, so
	// pointer-array order and byte order differ.
	contentEnd := testPageSize
	pointers := make([]int, len(rows))
	for i, row := range rows {
		cell := append(encodeVarintForTest(uint64(len(row.payload))), encodeVarintForTest(uint64(row.rowid))...)
		cell = append(cell, row.payload...)
		contentEnd -= len(cell)
		copy(page[contentEnd:], cell)
		pointers[i] = contentEnd
	}
	binary.BigEndian.PutUint16(page[headerOff+5:], uint16(contentEnd))

	ptrOff := headerOff + 8
	for i, ptr := range pointers {
		binary.BigEndian.PutUint16(page[ptrOff+i*2:], uint16(ptr))
	}
	return page
}

func TestParseLeafTablePage(t *testing.T) {
	rows := []struct {
		rowid   int64
		payload []byte
	}{
		{1, buildPayload([]uint64{17}, [][]byte{[]byte("aa")})},
		{2, buildPayload([]uint64{17}, [][]byte{[]byte("bb")})},
		{3, buildPayload([]uint64{17}, [][]byte{[]byte("cc")})},
	}
	page := buildLeafTablePage(t, 0, rows)

	parsed, err := parseBTreePage(page, 2, testPageSize)
	if err != nil {
		t.Fatalf("parseBTreePage() error = %v", err)
	}
	if parsed.Header.PageType != PageTypeLeafTable {
		t.Fatalf("page type = %v, want leaf table", parsed.Header.PageType)
	}
	if len(parsed.TableLeafCells) != 3 {
		t.Fatalf("cell count = %d, want 3", len(parsed.TableLeafCells))
	}

	// Cells must come back in pointer-array order (rowid order), not in
	// byte-offset order.
	for i, cell := range parsed.TableLeafCells {
		if cell.Rowid != int64(i+1) {
			t.Errorf("cell %d rowid = %d, want %d", i, cell.Rowid, i+1)
		}
	}

	record, err := parseRecord(parsed.TableLeafCells[1].LocalPayload)
	if err != nil {
		t.Fatalf("parseRecord() error = %v", err)
	}
	if !bytes.Equal(record[0].Raw(), []byte("bb")) {
		t.Errorf("cell 1 field = %q, want \"bb\"", record[0].Raw())
	}
}

func TestParsePage1SkipsDatabaseHeader(t *testing.T) {
	rows := []struct {
		rowid   int64
		payload []byte
	}{
		{7, buildPayload([]uint64{17}, [][]byte{[]byte("zz")})},
	}
	page := buildLeafTablePage(t, databaseHeaderSize, rows)

	parsed, err := parseBTreePage(page, 1, testPageSize)
	if err != nil {
		t.Fatalf("parseBTreePage() error = %v", err)
	}
	if len(parsed.TableLeafCells) != 1 || parsed.TableLeafCells[0].Rowid != 7 {
		t.Fatalf("unexpected cells: %+v", parsed.TableLeafCells)
	}
}

func TestParseInteriorTablePage(t *testing.T) {
	page := make([]byte, testPageSize)
	page[0] = byte(PageTypeInteriorTable)
	binary.BigEndian.PutUint16(page[3:], 2)
	binary.BigEndian.PutUint32(page[8:], 9) // right-most pointer

	// Two interior cells: (child 3, key 10) and (child 5, key 20).
	cellA := append([]byte{0, 0, 0, 3}, encodeVarintForTest(10)...)
	cellB := append([]byte{0, 0, 0, 5}, encodeVarintForTest(20)...)
	copy(page[500:], cellA)
	copy(page[490:], cellB)
	binary.BigEndian.PutUint16(page[12:], 500)
	binary.BigEndian.PutUint16(page[14:], 490)
	binary.BigEndian.PutUint16(page[5:], 490)

	parsed, err := parseBTreePage(page, 4, testPageSize)
	if err != nil {
		t.Fatalf("parseBTreePage() error = %v", err)
	}
	if parsed.RightMost != 9 {
		t.Errorf("right-most pointer = %d, want 9", parsed.RightMost)
	}
	if len(parsed.TableInteriorCells) != 2 {
		t.Fatalf("cell count = %d, want 2", len(parsed.TableInteriorCells))
	}
	first := parsed.TableInteriorCells[0]
	if first.LeftChild != 3 || first.Key != 10 {
		t.Errorf("first cell = %+v, want child 3 key 10", first)
	}
	second := parsed.TableInteriorCells[1]
	if second.LeftChild != 5 || second.Key != 20 {
		t.Errorf("second cell = %+v, want child 5 key 20", second)
	}
}

func TestParsePageInvalidType(t *testing.T) {
	page := make([]byte, testPageSize)
	page[0] = 0x07
	if _, err := parseBTreePage(page, 3, testPageSize); !errors.Is(err, ErrInvalidPageType) {
		t.Errorf("parseBTreePage() error = %v, want ErrInvalidPageType", err)
	}
}

func TestParsePageInvalidCellPointer(t *testing.T) {
	page := make([]byte, testPageSize)
	page[0] = byte(PageTypeLeafTable)
	binary.BigEndian.PutUint16(page[3:], 1)
	binary.BigEndian.PutUint16(page[8:], uint16(testPageSize)) // points past the page

	if _, err := parseBTreePage(page, 3, testPageSize); !errors.Is(err, ErrInvalidCellPointer) {
		t.Errorf("parseBTreePage() error = %v, want ErrInvalidCellPointer", err)
	}
}

func TestParseOverflowPage(t *testing.T) {
	data := make([]byte, 64)
	binary.BigEndian.PutUint32(data[:4], 12)
	copy(data[4:], "spill")

	overflow, err := parseOverflowPage(data)
	if err != nil {
		t.Fatalf("parseOverflowPage() error = %v", err)
	}
	if overflow.NextPage != 12 {
		t.Errorf("NextPage = %d, want 12", overflow.NextPage)
	}
	if !bytes.Equal(overflow.Data[:5], []byte("spill")) {
		t.Errorf("Data = %q", overflow.Data[:5])
	}

	// A zero next-page number terminates the chain.
	binary.BigEndian.PutUint32(data[:4], 0)
	overflow, err = parseOverflowPage(data)
	if err != nil {
		t.Fatalf("parseOverflowPage() error = %v", err)
	}
	if overflow.NextPage != 0 {
		t.Errorf("NextPage = %d, want 0", overflow.NextPage)
	}
}

func TestSlotEndOffsets(t *testing.T) {
	ends := slotEndOffsets([]int{506, 494, 500}, 512)
	want := []int{512, 500, 506}
	for i := range ends {
		if ends[i] != want[i] {
			t.Errorf("slot end %d = %d, want %d", i, ends[i], want[i])
		}
	}
}
