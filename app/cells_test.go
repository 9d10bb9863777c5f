package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestPayloadLimits(t *testing.T) {
	maxLocal, minLocal := payloadLimits(512, false)
	if maxLocal != 512-35 {
		t.Errorf("table leaf maxLocal = %d, want %d", maxLocal, 512-35)
	}
	if minLocal != (512-12)*32/255-23 {
		t.Errorf("minLocal = %d, want %d", minLocal, (512-12)*32/255-23)
	}

	idxMax, _ := payloadLimits(4096, true)
	if idxMax != (4096-12)*64/255-23 {
		t.Errorf("index maxLocal = %d, want %d", idxMax, (4096-12)*64/255-23)
	}
}

func TestParseTableLeafCellLocal(t *testing.T) {
	payload := buildPayload([]uint64{17}, [][]byte{[]byte("ok")})
	slot := append(encodeVarintForTest(uint64(len(payload))), encodeVarintForTest(3)...)
	slot = append(slot, payload...)

	cell, err := parseTableLeafCell(slot, 512)
	if err != nil {
		t.Fatalf("parseTableLeafCell() error = %v", err)
	}
	if cell.Rowid != 3 {
		t.Errorf("Rowid = %d, want 3", cell.Rowid)
	}
	if cell.OverflowPage != 0 {
		t.Errorf("OverflowPage = %d, want 0", cell.OverflowPage)
	}
	if !bytes.Equal(cell.LocalPayload, payload) {
		t.Errorf("LocalPayload = %q", cell.LocalPayload)
	}
}

func TestTableLeafCellSpillBoundary(t *testing.T) {
	const usable = 512
	maxLocal, minLocal := payloadLimits(usable, false)

	// A payload of exactly maxLocal bytes stays fully local.
	atLimit := bytes.Repeat([]byte{0xaa}, maxLocal)
	slot := append(encodeVarintForTest(uint64(maxLocal)), encodeVarintForTest(1)...)
	slot = append(slot, atLimit...)

	cell, err := parseTableLeafCell(slot, usable)
	if err != nil {
		t.Fatalf("parseTableLeafCell() error = %v", err)
	}
	if cell.OverflowPage != 0 {
		t.Errorf("payload at maxLocal should not overflow, got page %d", cell.OverflowPage)
	}
	if len(cell.LocalPayload) != maxLocal {
		t.Errorf("local payload = %d bytes, want %d", len(cell.LocalPayload), maxLocal)
	}

	// One byte more and the tail moves to an overflow chain.
	overLimit := uint64(maxLocal + 1)
	localSize := minLocal + int((overLimit-uint64(minLocal))%uint64(usable-4))
	if localSize > maxLocal {
		localSize = minLocal
	}

	slot = append(encodeVarintForTest(overLimit), encodeVarintForTest(1)...)
	slot = append(slot, bytes.Repeat([]byte{0xbb}, localSize)...)
	slot = append(slot, 0, 0, 0, 42)

	cell, err = parseTableLeafCell(slot, usable)
	if err != nil {
		t.Fatalf("parseTableLeafCell() error = %v", err)
	}
	if cell.OverflowPage != 42 {
		t.Errorf("OverflowPage = %d, want 42", cell.OverflowPage)
	}
	if len(cell.LocalPayload) != localSize {
		t.Errorf("local payload = %d bytes, want %d", len(cell.LocalPayload), localSize)
	}
}

func TestParseTableLeafCellTruncated(t *testing.T) {
	// Declares 100 payload bytes, supplies 10.
	slot := append(encodeVarintForTest(100), encodeVarintForTest(1)...)
	slot = append(slot, bytes.Repeat([]byte{0x01}, 10)...)

	if _, err := parseTableLeafCell(slot, 512); !errors.Is(err, ErrCorruptCell) {
		t.Errorf("parseTableLeafCell() error = %v, want ErrCorruptCell", err)
	}
}

func TestParseIndexLeafCell(t *testing.T) {
	payload := buildPayload([]uint64{19, 2}, [][]byte{[]byte("key"), {0x01, 0x02}})
	slot := append(encodeVarintForTest(uint64(len(payload))), payload...)

	cell, err := parseIndexLeafCell(slot, 4096)
	if err != nil {
		t.Fatalf("parseIndexLeafCell() error = %v", err)
	}
	record, err := parseRecord(cell.LocalPayload)
	if err != nil {
		t.Fatalf("parseRecord() error = %v", err)
	}
	if !bytes.Equal(record[0].Raw(), []byte("key")) {
		t.Errorf("key field = %q, want \"key\"", record[0].Raw())
	}
	rowid, err := record[1].Int64()
	if err != nil || rowid != 0x0102 {
		t.Errorf("rowid field = %d, %v, want %d", rowid, err, 0x0102)
	}
}

func TestParseIndexInteriorCell(t *testing.T) {
	payload := buildPayload([]uint64{19, 1}, [][]byte{[]byte("sep"), {0x09}})
	slot := []byte{0, 0, 0, 6}
	slot = append(slot, encodeVarintForTest(uint64(len(payload)))...)
	slot = append(slot, payload...)

	cell, err := parseIndexInteriorCell(slot, 4096)
	if err != nil {
		t.Fatalf("parseIndexInteriorCell() error = %v", err)
	}
	if cell.LeftChild != 6 {
		t.Errorf("LeftChild = %d, want 6", cell.LeftChild)
	}
	record, err := parseRecord(cell.LocalPayload)
	if err != nil {
		t.Fatalf("parseRecord() error = %v", err)
	}
	if !bytes.Equal(record[0].Raw(), []byte("sep")) {
		t.Errorf("separator key = %q", record[0].Raw())
	}
}

func TestParseTableInteriorCellShortSlot(t *testing.T) {
	if _, err := parseTableInteriorCell([]byte{0, 0, 1}); !errors.Is(err, ErrCorruptCell) {
		t.Errorf("parseTableInteriorCell() error = %v, want ErrCorruptCell", err)
	}
}

func TestSplitPayloadRejectsZeroOverflowPage(t *testing.T) {
	const usable = 512
	maxLocal, minLocal := payloadLimits(usable, false)
	overLimit := uint64(maxLocal + 1)
	localSize := minLocal + int((overLimit-uint64(minLocal))%uint64(usable-4))
	if localSize > maxLocal {
		localSize = minLocal
	}

	slot := bytes.Repeat([]byte{0xcc}, localSize+4)
	binary.BigEndian.PutUint32(slot[localSize:], 0)

	if _, _, err := splitPayload(slot, 0, overLimit, usable, false); !errors.Is(err, ErrCorruptCell) {
		t.Errorf("splitPayload() error = %v, want ErrCorruptCell", err)
	}
}
