package main

import (
	"bytes"
	"context"
	"iter"
	"sort"
)

// BTree provides traversal over table and index B-trees. All streams are
// lazy pull iterators: consumers abandon traversal by ceasing to pull, and a
// mid-stream error is yielded once and terminates the sequence.
type BTree struct {
	db DatabaseRaw
}

// NewBTree creates a B-tree walker over the given pager
func NewBTree(db DatabaseRaw) *BTree {
	return &BTree{db: db}
}

// TableCells streams every leaf cell of the table B-tree rooted at rootPage
// in ascending rowid order.
func (bt *BTree) TableCells(ctx context.Context, rootPage int) iter.Seq2[*TableLeafCell, error] {
	return func(yield func(*TableLeafCell, error) bool) {
		bt.scanTablePage(ctx, rootPage, func(cell *TableLeafCell, err error) bool {
			return yield(cell, err) && err == nil
		})
	}
}

// scanTablePage walks one page of a table B-tree: left children in cell
// order first, the right-most pointer last. Returns false once the consumer
// stops pulling.
func (bt *BTree) scanTablePage(ctx context.Context, pageNum int, yield func(*TableLeafCell, error) bool) bool {
	page, err := bt.db.ReadBTreePage(ctx, pageNum)
	if err != nil {
		return yield(nil, err)
	}

	switch page.Header.PageType {
	case PageTypeLeafTable:
		for _, cell := range page.TableLeafCells {
			if !yield(cell, nil) {
				return false
			}
		}
		return true
	case PageTypeInteriorTable:
		for _, cell := range page.TableInteriorCells {
			if !bt.scanTablePage(ctx, int(cell.LeftChild), yield) {
				return false
			}
		}
		return bt.scanTablePage(ctx, int(page.RightMost), yield)
	default:
		return yield(nil, NewDatabaseError("scan_table_page", ErrInvalidPageType, map[string]interface{}{
			"page_num":  pageNum,
			"page_type": page.Header.PageType,
		}))
	}
}

// FindByRowid descends the table B-tree rooted at rootPage to the leaf cell
// with the given rowid. Returns nil when the rowid is absent.
func (bt *BTree) FindByRowid(ctx context.Context, rootPage int, rowid int64) (*TableLeafCell, error) {
	pageNum := rootPage
	for {
		page, err := bt.db.ReadBTreePage(ctx, pageNum)
		if err != nil {
			return nil, err
		}

		switch page.Header.PageType {
		case PageTypeLeafTable:
			cells := page.TableLeafCells
			i := sort.Search(len(cells), func(i int) bool {
				return cells[i].Rowid >= rowid
			})
			if i < len(cells) && cells[i].Rowid == rowid {
				return cells[i], nil
			}
			return nil, nil
		case PageTypeInteriorTable:
			cells := page.TableInteriorCells
			// The key of an interior cell is the greatest rowid in its left subtree.
			i := sort.Search(len(cells), func(i int) bool {
				return cells[i].Key >= rowid
			})
			if i < len(cells) {
				pageNum = int(cells[i].LeftChild)
			} else {
				pageNum = int(page.RightMost)
			}
		default:
			return nil, NewDatabaseError("find_by_rowid", ErrInvalidPageType, map[string]interface{}{
				"page_num":  pageNum,
				"page_type": page.Header.PageType,
			})
		}
	}
}

// RowidsForValue streams the rowids of every index entry whose key equals
// the probe, in ascending index order. Separator entries in interior pages
// are real index entries, and equal keys may span multiple subtrees, so an
// equal separator recurses left, yields its own rowid, then continues.
func (bt *BTree) RowidsForValue(ctx context.Context, rootPage int, probe IndexProbe) iter.Seq2[int64, error] {
	return func(yield func(int64, error) bool) {
		bt.scanIndexPage(ctx, rootPage, probe, func(rowid int64, err error) bool {
			return yield(rowid, err) && err == nil
		})
	}
}

func (bt *BTree) scanIndexPage(ctx context.Context, pageNum int, probe IndexProbe, yield func(int64, error) bool) bool {
	page, err := bt.db.ReadBTreePage(ctx, pageNum)
	if err != nil {
		return yield(0, err)
	}

	switch page.Header.PageType {
	case PageTypeLeafIndex:
		for _, cell := range page.IndexLeafCells {
			record, err := bt.indexEntry(ctx, cell.LocalPayload, cell.OverflowPage, cell.PayloadSize)
			if err != nil {
				return yield(0, err)
			}
			cmp, err := probe.Compare(record[0])
			if err != nil {
				return yield(0, err)
			}
			if cmp == 0 {
				rowid, err := indexEntryRowid(record)
				if err != nil {
					return yield(0, err)
				}
				if !yield(rowid, nil) {
					return false
				}
			} else if cmp < 0 {
				// Keys ascend within the leaf; nothing further can match.
				return false
			}
		}
		return true

	case PageTypeInteriorIndex:
		for _, cell := range page.IndexInteriorCells {
			record, err := bt.indexEntry(ctx, cell.LocalPayload, cell.OverflowPage, cell.PayloadSize)
			if err != nil {
				return yield(0, err)
			}
			cmp, err := probe.Compare(record[0])
			if err != nil {
				return yield(0, err)
			}
			switch {
			case cmp == 0:
				if !bt.scanIndexPage(ctx, int(cell.LeftChild), probe, yield) {
					return false
				}
				rowid, err := indexEntryRowid(record)
				if err != nil {
					return yield(0, err)
				}
				if !yield(rowid, nil) {
					return false
				}
			case cmp < 0:
				bt.scanIndexPage(ctx, int(cell.LeftChild), probe, yield)
				return false
			}
		}
		return bt.scanIndexPage(ctx, int(page.RightMost), probe, yield)

	default:
		return yield(0, NewDatabaseError("scan_index_page", ErrInvalidPageType, map[string]interface{}{
			"page_num":  pageNum,
			"page_type": page.Header.PageType,
		}))
	}
}

// indexEntry assembles an index cell's full payload and parses its record:
// the key value followed by the companion rowid.
func (bt *BTree) indexEntry(ctx context.Context, local []byte, overflowPage uint32, payloadSize uint64) (Record, error) {
	payload, err := bt.db.AssemblePayload(ctx, local, overflowPage, payloadSize)
	if err != nil {
		return nil, err
	}
	record, err := parseRecord(payload)
	if err != nil {
		return nil, err
	}
	if len(record) < 2 {
		return nil, NewDatabaseError("index_entry", ErrMalformedRecord, map[string]interface{}{
			"field_count": len(record),
		})
	}
	return record, nil
}

func indexEntryRowid(record Record) (int64, error) {
	return record[len(record)-1].Int64()
}

// IndexProbe is a lookup value for an ordered index search: either encoded
// text bytes or an integer.
type IndexProbe struct {
	Text  []byte
	Int   int64
	IsInt bool
}

// Compare orders the probe against a stored key field. Follows the storage
// class order: NULL < numeric < text/blob. Integer keys compare as decoded
// integers, which matches byte comparison at the stored field's exact
// serial-type width; text keys compare byte-wise in the stored encoding.
func (p IndexProbe) Compare(field SQLiteValue) (int, error) {
	switch field.Type() {
	case ValueTypeNull:
		return 1, nil
	case ValueTypeInteger, ValueTypeFloat:
		if !p.IsInt {
			return 1, nil
		}
		if field.Type() == ValueTypeInteger {
			fieldInt, err := field.Int64()
			if err != nil {
				return 0, err
			}
			switch {
			case p.Int < fieldInt:
				return -1, nil
			case p.Int > fieldInt:
				return 1, nil
			default:
				return 0, nil
			}
		}
		fieldVal, err := field.Float64()
		if err != nil {
			return 0, err
		}
		probeVal := float64(p.Int)
		switch {
		case probeVal < fieldVal:
			return -1, nil
		case probeVal > fieldVal:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		if p.IsInt {
			return -1, nil
		}
		return bytes.Compare(p.Text, field.Raw()), nil
	}
}
