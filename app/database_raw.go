package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// DatabaseRaw handles raw SQLite file I/O: the pager and overflow-chain
// assembly. Higher layers only ever see decoded pages and payloads.
type DatabaseRaw interface {
	ReadPage(ctx context.Context, pageNum int) ([]byte, error)
	ReadBTreePage(ctx context.Context, pageNum int) (*BTreePage, error)
	AssemblePayload(ctx context.Context, local []byte, overflowPage uint32, payloadSize uint64) ([]byte, error)
	PageSize() int
	UsableSize() int
	PageCount() int
	Encoding() TextEncoding
	Header() *DatabaseHeader
	Close() error
}

// DatabaseRawImpl implements DatabaseRaw over an exclusive read-only file handle
type DatabaseRawImpl struct {
	file        *os.File
	header      *DatabaseHeader
	pageSize    int
	pageCount   int
	encoding    TextEncoding
	config      *DatabaseConfig
	resourceMgr *ResourceManager

	cache      map[int][]byte
	cacheOrder []int // FIFO eviction order
}

// NewDatabaseRaw opens a database file and validates its header
func NewDatabaseRaw(filePath string, options ...DatabaseOption) (*DatabaseRawImpl, error) {
	config := DefaultDatabaseConfig()
	for _, opt := range options {
		opt(config)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open database file: %w", err)
	}

	resourceMgr := NewResourceManager()
	resourceMgr.Add(file)

	db := &DatabaseRawImpl{
		file:        file,
		config:      config,
		resourceMgr: resourceMgr,
		cache:       make(map[int][]byte),
	}

	if err := db.parseHeader(); err != nil {
		resourceMgr.Close()
		return nil, err
	}

	return db, nil
}

// parseHeader parses and validates the 100-byte database header
func (db *DatabaseRawImpl) parseHeader() error {
	if _, err := db.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek to header: %w", err)
	}

	db.header = &DatabaseHeader{}
	if err := binary.Read(db.file, binary.BigEndian, db.header); err != nil {
		return NewDatabaseError("read_header", ErrInvalidDatabase, map[string]interface{}{
			"cause": err.Error(),
		})
	}

	if !db.header.IsValidMagicNumber() {
		return NewDatabaseError("validate_magic", ErrInvalidDatabase, map[string]interface{}{
			"magic": string(db.header.MagicNumber[:15]),
		})
	}

	db.pageSize = db.header.GetActualPageSize()
	if db.pageSize < 512 || db.pageSize > 65536 || db.pageSize&(db.pageSize-1) != 0 {
		return NewDatabaseError("validate_page_size", ErrInvalidDatabase, map[string]interface{}{
			"page_size": db.pageSize,
		})
	}

	encoding, err := db.header.GetEncoding()
	if err != nil {
		return err
	}
	db.encoding = encoding

	info, err := db.file.Stat()
	if err != nil {
		return fmt.Errorf("stat database file: %w", err)
	}
	db.pageCount = int(info.Size()) / db.pageSize

	return nil
}

// ReadPage returns the raw bytes of a page. Pages are numbered from 1.
func (db *DatabaseRawImpl) ReadPage(ctx context.Context, pageNum int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("read page cancelled: %w", err)
	}

	if pageNum < 1 || pageNum > db.pageCount {
		return nil, NewDatabaseError("read_page", ErrInvalidPageNumber, map[string]interface{}{
			"page_num":   pageNum,
			"page_count": db.pageCount,
		})
	}

	if cached, ok := db.cache[pageNum]; ok {
		return cached, nil
	}

	offset := int64(pageNum-1) * int64(db.pageSize)
	pageData := make([]byte, db.pageSize)
	n, err := db.file.ReadAt(pageData, offset)
	if err != nil {
		return nil, fmt.Errorf("read page %d at offset %d: %w", pageNum, offset, err)
	}
	if n != db.pageSize {
		return nil, NewDatabaseError("read_page", ErrInvalidDatabase, map[string]interface{}{
			"page_num": pageNum,
			"expected": db.pageSize,
			"got":      n,
		})
	}

	db.cachePage(pageNum, pageData)
	return pageData, nil
}

// cachePage stores a page, evicting the oldest entry once the cache is full
func (db *DatabaseRawImpl) cachePage(pageNum int, data []byte) {
	if db.config.PageCacheSize <= 0 {
		return
	}
	if len(db.cacheOrder) >= db.config.PageCacheSize {
		oldest := db.cacheOrder[0]
		db.cacheOrder = db.cacheOrder[1:]
		delete(db.cache, oldest)
	}
	db.cache[pageNum] = data
	db.cacheOrder = append(db.cacheOrder, pageNum)
}

// ReadBTreePage reads and decodes a B-tree page
func (db *DatabaseRawImpl) ReadBTreePage(ctx context.Context, pageNum int) (*BTreePage, error) {
	pageData, err := db.ReadPage(ctx, pageNum)
	if err != nil {
		return nil, err
	}
	return parseBTreePage(pageData, pageNum, db.UsableSize())
}

// AssemblePayload reassembles a full cell payload from its local portion and
// overflow chain. A chain that terminates before the declared payload size
// is reached is a corruption error.
func (db *DatabaseRawImpl) AssemblePayload(ctx context.Context, local []byte, overflowPage uint32, payloadSize uint64) ([]byte, error) {
	if overflowPage == 0 {
		if uint64(len(local)) != payloadSize {
			return nil, NewDatabaseError("assemble_payload", ErrCorruptPayload, map[string]interface{}{
				"declared_size": payloadSize,
				"actual_size":   len(local),
			})
		}
		return local, nil
	}

	full := make([]byte, 0, payloadSize)
	full = append(full, local...)

	next := overflowPage
	for next != 0 && uint64(len(full)) < payloadSize {
		pageData, err := db.ReadPage(ctx, int(next))
		if err != nil {
			return nil, err
		}
		overflow, err := parseOverflowPage(pageData)
		if err != nil {
			return nil, err
		}

		remaining := payloadSize - uint64(len(full))
		chunk := overflow.Data
		if uint64(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}
		full = append(full, chunk...)
		next = overflow.NextPage
	}

	if uint64(len(full)) != payloadSize {
		return nil, NewDatabaseError("assemble_payload", ErrCorruptPayload, map[string]interface{}{
			"declared_size": payloadSize,
			"actual_size":   len(full),
		})
	}
	return full, nil
}

// PageSize returns the database page size
func (db *DatabaseRawImpl) PageSize() int {
	return db.pageSize
}

// UsableSize returns the page size minus the reserved region at the end of each page
func (db *DatabaseRawImpl) UsableSize() int {
	return db.pageSize - int(db.header.ReservedBytes)
}

// PageCount returns the number of pages in the file
func (db *DatabaseRawImpl) PageCount() int {
	return db.pageCount
}

// Encoding returns the database text encoding
func (db *DatabaseRawImpl) Encoding() TextEncoding {
	return db.encoding
}

// Header returns the parsed database header
func (db *DatabaseRawImpl) Header() *DatabaseHeader {
	return db.header
}

// Close closes the database file using the resource manager
func (db *DatabaseRawImpl) Close() error {
	if db.resourceMgr != nil {
		return db.resourceMgr.Close()
	}
	return nil
}
