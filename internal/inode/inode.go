// Package inode implements the on-disk inode table and superblock: 256
// fixed-layout 64-byte inodes packed 8-per-block across blocks 1..32, and
// the block-0 superblock that tracks which of them are allocated.
package inode

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dargueta/blockfs/internal/blockstore"
	"github.com/noxer/bytewriter"
)

// byteOrder is the encoding used for every multi-byte field persisted by this
// package. It is little-endian whatever the host's byte order; picking one
// order consistently is all correctness requires.
var byteOrder = binary.LittleEndian

const (
	// Size is the exact on-disk size of one inode, in bytes.
	Size = 64
	// PerBlock is the number of inodes packed into a single block.
	PerBlock = 8
	// TableBlocks is the number of blocks the inode table occupies.
	TableBlocks = 32
	// TableStartBlock is the id of the first block of the inode table.
	TableStartBlock = 1
	// MaxInodes is the total number of inodes a table can hold.
	MaxInodes = PerBlock * TableBlocks

	// RootInode is the inode number of the root directory. It's allocated
	// and marked in use at format time and can never be freed.
	RootInode = 0

	// ModeDirectory is the fileMode value used for every directory.
	ModeDirectory = 1777
	// ModeRegular is the fileMode value used for every regular file.
	ModeRegular = 777
	// directoryModeThreshold is the magnitude boundary path resolution uses
	// to decide "is this a directory": fileMode >= this means directory.
	directoryModeThreshold = 1000
)

// RawInode is the exact 64-byte on-disk inode layout. Field order and widths
// must be preserved so images remain reproducible byte-for-byte.
type RawInode struct {
	FileSize            int32
	DeviceID            int32
	UserID              int32
	GroupID             int32
	FileMode            int32
	LinkCount           int32
	ChangeTime          int64
	ModificationTime    int64
	AccessTime          int64
	DirectBlocks        [6]uint16
	IndirectBlock       uint16
	DoubleIndirectBlock uint16
}

// IsDirectory reports whether this inode describes a directory, decided by
// fileMode magnitude: fileMode >= 1000 means directory. This is a spec
// contract, not an implementation detail, preserved so existing images
// decode the same way regardless of how callers prefer to express file kind
// at the API boundary.
func (inode *RawInode) IsDirectory() bool {
	return inode.FileMode >= directoryModeThreshold
}

// IsAllocated reports whether the inode currently describes a live object.
// This mirrors the superblock's allocation bit and is used defensively by
// callers that already have a copy of the inode in hand.
func (inode *RawInode) IsAllocated() bool {
	return *inode != RawInode{}
}

// Encode serializes inode into exactly Size bytes.
func Encode(inode RawInode) []byte {
	buf := make([]byte, Size)
	w := bytewriter.New(buf)
	// None of these Write calls can fail: w never runs out of room because
	// buf is exactly Size bytes and the field widths sum to Size.
	binary.Write(w, byteOrder, inode.FileSize)
	binary.Write(w, byteOrder, inode.DeviceID)
	binary.Write(w, byteOrder, inode.UserID)
	binary.Write(w, byteOrder, inode.GroupID)
	binary.Write(w, byteOrder, inode.FileMode)
	binary.Write(w, byteOrder, inode.LinkCount)
	binary.Write(w, byteOrder, inode.ChangeTime)
	binary.Write(w, byteOrder, inode.ModificationTime)
	binary.Write(w, byteOrder, inode.AccessTime)
	binary.Write(w, byteOrder, inode.DirectBlocks)
	binary.Write(w, byteOrder, inode.IndirectBlock)
	binary.Write(w, byteOrder, inode.DoubleIndirectBlock)
	return buf
}

// Decode parses exactly Size bytes of buf into a RawInode.
func Decode(buf []byte) (RawInode, error) {
	if len(buf) < Size {
		return RawInode{}, fmt.Errorf("inode: buffer too small: need %d bytes, got %d", Size, len(buf))
	}

	var inode RawInode
	r := bytes.NewReader(buf[:Size])
	binary.Read(r, byteOrder, &inode.FileSize)
	binary.Read(r, byteOrder, &inode.DeviceID)
	binary.Read(r, byteOrder, &inode.UserID)
	binary.Read(r, byteOrder, &inode.GroupID)
	binary.Read(r, byteOrder, &inode.FileMode)
	binary.Read(r, byteOrder, &inode.LinkCount)
	binary.Read(r, byteOrder, &inode.ChangeTime)
	binary.Read(r, byteOrder, &inode.ModificationTime)
	binary.Read(r, byteOrder, &inode.AccessTime)
	binary.Read(r, byteOrder, &inode.DirectBlocks)
	binary.Read(r, byteOrder, &inode.IndirectBlock)
	binary.Read(r, byteOrder, &inode.DoubleIndirectBlock)
	return inode, nil
}

// Table is the 256-entry inode table packed 8-per-block across blocks 1..32
// of a blockstore.Store.
type Table struct {
	store *blockstore.Store
}

// NewTable wraps store's inode table region.
func NewTable(store *blockstore.Store) *Table {
	return &Table{store: store}
}

// locate translates an inode number into the block holding it and its slot
// within that block, per spec: block = i/8 + 1, slot = i%8.
func locate(i int) (blockstore.BlockID, int, error) {
	if i < 0 || i >= MaxInodes {
		return 0, 0, fmt.Errorf("inode: number %d out of range [0, %d)", i, MaxInodes)
	}
	block := blockstore.BlockID(i/PerBlock + TableStartBlock)
	slot := i % PerBlock
	return block, slot, nil
}

// Get reads inode number i.
func (t *Table) Get(i int) (RawInode, error) {
	block, slot, err := locate(i)
	if err != nil {
		return RawInode{}, err
	}

	buf := make([]byte, blockstore.BlockSize)
	if err := t.store.Read(block, buf); err != nil {
		return RawInode{}, err
	}
	return Decode(buf[slot*Size : (slot+1)*Size])
}

// Put writes inode into slot i, reading the whole block first and splicing
// the 64-byte slot back in, since the block store has no intermediate cache
// and reads/writes must move whole blocks.
func (t *Table) Put(i int, raw RawInode) error {
	block, slot, err := locate(i)
	if err != nil {
		return err
	}

	buf := make([]byte, blockstore.BlockSize)
	if err := t.store.Read(block, buf); err != nil {
		return err
	}
	copy(buf[slot*Size:(slot+1)*Size], Encode(raw))
	return t.store.Write(block, buf)
}
