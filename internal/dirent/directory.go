// Package dirent implements the fixed-layout directory block: seven 65-byte
// entries packed into a single 512-byte block, with 57 bytes of trailing
// metadata padding.
package dirent

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dargueta/blockfs/internal/blockstore"
	"github.com/noxer/bytewriter"
)

var byteOrder = binary.LittleEndian

const (
	// MaxNameLength is the longest a single path component's name can be.
	MaxNameLength = 63
	// EntrySize is the exact on-disk size of one directory entry.
	//
	// A directory block's components are described elsewhere as a 64-byte
	// name plus an 8-bit inode number plus an 8-bit type, which would make
	// each entry 66 bytes; that can't be reconciled with a block holding
	// seven entries plus 57 bytes of padding (7*66+57 != 512). Taking the
	// entry count and padding as authoritative instead, the name field is
	// 63 bytes, giving 63+1+1 = 65 bytes per entry and 7*65+57 == 512.
	EntrySize = MaxNameLength + 1 + 1
	// EntriesPerBlock is the number of entries a directory block holds.
	EntriesPerBlock = 7
	// metadataBytes pads a directory block out to exactly one block.
	metadataBytes = blockstore.BlockSize - EntriesPerBlock*EntrySize

	// EntryType values stored in each entry's Type field.
	EntryTypeFile      = 0
	EntryTypeDirectory = 1
)

// Entry is one 65-byte slot in a directory block.
type Entry struct {
	Name        [MaxNameLength]byte
	InodeNumber uint8
	Type        uint8
}

// IsEmpty reports whether this slot holds no entry. Inode 0 is permanently
// allocated to the root directory, so it can never appear as a regular
// entry's InodeNumber; an InodeNumber of zero unambiguously means "empty".
func (e *Entry) IsEmpty() bool {
	return e.InodeNumber == 0
}

// NameString returns the entry's name with trailing NUL padding stripped.
func (e *Entry) NameString() string {
	n := bytes.IndexByte(e.Name[:], 0)
	if n < 0 {
		n = len(e.Name)
	}
	return string(e.Name[:n])
}

// SetName copies name into the entry's fixed-size name field. It fails if
// name doesn't fit.
func (e *Entry) SetName(name string) error {
	if len(name) > MaxNameLength {
		return fmt.Errorf("dirent: name %q longer than %d bytes", name, MaxNameLength)
	}
	var buf [MaxNameLength]byte
	copy(buf[:], name)
	e.Name = buf
	return nil
}

// Block is the decoded contents of one 512-byte directory block.
type Block struct {
	Entries  [EntriesPerBlock]Entry
	metadata [metadataBytes]byte
}

// Lookup returns the index of the entry named name, or -1 if absent.
func (b *Block) Lookup(name string) int {
	for i := range b.Entries {
		if !b.Entries[i].IsEmpty() && b.Entries[i].NameString() == name {
			return i
		}
	}
	return -1
}

// ErrNameExists is returned by FindFreeSlot when name is already present.
var ErrNameExists = fmt.Errorf("dirent: entry already exists")

// ErrBlockFull is returned by FindFreeSlot when no entry is free.
var ErrBlockFull = fmt.Errorf("dirent: directory block is full")

// FindFreeSlot returns the index of the first empty entry, failing if name
// already exists in the block or the block is full.
func (b *Block) FindFreeSlot(name string) (int, error) {
	free := -1
	for i := range b.Entries {
		if b.Entries[i].IsEmpty() {
			if free < 0 {
				free = i
			}
			continue
		}
		if b.Entries[i].NameString() == name {
			return 0, fmt.Errorf("%w: %q", ErrNameExists, name)
		}
	}
	if free < 0 {
		return 0, ErrBlockFull
	}
	return free, nil
}

// Count returns the number of occupied entries.
func (b *Block) Count() int {
	n := 0
	for i := range b.Entries {
		if !b.Entries[i].IsEmpty() {
			n++
		}
	}
	return n
}

// Encode serializes the block into exactly blockstore.BlockSize bytes.
func (b *Block) Encode() []byte {
	buf := make([]byte, blockstore.BlockSize)
	w := bytewriter.New(buf)
	for i := range b.Entries {
		w.Write(b.Entries[i].Name[:])
		binary.Write(w, byteOrder, b.Entries[i].InodeNumber)
		binary.Write(w, byteOrder, b.Entries[i].Type)
	}
	w.Write(b.metadata[:])
	return buf
}

// Decode parses exactly blockstore.BlockSize bytes of buf into a Block.
func Decode(buf []byte) (*Block, error) {
	if len(buf) < blockstore.BlockSize {
		return nil, fmt.Errorf("dirent: buffer too small: need %d bytes, got %d", blockstore.BlockSize, len(buf))
	}

	b := &Block{}
	r := bytes.NewReader(buf[:blockstore.BlockSize])
	for i := range b.Entries {
		r.Read(b.Entries[i].Name[:])
		binary.Read(r, byteOrder, &b.Entries[i].InodeNumber)
		binary.Read(r, byteOrder, &b.Entries[i].Type)
	}
	r.Read(b.metadata[:])
	return b, nil
}

// Load reads and decodes the directory block at id from store.
func Load(store *blockstore.Store, id blockstore.BlockID) (*Block, error) {
	buf := make([]byte, blockstore.BlockSize)
	if err := store.Read(id, buf); err != nil {
		return nil, err
	}
	return Decode(buf)
}

// Save encodes and writes the block back to id in store.
func (b *Block) Save(store *blockstore.Store, id blockstore.BlockID) error {
	return store.Write(id, b.Encode())
}
