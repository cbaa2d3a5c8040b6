// Package blockstore implements the free-block-managed, bit-exact persisted
// byte array that backs a blockfs image: a fixed 65,536-block array of
// 512-byte blocks, the last 16 of which hold the Free Block Map (FBM).
package blockstore

import (
	"fmt"
	"io"
	"os"

	"github.com/dargueta/blockfs/internal/bitmap"
	"github.com/xaionaro-go/bytesextra"
)

const (
	// BlockSize is the fixed size of one block, in bytes.
	BlockSize = 512
	// TotalBlocks is the fixed number of blocks in every image.
	TotalBlocks = 65536
	// FBMBlockCount is the number of blocks at the tail of the image reserved
	// for the Free Block Map.
	FBMBlockCount = 16
	// FBMStartBlock is the id of the first block belonging to the FBM.
	FBMStartBlock = TotalBlocks - FBMBlockCount
	// ImageSize is the total size of a blockfs image, in bytes.
	ImageSize = TotalBlocks * BlockSize
)

// BlockID addresses a single block in the image. 0 means "not allocated" in
// every inode pointer slot; it's a safe sentinel because block 0 is always
// the superblock and can never be a data target.
type BlockID uint16

// NoBlock is the sentinel BlockID returned by Allocate on exhaustion, and the
// value that means "absent" in every pointer slot.
const NoBlock BlockID = 0

// Store owns the single contiguous 32 MiB byte buffer backing an image and
// the Free Block Map overlaid on its last 16 blocks. All reads and writes are
// synchronous and operate directly on the in-memory buffer; durability
// requires an explicit Serialize call.
type Store struct {
	data []byte
	fbm  *bitmap.Bitmap
}

func newEmptyStore() *Store {
	data := make([]byte, ImageSize)
	fbm, err := bitmap.Overlay(data[FBMStartBlock*BlockSize:], TotalBlocks)
	if err != nil {
		// Unreachable: the tail slice is exactly FBMBlockCount*BlockSize
		// bytes, which is always large enough for TotalBlocks bits.
		panic(err)
	}
	return &Store{data: data, fbm: fbm}
}

// Create allocates a fresh in-memory 32 MiB buffer and marks the 16 FBM
// blocks themselves as allocated. It does not write anything to disk; call
// Serialize to persist the image.
func Create() *Store {
	store := newEmptyStore()
	for id := BlockID(FBMStartBlock); int(id) < TotalBlocks; id++ {
		// Can't fail: these bits are always in range.
		_ = store.fbm.Set(int(id))
	}
	return store
}

// Open reads a 32 MiB image from path into a fresh buffer. The FBM overlay is
// rebuilt over the tail of that buffer, so whatever allocation state was
// persisted is exactly what's loaded.
func Open(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("blockstore: open %q: %w", path, err)
	}
	if len(raw) != ImageSize {
		return nil, fmt.Errorf(
			"blockstore: open %q: expected %d bytes, got %d", path, ImageSize, len(raw))
	}

	store := newEmptyStore()
	copy(store.data, raw)
	return store, nil
}

// Serialize writes the whole in-memory buffer to path, creating or
// truncating it as needed.
func (s *Store) Serialize(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("blockstore: serialize %q: %w", path, err)
	}
	defer f.Close()

	stream := bytesextra.NewReadWriteSeeker(s.data)
	if _, err := io.Copy(f, stream); err != nil {
		return fmt.Errorf("blockstore: serialize %q: %w", path, err)
	}
	return nil
}

func (s *Store) checkID(id BlockID) error {
	if uint(id) >= TotalBlocks {
		return fmt.Errorf("blockstore: block id %d out of range [0, %d)", id, TotalBlocks)
	}
	return nil
}

func (s *Store) isReserved(id BlockID) bool {
	return uint(id) >= FBMStartBlock
}

// Request attempts to reserve a specific block id. It succeeds only if the
// block was previously free and isn't in the FBM-reserved tail.
func (s *Store) Request(id BlockID) error {
	if err := s.checkID(id); err != nil {
		return err
	}
	if s.isReserved(id) {
		return fmt.Errorf("blockstore: block %d is reserved for the FBM", id)
	}

	inUse, err := s.fbm.Test(int(id))
	if err != nil {
		return err
	}
	if inUse {
		return fmt.Errorf("blockstore: block %d is already allocated", id)
	}
	return s.fbm.Set(int(id))
}

// Allocate finds the lowest free, non-reserved block via the FBM's
// find-first-zero and marks it allocated. Block 0 is never handed out, even
// while it is still free, since it is the superblock and its id is NoBlock.
// It returns NoBlock if the image is exhausted; callers must compare the
// result to NoBlock explicitly.
func (s *Store) Allocate() BlockID {
	id := s.fbm.FFZ()
	if id == int(NoBlock) {
		id = bitmap.NotFound
		for i := 1; i < FBMStartBlock; i++ {
			// Test can't fail: i is always in range here.
			if inUse, _ := s.fbm.Test(i); !inUse {
				id = i
				break
			}
		}
	}
	if id < 0 || id >= FBMStartBlock {
		return NoBlock
	}
	// Can't fail: id came from FFZ within range and isn't reserved.
	_ = s.fbm.Set(id)
	return BlockID(id)
}

// Release marks id free again.
func (s *Store) Release(id BlockID) error {
	if err := s.checkID(id); err != nil {
		return err
	}
	if s.isReserved(id) {
		return fmt.Errorf("blockstore: cannot release reserved FBM block %d", id)
	}
	return s.fbm.Reset(int(id))
}

// Read copies the full 512-byte contents of block id into dst, which must be
// at least BlockSize bytes long.
func (s *Store) Read(id BlockID, dst []byte) error {
	if err := s.checkID(id); err != nil {
		return err
	}
	if len(dst) < BlockSize {
		return fmt.Errorf("blockstore: read buffer too small: need %d bytes, got %d", BlockSize, len(dst))
	}
	offset := int(id) * BlockSize
	copy(dst, s.data[offset:offset+BlockSize])
	return nil
}

// Write copies the first 512 bytes of src into block id.
func (s *Store) Write(id BlockID, src []byte) error {
	if err := s.checkID(id); err != nil {
		return err
	}
	if len(src) < BlockSize {
		return fmt.Errorf("blockstore: write buffer too small: need %d bytes, got %d", BlockSize, len(src))
	}
	offset := int(id) * BlockSize
	copy(s.data[offset:offset+BlockSize], src[:BlockSize])
	return nil
}

// FreeBlocks returns the number of currently unallocated blocks.
func (s *Store) FreeBlocks() uint64 {
	free := uint64(0)
	for i := 0; i < TotalBlocks; i++ {
		// Test can't fail: i is always in range here.
		inUse, _ := s.fbm.Test(i)
		if !inUse {
			free++
		}
	}
	return free
}

// TotalBlocksCount returns the total number of blocks in the image.
func (s *Store) TotalBlocksCount() uint64 {
	return TotalBlocks
}
