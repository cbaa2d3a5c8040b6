package blockfs

import (
	"encoding/binary"

	"github.com/dargueta/blockfs/internal/blockstore"
	"github.com/dargueta/blockfs/internal/inode"
)

const (
	pointersPerBlock = blockstore.BlockSize / 2 // 256 16-bit block ids per indirection block

	directBlockCount    = 6
	singleIndirectStart = directBlockCount               // L = 6
	doubleIndirectStart = singleIndirectStart + pointersPerBlock // L = 262
)

var pointerByteOrder = binary.LittleEndian

func readPointerBlock(store *blockstore.Store, id blockstore.BlockID) ([pointersPerBlock]uint16, error) {
	var out [pointersPerBlock]uint16
	buf := make([]byte, blockstore.BlockSize)
	if err := store.Read(id, buf); err != nil {
		return out, err
	}
	for i := range out {
		out[i] = pointerByteOrder.Uint16(buf[i*2 : i*2+2])
	}
	return out, nil
}

func writePointerBlock(store *blockstore.Store, id blockstore.BlockID, ptrs [pointersPerBlock]uint16) error {
	buf := make([]byte, blockstore.BlockSize)
	for i := range ptrs {
		pointerByteOrder.PutUint16(buf[i*2:i*2+2], ptrs[i])
	}
	return store.Write(id, buf)
}

// blockForRead resolves logical block L to a physical block id for reading.
// It never allocates; an absent intermediate or leaf pointer yields NoBlock.
func blockForRead(store *blockstore.Store, in *inode.RawInode, l int) (blockstore.BlockID, error) {
	switch {
	case l < singleIndirectStart:
		return blockstore.BlockID(in.DirectBlocks[l]), nil

	case l < doubleIndirectStart:
		if in.IndirectBlock == uint16(blockstore.NoBlock) {
			return blockstore.NoBlock, nil
		}
		ptrs, err := readPointerBlock(store, blockstore.BlockID(in.IndirectBlock))
		if err != nil {
			return blockstore.NoBlock, err
		}
		return blockstore.BlockID(ptrs[l-singleIndirectStart]), nil

	default:
		if in.DoubleIndirectBlock == uint16(blockstore.NoBlock) {
			return blockstore.NoBlock, nil
		}
		outer, err := readPointerBlock(store, blockstore.BlockID(in.DoubleIndirectBlock))
		if err != nil {
			return blockstore.NoBlock, err
		}
		offset := l - doubleIndirectStart
		outerIdx := offset / pointersPerBlock
		innerIdx := offset % pointersPerBlock
		if outer[outerIdx] == uint16(blockstore.NoBlock) {
			return blockstore.NoBlock, nil
		}
		inner, err := readPointerBlock(store, blockstore.BlockID(outer[outerIdx]))
		if err != nil {
			return blockstore.NoBlock, err
		}
		return blockstore.BlockID(inner[innerIdx]), nil
	}
}

// blockForWrite resolves logical block L to a physical block id, allocating
// and persisting any missing intermediate table or leaf block along the way.
// It returns blockstore.NoBlock only when allocation itself fails, in which
// case any table block it already allocated and wrote is left in place, per
// the short-write contract.
func blockForWrite(store *blockstore.Store, in *inode.RawInode, l int) (blockstore.BlockID, error) {
	switch {
	case l < singleIndirectStart:
		if in.DirectBlocks[l] == uint16(blockstore.NoBlock) {
			id := store.Allocate()
			if id == blockstore.NoBlock {
				return blockstore.NoBlock, nil
			}
			in.DirectBlocks[l] = uint16(id)
		}
		return blockstore.BlockID(in.DirectBlocks[l]), nil

	case l < doubleIndirectStart:
		if in.IndirectBlock == uint16(blockstore.NoBlock) {
			id := store.Allocate()
			if id == blockstore.NoBlock {
				return blockstore.NoBlock, nil
			}
			if err := writePointerBlock(store, id, [pointersPerBlock]uint16{}); err != nil {
				return blockstore.NoBlock, err
			}
			in.IndirectBlock = uint16(id)
		}
		ptrs, err := readPointerBlock(store, blockstore.BlockID(in.IndirectBlock))
		if err != nil {
			return blockstore.NoBlock, err
		}
		idx := l - singleIndirectStart
		if ptrs[idx] == uint16(blockstore.NoBlock) {
			id := store.Allocate()
			if id == blockstore.NoBlock {
				return blockstore.NoBlock, nil
			}
			ptrs[idx] = uint16(id)
			if err := writePointerBlock(store, blockstore.BlockID(in.IndirectBlock), ptrs); err != nil {
				return blockstore.NoBlock, err
			}
		}
		return blockstore.BlockID(ptrs[idx]), nil

	default:
		if in.DoubleIndirectBlock == uint16(blockstore.NoBlock) {
			id := store.Allocate()
			if id == blockstore.NoBlock {
				return blockstore.NoBlock, nil
			}
			if err := writePointerBlock(store, id, [pointersPerBlock]uint16{}); err != nil {
				return blockstore.NoBlock, err
			}
			in.DoubleIndirectBlock = uint16(id)
		}
		outer, err := readPointerBlock(store, blockstore.BlockID(in.DoubleIndirectBlock))
		if err != nil {
			return blockstore.NoBlock, err
		}

		offset := l - doubleIndirectStart
		outerIdx := offset / pointersPerBlock
		innerIdx := offset % pointersPerBlock

		if outer[outerIdx] == uint16(blockstore.NoBlock) {
			id := store.Allocate()
			if id == blockstore.NoBlock {
				return blockstore.NoBlock, nil
			}
			if err := writePointerBlock(store, id, [pointersPerBlock]uint16{}); err != nil {
				return blockstore.NoBlock, err
			}
			outer[outerIdx] = uint16(id)
			if err := writePointerBlock(store, blockstore.BlockID(in.DoubleIndirectBlock), outer); err != nil {
				return blockstore.NoBlock, err
			}
		}

		inner, err := readPointerBlock(store, blockstore.BlockID(outer[outerIdx]))
		if err != nil {
			return blockstore.NoBlock, err
		}
		if inner[innerIdx] == uint16(blockstore.NoBlock) {
			id := store.Allocate()
			if id == blockstore.NoBlock {
				return blockstore.NoBlock, nil
			}
			inner[innerIdx] = uint16(id)
			if err := writePointerBlock(store, blockstore.BlockID(outer[outerIdx]), inner); err != nil {
				return blockstore.NoBlock, err
			}
		}
		return blockstore.BlockID(inner[innerIdx]), nil
	}
}

// freeFileData releases every data block and indirection table block
// referenced by in's pointer tree, direct blocks first, then the
// single-indirect table, then every allocated branch of the double-indirect
// tree before the tree blocks themselves.
func freeFileData(store *blockstore.Store, in *inode.RawInode) error {
	for i := 0; i < directBlockCount; i++ {
		if in.DirectBlocks[i] != uint16(blockstore.NoBlock) {
			if err := store.Release(blockstore.BlockID(in.DirectBlocks[i])); err != nil {
				return err
			}
			in.DirectBlocks[i] = uint16(blockstore.NoBlock)
		}
	}

	if in.IndirectBlock != uint16(blockstore.NoBlock) {
		ptrs, err := readPointerBlock(store, blockstore.BlockID(in.IndirectBlock))
		if err != nil {
			return err
		}
		for _, p := range ptrs {
			if p != uint16(blockstore.NoBlock) {
				if err := store.Release(blockstore.BlockID(p)); err != nil {
					return err
				}
			}
		}
		if err := store.Release(blockstore.BlockID(in.IndirectBlock)); err != nil {
			return err
		}
		in.IndirectBlock = uint16(blockstore.NoBlock)
	}

	if in.DoubleIndirectBlock != uint16(blockstore.NoBlock) {
		outer, err := readPointerBlock(store, blockstore.BlockID(in.DoubleIndirectBlock))
		if err != nil {
			return err
		}
		for i := 0; i < pointersPerBlock; i++ {
			if outer[i] == uint16(blockstore.NoBlock) {
				continue
			}
			inner, err := readPointerBlock(store, blockstore.BlockID(outer[i]))
			if err != nil {
				return err
			}
			for j := 0; j < pointersPerBlock; j++ {
				if inner[j] != uint16(blockstore.NoBlock) {
					if err := store.Release(blockstore.BlockID(inner[j])); err != nil {
						return err
					}
				}
			}
			if err := store.Release(blockstore.BlockID(outer[i])); err != nil {
				return err
			}
		}
		if err := store.Release(blockstore.BlockID(in.DoubleIndirectBlock)); err != nil {
			return err
		}
		in.DoubleIndirectBlock = uint16(blockstore.NoBlock)
	}

	return nil
}
