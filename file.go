package blockfs

import (
	"errors"

	"github.com/dargueta/blockfs/internal/blockstore"
	"github.com/dargueta/blockfs/internal/dirent"
	"github.com/dargueta/blockfs/internal/inode"
)

// Whence selects the reference point Seek computes its target offset from.
type Whence int

const (
	SeekSet Whence = iota
	SeekCur
	SeekEnd
)

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

// Read copies up to len(buf) bytes from fd's current position into buf,
// advancing that position by the number of bytes actually read. Reading past
// end of file returns fewer bytes than requested, never an error.
func (fs *FS) Read(fd int, buf []byte) (int, error) {
	desc, err := fs.descriptors.Get(fd)
	if err != nil {
		return 0, ErrBadFileDescriptor.Wrap(err)
	}
	in, err := fs.inodes.Get(desc.InodeNumber)
	if err != nil {
		return 0, CastToDriverError(err)
	}

	available := int64(in.FileSize) - desc.FilePosition
	if available < 0 {
		available = 0
	}
	remaining := min(len(buf), int(available))

	read := 0
	pos := desc.FilePosition
	for read < remaining {
		l := int(pos / blockstore.BlockSize)
		o := int(pos % blockstore.BlockSize)

		blockID, err := blockForRead(fs.store, &in, l)
		if err != nil {
			return read, CastToDriverError(err)
		}
		if blockID == blockstore.NoBlock {
			break
		}

		blockBuf := make([]byte, blockstore.BlockSize)
		if err := fs.store.Read(blockID, blockBuf); err != nil {
			return read, CastToDriverError(err)
		}

		n := min(blockstore.BlockSize-o, remaining-read)
		copy(buf[read:read+n], blockBuf[o:o+n])
		read += n
		pos += int64(n)
	}

	if err := fs.descriptors.SetPosition(fd, pos); err != nil {
		return read, ErrBadFileDescriptor.Wrap(err)
	}
	return read, nil
}

// Write copies len(data) bytes from data into fd's file starting at its
// current position, extending the file and allocating blocks as needed. A
// short write (fewer bytes than requested) means the image ran out of space;
// everything written up to that point is persisted and fileSize reflects it.
func (fs *FS) Write(fd int, data []byte) (int, error) {
	desc, err := fs.descriptors.Get(fd)
	if err != nil {
		return 0, ErrBadFileDescriptor.Wrap(err)
	}
	in, err := fs.inodes.Get(desc.InodeNumber)
	if err != nil {
		return 0, CastToDriverError(err)
	}

	start := desc.FilePosition
	written := 0
	pos := start
	for written < len(data) {
		l := int(pos / blockstore.BlockSize)
		o := int(pos % blockstore.BlockSize)

		blockID, err := blockForWrite(fs.store, &in, l)
		if err != nil {
			return written, CastToDriverError(err)
		}
		if blockID == blockstore.NoBlock {
			break
		}

		n := min(blockstore.BlockSize-o, len(data)-written)
		blockBuf := make([]byte, blockstore.BlockSize)
		if o != 0 || n != blockstore.BlockSize {
			if err := fs.store.Read(blockID, blockBuf); err != nil {
				return written, CastToDriverError(err)
			}
		}
		copy(blockBuf[o:o+n], data[written:written+n])
		if err := fs.store.Write(blockID, blockBuf); err != nil {
			return written, CastToDriverError(err)
		}

		written += n
		pos += int64(n)
	}

	in.FileSize = max32(in.FileSize, int32(start+int64(written)))
	if err := fs.inodes.Put(desc.InodeNumber, in); err != nil {
		return written, CastToDriverError(err)
	}
	if err := fs.descriptors.SetPosition(fd, pos); err != nil {
		return written, ErrBadFileDescriptor.Wrap(err)
	}
	return written, nil
}

// Seek repositions fd and returns the new absolute offset, clamped to
// [0, fileSize].
func (fs *FS) Seek(fd int, offset int64, whence Whence) (int64, error) {
	desc, err := fs.descriptors.Get(fd)
	if err != nil {
		return 0, ErrBadFileDescriptor.Wrap(err)
	}
	in, err := fs.inodes.Get(desc.InodeNumber)
	if err != nil {
		return 0, CastToDriverError(err)
	}

	var target int64
	switch whence {
	case SeekSet:
		target = offset
	case SeekCur:
		target = desc.FilePosition + offset
	case SeekEnd:
		target = int64(in.FileSize) + offset
	default:
		return 0, ErrInvalidArgument.WithMessage("unknown whence value")
	}

	if target < 0 {
		target = 0
	}
	if target > int64(in.FileSize) {
		target = int64(in.FileSize)
	}

	if err := fs.descriptors.SetPosition(fd, target); err != nil {
		return 0, ErrBadFileDescriptor.Wrap(err)
	}
	return target, nil
}

// Remove deletes the file or empty directory at path, freeing its inode and
// data blocks and force-closing every descriptor still pointing at it.
func (fs *FS) Remove(path string) error {
	res, err := fs.resolve(path)
	if err != nil {
		return err
	}

	idx := res.ParentBlock.Lookup(res.FinalName)
	if idx < 0 {
		return ErrNotFound.WithMessage(path)
	}
	entry := res.ParentBlock.Entries[idx]
	inodeNumber := int(entry.InodeNumber)

	target, err := fs.inodes.Get(inodeNumber)
	if err != nil {
		return CastToDriverError(err)
	}

	if target.IsDirectory() {
		children, err := fs.LoadDirectory(target.DirectBlocks[0])
		if err != nil {
			return CastToDriverError(err)
		}
		if children.Count() > 0 {
			return ErrDirectoryNotEmpty.WithMessage(path)
		}
	}

	if err := freeFileData(fs.store, &target); err != nil {
		return CastToDriverError(err)
	}

	if err := fs.inodes.Put(inodeNumber, inode.RawInode{}); err != nil {
		return CastToDriverError(err)
	}
	if err := fs.super.FreeInode(inodeNumber); err != nil {
		return CastToDriverError(err)
	}
	if err := fs.super.Save(fs.store); err != nil {
		return CastToDriverError(err)
	}

	res.ParentBlock.Entries[idx] = dirent.Entry{}
	if err := res.ParentBlock.Save(fs.store, blockstore.BlockID(res.ParentInode.DirectBlocks[0])); err != nil {
		return CastToDriverError(err)
	}

	fs.descriptors.CloseAllForInode(inodeNumber)
	return nil
}

// Move renames/relocates the entry at src to dst. dst's parent directory
// must exist, have a free slot, and not already contain an entry named
// dst's final component. Open descriptors are unaffected since they key on
// inode number, not path.
func (fs *FS) Move(src, dst string) error {
	srcRes, err := fs.resolve(src)
	if err != nil {
		return err
	}
	srcIdx := srcRes.ParentBlock.Lookup(srcRes.FinalName)
	if srcIdx < 0 {
		return ErrNotFound.WithMessage(src)
	}

	dstRes, err := fs.resolve(dst)
	if err != nil {
		return err
	}

	// Moving within the same directory must mutate a single shared block,
	// not two independently-loaded copies of it.
	if dstRes.ParentInodeNumber == srcRes.ParentInodeNumber {
		dstRes.ParentBlock = srcRes.ParentBlock
	}

	slot, err := dstRes.ParentBlock.FindFreeSlot(dstRes.FinalName)
	if err != nil {
		if errors.Is(err, dirent.ErrNameExists) {
			return ErrExists.Wrap(err)
		}
		return ErrDirectoryFull.Wrap(err)
	}

	entry := srcRes.ParentBlock.Entries[srcIdx]
	if err := dstRes.ParentBlock.Entries[slot].SetName(dstRes.FinalName); err != nil {
		return ErrNameTooLong.Wrap(err)
	}
	dstRes.ParentBlock.Entries[slot].InodeNumber = entry.InodeNumber
	dstRes.ParentBlock.Entries[slot].Type = entry.Type

	srcRes.ParentBlock.Entries[srcIdx] = dirent.Entry{}

	if err := dstRes.ParentBlock.Save(fs.store, blockstore.BlockID(dstRes.ParentInode.DirectBlocks[0])); err != nil {
		return CastToDriverError(err)
	}
	if dstRes.ParentInodeNumber != srcRes.ParentInodeNumber {
		if err := srcRes.ParentBlock.Save(fs.store, blockstore.BlockID(srcRes.ParentInode.DirectBlocks[0])); err != nil {
			return CastToDriverError(err)
		}
	}
	return nil
}
