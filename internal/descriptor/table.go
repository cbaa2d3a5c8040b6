// Package descriptor implements the runtime, per-mount open-file table: 256
// entries of (inode number, byte file-position), bitmap-allocated and never
// persisted to disk.
package descriptor

import (
	"fmt"

	"github.com/dargueta/blockfs/internal/bitmap"
)

// MaxDescriptors is the number of descriptor slots a table holds.
const MaxDescriptors = 256

// NoDescriptor is the sentinel returned by Open on exhaustion.
const NoDescriptor = -1

// Descriptor is one runtime (inode number, position) pair.
type Descriptor struct {
	InodeNumber  int
	FilePosition int64
}

// Table is the volatile open-file table. It holds no reference to an image;
// every Format and Mount starts with a new, empty table.
type Table struct {
	entries [MaxDescriptors]Descriptor
	bitmap  *bitmap.Bitmap
}

// New creates an empty descriptor table.
func New() *Table {
	return &Table{bitmap: bitmap.New(MaxDescriptors)}
}

// Open allocates the lowest-numbered free descriptor pointing at inodeNumber,
// positioned at the start of the file. Returns NoDescriptor on exhaustion.
func (t *Table) Open(inodeNumber int) int {
	fd := t.bitmap.FFZ()
	if fd == bitmap.NotFound {
		return NoDescriptor
	}
	// Can't fail: fd came from FFZ within MaxDescriptors.
	_ = t.bitmap.Set(fd)
	t.entries[fd] = Descriptor{InodeNumber: inodeNumber}
	return fd
}

func (t *Table) checkOpen(fd int) error {
	if fd < 0 || fd >= MaxDescriptors {
		return fmt.Errorf("descriptor: fd %d out of range [0, %d)", fd, MaxDescriptors)
	}
	inUse, err := t.bitmap.Test(fd)
	if err != nil {
		return err
	}
	if !inUse {
		return fmt.Errorf("descriptor: fd %d is not open", fd)
	}
	return nil
}

// Close releases fd. It fails if fd is out of range or not currently open.
func (t *Table) Close(fd int) error {
	if err := t.checkOpen(fd); err != nil {
		return err
	}
	t.entries[fd] = Descriptor{}
	return t.bitmap.Reset(fd)
}

// Get returns the current state of an open descriptor.
func (t *Table) Get(fd int) (Descriptor, error) {
	if err := t.checkOpen(fd); err != nil {
		return Descriptor{}, err
	}
	return t.entries[fd], nil
}

// SetPosition updates fd's file position.
func (t *Table) SetPosition(fd int, pos int64) error {
	if err := t.checkOpen(fd); err != nil {
		return err
	}
	t.entries[fd].FilePosition = pos
	return nil
}

// CloseAllForInode force-closes every descriptor currently pointing at
// inodeNumber, as required when that inode is removed.
func (t *Table) CloseAllForInode(inodeNumber int) {
	for fd := 0; fd < MaxDescriptors; fd++ {
		inUse, err := t.bitmap.Test(fd)
		if err != nil || !inUse {
			continue
		}
		if t.entries[fd].InodeNumber == inodeNumber {
			t.entries[fd] = Descriptor{}
			_ = t.bitmap.Reset(fd)
		}
	}
}
