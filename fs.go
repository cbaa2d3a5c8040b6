package blockfs

import (
	"errors"
	"time"

	"github.com/dargueta/blockfs/internal/blockstore"
	"github.com/dargueta/blockfs/internal/descriptor"
	"github.com/dargueta/blockfs/internal/dirent"
	"github.com/dargueta/blockfs/internal/inode"
	"github.com/dargueta/blockfs/internal/pathresolve"
)

// FileKind distinguishes the two object types a blockfs image can hold.
type FileKind int

const (
	KindRegular FileKind = iota
	KindDirectory
)

// DirEntry is one entry returned by GetDir.
type DirEntry struct {
	Name        string
	InodeNumber int
	Kind        FileKind
}

// FS is a mounted blockfs image: the block store, inode table, superblock,
// and the runtime descriptor table layered on top of them. FS has no
// internal locking: it is single-threaded, and one *FS must not be used from
// several goroutines at once without external synchronization.
type FS struct {
	store       *blockstore.Store
	inodes      *inode.Table
	super       *inode.Superblock
	descriptors *descriptor.Table
	path        string
}

func kindFromKindFlag(dirKind bool) FileKind {
	if dirKind {
		return KindDirectory
	}
	return KindRegular
}

func entryTypeFor(kind FileKind) uint8 {
	if kind == KindDirectory {
		return dirent.EntryTypeDirectory
	}
	return dirent.EntryTypeFile
}

// Format creates a fresh image at path, lays down the superblock, inode
// table, and root directory, and returns it mounted and ready for use.
func Format(path string) (*FS, error) {
	if path == "" {
		return nil, ErrInvalidArgument.WithMessage("path must not be empty")
	}

	store := blockstore.Create()
	if err := store.Request(blockstore.BlockID(inode.SuperblockBlock)); err != nil {
		return nil, CastToDriverError(err)
	}
	for b := inode.TableStartBlock; b < inode.TableStartBlock+inode.TableBlocks; b++ {
		if err := store.Request(blockstore.BlockID(b)); err != nil {
			return nil, CastToDriverError(err)
		}
	}

	rootBlockID := store.Allocate()
	if rootBlockID == blockstore.NoBlock {
		return nil, ErrNoSpace.WithMessage("could not allocate root directory block")
	}

	rootDir := &dirent.Block{}
	if err := rootDir.Save(store, rootBlockID); err != nil {
		return nil, CastToDriverError(err)
	}

	inodes := inode.NewTable(store)
	now := time.Now().Unix()
	root := inode.RawInode{
		FileSize:         blockstore.BlockSize,
		FileMode:         inode.ModeDirectory,
		LinkCount:        1,
		ChangeTime:       now,
		ModificationTime: now,
		AccessTime:       now,
	}
	root.DirectBlocks[0] = uint16(rootBlockID)
	if err := inodes.Put(inode.RootInode, root); err != nil {
		return nil, CastToDriverError(err)
	}

	super, err := inode.NewSuperblock(store.FreeBlocks(), store.TotalBlocksCount())
	if err != nil {
		return nil, CastToDriverError(err)
	}
	if err := super.Save(store); err != nil {
		return nil, CastToDriverError(err)
	}

	fs := &FS{
		store:       store,
		inodes:      inodes,
		super:       super,
		descriptors: descriptor.New(),
		path:        path,
	}
	if err := fs.Serialize(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Mount opens an existing image file at path.
func Mount(path string) (*FS, error) {
	if path == "" {
		return nil, ErrInvalidArgument.WithMessage("path must not be empty")
	}

	store, err := blockstore.Open(path)
	if err != nil {
		return nil, ErrIOFailed.Wrap(err)
	}
	super, err := inode.Load(store)
	if err != nil {
		return nil, CastToDriverError(err)
	}

	return &FS{
		store:       store,
		inodes:      inode.NewTable(store),
		super:       super,
		descriptors: descriptor.New(),
		path:        path,
	}, nil
}

// Serialize persists the current in-memory image state back to its host
// file, including the superblock.
func (fs *FS) Serialize() error {
	if err := fs.super.Save(fs.store); err != nil {
		return CastToDriverError(err)
	}
	if err := fs.store.Serialize(fs.path); err != nil {
		return ErrIOFailed.Wrap(err)
	}
	return nil
}

// Unmount persists the image to disk. It does not reset the handle; using fs
// after Unmount returns is undefined.
func (fs *FS) Unmount() error {
	return fs.Serialize()
}

// FreeBlocks returns the number of data blocks currently unallocated in the
// underlying image.
func (fs *FS) FreeBlocks() uint64 {
	return fs.store.FreeBlocks()
}

// LoadDirectory implements pathresolve.DirBlockReader.
func (fs *FS) LoadDirectory(blockID uint16) (*dirent.Block, error) {
	return dirent.Load(fs.store, blockstore.BlockID(blockID))
}

func (fs *FS) resolve(path string) (pathresolve.Result, error) {
	res, err := pathresolve.Resolve(fs.inodes, fs, path)
	if err == nil {
		return res, nil
	}

	switch {
	case errors.Is(err, pathresolve.ErrMalformed):
		return pathresolve.Result{}, ErrInvalidArgument.Wrap(err)
	case errors.Is(err, pathresolve.ErrComponentTooLong):
		return pathresolve.Result{}, ErrNameTooLong.Wrap(err)
	case errors.Is(err, pathresolve.ErrComponentMissing):
		return pathresolve.Result{}, ErrNotFound.Wrap(err)
	case errors.Is(err, pathresolve.ErrNotADirectory):
		return pathresolve.Result{}, ErrNotADirectory.Wrap(err)
	default:
		return pathresolve.Result{}, CastToDriverError(err)
	}
}

// Create makes a new regular file or directory at path. The parent
// directory must already exist and have a free slot.
func (fs *FS) Create(path string, kind FileKind) error {
	res, err := fs.resolve(path)
	if err != nil {
		return err
	}

	slot, err := res.ParentBlock.FindFreeSlot(res.FinalName)
	if err != nil {
		if errors.Is(err, dirent.ErrNameExists) {
			return ErrExists.Wrap(err)
		}
		return ErrDirectoryFull.Wrap(err)
	}

	inodeNumber, err := fs.super.AllocateInode()
	if err != nil {
		return ErrNoInodes.Wrap(err)
	}

	now := time.Now().Unix()
	newInode := inode.RawInode{
		FileMode:         inode.ModeRegular,
		LinkCount:        1,
		ChangeTime:       now,
		ModificationTime: now,
		AccessTime:       now,
	}

	if kind == KindDirectory {
		blockID := fs.store.Allocate()
		if blockID == blockstore.NoBlock {
			_ = fs.super.FreeInode(inodeNumber)
			return ErrNoSpace
		}
		if err := (&dirent.Block{}).Save(fs.store, blockID); err != nil {
			return CastToDriverError(err)
		}
		newInode.FileMode = inode.ModeDirectory
		newInode.FileSize = blockstore.BlockSize
		newInode.DirectBlocks[0] = uint16(blockID)
	}

	if err := fs.inodes.Put(inodeNumber, newInode); err != nil {
		return CastToDriverError(err)
	}

	if err := res.ParentBlock.Entries[slot].SetName(res.FinalName); err != nil {
		return ErrNameTooLong.Wrap(err)
	}
	res.ParentBlock.Entries[slot].InodeNumber = uint8(inodeNumber)
	res.ParentBlock.Entries[slot].Type = entryTypeFor(kind)

	if err := res.ParentBlock.Save(fs.store, blockstore.BlockID(res.ParentInode.DirectBlocks[0])); err != nil {
		return CastToDriverError(err)
	}
	return fs.super.Save(fs.store)
}

// Open opens the regular file at path for reading and writing, returning a
// file descriptor positioned at the start of the file.
func (fs *FS) Open(path string) (int, error) {
	res, err := fs.resolve(path)
	if err != nil {
		return -1, err
	}

	idx := res.ParentBlock.Lookup(res.FinalName)
	if idx < 0 {
		return -1, ErrNotFound.WithMessage(path)
	}
	entry := res.ParentBlock.Entries[idx]
	if entry.Type == dirent.EntryTypeDirectory {
		return -1, ErrIsADirectory.WithMessage(path)
	}

	fd := fs.descriptors.Open(int(entry.InodeNumber))
	if fd == descriptor.NoDescriptor {
		return -1, ErrTooManyOpenFiles
	}
	return fd, nil
}

// Close releases fd.
func (fs *FS) Close(fd int) error {
	if err := fs.descriptors.Close(fd); err != nil {
		return ErrBadFileDescriptor.Wrap(err)
	}
	return nil
}

// GetDir returns the entries of the directory at path.
func (fs *FS) GetDir(path string) ([]DirEntry, error) {
	var block *dirent.Block
	var err error

	if path == "/" {
		root, getErr := fs.inodes.Get(inode.RootInode)
		if getErr != nil {
			return nil, CastToDriverError(getErr)
		}
		block, err = fs.LoadDirectory(root.DirectBlocks[0])
	} else {
		var res pathresolve.Result
		res, err = fs.resolve(path)
		if err != nil {
			return nil, err
		}
		idx := res.ParentBlock.Lookup(res.FinalName)
		if idx < 0 {
			return nil, ErrNotFound.WithMessage(path)
		}
		entry := res.ParentBlock.Entries[idx]
		if entry.Type != dirent.EntryTypeDirectory {
			return nil, ErrNotADirectory.WithMessage(path)
		}
		targetInode, getErr := fs.inodes.Get(int(entry.InodeNumber))
		if getErr != nil {
			return nil, CastToDriverError(getErr)
		}
		block, err = fs.LoadDirectory(targetInode.DirectBlocks[0])
	}
	if err != nil {
		return nil, CastToDriverError(err)
	}

	var out []DirEntry
	for i := range block.Entries {
		if block.Entries[i].IsEmpty() {
			continue
		}
		out = append(out, DirEntry{
			Name:        block.Entries[i].NameString(),
			InodeNumber: int(block.Entries[i].InodeNumber),
			Kind:        kindFromKindFlag(block.Entries[i].Type == dirent.EntryTypeDirectory),
		})
	}
	return out, nil
}
