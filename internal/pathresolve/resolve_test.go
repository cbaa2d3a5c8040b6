package pathresolve_test

import (
	"testing"

	"github.com/dargueta/blockfs/internal/blockstore"
	"github.com/dargueta/blockfs/internal/dirent"
	"github.com/dargueta/blockfs/internal/inode"
	"github.com/dargueta/blockfs/internal/pathresolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dirLoader struct {
	store *blockstore.Store
}

func (d dirLoader) LoadDirectory(blockID uint16) (*dirent.Block, error) {
	return dirent.Load(d.store, blockstore.BlockID(blockID))
}

// buildFixture sets up a root directory containing one subdirectory "sub",
// which itself contains a file "leaf.txt".
func buildFixture(t *testing.T) (*inode.Table, dirLoader) {
	t.Helper()
	store := blockstore.Create()
	require.NoError(t, store.Request(blockstore.BlockID(inode.SuperblockBlock)))
	table := inode.NewTable(store)

	rootBlockID := store.Allocate()
	require.NotEqual(t, blockstore.NoBlock, rootBlockID)

	subInodeNum := 1
	subBlockID := store.Allocate()
	require.NotEqual(t, blockstore.NoBlock, subBlockID)

	leafInodeNum := 2

	rootBlock := &dirent.Block{}
	require.NoError(t, rootBlock.Entries[0].SetName("sub"))
	rootBlock.Entries[0].InodeNumber = uint8(subInodeNum)
	rootBlock.Entries[0].Type = dirent.EntryTypeDirectory
	require.NoError(t, rootBlock.Save(store, rootBlockID))

	subBlock := &dirent.Block{}
	require.NoError(t, subBlock.Entries[0].SetName("leaf.txt"))
	subBlock.Entries[0].InodeNumber = uint8(leafInodeNum)
	subBlock.Entries[0].Type = dirent.EntryTypeFile
	require.NoError(t, subBlock.Save(store, subBlockID))

	rootInode := inode.RawInode{FileMode: inode.ModeDirectory, FileSize: blockstore.BlockSize}
	rootInode.DirectBlocks[0] = uint16(rootBlockID)
	require.NoError(t, table.Put(inode.RootInode, rootInode))

	subInode := inode.RawInode{FileMode: inode.ModeDirectory, FileSize: blockstore.BlockSize}
	subInode.DirectBlocks[0] = uint16(subBlockID)
	require.NoError(t, table.Put(subInodeNum, subInode))

	leafInode := inode.RawInode{FileMode: inode.ModeRegular}
	require.NoError(t, table.Put(leafInodeNum, leafInode))

	return table, dirLoader{store: store}
}

func TestResolve_TopLevel(t *testing.T) {
	table, dirs := buildFixture(t)
	res, err := pathresolve.Resolve(table, dirs, "/sub")
	require.NoError(t, err)
	assert.Equal(t, inode.RootInode, res.ParentInodeNumber)
	assert.Equal(t, "sub", res.FinalName)
}

func TestResolve_Nested(t *testing.T) {
	table, dirs := buildFixture(t)
	res, err := pathresolve.Resolve(table, dirs, "/sub/leaf.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ParentInodeNumber)
	assert.Equal(t, "leaf.txt", res.FinalName)
	assert.Equal(t, 0, res.ParentBlock.Lookup("leaf.txt"))
}

func TestResolve_MissingIntermediateFails(t *testing.T) {
	table, dirs := buildFixture(t)
	_, err := pathresolve.Resolve(table, dirs, "/nope/leaf.txt")
	assert.Error(t, err)
}

func TestResolve_IntermediateNotADirectoryFails(t *testing.T) {
	table, dirs := buildFixture(t)
	_, err := pathresolve.Resolve(table, dirs, "/sub/leaf.txt/more")
	assert.Error(t, err)
}

func TestResolve_RelativePathFails(t *testing.T) {
	table, dirs := buildFixture(t)
	_, err := pathresolve.Resolve(table, dirs, "sub/leaf.txt")
	assert.Error(t, err)
}

func TestResolve_RootOnlyFails(t *testing.T) {
	table, dirs := buildFixture(t)
	_, err := pathresolve.Resolve(table, dirs, "/")
	assert.Error(t, err)
}

func TestResolve_ComponentTooLongFails(t *testing.T) {
	table, dirs := buildFixture(t)
	longName := make([]byte, dirent.MaxNameLength+1)
	for i := range longName {
		longName[i] = 'x'
	}
	_, err := pathresolve.Resolve(table, dirs, "/"+string(longName))
	assert.Error(t, err)
}
