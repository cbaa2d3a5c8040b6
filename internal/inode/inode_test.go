package inode_test

import (
	"testing"

	"github.com/dargueta/blockfs/internal/blockstore"
	"github.com/dargueta/blockfs/internal/inode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	raw := inode.RawInode{
		FileSize:            1234,
		DeviceID:            1,
		UserID:              2,
		GroupID:             3,
		FileMode:            inode.ModeRegular,
		LinkCount:           1,
		ChangeTime:          100,
		ModificationTime:    200,
		AccessTime:          300,
		DirectBlocks:        [6]uint16{1, 2, 3, 4, 5, 6},
		IndirectBlock:       7,
		DoubleIndirectBlock: 8,
	}

	encoded := inode.Encode(raw)
	assert.Len(t, encoded, inode.Size)

	decoded, err := inode.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestIsDirectory(t *testing.T) {
	dir := inode.RawInode{FileMode: inode.ModeDirectory}
	file := inode.RawInode{FileMode: inode.ModeRegular}
	assert.True(t, dir.IsDirectory())
	assert.False(t, file.IsDirectory())
}

func TestTable_GetPut_RoundTrip(t *testing.T) {
	store := blockstore.Create()
	table := inode.NewTable(store)

	raw := inode.RawInode{FileSize: 512, FileMode: inode.ModeDirectory}
	require.NoError(t, table.Put(0, raw))
	require.NoError(t, table.Put(9, inode.RawInode{FileMode: inode.ModeRegular, FileSize: 42}))

	got, err := table.Get(0)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got9, err := table.Get(9)
	require.NoError(t, err)
	assert.EqualValues(t, 42, got9.FileSize)

	// Writing inode 9 must not disturb its neighbours in the same block.
	got8, err := table.Get(8)
	require.NoError(t, err)
	assert.Equal(t, inode.RawInode{}, got8)
}

func TestTable_OutOfRange(t *testing.T) {
	store := blockstore.Create()
	table := inode.NewTable(store)
	_, err := table.Get(inode.MaxInodes)
	assert.Error(t, err)
	assert.Error(t, table.Put(-1, inode.RawInode{}))
}

func TestSuperblock_RootBitSetAtCreation(t *testing.T) {
	sb, err := inode.NewSuperblock(1000, 65536)
	require.NoError(t, err)

	set, err := sb.Bitmap().Test(inode.RootInode)
	require.NoError(t, err)
	assert.True(t, set)
}

func TestSuperblock_AllocateAndFreeInode(t *testing.T) {
	sb, err := inode.NewSuperblock(1000, 65536)
	require.NoError(t, err)

	first, err := sb.AllocateInode()
	require.NoError(t, err)
	assert.Equal(t, 1, first, "root inode 0 is already taken")

	require.NoError(t, sb.FreeInode(first))
	set, err := sb.Bitmap().Test(first)
	require.NoError(t, err)
	assert.False(t, set)
}

func TestSuperblock_RootCannotBeFreed(t *testing.T) {
	sb, err := inode.NewSuperblock(1000, 65536)
	require.NoError(t, err)
	assert.Error(t, sb.FreeInode(inode.RootInode))
}

func TestSuperblock_EncodeDecode_RoundTrip(t *testing.T) {
	sb, err := inode.NewSuperblock(999, 65536)
	require.NoError(t, err)
	_, err = sb.AllocateInode()
	require.NoError(t, err)

	encoded := sb.Encode()
	assert.Len(t, encoded, blockstore.BlockSize)

	decoded, err := inode.DecodeSuperblock(encoded)
	require.NoError(t, err)
	assert.Equal(t, sb.FreeBlocks, decoded.FreeBlocks)
	assert.Equal(t, sb.TotalBlocks, decoded.TotalBlocks)

	set0, _ := decoded.Bitmap().Test(0)
	set1, _ := decoded.Bitmap().Test(1)
	assert.True(t, set0)
	assert.True(t, set1)
}

func TestSuperblock_LoadSave_RoundTrip(t *testing.T) {
	store := blockstore.Create()
	sb, err := inode.NewSuperblock(store.FreeBlocks(), store.TotalBlocksCount())
	require.NoError(t, err)
	require.NoError(t, sb.Save(store))

	reloaded, err := inode.Load(store)
	require.NoError(t, err)
	assert.Equal(t, sb.FreeBlocks, reloaded.FreeBlocks)
	assert.Equal(t, sb.TotalBlocks, reloaded.TotalBlocks)
}
