package blockstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dargueta/blockfs/internal/blockstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_ReservesFBMBlocks(t *testing.T) {
	store := blockstore.Create()
	assert.Equal(t, uint64(blockstore.TotalBlocks-blockstore.FBMBlockCount), store.FreeBlocks())
}

func TestRequest_PinsSuperblock(t *testing.T) {
	store := blockstore.Create()
	require.NoError(t, store.Request(0))
	assert.Error(t, store.Request(0), "requesting an already-allocated block must fail")
}

func TestRequest_RejectsReservedRange(t *testing.T) {
	store := blockstore.Create()
	assert.Error(t, store.Request(blockstore.FBMStartBlock))
}

func TestAllocateAndRelease(t *testing.T) {
	store := blockstore.Create()
	require.NoError(t, store.Request(0))

	id := store.Allocate()
	assert.NotEqual(t, blockstore.NoBlock, id)

	before := store.FreeBlocks()
	require.NoError(t, store.Release(id))
	assert.Equal(t, before+1, store.FreeBlocks())
}

func TestAllocate_ExhaustionReturnsSentinel(t *testing.T) {
	store := blockstore.Create()
	for {
		id := store.Allocate()
		if id == blockstore.NoBlock {
			break
		}
	}
	assert.Equal(t, blockstore.NoBlock, store.Allocate())
}

func TestReadWriteRoundTrip(t *testing.T) {
	store := blockstore.Create()
	id := store.Allocate()
	require.NotEqual(t, blockstore.NoBlock, id)

	src := make([]byte, blockstore.BlockSize)
	for i := range src {
		src[i] = byte(i)
	}
	require.NoError(t, store.Write(id, src))

	dst := make([]byte, blockstore.BlockSize)
	require.NoError(t, store.Read(id, dst))
	assert.Equal(t, src, dst)
}

func TestSerializeAndOpen_RoundTrip(t *testing.T) {
	store := blockstore.Create()
	id := store.Allocate()
	require.NotEqual(t, blockstore.NoBlock, id)

	payload := []byte("hello, blockfs")
	buf := make([]byte, blockstore.BlockSize)
	copy(buf, payload)
	require.NoError(t, store.Write(id, buf))

	path := filepath.Join(t.TempDir(), "image.bin")
	require.NoError(t, store.Serialize(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, blockstore.ImageSize, info.Size())

	reopened, err := blockstore.Open(path)
	require.NoError(t, err)

	dst := make([]byte, blockstore.BlockSize)
	require.NoError(t, reopened.Read(id, dst))
	assert.Equal(t, buf, dst)
	assert.Equal(t, store.FreeBlocks(), reopened.FreeBlocks())
}

func TestOutOfRangeBlockIDFails(t *testing.T) {
	store := blockstore.Create()
	buf := make([]byte, blockstore.BlockSize)
	assert.Error(t, store.Read(blockstore.TotalBlocks, buf))
	assert.Error(t, store.Write(blockstore.TotalBlocks, buf))
}
