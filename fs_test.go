package blockfs_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/dargueta/blockfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imagePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "image.bin")
}

func TestFormatMount_RootStartsEmpty(t *testing.T) {
	fs, err := blockfs.Format(imagePath(t))
	require.NoError(t, err)

	entries, err := fs.GetDir("/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateWriteReadRoundTrip(t *testing.T) {
	fs, err := blockfs.Format(imagePath(t))
	require.NoError(t, err)

	require.NoError(t, fs.Create("/a", blockfs.KindDirectory))
	require.NoError(t, fs.Create("/a/b", blockfs.KindRegular))

	fd, err := fs.Open("/a/b")
	require.NoError(t, err)

	n, err := fs.Write(fd, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = fs.Seek(fd, 0, blockfs.SeekSet)
	require.NoError(t, err)

	buf := make([]byte, 5)
	n, err = fs.Read(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))
}

func TestLargeWriteExercisesIndirectBlocks(t *testing.T) {
	fs, err := blockfs.Format(imagePath(t))
	require.NoError(t, err)
	require.NoError(t, fs.Create("/x", blockfs.KindRegular))

	fd, err := fs.Open("/x")
	require.NoError(t, err)

	const size = 1 << 20 // 1 MiB, exercises single- and double-indirect blocks.
	pattern := make([]byte, size)
	for i := range pattern {
		pattern[i] = byte(i % 251)
	}

	n, err := fs.Write(fd, pattern)
	require.NoError(t, err)
	assert.Equal(t, size, n)

	_, err = fs.Seek(fd, 300000, blockfs.SeekSet)
	require.NoError(t, err)

	buf := make([]byte, 700)
	n, err = fs.Read(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, 700, n)
	assert.True(t, bytes.Equal(buf, pattern[300000:300700]))
}

func TestDirectoryCapacity(t *testing.T) {
	fs, err := blockfs.Format(imagePath(t))
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		require.NoError(t, fs.Create("/f"+string(rune('0'+i)), blockfs.KindRegular))
	}
	assert.Error(t, fs.Create("/overflow", blockfs.KindRegular))

	require.NoError(t, fs.Remove("/f0"))
	assert.NoError(t, fs.Create("/overflow", blockfs.KindRegular))
}

func TestRemoveNonEmptyDirectoryFails(t *testing.T) {
	fs, err := blockfs.Format(imagePath(t))
	require.NoError(t, err)

	require.NoError(t, fs.Create("/d", blockfs.KindDirectory))
	require.NoError(t, fs.Create("/d/f", blockfs.KindRegular))

	assert.Error(t, fs.Remove("/d"))
	require.NoError(t, fs.Remove("/d/f"))
	assert.NoError(t, fs.Remove("/d"))
}

func TestDoubleOpenCloseAndRemoveForceCloses(t *testing.T) {
	fs, err := blockfs.Format(imagePath(t))
	require.NoError(t, err)
	require.NoError(t, fs.Create("/x", blockfs.KindRegular))

	fd1, err := fs.Open("/x")
	require.NoError(t, err)
	fd2, err := fs.Open("/x")
	require.NoError(t, err)

	require.NoError(t, fs.Close(fd1))

	_, err = fs.Write(fd2, []byte("still works"))
	require.NoError(t, err)

	require.NoError(t, fs.Remove("/x"))

	_, err = fs.Write(fd2, []byte("nope"))
	assert.Error(t, err)
	assert.Error(t, fs.Close(fd2))
}

func TestFreeBlocksReturnToBaselineAfterRemove(t *testing.T) {
	fs, err := blockfs.Format(imagePath(t))
	require.NoError(t, err)
	baseline := fs.FreeBlocks()

	require.NoError(t, fs.Create("/a", blockfs.KindDirectory))
	require.NoError(t, fs.Create("/a/b", blockfs.KindRegular))
	fd, err := fs.Open("/a/b")
	require.NoError(t, err)
	_, err = fs.Write(fd, bytes.Repeat([]byte{1}, 4096))
	require.NoError(t, err)
	require.NoError(t, fs.Close(fd))

	require.Less(t, fs.FreeBlocks(), baseline)

	require.NoError(t, fs.Remove("/a/b"))
	require.NoError(t, fs.Remove("/a"))

	entries, err := fs.GetDir("/")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, baseline, fs.FreeBlocks())
}

func TestMove_RenameWithinSameDirectory(t *testing.T) {
	fs, err := blockfs.Format(imagePath(t))
	require.NoError(t, err)
	require.NoError(t, fs.Create("/old.txt", blockfs.KindRegular))

	require.NoError(t, fs.Move("/old.txt", "/new.txt"))

	_, err = fs.Open("/old.txt")
	assert.Error(t, err)
	_, err = fs.Open("/new.txt")
	assert.NoError(t, err)
}

func TestMove_AcrossDirectories(t *testing.T) {
	fs, err := blockfs.Format(imagePath(t))
	require.NoError(t, err)
	require.NoError(t, fs.Create("/src", blockfs.KindDirectory))
	require.NoError(t, fs.Create("/dst", blockfs.KindDirectory))
	require.NoError(t, fs.Create("/src/f", blockfs.KindRegular))

	require.NoError(t, fs.Move("/src/f", "/dst/f"))

	entries, err := fs.GetDir("/src")
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = fs.GetDir("/dst")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "f", entries[0].Name)
}

func TestMountReopensFormattedImage(t *testing.T) {
	path := imagePath(t)
	fs, err := blockfs.Format(path)
	require.NoError(t, err)
	require.NoError(t, fs.Create("/hello", blockfs.KindRegular))
	require.NoError(t, fs.Unmount())

	reopened, err := blockfs.Mount(path)
	require.NoError(t, err)
	entries, err := reopened.GetDir("/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].Name)
}
