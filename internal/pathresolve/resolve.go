// Package pathresolve walks an absolute path down to its parent directory,
// leaving the final component's existence check to the caller so it can
// decide between create and lookup semantics.
package pathresolve

import (
	"fmt"
	"strings"

	"github.com/dargueta/blockfs/internal/dirent"
	"github.com/dargueta/blockfs/internal/inode"
	"github.com/hashicorp/go-multierror"
)

// InodeTable is the subset of inode.Table that resolution needs.
type InodeTable interface {
	Get(i int) (inode.RawInode, error)
}

// DirBlockReader is the subset of the directory layer resolution needs.
type DirBlockReader interface {
	LoadDirectory(blockID uint16) (*dirent.Block, error)
}

// Sentinel errors distinguishing the failure kinds spec.md's path resolver
// calls out, so callers can map each onto the right blockfs error kind
// instead of collapsing everything into "not found".
var (
	ErrMalformed       = fmt.Errorf("pathresolve: malformed path")
	ErrComponentTooLong = fmt.Errorf("pathresolve: path component too long")
	ErrComponentMissing = fmt.Errorf("pathresolve: path component missing")
	ErrNotADirectory    = fmt.Errorf("pathresolve: path component is not a directory")
)

// Result is what Resolve hands back: the resolved parent directory's inode
// and its sole directory block, plus the unresolved final path component.
type Result struct {
	ParentInodeNumber int
	ParentInode       inode.RawInode
	ParentBlock       *dirent.Block
	FinalName         string
}

// Resolve walks path, which must be absolute and non-empty, down to its
// parent directory. The final path component is returned unresolved -
// callers decide whether it must exist (open) or must not (create).
func Resolve(table InodeTable, dirs DirBlockReader, path string) (Result, error) {
	if !strings.HasPrefix(path, "/") {
		return Result{}, fmt.Errorf("%w: %q must be absolute", ErrMalformed, path)
	}
	if path == "/" {
		return Result{}, fmt.Errorf("%w: %q has no final component", ErrMalformed, path)
	}

	components := strings.Split(strings.TrimPrefix(path, "/"), "/")

	// Every component is checked before any lookup happens, so a path with
	// several bad components reports all of them instead of just the first.
	var problems *multierror.Error
	for _, c := range components {
		if c == "" {
			problems = multierror.Append(problems, fmt.Errorf("%w: %q contains an empty component", ErrMalformed, path))
			continue
		}
		if len(c) > dirent.MaxNameLength {
			problems = multierror.Append(problems, fmt.Errorf("%w: %q longer than %d bytes", ErrComponentTooLong, c, dirent.MaxNameLength))
		}
	}
	if problems.ErrorOrNil() != nil {
		return Result{}, problems
	}

	parentInodeNumber := inode.RootInode
	parentInode, err := table.Get(parentInodeNumber)
	if err != nil {
		return Result{}, err
	}
	parentBlock, err := dirs.LoadDirectory(parentInode.DirectBlocks[0])
	if err != nil {
		return Result{}, err
	}

	// Every component but the last must resolve to an existing directory.
	for _, c := range components[:len(components)-1] {
		idx := parentBlock.Lookup(c)
		if idx < 0 {
			return Result{}, fmt.Errorf("%w: %q", ErrComponentMissing, c)
		}

		nextInodeNumber := int(parentBlock.Entries[idx].InodeNumber)
		nextInode, err := table.Get(nextInodeNumber)
		if err != nil {
			return Result{}, err
		}
		if !nextInode.IsDirectory() {
			return Result{}, fmt.Errorf("%w: %q", ErrNotADirectory, c)
		}

		nextBlock, err := dirs.LoadDirectory(nextInode.DirectBlocks[0])
		if err != nil {
			return Result{}, err
		}

		parentInodeNumber = nextInodeNumber
		parentInode = nextInode
		parentBlock = nextBlock
	}

	return Result{
		ParentInodeNumber: parentInodeNumber,
		ParentInode:       parentInode,
		ParentBlock:       parentBlock,
		FinalName:         components[len(components)-1],
	}, nil
}
