// Package blockfs implements a single-file, inode-based filesystem image.
//
// An image is one fixed-size host file: a superblock, an inode table, a
// directory layer built on top of regular inodes, a direct/indirect/
// double-indirect data-block addressing scheme, and a runtime descriptor
// table for open files. Format creates a fresh image; Mount reopens an
// existing one. Every other operation - Create, Open, Close, Read, Write,
// Seek, Remove, Move, GetDir - mirrors the POSIX operation of the same
// name, scoped to what a single mounted image needs.
package blockfs
