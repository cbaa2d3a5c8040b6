package blockfs

// Sentinel errors, one per error kind in the spec's taxonomy: argument,
// not-found, wrong-type, capacity, state, and I/O errors.

// Argument errors.
const ErrInvalidArgument = DiskoError("invalid argument")
const ErrNameTooLong = DiskoError("name too long")

// Not-found errors.
const ErrNotFound = DiskoError("no such file or directory")

// Wrong-type errors.
const ErrIsADirectory = DiskoError("is a directory")
const ErrNotADirectory = DiskoError("not a directory")

// Capacity errors.
const ErrExists = DiskoError("file exists")
const ErrNoInodes = DiskoError("no free inodes")
const ErrNoSpace = DiskoError("no space left on device")
const ErrDirectoryFull = DiskoError("directory is full")
const ErrTooManyOpenFiles = DiskoError("too many open files")

// State errors.
const ErrBadFileDescriptor = DiskoError("bad file descriptor")
const ErrIsRoot = DiskoError("operation not permitted on root directory")
const ErrDirectoryNotEmpty = DiskoError("directory not empty")
const ErrNotMounted = DiskoError("file system is not mounted")
const ErrAlreadyMounted = DiskoError("file system is already mounted")

// I/O errors.
const ErrIOFailed = DiskoError("input/output error")
const ErrFileSystemCorrupted = DiskoError("file system structure needs cleaning")
