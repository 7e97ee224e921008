// Package backend defines the minimal storage abstraction the OCFL core
// reads and writes through. Concrete backends live in backend/local (plain
// filesystem) and backend/cloud (S3-compatible object stores via
// gocloud.dev/blob).
package backend

import (
	"context"
	"io"
	"io/fs"
)

// FS is a read-only view over a tree of named, forward-slash-separated
// paths, all relative to some implementation-defined root.
type FS interface {
	// OpenFile opens the named file for reading. It returns an error
	// wrapping fs.ErrNotExist if name does not exist, and must not return a
	// directory.
	OpenFile(ctx context.Context, name string) (fs.File, error)

	// DirEntries lists the immediate children of the named directory in
	// sorted order. A missing directory yields an empty slice, not an
	// error.
	DirEntries(ctx context.Context, name string) ([]fs.DirEntry, error)
}

// WriteFS is an FS that also supports mutation.
type WriteFS interface {
	FS

	// Write creates or overwrites the named file with the contents of r,
	// creating any intermediate directories.
	Write(ctx context.Context, name string, r io.Reader) (int64, error)

	// WriteNew behaves like Write but fails with an error wrapping
	// ErrExist if name already exists. Implementations must make the
	// existence check and the create atomic with respect to other callers
	// of WriteNew on the same backend.
	WriteNew(ctx context.Context, name string, r io.Reader) (int64, error)

	// Rename moves src to dst, replacing dst if present. backend/local uses
	// one atomic os.Rename and fails across volumes rather than falling
	// back to copy-then-delete; backend/cloud copies the object, then
	// deletes the original.
	Rename(ctx context.Context, src, dst string) error

	// Remove deletes the named file.
	Remove(ctx context.Context, name string) error

	// RemoveAll recursively deletes the named directory and its contents.
	// Removing a path that doesn't exist is not an error.
	RemoveAll(ctx context.Context, name string) error
}

// CopyFS is a WriteFS that can copy within itself without a round trip
// through the caller.
type CopyFS interface {
	WriteFS
	Copy(ctx context.Context, dst, src string) (int64, error)
}

// Copy copies src (read through srcFS) to dst (written through dstFS),
// using srcFS's native Copy when both refer to the same backend.
func Copy(ctx context.Context, dstFS WriteFS, dst string, srcFS FS, src string) (int64, error) {
	if cp, ok := dstFS.(CopyFS); ok && FS(cp) == srcFS {
		return cp.Copy(ctx, dst, src)
	}
	f, err := srcFS.OpenFile(ctx, src)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return dstFS.Write(ctx, dst, f)
}

// ReadAll reads the full contents of the named file.
func ReadAll(ctx context.Context, fsys FS, name string) ([]byte, error) {
	f, err := fsys.OpenFile(ctx, name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Exists reports whether name can be opened for reading.
func Exists(ctx context.Context, fsys FS, name string) bool {
	f, err := fsys.OpenFile(ctx, name)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
