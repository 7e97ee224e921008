// Package local implements backend.WriteFS over a plain OS directory tree.
package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"

	"github.com/ocflkit/ocfl/backend"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// FS is a backend.CopyFS rooted at an absolute OS path.
type FS struct {
	root string
}

var (
	_ backend.FS     = (*FS)(nil)
	_ backend.WriteFS = (*FS)(nil)
	_ backend.CopyFS  = (*FS)(nil)
)

// NewFS returns an FS rooted at root, creating it if it doesn't already
// exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("local backend: %w", err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("local backend: %w", err)
	}
	return &FS{root: abs}, nil
}

// Root returns the backend's absolute OS path.
func (fsys *FS) Root() string { return fsys.root }

func (fsys *FS) osPath(name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	return filepath.Join(fsys.root, filepath.FromSlash(name)), nil
}

func (fsys *FS) OpenFile(ctx context.Context, name string) (fs.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := fsys.osPath(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: underlying(err)}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, &fs.PathError{Op: "open", Path: name, Err: fmt.Errorf("is a directory")}
	}
	return f, nil
}

func (fsys *FS) DirEntries(ctx context.Context, name string) ([]fs.DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := fsys.osPath(name)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: underlying(err)}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func (fsys *FS) Write(ctx context.Context, name string, r io.Reader) (int64, error) {
	return fsys.write(ctx, name, r, os.O_CREATE|os.O_TRUNC|os.O_WRONLY)
}

func (fsys *FS) WriteNew(ctx context.Context, name string, r io.Reader) (int64, error) {
	return fsys.write(ctx, name, r, os.O_CREATE|os.O_EXCL|os.O_WRONLY)
}

func (fsys *FS) write(ctx context.Context, name string, r io.Reader, flag int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p, err := fsys.osPath(name)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), dirPerm); err != nil {
		return 0, &fs.PathError{Op: "write", Path: name, Err: err}
	}
	dst, err := os.OpenFile(p, flag, filePerm)
	if err != nil {
		return 0, &fs.PathError{Op: "write", Path: name, Err: underlying(err)}
	}
	n, err := io.Copy(dst, r)
	if err != nil {
		dst.Close()
		return n, &fs.PathError{Op: "write", Path: name, Err: err}
	}
	if err := dst.Close(); err != nil {
		return n, &fs.PathError{Op: "write", Path: name, Err: err}
	}
	return n, nil
}

// Rename moves src (a file or a directory) to dst with a single os.Rename,
// creating dst's parent directories first. It does not fall back to
// copy-then-delete: a rename across volumes fails with the OS error.
func (fsys *FS) Rename(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	srcPath, err := fsys.osPath(src)
	if err != nil {
		return err
	}
	dstPath, err := fsys.osPath(dst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), dirPerm); err != nil {
		return &fs.PathError{Op: "rename", Path: dst, Err: err}
	}
	if err := os.Rename(srcPath, dstPath); err != nil {
		return &fs.PathError{Op: "rename", Path: src, Err: underlying(err)}
	}
	return nil
}

func (fsys *FS) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := fsys.osPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return &fs.PathError{Op: "remove", Path: name, Err: underlying(err)}
	}
	return nil
}

func (fsys *FS) RemoveAll(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "." {
		return &fs.PathError{Op: "remove", Path: name, Err: fmt.Errorf("cannot remove backend root")}
	}
	p, err := fsys.osPath(name)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(p); err != nil {
		return &fs.PathError{Op: "remove", Path: name, Err: err}
	}
	return nil
}

// Copy copies src to dst without leaving the backend, by reading src and
// writing its bytes to dst.
func (fsys *FS) Copy(ctx context.Context, dst, src string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	srcPath, err := fsys.osPath(src)
	if err != nil {
		return 0, err
	}
	dstPath, err := fsys.osPath(dst)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), dirPerm); err != nil {
		return 0, &fs.PathError{Op: "copy", Path: dst, Err: err}
	}
	in, err := os.Open(srcPath)
	if err != nil {
		return 0, &fs.PathError{Op: "copy", Path: src, Err: underlying(err)}
	}
	defer in.Close()
	out, err := os.OpenFile(dstPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return 0, &fs.PathError{Op: "copy", Path: dst, Err: underlying(err)}
	}
	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, err
	}
	return n, out.Close()
}

// WalkObjectRoots visits every directory under dir whose NAMASTE
// declaration marks it as an OCFL object root, stopping descent at each one
// (objects never nest). It uses godirwalk for fast, low-allocation
// traversal of repositories with many objects.
func (fsys *FS) WalkObjectRoots(dir string, fn func(objectPath string) error) error {
	root, err := fsys.osPath(dir)
	if err != nil {
		return err
	}
	return godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(osPath string, ent *godirwalk.Dirent) error {
			if !ent.IsDir() {
				return nil
			}
			isObj, err := isObjectRoot(osPath)
			if err != nil {
				return err
			}
			if !isObj {
				return nil
			}
			rel, err := filepath.Rel(fsys.root, osPath)
			if err != nil {
				return err
			}
			if err := fn(filepath.ToSlash(rel)); err != nil {
				return err
			}
			return filepath.SkipDir
		},
	})
}

func isObjectRoot(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "0=ocfl_object_") {
			return true, nil
		}
	}
	return false, nil
}

func underlying(err error) error {
	if pe, ok := err.(*fs.PathError); ok {
		return pe.Err
	}
	return err
}
