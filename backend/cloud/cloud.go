// Package cloud implements backend.WriteFS over an S3-compatible bucket via
// gocloud.dev/blob, so the same object/stage/validation code that runs
// against a local directory also runs against cloud storage.
package cloud

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"path"
	"sort"
	"time"

	"golang.org/x/exp/slog"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/ocflkit/ocfl/backend"
)

// FS adapts a *blob.Bucket to backend.CopyFS.
type FS struct {
	bucket *blob.Bucket
	log    *slog.Logger
}

var (
	_ backend.FS      = (*FS)(nil)
	_ backend.WriteFS = (*FS)(nil)
	_ backend.CopyFS  = (*FS)(nil)
)

// Option configures an FS returned by NewFS.
type Option func(*FS)

// WithLogger attaches a logger that receives debug-level traces of every
// bucket operation.
func WithLogger(l *slog.Logger) Option {
	return func(fsys *FS) { fsys.log = l }
}

// NewFS wraps an already-opened bucket (e.g. from blob.OpenBucket with the
// "s3://" URL scheme registered by gocloud.dev/blob/s3blob).
func NewFS(b *blob.Bucket, opts ...Option) *FS {
	fsys := &FS{bucket: b}
	for _, opt := range opts {
		opt(fsys)
	}
	return fsys
}

func (fsys *FS) debug(ctx context.Context, op, name string) {
	if fsys.log != nil {
		fsys.log.DebugContext(ctx, op, "name", name)
	}
}

func (fsys *FS) OpenFile(ctx context.Context, name string) (fs.File, error) {
	fsys.debug(ctx, "openfile", name)
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "openfile", Path: name, Err: fs.ErrInvalid}
	}
	r, err := fsys.bucket.NewReader(ctx, name, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			err = errors.Join(err, fs.ErrNotExist)
		}
		return nil, &fs.PathError{Op: "openfile", Path: name, Err: err}
	}
	return &blobFile{ReadCloser: r, info: blobFileInfo{name: path.Base(name), size: r.Size(), modTime: r.ModTime()}}, nil
}

func (fsys *FS) DirEntries(ctx context.Context, name string) ([]fs.DirEntry, error) {
	fsys.debug(ctx, "direntries", name)
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "direntries", Path: name, Err: fs.ErrInvalid}
	}
	opts := &blob.ListOptions{Delimiter: "/"}
	if name != "." {
		opts.Prefix = name + "/"
	}
	var (
		out   []fs.DirEntry
		token = blob.FirstPageToken
	)
	for {
		page, next, err := fsys.bucket.ListPage(ctx, token, 1000, opts)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &fs.PathError{Op: "direntries", Path: name, Err: err}
		}
		for _, item := range page {
			info := blobFileInfo{name: path.Base(item.Key), size: item.Size, modTime: item.ModTime}
			if item.IsDir {
				info.dir = true
			}
			out = append(out, info)
		}
		if len(next) == 0 {
			break
		}
		token = next
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

func (fsys *FS) Write(ctx context.Context, name string, r io.Reader) (int64, error) {
	fsys.debug(ctx, "write", name)
	if !fs.ValidPath(name) || name == "." {
		return 0, &fs.PathError{Op: "write", Path: name, Err: fs.ErrInvalid}
	}
	w, err := fsys.bucket.NewWriter(ctx, name, nil)
	if err != nil {
		return 0, &fs.PathError{Op: "write", Path: name, Err: err}
	}
	n, werr := w.ReadFrom(r)
	cerr := w.Close()
	if werr != nil {
		return n, &fs.PathError{Op: "write", Path: name, Err: werr}
	}
	if cerr != nil {
		return n, &fs.PathError{Op: "write", Path: name, Err: cerr}
	}
	return n, nil
}

// WriteNew writes name only if it doesn't already exist. gocloud.dev/blob
// has no atomic create-if-absent primitive, so this checks existence first
// and then writes. The check and the write are separate bucket calls, so
// this does not meet the WriteFS atomicity requirement: two concurrent
// WriteNew calls for the same name can both succeed.
func (fsys *FS) WriteNew(ctx context.Context, name string, r io.Reader) (int64, error) {
	exists, err := fsys.bucket.Exists(ctx, name)
	if err != nil {
		return 0, &fs.PathError{Op: "writenew", Path: name, Err: err}
	}
	if exists {
		return 0, &fs.PathError{Op: "writenew", Path: name, Err: fs.ErrExist}
	}
	return fsys.Write(ctx, name, r)
}

func (fsys *FS) Rename(ctx context.Context, src, dst string) error {
	fsys.debug(ctx, "rename", src+" -> "+dst)
	if _, err := fsys.Copy(ctx, dst, src); err != nil {
		return err
	}
	return fsys.Remove(ctx, src)
}

func (fsys *FS) Remove(ctx context.Context, name string) error {
	fsys.debug(ctx, "remove", name)
	if !fs.ValidPath(name) {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrInvalid}
	}
	if err := fsys.bucket.Delete(ctx, name); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
		}
		return &fs.PathError{Op: "remove", Path: name, Err: err}
	}
	return nil
}

func (fsys *FS) RemoveAll(ctx context.Context, name string) error {
	fsys.debug(ctx, "removeall", name)
	if !fs.ValidPath(name) {
		return &fs.PathError{Op: "removeall", Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return &fs.PathError{Op: "removeall", Path: name, Err: errors.New("cannot remove bucket root")}
	}
	iter := fsys.bucket.List(&blob.ListOptions{Prefix: name + "/"})
	for {
		item, err := iter.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return &fs.PathError{Op: "removeall", Path: name, Err: err}
		}
		if err := fsys.bucket.Delete(ctx, item.Key); err != nil {
			return &fs.PathError{Op: "removeall", Path: item.Key, Err: err}
		}
	}
}

func (fsys *FS) Copy(ctx context.Context, dst, src string) (int64, error) {
	fsys.debug(ctx, "copy", src+" -> "+dst)
	for _, p := range []string{src, dst} {
		if !fs.ValidPath(p) || p == "." {
			return 0, &fs.PathError{Op: "copy", Path: p, Err: fs.ErrInvalid}
		}
	}
	attrs, err := fsys.bucket.Attributes(ctx, src)
	if err != nil {
		return 0, &fs.PathError{Op: "copy", Path: src, Err: err}
	}
	if err := fsys.bucket.Copy(ctx, dst, src, nil); err != nil {
		return 0, &fs.PathError{Op: "copy", Path: dst, Err: err}
	}
	return attrs.Size, nil
}

type blobFile struct {
	io.ReadCloser
	info blobFileInfo
}

func (f *blobFile) Stat() (fs.FileInfo, error) { return f.info, nil }

type blobFileInfo struct {
	name    string
	size    int64
	modTime time.Time
	dir     bool
}

func (i blobFileInfo) Name() string { return i.name }
func (i blobFileInfo) Size() int64  { return i.size }
func (i blobFileInfo) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir
	}
	return 0o644
}
func (i blobFileInfo) ModTime() time.Time { return i.modTime }
func (i blobFileInfo) IsDir() bool        { return i.dir }
func (i blobFileInfo) Sys() any           { return nil }

var (
	_ fs.FileInfo = blobFileInfo{}
	_ fs.DirEntry = blobFileInfo{}
)

func (i blobFileInfo) Type() fs.FileMode          { return i.Mode() }
func (i blobFileInfo) Info() (fs.FileInfo, error) { return i, nil }
