// Package object provides read access to an existing OCFL object: its
// inventory, individual version states, and file content, without
// mutating anything (see the stage package for writes).
package object

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ocflkit/ocfl"
	"github.com/ocflkit/ocfl/backend"
)

// maxConcurrentReads bounds how many files GetFiles opens at once, so a
// read of a large version doesn't exhaust file descriptors.
const maxConcurrentReads = 8

// Object is a read-only view of an OCFL object rooted at Path within FS.
type Object struct {
	FS   backend.FS
	Path string
	Inv  *ocfl.Inventory
}

// Open reads and validates the NAMASTE declaration and root inventory for
// the object at dir, without running the full validation suite (see the
// validation package for that).
func Open(ctx context.Context, fsys backend.FS, dir string) (*Object, error) {
	entries, err := fsys.DirEntries(ctx, dir)
	if err != nil {
		return nil, err
	}
	decl, err := ocfl.FindNamaste(entries)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	if !decl.IsObject() {
		return nil, fmt.Errorf("%s: %w", dir, ocfl.ErrNamasteContents)
	}
	if err := ocfl.ValidateDeclaration(ctx, fsys, dir, decl.Name()); err != nil {
		return nil, err
	}
	inv, err := ocfl.ReadInventory(ctx, fsys, dir)
	if err != nil {
		return nil, err
	}
	return &Object{FS: fsys, Path: dir, Inv: inv}, nil
}

// VersionView is a version's logical state paired with enough of the
// inventory to resolve each logical path to object-root-relative content.
type VersionView struct {
	VNum    ocfl.VNum
	Created ocfl.Version
	obj     *Object
}

// Version returns a view onto version v (the head version if v is zero).
func (o *Object) Version(v ocfl.VNum) (*VersionView, error) {
	ver, err := o.Inv.GetVersion(v)
	if err != nil {
		return nil, err
	}
	if v.IsZero() {
		v = o.Inv.Head
	}
	return &VersionView{VNum: v, Created: *ver, obj: o}, nil
}

// FileDetails describes one logical path in a version's state.
type FileDetails struct {
	Logical ocfl.LogicalPath
	Digest  string
	Content ocfl.ContentPath
}

// Files returns every logical path in the version, sorted for stable
// output.
func (vv *VersionView) Files() ([]FileDetails, error) {
	var out []FileDetails
	err := vv.Created.State.EachPath(func(logical ocfl.LogicalPath, digest string) error {
		out = append(out, FileDetails{
			Logical: logical,
			Digest:  digest,
			Content: ocfl.ContentPath(vv.obj.Inv.ContentPath(digest)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Logical < out[j].Logical })
	return out, nil
}

// GetFile opens the content backing logical path p in this version.
func (vv *VersionView) GetFile(ctx context.Context, p ocfl.LogicalPath) (io.ReadCloser, error) {
	digest := vv.Created.State.GetDigest(p)
	if digest == "" {
		return nil, fmt.Errorf("%s: %w", p, ocfl.ErrNotFound)
	}
	content := vv.obj.Inv.ContentPath(digest)
	if content == "" {
		return nil, fmt.Errorf("%s: %w", p, ocfl.ErrNotFound)
	}
	f, err := vv.obj.FS.OpenFile(ctx, path.Join(vv.obj.Path, content))
	if err != nil {
		return nil, err
	}
	return f, nil
}

// GetFiles reads the content of every path in paths concurrently (bounded
// by maxConcurrentReads), returning each file's full contents keyed by
// logical path. Useful for bulk export/cat operations.
func (vv *VersionView) GetFiles(ctx context.Context, paths []ocfl.LogicalPath) (map[ocfl.LogicalPath][]byte, error) {
	out := make(map[ocfl.LogicalPath][]byte, len(paths))
	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(maxConcurrentReads)
	results := make([][]byte, len(paths))
	for i, p := range paths {
		i, p := i, p
		grp.Go(func() error {
			f, err := vv.GetFile(ctx, p)
			if err != nil {
				return err
			}
			defer f.Close()
			b, err := io.ReadAll(f)
			if err != nil {
				return err
			}
			results[i] = b
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	for i, p := range paths {
		out[p] = results[i]
	}
	return out, nil
}

// ListFileVersions returns, for logical path p, every version in which its
// content digest changed, in ascending order. A path present across
// consecutive versions with the same digest appears only at the first of
// them; a path that is removed and later restored is listed again at the
// version that restores it, even with the same digest.
func (o *Object) ListFileVersions(p ocfl.LogicalPath) ([]ocfl.VNum, error) {
	var out []ocfl.VNum
	var lastDigest string
	for _, v := range o.Inv.VNums() {
		ver, err := o.Inv.GetVersion(v)
		if err != nil {
			return nil, err
		}
		d := ver.State.GetDigest(p)
		if d == "" {
			lastDigest = ""
			continue
		}
		if d != lastDigest {
			out = append(out, v)
			lastDigest = d
		}
	}
	return out, nil
}
