// Package repo binds the storage backend, layout resolver, lock manager,
// staging engine, object reader, and validator into the single entry
// point a CLI or embedding application opens a storage root through.
package repo

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"

	"golang.org/x/exp/slog"

	"github.com/ocflkit/ocfl"
	"github.com/ocflkit/ocfl/backend"
	"github.com/ocflkit/ocfl/layout"
	"github.com/ocflkit/ocfl/lock"
	"github.com/ocflkit/ocfl/logging"
	"github.com/ocflkit/ocfl/object"
	"github.com/ocflkit/ocfl/stage"
	"github.com/ocflkit/ocfl/validation"
)

// Repo is an open OCFL storage root: a backend, its declared root path,
// and (if one is declared) the layout used to resolve object ids to
// object-root paths.
type Repo struct {
	fsys       backend.WriteFS
	root       string
	layout     layout.Layout // nil if the root declares none
	locks      *lock.Manager
	log        *slog.Logger
	stagingDir string // "" uses stage.ExtensionDir
}

// Option configures Open/Init.
type Option func(*Repo)

// WithLogger attaches a logger used for repo, lock, and staging tracing.
// Defaults to logging.Default(). Validation does not log.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repo) { r.log = l }
}

// WithStagingDir overrides the extension directory staging drafts are
// written under, in place of stage.ExtensionDir.
func WithStagingDir(dir string) Option {
	return func(r *Repo) { r.stagingDir = dir }
}

// Init declares a new, empty storage root at root: the "0=ocfl_1.0"
// NAMASTE declaration, then l persisted as the active layout
// (ocfl_layout.json + extensions/<name>/config.json).
func Init(ctx context.Context, fsys backend.WriteFS, root string, l layout.Layout, description string, opts ...Option) (*Repo, error) {
	entries, err := fsys.DirEntries(ctx, root)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		return nil, fmt.Errorf("%s: directory is not empty: %w", root, ocfl.ErrIllegalState)
	}
	decl := ocfl.Namaste{Type: ocfl.NamasteTypeRoot, Version: ocfl.Spec10}
	if err := ocfl.WriteDeclaration(ctx, fsys, root, decl); err != nil {
		return nil, err
	}
	if l == nil {
		l, err = layout.Get(layout.FlatDirect)
		if err != nil {
			return nil, err
		}
	}
	if err := layout.Write(ctx, fsys, root, l, description); err != nil {
		return nil, err
	}
	return open(fsys, root, l, opts...), nil
}

// Open opens an existing storage root at root, reading its declared
// layout if present. A root with no declared layout opens successfully;
// operations that require resolving an id to a path (NewObject) fail with
// layout.ErrNoLayout, while OpenObject/Objects/Validate fall back to a
// full recursive scan.
func Open(ctx context.Context, fsys backend.WriteFS, root string, opts ...Option) (*Repo, error) {
	entries, err := fsys.DirEntries(ctx, root)
	if err != nil {
		return nil, err
	}
	decl, err := ocfl.FindNamaste(entries)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", root, err)
	}
	if !decl.IsRoot() {
		return nil, fmt.Errorf("%s: %w", root, ocfl.ErrNamasteContents)
	}
	if err := ocfl.ValidateDeclaration(ctx, fsys, root, decl.Name()); err != nil {
		return nil, err
	}
	l, err := layout.Read(ctx, fsys, root)
	if err != nil && !errors.Is(err, layout.ErrNoLayout) {
		return nil, err
	}
	return open(fsys, root, l, opts...), nil
}

func open(fsys backend.WriteFS, root string, l layout.Layout, opts ...Option) *Repo {
	r := &Repo{fsys: fsys, root: root, layout: l, log: logging.Default()}
	for _, o := range opts {
		o(r)
	}
	r.locks = lock.NewManager(r.fsys, r.root, r.log)
	return r
}

// Layout returns the storage root's active layout, or nil if it declares
// none.
func (r *Repo) Layout() layout.Layout { return r.layout }

// resolveExisting locates an already-committed object's root path: via
// the declared layout if there is one, otherwise by a full recursive scan
// comparing each candidate's inventory id.
func (r *Repo) resolveExisting(ctx context.Context, id string) (string, error) {
	if r.layout != nil {
		p, err := r.layout.Resolve(id)
		if err != nil {
			return "", err
		}
		full := path.Join(r.root, p)
		if _, err := ocfl.ReadInventory(ctx, r.fsys, full); err != nil {
			return "", fmt.Errorf("object %q: %w", id, ocfl.ErrNotFound)
		}
		return full, nil
	}
	var found string
	err := r.scan(ctx, func(objPath string, inv *ocfl.Inventory) error {
		if inv.ID == id {
			found = objPath
			return errStopScan
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("object %q: %w", id, ocfl.ErrNotFound)
	}
	return found, nil
}

// resolveStagePath locates the object root id's next staged version
// belongs under, whether or not the object has been committed yet. With a
// declared layout the path is deterministic, so it's returned unchanged
// regardless of whether anything has been committed there. Without one,
// only an already-committed object is discoverable (by scan); there is no
// deterministic placement for a brand-new object.
func (r *Repo) resolveStagePath(ctx context.Context, id string) (string, error) {
	if r.layout != nil {
		p, err := r.layout.Resolve(id)
		if err != nil {
			return "", err
		}
		return path.Join(r.root, p), nil
	}
	p, err := r.resolveExisting(ctx, id)
	if err != nil {
		return "", fmt.Errorf("creating a new object in a layout-less storage root requires a declared storage layout: %w", layout.ErrNoLayout)
	}
	return p, nil
}

var errStopScan = errors.New("stop scan")

// objectWalker is implemented by backends (backend/local) that can
// traverse object roots faster than a generic recursive DirEntries scan.
type objectWalker interface {
	WalkObjectRoots(dir string, fn func(objectPath string) error) error
}

// scan visits every object root under the storage root, calling fn with
// its path (relative to the backend) and parsed inventory. fn may return
// errStopScan to end the scan early without it being reported as a
// failure.
func (r *Repo) scan(ctx context.Context, fn func(objPath string, inv *ocfl.Inventory) error) error {
	visit := func(objPath string) error {
		inv, err := ocfl.ReadInventory(ctx, r.fsys, objPath)
		if err != nil {
			r.log.WarnContext(ctx, "skipping unreadable object during scan", "path", objPath, "err", err)
			return nil
		}
		return fn(objPath, inv)
	}
	if w, ok := r.fsys.(objectWalker); ok {
		err := w.WalkObjectRoots(r.root, visit)
		if errors.Is(err, errStopScan) {
			return err
		}
		return err
	}
	return r.walkGeneric(ctx, r.root, visit)
}

// walkGeneric is the backend-agnostic fallback scan, used for any
// backend.FS that doesn't implement objectWalker (e.g. backend/cloud).
func (r *Repo) walkGeneric(ctx context.Context, dir string, visit func(string) error) error {
	entries, err := r.fsys.DirEntries(ctx, dir)
	if err != nil {
		return err
	}
	decl, err := ocfl.FindNamaste(entries)
	if err == nil && decl.IsObject() {
		return visit(dir)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := r.walkGeneric(ctx, path.Join(dir, e.Name()), visit); err != nil {
			return err
		}
	}
	return nil
}

// Draft wraps a staged next version with the object lock that must be
// released however the draft ends, whether by Commit or Abandon.
type Draft struct {
	*stage.Stage
	lock *lock.Lock
}

// Commit promotes the draft into the object and releases its lock
// regardless of whether the promotion succeeded, so a failed commit never
// leaves the object permanently locked.
func (d *Draft) Commit(ctx context.Context) (*ocfl.Inventory, error) {
	inv, err := d.Stage.Commit(ctx)
	if relErr := d.lock.Release(ctx); relErr != nil && err == nil {
		err = relErr
	}
	return inv, err
}

// Abandon discards the draft, removes its staging area, and releases its
// lock.
func (d *Draft) Abandon(ctx context.Context) error {
	err := d.Stage.Abandon(ctx)
	if relErr := d.lock.Release(ctx); relErr != nil && err == nil {
		err = relErr
	}
	return err
}

// Release releases the draft's lock without committing or abandoning it,
// leaving the persisted staging area in place for a later call to Stage
// (or NewObject/StageNextVersion) on the same id to resume. This is what
// a CLI invocation that only adds/renames/removes a file uses: each
// subcommand is a separate process, so the lock must not outlive it.
func (d *Draft) Release(ctx context.Context) error {
	return d.lock.Release(ctx)
}

// NewObject begins staging a brand-new object at id, using alg as its
// digest algorithm. The storage root must declare a layout: there is no
// way to resolve a path for an id that doesn't exist yet otherwise. An id
// that is already committed fails with ocfl.ErrAlreadyExists.
func (r *Repo) NewObject(ctx context.Context, id, alg string, opts ...stage.Option) (*Draft, error) {
	if _, err := r.resolveExisting(ctx, id); err == nil {
		return nil, fmt.Errorf("object %q: %w", id, ocfl.ErrAlreadyExists)
	}
	return r.stage(ctx, id, alg, opts...)
}

// StageNextVersion begins staging the next version of an already-existing
// object, or resumes a draft left in progress by an earlier, uncommitted
// call to NewObject/StageNextVersion on the same id.
func (r *Repo) StageNextVersion(ctx context.Context, id string, opts ...stage.Option) (*Draft, error) {
	return r.stage(ctx, id, "", opts...)
}

func (r *Repo) stage(ctx context.Context, id, alg string, opts ...stage.Option) (*Draft, error) {
	l, err := r.locks.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	objPath, err := r.resolveStagePath(ctx, id)
	if err != nil {
		l.Release(ctx)
		return nil, err
	}
	base := []stage.Option{stage.WithLogger(r.log)}
	if r.stagingDir != "" {
		base = append(base, stage.WithStagingDir(r.stagingDir))
	}
	opts = append(base, opts...)
	s, err := stage.Begin(ctx, r.fsys, r.root, objPath, id, alg, opts...)
	if err != nil {
		l.Release(ctx)
		return nil, err
	}
	return &Draft{Stage: s, lock: l}, nil
}

// OpenObject opens read access to an existing object.
func (r *Repo) OpenObject(ctx context.Context, id string) (*object.Object, error) {
	objPath, err := r.resolveExisting(ctx, id)
	if err != nil {
		return nil, err
	}
	return object.Open(ctx, r.fsys, objPath)
}

// Validate runs the full validation suite against object id.
func (r *Repo) Validate(ctx context.Context, id string, opts ...validation.Option) (*validation.Result, error) {
	objPath, err := r.resolveExisting(ctx, id)
	if err != nil {
		return nil, err
	}
	return validation.Validate(ctx, r.fsys, objPath, opts...), nil
}

// ObjectInfo is a summary entry yielded by Objects.
type ObjectInfo struct {
	ID   string
	Path string
	Head ocfl.VNum
}

// Objects lists every object in the storage root whose id matches glob
// (a path.Match pattern; "" matches everything), sorted by id.
func (r *Repo) Objects(ctx context.Context, glob string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	err := r.scan(ctx, func(objPath string, inv *ocfl.Inventory) error {
		if glob != "" {
			ok, err := path.Match(glob, inv.ID)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}
		out = append(out, ObjectInfo{ID: inv.ID, Path: objPath, Head: inv.Head})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListObjectExtensions enumerates the extension directories present under
// object id's root (e.g. "0005-mutable-head").
func (r *Repo) ListObjectExtensions(ctx context.Context, id string) ([]string, error) {
	objPath, err := r.resolveExisting(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := r.fsys.DirEntries(ctx, path.Join(objPath, "extensions"))
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Purge permanently removes object id and any now-empty ancestor
// directories up to the storage root.
func (r *Repo) Purge(ctx context.Context, id string) error {
	l, err := r.locks.Acquire(ctx, id)
	if err != nil {
		return err
	}
	defer l.Release(ctx)

	objPath, err := r.resolveExisting(ctx, id)
	if err != nil {
		return err
	}
	if err := r.fsys.RemoveAll(ctx, objPath); err != nil {
		return fmt.Errorf("purging %q: %w", id, err)
	}
	r.removeEmptyDirsUpward(ctx, path.Dir(objPath))
	r.log.InfoContext(ctx, "purged object", "object_id", id, "path", objPath)
	return nil
}

// removeEmptyDirsUpward deletes dir and each of its ancestors, stopping at
// the storage root or at the first directory that still has entries.
// Best-effort: failures are logged, not returned, since the purge itself
// already succeeded.
func (r *Repo) removeEmptyDirsUpward(ctx context.Context, dir string) {
	for dir != "." && dir != r.root && dir != "/" {
		entries, err := r.fsys.DirEntries(ctx, dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := r.fsys.RemoveAll(ctx, dir); err != nil {
			r.log.WarnContext(ctx, "failed to remove empty ancestor directory", "path", dir, "err", err)
			return
		}
		dir = path.Dir(dir)
	}
}
