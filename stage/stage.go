// Package stage implements the two-phase staging-and-commit protocol that
// prepares a new object version in a side directory, then atomically
// promotes it into the object. This preserves OCFL's invariant that a
// version directory appears to readers all at once, never partially
// written.
package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"golang.org/x/exp/slog"

	"github.com/ocflkit/ocfl"
	"github.com/ocflkit/ocfl/backend"
	"github.com/ocflkit/ocfl/digest"
)

// ExtensionDir is the storage-root extension directory staging areas live
// under, keyed by the object's resolved root path — mirroring the lock
// manager's own reserved-extension convention.
const ExtensionDir = "extensions/rocfl-staging"

// Stage is a draft of an object's next version: a mutable copy of its
// state and manifest, backed by content already written to a staging
// area, persisted after every mutation so the draft survives a crash.
type Stage struct {
	fsys       backend.WriteFS
	root       string
	objectPath string
	stagingDir string
	contentDir string
	alg        string
	id         string

	base    *ocfl.Inventory // existing head inventory, nil for a new object
	newHead ocfl.VNum

	manifest map[string][]ocfl.InventoryPath // digest -> content paths
	state    map[ocfl.InventoryPath]string // logical path -> digest, new version's state

	created time.Time
	message string
	user    *ocfl.User

	log *slog.Logger
}

// Option configures Begin.
type Option func(*config)

type config struct {
	contentDir string
	stagingDir string
	created    time.Time
	message    string
	user       *ocfl.User
	log        *slog.Logger
}

// WithContentDir sets the content directory name for a brand-new object.
// Ignored when staging a new version of an existing object, which keeps
// its established content directory.
func WithContentDir(name string) Option {
	return func(c *config) { c.contentDir = name }
}

// WithCreated sets the new version's created timestamp. Defaults to the
// current time, truncated to whole seconds.
func WithCreated(t time.Time) Option {
	return func(c *config) { c.created = t }
}

// WithMessage sets the new version's message.
func WithMessage(msg string) Option {
	return func(c *config) { c.message = msg }
}

// WithUser sets the new version's user.
func WithUser(u *ocfl.User) Option {
	return func(c *config) { c.user = u }
}

// WithLogger sets the logger used during staging and commit.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithStagingDir overrides the storage-root-relative extension directory
// staging areas are written under, in place of ExtensionDir.
func WithStagingDir(dir string) Option {
	return func(c *config) { c.stagingDir = dir }
}

// Begin opens a draft of the next version of the object at objectPath
// (a backend path that already includes root; the staging area is placed
// at root/<staging dir>/objectPath), loading its current head inventory if the object
// already exists. alg selects the digest algorithm for a brand-new
// object; it is ignored (and must match) for an existing one. If a
// staging area from a prior, interrupted Begin/Commit already exists for
// this object, its persisted draft is resumed rather than discarded.
func Begin(ctx context.Context, fsys backend.WriteFS, root, objectPath, id, alg string, opts ...Option) (*Stage, error) {
	cfg := &config{
		contentDir: ocfl.DefaultContentDirectory,
		stagingDir: ExtensionDir,
		created:    time.Now().UTC().Truncate(time.Second),
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.log == nil {
		cfg.log = slog.Default()
	}

	base, err := loadHeadInventory(ctx, fsys, objectPath)
	if err != nil {
		return nil, err
	}
	if base != nil {
		if base.ID != id {
			return nil, fmt.Errorf("object at %q has id %q, not %q: %w", objectPath, base.ID, id, ocfl.ErrAlreadyExists)
		}
		if alg != "" && alg != base.DigestAlgorithm {
			return nil, fmt.Errorf("object's digest algorithm is %q, not %q: %w", base.DigestAlgorithm, alg, ocfl.ErrIllegalArgs)
		}
		alg = base.DigestAlgorithm
		cfg.contentDir = base.ContentDirectory
	} else if !digest.ValidInventoryAlg(alg) {
		return nil, fmt.Errorf("%q is not a valid inventory digest algorithm: %w", alg, ocfl.ErrIllegalArgs)
	}

	newHead := ocfl.V(1)
	if base != nil {
		newHead, err = base.Head.Next()
		if err != nil {
			return nil, err
		}
	}

	s := &Stage{
		fsys:       fsys,
		root:       root,
		objectPath: objectPath,
		stagingDir: path.Join(root, cfg.stagingDir, objectPath),
		contentDir: cfg.contentDir,
		alg:        alg,
		id:         id,
		base:       base,
		newHead:    newHead,
		manifest:   map[string][]ocfl.InventoryPath{},
		state:      map[ocfl.InventoryPath]string{},
		created:    cfg.created,
		message:    cfg.message,
		user:       cfg.user,
		log:        cfg.log,
	}

	if resumed, err := s.resume(ctx); err != nil {
		return nil, err
	} else if resumed {
		s.log.DebugContext(ctx, "resumed staged draft", "object_id", id, "head", newHead)
		return s, nil
	}

	if base != nil {
		headVer, err := base.GetVersion(ocfl.Head)
		if err != nil {
			return nil, err
		}
		for d, paths := range base.Manifest {
			if len(paths) > 0 {
				cp := make([]ocfl.InventoryPath, len(paths))
				copy(cp, paths)
				s.manifest[d] = cp
			}
		}
		if err := headVer.State.EachPath(func(p ocfl.LogicalPath, d string) error {
			s.state[p] = d
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return s, s.persist(ctx)
}

// loadHeadInventory reads the object's current inventory, or returns nil
// if no object exists at objectPath yet.
func loadHeadInventory(ctx context.Context, fsys backend.FS, objectPath string) (*ocfl.Inventory, error) {
	entries, err := fsys.DirEntries(ctx, objectPath)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	decl, err := ocfl.FindNamaste(entries)
	if err != nil {
		if errors.Is(err, ocfl.ErrNamasteNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if !decl.IsObject() {
		return nil, fmt.Errorf("%s: %w", objectPath, ocfl.ErrNamasteContents)
	}
	return ocfl.ReadInventory(ctx, fsys, objectPath)
}

// resume reloads a draft persisted by a prior, interrupted Begin/Commit
// for the same object and target version, if one is present.
func (s *Stage) resume(ctx context.Context) (bool, error) {
	draft, err := ocfl.ReadInventory(ctx, s.fsys, s.stagingDir)
	if err != nil {
		if errors.Is(err, ocfl.ErrInventoryOpen) {
			return false, nil
		}
		return false, nil
	}
	if draft.ID != s.id || draft.Head != s.newHead {
		// a stale draft from an unrelated attempt; ignore it and start fresh.
		return false, nil
	}
	ver, err := draft.GetVersion(s.newHead)
	if err != nil {
		return false, err
	}
	for d, paths := range draft.Manifest {
		if len(paths) > 0 {
			cp := make([]ocfl.InventoryPath, len(paths))
			copy(cp, paths)
			s.manifest[d] = cp
		}
	}
	if err := ver.State.EachPath(func(p ocfl.LogicalPath, d string) error {
		s.state[p] = d
		return nil
	}); err != nil {
		return false, err
	}
	s.created = ver.Created
	s.message = ver.Message
	s.user = ver.User
	return true, nil
}

// Head returns the version number this draft will become on Commit.
func (s *Stage) Head() ocfl.VNum { return s.newHead }

// SetMessage sets the new version's message.
func (s *Stage) SetMessage(ctx context.Context, msg string) error {
	s.message = msg
	return s.persist(ctx)
}

// SetUser sets the new version's user.
func (s *Stage) SetUser(ctx context.Context, u *ocfl.User) error {
	s.user = u
	return s.persist(ctx)
}

// AddFile stages r's content at logical, writing it into the staging
// area's version directory. If the content's digest already exists in
// the object's manifest (from this version or an earlier one), the
// just-written bytes are discarded and logical is mapped to the existing
// content path instead — content is never duplicated on disk.
func (s *Stage) AddFile(ctx context.Context, logical ocfl.LogicalPath, r io.Reader) error {
	if err := logical.Valid(); err != nil {
		return err
	}
	a, err := digest.Get(s.alg)
	if err != nil {
		return err
	}
	dg := digest.NewDigester(a)
	contentPath, err := ocfl.NewInventoryPath(path.Join(s.newHead.String(), s.contentDir, string(logical)))
	if err != nil {
		return err
	}
	stagedName := path.Join(s.stagingDir, string(contentPath))
	if _, err := s.fsys.Write(ctx, stagedName, dg.Reader(r)); err != nil {
		return fmt.Errorf("staging %s: %w", logical, err)
	}
	sum := dg.Sums()[a.ID()]
	if existing := s.manifest[sum]; len(existing) > 0 {
		dup := true
		for _, p := range existing {
			if p == contentPath {
				dup = false // same content re-added at the same path: the file just written is that content
			}
		}
		if dup {
			if err := s.fsys.Remove(ctx, stagedName); err != nil {
				s.log.WarnContext(ctx, "failed to remove deduplicated staged content", "path", stagedName, "err", err)
			}
		}
	} else {
		s.manifest[sum] = append(s.manifest[sum], contentPath)
	}
	s.state[logical] = sum
	return s.persist(ctx)
}

// MoveFile renames a logical path already present in the draft's state.
// No content is moved: the same digest now resolves from dst instead of
// src.
func (s *Stage) MoveFile(ctx context.Context, src, dst ocfl.LogicalPath) error {
	sum, ok := s.state[src]
	if !ok {
		return fmt.Errorf("%s: %w", src, ocfl.ErrNotFound)
	}
	delete(s.state, src)
	s.state[dst] = sum
	return s.persist(ctx)
}

// CopyFile adds a second logical path pointing at the same content as an
// existing one.
func (s *Stage) CopyFile(ctx context.Context, src, dst ocfl.LogicalPath) error {
	sum, ok := s.state[src]
	if !ok {
		return fmt.Errorf("%s: %w", src, ocfl.ErrNotFound)
	}
	s.state[dst] = sum
	return s.persist(ctx)
}

// DeleteFile removes logical from the draft's state. The manifest entry
// is left untouched: earlier versions may still reference that content.
func (s *Stage) DeleteFile(ctx context.Context, logical ocfl.LogicalPath) error {
	if _, ok := s.state[logical]; !ok {
		return fmt.Errorf("%s: %w", logical, ocfl.ErrNotFound)
	}
	delete(s.state, logical)
	return s.persist(ctx)
}

// HasContent reports whether digest d is already staged, either from
// this version's additions or inherited from an earlier version.
func (s *Stage) HasContent(d string) bool {
	return len(s.manifest[d]) > 0
}

// build assembles the inventory this draft currently represents.
func (s *Stage) build() *ocfl.Inventory {
	inv := &ocfl.Inventory{
		ID:               s.id,
		Type:             ocfl.Spec10.InvType(),
		DigestAlgorithm:  s.alg,
		Head:             s.newHead,
		ContentDirectory: s.contentDir,
		Manifest:         manifestMap(s.manifest),
		Versions:         map[ocfl.VNum]*ocfl.Version{},
	}
	if s.base != nil {
		inv.Type = s.base.Type
		for v, ver := range s.base.Versions {
			inv.Versions[v] = ver
		}
		if len(s.base.Fixity) > 0 {
			inv.Fixity = make(map[string]ocfl.DigestMap, len(s.base.Fixity))
			for alg, fix := range s.base.Fixity {
				inv.Fixity[alg] = fix
			}
		}
	}
	inv.Versions[s.newHead] = &ocfl.Version{
		Created: s.created,
		Message: s.message,
		User:    s.user,
		State:   stateMap(s.state),
	}
	return inv
}

func manifestMap(m map[string][]ocfl.InventoryPath) ocfl.DigestMap {
	out := make(ocfl.DigestMap, len(m))
	for d, paths := range m {
		cp := make([]ocfl.InventoryPath, len(paths))
		copy(cp, paths)
		out[d] = cp
	}
	return out
}

func stateMap(m map[ocfl.InventoryPath]string) ocfl.DigestMap {
	out := ocfl.DigestMap{}
	for p, d := range m {
		out[d] = append(out[d], p)
	}
	return out
}

// persist writes the current draft to the staging area so it survives a
// crash; it does not touch the real object.
func (s *Stage) persist(ctx context.Context) error {
	if _, err := ocfl.WriteInventory(ctx, s.fsys, s.stagingDir, s.build()); err != nil {
		return fmt.Errorf("persisting staged draft: %w", err)
	}
	return nil
}

// Abandon discards the draft and removes its staging area without
// touching the real object.
func (s *Stage) Abandon(ctx context.Context) error {
	return s.fsys.RemoveAll(ctx, s.stagingDir)
}

// Commit validates the draft, promotes its staged content and inventory
// into the object, and removes the staging area. The version directory
// is moved into place before the object-root inventory is swapped, so a
// reader never observes a partially-committed repository: it sees either
// the prior state or a consistent new one. For a brand-new object the
// declaration is written into the staging area and the whole staged object
// root is moved into place with one rename.
func (s *Stage) Commit(ctx context.Context) (*ocfl.Inventory, error) {
	inv := s.build()
	if err := inv.Validate(); err != nil {
		return nil, fmt.Errorf("committing %s: %w", s.id, err)
	}

	versionStagingDir := path.Join(s.stagingDir, s.newHead.String())
	if _, err := ocfl.WriteInventory(ctx, s.fsys, versionStagingDir, inv); err != nil {
		return nil, fmt.Errorf("writing version inventory: %w", err)
	}
	if _, err := ocfl.WriteInventory(ctx, s.fsys, s.stagingDir, inv); err != nil {
		return nil, fmt.Errorf("writing staged root inventory: %w", err)
	}

	if s.base == nil {
		decl := ocfl.Namaste{Type: ocfl.NamasteTypeObject, Version: inv.Type.Spec}
		if err := ocfl.WriteDeclaration(ctx, s.fsys, s.stagingDir, decl); err != nil {
			return nil, err
		}
		if err := s.fsys.Rename(ctx, s.stagingDir, s.objectPath); err != nil {
			return nil, fmt.Errorf("promoting new object root: %w", err)
		}
		s.log.DebugContext(ctx, "committed version", "object_id", s.id, "head", s.newHead)
		return inv, nil
	}

	newVersionDir := path.Join(s.objectPath, s.newHead.String())
	if err := s.fsys.Rename(ctx, versionStagingDir, newVersionDir); err != nil {
		return nil, fmt.Errorf("promoting version directory: %w", err)
	}

	sidecarName := "inventory.json." + inv.DigestAlgorithm
	if err := s.fsys.Rename(ctx, path.Join(s.stagingDir, "inventory.json"), path.Join(s.objectPath, "inventory.json")); err != nil {
		return nil, fmt.Errorf("promoting root inventory: %w", err)
	}
	if err := s.fsys.Rename(ctx, path.Join(s.stagingDir, sidecarName), path.Join(s.objectPath, sidecarName)); err != nil {
		return nil, fmt.Errorf("promoting root inventory sidecar: %w", err)
	}

	if err := s.fsys.RemoveAll(ctx, s.stagingDir); err != nil {
		s.log.WarnContext(ctx, "failed to clean up staging area", "object_id", s.id, "path", s.stagingDir, "err", err)
	}
	s.log.DebugContext(ctx, "committed version", "object_id", s.id, "head", s.newHead)
	return inv, nil
}
