// Package validation implements the structural and semantic checks that
// confirm an on-disk object root satisfies OCFL 1.0, reporting every
// violation it finds (as opposed to the rest of this module, which is
// fail-fast) so an operator sees the full picture in one pass.
package validation

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ocflkit/ocfl"
	"github.com/ocflkit/ocfl/backend"
	"github.com/ocflkit/ocfl/digest"
)

// Code identifies a single rule from the OCFL 1.0 validation codes list
// (https://ocfl.io/1.0/spec/validation-codes.html).
type Code struct {
	ID          string
	Description string
	URL         string
}

func code(id, desc string) Code {
	return Code{ID: id, Description: desc, URL: "https://ocfl.io/1.0/spec/#" + id}
}

// Error codes (fatal) this validator reports. Not an exhaustive list of
// every code the spec defines — only the ones this implementation's
// checks produce.
var (
	E001 = code("E001", "object root must not contain files or directories other than those the spec permits")
	E002 = code("E002", "the version declaration must be formatted according to the NAMASTE specification")
	E003 = code("E003", "the object root must contain an inventory.json")
	E023 = code("E023", "every content path in the manifest must exist in the object")
	E034 = code("E034", "a content file's digest must match its recorded manifest digest")
	E040 = code("E040", "every version number from 1 to head must have a corresponding version directory")
)

// Warning codes (non-fatal).
var (
	W001 = code("W001", "a version's metadata should include a message")
	W002 = code("W002", "a version's metadata should include a user")
	W004 = code("W004", "digests should be consistently lower case")
	W013 = code("W013", "an object's extension directories should be ones this implementation recognizes")
)

// Finding is a single check violation, tagged with the spec code it
// corresponds to.
type Finding struct {
	Code Code
	Err  error
}

func (f *Finding) Error() string {
	return fmt.Sprintf("[%s] %s", f.Code.ID, f.Err)
}

func (f *Finding) Unwrap() error { return f.Err }

// Result accumulates findings from a single validation run. It is safe
// for concurrent use, so checks that fan out (e.g. per-file fixity
// verification) can report directly into the same Result.
type Result struct {
	mu    sync.RWMutex
	fatal []*Finding
	warn  []*Finding
}

// AddFatal records a fatal finding. err may be nil, in which case this is
// a no-op; this lets call sites write `if err := doThing(); err != nil {
// res.AddFatal(code, err) }` without an extra branch.
func (r *Result) AddFatal(c Code, err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fatal = append(r.fatal, &Finding{Code: c, Err: err})
}

// AddWarn records a non-fatal finding.
func (r *Result) AddWarn(c Code, err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warn = append(r.warn, &Finding{Code: c, Err: err})
}

// Valid reports whether no fatal findings were recorded.
func (r *Result) Valid() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fatal) == 0
}

// Fatal returns every fatal finding recorded so far.
func (r *Result) Fatal() []*Finding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Finding, len(r.fatal))
	copy(out, r.fatal)
	return out
}

// Warn returns every warning recorded so far.
func (r *Result) Warn() []*Finding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Finding, len(r.warn))
	copy(out, r.warn)
	return out
}

// Merge appends another Result's findings onto r.
func (r *Result) Merge(other *Result) {
	other.mu.RLock()
	fatal := append([]*Finding{}, other.fatal...)
	warn := append([]*Finding{}, other.warn...)
	other.mu.RUnlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fatal = append(r.fatal, fatal...)
	r.warn = append(r.warn, warn...)
}

type config struct {
	fixity      bool
	concurrency int
}

// Option configures Validate.
type Option func(*config)

// WithFixityCheck enables recomputing and comparing every manifest
// content file's digest, not just checking that it exists. This reads
// every byte of every version's content, so it's off by default.
func WithFixityCheck(b bool) Option {
	return func(c *config) { c.fixity = b }
}

// WithConcurrency bounds how many content files are checked at once.
func WithConcurrency(n int) Option {
	return func(c *config) { c.concurrency = n }
}

// knownObjectExtensions lists the object-level extension directory names
// this implementation recognizes; anything else under an object's
// extensions/ directory is reported as a warning, not an error, since
// unrecognized extensions are legal OCFL, just not ones this client acts on.
var knownObjectExtensions = map[string]bool{
	"0005-mutable-head": true,
}

// Validate runs the full check suite against the object rooted at
// objectPath and returns every finding, fatal and non-fatal, it produces.
// It never mutates the repository.
func Validate(ctx context.Context, fsys backend.FS, objectPath string, opts ...Option) *Result {
	cfg := &config{concurrency: 8}
	for _, o := range opts {
		o(cfg)
	}
	res := &Result{}

	entries, err := fsys.DirEntries(ctx, objectPath)
	if err != nil {
		res.AddFatal(E003, err)
		return res
	}
	decl, err := ocfl.FindNamaste(entries)
	if err != nil {
		res.AddFatal(E002, err)
		return res
	}
	if !decl.IsObject() {
		res.AddFatal(E002, fmt.Errorf("%s: declared type %q is not an OCFL object", objectPath, decl.Type))
		return res
	}
	if err := ocfl.ValidateDeclaration(ctx, fsys, objectPath, decl.Name()); err != nil {
		res.AddFatal(E002, err)
	}

	inv, err := ocfl.ReadInventory(ctx, fsys, objectPath)
	if err != nil {
		res.AddFatal(E003, err)
		return res
	}

	checkObjectRootContents(entries, decl, inv, res)
	checkVersionDirectories(ctx, fsys, objectPath, inv, res)
	checkVersionMetadata(inv, res)
	checkDigestCasing(inv, res)
	checkObjectExtensions(ctx, fsys, objectPath, res)
	checkContent(ctx, fsys, objectPath, inv, res, cfg)

	return res
}

func checkObjectRootContents(entries []fs.DirEntry, decl ocfl.Namaste, inv *ocfl.Inventory, res *Result) {
	allowed := map[string]bool{
		decl.Name():                            true,
		"inventory.json":                       true,
		"inventory.json." + inv.DigestAlgorithm: true,
		"extensions":                            true,
	}
	for _, v := range inv.VNums() {
		allowed[v.String()] = true
	}
	for _, e := range entries {
		if !allowed[e.Name()] {
			res.AddFatal(E001, fmt.Errorf("%s: unexpected entry in object root", e.Name()))
		}
	}
}

func checkVersionDirectories(ctx context.Context, fsys backend.FS, objectPath string, inv *ocfl.Inventory, res *Result) {
	for _, v := range inv.VNums() {
		vEntries, err := fsys.DirEntries(ctx, path.Join(objectPath, v.String()))
		if err != nil || len(vEntries) == 0 {
			res.AddFatal(E040, fmt.Errorf("version directory %s is missing or empty", v))
		}
	}
}

func checkVersionMetadata(inv *ocfl.Inventory, res *Result) {
	for _, v := range inv.VNums() {
		ver := inv.Versions[v]
		if ver.Message == "" {
			res.AddWarn(W001, fmt.Errorf("version %s has no message", v))
		}
		if ver.User == nil {
			res.AddWarn(W002, fmt.Errorf("version %s has no user", v))
		}
	}
}

func checkDigestCasing(inv *ocfl.Inventory, res *Result) {
	for d := range inv.Manifest {
		if d != strings.ToLower(d) {
			res.AddWarn(W004, fmt.Errorf("manifest digest %q is not lower case", d))
		}
	}
	for _, v := range inv.VNums() {
		for d := range inv.Versions[v].State {
			if d != strings.ToLower(d) {
				res.AddWarn(W004, fmt.Errorf("version %s state digest %q is not lower case", v, d))
			}
		}
	}
}

func checkObjectExtensions(ctx context.Context, fsys backend.FS, objectPath string, res *Result) {
	entries, err := fsys.DirEntries(ctx, path.Join(objectPath, "extensions"))
	if err != nil || len(entries) == 0 {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if !knownObjectExtensions[e.Name()] {
			res.AddWarn(W013, fmt.Errorf("unrecognized extension %q", e.Name()))
		}
	}
}

// checkContent verifies that every manifest content path exists, and
// (when requested) that its recomputed digest matches the manifest's. The
// two have different cost profiles — existence is one stat-equivalent
// open, fixity is a full read — so both run through the same bounded
// errgroup fan-out, the same pattern object.VersionView.GetFiles uses for
// multi-file reads.
func checkContent(ctx context.Context, fsys backend.FS, objectPath string, inv *ocfl.Inventory, res *Result, cfg *config) {
	type job struct {
		digestVal string
		path      ocfl.InventoryPath
	}
	var jobs []job
	for d, paths := range inv.Manifest {
		for _, p := range paths {
			jobs = append(jobs, job{digestVal: d, path: p})
		}
	}
	alg, algErr := digest.Get(inv.DigestAlgorithm)

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(cfg.concurrency)
	for _, j := range jobs {
		j := j
		grp.Go(func() error {
			full := path.Join(objectPath, string(j.path))
			f, err := fsys.OpenFile(ctx, full)
			if err != nil {
				res.AddFatal(E023, fmt.Errorf("%s: %w", j.path, err))
				return nil
			}
			defer f.Close()
			if !cfg.fixity || algErr != nil {
				return nil
			}
			dg := digest.NewDigester(alg)
			if _, err := dg.ReadFrom(f); err != nil {
				res.AddFatal(E034, fmt.Errorf("%s: %w", j.path, err))
				return nil
			}
			got := dg.Sums()[alg.ID()]
			if !strings.EqualFold(got, j.digestVal) {
				res.AddFatal(E034, &digest.Err{Path: string(j.path), Alg: inv.DigestAlgorithm, Expected: j.digestVal, Got: got})
			}
			return nil
		})
	}
	_ = grp.Wait() // findings are reported into res; the group itself never fails
}
