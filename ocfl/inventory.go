package ocfl

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"time"

	"github.com/ocflkit/ocfl/backend"
	"github.com/ocflkit/ocfl/digest"
)

// DefaultContentDirectory is the content directory name used when an
// inventory doesn't set one explicitly.
const DefaultContentDirectory = "content"

var (
	ErrInventoryInvalid = errors.New("invalid inventory")
	ErrInventoryOpen    = fmt.Errorf("could not read inventory: %w", ErrNotFound)

	// sidecarLineRE matches "<hex digest><spaces or tabs>inventory.json\n",
	// the one-line format OCFL 1.0 requires for the sidecar file.
	sidecarLineRE = regexp.MustCompile(`^([0-9a-fA-F]+)[ \t]+inventory\.json\n?$`)
)

// User identifies the agent responsible for a version, per the inventory's
// "user" field.
type User struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// Version is a single entry in an inventory's "versions" object.
type Version struct {
	Created time.Time `json:"created"`
	Message string    `json:"message,omitempty"`
	User    *User     `json:"user,omitempty"`
	State   DigestMap `json:"state"`
}

// Inventory is the decoded, validated contents of an object's inventory.json,
// representing every version of the object described by it.
type Inventory struct {
	ID               string              `json:"id"`
	Type             InvType             `json:"type"`
	DigestAlgorithm  string              `json:"digestAlgorithm"`
	Head             VNum                `json:"head"`
	ContentDirectory string              `json:"contentDirectory,omitempty"`
	Manifest         DigestMap           `json:"manifest"`
	Versions         map[VNum]*Version   `json:"versions"`
	Fixity           map[string]DigestMap `json:"fixity,omitempty"`

	// digest is the sidecar digest of the raw bytes this Inventory was
	// decoded from, set by ParseInventory / ReadInventory. It is empty for
	// an Inventory built in memory (e.g. by the stage package) that hasn't
	// been serialized yet.
	digest string
}

// NewInventory returns an empty v1 inventory for id, ready to receive its
// first version via the stage package.
func NewInventory(id string, alg string) (*Inventory, error) {
	if id == "" {
		return nil, fmt.Errorf("object id is required: %w", ErrIllegalArgs)
	}
	if !digest.ValidInventoryAlg(alg) {
		return nil, fmt.Errorf("%q is not a valid inventory digest algorithm: %w", alg, ErrIllegalArgs)
	}
	return &Inventory{
		ID:               id,
		Type:             Spec10.InvType(),
		DigestAlgorithm:  alg,
		ContentDirectory: DefaultContentDirectory,
		Manifest:         DigestMap{},
		Versions:         map[VNum]*Version{},
	}, nil
}

// VNums returns the inventory's version numbers in ascending order.
func (inv *Inventory) VNums() VNums {
	out := make(VNums, 0, len(inv.Versions))
	for v := range inv.Versions {
		out = append(out, v)
	}
	sort.Sort(out)
	return out
}

// GetVersion returns the named version, or the head version if v is the
// zero value.
func (inv *Inventory) GetVersion(v VNum) (*Version, error) {
	if v.IsZero() {
		v = inv.Head
	}
	ver, ok := inv.Versions[v]
	if !ok {
		return nil, fmt.Errorf("version %s: %w", v, ErrNotFound)
	}
	return ver, nil
}

// Alg returns the digest.Alg for the inventory's digest algorithm. The
// algorithm is guaranteed registered because Validate rejects any other
// value.
func (inv *Inventory) Alg() digest.Alg {
	a, err := digest.Get(inv.DigestAlgorithm)
	if err != nil {
		panic(err)
	}
	return a
}

// ContentPath returns the manifest content path for digest d, or "" if d
// isn't present in the manifest.
func (inv *Inventory) ContentPath(d string) string {
	paths := inv.Manifest.DigestPaths(d)
	if len(paths) == 0 {
		return ""
	}
	return paths[0].String()
}

// Digest returns the sidecar digest of the serialized bytes this inventory
// was read from, or "" if it has never been serialized.
func (inv *Inventory) Digest() string { return inv.digest }

// EachStatePath calls fn for every logical path in version v's state (the
// head version if v is zero), along with the digest it maps to.
func (inv *Inventory) EachStatePath(v VNum, fn func(logical LogicalPath, digest string) error) error {
	ver, err := inv.GetVersion(v)
	if err != nil {
		return err
	}
	return ver.State.EachPath(fn)
}

// Validate checks structural invariants this module's readers and writers
// depend on: a supported spec version, a registered digest algorithm, a
// complete and contiguous version sequence, manifest and fixity content
// paths that each lie under one of the inventory's version directories, and
// a manifest/fixity/state that all normalize without conflict. It does not perform the full OCFL
// validation suite (content existence, checksum verification, NAMASTE
// declarations) — see the validation package for that.
func (inv *Inventory) Validate() error {
	if inv.ID == "" {
		return fmt.Errorf("missing object id: %w", ErrInventoryInvalid)
	}
	if err := inv.Type.Spec.Valid(); err != nil {
		return fmt.Errorf("inventory type: %w", err)
	}
	if !digest.ValidInventoryAlg(inv.DigestAlgorithm) {
		return fmt.Errorf("digestAlgorithm %q: %w", inv.DigestAlgorithm, ErrInventoryInvalid)
	}
	if err := inv.VNums().Valid(); err != nil {
		return fmt.Errorf("version sequence: %w", err)
	}
	if inv.VNums().Head() != inv.Head {
		return fmt.Errorf("head %s does not match version sequence: %w", inv.Head, ErrInventoryInvalid)
	}
	vnums := inv.VNums()
	underVersion := func(p InventoryPath, _ string) error {
		for _, v := range vnums {
			if p.HasVersionPrefix(v) {
				return nil
			}
		}
		return fmt.Errorf("content path %s is not under a version directory: %w", p, ErrInventoryInvalid)
	}
	if err := inv.Manifest.EachPath(underVersion); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	if _, err := inv.Manifest.Normalized(); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	for alg, fix := range inv.Fixity {
		if err := fix.EachPath(underVersion); err != nil {
			return fmt.Errorf("fixity[%s]: %w", alg, err)
		}
		if _, err := fix.Normalized(); err != nil {
			return fmt.Errorf("fixity[%s]: %w", alg, err)
		}
	}
	paths, err := inv.Manifest.Normalized()
	if err != nil {
		return err
	}
	for v, ver := range inv.Versions {
		if ver == nil {
			return fmt.Errorf("version %s: nil entry: %w", v, ErrInventoryInvalid)
		}
		state, err := ver.State.Normalized()
		if err != nil {
			return fmt.Errorf("version %s state: %w", v, err)
		}
		if err := state.EachPath(func(_ LogicalPath, d string) error {
			if !paths.HasDigest(d) {
				return fmt.Errorf("version %s state references digest %s not in manifest: %w", v, d, ErrInventoryInvalid)
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// canonicalJSON renders v with sorted map keys and no HTML escaping, which
// is what makes WriteInventory's sidecar digest reproducible between runs
// for logically identical inventories.
func canonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// normalizedForEncoding returns a shallow copy of inv with the manifest,
// every fixity algorithm's map, and every version's state normalized (path
// lists sorted, digest keys lowercased), so the encoded path arrays don't
// depend on Go's randomized map iteration order. inv itself is untouched.
func (inv *Inventory) normalizedForEncoding() (*Inventory, error) {
	manifest, err := inv.Manifest.Normalized()
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	var fixity map[string]DigestMap
	if inv.Fixity != nil {
		fixity = make(map[string]DigestMap, len(inv.Fixity))
		for alg, fix := range inv.Fixity {
			nf, err := fix.Normalized()
			if err != nil {
				return nil, fmt.Errorf("fixity[%s]: %w", alg, err)
			}
			fixity[alg] = nf
		}
	}
	versions := make(map[VNum]*Version, len(inv.Versions))
	for v, ver := range inv.Versions {
		state, err := ver.State.Normalized()
		if err != nil {
			return nil, fmt.Errorf("version %s state: %w", v, err)
		}
		cp := *ver
		cp.State = state
		versions[v] = &cp
	}
	cp := *inv
	cp.Manifest = manifest
	cp.Fixity = fixity
	cp.Versions = versions
	return &cp, nil
}

// WriteInventory serializes inv as inventory.json and its sidecar
// (inventory.json.<alg>) into dir, returning the sidecar digest.
func WriteInventory(ctx context.Context, fsys backend.WriteFS, dir string, inv *Inventory) (string, error) {
	if err := inv.Validate(); err != nil {
		return "", err
	}
	norm, err := inv.normalizedForEncoding()
	if err != nil {
		return "", fmt.Errorf("normalizing inventory: %w", err)
	}
	raw, err := canonicalJSON(norm)
	if err != nil {
		return "", fmt.Errorf("encoding inventory: %w", err)
	}
	raw = append(raw, '\n')
	d := inv.Alg().New()
	d.Write(raw)
	sum := hex.EncodeToString(d.Sum(nil))

	if _, err := fsys.Write(ctx, path.Join(dir, "inventory.json"), bytes.NewReader(raw)); err != nil {
		return "", fmt.Errorf("writing inventory.json: %w", err)
	}
	sidecarName := "inventory.json." + inv.DigestAlgorithm
	sidecar := sum + "  inventory.json\n"
	if _, err := fsys.Write(ctx, path.Join(dir, sidecarName), bytes.NewBufferString(sidecar)); err != nil {
		return "", fmt.Errorf("writing %s: %w", sidecarName, err)
	}
	inv.digest = sum
	return sum, nil
}

// ParseInventory decodes and validates raw bytes as an inventory, without
// checking them against a sidecar.
func ParseInventory(raw []byte) (*Inventory, error) {
	var inv Inventory
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("decoding inventory.json: %w", err)
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	a := inv.Alg().New()
	a.Write(raw)
	inv.digest = hex.EncodeToString(a.Sum(nil))
	return &inv, nil
}

// ReadInventory reads and validates inventory.json from dir, checking its
// bytes against the accompanying sidecar file.
func ReadInventory(ctx context.Context, fsys backend.FS, dir string) (*Inventory, error) {
	f, err := fsys.OpenFile(ctx, path.Join(dir, "inventory.json"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, ErrInventoryOpen)
	}
	raw, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return nil, err
	}
	inv, err := ParseInventory(raw)
	if err != nil {
		return nil, err
	}
	if err := verifySidecar(ctx, fsys, dir, inv, raw); err != nil {
		return nil, err
	}
	return inv, nil
}

func verifySidecar(ctx context.Context, fsys backend.FS, dir string, inv *Inventory, raw []byte) error {
	name := "inventory.json." + inv.DigestAlgorithm
	f, err := fsys.OpenFile(ctx, path.Join(dir, name))
	if err != nil {
		return fmt.Errorf("%s: %w", name, ErrInventoryOpen)
	}
	defer f.Close()
	body, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	m := sidecarLineRE.FindSubmatch(body)
	if m == nil {
		return fmt.Errorf("%s: malformed sidecar contents: %w", name, ErrInventoryInvalid)
	}
	want := string(m[1])
	a := inv.Alg().New()
	a.Write(raw)
	got := hex.EncodeToString(a.Sum(nil))
	if !equalFold(want, got) {
		return &digest.Err{Path: "inventory.json", Alg: inv.DigestAlgorithm, Expected: want, Got: got}
	}
	return nil
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
