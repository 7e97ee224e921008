// Package digest provides the streaming digest algorithms used for OCFL
// content-addressing and fixity checks.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Algorithm ids recognized by this package. SHA256 and SHA512 are the only
// values OCFL 1.0 permits for an inventory's digestAlgorithm; the others may
// appear in per-version fixity blocks.
const (
	SHA512 = "sha512"
	SHA256 = "sha256"
	SHA1   = "sha1"
	MD5    = "md5"
	BLAKE2B512 = "blake2b-512"
)

// Err is returned when a digest recomputed from content doesn't match an
// expected value.
type Err struct {
	Path     string
	Alg      string
	Expected string
	Got      string
}

func (e *Err) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("unexpected %s digest: expected %s, got %s", e.Alg, e.Expected, e.Got)
	}
	return fmt.Sprintf("unexpected %s digest for %q: expected %s, got %s", e.Alg, e.Path, e.Expected, e.Got)
}

// Alg is an available digest algorithm.
type Alg interface {
	ID() string
	New() hash.Hash
}

var builtin = map[string]func() hash.Hash{
	SHA512:     sha512.New,
	SHA256:     sha256.New,
	SHA1:       sha1.New,
	MD5:        md5.New,
	BLAKE2B512: newBlake2b512,
}

func newBlake2b512() hash.Hash {
	h, err := blake2b.New512(nil)
	if err != nil {
		panic("blake2b-512: " + err.Error())
	}
	return h
}

type alg struct{ id string }

func (a alg) ID() string     { return a.id }
func (a alg) New() hash.Hash { return builtin[a.id]() }

// Get returns the Alg registered under id, or an error if id is unknown.
func Get(id string) (Alg, error) {
	if _, ok := builtin[id]; !ok {
		return nil, fmt.Errorf("unrecognized digest algorithm: %q", id)
	}
	return alg{id: id}, nil
}

// ValidInventoryAlg reports whether id is a valid inventory digestAlgorithm
// (sha512 or sha256, per OCFL 1.0 §3.5).
func ValidInventoryAlg(id string) bool {
	return id == SHA512 || id == SHA256
}

// Set is a set of digest results for a single piece of content, keyed by
// algorithm id.
type Set map[string]string

// ConflictsWith returns the algorithm ids in s whose value differs
// (case-insensitively) from the corresponding value in other. Algorithms
// present in only one of the sets are not considered conflicts.
func (s Set) ConflictsWith(other Set) []string {
	var keys []string
	for a, v := range s {
		if ov, ok := other[a]; ok && !strings.EqualFold(v, ov) {
			keys = append(keys, a)
		}
	}
	return keys
}

// Digester tees a reader through one or more hash.Hash instances so that
// several digest algorithms can be computed in a single pass over the data.
type Digester struct {
	algs   []Alg
	hashes []hash.Hash
}

// NewDigester returns a Digester that computes the given algorithms.
func NewDigester(algs ...Alg) *Digester {
	d := &Digester{algs: algs, hashes: make([]hash.Hash, len(algs))}
	for i, a := range algs {
		d.hashes[i] = a.New()
	}
	return d
}

// Reader returns a reader that digests r's bytes as they are read.
func (d *Digester) Reader(r io.Reader) io.Reader {
	writers := make([]io.Writer, len(d.hashes))
	for i, h := range d.hashes {
		writers[i] = h
	}
	return io.TeeReader(r, io.MultiWriter(writers...))
}

// ReadFrom consumes r entirely, updating all configured digests.
func (d *Digester) ReadFrom(r io.Reader) (int64, error) {
	writers := make([]io.Writer, len(d.hashes))
	for i, h := range d.hashes {
		writers[i] = h
	}
	return io.Copy(io.MultiWriter(writers...), r)
}

// Sums returns the current digest values.
func (d *Digester) Sums() Set {
	set := make(Set, len(d.algs))
	for i, a := range d.algs {
		set[a.ID()] = hex.EncodeToString(d.hashes[i].Sum(nil))
	}
	return set
}

// Validate reads r and returns an *Err if any digest in want doesn't match
// the recomputed value.
func Validate(r io.Reader, path string, want Set) error {
	algs := make([]Alg, 0, len(want))
	for id := range want {
		a, err := Get(id)
		if err != nil {
			return err
		}
		algs = append(algs, a)
	}
	d := NewDigester(algs...)
	if _, err := d.ReadFrom(r); err != nil {
		return err
	}
	got := d.Sums()
	conflicts := want.ConflictsWith(got)
	if len(conflicts) == 0 {
		return nil
	}
	a := conflicts[0]
	return &Err{Path: path, Alg: a, Expected: want[a], Got: got[a]}
}
