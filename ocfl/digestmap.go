package ocfl

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	hexDigestRE = regexp.MustCompile(`^[0-9a-fA-F]+$`)

	// ErrMapMakerExists is returned by MapMaker.Add when the same
	// (digest, path) pair is added more than once. Callers that expect
	// idempotent re-adds (e.g. deduplicating content already in the
	// manifest) should treat this as success, not failure.
	ErrMapMakerExists = errors.New("digest map: path and digest already present")
)

// DigestMap is the digest -> []path structure shared by an inventory's
// manifest, each version's state, and each fixity algorithm's entries.
type DigestMap map[string][]InventoryPath

// GetDigest returns the digest associated with p, or "" if p isn't present.
func (dm DigestMap) GetDigest(p InventoryPath) string {
	for d, paths := range dm {
		for _, cand := range paths {
			if cand == p {
				return d
			}
		}
	}
	return ""
}

// DigestPaths returns the paths associated with digest (case-insensitive),
// or nil if digest isn't present.
func (dm DigestMap) DigestPaths(digest string) []InventoryPath {
	for d, paths := range dm {
		if strings.EqualFold(d, digest) {
			return paths
		}
	}
	return nil
}

// HasDigest reports whether digest appears as a key (case-insensitive).
func (dm DigestMap) HasDigest(digest string) bool {
	return dm.DigestPaths(digest) != nil
}

// EachPath calls fn for every (path, digest) pair. Iteration order is
// unspecified; fn must not mutate dm.
func (dm DigestMap) EachPath(fn func(p InventoryPath, digest string) error) error {
	for d, paths := range dm {
		for _, p := range paths {
			if err := fn(p, d); err != nil {
				return err
			}
		}
	}
	return nil
}

// Normalized returns a copy of dm with digest keys lowercased and each
// path list sorted, validating every path and digest along the way. Two
// digest maps that are logically identical always normalize to the same
// value, which is what makes canonical JSON serialization (and therefore
// the sidecar digest) stable.
func (dm DigestMap) Normalized() (DigestMap, error) {
	if dm == nil {
		return DigestMap{}, nil
	}
	out := make(DigestMap, len(dm))
	seenPaths := make(map[InventoryPath]string, len(dm))
	for digest, paths := range dm {
		if !hexDigestRE.MatchString(digest) {
			return nil, fmt.Errorf("invalid digest %q: %w", digest, ErrPathInvalid)
		}
		lower := strings.ToLower(digest)
		if _, exists := out[lower]; exists {
			return nil, fmt.Errorf("duplicate digest (case-insensitive): %s", lower)
		}
		cp := make([]InventoryPath, len(paths))
		copy(cp, paths)
		for _, p := range cp {
			if err := p.Valid(); err != nil {
				return nil, err
			}
			if prior, ok := seenPaths[p]; ok && prior != lower {
				return nil, fmt.Errorf("path %q maps to multiple digests", p)
			}
			seenPaths[p] = lower
		}
		sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
		out[lower] = cp
	}
	return out, nil
}

// Valid reports whether dm normalizes without error.
func (dm DigestMap) Valid() error {
	_, err := dm.Normalized()
	return err
}

// MapMaker incrementally builds a DigestMap, tolerating repeated Add calls
// for the same (digest, path) pair (returning ErrMapMakerExists, which
// callers building a manifest from staged, possibly-overlapping paths are
// expected to ignore) while still rejecting a path claimed by two
// different digests.
type MapMaker struct {
	byPath map[InventoryPath]string
	byDig  map[string][]InventoryPath
}

// Add records that p has the given digest. If p was already added with the
// same digest, it returns ErrMapMakerExists (not a failure — the caller
// asked for the same fact twice). If p was already added with a different
// digest, that's a real conflict.
func (m *MapMaker) Add(digest string, p InventoryPath) error {
	if m.byPath == nil {
		m.byPath = make(map[InventoryPath]string)
		m.byDig = make(map[string][]InventoryPath)
	}
	if prior, ok := m.byPath[p]; ok {
		if prior == digest {
			return ErrMapMakerExists
		}
		return fmt.Errorf("path %q already claimed by digest %s, cannot add %s", p, prior, digest)
	}
	m.byPath[p] = digest
	m.byDig[digest] = append(m.byDig[digest], p)
	return nil
}

// HasDigest reports whether digest has at least one path added.
func (m *MapMaker) HasDigest(digest string) bool {
	return len(m.byDig[digest]) > 0
}

// Map returns the accumulated DigestMap.
func (m *MapMaker) Map() DigestMap {
	out := make(DigestMap, len(m.byDig))
	for d, paths := range m.byDig {
		cp := make([]InventoryPath, len(paths))
		copy(cp, paths)
		out[d] = cp
	}
	return out
}
