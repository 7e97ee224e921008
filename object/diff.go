package object

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ocflkit/ocfl"
)

// Diff describes the logical-path-level differences between two versions
// of an object, including file renames inferred from matching digests.
type Diff struct {
	Added    []ocfl.LogicalPath
	Removed  []ocfl.LogicalPath
	Modified []ocfl.LogicalPath
	Renamed  map[ocfl.LogicalPath]ocfl.LogicalPath
}

// DiffVersions compares version a's state against version b's, both in the
// same inventory. When a is the zero VNum, the diff is against an empty
// state: every path in b comes back Added, a full additive listing rather
// than a diff against head.
func DiffVersions(o *Object, a, b ocfl.VNum) (Diff, error) {
	aPaths := map[ocfl.LogicalPath]string{}
	if !a.IsZero() {
		va, err := o.Version(a)
		if err != nil {
			return Diff{}, err
		}
		aFiles, err := va.Files()
		if err != nil {
			return Diff{}, err
		}
		for _, f := range aFiles {
			aPaths[f.Logical] = f.Digest
		}
	}
	vb, err := o.Version(b)
	if err != nil {
		return Diff{}, err
	}
	bFiles, err := vb.Files()
	if err != nil {
		return Diff{}, err
	}
	bPaths := make(map[ocfl.LogicalPath]string, len(bFiles))
	for _, f := range bFiles {
		bPaths[f.Logical] = f.Digest
	}
	return diffPaths(aPaths, bPaths), nil
}

func diffPaths(aPaths, bPaths map[ocfl.LogicalPath]string) Diff {
	addByDigest := map[string][]ocfl.LogicalPath{}
	rmByDigest := map[string][]ocfl.LogicalPath{}
	var result Diff

	for aPath, aDigest := range aPaths {
		bDigest, inB := bPaths[aPath]
		switch {
		case !inB:
			rmByDigest[aDigest] = append(rmByDigest[aDigest], aPath)
		case bDigest != aDigest:
			result.Modified = append(result.Modified, aPath)
		}
	}
	for bPath, bDigest := range bPaths {
		if _, inA := aPaths[bPath]; !inA {
			addByDigest[bDigest] = append(addByDigest[bDigest], bPath)
		}
	}

	renamed := map[ocfl.LogicalPath]ocfl.LogicalPath{}
	for d, addPaths := range addByDigest {
		rmPaths := rmByDigest[d]
		sortPaths(addPaths)
		sortPaths(rmPaths)
		if len(addPaths) > len(rmPaths) {
			for i, rm := range rmPaths {
				renamed[rm] = addPaths[i]
			}
			result.Added = append(result.Added, addPaths[len(rmPaths):]...)
		} else {
			for i, add := range addPaths {
				renamed[rmPaths[i]] = add
			}
			result.Removed = append(result.Removed, rmPaths[len(addPaths):]...)
		}
	}
	for d, rmPaths := range rmByDigest {
		if _, ok := addByDigest[d]; ok {
			continue
		}
		result.Removed = append(result.Removed, rmPaths...)
	}
	if len(renamed) > 0 {
		result.Renamed = renamed
	}
	sortPaths(result.Added)
	sortPaths(result.Removed)
	sortPaths(result.Modified)
	return result
}

func sortPaths(paths []ocfl.LogicalPath) {
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })
}

func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0 && len(d.Renamed) == 0
}

func (d Diff) String() string {
	var b strings.Builder
	for _, p := range d.Added {
		fmt.Fprintln(&b, "+", p)
	}
	for _, p := range d.Removed {
		fmt.Fprintln(&b, "-", p)
	}
	for _, p := range d.Modified {
		fmt.Fprintln(&b, "~", p)
	}
	moved := make([]ocfl.LogicalPath, 0, len(d.Renamed))
	for from := range d.Renamed {
		moved = append(moved, from)
	}
	sortPaths(moved)
	for _, from := range moved {
		fmt.Fprintln(&b, from, "->", d.Renamed[from])
	}
	return b.String()
}
