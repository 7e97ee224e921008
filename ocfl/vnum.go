package ocfl

import (
	"encoding"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

var (
	ErrVNumInvalid = errors.New("invalid OCFL version number")
	ErrVNumPadding = errors.New("inconsistent version number padding")
	ErrVNumMissing = errors.New("missing version in version sequence")
	ErrVNumEmpty   = errors.New("no versions found")

	// Head is the zero-value VNum. Functions that accept a VNum treat the
	// zero value as "use the object's most recent version."
	Head = VNum{}
)

// VNum is an OCFL version number such as "v1" or "v0003". The sequence
// number is always >= 1; padding, if non-zero, is the fixed digit-width all
// versions of the same object must share.
type VNum struct {
	num     int
	padding int
}

// V builds a VNum from a sequence number and, optionally, a padding width.
func V(num int, padding ...int) VNum {
	v := VNum{num: num}
	if len(padding) > 0 {
		v.padding = padding[0]
	}
	return v
}

// ParseVNum parses str (e.g. "v3", "v0003") as a VNum.
func ParseVNum(str string) (VNum, error) {
	if len(str) < 2 || str[0] != 'v' {
		return VNum{}, fmt.Errorf("%q: %w", str, ErrVNumInvalid)
	}
	digits := str[1:]
	var padding int
	if digits[0] == '0' {
		padding = len(digits)
	}
	var nonzero bool
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		if c < '0' || c > '9' {
			return VNum{}, fmt.Errorf("%q: %w", str, ErrVNumInvalid)
		}
		if c != '0' {
			nonzero = true
		}
	}
	if !nonzero {
		return VNum{}, fmt.Errorf("%q: %w", str, ErrVNumInvalid)
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return VNum{}, fmt.Errorf("%q: %w", str, ErrVNumInvalid)
	}
	return VNum{num: n, padding: padding}, nil
}

// MustParseVNum parses str and panics on error. Intended for tests and
// package-level constants.
func MustParseVNum(str string) VNum {
	v, err := ParseVNum(str)
	if err != nil {
		panic(err)
	}
	return v
}

// Num returns the version's sequence number (1, 2, 3, ...).
func (v VNum) Num() int { return v.num }

// Padding returns the version's zero-pad width, or 0 if unpadded.
func (v VNum) Padding() int { return v.padding }

// IsZero reports whether v is the Head sentinel.
func (v VNum) IsZero() bool { return v == Head }

// First reports whether v is version 1.
func (v VNum) First() bool { return v.num == 1 }

// Next returns the version after v, preserving padding. An error is
// returned if incrementing would overflow the padding width.
func (v VNum) Next() (VNum, error) {
	next := VNum{num: v.num + 1, padding: v.padding}
	if next.paddingOverflow() {
		return VNum{}, fmt.Errorf("next version after %s: %w", v, ErrVNumInvalid)
	}
	return next, nil
}

// Prev returns the version before v. An error is returned if v is version 1.
func (v VNum) Prev() (VNum, error) {
	if v.num <= 1 {
		return VNum{}, errors.New("version 1 has no previous version")
	}
	return VNum{num: v.num - 1, padding: v.padding}, nil
}

// String renders v as "v1" or, if padded, "v001".
func (v VNum) String() string {
	return fmt.Sprintf("v%0*d", v.padding, v.num)
}

// Valid reports whether v is a legal version number: positive, and not
// overflowing its own padding.
func (v VNum) Valid() error {
	if v.num <= 0 || v.paddingOverflow() {
		return fmt.Errorf("%w: num=%d padding=%d", ErrVNumInvalid, v.num, v.padding)
	}
	return nil
}

func (v VNum) paddingOverflow() bool {
	return v.padding > 0 && v.num >= int(math.Pow10(v.padding-1))
}

// Lineage returns the sequence v1..v (inclusive) sharing v's padding.
func (v VNum) Lineage() VNums {
	if v.num == 0 {
		return nil
	}
	out := make(VNums, v.num)
	for i := range out {
		out[i] = VNum{num: i + 1, padding: v.padding}
	}
	return out
}

var (
	_ encoding.TextMarshaler   = VNum{}
	_ encoding.TextUnmarshaler = (*VNum)(nil)
)

func (v VNum) MarshalText() ([]byte, error) {
	if err := v.Valid(); err != nil {
		return nil, err
	}
	return []byte(v.String()), nil
}

func (v *VNum) UnmarshalText(text []byte) error {
	parsed, err := ParseVNum(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// VNums is a sortable slice of VNum, used to validate an object's whole
// version sequence at once.
type VNums []VNum

// Valid reports whether vs is non-empty, numbered contiguously from 1, and
// shares a single padding width that doesn't overflow at the head.
func (vs VNums) Valid() error {
	if len(vs) == 0 {
		return ErrVNumEmpty
	}
	sorted := make(VNums, len(vs))
	copy(sorted, vs)
	sort.Sort(sorted)
	padding := sorted[0].padding
	for i, v := range sorted {
		if v.num != i+1 {
			return fmt.Errorf("%w: expected %s", ErrVNumMissing, V(i+1, padding))
		}
		if v.padding != padding {
			return ErrVNumPadding
		}
	}
	return sorted.Head().Valid()
}

// Head returns the highest-numbered VNum in vs, or the zero value if vs is
// empty. vs need not be sorted.
func (vs VNums) Head() VNum {
	var head VNum
	for _, v := range vs {
		if v.num > head.num {
			head = v
		}
	}
	return head
}

func (vs VNums) Len() int           { return len(vs) }
func (vs VNums) Less(i, j int) bool { return vs[i].num < vs[j].num }
func (vs VNums) Swap(i, j int)      { vs[i], vs[j] = vs[j], vs[i] }

var _ sort.Interface = VNums(nil)
