package ocfl

import (
	"errors"
	"strings"
)

const (
	invTypePrefix = "https://ocfl.io/"
	invTypeSuffix = "/spec/#inventory"

	// Spec10 is the only OCFL specification version this module implements.
	Spec10 = Spec("1.0")
)

var ErrSpecInvalid = errors.New("invalid or unsupported OCFL spec version")

// Spec is an OCFL specification version tag, e.g. "1.0".
type Spec string

// Valid reports whether s is a specification version this module supports.
func (s Spec) Valid() error {
	if s != Spec10 {
		return ErrSpecInvalid
	}
	return nil
}

func (s Spec) Empty() bool { return s == Spec("") }

// InvType returns the inventory "type" URI for s, e.g.
// "https://ocfl.io/1.0/spec/#inventory".
func (s Spec) InvType() InvType { return InvType{Spec: s} }

// InvType is the inventory.json "type" field.
type InvType struct{ Spec }

func (t InvType) String() string { return invTypePrefix + string(t.Spec) + invTypeSuffix }

func (t InvType) MarshalText() ([]byte, error) {
	if err := t.Spec.Valid(); err != nil {
		return nil, err
	}
	return []byte(t.String()), nil
}

func (t *InvType) UnmarshalText(text []byte) error {
	s := strings.TrimSuffix(strings.TrimPrefix(string(text), invTypePrefix), invTypeSuffix)
	spec := Spec(s)
	if err := spec.Valid(); err != nil {
		return err
	}
	t.Spec = spec
	return nil
}
