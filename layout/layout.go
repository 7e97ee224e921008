// Package layout implements the OCFL storage root extensions that map an
// object id to the path of its object root, and the package-level registry
// the repo package consults when a root declares its layout extension.
package layout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/ocflkit/ocfl/backend"
)

// Extension names, matching the registered OCFL community extension
// numbers these layouts implement.
const (
	FlatDirect     = "0002-flat-direct-storage-layout"
	HashedNTupleID = "0003-hash-and-id-n-tuple-storage-layout"
	HashedNTuple   = "0004-hashed-n-tuple-storage-layout"
)

var (
	ErrUnknown   = errors.New("unrecognized storage layout extension")
	ErrNoLayout  = errors.New("storage root does not declare a layout extension")
	ErrMalformed = errors.New("malformed layout extension config")
)

// Layout resolves an object id to the path of its object root, relative to
// the storage root.
type Layout interface {
	Name() string
	Resolve(id string) (string, error)
}

var registry = map[string]func() Layout{
	FlatDirect:     func() Layout { return &FlatDirectLayout{} },
	HashedNTupleID: NewHashedNTupleIDLayout,
	HashedNTuple:   NewHashedNTupleLayout,
}

// Get returns a new instance of the named layout, populated with defaults.
func Get(name string) (Layout, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknown)
	}
	return ctor(), nil
}

// Registered lists every layout extension name this package can resolve.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// configEnvelope is the shape every layout extension's config.json shares:
// an extensionName discriminator plus extension-specific fields, which are
// re-decoded into the concrete Layout type once the name is known.
type configEnvelope struct {
	Name string `json:"extensionName"`
}

// Unmarshal decodes a layout extension's config.json.
func Unmarshal(raw []byte) (Layout, error) {
	var env configEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	l, err := Get(env.Name)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, l); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return l, nil
}

// ocflLayoutDoc is the shape of the storage root's top-level
// ocfl_layout.json file, which names the active layout extension without
// its parameters (those live in extensions/<name>/config.json).
type ocflLayoutDoc struct {
	Extension   string `json:"extension"`
	Description string `json:"description,omitempty"`
}

// Read loads the active layout for a storage root at dir: ocfl_layout.json
// names the extension, and extensions/<name>/config.json supplies its
// parameters. Returns ErrNoLayout if the root declares none, which callers
// should treat as "object paths must be discovered by scanning the tree."
func Read(ctx context.Context, fsys backend.FS, dir string) (Layout, error) {
	raw, err := backend.ReadAll(ctx, fsys, path.Join(dir, "ocfl_layout.json"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoLayout)
	}
	var doc ocflLayoutDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("ocfl_layout.json: %w", ErrMalformed)
	}
	cfgPath := path.Join(dir, "extensions", doc.Extension, "config.json")
	cfgRaw, err := backend.ReadAll(ctx, fsys, cfgPath)
	if err != nil {
		// A declared layout with no config.json is valid when the layout
		// has no parameters to persist (e.g. flat-direct); fall back to
		// its default parameters.
		return Get(doc.Extension)
	}
	l, err := Get(doc.Extension)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cfgRaw, l); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return l, nil
}

// Write persists l as the storage root's active layout: ocfl_layout.json
// plus extensions/<name>/config.json.
func Write(ctx context.Context, fsys backend.WriteFS, dir string, l Layout, description string) error {
	doc := ocflLayoutDoc{Extension: l.Name(), Description: description}
	docRaw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if _, err := fsys.Write(ctx, path.Join(dir, "ocfl_layout.json"), bytes.NewReader(docRaw)); err != nil {
		return err
	}
	cfgRaw, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return err
	}
	cfgPath := path.Join(dir, "extensions", l.Name(), "config.json")
	_, err = fsys.Write(ctx, cfgPath, bytes.NewReader(cfgRaw))
	return err
}
