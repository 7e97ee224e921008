package ocfl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"regexp"
	"strings"

	"github.com/ocflkit/ocfl/backend"
)

// NAMASTE declaration type strings, per the Namaste convention OCFL 1.0
// builds its root/object markers on.
const (
	NamasteTypeRoot   = "ocfl"
	NamasteTypeObject = "ocfl_object"
)

var (
	ErrNamasteNotExist = fmt.Errorf("missing NAMASTE declaration: %w", fs.ErrNotExist)
	ErrNamasteContents = errors.New("invalid NAMASTE declaration contents")
	ErrNamasteMultiple = errors.New("multiple NAMASTE declarations found")

	namasteRE = regexp.MustCompile(`^0=([a-z_]+)_([0-9]+\.[0-9]+)$`)
)

// Namaste is a parsed "0=TYPE_VERSION" declaration file.
type Namaste struct {
	Type    string
	Version Spec
}

// ParseNamaste parses name (a bare filename, not a path) as a NAMASTE
// declaration.
func ParseNamaste(name string) (Namaste, error) {
	m := namasteRE.FindStringSubmatch(name)
	if len(m) != 3 {
		return Namaste{}, ErrNamasteNotExist
	}
	return Namaste{Type: m[1], Version: Spec(m[2])}, nil
}

// FindNamaste scans entries for exactly one NAMASTE declaration file,
// returning an error if there are zero or more than one.
func FindNamaste(entries []fs.DirEntry) (Namaste, error) {
	var found []Namaste
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n, err := ParseNamaste(e.Name()); err == nil {
			found = append(found, n)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return Namaste{}, ErrNamasteNotExist
	default:
		return Namaste{}, ErrNamasteMultiple
	}
}

// Name returns the declaration's filename, "0=TYPE_VERSION".
func (n Namaste) Name() string {
	if n.Type == "" || n.Version.Empty() {
		return ""
	}
	return "0=" + n.Type + "_" + string(n.Version)
}

// Body returns the expected file contents of the declaration.
func (n Namaste) Body() string {
	if n.Type == "" || n.Version.Empty() {
		return ""
	}
	return n.Type + "_" + string(n.Version) + "\n"
}

func (n Namaste) IsRoot() bool   { return n.Type == NamasteTypeRoot }
func (n Namaste) IsObject() bool { return n.Type == NamasteTypeObject }

// WriteDeclaration writes d's declaration file into dir.
func WriteDeclaration(ctx context.Context, fsys backend.WriteFS, dir string, d Namaste) error {
	_, err := fsys.Write(ctx, path.Join(dir, d.Name()), strings.NewReader(d.Body()))
	if err != nil {
		return fmt.Errorf("writing NAMASTE declaration: %w", err)
	}
	return nil
}

// ValidateDeclaration checks that the declaration file at dir/name has the
// exact contents NAMASTE requires.
func ValidateDeclaration(ctx context.Context, fsys backend.FS, dir, name string) error {
	n, err := ParseNamaste(name)
	if err != nil {
		return err
	}
	f, err := fsys.OpenFile(ctx, path.Join(dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", name, ErrNamasteNotExist)
		}
		return err
	}
	defer f.Close()
	body, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	if string(body) != n.Body() {
		return fmt.Errorf("%s: %w", name, ErrNamasteContents)
	}
	return nil
}
