package ocfl_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/ocflkit/ocfl"
	"github.com/ocflkit/ocfl/backend"
	"github.com/ocflkit/ocfl/digest"
)

// memFS is a minimal in-memory backend.WriteFS used to exercise inventory
// serialization without touching disk.
type memFS struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemFS() *memFS { return &memFS{files: map[string][]byte{}} }

func (m *memFS) OpenFile(_ context.Context, name string) (fs.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return &memFile{r: bytes.NewReader(b), name: name, size: int64(len(b))}, nil
}

func (m *memFS) DirEntries(_ context.Context, _ string) ([]fs.DirEntry, error) { return nil, nil }

func (m *memFS) Write(_ context.Context, name string, r io.Reader) (int64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	m.files[name] = b
	m.mu.Unlock()
	return int64(len(b)), nil
}

func (m *memFS) WriteNew(ctx context.Context, name string, r io.Reader) (int64, error) {
	m.mu.Lock()
	_, exists := m.files[name]
	m.mu.Unlock()
	if exists {
		return 0, &fs.PathError{Op: "create", Path: name, Err: fs.ErrExist}
	}
	return m.Write(ctx, name, r)
}

func (m *memFS) Rename(_ context.Context, src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[src]
	if !ok {
		return &fs.PathError{Op: "rename", Path: src, Err: fs.ErrNotExist}
	}
	m.files[dst] = b
	delete(m.files, src)
	return nil
}

func (m *memFS) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, name)
	return nil
}

func (m *memFS) RemoveAll(_ context.Context, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.files {
		if strings.HasPrefix(name, dir+"/") || name == dir {
			delete(m.files, name)
		}
	}
	return nil
}

type memFile struct {
	r    *bytes.Reader
	name string
	size int64
}

func (f *memFile) Stat() (fs.FileInfo, error) { return memFileInfo{f.name, f.size}, nil }
func (f *memFile) Read(p []byte) (int, error) { return f.r.Read(p) }
func (f *memFile) Close() error               { return nil }

type memFileInfo struct {
	name string
	size int64
}

func (i memFileInfo) Name() string       { return path.Base(i.name) }
func (i memFileInfo) Size() int64        { return i.size }
func (i memFileInfo) Mode() fs.FileMode  { return 0o644 }
func (i memFileInfo) ModTime() time.Time { return time.Time{} }
func (i memFileInfo) IsDir() bool        { return false }
func (i memFileInfo) Sys() any           { return nil }

var _ backend.WriteFS = (*memFS)(nil)

func newSingleVersionInventory(t *testing.T) *ocfl.Inventory {
	t.Helper()
	inv, err := ocfl.NewInventory("test-object-1", digest.SHA512)
	if err != nil {
		t.Fatal(err)
	}
	var mm ocfl.MapMaker
	content, _ := ocfl.NewInventoryPath("v1/content/a.txt")
	if err := mm.Add(strings.Repeat("ab", 32), content); err != nil {
		t.Fatal(err)
	}
	inv.Manifest = mm.Map()
	state := ocfl.DigestMap{}
	logical, _ := ocfl.NewInventoryPath("a.txt")
	state[strings.Repeat("ab", 32)] = []ocfl.InventoryPath{logical}
	inv.Versions[ocfl.V(1)] = &ocfl.Version{
		Created: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Message: "first version",
		User:    &ocfl.User{Name: "tester"},
		State:   state,
	}
	inv.Head = ocfl.V(1)
	return inv
}

func TestInventoryValidate(t *testing.T) {
	is := is.New(t)
	inv := newSingleVersionInventory(t)
	is.NoErr(inv.Validate())
}

func TestInventoryValidateRejectsMissingManifestDigest(t *testing.T) {
	is := is.New(t)
	inv := newSingleVersionInventory(t)
	ver := inv.Versions[inv.Head]
	orphan, _ := ocfl.NewInventoryPath("orphan.txt")
	ver.State["ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"] = []ocfl.InventoryPath{orphan}
	err := inv.Validate()
	is.True(err != nil)
	is.True(errors.Is(err, ocfl.ErrInventoryInvalid))
}

func TestInventoryWriteReadRoundTrip(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys := newMemFS()
	inv := newSingleVersionInventory(t)

	sum, err := ocfl.WriteInventory(ctx, fsys, "obj", inv)
	is.NoErr(err)
	is.True(sum != "")

	got, err := ocfl.ReadInventory(ctx, fsys, "obj")
	is.NoErr(err)
	is.Equal(got.ID, inv.ID)
	is.Equal(got.Head, inv.Head)
	is.Equal(got.Digest(), sum)
}

func TestInventoryReadDetectsSidecarMismatch(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys := newMemFS()
	inv := newSingleVersionInventory(t)
	_, err := ocfl.WriteInventory(ctx, fsys, "obj", inv)
	is.NoErr(err)

	_, err = fsys.Write(ctx, "obj/inventory.json.sha512", bytes.NewBufferString(strings.Repeat("0", 128)+"   inventory.json\n"))
	is.NoErr(err)

	_, err = ocfl.ReadInventory(ctx, fsys, "obj")
	is.True(err != nil)
	var digestErr *digest.Err
	is.True(errors.As(err, &digestErr))
}

func TestInventoryReadMissing(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys := newMemFS()
	_, err := ocfl.ReadInventory(ctx, fsys, "nope")
	is.True(err != nil)
	is.True(errors.Is(err, ocfl.ErrInventoryOpen))
}
