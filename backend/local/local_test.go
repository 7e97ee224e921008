package local_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/ocflkit/ocfl/backend/local"
)

func TestWriteOpenRoundTrip(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys, err := local.NewFS(t.TempDir())
	is.NoErr(err)

	n, err := fsys.Write(ctx, "a/b/c.txt", strings.NewReader("hello"))
	is.NoErr(err)
	is.Equal(n, int64(5))

	f, err := fsys.OpenFile(ctx, "a/b/c.txt")
	is.NoErr(err)
	defer f.Close()
	got, err := io.ReadAll(f)
	is.NoErr(err)
	is.Equal(string(got), "hello")
}

func TestWriteNewRejectsExisting(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys, err := local.NewFS(t.TempDir())
	is.NoErr(err)

	_, err = fsys.WriteNew(ctx, "f.txt", strings.NewReader("one"))
	is.NoErr(err)
	_, err = fsys.WriteNew(ctx, "f.txt", strings.NewReader("two"))
	is.True(err != nil)
	is.True(os.IsExist(err))
}

func TestDirEntriesSorted(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys, err := local.NewFS(t.TempDir())
	is.NoErr(err)
	for _, name := range []string{"c.txt", "a.txt", "b.txt"} {
		_, err := fsys.Write(ctx, name, strings.NewReader(name))
		is.NoErr(err)
	}
	entries, err := fsys.DirEntries(ctx, ".")
	is.NoErr(err)
	is.Equal(len(entries), 3)
	is.Equal(entries[0].Name(), "a.txt")
	is.Equal(entries[1].Name(), "b.txt")
	is.Equal(entries[2].Name(), "c.txt")
}

func TestDirEntriesMissingIsEmpty(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys, err := local.NewFS(t.TempDir())
	is.NoErr(err)
	entries, err := fsys.DirEntries(ctx, "does-not-exist")
	is.NoErr(err)
	is.Equal(len(entries), 0)
}

func TestRenameAndRemove(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys, err := local.NewFS(t.TempDir())
	is.NoErr(err)
	_, err = fsys.Write(ctx, "old.txt", strings.NewReader("x"))
	is.NoErr(err)
	is.NoErr(fsys.Rename(ctx, "old.txt", "new.txt"))
	_, err = fsys.OpenFile(ctx, "old.txt")
	is.True(err != nil)
	f, err := fsys.OpenFile(ctx, "new.txt")
	is.NoErr(err)
	f.Close()
	is.NoErr(fsys.Remove(ctx, "new.txt"))
	_, err = fsys.OpenFile(ctx, "new.txt")
	is.True(err != nil)
}

func TestCopy(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys, err := local.NewFS(t.TempDir())
	is.NoErr(err)
	_, err = fsys.Write(ctx, "src.txt", strings.NewReader("copy me"))
	is.NoErr(err)
	n, err := fsys.Copy(ctx, "dst.txt", "src.txt")
	is.NoErr(err)
	is.Equal(n, int64(7))
	f, err := fsys.OpenFile(ctx, "dst.txt")
	is.NoErr(err)
	defer f.Close()
	got, err := io.ReadAll(f)
	is.NoErr(err)
	is.Equal(string(got), "copy me")
}

func TestWalkObjectRoots(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	dir := t.TempDir()
	fsys, err := local.NewFS(dir)
	is.NoErr(err)

	_, err = fsys.Write(ctx, "objects/a/b/0=ocfl_object_1.0", strings.NewReader("ocfl_object_1.0\n"))
	is.NoErr(err)
	_, err = fsys.Write(ctx, "objects/a/b/inventory.json", strings.NewReader("{}"))
	is.NoErr(err)
	_, err = fsys.Write(ctx, "objects/c/d/0=ocfl_object_1.0", strings.NewReader("ocfl_object_1.0\n"))
	is.NoErr(err)

	var found []string
	err = fsys.WalkObjectRoots("objects", func(p string) error {
		found = append(found, p)
		return nil
	})
	is.NoErr(err)
	is.Equal(len(found), 2)

	abs := filepath.Join(dir, "objects", "a", "b")
	info, err := os.Stat(abs)
	is.NoErr(err)
	is.True(info.IsDir())
}
