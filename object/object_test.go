package object_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/ocflkit/ocfl"
	"github.com/ocflkit/ocfl/backend/local"
	"github.com/ocflkit/ocfl/digest"
	"github.com/ocflkit/ocfl/object"
)

const (
	digestA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	digestB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	digestC = "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"
)

func buildTwoVersionObject(t *testing.T) (*local.FS, string) {
	t.Helper()
	ctx := context.Background()
	fsys, err := local.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	dir := "obj1"

	if err := ocfl.WriteDeclaration(ctx, fsys, dir, ocfl.Namaste{Type: ocfl.NamasteTypeObject, Version: ocfl.Spec10}); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"v1/content/a.txt", "v2/content/b.txt"} {
		if _, err := fsys.Write(ctx, dir+"/"+name, strings.NewReader(name)); err != nil {
			t.Fatal(err)
		}
	}

	inv, err := ocfl.NewInventory("urn:test:obj1", digest.SHA256)
	if err != nil {
		t.Fatal(err)
	}
	var mm ocfl.MapMaker
	pa, _ := ocfl.NewInventoryPath("v1/content/a.txt")
	pb, _ := ocfl.NewInventoryPath("v2/content/b.txt")
	must(t, mm.Add(digestA, pa))
	must(t, mm.Add(digestB, pb))
	inv.Manifest = mm.Map()

	la, _ := ocfl.NewInventoryPath("a.txt")
	lb, _ := ocfl.NewInventoryPath("b.txt")

	inv.Versions[ocfl.V(1)] = &ocfl.Version{
		Created: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Message: "v1",
		State:   ocfl.DigestMap{digestA: {la}},
	}
	inv.Versions[ocfl.V(2)] = &ocfl.Version{
		Created: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Message: "v2",
		State:   ocfl.DigestMap{digestA: {la}, digestB: {lb}},
	}
	inv.Head = ocfl.V(2)

	if _, err := ocfl.WriteInventory(ctx, fsys, dir, inv); err != nil {
		t.Fatal(err)
	}
	return fsys, dir
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func TestOpenAndFiles(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys, dir := buildTwoVersionObject(t)

	obj, err := object.Open(ctx, fsys, dir)
	is.NoErr(err)
	is.Equal(obj.Inv.Head, ocfl.V(2))

	head, err := obj.Version(ocfl.Head)
	is.NoErr(err)
	files, err := head.Files()
	is.NoErr(err)
	is.Equal(len(files), 2)
}

func TestGetFile(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys, dir := buildTwoVersionObject(t)
	obj, err := object.Open(ctx, fsys, dir)
	is.NoErr(err)

	v1, err := obj.Version(ocfl.V(1))
	is.NoErr(err)
	la, _ := ocfl.NewInventoryPath("a.txt")
	f, err := v1.GetFile(ctx, la)
	is.NoErr(err)
	defer f.Close()
	got, err := io.ReadAll(f)
	is.NoErr(err)
	is.Equal(string(got), "v1/content/a.txt")
}

func TestGetFileMissingInVersion(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys, dir := buildTwoVersionObject(t)
	obj, err := object.Open(ctx, fsys, dir)
	is.NoErr(err)

	v1, err := obj.Version(ocfl.V(1))
	is.NoErr(err)
	lb, _ := ocfl.NewInventoryPath("b.txt")
	_, err = v1.GetFile(ctx, lb)
	is.True(err != nil)
}

func TestListFileVersions(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys, dir := buildTwoVersionObject(t)
	obj, err := object.Open(ctx, fsys, dir)
	is.NoErr(err)

	la, _ := ocfl.NewInventoryPath("a.txt")
	vs, err := obj.ListFileVersions(la)
	is.NoErr(err)
	is.Equal(len(vs), 1)
	is.Equal(vs[0], ocfl.V(1))

	lb, _ := ocfl.NewInventoryPath("b.txt")
	vs, err = obj.ListFileVersions(lb)
	is.NoErr(err)
	is.Equal(len(vs), 1)
	is.Equal(vs[0], ocfl.V(2))
}

func TestDiffVersions(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys, dir := buildTwoVersionObject(t)
	obj, err := object.Open(ctx, fsys, dir)
	is.NoErr(err)

	d, err := object.DiffVersions(obj, ocfl.V(1), ocfl.V(2))
	is.NoErr(err)
	is.Equal(len(d.Added), 1)
	is.Equal(string(d.Added[0]), "b.txt")
	is.Equal(len(d.Removed), 0)
	is.True(!d.Empty())
}
