package repo_test

import (
	"context"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/ocflkit/ocfl"
	"github.com/ocflkit/ocfl/backend/local"
	"github.com/ocflkit/ocfl/digest"
	"github.com/ocflkit/ocfl/layout"
	"github.com/ocflkit/ocfl/repo"
)

func newFS(t *testing.T) *local.FS {
	t.Helper()
	fsys, err := local.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return fsys
}

func TestInitAndCommitFirstVersion(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys := newFS(t)

	l, err := layout.Get(layout.HashedNTuple)
	is.NoErr(err)
	r, err := repo.Init(ctx, fsys, ".", l, "test repo")
	is.NoErr(err)

	draft, err := r.NewObject(ctx, "urn:x:a", digest.SHA256)
	is.NoErr(err)

	a, _ := ocfl.NewInventoryPath("a.txt")
	is.NoErr(draft.AddFile(ctx, a, strings.NewReader("hi")))
	b, _ := ocfl.NewInventoryPath("b/c.txt")
	is.NoErr(draft.AddFile(ctx, b, strings.NewReader("ho")))
	is.NoErr(draft.SetUser(ctx, &ocfl.User{Name: "T", Address: "t@x"}))

	inv, err := draft.Commit(ctx)
	is.NoErr(err)
	is.Equal(inv.Head, ocfl.V(1))
	is.Equal(len(inv.Manifest), 2)

	obj, err := r.OpenObject(ctx, "urn:x:a")
	is.NoErr(err)
	is.Equal(obj.Inv.Head, ocfl.V(1))
}

func TestSecondAcquireFailsWhileDraftOpen(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys := newFS(t)
	l, err := layout.Get(layout.FlatDirect)
	is.NoErr(err)
	r, err := repo.Init(ctx, fsys, ".", l, "")
	is.NoErr(err)

	draft, err := r.NewObject(ctx, "obj-1", digest.SHA256)
	is.NoErr(err)

	_, err = r.NewObject(ctx, "obj-1", digest.SHA256)
	is.True(err != nil)

	is.NoErr(draft.Abandon(ctx))

	draft2, err := r.NewObject(ctx, "obj-1", digest.SHA256)
	is.NoErr(err)
	is.NoErr(draft2.Abandon(ctx))
}

func TestObjectsListsCommittedObjects(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys := newFS(t)
	l, err := layout.Get(layout.FlatDirect)
	is.NoErr(err)
	r, err := repo.Init(ctx, fsys, ".", l, "")
	is.NoErr(err)

	for _, id := range []string{"alpha", "beta", "gamma"} {
		d, err := r.NewObject(ctx, id, digest.SHA256)
		is.NoErr(err)
		p, _ := ocfl.NewInventoryPath("f.txt")
		is.NoErr(d.AddFile(ctx, p, strings.NewReader(id)))
		_, err = d.Commit(ctx)
		is.NoErr(err)
	}

	infos, err := r.Objects(ctx, "")
	is.NoErr(err)
	is.Equal(len(infos), 3)
	is.Equal(infos[0].ID, "alpha")
	is.Equal(infos[1].ID, "beta")
	is.Equal(infos[2].ID, "gamma")

	filtered, err := r.Objects(ctx, "b*")
	is.NoErr(err)
	is.Equal(len(filtered), 1)
	is.Equal(filtered[0].ID, "beta")
}

func TestPurgeRemovesObject(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys := newFS(t)
	l, err := layout.Get(layout.FlatDirect)
	is.NoErr(err)
	r, err := repo.Init(ctx, fsys, ".", l, "")
	is.NoErr(err)

	d, err := r.NewObject(ctx, "to-purge", digest.SHA256)
	is.NoErr(err)
	p, _ := ocfl.NewInventoryPath("f.txt")
	is.NoErr(d.AddFile(ctx, p, strings.NewReader("x")))
	_, err = d.Commit(ctx)
	is.NoErr(err)

	is.NoErr(r.Purge(ctx, "to-purge"))

	_, err = r.OpenObject(ctx, "to-purge")
	is.True(err != nil)
}

func TestValidateCommittedObject(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys := newFS(t)
	l, err := layout.Get(layout.FlatDirect)
	is.NoErr(err)
	r, err := repo.Init(ctx, fsys, ".", l, "")
	is.NoErr(err)

	d, err := r.NewObject(ctx, "valid-obj", digest.SHA256)
	is.NoErr(err)
	p, _ := ocfl.NewInventoryPath("f.txt")
	is.NoErr(d.AddFile(ctx, p, strings.NewReader("x")))
	is.NoErr(d.SetMessage(ctx, "first commit"))
	is.NoErr(d.SetUser(ctx, &ocfl.User{Name: "T"}))
	_, err = d.Commit(ctx)
	is.NoErr(err)

	res, err := r.Validate(ctx, "valid-obj")
	is.NoErr(err)
	is.True(res.Valid())
	is.Equal(len(res.Fatal()), 0)
}
