package stage_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/ocflkit/ocfl"
	"github.com/ocflkit/ocfl/backend/local"
	"github.com/ocflkit/ocfl/digest"
	"github.com/ocflkit/ocfl/object"
	"github.com/ocflkit/ocfl/stage"
)

func newFS(t *testing.T) *local.FS {
	t.Helper()
	fsys, err := local.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return fsys
}

func TestCommitNewObject(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys := newFS(t)

	s, err := stage.Begin(ctx, fsys, ".", "obj1", "urn:test:obj1", digest.SHA256, stage.WithMessage("first"))
	is.NoErr(err)
	is.Equal(s.Head(), ocfl.V(1))

	la, _ := ocfl.NewInventoryPath("a.txt")
	is.NoErr(s.AddFile(ctx, la, strings.NewReader("hello")))

	inv, err := s.Commit(ctx)
	is.NoErr(err)
	is.Equal(inv.Head, ocfl.V(1))

	obj, err := object.Open(ctx, fsys, "obj1")
	is.NoErr(err)
	head, err := obj.Version(ocfl.Head)
	is.NoErr(err)
	files, err := head.Files()
	is.NoErr(err)
	is.Equal(len(files), 1)

	f, err := head.GetFile(ctx, la)
	is.NoErr(err)
	defer f.Close()
	body, err := io.ReadAll(f)
	is.NoErr(err)
	is.Equal(string(body), "hello")
}

func TestCommitSecondVersionDedupesContent(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys := newFS(t)

	s1, err := stage.Begin(ctx, fsys, ".", "obj1", "urn:test:obj1", digest.SHA256)
	is.NoErr(err)
	la, _ := ocfl.NewInventoryPath("a.txt")
	is.NoErr(s1.AddFile(ctx, la, strings.NewReader("hello")))
	_, err = s1.Commit(ctx)
	is.NoErr(err)

	s2, err := stage.Begin(ctx, fsys, ".", "obj1", "urn:test:obj1", "")
	is.NoErr(err)
	is.Equal(s2.Head(), ocfl.V(2))

	lb, _ := ocfl.NewInventoryPath("b.txt")
	is.NoErr(s2.AddFile(ctx, lb, strings.NewReader("hello"))) // same content, different logical path
	inv, err := s2.Commit(ctx)
	is.NoErr(err)

	is.Equal(len(inv.Manifest), 1) // deduped: one physical file shared by a.txt and b.txt

	obj, err := object.Open(ctx, fsys, "obj1")
	is.NoErr(err)
	head, err := obj.Version(ocfl.Head)
	is.NoErr(err)
	files, err := head.Files()
	is.NoErr(err)
	is.Equal(len(files), 2)
}

func TestMoveFile(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys := newFS(t)

	s, err := stage.Begin(ctx, fsys, ".", "obj1", "urn:test:obj1", digest.SHA256)
	is.NoErr(err)
	la, _ := ocfl.NewInventoryPath("a.txt")
	lb, _ := ocfl.NewInventoryPath("b.txt")
	is.NoErr(s.AddFile(ctx, la, strings.NewReader("hello")))
	is.NoErr(s.MoveFile(ctx, la, lb))

	err = s.MoveFile(ctx, la, lb)
	is.True(err != nil) // a.txt no longer present after the move

	inv, err := s.Commit(ctx)
	is.NoErr(err)
	ver, err := inv.GetVersion(ocfl.Head)
	is.NoErr(err)
	is.Equal(ver.State.GetDigest(lb) != "", true)
	is.Equal(ver.State.GetDigest(la), "")
}

func TestAbandonRemovesStagingArea(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys := newFS(t)

	s, err := stage.Begin(ctx, fsys, ".", "obj1", "urn:test:obj1", digest.SHA256)
	is.NoErr(err)
	la, _ := ocfl.NewInventoryPath("a.txt")
	is.NoErr(s.AddFile(ctx, la, strings.NewReader("hello")))
	is.NoErr(s.Abandon(ctx))

	entries, err := fsys.DirEntries(ctx, "extensions/rocfl-staging/obj1")
	is.NoErr(err)
	is.Equal(len(entries), 0)
}

func TestResumeInterruptedDraft(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys := newFS(t)

	s1, err := stage.Begin(ctx, fsys, ".", "obj1", "urn:test:obj1", digest.SHA256, stage.WithMessage("wip"))
	is.NoErr(err)
	la, _ := ocfl.NewInventoryPath("a.txt")
	is.NoErr(s1.AddFile(ctx, la, strings.NewReader("hello")))
	// simulate a crash: s1 is dropped without Commit or Abandon.

	s2, err := stage.Begin(ctx, fsys, ".", "obj1", "urn:test:obj1", digest.SHA256)
	is.NoErr(err)
	is.Equal(s2.HasContent(sha256Hex("hello")), true)

	inv, err := s2.Commit(ctx)
	is.NoErr(err)
	ver, err := inv.GetVersion(ocfl.Head)
	is.NoErr(err)
	is.Equal(ver.Message, "wip")
}

func sha256Hex(s string) string {
	a, err := digest.Get(digest.SHA256)
	if err != nil {
		panic(err)
	}
	h := a.New()
	h.Write([]byte(s))
	b := h.Sum(nil)
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}
