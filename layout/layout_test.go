package layout_test

import (
	"context"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/ocflkit/ocfl/backend/local"
	"github.com/ocflkit/ocfl/layout"
)

func TestFlatDirectResolve(t *testing.T) {
	is := is.New(t)
	l := &layout.FlatDirectLayout{}
	p, err := l.Resolve("my:object-1")
	is.NoErr(err)
	is.Equal(p, "my:object-1")
}

func TestFlatDirectRejectsEmptyID(t *testing.T) {
	is := is.New(t)
	l := &layout.FlatDirectLayout{}
	_, err := l.Resolve("")
	is.True(err != nil)
}

func TestHashedNTupleResolve(t *testing.T) {
	is := is.New(t)
	l := layout.NewHashedNTupleLayout()
	p, err := l.Resolve("object-01")
	is.NoErr(err)
	parts := strings.Split(p, "/")
	is.Equal(len(parts), 4)
	for _, seg := range parts[:3] {
		is.Equal(len(seg), 3)
	}
	is.Equal(len(parts[3]), 64) // full sha256 hex digest
}

func TestHashedNTupleShort(t *testing.T) {
	is := is.New(t)
	l := &layout.HashedNTupleLayout{DigestAlgorithm: "sha256", TupleSize: 3, TupleNum: 3, Short: true}
	p, err := l.Resolve("object-01")
	is.NoErr(err)
	parts := strings.Split(p, "/")
	is.Equal(len(parts), 4)
	is.Equal(len(parts[3]), 64-9) // digest minus the 3x3 consumed by tuples
}

func TestHashedNTupleIDResolve(t *testing.T) {
	is := is.New(t)
	l := layout.NewHashedNTupleIDLayout()
	p, err := l.Resolve("object 01:test")
	is.NoErr(err)
	parts := strings.Split(p, "/")
	is.Equal(len(parts), 4)
	is.True(strings.Contains(parts[3], "%20")) // space percent-encoded
}

func TestHashedNTupleIDLongIDTruncated(t *testing.T) {
	is := is.New(t)
	l := layout.NewHashedNTupleIDLayout()
	longID := strings.Repeat("a", 200)
	p, err := l.Resolve(longID)
	is.NoErr(err)
	parts := strings.Split(p, "/")
	final := parts[len(parts)-1]
	is.True(len(final) < len(longID))
	is.True(strings.Contains(final, "-"))
}

func TestGetUnknown(t *testing.T) {
	is := is.New(t)
	_, err := layout.Get("9999-not-real")
	is.True(err != nil)
}

func TestWriteReadRoundTrip(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys, err := local.NewFS(t.TempDir())
	is.NoErr(err)

	l := layout.NewHashedNTupleLayout()
	is.NoErr(layout.Write(ctx, fsys, ".", l, "test layout"))

	got, err := layout.Read(ctx, fsys, ".")
	is.NoErr(err)
	is.Equal(got.Name(), layout.HashedNTuple)

	wantPath, err := l.Resolve("obj-1")
	is.NoErr(err)
	gotPath, err := got.Resolve("obj-1")
	is.NoErr(err)
	is.Equal(gotPath, wantPath)
}

func TestReadMissingLayout(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	fsys, err := local.NewFS(t.TempDir())
	is.NoErr(err)
	_, err = layout.Read(ctx, fsys, ".")
	is.True(err != nil)
}
