package lock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"

	"github.com/ocflkit/ocfl"
	"github.com/ocflkit/ocfl/backend/local"
	"github.com/ocflkit/ocfl/lock"
)

func newManager(t *testing.T) *lock.Manager {
	t.Helper()
	fsys, err := local.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return lock.NewManager(fsys, ".", nil)
}

func assertCannotAcquire(t *testing.T, is *is.I, mgr *lock.Manager, id string) {
	t.Helper()
	_, err := mgr.Acquire(context.Background(), id)
	is.True(err != nil)
	var lockErr *ocfl.LockAcquireErr
	is.True(errors.As(err, &lockErr))
}

func TestAcquireLockWhenAvailable(t *testing.T) {
	is := is.New(t)
	mgr := newManager(t)
	ctx := context.Background()

	l, err := mgr.Acquire(ctx, "testing")
	is.NoErr(err)
	defer l.Release(ctx)

	assertCannotAcquire(t, is, mgr, "testing")
}

func TestAcquireMultipleLocks(t *testing.T) {
	is := is.New(t)
	mgr := newManager(t)
	ctx := context.Background()

	l1, err := mgr.Acquire(ctx, "one")
	is.NoErr(err)
	defer l1.Release(ctx)
	l2, err := mgr.Acquire(ctx, "two")
	is.NoErr(err)
	defer l2.Release(ctx)

	assertCannotAcquire(t, is, mgr, "one")
	assertCannotAcquire(t, is, mgr, "two")
}

func TestReleaseLockAllowsReacquire(t *testing.T) {
	is := is.New(t)
	mgr := newManager(t)
	ctx := context.Background()

	l1, err := mgr.Acquire(ctx, "one")
	is.NoErr(err)
	assertCannotAcquire(t, is, mgr, "one")

	is.NoErr(l1.Release(ctx))

	l1again, err := mgr.Acquire(ctx, "one")
	is.NoErr(err)
	defer l1again.Release(ctx)
}

func TestReleaseIsIdempotent(t *testing.T) {
	is := is.New(t)
	mgr := newManager(t)
	ctx := context.Background()

	l, err := mgr.Acquire(ctx, "once")
	is.NoErr(err)
	is.NoErr(l.Release(ctx))
	is.NoErr(l.Release(ctx)) // second release must not error
}
