package digest_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/ocflkit/ocfl/digest"
)

func TestDigesterSums(t *testing.T) {
	is := is.New(t)
	sha256Alg, err := digest.Get(digest.SHA256)
	is.NoErr(err)
	sha512Alg, err := digest.Get(digest.SHA512)
	is.NoErr(err)
	d := digest.NewDigester(sha256Alg, sha512Alg)
	_, err = d.ReadFrom(strings.NewReader("hello world"))
	is.NoErr(err)
	sums := d.Sums()
	is.True(len(sums[digest.SHA256]) == 64)
	is.True(len(sums[digest.SHA512]) == 128)
}

func TestGetUnknown(t *testing.T) {
	is := is.New(t)
	_, err := digest.Get("md7")
	is.True(err != nil)
}

func TestValidInventoryAlg(t *testing.T) {
	is := is.New(t)
	is.True(digest.ValidInventoryAlg(digest.SHA256))
	is.True(digest.ValidInventoryAlg(digest.SHA512))
	is.True(!digest.ValidInventoryAlg(digest.MD5))
}

func TestValidate(t *testing.T) {
	is := is.New(t)
	sha256Alg, _ := digest.Get(digest.SHA256)
	d := digest.NewDigester(sha256Alg)
	_, err := d.ReadFrom(strings.NewReader("hi"))
	is.NoErr(err)
	want := d.Sums()
	is.NoErr(digest.Validate(strings.NewReader("hi"), "a.txt", want))
	err = digest.Validate(strings.NewReader("ho"), "a.txt", want)
	is.True(err != nil)
	var digestErr *digest.Err
	is.True(errors.As(err, &digestErr))
}
