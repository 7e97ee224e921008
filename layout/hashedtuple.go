package layout

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ocflkit/ocfl/digest"
)

// HashedNTupleLayout implements 0004-hashed-n-tuple-storage-layout: the
// object id is digested, and the hex digest is split into fixed-width
// tuples that form the path's leading directories, with the remainder (or
// the full digest, if shortObjectRoot is false) as the final segment.
type HashedNTupleLayout struct {
	DigestAlgorithm string `json:"digestAlgorithm"`
	TupleSize       int    `json:"tupleSize"`
	TupleNum        int    `json:"numberOfTuples"`
	Short           bool   `json:"shortObjectRoot"`
}

// NewHashedNTupleLayout returns a HashedNTupleLayout with the extension's
// documented defaults: sha256, 3 tuples of 3 characters, full digest as the
// final segment.
func NewHashedNTupleLayout() Layout {
	return &HashedNTupleLayout{DigestAlgorithm: digest.SHA256, TupleSize: 3, TupleNum: 3}
}

func (l *HashedNTupleLayout) Name() string { return HashedNTuple }

func (l *HashedNTupleLayout) MarshalJSON() ([]byte, error) {
	return marshalLayoutJSON(HashedNTuple, map[string]any{
		"digestAlgorithm": l.DigestAlgorithm,
		"tupleSize":       l.TupleSize,
		"numberOfTuples":  l.TupleNum,
		"shortObjectRoot": l.Short,
	})
}

func (l *HashedNTupleLayout) Resolve(id string) (string, error) {
	hexID, err := hashHexID(l.DigestAlgorithm, l.TupleSize, l.TupleNum, id)
	if err != nil {
		return "", err
	}
	tuples, err := tupleSplit(hexID, l.TupleSize, l.TupleNum)
	if err != nil {
		return "", err
	}
	if l.Short {
		tuples[len(tuples)-1] = hexID[l.TupleNum*l.TupleSize:]
	} else {
		tuples[len(tuples)-1] = hexID
	}
	return strings.Join(tuples, "/"), nil
}

func hashHexID(alg string, tupleSize, tupleNum int, id string) (string, error) {
	if tupleSize == 0 && tupleNum != 0 || tupleNum == 0 && tupleSize != 0 {
		return "", fmt.Errorf("tupleSize and numberOfTuples must both be zero or both nonzero: %w", ErrMalformed)
	}
	a, err := digest.Get(alg)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	h := a.New()
	h.Write([]byte(id))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func tupleSplit(hexID string, tupleSize, tupleNum int) ([]string, error) {
	if tupleSize*tupleNum > len(hexID) {
		return nil, fmt.Errorf("tupleSize * numberOfTuples exceeds digest length: %w", ErrMalformed)
	}
	tuples := make([]string, tupleNum+1)
	for i := 0; i < tupleNum; i++ {
		tuples[i] = hexID[i*tupleSize : (i+1)*tupleSize]
	}
	return tuples, nil
}

func marshalLayoutJSON(name string, fields map[string]any) ([]byte, error) {
	fields["extensionName"] = name
	return json.Marshal(fields)
}
