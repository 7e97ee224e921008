package layout

import (
	"strings"
)

const lowerhex = "0123456789abcdef"

// HashedNTupleIDLayout implements 0003-hash-and-id-n-tuple-storage-layout:
// like HashedNTupleLayout, but the final path segment is the
// percent-encoded object id (truncated and digest-suffixed past 100
// characters) rather than the digest itself.
type HashedNTupleIDLayout struct {
	DigestAlgorithm string `json:"digestAlgorithm"`
	TupleSize       int    `json:"tupleSize"`
	TupleNum        int    `json:"numberOfTuples"`
}

// NewHashedNTupleIDLayout returns a HashedNTupleIDLayout with the
// extension's documented defaults: sha256, 3 tuples of 3 characters.
func NewHashedNTupleIDLayout() Layout {
	return &HashedNTupleIDLayout{DigestAlgorithm: "sha256", TupleSize: 3, TupleNum: 3}
}

func (l *HashedNTupleIDLayout) Name() string { return HashedNTupleID }

func (l *HashedNTupleIDLayout) MarshalJSON() ([]byte, error) {
	return marshalLayoutJSON(HashedNTupleID, map[string]any{
		"digestAlgorithm": l.DigestAlgorithm,
		"tupleSize":       l.TupleSize,
		"numberOfTuples":  l.TupleNum,
	})
}

func (l *HashedNTupleIDLayout) Resolve(id string) (string, error) {
	hexID, err := hashHexID(l.DigestAlgorithm, l.TupleSize, l.TupleNum, id)
	if err != nil {
		return "", err
	}
	tuples, err := tupleSplit(hexID, l.TupleSize, l.TupleNum)
	if err != nil {
		return "", err
	}
	encID := percentEncode(id)
	if len(encID) > 100 {
		encID = encID[:100] + "-" + hexID
	}
	tuples[len(tuples)-1] = encID
	return strings.Join(tuples, "/"), nil
}

// percentEncode escapes every byte outside [A-Za-z0-9_-], the safe set
// OCFL extension 0003 requires object ids be encoded with before use as a
// path segment.
func percentEncode(in string) string {
	shouldEscape := func(c byte) bool {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9', c == '-', c == '_':
			return false
		}
		return true
	}
	var numEscape int
	for i := 0; i < len(in); i++ {
		if shouldEscape(in[i]) {
			numEscape++
		}
	}
	if numEscape == 0 {
		return in
	}
	out := make([]byte, len(in)+2*numEscape)
	j := 0
	for i := 0; i < len(in); i++ {
		if shouldEscape(in[i]) {
			out[j] = '%'
			out[j+1] = lowerhex[in[i]>>4]
			out[j+2] = lowerhex[in[i]&15]
			j += 3
			continue
		}
		out[j] = in[i]
		j++
	}
	return string(out)
}
