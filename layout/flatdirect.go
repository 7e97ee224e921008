package layout

import "strings"

// FlatDirectLayout implements 0002-flat-direct-storage-layout: the object
// root path is the object id itself, used verbatim. It has no parameters.
type FlatDirectLayout struct{}

func (l *FlatDirectLayout) Name() string { return FlatDirect }

func (l *FlatDirectLayout) Resolve(id string) (string, error) {
	if id == "" || strings.Contains(id, "/") {
		return "", ErrMalformed
	}
	return id, nil
}
