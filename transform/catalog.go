package transform

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrUnknownTransform is returned by Lookup for names not in the catalog.
var ErrUnknownTransform = errors.New("transform: unknown transform")

// Catalog names.
const (
	NameGrayscale = "grayscale"
	NameSepia     = "sepia"
)

var catalog = map[string]Func{
	NameGrayscale: Grayscale,
	NameSepia:     Sepia,
}

// Lookup returns the transform registered under name.
func Lookup(name string) (Func, error) {
	fn, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransform, name)
	}
	return fn, nil
}

// Names returns the catalog names in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(catalog))
}
