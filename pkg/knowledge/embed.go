package knowledge

import (
	_ "embed"
	"fmt"
)

//go:embed data/knowledge.json
var bundled []byte

// Bundled returns the dataset compiled into the binary.
func Bundled() (*Dataset, error) {
	ds, err := Parse(bundled)
	if err != nil {
		return nil, fmt.Errorf("bundled knowledge: %w", err)
	}
	return ds, nil
}

// BundledBytes returns the raw bundled dataset.
func BundledBytes() []byte {
	out := make([]byte, len(bundled))
	copy(out, bundled)
	return out
}
