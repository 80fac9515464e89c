package cache

import (
	"fmt"

	"github.com/go-faster/city"
	jsoniter "github.com/json-iterator/go"
)

// formatVersion is bumped whenever the layout of cached tables changes, which
// orphans every older entry.
const formatVersion = 1

var keyJSON = jsoniter.Config{
	SortMapKeys:            true,
	EscapeHTML:             false,
	ValidateJsonRawMessage: true,
}.Froze()

// Key digests the canonical serialization of args within the dataset scope.
// Equal arguments give equal keys across processes.
func Key(dataset string, args any) (string, error) {
	b, err := keyJSON.Marshal(struct {
		Version int    `json:"version"`
		Dataset string `json:"dataset"`
		Args    any    `json:"args"`
	}{formatVersion, dataset, args})
	if err != nil {
		return "", fmt.Errorf("failed to serialize cache key: %w", err)
	}
	h := city.Hash128(b)
	return fmt.Sprintf("%016x%016x", h.High, h.Low), nil
}
