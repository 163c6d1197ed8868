package runtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// An entry of the machine-readable image listing.
//
// Podman emits "Names"; buildah emits "names". Field matching in
// encoding/json is case-insensitive, so both decode here.
type imageRecord struct {
	Names []string `json:"Names"`
}

// Reports whether the JSON image listing contains the qualified tag.
func listingHasTag(listing []byte, tag string) (bool, error) {
	if len(bytes.TrimSpace(listing)) == 0 {
		return false, nil
	}

	var records []imageRecord
	if err := json.Unmarshal(listing, &records); err != nil {
		return false, fmt.Errorf("%w: parse image listing: %w", ErrRuntime, err)
	}
	for _, r := range records {
		if slices.Contains(r.Names, tag) {
			return true, nil
		}
	}
	return false, nil
}
