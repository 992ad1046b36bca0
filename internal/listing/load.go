// internal/listing/load.go
//
// Loading and validation of the listing dataset.
//
// Sources (see Load):
//   1. LISTINGS_FILE set → read that JSON file.
//   2. Otherwise        → fall back to the dataset embedded in assets.
//
// A dataset is rejected at load time if it is empty, if any record lacks
// an explicit "isGood" flag, has a non-positive id, a blank title, or if
// two records share an id. The game core assumes all of this holds.

package listing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/robalobadob/sitepick/assets"
)

// ErrEmpty is returned when a dataset has no records.
var ErrEmpty = errors.New("listing: dataset is empty")

// rawListing mirrors Listing but keeps isGood as a pointer so a missing
// classification can be told apart from false.
type rawListing struct {
	Listing
	IsGood *bool `json:"isGood"`
}

// Load reads from path, or from the embedded dataset when path is empty.
func Load(path string) ([]Listing, error) {
	if path == "" {
		return LoadEmbedded()
	}
	return LoadFile(path)
}

// LoadEmbedded parses the dataset compiled into the binary.
func LoadEmbedded() ([]Listing, error) {
	b, err := assets.ListingsJSON()
	if err != nil {
		return nil, fmt.Errorf("read embedded listings: %w", err)
	}
	return Parse(bytes.NewReader(b))
}

// LoadFile parses a JSON array of listings from disk.
func LoadFile(path string) ([]Listing, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// Parse decodes and validates a JSON array of listings, preserving order.
func Parse(r io.Reader) ([]Listing, error) {
	var raw []rawListing
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmpty
	}

	seen := make(map[int]struct{}, len(raw))
	out := make([]Listing, 0, len(raw))
	for i, rl := range raw {
		if rl.IsGood == nil {
			return nil, fmt.Errorf("listing #%d (id %d): missing isGood", i, rl.ID)
		}
		l := rl.Listing
		l.IsGood = *rl.IsGood
		l.Title = strings.TrimSpace(l.Title)

		if err := validate(l); err != nil {
			return nil, fmt.Errorf("listing #%d (id %d): %w", i, l.ID, err)
		}
		if _, dup := seen[l.ID]; dup {
			return nil, fmt.Errorf("listing #%d: duplicate id %d", i, l.ID)
		}
		seen[l.ID] = struct{}{}
		out = append(out, l)
	}
	return out, nil
}

// validate checks the per-record rules that do not depend on siblings.
func validate(l Listing) error {
	switch {
	case l.ID <= 0:
		return errors.New("id must be positive")
	case l.Title == "":
		return errors.New("title is required")
	case l.Area < 0:
		return errors.New("area must not be negative")
	case l.Price < 0:
		return errors.New("price must not be negative")
	}
	return nil
}
