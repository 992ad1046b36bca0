// internal/listing/listing.go
//
// Listing records reviewed by the player.
// Defines:
//   - Listing: an immutable candidate location with its ground-truth classification.
//   - Card:    the answer-free projection of a Listing sent to clients.

package listing

import "math"

// Listing is a candidate location. Records are loaded once and never mutated.
type Listing struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Address     string   `json:"address"`
	ImageURL    string   `json:"imageUrl"`
	Area        float64  `json:"area"`  // square meters
	Floor       string   `json:"floor"` // free-form, e.g. "1 этаж, отдельный вход"
	Price       int      `json:"price"` // rub/month
	Neighbors   []string `json:"neighbors"`
	Features    []string `json:"features"`
	Description string   `json:"description"`

	IsGood           bool   `json:"isGood"`
	StopFactorReason string `json:"stopFactorReason,omitempty"` // shown on loss when IsGood is false
	GoodReason       string `json:"goodReason,omitempty"`       // advisory only
}

// Card is what a player sees while reviewing a listing.
// It deliberately omits IsGood and both explanations.
type Card struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Address     string   `json:"address"`
	ImageURL    string   `json:"imageUrl"`
	Area        float64  `json:"area"`
	Floor       string   `json:"floor"`
	Price       int      `json:"price"`
	PricePerSqm int      `json:"pricePerSqm"`
	Neighbors   []string `json:"neighbors"`
	Features    []string `json:"features"`
	Description string   `json:"description"`
}

// Card projects l for display. Slices are copied so callers cannot reach
// back into the shared dataset.
func (l Listing) Card() Card {
	return Card{
		ID:          l.ID,
		Title:       l.Title,
		Address:     l.Address,
		ImageURL:    l.ImageURL,
		Area:        l.Area,
		Floor:       l.Floor,
		Price:       l.Price,
		PricePerSqm: l.PricePerSqm(),
		Neighbors:   append([]string{}, l.Neighbors...),
		Features:    append([]string{}, l.Features...),
		Description: l.Description,
	}
}

// PricePerSqm returns monthly rent per square meter, rounded.
// Zero when the area is unknown.
func (l Listing) PricePerSqm() int {
	if l.Area <= 0 {
		return 0
	}
	return int(math.Round(float64(l.Price) / l.Area))
}
