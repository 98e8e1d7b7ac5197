package searches

import (
	"fmt"
	"math"
	"strconv"
)

// SearchType classifies the mix of valid searches a user runs.
type SearchType string

const (
	TypeRentalAndSale SearchType = "rental_and_sale"
	TypeRental        SearchType = "rental"
	TypeSale          SearchType = "sale"
	TypeNone          SearchType = "none"
)

// Exact feed spellings counted by classifyType. Anything else, including
// an absent type field, counts toward neither bucket.
const (
	rentalValue = "Rental"
	saleValue   = "Sale"
)

// enabledTrue is the only value that marks a search active. Case matters:
// "True" is not active.
const enabledTrue = "true"

// minClicks is the engagement floor a search must reach to count as valid.
const minClicks = 3

// UserSummary is the per-user aggregation behind one summary-table row.
type UserSummary struct {
	UserID           string
	NumValidSearches int
	AvgListings      float64
	TypeOfSearch     SearchType
	ValidSearchIDs   []string
}

// Valid reports whether r is an active search with enough engagement:
// enabled exactly "true" and clicks (0 when absent) at least minClicks.
// Clicks are only parsed once the search is known to be active, so a
// disabled search with a garbage clicks value is merely invalid.
func Valid(r Record) (bool, error) {
	if r[FieldEnabled] != enabledTrue {
		return false, nil
	}
	clicks := 0
	if v, ok := r[FieldClicks]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return false, fmt.Errorf("clicks %q: %w", v, err)
		}
		clicks = n
	}
	return clicks >= minClicks, nil
}

// Summarize decodes one user's blob and aggregates its valid searches.
// Decode and conversion errors surface unchanged; the caller decides how
// to attribute them to the input row.
func Summarize(userID, blob string) (UserSummary, error) {
	recs, err := DecodeBlob(blob)
	if err != nil {
		return UserSummary{}, err
	}

	valid := make([]Record, 0, len(recs))
	for _, r := range recs {
		ok, err := Valid(r)
		if err != nil {
			return UserSummary{}, err
		}
		if ok {
			valid = append(valid, r)
		}
	}

	avg, err := avgListings(valid)
	if err != nil {
		return UserSummary{}, err
	}

	return UserSummary{
		UserID:           userID,
		NumValidSearches: len(valid),
		AvgListings:      avg,
		TypeOfSearch:     classifyType(valid),
		ValidSearchIDs:   searchIDs(valid),
	}, nil
}

// avgListings returns the mean listings_sent over valid searches carrying
// a non-empty value, rounded to two decimals, or exactly 0 when none do.
func avgListings(valid []Record) (float64, error) {
	sum, n := 0, 0
	for _, r := range valid {
		v := r[FieldListingsSent]
		if v == "" {
			continue
		}
		x, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("listings_sent %q: %w", v, err)
		}
		sum += x
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return round2(float64(sum) / float64(n)), nil
}

// round2 rounds to two decimals, ties to even.
func round2(x float64) float64 {
	return math.RoundToEven(x*100) / 100
}

// classifyType buckets a user by the property types of their valid
// searches.
func classifyType(valid []Record) SearchType {
	rental, sale := 0, 0
	for _, r := range valid {
		switch r[FieldType] {
		case rentalValue:
			rental++
		case saleValue:
			sale++
		}
	}
	switch {
	case rental > 0 && sale > 0:
		return TypeRentalAndSale
	case rental > 0:
		return TypeRental
	case sale > 0:
		return TypeSale
	default:
		return TypeNone
	}
}

// searchIDs collects the non-empty search_id values of valid searches, in
// blob order.
func searchIDs(valid []Record) []string {
	ids := make([]string, 0, len(valid))
	for _, r := range valid {
		if id := r[FieldSearchID]; id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
