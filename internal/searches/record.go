package searches

// Field names a decoded search may carry. The feed emits more keys than
// these; everything outside this set is dropped at decode time.
const (
	FieldSearchID     = "search_id"
	FieldEnabled      = "enabled"
	FieldClicks       = "clicks"
	FieldType         = "type"
	FieldListingsSent = "listings_sent"
	FieldRecommended  = "recommended"
)

// recognized is the closed key set for Record.
var recognized = map[string]struct{}{
	FieldSearchID:     {},
	FieldEnabled:      {},
	FieldClicks:       {},
	FieldType:         {},
	FieldListingsSent: {},
	FieldRecommended:  {},
}

// Record is one decoded saved search: recognized field name to trimmed
// string value. A missing key means the source chunk never carried the
// field; values are kept verbatim apart from trimming.
type Record map[string]string

// Has reports whether the field is present, regardless of value.
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}
