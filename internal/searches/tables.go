package searches

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Artifact column layouts, in output order.
var (
	summaryHeader = []string{
		"user_id",
		"num_valid_searches",
		"avg_listings",
		"type_of_search",
		"list_of_valid_searches",
	}
	uniqueHeader = []string{"searches"}
)

// Table is a rendered artifact: a fixed header plus rows of formatted
// cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// WriteCSV encodes the table as comma-delimited UTF-8 with LF line ends
// and no index column. The header is written even when the table is empty.
func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Report holds both derived artifacts plus the run totals that are logged
// and exported as counters.
type Report struct {
	Summary   Table
	UniqueIDs Table

	TotalValidSearches int // valid searches across kept users
	TotalUsers         int // users with at least one valid search
}

// BuildReport renders the artifacts from per-user summaries. Summary rows
// keep input order; users with zero valid searches are dropped from both
// artifacts. Unique ids are stripped of literal single quotes, then
// deduplicated and sorted.
func BuildReport(users []UserSummary) Report {
	rep := Report{
		Summary:   Table{Header: summaryHeader},
		UniqueIDs: Table{Header: uniqueHeader},
	}

	seen := make(map[string]struct{})
	unique := make([]string, 0, len(users))
	for _, u := range users {
		if u.NumValidSearches == 0 {
			continue
		}
		rep.Summary.Rows = append(rep.Summary.Rows, []string{
			u.UserID,
			strconv.Itoa(u.NumValidSearches),
			formatAvg(u.AvgListings),
			string(u.TypeOfSearch),
			FormatIDList(u.ValidSearchIDs),
		})
		rep.TotalValidSearches += u.NumValidSearches
		rep.TotalUsers++

		for _, id := range u.ValidSearchIDs {
			id = strings.ReplaceAll(id, "'", "")
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}

	sort.Strings(unique)
	for _, id := range unique {
		rep.UniqueIDs.Rows = append(rep.UniqueIDs.Rows, []string{id})
	}
	return rep
}

// formatAvg renders the mean with the fewest digits that round-trip.
func formatAvg(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatIDList renders ids in the list literal form downstream consumers
// of the summary artifact already parse: ['a', 'b'], [] when empty. The
// warehouse loader uses the same form so both copies of the summary agree.
func FormatIDList(ids []string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, id := range ids {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('\'')
		b.WriteString(id)
		b.WriteByte('\'')
	}
	b.WriteByte(']')
	return b.String()
}
