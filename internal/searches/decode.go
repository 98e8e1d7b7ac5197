// Package searches decodes raw saved-search blobs and aggregates them into
// the daily activity artifacts: a per-user summary table and a table of
// unique valid search ids.
//
// Design goals:
//   - Pure functions: no I/O here; callers own streams, transport and
//     decompression.
//   - Deterministic artifacts: identical input bytes produce identical
//     output bytes (the unique table is sorted).
//   - Fail fast on grammar drift: a chunk without an enabled field aborts
//     the run instead of being skipped.
package searches

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// chunkDelim separates searches inside a raw blob. Blobs arrive with
// escaped line breaks, so this is the literal three characters backslash,
// 'n', dash, never a real newline.
const chunkDelim = `\n-`

// framePrefix marks YAML-style framing chunks that carry no search.
const framePrefix = "---"

var (
	// escapeRe matches the escape artifacts in blob text: the literal
	// three-character sequence `\.n` (an escaped line break, dot included)
	// or a stray lone backslash. Alternation is leftmost-first, so `\.n`
	// wins over the bare `\`. The dot is matched literally: a sequence
	// like `\xn` is not an escape, its backslash falls to the second
	// alternative and the `xn` stays text.
	escapeRe = regexp.MustCompile(`\\\.n|\\`)

	// fieldSepRe matches the whitespace-colon separator between fields.
	fieldSepRe = regexp.MustCompile(`\s+:`)
)

// ErrMissingEnabled reports a decoded search with no enabled field. The
// feed always carries one; its absence means the blob grammar has drifted
// and the input should be treated as suspect.
var ErrMissingEnabled = errors.New("search record has no enabled field")

// DecodeBlob parses one user's raw searches blob.
//
// The blob is split on chunkDelim, framing chunks are dropped, and each
// remaining chunk is tokenized: escape artifacts become spaces, field
// separators become commas, and each comma-split token is cut at its first
// ':' into a key/value pair. Unrecognized keys and tokens without a ':'
// are ignored. When every chunk was framing, the user has no searches and
// the result is empty with no error.
func DecodeBlob(raw string) ([]Record, error) {
	chunks := strings.Split(raw, chunkDelim)
	recs := make([]Record, 0, len(chunks))
	for i, chunk := range chunks {
		if strings.HasPrefix(chunk, framePrefix) {
			continue
		}
		rec := decodeChunk(chunk)
		if !rec.Has(FieldEnabled) {
			return nil, fmt.Errorf("chunk %d: %w", i, ErrMissingEnabled)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// decodeChunk tokenizes a single chunk and keeps the recognized fields.
func decodeChunk(chunk string) Record {
	text := escapeRe.ReplaceAllString(chunk, " ")
	text = fieldSepRe.ReplaceAllString(text, ",")

	rec := make(Record)
	for _, tok := range strings.Split(text, ",") {
		key, val, ok := strings.Cut(tok, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if _, known := recognized[key]; !known {
			continue
		}
		rec[key] = strings.TrimSpace(val)
	}
	return rec
}
