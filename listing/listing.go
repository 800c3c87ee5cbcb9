// Package listing implements the paged, delimited, prefix-filtered
// object listing protocol shared by ListObjects (v1) and
// ListObjectsV2 (spec.md §4.2, component C2). It is grounded on the
// reference pagination behavior observed in the gofakes3 double
// (listBucket in its gofakes3.go) but implemented independently against
// spec.md's algorithm, including the "sum-counts-against-cap" rule
// spec.md §9 flags as the one place prose alone is insufficient.
package listing

import (
	"encoding/base64"
	"sort"
	"strings"
)

// Entry is one object as the listing engine sees it; the store layer
// is responsible for producing these in lexicographic byte order of Key.
type Entry struct {
	Key          string
	Size         int64
	ETag         string
	LastModified string // pre-formatted, opaque to this package
}

// Params are the inputs shared by both listing generations (spec.md
// §4.2 "Inputs").
type Params struct {
	Prefix            string
	Delimiter         string
	Marker            string // v1: exclusive start
	StartAfter        string // v2: exclusive start, ignored once ContinuationToken is set
	ContinuationToken string // v2: opaque cursor, takes precedence over StartAfter
	MaxKeys           int    // already clamped to [0,1000] by the caller
}

// Result is shared by both generations; the s3api XML encoder picks
// which fields apply to which response shape.
type Result struct {
	Contents              []Entry
	CommonPrefixes        []string
	IsTruncated           bool
	NextMarker            string // v1 only, and only when Delimiter was supplied
	NextContinuationToken string // v2 only, when truncated
}

// EncodeContinuationToken produces the opaque-but-reproducible cursor
// spec.md §4.2 point 7 asks for: a deterministic encoding of the last
// emitted key.
func EncodeContinuationToken(lastKey string) string {
	return base64.URLEncoding.EncodeToString([]byte(lastKey))
}

// DecodeContinuationToken reverses EncodeContinuationToken. An
// unparseable token is treated as "start from the beginning" rather
// than an error -- the real service's tokens are opaque to clients by
// contract, so a client is never expected to hand-construct one.
func DecodeContinuationToken(token string) (startAfter string, ok bool) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// List runs the shared algorithm (spec.md §4.2 steps 1-8) over entries,
// which must already be sorted lexicographically by Key. isV2 only
// changes which start-cursor field takes precedence and whether
// NextMarker vs NextContinuationToken is populated.
func List(entries []Entry, p Params, isV2 bool) Result {
	var after string
	if isV2 {
		if p.ContinuationToken != "" {
			if decoded, ok := DecodeContinuationToken(p.ContinuationToken); ok {
				after = decoded
			}
		} else {
			after = p.StartAfter
		}
	} else {
		after = p.Marker
	}

	if p.MaxKeys <= 0 {
		// spec.md §8 invariant: "Listing with MaxKeys=0 returns empty
		// Contents and IsTruncated=false" -- a dedicated case because
		// the cap-reached loop below would otherwise report truncation
		// on the first candidate instead of "nothing to see here".
		return Result{}
	}

	filtered := filterAndPosition(entries, p.Prefix, after)

	var (
		res       Result
		lastKey   string
		lastCP    string
		emitted   int
		truncated bool
		i         int
	)
	for i = 0; i < len(filtered); i++ {
		e := filtered[i]
		rest := strings.TrimPrefix(e.Key, p.Prefix)

		if p.Delimiter != "" {
			if idx := strings.Index(rest, p.Delimiter); idx >= 0 {
				cp := p.Prefix + rest[:idx+len(p.Delimiter)]
				if cp == lastCP {
					continue // already emitted, collapses silently (spec.md §4.2 step 4)
				}
				if emitted >= p.MaxKeys {
					truncated = true
					break
				}
				res.CommonPrefixes = append(res.CommonPrefixes, cp)
				lastCP = cp
				lastKey = cp
				emitted++
				continue
			}
		}

		if emitted >= p.MaxKeys {
			truncated = true
			break
		}
		res.Contents = append(res.Contents, e)
		lastKey = e.Key
		emitted++
	}
	if !truncated && i < len(filtered) {
		truncated = true
	}

	res.IsTruncated = truncated
	if !isV2 {
		if p.Delimiter != "" {
			res.NextMarker = lastKey
		}
	} else if truncated {
		res.NextContinuationToken = EncodeContinuationToken(lastKey)
	}
	return res
}

// filterAndPosition applies the prefix filter (step 2) and the
// exclusive start cursor (step 3). entries is assumed pre-sorted;
// sort.Search locates the cursor in O(log n), and StartAfter naming a
// nonexistent key still positions correctly by ordering (spec.md §4.2
// step 3's lexicographic note).
func filterAndPosition(entries []Entry, prefix, after string) []Entry {
	start := 0
	if after != "" {
		start = sort.Search(len(entries), func(i int) bool { return entries[i].Key > after })
	}
	out := make([]Entry, 0, len(entries)-start)
	for _, e := range entries[start:] {
		if !strings.HasPrefix(e.Key, prefix) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ClampMaxKeys implements spec.md §4.2: "MaxKeys above 1000 is clamped
// to 1000 but reported as supplied in the response's MaxKeys field."
// Callers keep the original value for the XML response and pass the
// clamped value in Params.MaxKeys.
func ClampMaxKeys(requested int) int {
	if requested > 1000 {
		return 1000
	}
	if requested < 0 {
		return 0
	}
	return requested
}
