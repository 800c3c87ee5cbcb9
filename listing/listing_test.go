package listing

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func entries(keys ...string) []Entry {
	out := make([]Entry, len(keys))
	for i, k := range keys {
		out[i] = Entry{Key: k}
	}
	return out
}

func TestListMaxKeysZero(t *testing.T) {
	res := List(entries("a", "b"), Params{MaxKeys: 0}, false)
	if len(res.Contents) != 0 || res.IsTruncated {
		t.Fatalf("MaxKeys=0 should return empty, non-truncated result, got %+v", res)
	}
}

func TestListPrefixAndDelimiter(t *testing.T) {
	src := entries("photos/2020/a.jpg", "photos/2020/b.jpg", "photos/2021/c.jpg", "readme.txt")
	res := List(src, Params{Prefix: "photos/", Delimiter: "/", MaxKeys: 1000}, false)
	want := Result{CommonPrefixes: []string{"photos/2020/", "photos/2021/"}, NextMarker: "photos/2021/"}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Fatalf("List result mismatch (-want +got):\n%s", diff)
	}
}

func TestListTruncationCountsPrefixesAndContents(t *testing.T) {
	src := entries("a", "b/1", "b/2", "c")
	res := List(src, Params{Delimiter: "/", MaxKeys: 2}, false)
	if !res.IsTruncated {
		t.Fatalf("expected truncation once prefix+content count reaches MaxKeys")
	}
	if len(res.Contents)+len(res.CommonPrefixes) != 2 {
		t.Fatalf("expected exactly 2 emitted entries total, got contents=%v prefixes=%v", res.Contents, res.CommonPrefixes)
	}
}

func TestListV1MarkerIsExclusive(t *testing.T) {
	src := entries("a", "b", "c")
	res := List(src, Params{Marker: "a", MaxKeys: 1000}, false)
	if len(res.Contents) != 2 || res.Contents[0].Key != "b" {
		t.Fatalf("expected [b c] after marker a, got %v", res.Contents)
	}
}

func TestListV2ContinuationTokenTakesPrecedenceOverStartAfter(t *testing.T) {
	src := entries("a", "b", "c", "d")
	token := EncodeContinuationToken("b")
	res := List(src, Params{StartAfter: "a", ContinuationToken: token, MaxKeys: 1000}, true)
	if len(res.Contents) != 2 || res.Contents[0].Key != "c" {
		t.Fatalf("expected [c d] after continuation token b, got %v", res.Contents)
	}
}

func TestListV2NextContinuationTokenRoundTrips(t *testing.T) {
	src := entries("a", "b", "c")
	res := List(src, Params{MaxKeys: 2}, true)
	if !res.IsTruncated || res.NextContinuationToken == "" {
		t.Fatalf("expected truncated result with a continuation token, got %+v", res)
	}
	after, ok := DecodeContinuationToken(res.NextContinuationToken)
	if !ok || after != "b" {
		t.Fatalf("expected token to decode to last emitted key b, got %q ok=%v", after, ok)
	}
}

func TestClampMaxKeys(t *testing.T) {
	cases := map[int]int{-5: 0, 0: 0, 500: 500, 1000: 1000, 5000: 1000}
	for in, want := range cases {
		if got := ClampMaxKeys(in); got != want {
			t.Errorf("ClampMaxKeys(%d) = %d, want %d", in, got, want)
		}
	}
}
