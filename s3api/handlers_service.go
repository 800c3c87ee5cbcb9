package s3api

import "net/http"

// handleService implements the bare service root: GET / lists every
// bucket (spec.md §4.1 listBuckets).
func (s *Server) handleService(w http.ResponseWriter, r *http.Request, requestID string) {
	if r.Method != http.MethodGet {
		writeError(w, "/", methodNotAllowed(), requestID)
		return
	}
	buckets := s.Store.ListBuckets()
	out := listAllMyBucketsResult{Xmlns: xmlNS, Owner: fixedOwner}
	for _, b := range buckets {
		out.Buckets = append(out.Buckets, bucketSummary{
			Name:         b.Name,
			CreationDate: b.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		})
	}
	writeXML(w, http.StatusOK, out)
}
