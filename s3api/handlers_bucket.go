package s3api

import (
	"encoding/xml"
	"io"
	"net/http"
	"strconv"

	"github.com/randonia/s3rver-go/cmn"
	"github.com/randonia/s3rver-go/listing"
	"github.com/randonia/s3rver-go/store"
)

// handleBucket dispatches every bucket-level (no key) operation:
// create/delete/head, listing v1/v2, and the ?cors/?website/?policy/
// ?notification/?location/?uploads/?delete sub-resources (spec.md §4.6
// step 3). Bucket-level ?tagging has no case of its own: such a request
// is handled as the plain bucket operation for its method.
func (s *Server) handleBucket(w http.ResponseWriter, r *http.Request, bucket, requestID string) {
	q := r.URL.Query()
	resource := "/" + bucket

	switch {
	case r.Method == http.MethodPut && hasAny(q, "cors"):
		s.putBucketConfig(w, r, bucket, store.ConfigCORS, requestID)
		return
	case r.Method == http.MethodGet && hasAny(q, "cors"):
		s.getBucketConfig(w, r, bucket, store.ConfigCORS, requestID)
		return
	case r.Method == http.MethodDelete && hasAny(q, "cors"):
		s.deleteBucketConfig(w, r, bucket, store.ConfigCORS, requestID)
		return

	case r.Method == http.MethodPut && hasAny(q, "website"):
		s.putBucketConfig(w, r, bucket, store.ConfigWebsite, requestID)
		return
	case r.Method == http.MethodGet && hasAny(q, "website"):
		s.getBucketConfig(w, r, bucket, store.ConfigWebsite, requestID)
		return
	case r.Method == http.MethodDelete && hasAny(q, "website"):
		s.deleteBucketConfig(w, r, bucket, store.ConfigWebsite, requestID)
		return

	case r.Method == http.MethodPut && hasAny(q, "policy"):
		s.putBucketConfig(w, r, bucket, store.ConfigPolicy, requestID)
		return
	case r.Method == http.MethodGet && hasAny(q, "policy"):
		s.getBucketConfig(w, r, bucket, store.ConfigPolicy, requestID)
		return
	case r.Method == http.MethodDelete && hasAny(q, "policy"):
		s.deleteBucketConfig(w, r, bucket, store.ConfigPolicy, requestID)
		return

	case r.Method == http.MethodPut && hasAny(q, "notification"):
		s.putBucketConfig(w, r, bucket, store.ConfigNotify, requestID)
		return
	case r.Method == http.MethodGet && hasAny(q, "notification"):
		s.getBucketConfig(w, r, bucket, store.ConfigNotify, requestID)
		return

	case r.Method == http.MethodGet && hasAny(q, "location"):
		writeXML(w, http.StatusOK, locationConstraint{Xmlns: xmlNS, Value: ""})
		return

	case r.Method == http.MethodGet && hasAny(q, "uploads"):
		s.listMultipartUploads(w, bucket, requestID)
		return

	case r.Method == http.MethodPost && hasAny(q, "delete"):
		s.deleteObjects(w, r, bucket, requestID)
		return
	}

	switch r.Method {
	case http.MethodPut:
		if err := s.Store.CreateBucket(bucket); err != nil {
			writeError(w, resource, err, requestID)
			return
		}
		w.Header().Set("Location", "/"+bucket)
		w.WriteHeader(http.StatusOK)

	case http.MethodHead:
		if _, ok := s.Store.GetBucket(bucket); !ok {
			writeError(w, resource, cmn.ErrNoSuchBucket(bucket), requestID)
			return
		}
		w.WriteHeader(http.StatusOK)

	case http.MethodDelete:
		if err := s.Store.DeleteBucket(bucket); err != nil {
			writeError(w, resource, err, requestID)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case http.MethodGet:
		s.listObjects(w, r, bucket, requestID)

	default:
		writeError(w, resource, methodNotAllowed(), requestID)
	}
}

func hasAny(q map[string][]string, name string) bool {
	_, ok := q[name]
	return ok
}

func (s *Server) putBucketConfig(w http.ResponseWriter, r *http.Request, bucket string, kind store.ConfigKind, requestID string) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, "/"+bucket, cmn.ErrInternal("/"+bucket, err), requestID)
		return
	}
	if kind == store.ConfigCORS {
		if _, perr := validateCORSXML(raw); perr != nil {
			writeError(w, "/"+bucket, perr, requestID)
			return
		}
	}
	if kind == store.ConfigWebsite {
		if _, perr := validateWebsiteXML(raw); perr != nil {
			writeError(w, "/"+bucket, perr, requestID)
			return
		}
	}
	if err := s.Store.PutBucketConfig(bucket, kind, raw); err != nil {
		writeError(w, "/"+bucket, err, requestID)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getBucketConfig(w http.ResponseWriter, r *http.Request, bucket string, kind store.ConfigKind, requestID string) {
	raw, err := s.Store.GetBucketConfig(bucket, kind)
	if err != nil {
		writeError(w, "/"+bucket, err, requestID)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

func (s *Server) deleteBucketConfig(w http.ResponseWriter, r *http.Request, bucket string, kind store.ConfigKind, requestID string) {
	if err := s.Store.DeleteBucketConfig(bucket, kind); err != nil {
		writeError(w, "/"+bucket, err, requestID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listObjects implements spec.md §4.2: dispatches to v1 or v2 based on
// the list-type=2 query parameter, as the real service does.
func (s *Server) listObjects(w http.ResponseWriter, r *http.Request, bucket, requestID string) {
	q := r.URL.Query()
	resource := "/" + bucket

	keys, err := s.Store.Keys(bucket)
	if err != nil {
		writeError(w, resource, err, requestID)
		return
	}
	entries := make([]listing.Entry, 0, len(keys))
	for _, k := range keys {
		meta, herr := s.Store.HeadObject(bucket, k)
		if herr != nil {
			continue // concurrently deleted between Keys() and HeadObject(); skip rather than fail the whole listing
		}
		entries = append(entries, listing.Entry{
			Key:          k,
			Size:         meta.Size,
			ETag:         meta.ETag,
			LastModified: meta.LastModified.UTC().Format("2006-01-02T15:04:05.000Z"),
		})
	}

	prefix := q.Get("prefix")
	delimiter := q.Get("delimiter")
	requestedMax := 1000
	if v := q.Get("max-keys"); v != "" {
		if n, perr := strconv.Atoi(v); perr == nil {
			requestedMax = n
		}
	}
	clamped := listing.ClampMaxKeys(requestedMax)

	isV2 := q.Get("list-type") == "2"
	params := listing.Params{
		Prefix:    prefix,
		Delimiter: delimiter,
		MaxKeys:   clamped,
	}
	if isV2 {
		params.ContinuationToken = q.Get("continuation-token")
		params.StartAfter = q.Get("start-after")
	} else {
		params.Marker = q.Get("marker")
	}

	res := listing.List(entries, params, isV2)

	contents := make([]contentsXML, 0, len(res.Contents))
	for _, e := range res.Contents {
		contents = append(contents, contentsXML{
			Key: e.Key, LastModified: e.LastModified, ETag: e.ETag, Size: e.Size,
			StorageClass: "STANDARD",
		})
	}
	cps := make([]commonPrefixXML, 0, len(res.CommonPrefixes))
	for _, p := range res.CommonPrefixes {
		cps = append(cps, commonPrefixXML{Prefix: p})
	}

	if isV2 {
		out := listBucketV2Result{
			Xmlns: xmlNS, Name: bucket, Prefix: prefix, Delimiter: delimiter,
			StartAfter: params.StartAfter, ContinuationToken: params.ContinuationToken,
			NextContinuationToken: res.NextContinuationToken,
			KeyCount:              len(contents) + len(cps),
			MaxKeys:                requestedMax,
			IsTruncated:            res.IsTruncated,
			Contents:               contents,
			CommonPrefixes:         cps,
		}
		writeXML(w, http.StatusOK, out)
		return
	}
	out := listBucketResult{
		Xmlns: xmlNS, Name: bucket, Prefix: prefix, Marker: params.Marker,
		NextMarker: res.NextMarker, MaxKeys: requestedMax, Delimiter: delimiter,
		IsTruncated: res.IsTruncated, Contents: contents, CommonPrefixes: cps,
	}
	writeXML(w, http.StatusOK, out)
}

// deleteObjects implements spec.md §4.1 deleteObjects (the bulk
// "?delete" POST sub-resource): every requested key is reported under
// Deleted whether or not it existed; an empty Objects list is itself a
// MalformedXML failure.
func (s *Server) deleteObjects(w http.ResponseWriter, r *http.Request, bucket, requestID string) {
	resource := "/" + bucket
	raw, _ := io.ReadAll(r.Body)
	var req deleteObjectsRequest
	if err := xml.Unmarshal(raw, &req); err != nil || len(req.Objects) == 0 {
		writeError(w, resource, cmn.NewErrS3(cmn.CodeMalformedXML, resource,
			"The XML you provided was not well-formed or did not validate against our published schema"), requestID)
		return
	}
	keys := make([]string, 0, len(req.Objects))
	for _, o := range req.Objects {
		keys = append(keys, o.Key)
	}
	deleted, errs := s.Store.DeleteObjects(bucket, keys)

	out := deleteResult{Xmlns: xmlNS}
	if !req.Quiet {
		for _, k := range deleted {
			out.Deleted = append(out.Deleted, deletedXML{Key: k})
		}
	}
	for k, e := range errs {
		es := cmn.AsErrS3(resource+"/"+k, e)
		out.Errors = append(out.Errors, deleteErrorXML{Key: k, Code: string(es.Code), Message: es.Message})
	}
	writeXML(w, http.StatusOK, out)
}

func (s *Server) listMultipartUploads(w http.ResponseWriter, bucket, requestID string) {
	if _, ok := s.Store.GetBucket(bucket); !ok {
		writeError(w, "/"+bucket, cmn.ErrNoSuchBucket(bucket), requestID)
		return
	}
	uploads := s.Store.ListMultipartUploads(bucket)
	out := listMultipartUploadsResult{Xmlns: xmlNS, Bucket: bucket}
	for _, u := range uploads {
		out.Uploads = append(out.Uploads, uploadXML{
			Key: u.Key, UploadID: u.ID, Initiated: u.Initiated,
			Owner: fixedOwner, Initiator: fixedOwner, StorageClass: "STANDARD",
		})
	}
	writeXML(w, http.StatusOK, out)
}
