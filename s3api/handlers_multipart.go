package s3api

import (
	"encoding/xml"
	"io"
	"net/http"
	"strconv"

	"github.com/randonia/s3rver-go/cmn"
	"github.com/randonia/s3rver-go/events"
	"github.com/randonia/s3rver-go/store"
)

func (s *Server) initiateMultipartUpload(w http.ResponseWriter, r *http.Request, bucket, key, requestID string) {
	resource := "/" + bucket + "/" + key
	attrs := store.PutAttrs{
		ContentType:             r.Header.Get("Content-Type"),
		UserMetadata:            metaHeaders(r.Header),
		WebsiteRedirectLocation: r.Header.Get("x-amz-website-redirect-location"),
	}
	u, err := s.Store.InitiateMultipartUpload(bucket, key, attrs)
	if err != nil {
		writeError(w, resource, err, requestID)
		return
	}
	writeXML(w, http.StatusOK, initiateMultipartUploadResult{
		Xmlns: xmlNS, Bucket: bucket, Key: key, UploadID: u.ID,
	})
}

func (s *Server) uploadPart(w http.ResponseWriter, r *http.Request, bucket, key, requestID string) {
	resource := "/" + bucket + "/" + key
	uploadID := r.URL.Query().Get("uploadId")
	partNumber, _ := strconv.Atoi(r.URL.Query().Get("partNumber"))
	p, err := s.Store.UploadPart(bucket, uploadID, partNumber, r.Body)
	if err != nil {
		writeError(w, resource, err, requestID)
		return
	}
	w.Header().Set("ETag", p.ETag)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) completeMultipartUpload(w http.ResponseWriter, r *http.Request, bucket, key, requestID string) {
	resource := "/" + bucket + "/" + key
	uploadID := r.URL.Query().Get("uploadId")
	raw, _ := io.ReadAll(r.Body)
	var req completeMultipartUploadRequest
	if err := xml.Unmarshal(raw, &req); err != nil {
		writeError(w, resource, cmn.NewErrS3(cmn.CodeMalformedXML, resource, "malformed CompleteMultipartUpload body"), requestID)
		return
	}
	wantParts := make([]store.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		wantParts = append(wantParts, store.Part{Number: p.PartNumber, ETag: p.ETag})
	}
	meta, err := s.Store.CompleteMultipartUpload(bucket, uploadID, wantParts)
	if err != nil {
		writeError(w, resource, err, requestID)
		return
	}
	writeXML(w, http.StatusOK, completeMultipartUploadResult{
		Xmlns: xmlNS, Location: resource, Bucket: bucket, Key: key, ETag: meta.ETag,
	})
	s.Bus.Publish(events.ObjectCreatedCompleteMultipartUpload, bucket, key, meta.Size, meta.ETag, s.now())
}

func (s *Server) abortMultipartUpload(w http.ResponseWriter, r *http.Request, bucket, key, requestID string) {
	resource := "/" + bucket + "/" + key
	uploadID := r.URL.Query().Get("uploadId")
	if err := s.Store.AbortMultipartUpload(bucket, uploadID); err != nil {
		writeError(w, resource, err, requestID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listParts(w http.ResponseWriter, r *http.Request, bucket, key, requestID string) {
	resource := "/" + bucket + "/" + key
	uploadID := r.URL.Query().Get("uploadId")
	parts, err := s.Store.ListParts(bucket, uploadID)
	if err != nil {
		writeError(w, resource, err, requestID)
		return
	}
	out := listPartsResult{Xmlns: xmlNS, Bucket: bucket, Key: key, UploadID: uploadID}
	for _, p := range parts {
		out.Parts = append(out.Parts, partXML{
			PartNumber: p.Number, LastModified: p.LastModified, ETag: p.ETag, Size: p.Size,
		})
	}
	writeXML(w, http.StatusOK, out)
}
