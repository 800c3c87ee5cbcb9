package s3api

import (
	"encoding/xml"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/randonia/s3rver-go/cmn"
	"github.com/randonia/s3rver-go/events"
	"github.com/randonia/s3rver-go/store"
)

// handleObject dispatches every object-level operation, including the
// ?tagging and ?uploadId=/?uploads multipart sub-resources (spec.md
// §4.6 step 3, §4.7).
func (s *Server) handleObject(w http.ResponseWriter, r *http.Request, bucket, key, requestID string) {
	q := r.URL.Query()
	resource := "/" + bucket + "/" + key

	switch {
	case hasAny(q, "tagging"):
		s.handleObjectTagging(w, r, bucket, key, requestID)
		return
	case hasAny(q, "uploads") && r.Method == http.MethodPost:
		s.initiateMultipartUpload(w, r, bucket, key, requestID)
		return
	case hasAny(q, "uploadId") && r.Method == http.MethodPut:
		s.uploadPart(w, r, bucket, key, requestID)
		return
	case hasAny(q, "uploadId") && r.Method == http.MethodPost:
		s.completeMultipartUpload(w, r, bucket, key, requestID)
		return
	case hasAny(q, "uploadId") && r.Method == http.MethodDelete:
		s.abortMultipartUpload(w, r, bucket, key, requestID)
		return
	case hasAny(q, "uploadId") && r.Method == http.MethodGet:
		s.listParts(w, r, bucket, key, requestID)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getObject(w, r, bucket, key, requestID)
	case http.MethodHead:
		s.headObject(w, r, bucket, key, requestID)
	case http.MethodPut:
		if r.Header.Get("X-Amz-Copy-Source") != "" {
			s.copyObject(w, r, bucket, key, requestID)
			return
		}
		s.putObject(w, r, bucket, key, requestID)
	case http.MethodDelete:
		if err := s.Store.DeleteObject(bucket, key); err != nil {
			writeError(w, resource, err, requestID)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		s.Bus.Publish(events.ObjectRemovedDelete, bucket, key, 0, "", s.now())
	case http.MethodPost:
		s.postObject(w, r, bucket, requestID)
	default:
		writeError(w, resource, methodNotAllowed(), requestID)
	}
}

func metaHeaders(h http.Header) map[string]string {
	out := map[string]string{}
	for k, vs := range h {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "x-amz-meta-") && len(vs) > 0 {
			out[strings.TrimPrefix(lk, "x-amz-meta-")] = vs[0]
		}
	}
	return out
}

func (s *Server) putObject(w http.ResponseWriter, r *http.Request, bucket, key, requestID string) {
	resource := "/" + bucket + "/" + key
	attrs := store.PutAttrs{
		ContentType:             r.Header.Get("Content-Type"),
		UserMetadata:            metaHeaders(r.Header),
		WebsiteRedirectLocation: r.Header.Get("x-amz-website-redirect-location"),
		ContentMD5:              r.Header.Get("Content-MD5"),
	}
	if r.ContentLength >= 0 {
		attrs.HasDeclaredLength = true
		attrs.DeclaredLength = r.ContentLength
	}
	meta, err := s.Store.PutObject(bucket, key, r.Body, attrs)
	if err != nil {
		writeError(w, resource, err, requestID)
		return
	}
	w.Header().Set("ETag", meta.ETag)
	w.WriteHeader(http.StatusOK)
	s.Bus.Publish(events.ObjectCreatedPut, bucket, key, meta.Size, meta.ETag, s.now())
}

func (s *Server) getObject(w http.ResponseWriter, r *http.Request, bucket, key, requestID string) {
	resource := "/" + bucket + "/" + key
	rc, meta, err := s.Store.GetObjectReader(bucket, key)
	if err != nil {
		writeError(w, resource, err, requestID)
		return
	}
	defer rc.Close()
	writeObjectHeaders(w, meta)

	rng := parseRange(r.Header.Get("Range"), meta.Size)
	if rng.OutOfRange {
		w.Header().Set("Content-Range", "bytes */"+strconv.FormatInt(meta.Size, 10))
		writeError(w, resource, cmn.NewErrS3(cmn.CodeInvalidRange, resource,
			"The requested range is not satisfiable"), requestID)
		return
	}
	applyResponseOverrides(w, r.URL.Query())
	if rng.Set {
		length := rng.End - rng.Start + 1
		w.Header().Set("Content-Range", "bytes "+strconv.FormatInt(rng.Start, 10)+"-"+
			strconv.FormatInt(rng.End, 10)+"/"+strconv.FormatInt(meta.Size, 10))
		w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
		w.Header().Set("Accept-Ranges", "bytes")
		w.WriteHeader(http.StatusPartialContent)
		io.CopyN(w, &skipReader{r: rc, skip: rng.Start}, length)
		return
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, rc)
}

// skipReader discards the first skip bytes of r before yielding any.
// GetObjectReader only hands back a sequential io.ReadCloser, so Range
// GET seeks by discarding rather than os.Seek (keeps the snapshot-safe
// contract: the reader was already opened against the entry's path).
type skipReader struct {
	r      io.Reader
	skip   int64
	skipped bool
}

func (s *skipReader) Read(p []byte) (int, error) {
	if !s.skipped {
		if _, err := io.CopyN(io.Discard, s.r, s.skip); err != nil {
			return 0, err
		}
		s.skipped = true
	}
	return s.r.Read(p)
}

func writeObjectHeaders(w http.ResponseWriter, meta store.ObjectMeta) {
	h := w.Header()
	h.Set("ETag", meta.ETag)
	h.Set("Content-Type", meta.ContentType)
	h.Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	h.Set("Last-Modified", meta.LastModified.UTC().Format(http.TimeFormat))
	if meta.WebsiteRedirectLocation != "" {
		h.Set("x-amz-website-redirect-location", meta.WebsiteRedirectLocation)
	}
	for k, v := range meta.UserMetadata {
		h.Set("x-amz-meta-"+k, v)
	}
}

func (s *Server) headObject(w http.ResponseWriter, r *http.Request, bucket, key, requestID string) {
	resource := "/" + bucket + "/" + key
	meta, err := s.Store.HeadObject(bucket, key)
	if err != nil {
		writeError(w, resource, err, requestID)
		return
	}
	writeObjectHeaders(w, meta)
	w.WriteHeader(http.StatusOK)
}

// copyObject implements spec.md §4.7 "Copy object": X-Amz-Copy-Source
// is percent-decoded into (bucket, key) first, and the self-copy check
// compares those decoded values with the destination.
func (s *Server) copyObject(w http.ResponseWriter, r *http.Request, dstBucket, dstKey, requestID string) {
	resource := "/" + dstBucket + "/" + dstKey
	raw := r.Header.Get("X-Amz-Copy-Source")
	decoded, derr := url.QueryUnescape(strings.TrimPrefix(raw, "/"))
	if derr != nil {
		writeError(w, resource, cmn.NewErrS3(cmn.CodeInvalidArgument, resource, "invalid x-amz-copy-source"), requestID)
		return
	}
	idx := strings.IndexByte(decoded, '/')
	if idx < 0 {
		writeError(w, resource, cmn.NewErrS3(cmn.CodeInvalidArgument, resource, "invalid x-amz-copy-source"), requestID)
		return
	}
	srcBucket, srcKey := decoded[:idx], decoded[idx+1:]

	directive := store.DirectiveCopy
	if strings.EqualFold(r.Header.Get("x-amz-metadata-directive"), "REPLACE") {
		directive = store.DirectiveReplace
	}
	if srcBucket == dstBucket && srcKey == dstKey && directive == store.DirectiveCopy {
		writeError(w, resource, cmn.NewErrS3(cmn.CodeInvalidRequest, resource,
			"This copy request is illegal because it is trying to copy an object to itself "+
				"without changing the object's metadata, storage class, website redirect location or encryption attributes."),
			requestID)
		return
	}

	attrs := store.CopyAttrs{
		Directive:               directive,
		ContentType:             r.Header.Get("Content-Type"),
		UserMetadata:            metaHeaders(r.Header),
		WebsiteRedirectLocation: r.Header.Get("x-amz-website-redirect-location"),
	}
	meta, err := s.Store.CopyObject(srcBucket, srcKey, dstBucket, dstKey, attrs)
	if err != nil {
		writeError(w, resource, err, requestID)
		return
	}
	writeXML(w, http.StatusOK, copyObjectResult{
		Xmlns:        xmlNS,
		LastModified: meta.LastModified.UTC().Format("2006-01-02T15:04:05.000Z"),
		ETag:         meta.ETag,
	})
	s.Bus.Publish(events.ObjectCreatedCopy, dstBucket, dstKey, meta.Size, meta.ETag, s.now())
}

func (s *Server) handleObjectTagging(w http.ResponseWriter, r *http.Request, bucket, key, requestID string) {
	resource := "/" + bucket + "/" + key
	switch r.Method {
	case http.MethodPut:
		raw, _ := io.ReadAll(r.Body)
		var req tagging
		if err := xml.Unmarshal(raw, &req); err != nil {
			writeError(w, resource, cmn.NewErrS3(cmn.CodeMalformedXML, resource, "malformed tagging XML"), requestID)
			return
		}
		tags := make([]store.Tag, 0, len(req.TagSet))
		for _, t := range req.TagSet {
			tags = append(tags, store.Tag{Key: t.Key, Value: t.Value})
		}
		if err := s.Store.PutObjectTagging(bucket, key, tags); err != nil {
			writeError(w, resource, err, requestID)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		tags, err := s.Store.GetObjectTagging(bucket, key)
		if err != nil {
			writeError(w, resource, err, requestID)
			return
		}
		out := tagging{Xmlns: xmlNS}
		for _, t := range tags {
			out.TagSet = append(out.TagSet, tagXML{Key: t.Key, Value: t.Value})
		}
		writeXML(w, http.StatusOK, out)
	case http.MethodDelete:
		if err := s.Store.DeleteObjectTagging(bucket, key); err != nil {
			writeError(w, resource, err, requestID)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, resource, methodNotAllowed(), requestID)
	}
}

// postObject implements spec.md §4.7's browser-based form upload:
// multipart/form-data with a "key" field supporting ${filename}
// substitution and the uploaded file in a "file" field.
func (s *Server) postObject(w http.ResponseWriter, r *http.Request, bucket, requestID string) {
	resource := "/" + bucket
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		writeError(w, resource, cmn.NewErrS3(cmn.CodeInvalidRequest, resource, "expected multipart/form-data"), requestID)
		return
	}
	mr := multipart.NewReader(r.Body, params["boundary"])

	form := map[string]string{}
	var fileField *multipart.Part
	var filename string
	var fileBytes []byte
	for {
		part, perr := mr.NextPart()
		if perr == io.EOF {
			break
		}
		if perr != nil {
			writeError(w, resource, cmn.NewErrS3(cmn.CodeMalformedXML, resource, "malformed form body"), requestID)
			return
		}
		name := part.FormName()
		if name == "file" {
			fileField = part
			filename = part.FileName()
			fileBytes, _ = io.ReadAll(part)
			continue
		}
		val, _ := io.ReadAll(part)
		form[strings.ToLower(name)] = string(val)
	}
	if fileField == nil {
		writeError(w, resource, cmn.NewErrS3(cmn.CodeInvalidRequest, resource, "missing file field"), requestID)
		return
	}

	key := form["key"]
	key = strings.ReplaceAll(key, "${filename}", filename)
	if key == "" {
		writeError(w, resource, cmn.NewErrS3(cmn.CodeInvalidRequest, resource, "missing key field"), requestID)
		return
	}
	contentType := form["content-type"]
	if contentType == "" {
		contentType = store.DefaultContentType
	}
	meta := map[string]string{}
	for k, v := range form {
		if strings.HasPrefix(k, "x-amz-meta-") {
			meta[strings.TrimPrefix(k, "x-amz-meta-")] = v
		}
	}

	objMeta, perr := s.Store.PutObject(bucket, key, strings.NewReader(string(fileBytes)), store.PutAttrs{
		ContentType: contentType, UserMetadata: meta,
		HasDeclaredLength: true, DeclaredLength: int64(len(fileBytes)),
	})
	if perr != nil {
		writeError(w, resource, perr, requestID)
		return
	}

	status := http.StatusCreated
	if v := form["success_action_status"]; v != "" {
		if n, aerr := strconv.Atoi(v); aerr == nil {
			status = n
		}
	}
	w.Header().Set("ETag", objMeta.ETag)
	switch status {
	case http.StatusOK, http.StatusNoContent:
		w.WriteHeader(status)
	default:
		location := (&url.URL{Scheme: "https", Host: r.Host, Path: "/" + bucket + "/" + key}).String()
		writeXML(w, status, postResponseResult{
			Xmlns:    xmlNS,
			Location: location,
			Bucket:   bucket,
			Key:      key,
			ETag:     objMeta.ETag,
		})
	}
	s.Bus.Publish(events.ObjectCreatedPost, bucket, key, objMeta.Size, objMeta.ETag, s.now())
}
