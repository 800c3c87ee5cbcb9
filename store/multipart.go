package store

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/randonia/s3rver-go/cmn"
)

// Part is one uploaded chunk of a multipart upload (spec.md §3).
type Part struct {
	Number       int
	ETag         string // quoted hex md5, matches PutObject's convention
	Size         int64
	LastModified string
	data         []byte
}

// Upload is a staged multipart upload, identified by an opaque
// UploadId (spec.md §3 "Multipart upload").
type Upload struct {
	ID                      string
	Bucket                  string
	Key                     string
	ContentType             string
	UserMetadata            map[string]string
	WebsiteRedirectLocation string
	Initiated               string

	mu    sync.Mutex
	parts map[int]*Part
}

type multipartIndex struct {
	mu      sync.Mutex
	byID    map[string]*Upload
	perBckt map[string][]string // bucket -> upload ids, insertion order
}

func newMultipartIndex() *multipartIndex {
	return &multipartIndex{byID: make(map[string]*Upload), perBckt: make(map[string][]string)}
}

func (idx *multipartIndex) dropBucket(bucket string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, id := range idx.perBckt[bucket] {
		delete(idx.byID, id)
	}
	delete(idx.perBckt, bucket)
}

// InitiateMultipartUpload returns a fresh UploadId for (bucket, key)
// (spec.md §4.7).
func (s *Store) InitiateMultipartUpload(bucket, key string, attrs PutAttrs) (*Upload, error) {
	if _, ok := s.bucketObjectsFor(bucket); !ok {
		return nil, cmn.ErrNoSuchBucket(bucket)
	}
	contentType := attrs.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}
	u := &Upload{
		ID:                      cmn.GenUploadID(),
		Bucket:                  bucket,
		Key:                     key,
		ContentType:             contentType,
		UserMetadata:            lowerKeys(attrs.UserMetadata),
		WebsiteRedirectLocation: attrs.WebsiteRedirectLocation,
		Initiated:               nowFunc().UTC().Format("2006-01-02T15:04:05.000Z"),
		parts:                   make(map[int]*Part),
	}
	s.mpu.mu.Lock()
	s.mpu.byID[u.ID] = u
	s.mpu.perBckt[bucket] = append(s.mpu.perBckt[bucket], u.ID)
	s.mpu.mu.Unlock()
	return u, nil
}

func (s *Store) getUpload(bucket, uploadID string) (*Upload, error) {
	s.mpu.mu.Lock()
	u, ok := s.mpu.byID[uploadID]
	s.mpu.mu.Unlock()
	if !ok || u.Bucket != bucket {
		return nil, cmn.NewErrS3(cmn.CodeNoSuchUpload, "/"+bucket, "The specified upload does not exist")
	}
	return u, nil
}

// UploadPart stages part bytes; parts ∈ [1,10000] may arrive out of
// order (spec.md §3).
func (s *Store) UploadPart(bucket, uploadID string, partNumber int, body io.Reader) (*Part, error) {
	u, err := s.getUpload(bucket, uploadID)
	if err != nil {
		return nil, err
	}
	if partNumber < 1 || partNumber > 10000 {
		return nil, cmn.NewErrS3(cmn.CodeInvalidArgument, "/"+bucket, "part number must be between 1 and 10000")
	}
	h := md5.New()
	var buf bytes.Buffer
	size, err := io.Copy(io.MultiWriter(&buf, h), body)
	if err != nil {
		return nil, cmn.ErrInternal("/"+bucket+"/"+u.Key, err)
	}
	p := &Part{
		Number:       partNumber,
		ETag:         `"` + hex.EncodeToString(h.Sum(nil)) + `"`,
		Size:         size,
		LastModified: nowFunc().UTC().Format("2006-01-02T15:04:05.000Z"),
		data:         buf.Bytes(),
	}
	u.mu.Lock()
	u.parts[partNumber] = p
	u.mu.Unlock()
	return p, nil
}

// CompleteMultipartUpload validates every requested part exists and
// its ETag matches, assembles parts in ascending part-number order,
// and computes the well-known `md5(concat(md5 bytes))-N` ETag (spec.md
// §3/§4.7).
func (s *Store) CompleteMultipartUpload(bucket, uploadID string, wantParts []Part) (ObjectMeta, error) {
	u, err := s.getUpload(bucket, uploadID)
	if err != nil {
		return ObjectMeta{}, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(wantParts) == 0 {
		return ObjectMeta{}, cmn.NewErrS3(cmn.CodeMalformedXML, "/"+bucket+"/"+u.Key, "no parts supplied")
	}
	sort.Slice(wantParts, func(i, j int) bool { return wantParts[i].Number < wantParts[j].Number })

	var (
		concatMD5 bytes.Buffer
		body      bytes.Buffer
	)
	for _, want := range wantParts {
		got, ok := u.parts[want.Number]
		if !ok {
			return ObjectMeta{}, cmn.NewErrS3(cmn.CodeInvalidArgument, "/"+bucket+"/"+u.Key,
				"part %d was not uploaded", want.Number)
		}
		if want.ETag != "" && want.ETag != got.ETag {
			return ObjectMeta{}, cmn.NewErrS3(cmn.CodeInvalidArgument, "/"+bucket+"/"+u.Key,
				"part %d ETag does not match", want.Number)
		}
		raw, _ := hexETag(got.ETag)
		concatMD5.Write(raw)
		body.Write(got.data)
	}

	sum := md5.Sum(concatMD5.Bytes())
	etag := `"` + hex.EncodeToString(sum[:]) + "-" + strconv.Itoa(len(wantParts)) + `"`

	meta, perr := s.PutObject(bucket, u.Key, bytes.NewReader(body.Bytes()), PutAttrs{
		ContentType:             u.ContentType,
		UserMetadata:            u.UserMetadata,
		WebsiteRedirectLocation: u.WebsiteRedirectLocation,
		HasDeclaredLength:       true,
		DeclaredLength:          int64(body.Len()),
	})
	if perr != nil {
		return ObjectMeta{}, perr
	}
	meta.ETag = etag
	s.finalizeMultipartETag(bucket, u.Key, etag)

	s.mpu.mu.Lock()
	delete(s.mpu.byID, uploadID)
	s.mpu.mu.Unlock()
	return meta, nil
}

// finalizeMultipartETag overwrites the plain-MD5 ETag PutObject
// computed with the multipart `-N` scheme, without touching content.
func (s *Store) finalizeMultipartETag(bucket, key, etag string) {
	bo, ok := s.bucketObjectsFor(bucket)
	if !ok {
		return
	}
	s.objMu.Lock()
	defer s.objMu.Unlock()
	if entry, ok := bo.keys[key]; ok {
		entry.meta.ETag = etag
		s.persistMeta(bucket, key, entry.meta)
	}
}

// AbortMultipartUpload discards staged parts (spec.md §4.7).
func (s *Store) AbortMultipartUpload(bucket, uploadID string) error {
	if _, err := s.getUpload(bucket, uploadID); err != nil {
		return err
	}
	s.mpu.mu.Lock()
	delete(s.mpu.byID, uploadID)
	s.mpu.mu.Unlock()
	return nil
}

// ListMultipartUploads and ListParts return every matching upload or
// part in one response: there is no pagination (no max/marker), and no
// prefix/delimiter support. Uploads are bucket-scoped and ordered by
// upload id; parts are ordered by part number.
func (s *Store) ListMultipartUploads(bucket string) []*Upload {
	s.mpu.mu.Lock()
	defer s.mpu.mu.Unlock()
	ids := append([]string(nil), s.mpu.perBckt[bucket]...)
	sort.Strings(ids)
	out := make([]*Upload, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.mpu.byID[id]; ok {
			out = append(out, u)
		}
	}
	return out
}

func (s *Store) ListParts(bucket, uploadID string) ([]*Part, error) {
	u, err := s.getUpload(bucket, uploadID)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]*Part, 0, len(u.parts))
	for _, p := range u.parts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func hexETag(etag string) ([]byte, error) {
	trimmed := trimQuotes(etag)
	return hex.DecodeString(trimmed)
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
