package store

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/randonia/s3rver-go/cmn"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// PutAttrs carries everything a PUT/POST/COPY supplies besides bytes.
type PutAttrs struct {
	ContentType             string
	UserMetadata            map[string]string
	WebsiteRedirectLocation string
	ContentMD5              string // base64, from the Content-MD5 header, optional
	DeclaredLength          int64  // from Content-Length; checked only when HasDeclaredLength
	HasDeclaredLength       bool
}

// objectFileName maps an arbitrary key (including trailing "/", which
// is significant per spec.md §3) onto a flat, collision-free filename.
// Keys are never translated into nested directories: "text" and
// "text/" would otherwise collide on most filesystems, and a deleted
// "dir/"-ish key must never leave a "ghost directory" behind (spec.md
// §4.1 DeleteBucket).
func objectFileName(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func (s *Store) objectDir(bucket string) string {
	return filepath.Join(s.bucketDir(bucket), "objects")
}

func (s *Store) contentPath(bucket, key string) string {
	return filepath.Join(s.objectDir(bucket), objectFileName(key)+".data")
}

func (s *Store) metaPath(bucket, key string) string {
	return filepath.Join(s.objectDir(bucket), objectFileName(key)+".meta.json")
}

// PutObject streams body to storage, computing MD5 incrementally, and
// installs the resulting entry atomically (spec.md §4.1 putObject).
func (s *Store) PutObject(bucket, key string, body io.Reader, attrs PutAttrs) (ObjectMeta, error) {
	bo, ok := s.bucketObjectsFor(bucket)
	if !ok {
		return ObjectMeta{}, cmn.ErrNoSuchBucket(bucket)
	}

	mu := s.stripeFor(bucket)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(s.objectDir(bucket), 0o755); err != nil {
		return ObjectMeta{}, cmn.ErrInternal("/"+bucket+"/"+key, err)
	}

	tmpPath := s.contentPath(bucket, key) + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return ObjectMeta{}, cmn.ErrInternal("/"+bucket+"/"+key, err)
	}
	h := md5.New()
	size, err := io.Copy(io.MultiWriter(f, h), body)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return ObjectMeta{}, cmn.ErrInternal("/"+bucket+"/"+key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return ObjectMeta{}, cmn.ErrInternal("/"+bucket+"/"+key, err)
	}

	sum := h.Sum(nil)
	if attrs.HasDeclaredLength && attrs.DeclaredLength != size {
		os.Remove(tmpPath)
		return ObjectMeta{}, cmn.NewErrS3(cmn.CodeIncompleteBody, "/"+bucket+"/"+key,
			"You did not provide the number of bytes specified by the Content-Length HTTP header")
	}
	if attrs.ContentMD5 != "" {
		want, derr := base64.StdEncoding.DecodeString(attrs.ContentMD5)
		if derr != nil || string(want) != string(sum) {
			os.Remove(tmpPath)
			return ObjectMeta{}, cmn.NewErrS3(cmn.CodeBadDigest, "/"+bucket+"/"+key,
				"The Content-MD5 you specified did not match what we received")
		}
	}

	finalPath := s.contentPath(bucket, key)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return ObjectMeta{}, cmn.ErrInternal("/"+bucket+"/"+key, err)
	}

	contentType := attrs.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}
	meta := ObjectMeta{
		Key:                     key,
		ContentType:             contentType,
		ETag:                    `"` + hex.EncodeToString(sum) + `"`,
		Size:                    size,
		LastModified:            nowFunc(),
		UserMetadata:            lowerKeys(attrs.UserMetadata),
		WebsiteRedirectLocation: attrs.WebsiteRedirectLocation,
	}

	entry := &objectEntry{meta: meta, path: finalPath}
	s.objMu.Lock()
	bo.keys[key] = entry
	s.objMu.Unlock()

	if err := s.persistMeta(bucket, key, meta); err != nil {
		return ObjectMeta{}, err
	}
	return meta, nil
}

func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[toLower(k)] = v
	}
	return out
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// GetObjectReader returns the snapshot-safe byte stream for (bucket,
// key): a reader already opened against the path an entry pointed to
// at call time keeps returning those bytes even if the key is
// overwritten or deleted afterwards (spec.md §4.1/§5).
func (s *Store) GetObjectReader(bucket, key string) (io.ReadCloser, ObjectMeta, error) {
	entry, meta, err := s.lookup(bucket, key)
	if err != nil {
		return nil, ObjectMeta{}, err
	}
	rc, oerr := entry.open()
	if oerr != nil {
		return nil, ObjectMeta{}, cmn.ErrInternal("/"+bucket+"/"+key, oerr)
	}
	return rc, meta, nil
}

// HeadObject returns metadata only (spec.md §4.1 headObject).
func (s *Store) HeadObject(bucket, key string) (ObjectMeta, error) {
	_, meta, err := s.lookup(bucket, key)
	if err != nil {
		return ObjectMeta{}, err
	}
	return meta, nil
}

// lookup resolves an entry and hands back an independent copy of its
// metadata taken under the read lock, so a caller can use it after
// releasing objMu without racing a concurrent PutObjectTagging/PutObject
// that mutates or replaces the same entry in place.
func (s *Store) lookup(bucket, key string) (*objectEntry, ObjectMeta, error) {
	bo, ok := s.bucketObjectsFor(bucket)
	if !ok {
		return nil, ObjectMeta{}, cmn.ErrNoSuchBucket(bucket)
	}
	s.objMu.RLock()
	entry, ok := bo.keys[key]
	if !ok {
		s.objMu.RUnlock()
		return nil, ObjectMeta{}, cmn.ErrNoSuchKey(bucket, key)
	}
	meta := copyMeta(entry.meta)
	s.objMu.RUnlock()
	return entry, meta, nil
}

// DeleteObject is idempotent: deleting a missing key is success, not an
// error (spec.md §4.1 deleteObject).
func (s *Store) DeleteObject(bucket, key string) error {
	bo, ok := s.bucketObjectsFor(bucket)
	if !ok {
		return cmn.ErrNoSuchBucket(bucket)
	}
	mu := s.stripeFor(bucket)
	mu.Lock()
	defer mu.Unlock()

	s.objMu.Lock()
	entry, existed := bo.keys[key]
	delete(bo.keys, key)
	s.objMu.Unlock()

	if !existed {
		return nil
	}
	os.Remove(entry.path)
	os.Remove(s.metaPath(bucket, key))
	return nil
}

// DeleteObjects implements spec.md §4.1 deleteObjects: every requested
// key is reported under deleted, whether or not it existed.
func (s *Store) DeleteObjects(bucket string, keys []string) (deleted []string, errs map[string]error) {
	errs = make(map[string]error)
	for _, k := range keys {
		if err := s.DeleteObject(bucket, k); err != nil {
			errs[k] = err
			continue
		}
		deleted = append(deleted, k)
	}
	return deleted, errs
}

// MetadataDirective controls CopyObject's metadata handling (spec.md
// §4.1 copyObject / §4.7 Copy object).
type MetadataDirective int

const (
	DirectiveCopy MetadataDirective = iota
	DirectiveReplace
)

type CopyAttrs struct {
	Directive               MetadataDirective
	ContentType             string
	UserMetadata            map[string]string
	WebsiteRedirectLocation string
}

// CopyObject implements spec.md §4.1 copyObject. Self-copy rejection
// (same bucket/key, COPY directive) is enforced by the caller (s3api),
// which percent-decodes the X-Amz-Copy-Source header and compares the
// decoded bucket/key with the destination.
func (s *Store) CopyObject(srcBucket, srcKey, dstBucket, dstKey string, attrs CopyAttrs) (ObjectMeta, error) {
	rc, srcMeta, err := s.GetObjectReader(srcBucket, srcKey)
	if err != nil {
		return ObjectMeta{}, err
	}
	defer rc.Close()

	put := PutAttrs{HasDeclaredLength: true, DeclaredLength: srcMeta.Size}
	switch attrs.Directive {
	case DirectiveReplace:
		put.ContentType = attrs.ContentType
		if put.ContentType == "" {
			put.ContentType = "application/octet-stream"
		}
		put.UserMetadata = attrs.UserMetadata
		put.WebsiteRedirectLocation = attrs.WebsiteRedirectLocation
	default:
		put.ContentType = srcMeta.ContentType
		put.UserMetadata = srcMeta.UserMetadata
		put.WebsiteRedirectLocation = srcMeta.WebsiteRedirectLocation
	}
	return s.PutObject(dstBucket, dstKey, rc, put)
}

func (s *Store) persistMeta(bucket, key string, meta ObjectMeta) error {
	b, err := jsonAPI.Marshal(meta)
	if err != nil {
		return cmn.ErrInternal("/"+bucket+"/"+key, err)
	}
	if err := os.WriteFile(s.metaPath(bucket, key), b, 0o644); err != nil {
		return cmn.ErrInternal("/"+bucket+"/"+key, errors.Wrap(err, "persist metadata"))
	}
	return nil
}
