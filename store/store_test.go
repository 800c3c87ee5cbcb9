package store

import (
	"bytes"
	"io"
	"testing"

	"github.com/randonia/s3rver-go/cmn"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func mustCreateBucket(t *testing.T, s *Store, name string) {
	t.Helper()
	if err := s.CreateBucket(name); err != nil {
		t.Fatalf("CreateBucket(%q): %v", name, err)
	}
}

func TestCreateBucketRejectsInvalidName(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateBucket("UP"); err == nil {
		t.Fatal("expected InvalidBucketName for an uppercase name")
	}
}

func TestCreateBucketDuplicate(t *testing.T) {
	s := newTestStore(t)
	mustCreateBucket(t, s, "mybucket")
	err := s.CreateBucket("mybucket")
	es, ok := err.(*cmn.ErrS3)
	if !ok || es.Code != cmn.CodeBucketAlreadyExists {
		t.Fatalf("expected BucketAlreadyExists, got %v", err)
	}
}

func TestDeleteBucketNotEmpty(t *testing.T) {
	s := newTestStore(t)
	mustCreateBucket(t, s, "b")
	if _, err := s.PutObject("b", "k", bytes.NewReader([]byte("x")), PutAttrs{}); err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	err := s.DeleteBucket("b")
	es, ok := err.(*cmn.ErrS3)
	if !ok || es.Code != cmn.CodeBucketNotEmpty {
		t.Fatalf("expected BucketNotEmpty, got %v", err)
	}
}

func TestDeleteBucketAfterEmptying(t *testing.T) {
	s := newTestStore(t)
	mustCreateBucket(t, s, "b")
	if _, err := s.PutObject("b", "k", bytes.NewReader([]byte("x")), PutAttrs{}); err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	if err := s.DeleteObject("b", "k"); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}
	if err := s.DeleteBucket("b"); err != nil {
		t.Fatalf("DeleteBucket: %v", err)
	}
	if _, ok := s.GetBucket("b"); ok {
		t.Fatal("expected the bucket to be gone")
	}
}

func TestPutAndGetObjectRoundTrip(t *testing.T) {
	s := newTestStore(t)
	mustCreateBucket(t, s, "b")
	content := []byte("hello world")
	meta, err := s.PutObject("b", "greeting.txt", bytes.NewReader(content), PutAttrs{ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	if meta.Size != int64(len(content)) {
		t.Fatalf("Size = %d, want %d", meta.Size, len(content))
	}

	rc, gotMeta, err := s.GetObjectReader("b", "greeting.txt")
	if err != nil {
		t.Fatalf("GetObjectReader: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("content = %q, want %q", got, content)
	}
	if gotMeta.ETag != meta.ETag {
		t.Fatalf("ETag mismatch between Put and Get")
	}
}

func TestGetObjectReaderSnapshotSurvivesOverwrite(t *testing.T) {
	s := newTestStore(t)
	mustCreateBucket(t, s, "b")
	if _, err := s.PutObject("b", "k", bytes.NewReader([]byte("version-1")), PutAttrs{}); err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	rc, _, err := s.GetObjectReader("b", "k")
	if err != nil {
		t.Fatalf("GetObjectReader: %v", err)
	}
	defer rc.Close()

	if _, err := s.PutObject("b", "k", bytes.NewReader([]byte("version-2-longer")), PutAttrs{}); err != nil {
		t.Fatalf("overwrite PutObject: %v", err)
	}

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "version-1" {
		t.Fatalf("snapshot reader saw %q, want the content as of open time", got)
	}
}

func TestDeleteObjectIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	mustCreateBucket(t, s, "b")
	if err := s.DeleteObject("b", "never-existed"); err != nil {
		t.Fatalf("deleting a missing key should succeed, got %v", err)
	}
}

func TestPutObjectRejectsDeclaredLengthMismatch(t *testing.T) {
	s := newTestStore(t)
	mustCreateBucket(t, s, "b")
	_, err := s.PutObject("b", "k", bytes.NewReader([]byte("abc")), PutAttrs{
		HasDeclaredLength: true,
		DeclaredLength:    100,
	})
	es, ok := err.(*cmn.ErrS3)
	if !ok || es.Code != cmn.CodeIncompleteBody {
		t.Fatalf("expected IncompleteBody, got %v", err)
	}
}

func TestCopyObjectDefaultsToSourceMetadata(t *testing.T) {
	s := newTestStore(t)
	mustCreateBucket(t, s, "b")
	if _, err := s.PutObject("b", "src", bytes.NewReader([]byte("payload")), PutAttrs{
		ContentType:  "text/plain",
		UserMetadata: map[string]string{"Owner": "alice"},
	}); err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	meta, err := s.CopyObject("b", "src", "b", "dst", CopyAttrs{Directive: DirectiveCopy})
	if err != nil {
		t.Fatalf("CopyObject: %v", err)
	}
	if meta.ContentType != "text/plain" || meta.UserMetadata["owner"] != "alice" {
		t.Fatalf("copy did not preserve source metadata: %+v", meta)
	}
}

func TestCopyObjectReplaceDirectiveOverridesMetadata(t *testing.T) {
	s := newTestStore(t)
	mustCreateBucket(t, s, "b")
	if _, err := s.PutObject("b", "src", bytes.NewReader([]byte("payload")), PutAttrs{ContentType: "text/plain"}); err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	meta, err := s.CopyObject("b", "src", "b", "dst", CopyAttrs{
		Directive:   DirectiveReplace,
		ContentType: "application/json",
	})
	if err != nil {
		t.Fatalf("CopyObject: %v", err)
	}
	if meta.ContentType != "application/json" {
		t.Fatalf("ContentType = %q, want application/json", meta.ContentType)
	}
}

func TestPutObjectTaggingPreservesETag(t *testing.T) {
	s := newTestStore(t)
	mustCreateBucket(t, s, "b")
	meta, err := s.PutObject("b", "k", bytes.NewReader([]byte("x")), PutAttrs{})
	if err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	if err := s.PutObjectTagging("b", "k", []Tag{{Key: "env", Value: "prod"}}); err != nil {
		t.Fatalf("PutObjectTagging: %v", err)
	}
	got, err := s.HeadObject("b", "k")
	if err != nil {
		t.Fatalf("HeadObject: %v", err)
	}
	if got.ETag != meta.ETag {
		t.Fatalf("ETag changed after tagging: before %q after %q", meta.ETag, got.ETag)
	}
	tags, err := s.GetObjectTagging("b", "k")
	if err != nil || len(tags) != 1 || tags[0].Value != "prod" {
		t.Fatalf("unexpected tags: %v, err=%v", tags, err)
	}
}

func TestMultipartUploadLifecycle(t *testing.T) {
	s := newTestStore(t)
	mustCreateBucket(t, s, "b")
	up, err := s.InitiateMultipartUpload("b", "big.bin", PutAttrs{ContentType: "application/octet-stream"})
	if err != nil {
		t.Fatalf("InitiateMultipartUpload: %v", err)
	}

	p1, err := s.UploadPart("b", up.ID, 1, bytes.NewReader(bytes.Repeat([]byte("A"), 5<<20)))
	if err != nil {
		t.Fatalf("UploadPart 1: %v", err)
	}
	p2, err := s.UploadPart("b", up.ID, 2, bytes.NewReader([]byte("tail")))
	if err != nil {
		t.Fatalf("UploadPart 2: %v", err)
	}

	meta, err := s.CompleteMultipartUpload("b", up.ID, []Part{{Number: 1, ETag: p1.ETag}, {Number: 2, ETag: p2.ETag}})
	if err != nil {
		t.Fatalf("CompleteMultipartUpload: %v", err)
	}
	if meta.Size != int64(5<<20+4) {
		t.Fatalf("Size = %d, want %d", meta.Size, 5<<20+4)
	}
	if !bytes.HasSuffix([]byte(meta.ETag), []byte(`-2"`)) {
		t.Fatalf("ETag %q does not carry the multipart -N suffix", meta.ETag)
	}

	if _, err := s.ListParts("b", up.ID); err == nil {
		t.Fatal("expected NoSuchUpload after completion consumed the upload")
	}
}

func TestCompleteMultipartUploadRejectsETagMismatch(t *testing.T) {
	s := newTestStore(t)
	mustCreateBucket(t, s, "b")
	up, err := s.InitiateMultipartUpload("b", "big.bin", PutAttrs{})
	if err != nil {
		t.Fatalf("InitiateMultipartUpload: %v", err)
	}
	if _, err := s.UploadPart("b", up.ID, 1, bytes.NewReader([]byte("data"))); err != nil {
		t.Fatalf("UploadPart: %v", err)
	}
	_, err = s.CompleteMultipartUpload("b", up.ID, []Part{{Number: 1, ETag: `"deadbeef"`}})
	es, ok := err.(*cmn.ErrS3)
	if !ok || es.Code != cmn.CodeInvalidArgument {
		t.Fatalf("expected InvalidArgument for a mismatched part ETag, got %v", err)
	}
}

func TestAbortMultipartUploadDiscardsParts(t *testing.T) {
	s := newTestStore(t)
	mustCreateBucket(t, s, "b")
	up, err := s.InitiateMultipartUpload("b", "k", PutAttrs{})
	if err != nil {
		t.Fatalf("InitiateMultipartUpload: %v", err)
	}
	if err := s.AbortMultipartUpload("b", up.ID); err != nil {
		t.Fatalf("AbortMultipartUpload: %v", err)
	}
	if _, err := s.ListParts("b", up.ID); err == nil {
		t.Fatal("expected NoSuchUpload after abort")
	}
}

func TestKeysReturnsSortedSnapshot(t *testing.T) {
	s := newTestStore(t)
	mustCreateBucket(t, s, "b")
	for _, k := range []string{"c", "a", "b"} {
		if _, err := s.PutObject("b", k, bytes.NewReader(nil), PutAttrs{}); err != nil {
			t.Fatalf("PutObject(%q): %v", k, err)
		}
	}
	keys, err := s.Keys("b")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	want := []string{"a", "b", "c"}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("Keys = %v, want %v", keys, want)
		}
	}
}
