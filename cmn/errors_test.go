package cmn

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestErrS3ErrorIncludesResource(t *testing.T) {
	err := NewErrS3(CodeNoSuchKey, "/b/k", "The specified key does not exist")
	msg := err.Error()
	if !strings.Contains(msg, "NoSuchKey") || !strings.Contains(msg, "/b/k") {
		t.Fatalf("Error() = %q, want it to mention the code and the resource", msg)
	}
}

func TestHTTPStatusLooksUpKnownCode(t *testing.T) {
	err := ErrNoSuchBucket("mybucket")
	if got := err.HTTPStatus(); got != http.StatusNotFound {
		t.Fatalf("HTTPStatus = %d, want 404", got)
	}
}

func TestHTTPStatusExplicitOverride(t *testing.T) {
	err := &ErrS3{Code: CodeInvalidArgument, Status: http.StatusTeapot}
	if got := err.HTTPStatus(); got != http.StatusTeapot {
		t.Fatalf("HTTPStatus = %d, want explicit override 418", got)
	}
}

func TestHTTPStatusUnknownCodeFallsBackToInternalError(t *testing.T) {
	err := &ErrS3{Code: S3Code("SomeNewCodeNotInTheTable")}
	if got := err.HTTPStatus(); got != http.StatusInternalServerError {
		t.Fatalf("HTTPStatus = %d, want 500 for an unmapped code", got)
	}
}

func TestAsErrS3PassesThroughExisting(t *testing.T) {
	original := ErrNoSuchKey("b", "k")
	got := AsErrS3("/b/k", original)
	if got != original {
		t.Fatal("AsErrS3 should return the same *ErrS3 unchanged")
	}
}

func TestAsErrS3WrapsForeignError(t *testing.T) {
	cause := errors.New("disk full")
	got := AsErrS3("/b/k", cause)
	if got.Code != CodeInternalError {
		t.Fatalf("Code = %q, want InternalError", got.Code)
	}
	if !strings.Contains(got.Message, "disk full") {
		t.Fatalf("Message = %q, want it to carry the underlying cause", got.Message)
	}
}

func TestAsErrS3NilIsNil(t *testing.T) {
	if AsErrS3("/b/k", nil) != nil {
		t.Fatal("AsErrS3(nil) should return nil")
	}
}
