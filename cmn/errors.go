// Package cmn provides the error taxonomy, configuration, and small
// utilities shared by every package of the S3-compatible server.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"fmt"
	"net/http"
)

// S3Code is the stable <Code> carried in every <Error> XML envelope.
type S3Code string

// Error codes, mirrored against the real service and shared by every
// handler, signature verifier, and config engine in this repo.
const (
	CodeInvalidBucketName       S3Code = "InvalidBucketName"
	CodeNoSuchBucket            S3Code = "NoSuchBucket"
	CodeBucketAlreadyExists     S3Code = "BucketAlreadyExists"
	CodeBucketAlreadyOwnedByYou S3Code = "BucketAlreadyOwnedByYou"
	CodeBucketNotEmpty          S3Code = "BucketNotEmpty"
	CodeNoSuchKey               S3Code = "NoSuchKey"
	CodeNoSuchUpload            S3Code = "NoSuchUpload"
	CodeNoSuchCORSConfig        S3Code = "NoSuchCORSConfiguration"
	CodeNoSuchWebsiteConfig     S3Code = "NoSuchWebsiteConfiguration"
	CodeNoSuchBucketPolicy      S3Code = "NoSuchBucketPolicy"
	CodeNoSuchLifecycleConfig   S3Code = "NoSuchLifecycleConfiguration"
	CodeNoSuchTagSet            S3Code = "NoSuchTagSet"
	CodeInvalidArgument         S3Code = "InvalidArgument"
	CodeAuthHeaderMalformed     S3Code = "AuthorizationHeaderMalformed"
	CodeAuthQueryParamsError    S3Code = "AuthorizationQueryParametersError"
	CodeSignatureDoesNotMatch   S3Code = "SignatureDoesNotMatch"
	CodeAccessDenied            S3Code = "AccessDenied"
	CodeRequestTimeTooSkewed    S3Code = "RequestTimeTooSkewed"
	CodeBadDigest               S3Code = "BadDigest"
	CodeIncompleteBody          S3Code = "IncompleteBody"
	CodeMalformedXML            S3Code = "MalformedXML"
	CodeInvalidRequest          S3Code = "InvalidRequest"
	CodeInvalidRange            S3Code = "InvalidRange"
	CodeInternalError           S3Code = "InternalError"
	CodeMethodNotAllowed        S3Code = "MethodNotAllowed"
	CodeNotImplemented          S3Code = "NotImplemented"
)

var codeStatus = map[S3Code]int{
	CodeInvalidBucketName:       http.StatusBadRequest,
	CodeNoSuchBucket:            http.StatusNotFound,
	CodeBucketAlreadyExists:     http.StatusConflict,
	CodeBucketAlreadyOwnedByYou: http.StatusConflict,
	CodeBucketNotEmpty:          http.StatusConflict,
	CodeNoSuchKey:               http.StatusNotFound,
	CodeNoSuchUpload:            http.StatusNotFound,
	CodeNoSuchCORSConfig:        http.StatusNotFound,
	CodeNoSuchWebsiteConfig:     http.StatusNotFound,
	CodeNoSuchBucketPolicy:      http.StatusNotFound,
	CodeNoSuchLifecycleConfig:   http.StatusNotFound,
	CodeNoSuchTagSet:            http.StatusNotFound,
	CodeInvalidArgument:         http.StatusBadRequest,
	CodeAuthHeaderMalformed:     http.StatusBadRequest,
	CodeAuthQueryParamsError:    http.StatusBadRequest,
	CodeSignatureDoesNotMatch:   http.StatusForbidden,
	CodeAccessDenied:            http.StatusForbidden,
	CodeRequestTimeTooSkewed:    http.StatusForbidden,
	CodeBadDigest:               http.StatusBadRequest,
	CodeIncompleteBody:          http.StatusBadRequest,
	CodeMalformedXML:            http.StatusBadRequest,
	CodeInvalidRequest:          http.StatusBadRequest,
	CodeInvalidRange:            http.StatusRequestedRangeNotSatisfiable,
	CodeInternalError:           http.StatusInternalServerError,
	CodeMethodNotAllowed:        http.StatusMethodNotAllowed,
	CodeNotImplemented:          http.StatusNotImplemented,
}

// ErrS3 is the single tagged-failure type that every handler, store
// method, and engine in this repo returns in place of ad-hoc errors.
// The outermost response assembler (s3api.writeError) is the only
// place that converts it into bytes on the wire.
type ErrS3 struct {
	Code     S3Code
	Message  string
	Resource string
	Status   int // 0 means "look up codeStatus[Code]"
}

func (e *ErrS3) Error() string {
	return fmt.Sprintf("%s: %s (resource=%s)", e.Code, e.Message, e.Resource)
}

func (e *ErrS3) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	if s, ok := codeStatus[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// NewErrS3 constructs a tagged failure for the given code, attaching the
// resource path (bucket, or bucket/key) that the error applies to.
func NewErrS3(code S3Code, resource, format string, args ...interface{}) *ErrS3 {
	return &ErrS3{Code: code, Resource: resource, Message: fmt.Sprintf(format, args...)}
}

func ErrNoSuchBucket(bucket string) *ErrS3 {
	return NewErrS3(CodeNoSuchBucket, "/"+bucket, "The specified bucket does not exist")
}

func ErrNoSuchKey(bucket, key string) *ErrS3 {
	return NewErrS3(CodeNoSuchKey, "/"+bucket+"/"+key, "The specified key does not exist")
}

func ErrInvalidBucketName(bucket string) *ErrS3 {
	return NewErrS3(CodeInvalidBucketName, "/"+bucket,
		"The specified bucket is not valid")
}

func ErrBucketAlreadyExists(bucket string) *ErrS3 {
	return NewErrS3(CodeBucketAlreadyExists, "/"+bucket,
		"The requested bucket name is not available")
}

func ErrBucketNotEmpty(bucket string) *ErrS3 {
	return NewErrS3(CodeBucketNotEmpty, "/"+bucket,
		"The bucket you tried to delete is not empty")
}

func ErrInternal(resource string, cause error) *ErrS3 {
	return NewErrS3(CodeInternalError, resource, "We encountered an internal error: %v", cause)
}

// AsErrS3 unwraps err into an *ErrS3, falling back to a generic
// InternalError for anything this repo did not tag itself -- storage
// errors (disk full, I/O) must never escape to the HTTP layer untagged.
func AsErrS3(resource string, err error) *ErrS3 {
	if err == nil {
		return nil
	}
	if es, ok := err.(*ErrS3); ok {
		return es
	}
	return ErrInternal(resource, err)
}
