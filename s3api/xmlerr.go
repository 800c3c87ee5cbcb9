package s3api

import (
	"encoding/xml"
	"net/http"

	"github.com/randonia/s3rver-go/cmn"
)

// writeError implements component C9 (spec.md §4.9): every failure
// (except website HTML responses, handled separately in website.go)
// emits the XML <Error> envelope with the mapped HTTP status.
func writeError(w http.ResponseWriter, resource string, err error, requestID string) {
	e := cmn.AsErrS3(resource, err)
	if mrw, ok := w.(*metricsResponseWriter); ok {
		mrw.errCode = string(e.Code)
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("x-amz-request-id", requestID)
	w.WriteHeader(e.HTTPStatus())
	body := xmlError{
		Code:      string(e.Code),
		Message:   e.Message,
		Resource:  e.Resource,
		RequestID: requestID,
	}
	w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Encode(body)
}

func methodNotAllowed() *cmn.ErrS3 {
	return cmn.NewErrS3(cmn.CodeMethodNotAllowed, "", "The specified method is not allowed against this resource")
}

func writeXML(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Encode(v)
}
