package cmn

import (
	"sync"

	"github.com/teris-io/shortid"
)

// Alphabet for generating upload/request IDs, patterned on AIStore's
// own uuidABC in cmn/shortid.go.
const idABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var (
	sidOnce sync.Once
	sid     *shortid.Shortid
)

func initSID() {
	sidOnce.Do(func() {
		sid = shortid.MustNew(1 /*worker*/, idABC, 0)
	})
}

// GenRequestID returns the short, human-readable id stamped into every
// <RequestId> element of the XML error envelope and exposed to clients
// via the x-amz-request-id response header.
func GenRequestID() string {
	initSID()
	return sid.MustGenerate()
}

// GenUploadID returns an opaque multipart UploadId. It never collides
// in practice within a single server lifetime, which is all the
// contract requires (spec.md §3: "Identified by an opaque UploadId").
func GenUploadID() string {
	initSID()
	return sid.MustGenerate()
}
