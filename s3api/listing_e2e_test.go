package s3api

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/randonia/s3rver-go/store"
)

var _ = Describe("ListObjectsV2 continuation across a full page", func() {
	It("truncates at MaxKeys and resumes with NextContinuationToken to list the remainder", func() {
		srv := newTestServer()
		Expect(srv.Store.CreateBucket("bucket1")).To(Succeed())
		for i := 0; i < 500; i++ {
			key := fmt.Sprintf("key%03d", i)
			_, err := srv.Store.PutObject("bucket1", key, bytes.NewReader(nil), store.PutAttrs{})
			Expect(err).NotTo(HaveOccurred())
		}

		first := doRequest(srv, http.MethodGet, "/bucket1?list-type=2&max-keys=400", nil)
		Expect(first.Code).To(Equal(http.StatusOK))
		var firstPage listBucketV2Result
		Expect(xml.Unmarshal(first.Body.Bytes(), &firstPage)).To(Succeed())
		Expect(firstPage.IsTruncated).To(BeTrue())
		Expect(firstPage.Contents).To(HaveLen(400))
		Expect(firstPage.NextContinuationToken).NotTo(BeEmpty())

		second := doRequest(srv, http.MethodGet,
			"/bucket1?list-type=2&continuation-token="+firstPage.NextContinuationToken, nil)
		Expect(second.Code).To(Equal(http.StatusOK))
		var secondPage listBucketV2Result
		Expect(xml.Unmarshal(second.Body.Bytes(), &secondPage)).To(Succeed())
		Expect(secondPage.IsTruncated).To(BeFalse())
		Expect(secondPage.NextContinuationToken).To(BeEmpty())
		Expect(secondPage.Contents).To(HaveLen(100))

		Expect(secondPage.Contents[0].Key).To(Equal("key400"))
	})
})
