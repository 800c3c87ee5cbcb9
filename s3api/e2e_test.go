package s3api

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/randonia/s3rver-go/events"
	"github.com/randonia/s3rver-go/signature"
	"github.com/randonia/s3rver-go/store"
	"github.com/randonia/s3rver-go/website"
)

func newTestServer() *Server {
	st, err := store.New(GinkgoT().TempDir(), false)
	Expect(err).NotTo(HaveOccurred())
	srv := New(st, signature.Credentials{AccessKeyID: "S3RVER", SecretAccessKey: "S3RVER"}, Addressing{}, events.NewBus())
	srv.AllowMismatched = true
	return srv
}

func doRequest(srv *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.ContentLength = int64(len(body))
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

var _ = Describe("Put/Get round-trip", func() {
	It("produces the spec's literal MD5 ETag and echoes the body back unchanged", func() {
		srv := newTestServer()
		Expect(srv.Store.CreateBucket("bucket1")).To(Succeed())

		put := doRequest(srv, http.MethodPut, "/bucket1/text", []byte("Hello!"))
		Expect(put.Code).To(Equal(http.StatusOK))
		Expect(put.Header().Get("ETag")).To(Equal(`"952d2c56d0485958336747bcdd98590d"`))

		get := doRequest(srv, http.MethodGet, "/bucket1/text", nil)
		Expect(get.Code).To(Equal(http.StatusOK))
		Expect(get.Body.String()).To(Equal("Hello!"))
		Expect(get.Header().Get("Content-Type")).To(Equal("binary/octet-stream"))
	})
})

var _ = Describe("Listing with prefix and delimiter", func() {
	It("filters by prefix and collapses by delimiter per the spec's scenario", func() {
		srv := newTestServer()
		Expect(srv.Store.CreateBucket("bucket1")).To(Succeed())
		for _, k := range []string{"akey1", "akey2", "akey3", "key/key1", "key1", "key2", "key3"} {
			_, err := srv.Store.PutObject("bucket1", k, bytes.NewReader(nil), store.PutAttrs{})
			Expect(err).NotTo(HaveOccurred())
		}

		byPrefix := doRequest(srv, http.MethodGet, "/bucket1?prefix=key", nil)
		Expect(byPrefix.Code).To(Equal(http.StatusOK))
		Expect(byPrefix.Body.String()).To(ContainSubstring("<Key>key1</Key>"))
		Expect(byPrefix.Body.String()).NotTo(ContainSubstring("akey"))

		v2 := doRequest(srv, http.MethodGet, "/bucket1?list-type=2&delimiter=/", nil)
		Expect(v2.Code).To(Equal(http.StatusOK))
		Expect(v2.Body.String()).To(ContainSubstring("<Prefix>key/</Prefix>"))
	})
})

var _ = Describe("Range GET", func() {
	It("returns 206 with a clamped Content-Length when the range end exceeds the object size", func() {
		srv := newTestServer()
		Expect(srv.Store.CreateBucket("b")).To(Succeed())
		_, err := srv.Store.PutObject("b", "k", bytes.NewReader(bytes.Repeat([]byte("x"), 100)), store.PutAttrs{})
		Expect(err).NotTo(HaveOccurred())

		req := httptest.NewRequest(http.MethodGet, "/b/k", nil)
		req.Header.Set("Range", "bytes=0-1000000")
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusPartialContent))
		Expect(rec.Header().Get("Content-Length")).To(Equal("100"))
	})

	It("returns 416 when the range start is past EOF", func() {
		srv := newTestServer()
		Expect(srv.Store.CreateBucket("b")).To(Succeed())
		_, err := srv.Store.PutObject("b", "k", bytes.NewReader([]byte("short")), store.PutAttrs{})
		Expect(err).NotTo(HaveOccurred())

		req := httptest.NewRequest(http.MethodGet, "/b/k", nil)
		req.Header.Set("Range", "bytes=999-1000")
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusRequestedRangeNotSatisfiable))
	})
})

var _ = Describe("SigV4 header with missing components", func() {
	It("rejects with 400 AuthorizationHeaderMalformed", func() {
		srv := newTestServer()
		srv.AllowMismatched = false
		Expect(srv.Store.CreateBucket("b")).To(Succeed())

		req := httptest.NewRequest(http.MethodGet, "/b", nil)
		req.Header.Set("Authorization", "AWS4-HMAC-SHA256 Credential=S3RVER/20060301/us-east-1/s3/aws4_request")
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(rec.Body.String()).To(ContainSubstring("AuthorizationHeaderMalformed"))
	})
})

var _ = Describe("Website routing rule redirect", func() {
	It("redirects 301 to the transformed key per the matched RoutingRule", func() {
		srv := newTestServer()
		srv.Addressing = Addressing{ServiceEndpoint: "s3-website.example.com", VhostBuckets: true}
		Expect(srv.Store.CreateBucket("site")).To(Succeed())
		cfg := []byte(`<WebsiteConfiguration>
			<IndexDocument><Suffix>index.html</Suffix></IndexDocument>
			<RoutingRules><RoutingRule>
				<Condition><KeyPrefixEquals>test</KeyPrefixEquals></Condition>
				<Redirect><ReplaceKeyPrefixWith>replacement</ReplaceKeyPrefixWith></Redirect>
			</RoutingRule></RoutingRules>
		</WebsiteConfiguration>`)
		_, perr := website.Parse(cfg)
		Expect(perr).NotTo(HaveOccurred())
		Expect(srv.Store.PutBucketConfig("site", store.ConfigWebsite, cfg)).To(Succeed())

		req := httptest.NewRequest(http.MethodGet, "http://site.s3-website.example.com/test/key", nil)
		req.Host = "site.s3-website.example.com"
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusMovedPermanently))
		Expect(rec.Header().Get("Location")).To(Equal("http://site.s3-website.example.com/replacement/key"))
	})
})

var _ = Describe("Multipart upload", func() {
	It("computes the well-known concat-of-part-MD5s ETag for a 20 MiB upload", func() {
		srv := newTestServer()
		Expect(srv.Store.CreateBucket("b")).To(Succeed())

		init := doRequest(srv, http.MethodPost, "/b/big.bin?uploads", nil)
		Expect(init.Code).To(Equal(http.StatusOK))
		var result initiateMultipartUploadResult
		Expect(xml.Unmarshal(init.Body.Bytes(), &result)).To(Succeed())
		uploadID := result.UploadID

		const partSize = 5 << 20
		const numParts = 4
		partETags := make([]string, numParts)
		for i := 0; i < numParts; i++ {
			buf := bytes.Repeat([]byte{0}, partSize)
			target := fmt.Sprintf("/b/big.bin?uploadId=%s&partNumber=%d", uploadID, i+1)
			rec := doRequest(srv, http.MethodPut, target, buf)
			Expect(rec.Code).To(Equal(http.StatusOK))
			partETags[i] = rec.Header().Get("ETag")
		}

		var completeBody bytes.Buffer
		completeBody.WriteString(`<CompleteMultipartUpload>`)
		for i, et := range partETags {
			fmt.Fprintf(&completeBody, `<Part><PartNumber>%d</PartNumber><ETag>%s</ETag></Part>`, i+1, et)
		}
		completeBody.WriteString(`</CompleteMultipartUpload>`)

		complete := doRequest(srv, http.MethodPost, "/b/big.bin?uploadId="+uploadID, completeBody.Bytes())
		Expect(complete.Code).To(Equal(http.StatusOK))

		var concat bytes.Buffer
		for _, et := range partETags {
			raw, err := hex.DecodeString(et[1 : len(et)-1])
			Expect(err).NotTo(HaveOccurred())
			concat.Write(raw)
		}
		sum := md5.Sum(concat.Bytes())
		wantETag := fmt.Sprintf(`"%s-%d"`, hex.EncodeToString(sum[:]), numParts)

		meta, err := srv.Store.HeadObject("b", "big.bin")
		Expect(err).NotTo(HaveOccurred())
		Expect(meta.ETag).To(Equal(wantETag))
		Expect(meta.Size).To(Equal(int64(partSize * numParts)))
	})
})
