package s3api

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestS3API(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "s3api Suite")
}
