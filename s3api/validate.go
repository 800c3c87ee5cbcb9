package s3api

import (
	"github.com/randonia/s3rver-go/cmn"
	"github.com/randonia/s3rver-go/cors"
	"github.com/randonia/s3rver-go/website"
)

// validateCORSXML rejects an invalid CORS document before it is stored
// (spec.md §4.4 "On load").
func validateCORSXML(raw []byte) (*cors.Config, *cmn.ErrS3) {
	cfg, err := cors.Parse(raw)
	if err != nil {
		return nil, err.(*cmn.ErrS3)
	}
	return cfg, nil
}

// validateWebsiteXML rejects an invalid website-configuration document
// before it is stored (spec.md §3 "WebsiteConfiguration").
func validateWebsiteXML(raw []byte) (*website.Config, *cmn.ErrS3) {
	cfg, err := website.Parse(raw)
	if err != nil {
		return nil, err.(*cmn.ErrS3)
	}
	return cfg, nil
}
