package store

import (
	"net"
	"regexp"
	"strings"
)

// validBucketName implements spec.md §6's naming rule set, in the
// style of AIStore's cmn.Bck.ValidateName (cmn/bucket.go): a regexp
// pre-filter plus a handful of explicit disqualifiers.
var bucketNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func validBucketName(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if !bucketNameRe.MatchString(name) {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	if net.ParseIP(name) != nil {
		return false
	}
	for _, label := range strings.Split(name, ".") {
		if label == "" {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
	}
	return true
}
