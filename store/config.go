package store

import "github.com/randonia/s3rver-go/cmn"

var configErrCode = map[ConfigKind]cmn.S3Code{
	ConfigCORS:      cmn.CodeNoSuchCORSConfig,
	ConfigWebsite:   cmn.CodeNoSuchWebsiteConfig,
	ConfigPolicy:    cmn.CodeNoSuchBucketPolicy,
	ConfigLifecycle: cmn.CodeNoSuchLifecycleConfig,
	ConfigTagging:   cmn.CodeNoSuchTagSet,
}

// GetBucketConfig returns the raw bytes supplied on the last successful
// PutBucketConfig for kind, or kind's NoSuch...Configuration error
// (spec.md §4.1).
func (s *Store) GetBucketConfig(bucket string, kind ConfigKind) ([]byte, error) {
	s.mu.RLock()
	b, ok := s.buckets[bucket]
	s.mu.RUnlock()
	if !ok {
		return nil, cmn.ErrNoSuchBucket(bucket)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := b.configs[kind]
	if !ok {
		code, known := configErrCode[kind]
		if !known {
			code = cmn.CodeNoSuchBucketPolicy
		}
		return nil, cmn.NewErrS3(code, "/"+bucket, "The %s configuration does not exist", kind)
	}
	return raw, nil
}

// PutBucketConfig replaces a configuration atomically (spec.md §3
// "Configurations replace atomically on PUT").
func (s *Store) PutBucketConfig(bucket string, kind ConfigKind, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[bucket]
	if !ok {
		return cmn.ErrNoSuchBucket(bucket)
	}
	b.configs[kind] = raw
	return nil
}

// DeleteBucketConfig removes a configuration (spec.md §3 "...and
// disappear on DELETE").
func (s *Store) DeleteBucketConfig(bucket string, kind ConfigKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[bucket]
	if !ok {
		return cmn.ErrNoSuchBucket(bucket)
	}
	delete(b.configs, kind)
	return nil
}
