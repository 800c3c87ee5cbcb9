package store

import "github.com/randonia/s3rver-go/cmn"

// PutObjectTagging replaces an object's tag set without touching its
// content or ETag (spec.md §3 invariant: "replacing tags does not
// change the ETag").
func (s *Store) PutObjectTagging(bucket, key string, tags []Tag) error {
	bo, ok := s.bucketObjectsFor(bucket)
	if !ok {
		return cmn.ErrNoSuchBucket(bucket)
	}
	s.objMu.Lock()
	defer s.objMu.Unlock()
	entry, ok := bo.keys[key]
	if !ok {
		return cmn.ErrNoSuchKey(bucket, key)
	}
	entry.meta.Tags = append([]Tag(nil), tags...)
	return s.persistMeta(bucket, key, entry.meta)
}

// GetObjectTagging returns {} for a tag-less object, NoSuchKey for a
// missing one (spec.md §4.1).
func (s *Store) GetObjectTagging(bucket, key string) ([]Tag, error) {
	_, meta, err := s.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	return meta.Tags, nil
}

func (s *Store) DeleteObjectTagging(bucket, key string) error {
	return s.PutObjectTagging(bucket, key, nil)
}
