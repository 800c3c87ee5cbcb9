package store

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// loadFromDisk reconstructs buckets and objects from a prior run's
// directory layout. The layout itself is an implementation detail
// (spec.md §6); the only observable contract is that a clean restart
// with resetOnClose=false recovers every bucket and object bitwise.
func (s *Store) loadFromDisk() error {
	entries, err := os.ReadDir(s.directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "failed to scan store directory")
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if !validBucketName(name) {
			continue
		}
		info, _ := e.Info()
		b := &Bucket{Name: name, configs: make(map[ConfigKind][]byte)}
		if info != nil {
			b.CreatedAt = info.ModTime()
		} else {
			b.CreatedAt = nowFunc()
		}
		s.buckets[name] = b
		s.order = append(s.order, name)
		s.byName[name] = &bucketObjects{keys: make(map[string]*objectEntry)}

		if err := s.loadBucketObjects(name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadBucketObjects(bucket string) error {
	dir := s.objectDir(bucket)
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "failed to scan objects of bucket %q", bucket)
	}
	bo := s.byName[bucket]
	for _, f := range files {
		name := f.Name()
		if !strings.HasSuffix(name, ".data") {
			continue
		}
		encoded := strings.TrimSuffix(name, ".data")
		raw, derr := base64.RawURLEncoding.DecodeString(encoded)
		if derr != nil {
			continue
		}
		key := string(raw)

		metaBytes, merr := os.ReadFile(filepath.Join(dir, encoded+".meta.json"))
		var meta ObjectMeta
		if merr == nil {
			jsonAPI.Unmarshal(metaBytes, &meta)
		}
		meta.Key = key
		bo.keys[key] = &objectEntry{meta: meta, path: filepath.Join(dir, name)}
	}
	return nil
}
