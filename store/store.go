package store

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/OneOfOne/xxhash"
	"github.com/pkg/errors"

	"github.com/randonia/s3rver-go/cmn"
)

// stripeCount bounds the number of mutexes the store allocates for
// per-bucket mutual exclusion (spec.md §5): every bucket hashes onto one
// of these stripes via xxhash, the non-cryptographic hash AIStore's own
// object index uses for exactly this kind of sharding decision. Two
// different buckets landing on the same stripe simply over-serialize;
// they never under-serialize, so the §5 atomicity contract still holds.
const stripeCount = 64

// Store is the process-wide object/bucket substrate (component C1). It
// owns every byte of content and every piece of metadata; handlers only
// ever borrow read streams from it.
type Store struct {
	directory    string
	resetOnClose bool

	mu      sync.RWMutex // guards the bucket directory itself (create/list/delete)
	buckets map[string]*Bucket
	order   []string // creation order, for listBuckets

	objMu  sync.RWMutex // guards obj map structure (insert/delete of keys)
	byName map[string]*bucketObjects

	stripes [stripeCount]sync.Mutex

	mpu *multipartIndex
}

type bucketObjects struct {
	keys map[string]*objectEntry
}

// objectEntry is a snapshot-safe handle: readers
// that already opened a stream must keep seeing the bytes as of open
// time even if the object is overwritten or deleted mid-read (spec.md
// §4.1 "Ownership"). Overwriting an object never mutates an existing
// entry in place -- it allocates a new one and swaps the map pointer,
// so any reader holding the old *objectEntry keeps its own snapshot.
type objectEntry struct {
	meta ObjectMeta
	path string // on-disk content path (immutable once written)
}

// New creates a Store rooted at directory. If resetOnClose, Close wipes
// the directory; otherwise content written now is expected to survive
// a later New() against the same directory (spec.md §6 persistence
// contract).
func New(directory string, resetOnClose bool) (*Store, error) {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create store directory %q", directory)
	}
	s := &Store{
		directory:    directory,
		resetOnClose: resetOnClose,
		buckets:      make(map[string]*Bucket),
		byName:       make(map[string]*bucketObjects),
		mpu:          newMultipartIndex(),
	}
	if err := s.loadFromDisk(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) stripeFor(bucket string) *sync.Mutex {
	h := xxhash.ChecksumString64(bucket)
	return &s.stripes[h%stripeCount]
}

// Close tears down the working set when resetOnClose is set (spec.md
// §3 "Lifecycle").
func (s *Store) Close() error {
	if !s.resetOnClose {
		return nil
	}
	return os.RemoveAll(s.directory)
}

func (s *Store) bucketDir(name string) string {
	return filepath.Join(s.directory, name)
}

// ListBuckets returns every bucket in creation order (spec.md §4.1).
func (s *Store) ListBuckets() []*Bucket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Bucket, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.buckets[name])
	}
	return out
}

func (s *Store) GetBucket(name string) (*Bucket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buckets[name]
	return b, ok
}

// CreateBucket implements spec.md §4.1 createBucket.
func (s *Store) CreateBucket(name string) error {
	if !validBucketName(name) {
		return cmn.ErrInvalidBucketName(name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.buckets[name]; exists {
		return cmn.ErrBucketAlreadyExists(name)
	}
	if err := os.MkdirAll(s.bucketDir(name), 0o755); err != nil {
		return cmn.ErrInternal("/"+name, err)
	}
	b := &Bucket{Name: name, CreatedAt: nowFunc(), configs: make(map[ConfigKind][]byte)}
	s.buckets[name] = b
	s.order = append(s.order, name)

	s.objMu.Lock()
	s.byName[name] = &bucketObjects{keys: make(map[string]*objectEntry)}
	s.objMu.Unlock()
	return nil
}

// DeleteBucket implements spec.md §4.1 deleteBucket: fails BucketNotEmpty
// while any object remains, and succeeds immediately after the last
// object is removed, regardless of whether any deleted key contained "/"
// separators (no ghost directories, since objects are never
// materialized as nested directories on disk -- see objectFileName).
func (s *Store) DeleteBucket(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.buckets[name]; !exists {
		return cmn.ErrNoSuchBucket(name)
	}

	s.objMu.RLock()
	objs := s.byName[name]
	empty := objs == nil || len(objs.keys) == 0
	s.objMu.RUnlock()
	if !empty {
		return cmn.ErrBucketNotEmpty(name)
	}

	delete(s.buckets, name)
	s.objMu.Lock()
	delete(s.byName, name)
	s.objMu.Unlock()
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mpu.dropBucket(name)
	return os.RemoveAll(s.bucketDir(name))
}

func (s *Store) bucketObjectsFor(name string) (*bucketObjects, bool) {
	s.objMu.RLock()
	defer s.objMu.RUnlock()
	bo, ok := s.byName[name]
	return bo, ok
}

// Keys returns a lexicographically sorted snapshot of every key in
// bucket, taken at call time (spec.md §5: "Listing takes a snapshot of
// the key set at entry").
func (s *Store) Keys(bucket string) ([]string, error) {
	bo, ok := s.bucketObjectsFor(bucket)
	if !ok {
		return nil, cmn.ErrNoSuchBucket(bucket)
	}
	s.objMu.RLock()
	keys := make([]string, 0, len(bo.keys))
	for k := range bo.keys {
		keys = append(keys, k)
	}
	s.objMu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}

// copyMeta takes a defensive deep copy of m's maps/slices, so a caller
// reading the returned value after the source entry's lock is released
// can't observe a concurrent in-place mutation (e.g. PutObjectTagging).
func copyMeta(m ObjectMeta) ObjectMeta {
	cp := m
	cp.UserMetadata = make(map[string]string, len(m.UserMetadata))
	for k, v := range m.UserMetadata {
		cp.UserMetadata[k] = v
	}
	cp.Tags = append([]Tag(nil), m.Tags...)
	return cp
}

// readerAt opens an independent, already-positioned reader over an
// entry's on-disk content -- used by GetObject to hand back a snapshot
// that survives a concurrent overwrite (spec.md §4.1/§5).
func (e *objectEntry) open() (io.ReadCloser, error) {
	return os.Open(e.path)
}
