// Package events implements the in-process publish/subscribe bus
// (spec.md §4.8, component C8): ObjectCreated/ObjectRemoved
// notifications fired in per-bucket commit order after a mutating
// operation's HTTP response has been written. The bucket-level
// NotificationConfiguration blob is kept by the store (ConfigNotify),
// not by this package, and the bus does not consult it.
package events

import (
	"sync"
	"time"
)

// Name enumerates the event types spec.md §3 "Event record" and §4.8
// name explicitly.
type Name string

const (
	ObjectCreatedPut                      Name = "ObjectCreated:Put"
	ObjectCreatedPost                     Name = "ObjectCreated:Post"
	ObjectCreatedCopy                     Name = "ObjectCreated:Copy"
	ObjectCreatedCompleteMultipartUpload  Name = "ObjectCreated:CompleteMultipartUpload"
	ObjectRemovedDelete                   Name = "ObjectRemoved:Delete"
)

// S3Ref is the event record's embedded "s3" block.
type S3Ref struct {
	BucketName string
	ObjectKey  string
	ObjectSize int64
	ObjectETag string
}

// Record is one published event (spec.md §3 "Event record").
type Record struct {
	EventTime string // ISO-8601 with millisecond precision
	EventName Name
	S3        S3Ref
}

// Subscriber receives published records. It must not block; the bus
// treats a slow or erroring subscriber as none of its concern (spec.md
// §4.8: "cancellation of a subscriber must never block further
// dispatch").
type Subscriber func(Record)

// Bus fans out records to subscribers through one buffered per-bucket
// queue (256 records) so that publication preserves per-bucket commit
// order (spec.md §4.8, §5). Publish returns at once while the bucket's
// queue has room and blocks once 256 records are waiting for delivery.
type Bus struct {
	mu          sync.Mutex
	subscribers []Subscriber
	queues      map[string]chan Record
}

func NewBus() *Bus {
	return &Bus{queues: make(map[string]chan Record)}
}

// Subscribe registers a callback invoked for every future record.
func (b *Bus) Subscribe(fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, fn)
}

func (b *Bus) queueFor(bucket string) chan Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[bucket]
	if !ok {
		q = make(chan Record, 256)
		b.queues[bucket] = q
		go b.drain(q)
	}
	return q
}

func (b *Bus) drain(q chan Record) {
	for rec := range q {
		b.mu.Lock()
		subs := append([]Subscriber(nil), b.subscribers...)
		b.mu.Unlock()
		for _, s := range subs {
			func() {
				defer func() { recover() }()
				s(rec)
			}()
		}
	}
}

// Publish enqueues rec for asynchronous per-bucket-ordered dispatch.
// Callers invoke this after writing the HTTP response (spec.md §4.8:
// "Successful mutations publish one event after the HTTP response has
// been written").
func (b *Bus) Publish(name Name, bucket, key string, size int64, etag string, at time.Time) {
	rec := Record{
		EventTime: at.UTC().Format("2006-01-02T15:04:05.000Z"),
		EventName: name,
		S3: S3Ref{
			BucketName: bucket,
			ObjectKey:  key,
			ObjectSize: size,
			ObjectETag: etag,
		},
	}
	b.queueFor(bucket) <- rec
}
