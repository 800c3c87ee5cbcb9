// Package store is the object/bucket persistence substrate (spec.md
// §4.1, component C1). It is modeled after AIStore's cluster.LOM /
// cluster.Bck split -- a lightweight handle type plus a backing store
// that owns content bytes and metadata -- but flattened to the single
// local directory this server persists to.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package store

import "time"

// ConfigKind enumerates the bucket-level configuration blobs the store
// holds opaquely or semantically (spec.md §4.1 getBucketConfig/kind).
type ConfigKind string

const (
	ConfigCORS      ConfigKind = "cors"
	ConfigWebsite   ConfigKind = "website"
	ConfigPolicy    ConfigKind = "policy"
	ConfigLifecycle ConfigKind = "lifecycle"
	ConfigACL       ConfigKind = "acl"
	ConfigTagging   ConfigKind = "tagging"
	ConfigNotify    ConfigKind = "notification"
)

// Tag is one {Key, Value} pair of an object's tag set.
type Tag struct {
	Key   string
	Value string
}

// Bucket is the in-memory handle for a bucket's metadata. Object
// content lives in Store, keyed by (bucket, key); Bucket never holds
// object bytes itself.
type Bucket struct {
	Name      string
	CreatedAt time.Time

	// bucket-level configuration blobs, raw XML/JSON bytes as supplied
	// by the client on PUT -- returned verbatim on GET (spec.md §4.1).
	configs map[ConfigKind][]byte
}

// ObjectMeta is every attribute of an object besides its bytes
// (spec.md §3 "Object").
type ObjectMeta struct {
	Key                     string
	ContentType             string
	ETag                    string // quoted, lowercase hex per spec.md §6
	Size                    int64
	LastModified            time.Time
	UserMetadata            map[string]string // lowercased keys, spec.md §3
	WebsiteRedirectLocation string
	Tags                    []Tag
}

// RangeSpec is a parsed `Range: bytes=start-end` header (spec.md §4.7).
type RangeSpec struct {
	Start int64
	End   int64 // inclusive
	Set   bool
}

const DefaultContentType = "binary/octet-stream"
