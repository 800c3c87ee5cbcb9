package store

import "time"

// nowFunc is indirected the way gofakes3's TimeSource abstracts
// "now" for deterministic listing/ETag tests; production code always
// uses the real wall clock.
var nowFunc = time.Now
