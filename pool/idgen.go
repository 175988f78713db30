package pool

import (
	"math"
	"sync/atomic"
)

// idAllocator is the process-scoped invocation-id table (§3): a
// monotonic counter, the single source of truth for correlating
// responses with callers. The zero value issues 1 as its first id, so a
// fresh allocator matches the header-layout property's first invocation
// id of 0x00..01. Wraps back to 1 after math.MaxInt64, matching the
// original's modulo-based allocator.
type idAllocator struct {
	next int64 // last issued id; 0 means none issued yet
}

// nextID returns the next invocation id, wrapping back to 1 after the
// maximum signed 64-bit value so the counter never goes negative and
// collides with a header field that's read as signed.
func (a *idAllocator) nextID() int64 {
	for {
		cur := atomic.LoadInt64(&a.next)
		next := int64(1)
		if cur < math.MaxInt64 {
			next = cur + 1
		}
		if atomic.CompareAndSwapInt64(&a.next, cur, next) {
			return next
		}
	}
}
